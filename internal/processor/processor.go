package processor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/your-org/imgindex/internal/analysis"
	"github.com/your-org/imgindex/internal/event"
	"github.com/your-org/imgindex/internal/index"
	"github.com/your-org/imgindex/internal/models"
	"github.com/your-org/imgindex/internal/observability"
	"github.com/your-org/imgindex/internal/storage"
)

// Publisher announces stored records to downstream consumers.
type Publisher interface {
	PublishRecord(ctx context.Context, rec *models.ImageRecord) error
}

// Processor turns an upload into a deduplicated image record:
// labels → text → signature → canonical URL → put → publish.
type Processor struct {
	analyzer  analysis.Analyzer
	store     storage.Store
	dedup     *index.Deduper
	urls      storage.URLResolver
	publisher Publisher
	now       func() time.Time
}

// New builds a dedup-aware processor. publisher may be nil.
func New(analyzer analysis.Analyzer, store storage.Store, dedup *index.Deduper, urls storage.URLResolver, publisher Publisher) *Processor {
	return &Processor{
		analyzer:  analyzer,
		store:     store,
		dedup:     dedup,
		urls:      urls,
		publisher: publisher,
		now:       time.Now,
	}
}

func (p *Processor) Process(ctx context.Context, up event.Upload) (*models.ImageRecord, error) {
	rec, err := p.process(ctx, up)
	if err != nil {
		observability.ImagesProcessed.WithLabelValues("dedup", "error").Inc()
		return nil, err
	}
	observability.ImagesProcessed.WithLabelValues("dedup", "ok").Inc()
	return rec, nil
}

func (p *Processor) process(ctx context.Context, up event.Upload) (*models.ImageRecord, error) {
	ref := analysis.ImageRef{Bucket: up.Bucket, Key: up.Key}

	labels, err := p.analyzer.DetectLabels(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("analyze labels: %w", err)
	}
	text, err := p.analyzer.DetectText(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("analyze text: %w", err)
	}

	signature := index.Signature(labels)
	ownURL := p.urls.ObjectURL(up.Bucket, up.Key)

	res, err := p.dedup.Resolve(ctx, signature, ownURL)
	if err != nil {
		return nil, fmt.Errorf("resolve canonical url: %w", err)
	}

	rec := &models.ImageRecord{
		ImageID:    up.ImageID(),
		UploadDate: p.now().UTC(),
		Status:     models.StatusProcessed,
		URL:        res.URL,
		AIAnalysis: models.Analysis{
			Labels: labels,
			Text:   text,
		},
		SearchableTerms: signature,
	}
	if err := p.store.PutImage(ctx, rec); err != nil {
		return nil, fmt.Errorf("store record: %w", err)
	}
	p.dedup.Remember(signature, rec.URL)

	slog.Info("image processed",
		"image_id", rec.ImageID,
		"bucket", up.Bucket,
		"labels", len(labels),
		"words", len(text),
		"signature", signature,
		"reused_url", res.Reused,
	)

	publish(ctx, p.publisher, rec)
	return rec, nil
}

// publish is best effort: the record is already stored.
func publish(ctx context.Context, pub Publisher, rec *models.ImageRecord) {
	if pub == nil {
		return
	}
	if err := pub.PublishRecord(ctx, rec); err != nil {
		slog.Warn("publish record failed", "image_id", rec.ImageID, "error", err)
	}
}

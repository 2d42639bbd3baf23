package processor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/your-org/imgindex/internal/analysis"
	"github.com/your-org/imgindex/internal/event"
	"github.com/your-org/imgindex/internal/index"
	"github.com/your-org/imgindex/internal/models"
	"github.com/your-org/imgindex/internal/observability"
	"github.com/your-org/imgindex/internal/storage"
)

// Labeler is the simple variant: labels only, a fresh id per upload and no
// deduplication.
type Labeler struct {
	analyzer  analysis.Analyzer
	store     storage.Store
	urls      storage.URLResolver
	publisher Publisher
	now       func() time.Time
	newID     func() string
}

func NewLabeler(analyzer analysis.Analyzer, store storage.Store, urls storage.URLResolver, publisher Publisher) *Labeler {
	return &Labeler{
		analyzer:  analyzer,
		store:     store,
		urls:      urls,
		publisher: publisher,
		now:       time.Now,
		newID:     uuid.NewString,
	}
}

func (l *Labeler) Process(ctx context.Context, up event.Upload) (*models.ImageRecord, error) {
	labels, err := l.analyzer.DetectLabels(ctx, analysis.ImageRef{Bucket: up.Bucket, Key: up.Key})
	if err != nil {
		observability.ImagesProcessed.WithLabelValues("simple", "error").Inc()
		return nil, fmt.Errorf("analyze labels: %w", err)
	}

	rec := &models.ImageRecord{
		ImageID:         l.newID(),
		UploadDate:      l.now().UTC(),
		Status:          models.StatusProcessed,
		URL:             l.urls.ObjectURL(up.Bucket, up.Key),
		AIAnalysis:      models.Analysis{Labels: labels},
		SearchableTerms: index.Signature(labels),
	}
	if err := l.store.PutImage(ctx, rec); err != nil {
		observability.ImagesProcessed.WithLabelValues("simple", "error").Inc()
		return nil, fmt.Errorf("store record: %w", err)
	}
	observability.ImagesProcessed.WithLabelValues("simple", "ok").Inc()

	slog.Info("image labeled", "image_id", rec.ImageID, "key", up.Key, "labels", len(labels))

	publish(ctx, l.publisher, rec)
	return rec, nil
}

package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/your-org/imgindex/internal/models"
	"github.com/your-org/imgindex/pkg/dto"
)

const (
	UploadsStreamName  = "UPLOADS"
	UploadsSubjectBase = "uploads"
	RecordsStreamName  = "RECORDS"
	RecordsSubjectBase = "records"

	// BackfillSubject carries notifications synthesized by the ingestor.
	// MinIO publishes live notifications on its own configured subject
	// under uploads.>.
	BackfillSubject = UploadsSubjectBase + ".backfill"
	RecordsSubject  = RecordsSubjectBase + ".processed"
)

type Producer struct {
	nc *nats.Conn
	js jetstream.JetStream
}

func connect(natsURL string) (*nats.Conn, jetstream.JetStream, error) {
	nc, err := nats.Connect(natsURL,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to nats: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, nil, fmt.Errorf("create jetstream context: %w", err)
	}
	return nc, js, nil
}

func NewProducer(natsURL string) (*Producer, error) {
	nc, js, err := connect(natsURL)
	if err != nil {
		return nil, err
	}
	return &Producer{nc: nc, js: js}, nil
}

// EnsureStreams creates JetStream streams if they don't exist.
// Retries up to 30 times (1s apart) to handle NATS startup delay.
func (p *Producer) EnsureStreams(ctx context.Context) error {
	streams := []jetstream.StreamConfig{
		{
			Name:        UploadsStreamName,
			Subjects:    []string{UploadsSubjectBase + ".>"},
			Retention:   jetstream.WorkQueuePolicy,
			MaxAge:      24 * time.Hour,
			MaxMsgs:     1000000,
			Storage:     jetstream.FileStorage,
			Discard:     jetstream.DiscardOld,
			Duplicates:  10 * time.Minute,
			Description: "Object-created notifications for upload processors",
		},
		{
			Name:        RecordsStreamName,
			Subjects:    []string{RecordsSubjectBase + ".>"},
			Retention:   jetstream.InterestPolicy,
			MaxAge:      24 * time.Hour,
			MaxMsgs:     1000000,
			Storage:     jetstream.FileStorage,
			Description: "Stored image records",
		},
	}

	const maxAttempts = 30
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		allOK := true
		for _, cfg := range streams {
			opCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			_, err := p.js.CreateOrUpdateStream(opCtx, cfg)
			cancel()
			if err != nil {
				allOK = false
				if attempt == maxAttempts {
					return fmt.Errorf("create stream %s: %w (after %d attempts)", cfg.Name, err, maxAttempts)
				}
				slog.Warn("ensure NATS stream (retrying...)", "name", cfg.Name, "attempt", attempt, "error", err)
				break
			}
			slog.Info("ensured NATS stream", "name", cfg.Name)
		}
		if allOK {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(1 * time.Second):
		}
	}
	return nil
}

// PublishUpload enqueues a notification. Re-publishing the same object
// version within the stream's duplicate window is a no-op.
func (p *Producer) PublishUpload(ctx context.Context, ev events.S3Event) error {
	if len(ev.Records) == 0 {
		return fmt.Errorf("publish upload: event has no records")
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal upload: %w", err)
	}

	_, err = p.js.Publish(ctx, BackfillSubject, payload, jetstream.WithMsgID(UploadMsgID(ev.Records[0])))
	if err != nil {
		return fmt.Errorf("publish upload: %w", err)
	}
	return nil
}

// UploadMsgID identifies one version of one object.
func UploadMsgID(rec events.S3EventRecord) string {
	return rec.S3.Bucket.Name + "/" + rec.S3.Object.Key + "@" + rec.S3.Object.ETag
}

// PublishRecord announces a stored record on the RECORDS stream.
func (p *Producer) PublishRecord(ctx context.Context, rec *models.ImageRecord) error {
	payload, err := json.Marshal(dto.NewImageResponse(*rec))
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}

	_, err = p.js.Publish(ctx, RecordsSubject, payload)
	if err != nil {
		return fmt.Errorf("publish record %s: %w", rec.ImageID, err)
	}
	return nil
}

// QueueDepth returns the number of pending messages in the UPLOADS stream.
func (p *Producer) QueueDepth(ctx context.Context) (uint64, error) {
	stream, err := p.js.Stream(ctx, UploadsStreamName)
	if err != nil {
		return 0, err
	}
	info, err := stream.Info(ctx)
	if err != nil {
		return 0, err
	}
	return info.State.Msgs, nil
}

func (p *Producer) Ping() error {
	if !p.nc.IsConnected() {
		return fmt.Errorf("nats not connected")
	}
	return nil
}

func (p *Producer) Close() {
	p.nc.Close()
}

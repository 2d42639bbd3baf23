package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"path"
	"strings"

	"github.com/aws/aws-lambda-go/events"

	"github.com/your-org/imgindex/internal/event"
	"github.com/your-org/imgindex/internal/storage"
)

// ControlSubject is the plain NATS subject the ingestor listens on for
// backfill requests.
const ControlSubject = "backfill.control"

// Lister lists objects in a bucket.
type Lister interface {
	Bucket() string
	ListObjects(ctx context.Context, prefix string) ([]storage.ObjectInfo, error)
}

// UploadPublisher enqueues upload notifications.
type UploadPublisher interface {
	PublishUpload(ctx context.Context, ev events.S3Event) error
}

// Backfill enqueues objects that were uploaded before notifications were
// wired, so the worker processes them like fresh uploads.
type Backfill struct {
	lister    Lister
	publisher UploadPublisher
	region    string
}

func NewBackfill(lister Lister, publisher UploadPublisher, region string) *Backfill {
	return &Backfill{lister: lister, publisher: publisher, region: region}
}

// Run publishes one notification per image object under prefix and returns
// how many were enqueued. It stops at the first publish error.
func (b *Backfill) Run(ctx context.Context, prefix string) (int, error) {
	objects, err := b.lister.ListObjects(ctx, prefix)
	if err != nil {
		return 0, fmt.Errorf("list objects: %w", err)
	}

	bucket := b.lister.Bucket()
	enqueued := 0
	for _, obj := range objects {
		if !IsImageKey(obj.Key) {
			slog.Debug("backfill: skipping non-image object", "key", obj.Key)
			continue
		}
		ev := event.NewNotification(bucket, obj.Key, b.region, obj.ETag, obj.Size, obj.LastModified)
		if err := b.publisher.PublishUpload(ctx, ev); err != nil {
			return enqueued, fmt.Errorf("enqueue %s: %w", obj.Key, err)
		}
		enqueued++
	}

	slog.Info("backfill finished", "bucket", bucket, "prefix", prefix, "listed", len(objects), "enqueued", enqueued)
	return enqueued, nil
}

// IsImageKey reports whether key has a supported image extension.
func IsImageKey(key string) bool {
	switch strings.ToLower(path.Ext(key)) {
	case ".jpg", ".jpeg", ".png":
		return true
	}
	return false
}

// Command is a backfill request received on ControlSubject.
type Command struct {
	Prefix string `json:"prefix"`
}

func ParseCommand(data []byte) (Command, error) {
	var cmd Command
	if len(data) == 0 {
		return cmd, nil
	}
	if err := json.Unmarshal(data, &cmd); err != nil {
		return Command{}, fmt.Errorf("unmarshal command: %w", err)
	}
	return cmd, nil
}

package storage

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/minio/minio-go/v7/pkg/notification"

	"github.com/your-org/imgindex/internal/config"
)

type MinIOStore struct {
	client *minio.Client
	bucket string
	urls   MinIOURLs
}

func NewMinIOStore(cfg config.MinIOConfig) (*MinIOStore, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	return &MinIOStore{
		client: client,
		bucket: cfg.Bucket,
		urls:   MinIOURLs{Endpoint: cfg.Endpoint, Secure: cfg.UseSSL},
	}, nil
}

func (s *MinIOStore) Bucket() string { return s.bucket }

// URLs returns the resolver for objects served by this MinIO endpoint.
func (s *MinIOStore) URLs() MinIOURLs { return s.urls }

// EnsureBucket creates the bucket if it doesn't exist.
func (s *MinIOStore) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("check bucket: %w", err)
	}
	if !exists {
		if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
			return fmt.Errorf("create bucket: %w", err)
		}
	}
	return nil
}

// EnsureNotification registers arn as a queue target for every
// ObjectCreated event in the bucket. An identical registration is left as is.
func (s *MinIOStore) EnsureNotification(ctx context.Context, arn, prefix string) error {
	target, err := notification.NewArnFromString(arn)
	if err != nil {
		return fmt.Errorf("parse notification arn %q: %w", arn, err)
	}

	queue := notification.NewConfig(target)
	queue.AddEvents(notification.ObjectCreatedAll)
	if prefix != "" {
		queue.AddFilterPrefix(prefix)
	}

	current, err := s.client.GetBucketNotification(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("get bucket notification: %w", err)
	}
	if !current.AddQueue(queue) {
		slog.Debug("bucket notification already present", "bucket", s.bucket, "arn", arn)
		return nil
	}
	if err := s.client.SetBucketNotification(ctx, s.bucket, current); err != nil {
		return fmt.Errorf("set bucket notification: %w", err)
	}
	slog.Info("bucket notification registered", "bucket", s.bucket, "arn", arn)
	return nil
}

// Load reads an object's bytes. An empty bucket means the configured one.
func (s *MinIOStore) Load(ctx context.Context, bucket, key string) ([]byte, error) {
	if bucket == "" {
		bucket = s.bucket
	}
	obj, err := s.client.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("get object %s: %w", key, err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, fmt.Errorf("read object %s: %w", key, err)
	}
	return data, nil
}

// ObjectInfo is the listing entry used by backfill.
type ObjectInfo struct {
	Key          string
	Size         int64
	ETag         string
	LastModified time.Time
}

// ListObjects returns every object under prefix, in the order MinIO returns them.
func (s *MinIOStore) ListObjects(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	var objects []ObjectInfo
	for obj := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	}) {
		if obj.Err != nil {
			return nil, fmt.Errorf("list objects %s: %w", prefix, obj.Err)
		}
		objects = append(objects, ObjectInfo{
			Key:          obj.Key,
			Size:         obj.Size,
			ETag:         obj.ETag,
			LastModified: obj.LastModified,
		})
	}
	return objects, nil
}

// Ping checks MinIO connectivity.
func (s *MinIOStore) Ping(ctx context.Context) error {
	_, err := s.client.BucketExists(ctx, s.bucket)
	return err
}

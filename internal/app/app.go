// Package app builds the clients and stores shared by the binaries from a
// loaded config.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/rekognition"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/your-org/imgindex/internal/analysis"
	"github.com/your-org/imgindex/internal/config"
	"github.com/your-org/imgindex/internal/storage"
)

// LoadAWS resolves the SDK config. Static keys and a custom endpoint are
// only set for local stacks; in Lambda the default chain supplies both.
func LoadAWS(ctx context.Context, cfg config.AWSConfig) (aws.Config, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("load aws config: %w", err)
	}
	if cfg.Endpoint != "" {
		awsCfg.BaseEndpoint = aws.String(cfg.Endpoint)
	}
	return awsCfg, nil
}

// OpenStore connects the configured record store. The returned close
// function is never nil.
func OpenStore(ctx context.Context, cfg *config.Config, awsCfg aws.Config) (storage.Store, func(), error) {
	switch cfg.Store.Type {
	case config.StoreDynamoDB:
		client := dynamodb.NewFromConfig(awsCfg)
		slog.Info("using dynamodb store", "table", cfg.Store.DynamoDB.Table, "index", cfg.Store.DynamoDB.Index)
		return storage.NewDynamoStore(client, cfg.Store.DynamoDB), func() {}, nil

	case config.StorePostgres:
		db, err := storage.NewPostgresStore(cfg.Store.Database)
		if err != nil {
			return nil, nil, err
		}
		if err := db.Migrate(ctx); err != nil {
			db.Close()
			return nil, nil, err
		}
		slog.Info("using postgres store", "host", cfg.Store.Database.Host, "db", cfg.Store.Database.Name)
		return db, db.Close, nil

	case config.StoreMemory:
		slog.Warn("using in-memory store, records are lost on exit")
		return storage.NewMemoryStore(), func() {}, nil
	}
	return nil, nil, fmt.Errorf("unknown store type %q", cfg.Store.Type)
}

// NewAnalyzer builds the Rekognition analyzer. loader may be nil; when it is
// nil and inline_bytes is set, objects are read from S3.
func NewAnalyzer(awsCfg aws.Config, cfg config.AnalysisConfig, loader analysis.ImageLoader) *analysis.Rekognition {
	if loader == nil && cfg.InlineBytes {
		loader = storage.NewS3Loader(s3.NewFromConfig(awsCfg))
	}
	return analysis.NewRekognition(rekognition.NewFromConfig(awsCfg), loader, cfg)
}

// URLs picks the public URL scheme for stored objects: MinIO when an
// endpoint is configured, S3 otherwise. It also returns the bucket bare
// keys are resolved against.
func URLs(cfg *config.Config) (storage.URLResolver, string) {
	if cfg.MinIO.Endpoint != "" {
		return storage.MinIOURLs{Endpoint: cfg.MinIO.Endpoint, Secure: cfg.MinIO.UseSSL}, cfg.MinIO.Bucket
	}
	return storage.S3URLs{Region: cfg.AWS.Region}, cfg.AWS.Bucket
}

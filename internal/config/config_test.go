package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
store:
  type: dynamodb
  dynamodb:
    table: images
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "SearchableTermsIndex", cfg.Store.DynamoDB.Index)
	assert.Equal(t, 70.0, cfg.Analysis.MinConfidence)
	assert.Equal(t, 10, cfg.Analysis.MaxLabels)
	assert.Equal(t, DedupLookup, cfg.Dedup.Strategy)
	assert.False(t, cfg.Dedup.MatchEmptySignature)
	assert.Equal(t, 10*time.Minute, cfg.Dedup.CacheTTL)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestLoadEnvOverrides(t *testing.T) {
	path := writeConfig(t, `
store:
  type: postgres
  database:
    host: db.local
    name: images
dedup:
  strategy: lookup
`)
	t.Setenv("IMGINDEX_DB_HOST", "pg.internal")
	t.Setenv("IMGINDEX_DEDUP_STRATEGY", "claim")
	t.Setenv("IMGINDEX_WORKER_COUNT", "12")
	t.Setenv("IMGINDEX_MATCH_EMPTY_SIGNATURE", "true")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "pg.internal", cfg.Store.Database.Host)
	assert.Equal(t, DedupClaim, cfg.Dedup.Strategy)
	assert.Equal(t, 12, cfg.Worker.Count)
	assert.True(t, cfg.Dedup.MatchEmptySignature)
	assert.Equal(t, "postgres://:@pg.internal:5432/images?sslmode=disable", cfg.Store.Database.DSN())
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"dynamodb_without_table", "store:\n  type: dynamodb\n"},
		{"unknown_store", "store:\n  type: cassandra\n"},
		{"unknown_strategy", "store:\n  type: memory\ndedup:\n  strategy: lock\n"},
		{"confidence_out_of_range", "store:\n  type: memory\nanalysis:\n  min_confidence: 140\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			assert.Error(t, err)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestFromEnv(t *testing.T) {
	t.Setenv("DYNAMODB_TABLE", "image-metadata")
	t.Setenv("AWS_REGION", "eu-central-1")
	t.Setenv("S3_BUCKET", "uploads")

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, StoreDynamoDB, cfg.Store.Type)
	assert.Equal(t, "image-metadata", cfg.Store.DynamoDB.Table)
	assert.Equal(t, "eu-central-1", cfg.AWS.Region)
	assert.Equal(t, "uploads", cfg.AWS.Bucket)
}

func TestFromEnvRequiresTable(t *testing.T) {
	t.Setenv("DYNAMODB_TABLE", "")
	t.Setenv("IMGINDEX_DYNAMODB_TABLE", "")

	_, err := FromEnv()
	assert.Error(t, err)
}

func TestLoadExampleConfig(t *testing.T) {
	cfg, err := Load(filepath.Join("..", "..", "configs", "config.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "image-metadata", cfg.Store.DynamoDB.Table)
	assert.Equal(t, 10*time.Minute, cfg.Dedup.CacheTTL)
	assert.Equal(t, "arn:minio:sqs::PRIMARY:nats", cfg.MinIO.NotifyARN)
}

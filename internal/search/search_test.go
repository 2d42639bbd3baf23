package search

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/your-org/imgindex/internal/models"
	"github.com/your-org/imgindex/internal/storage"
)

type failingStore struct {
	storage.Store
}

func (failingStore) SearchTerms(context.Context, string) ([]models.ImageRecord, error) {
	return nil, errors.New("scan denied")
}

func seeded(t *testing.T) *storage.MemoryStore {
	t.Helper()
	ctx := context.Background()
	s := storage.NewMemoryStore()
	require.NoError(t, s.PutImage(ctx, &models.ImageRecord{ImageID: "1.jpg", URL: "https://photos.s3.us-east-1.amazonaws.com/1.jpg", SearchableTerms: "cat dog"}))
	require.NoError(t, s.PutImage(ctx, &models.ImageRecord{ImageID: "2.jpg", URL: "legacy/2.jpg", SearchableTerms: "car road"}))
	return s
}

func TestSearchSubstringMatch(t *testing.T) {
	svc := New(seeded(t), storage.S3URLs{Region: "us-east-1"}, "photos")

	got, err := svc.Search(context.Background(), "dog")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "1.jpg", got[0].ImageID)
	assert.Equal(t, "https://photos.s3.us-east-1.amazonaws.com/1.jpg", got[0].URL)
}

func TestSearchResolvesBareKeys(t *testing.T) {
	svc := New(seeded(t), storage.S3URLs{Region: "eu-west-1"}, "photos")

	got, err := svc.Search(context.Background(), "road")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "https://photos.s3.eu-west-1.amazonaws.com/legacy/2.jpg", got[0].URL)
}

func TestSearchNoMatchReturnsEmptyList(t *testing.T) {
	svc := New(seeded(t), storage.S3URLs{Region: "us-east-1"}, "photos")

	got, err := svc.Search(context.Background(), "zebra")
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestSearchIsCaseSensitive(t *testing.T) {
	svc := New(seeded(t), nil, "")

	got, err := svc.Search(context.Background(), "Cat")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestSearchEmptyQueryMatchesAll(t *testing.T) {
	svc := New(seeded(t), nil, "")

	got, err := svc.Search(context.Background(), "")
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestSearchStoreError(t *testing.T) {
	svc := New(failingStore{}, nil, "")

	_, err := svc.Search(context.Background(), "cat")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "scan denied")
}

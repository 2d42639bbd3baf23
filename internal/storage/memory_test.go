package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/your-org/imgindex/internal/models"
)

func TestMemoryStoreFindAndSearch(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	require.NoError(t, s.PutImage(ctx, &models.ImageRecord{ImageID: "a", SearchableTerms: "cat dog", URL: "u1"}))
	require.NoError(t, s.PutImage(ctx, &models.ImageRecord{ImageID: "b", SearchableTerms: "car road", URL: "u2"}))
	require.NoError(t, s.PutImage(ctx, &models.ImageRecord{ImageID: "c", SearchableTerms: "", URL: "u3"}))

	exact, err := s.FindBySignature(ctx, "cat dog")
	require.NoError(t, err)
	require.Len(t, exact, 1)
	assert.Equal(t, "a", exact[0].ImageID)

	partial, err := s.FindBySignature(ctx, "cat")
	require.NoError(t, err)
	assert.Empty(t, partial)

	hits, err := s.SearchTerms(ctx, "ca")
	require.NoError(t, err)
	assert.Len(t, hits, 2)

	none, err := s.SearchTerms(ctx, "Cat")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestMemoryStorePutReplacesSameID(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	require.NoError(t, s.PutImage(ctx, &models.ImageRecord{ImageID: "a", URL: "old"}))
	require.NoError(t, s.PutImage(ctx, &models.ImageRecord{ImageID: "a", URL: "new"}))

	assert.Equal(t, 1, s.Len())
	all, err := s.SearchTerms(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, "new", all[0].URL)
}

func TestMemoryStoreClaimSignature(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	first, err := s.ClaimSignature(ctx, "cat dog", "https://x/1.jpg")
	require.NoError(t, err)
	second, err := s.ClaimSignature(ctx, "cat dog", "https://x/2.jpg")
	require.NoError(t, err)

	assert.Equal(t, "https://x/1.jpg", first)
	assert.Equal(t, first, second)
}

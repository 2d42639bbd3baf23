package search

import (
	"context"
	"fmt"

	"github.com/your-org/imgindex/internal/models"
	"github.com/your-org/imgindex/internal/observability"
	"github.com/your-org/imgindex/internal/storage"
)

// Service answers free-text queries with a full scan of the record table.
type Service struct {
	store  storage.Store
	urls   storage.URLResolver
	bucket string
}

// New builds a search service. bucket and urls are used to expand records
// that stored a bare object key instead of a URL.
func New(store storage.Store, urls storage.URLResolver, bucket string) *Service {
	return &Service{store: store, urls: urls, bucket: bucket}
}

// Search returns every record whose searchableTerms contains query. Matching
// is case sensitive. The result is never nil.
func (s *Service) Search(ctx context.Context, query string) ([]models.ImageRecord, error) {
	records, err := s.store.SearchTerms(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("search terms %q: %w", query, err)
	}

	out := make([]models.ImageRecord, 0, len(records))
	for _, rec := range records {
		if s.urls != nil {
			rec.URL = storage.ResolveURL(s.urls, s.bucket, rec.URL)
		}
		out = append(out, rec)
	}

	observability.SearchResults.Observe(float64(len(out)))
	return out, nil
}

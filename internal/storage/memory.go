package storage

import (
	"context"
	"strings"
	"sync"

	"github.com/your-org/imgindex/internal/models"
)

// MemoryStore keeps records in process. Used by tests and local runs.
type MemoryStore struct {
	mu         sync.RWMutex
	records    []models.ImageRecord
	byID       map[string]int
	signatures map[string]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byID:       make(map[string]int),
		signatures: make(map[string]string),
	}
}

func (s *MemoryStore) PutImage(_ context.Context, rec *models.ImageRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if i, ok := s.byID[rec.ImageID]; ok {
		s.records[i] = *rec
		return nil
	}
	s.byID[rec.ImageID] = len(s.records)
	s.records = append(s.records, *rec)
	return nil
}

func (s *MemoryStore) FindBySignature(_ context.Context, signature string) ([]models.ImageRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.ImageRecord
	for _, rec := range s.records {
		if rec.SearchableTerms == signature {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (s *MemoryStore) SearchTerms(_ context.Context, substr string) ([]models.ImageRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.ImageRecord
	for _, rec := range s.records {
		if strings.Contains(rec.SearchableTerms, substr) {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (s *MemoryStore) ClaimSignature(_ context.Context, signature, url string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.signatures[signature]; ok {
		return existing, nil
	}
	s.signatures[signature] = url
	return url, nil
}

func (s *MemoryStore) Ping(context.Context) error {
	return nil
}

// Len reports the number of stored records.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

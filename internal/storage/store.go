package storage

import (
	"context"
	"errors"
	"time"

	"github.com/your-org/imgindex/internal/models"
	"github.com/your-org/imgindex/internal/observability"
)

// ErrClaimUnsupported is returned by ClaimSignature when the backend was
// configured without a place to record signature claims.
var ErrClaimUnsupported = errors.New("signature claims not supported by this store")

// Store is the record table. PutImage replaces any record with the same
// imageId, matching a key-value put.
type Store interface {
	PutImage(ctx context.Context, rec *models.ImageRecord) error
	// FindBySignature returns records whose searchableTerms equals signature.
	FindBySignature(ctx context.Context, signature string) ([]models.ImageRecord, error)
	// SearchTerms returns records whose searchableTerms contains substr.
	SearchTerms(ctx context.Context, substr string) ([]models.ImageRecord, error)
	Ping(ctx context.Context) error
}

// SignatureClaimer atomically binds a signature to a URL if no binding
// exists yet, and returns whichever URL holds the binding afterwards.
type SignatureClaimer interface {
	ClaimSignature(ctx context.Context, signature, url string) (string, error)
}

func observe(backend, op string, start time.Time) {
	observability.StoreDuration.WithLabelValues(backend, op).Observe(time.Since(start).Seconds())
}

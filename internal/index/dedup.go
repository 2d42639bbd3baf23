package index

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/patrickmn/go-cache"

	"github.com/your-org/imgindex/internal/config"
	"github.com/your-org/imgindex/internal/observability"
	"github.com/your-org/imgindex/internal/storage"
)

// Resolution is the outcome of resolving a signature to a canonical URL.
type Resolution struct {
	URL string
	// Reused is true when URL belongs to an earlier upload.
	Reused bool
}

// Deduper maps a signature to the canonical URL of the first image that
// carried it.
type Deduper struct {
	store      storage.Store
	claimer    storage.SignatureClaimer
	matchEmpty bool
	cache      *cache.Cache
}

// NewDeduper builds a deduper over store. With the claim strategy the store
// must implement storage.SignatureClaimer, otherwise lookup is used.
func NewDeduper(store storage.Store, cfg config.DedupConfig) *Deduper {
	d := &Deduper{
		store:      store,
		matchEmpty: cfg.MatchEmptySignature,
	}
	if cfg.CacheTTL > 0 {
		d.cache = cache.New(cfg.CacheTTL, cfg.CacheTTL*2)
	}
	if cfg.Strategy == config.DedupClaim {
		if c, ok := store.(storage.SignatureClaimer); ok {
			d.claimer = c
		} else {
			slog.Warn("store cannot claim signatures, using lookup", "store", fmt.Sprintf("%T", store))
		}
	}
	return d
}

// Resolve returns the canonical URL for signature. ownURL is the URL of the
// upload being processed and is returned when no earlier image matches.
func (d *Deduper) Resolve(ctx context.Context, signature, ownURL string) (Resolution, error) {
	if signature == "" && !d.matchEmpty {
		return Resolution{URL: ownURL}, nil
	}

	if url, ok := d.cached(signature); ok {
		observability.DedupHits.WithLabelValues("cache").Inc()
		return d.resolution(url, ownURL), nil
	}

	existing, err := d.store.FindBySignature(ctx, signature)
	if err != nil {
		return Resolution{}, fmt.Errorf("find signature: %w", err)
	}
	if len(existing) > 0 && existing[0].URL != "" {
		d.Remember(signature, existing[0].URL)
		observability.DedupHits.WithLabelValues("store").Inc()
		return d.resolution(existing[0].URL, ownURL), nil
	}

	if d.claimer == nil || signature == "" {
		return Resolution{URL: ownURL}, nil
	}

	url, err := d.claimer.ClaimSignature(ctx, signature, ownURL)
	if errors.Is(err, storage.ErrClaimUnsupported) {
		return Resolution{URL: ownURL}, nil
	}
	if err != nil {
		return Resolution{}, fmt.Errorf("claim signature: %w", err)
	}
	d.Remember(signature, url)
	if url != ownURL {
		observability.DedupHits.WithLabelValues("claim").Inc()
	}
	return d.resolution(url, ownURL), nil
}

// Remember records signature -> url after a record has been stored, so
// later uploads in this process skip the store lookup. Records are never
// updated, so a cached URL cannot go stale.
func (d *Deduper) Remember(signature, url string) {
	if d.cache == nil || url == "" {
		return
	}
	if signature == "" && !d.matchEmpty {
		return
	}
	// Add keeps the first URL if another goroutine got there first.
	_ = d.cache.Add(signature, url, cache.DefaultExpiration)
}

func (d *Deduper) cached(signature string) (string, bool) {
	if d.cache == nil {
		return "", false
	}
	v, ok := d.cache.Get(signature)
	if !ok {
		return "", false
	}
	url, ok := v.(string)
	return url, ok
}

func (d *Deduper) resolution(url, ownURL string) Resolution {
	return Resolution{URL: url, Reused: url != ownURL}
}

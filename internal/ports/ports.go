package ports

import (
	"context"
	"time"

	"github.com/homescout/match-engine/internal/domain"
)

// ListingSource fetches candidate listings for a set of search criteria.
// An empty result is a valid answer (zero matches), not an error.
type ListingSource interface {
	Search(ctx context.Context, c domain.SearchCriteria) ([]domain.Listing, error)
}

// VisualAnalyzer turns a listing's photos into tags and flags. Assumed
// idempotent per (listing, images); invoked at most once per listing per
// cache miss.
type VisualAnalyzer interface {
	AnalyzeImages(ctx context.Context, listingID string, imageURLs []string) (domain.VisualAnalysis, error)
}

// ResultStore persists cached search results keyed by
// (profile id, fingerprint, search method).
type ResultStore interface {
	// Get returns the row for key, or storage.ErrNotFound when absent.
	Get(ctx context.Context, key domain.CacheKey) (domain.CachedSearchResult, error)
	// Put inserts the row, replacing any existing row with the same key.
	Put(ctx context.Context, row domain.CachedSearchResult) error
	// Touch updates the last-accessed timestamp of an existing row.
	Touch(ctx context.Context, key domain.CacheKey, at time.Time) error
	// DeleteByProfile removes every row for a profile, any fingerprint or
	// method, and returns the number of rows removed.
	DeleteByProfile(ctx context.Context, profileID string) (int64, error)
	// DeleteExpired removes rows whose expiry is at or before now.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

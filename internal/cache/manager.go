// Package cache serves match results keyed by a fingerprint of the buyer's
// search-relevant profile, running the full scoring pipeline on a miss.
package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/homescout/match-engine/internal/domain"
	"github.com/homescout/match-engine/internal/enhance"
	"github.com/homescout/match-engine/internal/ports"
	"github.com/homescout/match-engine/internal/rank"
	"github.com/homescout/match-engine/internal/scoring"
	"github.com/homescout/match-engine/internal/storage"
)

// Search methods.
const (
	MethodEnhanced = "enhanced" // full pipeline including visual enhancement
	MethodBasic    = "basic"    // skip enhancement entirely
)

// DefaultTTL is how long a cached result stays fresh.
const DefaultTTL = 24 * time.Hour

// Cache statuses reported to the caller.
const (
	StatusHit     = "hit"
	StatusMiss    = "miss"
	StatusStale   = "stale"   // a row existed but its TTL had elapsed
	StatusRefresh = "refresh" // caller forced a refresh
)

// Result is the cache manager's answer for one lookup.
type Result struct {
	Results         domain.Categorized `json:"results"`
	FromCache       bool               `json:"from_cache"`
	CacheStatus     string             `json:"cache_status"`
	Fingerprint     string             `json:"fingerprint"`
	ExecutionTimeMs int64              `json:"execution_time_ms"`
}

// Deps wires the pipeline stages and collaborators into the Manager.
type Deps struct {
	Source       ports.ListingSource
	Store        ports.ResultStore
	Calculator   *scoring.Calculator
	Orchestrator *enhance.Orchestrator
	Categorizer  *rank.Categorizer
	Logger       *slog.Logger
}

// Manager looks up cached results and drives the full pipeline on a miss.
type Manager struct {
	source       ports.ListingSource
	store        ports.ResultStore
	calc         *scoring.Calculator
	orchestrator *enhance.Orchestrator
	cat          *rank.Categorizer
	logger       *slog.Logger
	ttl          time.Duration
	now          func() time.Time
}

// Option configures a Manager.
type Option func(*Manager)

// WithTTL overrides the freshness window.
func WithTTL(ttl time.Duration) Option {
	return func(m *Manager) { m.ttl = ttl }
}

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// NewManager constructs a cache manager.
func NewManager(deps Deps, opts ...Option) *Manager {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	m := &Manager{
		source:       deps.Source,
		store:        deps.Store,
		calc:         deps.Calculator,
		orchestrator: deps.Orchestrator,
		cat:          deps.Categorizer,
		logger:       logger,
		ttl:          DefaultTTL,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// GetResults returns match results for the profile, from cache when a fresh
// row exists and forceRefresh is false, otherwise from a full pipeline run
// whose output is persisted before returning. Store failures degrade: a bad
// read is a miss, a bad write is logged and the in-memory result still
// served.
func (m *Manager) GetResults(ctx context.Context, profile domain.BuyerProfile, tags []domain.ProfileTag, method string, forceRefresh bool) (Result, error) {
	method = normalizeMethod(method)
	key := domain.CacheKey{
		ProfileID:    profile.ID,
		Fingerprint:  Fingerprint(profile, tags),
		SearchMethod: method,
	}

	status := StatusMiss
	if forceRefresh {
		status = StatusRefresh
	} else {
		row, err := m.store.Get(ctx, key)
		switch {
		case err == nil && !row.Expired(m.now()):
			if touchErr := m.store.Touch(ctx, key, m.now()); touchErr != nil {
				m.logger.Warn("cache touch failed", "profile", profile.ID, "err", touchErr)
			}
			return Result{
				Results:         row.Categorized(),
				FromCache:       true,
				CacheStatus:     StatusHit,
				Fingerprint:     key.Fingerprint,
				ExecutionTimeMs: row.ExecutionTimeMs,
			}, nil
		case err == nil:
			status = StatusStale
		case !errors.Is(err, storage.ErrNotFound):
			// A broken store read is a miss, not a failure.
			m.logger.Warn("cache read failed, treating as miss", "profile", profile.ID, "err", err)
		}
	}

	started := m.now()
	results, err := m.runPipeline(ctx, profile, tags, method)
	if err != nil {
		return Result{}, err
	}
	elapsed := m.now().Sub(started).Milliseconds()

	row := domain.CachedSearchResult{
		ProfileID:       key.ProfileID,
		Fingerprint:     key.Fingerprint,
		SearchMethod:    key.SearchMethod,
		TopPicks:        results.TopPicks,
		OtherMatches:    results.OtherMatches,
		LowMatches:      results.LowMatches,
		NoImage:         results.NoImage,
		Summary:         results.Summary,
		CreatedAt:       m.now(),
		ExpiresAt:       m.now().Add(m.ttl),
		LastAccessedAt:  m.now(),
		ExecutionTimeMs: elapsed,
	}
	if err := m.store.Put(ctx, row); err != nil {
		m.logger.Warn("cache write failed, serving uncached result", "profile", profile.ID, "err", err)
	}

	return Result{
		Results:         results,
		FromCache:       false,
		CacheStatus:     status,
		Fingerprint:     key.Fingerprint,
		ExecutionTimeMs: elapsed,
	}, nil
}

// runPipeline fetches listings, scores them, and (method permitting) runs the
// enhancement pass before categorizing.
func (m *Manager) runPipeline(ctx context.Context, profile domain.BuyerProfile, tags []domain.ProfileTag, method string) (domain.Categorized, error) {
	listings, err := m.source.Search(ctx, CriteriaFromProfile(profile))
	if err != nil {
		return domain.Categorized{}, fmt.Errorf("fetch listings: %w", err)
	}

	scored := make([]domain.ScoredListing, len(listings))
	for i, l := range listings {
		scored[i] = m.calc.Score(l, profile, tags, nil)
	}

	if method == MethodBasic || m.orchestrator == nil {
		base := make([]domain.EnhancedScoredListing, len(scored))
		for i, s := range scored {
			base[i] = domain.EnhancedScoredListing{ScoredListing: s}
		}
		return m.cat.Categorize(base), nil
	}
	return m.orchestrator.Enhance(ctx, scored, profile, tags, nil), nil
}

// Invalidate removes every cached row for the profile. Called by the
// profile-edit collaborator whenever a search-relevant field changes; the
// engine cannot detect such changes itself.
func (m *Manager) Invalidate(ctx context.Context, profileID string) (int64, error) {
	n, err := m.store.DeleteByProfile(ctx, profileID)
	if err != nil {
		return 0, fmt.Errorf("invalidate profile %s: %w", profileID, err)
	}
	m.logger.Info("cache invalidated", "profile", profileID, "rows", n)
	return n, nil
}

// Cleanup deletes rows whose expiry has passed. Safe to run concurrently
// with lookups.
func (m *Manager) Cleanup(ctx context.Context) (int64, error) {
	n, err := m.store.DeleteExpired(ctx, m.now())
	if err != nil {
		return 0, fmt.Errorf("cache cleanup: %w", err)
	}
	return n, nil
}

// CriteriaFromProfile derives the listing-source query from a profile.
func CriteriaFromProfile(p domain.BuyerProfile) domain.SearchCriteria {
	c := domain.SearchCriteria{
		MinPrice:     p.BudgetMin,
		MaxPrice:     p.BudgetMax,
		Bedrooms:     p.Bedrooms,
		PropertyType: p.HomeType,
		Limit:        50,
	}
	if len(p.PreferredAreas) > 0 {
		c.Location = p.PreferredAreas[0]
	}
	return c
}

func normalizeMethod(method string) string {
	if method == MethodBasic {
		return MethodBasic
	}
	return MethodEnhanced
}

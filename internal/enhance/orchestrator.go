// Package enhance runs the second scoring tier: it sends the best
// image-bearing candidates to the visual-analysis service, re-scores them
// with the returned tags, and merges the batch back into categorized form.
package enhance

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"golang.org/x/time/rate"

	"github.com/homescout/match-engine/internal/domain"
	"github.com/homescout/match-engine/internal/ports"
	"github.com/homescout/match-engine/internal/rank"
	"github.com/homescout/match-engine/internal/scoring"
)

// Options configures the enhancement pass.
type Options struct {
	// MaxCandidates bounds how many listings receive visual analysis per
	// batch. Visual analysis is the expensive, rate-limited step and must
	// never run across a full result set.
	MaxCandidates int
	// MaxImagesPerListing caps how many photos are submitted per call.
	MaxImagesPerListing int
	// CallsPerSecond and Burst shape the token bucket pacing calls to the
	// visual-analysis service.
	CallsPerSecond float64
	Burst          int
}

// DefaultOptions returns the production defaults: top 5 candidates, 4 images
// each, one call every 2 seconds.
func DefaultOptions() Options {
	return Options{
		MaxCandidates:       5,
		MaxImagesPerListing: 4,
		CallsPerSecond:      0.5,
		Burst:               1,
	}
}

// Progress reports per-item completion during an enhancement batch.
// Callbacks fire in selection order (highest base score first).
type Progress struct {
	Completed   int    `json:"completed"`
	Total       int    `json:"total"`
	CurrentItem string `json:"current_item"`
}

// ProgressFunc receives Progress updates. May be nil.
type ProgressFunc func(Progress)

// Orchestrator drives the visual enhancement pipeline.
type Orchestrator struct {
	analyzer ports.VisualAnalyzer
	calc     *scoring.Calculator
	cat      *rank.Categorizer
	limiter  *rate.Limiter
	opts     Options
	logger   *slog.Logger
}

// New creates an Orchestrator.
func New(analyzer ports.VisualAnalyzer, calc *scoring.Calculator, cat *rank.Categorizer, opts Options, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.MaxCandidates <= 0 {
		opts.MaxCandidates = DefaultOptions().MaxCandidates
	}
	if opts.MaxImagesPerListing <= 0 {
		opts.MaxImagesPerListing = DefaultOptions().MaxImagesPerListing
	}
	if opts.CallsPerSecond <= 0 {
		opts.CallsPerSecond = DefaultOptions().CallsPerSecond
	}
	if opts.Burst <= 0 {
		opts.Burst = 1
	}
	return &Orchestrator{
		analyzer: analyzer,
		calc:     calc,
		cat:      cat,
		limiter:  rate.NewLimiter(rate.Limit(opts.CallsPerSecond), opts.Burst),
		opts:     opts,
		logger:   logger,
	}
}

// Enhance is the blocking variant: it runs the full enhancement chain and
// returns the merged, re-categorized result. A failed analysis call degrades
// that one listing to its base score and never aborts the batch.
func (o *Orchestrator) Enhance(ctx context.Context, scored []domain.ScoredListing, profile domain.BuyerProfile, tags []domain.ProfileTag, onProgress ProgressFunc) domain.Categorized {
	items := passthrough(scored)
	selected := o.selectCandidates(scored)

	for i, idx := range selected {
		items[idx] = o.enhanceOne(ctx, scored[idx], profile, tags)
		if onProgress != nil {
			onProgress(Progress{
				Completed:   i + 1,
				Total:       len(selected),
				CurrentItem: scored[idx].Listing.MLSNumber,
			})
		}
	}
	return o.cat.Categorize(items)
}

// Pending is the handle for a progressive enhancement run. If the caller
// never reads it, the background work still runs to completion and the
// result is simply dropped.
type Pending struct {
	done   chan struct{}
	result domain.Categorized
}

// Done is closed once the background enhancement has settled.
func (p *Pending) Done() <-chan struct{} { return p.done }

// Wait blocks until the enhanced result is ready or ctx expires.
func (p *Pending) Wait(ctx context.Context) (domain.Categorized, error) {
	select {
	case <-p.done:
		return p.result, nil
	case <-ctx.Done():
		return domain.Categorized{}, fmt.Errorf("await enhancement: %w", ctx.Err())
	}
}

// EnhanceProgressive returns the base-tier categorized result immediately and
// a handle resolving to the enhanced result. The background chain has no
// cancellation primitive: once started it runs to completion regardless of
// the caller's context.
func (o *Orchestrator) EnhanceProgressive(ctx context.Context, scored []domain.ScoredListing, profile domain.BuyerProfile, tags []domain.ProfileTag, onProgress ProgressFunc) (domain.Categorized, *Pending) {
	immediate := o.cat.Categorize(passthrough(scored))

	pending := &Pending{done: make(chan struct{})}
	bg := context.WithoutCancel(ctx)
	go func() {
		defer close(pending.done)
		pending.result = o.Enhance(bg, scored, profile, tags, onProgress)
	}()
	return immediate, pending
}

// selectCandidates returns indices of the listings to enhance: ranked by base
// score descending, image-bearing only, bounded by MaxCandidates. Ties keep
// input order.
func (o *Orchestrator) selectCandidates(scored []domain.ScoredListing) []int {
	order := make([]int, 0, len(scored))
	for i, s := range scored {
		if s.Listing.HasImages() {
			order = append(order, i)
		}
	}
	sort.SliceStable(order, func(a, b int) bool {
		return scored[order[a]].MatchScore > scored[order[b]].MatchScore
	})
	if len(order) > o.opts.MaxCandidates {
		order = order[:o.opts.MaxCandidates]
	}
	return order
}

// enhanceOne analyzes one listing's photos and re-scores it. Falls back to
// the un-enhanced listing on any failure.
func (o *Orchestrator) enhanceOne(ctx context.Context, s domain.ScoredListing, profile domain.BuyerProfile, tags []domain.ProfileTag) domain.EnhancedScoredListing {
	fallback := domain.EnhancedScoredListing{ScoredListing: s}

	if err := o.limiter.Wait(ctx); err != nil {
		o.logger.Warn("rate limiter wait interrupted", "listing", s.Listing.MLSNumber, "err", err)
		return fallback
	}

	urls := s.Listing.ImageURLs
	if len(urls) > o.opts.MaxImagesPerListing {
		urls = urls[:o.opts.MaxImagesPerListing]
	}

	analysis, err := o.analyzer.AnalyzeImages(ctx, s.Listing.MLSNumber, urls)
	if err != nil {
		o.logger.Warn("visual analysis failed, keeping base score",
			"listing", s.Listing.MLSNumber, "err", err)
		return fallback
	}

	visualTags := analysis.Tags()
	rescored := o.calc.Score(s.Listing, profile, tags, visualTags)
	matches := o.calc.VisualMatches(profile, tags, visualTags)

	return domain.EnhancedScoredListing{
		ScoredListing:  rescored,
		Enhanced:       true,
		VisualTags:     visualTags,
		VisualFlags:    analysis.Flags(),
		VisualMatches:  matches,
		EnhancedReason: enhancedReason(rescored, matches),
	}
}

func enhancedReason(s domain.ScoredListing, visualMatches []string) string {
	if len(visualMatches) == 0 {
		return s.Reason + " Photo review added no further signal."
	}
	return fmt.Sprintf("%s Photo review confirmed: %s.", s.Reason, strings.Join(visualMatches, ", "))
}

func passthrough(scored []domain.ScoredListing) []domain.EnhancedScoredListing {
	out := make([]domain.EnhancedScoredListing, len(scored))
	for i, s := range scored {
		out[i] = domain.EnhancedScoredListing{ScoredListing: s}
	}
	return out
}

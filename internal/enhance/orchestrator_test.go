package enhance

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/homescout/match-engine/internal/domain"
	"github.com/homescout/match-engine/internal/rank"
	"github.com/homescout/match-engine/internal/scoring"
)

type fakeAnalyzer struct {
	mu      sync.Mutex
	calls   []string
	images  map[string]int
	fail    bool
	tags    []string
	perCall time.Duration
}

func (f *fakeAnalyzer) AnalyzeImages(ctx context.Context, listingID string, imageURLs []string) (domain.VisualAnalysis, error) {
	f.mu.Lock()
	f.calls = append(f.calls, listingID)
	if f.images == nil {
		f.images = make(map[string]int)
	}
	f.images[listingID] = len(imageURLs)
	f.mu.Unlock()

	if f.perCall > 0 {
		time.Sleep(f.perCall)
	}
	if f.fail {
		return domain.VisualAnalysis{}, errors.New("vision service unavailable")
	}
	return domain.VisualAnalysis{
		ListingID: listingID,
		Images: []domain.ImageAnalysis{
			{URL: "a.jpg", Tags: f.tags, Confidence: 0.9},
		},
	}, nil
}

func (f *fakeAnalyzer) callLog() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func testOptions() Options {
	return Options{
		MaxCandidates:       5,
		MaxImagesPerListing: 4,
		CallsPerSecond:      10000, // no pacing in tests
		Burst:               1,
	}
}

func newOrchestrator(analyzer *fakeAnalyzer, opts Options) *Orchestrator {
	calc := scoring.New(scoring.DefaultTunables(), scoring.DefaultLexicon(),
		scoring.WithRand(rand.New(rand.NewSource(1))))
	return New(analyzer, calc, rank.New(), opts, nil)
}

func baseScored(id string, score float64, images int) domain.ScoredListing {
	urls := make([]string, images)
	for i := range urls {
		urls[i] = fmt.Sprintf("%s-%d.jpg", id, i)
	}
	return domain.ScoredListing{
		Listing:    domain.Listing{MLSNumber: id, Price: 450000, Bedrooms: 3, Bathrooms: 2, City: "Portland", ImageURLs: urls},
		MatchScore: score,
		Label:      scoring.Label(score * 100),
		Breakdown:  domain.ScoreBreakdown{FinalScore: score * 100},
	}
}

func TestEnhanceAllFailuresKeepsBaseScores(t *testing.T) {
	analyzer := &fakeAnalyzer{fail: true}
	o := newOrchestrator(analyzer, testOptions())

	in := []domain.ScoredListing{
		baseScored("a", 0.90, 3),
		baseScored("b", 0.80, 2),
		baseScored("c", 0.60, 1),
		baseScored("d", 0.95, 0), // no images, never selected
	}
	got := o.Enhance(context.Background(), in, domain.BuyerProfile{}, nil, nil)

	if got.Len() != len(in) {
		t.Fatalf("output size = %d, want %d (failures must not drop listings)", got.Len(), len(in))
	}
	want := map[string]float64{"a": 0.90, "b": 0.80, "c": 0.60, "d": 0.95}
	for _, bucket := range [][]domain.EnhancedScoredListing{got.TopPicks, got.OtherMatches, got.LowMatches, got.NoImage} {
		for _, l := range bucket {
			if l.Enhanced {
				t.Fatalf("%s marked enhanced after a failed analysis", l.Listing.MLSNumber)
			}
			if l.MatchScore != want[l.Listing.MLSNumber] {
				t.Fatalf("%s score = %v, want unchanged %v", l.Listing.MLSNumber, l.MatchScore, want[l.Listing.MLSNumber])
			}
		}
	}
}

func TestEnhanceAllFailuresPreservesBatchLength(t *testing.T) {
	analyzer := &fakeAnalyzer{fail: true}
	o := newOrchestrator(analyzer, testOptions())

	in := []domain.ScoredListing{
		baseScored("strong", 0.80, 2),
		baseScored("weak", 0.40, 2), // image-bearing but below every display band
	}
	got := o.Enhance(context.Background(), in, domain.BuyerProfile{}, nil, nil)

	if got.Len() != len(in) {
		t.Fatalf("output size = %d, want %d", got.Len(), len(in))
	}
	if len(got.LowMatches) != 1 || got.LowMatches[0].Listing.MLSNumber != "weak" {
		t.Fatalf("low matches = %+v, want the sub-band listing", got.LowMatches)
	}
	if got.LowMatches[0].MatchScore != 0.40 {
		t.Fatalf("score = %v, want unchanged 0.40", got.LowMatches[0].MatchScore)
	}
}

func TestSelectionBoundAndOrder(t *testing.T) {
	analyzer := &fakeAnalyzer{fail: true}
	opts := testOptions()
	opts.MaxCandidates = 3
	o := newOrchestrator(analyzer, opts)

	in := []domain.ScoredListing{
		baseScored("mid", 0.70, 1),
		baseScored("best", 0.95, 1),
		baseScored("skip-no-image", 0.99, 0),
		baseScored("good", 0.85, 1),
		baseScored("past-bound", 0.60, 1),
	}

	var progress []Progress
	o.Enhance(context.Background(), in, domain.BuyerProfile{}, nil, func(p Progress) {
		progress = append(progress, p)
	})

	wantCalls := []string{"best", "good", "mid"}
	calls := analyzer.callLog()
	if len(calls) != len(wantCalls) {
		t.Fatalf("calls = %v, want %v", calls, wantCalls)
	}
	for i := range wantCalls {
		if calls[i] != wantCalls[i] {
			t.Fatalf("call order = %v, want %v", calls, wantCalls)
		}
	}

	if len(progress) != 3 {
		t.Fatalf("progress callbacks = %d, want 3", len(progress))
	}
	for i, p := range progress {
		if p.Completed != i+1 || p.Total != 3 || p.CurrentItem != wantCalls[i] {
			t.Fatalf("progress[%d] = %+v, want completed=%d total=3 item=%s", i, p, i+1, wantCalls[i])
		}
	}
}

func TestEnhanceSuccessRescoresWithVisualTags(t *testing.T) {
	analyzer := &fakeAnalyzer{tags: []string{"garage", "hardwood_floors", "modern_kitchen"}}
	o := newOrchestrator(analyzer, testOptions())

	profile := domain.BuyerProfile{
		ID: "buyer-1", BudgetMin: 400000, BudgetMax: 500000, Bedrooms: 3,
		MustHaveFeatures: []string{"garage", "hardwood floors", "updated kitchen"},
	}
	listing := domain.Listing{
		MLSNumber: "MLS-1", Price: 450000, Bedrooms: 3, Bathrooms: 2, City: "Portland",
		Description: "Updated kitchen with hardwood floors and an attached garage, plenty of storage and light throughout the home.",
		Features:    []string{"garage", "hardwood floors"},
		ImageURLs:   []string{"1.jpg", "2.jpg"},
	}

	calc := scoring.New(scoring.DefaultTunables(), scoring.DefaultLexicon(),
		scoring.WithRand(rand.New(rand.NewSource(1))))
	base := calc.Score(listing, profile, nil, nil)

	got := o.Enhance(context.Background(), []domain.ScoredListing{base}, profile, nil, nil)
	if len(got.TopPicks) != 1 {
		t.Fatalf("top picks = %d, want 1", len(got.TopPicks))
	}
	e := got.TopPicks[0]
	if !e.Enhanced {
		t.Fatal("listing not marked enhanced")
	}
	if e.MatchScore <= base.MatchScore {
		t.Fatalf("enhanced score %v not above base %v", e.MatchScore, base.MatchScore)
	}
	if len(e.VisualMatches) < 3 {
		t.Fatalf("visual matches = %v, want >= 3", e.VisualMatches)
	}
	if e.EnhancedReason == "" {
		t.Fatal("enhanced reason empty")
	}
}

func TestEnhanceCapsImagesPerListing(t *testing.T) {
	analyzer := &fakeAnalyzer{tags: []string{"pool"}}
	opts := testOptions()
	opts.MaxImagesPerListing = 2
	o := newOrchestrator(analyzer, opts)

	in := []domain.ScoredListing{baseScored("many", 0.90, 9)}
	o.Enhance(context.Background(), in, domain.BuyerProfile{}, nil, nil)

	if analyzer.images["many"] != 2 {
		t.Fatalf("images submitted = %d, want capped 2", analyzer.images["many"])
	}
}

func TestEnhanceProgressive(t *testing.T) {
	analyzer := &fakeAnalyzer{fail: true, perCall: 5 * time.Millisecond}
	o := newOrchestrator(analyzer, testOptions())

	in := []domain.ScoredListing{
		baseScored("a", 0.90, 1),
		baseScored("b", 0.60, 1),
	}
	immediate, pending := o.EnhanceProgressive(context.Background(), in, domain.BuyerProfile{}, nil, nil)

	if immediate.Len() != 2 {
		t.Fatalf("immediate result size = %d, want 2", immediate.Len())
	}
	for _, l := range immediate.TopPicks {
		if l.Enhanced {
			t.Fatal("immediate result must never carry enhanced scores")
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	final, err := pending.Wait(ctx)
	if err != nil {
		t.Fatalf("wait: %v", err)
	}
	if final.Len() != 2 {
		t.Fatalf("final result size = %d, want 2", final.Len())
	}
	select {
	case <-pending.Done():
	default:
		t.Fatal("done channel not closed after Wait returned")
	}
}

func TestEnhanceEmptyBatch(t *testing.T) {
	analyzer := &fakeAnalyzer{}
	o := newOrchestrator(analyzer, testOptions())

	got := o.Enhance(context.Background(), nil, domain.BuyerProfile{}, nil, nil)
	if got.Len() != 0 {
		t.Fatalf("empty batch produced %d listings", got.Len())
	}
	if len(analyzer.callLog()) != 0 {
		t.Fatal("analyzer called for an empty batch")
	}
}

package rank

import (
	"fmt"
	"testing"

	"github.com/homescout/match-engine/internal/domain"
)

func scored(id string, score float64, images int) domain.EnhancedScoredListing {
	urls := make([]string, images)
	for i := range urls {
		urls[i] = fmt.Sprintf("%s-%d.jpg", id, i)
	}
	return domain.EnhancedScoredListing{
		ScoredListing: domain.ScoredListing{
			Listing:    domain.Listing{MLSNumber: id, City: "Portland", Price: 500000, ImageURLs: urls},
			MatchScore: score,
			Label:      "Good Match",
		},
	}
}

func TestCategorizeBands(t *testing.T) {
	c := New()
	got := c.Categorize([]domain.EnhancedScoredListing{
		scored("top", 0.80, 3),
		scored("edge-top", 0.70, 1),
		scored("other", 0.60, 2),
		scored("edge-other", 0.55, 2),
		scored("low", 0.40, 2),
		scored("no-image-high", 0.95, 0),
	})

	if len(got.TopPicks) != 2 {
		t.Fatalf("top picks = %d, want 2", len(got.TopPicks))
	}
	if len(got.OtherMatches) != 2 {
		t.Fatalf("other matches = %d, want 2", len(got.OtherMatches))
	}
	if len(got.LowMatches) != 1 || got.LowMatches[0].Listing.MLSNumber != "low" {
		t.Fatalf("low matches = %+v, want the sub-band listing only", got.LowMatches)
	}
	if len(got.NoImage) != 1 || got.NoImage[0].Listing.MLSNumber != "no-image-high" {
		t.Fatalf("no-image bucket = %+v, want the image-less listing only", got.NoImage)
	}
}

func TestCategorizeNeverDropsListings(t *testing.T) {
	c := New()
	var in []domain.EnhancedScoredListing
	for i := 0; i < 40; i++ {
		in = append(in, scored(fmt.Sprintf("l%d", i), float64(i%10)/10, i%4))
	}
	got := c.Categorize(in)

	if got.Len() != len(in) {
		t.Fatalf("categorized %d listings out of %d", got.Len(), len(in))
	}
	seen := make(map[string]int)
	for _, bucket := range [][]domain.EnhancedScoredListing{got.TopPicks, got.OtherMatches, got.LowMatches, got.NoImage} {
		for _, l := range bucket {
			seen[l.Listing.MLSNumber]++
		}
	}
	for id, n := range seen {
		if n != 1 {
			t.Fatalf("%s appears in %d buckets", id, n)
		}
	}
}

func TestCategorizeSpillsDisplayOverflow(t *testing.T) {
	c := New()
	var in []domain.EnhancedScoredListing
	for i := 0; i < 15; i++ {
		in = append(in, scored(fmt.Sprintf("t%d", i), 0.90, 1))
	}
	in = append(in, scored("lo", 0.30, 1))
	got := c.Categorize(in)

	if len(got.TopPicks) != TopPicksCap {
		t.Fatalf("top picks = %d, want %d", len(got.TopPicks), TopPicksCap)
	}
	// 5 overflowed top picks plus the sub-band listing.
	if len(got.LowMatches) != 6 {
		t.Fatalf("low matches = %d, want 6", len(got.LowMatches))
	}
	if got.LowMatches[len(got.LowMatches)-1].Listing.MLSNumber != "lo" {
		t.Fatalf("low bucket tail = %s, want the lowest scorer last", got.LowMatches[len(got.LowMatches)-1].Listing.MLSNumber)
	}
	if got.Len() != len(in) {
		t.Fatalf("categorized %d listings out of %d", got.Len(), len(in))
	}
}

func TestCategorizeDisjointAndImageGated(t *testing.T) {
	c := New()
	var in []domain.EnhancedScoredListing
	for i := 0; i < 30; i++ {
		in = append(in, scored(fmt.Sprintf("l%d", i), 0.55+float64(i%5)*0.1, i%3))
	}
	got := c.Categorize(in)

	seen := make(map[string]string)
	for _, l := range got.TopPicks {
		seen[l.Listing.MLSNumber] = "top"
	}
	for _, l := range got.OtherMatches {
		if where, ok := seen[l.Listing.MLSNumber]; ok {
			t.Fatalf("%s in both %s and other_matches", l.Listing.MLSNumber, where)
		}
	}
	for _, bucket := range [][]domain.EnhancedScoredListing{got.TopPicks, got.OtherMatches, got.LowMatches} {
		for _, l := range bucket {
			if !l.Listing.HasImages() {
				t.Fatalf("image-less listing %s escaped the no-image bucket", l.Listing.MLSNumber)
			}
		}
	}
}

func TestCategorizeStableOrderAndCaps(t *testing.T) {
	c := New()
	var in []domain.EnhancedScoredListing
	for i := 0; i < 15; i++ {
		in = append(in, scored(fmt.Sprintf("tie%d", i), 0.90, 1))
	}
	got := c.Categorize(in)

	if len(got.TopPicks) != TopPicksCap {
		t.Fatalf("top picks = %d, want capped at %d", len(got.TopPicks), TopPicksCap)
	}
	// Equal scores keep input order.
	for i, l := range got.TopPicks {
		if want := fmt.Sprintf("tie%d", i); l.Listing.MLSNumber != want {
			t.Fatalf("position %d = %s, want %s (stable order)", i, l.Listing.MLSNumber, want)
		}
	}
}

func TestCategorizeSortsDescending(t *testing.T) {
	c := New()
	got := c.Categorize([]domain.EnhancedScoredListing{
		scored("b", 0.75, 1),
		scored("a", 0.95, 1),
		scored("c", 0.71, 1),
	})
	want := []string{"a", "b", "c"}
	for i, l := range got.TopPicks {
		if l.Listing.MLSNumber != want[i] {
			t.Fatalf("order = %v at %d, want %v", l.Listing.MLSNumber, i, want)
		}
	}
}

func TestSummaryLines(t *testing.T) {
	c := New()
	var in []domain.EnhancedScoredListing
	for i := 0; i < 8; i++ {
		in = append(in, scored(fmt.Sprintf("s%d", i), 0.9, 1))
	}
	got := c.Categorize(in)
	if len(got.Summary) != SummaryLines {
		t.Fatalf("summary lines = %d, want %d", len(got.Summary), SummaryLines)
	}
	if got.Summary[0] == "" {
		t.Fatal("summary line empty")
	}
}

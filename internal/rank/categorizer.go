// Package rank partitions scored listings into the output tiers and renders
// their display summaries.
package rank

import (
	"fmt"
	"sort"

	"github.com/homescout/match-engine/internal/domain"
)

// Score bands and bucket caps.
const (
	TopPickThreshold    = 0.70
	OtherMatchThreshold = 0.55

	TopPicksCap     = 10
	OtherMatchesCap = 6
	SummaryLines    = 5
)

// Categorizer buckets scored listings. Stateless and safe for concurrent use.
type Categorizer struct{}

// New creates a Categorizer.
func New() *Categorizer { return &Categorizer{} }

// Categorize partitions listings by image presence first, then score band.
// Listings without images never enter the top or other buckets regardless of
// score; image-bearing listings below the other-match band fall through to
// the low bucket, so every input listing appears in exactly one bucket.
// Buckets are sorted by match score descending with the stable input order
// breaking ties; the two display tiers are then capped, overflow spilling
// into the low bucket.
func (c *Categorizer) Categorize(listings []domain.EnhancedScoredListing) domain.Categorized {
	var out domain.Categorized
	for _, l := range listings {
		switch {
		case !l.Listing.HasImages():
			out.NoImage = append(out.NoImage, l)
		case l.MatchScore >= TopPickThreshold:
			out.TopPicks = append(out.TopPicks, l)
		case l.MatchScore >= OtherMatchThreshold:
			out.OtherMatches = append(out.OtherMatches, l)
		default:
			out.LowMatches = append(out.LowMatches, l)
		}
	}

	sortByScore(out.TopPicks)
	sortByScore(out.OtherMatches)
	sortByScore(out.LowMatches)
	sortByScore(out.NoImage)

	var spill []domain.EnhancedScoredListing
	out.TopPicks, spill = capBucket(out.TopPicks, TopPicksCap)
	out.LowMatches = append(spill, out.LowMatches...)
	out.OtherMatches, spill = capBucket(out.OtherMatches, OtherMatchesCap)
	out.LowMatches = append(spill, out.LowMatches...)
	sortByScore(out.LowMatches)

	out.Summary = c.summarize(out)
	return out
}

// summarize renders one line per listing for the best candidates across
// buckets. Display only; never feeds back into scores.
func (c *Categorizer) summarize(cat domain.Categorized) []string {
	var lines []string
	for _, l := range cat.TopPicks {
		if len(lines) == SummaryLines {
			return lines
		}
		lines = append(lines, summaryLine(l))
	}
	for _, l := range cat.OtherMatches {
		if len(lines) == SummaryLines {
			return lines
		}
		lines = append(lines, summaryLine(l))
	}
	return lines
}

func summaryLine(l domain.EnhancedScoredListing) string {
	loc := l.Listing.City
	if loc == "" {
		loc = l.Listing.Address
	}
	return fmt.Sprintf("%s — %s in %s at $%d (%.0f%%)",
		l.Listing.MLSNumber, l.Label, loc, l.Listing.Price, l.MatchScore*100)
}

func sortByScore(bucket []domain.EnhancedScoredListing) {
	sort.SliceStable(bucket, func(i, j int) bool {
		return bucket[i].MatchScore > bucket[j].MatchScore
	})
}

func capBucket(bucket []domain.EnhancedScoredListing, max int) (kept, overflow []domain.EnhancedScoredListing) {
	if len(bucket) > max {
		return bucket[:max], bucket[max:]
	}
	return bucket, nil
}

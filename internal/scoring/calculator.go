package scoring

import (
	"math"
	"math/rand"
	"strings"
	"time"

	"github.com/homescout/match-engine/internal/domain"
)

// Match labels, assigned on a pure threshold ladder over the 0..100 score.
const (
	LabelExcellent      = "Excellent Match"
	LabelGood           = "Good Match"
	LabelFair           = "Fair Match"
	LabelPoor           = "Poor Match"
	LabelNotRecommended = "Not Recommended"
)

// Label maps a final 0..100 score to its tier.
func Label(score float64) string {
	switch {
	case score >= 85:
		return LabelExcellent
	case score >= 70:
		return LabelGood
	case score >= 55:
		return LabelFair
	case score >= 40:
		return LabelPoor
	default:
		return LabelNotRecommended
	}
}

// Calculator scores listings against a buyer profile. Pure and deterministic
// in every numeric output; only rationale phrasing draws from the injected
// random source.
type Calculator struct {
	tun     Tunables
	lex     Lexicon
	phrases *phrasePicker
}

// Option configures a Calculator.
type Option func(*Calculator)

// WithRand sets the random source used for rationale phrasing. Numeric
// scoring never reads it.
func WithRand(r *rand.Rand) Option {
	return func(c *Calculator) { c.phrases = newPhrasePicker(r) }
}

// New creates a Calculator with the given tunables and lookup tables.
func New(tun Tunables, lex Lexicon, opts ...Option) *Calculator {
	c := &Calculator{
		tun:     tun,
		lex:     lex,
		phrases: newPhrasePicker(rand.New(rand.NewSource(time.Now().UnixNano()))),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Score computes the match result for one listing. Side-effect free and safe
// for concurrent use; malformed optional fields degrade to neutral scores
// rather than erroring.
func (c *Calculator) Score(listing domain.Listing, profile domain.BuyerProfile, tags []domain.ProfileTag, visualTags []string) domain.ScoredListing {
	hay := listingText(listing)

	featureScore, matched := c.featureMatch(profile.MustHaveFeatures, hay)
	budgetScore := c.budgetMatch(listing.Price, profile)
	bedroomScore := bedroomMatch(listing.Bedrooms, profile.Bedrooms)
	locationScore := locationMatch(listing, profile.PreferredAreas)
	visualMatches := c.VisualMatches(profile, tags, visualTags)
	visualScore := tagBaseline + capAt(float64(len(visualMatches))*0.1, 0.5)
	behavioralScore := c.behavioralMatch(tags, hay)
	qualityScore := listingQuality(listing)

	w := c.tun.Weights
	weighted := featureScore*w.Feature +
		budgetScore*w.Budget +
		bedroomScore*w.Bedroom +
		locationScore*w.Location +
		visualScore*w.VisualTag +
		behavioralScore*w.BehavioralTag +
		qualityScore*w.Quality

	flags := c.dealbreakerFlags(profile.Dealbreakers, hay)
	dealbreakerPenalty := float64(len(flags)) * c.tun.DealbreakerPenalty

	missingPenalty := 0.0
	if listing.Bedrooms <= 0 {
		missingPenalty += c.tun.MissingDataPenalty
	}
	if listing.Bathrooms <= 0 {
		missingPenalty += c.tun.MissingDataPenalty
	}
	if !listing.HasImages() {
		missingPenalty += c.tun.MissingDataPenalty
	}
	if missingPenalty > c.tun.MaxMissingDataPenalty {
		missingPenalty = c.tun.MaxMissingDataPenalty
	}

	boost := 0.0
	if len(visualMatches) >= c.tun.VisualBoostMinMatches {
		boost = c.tun.VisualBoost
	}

	final := weighted - dealbreakerPenalty - missingPenalty + boost
	final = clamp(final, c.tun.MinScore, c.tun.MaxScore)
	final = round1(final)

	breakdown := domain.ScoreBreakdown{
		FeatureMatch:       featureScore,
		BudgetMatch:        budgetScore,
		BedroomMatch:       bedroomScore,
		LocationMatch:      locationScore,
		VisualTagMatch:     visualScore,
		BehavioralTagMatch: behavioralScore,
		ListingQuality:     qualityScore,
		WeightedTotal:      round1(weighted),
		DealbreakerPenalty: dealbreakerPenalty,
		MissingDataPenalty: missingPenalty,
		VisualBoost:        boost,
		FinalScore:         final,
	}

	scored := domain.ScoredListing{
		Listing:          listing,
		MatchScore:       final / 100,
		Label:            Label(final),
		MatchedFeatures:  matched,
		DealbreakerFlags: flags,
		Breakdown:        breakdown,
	}
	scored.Reason = c.reason(scored, profile)
	return scored
}

// VisualMatches returns the buyer's style and feature preferences that are
// corroborated by the given visual tags, in preference order.
func (c *Calculator) VisualMatches(profile domain.BuyerProfile, tags []domain.ProfileTag, visualTags []string) []string {
	if len(visualTags) == 0 {
		return nil
	}
	prefs := append([]string{}, profile.MustHaveFeatures...)
	for _, t := range tags {
		if t.Category == "preference" || t.Category == "lifestyle" {
			prefs = append(prefs, t.Tag)
		}
	}

	var out []string
	seen := make(map[string]struct{})
	for _, pref := range prefs {
		p := normalize(pref)
		if p == "" {
			continue
		}
		if _, dup := seen[p]; dup {
			continue
		}
		if c.visualTagsMention(visualTags, p) {
			seen[p] = struct{}{}
			out = append(out, pref)
		}
	}
	return out
}

// visualTagsMention reports whether any visual tag corresponds to the
// preference, directly or through the visual-style table.
func (c *Calculator) visualTagsMention(visualTags []string, pref string) bool {
	for _, vt := range visualTags {
		v := normalize(strings.ReplaceAll(vt, "_", " "))
		if v == "" {
			continue
		}
		if strings.Contains(v, pref) || strings.Contains(pref, v) {
			return true
		}
		for _, syn := range c.lex.VisualStyles[normalize(vt)] {
			s := normalize(syn)
			if strings.Contains(s, pref) || strings.Contains(pref, s) {
				return true
			}
		}
	}
	return false
}

const tagBaseline = 0.5

func (c *Calculator) featureMatch(mustHaves []string, hay string) (float64, []string) {
	if len(mustHaves) == 0 {
		return 0.5, nil
	}
	var matched []string
	for _, f := range mustHaves {
		if c.textMentions(hay, f, c.lex.Features) {
			matched = append(matched, f)
		}
	}
	return float64(len(matched)) / float64(len(mustHaves)), matched
}

func (c *Calculator) dealbreakerFlags(dealbreakers []string, hay string) []string {
	var flags []string
	for _, d := range dealbreakers {
		if c.textMentions(hay, d, c.lex.Dealbreakers) {
			flags = append(flags, d)
		}
	}
	return flags
}

func (c *Calculator) behavioralMatch(tags []domain.ProfileTag, hay string) float64 {
	score := tagBaseline
	for _, t := range tags {
		switch t.Category {
		case "behavioral", "lifestyle", "preference":
		default:
			continue
		}
		if c.textMentions(hay, t.Tag, c.lex.Features) {
			conf := clamp(float64(t.Confidence), 0, 100)
			score += 0.1 * conf / 100
		}
	}
	return capAt(score, 1)
}

// textMentions checks a term against the haystack, trying the term itself
// and its synonyms from the given table.
func (c *Calculator) textMentions(hay, term string, table SynonymTable) bool {
	t := normalize(term)
	if t == "" {
		return false
	}
	for _, candidate := range table.expand(t) {
		if strings.Contains(hay, normalize(candidate)) {
			return true
		}
	}
	return false
}

func (c *Calculator) budgetMatch(price int, profile domain.BuyerProfile) float64 {
	if price <= 0 {
		return 0.5
	}
	// Sub-threshold prices look like monthly rents, not sale prices.
	if price < c.tun.RentalPriceThreshold {
		return 0.3
	}
	min, max := profile.BudgetMin, profile.BudgetMax
	if max <= 0 {
		return 0.5
	}
	if price >= min && price <= max {
		return 1.0
	}

	rangeSize := max - min
	if rangeSize <= 0 {
		rangeSize = max
	}
	band := c.tun.BudgetTolerance * float64(rangeSize)
	if band <= 0 {
		return 0
	}

	var over float64
	if price > max {
		over = float64(price - max)
	} else {
		over = float64(min - price)
	}
	if over >= band {
		return 0
	}
	return 1 - over/band
}

func bedroomMatch(listingBeds, wantBeds int) float64 {
	if listingBeds <= 0 || wantBeds <= 0 {
		return 0.5
	}
	switch diff := abs(listingBeds - wantBeds); diff {
	case 0:
		return 1.0
	case 1:
		return 0.7
	case 2:
		return 0.4
	default:
		return 0.1
	}
}

func locationMatch(listing domain.Listing, areas []string) float64 {
	if len(areas) == 0 {
		return 0.7
	}
	loc := normalize(listing.City + " " + listing.Address + " " + listing.State)
	partial := false
	for _, area := range areas {
		a := normalize(area)
		if a == "" {
			continue
		}
		if strings.Contains(loc, a) {
			return 1.0
		}
		for _, word := range strings.Fields(a) {
			if len(word) > 3 && strings.Contains(loc, word) {
				partial = true
			}
		}
	}
	if partial {
		return 0.6
	}
	return 0.3
}

// listingQuality scores the richness of the listing itself: photo count,
// description length, feature list, and recency each contribute a capped
// fraction.
func listingQuality(l domain.Listing) float64 {
	score := capAt(float64(len(l.ImageURLs))/6, 1) * 0.3
	score += capAt(float64(len(l.Description))/400, 1) * 0.3
	score += capAt(float64(len(l.Features))/8, 1) * 0.2

	switch age := listingAge(l); {
	case l.ListedAt.IsZero():
		score += 0.1 // unknown recency is neutral
	case age <= 30*24*time.Hour:
		score += 0.2
	case age <= 90*24*time.Hour:
		score += 0.1
	}
	return capAt(score, 1)
}

func listingAge(l domain.Listing) time.Duration {
	if l.ListedAt.IsZero() {
		return 0
	}
	return time.Since(l.ListedAt)
}

func listingText(l domain.Listing) string {
	parts := make([]string, 0, 3+len(l.Features))
	parts = append(parts, l.Description, l.PropertyType)
	parts = append(parts, l.Features...)
	return normalize(strings.Join(parts, " "))
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func capAt(v, max float64) float64 {
	if v > max {
		return max
	}
	return v
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

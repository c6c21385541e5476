package scoring

import (
	"fmt"
	"math/rand"
	"strings"
	"sync"

	"github.com/homescout/match-engine/internal/domain"
)

// phrasePicker serves cosmetic phrasing variants. Guarded by a mutex because
// scoring may run across listings in parallel and rand.Rand is not safe for
// concurrent use.
type phrasePicker struct {
	mu  sync.Mutex
	rng *rand.Rand
}

func newPhrasePicker(rng *rand.Rand) *phrasePicker {
	return &phrasePicker{rng: rng}
}

func (p *phrasePicker) pick(variants []string) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return variants[p.rng.Intn(len(variants))]
}

var (
	budgetHitPhrases = []string{
		"sits comfortably within budget",
		"fits the budget",
		"is priced inside the budget range",
	}
	bedroomHitPhrases = []string{
		"has the %d bedrooms requested",
		"matches the %d-bedroom requirement",
	}
	featureHitPhrases = []string{
		"includes %s",
		"offers %s",
		"comes with %s",
	}
	areaHitPhrases = []string{
		"is located in a preferred area",
		"sits in one of the requested areas",
	}
	overBudgetPhrases = []string{
		"runs %s over budget",
		"is priced %s above the budget ceiling",
	}
	bedroomGapPhrases = []string{
		"is %d bedroom(s) short",
		"falls %d bedroom(s) below the target",
	}
	missingFeaturePhrases = []string{
		"lacks %s",
		"does not mention %s",
	}
	dealbreakerPhrases = []string{
		"has a flagged dealbreaker: %s",
		"raises a dealbreaker concern: %s",
	}
)

// reason builds the human-readable rationale for a scored listing: one or two
// confirmed matches, one or two gaps, and a verdict chosen by the same
// thresholds as the label. Phrasing varies cosmetically; the numbers backing
// it never do.
func (c *Calculator) reason(s domain.ScoredListing, profile domain.BuyerProfile) string {
	var hits, gaps []string

	if s.Breakdown.BudgetMatch >= 1.0 && profile.BudgetMax > 0 {
		hits = append(hits, c.phrases.pick(budgetHitPhrases))
	}
	if s.Breakdown.BedroomMatch >= 1.0 && profile.Bedrooms > 0 {
		hits = append(hits, fmt.Sprintf(c.phrases.pick(bedroomHitPhrases), profile.Bedrooms))
	}
	if len(s.MatchedFeatures) > 0 {
		hits = append(hits, fmt.Sprintf(c.phrases.pick(featureHitPhrases), joinUpTo(s.MatchedFeatures, 2)))
	}
	if s.Breakdown.LocationMatch >= 1.0 && len(profile.PreferredAreas) > 0 {
		hits = append(hits, c.phrases.pick(areaHitPhrases))
	}

	if over := s.Listing.Price - profile.BudgetMax; profile.BudgetMax > 0 && over > 0 {
		gaps = append(gaps, fmt.Sprintf(c.phrases.pick(overBudgetPhrases), formatMoney(over)))
	}
	if short := profile.Bedrooms - s.Listing.Bedrooms; profile.Bedrooms > 0 && s.Listing.Bedrooms > 0 && short > 0 {
		gaps = append(gaps, fmt.Sprintf(c.phrases.pick(bedroomGapPhrases), short))
	}
	if missing := missingMustHaves(profile.MustHaveFeatures, s.MatchedFeatures); len(missing) > 0 {
		gaps = append(gaps, fmt.Sprintf(c.phrases.pick(missingFeaturePhrases), joinUpTo(missing, 2)))
	}
	for _, flag := range s.DealbreakerFlags {
		gaps = append(gaps, fmt.Sprintf(c.phrases.pick(dealbreakerPhrases), flag))
		break // one is enough for the rationale
	}

	var b strings.Builder
	b.WriteString("This home ")
	switch {
	case len(hits) == 0:
		b.WriteString("shows no strong matches against the profile")
	default:
		b.WriteString(strings.Join(hits[:minInt(2, len(hits))], " and "))
	}
	if len(gaps) > 0 {
		b.WriteString(", but ")
		b.WriteString(strings.Join(gaps[:minInt(2, len(gaps))], " and "))
	}
	b.WriteString(". ")
	b.WriteString(verdict(s.Breakdown.FinalScore, len(gaps)))
	return b.String()
}

func verdict(score float64, gapCount int) string {
	switch {
	case score >= 85:
		return "A standout candidate worth an early showing."
	case score >= 70:
		return "A solid fit overall."
	case score >= 55 && gapCount <= 1:
		return "Worth a look if the shortlist runs thin."
	case score >= 40:
		return "A stretch for this buyer."
	default:
		return "Unlikely to be a fit."
	}
}

func missingMustHaves(mustHaves, matched []string) []string {
	got := make(map[string]struct{}, len(matched))
	for _, m := range matched {
		got[m] = struct{}{}
	}
	var out []string
	for _, f := range mustHaves {
		if _, ok := got[f]; !ok {
			out = append(out, f)
		}
	}
	return out
}

func joinUpTo(items []string, n int) string {
	if len(items) > n {
		items = items[:n]
	}
	return strings.Join(items, " and ")
}

func formatMoney(n int) string {
	if n >= 1000 && n%1000 == 0 {
		return fmt.Sprintf("$%dk", n/1000)
	}
	return fmt.Sprintf("$%d", n)
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

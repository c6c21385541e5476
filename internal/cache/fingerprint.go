package cache

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"

	"github.com/homescout/match-engine/internal/domain"
)

// Fingerprint hashes the profile's search-relevant fields plus the behavioral
// tags into a stable 32-hex-char key. Tags are reduced to "tag:confidence"
// pairs and sorted before hashing so their order never changes the result.
// Not security-sensitive; the key only namespaces cache rows.
func Fingerprint(p domain.BuyerProfile, tags []domain.ProfileTag) string {
	pairs := make([]string, len(tags))
	for i, t := range tags {
		pairs[i] = fmt.Sprintf("%s:%d", t.Tag, t.Confidence)
	}
	sort.Strings(pairs)

	var b strings.Builder
	fmt.Fprintf(&b, "budget=%d-%d|", p.BudgetMin, p.BudgetMax)
	fmt.Fprintf(&b, "type=%s|beds=%d|baths=%s|", p.HomeType, p.Bedrooms, p.Bathrooms)
	fmt.Fprintf(&b, "must=%s|", strings.Join(p.MustHaveFeatures, ","))
	fmt.Fprintf(&b, "deal=%s|", strings.Join(p.Dealbreakers, ","))
	fmt.Fprintf(&b, "areas=%s|", strings.Join(p.PreferredAreas, ","))
	fmt.Fprintf(&b, "flex=%d,%d,%d|", p.BudgetFlexibility, p.LocationFlexibility, p.TimingFlexibility)
	fmt.Fprintf(&b, "tags=%s", strings.Join(pairs, ";"))

	sum := md5.Sum([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}

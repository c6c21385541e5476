package domain

import "time"

// BuyerProfile is the search-relevant slice of a buyer's profile. It is owned
// by the agent-facing CRUD layer; the engine only reads it.
type BuyerProfile struct {
	ID                  string   `json:"id"`
	BudgetMin           int      `json:"budget_min"`
	BudgetMax           int      `json:"budget_max"`
	HomeType            string   `json:"home_type"`
	Bedrooms            int      `json:"bedrooms"`
	Bathrooms           string   `json:"bathrooms"` // may encode "2+"
	MustHaveFeatures    []string `json:"must_have_features"`
	Dealbreakers        []string `json:"dealbreakers"`
	PreferredAreas      []string `json:"preferred_areas"`
	BudgetFlexibility   int      `json:"budget_flexibility"`
	LocationFlexibility int      `json:"location_flexibility"`
	TimingFlexibility   int      `json:"timing_flexibility"`
}

// ProfileTag is a behavioral or preference tag attached to a profile.
type ProfileTag struct {
	Tag        string `json:"tag"`
	Category   string `json:"category"` // lifestyle, behavioral, preference
	Confidence int    `json:"confidence"`
	Source     string `json:"source"`
}

// Listing is one property as supplied by the listing source. Never mutated
// by the engine. Zero Bedrooms/Bathrooms means the count is unknown.
type Listing struct {
	MLSNumber    string    `json:"mls_number"`
	Price        int       `json:"price"`
	Bedrooms     int       `json:"bedrooms"`
	Bathrooms    float64   `json:"bathrooms"`
	PropertyType string    `json:"property_type"`
	Address      string    `json:"address"`
	City         string    `json:"city"`
	State        string    `json:"state"`
	SquareFeet   int       `json:"square_feet"`
	YearBuilt    int       `json:"year_built"`
	Description  string    `json:"description"`
	Features     []string  `json:"features"`
	ImageURLs    []string  `json:"image_urls"`
	ListedAt     time.Time `json:"listed_at"`
	Status       string    `json:"status"`
}

// HasImages reports whether the listing carries at least one photo.
func (l Listing) HasImages() bool { return len(l.ImageURLs) > 0 }

// ScoreBreakdown holds every weighted sub-score and adjustment behind a
// final score. Component scores are on a 0..1 scale, the rest on 0..100.
type ScoreBreakdown struct {
	FeatureMatch       float64 `json:"feature_match"`
	BudgetMatch        float64 `json:"budget_match"`
	BedroomMatch       float64 `json:"bedroom_match"`
	LocationMatch      float64 `json:"location_match"`
	VisualTagMatch     float64 `json:"visual_tag_match"`
	BehavioralTagMatch float64 `json:"behavioral_tag_match"`
	ListingQuality     float64 `json:"listing_quality"`
	WeightedTotal      float64 `json:"weighted_total"`
	DealbreakerPenalty float64 `json:"dealbreaker_penalty"`
	MissingDataPenalty float64 `json:"missing_data_penalty"`
	VisualBoost        float64 `json:"visual_boost"`
	FinalScore         float64 `json:"final_score"`
}

// ScoredListing is a listing with its match result for one profile.
// Ephemeral: recomputed on every scoring pass.
type ScoredListing struct {
	Listing          Listing        `json:"listing"`
	MatchScore       float64        `json:"match_score"` // FinalScore / 100
	Label            string         `json:"label"`
	MatchedFeatures  []string       `json:"matched_features"`
	DealbreakerFlags []string       `json:"dealbreaker_flags"`
	Reason           string         `json:"reason"`
	Breakdown        ScoreBreakdown `json:"score_breakdown"`
}

// ImageAnalysis is the per-image output of the visual-analysis service.
type ImageAnalysis struct {
	URL        string   `json:"url"`
	Tags       []string `json:"tags"`
	Flags      []string `json:"flags"`
	Confidence float64  `json:"confidence"`
}

// VisualAnalysis is the visual-analysis result for one listing.
type VisualAnalysis struct {
	ListingID string          `json:"listing_id"`
	Images    []ImageAnalysis `json:"images"`
}

// Tags returns all image tags flattened, duplicates removed, input order kept.
func (v VisualAnalysis) Tags() []string {
	return dedup(v.Images, func(i ImageAnalysis) []string { return i.Tags })
}

// Flags returns all image flags flattened, duplicates removed.
func (v VisualAnalysis) Flags() []string {
	return dedup(v.Images, func(i ImageAnalysis) []string { return i.Flags })
}

func dedup(images []ImageAnalysis, pick func(ImageAnalysis) []string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, img := range images {
		for _, s := range pick(img) {
			if _, ok := seen[s]; ok {
				continue
			}
			seen[s] = struct{}{}
			out = append(out, s)
		}
	}
	return out
}

// EnhancedScoredListing augments a ScoredListing with optional visual-analysis
// output. Enhanced is false when enhancement was skipped or failed; absent
// visual fields are never a negative signal.
type EnhancedScoredListing struct {
	ScoredListing
	Enhanced       bool     `json:"enhanced"`
	VisualTags     []string `json:"visual_tags,omitempty"`
	VisualFlags    []string `json:"visual_flags,omitempty"`
	VisualMatches  []string `json:"visual_matches,omitempty"`
	EnhancedReason string   `json:"enhanced_reason,omitempty"`
}

// Categorized is the bucketed output shape. TopPicks and OtherMatches are
// disjoint and drawn only from listings with images; image-less listings are
// surfaced in NoImage. Image-bearing listings scoring below the display bands
// land in LowMatches so no listing is ever dropped from the output.
type Categorized struct {
	TopPicks     []EnhancedScoredListing `json:"top_picks"`
	OtherMatches []EnhancedScoredListing `json:"other_matches"`
	LowMatches   []EnhancedScoredListing `json:"low_matches"`
	NoImage      []EnhancedScoredListing `json:"no_image"`
	Summary      []string                `json:"summary"`
}

// Len returns the total number of listings across all buckets.
func (c Categorized) Len() int {
	return len(c.TopPicks) + len(c.OtherMatches) + len(c.LowMatches) + len(c.NoImage)
}

// SearchCriteria is what the listing source is queried with.
type SearchCriteria struct {
	MinPrice     int    `json:"min_price"`
	MaxPrice     int    `json:"max_price"`
	Bedrooms     int    `json:"bedrooms"`
	PropertyType string `json:"property_type"`
	Location     string `json:"location"`
	Limit        int    `json:"limit"`
}

// CacheKey uniquely identifies one cached result row.
type CacheKey struct {
	ProfileID    string `json:"profile_id"`
	Fingerprint  string `json:"fingerprint"` // 32 hex chars
	SearchMethod string `json:"search_method"`
}

// CachedSearchResult is one persisted result bundle.
type CachedSearchResult struct {
	ProfileID       string                  `json:"profile_id"`
	Fingerprint     string                  `json:"fingerprint"`
	SearchMethod    string                  `json:"search_method"`
	TopPicks        []EnhancedScoredListing `json:"top_picks"`
	OtherMatches    []EnhancedScoredListing `json:"other_matches"`
	LowMatches      []EnhancedScoredListing `json:"low_matches"`
	NoImage         []EnhancedScoredListing `json:"no_image"`
	Summary         []string                `json:"summary"`
	CreatedAt       time.Time               `json:"created_at"`
	ExpiresAt       time.Time               `json:"expires_at"`
	LastAccessedAt  time.Time               `json:"last_accessed_at"`
	ExecutionTimeMs int64                   `json:"execution_time_ms"`
}

// Key returns the row's cache key.
func (r CachedSearchResult) Key() CacheKey {
	return CacheKey{ProfileID: r.ProfileID, Fingerprint: r.Fingerprint, SearchMethod: r.SearchMethod}
}

// Expired reports whether the row is stale at the given instant.
func (r CachedSearchResult) Expired(now time.Time) bool {
	return !r.ExpiresAt.After(now)
}

// Categorized reassembles the bucket shape from a cached row.
func (r CachedSearchResult) Categorized() Categorized {
	return Categorized{
		TopPicks:     r.TopPicks,
		OtherMatches: r.OtherMatches,
		LowMatches:   r.LowMatches,
		NoImage:      r.NoImage,
		Summary:      r.Summary,
	}
}

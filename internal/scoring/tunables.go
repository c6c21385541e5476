package scoring

import (
	"encoding/json"
	"fmt"
	"os"
)

// Weights defines the contribution of each component score, in points.
// The defaults sum to 100.
type Weights struct {
	Feature       float64 `json:"feature"`
	Budget        float64 `json:"budget"`
	Bedroom       float64 `json:"bedroom"`
	Location      float64 `json:"location"`
	VisualTag     float64 `json:"visual_tag"`
	BehavioralTag float64 `json:"behavioral_tag"`
	Quality       float64 `json:"quality"`
}

// Tunables groups every scoring constant that may vary per market.
// Defaults must be preserved for behavioral compatibility.
type Tunables struct {
	Weights Weights `json:"weights"`

	// BudgetTolerance is the width of the linear falloff band outside the
	// budget bounds, as a fraction of the budget range.
	BudgetTolerance float64 `json:"budget_tolerance"`
	// RentalPriceThreshold marks prices that look like monthly rents rather
	// than sale prices.
	RentalPriceThreshold int `json:"rental_price_threshold"`

	DealbreakerPenalty    float64 `json:"dealbreaker_penalty"`
	MissingDataPenalty    float64 `json:"missing_data_penalty"`
	MaxMissingDataPenalty float64 `json:"max_missing_data_penalty"`
	VisualBoost           float64 `json:"visual_boost"`
	VisualBoostMinMatches int     `json:"visual_boost_min_matches"`

	MinScore float64 `json:"min_score"`
	MaxScore float64 `json:"max_score"`
}

// DefaultTunables returns the baseline scoring constants.
func DefaultTunables() Tunables {
	return Tunables{
		Weights: Weights{
			Feature:       25,
			Budget:        20,
			Bedroom:       15,
			Location:      10,
			VisualTag:     10,
			BehavioralTag: 10,
			Quality:       10,
		},
		BudgetTolerance:       0.10,
		RentalPriceThreshold:  10000,
		DealbreakerPenalty:    30,
		MissingDataPenalty:    10,
		MaxMissingDataPenalty: 30,
		VisualBoost:           10,
		VisualBoostMinMatches: 3,
		MinScore:              10,
		MaxScore:              100,
	}
}

// LoadTunablesFromFile loads tunables from a JSON file, falling back to
// defaults on read errors.
func LoadTunablesFromFile(path string) (Tunables, error) {
	t := DefaultTunables()
	b, err := os.ReadFile(path)
	if err != nil {
		return t, fmt.Errorf("read tunables file: %w", err)
	}
	if err := json.Unmarshal(b, &t); err != nil {
		return t, fmt.Errorf("unmarshal tunables: %w", err)
	}
	return t, nil
}

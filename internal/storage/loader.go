package storage

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/homescout/match-engine/internal/domain"
)

// DecodeListings reads a JSON array of listings, dropping records that carry
// no MLS number since the listings table cannot key them.
func DecodeListings(r io.Reader) ([]domain.Listing, error) {
	var raw []domain.Listing
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode listings: %w", err)
	}

	listings := raw[:0]
	for _, l := range raw {
		if l.MLSNumber == "" {
			continue
		}
		listings = append(listings, l)
	}
	return listings, nil
}

// LoadListingsFromFile seeds listings from a JSON file, for local deployments
// and tests.
func LoadListingsFromFile(path string) ([]domain.Listing, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open listings file: %w", err)
	}
	defer f.Close()

	listings, err := DecodeListings(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return listings, nil
}

package storage

import (
	"strings"
	"testing"
)

func TestDecodeListings(t *testing.T) {
	in := `[
		{"mls_number": "L1", "price": 420000, "bedrooms": 3, "features": ["garage"]},
		{"price": 100000},
		{"mls_number": "L2", "price": 480000}
	]`
	got, err := DecodeListings(strings.NewReader(in))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("listings = %d, want 2 (keyless record dropped)", len(got))
	}
	if got[0].MLSNumber != "L1" || got[1].MLSNumber != "L2" {
		t.Fatalf("order = %s,%s want L1,L2", got[0].MLSNumber, got[1].MLSNumber)
	}
	if len(got[0].Features) != 1 || got[0].Features[0] != "garage" {
		t.Fatalf("features = %v", got[0].Features)
	}
}

func TestDecodeListingsRejectsMalformedJSON(t *testing.T) {
	if _, err := DecodeListings(strings.NewReader(`{not json`)); err == nil {
		t.Fatal("expected error for malformed input")
	}
}

func TestLoadListingsFromMissingFile(t *testing.T) {
	if _, err := LoadListingsFromFile("does/not/exist.json"); err == nil {
		t.Fatal("expected error for missing file")
	}
}

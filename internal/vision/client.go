// Package vision is the HTTP client for the visual-analysis service. It
// implements ports.VisualAnalyzer; deployments without the service run the
// engine in basic mode instead.
package vision

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/homescout/match-engine/internal/domain"
	"github.com/homescout/match-engine/internal/ports"
)

var _ ports.VisualAnalyzer = (*Client)(nil)

const defaultTimeout = 30 * time.Second

// Client calls the analysis endpoint once per listing with its photo URLs.
type Client struct {
	endpoint string
	apiKey   string
	http     *http.Client
}

// NewClient builds a client for the given endpoint. Timeout zero means the
// default of 30s.
func NewClient(endpoint, apiKey string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		endpoint: endpoint,
		apiKey:   apiKey,
		http:     &http.Client{Timeout: timeout},
	}
}

type analyzeRequest struct {
	ListingID string   `json:"listing_id"`
	ImageURLs []string `json:"image_urls"`
}

// AnalyzeImages submits the listing's photos and returns per-image tags.
func (c *Client) AnalyzeImages(ctx context.Context, listingID string, imageURLs []string) (domain.VisualAnalysis, error) {
	body, err := json.Marshal(analyzeRequest{ListingID: listingID, ImageURLs: imageURLs})
	if err != nil {
		return domain.VisualAnalysis{}, fmt.Errorf("vision: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return domain.VisualAnalysis{}, fmt.Errorf("vision: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return domain.VisualAnalysis{}, fmt.Errorf("vision: analyze %s: %w", listingID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return domain.VisualAnalysis{}, fmt.Errorf("vision: analyze %s: unexpected status %d", listingID, resp.StatusCode)
	}

	var analysis domain.VisualAnalysis
	if err := json.NewDecoder(resp.Body).Decode(&analysis); err != nil {
		return domain.VisualAnalysis{}, fmt.Errorf("vision: decode response: %w", err)
	}
	if analysis.ListingID == "" {
		analysis.ListingID = listingID
	}
	return analysis, nil
}

package httpapi

import (
	"context"
	"encoding/json"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/homescout/match-engine/internal/cache"
	"github.com/homescout/match-engine/internal/domain"
	"github.com/homescout/match-engine/internal/rank"
	"github.com/homescout/match-engine/internal/scoring"
	"github.com/homescout/match-engine/internal/storage"
)

type stubSource struct {
	listings []domain.Listing
	err      error
}

func (s *stubSource) Search(ctx context.Context, c domain.SearchCriteria) ([]domain.Listing, error) {
	return s.listings, s.err
}

type memStore struct {
	rows map[domain.CacheKey]domain.CachedSearchResult
}

func newMemStore() *memStore {
	return &memStore{rows: make(map[domain.CacheKey]domain.CachedSearchResult)}
}

func (m *memStore) Get(ctx context.Context, key domain.CacheKey) (domain.CachedSearchResult, error) {
	row, ok := m.rows[key]
	if !ok {
		return domain.CachedSearchResult{}, storage.ErrNotFound
	}
	return row, nil
}

func (m *memStore) Put(ctx context.Context, row domain.CachedSearchResult) error {
	m.rows[row.Key()] = row
	return nil
}

func (m *memStore) Touch(ctx context.Context, key domain.CacheKey, at time.Time) error { return nil }

func (m *memStore) DeleteByProfile(ctx context.Context, profileID string) (int64, error) {
	var n int64
	for k := range m.rows {
		if k.ProfileID == profileID {
			delete(m.rows, k)
			n++
		}
	}
	return n, nil
}

func (m *memStore) DeleteExpired(ctx context.Context, now time.Time) (int64, error) { return 0, nil }

func newTestServer(source *stubSource) *Server {
	calc := scoring.New(scoring.DefaultTunables(), scoring.DefaultLexicon(),
		scoring.WithRand(rand.New(rand.NewSource(1))))
	manager := cache.NewManager(cache.Deps{
		Source:      source,
		Store:       newMemStore(),
		Calculator:  calc,
		Categorizer: rank.New(),
	})
	return NewServer(manager, nil)
}

func matchBody(t *testing.T) string {
	t.Helper()
	req := MatchRequest{
		Profile: domain.BuyerProfile{
			ID:        "buyer-1",
			BudgetMin: 400000,
			BudgetMax: 500000,
			Bedrooms:  3,
		},
		SearchMethod: "basic",
	}
	b, err := json.Marshal(req)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	return string(b)
}

func TestHealth(t *testing.T) {
	srv := newTestServer(&stubSource{})
	rec := httptest.NewRecorder()
	srv.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"ok"`) {
		t.Fatalf("body = %s", rec.Body.String())
	}
}

func TestMatchReturnsResult(t *testing.T) {
	source := &stubSource{listings: []domain.Listing{
		{MLSNumber: "L1", Price: 450000, Bedrooms: 3, Bathrooms: 2, City: "Portland", ImageURLs: []string{"1.jpg"}},
	}}
	srv := newTestServer(source)

	rec := httptest.NewRecorder()
	srv.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/match", strings.NewReader(matchBody(t))))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var result cache.Result
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if result.FromCache {
		t.Fatal("first request served from cache")
	}
	if result.Fingerprint == "" {
		t.Fatal("response missing fingerprint")
	}
	if result.Results.Len() != 1 {
		t.Fatalf("results = %d, want 1", result.Results.Len())
	}

	// Same request again hits the cache.
	rec = httptest.NewRecorder()
	srv.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/match", strings.NewReader(matchBody(t))))
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !result.FromCache || result.CacheStatus != "hit" {
		t.Fatalf("second request = %+v, want cache hit", result)
	}
}

func TestMatchRejectsBadRequests(t *testing.T) {
	srv := newTestServer(&stubSource{})

	rec := httptest.NewRecorder()
	srv.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/match", strings.NewReader("{not json")))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("invalid json status = %d, want 400", rec.Code)
	}

	rec = httptest.NewRecorder()
	srv.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/match", strings.NewReader(`{"profile":{}}`)))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("missing profile id status = %d, want 400", rec.Code)
	}

	rec = httptest.NewRecorder()
	srv.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/match", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("GET status = %d, want 405", rec.Code)
	}
}

func TestMatchSourceFailureIsBadGateway(t *testing.T) {
	srv := newTestServer(&stubSource{err: context.DeadlineExceeded})

	rec := httptest.NewRecorder()
	srv.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/match", strings.NewReader(matchBody(t))))
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", rec.Code)
	}
}

func TestInvalidateCache(t *testing.T) {
	source := &stubSource{listings: []domain.Listing{
		{MLSNumber: "L1", Price: 450000, Bedrooms: 3, City: "Portland", ImageURLs: []string{"1.jpg"}},
	}}
	srv := newTestServer(source)

	rec := httptest.NewRecorder()
	srv.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/match", strings.NewReader(matchBody(t))))
	if rec.Code != http.StatusOK {
		t.Fatalf("warm status = %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	srv.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/profiles/buyer-1/cache", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("invalidate status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var resp map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp["rows"].(float64) != 1 {
		t.Fatalf("rows = %v, want 1", resp["rows"])
	}

	// Next match is a miss again.
	rec = httptest.NewRecorder()
	srv.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/match", strings.NewReader(matchBody(t))))
	var result cache.Result
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if result.FromCache {
		t.Fatal("match after invalidation served from cache")
	}
}

func TestInvalidateRejectsBadPaths(t *testing.T) {
	srv := newTestServer(&stubSource{})

	rec := httptest.NewRecorder()
	srv.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/profiles/buyer-1", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("no suffix status = %d, want 404", rec.Code)
	}

	rec = httptest.NewRecorder()
	srv.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/profiles/buyer-1/cache", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("GET status = %d, want 405", rec.Code)
	}
}

package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/homescout/match-engine/internal/cache"
	"github.com/homescout/match-engine/internal/domain"
)

type Server struct {
	Manager *cache.Manager
	Logger  *slog.Logger
}

func NewServer(manager *cache.Manager, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{Manager: manager, Logger: logger}
}

func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/match", s.handleMatch)
	mux.HandleFunc("/profiles/", s.handleProfiles)
	return mux
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type MatchRequest struct {
	Profile      domain.BuyerProfile `json:"profile"`
	Tags         []domain.ProfileTag `json:"tags"`
	SearchMethod string              `json:"search_method"`
	ForceRefresh bool                `json:"force_refresh"`
}

func (s *Server) handleMatch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req MatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_json"})
		return
	}
	if req.Profile.ID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing_profile_id"})
		return
	}

	result, err := s.Manager.GetResults(r.Context(), req.Profile, req.Tags, req.SearchMethod, req.ForceRefresh)
	if err != nil {
		if errors.Is(err, r.Context().Err()) {
			return
		}
		s.Logger.Error("match request failed", "profile", req.Profile.ID, "err", err)
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": "listing_source_unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// handleProfiles serves DELETE /profiles/{id}/cache.
func (s *Server) handleProfiles(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/profiles/")
	id, ok := strings.CutSuffix(rest, "/cache")
	if !ok || id == "" || strings.Contains(id, "/") {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not_found"})
		return
	}
	if r.Method != http.MethodDelete {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	n, err := s.Manager.Invalidate(r.Context(), id)
	if err != nil {
		s.Logger.Error("cache invalidation failed", "profile", id, "err", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "invalidation_failed"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "invalidated", "rows": n})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

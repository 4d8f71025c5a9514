// Package handlers provides HTTP handlers for fund search and the watchlist.
package handlers

import (
	"encoding/json"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/aristath/fundval/internal/modules/funds"
)

const (
	defaultSearchLimit = 20
	maxSearchLimit     = 100
)

var fundCodePattern = regexp.MustCompile(`^\d{6}$`)

// Handler handles fund HTTP requests
type Handler struct {
	service *funds.Service
	log     zerolog.Logger
}

// NewHandler creates a new funds handler
func NewHandler(service *funds.Service, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		log:     log.With().Str("handler", "funds").Logger(),
	}
}

// HandleSearch handles GET /api/funds/search?q=
func (h *Handler) HandleSearch(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		h.writeError(w, http.StatusBadRequest, "q parameter is required")
		return
	}

	limit := defaultSearchLimit
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil && parsed > 0 && parsed <= maxSearchLimit {
			limit = parsed
		}
	}

	results, err := h.service.Search(query, limit)
	if err != nil {
		h.log.Error().Err(err).Str("query", query).Msg("Fund search failed")
		h.writeError(w, http.StatusInternalServerError, "search failed")
		return
	}

	h.writeData(w, http.StatusOK, map[string]interface{}{
		"funds": results,
		"count": len(results),
	})
}

// HandleGetWatchlist handles GET /api/watchlist
func (h *Handler) HandleGetWatchlist(w http.ResponseWriter, r *http.Request) {
	entries, err := h.service.Watchlist().List()
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list watchlist")
		h.writeError(w, http.StatusInternalServerError, "failed to list watchlist")
		return
	}

	h.writeData(w, http.StatusOK, map[string]interface{}{
		"funds": entries,
		"count": len(entries),
	})
}

// WatchlistRequest is the body of POST /api/watchlist.
type WatchlistRequest struct {
	FundCode string `json:"fund_code"`
}

// HandleAddToWatchlist handles POST /api/watchlist
func (h *Handler) HandleAddToWatchlist(w http.ResponseWriter, r *http.Request) {
	var req WatchlistRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	code := strings.TrimSpace(req.FundCode)
	if !fundCodePattern.MatchString(code) {
		h.writeError(w, http.StatusBadRequest, "invalid fund code")
		return
	}

	if err := h.service.Watchlist().Add(code); err != nil {
		h.log.Error().Err(err).Str("fund_code", code).Msg("Failed to add to watchlist")
		h.writeError(w, http.StatusInternalServerError, "failed to add to watchlist")
		return
	}

	h.writeData(w, http.StatusCreated, map[string]interface{}{"fund_code": code})
}

// HandleRemoveFromWatchlist handles DELETE /api/watchlist/{code}
func (h *Handler) HandleRemoveFromWatchlist(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	if !fundCodePattern.MatchString(code) {
		h.writeError(w, http.StatusBadRequest, "invalid fund code")
		return
	}

	removed, err := h.service.Watchlist().Remove(code)
	if err != nil {
		h.log.Error().Err(err).Str("fund_code", code).Msg("Failed to remove from watchlist")
		h.writeError(w, http.StatusInternalServerError, "failed to remove from watchlist")
		return
	}
	if !removed {
		h.writeError(w, http.StatusNotFound, "fund not on watchlist")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) writeData(w http.ResponseWriter, status int, data interface{}) {
	h.writeJSON(w, status, map[string]interface{}{
		"data": data,
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	})
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}

// writeJSON writes a JSON response
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

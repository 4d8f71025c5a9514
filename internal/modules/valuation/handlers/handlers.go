// Package handlers provides HTTP handlers for fund valuation, history and
// reconciliation.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/aristath/fundval/internal/domain"
	"github.com/aristath/fundval/internal/modules/archive"
	"github.com/aristath/fundval/internal/modules/relationships"
	"github.com/aristath/fundval/internal/modules/valuation"
)

const (
	defaultHistoryLimit = 30
	maxHistoryLimit     = 365
	maxBatchCodes       = 200
)

// Valuer is the valuation service surface used by the handlers.
type Valuer interface {
	GetValuation(ctx context.Context, fundCode string) (*domain.ValuationResult, error)
	GetBatchValuation(ctx context.Context, fundCodes []string, summaryOnly bool) ([]domain.ValuationResult, error)
}

// HistoryReconciler reads archived days and grades them manually.
type HistoryReconciler interface {
	History(fundCode string, limit int) ([]archive.Record, error)
	Reconcile(tradeDate, fundCode string, official float64) (*archive.Reconciliation, error)
}

// RelationshipReader returns the stored relationship of a fund, nil when none.
type RelationshipReader interface {
	Get(subCode string) (*relationships.Relationship, error)
}

// RefreshSubmitter queues holdings refreshes.
type RefreshSubmitter interface {
	Submit(fundCode string) (jobID string, queued bool, err error)
}

// Handler handles valuation HTTP requests
type Handler struct {
	valuer        Valuer
	history       HistoryReconciler
	relationships RelationshipReader
	refresher     RefreshSubmitter
	log           zerolog.Logger
}

// NewHandler creates a new valuation handler
func NewHandler(
	valuer Valuer,
	history HistoryReconciler,
	relationships RelationshipReader,
	refresher RefreshSubmitter,
	log zerolog.Logger,
) *Handler {
	return &Handler{
		valuer:        valuer,
		history:       history,
		relationships: relationships,
		refresher:     refresher,
		log:           log.With().Str("handler", "valuation").Logger(),
	}
}

// HandleGetValuation handles GET /api/funds/{code}/valuation
func (h *Handler) HandleGetValuation(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")

	result, err := h.valuer.GetValuation(r.Context(), code)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	h.writeData(w, http.StatusOK, result)
}

// HandleGetBatchValuation handles GET /api/funds/valuations?codes=a,b,c&mode=summary
func (h *Handler) HandleGetBatchValuation(w http.ResponseWriter, r *http.Request) {
	codes := ParseCodes(r.URL.Query().Get("codes"))
	if len(codes) == 0 {
		h.writeError(w, http.StatusBadRequest, "codes parameter is required")
		return
	}
	if len(codes) > maxBatchCodes {
		h.writeError(w, http.StatusBadRequest, "too many codes, at most "+strconv.Itoa(maxBatchCodes)+" per request")
		return
	}
	summaryOnly := r.URL.Query().Get("mode") == "summary"

	results, err := h.valuer.GetBatchValuation(r.Context(), codes, summaryOnly)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	h.writeData(w, http.StatusOK, map[string]interface{}{
		"valuations": results,
		"count":      len(results),
	})
}

// HandleGetHistory handles GET /api/funds/{code}/history?limit=30
func (h *Handler) HandleGetHistory(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	if !valuation.ValidFundCode(code) {
		h.writeError(w, http.StatusBadRequest, "invalid fund code")
		return
	}

	limit := defaultHistoryLimit
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}

	records, err := h.history.History(code, limit)
	if err != nil {
		h.log.Error().Err(err).Str("fund_code", code).Msg("Failed to load valuation history")
		h.writeError(w, http.StatusInternalServerError, "failed to load history")
		return
	}

	h.writeData(w, http.StatusOK, map[string]interface{}{
		"fund_code": code,
		"history":   records,
		"count":     len(records),
	})
}

// HandleGetRelationship handles GET /api/funds/{code}/relationship
func (h *Handler) HandleGetRelationship(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	if !valuation.ValidFundCode(code) {
		h.writeError(w, http.StatusBadRequest, "invalid fund code")
		return
	}

	rel, err := h.relationships.Get(code)
	if err != nil {
		h.log.Error().Err(err).Str("fund_code", code).Msg("Failed to load relationship")
		h.writeError(w, http.StatusInternalServerError, "failed to load relationship")
		return
	}
	if rel == nil {
		h.writeError(w, http.StatusNotFound, "no relationship for fund")
		return
	}

	h.writeData(w, http.StatusOK, rel)
}

// HandleRefreshHoldings handles POST /api/funds/{code}/holdings/refresh
func (h *Handler) HandleRefreshHoldings(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	if !valuation.ValidFundCode(code) {
		h.writeError(w, http.StatusBadRequest, "invalid fund code")
		return
	}

	jobID, queued, err := h.refresher.Submit(code)
	if err != nil {
		h.log.Warn().Err(err).Str("fund_code", code).Msg("Failed to queue holdings refresh")
		h.writeError(w, http.StatusServiceUnavailable, "refresh queue unavailable")
		return
	}

	h.writeData(w, http.StatusAccepted, map[string]interface{}{
		"fund_code": code,
		"queued":    queued,
		"job_id":    jobID,
	})
}

// OfficialRequest is the body of a manual reconciliation.
type OfficialRequest struct {
	OfficialGrowth *float64 `json:"official_growth"`
}

// HandleReconcile handles POST /api/archive/{date}/{code}/official
func (h *Handler) HandleReconcile(w http.ResponseWriter, r *http.Request) {
	date := chi.URLParam(r, "date")
	code := chi.URLParam(r, "code")

	if _, err := time.Parse(archive.DateLayout, date); err != nil {
		h.writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
		return
	}
	if !valuation.ValidFundCode(code) {
		h.writeError(w, http.StatusBadRequest, "invalid fund code")
		return
	}

	var req OfficialRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.OfficialGrowth == nil {
		h.writeError(w, http.StatusBadRequest, "official_growth is required")
		return
	}

	rec, err := h.history.Reconcile(date, code, *req.OfficialGrowth)
	if err != nil {
		if errors.Is(err, archive.ErrNotArchived) {
			h.writeError(w, http.StatusNotFound, err.Error())
			return
		}
		h.log.Error().Err(err).Str("fund_code", code).Str("trade_date", date).Msg("Manual reconcile failed")
		h.writeError(w, http.StatusInternalServerError, "failed to reconcile")
		return
	}

	h.writeData(w, http.StatusOK, rec)
}

// ParseCodes splits a comma separated code list, trimming blanks.
func ParseCodes(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	codes := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			codes = append(codes, p)
		}
	}
	return codes
}

func (h *Handler) writeServiceError(w http.ResponseWriter, err error) {
	if errors.Is(err, valuation.ErrInvalidFundCode) {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	h.log.Error().Err(err).Msg("Valuation failed")
	h.writeError(w, http.StatusInternalServerError, "valuation failed")
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

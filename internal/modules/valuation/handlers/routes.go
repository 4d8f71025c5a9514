package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all valuation routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	// Valuation
	r.Get("/funds/valuations", h.HandleGetBatchValuation)
	r.Get("/funds/{code}/valuation", h.HandleGetValuation)

	// Archive and relationships
	r.Get("/funds/{code}/history", h.HandleGetHistory)
	r.Get("/funds/{code}/relationship", h.HandleGetRelationship)
	r.Post("/funds/{code}/holdings/refresh", h.HandleRefreshHoldings)
	r.Post("/archive/{date}/{code}/official", h.HandleReconcile)
}

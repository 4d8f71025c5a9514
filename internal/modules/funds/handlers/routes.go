package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers fund search and watchlist routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/funds/search", h.HandleSearch)

	r.Route("/watchlist", func(r chi.Router) {
		r.Get("/", h.HandleGetWatchlist)
		r.Post("/", h.HandleAddToWatchlist)
		r.Delete("/{code}", h.HandleRemoveFromWatchlist)
	})
}

package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all trading routes.
// The statistics route is registered before {id} so it is not captured
// as a trade id.
func (h *TradingHandlers) RegisterRoutes(r chi.Router) {
	r.Route("/trades", func(r chi.Router) {
		r.Post("/", h.HandleExecuteTrade)
		r.Get("/", h.HandleListTrades)
		r.Get("/statistics/{userId}", h.HandleGetStatistics)
		r.Get("/{id}", h.HandleGetTrade)
	})
}

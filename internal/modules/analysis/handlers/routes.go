package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all analysis routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/analysis", func(r chi.Router) {
		r.Post("/correlation", h.HandleCorrelation)
		r.Post("/frontier", h.HandleFrontier)
		r.Post("/hrp", h.HandleHRP)
		r.Post("/black-litterman", h.HandleBlackLitterman)
		r.Post("/black-litterman/analyze", h.HandleAnalyzeWeights)
	})
}

// Package handlers provides HTTP handlers for risk metrics operations.
package handlers

import (
	"net/http"

	"github.com/aristath/sentinel-quant/internal/httpapi"
	"github.com/aristath/sentinel-quant/internal/modules/risk"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// Handler handles risk metrics HTTP requests
type Handler struct {
	log zerolog.Logger
}

// NewHandler creates a new risk metrics handler
func NewHandler(log zerolog.Logger) *Handler {
	return &Handler{
		log: log.With().Str("handler", "risk").Logger(),
	}
}

// RegisterRoutes registers all risk metrics routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/risk", func(r chi.Router) {
		r.Post("/metrics", h.HandleMetrics)
	})
}

// HandleMetrics handles POST /api/risk/metrics
func (h *Handler) HandleMetrics(w http.ResponseWriter, r *http.Request) {
	var in risk.SeriesInput
	if err := httpapi.Decode(r, &in); err != nil {
		httpapi.WriteError(w, err, h.log)
		return
	}
	if err := httpapi.Validate(in); err != nil {
		httpapi.WriteError(w, err, h.log)
		return
	}

	summary, err := risk.Summarize(in)
	if err != nil {
		httpapi.WriteError(w, err, h.log)
		return
	}
	httpapi.WriteData(w, http.StatusOK, summary, h.log)
}

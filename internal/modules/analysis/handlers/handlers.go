// Package handlers provides HTTP handlers for portfolio analysis operations.
package handlers

import (
	"net/http"

	"github.com/aristath/sentinel-quant/internal/domain"
	"github.com/aristath/sentinel-quant/internal/httpapi"
	"github.com/aristath/sentinel-quant/internal/modules/analysis"
	"github.com/aristath/sentinel-quant/internal/modules/optimization"
	"github.com/rs/zerolog"
)

// Handler handles analysis HTTP requests
type Handler struct {
	service *analysis.Service
	log     zerolog.Logger
}

// NewHandler creates a new analysis handler
func NewHandler(service *analysis.Service, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		log:     log.With().Str("handler", "analysis").Logger(),
	}
}

// universeBody is the part every analysis request shares
type universeBody struct {
	Tickers   []string     `json:"tickers"`
	StartDate httpapi.Date `json:"start_date"`
	EndDate   httpapi.Date `json:"end_date"`
}

func (b universeBody) request() analysis.Request {
	return analysis.Request{
		Tickers:   b.Tickers,
		StartDate: b.StartDate.Time,
		EndDate:   b.EndDate.Time,
	}
}

type correlationBody struct {
	universeBody
	Threshold float64 `json:"threshold"`
}

type frontierBody struct {
	universeBody
	RiskTolerance float64 `json:"risk_tolerance"`
	Seed          uint64  `json:"seed"`
}

type blackLittermanBody struct {
	universeBody
	Views         []domain.InvestorView   `json:"views"`
	MarketWeights domain.PortfolioWeights `json:"market_weights"`
}

type weightsBody struct {
	universeBody
	Weights domain.PortfolioWeights `json:"weights"`
}

type hrpBody struct {
	universeBody
	Ordering    optimization.HRPOrdering `json:"ordering"`
	ApplyRegime bool                     `json:"apply_regime"`
}

// decode reads the body into dst and validates the service request built from it
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst interface{}, build func() interface{}) bool {
	if err := httpapi.Decode(r, dst); err != nil {
		httpapi.WriteError(w, err, h.log)
		return false
	}
	if err := httpapi.Validate(build()); err != nil {
		httpapi.WriteError(w, err, h.log)
		return false
	}
	return true
}

// HandleCorrelation handles POST /api/analysis/correlation
func (h *Handler) HandleCorrelation(w http.ResponseWriter, r *http.Request) {
	var body correlationBody
	if !h.decode(w, r, &body, func() interface{} { return body.request() }) {
		return
	}

	report, err := h.service.Correlation(r.Context(), body.request(), body.Threshold)
	if err != nil {
		httpapi.WriteError(w, err, h.log)
		return
	}
	httpapi.WriteData(w, http.StatusOK, report, h.log)
}

// HandleFrontier handles POST /api/analysis/frontier
func (h *Handler) HandleFrontier(w http.ResponseWriter, r *http.Request) {
	var body frontierBody
	req := func() analysis.FrontierRequest {
		return analysis.FrontierRequest{Request: body.request(), RiskTolerance: body.RiskTolerance, Seed: body.Seed}
	}
	if !h.decode(w, r, &body, func() interface{} { return req() }) {
		return
	}

	report, err := h.service.Frontier(r.Context(), req())
	if err != nil {
		httpapi.WriteError(w, err, h.log)
		return
	}
	httpapi.WriteData(w, http.StatusOK, report, h.log)
}

// HandleBlackLitterman handles POST /api/analysis/black-litterman
func (h *Handler) HandleBlackLitterman(w http.ResponseWriter, r *http.Request) {
	var body blackLittermanBody
	req := func() analysis.BlackLittermanRequest {
		return analysis.BlackLittermanRequest{Request: body.request(), Views: body.Views, MarketWeights: body.MarketWeights}
	}
	if !h.decode(w, r, &body, func() interface{} { return req() }) {
		return
	}

	report, err := h.service.BlackLitterman(r.Context(), req())
	if err != nil {
		httpapi.WriteError(w, err, h.log)
		return
	}
	httpapi.WriteData(w, http.StatusOK, report, h.log)
}

// HandleAnalyzeWeights handles POST /api/analysis/black-litterman/analyze
func (h *Handler) HandleAnalyzeWeights(w http.ResponseWriter, r *http.Request) {
	var body weightsBody
	req := func() analysis.WeightsRequest {
		return analysis.WeightsRequest{Request: body.request(), Weights: body.Weights}
	}
	if !h.decode(w, r, &body, func() interface{} { return req() }) {
		return
	}

	report, err := h.service.AnalyzeWeights(r.Context(), req())
	if err != nil {
		httpapi.WriteError(w, err, h.log)
		return
	}
	httpapi.WriteData(w, http.StatusOK, report, h.log)
}

// HandleHRP handles POST /api/analysis/hrp
func (h *Handler) HandleHRP(w http.ResponseWriter, r *http.Request) {
	var body hrpBody
	req := func() analysis.HRPRequest {
		return analysis.HRPRequest{Request: body.request(), Ordering: body.Ordering, ApplyRegime: body.ApplyRegime}
	}
	if !h.decode(w, r, &body, func() interface{} { return req() }) {
		return
	}

	report, err := h.service.HRP(r.Context(), req())
	if err != nil {
		httpapi.WriteError(w, err, h.log)
		return
	}
	httpapi.WriteData(w, http.StatusOK, report, h.log)
}

// Package handlers provides HTTP handlers for backtest runs.
package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/aristath/sentinel-quant/internal/domain"
	"github.com/aristath/sentinel-quant/internal/httpapi"
	"github.com/aristath/sentinel-quant/internal/modules/backtest"
	"github.com/aristath/sentinel-quant/internal/modules/optimization"
	"github.com/aristath/sentinel-quant/internal/modules/taxlots"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"nhooyr.io/websocket"
)

const (
	defaultListLimit = 50
	maxBatchRuns     = 16
	xlsxContentType  = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// Defaults fills fields a request left zero, typically from the engine defaults file
type Defaults func(backtest.Config) backtest.Config

// Handler handles backtest HTTP requests
type Handler struct {
	service  *backtest.Service
	defaults Defaults
	log      zerolog.Logger
}

// NewHandler creates a new backtest handler. defaults may be nil.
func NewHandler(service *backtest.Service, defaults Defaults, log zerolog.Logger) *Handler {
	return &Handler{
		service:  service,
		defaults: defaults,
		log:      log.With().Str("handler", "backtest").Logger(),
	}
}

// configBody is the JSON form of backtest.Config
type configBody struct {
	Tickers           []string                    `json:"tickers"`
	StartDate         httpapi.Date                `json:"start_date"`
	EndDate           httpapi.Date                `json:"end_date"`
	InitialCapital    float64                     `json:"initial_capital"`
	Rebalance         backtest.RebalanceFrequency `json:"rebalance_frequency"`
	TaxRates          *taxlots.TaxRates           `json:"tax_rates"`
	RiskFreeRate      *float64                    `json:"risk_free_rate"`
	Benchmark         string                      `json:"benchmark"`
	HRPOrdering       optimization.HRPOrdering    `json:"hrp_ordering"`
	RegimeLookback    int                         `json:"regime_lookback"`
	CorrelationWindow int                         `json:"correlation_window"`
	WarmupDays        int                         `json:"warmup_days"`
	RollingWindow     int                         `json:"rolling_window"`
}

func (h *Handler) config(b configBody) (backtest.Config, error) {
	cfg := backtest.Config{
		Tickers:           b.Tickers,
		StartDate:         b.StartDate.Time,
		EndDate:           b.EndDate.Time,
		InitialCapital:    b.InitialCapital,
		Rebalance:         b.Rebalance,
		TaxRates:          b.TaxRates,
		RiskFreeRate:      b.RiskFreeRate,
		Benchmark:         b.Benchmark,
		HRP:               optimization.HRPOptions{Ordering: b.HRPOrdering},
		RegimeLookback:    b.RegimeLookback,
		CorrelationWindow: b.CorrelationWindow,
		WarmupDays:        b.WarmupDays,
		RollingWindow:     b.RollingWindow,
	}
	if b.HRPOrdering != "" && !b.HRPOrdering.Valid() {
		return cfg, fmt.Errorf("%w: unknown HRP ordering %q", domain.ErrConfiguration, b.HRPOrdering)
	}
	if h.defaults != nil {
		cfg = h.defaults(cfg)
	}
	if err := httpapi.Validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// HandleRun handles POST /api/backtests
func (h *Handler) HandleRun(w http.ResponseWriter, r *http.Request) {
	var body configBody
	if err := httpapi.Decode(r, &body); err != nil {
		httpapi.WriteError(w, err, h.log)
		return
	}
	cfg, err := h.config(body)
	if err != nil {
		httpapi.WriteError(w, err, h.log)
		return
	}

	result, err := h.service.Run(r.Context(), cfg, nil)
	if err != nil {
		httpapi.WriteError(w, err, h.log)
		return
	}
	httpapi.WriteData(w, http.StatusCreated, result, h.log)
}

type batchBody struct {
	Runs        []configBody `json:"runs"`
	Concurrency int          `json:"concurrency"`
}

// HandleRunBatch handles POST /api/backtests/batch
func (h *Handler) HandleRunBatch(w http.ResponseWriter, r *http.Request) {
	var body batchBody
	if err := httpapi.Decode(r, &body); err != nil {
		httpapi.WriteError(w, err, h.log)
		return
	}
	if len(body.Runs) > maxBatchRuns {
		httpapi.WriteError(w, fmt.Errorf("%w: at most %d runs per batch", domain.ErrConfiguration, maxBatchRuns), h.log)
		return
	}

	cfgs := make([]backtest.Config, len(body.Runs))
	for i, run := range body.Runs {
		cfg, err := h.config(run)
		if err != nil {
			httpapi.WriteError(w, fmt.Errorf("run %d: %w", i, err), h.log)
			return
		}
		cfgs[i] = cfg
	}

	items, err := h.service.RunBatch(r.Context(), cfgs, body.Concurrency)
	if err != nil {
		httpapi.WriteError(w, err, h.log)
		return
	}
	httpapi.WriteData(w, http.StatusOK, items, h.log)
}

// HandleList handles GET /api/backtests
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	limit := defaultListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			httpapi.WriteError(w, fmt.Errorf("%w: invalid limit %q", domain.ErrConfiguration, raw), h.log)
			return
		}
		limit = n
	}

	runs, err := h.service.List(r.Context(), limit)
	if err != nil {
		httpapi.WriteError(w, err, h.log)
		return
	}
	httpapi.WriteData(w, http.StatusOK, runs, h.log)
}

// HandleGet handles GET /api/backtests/{id}
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httpapi.WriteError(w, err, h.log)
		return
	}
	httpapi.WriteData(w, http.StatusOK, result, h.log)
}

// HandleDelete handles DELETE /api/backtests/{id}
func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		httpapi.WriteError(w, err, h.log)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleExport handles GET /api/backtests/{id}/export.xlsx
func (h *Handler) HandleExport(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	result, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpapi.WriteError(w, err, h.log)
		return
	}

	var buf bytes.Buffer
	if err := backtest.WriteXLSX(result, &buf); err != nil {
		httpapi.WriteError(w, fmt.Errorf("failed to export run %s: %w", id, err), h.log)
		return
	}

	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="backtest-%s.xlsx"`, id))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	if _, err := buf.WriteTo(w); err != nil {
		h.log.Warn().Err(err).Str("run_id", id).Msg("Failed to write export")
	}
}

// wsMessage is one frame sent to a websocket client
type wsMessage struct {
	Type    string           `json:"type"` // progress, result or error
	Message string           `json:"message,omitempty"`
	Percent float64          `json:"percent,omitempty"`
	Result  *backtest.Result `json:"result,omitempty"`
	Error   string           `json:"error,omitempty"`
	Status  int              `json:"status,omitempty"`
}

// HandleRunWebSocket handles GET /api/backtests/ws. The client sends one run
// configuration; the server streams progress frames, then a result or error frame,
// then closes. Closing the socket cancels the run.
func (h *Handler) HandleRunWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: []string{"*"}})
	if err != nil {
		h.log.Warn().Err(err).Msg("Websocket upgrade failed")
		return
	}
	defer conn.Close(websocket.StatusInternalError, "unexpected exit")

	readCtx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	_, data, err := conn.Read(readCtx)
	cancel()
	if err != nil {
		h.log.Debug().Err(err).Msg("No run configuration received")
		return
	}

	// Nothing else is read; CloseRead cancels ctx when the client goes away
	ctx := conn.CloseRead(r.Context())

	var body configBody
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&body); err != nil {
		h.send(ctx, conn, h.errorMessage(fmt.Errorf("%w: invalid run configuration: %v", domain.ErrConfiguration, err)))
		conn.Close(websocket.StatusPolicyViolation, "invalid run configuration")
		return
	}
	cfg, err := h.config(body)
	if err != nil {
		h.send(ctx, conn, h.errorMessage(err))
		conn.Close(websocket.StatusPolicyViolation, "invalid run configuration")
		return
	}

	result, err := h.service.Run(ctx, cfg, func(message string, percent float64) {
		h.send(ctx, conn, wsMessage{Type: "progress", Message: message, Percent: percent})
	})
	if err != nil {
		h.send(ctx, conn, h.errorMessage(err))
		conn.Close(websocket.StatusNormalClosure, "run failed")
		return
	}

	h.send(ctx, conn, wsMessage{Type: "result", Result: result})
	conn.Close(websocket.StatusNormalClosure, "run complete")
}

func (h *Handler) errorMessage(err error) wsMessage {
	return wsMessage{Type: "error", Error: err.Error(), Status: httpapi.StatusFor(err)}
}

func (h *Handler) send(ctx context.Context, conn *websocket.Conn, msg wsMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.log.Error().Err(err).Str("type", msg.Type).Msg("Failed to encode websocket message")
		return
	}

	writeCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := conn.Write(writeCtx, websocket.MessageText, data); err != nil {
		h.log.Debug().Err(err).Str("type", msg.Type).Msg("Failed to write websocket message")
	}
}

package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/aristath/sentinel-quant/internal/database"
	"github.com/aristath/sentinel-quant/internal/modules/backtest"
	"github.com/aristath/sentinel-quant/internal/modules/historical"
	"github.com/aristath/sentinel-quant/internal/modules/taxlots"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

const runBody = `{"tickers":["SPY","TLT"],"start_date":"2023-01-02","end_date":"2023-06-30","initial_capital":10000}`

func setupRouter(t *testing.T, defaults Defaults) *chi.Mux {
	t.Helper()
	db, err := database.New(database.Config{
		Path:    filepath.Join(t.TempDir(), "runs.db"),
		Profile: database.ProfileStandard,
		Name:    database.NameRuns,
	})
	require.NoError(t, err)
	require.NoError(t, db.Migrate())
	t.Cleanup(func() { _ = db.Close() })

	provider := historical.NewHistoryProvider(historical.NewSyntheticSource(5), 2, nil, zerolog.Nop())
	service := backtest.NewService(provider, backtest.NewRepository(db, zerolog.Nop()), nil, nil, zerolog.Nop())

	router := chi.NewRouter()
	router.Route("/api", NewHandler(service, defaults, zerolog.Nop()).RegisterRoutes)
	return router
}

func do(t *testing.T, router http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error string          `json:"error"`
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return env
}

func runOne(t *testing.T, router http.Handler) backtest.Result {
	t.Helper()
	rec := do(t, router, http.MethodPost, "/api/backtests", runBody)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var result backtest.Result
	require.NoError(t, json.Unmarshal(decode(t, rec).Data, &result))
	return result
}

func TestHandleRun_StoresAndLists(t *testing.T) {
	router := setupRouter(t, nil)

	result := runOne(t, router)
	assert.NotEmpty(t, result.ID)
	assert.Equal(t, []string{"SPY", "TLT"}, result.Config.Tickers)
	assert.NotEmpty(t, result.Snapshots)

	rec := do(t, router, http.MethodGet, "/api/backtests", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var runs []backtest.RunSummary
	require.NoError(t, json.Unmarshal(decode(t, rec).Data, &runs))
	require.Len(t, runs, 1)
	assert.Equal(t, result.ID, runs[0].ID)

	rec = do(t, router, http.MethodGet, "/api/backtests/"+result.ID, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var stored backtest.Result
	require.NoError(t, json.Unmarshal(decode(t, rec).Data, &stored))
	assert.Equal(t, result.Metrics.FinalValue, stored.Metrics.FinalValue)
}

func TestHandleRun_AppliesDefaults(t *testing.T) {
	router := setupRouter(t, func(c backtest.Config) backtest.Config {
		if c.RiskFreeRate == nil {
			rf := 0.01
			c.RiskFreeRate = &rf
		}
		return c
	})

	result := runOne(t, router)
	assert.Equal(t, 0.01, result.Config.RiskFree())
}

func TestHandleRun_KeepsExplicitZeroRates(t *testing.T) {
	router := setupRouter(t, func(c backtest.Config) backtest.Config {
		if c.RiskFreeRate == nil {
			rf := 0.01
			c.RiskFreeRate = &rf
		}
		if c.TaxRates == nil {
			c.TaxRates = &taxlots.TaxRates{LongTerm: 0.15, ShortTerm: 0.35}
		}
		return c
	})

	body := `{"tickers":["SPY","TLT","GLD"],"start_date":"2023-01-02","end_date":"2023-12-29",` +
		`"initial_capital":10000,"rebalance_frequency":"weekly",` +
		`"tax_rates":{"long_term":0,"short_term":0},"risk_free_rate":0}`
	rec := do(t, router, http.MethodPost, "/api/backtests", body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var result backtest.Result
	require.NoError(t, json.Unmarshal(decode(t, rec).Data, &result))
	assert.Equal(t, taxlots.TaxRates{}, result.Config.Rates())
	assert.Equal(t, 0.0, result.Config.RiskFree())
	assert.Equal(t, 0.0, result.Metrics.TotalTaxPaid)
}

func TestHandleRun_BadRequests(t *testing.T) {
	router := setupRouter(t, nil)

	tests := []struct {
		name string
		body string
	}{
		{"no tickers", `{"tickers":[],"start_date":"2023-01-02","end_date":"2023-06-30","initial_capital":10000}`},
		{"zero capital", `{"tickers":["SPY"],"start_date":"2023-01-02","end_date":"2023-06-30"}`},
		{"missing dates", `{"tickers":["SPY"],"initial_capital":100}`},
		{"end before start", `{"tickers":["SPY"],"start_date":"2023-06-30","end_date":"2023-01-02","initial_capital":100}`},
		{"bad ordering", `{"tickers":["SPY"],"start_date":"2023-01-02","end_date":"2023-06-30","initial_capital":100,"hrp_ordering":"ward"}`},
		{"bad frequency", `{"tickers":["SPY"],"start_date":"2023-01-02","end_date":"2023-06-30","initial_capital":100,"rebalance_frequency":"hourly"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, router, http.MethodPost, "/api/backtests", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
			assert.NotEmpty(t, decode(t, rec).Error)
		})
	}
}

func TestHandleGet_NotFound(t *testing.T) {
	router := setupRouter(t, nil)

	rec := do(t, router, http.MethodGet, "/api/backtests/missing", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, router, http.MethodGet, "/api/backtests/missing/export.xlsx", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleList_InvalidLimit(t *testing.T) {
	router := setupRouter(t, nil)

	rec := do(t, router, http.MethodGet, "/api/backtests?limit=abc", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleDelete(t *testing.T) {
	router := setupRouter(t, nil)
	result := runOne(t, router)

	rec := do(t, router, http.MethodDelete, "/api/backtests/"+result.ID, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = do(t, router, http.MethodGet, "/api/backtests/"+result.ID, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleExport(t *testing.T) {
	router := setupRouter(t, nil)
	result := runOne(t, router)

	rec := do(t, router, http.MethodGet, "/api/backtests/"+result.ID+"/export.xlsx", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, xlsxContentType, rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), result.ID)

	f, err := excelize.OpenReader(bytes.NewReader(rec.Body.Bytes()))
	require.NoError(t, err)
	defer f.Close()
	assert.NotEmpty(t, f.GetSheetList())
}

func TestHandleRunBatch(t *testing.T) {
	router := setupRouter(t, nil)

	body := `{"concurrency":2,"runs":[` + runBody + `,` +
		`{"tickers":["GLD"],"start_date":"2023-01-02","end_date":"2023-03-31","initial_capital":5000,"rebalance_frequency":"weekly"}]}`
	rec := do(t, router, http.MethodPost, "/api/backtests/batch", body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var items []backtest.BatchItem
	require.NoError(t, json.Unmarshal(decode(t, rec).Data, &items))
	require.Len(t, items, 2)
	for i, item := range items {
		assert.Equal(t, i, item.Index)
		assert.Empty(t, item.Error)
		assert.NotNil(t, item.Result)
	}
}

func TestHandleRunBatch_InvalidRun(t *testing.T) {
	router := setupRouter(t, nil)

	rec := do(t, router, http.MethodPost, "/api/backtests/batch", `{"runs":[`+runBody+`,{"tickers":[]}]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decode(t, rec).Error, "run 1")
}

func TestHandleRunWebSocket(t *testing.T) {
	srv := httptest.NewServer(setupRouter(t, nil))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http")+"/api/backtests/ws", nil)
	require.NoError(t, err)
	defer conn.Close(websocket.StatusNormalClosure, "")
	conn.SetReadLimit(32 << 20)

	require.NoError(t, conn.Write(ctx, websocket.MessageText, []byte(runBody)))

	progress := 0
	var final wsMessage
	for {
		var msg wsMessage
		require.NoError(t, wsjson.Read(ctx, conn, &msg))
		if msg.Type == "progress" {
			progress++
			continue
		}
		final = msg
		break
	}

	assert.Positive(t, progress)
	require.Equal(t, "result", final.Type, final.Error)
	require.NotNil(t, final.Result)
	assert.NotEmpty(t, final.Result.Snapshots)
}

func TestHandleRunWebSocket_InvalidConfig(t *testing.T) {
	srv := httptest.NewServer(setupRouter(t, nil))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http")+"/api/backtests/ws", nil)
	require.NoError(t, err)
	defer conn.Close(websocket.StatusNormalClosure, "")

	require.NoError(t, wsjson.Write(ctx, conn, map[string]interface{}{"tickers": []string{}}))

	var msg wsMessage
	require.NoError(t, wsjson.Read(ctx, conn, &msg))
	assert.Equal(t, "error", msg.Type)
	assert.Equal(t, http.StatusBadRequest, msg.Status)
}

package server

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/aristath/sentinel-quant/internal/config"
	"github.com/aristath/sentinel-quant/internal/di"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupServer(t *testing.T) *Server {
	t.Helper()
	cfg := &config.Config{
		DataDir:                t.TempDir(),
		Port:                   0,
		PriceSource:            config.PriceSourceSynthetic,
		FetchConcurrency:       2,
		YahooRequestsPerSecond: 2,
		PriceCacheTTL:          time.Hour,
		Engine:                 config.DefaultEngineDefaults(),
	}
	container, jobs, err := di.Wire(context.Background(), cfg, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { container.Close() })

	return New(Config{
		Log:         zerolog.Nop(),
		DevMode:     true,
		PriceSource: cfg.PriceSource,
		Engine:      cfg.Engine,
		Container:   container,
		Jobs:        jobs,
	})
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestHealth(t *testing.T) {
	s := setupServer(t)

	for _, path := range []string{"/health", "/api/health"} {
		rec := get(t, s.Handler(), path)
		assert.Equal(t, http.StatusOK, rec.Code, path)
		assert.JSONEq(t, `{"status":"healthy"}`, rec.Body.String())
	}
}

func TestSystemStatus(t *testing.T) {
	s := setupServer(t)

	rec := get(t, s.Handler(), "/api/system/status")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Data SystemStatusResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "synthetic", resp.Data.PriceSource)
	assert.Positive(t, resp.Data.Goroutines)
	assert.Len(t, resp.Data.Databases, 2)
	assert.Equal(t, []string{"database_maintenance"}, resp.Data.Jobs)
	assert.Empty(t, resp.Data.YahooBreaker)
}

func TestMetricsEndpoint(t *testing.T) {
	s := setupServer(t)

	rec := get(t, s.Handler(), "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "# TYPE")
}

func TestJobs(t *testing.T) {
	s := setupServer(t)

	rec := get(t, s.Handler(), "/api/jobs")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "database_maintenance")

	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/jobs/unknown", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRoutesMounted(t *testing.T) {
	s := setupServer(t)

	tests := []struct {
		method string
		path   string
		want   int
	}{
		{http.MethodPost, "/api/analysis/correlation", http.StatusBadRequest},
		{http.MethodPost, "/api/analysis/frontier", http.StatusBadRequest},
		{http.MethodPost, "/api/analysis/hrp", http.StatusBadRequest},
		{http.MethodPost, "/api/analysis/black-litterman", http.StatusBadRequest},
		{http.MethodPost, "/api/analysis/black-litterman/analyze", http.StatusBadRequest},
		{http.MethodPost, "/api/risk/metrics", http.StatusBadRequest},
		{http.MethodPost, "/api/backtests", http.StatusBadRequest},
		{http.MethodGet, "/api/backtests", http.StatusOK},
		{http.MethodGet, "/api/backtests/nope", http.StatusNotFound},
	}
	for _, tt := range tests {
		rec := httptest.NewRecorder()
		s.Handler().ServeHTTP(rec, httptest.NewRequest(tt.method, tt.path, strings.NewReader(`{}`)))
		assert.Equal(t, tt.want, rec.Code, "%s %s", tt.method, tt.path)
	}
}

func TestEventsStream_DeliversBacktestEvents(t *testing.T) {
	s := setupServer(t)
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/events/stream?types=BACKTEST_STARTED,BACKTEST_COMPLETED", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	lines := bufio.NewScanner(resp.Body)
	lines.Buffer(make([]byte, 0, 64*1024), 1<<20)
	next := func() map[string]interface{} {
		for lines.Scan() {
			line := lines.Text()
			if !strings.HasPrefix(line, "data: ") {
				continue
			}
			var msg map[string]interface{}
			require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &msg))
			return msg
		}
		t.Fatalf("stream ended: %v", lines.Err())
		return nil
	}

	require.Equal(t, "connected", next()["type"])

	body := `{"tickers":["SPY","TLT"],"start_date":"2023-01-02","end_date":"2023-03-31","initial_capital":1000}`
	runResp, err := http.Post(srv.URL+"/api/backtests", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	_, _ = io.Copy(io.Discard, runResp.Body)
	runResp.Body.Close()
	require.Equal(t, http.StatusCreated, runResp.StatusCode)

	started := next()
	assert.Equal(t, "BACKTEST_STARTED", started["type"])
	assert.Equal(t, "backtest", started["module"])
	completed := next()
	assert.Equal(t, "BACKTEST_COMPLETED", completed["type"])
}

func TestIsStreaming(t *testing.T) {
	ws := httptest.NewRequest(http.MethodGet, "/api/backtests/ws", nil)
	ws.Header.Set("Upgrade", "websocket")
	assert.True(t, isStreaming(ws))
	assert.True(t, isStreaming(httptest.NewRequest(http.MethodGet, "/api/events/stream", nil)))
	assert.False(t, isStreaming(httptest.NewRequest(http.MethodGet, "/api/backtests", nil)))
}

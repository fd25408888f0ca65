package main

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/aristath/sentinel-quant/internal/domain"
	"github.com/aristath/sentinel-quant/internal/modules/backtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

// execute runs quantctl against synthetic prices in a temporary data directory
func execute(t *testing.T, dataDir string, args ...string) (string, error) {
	t.Helper()
	t.Setenv("QUANT_DATA_DIR", dataDir)
	t.Setenv("ENGINE_DEFAULTS_FILE", "")
	t.Setenv("ARCHIVE_S3_BUCKET", "")

	root := newRootCmd()
	var stdout, stderr bytes.Buffer
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs(append([]string{"--source", "synthetic", "--data-dir", dataDir}, args...))
	err := root.ExecuteContext(context.Background())
	return stdout.String(), err
}

func TestBacktestCommand(t *testing.T) {
	dir := t.TempDir()
	xlsx := dir + "/run.xlsx"

	out, err := execute(t, dir, "backtest",
		"--tickers", "AAA,BBB,CCC",
		"--start", "2023-01-02", "--end", "2023-06-30",
		"--rebalance", "monthly", "--xlsx", xlsx)
	require.NoError(t, err)

	var summary runOutput
	require.NoError(t, json.Unmarshal([]byte(out), &summary))
	assert.NotEmpty(t, summary.ID)
	assert.ElementsMatch(t, []string{"AAA", "BBB", "CCC"}, summary.Tickers)
	assert.InDelta(t, 10000, summary.Metrics.InitialCapital, 1e-9)
	assert.Greater(t, summary.Metrics.FinalValue, 0.0)

	f, err := excelize.OpenFile(xlsx)
	require.NoError(t, err)
	defer f.Close()
	assert.NotEmpty(t, f.GetSheetList())

	out, err = execute(t, dir, "runs", "list")
	require.NoError(t, err)
	var runs []backtest.RunSummary
	require.NoError(t, json.Unmarshal([]byte(out), &runs))
	require.Len(t, runs, 1)
	assert.Equal(t, summary.ID, runs[0].ID)

	_, err = execute(t, dir, "runs", "delete", summary.ID)
	require.NoError(t, err)
	_, err = execute(t, dir, "runs", "show", summary.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestBacktestCommand_ZeroRates(t *testing.T) {
	dir := t.TempDir()

	out, err := execute(t, dir, "backtest", "--full",
		"--tickers", "AAA,BBB,CCC",
		"--start", "2023-01-02", "--end", "2023-12-29",
		"--rebalance", "weekly",
		"--risk-free", "0", "--tax-long", "0", "--tax-short", "0")
	require.NoError(t, err)

	var result backtest.Result
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.Equal(t, 0.0, result.Config.RiskFree())
	assert.Equal(t, 0.0, result.Config.Rates().LongTerm)
	assert.Equal(t, 0.0, result.Config.Rates().ShortTerm)
	assert.Equal(t, 0.0, result.Metrics.TotalTaxPaid)
}

func TestBacktestCommand_InvalidFlags(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name string
		args []string
	}{
		{"missing start", []string{"backtest", "--tickers", "AAA"}},
		{"bad date", []string{"backtest", "--tickers", "AAA", "--start", "01/02/2023"}},
		{"bad rebalance", []string{"backtest", "--tickers", "AAA", "--start", "2023-01-02", "--rebalance", "hourly"}},
		{"bad ordering", []string{"backtest", "--tickers", "AAA", "--start", "2023-01-02", "--ordering", "ward"}},
		{"bad tolerance", []string{"frontier", "--tickers", "AAA,BBB", "--start", "2023-01-02", "--risk-tolerance", "120"}},
		{"bad view", []string{"black-litterman", "--tickers", "AAA,BBB", "--start", "2023-01-02", "--view", "AAA=0.5"}},
		{"bad weight", []string{"black-litterman", "--tickers", "AAA,BBB", "--start", "2023-01-02", "--analyze", "AAA=x"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(t, dir, tt.args...)
			assert.ErrorIs(t, err, domain.ErrConfiguration)
		})
	}
}

func TestAnalysisCommands(t *testing.T) {
	dir := t.TempDir()
	universe := []string{"--tickers", "AAA,BBB,CCC", "--start", "2023-01-02", "--end", "2023-12-29"}

	t.Run("hrp", func(t *testing.T) {
		out, err := execute(t, dir, append([]string{"hrp", "--apply-regime"}, universe...)...)
		require.NoError(t, err)
		var report struct {
			Weights domain.PortfolioWeights `json:"weights"`
			Tilted  domain.PortfolioWeights `json:"tilted_weights"`
		}
		require.NoError(t, json.Unmarshal([]byte(out), &report))
		assert.Len(t, report.Weights, 3)
		assert.InDelta(t, 1.0, report.Weights.Sum(), 1e-6)
		assert.NotEmpty(t, report.Tilted)
	})

	t.Run("frontier", func(t *testing.T) {
		out, err := execute(t, dir, append([]string{"frontier", "--seed", "3", "--risk-tolerance", "40"}, universe...)...)
		require.NoError(t, err)
		var report map[string]json.RawMessage
		require.NoError(t, json.Unmarshal([]byte(out), &report))
		assert.Contains(t, report, "points")
		assert.Contains(t, report, "optimal")
	})

	t.Run("correlation", func(t *testing.T) {
		out, err := execute(t, dir, append([]string{"correlation"}, universe...)...)
		require.NoError(t, err)
		var report map[string]json.RawMessage
		require.NoError(t, json.Unmarshal([]byte(out), &report))
		assert.Contains(t, report, "correlation")
		assert.Contains(t, report, "high_correlations")
	})

	t.Run("black-litterman", func(t *testing.T) {
		out, err := execute(t, dir, append([]string{"black-litterman", "--view", "AAA=0.5@0.8"}, universe...)...)
		require.NoError(t, err)
		assert.Contains(t, out, "warnings")
	})

	t.Run("analyze weights", func(t *testing.T) {
		out, err := execute(t, dir, append([]string{"black-litterman", "--analyze", "AAA=0.5,BBB=0.3,CCC=0.2"}, universe...)...)
		require.NoError(t, err)
		assert.Contains(t, out, "warnings")
	})
}

func TestParseView(t *testing.T) {
	view, err := parseView("spy=0.4@0.9")
	require.NoError(t, err)
	assert.Equal(t, domain.InvestorView{Symbol: "SPY", TargetWeight: 0.4, Confidence: 0.9}, view)

	for _, bad := range []string{"SPY", "SPY=0.4", "SPY=a@0.5", "SPY=0.4@b", "SPY=1.5@0.5"} {
		_, err := parseView(bad)
		assert.ErrorIs(t, err, domain.ErrConfiguration, bad)
	}
}

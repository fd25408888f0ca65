package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aristath/sentinel-quant/internal/domain"
	"github.com/aristath/sentinel-quant/internal/modules/backtest"
	"github.com/aristath/sentinel-quant/internal/modules/optimization"
	"github.com/aristath/sentinel-quant/internal/modules/taxlots"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "data")
	t.Setenv("QUANT_DATA_DIR", dir)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, dir, cfg.DataDir)
	assert.DirExists(t, dir)
	assert.Equal(t, 8001, cfg.Port)
	assert.Equal(t, PriceSourceCache, cfg.PriceSource)
	assert.Equal(t, 4, cfg.FetchConcurrency)
	assert.Equal(t, 12*time.Hour, cfg.PriceCacheTTL)
	assert.Equal(t, "0 3 * * *", cfg.MaintenanceSchedule)
	assert.Zero(t, cfg.RunRetention)
	assert.False(t, cfg.Archive.Enabled())
	assert.Equal(t, DefaultEngineDefaults(), cfg.Engine)
}

func TestLoad_FromEnvironment(t *testing.T) {
	t.Setenv("QUANT_DATA_DIR", t.TempDir())
	t.Setenv("GO_PORT", "9100")
	t.Setenv("PRICE_SOURCE", "YAHOO")
	t.Setenv("FETCH_CONCURRENCY", "8")
	t.Setenv("YAHOO_REQUESTS_PER_SECOND", "0.5")
	t.Setenv("PRICE_CACHE_TTL_HOURS", "2")
	t.Setenv("ARCHIVE_S3_BUCKET", "runs")
	t.Setenv("ARCHIVE_S3_ACCESS_KEY", "key")
	t.Setenv("ARCHIVE_S3_SECRET_KEY", "secret")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9100, cfg.Port)
	assert.Equal(t, PriceSourceYahoo, cfg.PriceSource)
	assert.Equal(t, 8, cfg.FetchConcurrency)
	assert.Equal(t, 0.5, cfg.YahooRequestsPerSecond)
	assert.Equal(t, 2*time.Hour, cfg.PriceCacheTTL)
	assert.True(t, cfg.Archive.Enabled())
	assert.Equal(t, "us-east-1", cfg.Archive.Region)
}

func TestLoad_EngineDefaultsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "engine.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
risk_free_rate: 0.03
frontier:
  num_simulations: 2000
hrp:
  ordering: single_linkage
tax_rates:
  long_term: 0.2
  short_term: 0.4
`), 0o644))
	t.Setenv("QUANT_DATA_DIR", t.TempDir())
	t.Setenv("ENGINE_DEFAULTS_FILE", path)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 0.03, cfg.Engine.RiskFreeRate)
	assert.Equal(t, 2000, cfg.Engine.Frontier.NumSimulations)
	assert.Equal(t, optimization.DefaultFrontierOptions().BucketWidth, cfg.Engine.Frontier.BucketWidth)
	assert.Equal(t, optimization.HRPOrderingSingleLinkage, cfg.Engine.HRP.Ordering)
	assert.Equal(t, 0.4, cfg.Engine.TaxRates.ShortTerm)
	assert.Equal(t, 2.5, cfg.Engine.BlackLitterman.RiskAversion)
}

func TestLoad_InvalidEngineDefaultsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "engine.yaml")
	require.NoError(t, os.WriteFile(path, []byte("black_litterman:\n  tau: 3\n"), 0o644))
	t.Setenv("QUANT_DATA_DIR", t.TempDir())
	t.Setenv("ENGINE_DEFAULTS_FILE", path)

	_, err := Load()
	assert.ErrorIs(t, err, domain.ErrConfiguration)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Port:                   8001,
			PriceSource:            PriceSourceCache,
			FetchConcurrency:       4,
			YahooRequestsPerSecond: 2,
			PriceCacheTTL:          time.Hour,
			PriceRefreshSchedule:   "0 22 * * 1-5",
			Engine:                 DefaultEngineDefaults(),
		}
	}
	require.NoError(t, valid().Validate())

	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"port", func(c *Config) { c.Port = 70000 }},
		{"source", func(c *Config) { c.PriceSource = "bloomberg" }},
		{"concurrency", func(c *Config) { c.FetchConcurrency = 0 }},
		{"rate", func(c *Config) { c.YahooRequestsPerSecond = 0 }},
		{"ttl", func(c *Config) { c.PriceCacheTTL = 0 }},
		{"schedule", func(c *Config) { c.PriceRefreshSchedule = "every day" }},
		{"maintenance schedule", func(c *Config) { c.MaintenanceSchedule = "0 3 *" }},
		{"retention", func(c *Config) { c.RunRetention = -time.Hour }},
		{"region", func(c *Config) { c.Archive = ArchiveConfig{Bucket: "b"} }},
		{"half credentials", func(c *Config) { c.Archive.AccessKey = "k" }},
		{"risk free", func(c *Config) { c.Engine.RiskFreeRate = 0.9 }},
		{"simulations", func(c *Config) { c.Engine.Frontier.NumSimulations = 10 }},
		{"ordering", func(c *Config) { c.Engine.HRP.Ordering = "ward" }},
		{"lookback", func(c *Config) { c.Engine.RegimeLookback = 3 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(c)
			assert.ErrorIs(t, c.Validate(), domain.ErrConfiguration)
		})
	}
}

func TestEngineDefaults_ApplyTo(t *testing.T) {
	e := DefaultEngineDefaults()
	e.RiskFreeRate = 0.02
	e.HRP.Ordering = optimization.HRPOrderingCompleteLinkage

	cfg := e.ApplyTo(backtest.Config{CorrelationWindow: 60})
	assert.Equal(t, 0.02, cfg.RiskFree())
	assert.Equal(t, optimization.HRPOrderingCompleteLinkage, cfg.HRP.Ordering)
	assert.Equal(t, 60, cfg.CorrelationWindow)
	assert.Equal(t, e.TaxRates, cfg.Rates())

	opts := e.AnalysisOptions()
	assert.InDelta(t, 2.0, opts.Frontier.RiskFreeRate, 1e-12)
}

func TestEngineDefaults_ApplyToKeepsExplicitZeros(t *testing.T) {
	zero := 0.0
	cfg := DefaultEngineDefaults().ApplyTo(backtest.Config{
		TaxRates:     &taxlots.TaxRates{},
		RiskFreeRate: &zero,
	})
	assert.Equal(t, taxlots.TaxRates{}, cfg.Rates())
	assert.Equal(t, 0.0, cfg.RiskFree())
}

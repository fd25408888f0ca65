package backtest

import (
	"testing"
	"time"

	"github.com/aristath/sentinel-quant/internal/domain"
	"github.com/aristath/sentinel-quant/internal/market_regime"
	"github.com/aristath/sentinel-quant/internal/modules/taxlots"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRebalanceFrequency(t *testing.T) {
	for in, want := range map[string]RebalanceFrequency{
		"daily":    RebalanceDaily,
		" Weekly ": RebalanceWeekly,
		"MONTHLY":  RebalanceMonthly,
		"none":     RebalanceNone,
		"":         RebalanceMonthly,
	} {
		got, err := ParseRebalanceFrequency(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseRebalanceFrequency("hourly")
	assert.ErrorIs(t, err, domain.ErrConfiguration)
}

func TestRebalanceFrequency_Due(t *testing.T) {
	last := date("2024-01-01")
	assert.True(t, RebalanceDaily.due(last, date("2024-01-02")))
	assert.False(t, RebalanceWeekly.due(last, date("2024-01-05")))
	assert.True(t, RebalanceWeekly.due(last, date("2024-01-08")))
	assert.False(t, RebalanceMonthly.due(last, date("2024-01-19")))
	assert.True(t, RebalanceMonthly.due(last, date("2024-01-22")))
	assert.False(t, RebalanceNone.due(last, date("2025-01-01")))
}

func TestConfig_WithDefaults(t *testing.T) {
	cfg := Config{Tickers: []string{"spy", "SPY", "tlt"}, Benchmark: " qqq "}.WithDefaults()

	assert.Equal(t, []string{"SPY", "TLT"}, cfg.Tickers)
	assert.Equal(t, "QQQ", cfg.Benchmark)
	assert.Equal(t, RebalanceMonthly, cfg.Rebalance)
	require.NotNil(t, cfg.TaxRates)
	assert.Equal(t, taxlots.DefaultTaxRates(), *cfg.TaxRates)
	require.NotNil(t, cfg.RiskFreeRate)
	assert.Equal(t, DefaultRiskFreeRate, *cfg.RiskFreeRate)
	assert.Equal(t, market_regime.DefaultLookback, cfg.RegimeLookback)
	assert.Equal(t, DefaultCorrelationWindow, cfg.CorrelationWindow)
	assert.Equal(t, DefaultRollingWindow, cfg.RollingWindow)

}

func TestConfig_WithDefaultsKeepsExplicitZeros(t *testing.T) {
	cfg := Config{TaxRates: &taxlots.TaxRates{}, RiskFreeRate: ptr(0.0)}.WithDefaults()

	assert.Equal(t, taxlots.TaxRates{}, cfg.Rates())
	assert.Equal(t, 0.0, cfg.RiskFree())

	partial := Config{TaxRates: &taxlots.TaxRates{LongTerm: 0.2}}.WithDefaults()
	assert.Equal(t, taxlots.TaxRates{LongTerm: 0.2}, partial.Rates())
	assert.Equal(t, DefaultRiskFreeRate, partial.RiskFree())
}

func TestConfig_Validate(t *testing.T) {
	valid := Config{
		Tickers:        []string{"SPY"},
		StartDate:      date("2020-01-01"),
		EndDate:        date("2021-01-01"),
		InitialCapital: 1000,
		Rebalance:      RebalanceMonthly,
		TaxRates:       &taxlots.TaxRates{},
		RiskFreeRate:   ptr(0.0),
	}
	require.NoError(t, valid.Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty universe", func(c *Config) { c.Tickers = []string{" "} }},
		{"missing start", func(c *Config) { c.StartDate = time.Time{} }},
		{"end before start", func(c *Config) { c.EndDate = date("2019-01-01") }},
		{"zero capital", func(c *Config) { c.InitialCapital = 0 }},
		{"bad cadence", func(c *Config) { c.Rebalance = "hourly" }},
		{"tax above one", func(c *Config) { c.TaxRates = &taxlots.TaxRates{ShortTerm: 1.5} }},
		{"negative tax", func(c *Config) { c.TaxRates = &taxlots.TaxRates{LongTerm: -0.1} }},
		{"risk free above half", func(c *Config) { c.RiskFreeRate = ptr(0.6) }},
		{"negative warmup", func(c *Config) { c.WarmupDays = -1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)
			assert.ErrorIs(t, cfg.Validate(), domain.ErrConfiguration)
		})
	}
}

// Package backtest simulates a rebalanced, tax-aware portfolio day by day over
// historical prices and summarizes its performance.
package backtest

import (
	"fmt"
	"strings"
	"time"

	"github.com/aristath/sentinel-quant/internal/domain"
	"github.com/aristath/sentinel-quant/internal/market_regime"
	"github.com/aristath/sentinel-quant/internal/modules/historical"
	"github.com/aristath/sentinel-quant/internal/modules/optimization"
	"github.com/aristath/sentinel-quant/internal/modules/taxlots"
)

// RebalanceFrequency is the rebalance cadence
type RebalanceFrequency string

const (
	RebalanceDaily   RebalanceFrequency = "daily"
	RebalanceWeekly  RebalanceFrequency = "weekly"
	RebalanceMonthly RebalanceFrequency = "monthly"
	RebalanceNone    RebalanceFrequency = "none" // Buy and hold
)

// Minimum calendar days between rebalances
const (
	weeklyIntervalDays  = 7
	monthlyIntervalDays = 21
)

// ParseRebalanceFrequency accepts the cadence names case-insensitively
func ParseRebalanceFrequency(s string) (RebalanceFrequency, error) {
	switch f := RebalanceFrequency(strings.ToLower(strings.TrimSpace(s))); f {
	case RebalanceDaily, RebalanceWeekly, RebalanceMonthly, RebalanceNone:
		return f, nil
	case "":
		return RebalanceMonthly, nil
	default:
		return "", fmt.Errorf("%w: unknown rebalance frequency %q", domain.ErrConfiguration, s)
	}
}

// due reports whether a rebalance is due on day given the last rebalance date
func (f RebalanceFrequency) due(last, day time.Time) bool {
	days := int(day.Sub(last).Hours() / 24)
	switch f {
	case RebalanceDaily:
		return true
	case RebalanceWeekly:
		return days >= weeklyIntervalDays
	case RebalanceMonthly:
		return days >= monthlyIntervalDays
	default:
		return false
	}
}

// Defaults for Config fields left zero
const (
	DefaultRiskFreeRate      = 0.05
	DefaultCorrelationWindow = 252
	DefaultRollingWindow     = 21
)

// Config describes one backtest run
type Config struct {
	Tickers        []string                `json:"tickers" validate:"required,min=1,dive,required"`
	StartDate      time.Time               `json:"start_date" validate:"required"`
	EndDate        time.Time               `json:"end_date" validate:"required"`
	InitialCapital float64                 `json:"initial_capital" validate:"gt=0"`
	Rebalance      RebalanceFrequency      `json:"rebalance_frequency"`
	TaxRates       *taxlots.TaxRates       `json:"tax_rates,omitempty"`      // nil takes the defaults
	RiskFreeRate   *float64                `json:"risk_free_rate,omitempty"` // Annual, decimal; nil takes the default
	Benchmark      string                  `json:"benchmark,omitempty"`
	HRP            optimization.HRPOptions `json:"hrp"`

	// RegimeLookback is the detector's trailing window in trading days
	RegimeLookback int `json:"regime_lookback"`
	// CorrelationWindow caps the trailing returns used for correlation at each rebalance
	CorrelationWindow int `json:"correlation_window"`
	// WarmupDays of calendar history are fetched before StartDate so the first
	// rebalances see a full window. The simulation itself starts at StartDate.
	WarmupDays int `json:"warmup_days"`
	// RollingWindow is the window of the rolling volatility series in the result
	RollingWindow int `json:"rolling_window"`
}

// WithDefaults fills unset fields. Explicit zero tax rates and risk-free rate are kept.
func (c Config) WithDefaults() Config {
	c.Tickers = historical.NormalizeTickers(c.Tickers)
	c.Benchmark = strings.ToUpper(strings.TrimSpace(c.Benchmark))
	if c.Rebalance == "" {
		c.Rebalance = RebalanceMonthly
	}
	if c.TaxRates == nil {
		rates := taxlots.DefaultTaxRates()
		c.TaxRates = &rates
	}
	if c.RiskFreeRate == nil {
		rf := DefaultRiskFreeRate
		c.RiskFreeRate = &rf
	}
	if c.RegimeLookback <= 0 {
		c.RegimeLookback = market_regime.DefaultLookback
	}
	if c.CorrelationWindow <= 0 {
		c.CorrelationWindow = DefaultCorrelationWindow
	}
	if c.RollingWindow <= 0 {
		c.RollingWindow = DefaultRollingWindow
	}
	return c
}

// Validate rejects configurations no run could complete
func (c Config) Validate() error {
	if len(historical.NormalizeTickers(c.Tickers)) == 0 {
		return fmt.Errorf("%w: empty ticker universe", domain.ErrConfiguration)
	}
	if c.StartDate.IsZero() || c.EndDate.IsZero() {
		return fmt.Errorf("%w: start and end dates are required", domain.ErrConfiguration)
	}
	if !c.EndDate.After(c.StartDate) {
		return fmt.Errorf("%w: end date must be after start date", domain.ErrConfiguration)
	}
	if c.InitialCapital <= 0 {
		return fmt.Errorf("%w: initial capital must be positive, got %v", domain.ErrConfiguration, c.InitialCapital)
	}
	if _, err := ParseRebalanceFrequency(string(c.Rebalance)); err != nil {
		return err
	}
	if r := c.Rates(); r.LongTerm < 0 || r.LongTerm > 1 || r.ShortTerm < 0 || r.ShortTerm > 1 {
		return fmt.Errorf("%w: tax rates must be within [0, 1]", domain.ErrConfiguration)
	}
	if rf := c.RiskFree(); rf < 0 || rf > 0.5 {
		return fmt.Errorf("%w: risk-free rate %v outside [0, 0.5]", domain.ErrConfiguration, rf)
	}
	if c.WarmupDays < 0 {
		return fmt.Errorf("%w: warmup days must not be negative", domain.ErrConfiguration)
	}
	return nil
}

// Rates returns the configured tax rates, or the defaults when unset
func (c Config) Rates() taxlots.TaxRates {
	if c.TaxRates == nil {
		return taxlots.DefaultTaxRates()
	}
	return *c.TaxRates
}

// RiskFree returns the annual risk-free rate, or the default when unset
func (c Config) RiskFree() float64 {
	if c.RiskFreeRate == nil {
		return DefaultRiskFreeRate
	}
	return *c.RiskFreeRate
}

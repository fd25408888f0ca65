package config

import (
	"fmt"
	"os"

	"github.com/aristath/sentinel-quant/internal/domain"
	"github.com/aristath/sentinel-quant/internal/market_regime"
	"github.com/aristath/sentinel-quant/internal/modules/analysis"
	"github.com/aristath/sentinel-quant/internal/modules/backtest"
	"github.com/aristath/sentinel-quant/internal/modules/optimization"
	"github.com/aristath/sentinel-quant/internal/modules/taxlots"
	"gopkg.in/yaml.v3"
)

// EngineDefaults are the model constants used when a request leaves them unset
type EngineDefaults struct {
	RiskFreeRate      float64                            `yaml:"risk_free_rate"` // Annual, decimal
	Frontier          optimization.FrontierOptions       `yaml:"frontier"`
	BlackLitterman    optimization.BlackLittermanOptions `yaml:"black_litterman"`
	HRP               optimization.HRPOptions            `yaml:"hrp"`
	TaxRates          taxlots.TaxRates                   `yaml:"tax_rates"`
	RegimeLookback    int                                `yaml:"regime_lookback"`
	CorrelationWindow int                                `yaml:"correlation_window"`
}

// DefaultEngineDefaults returns the built-in constants
func DefaultEngineDefaults() EngineDefaults {
	return EngineDefaults{
		RiskFreeRate:      backtest.DefaultRiskFreeRate,
		Frontier:          optimization.DefaultFrontierOptions(),
		BlackLitterman:    optimization.DefaultBlackLittermanOptions(),
		HRP:               optimization.HRPOptions{Ordering: optimization.HRPOrderingAverageDistance},
		TaxRates:          taxlots.DefaultTaxRates(),
		RegimeLookback:    market_regime.DefaultLookback,
		CorrelationWindow: backtest.DefaultCorrelationWindow,
	}
}

// LoadEngineDefaults overlays the YAML file at path on the built-in constants.
// Keys missing from the file keep their defaults.
func LoadEngineDefaults(path string) (EngineDefaults, error) {
	d := DefaultEngineDefaults()
	raw, err := os.ReadFile(path)
	if err != nil {
		return d, fmt.Errorf("%w: read engine defaults: %v", domain.ErrConfiguration, err)
	}
	if err := yaml.Unmarshal(raw, &d); err != nil {
		return d, fmt.Errorf("%w: parse engine defaults %s: %v", domain.ErrConfiguration, path, err)
	}
	return d, d.Validate()
}

// Validate rejects out-of-range constants
func (e EngineDefaults) Validate() error {
	bad := func(format string, args ...interface{}) error {
		return fmt.Errorf("%w: engine defaults: "+format, append([]interface{}{domain.ErrConfiguration}, args...)...)
	}
	switch {
	case e.RiskFreeRate < 0 || e.RiskFreeRate > 0.5:
		return bad("risk_free_rate %v outside [0, 0.5]", e.RiskFreeRate)
	case e.Frontier.NumSimulations < 100:
		return bad("frontier.num_simulations must be at least 100")
	case e.Frontier.BucketWidth <= 0:
		return bad("frontier.bucket_width must be positive")
	case e.Frontier.TargetPoints < 2:
		return bad("frontier.target_points must be at least 2")
	case e.BlackLitterman.RiskAversion <= 0:
		return bad("black_litterman.risk_aversion must be positive")
	case e.BlackLitterman.Tau <= 0 || e.BlackLitterman.Tau > 1:
		return bad("black_litterman.tau %v outside (0, 1]", e.BlackLitterman.Tau)
	case e.BlackLitterman.MarketRiskPremium < 0 || e.BlackLitterman.MarketRiskPremium > 1:
		return bad("black_litterman.market_risk_premium %v outside [0, 1]", e.BlackLitterman.MarketRiskPremium)
	case e.HRP.Ordering != "" && !e.HRP.Ordering.Valid():
		return bad("unknown hrp.ordering %q", e.HRP.Ordering)
	case e.TaxRates.LongTerm < 0 || e.TaxRates.LongTerm > 1 || e.TaxRates.ShortTerm < 0 || e.TaxRates.ShortTerm > 1:
		return bad("tax rates must be within [0, 1]")
	case e.RegimeLookback < market_regime.MinObservations:
		return bad("regime_lookback must be at least %d", market_regime.MinObservations)
	case e.CorrelationWindow < 20:
		return bad("correlation_window must be at least 20")
	}
	return nil
}

// AnalysisOptions converts the constants for the analysis service. The frontier's
// Sharpe uses the engine risk-free rate, in percent.
func (e EngineDefaults) AnalysisOptions() analysis.Options {
	frontier := e.Frontier
	frontier.RiskFreeRate = e.RiskFreeRate * 100
	return analysis.Options{
		Frontier:       frontier,
		BlackLitterman: e.BlackLitterman,
		HRP:            e.HRP,
		RegimeLookback: e.RegimeLookback,
	}
}

// ApplyTo fills the backtest fields a request left unset. Explicit zero rates are kept.
func (e EngineDefaults) ApplyTo(cfg backtest.Config) backtest.Config {
	if cfg.RiskFreeRate == nil {
		rf := e.RiskFreeRate
		cfg.RiskFreeRate = &rf
	}
	if cfg.TaxRates == nil {
		rates := e.TaxRates
		cfg.TaxRates = &rates
	}
	if cfg.HRP.Ordering == "" {
		cfg.HRP = e.HRP
	}
	if cfg.RegimeLookback <= 0 {
		cfg.RegimeLookback = e.RegimeLookback
	}
	if cfg.CorrelationWindow <= 0 {
		cfg.CorrelationWindow = e.CorrelationWindow
	}
	return cfg
}

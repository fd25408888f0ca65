// Package risk computes the tail, distribution and concentration metrics reported
// alongside a portfolio's performance.
package risk

import (
	"math"

	"github.com/aristath/sentinel-quant/pkg/formulas"
)

// AdvancedInput is the daily return and value history of one portfolio
type AdvancedInput struct {
	DailyReturns     []float64          `json:"daily_returns" validate:"required,min=2"`
	PortfolioValues  []float64          `json:"portfolio_values"`
	Weights          map[string]float64 `json:"weights"`
	AnnualizedReturn float64            `json:"annualized_return"` // Percent
	MaxDrawdown      float64            `json:"max_drawdown"`      // Percent
	Beta             *float64           `json:"beta,omitempty"`    // Derived from BenchmarkReturns when nil
	BenchmarkReturns []float64          `json:"benchmark_returns,omitempty"`
	RiskFreeRate     float64            `json:"risk_free_rate"` // Annual, decimal
}

// AdvancedRiskMetrics is the full risk report. Percent fields are positive magnitudes.
type AdvancedRiskMetrics struct {
	VaR95  float64 `json:"var_95"`
	VaR99  float64 `json:"var_99"`
	CVaR95 float64 `json:"cvar_95"`
	CVaR99 float64 `json:"cvar_99"`

	Skewness  float64 `json:"skewness"`
	Kurtosis  float64 `json:"kurtosis"`
	TailRatio float64 `json:"tail_ratio"`

	SortinoRatio float64 `json:"sortino_ratio"`
	CalmarRatio  float64 `json:"calmar_ratio"`
	OmegaRatio   float64 `json:"omega_ratio"`
	UlcerIndex   float64 `json:"ulcer_index"`

	Beta             *float64 `json:"beta,omitempty"`
	TreynorRatio     *float64 `json:"treynor_ratio,omitempty"`
	InformationRatio *float64 `json:"information_ratio,omitempty"`

	RecoveryPeriods int `json:"recovery_periods"` // -1 when the deepest drawdown has not recovered

	HerfindahlIndex float64 `json:"herfindahl_index"`
	EffectiveAssets float64 `json:"effective_assets"`
	MaxWeight       float64 `json:"max_weight"`
}

// CalculateAllAdvancedMetrics computes every advanced metric from one input. Metrics
// that need a benchmark are nil without one.
func CalculateAllAdvancedMetrics(in AdvancedInput) AdvancedRiskMetrics {
	r := in.DailyReturns
	m := AdvancedRiskMetrics{
		VaR95:  formulas.ValueAtRisk(r, 0.95),
		VaR99:  formulas.ValueAtRisk(r, 0.99),
		CVaR95: formulas.ConditionalValueAtRisk(r, 0.95),
		CVaR99: formulas.ConditionalValueAtRisk(r, 0.99),

		Skewness:  formulas.Skewness(r),
		Kurtosis:  formulas.Kurtosis(r),
		TailRatio: formulas.TailRatio(r),

		SortinoRatio: formulas.SortinoRatio(r, in.RiskFreeRate),
		CalmarRatio:  formulas.CalmarRatio(in.AnnualizedReturn, in.MaxDrawdown),
		OmegaRatio:   formulas.OmegaRatio(r, 0),
		UlcerIndex:   formulas.UlcerIndex(in.PortfolioValues),

		RecoveryPeriods: formulas.MaxDrawdown(in.PortfolioValues).RecoveryPeriods,
	}

	beta := in.Beta
	if beta == nil && len(in.BenchmarkReturns) > 1 {
		b := formulas.Beta(r, in.BenchmarkReturns)
		beta = &b
	}
	if beta != nil {
		m.Beta = beta
		t := formulas.TreynorRatio(in.AnnualizedReturn, in.RiskFreeRate*100, *beta)
		m.TreynorRatio = &t
	}
	if len(in.BenchmarkReturns) > 1 {
		ir := formulas.InformationRatio(r, in.BenchmarkReturns)
		m.InformationRatio = &ir
	}

	m.HerfindahlIndex, m.EffectiveAssets, m.MaxWeight = Concentration(in.Weights)
	return m
}

// Concentration returns the Herfindahl index of the weights, the effective number of
// assets (1/HHI) and the largest weight. Weights are normalized by their absolute sum.
func Concentration(weights map[string]float64) (hhi, effective, maxWeight float64) {
	total := 0.0
	for _, w := range weights {
		total += math.Abs(w)
	}
	if total == 0 {
		return 0, 0, 0
	}
	for _, w := range weights {
		n := math.Abs(w) / total
		hhi += n * n
		if n > maxWeight {
			maxWeight = n
		}
	}
	return hhi, 1 / hhi, maxWeight
}

package risk

import (
	"fmt"

	"github.com/aristath/sentinel-quant/internal/domain"
	"github.com/aristath/sentinel-quant/pkg/formulas"
)

// SeriesInput describes a portfolio by its value path or its daily returns. Fields
// left nil are derived from the series.
type SeriesInput struct {
	DailyReturns     []float64          `json:"daily_returns"`
	PortfolioValues  []float64          `json:"portfolio_values"`
	Weights          map[string]float64 `json:"weights"`
	AnnualizedReturn *float64           `json:"annualized_return"` // Percent
	MaxDrawdown      *float64           `json:"max_drawdown"`      // Percent
	Beta             *float64           `json:"beta"`
	BenchmarkReturns []float64          `json:"benchmark_returns"`
	RiskFreeRate     float64            `json:"risk_free_rate" validate:"gte=0,lte=0.5"` // Annual, decimal
}

// Summary is the advanced metric set plus the headline figures it was derived from
type Summary struct {
	AdvancedRiskMetrics
	AnnualizedReturn float64 `json:"annualized_return"` // Percent
	Volatility       float64 `json:"volatility"`        // Annualized, percent
	SharpeRatio      float64 `json:"sharpe_ratio"`
	MaxDrawdown      float64 `json:"max_drawdown"` // Percent
	Observations     int     `json:"observations"`
}

// Summarize computes every metric for one series. Returns are derived from values when
// absent; at least two returns are required.
func Summarize(in SeriesInput) (Summary, error) {
	returns := in.DailyReturns
	if len(returns) == 0 && len(in.PortfolioValues) > 1 {
		for _, v := range in.PortfolioValues {
			if v <= 0 {
				return Summary{}, fmt.Errorf("%w: portfolio values must be positive", domain.ErrConfiguration)
			}
		}
		returns = formulas.CalculateReturns(in.PortfolioValues)
	}
	if len(returns) < 2 {
		return Summary{}, fmt.Errorf("%w: at least two daily returns or three portfolio values are required", domain.ErrConfiguration)
	}

	values := in.PortfolioValues
	if len(values) == 0 {
		values = valuesFromReturns(returns)
	}

	annualized := formulas.AnnualizedMeanReturn(returns) * 100
	if in.AnnualizedReturn != nil {
		annualized = *in.AnnualizedReturn
	}
	maxDD := formulas.MaxDrawdown(values).MaxDrawdownPercent
	if in.MaxDrawdown != nil {
		maxDD = *in.MaxDrawdown
	}

	metrics := CalculateAllAdvancedMetrics(AdvancedInput{
		DailyReturns:     returns,
		PortfolioValues:  values,
		Weights:          in.Weights,
		AnnualizedReturn: annualized,
		MaxDrawdown:      maxDD,
		Beta:             in.Beta,
		BenchmarkReturns: in.BenchmarkReturns,
		RiskFreeRate:     in.RiskFreeRate,
	})

	return Summary{
		AdvancedRiskMetrics: metrics,
		AnnualizedReturn:    annualized,
		Volatility:          formulas.AnnualizedVolatility(returns) * 100,
		SharpeRatio:         formulas.SharpeRatio(returns, in.RiskFreeRate),
		MaxDrawdown:         maxDD,
		Observations:        len(returns),
	}, nil
}

// valuesFromReturns compounds returns from a base of 1
func valuesFromReturns(returns []float64) []float64 {
	values := make([]float64, len(returns)+1)
	values[0] = 1
	for i, r := range returns {
		values[i+1] = values[i] * (1 + r)
	}
	return values
}

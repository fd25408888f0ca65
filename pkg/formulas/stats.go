// Package formulas provides the pure statistical and risk-metric functions used by the
// optimizers and the backtest engine. Every function is side-effect free and returns a
// documented default instead of an error when the input is too short.
package formulas

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// TradingDaysPerYear is the annualization factor for daily series.
const TradingDaysPerYear = 252

// RatioSentinel caps ratios whose denominator vanishes (Sortino, Omega) so results stay
// finite and comparable.
const RatioSentinel = 10.0

// Mean calculates the arithmetic mean of a slice of float64 values
func Mean(data []float64) float64 {
	if len(data) == 0 {
		return 0
	}
	return stat.Mean(data, nil)
}

// StdDev calculates the sample standard deviation (n-1 denominator).
// Returns 0 for fewer than two observations.
func StdDev(data []float64) float64 {
	if len(data) < 2 {
		return 0
	}
	return stat.StdDev(data, nil)
}

// Variance calculates the sample variance (n-1 denominator).
func Variance(data []float64) float64 {
	if len(data) < 2 {
		return 0
	}
	return stat.Variance(data, nil)
}

// AnnualizedVolatility calculates annualized volatility from daily returns as a decimal.
// Formula: Std Dev of Daily Returns × sqrt(252)
func AnnualizedVolatility(dailyReturns []float64) float64 {
	return StdDev(dailyReturns) * math.Sqrt(TradingDaysPerYear)
}

// AnnualizedMeanReturn scales the arithmetic mean daily return to a year (decimal).
func AnnualizedMeanReturn(dailyReturns []float64) float64 {
	return Mean(dailyReturns) * TradingDaysPerYear
}

// CalculateReturns converts prices to simple returns.
// Returns[i] = (Price[i+1] - Price[i]) / Price[i]
func CalculateReturns(prices []float64) []float64 {
	if len(prices) < 2 {
		return []float64{}
	}

	returns := make([]float64, len(prices)-1)
	for i := 1; i < len(prices); i++ {
		if prices[i-1] != 0 {
			returns[i-1] = (prices[i] - prices[i-1]) / prices[i-1]
		}
	}

	return returns
}

// CalculateLogReturns converts prices to continuously compounded returns.
// Non-positive prices produce a zero return for that step.
func CalculateLogReturns(prices []float64) []float64 {
	if len(prices) < 2 {
		return []float64{}
	}

	returns := make([]float64, len(prices)-1)
	for i := 1; i < len(prices); i++ {
		if prices[i-1] > 0 && prices[i] > 0 {
			returns[i-1] = math.Log(prices[i] / prices[i-1])
		}
	}

	return returns
}

// CAGR calculates the compound annual growth rate as a decimal.
// Formula: (end/start)^(1/years) - 1; years <= 0 or start <= 0 yields 0.
func CAGR(start, end, years float64) float64 {
	if years <= 0 || start <= 0 || end < 0 {
		return 0
	}
	return math.Pow(end/start, 1/years) - 1
}

// CalculateAnnualReturn calculates annualized return from daily returns by compounding
// and scaling the trading-day count to a year.
//
// Formula: ((1+r1)*(1+r2)*...*(1+rN))^(252/N) - 1
func CalculateAnnualReturn(returns []float64) float64 {
	if len(returns) == 0 {
		return 0.0
	}

	cumulative := 1.0
	for _, r := range returns {
		cumulative *= (1 + r)
	}

	// Very short periods would annualize to nonsense
	if len(returns) < 3 {
		return cumulative - 1
	}

	years := float64(len(returns)) / TradingDaysPerYear
	return math.Pow(cumulative, 1.0/years) - 1
}

// Correlation calculates the Pearson correlation coefficient between two datasets.
// Returns 0 when either series has no variance.
func Correlation(x, y []float64) float64 {
	if len(x) < 2 || len(x) != len(y) {
		return 0
	}
	c := stat.Correlation(x, y, nil)
	if math.IsNaN(c) || math.IsInf(c, 0) {
		return 0
	}
	return c
}

// Covariance calculates the sample covariance between two datasets
func Covariance(x, y []float64) float64 {
	if len(x) < 2 || len(x) != len(y) {
		return 0
	}
	return stat.Covariance(x, y, nil)
}

// Beta calculates the sensitivity of returns to benchmark returns (cov/var).
// Series are aligned on their most recent common observations. Returns 0 when the
// benchmark has no variance.
func Beta(returns, benchmark []float64) float64 {
	r, b := alignTail(returns, benchmark)
	if len(r) < 2 {
		return 0
	}
	v := Variance(b)
	if v == 0 {
		return 0
	}
	return Covariance(r, b) / v
}

// alignTail truncates both slices to their shortest common length, keeping the most
// recent observations.
func alignTail(a, b []float64) ([]float64, []float64) {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	return a[len(a)-n:], b[len(b)-n:]
}

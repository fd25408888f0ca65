package formulas

import "math"

// SharpeRatio calculates the annualized Sharpe ratio of daily returns.
//
//	excess = r - annualRiskFree/252
//	Sharpe = mean(excess) / stdev(excess) * sqrt(252)
//
// Returns 0 when the excess returns have no dispersion.
func SharpeRatio(returns []float64, annualRiskFree float64) float64 {
	if len(returns) < 2 {
		return 0
	}

	dailyRF := annualRiskFree / TradingDaysPerYear
	excess := make([]float64, len(returns))
	for i, r := range returns {
		excess[i] = r - dailyRF
	}

	sd := StdDev(excess)
	if sd == 0 {
		return 0
	}
	return Mean(excess) / sd * math.Sqrt(TradingDaysPerYear)
}

// SortinoRatio calculates the annualized Sortino ratio of daily returns against a
// minimum acceptable return (annual, decimal).
//
//	downside = sqrt(mean(min(0, r - MAR/252)^2))
//	Sortino  = (mean(r) - MAR/252) / downside * sqrt(252)
//
// With no downside the ratio is RatioSentinel when the mean excess is positive, else 0.
func SortinoRatio(returns []float64, annualMAR float64) float64 {
	if len(returns) == 0 {
		return 0
	}

	dailyMAR := annualMAR / TradingDaysPerYear
	sumSq := 0.0
	for _, r := range returns {
		d := math.Min(0, r-dailyMAR)
		sumSq += d * d
	}
	downside := math.Sqrt(sumSq / float64(len(returns)))
	meanExcess := Mean(returns) - dailyMAR

	if downside == 0 {
		if meanExcess > 0 {
			return RatioSentinel
		}
		return 0
	}
	return meanExcess / downside * math.Sqrt(TradingDaysPerYear)
}

// CalmarRatio divides the annualized return by the maximum drawdown. Both arguments
// must use the same unit (percent in the engine). Returns 0 for a zero drawdown.
func CalmarRatio(annualizedReturn, maxDrawdown float64) float64 {
	if maxDrawdown == 0 {
		return 0
	}
	return annualizedReturn / math.Abs(maxDrawdown)
}

// TreynorRatio is excess return per unit of systematic risk.
// Returns 0 when beta is 0.
func TreynorRatio(annualizedReturn, riskFreeRate, beta float64) float64 {
	if beta == 0 {
		return 0
	}
	return (annualizedReturn - riskFreeRate) / beta
}

// InformationRatio is the annualized mean active return over its tracking error.
// Series are aligned on their most recent common observations.
func InformationRatio(returns, benchmark []float64) float64 {
	r, b := alignTail(returns, benchmark)
	if len(r) < 2 {
		return 0
	}

	active := make([]float64, len(r))
	for i := range r {
		active[i] = r[i] - b[i]
	}

	te := StdDev(active)
	if te == 0 {
		return 0
	}
	return Mean(active) / te * math.Sqrt(TradingDaysPerYear)
}

// OmegaRatio is 1 + (sum of gains above threshold) / (sum of losses below threshold).
// With no losses it is RatioSentinel when there are gains, else 1.
func OmegaRatio(returns []float64, threshold float64) float64 {
	gains, losses := 0.0, 0.0
	for _, r := range returns {
		if r > threshold {
			gains += r - threshold
		} else if r < threshold {
			losses += threshold - r
		}
	}

	if losses == 0 {
		if gains > 0 {
			return RatioSentinel
		}
		return 1
	}
	return 1 + gains/losses
}

package formulas

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// Skewness returns the adjusted Fisher-Pearson sample skewness.
// Undefined below 3 observations or for a constant series (returns 0).
func Skewness(returns []float64) float64 {
	if len(returns) < 3 || StdDev(returns) == 0 {
		return 0
	}
	s := stat.Skew(returns, nil)
	if math.IsNaN(s) {
		return 0
	}
	return s
}

// Kurtosis returns the sample excess kurtosis with small-sample correction.
// Undefined below 4 observations or for a constant series (returns 0).
func Kurtosis(returns []float64) float64 {
	if len(returns) < 4 || StdDev(returns) == 0 {
		return 0
	}
	k := stat.ExKurtosis(returns, nil)
	if math.IsNaN(k) {
		return 0
	}
	return k
}

// TailRatio divides the mean of the best 5% of returns by the magnitude of the mean of
// the worst 5%. Needs at least 20 observations, otherwise 1.
func TailRatio(returns []float64) float64 {
	const minSamples = 20
	if len(returns) < minSamples {
		return 1
	}

	sorted := sortedCopy(returns)
	k := int(math.Floor(float64(len(sorted)) * 0.05))
	if k < 1 {
		k = 1
	}

	top := Mean(sorted[len(sorted)-k:])
	bottom := math.Abs(Mean(sorted[:k]))
	if bottom == 0 {
		return 1
	}
	return top / bottom
}

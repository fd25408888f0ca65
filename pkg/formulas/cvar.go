package formulas

import (
	"math"
	"sort"
)

// ValueAtRisk calculates historical VaR at the given confidence level.
// The returns are sorted ascending and the value at index floor(n*(1-confidence))
// is reported as a positive percentage.
func ValueAtRisk(returns []float64, confidence float64) float64 {
	if len(returns) == 0 {
		return 0
	}

	sorted := sortedCopy(returns)
	return math.Abs(sorted[varIndex(len(sorted), confidence)]) * 100
}

// ConditionalValueAtRisk (expected shortfall) averages the tail below the VaR cutoff.
// The tail always holds at least one observation. Reported as a positive percentage.
func ConditionalValueAtRisk(returns []float64, confidence float64) float64 {
	if len(returns) == 0 {
		return 0
	}

	sorted := sortedCopy(returns)
	tailCount := varIndex(len(sorted), confidence)
	if tailCount < 1 {
		tailCount = 1
	}

	return math.Abs(Mean(sorted[:tailCount])) * 100
}

func varIndex(n int, confidence float64) int {
	idx := int(math.Floor(float64(n) * (1 - confidence)))
	if idx < 0 {
		idx = 0
	}
	if idx > n-1 {
		idx = n - 1
	}
	return idx
}

func sortedCopy(values []float64) []float64 {
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)
	return sorted
}

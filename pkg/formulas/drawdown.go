package formulas

import "math"

// DrawdownMetrics describes the deepest peak-to-trough decline of a value series.
type DrawdownMetrics struct {
	MaxDrawdown        float64 `json:"max_drawdown"`         // Fraction, 0.25 = 25% below peak
	MaxDrawdownPercent float64 `json:"max_drawdown_percent"` // Same, in percent
	PeakIndex          int     `json:"peak_index"`
	TroughIndex        int     `json:"trough_index"`
	RecoveryIndex      int     `json:"recovery_index"`   // -1 when the peak was never regained
	RecoveryPeriods    int     `json:"recovery_periods"` // Trough to recovery, -1 when not recovered
}

// MaxDrawdown tracks the running peak left to right and reports the largest
// (peak - value) / peak, the peak and trough positions, and the first later index where
// the series regains the original peak.
func MaxDrawdown(values []float64) DrawdownMetrics {
	result := DrawdownMetrics{RecoveryIndex: -1, RecoveryPeriods: -1}
	if len(values) == 0 {
		return result
	}

	peak := values[0]
	peakIdx := 0
	for i, v := range values {
		if v > peak {
			peak = v
			peakIdx = i
			continue
		}
		if peak <= 0 {
			continue
		}
		dd := (peak - v) / peak
		if dd > result.MaxDrawdown {
			result.MaxDrawdown = dd
			result.PeakIndex = peakIdx
			result.TroughIndex = i
		}
	}

	if result.MaxDrawdown == 0 {
		return result
	}

	result.MaxDrawdownPercent = result.MaxDrawdown * 100
	target := values[result.PeakIndex]
	for i := result.TroughIndex + 1; i < len(values); i++ {
		if values[i] >= target {
			result.RecoveryIndex = i
			result.RecoveryPeriods = i - result.TroughIndex
			break
		}
	}

	return result
}

// DrawdownSeries returns the percentage drawdown from the running peak at every point.
func DrawdownSeries(values []float64) []float64 {
	out := make([]float64, len(values))
	peak := math.Inf(-1)
	for i, v := range values {
		if v > peak {
			peak = v
		}
		if peak > 0 {
			out[i] = (peak - v) / peak * 100
		}
	}
	return out
}

// UlcerIndex is the root mean square of percentage drawdowns.
func UlcerIndex(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}

	sumSq := 0.0
	for _, dd := range DrawdownSeries(values) {
		sumSq += dd * dd
	}
	return math.Sqrt(sumSq / float64(len(values)))
}

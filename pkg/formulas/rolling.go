package formulas

import (
	"math"

	"github.com/markcheno/go-talib"
)

// RollingVolatility returns the annualized volatility (percent) of each trailing window
// of daily returns. Positions before the first full window are 0.
//
// go-talib's StdDev uses the population estimator, which is what charting consumers
// expect for a rolling band.
func RollingVolatility(returns []float64, window int) []float64 {
	out := make([]float64, len(returns))
	if window < 2 || len(returns) < window {
		return out
	}

	sd := talib.StdDev(returns, window, 1.0)
	scale := math.Sqrt(TradingDaysPerYear) * 100
	for i := window - 1; i < len(sd) && i < len(out); i++ {
		if !math.IsNaN(sd[i]) {
			out[i] = sd[i] * scale
		}
	}
	return out
}

// SMA calculates the trailing simple moving average of the last `length` values.
// Returns 0 and false when there is not enough data.
func SMA(values []float64, length int) (float64, bool) {
	if length <= 0 || len(values) < length {
		return 0, false
	}

	sma := talib.Sma(values, length)
	last := sma[len(sma)-1]
	if math.IsNaN(last) {
		return Mean(values[len(values)-length:]), true
	}
	return last, true
}

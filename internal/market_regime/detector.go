// Package market_regime classifies recent market behaviour into volatility regimes.
package market_regime

import (
	"math"
	"time"

	"github.com/aristath/sentinel-quant/internal/domain"
	"github.com/aristath/sentinel-quant/pkg/formulas"
	"github.com/rs/zerolog"
)

const (
	// DefaultLookback is the trailing window in trading days
	DefaultLookback = 60

	// RecentWindow is the number of most recent observations behind "recent volatility"
	RecentWindow = 5

	// MinObservations below which the detector falls back to DefaultSignal
	MinObservations = 10

	crisisThreshold  = 25.0
	highVolThreshold = 15.0
	normalThreshold  = 8.0
)

// Detector classifies regimes from a turbulence index: the ratio of very recent
// volatility of an equal-weighted basket to its trailing volatility.
type Detector struct {
	lookback int
	log      zerolog.Logger
}

// NewDetector creates a regime detector. A non-positive lookback uses DefaultLookback.
func NewDetector(lookback int, log zerolog.Logger) *Detector {
	if lookback <= 0 {
		lookback = DefaultLookback
	}
	return &Detector{
		lookback: lookback,
		log:      log.With().Str("component", "regime_detector").Logger(),
	}
}

// Lookback returns the trailing window used by the detector
func (d *Detector) Lookback() int {
	return d.lookback
}

// DefaultSignal is reported when there is not enough history to measure anything
func DefaultSignal(asOf time.Time) domain.RegimeSignal {
	return domain.RegimeSignal{
		Regime:          domain.RegimeNormal,
		TurbulenceIndex: 10,
		Volatility:      15,
		AsOf:            asOf,
	}
}

// Classify maps a turbulence index to a regime
func Classify(turbulence float64) domain.Regime {
	switch {
	case turbulence > crisisThreshold:
		return domain.RegimeCrisis
	case turbulence > highVolThreshold:
		return domain.RegimeHighVol
	case turbulence > normalThreshold:
		return domain.RegimeNormal
	default:
		return domain.RegimeLowVol
	}
}

// Detect classifies the regime from trailing daily return series per ticker. Each series
// must end at asOf; only the last lookback observations common to all series are used.
func (d *Detector) Detect(returns map[string][]float64, asOf time.Time) domain.RegimeSignal {
	return d.DetectFromBasket(EqualWeightedReturns(returns, d.lookback), asOf)
}

// DetectAssets runs Detect over the full history of each asset, as of the latest bar
// date they share.
func (d *Detector) DetectAssets(assets map[string]*domain.AssetData) domain.RegimeSignal {
	returns := make(map[string][]float64, len(assets))
	var asOf time.Time
	for ticker, a := range assets {
		if a == nil {
			continue
		}
		returns[ticker] = a.Returns
		if n := len(a.Bars); n > 0 && (asOf.IsZero() || a.Bars[n-1].Date.Before(asOf)) {
			asOf = a.Bars[n-1].Date
		}
	}
	return d.Detect(returns, asOf)
}

// DetectFromBasket classifies an already averaged daily return series
func (d *Detector) DetectFromBasket(basket []float64, asOf time.Time) domain.RegimeSignal {
	if len(basket) > d.lookback {
		basket = basket[len(basket)-d.lookback:]
	}
	if len(basket) < MinObservations {
		d.log.Debug().
			Int("observations", len(basket)).
			Msg("Insufficient history for regime detection, using default")
		return DefaultSignal(asOf)
	}

	annualize := math.Sqrt(formulas.TradingDaysPerYear) * 100
	volatility := formulas.StdDev(basket) * annualize
	recent := formulas.StdDev(basket[len(basket)-RecentWindow:]) * annualize
	turbulence := recent / math.Max(volatility, 1) * 10

	signal := domain.RegimeSignal{
		Regime:          Classify(turbulence),
		TurbulenceIndex: turbulence,
		Volatility:      volatility,
		AsOf:            asOf,
	}

	d.log.Debug().
		Str("regime", string(signal.Regime)).
		Float64("turbulence", turbulence).
		Float64("volatility", volatility).
		Float64("recent_volatility", recent).
		Msg("Detected market regime")

	return signal
}

// EqualWeightedReturns averages the series position by position after aligning them on
// their most recent observations and trimming to at most lookback points. Tickers are
// visited in no particular order; the average does not depend on it.
func EqualWeightedReturns(returns map[string][]float64, lookback int) []float64 {
	minLen := -1
	for _, r := range returns {
		if minLen < 0 || len(r) < minLen {
			minLen = len(r)
		}
	}
	if minLen <= 0 {
		return []float64{}
	}
	if lookback > 0 && minLen > lookback {
		minLen = lookback
	}

	basket := make([]float64, minLen)
	for _, r := range returns {
		tail := r[len(r)-minLen:]
		for i, v := range tail {
			basket[i] += v
		}
	}
	for i := range basket {
		basket[i] /= float64(len(returns))
	}
	return basket
}

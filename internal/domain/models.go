// Package domain provides core domain models and types shared by the engine packages.
package domain

import "time"

// PriceBar is one daily OHLCV observation
type PriceBar struct {
	Date   time.Time `json:"date" msgpack:"d"`
	Open   float64   `json:"open" msgpack:"o"`
	High   float64   `json:"high" msgpack:"h"`
	Low    float64   `json:"low" msgpack:"l"`
	Close  float64   `json:"close" msgpack:"c"`
	Volume int64     `json:"volume" msgpack:"v"`
}

// AssetData is a ticker's price history with derived return statistics.
// Bars are strictly increasing by date and every close is positive.
type AssetData struct {
	Ticker     string     `json:"ticker"`
	Bars       []PriceBar `json:"bars"`
	Returns    []float64  `json:"returns"`     // Simple daily returns, len(Bars)-1
	LogReturns []float64  `json:"log_returns"` // Continuously compounded daily returns
	Volatility float64    `json:"volatility"`  // Annualized, percent
	// ExpectedReturn is the annualized arithmetic mean daily return, percent
	ExpectedReturn float64 `json:"expected_return"`
}

// Closes returns the close prices in bar order
func (a *AssetData) Closes() []float64 {
	closes := make([]float64, len(a.Bars))
	for i, b := range a.Bars {
		closes[i] = b.Close
	}
	return closes
}

// Dates returns the bar dates in order
func (a *AssetData) Dates() []time.Time {
	dates := make([]time.Time, len(a.Bars))
	for i, b := range a.Bars {
		dates[i] = b.Date
	}
	return dates
}

// PortfolioWeights maps symbol to weight. Weights sum to 1 once normalized.
type PortfolioWeights map[string]float64

// Sum returns the total of all weights
func (w PortfolioWeights) Sum() float64 {
	total := 0.0
	for _, v := range w {
		total += v
	}
	return total
}

// Normalize scales weights to sum to 1. Returns a copy; a zero total yields a copy
// of the input unchanged.
func (w PortfolioWeights) Normalize() PortfolioWeights {
	out := make(PortfolioWeights, len(w))
	total := w.Sum()
	for k, v := range w {
		if total > 0 {
			out[k] = v / total
		} else {
			out[k] = v
		}
	}
	return out
}

// Clone returns an independent copy
func (w PortfolioWeights) Clone() PortfolioWeights {
	out := make(PortfolioWeights, len(w))
	for k, v := range w {
		out[k] = v
	}
	return out
}

// InvestorView is a conviction on a single asset's weight
type InvestorView struct {
	Symbol       string  `json:"symbol" validate:"required"`
	TargetWeight float64 `json:"target_weight" validate:"gte=0,lte=1"`
	Confidence   float64 `json:"confidence" validate:"gte=0,lte=1"`
}

// Regime is a coarse market-state label
type Regime string

const (
	RegimeLowVol  Regime = "low_vol"
	RegimeNormal  Regime = "normal"
	RegimeHighVol Regime = "high_vol"
	RegimeCrisis  Regime = "crisis"
)

// AllRegimes lists regimes from calmest to most stressed
var AllRegimes = []Regime{RegimeLowVol, RegimeNormal, RegimeHighVol, RegimeCrisis}

// Valid reports whether r is a known regime
func (r Regime) Valid() bool {
	switch r {
	case RegimeLowVol, RegimeNormal, RegimeHighVol, RegimeCrisis:
		return true
	}
	return false
}

// RegimeSignal is the output of regime detection at a point in time
type RegimeSignal struct {
	Regime          Regime    `json:"regime"`
	TurbulenceIndex float64   `json:"turbulence_index"`
	Volatility      float64   `json:"volatility"` // Trailing annualized volatility, percent
	AsOf            time.Time `json:"as_of"`
}

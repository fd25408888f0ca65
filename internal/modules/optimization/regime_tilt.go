package optimization

import (
	"strings"

	"github.com/aristath/sentinel-quant/internal/domain"
)

// AssetClass groups tickers by how they behave under market stress
type AssetClass string

const (
	AssetClassDefensive AssetClass = "defensive"
	AssetClassGrowth    AssetClass = "growth"
	AssetClassNeutral   AssetClass = "neutral"
)

// Gold, long and inflation-linked treasuries, real estate and aggregate bonds
var defensiveTickers = map[string]bool{
	"GLD": true, "IAU": true, "TLT": true, "EDV": true, "TIP": true,
	"SCHP": true, "VNQ": true, "AGG": true, "BND": true,
}

// Tech, momentum and small-cap funds
var growthTickers = map[string]bool{
	"QQQ": true, "XLK": true, "VGT": true, "MTUM": true, "IWM": true,
	"VB": true, "ARKK": true, "SMH": true,
}

// ClassifyAsset returns the tilt class of a ticker (case-insensitive)
func ClassifyAsset(ticker string) AssetClass {
	t := strings.ToUpper(strings.TrimSpace(ticker))
	switch {
	case defensiveTickers[t]:
		return AssetClassDefensive
	case growthTickers[t]:
		return AssetClassGrowth
	default:
		return AssetClassNeutral
	}
}

// TiltMultipliers are applied to growth and defensive weights before renormalizing
type TiltMultipliers struct {
	Growth    float64 `json:"growth"`
	Defensive float64 `json:"defensive"`
}

// RegimeMultipliers returns the tilt for a regime. Unknown regimes do not tilt.
func RegimeMultipliers(regime domain.Regime) TiltMultipliers {
	switch regime {
	case domain.RegimeLowVol:
		return TiltMultipliers{Growth: 1.2, Defensive: 0.8}
	case domain.RegimeHighVol:
		return TiltMultipliers{Growth: 0.7, Defensive: 1.3}
	case domain.RegimeCrisis:
		return TiltMultipliers{Growth: 0.4, Defensive: 1.6}
	default:
		return TiltMultipliers{Growth: 1.0, Defensive: 1.0}
	}
}

// AdjustForRegime tilts weights toward defensive assets in stressed regimes and toward
// growth assets in calm ones, then renormalizes to sum to 1. Neutral assets keep their
// raw weight. The input is not modified.
func AdjustForRegime(weights domain.PortfolioWeights, regime domain.Regime) domain.PortfolioWeights {
	m := RegimeMultipliers(regime)
	adjusted := make(domain.PortfolioWeights, len(weights))
	for ticker, w := range weights {
		switch ClassifyAsset(ticker) {
		case AssetClassDefensive:
			adjusted[ticker] = w * m.Defensive
		case AssetClassGrowth:
			adjusted[ticker] = w * m.Growth
		default:
			adjusted[ticker] = w
		}
	}
	return adjusted.Normalize()
}

// AdjustForRegime applies the regime tilt and logs the change
func (hrp *HRPOptimizer) AdjustForRegime(weights domain.PortfolioWeights, regime domain.Regime) domain.PortfolioWeights {
	adjusted := AdjustForRegime(weights, regime)
	hrp.log.Debug().
		Str("regime", string(regime)).
		Int("assets", len(adjusted)).
		Msg("Applied regime tilt")
	return adjusted
}

package optimization

import (
	"math"

	"github.com/aristath/sentinel-quant/internal/domain"
	"github.com/aristath/sentinel-quant/internal/modules/correlation"
	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/mat"
)

// BlackLittermanOptions holds the model constants
type BlackLittermanOptions struct {
	RiskAversion      float64 `yaml:"risk_aversion"`       // δ
	Tau               float64 `yaml:"tau"`                 // τ, uncertainty scaling of the prior
	MarketRiskPremium float64 `yaml:"market_risk_premium"` // Decimal, 0.05 = 5%
}

// DefaultBlackLittermanOptions returns δ = 2.5, τ = 0.05 and a 5% market risk premium
func DefaultBlackLittermanOptions() BlackLittermanOptions {
	return BlackLittermanOptions{
		RiskAversion:      2.5,
		Tau:               0.05,
		MarketRiskPremium: 0.05,
	}
}

// BlackLittermanResult holds posterior returns and weights. Returns and risk are percent.
type BlackLittermanResult struct {
	ImpliedReturns   map[string]float64      `json:"implied_returns"`
	PosteriorReturns map[string]float64      `json:"posterior_returns"`
	PosteriorWeights domain.PortfolioWeights `json:"posterior_weights"`
	BlendedRisk      float64                 `json:"blended_risk"`
	BlendedReturn    float64                 `json:"blended_return"`
}

// ImpliedView is the tilt a user allocation expresses relative to equal weight
type ImpliedView struct {
	Symbol      string  `json:"symbol"`
	UserWeight  float64 `json:"user_weight"`
	EqualWeight float64 `json:"equal_weight"`
	Tilt        float64 `json:"tilt"`
}

// UserWeightAnalysis describes a user-chosen allocation against equilibrium
type UserWeightAnalysis struct {
	ImpliedViews       []ImpliedView      `json:"implied_views"`
	EquilibriumReturns map[string]float64 `json:"equilibrium_returns"` // Percent
	PortfolioRisk      float64            `json:"portfolio_risk"`      // Percent
	PortfolioReturn    float64            `json:"portfolio_return"`    // Percent, against equilibrium
	RiskContributions  map[string]float64 `json:"risk_contributions"`  // Percent of portfolio variance
}

// BlackLittermanOptimizer blends equilibrium-implied returns with investor views.
type BlackLittermanOptimizer struct {
	opts BlackLittermanOptions
	log  zerolog.Logger
}

// NewBlackLittermanOptimizer creates a new Black-Litterman optimizer. Non-positive δ and τ
// take their defaults; a zero market risk premium is kept.
func NewBlackLittermanOptimizer(opts BlackLittermanOptions, log zerolog.Logger) *BlackLittermanOptimizer {
	d := DefaultBlackLittermanOptions()
	if opts.RiskAversion <= 0 {
		opts.RiskAversion = d.RiskAversion
	}
	if opts.Tau <= 0 {
		opts.Tau = d.Tau
	}
	if opts.MarketRiskPremium < 0 {
		opts.MarketRiskPremium = d.MarketRiskPremium
	}
	return &BlackLittermanOptimizer{
		opts: opts,
		log:  log.With().Str("component", "black_litterman").Logger(),
	}
}

// CalculateMarketEquilibrium calculates implied equilibrium returns from market weights.
// Formula: Π = δ * Σ * w
// Where: δ = risk aversion, Σ = covariance matrix, w = market weights
func (bl *BlackLittermanOptimizer) CalculateMarketEquilibrium(w *mat.VecDense, sigma *mat.SymDense) *mat.VecDense {
	var pi mat.VecDense
	pi.MulVec(sigma, w)
	pi.ScaleVec(bl.opts.RiskAversion, &pi)
	return &pi
}

// Optimize computes posterior returns and weights. marketWeights may be nil, in which
// case every asset starts at 1/n. Views on symbols outside the matrix are ignored.
func (bl *BlackLittermanOptimizer) Optimize(
	corr correlation.Matrix,
	assets map[string]*domain.AssetData,
	views []domain.InvestorView,
	marketWeights domain.PortfolioWeights,
) BlackLittermanResult {
	n := corr.Size()
	result := BlackLittermanResult{
		ImpliedReturns:   make(map[string]float64, n),
		PosteriorReturns: make(map[string]float64, n),
		PosteriorWeights: make(domain.PortfolioWeights, n),
	}
	if n == 0 {
		return result
	}

	sigma := decimalCovariance(corr, assets)
	market := bl.marketVector(corr.Symbols, marketWeights)
	pi := bl.CalculateMarketEquilibrium(market, sigma)

	for i, s := range corr.Symbols {
		result.ImpliedReturns[s] = pi.AtVec(i) * 100
	}

	viewBySymbol := make(map[string]domain.InvestorView, len(views))
	for _, v := range views {
		if corr.Index(v.Symbol) >= 0 {
			viewBySymbol[v.Symbol] = v
		}
	}

	posterior := mat.NewVecDense(n, nil)
	weights := mat.NewVecDense(n, nil)
	for i, s := range corr.Symbols {
		v, ok := viewBySymbol[s]
		if !ok {
			posterior.SetVec(i, pi.AtVec(i))
			weights.SetVec(i, market.AtVec(i))
			continue
		}

		c := clamp01(v.Confidence)
		target := clamp01(v.TargetWeight)
		viewReturn := bl.opts.MarketRiskPremium * target * float64(n)
		blend := c * bl.opts.Tau
		posterior.SetVec(i, blend*viewReturn+(1-blend)*pi.AtVec(i))
		weights.SetVec(i, c*target+(1-c)*market.AtVec(i))
	}

	if len(viewBySymbol) > 0 {
		if sum := mat.Sum(weights); sum > 0 {
			weights.ScaleVec(1/sum, weights)
		}
	}

	for i, s := range corr.Symbols {
		result.PosteriorReturns[s] = posterior.AtVec(i) * 100
		result.PosteriorWeights[s] = weights.AtVec(i)
	}
	result.BlendedRisk = portfolioRisk(weights, sigma) * 100
	result.BlendedReturn = mat.Dot(weights, posterior) * 100

	bl.log.Debug().
		Int("assets", n).
		Int("views", len(viewBySymbol)).
		Float64("blended_risk", result.BlendedRisk).
		Float64("blended_return", result.BlendedReturn).
		Msg("Black-Litterman optimization complete")

	return result
}

// AnalyzeUserWeights reads a user allocation as a set of implied views against equal
// weight and reports its risk, its return under equilibrium-implied returns, and each
// asset's share of portfolio variance.
func (bl *BlackLittermanOptimizer) AnalyzeUserWeights(
	corr correlation.Matrix,
	assets map[string]*domain.AssetData,
	userWeights domain.PortfolioWeights,
) UserWeightAnalysis {
	n := corr.Size()
	analysis := UserWeightAnalysis{
		ImpliedViews:       make([]ImpliedView, 0, n),
		EquilibriumReturns: make(map[string]float64, n),
		RiskContributions:  make(map[string]float64, n),
	}
	if n == 0 {
		return analysis
	}

	sigma := decimalCovariance(corr, assets)
	pi := bl.CalculateMarketEquilibrium(bl.marketVector(corr.Symbols, nil), sigma)
	w := toVec(userWeights, corr.Symbols)
	equal := 1.0 / float64(n)

	var sigmaW mat.VecDense
	sigmaW.MulVec(sigma, w)
	variance := mat.Dot(w, &sigmaW)

	for i, s := range corr.Symbols {
		uw := w.AtVec(i)
		analysis.ImpliedViews = append(analysis.ImpliedViews, ImpliedView{
			Symbol:      s,
			UserWeight:  uw,
			EqualWeight: equal,
			Tilt:        uw - equal,
		})
		analysis.EquilibriumReturns[s] = pi.AtVec(i) * 100

		contribution := 0.0
		if variance > 0 {
			contribution = uw * sigmaW.AtVec(i) / variance * 100
		}
		analysis.RiskContributions[s] = contribution
	}

	analysis.PortfolioRisk = math.Sqrt(math.Max(0, variance)) * 100
	analysis.PortfolioReturn = mat.Dot(w, pi) * 100

	return analysis
}

// marketVector orders supplied market weights, or equal weights when none are given
func (bl *BlackLittermanOptimizer) marketVector(symbols []string, marketWeights domain.PortfolioWeights) *mat.VecDense {
	if len(marketWeights) == 0 {
		v := mat.NewVecDense(len(symbols), nil)
		for i := range symbols {
			v.SetVec(i, 1.0/float64(len(symbols)))
		}
		return v
	}
	return toVec(marketWeights, symbols)
}

// decimalCovariance builds Σ from percent volatilities converted to decimals
func decimalCovariance(corr correlation.Matrix, assets map[string]*domain.AssetData) *mat.SymDense {
	vols := correlation.Volatilities(corr, assets)
	for i := range vols {
		vols[i] /= 100
	}
	return correlation.ToCovarianceSym(corr, vols)
}

func clamp01(x float64) float64 {
	return math.Max(0, math.Min(1, x))
}

package optimization

import (
	"math"

	"github.com/aristath/sentinel-quant/internal/domain"
	"github.com/aristath/sentinel-quant/internal/modules/correlation"
	"gonum.org/v1/gonum/mat"
)

// universe is the matrix-ordered view of a set of assets used by every optimizer
type universe struct {
	symbols []string
	vols    []float64 // percent
	rets    []float64 // percent
	cov     *mat.SymDense
}

// newUniverse aligns asset statistics to the correlation matrix order and builds the
// covariance in percent².
func newUniverse(corr correlation.Matrix, assets map[string]*domain.AssetData) universe {
	vols := correlation.Volatilities(corr, assets)
	return universe{
		symbols: corr.Symbols,
		vols:    vols,
		rets:    correlation.ExpectedReturns(corr, assets),
		cov:     correlation.ToCovarianceSym(corr, vols),
	}
}

func (u universe) size() int {
	return len(u.symbols)
}

// portfolioRisk is sqrt(wᵀΣw) in the covariance's unit root. Negative variances from a
// non-PSD input are floored at zero.
func portfolioRisk(w *mat.VecDense, cov *mat.SymDense) float64 {
	if cov == nil {
		return 0
	}
	return math.Sqrt(math.Max(0, mat.Inner(w, cov, w)))
}

// weightedSum returns Σ wᵢ·xᵢ
func weightedSum(w *mat.VecDense, x []float64) float64 {
	return mat.Dot(w, mat.NewVecDense(len(x), append([]float64(nil), x...)))
}

// toVec orders a weight map by symbols; missing entries are 0
func toVec(weights domain.PortfolioWeights, symbols []string) *mat.VecDense {
	v := mat.NewVecDense(len(symbols), nil)
	for i, s := range symbols {
		v.SetVec(i, weights[s])
	}
	return v
}

func toWeights(v *mat.VecDense, symbols []string) domain.PortfolioWeights {
	w := make(domain.PortfolioWeights, len(symbols))
	for i, s := range symbols {
		w[s] = v.AtVec(i)
	}
	return w
}

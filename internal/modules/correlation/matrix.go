// Package correlation builds correlation and covariance matrices from aligned return
// series and checks them for the invariants the optimizers rely on.
package correlation

import (
	"math"

	"github.com/aristath/sentinel-quant/internal/domain"
	"gonum.org/v1/gonum/mat"
)

// Matrix is a square correlation matrix with its ordered symbols
type Matrix struct {
	Symbols []string    `json:"symbols"`
	Values  [][]float64 `json:"values"`
}

// Size returns the number of assets
func (m Matrix) Size() int {
	return len(m.Symbols)
}

// Index returns the position of symbol, or -1
func (m Matrix) Index(symbol string) int {
	for i, s := range m.Symbols {
		if s == symbol {
			return i
		}
	}
	return -1
}

// Get returns the correlation between two symbols. Unknown symbols yield 0.
func (m Matrix) Get(a, b string) float64 {
	i, j := m.Index(a), m.Index(b)
	if i < 0 || j < 0 {
		return 0
	}
	return m.Values[i][j]
}

// Pair is one off-diagonal entry
type Pair struct {
	SymbolA     string  `json:"symbol_a"`
	SymbolB     string  `json:"symbol_b"`
	Correlation float64 `json:"correlation"`
}

// HighCorrelations lists the upper-triangle pairs whose absolute correlation is at least
// threshold, in matrix order.
func (m Matrix) HighCorrelations(threshold float64) []Pair {
	pairs := make([]Pair, 0)
	for i := 0; i < m.Size(); i++ {
		for j := i + 1; j < m.Size(); j++ {
			if math.Abs(m.Values[i][j]) >= threshold {
				pairs = append(pairs, Pair{
					SymbolA:     m.Symbols[i],
					SymbolB:     m.Symbols[j],
					Correlation: m.Values[i][j],
				})
			}
		}
	}
	return pairs
}

// ToCovariance converts the correlation matrix to covariance using per-asset
// volatilities in the same order as Symbols: cov_ij = ρ_ij·σ_i·σ_j.
// The result carries the squared unit of vols.
func ToCovariance(m Matrix, vols []float64) [][]float64 {
	n := m.Size()
	cov := make([][]float64, n)
	for i := 0; i < n; i++ {
		cov[i] = make([]float64, n)
		for j := 0; j < n; j++ {
			cov[i][j] = m.Values[i][j] * vol(vols, i) * vol(vols, j)
		}
	}
	return cov
}

// ToCovarianceSym is ToCovariance as a gonum symmetric matrix. The upper triangle is
// used, so small asymmetries in the input are ignored.
func ToCovarianceSym(m Matrix, vols []float64) *mat.SymDense {
	n := m.Size()
	if n == 0 {
		return nil
	}
	sym := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			sym.SetSym(i, j, m.Values[i][j]*vol(vols, i)*vol(vols, j))
		}
	}
	return sym
}

// Volatilities extracts the annualized volatility (percent) of each symbol in matrix
// order. Missing assets contribute 0.
func Volatilities(m Matrix, assets map[string]*domain.AssetData) []float64 {
	vols := make([]float64, m.Size())
	for i, s := range m.Symbols {
		if a, ok := assets[s]; ok && a != nil {
			vols[i] = a.Volatility
		}
	}
	return vols
}

// ExpectedReturns extracts the annualized expected return (percent) of each symbol in
// matrix order.
func ExpectedReturns(m Matrix, assets map[string]*domain.AssetData) []float64 {
	rets := make([]float64, m.Size())
	for i, s := range m.Symbols {
		if a, ok := assets[s]; ok && a != nil {
			rets[i] = a.ExpectedReturn
		}
	}
	return rets
}

func vol(vols []float64, i int) float64 {
	if i < len(vols) {
		return vols[i]
	}
	return 0
}

package correlation

import (
	"math"
	"sort"

	"github.com/aristath/sentinel-quant/internal/domain"
	"github.com/rs/zerolog"
)

// Builder turns per-asset return series into a correlation matrix
type Builder struct {
	log zerolog.Logger
}

// NewBuilder creates a correlation builder
func NewBuilder(log zerolog.Logger) *Builder {
	return &Builder{
		log: log.With().Str("component", "correlation_builder").Logger(),
	}
}

// Build computes the correlation matrix of the given assets. Symbols are ordered
// alphabetically so results are stable regardless of map iteration.
func (b *Builder) Build(assets map[string]*domain.AssetData) Matrix {
	symbols := make([]string, 0, len(assets))
	for s, a := range assets {
		if a != nil {
			symbols = append(symbols, s)
		}
	}
	sort.Strings(symbols)

	returns := make(map[string][]float64, len(symbols))
	for _, s := range symbols {
		returns[s] = assets[s].Returns
	}
	return b.BuildFromReturns(symbols, returns)
}

// BuildFromReturns computes pairwise Pearson correlations for symbols in the given order.
// Series are truncated to the shortest common length, keeping the most recent
// observations.
func (b *Builder) BuildFromReturns(symbols []string, returns map[string][]float64) Matrix {
	n := len(symbols)
	m := Matrix{
		Symbols: append([]string(nil), symbols...),
		Values:  make([][]float64, n),
	}
	for i := range m.Values {
		m.Values[i] = make([]float64, n)
		m.Values[i][i] = 1.0
	}
	if n == 0 {
		return m
	}

	aligned := AlignTail(symbols, returns)
	length := 0
	if len(aligned) > 0 {
		length = len(aligned[0])
	}

	if length < 2 {
		b.log.Debug().
			Int("assets", n).
			Int("observations", length).
			Msg("Insufficient overlapping observations, returning identity correlation")
		return m
	}

	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			c := pearson(aligned[i], aligned[j])
			m.Values[i][j] = c
			m.Values[j][i] = c
		}
	}

	b.log.Debug().
		Int("assets", n).
		Int("observations", length).
		Msg("Built correlation matrix")

	return m
}

// AlignTail returns each symbol's series truncated to the shortest length among them,
// keeping the most recent observations. Missing symbols count as empty series.
func AlignTail(symbols []string, returns map[string][]float64) [][]float64 {
	minLen := -1
	for _, s := range symbols {
		if l := len(returns[s]); minLen < 0 || l < minLen {
			minLen = l
		}
	}
	if minLen < 0 {
		minLen = 0
	}

	out := make([][]float64, len(symbols))
	for i, s := range symbols {
		r := returns[s]
		out[i] = r[len(r)-minLen:]
	}
	return out
}

// pearson uses population moments for both covariance and variances. A constant
// series has no defined correlation and yields 0.
func pearson(x, y []float64) float64 {
	n := float64(len(x))
	mx, my := 0.0, 0.0
	for i := range x {
		mx += x[i]
		my += y[i]
	}
	mx /= n
	my /= n

	cov, vx, vy := 0.0, 0.0, 0.0
	for i := range x {
		dx, dy := x[i]-mx, y[i]-my
		cov += dx * dy
		vx += dx * dx
		vy += dy * dy
	}
	cov /= n
	vx /= n
	vy /= n

	if vx == 0 || vy == 0 {
		return 0
	}

	c := cov / math.Sqrt(vx*vy)
	return math.Max(-1, math.Min(1, c))
}

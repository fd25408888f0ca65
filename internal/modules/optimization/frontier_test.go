package optimization

import (
	"testing"

	"github.com/aristath/sentinel-quant/internal/modules/correlation"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrontier_EmptyUniverse(t *testing.T) {
	g := NewFrontierGenerator(DefaultFrontierOptions(), NewSeededRand(1), zerolog.Nop())
	assert.Empty(t, g.Generate(correlation.Matrix{}, nil))
}

func TestFrontier_SingleAsset(t *testing.T) {
	corr, assets := testUniverse(identity(1), testAsset{"SPY", 18, 10})
	g := NewFrontierGenerator(FrontierOptions{NumSimulations: 200}, NewSeededRand(1), zerolog.Nop())

	frontier := g.Generate(corr, assets)

	require.Len(t, frontier, 1)
	assert.InDelta(t, 18.0, frontier[0].Risk, 1e-9)
	assert.InDelta(t, 10.0, frontier[0].Return, 1e-9)
	assert.InDelta(t, (10.0-5.0)/18.0, frontier[0].Sharpe, 1e-9)
	assert.InDelta(t, 1.0, frontier[0].Weights["SPY"], 1e-12)
}

func TestFrontier_IsMonotonicAndBounded(t *testing.T) {
	corr, assets := testUniverse([][]float64{
		{1, 0.2, -0.1},
		{0.2, 1, 0.3},
		{-0.1, 0.3, 1},
	}, testAsset{"A", 10, 4}, testAsset{"B", 20, 9}, testAsset{"C", 30, 14})

	opts := FrontierOptions{NumSimulations: 3000, BucketWidth: 0.25, TargetPoints: 10}
	frontier := NewFrontierGenerator(opts, NewSeededRand(42), zerolog.Nop()).Generate(corr, assets)

	require.NotEmpty(t, frontier)
	assert.LessOrEqual(t, len(frontier), 10)
	for i := 1; i < len(frontier); i++ {
		assert.Greater(t, frontier[i].Risk, frontier[i-1].Risk)
		assert.Greater(t, frontier[i].Return, frontier[i-1].Return)
	}
	for _, p := range frontier {
		assert.InDelta(t, 1.0, p.Weights.Sum(), 1e-9)
		for _, w := range p.Weights {
			assert.GreaterOrEqual(t, w, 0.0)
		}
	}
}

func TestFrontier_SeedIsReproducible(t *testing.T) {
	corr, assets := testUniverse(identity(2), testAsset{"A", 10, 5}, testAsset{"B", 25, 12})
	opts := FrontierOptions{NumSimulations: 500}

	first := NewFrontierGenerator(opts, NewSeededRand(9), zerolog.Nop()).Generate(corr, assets)
	second := NewFrontierGenerator(opts, NewSeededRand(9), zerolog.Nop()).Generate(corr, assets)

	assert.Equal(t, first, second)
}

func TestDownsample_KeepsFirstAndLast(t *testing.T) {
	points := make([]FrontierPoint, 100)
	for i := range points {
		points[i] = FrontierPoint{Risk: float64(i)}
	}

	out := downsample(points, 50)

	assert.LessOrEqual(t, len(out), 50)
	assert.Equal(t, 0.0, out[0].Risk)
	assert.Equal(t, 99.0, out[len(out)-1].Risk)
}

func TestDownsample_NonDivisibleStrideAppendsLast(t *testing.T) {
	points := make([]FrontierPoint, 11)
	for i := range points {
		points[i] = FrontierPoint{Risk: float64(i)}
	}

	// stride = ceil(10/3) = 4 -> 0, 4, 8 and then 10
	out := downsample(points, 4)

	risks := make([]float64, len(out))
	for i, p := range out {
		risks[i] = p.Risk
	}
	assert.Equal(t, []float64{0, 4, 8, 10}, risks)
}

func TestFindOptimalPortfolio(t *testing.T) {
	frontier := []FrontierPoint{{Risk: 1}, {Risk: 2}, {Risk: 3}, {Risk: 4}, {Risk: 5}}

	tests := []struct {
		tolerance float64
		risk      float64
	}{
		{0, 1},
		{50, 3},
		{74, 3},
		{100, 5},
		{150, 5},
		{-10, 1},
	}

	for _, tt := range tests {
		p, ok := FindOptimalPortfolio(frontier, tt.tolerance)
		assert.True(t, ok)
		assert.Equal(t, tt.risk, p.Risk, "tolerance %v", tt.tolerance)
	}

	_, ok := FindOptimalPortfolio(nil, 50)
	assert.False(t, ok)
}

func TestFindMaxSharpeAndMinVol(t *testing.T) {
	frontier := []FrontierPoint{
		{Risk: 5, Sharpe: 0.2},
		{Risk: 8, Sharpe: 0.9},
		{Risk: 12, Sharpe: 0.5},
	}

	best, ok := FindMaxSharpePortfolio(frontier)
	require.True(t, ok)
	assert.Equal(t, 8.0, best.Risk)

	minVol, ok := FindMinVolPortfolio(frontier)
	require.True(t, ok)
	assert.Equal(t, 5.0, minVol.Risk)

	_, ok = FindMaxSharpePortfolio(nil)
	assert.False(t, ok)
}

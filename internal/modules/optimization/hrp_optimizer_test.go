package optimization

import (
	"math/rand/v2"
	"testing"

	"github.com/aristath/sentinel-quant/internal/domain"
	"github.com/aristath/sentinel-quant/internal/modules/correlation"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHRPOptimizer_EmptyAndSingle(t *testing.T) {
	hrp := NewHRPOptimizer(HRPOptions{}, zerolog.Nop())

	weights, err := hrp.Optimize(correlation.Matrix{}, nil)
	require.NoError(t, err)
	assert.Empty(t, weights)

	corr, assets := testUniverse(identity(1), testAsset{"SPY", 15, 0})
	weights, err = hrp.Optimize(corr, assets)
	require.NoError(t, err)
	assert.Equal(t, domain.PortfolioWeights{"SPY": 1.0}, weights)
}

func TestHRPOptimizer_PairUsesInverseVolatility(t *testing.T) {
	corr, assets := testUniverse(identity(2), testAsset{"A", 10, 0}, testAsset{"B", 30, 0})
	hrp := NewHRPOptimizer(HRPOptions{}, zerolog.Nop())

	weights, err := hrp.Optimize(corr, assets)
	require.NoError(t, err)

	// (1/10) / (1/10 + 1/30) = 0.75
	assert.InDelta(t, 0.75, weights["A"], 1e-12)
	assert.InDelta(t, 0.25, weights["B"], 1e-12)
}

func TestHRPOptimizer_BisectionByAggregateVariance(t *testing.T) {
	// identical average distances keep matrix order: [A] | [B, C]
	corr, assets := testUniverse(identity(3),
		testAsset{"A", 10, 0}, testAsset{"B", 10, 0}, testAsset{"C", 10, 0})
	hrp := NewHRPOptimizer(HRPOptions{}, zerolog.Nop())

	weights, err := hrp.Optimize(corr, assets)
	require.NoError(t, err)

	// left variance 100, right 200 -> alpha = (1/100)/(1/100+1/200) = 2/3
	assert.InDelta(t, 2.0/3.0, weights["A"], 1e-12)
	assert.InDelta(t, 1.0/6.0, weights["B"], 1e-12)
	assert.InDelta(t, 1.0/6.0, weights["C"], 1e-12)
}

func TestHRPOptimizer_ZeroVolatilityStaysFinite(t *testing.T) {
	corr, assets := testUniverse(identity(2), testAsset{"CASH", 0, 0}, testAsset{"B", 20, 0})
	hrp := NewHRPOptimizer(HRPOptions{}, zerolog.Nop())

	weights, err := hrp.Optimize(corr, assets)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, weights.Sum(), 1e-9)
	assert.Greater(t, weights["CASH"], weights["B"])
}

func TestHRPOptimizer_RejectsMalformedMatrix(t *testing.T) {
	hrp := NewHRPOptimizer(HRPOptions{}, zerolog.Nop())
	_, err := hrp.Optimize(correlation.Matrix{Symbols: []string{"A", "B"}, Values: [][]float64{{1, 0}}}, nil)
	assert.Error(t, err)
}

func TestHRPOptimizer_WeightsSumToOneForAllOrderings(t *testing.T) {
	rng := rand.New(rand.NewPCG(3, 5))
	builder := correlation.NewBuilder(zerolog.Nop())

	orderings := []HRPOrdering{
		HRPOrderingAverageDistance,
		HRPOrderingSingleLinkage,
		HRPOrderingCompleteLinkage,
		HRPOrderingAverageLinkage,
	}

	for trial := 0; trial < 20; trial++ {
		n := 2 + rng.IntN(7)
		returns := make(map[string][]float64, n)
		assets := make(map[string]*domain.AssetData, n)
		symbols := make([]string, n)
		for i := 0; i < n; i++ {
			s := string(rune('A' + i))
			symbols[i] = s
			series := make([]float64, 60)
			for k := range series {
				series[k] = rng.NormFloat64() * 0.01
			}
			returns[s] = series
			assets[s] = &domain.AssetData{Ticker: s, Volatility: 5 + rng.Float64()*40}
		}
		corr := builder.BuildFromReturns(symbols, returns)

		for _, ordering := range orderings {
			weights, err := NewHRPOptimizer(HRPOptions{Ordering: ordering}, zerolog.Nop()).Optimize(corr, assets)
			require.NoError(t, err)
			assert.InDelta(t, 1.0, weights.Sum(), 1e-6, "ordering %s", ordering)
			for _, w := range weights {
				assert.GreaterOrEqual(t, w, 0.0)
			}
		}
	}
}

func TestAverageDistanceOrder(t *testing.T) {
	dist := [][]float64{
		{0, 1.4, 1.4},
		{1.4, 0, 0.2},
		{1.4, 0.2, 0},
	}
	assert.Equal(t, []int{1, 2, 0}, averageDistanceOrder(dist))
}

func TestSingleLinkageGroupsNearestAssets(t *testing.T) {
	hrp := NewHRPOptimizer(HRPOptions{Ordering: HRPOrderingSingleLinkage}, zerolog.Nop())
	dist := [][]float64{
		{0, 1.2, 0.1, 1.3},
		{1.2, 0, 1.1, 0.2},
		{0.1, 1.1, 0, 1.25},
		{1.3, 0.2, 1.25, 0},
	}

	order := hrp.order(dist)

	// 0 and 2 merge first, then 1 and 3
	assert.Equal(t, []int{0, 2, 1, 3}, order)
}

func TestNewHRPOptimizer_InvalidOrderingFallsBack(t *testing.T) {
	hrp := NewHRPOptimizer(HRPOptions{Ordering: "bogus"}, zerolog.Nop())
	assert.Equal(t, HRPOrderingAverageDistance, hrp.opts.Ordering)
}

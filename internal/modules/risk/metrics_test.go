package risk

import (
	"testing"

	"github.com/aristath/sentinel-quant/pkg/formulas"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleReturns() []float64 {
	base := []float64{0.01, -0.02, 0.015, 0.003, -0.007, 0.02, -0.03, 0.004, 0.011, -0.001}
	out := make([]float64, 0, 100)
	for i := 0; i < 10; i++ {
		out = append(out, base...)
	}
	return out
}

func valuesFrom(returns []float64) []float64 {
	values := []float64{100}
	for _, r := range returns {
		values = append(values, values[len(values)-1]*(1+r))
	}
	return values
}

func TestCalculateAllAdvancedMetrics_NoBenchmark(t *testing.T) {
	r := sampleReturns()
	values := valuesFrom(r)
	dd := formulas.MaxDrawdown(values)

	m := CalculateAllAdvancedMetrics(AdvancedInput{
		DailyReturns:     r,
		PortfolioValues:  values,
		Weights:          map[string]float64{"A": 0.5, "B": 0.5},
		AnnualizedReturn: 12,
		MaxDrawdown:      dd.MaxDrawdownPercent,
		RiskFreeRate:     0.05,
	})

	assert.InDelta(t, formulas.ValueAtRisk(r, 0.95), m.VaR95, 1e-12)
	assert.GreaterOrEqual(t, m.CVaR95, m.VaR95)
	assert.GreaterOrEqual(t, m.VaR99, m.VaR95)
	assert.InDelta(t, 12/dd.MaxDrawdownPercent, m.CalmarRatio, 1e-9)
	assert.Greater(t, m.UlcerIndex, 0.0)
	assert.Nil(t, m.Beta)
	assert.Nil(t, m.TreynorRatio)
	assert.Nil(t, m.InformationRatio)
	assert.InDelta(t, 0.5, m.HerfindahlIndex, 1e-12)
	assert.InDelta(t, 2.0, m.EffectiveAssets, 1e-12)
	assert.InDelta(t, 0.5, m.MaxWeight, 1e-12)
}

func TestCalculateAllAdvancedMetrics_Benchmark(t *testing.T) {
	bench := sampleReturns()
	r := make([]float64, len(bench))
	for i, b := range bench {
		r[i] = 2 * b
	}

	m := CalculateAllAdvancedMetrics(AdvancedInput{
		DailyReturns:     r,
		BenchmarkReturns: bench,
		AnnualizedReturn: 25,
		RiskFreeRate:     0.05,
	})

	require.NotNil(t, m.Beta)
	assert.InDelta(t, 2.0, *m.Beta, 1e-9)
	require.NotNil(t, m.TreynorRatio)
	assert.InDelta(t, 10.0, *m.TreynorRatio, 1e-9)
	require.NotNil(t, m.InformationRatio)
}

func TestCalculateAllAdvancedMetrics_SuppliedBeta(t *testing.T) {
	beta := 0.5
	m := CalculateAllAdvancedMetrics(AdvancedInput{
		DailyReturns:     sampleReturns(),
		AnnualizedReturn: 8,
		Beta:             &beta,
		RiskFreeRate:     0.02,
	})

	require.NotNil(t, m.TreynorRatio)
	assert.InDelta(t, 12.0, *m.TreynorRatio, 1e-9)
	assert.Nil(t, m.InformationRatio)
}

func TestCalculateAllAdvancedMetrics_AllGains(t *testing.T) {
	m := CalculateAllAdvancedMetrics(AdvancedInput{
		DailyReturns:    []float64{0.01, 0.02, 0.01, 0.03},
		PortfolioValues: []float64{100, 101, 103, 104, 107},
	})

	assert.Equal(t, formulas.RatioSentinel, m.SortinoRatio)
	assert.Equal(t, formulas.RatioSentinel, m.OmegaRatio)
	assert.Equal(t, 0.0, m.UlcerIndex)
	assert.Equal(t, 0.0, m.CalmarRatio)
}

func TestConcentration(t *testing.T) {
	hhi, eff, maxW := Concentration(nil)
	assert.Zero(t, hhi)
	assert.Zero(t, eff)
	assert.Zero(t, maxW)

	hhi, eff, maxW = Concentration(map[string]float64{"A": 2, "B": 1, "C": 1})
	assert.InDelta(t, 0.375, hhi, 1e-12)
	assert.InDelta(t, 1/0.375, eff, 1e-12)
	assert.InDelta(t, 0.5, maxW, 1e-12)
}

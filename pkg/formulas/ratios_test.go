package formulas

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSharpeRatio(t *testing.T) {
	returns := []float64{0.01, 0.02, -0.005, 0.015, 0.0}
	dailyRF := 0.05 / 252

	excess := make([]float64, len(returns))
	for i, r := range returns {
		excess[i] = r - dailyRF
	}
	expected := Mean(excess) / StdDev(excess) * math.Sqrt(252)

	assert.InDelta(t, expected, SharpeRatio(returns, 0.05), 1e-9)
}

func TestSharpeRatio_DegenerateInputs(t *testing.T) {
	assert.Equal(t, 0.0, SharpeRatio(nil, 0.05))
	assert.Equal(t, 0.0, SharpeRatio([]float64{0.01}, 0.05))
	assert.Equal(t, 0.0, SharpeRatio([]float64{0.01, 0.01, 0.01}, 0.05))
}

func TestSortinoRatio_NoDownsideUsesSentinel(t *testing.T) {
	returns := []float64{0.01, 0.02, 0.03, 0.01}
	assert.Equal(t, RatioSentinel, SortinoRatio(returns, 0))
}

func TestSortinoRatio_NoDownsideNoExcess(t *testing.T) {
	assert.Equal(t, 0.0, SortinoRatio([]float64{0, 0, 0}, 0))
}

func TestSortinoRatio(t *testing.T) {
	returns := []float64{0.02, -0.01, 0.03, -0.02}
	// downside = sqrt((0.0001 + 0.0004) / 4)
	downside := math.Sqrt(0.0005 / 4)
	expected := Mean(returns) / downside * math.Sqrt(252)

	assert.InDelta(t, expected, SortinoRatio(returns, 0), 1e-9)
}

func TestCalmarRatio(t *testing.T) {
	assert.InDelta(t, 2.0, CalmarRatio(20, 10), 1e-12)
	assert.InDelta(t, 2.0, CalmarRatio(20, -10), 1e-12)
	assert.Equal(t, 0.0, CalmarRatio(20, 0))
}

func TestTreynorRatio(t *testing.T) {
	assert.InDelta(t, 5.0, TreynorRatio(15, 5, 2), 1e-12)
	assert.Equal(t, 0.0, TreynorRatio(15, 5, 0))
}

func TestInformationRatio(t *testing.T) {
	bench := []float64{0.01, 0.02, -0.01, 0.0}
	returns := []float64{0.02, 0.02, 0.0, 0.0}

	active := []float64{0.01, 0, 0.01, 0}
	expected := Mean(active) / StdDev(active) * math.Sqrt(252)
	assert.InDelta(t, expected, InformationRatio(returns, bench), 1e-9)

	// identical series have no tracking error
	assert.Equal(t, 0.0, InformationRatio(bench, bench))
}

func TestOmegaRatio(t *testing.T) {
	tests := []struct {
		name     string
		returns  []float64
		expected float64
	}{
		{"gains and losses", []float64{0.02, -0.01, 0.01, -0.01}, 1 + 0.03/0.02},
		{"only gains", []float64{0.01, 0.02}, RatioSentinel},
		{"flat", []float64{0, 0}, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected, OmegaRatio(tt.returns, 0), 1e-12)
		})
	}
}

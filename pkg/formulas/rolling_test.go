package formulas

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRollingVolatility(t *testing.T) {
	returns := []float64{0.01, -0.01, 0.01, -0.01, 0.01, -0.01}
	vol := RollingVolatility(returns, 4)

	assert.Len(t, vol, len(returns))
	assert.Equal(t, 0.0, vol[0])
	assert.Equal(t, 0.0, vol[2])
	assert.Greater(t, vol[3], 0.0)
	assert.InDelta(t, vol[3], vol[5], 1e-9)
}

func TestRollingVolatility_ShortInput(t *testing.T) {
	vol := RollingVolatility([]float64{0.01, 0.02}, 5)
	assert.Equal(t, []float64{0, 0}, vol)
}

func TestSMA(t *testing.T) {
	v, ok := SMA([]float64{1, 2, 3, 4, 5}, 3)
	assert.True(t, ok)
	assert.InDelta(t, 4.0, v, 1e-9)

	_, ok = SMA([]float64{1, 2}, 3)
	assert.False(t, ok)
}

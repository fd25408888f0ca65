package historical

import (
	"testing"

	"github.com/aristath/sentinel-quant/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildAssetData(t *testing.T) {
	bars := []domain.PriceBar{
		{Date: day("2024-01-01"), Close: 100},
		{Date: day("2024-01-02"), Close: 110},
		{Date: day("2024-01-03"), Close: 99},
	}

	a := BuildAssetData("X", bars)

	require.Len(t, a.Returns, 2)
	assert.InDelta(t, 0.10, a.Returns[0], 1e-12)
	assert.InDelta(t, -0.10, a.Returns[1], 1e-12)
	assert.InDelta(t, 0.0, a.ExpectedReturn, 1e-9)
	assert.Greater(t, a.Volatility, 100.0)
}

package optimization

import (
	"github.com/aristath/sentinel-quant/internal/domain"
	"github.com/aristath/sentinel-quant/internal/modules/correlation"
)

type testAsset struct {
	symbol string
	vol    float64
	ret    float64
}

func testUniverse(values [][]float64, specs ...testAsset) (correlation.Matrix, map[string]*domain.AssetData) {
	corr := correlation.Matrix{Values: values}
	assets := make(map[string]*domain.AssetData, len(specs))
	for _, s := range specs {
		corr.Symbols = append(corr.Symbols, s.symbol)
		assets[s.symbol] = &domain.AssetData{Ticker: s.symbol, Volatility: s.vol, ExpectedReturn: s.ret}
	}
	return corr, assets
}

func identity(n int) [][]float64 {
	m := make([][]float64, n)
	for i := range m {
		m[i] = make([]float64, n)
		m[i][i] = 1
	}
	return m
}

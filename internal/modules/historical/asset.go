package historical

import (
	"github.com/aristath/sentinel-quant/internal/domain"
	"github.com/aristath/sentinel-quant/pkg/formulas"
)

// MinBars is the fewest bars that still yield a return series
const MinBars = 2

// BuildAssetData derives returns and annualized statistics from clean bars
func BuildAssetData(ticker string, bars []domain.PriceBar) *domain.AssetData {
	a := &domain.AssetData{Ticker: ticker, Bars: bars}
	closes := a.Closes()
	a.Returns = formulas.CalculateReturns(closes)
	a.LogReturns = formulas.CalculateLogReturns(closes)
	a.Volatility = formulas.AnnualizedVolatility(a.Returns) * 100
	a.ExpectedReturn = formulas.AnnualizedMeanReturn(a.Returns) * 100
	return a
}

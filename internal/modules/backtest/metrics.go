package backtest

import (
	"sort"

	"github.com/aristath/sentinel-quant/internal/domain"
	"github.com/aristath/sentinel-quant/internal/modules/risk"
	"github.com/aristath/sentinel-quant/pkg/formulas"
)

const daysPerYear = 365.25

// finalize fills the aggregate metrics, regime breakdown, rolling volatility and
// benchmark comparison from the snapshot series.
func finalize(result *Result, benchmark *domain.AssetData) {
	cfg := result.Config
	snaps := result.Snapshots
	m := &result.Metrics

	values := result.Values()
	daily := make([]float64, 0, len(snaps))
	for _, s := range snaps[1:] {
		daily = append(daily, s.DailyReturn)
	}

	first, last := snaps[0], snaps[len(snaps)-1]
	m.InitialCapital = cfg.InitialCapital
	m.FinalValue = last.Value
	m.TradingDays = len(snaps)
	m.Years = last.Date.Sub(first.Date).Hours() / 24 / daysPerYear

	m.TotalReturn = (m.FinalValue/m.InitialCapital - 1) * 100
	m.AnnualizedReturn = formulas.CAGR(m.InitialCapital, m.FinalValue, m.Years) * 100
	m.Volatility = formulas.AnnualizedVolatility(daily) * 100
	m.SharpeRatio = formulas.SharpeRatio(daily, cfg.RiskFree())
	m.SortinoRatio = formulas.SortinoRatio(daily, cfg.RiskFree())
	m.MaxDrawdown = formulas.MaxDrawdown(values).MaxDrawdownPercent
	m.CalmarRatio = formulas.CalmarRatio(m.AnnualizedReturn, m.MaxDrawdown)
	for _, s := range snaps {
		m.TotalTurnover += s.Turnover
	}
	m.AfterTaxReturn = (m.FinalValue - m.InitialCapital - m.TotalTaxPaid) / m.InitialCapital * 100

	result.RegimeBreakdown = regimeBreakdown(snaps, cfg.RiskFree())
	result.RollingVolatility = formulas.RollingVolatility(daily, cfg.RollingWindow)
	if full := cfg.RollingWindow - 1; full >= 0 && full < len(result.RollingVolatility) {
		if v, ok := formulas.SMA(result.RollingVolatility[full:], cfg.RollingWindow); ok {
			m.SmoothedVolatility = v
		}
	}

	var benchReturns []float64
	if benchmark != nil {
		closes := alignBenchmark(snaps, benchmark)
		if len(closes) >= 2 {
			benchReturns = formulas.CalculateReturns(closes)
			result.Benchmark = compareBenchmark(cfg, m, daily, closes, benchReturns)
		}
	}

	result.Advanced = risk.CalculateAllAdvancedMetrics(risk.AdvancedInput{
		DailyReturns:     daily,
		PortfolioValues:  values,
		Weights:          last.Weights,
		AnnualizedReturn: m.AnnualizedReturn,
		MaxDrawdown:      m.MaxDrawdown,
		BenchmarkReturns: benchReturns,
		RiskFreeRate:     cfg.RiskFree(),
	})
}

// regimeBreakdown attributes each day's return to the regime detected that day
func regimeBreakdown(snaps []Snapshot, riskFree float64) map[domain.Regime]RegimeStats {
	buckets := make(map[domain.Regime][]float64)
	for _, s := range snaps[1:] {
		buckets[s.Regime] = append(buckets[s.Regime], s.DailyReturn)
	}

	total := len(snaps) - 1
	out := make(map[domain.Regime]RegimeStats, len(buckets))
	for regime, returns := range buckets {
		cumulative := 1.0
		for _, r := range returns {
			cumulative *= 1 + r
		}
		out[regime] = RegimeStats{
			Regime:           regime,
			Days:             len(returns),
			Share:            float64(len(returns)) / float64(total) * 100,
			CumulativeReturn: (cumulative - 1) * 100,
			AnnualizedReturn: formulas.AnnualizedMeanReturn(returns) * 100,
			Volatility:       formulas.AnnualizedVolatility(returns) * 100,
			SharpeRatio:      formulas.SharpeRatio(returns, riskFree),
		}
	}
	return out
}

// alignBenchmark returns the benchmark close for every snapshot date, carrying the
// last known close forward and the first known close backward over gaps.
func alignBenchmark(snaps []Snapshot, benchmark *domain.AssetData) []float64 {
	if len(benchmark.Bars) == 0 {
		return nil
	}
	byDay := make(map[int64]float64, len(benchmark.Bars))
	for _, b := range benchmark.Bars {
		byDay[dayKey(b.Date)] = b.Close
	}

	closes := make([]float64, len(snaps))
	last := 0.0
	for i, s := range snaps {
		if c, ok := byDay[dayKey(s.Date)]; ok {
			last = c
		}
		closes[i] = last
	}

	firstKnown := -1
	for i, c := range closes {
		if c > 0 {
			firstKnown = i
			break
		}
	}
	if firstKnown < 0 {
		return nil
	}
	for i := 0; i < firstKnown; i++ {
		closes[i] = closes[firstKnown]
	}
	return closes
}

func compareBenchmark(cfg Config, m *PerformanceMetrics, daily, closes, benchReturns []float64) *BenchmarkComparison {
	beta := formulas.Beta(daily, benchReturns)
	annual := formulas.CAGR(closes[0], closes[len(closes)-1], m.Years) * 100
	return &BenchmarkComparison{
		Ticker:           cfg.Benchmark,
		TotalReturn:      (closes[len(closes)-1]/closes[0] - 1) * 100,
		AnnualizedReturn: annual,
		Beta:             beta,
		Correlation:      formulas.Correlation(daily, benchReturns),
		TreynorRatio:     formulas.TreynorRatio(m.AnnualizedReturn, cfg.RiskFree()*100, beta),
		InformationRatio: formulas.InformationRatio(daily, benchReturns),
	}
}

func sortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

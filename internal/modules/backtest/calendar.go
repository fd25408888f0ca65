package backtest

import (
	"sort"
	"time"

	"github.com/aristath/sentinel-quant/internal/domain"
	"github.com/aristath/sentinel-quant/internal/modules/historical"
)

// calendar is the trading days every active ticker has a bar for, with the bars
// aligned on those days.
type calendar struct {
	dates   []time.Time
	tickers []string
	bars    map[string][]domain.PriceBar
	start   int // First index on or after the requested start date
}

func dayKey(t time.Time) int64 {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC).Unix()
}

// buildCalendar intersects the assets' dates. ok is false when fewer than two common
// days fall on or after start.
func buildCalendar(assets map[string]*domain.AssetData, start time.Time) (calendar, bool) {
	tickers := historical.SortedTickers(assets)
	cal := calendar{tickers: tickers, bars: make(map[string][]domain.PriceBar, len(tickers))}
	if len(tickers) == 0 {
		return cal, false
	}

	counts := make(map[int64]int)
	byDay := make(map[string]map[int64]domain.PriceBar, len(tickers))
	for _, t := range tickers {
		m := make(map[int64]domain.PriceBar, len(assets[t].Bars))
		for _, b := range assets[t].Bars {
			k := dayKey(b.Date)
			if _, dup := m[k]; !dup {
				counts[k]++
			}
			m[k] = b
		}
		byDay[t] = m
	}

	keys := make([]int64, 0, len(counts))
	for k, c := range counts {
		if c == len(tickers) {
			keys = append(keys, k)
		}
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	cal.dates = make([]time.Time, len(keys))
	for i, k := range keys {
		cal.dates[i] = time.Unix(k, 0).UTC()
	}
	for _, t := range tickers {
		aligned := make([]domain.PriceBar, len(keys))
		for i, k := range keys {
			aligned[i] = byDay[t][k]
		}
		cal.bars[t] = aligned
	}

	startKey := dayKey(start)
	cal.start = sort.Search(len(keys), func(i int) bool { return keys[i] >= startKey })
	return cal, len(keys)-cal.start >= 2
}

func (c calendar) prices(i int) map[string]float64 {
	out := make(map[string]float64, len(c.tickers))
	for _, t := range c.tickers {
		out[t] = c.bars[t][i].Close
	}
	return out
}

// window rebuilds asset statistics over the bars in [i-size, i]
func (c calendar) window(i, size int) map[string]*domain.AssetData {
	lo := i - size
	if lo < 0 {
		lo = 0
	}
	out := make(map[string]*domain.AssetData, len(c.tickers))
	for _, t := range c.tickers {
		out[t] = historical.BuildAssetData(t, c.bars[t][lo:i+1])
	}
	return out
}

// returns gives the trailing daily returns per ticker ending at day i, at most size long
func (c calendar) returns(i, size int) map[string][]float64 {
	out := make(map[string][]float64, len(c.tickers))
	for t, a := range c.window(i, size) {
		out[t] = a.Returns
	}
	return out
}

// Package telemetry holds the Prometheus metrics of the engine and its data layer.
package telemetry

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics is the process-wide metric set. A nil *Metrics is valid and records nothing,
// so components can be built without telemetry in tests and the CLI.
type Metrics struct {
	registry *prometheus.Registry

	FetchDuration *prometheus.HistogramVec
	FetchTotal    *prometheus.CounterVec
	CacheHits     prometheus.Counter
	CacheMisses   prometheus.Counter

	BacktestDuration prometheus.Histogram
	BacktestRuns     *prometheus.CounterVec
	ActiveBacktests  prometheus.Gauge
	RegimeDays       *prometheus.CounterVec
	Rebalances       prometheus.Counter

	AnalysisRequests *prometheus.CounterVec
}

// NewMetrics creates and registers every metric on a private registry, together with
// the Go runtime and process collectors.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		FetchDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "quant_price_fetch_duration_seconds",
				Help:    "Duration of a single ticker history fetch in seconds",
				Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0},
			},
			[]string{"source"},
		),

		FetchTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "quant_price_fetch_total",
				Help: "Ticker history fetches by source and outcome",
			},
			[]string{"source", "outcome"},
		),

		CacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "quant_price_cache_hits_total",
			Help: "Price history requests served from the local store",
		}),

		CacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "quant_price_cache_misses_total",
			Help: "Price history requests that went to the remote source",
		}),

		BacktestDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "quant_backtest_duration_seconds",
			Help:    "Wall-clock duration of backtest runs",
			Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		}),

		BacktestRuns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "quant_backtest_runs_total",
				Help: "Backtest runs by outcome",
			},
			[]string{"outcome"},
		),

		ActiveBacktests: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "quant_backtest_active",
			Help: "Backtests currently running",
		}),

		RegimeDays: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "quant_backtest_regime_days_total",
				Help: "Simulated trading days by detected regime",
			},
			[]string{"regime"},
		),

		Rebalances: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "quant_backtest_rebalances_total",
			Help: "Rebalance events executed across all backtests",
		}),

		AnalysisRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "quant_analysis_requests_total",
				Help: "Analysis operations by kind and outcome",
			},
			[]string{"operation", "outcome"},
		),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.FetchDuration,
		m.FetchTotal,
		m.CacheHits,
		m.CacheMisses,
		m.BacktestDuration,
		m.BacktestRuns,
		m.ActiveBacktests,
		m.RegimeDays,
		m.Rebalances,
		m.AnalysisRequests,
	)

	return m
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObserveFetch records one ticker fetch
func (m *Metrics) ObserveFetch(source string, err error, d time.Duration) {
	if m == nil {
		return
	}
	m.FetchDuration.WithLabelValues(source).Observe(d.Seconds())
	m.FetchTotal.WithLabelValues(source, outcome(err)).Inc()
}

// ObserveCache records a store hit or miss
func (m *Metrics) ObserveCache(hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.CacheHits.Inc()
	} else {
		m.CacheMisses.Inc()
	}
}

// BacktestStarted marks a run as active and returns a func that records its end
func (m *Metrics) BacktestStarted() func(err error) {
	if m == nil {
		return func(error) {}
	}
	start := time.Now()
	m.ActiveBacktests.Inc()
	return func(err error) {
		m.ActiveBacktests.Dec()
		m.BacktestDuration.Observe(time.Since(start).Seconds())
		m.BacktestRuns.WithLabelValues(outcome(err)).Inc()
	}
}

// ObserveRegimeDay counts one simulated day in regime
func (m *Metrics) ObserveRegimeDay(regime string) {
	if m == nil {
		return
	}
	m.RegimeDays.WithLabelValues(regime).Inc()
}

// ObserveRebalance counts one executed rebalance
func (m *Metrics) ObserveRebalance() {
	if m == nil {
		return
	}
	m.Rebalances.Inc()
}

// ObserveAnalysis records one analysis operation
func (m *Metrics) ObserveAnalysis(operation string, err error) {
	if m == nil {
		return
	}
	m.AnalysisRequests.WithLabelValues(operation, outcome(err)).Inc()
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

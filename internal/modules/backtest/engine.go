package backtest

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/aristath/sentinel-quant/internal/domain"
	"github.com/aristath/sentinel-quant/internal/market_regime"
	"github.com/aristath/sentinel-quant/internal/modules/correlation"
	"github.com/aristath/sentinel-quant/internal/modules/historical"
	"github.com/aristath/sentinel-quant/internal/modules/optimization"
	"github.com/aristath/sentinel-quant/internal/modules/taxlots"
	"github.com/aristath/sentinel-quant/internal/telemetry"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Share of the progress range given to each phase
const (
	fetchProgress    = 40.0
	simulateProgress = 55.0
)

// cashEpsilon absorbs float residue when cash is spent down to the last share
const cashEpsilon = 1e-6

// Engine runs one backtest. It owns the run's cash, share counts and tax lots; use a
// new Engine per run.
type Engine struct {
	id       string
	cfg      Config
	provider historical.Provider
	detector *market_regime.Detector
	builder  matrixBuilder
	hrp      *optimization.HRPOptimizer
	metrics  *telemetry.Metrics
	log      zerolog.Logger
}

// matrixBuilder builds the correlation matrix for a rebalance window
type matrixBuilder interface {
	Build(assets map[string]*domain.AssetData) correlation.Matrix
}

// NewEngine creates an engine for cfg. Zero config fields take their defaults.
func NewEngine(cfg Config, provider historical.Provider, metrics *telemetry.Metrics, log zerolog.Logger) *Engine {
	cfg = cfg.WithDefaults()
	id := uuid.New().String()
	return &Engine{
		id:       id,
		cfg:      cfg,
		provider: provider,
		detector: market_regime.NewDetector(cfg.RegimeLookback, log),
		builder:  correlation.NewBuilder(log),
		hrp:      optimization.NewHRPOptimizer(cfg.HRP, log),
		metrics:  metrics,
		log:      log.With().Str("component", "backtest_engine").Str("run_id", id).Logger(),
	}
}

// ID returns the run id assigned to this engine
func (e *Engine) ID() string {
	return e.id
}

// Config returns the effective configuration
func (e *Engine) Config() Config {
	return e.cfg
}

// portfolio is the mutable state of one run
type portfolio struct {
	cash   float64
	shares map[string]float64
	ledger *taxlots.Ledger
}

func (p *portfolio) value(prices map[string]float64) float64 {
	v := p.cash
	for t, s := range p.shares {
		v += s * prices[t]
	}
	return v
}

func (p *portfolio) weights(prices map[string]float64) domain.PortfolioWeights {
	w := make(domain.PortfolioWeights, len(p.shares))
	invested := 0.0
	for t, s := range p.shares {
		invested += s * prices[t]
	}
	if invested <= 0 {
		return w
	}
	for t, s := range p.shares {
		if s > 0 {
			w[t] = s * prices[t] / invested
		}
	}
	return w
}

// Run fetches prices and simulates the configured period. progress may be nil.
func (e *Engine) Run(ctx context.Context, progress historical.ProgressFunc) (result *Result, err error) {
	cfg := e.cfg
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if progress == nil {
		progress = func(string, float64) {}
	}

	started := time.Now()
	finish := e.metrics.BacktestStarted()
	defer func() { finish(err) }()

	e.log.Info().
		Strs("tickers", cfg.Tickers).
		Time("start", cfg.StartDate).
		Time("end", cfg.EndDate).
		Str("rebalance", string(cfg.Rebalance)).
		Msg("Starting backtest")

	fetchTickers := cfg.Tickers
	if cfg.Benchmark != "" && !contains(cfg.Tickers, cfg.Benchmark) {
		fetchTickers = append(append([]string{}, cfg.Tickers...), cfg.Benchmark)
	}

	fetched, err := e.provider.Fetch(ctx, historical.FetchRequest{
		Tickers: fetchTickers,
		Start:   cfg.StartDate.AddDate(0, 0, -cfg.WarmupDays),
		End:     cfg.EndDate,
	}, func(msg string, pct float64) {
		progress(msg, pct/100*fetchProgress)
	})
	if err != nil {
		return nil, err
	}

	assets := make(map[string]*domain.AssetData, len(cfg.Tickers))
	for _, t := range cfg.Tickers {
		if a, ok := fetched.Assets[t]; ok {
			assets[t] = a
		}
	}
	if len(assets) == 0 {
		return nil, historical.RequireAssets(historical.FetchResult{Diagnostics: fetched.Diagnostics})
	}
	for _, d := range fetched.Diagnostics {
		if !d.Success {
			e.log.Warn().Str("ticker", d.Ticker).Str("error", d.Error).Msg("Dropped ticker from backtest universe")
		}
	}

	cal, ok := buildCalendar(assets, cfg.StartDate)
	if !ok {
		return nil, fmt.Errorf("%w: fewer than two trading days shared by %s between %s and %s",
			domain.ErrConfiguration, strings.Join(cal.tickers, ", "),
			cfg.StartDate.Format("2006-01-02"), cfg.EndDate.Format("2006-01-02"))
	}

	result = &Result{
		ID:          e.id,
		Config:      cfg,
		Diagnostics: fetched.Diagnostics,
		Warnings:    fetched.Warnings(),
		Trades:      []Trade{},
		StartedAt:   started,
	}

	if err := e.simulate(ctx, cal, result, progress); err != nil {
		return nil, err
	}

	progress("Computing performance metrics", fetchProgress+simulateProgress)
	var bench *domain.AssetData
	if cfg.Benchmark != "" {
		bench = fetched.Assets[cfg.Benchmark]
		if bench == nil {
			result.Warnings = append(result.Warnings, fmt.Sprintf("benchmark %s unavailable", cfg.Benchmark))
		}
	}
	finalize(result, bench)
	result.Duration = time.Since(started)
	progress("Backtest complete", 100)

	e.log.Info().
		Int("snapshots", len(result.Snapshots)).
		Int("rebalances", result.Metrics.Rebalances).
		Float64("final_value", result.Metrics.FinalValue).
		Float64("total_return", result.Metrics.TotalReturn).
		Dur("duration", result.Duration).
		Msg("Backtest complete")

	return result, nil
}

func (e *Engine) simulate(ctx context.Context, cal calendar, result *Result, progress historical.ProgressFunc) error {
	cfg := e.cfg
	p := &portfolio{
		cash:   cfg.InitialCapital,
		shares: make(map[string]float64, len(cal.tickers)),
		ledger: taxlots.NewLedger(cfg.Rates(), e.log),
	}

	days := len(cal.dates) - cal.start
	result.Snapshots = make([]Snapshot, 0, days)
	step := days / 20
	if step < 1 {
		step = 1
	}

	first := cal.start
	firstDate := cal.dates[first]
	prices := cal.prices(first)

	// Initial allocation: equal weight in whole shares, the remainder stays cash
	equal := make(domain.PortfolioWeights, len(cal.tickers))
	for _, t := range cal.tickers {
		equal[t] = 1 / float64(len(cal.tickers))
	}
	e.buyTargets(p, equal, prices, firstDate, cfg.InitialCapital, result)

	signal := e.detector.Detect(cal.returns(first, cfg.RegimeLookback), firstDate)
	e.metrics.ObserveRegimeDay(string(signal.Regime))
	result.Snapshots = append(result.Snapshots, Snapshot{
		Date:       firstDate,
		Value:      p.value(prices),
		Cash:       p.cash,
		Regime:     signal.Regime,
		Turbulence: signal.TurbulenceIndex,
		Weights:    p.weights(prices),
		Rebalanced: true,
	})

	lastRebalance := firstDate
	rebalances := 0
	for i := first + 1; i < len(cal.dates); i++ {
		if err := ctx.Err(); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return fmt.Errorf("%w: backtest stopped at %s: %v", domain.ErrCancelled, cal.dates[i].Format("2006-01-02"), err)
			}
			return err
		}

		date := cal.dates[i]
		prices = cal.prices(i)
		prev := result.Snapshots[len(result.Snapshots)-1].Value
		total := p.value(prices)

		signal = e.detector.Detect(cal.returns(i, cfg.RegimeLookback), date)
		e.metrics.ObserveRegimeDay(string(signal.Regime))

		snap := Snapshot{
			Date:       date,
			Regime:     signal.Regime,
			Turbulence: signal.TurbulenceIndex,
		}

		if cfg.Rebalance.due(lastRebalance, date) {
			target := e.targetWeights(cal, i, signal.Regime, result)
			snap.Turnover, snap.TaxPaid = e.rebalance(p, target, prices, date, total, result)
			snap.Rebalanced = true
			lastRebalance = date
			rebalances++
			e.metrics.ObserveRebalance()
		}

		snap.Value = p.value(prices)
		snap.Cash = p.cash
		snap.Weights = p.weights(prices)
		if prev > 0 {
			snap.DailyReturn = snap.Value/prev - 1
		}
		result.Snapshots = append(result.Snapshots, snap)

		if done := i - first; done%step == 0 {
			progress(fmt.Sprintf("Simulated %s (%d/%d days)", date.Format("2006-01-02"), done+1, days),
				fetchProgress+simulateProgress*float64(done+1)/float64(days))
		}
	}

	result.Metrics.Rebalances = rebalances
	result.Metrics.TotalTaxPaid = p.ledger.TotalTax()
	result.Metrics.RealizedGains = p.ledger.RealizedGain()
	for _, t := range sortedKeys(p.shares) {
		result.Metrics.CostBasis += p.ledger.CostBasis(t)
		result.Metrics.UnrealizedGains += p.ledger.UnrealizedGain(t, prices[t])
	}
	return nil
}

// targetWeights runs HRP over the trailing correlation window and tilts for regime.
// With too little history the target is equal weight. A matrix failing validation and an
// HRP fallback are recorded as dated warnings on result.
func (e *Engine) targetWeights(cal calendar, i int, regime domain.Regime, result *Result) domain.PortfolioWeights {
	if i < 2 {
		equal := make(domain.PortfolioWeights, len(cal.tickers))
		for _, t := range cal.tickers {
			equal[t] = 1 / float64(len(cal.tickers))
		}
		return optimization.AdjustForRegime(equal, regime)
	}

	day := cal.dates[i].Format("2006-01-02")
	assets := cal.window(i, e.cfg.CorrelationWindow)
	corr := e.builder.Build(assets)
	if v := correlation.Validate(corr); !v.Valid {
		e.log.Warn().Str("date", day).Int("violations", len(v.Violations)).Msg("Correlation matrix failed validation")
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("%s correlation failed validation: %d violations", day, len(v.Violations)))
	}

	weights, err := e.hrp.Optimize(corr, assets)
	if err != nil {
		e.log.Warn().Str("date", day).Err(err).Msg("HRP failed, using equal weights")
		result.Warnings = append(result.Warnings, fmt.Sprintf("%s HRP failed, equal weights used: %v", day, err))
		weights = make(domain.PortfolioWeights, len(cal.tickers))
		for _, t := range cal.tickers {
			weights[t] = 1 / float64(len(cal.tickers))
		}
	}
	return e.hrp.AdjustForRegime(weights, regime)
}

// rebalance trades toward target: sells first through the ledger, then buys with the
// available cash. Returns turnover and the tax on realized gains.
func (e *Engine) rebalance(p *portfolio, target domain.PortfolioWeights, prices map[string]float64, date time.Time, total float64, result *Result) (turnover, tax float64) {
	if total <= 0 {
		return 0, 0
	}

	traded := 0.0
	for _, t := range sortedKeys(prices) {
		want := math.Floor(target[t] * total / prices[t])
		excess := p.shares[t] - want
		if excess <= 0 {
			continue
		}
		sale := p.ledger.Sell(t, excess, prices[t], date)
		p.shares[t] -= sale.SharesSold
		if p.shares[t] <= 0 {
			delete(p.shares, t)
		}
		p.cash += sale.Proceeds
		traded += sale.Proceeds
		tax += sale.Tax
		result.Trades = append(result.Trades, Trade{
			Date:         date,
			Ticker:       t,
			Side:         SideSell,
			Shares:       sale.SharesSold,
			Price:        prices[t],
			Value:        sale.Proceeds,
			RealizedGain: sale.RealizedGain,
			Tax:          sale.Tax,
		})
	}

	traded += e.buyTargets(p, target, prices, date, total, result)
	return traded / total, tax
}

// buyTargets buys up to the whole-share target of each ticker, limited by cash.
// Returns the value bought.
func (e *Engine) buyTargets(p *portfolio, target domain.PortfolioWeights, prices map[string]float64, date time.Time, total float64, result *Result) float64 {
	bought := 0.0
	for _, t := range sortedKeys(prices) {
		price := prices[t]
		want := math.Floor(target[t]*total/price) - p.shares[t]
		if affordable := math.Floor(p.cash/price + cashEpsilon); want > affordable {
			want = affordable
		}
		if want <= 0 {
			continue
		}
		if err := p.ledger.Buy(t, want, price, date); err != nil {
			e.log.Warn().Err(err).Str("ticker", t).Msg("Failed to record buy")
			continue
		}
		cost := want * price
		p.cash -= cost
		if p.cash < 0 && p.cash > -cashEpsilon {
			p.cash = 0
		}
		p.shares[t] += want
		bought += cost
		result.Trades = append(result.Trades, Trade{
			Date:   date,
			Ticker: t,
			Side:   SideBuy,
			Shares: want,
			Price:  price,
			Value:  cost,
		})
	}
	return bought
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

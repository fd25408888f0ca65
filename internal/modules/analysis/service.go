// Package analysis answers one-shot portfolio questions over a ticker universe: the
// correlation structure, the efficient frontier, Black-Litterman posteriors, user
// allocation diagnostics and HRP weights.
package analysis

import (
	"context"
	"fmt"
	"time"

	"github.com/aristath/sentinel-quant/internal/domain"
	"github.com/aristath/sentinel-quant/internal/market_regime"
	"github.com/aristath/sentinel-quant/internal/modules/correlation"
	"github.com/aristath/sentinel-quant/internal/modules/historical"
	"github.com/aristath/sentinel-quant/internal/modules/optimization"
	"github.com/aristath/sentinel-quant/internal/telemetry"
	"github.com/rs/zerolog"
)

// DefaultHighCorrelation is the threshold above which pairs are reported as concentrated
const DefaultHighCorrelation = 0.8

// Options are the model constants shared by every request
type Options struct {
	Frontier       optimization.FrontierOptions       `yaml:"frontier"`
	BlackLitterman optimization.BlackLittermanOptions `yaml:"black_litterman"`
	HRP            optimization.HRPOptions            `yaml:"hrp"`
	RegimeLookback int                                `yaml:"regime_lookback"`
}

// DefaultOptions returns the standard model constants
func DefaultOptions() Options {
	return Options{
		Frontier:       optimization.DefaultFrontierOptions(),
		BlackLitterman: optimization.DefaultBlackLittermanOptions(),
		HRP:            optimization.HRPOptions{Ordering: optimization.HRPOrderingAverageDistance},
		RegimeLookback: market_regime.DefaultLookback,
	}
}

// Request selects the universe and the history window
type Request struct {
	Tickers   []string  `json:"tickers" validate:"required,min=1,dive,required"`
	StartDate time.Time `json:"start_date" validate:"required"`
	EndDate   time.Time `json:"end_date" validate:"required"`
}

// Universe is the loaded data every analysis starts from
type Universe struct {
	Assets      map[string]*domain.AssetData `json:"-"`
	Correlation correlation.Matrix           `json:"correlation"`
	Validation  correlation.ValidationResult `json:"validation"`
	Diagnostics []historical.Diagnostic      `json:"diagnostics"`
	Warnings    []string                     `json:"warnings"`
}

// Service runs analyses against a price history provider. Optimizers are created per
// call so concurrent requests share no state.
type Service struct {
	provider historical.Provider
	opts     Options
	metrics  *telemetry.Metrics
	log      zerolog.Logger
}

// NewService creates the analysis service
func NewService(provider historical.Provider, opts Options, metrics *telemetry.Metrics, log zerolog.Logger) *Service {
	return &Service{
		provider: provider,
		opts:     opts,
		metrics:  metrics,
		log:      log.With().Str("service", "analysis").Logger(),
	}
}

// Load fetches the universe and builds its correlation matrix. Tickers that fail to
// load are dropped with a warning; a universe with nothing left is a configuration error.
func (s *Service) Load(ctx context.Context, req Request) (*Universe, error) {
	if req.StartDate.IsZero() || req.EndDate.IsZero() {
		return nil, fmt.Errorf("%w: start and end dates are required", domain.ErrConfiguration)
	}

	fetched, err := s.provider.Fetch(ctx, historical.FetchRequest{
		Tickers: req.Tickers,
		Start:   req.StartDate,
		End:     req.EndDate,
	}, nil)
	if err != nil {
		return nil, err
	}
	if err := historical.RequireAssets(fetched); err != nil {
		return nil, err
	}

	corr := correlation.NewBuilder(s.log).Build(fetched.Assets)
	u := &Universe{
		Assets:      fetched.Assets,
		Correlation: corr,
		Validation:  correlation.Validate(corr),
		Diagnostics: fetched.Diagnostics,
		Warnings:    fetched.Warnings(),
	}
	for _, v := range u.Validation.Violations {
		u.Warnings = append(u.Warnings, "correlation "+v.String())
	}
	if !u.Validation.Valid {
		s.log.Warn().Int("violations", len(u.Validation.Violations)).Msg("Correlation matrix failed validation")
	}
	return u, nil
}

// CorrelationReport is the matrix with its validation and concentrated pairs
type CorrelationReport struct {
	*Universe
	HighCorrelations []correlation.Pair `json:"high_correlations"`
}

// Correlation reports the correlation matrix of the universe. A non-positive threshold
// uses DefaultHighCorrelation.
func (s *Service) Correlation(ctx context.Context, req Request, threshold float64) (report *CorrelationReport, err error) {
	defer func() { s.metrics.ObserveAnalysis("correlation", err) }()

	u, err := s.Load(ctx, req)
	if err != nil {
		return nil, err
	}
	if threshold <= 0 {
		threshold = DefaultHighCorrelation
	}
	return &CorrelationReport{
		Universe:         u,
		HighCorrelations: u.Correlation.HighCorrelations(threshold),
	}, nil
}

// FrontierRequest asks for the efficient frontier
type FrontierRequest struct {
	Request
	// RiskTolerance in [0, 100] picks the optimal point along the frontier
	RiskTolerance float64 `json:"risk_tolerance" validate:"gte=0,lte=100"`
	// Seed makes the sampling reproducible; zero draws a fresh seed
	Seed uint64 `json:"seed,omitempty"`
}

// FrontierReport is the frontier and its notable portfolios
type FrontierReport struct {
	Points    []optimization.FrontierPoint `json:"points"`
	Optimal   *optimization.FrontierPoint  `json:"optimal,omitempty"`
	MaxSharpe *optimization.FrontierPoint  `json:"max_sharpe,omitempty"`
	MinVol    *optimization.FrontierPoint  `json:"min_volatility,omitempty"`
	Warnings  []string                     `json:"warnings"`
}

// Frontier generates the efficient frontier of the universe
func (s *Service) Frontier(ctx context.Context, req FrontierRequest) (report *FrontierReport, err error) {
	defer func() { s.metrics.ObserveAnalysis("frontier", err) }()

	u, err := s.Load(ctx, req.Request)
	if err != nil {
		return nil, err
	}

	var gen *optimization.FrontierGenerator
	if req.Seed != 0 {
		gen = optimization.NewFrontierGenerator(s.opts.Frontier, optimization.NewSeededRand(req.Seed), s.log)
	} else {
		gen = optimization.NewFrontierGenerator(s.opts.Frontier, nil, s.log)
	}

	points := gen.Generate(u.Correlation, u.Assets)
	report = &FrontierReport{Points: points, Warnings: u.Warnings}
	if p, ok := optimization.FindOptimalPortfolio(points, req.RiskTolerance); ok {
		report.Optimal = &p
	}
	if p, ok := optimization.FindMaxSharpePortfolio(points); ok {
		report.MaxSharpe = &p
	}
	if p, ok := optimization.FindMinVolPortfolio(points); ok {
		report.MinVol = &p
	}
	return report, nil
}

// BlackLittermanRequest carries investor views and optional market weights
type BlackLittermanRequest struct {
	Request
	Views         []domain.InvestorView   `json:"views" validate:"dive"`
	MarketWeights domain.PortfolioWeights `json:"market_weights,omitempty"`
}

// BlackLittermanReport wraps the optimizer result
type BlackLittermanReport struct {
	optimization.BlackLittermanResult
	Warnings []string `json:"warnings"`
}

// BlackLitterman blends equilibrium returns with the request's views
func (s *Service) BlackLitterman(ctx context.Context, req BlackLittermanRequest) (report *BlackLittermanReport, err error) {
	defer func() { s.metrics.ObserveAnalysis("black_litterman", err) }()

	u, err := s.Load(ctx, req.Request)
	if err != nil {
		return nil, err
	}

	warnings := u.Warnings
	for _, v := range req.Views {
		if u.Correlation.Index(v.Symbol) < 0 {
			warnings = append(warnings, fmt.Sprintf("view on %s ignored: not in universe", v.Symbol))
		}
	}

	bl := optimization.NewBlackLittermanOptimizer(s.opts.BlackLitterman, s.log)
	return &BlackLittermanReport{
		BlackLittermanResult: bl.Optimize(u.Correlation, u.Assets, req.Views, req.MarketWeights),
		Warnings:             warnings,
	}, nil
}

// WeightsRequest carries a user allocation to analyze
type WeightsRequest struct {
	Request
	Weights domain.PortfolioWeights `json:"weights" validate:"required,min=1"`
}

// WeightsReport wraps the allocation analysis
type WeightsReport struct {
	optimization.UserWeightAnalysis
	Warnings []string `json:"warnings"`
}

// AnalyzeWeights reads a user allocation against equilibrium. Weights are normalized;
// weights on tickers outside the loaded universe are dropped with a warning.
func (s *Service) AnalyzeWeights(ctx context.Context, req WeightsRequest) (report *WeightsReport, err error) {
	defer func() { s.metrics.ObserveAnalysis("analyze_weights", err) }()

	if req.Weights.Sum() <= 0 {
		return nil, fmt.Errorf("%w: weights must have a positive total", domain.ErrConfiguration)
	}
	u, err := s.Load(ctx, req.Request)
	if err != nil {
		return nil, err
	}

	warnings := u.Warnings
	weights := make(domain.PortfolioWeights, len(req.Weights))
	for t, w := range req.Weights {
		if u.Correlation.Index(t) < 0 {
			warnings = append(warnings, fmt.Sprintf("weight on %s ignored: not in universe", t))
			continue
		}
		weights[t] = w
	}

	bl := optimization.NewBlackLittermanOptimizer(s.opts.BlackLitterman, s.log)
	return &WeightsReport{
		UserWeightAnalysis: bl.AnalyzeUserWeights(u.Correlation, u.Assets, weights.Normalize()),
		Warnings:           warnings,
	}, nil
}

// HRPRequest asks for HRP weights, optionally tilted for the detected regime
type HRPRequest struct {
	Request
	Ordering    optimization.HRPOrdering `json:"ordering,omitempty"`
	ApplyRegime bool                     `json:"apply_regime"`
}

// HRPReport holds the raw and, when requested, regime-tilted weights
type HRPReport struct {
	Weights  domain.PortfolioWeights `json:"weights"`
	Tilted   domain.PortfolioWeights `json:"tilted_weights,omitempty"`
	Regime   *domain.RegimeSignal    `json:"regime,omitempty"`
	Warnings []string                `json:"warnings"`
}

// HRP computes hierarchical risk parity weights over the universe
func (s *Service) HRP(ctx context.Context, req HRPRequest) (report *HRPReport, err error) {
	defer func() { s.metrics.ObserveAnalysis("hrp", err) }()

	u, err := s.Load(ctx, req.Request)
	if err != nil {
		return nil, err
	}

	opts := s.opts.HRP
	if req.Ordering != "" {
		if !req.Ordering.Valid() {
			return nil, fmt.Errorf("%w: unknown HRP ordering %q", domain.ErrConfiguration, req.Ordering)
		}
		opts.Ordering = req.Ordering
	}

	hrp := optimization.NewHRPOptimizer(opts, s.log)
	weights, err := hrp.Optimize(u.Correlation, u.Assets)
	if err != nil {
		return nil, fmt.Errorf("hrp optimization: %w", err)
	}

	report = &HRPReport{Weights: weights, Warnings: u.Warnings}
	if req.ApplyRegime {
		signal := market_regime.NewDetector(s.opts.RegimeLookback, s.log).DetectAssets(u.Assets)
		report.Regime = &signal
		report.Tilted = hrp.AdjustForRegime(weights, signal.Regime)
	}
	return report, nil
}

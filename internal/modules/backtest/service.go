package backtest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aristath/sentinel-quant/internal/domain"
	"github.com/aristath/sentinel-quant/internal/events"
	"github.com/aristath/sentinel-quant/internal/modules/historical"
	"github.com/aristath/sentinel-quant/internal/telemetry"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

const eventsModule = "backtest"

// Archiver copies a completed run to long-term storage and returns its location
type Archiver interface {
	Archive(ctx context.Context, result *Result) (string, error)
}

// Service runs backtests and keeps their results
type Service struct {
	provider historical.Provider
	repo     *Repository
	events   *events.Manager
	archiver Archiver
	metrics  *telemetry.Metrics
	log      zerolog.Logger
}

// NewService creates the backtest service. repo and eventManager may be nil.
func NewService(provider historical.Provider, repo *Repository, eventManager *events.Manager, metrics *telemetry.Metrics, log zerolog.Logger) *Service {
	return &Service{
		provider: provider,
		repo:     repo,
		events:   eventManager,
		metrics:  metrics,
		log:      log.With().Str("module", "backtest").Logger(),
	}
}

// SetArchiver enables archiving of completed runs
func (s *Service) SetArchiver(a Archiver) {
	s.archiver = a
}

// Run executes one backtest, stores it and emits its lifecycle events. Storage and
// archive failures become warnings on the result, not errors.
func (s *Service) Run(ctx context.Context, cfg Config, progress historical.ProgressFunc) (*Result, error) {
	engine := NewEngine(cfg, s.provider, s.metrics, s.log)
	eff := engine.Config()
	runID := engine.ID()

	s.events.EmitTyped(eventsModule, &events.BacktestStartedData{
		RunID:     runID,
		Tickers:   eff.Tickers,
		StartDate: eff.StartDate.Format("2006-01-02"),
		EndDate:   eff.EndDate.Format("2006-01-02"),
		Rebalance: string(eff.Rebalance),
	})

	result, err := engine.Run(ctx, func(msg string, pct float64) {
		s.events.EmitTyped(eventsModule, &events.BacktestProgressData{RunID: runID, Message: msg, Percent: pct})
		if progress != nil {
			progress(msg, pct)
		}
	})
	if err != nil {
		s.events.EmitTyped(eventsModule, &events.BacktestFailedData{RunID: runID, Error: err.Error()})
		return nil, err
	}

	if s.repo != nil {
		if err := s.repo.Save(ctx, result); err != nil {
			s.log.Error().Err(err).Str("run_id", runID).Msg("Failed to store backtest run")
			result.Warnings = append(result.Warnings, "run could not be stored: "+err.Error())
		}
	}

	if s.archiver != nil {
		archiveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Minute)
		location, err := s.archiver.Archive(archiveCtx, result)
		cancel()
		if err != nil {
			s.log.Warn().Err(err).Str("run_id", runID).Msg("Failed to archive backtest run")
		} else {
			s.events.EmitTyped(eventsModule, &events.RunArchivedData{RunID: runID, Location: location})
		}
	}

	s.events.EmitTyped(eventsModule, &events.BacktestCompletedData{
		RunID:       runID,
		FinalValue:  result.Metrics.FinalValue,
		TotalReturn: result.Metrics.TotalReturn,
		SharpeRatio: result.Metrics.SharpeRatio,
		MaxDrawdown: result.Metrics.MaxDrawdown,
		Warnings:    len(result.Warnings),
	})

	return result, nil
}

// BatchItem is the outcome of one run in a batch, in request order
type BatchItem struct {
	Index  int     `json:"index"`
	Result *Result `json:"result,omitempty"`
	Error  string  `json:"error,omitempty"`
}

// RunBatch runs independent backtests concurrently, at most concurrency at a time. A
// failing run is reported in its item; only cancellation aborts the batch.
func (s *Service) RunBatch(ctx context.Context, cfgs []Config, concurrency int) ([]BatchItem, error) {
	if len(cfgs) == 0 {
		return nil, fmt.Errorf("%w: empty batch", domain.ErrConfiguration)
	}
	if concurrency <= 0 {
		concurrency = 2
	}

	items := make([]BatchItem, len(cfgs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for i, cfg := range cfgs {
		g.Go(func() error {
			items[i].Index = i
			result, err := s.Run(gctx, cfg, nil)
			if err != nil {
				if errors.Is(err, domain.ErrCancelled) {
					return err
				}
				items[i].Error = err.Error()
				return nil
			}
			items[i].Result = result
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return items, nil
}

// Get returns a stored run
func (s *Service) Get(ctx context.Context, id string) (*Result, error) {
	if s.repo == nil {
		return nil, fmt.Errorf("%w: run storage disabled", domain.ErrNotFound)
	}
	return s.repo.Get(ctx, id)
}

// List returns stored run summaries, newest first
func (s *Service) List(ctx context.Context, limit int) ([]RunSummary, error) {
	if s.repo == nil {
		return []RunSummary{}, nil
	}
	return s.repo.List(ctx, limit)
}

// Delete removes a stored run
func (s *Service) Delete(ctx context.Context, id string) error {
	if s.repo == nil {
		return fmt.Errorf("%w: run storage disabled", domain.ErrNotFound)
	}
	return s.repo.Delete(ctx, id)
}

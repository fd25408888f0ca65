package di

import (
	"context"
	"fmt"

	"github.com/aristath/sentinel-quant/internal/clients/yahoo"
	"github.com/aristath/sentinel-quant/internal/config"
	"github.com/aristath/sentinel-quant/internal/domain"
	"github.com/aristath/sentinel-quant/internal/events"
	"github.com/aristath/sentinel-quant/internal/modules/analysis"
	"github.com/aristath/sentinel-quant/internal/modules/backtest"
	"github.com/aristath/sentinel-quant/internal/modules/historical"
	"github.com/aristath/sentinel-quant/internal/reliability"
	"github.com/aristath/sentinel-quant/internal/telemetry"
	"github.com/rs/zerolog"
)

// SyntheticSeed seeds the generated price source so runs are reproducible
const SyntheticSeed = 42

// InitializeServices creates the price pipeline and the domain services
func InitializeServices(ctx context.Context, container *Container, cfg *config.Config, log zerolog.Logger) error {
	if container == nil {
		return fmt.Errorf("container cannot be nil")
	}

	// Events and metrics come first, everything else reports into them
	container.EventBus = events.NewBus(log)
	container.EventManager = events.NewManager(container.EventBus, log)
	container.Metrics = telemetry.NewMetrics()

	source, err := NewPriceSource(container, cfg, log)
	if err != nil {
		return err
	}
	container.Source = source
	container.Provider = historical.NewHistoryProvider(source, cfg.FetchConcurrency, container.Metrics, log)

	container.RunRepo = backtest.NewRepository(container.RunsDB, log)
	container.BacktestService = backtest.NewService(container.Provider, container.RunRepo, container.EventManager, container.Metrics, log)
	container.AnalysisService = analysis.NewService(container.Provider, cfg.Engine.AnalysisOptions(), container.Metrics, log)

	if cfg.Archive.Enabled() {
		archiver, err := reliability.NewS3Archiver(ctx, reliability.S3Config{
			Bucket:    cfg.Archive.Bucket,
			Region:    cfg.Archive.Region,
			Endpoint:  cfg.Archive.Endpoint,
			AccessKey: cfg.Archive.AccessKey,
			SecretKey: cfg.Archive.SecretKey,
		}, log)
		if err != nil {
			return fmt.Errorf("failed to create run archiver: %w", err)
		}
		container.Archiver = archiver
		container.BacktestService.SetArchiver(archiver)
		log.Info().Str("bucket", cfg.Archive.Bucket).Msg("Backtest archive enabled")
	}

	log.Info().
		Str("price_source", source.Name()).
		Int("fetch_concurrency", cfg.FetchConcurrency).
		Msg("Services initialized")

	return nil
}

// NewPriceSource builds the source selected by PRICE_SOURCE
func NewPriceSource(container *Container, cfg *config.Config, log zerolog.Logger) (historical.Source, error) {
	switch cfg.PriceSource {
	case config.PriceSourceSynthetic:
		return historical.NewSyntheticSource(SyntheticSeed), nil
	case config.PriceSourceYahoo, config.PriceSourceCache:
	default:
		return nil, fmt.Errorf("%w: unknown price source %q", domain.ErrConfiguration, cfg.PriceSource)
	}

	yahooCfg := yahoo.DefaultConfig()
	yahooCfg.RequestsPerSecond = cfg.YahooRequestsPerSecond
	container.YahooClient = yahoo.NewClient(yahooCfg, log)
	if cfg.PriceSource == config.PriceSourceYahoo {
		return container.YahooClient, nil
	}

	container.PriceStore = historical.NewStore(container.HistoryDB, log)
	container.CachedSource = historical.NewCachedSource(container.PriceStore, container.YahooClient, cfg.PriceCacheTTL, container.Metrics, log)
	return container.CachedSource, nil
}

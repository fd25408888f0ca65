package di

import (
	"fmt"

	"github.com/aristath/sentinel-quant/internal/config"
	"github.com/aristath/sentinel-quant/internal/modules/historical"
	"github.com/aristath/sentinel-quant/internal/reliability"
	"github.com/aristath/sentinel-quant/internal/scheduler"
	"github.com/rs/zerolog"
)

// RegisterJobs creates the scheduler and registers the background jobs.
// Returns JobInstances for manual triggering via API.
func RegisterJobs(container *Container, cfg *config.Config, log zerolog.Logger) (*JobInstances, error) {
	if container == nil {
		return nil, fmt.Errorf("container cannot be nil")
	}

	container.Scheduler = scheduler.New(log)
	instances := &JobInstances{}

	// Job 1: Price cache refresh (only meaningful when a cache sits in front of Yahoo)
	if container.CachedSource != nil {
		refresh := historical.NewRefreshJob(container.CachedSource, 0, log)
		refresh.SetEventManager(container.EventManager)
		instances.PriceRefresh = refresh
		if cfg.PriceRefreshSchedule != "" {
			if err := container.Scheduler.AddJob(cfg.PriceRefreshSchedule, refresh); err != nil {
				return nil, fmt.Errorf("failed to register price refresh job: %w", err)
			}
		}
	}

	// Job 2: Database maintenance
	maintenance := reliability.NewMaintenanceJob(container.Databases(), container.RunRepo, cfg.RunRetention, cfg.DataDir, log)
	instances.Maintenance = maintenance
	if cfg.MaintenanceSchedule != "" {
		if err := container.Scheduler.AddJob(cfg.MaintenanceSchedule, maintenance); err != nil {
			return nil, fmt.Errorf("failed to register maintenance job: %w", err)
		}
	}

	log.Info().Strs("jobs", container.Scheduler.Jobs()).Msg("Jobs registered")

	return instances, nil
}

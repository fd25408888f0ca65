package reliability

import (
	"context"
	"fmt"
	"time"

	"github.com/aristath/sentinel-quant/internal/database"
	"github.com/aristath/sentinel-quant/internal/modules/backtest"
	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/disk"
)

// MinFreeDiskBytes below which maintenance fails so the operator notices
const MinFreeDiskBytes = 500 * 1000 * 1000

// MaintenanceJob checks database integrity, truncates WAL files, prunes old runs and
// watches free disk space.
type MaintenanceJob struct {
	databases []*database.DB
	runs      *backtest.Repository
	retention time.Duration
	dataDir   string
	timeout   time.Duration
	log       zerolog.Logger
}

// NewMaintenanceJob creates the job. runs may be nil; a non-positive retention keeps
// every run.
func NewMaintenanceJob(databases []*database.DB, runs *backtest.Repository, retention time.Duration, dataDir string, log zerolog.Logger) *MaintenanceJob {
	return &MaintenanceJob{
		databases: databases,
		runs:      runs,
		retention: retention,
		dataDir:   dataDir,
		timeout:   10 * time.Minute,
		log:       log.With().Str("job", "database_maintenance").Logger(),
	}
}

// Name returns the job name for scheduler
func (j *MaintenanceJob) Name() string {
	return "database_maintenance"
}

// Run executes the maintenance pass
func (j *MaintenanceJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	j.log.Info().Msg("Starting database maintenance")
	startTime := time.Now()

	for _, db := range j.databases {
		if err := db.HealthCheck(ctx); err != nil {
			return fmt.Errorf("database %s failed health check: %w", db.Name(), err)
		}

		if _, err := db.Conn().ExecContext(ctx, "PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
			j.log.Warn().
				Str("database", db.Name()).
				Err(err).
				Msg("WAL checkpoint failed")
		}
	}

	if j.runs != nil && j.retention > 0 {
		if _, err := j.runs.Prune(ctx, time.Now().Add(-j.retention)); err != nil {
			j.log.Error().Err(err).Msg("Failed to prune backtest runs")
		}
	}

	if err := j.checkDiskSpace(ctx); err != nil {
		return err
	}

	j.log.Info().
		Dur("duration", time.Since(startTime)).
		Msg("Database maintenance complete")
	return nil
}

func (j *MaintenanceJob) checkDiskSpace(ctx context.Context) error {
	if j.dataDir == "" {
		return nil
	}
	usage, err := disk.UsageWithContext(ctx, j.dataDir)
	if err != nil {
		return fmt.Errorf("failed to stat filesystem: %w", err)
	}

	availableGB := float64(usage.Free) / 1e9
	j.log.Debug().Float64("available_gb", availableGB).Msg("Disk space check")

	if usage.Free < MinFreeDiskBytes {
		j.log.Error().
			Float64("available_gb", availableGB).
			Msg("Insufficient disk space for price cache and run storage")
		return fmt.Errorf("only %.2f GB free in %s", availableGB, j.dataDir)
	}
	if availableGB < 5.0 {
		j.log.Warn().
			Float64("available_gb", availableGB).
			Msg("Disk space running low")
	}
	return nil
}

/**
 * Package di provides dependency injection type definitions.
 *
 * The Container holds every long-lived service the server and CLI share.
 * It is built once by Wire and handed to the HTTP layer.
 */
package di

import (
	"github.com/aristath/sentinel-quant/internal/clients/yahoo"
	"github.com/aristath/sentinel-quant/internal/database"
	"github.com/aristath/sentinel-quant/internal/events"
	"github.com/aristath/sentinel-quant/internal/modules/analysis"
	"github.com/aristath/sentinel-quant/internal/modules/backtest"
	"github.com/aristath/sentinel-quant/internal/modules/historical"
	"github.com/aristath/sentinel-quant/internal/reliability"
	"github.com/aristath/sentinel-quant/internal/scheduler"
	"github.com/aristath/sentinel-quant/internal/telemetry"
)

// Container holds all application dependencies
type Container struct {
	// Databases
	HistoryDB *database.DB // Cached price histories
	RunsDB    *database.DB // Stored backtest runs

	// Events
	EventBus     *events.Bus
	EventManager *events.Manager

	Metrics *telemetry.Metrics

	// Price data
	PriceStore   *historical.Store
	YahooClient  *yahoo.Client            // nil when PRICE_SOURCE=synthetic
	CachedSource *historical.CachedSource // nil unless PRICE_SOURCE=cache
	Source       historical.Source
	Provider     historical.Provider

	// Services
	RunRepo         *backtest.Repository
	BacktestService *backtest.Service
	AnalysisService *analysis.Service
	Archiver        *reliability.S3Archiver // Optional

	Scheduler *scheduler.Scheduler
}

// JobInstances holds the jobs registered with the scheduler, for manual triggering via API
type JobInstances struct {
	PriceRefresh *historical.RefreshJob // nil unless the cache source is in use
	Maintenance  *reliability.MaintenanceJob
}

// All returns the non-nil jobs keyed by name
func (j *JobInstances) All() map[string]scheduler.Job {
	jobs := make(map[string]scheduler.Job)
	if j == nil {
		return jobs
	}
	if j.PriceRefresh != nil {
		jobs[j.PriceRefresh.Name()] = j.PriceRefresh
	}
	if j.Maintenance != nil {
		jobs[j.Maintenance.Name()] = j.Maintenance
	}
	return jobs
}

// Databases returns the open databases
func (c *Container) Databases() []*database.DB {
	var dbs []*database.DB
	for _, db := range []*database.DB{c.HistoryDB, c.RunsDB} {
		if db != nil {
			dbs = append(dbs, db)
		}
	}
	return dbs
}

// Close stops the scheduler and closes every database
func (c *Container) Close() error {
	if c.Scheduler != nil {
		c.Scheduler.Stop()
	}
	var firstErr error
	for _, db := range c.Databases() {
		if err := db.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

package historical

import (
	"context"
	"time"

	"github.com/aristath/sentinel-quant/internal/events"
	"github.com/rs/zerolog"
)

// RefreshJob is the scheduled sweep that keeps cached histories current
type RefreshJob struct {
	source  *CachedSource
	timeout time.Duration
	events  *events.Manager
	log     zerolog.Logger
}

// NewRefreshJob creates the job. timeout bounds a single sweep.
func NewRefreshJob(source *CachedSource, timeout time.Duration, log zerolog.Logger) *RefreshJob {
	if timeout <= 0 {
		timeout = 30 * time.Minute
	}
	return &RefreshJob{
		source:  source,
		timeout: timeout,
		log:     log.With().Str("job", "price_history_refresh").Logger(),
	}
}

// SetEventManager makes the job announce each completed sweep
func (j *RefreshJob) SetEventManager(m *events.Manager) {
	j.events = m
}

// Name returns the job name
func (j *RefreshJob) Name() string {
	return "price_history_refresh"
}

// Run refreshes every cached ticker
func (j *RefreshJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	start := time.Now()
	refreshed, err := j.source.RefreshAll(ctx)
	if err != nil {
		return err
	}

	elapsed := time.Since(start)
	j.events.EmitTyped("historical", &events.PriceHistoryRefreshedData{
		Refreshed:  refreshed,
		DurationMs: elapsed.Milliseconds(),
	})

	j.log.Info().
		Int("refreshed", refreshed).
		Dur("duration", elapsed).
		Msg("Price history refresh complete")
	return nil
}

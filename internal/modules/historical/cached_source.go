package historical

import (
	"context"
	"fmt"
	"time"

	"github.com/aristath/sentinel-quant/internal/domain"
	"github.com/aristath/sentinel-quant/internal/telemetry"
	"github.com/rs/zerolog"
)

const (
	// A cached series starting this close after the requested start still covers it
	// (weekends and holidays).
	startSlack = 5 * 24 * time.Hour
	// Same allowance at the end of the range
	endSlack = 4 * 24 * time.Hour

	refreshOverlapDays = 7
)

// CachedSource serves histories from the Store and falls back to a remote Source when
// the stored series does not cover the request. Remote results are merged into the
// store. When the remote fails, a stale stored series is served instead.
type CachedSource struct {
	store   *Store
	remote  Source
	ttl     time.Duration
	metrics *telemetry.Metrics
	log     zerolog.Logger
}

// NewCachedSource creates a read-through cache in front of remote
func NewCachedSource(store *Store, remote Source, ttl time.Duration, metrics *telemetry.Metrics, log zerolog.Logger) *CachedSource {
	return &CachedSource{
		store:   store,
		remote:  remote,
		ttl:     ttl,
		metrics: metrics,
		log:     log.With().Str("component", "cached_price_source").Logger(),
	}
}

func (c *CachedSource) Name() string {
	return "cache+" + c.remote.Name()
}

// History implements Source
func (c *CachedSource) History(ctx context.Context, ticker string, start, end time.Time) ([]domain.PriceBar, error) {
	cached, ok, err := c.store.Load(ctx, ticker)
	if err != nil {
		c.log.Warn().Err(err).Str("ticker", ticker).Msg("Failed to read cached history, fetching remote")
		ok = false
	}

	if ok && c.covers(cached, start, end) {
		c.metrics.ObserveCache(true)
		return filterRange(cached.Bars, start, end), nil
	}
	c.metrics.ObserveCache(false)

	fetchStart := start
	if ok && !cached.FirstDate().IsZero() && cached.FirstDate().Before(start) {
		fetchStart = cached.FirstDate()
	}

	remote, err := c.remote.History(ctx, ticker, fetchStart, end)
	if err != nil {
		if ok && len(cached.Bars) > 0 {
			c.log.Warn().Err(err).Str("ticker", ticker).Msg("Remote fetch failed, serving stale cached history")
			return filterRange(cached.Bars, start, end), nil
		}
		return nil, err
	}

	merged := MergeBars(cached.Bars, remote)
	if len(merged) > 0 {
		if err := c.store.Save(ctx, ticker, merged, c.remote.Name()); err != nil {
			c.log.Warn().Err(err).Str("ticker", ticker).Msg("Failed to cache fetched history")
		}
	}

	return filterRange(merged, start, end), nil
}

// covers reports whether the stored series can answer [start, end] without a remote
// call: it must reach back to start, and either reach end or be fresh.
func (c *CachedSource) covers(cached CachedHistory, start, end time.Time) bool {
	if len(cached.Bars) == 0 {
		return false
	}
	if cached.FirstDate().After(start.Add(startSlack)) {
		return false
	}
	if !cached.LastDate().Before(end.Add(-endSlack)) {
		return true
	}
	return c.ttl > 0 && time.Since(cached.FetchedAt) < c.ttl
}

// Refresh pulls the most recent bars for a stored ticker and merges them in
func (c *CachedSource) Refresh(ctx context.Context, ticker string) error {
	cached, ok, err := c.store.Load(ctx, ticker)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("refresh %s: not cached", ticker)
	}

	now := time.Now().UTC()
	from := cached.LastDate().AddDate(0, 0, -refreshOverlapDays)
	bars, err := c.remote.History(ctx, ticker, from, now)
	if err != nil {
		return fmt.Errorf("refresh %s: %w", ticker, err)
	}

	merged := MergeBars(cached.Bars, bars)
	return c.store.Save(ctx, ticker, merged, c.remote.Name())
}

// RefreshAll refreshes every stored ticker and returns how many succeeded. Individual
// failures are logged and do not stop the sweep.
func (c *CachedSource) RefreshAll(ctx context.Context) (int, error) {
	tickers, err := c.store.Tickers(ctx)
	if err != nil {
		return 0, err
	}

	refreshed := 0
	for _, t := range tickers {
		if err := ctx.Err(); err != nil {
			return refreshed, err
		}
		if err := c.Refresh(ctx, t); err != nil {
			c.log.Warn().Err(err).Str("ticker", t).Msg("Failed to refresh cached history")
			continue
		}
		refreshed++
	}
	return refreshed, nil
}

// MergeBars unions two series by date; bars from newer win on equal dates. Invalid
// closes are dropped and the result is date-ordered.
func MergeBars(older, newer []domain.PriceBar) []domain.PriceBar {
	combined := make([]domain.PriceBar, 0, len(older)+len(newer))
	combined = append(combined, older...)
	combined = append(combined, newer...)
	return sanitize(combined, time.Time{}, farFuture)
}

var farFuture = time.Date(9999, 12, 31, 0, 0, 0, 0, time.UTC)

func filterRange(bars []domain.PriceBar, start, end time.Time) []domain.PriceBar {
	s, e := truncateDay(start), truncateDay(end)
	out := make([]domain.PriceBar, 0, len(bars))
	for _, b := range bars {
		d := truncateDay(b.Date)
		if d.Before(s) || d.After(e) {
			continue
		}
		out = append(out, b)
	}
	return out
}

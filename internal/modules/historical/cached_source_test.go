package historical

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aristath/sentinel-quant/internal/domain"
	"github.com/aristath/sentinel-quant/internal/events"
	"github.com/aristath/sentinel-quant/internal/telemetry"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingSource struct {
	inner Source
	calls atomic.Int32
}

func (c *countingSource) Name() string { return "counting" }

func (c *countingSource) History(ctx context.Context, ticker string, start, end time.Time) ([]domain.PriceBar, error) {
	c.calls.Add(1)
	return c.inner.History(ctx, ticker, start, end)
}

func TestCachedSource_ReadThrough(t *testing.T) {
	ctx := context.Background()
	start, end := day("2024-01-01"), day("2024-06-28")
	static := NewStaticSource(map[string][]domain.PriceBar{"SPY": weekdayBars(start, end, 100, 101)})
	remote := &countingSource{inner: static}
	metrics := telemetry.NewMetrics()
	cache := NewCachedSource(NewStore(newHistoryDB(t), zerolog.Nop()), remote, time.Hour, metrics, zerolog.Nop())

	first, err := cache.History(ctx, "SPY", start, end)
	require.NoError(t, err)
	assert.Len(t, first, Weekdays(start, end))
	assert.Equal(t, int32(1), remote.calls.Load())

	// sub-range is served from the store
	second, err := cache.History(ctx, "SPY", day("2024-02-01"), day("2024-02-29"))
	require.NoError(t, err)
	assert.Len(t, second, Weekdays(day("2024-02-01"), day("2024-02-29")))
	assert.Equal(t, int32(1), remote.calls.Load())

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.CacheHits))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.CacheMisses))
}

func TestCachedSource_ExtendsEarlierRange(t *testing.T) {
	ctx := context.Background()
	full := weekdayBars(day("2023-01-02"), day("2024-06-28"), 100, 101)
	remote := &countingSource{inner: NewStaticSource(map[string][]domain.PriceBar{"SPY": full})}
	store := NewStore(newHistoryDB(t), zerolog.Nop())
	cache := NewCachedSource(store, remote, time.Hour, nil, zerolog.Nop())

	_, err := cache.History(ctx, "SPY", day("2024-01-01"), day("2024-06-28"))
	require.NoError(t, err)

	bars, err := cache.History(ctx, "SPY", day("2023-01-02"), day("2024-06-28"))
	require.NoError(t, err)
	assert.Equal(t, int32(2), remote.calls.Load())
	assert.Len(t, bars, len(full))

	stored, ok, err := store.Load(ctx, "SPY")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Len(t, stored.Bars, len(full))
}

func TestCachedSource_StaleFallback(t *testing.T) {
	ctx := context.Background()
	start := day("2024-01-01")
	store := NewStore(newHistoryDB(t), zerolog.Nop())
	require.NoError(t, store.Save(ctx, "SPY", weekdayBars(start, day("2024-01-31"), 100), "yahoo"))

	static := NewStaticSource(nil)
	static.FailWith("SPY", errors.New("rate limited"))
	// zero TTL: the stored series is never considered fresh
	cache := NewCachedSource(store, static, 0, nil, zerolog.Nop())

	bars, err := cache.History(ctx, "SPY", start, day("2024-06-28"))
	require.NoError(t, err)
	assert.Len(t, bars, Weekdays(start, day("2024-01-31")))

	_, err = cache.History(ctx, "QQQ", start, day("2024-06-28"))
	assert.Error(t, err)
}

func TestCachedSource_RefreshAll(t *testing.T) {
	ctx := context.Background()
	store := NewStore(newHistoryDB(t), zerolog.Nop())
	require.NoError(t, store.Save(ctx, "SPY", weekdayBars(day("2024-01-01"), day("2024-01-31"), 100), "static"))
	require.NoError(t, store.Save(ctx, "BAD", weekdayBars(day("2024-01-01"), day("2024-01-31"), 100), "static"))

	static := NewStaticSource(map[string][]domain.PriceBar{
		"SPY": weekdayBars(day("2024-01-25"), day("2024-02-29"), 105),
	})
	static.FailWith("BAD", errors.New("gone"))
	cache := NewCachedSource(store, static, time.Hour, nil, zerolog.Nop())

	bus := events.NewBus(zerolog.Nop())
	var announced []*events.Event
	bus.Subscribe(events.PriceHistoryRefreshed, func(e *events.Event) { announced = append(announced, e) })

	job := NewRefreshJob(cache, time.Minute, zerolog.Nop())
	job.SetEventManager(events.NewManager(bus, zerolog.Nop()))
	assert.Equal(t, "price_history_refresh", job.Name())
	require.NoError(t, job.Run())

	require.Len(t, announced, 1)
	assert.EqualValues(t, 1, announced[0].Data["refreshed"])

	stored, _, err := store.Load(ctx, "SPY")
	require.NoError(t, err)
	assert.Equal(t, day("2024-02-29"), stored.LastDate())
	assert.Equal(t, day("2024-01-01"), stored.FirstDate())
	assert.Len(t, stored.Bars, Weekdays(day("2024-01-01"), day("2024-02-29")))
}

func TestMergeBars_NewerWins(t *testing.T) {
	older := []domain.PriceBar{{Date: day("2024-01-01"), Close: 1}, {Date: day("2024-01-02"), Close: 2}}
	newer := []domain.PriceBar{{Date: day("2024-01-02"), Close: 20}, {Date: day("2024-01-03"), Close: 3}}

	merged := MergeBars(older, newer)

	require.Len(t, merged, 3)
	assert.Equal(t, 20.0, merged[1].Close)
}

// Package yahoo adapts go-yfinance to the price history Source used by the engine.
package yahoo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aristath/sentinel-quant/internal/domain"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
	"github.com/wnjoon/go-yfinance/pkg/models"
	"github.com/wnjoon/go-yfinance/pkg/ticker"
	"golang.org/x/time/rate"
)

// SourceName identifies bars fetched from Yahoo Finance
const SourceName = "yahoo"

// Config tunes request pacing and the circuit breaker
type Config struct {
	RequestsPerSecond float64       `yaml:"requests_per_second"`
	Burst             int           `yaml:"burst"`
	FailureThreshold  uint32        `yaml:"failure_threshold"` // Consecutive failures that open the breaker
	OpenTimeout       time.Duration `yaml:"open_timeout"`      // How long the breaker stays open
}

// DefaultConfig returns conservative limits for the public endpoints
func DefaultConfig() Config {
	return Config{
		RequestsPerSecond: 2,
		Burst:             4,
		FailureThreshold:  5,
		OpenTimeout:       60 * time.Second,
	}
}

// historyFunc fetches daily bars for a Yahoo symbol and period
type historyFunc func(symbol, period string) ([]models.Bar, error)

// Client fetches daily bars from Yahoo Finance
type Client struct {
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker
	fetch   historyFunc
	now     func() time.Time
	log     zerolog.Logger
}

// NewClient creates a rate-limited, circuit-broken Yahoo client
func NewClient(cfg Config, log zerolog.Logger) *Client {
	return newClient(cfg, fetchHistory, log)
}

func newClient(cfg Config, fetch historyFunc, log zerolog.Logger) *Client {
	def := DefaultConfig()
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = def.RequestsPerSecond
	}
	if cfg.Burst <= 0 {
		cfg.Burst = def.Burst
	}
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = def.FailureThreshold
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = def.OpenTimeout
	}

	c := &Client{
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst),
		fetch:   fetch,
		now:     time.Now,
		log:     log.With().Str("client", "yahoo").Logger(),
	}

	st := gobreaker.Settings{Name: "yahoo-history"}
	st.ReadyToTrip = func(counts gobreaker.Counts) bool {
		return counts.ConsecutiveFailures >= cfg.FailureThreshold
	}
	st.Timeout = cfg.OpenTimeout
	st.OnStateChange = func(name string, from, to gobreaker.State) {
		c.log.Warn().
			Str("breaker", name).
			Str("from", from.String()).
			Str("to", to.String()).
			Msg("Circuit breaker state changed")
	}
	c.breaker = gobreaker.NewCircuitBreaker(st)

	return c
}

// Name implements historical.Source
func (c *Client) Name() string {
	return SourceName
}

// History fetches adjusted daily bars covering [start, end]. Yahoo periods are
// relative to today, so the smallest period reaching back to start is requested and
// callers filter to the exact range.
func (c *Client) History(ctx context.Context, symbol string, start, end time.Time) ([]domain.PriceBar, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	yahooSymbol := strings.ToUpper(strings.TrimSpace(symbol))
	period := PeriodFor(start, c.now())

	out, err := c.breaker.Execute(func() (interface{}, error) {
		return c.fetch(yahooSymbol, period)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("yahoo unavailable for %s: %w", yahooSymbol, err)
		}
		return nil, fmt.Errorf("failed to get historical prices for %s: %w", yahooSymbol, err)
	}

	bars := out.([]models.Bar)
	prices := make([]domain.PriceBar, 0, len(bars))
	for _, bar := range bars {
		if bar.Date.Before(start) || bar.Date.After(end.Add(24*time.Hour)) {
			continue
		}
		prices = append(prices, domain.PriceBar{
			Date:   bar.Date,
			Open:   bar.Open,
			High:   bar.High,
			Low:    bar.Low,
			Close:  bar.Close,
			Volume: int64(bar.Volume),
		})
	}

	c.log.Debug().
		Str("symbol", yahooSymbol).
		Str("period", period).
		Int("bars", len(prices)).
		Msg("Fetched historical prices")

	return prices, nil
}

// BreakerState reports the circuit breaker state, for status endpoints
func (c *Client) BreakerState() string {
	return c.breaker.State().String()
}

// PeriodFor picks the shortest Yahoo period that reaches back from now to start
func PeriodFor(start, now time.Time) string {
	age := now.Sub(start)
	const year = 366 * 24 * time.Hour
	switch {
	case age <= year:
		return "1y"
	case age <= 2*year:
		return "2y"
	case age <= 5*year:
		return "5y"
	case age <= 10*year:
		return "10y"
	default:
		return "max"
	}
}

func fetchHistory(symbol, period string) ([]models.Bar, error) {
	t, err := ticker.New(symbol)
	if err != nil {
		return nil, fmt.Errorf("failed to create ticker: %w", err)
	}
	defer t.Close()

	return t.History(models.HistoryParams{
		Period:     period,
		Interval:   "1d",
		AutoAdjust: true,
	})
}

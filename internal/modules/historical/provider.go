// Package historical fetches daily price histories, assesses their quality and derives
// the per-asset return statistics the engine consumes.
package historical

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/aristath/sentinel-quant/internal/domain"
	"github.com/aristath/sentinel-quant/internal/telemetry"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// ProgressFunc receives a human-readable step and a completion percentage (0-100)
type ProgressFunc func(message string, percent float64)

// Source delivers raw daily bars for one ticker. Bars may be unordered or dirty; the
// provider cleans them.
type Source interface {
	Name() string
	History(ctx context.Context, ticker string, start, end time.Time) ([]domain.PriceBar, error)
}

// FetchRequest names the universe and date range to load
type FetchRequest struct {
	Tickers []string
	Start   time.Time
	End     time.Time
}

// Diagnostic reports the outcome for one ticker
type Diagnostic struct {
	Ticker           string      `json:"ticker"`
	Success          bool        `json:"success"`
	Bars             int         `json:"bars"`
	DataQuality      DataQuality `json:"data_quality"`
	ValidationIssues []string    `json:"validation_issues"`
	Error            string      `json:"error,omitempty"`
}

// FetchResult carries the loaded assets and a diagnostic per requested ticker, in
// request order.
type FetchResult struct {
	Assets      map[string]*domain.AssetData `json:"assets"`
	Diagnostics []Diagnostic                 `json:"diagnostics"`
}

// Failed lists tickers that could not be loaded
func (r FetchResult) Failed() []string {
	failed := make([]string, 0)
	for _, d := range r.Diagnostics {
		if !d.Success {
			failed = append(failed, d.Ticker)
		}
	}
	return failed
}

// Warnings flattens failures and data-quality issues into readable messages
func (r FetchResult) Warnings() []string {
	warnings := make([]string, 0)
	for _, d := range r.Diagnostics {
		if !d.Success {
			warnings = append(warnings, fmt.Sprintf("%s dropped: %s", d.Ticker, d.Error))
			continue
		}
		if d.DataQuality.Tier != TierHigh {
			warnings = append(warnings, fmt.Sprintf("%s data quality %s (%d issues, %.0f%% coverage)",
				d.Ticker, d.DataQuality.Tier, len(d.DataQuality.Issues), d.DataQuality.Coverage*100))
		}
	}
	return warnings
}

// Provider loads a universe of price histories
type Provider interface {
	Fetch(ctx context.Context, req FetchRequest, progress ProgressFunc) (FetchResult, error)
}

// RequireAssets escalates a result with no usable assets to a configuration error
func RequireAssets(result FetchResult) error {
	if len(result.Assets) > 0 {
		return nil
	}
	return fmt.Errorf("%w: no tickers with usable price history (failed: %s)",
		domain.ErrConfiguration, strings.Join(result.Failed(), ", "))
}

// HistoryProvider fetches tickers concurrently from a Source
type HistoryProvider struct {
	source      Source
	concurrency int
	metrics     *telemetry.Metrics
	log         zerolog.Logger
}

// NewHistoryProvider creates a provider. concurrency bounds the parallel fetches.
func NewHistoryProvider(source Source, concurrency int, metrics *telemetry.Metrics, log zerolog.Logger) *HistoryProvider {
	if concurrency <= 0 {
		concurrency = 4
	}
	return &HistoryProvider{
		source:      source,
		concurrency: concurrency,
		metrics:     metrics,
		log:         log.With().Str("component", "history_provider").Logger(),
	}
}

// Fetch loads every requested ticker. A failing ticker yields an unsuccessful
// diagnostic rather than an error; only invalid requests and cancellation are errors.
func (p *HistoryProvider) Fetch(ctx context.Context, req FetchRequest, progress ProgressFunc) (FetchResult, error) {
	tickers := NormalizeTickers(req.Tickers)
	if len(tickers) == 0 {
		return FetchResult{}, fmt.Errorf("%w: empty ticker universe", domain.ErrConfiguration)
	}
	if !req.End.After(req.Start) {
		return FetchResult{}, fmt.Errorf("%w: end date %s is not after start date %s",
			domain.ErrConfiguration, req.End.Format(dateLayout), req.Start.Format(dateLayout))
	}
	if progress == nil {
		progress = func(string, float64) {}
	}

	diagnostics := make([]Diagnostic, len(tickers))
	assets := make([]*domain.AssetData, len(tickers))

	var mu sync.Mutex
	done := 0

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency)

	progress(fmt.Sprintf("Fetching %d tickers", len(tickers)), 0)

	for i, ticker := range tickers {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			asset, diag := p.fetchOne(gctx, ticker, req.Start, req.End)
			if diag.Error != "" && gctx.Err() != nil {
				return gctx.Err()
			}
			assets[i] = asset
			diagnostics[i] = diag

			mu.Lock()
			defer mu.Unlock()
			done++
			progress(fmt.Sprintf("Fetched %s (%d/%d)", ticker, done, len(tickers)),
				float64(done)/float64(len(tickers))*100)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return FetchResult{}, fmt.Errorf("%w: price fetch: %v", domain.ErrCancelled, err)
		}
		return FetchResult{}, err
	}

	result := FetchResult{
		Assets:      make(map[string]*domain.AssetData, len(tickers)),
		Diagnostics: diagnostics,
	}
	for i, a := range assets {
		if a != nil {
			result.Assets[tickers[i]] = a
		}
	}

	p.log.Info().
		Int("requested", len(tickers)).
		Int("loaded", len(result.Assets)).
		Strs("failed", result.Failed()).
		Msg("Price history fetch complete")

	return result, nil
}

func (p *HistoryProvider) fetchOne(ctx context.Context, ticker string, start, end time.Time) (*domain.AssetData, Diagnostic) {
	diag := Diagnostic{Ticker: ticker, ValidationIssues: []string{}}

	began := time.Now()
	raw, err := p.source.History(ctx, ticker, start, end)
	p.metrics.ObserveFetch(p.source.Name(), err, time.Since(began))
	if err != nil {
		wrapped := fmt.Errorf("%w: %s: %v", domain.ErrExternalFetch, ticker, err)
		diag.Error = wrapped.Error()
		p.log.Warn().Err(err).Str("ticker", ticker).Msg("Failed to fetch price history, dropping ticker")
		return nil, diag
	}

	bars, quality := CleanAndAssess(raw, start, end)
	diag.Bars = len(bars)
	diag.DataQuality = quality
	for _, issue := range quality.Issues {
		diag.ValidationIssues = append(diag.ValidationIssues, issue.String())
	}

	if len(bars) < MinBars {
		diag.Error = fmt.Sprintf("%v: %s: insufficient data (%d bars in range)", domain.ErrExternalFetch, ticker, len(bars))
		p.log.Warn().Str("ticker", ticker).Int("bars", len(bars)).Msg("Insufficient price history, dropping ticker")
		return nil, diag
	}

	diag.Success = true
	return BuildAssetData(ticker, bars), diag
}

// NormalizeTickers upper-cases, trims and dedupes tickers, keeping first-seen order
func NormalizeTickers(tickers []string) []string {
	seen := make(map[string]bool, len(tickers))
	out := make([]string, 0, len(tickers))
	for _, t := range tickers {
		t = strings.ToUpper(strings.TrimSpace(t))
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}

// SortedTickers returns the asset keys in alphabetical order
func SortedTickers(assets map[string]*domain.AssetData) []string {
	out := make([]string, 0, len(assets))
	for t := range assets {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

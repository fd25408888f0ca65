package historical

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"github.com/aristath/sentinel-quant/internal/domain"
)

// StaticSource serves fixed in-memory histories. Unknown tickers fail with an error.
type StaticSource struct {
	mu   sync.RWMutex
	bars map[string][]domain.PriceBar
	fail map[string]error
}

// NewStaticSource creates an in-memory source
func NewStaticSource(bars map[string][]domain.PriceBar) *StaticSource {
	s := &StaticSource{
		bars: make(map[string][]domain.PriceBar, len(bars)),
		fail: make(map[string]error),
	}
	for t, b := range bars {
		s.bars[strings.ToUpper(t)] = b
	}
	return s
}

func (s *StaticSource) Name() string {
	return "static"
}

// Set replaces the bars for ticker
func (s *StaticSource) Set(ticker string, bars []domain.PriceBar) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bars[strings.ToUpper(ticker)] = bars
}

// FailWith makes every request for ticker return err
func (s *StaticSource) FailWith(ticker string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fail[strings.ToUpper(ticker)] = err
}

// History implements Source
func (s *StaticSource) History(ctx context.Context, ticker string, start, end time.Time) ([]domain.PriceBar, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	t := strings.ToUpper(ticker)
	if err, ok := s.fail[t]; ok {
		return nil, err
	}
	bars, ok := s.bars[t]
	if !ok {
		return nil, fmt.Errorf("no data for %s", ticker)
	}
	return filterRange(bars, start, end), nil
}

// SyntheticSource generates deterministic geometric-Brownian-motion histories on
// weekdays. Each ticker gets its own drift and volatility derived from the seed.
type SyntheticSource struct {
	seed uint64
}

// NewSyntheticSource creates a generator; equal seeds produce equal histories
func NewSyntheticSource(seed uint64) *SyntheticSource {
	return &SyntheticSource{seed: seed}
}

func (s *SyntheticSource) Name() string {
	return "synthetic"
}

// History implements Source
func (s *SyntheticSource) History(ctx context.Context, ticker string, start, end time.Time) ([]domain.PriceBar, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	h := s.seed
	for _, r := range strings.ToUpper(ticker) {
		h = h*31 + uint64(r)
	}
	rng := rand.New(rand.NewPCG(h, s.seed))

	annualDrift := 0.02 + rng.Float64()*0.10
	annualVol := 0.08 + rng.Float64()*0.30
	dt := 1.0 / 252
	price := 20 + rng.Float64()*180

	bars := make([]domain.PriceBar, 0)
	for d := truncateDay(start); !d.After(truncateDay(end)); d = d.AddDate(0, 0, 1) {
		if d.Weekday() == time.Saturday || d.Weekday() == time.Sunday {
			continue
		}
		open := price
		shock := rng.NormFloat64()
		price *= math.Exp((annualDrift-annualVol*annualVol/2)*dt + annualVol*math.Sqrt(dt)*shock)
		spread := math.Abs(rng.NormFloat64()) * annualVol * math.Sqrt(dt) * price / 2
		bars = append(bars, domain.PriceBar{
			Date:   d,
			Open:   open,
			High:   math.Max(open, price) + spread,
			Low:    math.Max(0.01, math.Min(open, price)-spread),
			Close:  price,
			Volume: int64(100000 + rng.IntN(900000)),
		})
	}
	return bars, nil
}

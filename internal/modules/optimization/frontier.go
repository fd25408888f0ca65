package optimization

import (
	"math"
	"math/rand/v2"
	"sort"
	"time"

	"github.com/aristath/sentinel-quant/internal/domain"
	"github.com/aristath/sentinel-quant/internal/modules/correlation"
	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/mat"
)

// FrontierPoint is one portfolio on the efficient frontier
type FrontierPoint struct {
	Risk    float64                 `json:"risk"`   // Annualized volatility, percent
	Return  float64                 `json:"return"` // Annualized expected return, percent
	Sharpe  float64                 `json:"sharpe"`
	Weights domain.PortfolioWeights `json:"weights"`
}

// FrontierOptions tunes the Monte-Carlo search
type FrontierOptions struct {
	NumSimulations int     `yaml:"num_simulations"`
	BucketWidth    float64 `yaml:"bucket_width"`   // Risk bucket width, percent
	TargetPoints   int     `yaml:"target_points"`  // Down-sample above this many points
	RiskFreeRate   float64 `yaml:"risk_free_rate"` // Percent, used for Sharpe
}

// DefaultFrontierOptions returns the standard search settings
func DefaultFrontierOptions() FrontierOptions {
	return FrontierOptions{
		NumSimulations: 5000,
		BucketWidth:    0.5,
		TargetPoints:   50,
		RiskFreeRate:   5.0,
	}
}

func (o FrontierOptions) withDefaults() FrontierOptions {
	d := DefaultFrontierOptions()
	if o.NumSimulations <= 0 {
		o.NumSimulations = d.NumSimulations
	}
	if o.BucketWidth <= 0 {
		o.BucketWidth = d.BucketWidth
	}
	if o.TargetPoints < 2 {
		o.TargetPoints = d.TargetPoints
	}
	return o
}

// FrontierGenerator samples random long-only portfolios and keeps the upper envelope of
// the risk/return cloud.
type FrontierGenerator struct {
	opts FrontierOptions
	rng  *rand.Rand
	log  zerolog.Logger
}

// NewFrontierGenerator creates a generator. A nil rng draws from a time-seeded source,
// so runs are reproducible only when a seeded rng is injected.
func NewFrontierGenerator(opts FrontierOptions, rng *rand.Rand, log zerolog.Logger) *FrontierGenerator {
	if rng == nil {
		seed := uint64(time.Now().UnixNano())
		rng = rand.New(rand.NewPCG(seed, seed>>1|1))
	}
	return &FrontierGenerator{
		opts: opts.withDefaults(),
		rng:  rng,
		log:  log.With().Str("component", "efficient_frontier").Logger(),
	}
}

// NewSeededRand returns a deterministic source for reproducible frontiers
func NewSeededRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// Generate builds the frontier for the assets in corr. Assets are looked up by symbol;
// zero assets yield an empty frontier.
func (g *FrontierGenerator) Generate(corr correlation.Matrix, assets map[string]*domain.AssetData) []FrontierPoint {
	u := newUniverse(corr, assets)
	n := u.size()
	if n == 0 {
		return []FrontierPoint{}
	}

	samples := make([]FrontierPoint, 0, g.opts.NumSimulations)
	raw := make([]float64, n)
	for s := 0; s < g.opts.NumSimulations; s++ {
		sum := 0.0
		for i := range raw {
			raw[i] = g.rng.Float64()
			sum += raw[i]
		}
		if sum == 0 {
			continue
		}
		for i := range raw {
			raw[i] /= sum
		}

		w := mat.NewVecDense(n, append([]float64(nil), raw...))
		risk := portfolioRisk(w, u.cov)
		ret := weightedSum(w, u.rets)
		samples = append(samples, FrontierPoint{
			Risk:    risk,
			Return:  ret,
			Sharpe:  g.sharpe(ret, risk),
			Weights: toWeights(w, u.symbols),
		})
	}

	frontier := g.envelope(samples)
	frontier = downsample(frontier, g.opts.TargetPoints)

	g.log.Debug().
		Int("assets", n).
		Int("simulations", len(samples)).
		Int("points", len(frontier)).
		Msg("Generated efficient frontier")

	return frontier
}

func (g *FrontierGenerator) sharpe(ret, risk float64) float64 {
	if risk <= 0 {
		return 0
	}
	return (ret - g.opts.RiskFreeRate) / risk
}

// envelope keeps the best-return portfolio of each risk bucket, and only while returns
// strictly increase with risk.
func (g *FrontierGenerator) envelope(samples []FrontierPoint) []FrontierPoint {
	sort.SliceStable(samples, func(i, j int) bool {
		return samples[i].Risk < samples[j].Risk
	})

	buckets := make([]int, 0)
	best := make(map[int]FrontierPoint)
	for _, p := range samples {
		b := int(math.Floor(p.Risk / g.opts.BucketWidth))
		cur, ok := best[b]
		if !ok {
			buckets = append(buckets, b)
			best[b] = p
			continue
		}
		if p.Return > cur.Return {
			best[b] = p
		}
	}

	frontier := make([]FrontierPoint, 0, len(buckets))
	maxReturn := math.Inf(-1)
	for _, b := range buckets {
		p := best[b]
		if p.Return > maxReturn {
			frontier = append(frontier, p)
			maxReturn = p.Return
		}
	}
	return frontier
}

// downsample keeps every stride-th point so at most target remain; the first and last
// points always survive.
func downsample(points []FrontierPoint, target int) []FrontierPoint {
	if len(points) <= target {
		return points
	}

	stride := int(math.Ceil(float64(len(points)-1) / float64(target-1)))
	out := make([]FrontierPoint, 0, target)
	for i := 0; i < len(points); i += stride {
		out = append(out, points[i])
	}
	if (len(points)-1)%stride != 0 {
		out = append(out, points[len(points)-1])
	}
	return out
}

// FindOptimalPortfolio maps a risk tolerance (0-100) linearly onto the frontier
func FindOptimalPortfolio(frontier []FrontierPoint, riskTolerance float64) (FrontierPoint, bool) {
	if len(frontier) == 0 {
		return FrontierPoint{}, false
	}
	tol := math.Max(0, math.Min(100, riskTolerance))
	idx := int(math.Floor(tol / 100 * float64(len(frontier)-1)))
	if idx < 0 {
		idx = 0
	}
	if idx > len(frontier)-1 {
		idx = len(frontier) - 1
	}
	return frontier[idx], true
}

// FindMaxSharpePortfolio returns the point with the highest Sharpe ratio
func FindMaxSharpePortfolio(frontier []FrontierPoint) (FrontierPoint, bool) {
	if len(frontier) == 0 {
		return FrontierPoint{}, false
	}
	best := frontier[0]
	for _, p := range frontier[1:] {
		if p.Sharpe > best.Sharpe {
			best = p
		}
	}
	return best, true
}

// FindMinVolPortfolio returns the point with the lowest risk
func FindMinVolPortfolio(frontier []FrontierPoint) (FrontierPoint, bool) {
	if len(frontier) == 0 {
		return FrontierPoint{}, false
	}
	best := frontier[0]
	for _, p := range frontier[1:] {
		if p.Risk < best.Risk {
			best = p
		}
	}
	return best, true
}

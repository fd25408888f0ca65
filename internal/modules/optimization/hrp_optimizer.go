package optimization

import (
	"fmt"
	"math"
	"sort"

	"github.com/aristath/sentinel-quant/internal/domain"
	"github.com/aristath/sentinel-quant/internal/modules/correlation"
	"github.com/aristath/sentinel-quant/pkg/formulas"
	"github.com/rs/zerolog"
)

// HRPOrdering selects how assets are seriated before bisection
type HRPOrdering string

const (
	// HRPOrderingAverageDistance sorts assets by mean distance to all others
	HRPOrderingAverageDistance HRPOrdering = "average_distance"
	// HRPOrderingSingleLinkage uses the leaf order of a single-linkage dendrogram
	HRPOrderingSingleLinkage HRPOrdering = "single_linkage"
	// HRPOrderingCompleteLinkage uses the leaf order of a complete-linkage dendrogram
	HRPOrderingCompleteLinkage HRPOrdering = "complete_linkage"
	// HRPOrderingAverageLinkage uses the leaf order of an average-linkage dendrogram
	HRPOrderingAverageLinkage HRPOrdering = "average_linkage"
)

// Valid reports whether o names a known ordering
func (o HRPOrdering) Valid() bool {
	switch o {
	case HRPOrderingAverageDistance, HRPOrderingSingleLinkage, HRPOrderingCompleteLinkage, HRPOrderingAverageLinkage:
		return true
	}
	return false
}

type HRPOptions struct {
	Ordering HRPOrdering `yaml:"ordering"`
}

func defaultHRPOptions() HRPOptions {
	return HRPOptions{Ordering: HRPOrderingAverageDistance}
}

// minVariance stands in for zero volatility so inverse weighting stays finite
const minVariance = 1e-12

// HRPOptimizer performs Hierarchical Risk Parity portfolio optimization.
type HRPOptimizer struct {
	opts HRPOptions
	log  zerolog.Logger
}

// NewHRPOptimizer creates a new HRP optimizer.
func NewHRPOptimizer(opts HRPOptions, log zerolog.Logger) *HRPOptimizer {
	if !opts.Ordering.Valid() {
		opts = defaultHRPOptions()
	}
	return &HRPOptimizer{
		opts: opts,
		log:  log.With().Str("component", "hrp_optimizer").Logger(),
	}
}

type hrpClusterNode struct {
	left    *hrpClusterNode
	right   *hrpClusterNode
	leaves  []int
	minLeaf int
}

// Optimize allocates long-only weights:
// 1) Distance: d_ij = sqrt(2 * (1 - ρ_ij))
// 2) Quasi-diagonal ordering (average distance or dendrogram leaf order)
// 3) Recursive bisection, halves weighted by inverse aggregate variance Σσ²,
// pairs by inverse volatility
//
// Weights sum to 1 and are never negative. An empty matrix yields empty weights.
func (hrp *HRPOptimizer) Optimize(corr correlation.Matrix, assets map[string]*domain.AssetData) (domain.PortfolioWeights, error) {
	n := corr.Size()
	if n == 0 {
		return domain.PortfolioWeights{}, nil
	}
	if n == 1 {
		return domain.PortfolioWeights{corr.Symbols[0]: 1.0}, nil
	}

	if len(corr.Values) != n {
		return nil, fmt.Errorf("correlation matrix size %d does not match symbols %d", len(corr.Values), n)
	}
	for i := 0; i < n; i++ {
		if len(corr.Values[i]) != n {
			return nil, fmt.Errorf("correlation matrix is not square")
		}
	}

	dist := formulas.CorrelationToDistance(corr.Values)
	order := hrp.order(dist)

	vols := correlation.Volatilities(corr, assets)
	weights := make([]float64, n)
	for i := range weights {
		weights[i] = 1.0
	}
	hrp.recursiveBisectionAllocate(weights, vols, order)

	sum := 0.0
	for _, w := range weights {
		sum += w
	}
	if sum <= 0 || math.IsNaN(sum) || math.IsInf(sum, 0) {
		return nil, fmt.Errorf("invalid HRP weight sum: %v", sum)
	}

	result := make(domain.PortfolioWeights, n)
	for i, s := range corr.Symbols {
		result[s] = weights[i] / sum
	}

	hrp.log.Debug().
		Int("assets", n).
		Str("ordering", string(hrp.opts.Ordering)).
		Msg("Computed HRP weights")

	return result, nil
}

func (hrp *HRPOptimizer) order(dist [][]float64) []int {
	switch hrp.opts.Ordering {
	case HRPOrderingSingleLinkage:
		return hrp.quasiDiagonalOrder(hrp.buildDendrogram(dist, linkageSingle))
	case HRPOrderingCompleteLinkage:
		return hrp.quasiDiagonalOrder(hrp.buildDendrogram(dist, linkageComplete))
	case HRPOrderingAverageLinkage:
		return hrp.quasiDiagonalOrder(hrp.buildDendrogram(dist, linkageAverage))
	default:
		return averageDistanceOrder(dist)
	}
}

// averageDistanceOrder sorts indices by mean distance to every other asset, ascending.
// Ties keep matrix order.
func averageDistanceOrder(dist [][]float64) []int {
	n := len(dist)
	avg := make([]float64, n)
	for i := 0; i < n; i++ {
		sum := 0.0
		for j := 0; j < n; j++ {
			if i != j {
				sum += dist[i][j]
			}
		}
		if n > 1 {
			avg[i] = sum / float64(n-1)
		}
	}

	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return avg[order[a]] < avg[order[b]]
	})
	return order
}

type linkage int

const (
	linkageSingle linkage = iota
	linkageComplete
	linkageAverage
)

func (hrp *HRPOptimizer) buildDendrogram(dist [][]float64, link linkage) *hrpClusterNode {
	n := len(dist)
	clusters := make([]*hrpClusterNode, 0, n)
	for i := 0; i < n; i++ {
		clusters = append(clusters, &hrpClusterNode{leaves: []int{i}, minLeaf: i})
	}

	// Agglomerative clustering with deterministic tie-break.
	for len(clusters) > 1 {
		bestI, bestJ := 0, 1
		bestD := clusterDistance(dist, clusters[0], clusters[1], link)

		for i := 0; i < len(clusters); i++ {
			for j := i + 1; j < len(clusters); j++ {
				d := clusterDistance(dist, clusters[i], clusters[j], link)
				if d < bestD || (d == bestD && clusterPairLess(clusters[i], clusters[j], clusters[bestI], clusters[bestJ])) {
					bestD = d
					bestI = i
					bestJ = j
				}
			}
		}

		left, right := clusters[bestI], clusters[bestJ]
		if right.minLeaf < left.minLeaf {
			left, right = right, left
		}

		merged := &hrpClusterNode{
			left:    left,
			right:   right,
			leaves:  append(append(make([]int, 0, len(left.leaves)+len(right.leaves)), left.leaves...), right.leaves...),
			minLeaf: left.minLeaf,
		}

		next := make([]*hrpClusterNode, 0, len(clusters)-1)
		for k := 0; k < len(clusters); k++ {
			if k == bestI || k == bestJ {
				continue
			}
			next = append(next, clusters[k])
		}
		clusters = append(next, merged)
	}

	return clusters[0]
}

// clusterPairLess breaks ties by the smaller leaf of each pair, then the larger
func clusterPairLess(a1, b1, a2, b2 *hrpClusterNode) bool {
	x1, y1 := a1.minLeaf, b1.minLeaf
	if y1 < x1 {
		x1, y1 = y1, x1
	}
	x2, y2 := a2.minLeaf, b2.minLeaf
	if y2 < x2 {
		x2, y2 = y2, x2
	}
	if x1 != x2 {
		return x1 < x2
	}
	return y1 < y2
}

func clusterDistance(dist [][]float64, a, b *hrpClusterNode, link linkage) float64 {
	switch link {
	case linkageComplete:
		worst := math.Inf(-1)
		for _, i := range a.leaves {
			for _, j := range b.leaves {
				worst = math.Max(worst, dist[i][j])
			}
		}
		return worst
	case linkageAverage:
		sum := 0.0
		for _, i := range a.leaves {
			for _, j := range b.leaves {
				sum += dist[i][j]
			}
		}
		return sum / float64(len(a.leaves)*len(b.leaves))
	default:
		best := math.Inf(1)
		for _, i := range a.leaves {
			for _, j := range b.leaves {
				best = math.Min(best, dist[i][j])
			}
		}
		return best
	}
}

func (hrp *HRPOptimizer) quasiDiagonalOrder(node *hrpClusterNode) []int {
	if node == nil {
		return nil
	}
	if node.left == nil && node.right == nil {
		return []int{node.leaves[0]}
	}
	return append(hrp.quasiDiagonalOrder(node.left), hrp.quasiDiagonalOrder(node.right)...)
}

func (hrp *HRPOptimizer) recursiveBisectionAllocate(weights []float64, vols []float64, order []int) {
	switch len(order) {
	case 0, 1:
		return
	case 2:
		a, b := order[0], order[1]
		invA := 1.0 / math.Max(vols[a], math.Sqrt(minVariance))
		invB := 1.0 / math.Max(vols[b], math.Sqrt(minVariance))
		alpha := invA / (invA + invB)
		weights[a] *= alpha
		weights[b] *= 1.0 - alpha
		return
	}

	split := len(order) / 2
	left := order[:split]
	right := order[split:]

	invLeft := 1.0 / math.Max(clusterVariance(vols, left), minVariance)
	invRight := 1.0 / math.Max(clusterVariance(vols, right), minVariance)
	alpha := invLeft / (invLeft + invRight)

	for _, idx := range left {
		weights[idx] *= alpha
	}
	for _, idx := range right {
		weights[idx] *= 1.0 - alpha
	}

	hrp.recursiveBisectionAllocate(weights, vols, left)
	hrp.recursiveBisectionAllocate(weights, vols, right)
}

// clusterVariance is the aggregate variance Σσ² of the cluster members
func clusterVariance(vols []float64, idxs []int) float64 {
	v := 0.0
	for _, i := range idxs {
		v += vols[i] * vols[i]
	}
	return v
}

package formulas

import "math"

// CorrelationToDistance converts a correlation matrix to a distance matrix.
// Distance formula: d_ij = sqrt(2 * (1 - ρ_ij))
//
// This is the metric used to order assets for hierarchical risk parity.
func CorrelationToDistance(corrMatrix [][]float64) [][]float64 {
	n := len(corrMatrix)
	distMatrix := make([][]float64, n)

	for i := 0; i < n; i++ {
		distMatrix[i] = make([]float64, n)
		for j := 0; j < n; j++ {
			corr := math.Max(-1.0, math.Min(1.0, corrMatrix[i][j]))
			distMatrix[i][j] = math.Sqrt(2.0 * (1.0 - corr))
		}
	}

	return distMatrix
}

package correlation

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		values [][]float64
		rules  []Rule
	}{
		{
			name:   "valid",
			values: [][]float64{{1, 0.3}, {0.3, 1}},
		},
		{
			name:   "bad diagonal",
			values: [][]float64{{0.9, 0.3}, {0.3, 1}},
			rules:  []Rule{RuleDiagonal},
		},
		{
			name:   "asymmetric",
			values: [][]float64{{1, 0.3}, {0.31, 1}},
			rules:  []Rule{RuleSymmetry},
		},
		{
			name:   "within symmetry tolerance",
			values: [][]float64{{1, 0.3}, {0.30005, 1}},
		},
		{
			name:   "out of range",
			values: [][]float64{{1, 1.5}, {1.5, 1}},
			rules:  []Rule{RuleOutOfRange, RuleOutOfRange},
		},
		{
			name:   "nan",
			values: [][]float64{{1, math.NaN()}, {0, 1}},
			rules:  []Rule{RuleNotFinite},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Validate(Matrix{Symbols: []string{"A", "B"}, Values: tt.values})

			assert.Equal(t, len(tt.rules) == 0, result.Valid)
			require.Len(t, result.Violations, len(tt.rules))
			for i, r := range tt.rules {
				assert.Equal(t, r, result.Violations[i].Rule)
			}
		})
	}
}

func TestValidate_NotSquare(t *testing.T) {
	result := Validate(Matrix{Symbols: []string{"A", "B"}, Values: [][]float64{{1, 0}}})
	assert.False(t, result.Valid)
	assert.Equal(t, RuleNotSquare, result.Violations[0].Rule)
}

func TestValidate_ReportsSymbols(t *testing.T) {
	result := Validate(Matrix{Symbols: []string{"A", "B"}, Values: [][]float64{{1, 2}, {2, 1}}})
	assert.Equal(t, "A", result.Violations[0].SymbolA)
	assert.Equal(t, "B", result.Violations[0].SymbolB)
	assert.Equal(t, 2.0, result.Violations[0].Value)
}

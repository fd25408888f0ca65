package correlation

import (
	"fmt"
	"math"
)

// Tolerance for the symmetry and unit-diagonal checks
const Tolerance = 1e-4

// Rule names a violated matrix invariant
type Rule string

const (
	RuleNotSquare  Rule = "not_square"
	RuleDiagonal   Rule = "diagonal"
	RuleSymmetry   Rule = "symmetry"
	RuleOutOfRange Rule = "out_of_range"
	RuleNotFinite  Rule = "not_finite"
)

// Violation identifies one offending cell
type Violation struct {
	SymbolA string  `json:"symbol_a"`
	SymbolB string  `json:"symbol_b"`
	Value   float64 `json:"value"`
	Rule    Rule    `json:"rule"`
}

func (v Violation) String() string {
	return fmt.Sprintf("%s: %s/%s = %.6f", v.Rule, v.SymbolA, v.SymbolB, v.Value)
}

// ValidationResult is a diagnostic pass/fail; it never blocks computation
type ValidationResult struct {
	Valid      bool        `json:"valid"`
	Violations []Violation `json:"violations"`
}

// Validate re-checks that the matrix is square, has a unit diagonal, is symmetric, and
// keeps every entry finite and within [-1, 1].
func Validate(m Matrix) ValidationResult {
	result := ValidationResult{Valid: true, Violations: []Violation{}}
	add := func(i, j int, value float64, rule Rule) {
		result.Valid = false
		result.Violations = append(result.Violations, Violation{
			SymbolA: symbolAt(m, i),
			SymbolB: symbolAt(m, j),
			Value:   value,
			Rule:    rule,
		})
	}

	n := m.Size()
	if len(m.Values) != n {
		add(-1, -1, float64(len(m.Values)), RuleNotSquare)
		return result
	}
	for i := 0; i < n; i++ {
		if len(m.Values[i]) != n {
			add(i, -1, float64(len(m.Values[i])), RuleNotSquare)
			return result
		}
	}

	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			v := m.Values[i][j]
			if math.IsNaN(v) || math.IsInf(v, 0) {
				add(i, j, v, RuleNotFinite)
				continue
			}
			if i == j {
				if math.Abs(v-1.0) > Tolerance {
					add(i, j, v, RuleDiagonal)
				}
				continue
			}
			if v < -1 || v > 1 {
				add(i, j, v, RuleOutOfRange)
			}
			if j > i && math.Abs(v-m.Values[j][i]) > Tolerance {
				add(i, j, v, RuleSymmetry)
			}
		}
	}

	return result
}

func symbolAt(m Matrix, i int) string {
	if i >= 0 && i < len(m.Symbols) {
		return m.Symbols[i]
	}
	return ""
}

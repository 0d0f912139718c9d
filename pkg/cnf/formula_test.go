package cnf

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLiteral_Satisfied(t *testing.T) {
	tests := []struct {
		lit      Literal
		value    bool
		expected bool
	}{
		{1, true, true},
		{1, false, false},
		{-1, true, false},
		{-1, false, true},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, tt.lit.Satisfied(tt.value))
	}
}

func TestLiteral_VarNegated(t *testing.T) {
	assert.Equal(t, 3, Literal(3).Var())
	assert.Equal(t, 3, Literal(-3).Var())
	assert.False(t, Literal(3).Negated())
	assert.True(t, Literal(-3).Negated())
}

func TestNewFormula_Clauses(t *testing.T) {
	clauses := []Clause{{1, 2}, {-1, 3}, {2}}
	f := NewFormula(3, clauses)

	assert.Equal(t, 3, f.NumClauses())
	assert.Equal(t, clauses, f.Clauses())
}

func TestFormula_LiteralWeight_Unweighted(t *testing.T) {
	f := NewFormula(1, []Clause{{1}})
	assert.Equal(t, 1.0, f.LiteralWeight(1))
	assert.Equal(t, 1.0, f.LiteralWeight(-1))
	assert.False(t, f.Weighted())
}

func TestFormula_LiteralWeight_Weighted(t *testing.T) {
	f := NewFormula(1, []Clause{{1}})
	f.Weights = []float64{0, 0, 0.3, 0.7} // index 2,3 for variable 1
	assert.True(t, f.Weighted())
	assert.Equal(t, 0.3, f.LiteralWeight(1))
	assert.Equal(t, 0.7, f.LiteralWeight(-1))
}

func TestClauseVars_Dedup(t *testing.T) {
	c := Clause{1, -1, 2}
	vars := ClauseVars(c)
	assert.ElementsMatch(t, []int{1, 2}, vars)
}

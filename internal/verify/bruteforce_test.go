package verify

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/satcount/gpusatgo/internal/solverr"
	"github.com/satcount/gpusatgo/pkg/cnf"
)

func TestBruteForce_TwoClausesTwoModels(t *testing.T) {
	formula := cnf.NewFormula(2, []cnf.Clause{{1, 2}, {-1, -2}})

	count, isSat, err := BruteForce(context.Background(), formula)
	require.NoError(t, err)
	assert.True(t, isSat)
	assert.Equal(t, 2.0, count)
}

func TestBruteForce_Unsat(t *testing.T) {
	formula := cnf.NewFormula(1, []cnf.Clause{{1}, {-1}})

	count, isSat, err := BruteForce(context.Background(), formula)
	require.NoError(t, err)
	assert.False(t, isSat)
	assert.Equal(t, 0.0, count)
}

func TestBruteForce_Weighted(t *testing.T) {
	formula := cnf.NewFormula(1, []cnf.Clause{{1}})
	formula.Weights = []float64{1, 1, 0.3, 0.7}

	count, isSat, err := BruteForce(context.Background(), formula)
	require.NoError(t, err)
	assert.True(t, isSat)
	assert.InDelta(t, 0.3, count, 1e-9)
}

func TestBruteForce_RejectsOversizeFormula(t *testing.T) {
	formula := cnf.NewFormula(MaxVars+1, []cnf.Clause{{1}})

	_, _, err := BruteForce(context.Background(), formula)
	require.Error(t, err)
	assert.Equal(t, solverr.CodeCapacityExhausted, solverr.Code(err))
}

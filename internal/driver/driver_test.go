package driver

import (
	"bytes"
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/satcount/gpusatgo/pkg/cnf"
	"github.com/satcount/gpusatgo/pkg/treedec"
	"github.com/satcount/gpusatgo/pkg/utils"
)

// chainDecomp returns a decomposition with a single leaf bag over
// leafVars fed straight into a forget bag over rootVars (the root),
// matching "p cnf 1 1 / 1 0" style single-variable scenarios
// generalised to n vars.
func chainDecomp(leafVars []int, rootVars []int) *treedec.Decomposition {
	leaf := treedec.NewBag(0, treedec.KindLeaf, leafVars)
	root := treedec.NewBag(1, treedec.KindForget, rootVars, 0)
	return &treedec.Decomposition{Bags: []*treedec.Bag{leaf, root}, Root: 1}
}

func TestSolve_SingleClauseOneModel(t *testing.T) {
	// p cnf 1 1 / 1 0 -> 1 model (x1=true)
	formula := cnf.NewFormula(1, []cnf.Clause{{1}})
	decomp := chainDecomp([]int{1}, nil)

	res, err := Solve(context.Background(), formula, decomp, DefaultConfig())
	require.NoError(t, err)
	assert.True(t, res.IsSat)
	assert.Equal(t, 1.0, res.Count)
}

func TestSolve_SingleClauseWeighted(t *testing.T) {
	formula := cnf.NewFormula(1, []cnf.Clause{{1}})
	formula.Weights = []float64{1, 1, 0.3, 0.7} // index 0,1 unused (var 0); var1: +=0.3, -=0.7
	decomp := chainDecomp([]int{1}, nil)

	res, err := Solve(context.Background(), formula, decomp, DefaultConfig())
	require.NoError(t, err)
	assert.InDelta(t, 0.3, res.Count, 1e-9)
}

func TestSolve_TwoClausesTwoModels(t *testing.T) {
	// p cnf 2 2 / 1 2 0 / -1 -2 0 -> 2 models: (T,F) and (F,T)
	formula := cnf.NewFormula(2, []cnf.Clause{{1, 2}, {-1, -2}})
	decomp := chainDecomp([]int{1, 2}, nil)

	res, err := Solve(context.Background(), formula, decomp, DefaultConfig())
	require.NoError(t, err)
	assert.Equal(t, 2.0, res.Count)
}

func TestSolve_UnsatPair(t *testing.T) {
	// 1 0 / -1 0 -> 0 models
	formula := cnf.NewFormula(1, []cnf.Clause{{1}, {-1}})
	decomp := chainDecomp([]int{1}, nil)

	res, err := Solve(context.Background(), formula, decomp, DefaultConfig())
	require.NoError(t, err)
	assert.False(t, res.IsSat)
	assert.Equal(t, 0.0, res.Count)
}

// joinChainDecomp builds two branches each forgetting their private
// variable down to the shared variable 2 before joining, matching
// "p cnf 3 2 / 1 2 0 / 2 3 0" (5 models). A join bag only ever carries
// the variables shared by both children; a variable private to one
// side must be forgotten below the join, not at it.
func joinChainDecomp() (*cnf.Formula, *treedec.Decomposition) {
	formula := cnf.NewFormula(3, []cnf.Clause{{1, 2}, {2, 3}})

	leaf1 := treedec.NewBag(0, treedec.KindLeaf, []int{1, 2})
	leaf2 := treedec.NewBag(1, treedec.KindLeaf, []int{2, 3})
	forget1 := treedec.NewBag(2, treedec.KindForget, []int{2}, 0)
	forget2 := treedec.NewBag(3, treedec.KindForget, []int{2}, 1)
	join := treedec.NewBag(4, treedec.KindJoin, []int{2}, 2, 3)

	return formula, &treedec.Decomposition{
		Bags: []*treedec.Bag{leaf1, leaf2, forget1, forget2, join},
		Root: 4,
	}
}

func TestSolve_JoinFiveModels(t *testing.T) {
	formula, decomp := joinChainDecomp()

	res, err := Solve(context.Background(), formula, decomp, DefaultConfig())
	require.NoError(t, err)
	assert.Equal(t, 5.0, res.Count)
	assert.True(t, res.IsSat)
	assert.Equal(t, 1, res.NumJoin)
	assert.Equal(t, 4, res.NumIntroduceForget)
}

func TestSolve_JoinAgreesArrayAndTree(t *testing.T) {
	formula, decomp := joinChainDecomp()

	arrayCfg := DefaultConfig()
	arrayCfg.Layout = LayoutArray
	arrayRes, err := Solve(context.Background(), formula, decomp, arrayCfg)
	require.NoError(t, err)

	treeCfg := DefaultConfig()
	treeCfg.Layout = LayoutTree
	treeRes, err := Solve(context.Background(), formula, decomp, treeCfg)
	require.NoError(t, err)

	assert.Equal(t, arrayRes.Count, treeRes.Count)
}

func TestSolve_ChunkingIndependence(t *testing.T) {
	formula, decomp := joinChainDecomp()

	unchunked := DefaultConfig()
	unchunked.MaxMemoryBuffer = 0
	unchunkedRes, err := Solve(context.Background(), formula, decomp, unchunked)
	require.NoError(t, err)

	chunked := DefaultConfig()
	chunked.MaxMemoryBuffer = bytesPerEntry // force one entry per chunk
	chunkedRes, err := Solve(context.Background(), formula, decomp, chunked)
	require.NoError(t, err)

	assert.Equal(t, unchunkedRes.Count, chunkedRes.Count)
}

func TestSolve_PerBagMaxTableSizeForcesChunking(t *testing.T) {
	formula, decomp := joinChainDecomp()

	unchunked, err := Solve(context.Background(), formula, decomp, DefaultConfig())
	require.NoError(t, err)

	// Give every bag a 1-entry cap, independent of the config-wide
	// MaxMemoryBuffer (left at its default of 0, i.e. "unchunked"), and
	// confirm the answer doesn't depend on which budget forced the
	// chunk boundaries.
	for _, bag := range decomp.Bags {
		bag.MaxTableSize = 1
	}
	chunked, err := Solve(context.Background(), formula, decomp, DefaultConfig())
	require.NoError(t, err)

	assert.Equal(t, unchunked.Count, chunked.Count)
	assert.Equal(t, unchunked.IsSat, chunked.IsSat)
}

func TestSolve_LoggerReceivesOneLinePerBag(t *testing.T) {
	formula, decomp := joinChainDecomp()

	buf := &bytes.Buffer{}
	cfg := DefaultConfig()
	cfg.Logger = utils.NewDefaultLogger(utils.LevelDebug, buf)

	_, err := Solve(context.Background(), formula, decomp, cfg)
	require.NoError(t, err)

	output := buf.String()
	for _, bag := range decomp.Bags {
		assert.Contains(t, output, fmt.Sprintf("bag_id=%d", bag.ID))
	}
}

func TestSolve_ProgressCallbackReachesTotal(t *testing.T) {
	formula, decomp := joinChainDecomp()

	var calls []int64
	cfg := DefaultConfig()
	cfg.ProgressCallback = func(completed, total int64) {
		assert.Equal(t, int64(len(decomp.Bags)), total)
		calls = append(calls, completed)
	}

	_, err := Solve(context.Background(), formula, decomp, cfg)
	require.NoError(t, err)

	require.Len(t, calls, len(decomp.Bags))
	for i, completed := range calls {
		assert.Equal(t, int64(i+1), completed)
	}
}

func TestSolve_SwappingJoinChildrenAgrees(t *testing.T) {
	formula := cnf.NewFormula(3, []cnf.Clause{{1, 2}, {2, 3}})
	leaf1 := treedec.NewBag(0, treedec.KindLeaf, []int{1, 2})
	leaf2 := treedec.NewBag(1, treedec.KindLeaf, []int{2, 3})
	forget1 := treedec.NewBag(2, treedec.KindForget, []int{2}, 0)
	forget2 := treedec.NewBag(3, treedec.KindForget, []int{2}, 1)

	join := treedec.NewBag(4, treedec.KindJoin, []int{2}, 2, 3)
	decomp := &treedec.Decomposition{Bags: []*treedec.Bag{leaf1, leaf2, forget1, forget2, join}, Root: 4}
	res1, err := Solve(context.Background(), formula, decomp, DefaultConfig())
	require.NoError(t, err)

	swappedJoin := treedec.NewBag(4, treedec.KindJoin, []int{2}, 3, 2)
	swappedDecomp := &treedec.Decomposition{Bags: []*treedec.Bag{leaf1, leaf2, forget1, forget2, swappedJoin}, Root: 4}
	res2, err := Solve(context.Background(), formula, swappedDecomp, DefaultConfig())
	require.NoError(t, err)

	assert.Equal(t, res1.Count, res2.Count)
}

func TestSolve_MaxBagRejected(t *testing.T) {
	formula := cnf.NewFormula(1, []cnf.Clause{{1}})
	decomp := chainDecomp([]int{1}, nil)
	cfg := DefaultConfig()
	cfg.MaxBag = 0 // leaf bag has width 1, exceeds a zero cap

	_, err := Solve(context.Background(), formula, decomp, cfg)
	require.Error(t, err)
}

// Package driver implements the traversal driver (spec §4.6): the
// post-order walk over a tree decomposition that allocates each bag's
// solution table, dispatches the introduce-forget and join kernels in
// memory-budgeted chunks, carries exponent corrections between levels,
// and reduces the root table to the final model count.
package driver

import (
	"context"
	"fmt"
	"math"
	"sync/atomic"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/satcount/gpusatgo/internal/exponent"
	"github.com/satcount/gpusatgo/internal/kernel"
	"github.com/satcount/gpusatgo/internal/solverr"
	"github.com/satcount/gpusatgo/internal/soltable"
	"github.com/satcount/gpusatgo/pkg/cnf"
	"github.com/satcount/gpusatgo/pkg/parallel"
	"github.com/satcount/gpusatgo/pkg/treedec"
	"github.com/satcount/gpusatgo/pkg/utils"
)

// tracerName identifies this package's spans in the exported traces.
const tracerName = "github.com/satcount/gpusatgo/internal/driver"

// Layout names a solution-table representation, or "auto" to let the
// driver pick per bag.
type Layout string

const (
	LayoutAuto  Layout = "auto"
	LayoutArray Layout = "array"
	LayoutTree  Layout = "tree"
)

// autoTreeWidth is the bag width at or above which the "auto" layout
// heuristic prefers the sparse tree representation over the dense
// array, trading lookup cost for memory when the assignment space
// starts to dominate.
const autoTreeWidth = 24

// bytesPerEntry is sizeof(double) used to turn a memory budget into an
// entry-count chunk size (spec §4.6).
const bytesPerEntry = 8

// Config parameterises one solve (spec §6's SolveConfig, engine-facing
// subset — ambient fields like database/storage/telemetry targets live
// in internal/config, whose SolveConfig.DriverConfig() builds this).
type Config struct {
	// Layout selects the table representation; LayoutAuto decides per
	// bag from width.
	Layout Layout

	// MaxBag caps a bag's variable count. Bags wider than this are
	// rejected as capacity-exhausted: splitting an over-wide bag is
	// decomposition preprocessing, out of this engine's scope (§1).
	MaxBag int

	// MaxMemoryBuffer is the byte budget per table fragment; 0 means
	// unchunked (the whole bag processed in one launch).
	MaxMemoryBuffer uint64

	// CombineWidth is the bag width at or above which LayoutAuto
	// prefers the sparse tree representation over the dense array
	// (the collaborator CLI's "-w" combineWidth flag, spec §6). 0 uses
	// autoTreeWidth.
	CombineWidth int

	// Pool configures the worker pool every kernel launch runs on.
	Pool parallel.PoolConfig

	// Timer, if set, records one wall-clock phase per traversal level
	// (named by bag id and kind) so a caller can print a per-level
	// breakdown alongside the otel span tree. Nil disables timing.
	Timer *utils.Timer

	// Logger, if set, receives one Debug line per traversal level,
	// scoped with utils.WithBag, and is forwarded to each kernel launch
	// scoped with utils.WithKernel. Nil disables logging.
	Logger utils.Logger

	// ProgressCallback, if set, is invoked once per finished bag (via a
	// parallel.ProgressTracker's Increment/Completed) with the running
	// count against the traversal's total, so a caller can render
	// progress without polling Result mid-solve.
	ProgressCallback func(completed, total int64)
}

// DefaultConfig returns the engine defaults used when a caller doesn't
// override them.
func DefaultConfig() Config {
	return Config{
		Layout:          LayoutAuto,
		MaxBag:          40,
		MaxMemoryBuffer: 0,
		Pool:            parallel.DefaultPoolConfig(),
	}
}

// Result is the outcome of a solve (spec §6's Outputs).
type Result struct {
	IsSat              bool
	Count              float64
	Exponent           int
	NumJoin            int
	NumIntroduceForget int
	MaxTableSize       uint64
}

// bagState is what the driver keeps around for a bag once its table is
// fully built: the table itself, the bookkeeper that observed the
// magnitudes written into it, and the cumulative exponent correction
// already folded into those stored values (so a later level can fold in
// one more step rather than re-deriving the whole chain).
type bagState struct {
	table      soltable.Table
	exp        *exponent.Bookkeeper
	cumulative int
}

// Solve walks decomp in post-order, producing the model count of
// formula restricted to it (spec §4.6).
func Solve(ctx context.Context, formula *cnf.Formula, decomp *treedec.Decomposition, cfg Config) (*Result, error) {
	states := make(map[int]*bagState, len(decomp.Bags))
	res := &Result{}

	var progress *parallel.ProgressTracker
	total := int64(len(decomp.Bags))
	if cfg.ProgressCallback != nil {
		progress = parallel.NewProgressTracker(total, nil, 0)
	}

	for _, id := range decomp.PostOrder() {
		bag := decomp.Bag(id)
		if bag.Width() > cfg.MaxBag {
			return nil, solverr.Newf(solverr.CodeCapacityExhausted, "bag %d width %d exceeds maxBag %d", bag.ID, bag.Width(), cfg.MaxBag)
		}

		levelCtx, span := otel.Tracer(tracerName).Start(ctx, "driver.bag",
			trace.WithAttributes(
				attribute.Int("bag.id", bag.ID),
				attribute.String("bag.kind", bag.Kind.String()),
				attribute.Int("bag.width", bag.Width()),
			))

		var pt *utils.PhaseTimer
		if cfg.Timer != nil {
			pt = cfg.Timer.Start(fmt.Sprintf("bag-%d-%s", bag.ID, bag.Kind))
		}
		bagCfg := cfg
		if cfg.Logger != nil {
			bagCfg.Logger = utils.WithBag(cfg.Logger, bag.ID, bag.Kind.String())
			bagCfg.Logger.Debug("running bag width=%d", bag.Width())
		}

		var st *bagState
		var err error
		switch bag.Kind {
		case treedec.KindJoin:
			st, err = runJoin(levelCtx, formula, decomp, bag, states, bagCfg)
			res.NumJoin++
		default: // leaf, introduce, forget, introduce-forget: all one I/F launch
			st, err = runIntroduceForget(levelCtx, formula, decomp, bag, states, bagCfg)
			res.NumIntroduceForget++
		}
		if pt != nil {
			pt.Stop()
		}
		span.End()
		if err != nil {
			return nil, err
		}
		states[id] = st
		if size := bag.NumAssignments(); size > res.MaxTableSize {
			res.MaxTableSize = size
		}
		if progress != nil {
			progress.Increment()
			cfg.ProgressCallback(progress.Completed(), total)
		}
	}

	root := states[decomp.Root]
	rootBag := decomp.Bag(decomp.Root)
	var sum float64
	for id := uint64(0); id < rootBag.NumAssignments(); id++ {
		v, _ := root.table.Get(id)
		sum += v
	}

	count := sum * math.Ldexp(1, root.cumulative)
	if math.IsInf(count, 0) {
		return nil, solverr.Newf(solverr.CodeNumericOverflow, "final count overflows double range at exponent %d", root.cumulative)
	}

	res.Count = count
	res.Exponent = root.cumulative
	res.IsSat = count > 0
	return res, nil
}

func resolveLayout(bag *treedec.Bag, cfg Config) Layout {
	if bag.Kind == treedec.KindJoin {
		return LayoutArray // join output is always array (§4.4)
	}
	switch cfg.Layout {
	case LayoutArray, LayoutTree:
		return cfg.Layout
	default:
		width := cfg.CombineWidth
		if width <= 0 {
			width = autoTreeWidth
		}
		if bag.Width() >= width {
			return LayoutTree
		}
		return LayoutArray
	}
}

// chunkSize resolves the entry count of one launch over bag's
// total-entry table, folding in both budgets spec §3/§4.6 describe:
// the config-wide MaxMemoryBuffer (bytes, converted to entries) and
// bag's own MaxTableSize (entries, 0 meaning "defer to the config-wide
// default"). The smaller of the two wins, since either one alone is
// enough to force a chunk boundary.
func chunkSize(cfg Config, bag *treedec.Bag, total uint64) uint64 {
	entries := total
	if cfg.MaxMemoryBuffer > 0 {
		entries = cfg.MaxMemoryBuffer / bytesPerEntry
		if entries == 0 {
			entries = 1
		}
	}
	if bag.MaxTableSize > 0 && bag.MaxTableSize < entries {
		entries = bag.MaxTableSize
	}
	if entries > total {
		return total
	}
	return entries
}

// treeCapacity sizes a trie fragment generously: in the worst case
// (no path sharing at all) a chunk of n assignments over a width-w bag
// allocates up to n*w+1 nodes.
func treeCapacity(n uint64, width int) int {
	cap64 := n*uint64(width) + 1
	if cap64 > uint64(^uint32(0)) {
		cap64 = uint64(^uint32(0))
	}
	return int(cap64)
}

func runIntroduceForget(ctx context.Context, formula *cnf.Formula, decomp *treedec.Decomposition, bag *treedec.Bag, states map[int]*bagState, cfg Config) (*bagState, error) {
	var childTable soltable.Table
	var childBag *treedec.Bag
	var childMax uint64
	value := 1.0
	if len(bag.Children) > 0 {
		childID := bag.Children[0]
		childBag = decomp.Bag(childID)
		childState := states[childID]
		childTable = childState.table
		childMax = childBag.NumAssignments()
		value = childState.exp.Correction()
	}

	total := bag.NumAssignments()
	size := chunkSize(cfg, bag, total)
	bookkeeper := exponent.New()

	var out soltable.Table
	switch resolveLayout(bag, cfg) {
	case LayoutTree:
		combined := soltable.NewTree(0, bag.Width(), treeCapacity(total, bag.Width()))
		for start := uint64(0); start < total; start += size {
			n := min(size, total-start)
			chunk := soltable.NewTree(start, bag.Width(), treeCapacity(n, bag.Width()))
			// ChildMinID/ChildMaxID always span the whole child table:
			// the resident-child simplification keeps a finished bag's
			// table fully in memory, so it is never loaded one
			// fragment at a time (see DESIGN.md).
			if err := kernel.IntroduceForget(ctx, kernel.IntroduceForgetParams{
				Bag: bag, Formula: formula,
				Child: childTable, ChildBag: childBag, ChildMinID: 0, ChildMaxID: childMax,
				Out: chunk, ChunkStart: start, ChunkSize: n,
				Value: value, Exp: bookkeeper, Pool: cfg.Pool, Logger: cfg.Logger,
			}); err != nil {
				return nil, err
			}
			if err := kernel.TreeCombine(ctx, kernel.TreeCombineParams{
				Dst: combined, Src: chunk, SrcMinID: start, SrcMaxID: start + n, Pool: cfg.Pool,
			}); err != nil {
				return nil, err
			}
		}
		out = combined
	default:
		arr := soltable.NewArray(0, total, bag.Width())
		for start := uint64(0); start < total; start += size {
			n := min(size, total-start)
			if err := kernel.IntroduceForget(ctx, kernel.IntroduceForgetParams{
				Bag: bag, Formula: formula,
				Child: childTable, ChildBag: childBag, ChildMinID: 0, ChildMaxID: childMax,
				Out: arr, ChunkStart: start, ChunkSize: n,
				Value: value, Exp: bookkeeper, Pool: cfg.Pool, Logger: cfg.Logger,
			}); err != nil {
				return nil, err
			}
		}
		out = arr
	}

	cumulative := 0
	if len(bag.Children) > 0 {
		childID := bag.Children[0]
		cumulative = states[childID].cumulative + states[childID].exp.Exponent()
	}
	return &bagState{table: out, exp: bookkeeper, cumulative: cumulative}, nil
}

func runJoin(ctx context.Context, formula *cnf.Formula, decomp *treedec.Decomposition, bag *treedec.Bag, states map[int]*bagState, cfg Config) (*bagState, error) {
	child1ID, child2ID := bag.Children[0], bag.Children[1]
	cb1, cb2 := decomp.Bag(child1ID), decomp.Bag(child2ID)
	c1, c2 := states[child1ID], states[child2ID]

	total := bag.NumAssignments()
	size := chunkSize(cfg, bag, total)
	out := soltable.NewArrayFilled(0, total, bag.Width(), kernel.Uninitialized)
	bookkeeper := exponent.New()
	var satCount atomic.Int64

	for start := uint64(0); start < total; start += size {
		n := min(size, total-start)
		if err := kernel.Join(ctx, kernel.JoinParams{
			Bag: bag, Formula: formula,
			Child1: c1.table, ChildBag1: cb1, Child1Min: 0, Child1Max: cb1.NumAssignments(),
			Child2: c2.table, ChildBag2: cb2, Child2Min: 0, Child2Max: cb2.NumAssignments(),
			Out: out, ChunkStart: start, ChunkSize: n,
			Value: 1, Exp: bookkeeper, SatCount: &satCount, Pool: cfg.Pool, Logger: cfg.Logger,
		}); err != nil {
			return nil, err
		}
	}

	return &bagState{table: out, exp: bookkeeper, cumulative: c1.cumulative + c2.cumulative}, nil
}

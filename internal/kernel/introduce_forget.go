// Package kernel implements the per-bag compute kernels the driver
// launches: introduce-forget, join, and tree-combine (spec §4.3-§4.5).
// Each kernel fans a slice of assignment ids out across worker lanes via
// pkg/parallel, mirroring how the real device dispatches one lane per
// assignment; the host-side pool is the CPU stand-in for that dispatch.
package kernel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/satcount/gpusatgo/internal/exponent"
	"github.com/satcount/gpusatgo/internal/solverr"
	"github.com/satcount/gpusatgo/internal/soltable"
	"github.com/satcount/gpusatgo/pkg/cnf"
	"github.com/satcount/gpusatgo/pkg/collections"
	"github.com/satcount/gpusatgo/pkg/parallel"
	"github.com/satcount/gpusatgo/pkg/treedec"
	"github.com/satcount/gpusatgo/pkg/utils"
)

// tracerName identifies this package's spans in the exported traces.
const tracerName = "github.com/satcount/gpusatgo/internal/kernel"

// IntroduceForgetParams describes one introduce-forget launch (spec §4.3).
type IntroduceForgetParams struct {
	Bag     *treedec.Bag
	Formula *cnf.Formula

	// Child is nil for a leaf bag.
	Child    soltable.Table
	ChildBag *treedec.Bag
	// ChildMinID/ChildMaxID bound the loaded child chunk; a computed
	// child id outside this range is "unknown" for this launch and is
	// skipped, relying on the driver to accumulate across launches
	// over the child's other chunks (§4.3 edge cases).
	ChildMinID, ChildMaxID uint64

	// Out is this bag's (already allocated) destination table, local
	// to [ChunkStart, ChunkStart+ChunkSize).
	Out        soltable.Table
	ChunkStart uint64
	ChunkSize  uint64

	// Value is the exponent correction carried down from the previous
	// level (§4.2); 1 when no correction is in effect.
	Value float64
	Exp   *exponent.Bookkeeper

	Pool parallel.PoolConfig

	// Logger, if set, receives one Debug line for this launch, scoped
	// with utils.WithKernel. Nil disables logging.
	Logger utils.Logger
}

// reconstructSet returns the variables present in childBag but not in
// bag. These are the variables this kernel must guess a value for (via
// the combinations loop) to reconstruct a concrete child id from a
// target id that does not carry them — spec §4.3 calls this set "the
// introduced variables" because values are introduced into the child id
// being built, even though from this bag's own perspective they are the
// ones being forgotten.
func reconstructSet(bag, childBag *treedec.Bag) []int {
	if childBag == nil {
		return nil
	}
	var out []int
	for _, v := range childBag.Vars {
		if bag.IndexOf(v) < 0 {
			out = append(out, v)
		}
	}
	return out
}

// weightOnlySet returns the variables this kernel must multiply a
// literal weight for directly from id's own bits: bag variables absent
// from the child (truly newly introduced relative to the child), or
// every bag variable when there is no child at all (leaf).
func weightOnlySet(bag, childBag *treedec.Bag) []int {
	if childBag == nil {
		return bag.Vars
	}
	var out []int
	for _, v := range bag.Vars {
		if childBag.IndexOf(v) < 0 {
			out = append(out, v)
		}
	}
	return out
}

func bagLocalClauses(f *cnf.Formula, bag *treedec.Bag) []cnf.Clause {
	var out []cnf.Clause
	for _, c := range f.Clauses() {
		covered := true
		for _, v := range cnf.ClauseVars(c) {
			if bag.IndexOf(v) < 0 {
				covered = false
				break
			}
		}
		if covered {
			out = append(out, c)
		}
	}
	return out
}

// checkBag is the clause-check of spec §4.3 step 4: every bag-local
// clause must have at least one literal satisfied by id, or the
// assignment contributes nothing.
func checkBag(clauses []cnf.Clause, bag *treedec.Bag, id uint64) bool {
	for _, c := range clauses {
		satisfied := false
		for _, lit := range c {
			if lit.Satisfied(bag.Bit(id, lit.Var())) {
				satisfied = true
				break
			}
		}
		if !satisfied {
			return false
		}
	}
	return true
}

// growUint64 returns s resized to exactly n elements, reusing s's
// backing array when it already has enough capacity (the pooled-slice
// path; collections.Uint64SlicePool hands back zero-length slices with
// spare capacity from a previous launch).
func growUint64(s []uint64, n int) []uint64 {
	if cap(s) < n {
		return make([]uint64, n)
	}
	return s[:n]
}

func literalFor(v int, bitSet bool) cnf.Literal {
	if bitSet {
		return cnf.Literal(v)
	}
	return cnf.Literal(-v)
}

// buildChildID reconstructs a concrete child assignment from a target
// id: variables shared with the child carry id's own bit; variables in
// reconstruct carry the corresponding bit of ext.
func buildChildID(bag, childBag *treedec.Bag, id uint64, reconstruct []int, ext int) uint64 {
	pos := make(map[int]int, len(reconstruct))
	for i, v := range reconstruct {
		pos[v] = i
	}
	var childID uint64
	width := childBag.Width()
	for i, v := range childBag.Vars {
		var bit uint64
		if idx, ok := pos[v]; ok {
			bit = uint64((ext >> uint(len(reconstruct)-idx-1)) & 1)
		} else if bag.Bit(id, v) {
			bit = 1
		}
		childID |= bit << uint(width-i-1)
	}
	return childID
}

// solveIntroduce computes the raw (pre-correction) contribution of a
// single target id, summing over every reconstruction of the child id
// (spec §4.3 step 3, solveIntroduce_).
func solveIntroduce(p *IntroduceForgetParams, reconstruct, weightOnly []int, id uint64) (float64, error) {
	combos := 1 << uint(len(reconstruct))
	weighted := p.Formula.Weighted()

	var tmp float64
	for ext := 0; ext < combos; ext++ {
		var childVal float64
		if p.Child == nil {
			childVal = 1
		} else {
			childID := buildChildID(p.Bag, p.ChildBag, id, reconstruct, ext)
			if childID < p.ChildMinID || childID >= p.ChildMaxID {
				continue // unknown: not in the currently loaded chunk
			}
			v, _ := p.Child.Get(childID)
			childVal = v
		}
		if childVal == 0 {
			continue
		}
		tmp += childVal
	}

	if tmp != 0 && weighted {
		for _, v := range weightOnly {
			tmp *= p.Formula.LiteralWeight(literalFor(v, p.Bag.Bit(id, v)))
		}
	}
	return tmp, nil
}

// IntroduceForget runs one introduce-forget launch over
// [ChunkStart, ChunkStart+ChunkSize) (spec §4.3).
func IntroduceForget(ctx context.Context, p IntroduceForgetParams) error {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "kernel.introduce_forget",
		trace.WithAttributes(
			attribute.Int("bag.id", p.Bag.ID),
			attribute.Int64("chunk.start", int64(p.ChunkStart)),
			attribute.Int64("chunk.size", int64(p.ChunkSize)),
		))
	defer span.End()

	if p.Logger != nil {
		utils.WithKernel(p.Logger, "introduce_forget", p.ChunkStart, p.ChunkSize).Debug("launching")
	}

	if p.Value == 0 {
		p.Value = 1
	}
	reconstruct := reconstructSet(p.Bag, p.ChildBag)
	weightOnly := weightOnlySet(p.Bag, p.ChildBag)
	clauses := bagLocalClauses(p.Formula, p.Bag)

	idsPtr := collections.GetUint64Slice()
	defer collections.PutUint64Slice(idsPtr)
	ids := growUint64(*idsPtr, int(p.ChunkSize))
	for i := range ids {
		ids[i] = p.ChunkStart + uint64(i)
	}
	*idsPtr = ids

	_, firstErr := parallel.ForEach(ctx, ids, p.Pool, func(ctx context.Context, id uint64) error {
		if !checkBag(clauses, p.Bag, id) {
			return nil
		}
		tmp, err := solveIntroduce(&p, reconstruct, weightOnly, id)
		if err != nil {
			return err
		}
		if tmp == 0 {
			return nil
		}
		corrected := tmp / p.Value
		if p.Exp != nil {
			p.Exp.Observe(corrected)
		}
		return p.Out.Update(id, func(old float64, found bool) float64 {
			return old + corrected
		})
	})
	if firstErr != nil {
		return solverr.Wrap(solverr.CodeDeviceFault, "introduce-forget kernel failed", firstErr)
	}
	return nil
}

package kernel

import (
	"context"
	"sync/atomic"

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

// Uninitialized is the sentinel the join kernel's Out table must be
// pre-filled with (soltable.NewArrayFilled) before any chunk launch
// writes to it, distinguishing "nothing has touched this id yet" from
// an honest zero (§4.4).
const Uninitialized = -1.0

// JoinParams describes one join launch (spec §4.4). Child1 and Child2
// may be array or tree tables, whichever layout each child bag used;
// Out is always a dense array, since joins rewrite the full 2^|bag|
// space.
type JoinParams struct {
	Bag     *treedec.Bag
	Formula *cnf.Formula

	Child1, Child2       soltable.Table
	ChildBag1, ChildBag2 *treedec.Bag
	Child1Min, Child1Max uint64
	Child2Min, Child2Max uint64

	Out        soltable.Table
	ChunkStart uint64
	ChunkSize  uint64

	Value float64
	Exp   *exponent.Bookkeeper

	// SatCount tracks the number of ids in the bag currently holding a
	// positive count, maintained monotonically across chunk launches
	// per spec §4.4's counter rules. Shared across launches for the
	// same bag.
	SatCount *atomic.Int64

	Pool parallel.PoolConfig

	// Logger, if set, receives one Debug line for this launch, scoped
	// with utils.WithKernel. Nil disables logging.
	Logger utils.Logger
}

func project(bag *treedec.Bag, id uint64, childBag *treedec.Bag) uint64 {
	var out uint64
	width := childBag.Width()
	for i, v := range childBag.Vars {
		var bit uint64
		if bag.Bit(id, v) {
			bit = 1
		}
		out |= bit << uint(width-i-1)
	}
	return out
}

func joinWeight(f *cnf.Formula, bag *treedec.Bag, id uint64) float64 {
	if !f.Weighted() {
		return 1
	}
	w := 1.0
	for _, v := range bag.Vars {
		w *= f.LiteralWeight(literalFor(v, bag.Bit(id, v)))
	}
	return w
}

// Join runs one join launch over [ChunkStart, ChunkStart+ChunkSize)
// (spec §4.4).
func Join(ctx context.Context, p JoinParams) error {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "kernel.join",
		trace.WithAttributes(
			attribute.Int("bag.id", p.Bag.ID),
			attribute.Int64("chunk.start", int64(p.ChunkStart)),
			attribute.Int64("chunk.size", int64(p.ChunkSize)),
		))
	defer span.End()

	if p.Logger != nil {
		utils.WithKernel(p.Logger, "join", p.ChunkStart, p.ChunkSize).Debug("launching")
	}

	if p.Value == 0 {
		p.Value = 1
	}

	idsPtr := collections.GetUint64Slice()
	defer collections.PutUint64Slice(idsPtr)
	ids := growUint64(*idsPtr, int(p.ChunkSize))
	for i := range ids {
		ids[i] = p.ChunkStart + uint64(i)
	}
	*idsPtr = ids

	_, firstErr := parallel.ForEach(ctx, ids, p.Pool, func(ctx context.Context, id uint64) error {
		id1 := project(p.Bag, id, p.ChildBag1)
		id2 := project(p.Bag, id, p.ChildBag2)

		inRange1 := id1 >= p.Child1Min && id1 < p.Child1Max
		inRange2 := id2 >= p.Child2Min && id2 < p.Child2Max

		var tmp1, tmp2 float64
		var have1, have2 bool
		if inRange1 {
			tmp1, _ = p.Child1.Get(id1)
			have1 = true
		}
		if inRange2 {
			tmp2, _ = p.Child2.Get(id2)
			have2 = true
		}

		w := joinWeight(p.Formula, p.Bag, id)

		switch {
		case have1 && have2:
			result := tmp1 * tmp2 / p.Value / w
			if tmp1 > 0 && tmp2 > 0 {
				p.incrementSat()
			}
			return p.write(id, result)

		case have1 || have2:
			carried, found := p.Out.Get(id)
			if !found {
				return solverr.Newf(solverr.CodeDeviceFault, "join: out-of-range id %d in output chunk", id)
			}
			factor := tmp1
			if have2 {
				factor = tmp2
			}
			var base float64
			wasPositive := carried > 0
			if carried == Uninitialized {
				base = 1
			} else {
				base = carried * p.Value * w // undo the previous division to fold in the new factor on the same footing
			}
			result := base * factor / p.Value / w
			if !wasPositive && result > 0 {
				p.incrementSat()
			} else if wasPositive && result == 0 {
				p.decrementSat()
			}
			return p.write(id, result)

		default:
			return nil // neither child covers this id in the currently loaded chunks
		}
	})
	if firstErr != nil {
		return solverr.Wrap(solverr.CodeDeviceFault, "join kernel failed", firstErr)
	}
	return nil
}

func (p *JoinParams) write(id uint64, v float64) error {
	if p.Exp != nil && v > 0 {
		p.Exp.Observe(v)
	}
	return p.Out.Set(id, v)
}

func (p *JoinParams) incrementSat() {
	if p.SatCount != nil {
		p.SatCount.Add(1)
	}
}

func (p *JoinParams) decrementSat() {
	if p.SatCount != nil {
		p.SatCount.Add(-1)
	}
}

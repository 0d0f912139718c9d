package kernel

import (
	"context"

	"github.com/satcount/gpusatgo/internal/solverr"
	"github.com/satcount/gpusatgo/internal/soltable"
	"github.com/satcount/gpusatgo/pkg/parallel"
)

// TreeCombineParams describes a merge of two tree-layout fragments of
// the same bag into one (spec §4.5).
type TreeCombineParams struct {
	Dst *soltable.Tree
	Src *soltable.Tree

	// SrcMinID/SrcMaxID bound the assignment-id range Src actually
	// covers; the kernel launches one worker per id in that range.
	SrcMinID, SrcMaxID uint64

	Pool parallel.PoolConfig
}

// TreeCombine merges Src into Dst. It is associative and commutative
// over disjoint id ranges and idempotent when Src holds only zeros
// (§4.5).
func TreeCombine(ctx context.Context, p TreeCombineParams) error {
	if p.SrcMaxID <= p.SrcMinID {
		return nil
	}
	ids := make([]uint64, p.SrcMaxID-p.SrcMinID)
	for i := range ids {
		ids[i] = p.SrcMinID + uint64(i)
	}

	_, firstErr := parallel.ForEach(ctx, ids, p.Pool, func(ctx context.Context, id uint64) error {
		v, ok := p.Src.GetCount(id)
		if !ok || v <= 0 {
			return nil
		}
		return p.Dst.SetCount(id, v)
	})
	if firstErr != nil {
		return solverr.Wrap(solverr.CodeDeviceFault, "tree-combine kernel failed", firstErr)
	}
	return nil
}

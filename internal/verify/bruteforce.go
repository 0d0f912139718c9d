// Package verify provides a brute-force model counter used only to
// cross-check the tree-decomposition driver against ground truth on
// small instances (the property-based testable claim that driver
// output matches exhaustive enumeration for |bag| <= 20). It is never
// on the solve path: the whole point of the tree-decomposition DP is to
// avoid this enumeration on instances where it would be intractable.
package verify

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/satcount/gpusatgo/internal/solverr"
	"github.com/satcount/gpusatgo/pkg/cnf"
)

// MaxVars caps the variable count BruteForce will accept. Beyond this,
// 2^NumVars assignments stop being a reasonable cross-check and callers
// should trust the driver instead.
const MaxVars = 20

// BruteForce enumerates every assignment of formula's variables and
// sums the weight of each one that satisfies every clause, returning
// the same (count, isSat) pair the driver computes via the DP. Clauses
// are checked against the flat literal/length representation directly,
// independent of any bag ordering, so a mismatch against the driver's
// result points at a DP bug rather than a shared assumption.
func BruteForce(ctx context.Context, formula *cnf.Formula) (count float64, isSat bool, err error) {
	if formula.NumVars > MaxVars {
		return 0, false, solverr.Newf(solverr.CodeCapacityExhausted, "brute force limited to %d variables, formula has %d", MaxVars, formula.NumVars)
	}

	total := uint64(1) << uint(formula.NumVars)
	workers := runtime.NumCPU()
	if workers < 1 {
		workers = 1
	}
	if uint64(workers) > total {
		workers = int(total)
	}

	chunk := total / uint64(workers)
	if chunk == 0 {
		chunk = total
		workers = 1
	}

	partials := make([]float64, workers)
	group, gctx := errgroup.WithContext(ctx)

	for w := 0; w < workers; w++ {
		w := w
		start := uint64(w) * chunk
		end := start + chunk
		if w == workers-1 {
			end = total
		}
		group.Go(func() error {
			var sum float64
			for assignment := start; assignment < end; assignment++ {
				if assignment%4096 == 0 {
					select {
					case <-gctx.Done():
						return gctx.Err()
					default:
					}
				}
				if weight, ok := evalAssignment(formula, assignment); ok {
					sum += weight
				}
			}
			partials[w] = sum
			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return 0, false, err
	}

	for _, p := range partials {
		count += p
	}
	return count, count > 0, nil
}

// evalAssignment reports whether assignment (bit v-1 is variable v's
// truth value) satisfies every clause, and if so returns the product of
// each bound variable's literal weight under formula's weight table
// (1 when unweighted).
func evalAssignment(formula *cnf.Formula, assignment uint64) (weight float64, satisfied bool) {
	clauses := formula.Clauses()
	for _, clause := range clauses {
		clauseSat := false
		for _, lit := range clause {
			bit := (assignment >> uint(lit.Var()-1)) & 1
			if lit.Satisfied(bit == 1) {
				clauseSat = true
				break
			}
		}
		if !clauseSat {
			return 0, false
		}
	}

	weight = 1
	for v := 1; v <= formula.NumVars; v++ {
		bit := (assignment >> uint(v-1)) & 1
		lit := cnf.Literal(v)
		if bit == 0 {
			lit = -lit
		}
		weight *= formula.LiteralWeight(lit)
	}
	return weight, true
}

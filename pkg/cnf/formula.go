// Package cnf defines the Boolean formula types solved by the engine:
// literals, clauses, and the optional per-literal weight table.
package cnf

import "fmt"

// Literal is a signed variable reference. A positive value names the
// variable; a negative value names its negation. Variable indices start
// at 1, matching DIMACS numbering.
type Literal int32

// Var returns the variable this literal refers to, always positive.
func (l Literal) Var() int {
	if l < 0 {
		return int(-l)
	}
	return int(l)
}

// Negated reports whether the literal is a negation of its variable.
func (l Literal) Negated() bool {
	return l < 0
}

// Satisfied reports whether the literal evaluates to true when its
// variable is bound to value.
func (l Literal) Satisfied(value bool) bool {
	if l < 0 {
		return !value
	}
	return value
}

func (l Literal) String() string {
	return fmt.Sprintf("%d", int32(l))
}

// Clause is an ordered sequence of literals; satisfaction requires at
// least one literal to hold.
type Clause []Literal

// Formula is a CNF formula over NumVars variables. Clauses is stored as
// a flat literal array paired with ClauseLengths so that a Formula can be
// uploaded to device memory as two contiguous buffers, mirroring how the
// engine actually consumes it; Clauses() reconstructs the per-clause view
// for host-side code.
type Formula struct {
	NumVars       int
	Literals      []Literal
	ClauseLengths []int32

	// Weights holds 2*(NumVars+1) entries; Weights[2*v] is the weight of
	// the positive literal for variable v (1-indexed), Weights[2*v+1] the
	// weight of its negation, and entries 0 and 1 are unused. Nil means
	// unweighted (all weights 1).
	Weights []float64
}

// NewFormula builds a Formula from a slice of clauses, flattening them
// into the literal/length representation.
func NewFormula(numVars int, clauses []Clause) *Formula {
	f := &Formula{
		NumVars:       numVars,
		ClauseLengths: make([]int32, len(clauses)),
	}
	for i, c := range clauses {
		f.ClauseLengths[i] = int32(len(c))
		f.Literals = append(f.Literals, c...)
	}
	return f
}

// NumClauses returns the number of clauses in the formula.
func (f *Formula) NumClauses() int {
	return len(f.ClauseLengths)
}

// Clauses reconstructs the per-clause slice view over the flat literal
// array. The returned slices alias f.Literals.
func (f *Formula) Clauses() []Clause {
	out := make([]Clause, len(f.ClauseLengths))
	off := 0
	for i, n := range f.ClauseLengths {
		out[i] = f.Literals[off : off+int(n) : off+int(n)]
		off += int(n)
	}
	return out
}

// Weighted reports whether the formula carries a non-default weight
// table.
func (f *Formula) Weighted() bool {
	return f.Weights != nil
}

// LiteralWeight returns the weight of lit, defaulting to 1 when the
// formula is unweighted.
func (f *Formula) LiteralWeight(lit Literal) float64 {
	if f.Weights == nil {
		return 1
	}
	v := lit.Var()
	idx := 2 * v
	if lit.Negated() {
		idx++
	}
	if idx < 0 || idx >= len(f.Weights) {
		return 1
	}
	return f.Weights[idx]
}

// ClauseVars returns the set of distinct variables referenced by clause,
// used by the introduce-forget kernel to decide which clauses are "fully covered" at a
// given bag (spec §4.3 step 4, checkBag).
func ClauseVars(c Clause) []int {
	seen := make(map[int]struct{}, len(c))
	vars := make([]int, 0, len(c))
	for _, lit := range c {
		v := lit.Var()
		if _, ok := seen[v]; !ok {
			seen[v] = struct{}{}
			vars = append(vars, v)
		}
	}
	return vars
}

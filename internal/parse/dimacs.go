// Package parse implements the minimal collaborator-side readers
// cmd/gpusatcount needs to turn `-s` / `-f` file paths into the
// cnf.Formula / treedec.Decomposition the engine consumes. Spec §1
// scopes full CNF and tree-decomposition parsing out of the engine; this
// package is the thin, undocumented-by-the-spec front-end glue that
// makes the CLI runnable end to end, not a general-purpose parser.
package parse

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/satcount/gpusatgo/internal/solverr"
	"github.com/satcount/gpusatgo/pkg/cnf"
)

// DIMACS reads a CNF formula in DIMACS format from r. Comment lines
// start with 'c'; "c w <lit> <weight>" lines populate the per-literal
// weight table (spec §3's length-2n table), a common competition
// extension to the format. The "p cnf <vars> <clauses>" header is
// required.
func DIMACS(r io.Reader) (*cnf.Formula, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)

	var numVars int
	var clauses []cnf.Clause
	var weightLines [][2]string
	seenHeader := false

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "c") {
			if fields := strings.Fields(line); len(fields) >= 4 && fields[1] == "w" {
				weightLines = append(weightLines, [2]string{fields[2], fields[3]})
			}
			continue
		}
		if strings.HasPrefix(line, "p") {
			fields := strings.Fields(line)
			if len(fields) < 4 || fields[1] != "cnf" {
				return nil, solverr.Newf(solverr.CodeParseError, "malformed DIMACS header: %q", line)
			}
			n, err := strconv.Atoi(fields[2])
			if err != nil {
				return nil, solverr.Wrap(solverr.CodeParseError, "invalid variable count in header", err)
			}
			numVars = n
			seenHeader = true
			continue
		}

		fields := strings.Fields(line)
		clause := make(cnf.Clause, 0, len(fields))
		for _, f := range fields {
			lit, err := strconv.Atoi(f)
			if err != nil {
				return nil, solverr.Wrap(solverr.CodeParseError, fmt.Sprintf("invalid literal %q", f), err)
			}
			if lit == 0 {
				break
			}
			clause = append(clause, cnf.Literal(lit))
		}
		if len(clause) > 0 {
			clauses = append(clauses, clause)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, solverr.Wrap(solverr.CodeParseError, "failed reading DIMACS input", err)
	}
	if !seenHeader {
		return nil, solverr.New(solverr.CodeParseError, "missing DIMACS \"p cnf\" header")
	}

	formula := cnf.NewFormula(numVars, clauses)
	if len(weightLines) > 0 {
		weights := make([]float64, 2*(numVars+1))
		for i := range weights {
			weights[i] = 1
		}
		for _, wl := range weightLines {
			lit, err := strconv.Atoi(wl[0])
			if err != nil {
				return nil, solverr.Wrap(solverr.CodeParseError, "invalid weight literal", err)
			}
			w, err := strconv.ParseFloat(wl[1], 64)
			if err != nil {
				return nil, solverr.Wrap(solverr.CodeParseError, "invalid weight value", err)
			}
			idx := 2 * cnf.Literal(lit).Var()
			if lit < 0 {
				idx++
			}
			if idx < 0 || idx >= len(weights) {
				return nil, solverr.Newf(solverr.CodeParseError, "weight literal %d out of range", lit)
			}
			weights[idx] = w
		}
		formula.Weights = weights
	}

	return formula, nil
}

package parse

import (
	"bufio"
	"io"
	"strconv"
	"strings"

	"github.com/satcount/gpusatgo/internal/solverr"
	"github.com/satcount/gpusatgo/pkg/treedec"
)

// TreeDecomposition reads a nice tree decomposition already expressed in
// the engine's own node kinds (spec §3) from a simple line format:
//
//	root <id>
//	<id> <kind> <var1>,<var2>,... <child1> [<child2>]
//
// kind is one of leaf/introduce/forget/join/introduce-forget; children
// are bag ids, omitted for a leaf. This format is a CLI-local
// convenience, not a translation of any upstream decomposer's output
// format — decomposition construction (bag balancing/splitting) stays
// out of scope per spec §1.
func TreeDecomposition(r io.Reader) (*treedec.Decomposition, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)

	decomp := &treedec.Decomposition{Root: -1}
	bagByID := make(map[int]*treedec.Bag)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)

		if fields[0] == "root" {
			if len(fields) != 2 {
				return nil, solverr.Newf(solverr.CodeParseError, "malformed root line: %q", line)
			}
			id, err := strconv.Atoi(fields[1])
			if err != nil {
				return nil, solverr.Wrap(solverr.CodeParseError, "invalid root id", err)
			}
			decomp.Root = id
			continue
		}

		if len(fields) < 3 {
			return nil, solverr.Newf(solverr.CodeParseError, "malformed bag line: %q", line)
		}

		id, err := strconv.Atoi(fields[0])
		if err != nil {
			return nil, solverr.Wrap(solverr.CodeParseError, "invalid bag id", err)
		}
		kind, err := parseKind(fields[1])
		if err != nil {
			return nil, err
		}

		var vars []int
		if fields[2] != "-" {
			for _, v := range strings.Split(fields[2], ",") {
				n, err := strconv.Atoi(v)
				if err != nil {
					return nil, solverr.Wrap(solverr.CodeParseError, "invalid bag variable", err)
				}
				vars = append(vars, n)
			}
		}

		var children []int
		for _, c := range fields[3:] {
			n, err := strconv.Atoi(c)
			if err != nil {
				return nil, solverr.Wrap(solverr.CodeParseError, "invalid child id", err)
			}
			children = append(children, n)
		}

		bag := treedec.NewBag(id, kind, vars, children...)
		bagByID[id] = bag
	}
	if err := scanner.Err(); err != nil {
		return nil, solverr.Wrap(solverr.CodeParseError, "failed reading tree decomposition input", err)
	}
	if decomp.Root < 0 {
		return nil, solverr.New(solverr.CodeParseError, "missing \"root\" line")
	}
	if _, ok := bagByID[decomp.Root]; !ok {
		return nil, solverr.Newf(solverr.CodeParseError, "root bag %d not defined", decomp.Root)
	}

	decomp.Bags = make([]*treedec.Bag, len(bagByID))
	for id, bag := range bagByID {
		if id < 0 || id >= len(bagByID) {
			return nil, solverr.Newf(solverr.CodeParseError, "bag ids must be dense in [0,n): got %d", id)
		}
		decomp.Bags[id] = bag
	}

	return decomp, nil
}

func parseKind(s string) (treedec.Kind, error) {
	switch s {
	case "leaf":
		return treedec.KindLeaf, nil
	case "introduce":
		return treedec.KindIntroduce, nil
	case "forget":
		return treedec.KindForget, nil
	case "join":
		return treedec.KindJoin, nil
	case "introduce-forget":
		return treedec.KindIntroduceForget, nil
	default:
		return 0, solverr.Newf(solverr.CodeParseError, "unknown bag kind %q", s)
	}
}

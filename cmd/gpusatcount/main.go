// Command gpusatcount is the CLI front-end for the gpusatgo #SAT engine
// (spec §6's external interface): it parses a formula and tree
// decomposition, drives one solve, and reports the model count.
package main

import "github.com/satcount/gpusatgo/cmd/gpusatcount/cmd"

func main() {
	cmd.Execute()
}

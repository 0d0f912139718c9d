// Package cmd implements the gpusatcount collaborator CLI (spec §6): it
// reads a formula and tree decomposition from disk, drives one solve
// through the engine, and reports the model count.
package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/satcount/gpusatgo/internal/driver"
	"github.com/satcount/gpusatgo/internal/parse"
	"github.com/satcount/gpusatgo/pkg/utils"
)

var (
	verbose bool
	logger  utils.Logger

	formulaPath  string
	decompPath   string
	combineWidth int
	maxBagSize   int
	kernelDir    string
	dataStruct   string
	weighted     bool
)

// rootCmd is the single entry point the spec's CLI surface describes: a
// flat set of flags, not subcommands (§6).
var rootCmd = &cobra.Command{
	Use:   "gpusatcount",
	Short: "GPU-style #SAT model counter over a tree decomposition",
	Long: `gpusatcount drives one solve of a weighted or unweighted #SAT
instance through the tree-decomposition dynamic program: it reads a CNF
formula and a precomputed tree decomposition, walks the decomposition
bottom-up, and reports the model count.`,
	Example: `  gpusatcount -s formula.cnf -f decomp.td
  gpusatcount -s formula.cnf -f decomp.td --weighted --dataStructure tree
  gpusatcount -s formula.cnf -f decomp.td -w 24 -m 30`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		logLevel := utils.LevelInfo
		if verbose {
			logLevel = utils.LevelDebug
		}
		logger = utils.NewDefaultLogger(logLevel, os.Stdout)
		return nil
	},
	RunE: runSolve,
}

// Execute runs the root command, translating any returned error into a
// non-zero process exit code (spec §6: "non-zero on parse/solver
// error").
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")

	rootCmd.Flags().StringVarP(&formulaPath, "formula", "s", "", "DIMACS CNF formula file (required)")
	rootCmd.Flags().StringVarP(&decompPath, "decomp", "f", "", "Tree decomposition file (required)")
	rootCmd.Flags().IntVarP(&combineWidth, "combine-width", "w", 0, "Bag width at/above which auto layout switches to the sparse tree table (0: engine default)")
	rootCmd.Flags().IntVarP(&maxBagSize, "max-bag", "m", 40, "Maximum bag width accepted before failing as capacity-exhausted")
	rootCmd.Flags().StringVarP(&kernelDir, "kernel-dir", "c", "", "Kernel source directory (unused: this engine has no device kernels to load; accepted for CLI-surface compatibility)")
	rootCmd.Flags().StringVar(&dataStruct, "dataStructure", "auto", "Solution table layout: auto, array, or tree")
	rootCmd.Flags().BoolVar(&weighted, "weighted", false, "Treat the formula's \"c w <lit> <weight>\" lines as a weight table")

	rootCmd.MarkFlagRequired("formula")
	rootCmd.MarkFlagRequired("decomp")
}

func runSolve(cmd *cobra.Command, args []string) error {
	if kernelDir != "" {
		logger.Info("kernel-dir %q ignored: no device kernels to load", kernelDir)
	}

	formulaFile, err := os.Open(formulaPath)
	if err != nil {
		return fmt.Errorf("opening formula file: %w", err)
	}
	defer formulaFile.Close()

	formula, err := parse.DIMACS(formulaFile)
	if err != nil {
		return fmt.Errorf("parsing formula %s: %w", formulaPath, err)
	}
	if weighted && !formula.Weighted() {
		logger.Warn("--weighted set but %s carries no \"c w\" weight lines; treating as unweighted", formulaPath)
	}
	if !weighted {
		formula.Weights = nil
	}

	decompFile, err := os.Open(decompPath)
	if err != nil {
		return fmt.Errorf("opening decomposition file: %w", err)
	}
	defer decompFile.Close()

	decomp, err := parse.TreeDecomposition(decompFile)
	if err != nil {
		return fmt.Errorf("parsing decomposition %s: %w", decompPath, err)
	}

	cfg := driver.DefaultConfig()
	cfg.MaxBag = maxBagSize
	cfg.CombineWidth = combineWidth
	switch dataStruct {
	case "auto", "":
		cfg.Layout = driver.LayoutAuto
	case "array":
		cfg.Layout = driver.LayoutArray
	case "tree":
		cfg.Layout = driver.LayoutTree
	default:
		return fmt.Errorf("invalid --dataStructure %q (valid: auto, array, tree)", dataStruct)
	}

	logger.Info("Solving %s over %s (layout=%s, maxBag=%d)", filepath.Base(formulaPath), filepath.Base(decompPath), cfg.Layout, cfg.MaxBag)

	start := time.Now()
	res, err := driver.Solve(context.Background(), formula, decomp, cfg)
	if err != nil {
		return fmt.Errorf("solve failed: %w", err)
	}
	elapsed := time.Since(start)

	fmt.Printf("isSat:              %v\n", res.IsSat)
	fmt.Printf("count:              %g\n", res.Count)
	fmt.Printf("exponent:           %d\n", res.Exponent)
	fmt.Printf("numJoin:            %d\n", res.NumJoin)
	fmt.Printf("numIntroduceForget: %d\n", res.NumIntroduceForget)
	fmt.Printf("maxTableSize:       %d\n", res.MaxTableSize)
	fmt.Printf("elapsed:            %s\n", elapsed)

	return nil
}

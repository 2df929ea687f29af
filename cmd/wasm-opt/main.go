// Command wasm-opt reads a binary module, runs optimization passes over
// it, and writes the result.
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/zenhumany/binaryen/passes"
	"github.com/zenhumany/binaryen/wasm"
)

var (
	output    string
	optimize  bool
	debug     bool
	passNames []string
)

// defaultPasses is the standard pipeline when no --pass flags are given.
var defaultPasses = []string{
	"drop-return-values",
	"simplify-locals",
	"code-pushing",
	"loop-var-splitting",
	"reorder-functions",
}

var rootCmd = &cobra.Command{
	Use:   "wasm-opt [flags] INPUT",
	Short: "Optimize a binary module",
	Long: `wasm-opt reads a binary module, runs optimization passes over its
function bodies, and emits the optimized binary. With --optimize, the
emitter additionally builds a per-module opcode table, compressing the
most frequent opcode+immediate tuples into single bytes.`,
	Args:          cobra.ExactArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		if debug {
			logger, err := zap.NewDevelopment()
			if err != nil {
				return err
			}
			passes.SetLogger(logger)
			defer logger.Sync()
		}
		log := passes.Logger()

		data, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}

		module, err := wasm.ParseModule(data)
		if err != nil {
			return fmt.Errorf("%s: %w", args[0], err)
		}
		log.Info("parsed module",
			zap.String("input", args[0]),
			zap.Int("functions", len(module.Functions)),
			zap.Int("bytes", len(data)))

		runner := passes.NewRunner()
		names := passNames
		if len(names) == 0 {
			names = defaultPasses
		}
		for _, name := range names {
			if err := runner.Add(name); err != nil {
				return fmt.Errorf("%w (available: %s)", err, strings.Join(passes.Names(), ", "))
			}
		}
		if err := runner.Run(module); err != nil {
			return err
		}

		if err := wasm.Validate(module); err != nil {
			return err
		}

		writer := wasm.NewWriter(module)
		writer.SetOpcodeTable(optimize)
		out, err := writer.Write()
		if err != nil {
			return err
		}
		log.Info("emitted module",
			zap.Int("bytes", len(out)),
			zap.Bool("opcode_table", optimize))

		if output == "" {
			_, err = os.Stdout.Write(out)
			return err
		}
		return os.WriteFile(output, out, 0o644)
	},
}

func main() {
	rootCmd.Flags().StringVarP(&output, "output", "o", "", "output file path (default stdout)")
	rootCmd.Flags().BoolVar(&optimize, "optimize", false, "emit with the opcode-table compression layer")
	rootCmd.Flags().BoolVar(&debug, "debug", false, "enable debug logging")
	rootCmd.Flags().StringArrayVar(&passNames, "pass", nil, "pass to run, in order (repeatable; default standard pipeline)")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "wasm-opt:", err)
		os.Exit(1)
	}
}

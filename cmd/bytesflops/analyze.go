package main

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/kolkov/bytesflops/cmd/bytesflops/instrument"
	"github.com/kolkov/bytesflops/internal/frontend"
	"github.com/kolkov/bytesflops/internal/ir"
)

// analyzeCmd implements 'bytesflops analyze'.
//
// Go package patterns are lowered through SSA; a single argument ending
// in .yaml or .yml is read as an IR program instead. The program is
// instrumented and the static statistics are printed as JSON.
//
// Example:
//
//	bytesflops analyze --bf-all-ops ./kernels/...
//	bytesflops analyze --dump axpy.yaml
func (c *cli) analyzeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "analyze [flags] [packages | program.yaml]",
		Short: "Report static instrumentation counts",
		RunE:  c.analyze,
	}
	addInstrumentFlags(cmd.Flags())
	cmd.Flags().Bool("dump", false, "print the instrumented IR")
	cmd.Flags().Bool("tests", false, "include test packages")
	cmd.Flags().Bool("all-modules", false, "lower dependencies outside the main module too")
	cmd.Flags().String("dir", "", "directory package patterns are resolved in")
	return cmd
}

func (c *cli) analyze(cmd *cobra.Command, args []string) error {
	opts, err := instrumentOptions(c.v)
	if err != nil {
		return err
	}
	opts.Logger = c.log

	mod, err := c.loadModule(cmd, args)
	if err != nil {
		return err
	}
	res, err := instrument.Instrument(mod, opts)
	if err != nil {
		return err
	}

	if dump, _ := cmd.Flags().GetBool("dump"); dump {
		return mod.Print(cmd.OutOrStdout())
	}
	return writeJSON(c.v, cmd.OutOrStdout(), res.Stats)
}

func (c *cli) loadModule(cmd *cobra.Command, args []string) (*ir.Module, error) {
	if len(args) == 1 && isProgramFile(args[0]) {
		return ir.LoadFile(args[0])
	}
	cfg := frontend.Config{Logger: c.log}
	cfg.Dir, _ = cmd.Flags().GetString("dir")
	cfg.Tests, _ = cmd.Flags().GetBool("tests")
	cfg.AllModules, _ = cmd.Flags().GetBool("all-modules")
	return frontend.Load(cmd.Context(), cfg, args...)
}

func isProgramFile(path string) bool {
	return strings.HasSuffix(path, ".yaml") || strings.HasSuffix(path, ".yml")
}

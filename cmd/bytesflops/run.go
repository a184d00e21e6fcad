package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kolkov/bytesflops/cmd/bytesflops/instrument"
	"github.com/kolkov/bytesflops/internal/bf/api"
	"github.com/kolkov/bytesflops/internal/interp"
	"github.com/kolkov/bytesflops/internal/ir"
)

// runCmd implements 'bytesflops run'.
//
// It loads an IR program, instruments it, interprets the entry function
// on the requested number of threads and prints the final snapshot as
// JSON. Report events are logged as they arrive.
//
// Example:
//
//	bytesflops run --bf-every-bb --bf-merge 10 axpy.yaml
func (c *cli) runCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run [flags] program.yaml",
		Short: "Instrument and interpret an IR program",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.run(cmd, args[0])
		},
	}
	addInstrumentFlags(cmd.Flags())
	cmd.Flags().String("entry", "main", "function to run")
	cmd.Flags().Int("threads", 1, "number of threads running the entry function")
	cmd.Flags().Uint64("max-steps", interp.DefaultMaxSteps, "abort after this many interpreted instructions")
	return cmd
}

func (c *cli) run(cmd *cobra.Command, path string) error {
	opts, err := instrumentOptions(c.v)
	if err != nil {
		return err
	}
	opts.Logger = c.log

	mod, err := ir.LoadFile(path)
	if err != nil {
		return err
	}
	if _, err := instrument.Instrument(mod, opts); err != nil {
		return err
	}

	entry, _ := cmd.Flags().GetString("entry")
	threads, _ := cmd.Flags().GetInt("threads")
	maxSteps, _ := cmd.Flags().GetUint64("max-steps")
	if threads < 1 {
		return fmt.Errorf("--threads must be at least 1, got %d", threads)
	}

	rt := api.New(api.OptionsFromGlobals(mod.Globals))
	rt.SetLogger(c.log)
	rt.SetSink(api.SinkFunc(func(e api.Event) {
		fields := make(map[string]any)
		for k, n := range e.Tally.Named() {
			fields[k] = n
		}
		c.log.Info().
			Uint64("seq", e.Seq).
			Stringer("status", e.Status).
			Bool("final", e.Final).
			Fields(fields).
			Msg("basic-block report")
	}))

	m := interp.New(mod, rt)
	m.SetLogger(c.log)
	m.SetMaxSteps(maxSteps)
	if _, err := m.Run(cmd.Context(), entry, threads); err != nil {
		return fmt.Errorf("run %s: %w", entry, err)
	}
	snap := rt.Fini()
	c.log.Debug().Uint64("steps", m.Steps()).Int("threads", threads).Msg("interpreter finished")

	return writeJSON(c.v, cmd.OutOrStdout(), snap)
}

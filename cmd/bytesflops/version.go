package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kolkov/bytesflops/bf"
)

func (c *cli) versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			info := bf.GetInfo()
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "bytesflops version %s (commit %s, runtime %s, %d counters, hooks %s*)\n",
				version, commit, info.Version, info.Scalars, info.HookPrefix)
			return err
		},
	}
}

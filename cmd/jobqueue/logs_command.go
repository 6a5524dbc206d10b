package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"jobqueue/internal/logs"
)

func newLogsCommand(ctx *commandContext) *cobra.Command {
	var lines int
	var follow bool

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Print the runner log file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			path := cfg.LogFilePath()
			out := cmd.OutOrStdout()

			snap, err := logs.Tail(path, lines)
			if err != nil {
				return err
			}
			for _, line := range snap.Lines {
				fmt.Fprintln(out, line)
			}
			if !follow {
				if len(snap.Lines) == 0 && snap.Offset == 0 {
					fmt.Fprintf(out, "No log output yet at %s\n", path)
				}
				return nil
			}
			return logs.Follow(cmd.Context(), path, snap.Offset, 500*time.Millisecond, func(line string) {
				fmt.Fprintln(out, line)
			})
		},
	}

	cmd.Flags().IntVarP(&lines, "lines", "n", 50, "Number of trailing lines to print")
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Keep printing new lines until interrupted")
	return cmd
}

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"jobqueue/internal/jobs"
)

func newInitCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create the job store under paths.jobs_dir",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			return ctx.withStore(func(store *jobs.Store) error {
				fmt.Fprintf(cmd.OutOrStdout(), "Initialized %s store (%s) at %s\n", cfg.Store.Backend, cfg.Store.Format, store.Root())
				return nil
			})
		},
	}
}

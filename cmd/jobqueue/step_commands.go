package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"jobqueue/internal/args"
	"jobqueue/internal/jobs"
)

func newStepCommand(ctx *commandContext) *cobra.Command {
	stepCmd := &cobra.Command{
		Use:   "step",
		Short: "Edit the steps of a job",
		Long: "Edit the steps of a job.\n\n" +
			"Worker arguments follow a literal --, for example:\n" +
			"  jobqueue step add portrait -- -s face.jpg -t photo.png -o out.png\n\n" +
			"Indices start at 0; negative indices count from the end.",
	}

	stepCmd.AddCommand(newStepAddCommand(ctx))
	stepCmd.AddCommand(newStepInsertCommand(ctx))
	stepCmd.AddCommand(newStepRemoveCommand(ctx))
	stepCmd.AddCommand(newStepUpdateCommand(ctx))
	stepCmd.AddCommand(newStepSetStatusCommand(ctx))
	stepCmd.AddCommand(newStepSetActionCommand(ctx))
	stepCmd.AddCommand(newStepStatusCommand(ctx))

	return stepCmd
}

// workerArgs returns the tokens after the job id, passed through the flag
// registry when filter is set.
func workerArgs(ctx *commandContext, tokens []string, filter bool) ([]string, error) {
	if !filter {
		return tokens, nil
	}
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return nil, err
	}
	return args.FromConfig(cfg).Filter(tokens), nil
}

func stepResult(cmd *cobra.Command, ok bool, id string, index int, verb string) error {
	if !ok {
		return fmt.Errorf("job %s has no step %d", id, index)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Step %d of job %s %s\n", index, id, verb)
	return nil
}

func newStepAddCommand(ctx *commandContext) *cobra.Command {
	var filter bool

	cmd := &cobra.Command{
		Use:   "add <id> -- <worker args>...",
		Short: "Append a queued step",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, positional []string) error {
			id := positional[0]
			stepArgs, err := workerArgs(ctx, positional[1:], filter)
			if err != nil {
				return err
			}
			return ctx.withStore(func(store *jobs.Store) error {
				ok, err := store.AddStep(cmd.Context(), id, stepArgs)
				if err != nil {
					return err
				}
				if !ok {
					return fmt.Errorf("job %s not found", id)
				}
				count, err := store.StepCount(cmd.Context(), id)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Added step %d to job %s: %s\n", count-1, id, strings.Join(stepArgs, " "))
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&filter, "filter", false, "Keep only recognized worker flags from the arguments")
	return cmd
}

func newStepInsertCommand(ctx *commandContext) *cobra.Command {
	var index int
	var filter bool

	cmd := &cobra.Command{
		Use:   "insert <id> --index N -- <worker args>...",
		Short: "Insert a queued step before index",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, positional []string) error {
			id := positional[0]
			stepArgs, err := workerArgs(ctx, positional[1:], filter)
			if err != nil {
				return err
			}
			return ctx.withStore(func(store *jobs.Store) error {
				ok, err := store.InsertStep(cmd.Context(), id, index, stepArgs)
				if err != nil {
					return err
				}
				if !ok {
					return fmt.Errorf("job %s not found", id)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Inserted step at %d in job %s\n", index, id)
				return nil
			})
		},
	}

	cmd.Flags().IntVarP(&index, "index", "i", 0, "Position to insert before")
	cmd.Flags().BoolVar(&filter, "filter", false, "Keep only recognized worker flags from the arguments")
	_ = cmd.MarkFlagRequired("index")
	return cmd
}

func newStepRemoveCommand(ctx *commandContext) *cobra.Command {
	var index int

	cmd := &cobra.Command{
		Use:   "remove <id> --index N",
		Short: "Remove the step at index",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, positional []string) error {
			id := positional[0]
			return ctx.withStore(func(store *jobs.Store) error {
				ok, err := store.RemoveStep(cmd.Context(), id, index)
				if err != nil {
					return err
				}
				return stepResult(cmd, ok, id, index, "removed")
			})
		},
	}

	cmd.Flags().IntVarP(&index, "index", "i", 0, "Step index")
	_ = cmd.MarkFlagRequired("index")
	return cmd
}

func newStepUpdateCommand(ctx *commandContext) *cobra.Command {
	var index int
	var filter bool

	cmd := &cobra.Command{
		Use:   "update <id> --index N -- <worker args>...",
		Short: "Replace the step at index with a fresh queued step",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, positional []string) error {
			id := positional[0]
			stepArgs, err := workerArgs(ctx, positional[1:], filter)
			if err != nil {
				return err
			}
			return ctx.withStore(func(store *jobs.Store) error {
				ok, err := store.UpdateStep(cmd.Context(), id, index, stepArgs)
				if err != nil {
					return err
				}
				return stepResult(cmd, ok, id, index, "updated")
			})
		},
	}

	cmd.Flags().IntVarP(&index, "index", "i", 0, "Step index")
	cmd.Flags().BoolVar(&filter, "filter", false, "Keep only recognized worker flags from the arguments")
	_ = cmd.MarkFlagRequired("index")
	return cmd
}

func newStepSetStatusCommand(ctx *commandContext) *cobra.Command {
	var index int

	cmd := &cobra.Command{
		Use:   "set-status <id> <queued|failed|completed> --index N",
		Short: "Change the status of the step at index",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, positional []string) error {
			id := positional[0]
			status, ok := jobs.ParseStepStatus(positional[1])
			if !ok {
				return fmt.Errorf("unknown step status %q (use queued, failed or completed)", positional[1])
			}
			return ctx.withStore(func(store *jobs.Store) error {
				ok, err := store.SetStepStatus(cmd.Context(), id, index, status)
				if errors.Is(err, jobs.ErrInvalidTransition) {
					return fmt.Errorf("step %d of job %s is completed; use step update to replace it", index, id)
				}
				if err != nil {
					return err
				}
				return stepResult(cmd, ok, id, index, "set to "+string(status))
			})
		},
	}

	cmd.Flags().IntVarP(&index, "index", "i", 0, "Step index")
	_ = cmd.MarkFlagRequired("index")
	return cmd
}

func newStepSetActionCommand(ctx *commandContext) *cobra.Command {
	var index int

	cmd := &cobra.Command{
		Use:   "set-action <id> <action> --index N",
		Short: "Retag the step at index",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, positional []string) error {
			id := positional[0]
			action := jobs.Action(strings.TrimSpace(positional[1]))
			if action == "" {
				return errors.New("action must not be empty")
			}
			return ctx.withStore(func(store *jobs.Store) error {
				ok, err := store.SetStepAction(cmd.Context(), id, index, action)
				if err != nil {
					return err
				}
				return stepResult(cmd, ok, id, index, "tagged "+string(action))
			})
		},
	}

	cmd.Flags().IntVarP(&index, "index", "i", 0, "Step index")
	_ = cmd.MarkFlagRequired("index")
	return cmd
}

func newStepStatusCommand(ctx *commandContext) *cobra.Command {
	var index int

	cmd := &cobra.Command{
		Use:   "status <id> --index N",
		Short: "Print the status of the step at index",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, positional []string) error {
			id := positional[0]
			return ctx.withStore(func(store *jobs.Store) error {
				status, ok, err := store.GetStepStatus(cmd.Context(), id, index)
				if err != nil {
					return err
				}
				if !ok {
					return fmt.Errorf("job %s has no step %d", id, index)
				}
				fmt.Fprintln(cmd.OutOrStdout(), status)
				return nil
			})
		},
	}

	cmd.Flags().IntVarP(&index, "index", "i", 0, "Step index")
	_ = cmd.MarkFlagRequired("index")
	return cmd
}

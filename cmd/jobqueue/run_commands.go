package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/spf13/cobra"

	"jobqueue/internal/config"
	"jobqueue/internal/jobs"
	"jobqueue/internal/logging"
	"jobqueue/internal/preflight"
	"jobqueue/internal/runner"
)

// withRunner checks readiness, takes the runner lock and hands fn a runner
// over a freshly opened store. The lock is held until fn returns.
func (c *commandContext) withRunner(ctx context.Context, policy string, fn func(*runner.Runner, *jobs.Store) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	if failed := preflight.Failed(preflight.RunAll(ctx, cfg)); len(failed) > 0 {
		var result *multierror.Error
		for _, check := range failed {
			result = multierror.Append(result, fmt.Errorf("%s: %s", check.Name, check.Detail))
		}
		return fmt.Errorf("preflight failed (run `jobqueue doctor` for details): %w", result.ErrorOrNil())
	}

	logger, err := c.ensureLogger()
	if err != nil {
		return err
	}

	lock, err := runner.AcquireLock(cfg)
	if err != nil {
		if errors.Is(err, runner.ErrLocked) {
			return fmt.Errorf("another run is in progress (lock %s)", cfg.LockPath())
		}
		return err
	}
	defer func() {
		if err := lock.Release(); err != nil {
			logging.WarnWithContext(logger, "failed to release runner lock", "lock_release_failed",
				logging.Error(err),
				logging.String("lock", lock.Path()),
				logging.String(logging.FieldErrorHint, "remove the lock file if no run is active"),
			)
		}
	}()

	store, err := jobs.Open(cfg)
	if err != nil {
		return fmt.Errorf("open job store: %w", err)
	}
	defer store.Close()

	var opts []runner.Option
	if value := strings.TrimSpace(policy); value != "" {
		value = strings.ReplaceAll(strings.ToLower(value), "-", "_")
		if value != config.PolicyFailFast && value != config.PolicyContinue {
			return fmt.Errorf("unknown policy %q (use fail_fast or continue)", policy)
		}
		opts = append(opts, runner.WithPolicy(runner.Policy(value)))
	}
	r, err := runner.New(cfg, store, logger, opts...)
	if err != nil {
		return err
	}
	return fn(r, store)
}

func newRunCommand(ctx *commandContext) *cobra.Command {
	var policy string

	cmd := &cobra.Command{
		Use:   "run [id]",
		Short: "Run queued jobs, or a single job by id",
		Long: "Without an id, every unassigned job is queued and every queued job is run.\n" +
			"With an id, that job is run from whichever bucket holds it.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withRunner(cmd.Context(), policy, func(r *runner.Runner, store *jobs.Store) error {
				if len(args) == 0 {
					err := r.RunAll(cmd.Context())
					printBucketCounts(cmd, store)
					return err
				}
				return runOne(cmd, r, store, args[0])
			})
		},
	}

	cmd.Flags().StringVar(&policy, "policy", "", "Override runner.policy (fail_fast or continue)")
	return cmd
}

func newRetryCommand(ctx *commandContext) *cobra.Command {
	var policy string

	cmd := &cobra.Command{
		Use:   "retry [id]",
		Short: "Re-run failed jobs, or a single failed job by id",
		Long:  "Completed steps are kept; only steps that did not complete run again.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withRunner(cmd.Context(), policy, func(r *runner.Runner, store *jobs.Store) error {
				if len(args) == 0 {
					err := r.RetryFailed(cmd.Context())
					printBucketCounts(cmd, store)
					return err
				}
				id := args[0]
				bucket, exists, err := store.Locate(cmd.Context(), id)
				if err != nil {
					return err
				}
				if !exists {
					return fmt.Errorf("job %s not found", id)
				}
				if bucket != jobs.BucketFailed {
					return fmt.Errorf("job %s is %s; only failed jobs can be retried", id, bucket)
				}
				return runOne(cmd, r, store, id)
			})
		},
	}

	cmd.Flags().StringVar(&policy, "policy", "", "Override runner.policy (fail_fast or continue)")
	return cmd
}

func runOne(cmd *cobra.Command, r *runner.Runner, store *jobs.Store, id string) error {
	moved, err := r.RunJob(cmd.Context(), id)
	if err != nil {
		return err
	}
	if !moved {
		return fmt.Errorf("job %s not found", id)
	}
	job, err := store.Read(cmd.Context(), id)
	if err != nil {
		return err
	}
	bucket, _, err := store.Locate(cmd.Context(), id)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	completed, total := 0, 0
	if job != nil {
		completed, total = job.CompletedSteps(), len(job.Steps)
	}
	fmt.Fprintf(out, "Job %s: %d of %d steps completed (%s)\n", id, completed, total, bucketLabel(bucket, shouldColorize(out)))
	return nil
}

func printBucketCounts(cmd *cobra.Command, store *jobs.Store) {
	out := cmd.OutOrStdout()
	parts := make([]string, 0, 4)
	for _, bucket := range jobs.AllBuckets() {
		ids, err := store.Enumerate(cmd.Context(), bucket)
		if err != nil {
			continue
		}
		parts = append(parts, fmt.Sprintf("%s %d", titleCaser.String(string(bucket)), len(ids)))
	}
	fmt.Fprintln(out, strings.Join(parts, ", "))
}

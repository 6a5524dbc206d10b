package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"

	"jobqueue/internal/args"
	"jobqueue/internal/config"
	"jobqueue/internal/jobs"
	"jobqueue/internal/logging"
)

// Policy decides whether a job keeps running after a step fails.
type Policy string

const (
	// PolicyFailFast stops at the first step that does not complete.
	PolicyFailFast Policy = config.PolicyFailFast
	// PolicyContinue runs every step regardless of earlier failures.
	PolicyContinue Policy = config.PolicyContinue
)

// Runner executes job steps one at a time through the external worker and
// moves each job to completed or failed when it finishes. A Runner is not
// safe for concurrent passes; callers serialize passes with Lock.
type Runner struct {
	cfg      *config.Config
	store    *jobs.Store
	registry *args.Registry
	logger   *slog.Logger
	exec     Executor
	policy   Policy
}

// Option configures a Runner.
type Option func(*Runner)

// WithExecutor injects a custom executor (primarily for tests).
func WithExecutor(exec Executor) Option {
	return func(r *Runner) {
		if exec != nil {
			r.exec = exec
		}
	}
}

// WithPolicy overrides the configured runner policy.
func WithPolicy(policy Policy) Option {
	return func(r *Runner) {
		if policy != "" {
			r.policy = policy
		}
	}
}

// New constructs a Runner over store using the worker, runner and args
// sections of cfg.
func New(cfg *config.Config, store *jobs.Store, logger *slog.Logger, opts ...Option) (*Runner, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if store == nil {
		return nil, errors.New("job store is required")
	}
	if len(cfg.Worker.Command) == 0 || strings.TrimSpace(cfg.Worker.Command[0]) == "" {
		return nil, errors.New("worker command is required")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	r := &Runner{
		cfg:      cfg,
		store:    store,
		registry: args.FromConfig(cfg),
		logger:   logging.NewComponentLogger(logger, "runner"),
		exec:     commandExecutor{},
		policy:   Policy(cfg.Runner.Policy),
	}
	for _, opt := range opts {
		opt(r)
	}
	switch r.policy {
	case PolicyFailFast, PolicyContinue:
	case "":
		r.policy = PolicyFailFast
	default:
		return nil, fmt.Errorf("unsupported runner policy %q", r.policy)
	}
	return r, nil
}

// Policy returns the step policy in effect.
func (r *Runner) Policy() Policy {
	return r.policy
}

// RunAll promotes every unassigned job to queued and then runs each queued
// job, in id order. A job that also sits in failed or completed is skipped.
// Failures of one job do not stop the pass; they are returned together.
func (r *Runner) RunAll(ctx context.Context) error {
	ctx = withRunID(ctx)
	logger := logging.WithContext(ctx, r.logger)
	start := time.Now()

	var result *multierror.Error

	unassigned, err := r.store.Enumerate(ctx, jobs.BucketUnassigned)
	if err != nil {
		return err
	}
	for _, id := range unassigned {
		moved, err := r.store.Move(ctx, id, jobs.BucketQueued)
		if err != nil {
			result = multierror.Append(result, err)
			continue
		}
		if moved {
			logger.Info("job submitted",
				logging.String(logging.FieldEventType, "job_submitted"),
				logging.String(logging.FieldJobID, id),
			)
		}
	}

	queued, err := r.store.Enumerate(ctx, jobs.BucketQueued)
	if err != nil {
		result = multierror.Append(result, err)
		return result.ErrorOrNil()
	}
	settled, err := r.settledIDs(ctx)
	if err != nil {
		result = multierror.Append(result, err)
		return result.ErrorOrNil()
	}

	logger.Info("run started",
		logging.String(logging.FieldEventType, "run_start"),
		logging.Int("queued_jobs", len(queued)),
		logging.String("policy", string(r.policy)),
	)
	ran := 0
	for _, id := range queued {
		if err := ctx.Err(); err != nil {
			result = multierror.Append(result, err)
			break
		}
		if _, ok := settled[id]; ok {
			logging.WarnWithContext(logger, "job present in more than one bucket", "job_skipped",
				logging.String(logging.FieldJobID, id),
				logging.String(logging.FieldErrorHint, "delete the stale copy from failed or completed"),
				logging.String(logging.FieldImpact, "job was not run"),
			)
			continue
		}
		if _, err := r.RunJob(ctx, id); err != nil {
			result = multierror.Append(result, err)
			continue
		}
		ran++
	}

	logger.Info("run finished",
		logging.String(logging.FieldEventType, "run_complete"),
		logging.Int("jobs_run", ran),
		logging.Duration("run_duration", time.Since(start)),
	)
	return result.ErrorOrNil()
}

// RetryFailed re-runs every job in the failed bucket. Completed steps are
// kept, so only the steps that did not finish run again.
func (r *Runner) RetryFailed(ctx context.Context) error {
	ctx = withRunID(ctx)
	failed, err := r.store.Enumerate(ctx, jobs.BucketFailed)
	if err != nil {
		return err
	}
	var result *multierror.Error
	for _, id := range failed {
		if err := ctx.Err(); err != nil {
			result = multierror.Append(result, err)
			break
		}
		if _, err := r.RunJob(ctx, id); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}

// RunJob runs the steps of id and moves it to completed when every step
// completed, otherwise to failed. It returns whether the final move
// succeeded; a missing job returns false.
func (r *Runner) RunJob(ctx context.Context, id string) (bool, error) {
	if _, ok := logging.RunIDFromContext(ctx); !ok {
		ctx = withRunID(ctx)
	}
	ctx = logging.WithJobID(ctx, id)
	logger := logging.WithContext(ctx, r.logger)

	job, err := r.store.Read(ctx, id)
	if err != nil {
		return false, fmt.Errorf("run job %s: %w", id, err)
	}
	if job == nil {
		logging.WarnWithContext(logger, "job not found", "job_missing",
			logging.String(logging.FieldErrorHint, "check the id with job list"),
			logging.String(logging.FieldImpact, "nothing was run"),
		)
		return false, nil
	}

	start := time.Now()
	completed, err := r.RunSteps(ctx, id, job.Steps)
	if err != nil {
		return false, fmt.Errorf("run job %s: %w", id, err)
	}

	total := len(job.Steps)
	target := jobs.BucketFailed
	if completed == total {
		target = jobs.BucketCompleted
	}
	moved, err := r.store.Move(ctx, id, target)
	if err != nil {
		return false, fmt.Errorf("run job %s: %w", id, err)
	}

	attrs := []logging.Attr{
		logging.String(logging.FieldBucket, string(target)),
		logging.String("location", r.store.Location(ctx, id)),
		logging.Int("completed_steps", completed),
		logging.Int("total_steps", total),
		logging.Duration("job_duration", time.Since(start)),
	}
	message := fmt.Sprintf("%d of %d steps completed", completed, total)
	if target == jobs.BucketCompleted {
		logger.Info(message, logging.Args(append(attrs, logging.String(logging.FieldEventType, "job_complete"))...)...)
	} else {
		logging.WarnWithContext(logger, message, "job_failed", append(attrs,
			logging.String(logging.FieldErrorHint, "fix the failed step with step update, then retry"),
			logging.String(logging.FieldImpact, "job moved to failed"),
		)...)
	}
	return moved, nil
}

// RunSteps executes steps of id in order and persists each resulting status.
// Completed steps are not re-run but count toward the returned total. Under
// PolicyFailFast the first step that does not complete ends the pass.
func (r *Runner) RunSteps(ctx context.Context, id string, steps []jobs.Step) (int, error) {
	completed := 0
	for index, step := range steps {
		if step.Status == jobs.StepCompleted {
			completed++
			continue
		}
		if err := ctx.Err(); err != nil {
			return completed, err
		}

		stepCtx := logging.WithStepIndex(ctx, index)
		status := r.RunStep(stepCtx, step)
		if err := ctx.Err(); err != nil {
			// Interrupted by the caller; leave the stored status as it was.
			return completed, err
		}
		if _, err := r.store.SetStepStatus(stepCtx, id, index, status); err != nil {
			return completed, fmt.Errorf("persist step %d status: %w", index, err)
		}

		if status == jobs.StepCompleted {
			completed++
			continue
		}
		if r.policy == PolicyFailFast {
			break
		}
	}
	return completed, nil
}

func (r *Runner) settledIDs(ctx context.Context) (map[string]struct{}, error) {
	settled := make(map[string]struct{})
	for _, bucket := range []jobs.Bucket{jobs.BucketFailed, jobs.BucketCompleted} {
		ids, err := r.store.Enumerate(ctx, bucket)
		if err != nil {
			return nil, err
		}
		for _, id := range ids {
			settled[id] = struct{}{}
		}
	}
	return settled, nil
}

func withRunID(ctx context.Context) context.Context {
	return logging.WithRunID(ctx, uuid.NewString())
}

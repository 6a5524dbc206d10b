package preflight

import (
	"context"

	"jobqueue/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes every preflight check for the given config.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("Jobs directory", cfg.Paths.JobsDir),
		CheckDirectoryAccess("Log directory", cfg.Paths.LogDir),
	}
	if cfg.Worker.WorkingDir != "" {
		results = append(results, CheckDirectoryAccess("Worker directory", cfg.Worker.WorkingDir))
	}
	results = append(results, CheckStore(ctx, cfg))
	results = append(results, CheckWorker(cfg)...)
	return results
}

// Failed returns the results that did not pass.
func Failed(results []Result) []Result {
	var failed []Result
	for _, result := range results {
		if !result.Passed {
			failed = append(failed, result)
		}
	}
	return failed
}

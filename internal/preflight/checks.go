package preflight

import (
	"context"
	"fmt"
	"os"

	"golang.org/x/sys/unix"

	"jobqueue/internal/config"
	"jobqueue/internal/deps"
	"jobqueue/internal/jobs"
)

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckStore opens the configured backend and initializes its buckets.
func CheckStore(ctx context.Context, cfg *config.Config) Result {
	const name = "Job store"
	label := fmt.Sprintf("%s/%s", cfg.Store.Backend, cfg.Store.Format)

	store, err := jobs.Open(cfg)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: %v)", label, err)}
	}
	defer store.Close()

	ids, err := store.EnumerateAll(ctx)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: %v)", label, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (%d jobs)", label, len(ids))}
}

// CheckWorker reports whether the worker binary and its script entry resolve.
func CheckWorker(cfg *config.Config) []Result {
	statuses := deps.CheckBinaries(deps.WorkerRequirements(cfg))
	statuses = append(statuses, deps.CheckWorkerEntry(cfg))

	results := make([]Result, 0, len(statuses))
	for _, status := range statuses {
		detail := status.Command
		if status.Detail != "" {
			if detail != "" {
				detail += " "
			}
			detail += "(" + status.Detail + ")"
		}
		results = append(results, Result{
			Name:   status.Name,
			Passed: status.Available || status.Optional,
			Detail: detail,
		})
	}
	return results
}

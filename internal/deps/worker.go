package deps

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"jobqueue/internal/config"
)

// scriptExtensions mark worker.command entries that name a script file the
// interpreter loads rather than a flag.
var scriptExtensions = []string{".py", ".sh", ".js", ".rb"}

// WorkerRequirements lists the programs needed to run steps with cfg.
func WorkerRequirements(cfg *config.Config) []Requirement {
	return []Requirement{{
		Name:        "Worker",
		Command:     cfg.WorkerBinary(),
		Description: "Executes every job step",
	}}
}

// CheckWorkerEntry verifies the script argument of worker.command, if any,
// exists relative to worker.working_dir. Commands without a script entry are
// reported available.
func CheckWorkerEntry(cfg *config.Config) Status {
	status := Status{
		Name:        "Worker entry",
		Description: "Script passed to the worker interpreter",
	}
	entry := workerEntry(cfg.Worker.Command)
	if entry == "" {
		status.Available = true
		status.Detail = "no script entry configured"
		return status
	}
	path := entry
	if !filepath.IsAbs(path) {
		base := cfg.Worker.WorkingDir
		if base == "" {
			if wd, err := os.Getwd(); err == nil {
				base = wd
			}
		}
		path = filepath.Join(base, entry)
	}
	status.Command = path
	info, err := os.Stat(path)
	switch {
	case err != nil:
		status.Detail = fmt.Sprintf("script %q not found", path)
	case info.IsDir():
		status.Detail = fmt.Sprintf("script %q is a directory", path)
	default:
		status.Available = true
	}
	return status
}

func workerEntry(command []string) string {
	if len(command) < 2 {
		return ""
	}
	candidate := strings.TrimSpace(command[1])
	if strings.HasPrefix(candidate, "-") {
		return ""
	}
	ext := strings.ToLower(filepath.Ext(candidate))
	for _, known := range scriptExtensions {
		if ext == known {
			return candidate
		}
	}
	return ""
}

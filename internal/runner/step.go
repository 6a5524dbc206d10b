package runner

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"jobqueue/internal/jobs"
	"jobqueue/internal/logging"
)

// Executor abstracts worker process execution for testability.
type Executor interface {
	// Run executes binary with args in dir and returns its combined stdout
	// and stderr. A non-zero exit is reported as an error alongside the output.
	Run(ctx context.Context, binary string, args []string, dir string) ([]byte, error)
}

type commandExecutor struct{}

func (commandExecutor) Run(ctx context.Context, binary string, args []string, dir string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, binary, args...) //nolint:gosec
	cmd.Dir = dir
	cmd.WaitDelay = 5 * time.Second
	output, err := cmd.CombinedOutput()
	if err != nil {
		return output, fmt.Errorf("run %s: %w", binary, err)
	}
	return output, nil
}

const (
	mediaImage = "image"
	mediaVideo = "video"
)

var mediaExtensions = map[string]string{
	".jpg":  mediaImage,
	".jpeg": mediaImage,
	".png":  mediaImage,
	".webp": mediaImage,
	".bmp":  mediaImage,
	".mp4":  mediaVideo,
	".mov":  mediaVideo,
	".mkv":  mediaVideo,
	".avi":  mediaVideo,
	".webm": mediaVideo,
}

// mediaKind classifies an output path by extension. Unknown extensions
// return the empty string.
func mediaKind(path string) string {
	return mediaExtensions[strings.ToLower(filepath.Ext(path))]
}

// RunStep executes one step through the worker and reports the resulting
// status. It never returns an error: a worker that cannot start, exits
// non-zero, times out or omits the success marker yields StepFailed.
func (r *Runner) RunStep(ctx context.Context, step jobs.Step) jobs.StepStatus {
	logger := logging.WithContext(ctx, r.logger)
	if len(step.Args) == 0 {
		logging.WarnWithContext(logger, "step has no args", "step_rejected",
			logging.String(logging.FieldErrorHint, "add worker arguments with step update"),
			logging.String(logging.FieldImpact, "step marked failed without running the worker"),
		)
		return jobs.StepFailed
	}

	command := r.cfg.Worker.Command
	argv := make([]string, 0, len(command)-1+len(step.Args))
	argv = append(argv, command[1:]...)
	argv = append(argv, step.Args...)

	runCtx := ctx
	if timeout := r.cfg.StepTimeout(); timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	start := time.Now()
	logger.Debug("worker started",
		logging.String(logging.FieldEventType, "worker_start"),
		logging.String("action", string(step.Action)),
		logging.Any("argv", argv),
	)
	output, err := r.exec.Run(runCtx, command[0], argv, r.cfg.Worker.WorkingDir)
	elapsed := time.Since(start)

	if err != nil {
		hint := "inspect the worker output and fix the step args"
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
			hint = "raise worker.timeout_seconds or split the step"
		}
		logging.WarnWithContext(logger, "worker failed", "worker_failed",
			logging.Error(err),
			logging.Duration("duration", elapsed),
			logging.String("output_tail", outputTail(output)),
			logging.String(logging.FieldErrorHint, hint),
			logging.String(logging.FieldImpact, "step marked failed"),
		)
		return jobs.StepFailed
	}

	kind := ""
	if path, ok := r.registry.OutputPath(step.Args); ok {
		kind = mediaKind(path)
	}
	if !r.succeeded(string(output), kind) {
		logging.WarnWithContext(logger, "worker exited without success marker", "worker_unconfirmed",
			logging.String("media_kind", kind),
			logging.Duration("duration", elapsed),
			logging.String("output_tail", outputTail(output)),
			logging.String(logging.FieldErrorHint, "check that the output path has an image or video extension"),
			logging.String(logging.FieldImpact, "step marked failed"),
		)
		return jobs.StepFailed
	}

	logger.Debug("worker succeeded",
		logging.String(logging.FieldEventType, "worker_complete"),
		logging.String("media_kind", kind),
		logging.Duration("duration", elapsed),
	)
	return jobs.StepCompleted
}

// succeeded reports whether output carries the marker for kind. An unknown
// kind, or one without a configured marker, accepts any marker.
func (r *Runner) succeeded(output, kind string) bool {
	markers := r.cfg.Worker.SuccessMarkers
	if marker, ok := markers[kind]; ok && kind != "" {
		return marker != "" && strings.Contains(output, marker)
	}
	for _, marker := range markers {
		if marker != "" && strings.Contains(output, marker) {
			return true
		}
	}
	return false
}

const outputTailLimit = 512

func outputTail(output []byte) string {
	text := strings.TrimSpace(string(output))
	if len(text) <= outputTailLimit {
		return text
	}
	return "..." + text[len(text)-outputTailLimit:]
}

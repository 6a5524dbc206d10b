package main

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"jobqueue/internal/jobs"
	"jobqueue/internal/runner"
	"jobqueue/internal/testsupport"
)

func TestRunAllAndRetry(t *testing.T) {
	env := setupCLITestEnv(t)
	env.mustRun(t, "job", "create", "good")
	env.mustRun(t, "step", "add", "good", "--", "-t", "in.mp4", "-o", "out.mp4")
	env.mustRun(t, "job", "create", "bad")
	env.mustRun(t, "step", "add", "bad", "--", "-o", "a.png")
	env.mustRun(t, "step", "add", "bad", "--", "--bogus")

	out := env.mustRun(t, "run")
	requireContains(t, out, "Completed 1")
	requireContains(t, out, "Failed 1")

	if _, bucket := env.readJob(t, "good"); bucket != jobs.BucketCompleted {
		t.Fatalf("good: expected completed, got %s", bucket)
	}
	job, bucket := env.readJob(t, "bad")
	if bucket != jobs.BucketFailed {
		t.Fatalf("bad: expected failed, got %s", bucket)
	}
	if diff := cmp.Diff([]jobs.StepStatus{jobs.StepCompleted, jobs.StepFailed}, []jobs.StepStatus{job.Steps[0].Status, job.Steps[1].Status}); diff != "" {
		t.Fatalf("statuses mismatch (-want +got):\n%s", diff)
	}

	if _, _, err := runCLI(t, env.configPath, "retry", "good"); err == nil {
		t.Fatal("expected retry of a completed job to fail")
	}

	env.mustRun(t, "step", "update", "bad", "--index", "1", "--", "-o", "b.png")
	requireContains(t, env.mustRun(t, "retry", "bad"), "Job bad: 2 of 2 steps completed")
	if _, bucket := env.readJob(t, "bad"); bucket != jobs.BucketCompleted {
		t.Fatalf("bad: expected completed after retry, got %s", bucket)
	}

	calls := testsupport.StubWorkerCalls(t, env.workerPath)
	if len(calls) != 4 {
		t.Fatalf("expected 4 worker calls, got %d: %v", len(calls), calls)
	}
}

func TestRunSingleJobWithPolicyOverride(t *testing.T) {
	env := setupCLITestEnv(t)
	env.mustRun(t, "job", "create", "solo")
	env.mustRun(t, "step", "add", "solo", "--", "--bogus")
	env.mustRun(t, "step", "add", "solo", "--", "-o", "b.png")

	requireContains(t, env.mustRun(t, "run", "solo", "--policy", "continue"), "Job solo: 1 of 2 steps completed")
	if _, _, err := runCLI(t, env.configPath, "run", "solo", "--policy", "sometimes"); err == nil {
		t.Fatal("expected unknown policy to fail")
	}
}

func TestRunRefusesWhileLocked(t *testing.T) {
	env := setupCLITestEnv(t)
	lock, err := runner.AcquireLock(env.cfg)
	if err != nil {
		t.Fatalf("AcquireLock: %v", err)
	}
	defer lock.Release()

	_, _, err = runCLI(t, env.configPath, "run")
	if err == nil {
		t.Fatal("expected run to refuse while the lock is held")
	}
	requireContains(t, err.Error(), "another run is in progress")
}

func TestRunRefusesWhenWorkerMissing(t *testing.T) {
	env := setupCLITestEnv(t)
	env.cfg.Worker.Command = []string{"clearly-not-present-worker"}
	writeTestConfig(t, env.configPath, env.cfg)

	_, _, err := runCLI(t, env.configPath, "run")
	if err == nil {
		t.Fatal("expected preflight failure")
	}
	requireContains(t, err.Error(), "preflight failed")
}

func TestDoctor(t *testing.T) {
	env := setupCLITestEnv(t)
	out := env.mustRun(t, "doctor")
	requireContains(t, out, "Jobs directory:")
	requireContains(t, out, "[OK]")

	env.cfg.Worker.Command = []string{"clearly-not-present-worker"}
	writeTestConfig(t, env.configPath, env.cfg)
	out, _, err := runCLI(t, env.configPath, "doctor")
	if err == nil {
		t.Fatal("expected doctor to report failure")
	}
	requireContains(t, out, "[ERROR]")
}

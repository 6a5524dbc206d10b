package main

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"jobqueue/internal/jobs"
)

func stepArgs(job *jobs.Job) [][]string {
	out := make([][]string, 0, len(job.Steps))
	for _, step := range job.Steps {
		out = append(out, step.Args)
	}
	return out
}

func TestStepEditing(t *testing.T) {
	env := setupCLITestEnv(t)
	env.mustRun(t, "job", "create", "edit")

	requireContains(t, env.mustRun(t, "step", "add", "edit", "--", "-o", "a.png"), "Added step 0 to job edit")
	env.mustRun(t, "step", "add", "edit", "--", "-o", "c.png")
	env.mustRun(t, "step", "insert", "edit", "--index", "-1", "--", "-o", "b.png")

	job, _ := env.readJob(t, "edit")
	want := [][]string{{"-o", "a.png"}, {"-o", "b.png"}, {"-o", "c.png"}}
	if diff := cmp.Diff(want, stepArgs(job)); diff != "" {
		t.Fatalf("args mismatch (-want +got):\n%s", diff)
	}

	env.mustRun(t, "step", "remove", "edit", "--index", "0")
	env.mustRun(t, "step", "update", "edit", "--index", "-1", "--", "-o", "d.mp4")
	env.mustRun(t, "step", "set-action", "edit", "mix", "--index", "0")
	env.mustRun(t, "step", "set-status", "edit", "completed", "--index", "0")

	job, _ = env.readJob(t, "edit")
	wantSteps := []jobs.Step{
		{Action: "mix", Args: []string{"-o", "b.png"}, Status: jobs.StepCompleted},
		{Action: jobs.DefaultAction, Args: []string{"-o", "d.mp4"}, Status: jobs.StepQueued},
	}
	if diff := cmp.Diff(wantSteps, job.Steps); diff != "" {
		t.Fatalf("steps mismatch (-want +got):\n%s", diff)
	}

	if got := env.mustRun(t, "step", "status", "edit", "--index", "-1"); got != "queued\n" {
		t.Fatalf("step status = %q, want queued", got)
	}
	if _, _, err := runCLI(t, env.configPath, "step", "status", "edit", "--index", "7"); err == nil {
		t.Fatal("expected missing step to fail")
	}

	if _, _, err := runCLI(t, env.configPath, "step", "set-status", "edit", "queued", "--index", "0"); err == nil {
		t.Fatal("expected leaving completed to be rejected")
	}
	if _, _, err := runCLI(t, env.configPath, "step", "remove", "edit", "--index", "12345"); err == nil {
		t.Fatal("expected out-of-range index to fail")
	}
	if _, _, err := runCLI(t, env.configPath, "step", "set-status", "edit", "paused", "--index", "0"); err == nil {
		t.Fatal("expected unknown status to fail")
	}
	if _, _, err := runCLI(t, env.configPath, "step", "remove", "edit"); err == nil {
		t.Fatal("expected missing --index to fail")
	}
}

func TestStepAddFilter(t *testing.T) {
	env := setupCLITestEnv(t)
	env.mustRun(t, "job", "create", "filtered")

	env.mustRun(t, "step", "add", "filtered", "--filter", "--",
		"python", "run.py", "--headless", "-s", "face.jpg", "--ui-layouts", "default", "-o", "out.png", "--keep-temp")

	job, _ := env.readJob(t, "filtered")
	want := [][]string{{"-s", "face.jpg", "-o", "out.png", "--keep-temp"}}
	if diff := cmp.Diff(want, stepArgs(job)); diff != "" {
		t.Fatalf("args mismatch (-want +got):\n%s", diff)
	}
}

func TestStepAddToMissingJob(t *testing.T) {
	env := setupCLITestEnv(t)
	if _, _, err := runCLI(t, env.configPath, "step", "add", "ghost", "--", "-o", "a.png"); err == nil {
		t.Fatal("expected error for missing job")
	}
}

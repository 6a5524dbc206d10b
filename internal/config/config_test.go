package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pelletier/go-toml/v2"

	"jobqueue/internal/config"
)

func TestLoadDefaultConfigExpandsPaths(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Setenv("JOBQUEUE_JOBS_DIR", "")
	t.Chdir(t.TempDir())

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantJobs := filepath.Join(tempHome, ".local", "share", "jobqueue", "jobs")
	if cfg.Paths.JobsDir != wantJobs {
		t.Fatalf("unexpected jobs dir: got %q want %q", cfg.Paths.JobsDir, wantJobs)
	}
	if cfg.Store.Backend != "filesystem" || cfg.Store.Format != "json" {
		t.Fatalf("unexpected store defaults: %+v", cfg.Store)
	}
	if got := strings.Join(cfg.Worker.Command, " "); got != "python run.py --headless" {
		t.Fatalf("unexpected worker command: %q", got)
	}
	if cfg.Worker.SuccessMarkers["image"] != "image succeed" || cfg.Worker.SuccessMarkers["video"] != "video succeed" {
		t.Fatalf("unexpected success markers: %v", cfg.Worker.SuccessMarkers)
	}
	if cfg.Runner.Policy != config.PolicyFailFast {
		t.Fatalf("expected fail_fast policy, got %q", cfg.Runner.Policy)
	}
	if cfg.StepTimeout() != time.Hour {
		t.Fatalf("unexpected step timeout: %s", cfg.StepTimeout())
	}
	if cfg.LockPath() != filepath.Join(wantJobs, ".jobqueue.lock") {
		t.Fatalf("unexpected lock path: %q", cfg.LockPath())
	}
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}
	for _, dir := range []string{cfg.Paths.JobsDir, cfg.Paths.LogDir} {
		info, err := os.Stat(dir)
		if err != nil {
			t.Fatalf("expected directory %q to exist: %v", dir, err)
		}
		if !info.IsDir() {
			t.Fatalf("expected %q to be directory", dir)
		}
	}
}

func TestLoadUsesJobsDirEnvFallback(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	jobsDir := filepath.Join(t.TempDir(), "env-jobs")
	t.Setenv("JOBQUEUE_JOBS_DIR", jobsDir)

	cfg, _, _, err := config.Load(filepath.Join(t.TempDir(), "missing.toml"))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Paths.JobsDir != jobsDir {
		t.Fatalf("expected jobs dir from env, got %q", cfg.Paths.JobsDir)
	}
}

func TestLoadCustomPath(t *testing.T) {
	t.Setenv("JOBQUEUE_JOBS_DIR", "/ignored/by/file")
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "jobqueue.toml")

	type payload struct {
		Paths struct {
			JobsDir string `toml:"jobs_dir"`
		} `toml:"paths"`
		Store struct {
			Backend string `toml:"backend"`
			Format  string `toml:"format"`
		} `toml:"store"`
		Worker struct {
			Command        []string `toml:"command"`
			TimeoutSeconds int      `toml:"timeout_seconds"`
		} `toml:"worker"`
		Runner struct {
			Policy string `toml:"policy"`
		} `toml:"runner"`
	}
	custom := payload{}
	custom.Paths.JobsDir = filepath.Join(tempDir, "jobs")
	custom.Store.Backend = "SQLite"
	custom.Store.Format = "yml"
	custom.Worker.Command = []string{"/usr/bin/worker", " "}
	custom.Worker.TimeoutSeconds = 30
	custom.Runner.Policy = "Continue"
	data, err := toml.Marshal(custom)
	if err != nil {
		t.Fatalf("marshal custom config: %v", err)
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		t.Fatalf("write custom config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists {
		t.Fatal("expected exists to be true")
	}
	if resolved != configPath {
		t.Fatalf("unexpected resolved path: got %q want %q", resolved, configPath)
	}
	if cfg.Paths.JobsDir != custom.Paths.JobsDir {
		t.Fatalf("expected jobs dir from file, got %q", cfg.Paths.JobsDir)
	}
	if cfg.Store.Backend != "sqlite" {
		t.Fatalf("expected backend to be normalized, got %q", cfg.Store.Backend)
	}
	if cfg.Store.Format != "yaml" {
		t.Fatalf("expected yml to normalize to yaml, got %q", cfg.Store.Format)
	}
	if len(cfg.Worker.Command) != 1 || cfg.WorkerBinary() != "/usr/bin/worker" {
		t.Fatalf("unexpected worker command: %q", cfg.Worker.Command)
	}
	if cfg.StepTimeout() != 30*time.Second {
		t.Fatalf("expected 30s timeout, got %s", cfg.StepTimeout())
	}
	if cfg.Runner.Policy != config.PolicyContinue {
		t.Fatalf("expected continue policy, got %q", cfg.Runner.Policy)
	}
}

func TestLoadRejectsUnknownBackend(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "jobqueue.toml")
	contents := "[paths]\njobs_dir = \"" + t.TempDir() + "\"\n[store]\nbackend = \"postgres\"\n"
	if err := os.WriteFile(configPath, []byte(contents), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	_, _, _, err := config.Load(configPath)
	if err == nil || !strings.Contains(err.Error(), "store.backend") {
		t.Fatalf("expected store.backend error, got %v", err)
	}
}

func TestCreateSample(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sample.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample failed: %v", err)
	}

	contents, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}

	cfg := config.Default()
	if err := toml.Unmarshal(contents, &cfg); err != nil {
		t.Fatalf("unmarshal sample: %v", err)
	}
	if !strings.Contains(cfg.Paths.JobsDir, "jobqueue") {
		t.Fatalf("expected jobs dir to contain jobqueue, got %q", cfg.Paths.JobsDir)
	}
	if cfg.Runner.Policy != config.PolicyFailFast {
		t.Fatalf("unexpected sample policy %q", cfg.Runner.Policy)
	}
	if len(cfg.Args.ValueFlags) == 0 || len(cfg.Args.OutputFlags) == 0 {
		t.Fatalf("sample config missing args flags: %+v", cfg.Args)
	}
}

func TestValidateDetectsInvalidValues(t *testing.T) {
	valid := func() config.Config {
		cfg := config.Default()
		cfg.Paths.JobsDir = "/tmp/jobs"
		return cfg
	}

	tests := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{"missing jobs dir", func(c *config.Config) { c.Paths.JobsDir = "" }},
		{"unknown format", func(c *config.Config) { c.Store.Format = "xml" }},
		{"empty command", func(c *config.Config) { c.Worker.Command = nil }},
		{"negative timeout", func(c *config.Config) { c.Worker.TimeoutSeconds = -1 }},
		{"no markers", func(c *config.Config) { c.Worker.SuccessMarkers = nil }},
		{"unknown policy", func(c *config.Config) { c.Runner.Policy = "parallel" }},
		{"flag listed twice", func(c *config.Config) { c.Args.SwitchFlags = append(c.Args.SwitchFlags, "-o") }},
		{"output flag not a value flag", func(c *config.Config) { c.Args.OutputFlags = []string{"--keep-temp"} }},
	}

	base := valid()
	if err := base.Validate(); err != nil {
		t.Fatalf("expected defaults with jobs dir to validate, got %v", err)
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

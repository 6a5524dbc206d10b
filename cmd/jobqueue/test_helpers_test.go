package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"jobqueue/internal/config"
	"jobqueue/internal/jobs"
	"jobqueue/internal/testsupport"
)

type cliTestEnv struct {
	cfg        *config.Config
	configPath string
	workerPath string
}

func setupCLITestEnv(t *testing.T, opts ...testsupport.ConfigOption) *cliTestEnv {
	t.Helper()

	cfg := testsupport.NewConfig(t, append([]testsupport.ConfigOption{testsupport.WithStubWorker()}, opts...)...)
	cfg.Logging.Level = "error"
	base := testsupport.BaseDir(cfg)
	t.Setenv("HOME", filepath.Join(base, "home"))

	configPath := filepath.Join(base, "config.toml")
	writeTestConfig(t, configPath, cfg)

	return &cliTestEnv{
		cfg:        cfg,
		configPath: configPath,
		workerPath: cfg.WorkerBinary(),
	}
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	data, err := toml.Marshal(cfg)
	if err != nil {
		t.Fatalf("encode config: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func runCLI(t *testing.T, configPath string, args ...string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func (e *cliTestEnv) mustRun(t *testing.T, args ...string) string {
	t.Helper()
	out, stderr, err := runCLI(t, e.configPath, args...)
	if err != nil {
		t.Fatalf("jobqueue %s: %v\nstdout: %s\nstderr: %s", strings.Join(args, " "), err, out, stderr)
	}
	return out
}

// openStore opens the environment's store for direct inspection. It must be
// closed before the next CLI call when the backend holds an exclusive lock.
func (e *cliTestEnv) openStore(t *testing.T) *jobs.Store {
	t.Helper()
	store, err := jobs.Open(e.cfg)
	if err != nil {
		t.Fatalf("jobs.Open: %v", err)
	}
	return store
}

func (e *cliTestEnv) readJob(t *testing.T, id string) (*jobs.Job, jobs.Bucket) {
	t.Helper()
	store := e.openStore(t)
	defer store.Close()
	job, err := store.Read(context.Background(), id)
	if err != nil {
		t.Fatalf("read %s: %v", id, err)
	}
	bucket, _, err := store.Locate(context.Background(), id)
	if err != nil {
		t.Fatalf("locate %s: %v", id, err)
	}
	return job, bucket
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}

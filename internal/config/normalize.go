package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeStore()
	if err := c.normalizeWorker(); err != nil {
		return err
	}
	c.normalizeRunner()
	c.normalizeArgs()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	if strings.TrimSpace(c.Paths.JobsDir) == "" {
		if value, ok := os.LookupEnv(jobsDirEnv); ok && strings.TrimSpace(value) != "" {
			c.Paths.JobsDir = strings.TrimSpace(value)
		} else {
			c.Paths.JobsDir = defaultJobsDir
		}
	}
	var err error
	if c.Paths.JobsDir, err = expandPath(c.Paths.JobsDir); err != nil {
		return fmt.Errorf("paths.jobs_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeStore() {
	c.Store.Backend = strings.ToLower(strings.TrimSpace(c.Store.Backend))
	if c.Store.Backend == "" {
		c.Store.Backend = defaultStoreBackend
	}
	c.Store.Format = strings.ToLower(strings.TrimSpace(c.Store.Format))
	switch c.Store.Format {
	case "":
		c.Store.Format = defaultStoreFormat
	case "yml":
		c.Store.Format = "yaml"
	}
}

func (c *Config) normalizeWorker() error {
	command := make([]string, 0, len(c.Worker.Command))
	for _, part := range c.Worker.Command {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			command = append(command, trimmed)
		}
	}
	if len(command) == 0 {
		command = defaultWorkerCommand()
	}
	c.Worker.Command = command

	if strings.TrimSpace(c.Worker.WorkingDir) != "" {
		dir, err := expandPath(strings.TrimSpace(c.Worker.WorkingDir))
		if err != nil {
			return fmt.Errorf("worker.working_dir: %w", err)
		}
		c.Worker.WorkingDir = dir
	}
	if c.Worker.TimeoutSeconds < 0 {
		c.Worker.TimeoutSeconds = 0
	}

	markers := make(map[string]string, len(c.Worker.SuccessMarkers))
	for kind, marker := range c.Worker.SuccessMarkers {
		kind = strings.ToLower(strings.TrimSpace(kind))
		marker = strings.TrimSpace(marker)
		if kind == "" || marker == "" {
			continue
		}
		markers[kind] = marker
	}
	if len(markers) == 0 {
		markers = defaultSuccessMarkers()
	}
	c.Worker.SuccessMarkers = markers
	return nil
}

func (c *Config) normalizeRunner() {
	c.Runner.Policy = strings.ToLower(strings.TrimSpace(c.Runner.Policy))
	c.Runner.Policy = strings.ReplaceAll(c.Runner.Policy, "-", "_")
	if c.Runner.Policy == "" {
		c.Runner.Policy = defaultRunnerPolicy
	}
}

func (c *Config) normalizeArgs() {
	c.Args.ValueFlags = normalizeFlags(c.Args.ValueFlags)
	c.Args.SwitchFlags = normalizeFlags(c.Args.SwitchFlags)
	c.Args.OutputFlags = normalizeFlags(c.Args.OutputFlags)
}

func normalizeFlags(flags []string) []string {
	out := make([]string, 0, len(flags))
	seen := make(map[string]struct{}, len(flags))
	for _, flag := range flags {
		flag = strings.TrimSpace(flag)
		if flag == "" {
			continue
		}
		if _, exists := seen[flag]; exists {
			continue
		}
		seen[flag] = struct{}{}
		out = append(out, flag)
	}
	return out
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}

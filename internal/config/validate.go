package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateStore(); err != nil {
		return err
	}
	if err := c.validateWorker(); err != nil {
		return err
	}
	if err := c.validateRunner(); err != nil {
		return err
	}
	if err := c.validateArgs(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.JobsDir) == "" {
		return fmt.Errorf("paths.jobs_dir must be set (or set %s)", jobsDirEnv)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		return errors.New("paths.log_dir must be set")
	}
	return nil
}

func (c *Config) validateStore() error {
	if !slices.Contains(validBackends, c.Store.Backend) {
		return fmt.Errorf("store.backend must be one of %s, got %q", strings.Join(validBackends, ", "), c.Store.Backend)
	}
	if !slices.Contains(validFormats, c.Store.Format) {
		return fmt.Errorf("store.format must be one of %s, got %q", strings.Join(validFormats, ", "), c.Store.Format)
	}
	return nil
}

func (c *Config) validateWorker() error {
	if len(c.Worker.Command) == 0 {
		return errors.New("worker.command must include an executable")
	}
	if c.Worker.TimeoutSeconds < 0 {
		return errors.New("worker.timeout_seconds must be >= 0")
	}
	if len(c.Worker.SuccessMarkers) == 0 {
		return errors.New("worker.success_markers must define at least one marker")
	}
	return nil
}

func (c *Config) validateRunner() error {
	switch c.Runner.Policy {
	case PolicyFailFast, PolicyContinue:
		return nil
	default:
		return fmt.Errorf("runner.policy must be %q or %q, got %q", PolicyFailFast, PolicyContinue, c.Runner.Policy)
	}
}

func (c *Config) validateArgs() error {
	for _, flag := range c.Args.ValueFlags {
		if slices.Contains(c.Args.SwitchFlags, flag) {
			return fmt.Errorf("args: flag %q is listed as both a value flag and a switch", flag)
		}
	}
	for _, flag := range c.Args.OutputFlags {
		if !slices.Contains(c.Args.ValueFlags, flag) {
			return fmt.Errorf("args.output_flags: %q must also be listed in args.value_flags", flag)
		}
	}
	return nil
}

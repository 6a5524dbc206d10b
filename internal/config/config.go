package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	JobsDir string `toml:"jobs_dir"`
	LogDir  string `toml:"log_dir"`
}

// Store selects the job document backend and its on-disk format.
type Store struct {
	Backend string `toml:"backend"`
	Format  string `toml:"format"`
}

// Worker describes the external process invoked for every step.
type Worker struct {
	// Command is the argv prefix; step args are appended after it.
	Command        []string `toml:"command"`
	WorkingDir     string   `toml:"working_dir"`
	TimeoutSeconds int      `toml:"timeout_seconds"`
	// SuccessMarkers maps a media kind ("image", "video") to the phrase the
	// worker prints on success.
	SuccessMarkers map[string]string `toml:"success_markers"`
}

// Runner controls how steps inside a job are sequenced.
type Runner struct {
	Policy string `toml:"policy"`
}

// Args lists the worker flags recognized when filtering a raw command line.
type Args struct {
	ValueFlags  []string `toml:"value_flags"`
	SwitchFlags []string `toml:"switch_flags"`
	// OutputFlags name the value flags whose value is the output path used to
	// pick the expected media kind.
	OutputFlags []string `toml:"output_flags"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for jobqueue.
//
// Configuration sections by subsystem:
//   - Paths: jobs root and log directory
//   - Store: backend (filesystem, sqlite, badger) and document format
//   - Worker: external command, timeout and success markers
//   - Runner: step sequencing policy
//   - Args: recognized worker flags for argument filtering
//   - Logging: log format and level
type Config struct {
	Paths   Paths   `toml:"paths"`
	Store   Store   `toml:"store"`
	Worker  Worker  `toml:"worker"`
	Runner  Runner  `toml:"runner"`
	Args    Args    `toml:"args"`
	Logging Logging `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs(projectConfigName)
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the jobs root and log directory.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.JobsDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// WorkerBinary returns the executable at the head of worker.command.
func (c *Config) WorkerBinary() string {
	if len(c.Worker.Command) == 0 {
		return ""
	}
	return c.Worker.Command[0]
}

// StepTimeout returns the per-step deadline. Zero disables it.
func (c *Config) StepTimeout() time.Duration {
	if c.Worker.TimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(c.Worker.TimeoutSeconds) * time.Second
}

// LockPath returns the file used to serialize runner passes over the jobs root.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.JobsDir, lockFileName)
}

// LogFilePath returns the file that receives log output alongside stderr.
func (c *Config) LogFilePath() string {
	return filepath.Join(c.Paths.LogDir, logFileName)
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

package config

const (
	defaultConfigPath     = "~/.config/jobqueue/config.toml"
	projectConfigName     = "jobqueue.toml"
	defaultJobsDir        = "~/.local/share/jobqueue/jobs"
	defaultLogDir         = "~/.local/share/jobqueue/logs"
	defaultStoreBackend   = "filesystem"
	defaultStoreFormat    = "json"
	defaultWorkerTimeout  = 3600
	defaultRunnerPolicy   = PolicyFailFast
	defaultLogFormat      = "console"
	defaultLogLevel       = "info"
	lockFileName          = ".jobqueue.lock"
	logFileName           = "jobqueue.log"
	jobsDirEnv            = "JOBQUEUE_JOBS_DIR"
	mediaKindImage        = "image"
	mediaKindVideo        = "video"
	defaultImageMarker    = "image succeed"
	defaultVideoMarker    = "video succeed"
	defaultWorkerEntry    = "run.py"
	defaultWorkerHeadless = "--headless"
)

// Runner policies.
const (
	PolicyFailFast = "fail_fast"
	PolicyContinue = "continue"
)

// Store backends and formats accepted by validation.
var (
	validBackends = []string{"filesystem", "sqlite", "badger"}
	validFormats  = []string{"json", "yaml"}
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			LogDir: defaultLogDir,
		},
		Store: Store{
			Backend: defaultStoreBackend,
			Format:  defaultStoreFormat,
		},
		Worker: Worker{
			Command:        defaultWorkerCommand(),
			TimeoutSeconds: defaultWorkerTimeout,
			SuccessMarkers: defaultSuccessMarkers(),
		},
		Runner: Runner{
			Policy: defaultRunnerPolicy,
		},
		Args: Args{
			ValueFlags:  defaultValueFlags(),
			SwitchFlags: defaultSwitchFlags(),
			OutputFlags: []string{"-o", "--output-path"},
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}

func defaultWorkerCommand() []string {
	return []string{"python", defaultWorkerEntry, defaultWorkerHeadless}
}

func defaultSuccessMarkers() map[string]string {
	return map[string]string{
		mediaKindImage: defaultImageMarker,
		mediaKindVideo: defaultVideoMarker,
	}
}

func defaultValueFlags() []string {
	return []string{
		"-s", "--source-paths",
		"-t", "--target-path",
		"-o", "--output-path",
		"--processors",
		"--face-selector-mode",
		"--reference-face-position",
		"--output-image-quality",
		"--output-video-encoder",
		"--output-video-quality",
		"--trim-frame-start",
		"--trim-frame-end",
	}
}

func defaultSwitchFlags() []string {
	return []string{
		"--keep-temp",
		"--skip-audio",
	}
}

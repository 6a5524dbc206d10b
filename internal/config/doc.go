// Package config loads, normalizes, and validates jobqueue configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// JOBQUEUE_JOBS_DIR. The Config type centralizes every knob the runner and CLI
// need: where job documents live, which storage backend holds them, how the
// external worker is invoked and which flags count as worker arguments.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical policy names, and clear validation errors.
package config

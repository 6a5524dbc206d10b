// Package logging assembles structured slog loggers and formatting helpers used
// across jobqueue.
//
// It owns the configurable console/JSON handlers, centralizes level and output
// plumbing, and exposes context-aware helpers so runner code can tag log lines
// with job ids, step indices and run correlation ids. The package also
// provides a no-op logger for tests and wiring code that cannot fail.
package logging

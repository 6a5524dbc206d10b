// Package preflight provides readiness checks for the paths, store and
// worker jobqueue depends on.
//
// The CLI "jobqueue doctor" command runs RunAll and prints every result.
// The run and retry commands call RunAll before taking the runner lock and
// refuse to start a pass while any check fails.
package preflight

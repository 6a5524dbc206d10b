// Package main hosts the jobqueue CLI entrypoint and command graph.
//
// The Cobra command tree edits job documents (job and step commands), runs
// queued or failed jobs through the worker (run, retry), scaffolds
// configuration and reports readiness (doctor). Configuration resolution,
// store opening and logger setup live in commandContext so subcommands only
// deal with their own flags and output.
package main

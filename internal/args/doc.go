// Package args filters raw command lines down to the worker flags a job step
// should carry.
//
// A Registry separates flags that consume the next token from standalone
// switches. It is built once from configuration and passed explicitly to the
// CLI and runner; nothing here holds global state.
package args

// Package logs reads the runner log file for the CLI.
//
// Tail returns the last lines of the file together with the byte offset
// reached, and Follow keeps polling from that offset until the context ends.
// Memory stays bounded by the number of lines requested.
package logs

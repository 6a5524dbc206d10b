// Package jobs persists queue jobs and their steps and exposes helpers for
// moving them through their lifecycle buckets.
//
// A job lives in exactly one bucket at a time: unassigned, queued, failed or
// completed. The bucket is never stored inside the job document; it is derived
// from where the backend finds the document, searching queued, failed and
// completed in that order and falling back to unassigned. Moving a document
// between buckets is the only way a job's top-level state changes.
//
// Every mutation is a read-modify-write of the whole document followed by an
// Update that stamps date_updated. Step mutations report out-of-range indices
// and missing jobs through a false result rather than an error so callers can
// drive control flow from the boolean alone.
//
// The Store assumes a single writer per root. Concurrent runners or manual
// edits against the same root can race on move/read/write; the CLI guards run
// passes with a lock file instead of locking in-process.
package jobs

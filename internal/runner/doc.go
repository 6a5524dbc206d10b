// Package runner drives jobs through the external worker.
//
// A pass promotes unassigned jobs to queued, then runs each queued job's
// steps in order, one worker process per step. The worker's exit status and
// printed success phrase decide whether a step completed. When a job's steps
// are done the job moves to completed, or to failed if any step did not
// complete. Failed jobs stay put until an operator repairs a step and retries.
package runner

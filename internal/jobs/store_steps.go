package jobs

import (
	"context"
	"fmt"
)

// AddStep appends a queued step carrying args.
func (s *Store) AddStep(ctx context.Context, id string, args []string) (bool, error) {
	return s.mutate(ctx, id, func(job *Job) (bool, error) {
		job.Steps = append(job.Steps, NewStep(args))
		return true, nil
	})
}

// InsertStep places a queued step before index. Negative indices count from
// the end and out-of-range values are clamped, so insertion always succeeds
// for an existing job.
func (s *Store) InsertStep(ctx context.Context, id string, index int, args []string) (bool, error) {
	return s.mutate(ctx, id, func(job *Job) (bool, error) {
		pos := insertionIndex(index, len(job.Steps))
		job.Steps = append(job.Steps, Step{})
		copy(job.Steps[pos+1:], job.Steps[pos:])
		job.Steps[pos] = NewStep(args)
		return true, nil
	})
}

// RemoveStep deletes the step at index.
func (s *Store) RemoveStep(ctx context.Context, id string, index int) (bool, error) {
	return s.mutate(ctx, id, func(job *Job) (bool, error) {
		pos, ok := resolveIndex(index, len(job.Steps))
		if !ok {
			return false, nil
		}
		job.Steps = append(job.Steps[:pos], job.Steps[pos+1:]...)
		return true, nil
	})
}

// UpdateStep replaces the step at index with a fresh queued step carrying args.
func (s *Store) UpdateStep(ctx context.Context, id string, index int, args []string) (bool, error) {
	return s.mutate(ctx, id, func(job *Job) (bool, error) {
		pos, ok := resolveIndex(index, len(job.Steps))
		if !ok {
			return false, nil
		}
		job.Steps[pos] = NewStep(args)
		return true, nil
	})
}

// SetStepStatus changes the status of the step at index. Leaving completed is
// rejected with ErrInvalidTransition.
func (s *Store) SetStepStatus(ctx context.Context, id string, index int, status StepStatus) (bool, error) {
	if _, ok := ParseStepStatus(string(status)); !ok {
		return false, fmt.Errorf("set step status: unknown status %q", status)
	}
	return s.mutate(ctx, id, func(job *Job) (bool, error) {
		pos, ok := resolveIndex(index, len(job.Steps))
		if !ok {
			return false, nil
		}
		current := job.Steps[pos].Status
		if !CanTransition(current, status) {
			return false, fmt.Errorf("%w: step %d of %s is %s", ErrInvalidTransition, pos, id, current)
		}
		job.Steps[pos].Status = status
		return true, nil
	})
}

// SetStepAction retags the step at index.
func (s *Store) SetStepAction(ctx context.Context, id string, index int, action Action) (bool, error) {
	return s.mutate(ctx, id, func(job *Job) (bool, error) {
		pos, ok := resolveIndex(index, len(job.Steps))
		if !ok {
			return false, nil
		}
		job.Steps[pos].Action = action
		return true, nil
	})
}

// GetStepStatus returns the status of the step at index.
func (s *Store) GetStepStatus(ctx context.Context, id string, index int) (StepStatus, bool, error) {
	job, err := s.Read(ctx, id)
	if err != nil || job == nil {
		return "", false, err
	}
	pos, ok := resolveIndex(index, len(job.Steps))
	if !ok {
		return "", false, nil
	}
	return job.Steps[pos].Status, true, nil
}

// mutate runs a read-modify-write cycle. The document is only written when fn
// reports a change.
func (s *Store) mutate(ctx context.Context, id string, fn func(job *Job) (bool, error)) (bool, error) {
	job, err := s.Read(ctx, id)
	if err != nil {
		return false, err
	}
	if job == nil {
		return false, nil
	}
	changed, err := fn(job)
	if err != nil || !changed {
		return false, err
	}
	if err := s.Update(ctx, id, job); err != nil {
		return false, err
	}
	return true, nil
}

// resolveIndex maps an index in [-length, length) onto a position.
func resolveIndex(index, length int) (int, bool) {
	if index < 0 {
		index += length
	}
	if index < 0 || index >= length {
		return 0, false
	}
	return index, true
}

// insertionIndex maps an insert position onto [0, length].
func insertionIndex(index, length int) int {
	if index < 0 {
		index += length
	}
	return max(0, min(index, length))
}

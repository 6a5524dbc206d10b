package jobs

import "errors"

var (
	// ErrJobExists is returned by Create when the id is already present in any bucket.
	ErrJobExists = errors.New("job already exists")
	// ErrMalformedDocument indicates a stored document could not be decoded.
	ErrMalformedDocument = errors.New("malformed job document")
	// ErrRelocation indicates a move or delete could not complete. The job is
	// left wherever the backend left it; nothing is rolled back.
	ErrRelocation = errors.New("job relocation failed")
	// ErrInvalidTransition is returned when a completed step would be moved to
	// another status through SetStepStatus.
	ErrInvalidTransition = errors.New("invalid step status transition")
	// ErrInvalidJobID rejects ids that cannot be used as storage keys.
	ErrInvalidJobID = errors.New("invalid job id")

	// errDocumentNotFound is the backend-level absence signal. The Store turns
	// it into nil or false results.
	errDocumentNotFound = errors.New("job document not found")
)

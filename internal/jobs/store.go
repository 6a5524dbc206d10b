package jobs

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"jobqueue/internal/config"
)

// Store manages job documents on top of a Backend.
type Store struct {
	root    string
	backend Backend
	codec   Codec
	now     func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the time source used for date_created and date_updated.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// New wraps an already constructed backend.
func New(root string, backend Backend, codec Codec, opts ...Option) *Store {
	if codec == nil {
		codec = JSONCodec{}
	}
	store := &Store{
		root:    root,
		backend: backend,
		codec:   codec,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(store)
	}
	return store
}

// Open builds the configured backend under the jobs directory and initializes it.
func Open(cfg *config.Config, opts ...Option) (*Store, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	codec, err := CodecFor(cfg.Store.Format)
	if err != nil {
		return nil, err
	}
	backend, err := OpenBackend(cfg.Store.Backend, cfg.Paths.JobsDir, codec)
	if err != nil {
		return nil, err
	}
	store := New(cfg.Paths.JobsDir, backend, codec, opts...)
	ok, err := store.Init(context.Background())
	if err != nil {
		_ = backend.Close()
		return nil, err
	}
	if !ok {
		_ = backend.Close()
		return nil, fmt.Errorf("jobs directory %q is not usable", cfg.Paths.JobsDir)
	}
	return store, nil
}

// Close releases the backend.
func (s *Store) Close() error {
	if s == nil || s.backend == nil {
		return nil
	}
	return s.backend.Close()
}

// Root returns the jobs root directory.
func (s *Store) Root() string {
	return s.root
}

// Init ensures the root and all buckets exist. It is idempotent.
func (s *Store) Init(ctx context.Context) (bool, error) {
	ok, err := s.backend.Init(ctx)
	if err != nil {
		return false, fmt.Errorf("init jobs store: %w", err)
	}
	return ok, nil
}

// Locate resolves the bucket holding id, searching queued, failed and
// completed in that order. When none holds it the job belongs to unassigned;
// the boolean reports whether a document actually exists there.
func (s *Store) Locate(ctx context.Context, id string) (Bucket, bool, error) {
	if err := ValidateID(id); err != nil {
		return "", false, err
	}
	for _, bucket := range locateOrder {
		found, err := s.backend.Exists(ctx, bucket, id)
		if err != nil {
			return "", false, fmt.Errorf("locate job %s: %w", id, err)
		}
		if found {
			return bucket, true, nil
		}
	}
	found, err := s.backend.Exists(ctx, BucketUnassigned, id)
	if err != nil {
		return "", false, fmt.Errorf("locate job %s: %w", id, err)
	}
	return BucketUnassigned, found, nil
}

// Location describes where id currently lives.
func (s *Store) Location(ctx context.Context, id string) string {
	bucket, _, err := s.Locate(ctx, id)
	if err != nil {
		return id
	}
	return s.backend.Location(bucket, id)
}

// Create writes a fresh job document to the unassigned bucket. An id that is
// already present in any bucket is rejected with ErrJobExists.
func (s *Store) Create(ctx context.Context, id string) error {
	_, exists, err := s.Locate(ctx, id)
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("create job %s: %w", id, ErrJobExists)
	}
	job := NewJob(s.now().Truncate(time.Second))
	data, err := s.codec.Encode(job)
	if err != nil {
		return err
	}
	if err := s.backend.Save(ctx, BucketUnassigned, id, data); err != nil {
		return fmt.Errorf("create job %s: %w", id, err)
	}
	return nil
}

// Read loads the job document. It returns nil, nil when the job does not exist.
func (s *Store) Read(ctx context.Context, id string) (*Job, error) {
	bucket, exists, err := s.Locate(ctx, id)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, nil
	}
	data, err := s.backend.Load(ctx, bucket, id)
	if errors.Is(err, errDocumentNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read job %s: %w", id, err)
	}
	job, err := s.codec.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("read job %s: %w", id, err)
	}
	return job, nil
}

// Write stores job at its resolved location without touching date_updated.
func (s *Store) Write(ctx context.Context, id string, job *Job) error {
	if job == nil {
		return errors.New("job is nil")
	}
	bucket, _, err := s.Locate(ctx, id)
	if err != nil {
		return err
	}
	data, err := s.codec.Encode(job)
	if err != nil {
		return err
	}
	if err := s.backend.Save(ctx, bucket, id, data); err != nil {
		return fmt.Errorf("write job %s: %w", id, err)
	}
	return nil
}

// Update stamps date_updated and writes the document.
func (s *Store) Update(ctx context.Context, id string, job *Job) error {
	if job == nil {
		return errors.New("job is nil")
	}
	stamp := Timestamp{Time: s.now().Truncate(time.Second)}
	job.DateUpdated = &stamp
	return s.Write(ctx, id, job)
}

// Move relocates the job to target. It returns false when the job does not
// exist, and true only once the document is confirmed at the destination.
func (s *Store) Move(ctx context.Context, id string, target Bucket) (bool, error) {
	if _, ok := ParseBucket(string(target)); !ok {
		return false, fmt.Errorf("move job %s: unknown bucket %q", id, target)
	}
	source, exists, err := s.Locate(ctx, id)
	if err != nil {
		return false, err
	}
	if !exists {
		return false, nil
	}
	if source != target {
		if err := s.backend.Move(ctx, id, source, target); err != nil {
			if errors.Is(err, errDocumentNotFound) {
				return false, nil
			}
			return false, fmt.Errorf("%w: %s from %s to %s: %w", ErrRelocation, id, source, target, err)
		}
	}
	confirmed, err := s.backend.Exists(ctx, target, id)
	if err != nil {
		return false, fmt.Errorf("%w: confirm %s in %s: %w", ErrRelocation, id, target, err)
	}
	return confirmed, nil
}

// Delete removes the job from whichever bucket holds it. It returns false
// when there was nothing to delete.
func (s *Store) Delete(ctx context.Context, id string) (bool, error) {
	bucket, exists, err := s.Locate(ctx, id)
	if err != nil {
		return false, err
	}
	if !exists {
		return false, nil
	}
	if err := s.backend.Delete(ctx, bucket, id); err != nil {
		if errors.Is(err, errDocumentNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("%w: delete %s: %w", ErrRelocation, id, err)
	}
	return true, nil
}

// Enumerate lists the job ids held by bucket.
func (s *Store) Enumerate(ctx context.Context, bucket Bucket) ([]string, error) {
	if _, ok := ParseBucket(string(bucket)); !ok {
		return nil, fmt.Errorf("enumerate: unknown bucket %q", bucket)
	}
	ids, err := s.backend.List(ctx, bucket)
	if err != nil {
		return nil, fmt.Errorf("enumerate %s: %w", bucket, err)
	}
	return ids, nil
}

// EnumerateAll lists unassigned, queued, failed and completed ids in that order.
func (s *Store) EnumerateAll(ctx context.Context) ([]string, error) {
	var all []string
	for _, bucket := range allBuckets {
		ids, err := s.Enumerate(ctx, bucket)
		if err != nil {
			return nil, err
		}
		all = append(all, ids...)
	}
	return all, nil
}

// StatusOf reports which of queued, failed or completed holds id. The boolean
// is false for unassigned or missing jobs.
func (s *Store) StatusOf(ctx context.Context, id string) (Bucket, bool, error) {
	bucket, exists, err := s.Locate(ctx, id)
	if err != nil {
		return "", false, err
	}
	if !exists || bucket == BucketUnassigned {
		return "", false, nil
	}
	return bucket, true, nil
}

// StepCount returns the number of steps recorded for id, zero when the job is missing.
func (s *Store) StepCount(ctx context.Context, id string) (int, error) {
	job, err := s.Read(ctx, id)
	if err != nil {
		return 0, err
	}
	if job == nil {
		return 0, nil
	}
	return len(job.Steps), nil
}

// ValidateID rejects ids that cannot double as a file name.
func ValidateID(id string) error {
	trimmed := strings.TrimSpace(id)
	switch {
	case trimmed == "":
		return fmt.Errorf("%w: empty", ErrInvalidJobID)
	case trimmed != id:
		return fmt.Errorf("%w: %q has surrounding whitespace", ErrInvalidJobID, id)
	case strings.HasPrefix(id, "."):
		return fmt.Errorf("%w: %q starts with a dot", ErrInvalidJobID, id)
	case strings.ContainsAny(id, `/\`) || id != filepath.Base(id):
		return fmt.Errorf("%w: %q contains a path separator", ErrInvalidJobID, id)
	}
	return nil
}

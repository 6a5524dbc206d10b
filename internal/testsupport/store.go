package testsupport

import (
	"context"
	"testing"

	"jobqueue/internal/config"
	"jobqueue/internal/jobs"
)

// Backends lists every store backend so storage tests can run against each.
var Backends = []string{jobs.BackendFilesystem, jobs.BackendSQLite, jobs.BackendBadger}

// MustOpenStore opens a jobs.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config, opts ...jobs.Option) *jobs.Store {
	t.Helper()

	store, err := jobs.Open(cfg, opts...)
	if err != nil {
		t.Fatalf("jobs.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// MustCreateJob creates id and appends one step per args slice.
func MustCreateJob(t testing.TB, store *jobs.Store, id string, steps ...[]string) {
	t.Helper()

	ctx := context.Background()
	if err := store.Create(ctx, id); err != nil {
		t.Fatalf("store.Create(%s): %v", id, err)
	}
	for _, args := range steps {
		ok, err := store.AddStep(ctx, id, args)
		if err != nil || !ok {
			t.Fatalf("store.AddStep(%s): ok=%v err=%v", id, ok, err)
		}
	}
}

// MustRead reads id and fails the test when it is missing.
func MustRead(t testing.TB, store *jobs.Store, id string) *jobs.Job {
	t.Helper()

	job, err := store.Read(context.Background(), id)
	if err != nil {
		t.Fatalf("store.Read(%s): %v", id, err)
	}
	if job == nil {
		t.Fatalf("store.Read(%s): job missing", id)
	}
	return job
}

package jobs_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"jobqueue/internal/jobs"
	"jobqueue/internal/testsupport"
)

func forEachBackend(t *testing.T, fn func(t *testing.T, store *jobs.Store)) {
	t.Helper()
	for _, backend := range testsupport.Backends {
		t.Run(backend, func(t *testing.T) {
			cfg := testsupport.NewConfig(t, testsupport.WithBackend(backend))
			fn(t, testsupport.MustOpenStore(t, cfg))
		})
	}
}

func TestInitIsIdempotent(t *testing.T) {
	forEachBackend(t, func(t *testing.T, store *jobs.Store) {
		ctx := context.Background()
		for i := 0; i < 2; i++ {
			ok, err := store.Init(ctx)
			if err != nil {
				t.Fatalf("Init #%d: %v", i, err)
			}
			if !ok {
				t.Fatalf("Init #%d reported unusable store", i)
			}
		}
	})
}

func TestInitCreatesBucketDirectories(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	testsupport.MustOpenStore(t, cfg)

	for _, dir := range []string{"", "queued", "failed", "completed"} {
		info, err := os.Stat(filepath.Join(cfg.Paths.JobsDir, dir))
		if err != nil || !info.IsDir() {
			t.Fatalf("expected bucket directory %q: %v", dir, err)
		}
	}
}

func TestCreateThenReadRoundTrips(t *testing.T) {
	forEachBackend(t, func(t *testing.T, store *jobs.Store) {
		ctx := context.Background()
		if err := store.Create(ctx, "job-a"); err != nil {
			t.Fatalf("Create: %v", err)
		}

		job := testsupport.MustRead(t, store, "job-a")
		if job.Version != jobs.DocumentVersion {
			t.Fatalf("unexpected version %q", job.Version)
		}
		if job.DateCreated.IsZero() {
			t.Fatal("expected date_created to be set")
		}
		if job.DateUpdated != nil {
			t.Fatalf("expected date_updated to be null, got %v", job.DateUpdated)
		}
		if job.Steps == nil || len(job.Steps) != 0 {
			t.Fatalf("expected empty steps, got %#v", job.Steps)
		}

		bucket, exists, err := store.Locate(ctx, "job-a")
		if err != nil || !exists || bucket != jobs.BucketUnassigned {
			t.Fatalf("Locate = %s, %v, %v; want unassigned", bucket, exists, err)
		}
	})
}

func TestCreateRejectsExistingID(t *testing.T) {
	forEachBackend(t, func(t *testing.T, store *jobs.Store) {
		ctx := context.Background()
		testsupport.MustCreateJob(t, store, "dup", []string{"-o", "x.png"})

		if err := store.Create(ctx, "dup"); !errors.Is(err, jobs.ErrJobExists) {
			t.Fatalf("expected ErrJobExists, got %v", err)
		}
		if ok, err := store.Move(ctx, "dup", jobs.BucketFailed); err != nil || !ok {
			t.Fatalf("Move: ok=%v err=%v", ok, err)
		}
		if err := store.Create(ctx, "dup"); !errors.Is(err, jobs.ErrJobExists) {
			t.Fatalf("expected ErrJobExists for id in failed, got %v", err)
		}
		if count, _ := store.StepCount(ctx, "dup"); count != 1 {
			t.Fatalf("existing job was modified, step count %d", count)
		}
	})
}

func TestReadMissingReturnsNil(t *testing.T) {
	forEachBackend(t, func(t *testing.T, store *jobs.Store) {
		job, err := store.Read(context.Background(), "missing")
		if err != nil || job != nil {
			t.Fatalf("Read(missing) = %v, %v; want nil, nil", job, err)
		}
	})
}

func TestInvalidIDsAreRejected(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	for _, id := range []string{"", " padded", ".hidden", "a/b", `a\b`, ".."} {
		if err := store.Create(context.Background(), id); !errors.Is(err, jobs.ErrInvalidJobID) {
			t.Fatalf("Create(%q): expected ErrInvalidJobID, got %v", id, err)
		}
	}
}

func TestReadMalformedDocumentFails(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	path := filepath.Join(cfg.Paths.JobsDir, "queued", "broken.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("write broken doc: %v", err)
	}
	if _, err := store.Read(context.Background(), "broken"); !errors.Is(err, jobs.ErrMalformedDocument) {
		t.Fatalf("expected ErrMalformedDocument, got %v", err)
	}

	empty := filepath.Join(cfg.Paths.JobsDir, "empty.json")
	if err := os.WriteFile(empty, []byte("{}"), 0o644); err != nil {
		t.Fatalf("write empty doc: %v", err)
	}
	if _, err := store.Read(context.Background(), "empty"); !errors.Is(err, jobs.ErrMalformedDocument) {
		t.Fatalf("expected ErrMalformedDocument for empty object, got %v", err)
	}
}

func TestUpdateStampsDateUpdated(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg, jobs.WithClock(func() time.Time { return now }))
	ctx := context.Background()

	testsupport.MustCreateJob(t, store, "clock")
	now = now.Add(time.Minute)
	if ok, err := store.AddStep(ctx, "clock", []string{"-o", "a.png"}); err != nil || !ok {
		t.Fatalf("AddStep: ok=%v err=%v", ok, err)
	}

	job := testsupport.MustRead(t, store, "clock")
	if job.DateUpdated == nil || !job.DateUpdated.Equal(now) {
		t.Fatalf("expected date_updated %s, got %v", now, job.DateUpdated)
	}
	if !job.DateCreated.Equal(now.Add(-time.Minute)) {
		t.Fatalf("date_created changed: %s", job.DateCreated)
	}

	job.Steps[0].Status = jobs.StepFailed
	before := *job.DateUpdated
	if err := store.Write(ctx, "clock", job); err != nil {
		t.Fatalf("Write: %v", err)
	}
	again := testsupport.MustRead(t, store, "clock")
	if !again.DateUpdated.Equal(before.Time) || again.Steps[0].Status != jobs.StepFailed {
		t.Fatalf("Write should persist without restamping, got %+v", again)
	}
}

func TestMoveRelocatesBetweenBuckets(t *testing.T) {
	forEachBackend(t, func(t *testing.T, store *jobs.Store) {
		ctx := context.Background()
		testsupport.MustCreateJob(t, store, "mover", []string{"-o", "a.png"})

		for _, target := range []jobs.Bucket{jobs.BucketQueued, jobs.BucketFailed, jobs.BucketCompleted, jobs.BucketUnassigned} {
			ok, err := store.Move(ctx, "mover", target)
			if err != nil || !ok {
				t.Fatalf("Move to %s: ok=%v err=%v", target, ok, err)
			}
			for _, bucket := range jobs.AllBuckets() {
				ids, err := store.Enumerate(ctx, bucket)
				if err != nil {
					t.Fatalf("Enumerate %s: %v", bucket, err)
				}
				if got, want := slices.Contains(ids, "mover"), bucket == target; got != want {
					t.Fatalf("after move to %s: bucket %s contains=%v", target, bucket, got)
				}
			}
			if count, _ := store.StepCount(ctx, "mover"); count != 1 {
				t.Fatalf("document lost steps after move to %s", target)
			}
		}
	})
}

func TestMoveAndDeleteMissingJob(t *testing.T) {
	forEachBackend(t, func(t *testing.T, store *jobs.Store) {
		ctx := context.Background()
		if ok, err := store.Move(ctx, "ghost", jobs.BucketQueued); err != nil || ok {
			t.Fatalf("Move(ghost) = %v, %v; want false, nil", ok, err)
		}
		if ok, err := store.Delete(ctx, "ghost"); err != nil || ok {
			t.Fatalf("Delete(ghost) = %v, %v; want false, nil", ok, err)
		}
		if _, err := store.Move(ctx, "ghost", jobs.Bucket("archive")); err == nil {
			t.Fatal("expected error for unknown bucket")
		}
	})
}

func TestMoveToCurrentBucketIsConfirmed(t *testing.T) {
	forEachBackend(t, func(t *testing.T, store *jobs.Store) {
		testsupport.MustCreateJob(t, store, "stay")
		ok, err := store.Move(context.Background(), "stay", jobs.BucketUnassigned)
		if err != nil || !ok {
			t.Fatalf("Move to same bucket: ok=%v err=%v", ok, err)
		}
	})
}

func TestDeleteRemovesFromResolvedBucket(t *testing.T) {
	forEachBackend(t, func(t *testing.T, store *jobs.Store) {
		ctx := context.Background()
		testsupport.MustCreateJob(t, store, "doomed")
		if ok, err := store.Move(ctx, "doomed", jobs.BucketCompleted); err != nil || !ok {
			t.Fatalf("Move: ok=%v err=%v", ok, err)
		}
		if ok, err := store.Delete(ctx, "doomed"); err != nil || !ok {
			t.Fatalf("Delete: ok=%v err=%v", ok, err)
		}
		if job, err := store.Read(ctx, "doomed"); err != nil || job != nil {
			t.Fatalf("expected deleted job to be absent, got %v, %v", job, err)
		}
		if ok, _ := store.Delete(ctx, "doomed"); ok {
			t.Fatal("second Delete should report false")
		}
	})
}

func TestEnumerateAllOrdersBuckets(t *testing.T) {
	forEachBackend(t, func(t *testing.T, store *jobs.Store) {
		ctx := context.Background()
		placements := map[string]jobs.Bucket{
			"u2": jobs.BucketUnassigned,
			"u1": jobs.BucketUnassigned,
			"q1": jobs.BucketQueued,
			"f1": jobs.BucketFailed,
			"c1": jobs.BucketCompleted,
		}
		for id, bucket := range placements {
			testsupport.MustCreateJob(t, store, id)
			if ok, err := store.Move(ctx, id, bucket); err != nil || !ok {
				t.Fatalf("Move %s: ok=%v err=%v", id, ok, err)
			}
		}

		all, err := store.EnumerateAll(ctx)
		if err != nil {
			t.Fatalf("EnumerateAll: %v", err)
		}
		want := []string{"u1", "u2", "q1", "f1", "c1"}
		if !slices.Equal(all, want) {
			t.Fatalf("EnumerateAll = %v, want %v", all, want)
		}

		for id, bucket := range placements {
			status, ok, err := store.StatusOf(ctx, id)
			if err != nil {
				t.Fatalf("StatusOf %s: %v", id, err)
			}
			if bucket == jobs.BucketUnassigned {
				if ok {
					t.Fatalf("StatusOf(%s) should be absent for unassigned, got %s", id, status)
				}
				continue
			}
			if !ok || status != bucket {
				t.Fatalf("StatusOf(%s) = %s, %v; want %s", id, status, ok, bucket)
			}
		}
	})
}

func TestLocatePriorityPrefersQueued(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	testsupport.MustCreateJob(t, store, "twin")
	data, err := os.ReadFile(filepath.Join(cfg.Paths.JobsDir, "twin.json"))
	if err != nil {
		t.Fatalf("read doc: %v", err)
	}
	for _, dir := range []string{"completed", "queued"} {
		if err := os.WriteFile(filepath.Join(cfg.Paths.JobsDir, dir, "twin.json"), data, 0o644); err != nil {
			t.Fatalf("write copy: %v", err)
		}
	}

	bucket, exists, err := store.Locate(ctx, "twin")
	if err != nil || !exists || bucket != jobs.BucketQueued {
		t.Fatalf("Locate = %s, %v, %v; want queued", bucket, exists, err)
	}
}

func TestEnumerateIgnoresForeignFiles(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	testsupport.MustCreateJob(t, store, "real")

	for _, name := range []string{".real.json.123.tmp", "notes.txt", "README"} {
		if err := os.WriteFile(filepath.Join(cfg.Paths.JobsDir, name), []byte("x"), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	ids, err := store.Enumerate(context.Background(), jobs.BucketUnassigned)
	if err != nil {
		t.Fatalf("Enumerate: %v", err)
	}
	if !slices.Equal(ids, []string{"real"}) {
		t.Fatalf("Enumerate = %v, want [real]", ids)
	}
}

func TestYAMLFormatUsesYAMLFiles(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithFormat("yaml"))
	store := testsupport.MustOpenStore(t, cfg)
	testsupport.MustCreateJob(t, store, "yam", []string{"-t", "clip.mp4", "-o", "out.mp4"})

	if _, err := os.Stat(filepath.Join(cfg.Paths.JobsDir, "yam.yaml")); err != nil {
		t.Fatalf("expected yaml document: %v", err)
	}
	job := testsupport.MustRead(t, store, "yam")
	if len(job.Steps) != 1 || !slices.Equal(job.Steps[0].Args, []string{"-t", "clip.mp4", "-o", "out.mp4"}) {
		t.Fatalf("unexpected steps %+v", job.Steps)
	}
}

package service

import (
	"bytes"
	"context"
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"valdi_backend/internal/events"
	"valdi_backend/internal/retention/repository"
	"valdi_backend/platform/logger"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

type storedRecording struct {
	id          uuid.UUID
	storagePath string
	fileName    string
	transcript  string
	deadline    time.Time
}

type fakeStore struct {
	mu        sync.Mutex
	rows      []*storedRecording
	listErr   error
	redactErr error
}

func (f *fakeStore) add(path string, deadline time.Time) *storedRecording {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec := &storedRecording{id: uuid.New(), storagePath: path, fileName: path, transcript: "hej", deadline: deadline}
	f.rows = append(f.rows, rec)
	sort.Slice(f.rows, func(i, j int) bool { return bytes.Compare(f.rows[i].id[:], f.rows[j].id[:]) < 0 })
	return rec
}

func (f *fakeStore) ListExpired(_ context.Context, now time.Time, afterID *uuid.UUID, limit int) ([]repository.ExpiredRecording, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []repository.ExpiredRecording
	for _, rec := range f.rows {
		if rec.storagePath == "" || rec.deadline.After(now) {
			continue
		}
		if afterID != nil && bytes.Compare(rec.id[:], afterID[:]) <= 0 {
			continue
		}
		out = append(out, repository.ExpiredRecording{ID: rec.id, StoragePath: rec.storagePath})
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (f *fakeStore) Redact(_ context.Context, ids []uuid.UUID) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.redactErr != nil {
		return 0, f.redactErr
	}
	var n int64
	for _, id := range ids {
		for _, rec := range f.rows {
			if rec.id == id && rec.storagePath != "" {
				rec.storagePath = ""
				rec.fileName = repository.RedactedFileName
				rec.transcript = ""
				n++
			}
		}
	}
	return n, nil
}

type fakeObjects struct {
	mu         sync.Mutex
	objects    map[string]bool
	failKeys   map[string]bool
	batchErr   error
	batchCalls atomic.Int32
	singles    atomic.Int32
}

func newFakeObjects() *fakeObjects {
	return &fakeObjects{objects: map[string]bool{}, failKeys: map[string]bool{}}
}

func (f *fakeObjects) DeleteObjects(_ context.Context, _ string, keys []string) (map[string]error, error) {
	f.batchCalls.Add(1)
	if f.batchErr != nil {
		return nil, f.batchErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	failures := map[string]error{}
	for _, key := range keys {
		if f.failKeys[key] {
			failures[key] = errors.New("access denied")
			continue
		}
		delete(f.objects, key)
	}
	return failures, nil
}

func (f *fakeObjects) DeleteObject(_ context.Context, _, key string) error {
	f.singles.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failKeys[key] {
		return errors.New("access denied")
	}
	delete(f.objects, key)
	return nil
}

func (f *fakeObjects) exists(key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.objects[key]
}

var fixedNow = time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

func newTestService(store Store, objects ObjectStore, lock WindowLock, bus events.Bus, batch int) *Service {
	svc := New(store, objects, lock, bus, Config{Bucket: "call-recordings", BatchSize: batch, Window: 24 * time.Hour}, logger.New("development"))
	svc.now = func() time.Time { return fixedNow }
	return svc
}

func seed(store *fakeStore, objects *fakeObjects, expired, fresh int) []*storedRecording {
	var recs []*storedRecording
	for i := 0; i < expired; i++ {
		path := uuid.NewString() + ".mp3"
		objects.objects[path] = true
		recs = append(recs, store.add(path, fixedNow.Add(-time.Hour)))
	}
	for i := 0; i < fresh; i++ {
		path := uuid.NewString() + ".mp3"
		objects.objects[path] = true
		recs = append(recs, store.add(path, fixedNow.Add(time.Hour)))
	}
	return recs
}

func TestCleanupExpiredRedactsOnlyConfirmedDeletes(t *testing.T) {
	store := &fakeStore{}
	objects := newFakeObjects()
	recs := seed(store, objects, 5, 1)
	failing := recs[2]
	objects.failKeys[failing.storagePath] = true

	svc := newTestService(store, objects, nil, nil, 2)
	result, err := svc.CleanupExpired(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Deleted != 4 || result.Errors != 1 {
		t.Fatalf("expected 4 deleted and 1 error, got %+v", result)
	}
	if got := objects.batchCalls.Load(); got != 3 {
		t.Fatalf("expected 3 batches of at most 2, got %d", got)
	}

	for _, rec := range recs[:5] {
		if rec == failing {
			if rec.storagePath == "" || rec.fileName == repository.RedactedFileName {
				t.Fatalf("row with failed delete must stay untouched")
			}
			if !objects.exists(rec.storagePath) {
				t.Fatalf("failed object should still exist")
			}
			continue
		}
		if rec.storagePath != "" || rec.fileName != repository.RedactedFileName || rec.transcript != "" {
			t.Fatalf("expected redacted row, got %+v", rec)
		}
	}

	fresh := recs[5]
	if fresh.storagePath == "" || !objects.exists(fresh.storagePath) {
		t.Fatalf("recording before its deadline must be kept")
	}
}

func TestCleanupExpiredCountsRedactFailuresAsErrors(t *testing.T) {
	store := &fakeStore{redactErr: errors.New("db down")}
	objects := newFakeObjects()
	recs := seed(store, objects, 3, 0)

	svc := newTestService(store, objects, nil, nil, 10)
	result, err := svc.CleanupExpired(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Deleted != 0 || result.Errors != 3 {
		t.Fatalf("expected 0 deleted and 3 errors, got %+v", result)
	}
	for _, rec := range recs {
		if rec.storagePath == "" {
			t.Fatalf("row must not be redacted when the update failed")
		}
	}
}

func TestCleanupExpiredFallsBackToSingleDeletes(t *testing.T) {
	store := &fakeStore{}
	objects := newFakeObjects()
	objects.batchErr = errors.New("multi-delete not supported")
	recs := seed(store, objects, 3, 0)
	objects.failKeys[recs[0].storagePath] = true

	svc := newTestService(store, objects, nil, nil, 10)
	result, err := svc.CleanupExpired(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Deleted != 2 || result.Errors != 1 {
		t.Fatalf("expected 2 deleted and 1 error, got %+v", result)
	}
	if got := objects.singles.Load(); got != 3 {
		t.Fatalf("expected 3 single deletes, got %d", got)
	}
}

func TestCleanupExpiredReturnsListError(t *testing.T) {
	store := &fakeStore{listErr: errors.New("db down")}
	svc := newTestService(store, newFakeObjects(), nil, nil, 10)
	if _, err := svc.CleanupExpired(context.Background()); err == nil {
		t.Fatalf("expected list error")
	}
}

func newRedisLock(t *testing.T) (*RedisWindowLock, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisWindowLock(client), mr
}

func TestRunIsOncePerWindow(t *testing.T) {
	lock, mr := newRedisLock(t)
	store := &fakeStore{}
	objects := newFakeObjects()
	seed(store, objects, 2, 0)

	bus := events.NewInMemoryBus(logger.New("development"))
	var published atomic.Int32
	bus.Subscribe(events.RetentionCompleted{}.EventName(), events.HandlerFunc(func(context.Context, events.Event) error {
		published.Add(1)
		return nil
	}))

	svc := newTestService(store, objects, lock, bus, 10)

	first, err := svc.Run(context.Background())
	if err != nil {
		t.Fatalf("first run failed: %v", err)
	}
	if first.Skipped || first.Deleted != 2 {
		t.Fatalf("unexpected first run: %+v", first)
	}
	wantStart := time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)
	if !first.WindowStart.Equal(wantStart) {
		t.Fatalf("expected window start %v, got %v", wantStart, first.WindowStart)
	}

	late := seed(store, objects, 1, 0)[0]

	second, err := svc.Run(context.Background())
	if err != nil {
		t.Fatalf("second run failed: %v", err)
	}
	if !second.Skipped || second.Deleted != 2 {
		t.Fatalf("expected skipped run reporting the stored result, got %+v", second)
	}
	if late.storagePath == "" {
		t.Fatalf("skipped run must not touch recordings")
	}

	if ttl := mr.TTL(lockKey(wantStart)); ttl <= 0 || ttl > 24*time.Hour {
		t.Fatalf("expected window TTL to be kept, got %v", ttl)
	}

	bus.Wait()
	if got := published.Load(); got != 1 {
		t.Fatalf("expected one RetentionCompleted event, got %d", got)
	}

	svc.now = func() time.Time { return fixedNow.Add(24 * time.Hour) }
	next, err := svc.Run(context.Background())
	if err != nil {
		t.Fatalf("next window run failed: %v", err)
	}
	if next.Skipped || next.Deleted != 1 {
		t.Fatalf("expected next window to run, got %+v", next)
	}
}

func TestRunReleasesWindowOnFailure(t *testing.T) {
	lock, _ := newRedisLock(t)
	store := &fakeStore{listErr: errors.New("db down")}
	objects := newFakeObjects()
	svc := newTestService(store, objects, lock, nil, 10)

	if _, err := svc.Run(context.Background()); err == nil {
		t.Fatalf("expected failure")
	}

	store.listErr = nil
	seed(store, objects, 1, 0)
	run, err := svc.Run(context.Background())
	if err != nil {
		t.Fatalf("retry failed: %v", err)
	}
	if run.Skipped || run.Deleted != 1 {
		t.Fatalf("expected retry in the same window to run, got %+v", run)
	}
}

func TestRedisWindowLockInProgress(t *testing.T) {
	lock, _ := newRedisLock(t)
	ctx := context.Background()
	start := fixedNow.Truncate(24 * time.Hour)

	claimed, _, err := lock.Claim(ctx, start, time.Hour)
	if err != nil || !claimed {
		t.Fatalf("expected first claim to win, got %v %v", claimed, err)
	}
	claimed, prior, err := lock.Claim(ctx, start, time.Hour)
	if err != nil || claimed {
		t.Fatalf("expected second claim to lose, got %v %v", claimed, err)
	}
	if prior != nil {
		t.Fatalf("expected no stored result while the first run is in progress, got %+v", prior)
	}
}

func TestRunWithoutLockIsUnguarded(t *testing.T) {
	store := &fakeStore{}
	objects := newFakeObjects()
	seed(store, objects, 1, 0)
	svc := newTestService(store, objects, nil, nil, 10)

	for i := 0; i < 2; i++ {
		run, err := svc.Run(context.Background())
		if err != nil {
			t.Fatalf("run %d failed: %v", i, err)
		}
		if run.Skipped {
			t.Fatalf("run %d should not be skipped without a lock", i)
		}
	}
}

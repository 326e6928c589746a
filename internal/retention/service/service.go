// Package service deletes expired recording audio and redacts the rows that referenced it.
package service

import (
	"context"
	"sync"
	"time"

	"valdi_backend/internal/events"
	"valdi_backend/internal/retention/repository"
	"valdi_backend/platform/apperr"
	"valdi_backend/platform/logger"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

const (
	defaultBatchSize = 100
	defaultWindow    = 24 * time.Hour
	fallbackDeletes  = 4
)

// Store is the persistence surface the retention run needs.
type Store interface {
	ListExpired(ctx context.Context, now time.Time, afterID *uuid.UUID, limit int) ([]repository.ExpiredRecording, error)
	Redact(ctx context.Context, ids []uuid.UUID) (int64, error)
}

// ObjectStore removes recording objects.
type ObjectStore interface {
	DeleteObjects(ctx context.Context, bucket string, fileKeys []string) (map[string]error, error)
	DeleteObject(ctx context.Context, bucket, fileKey string) error
}

// Result counts the outcome of one retention run.
type Result struct {
	Deleted int `json:"deleted"`
	Errors  int `json:"errors"`
}

// RunResult is a guarded run. Skipped means another run already owns the window.
type RunResult struct {
	Result
	Skipped     bool      `json:"skipped"`
	WindowStart time.Time `json:"windowStart"`
}

// Config holds the tunables of the retention run.
type Config struct {
	Bucket    string
	BatchSize int
	Window    time.Duration
}

type Service struct {
	store    Store
	objects  ObjectStore
	lock     WindowLock
	eventBus events.Bus
	log      *logger.Logger
	cfg      Config
	now      func() time.Time
}

// New creates the retention service. lock may be nil, in which case runs are unguarded.
func New(store Store, objects ObjectStore, lock WindowLock, eventBus events.Bus, cfg Config, log *logger.Logger) *Service {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultBatchSize
	}
	if cfg.Window <= 0 {
		cfg.Window = defaultWindow
	}
	return &Service{
		store:    store,
		objects:  objects,
		lock:     lock,
		eventBus: eventBus,
		log:      log,
		cfg:      cfg,
		now:      time.Now,
	}
}

// Run executes CleanupExpired at most once per window. A second call inside the same
// window returns the stored result of the first with Skipped set.
func (s *Service) Run(ctx context.Context) (RunResult, error) {
	windowStart := s.now().UTC().Truncate(s.cfg.Window)
	run := RunResult{WindowStart: windowStart}

	if s.lock != nil {
		claimed, prior, err := s.lock.Claim(ctx, windowStart, s.cfg.Window)
		switch {
		case err != nil:
			s.log.Warn("retention window lock unavailable, running unguarded", "error", err)
		case !claimed:
			run.Skipped = true
			if prior != nil {
				run.Result = *prior
			}
			s.log.Info("retention run skipped, window already claimed", "windowStart", windowStart)
			return run, nil
		}
	}

	result, err := s.CleanupExpired(ctx)
	run.Result = result
	if err != nil {
		if s.lock != nil {
			if releaseErr := s.lock.Release(context.WithoutCancel(ctx), windowStart); releaseErr != nil {
				s.log.Warn("failed to release retention window", "error", releaseErr)
			}
		}
		return run, err
	}

	if s.lock != nil {
		if storeErr := s.lock.Complete(ctx, windowStart, result); storeErr != nil {
			s.log.Warn("failed to store retention result", "error", storeErr)
		}
	}

	if s.eventBus != nil {
		s.eventBus.Publish(ctx, events.RetentionCompleted{
			BaseEvent:   events.NewBaseEvent(),
			WindowStart: windowStart,
			Deleted:     result.Deleted,
			Errors:      result.Errors,
		})
	}
	return run, nil
}

// CleanupExpired deletes the audio of every recording past its deadline, batch by batch,
// and redacts only the rows whose objects were confirmed deleted. Per-object failures are
// counted in Errors and leave the row untouched for the next run.
func (s *Service) CleanupExpired(ctx context.Context) (Result, error) {
	var (
		result  Result
		afterID *uuid.UUID
	)
	now := s.now()

	for {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		batch, err := s.store.ListExpired(ctx, now, afterID, s.cfg.BatchSize)
		if err != nil {
			return result, err
		}
		if len(batch) == 0 {
			break
		}

		deleted, failed := s.processBatch(ctx, batch)
		result.Deleted += deleted
		result.Errors += failed

		lastID := batch[len(batch)-1].ID
		afterID = &lastID
		if len(batch) < s.cfg.BatchSize {
			break
		}
	}

	s.log.Info("retention cleanup finished", "deleted", result.Deleted, "errors", result.Errors)
	return result, nil
}

func (s *Service) processBatch(ctx context.Context, batch []repository.ExpiredRecording) (int, int) {
	keys := make([]string, 0, len(batch))
	for _, item := range batch {
		keys = append(keys, item.StoragePath)
	}

	failures := s.deleteObjects(ctx, keys)

	confirmed := make([]uuid.UUID, 0, len(batch))
	failed := 0
	for _, item := range batch {
		if err, ok := failures[item.StoragePath]; ok {
			failed++
			s.log.Warn("retention delete failed", "recordingId", item.ID, "error", apperr.Retention(item.StoragePath, err))
			continue
		}
		confirmed = append(confirmed, item.ID)
	}

	if len(confirmed) == 0 {
		return 0, failed
	}

	redacted, err := s.store.Redact(ctx, confirmed)
	if err != nil {
		s.log.Error("failed to redact deleted recordings", "count", len(confirmed), "error", err)
		return 0, failed + len(confirmed)
	}
	return int(redacted), failed
}

// deleteObjects uses the batch API and falls back to bounded single deletes when the
// batch call cannot be submitted.
func (s *Service) deleteObjects(ctx context.Context, keys []string) map[string]error {
	failures, err := s.objects.DeleteObjects(ctx, s.cfg.Bucket, keys)
	if err == nil {
		return failures
	}
	if ctx.Err() != nil {
		all := make(map[string]error, len(keys))
		for _, key := range keys {
			all[key] = err
		}
		return all
	}

	s.log.Warn("batch delete failed, falling back to single deletes", "count", len(keys), "error", err)

	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	failures = make(map[string]error)
	g.SetLimit(fallbackDeletes)
	for _, key := range keys {
		g.Go(func() error {
			if deleteErr := s.objects.DeleteObject(ctx, s.cfg.Bucket, key); deleteErr != nil {
				mu.Lock()
				failures[key] = deleteErr
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()
	return failures
}

package scheduler

import (
	"context"
	"time"

	retentionservice "valdi_backend/internal/retention/service"
	"valdi_backend/platform/logger"
)

const defaultRetentionInterval = 24 * time.Hour

// RetentionRunner runs one window-guarded retention pass.
type RetentionRunner interface {
	Run(ctx context.Context) (retentionservice.RunResult, error)
}

// RetentionTicker triggers the retention run on start and then once per interval.
// The window lock makes overlapping triggers from the cron endpoint harmless.
type RetentionTicker struct {
	runner   RetentionRunner
	log      *logger.Logger
	interval time.Duration
}

func NewRetentionTicker(runner RetentionRunner, log *logger.Logger, interval time.Duration) *RetentionTicker {
	if interval <= 0 {
		interval = defaultRetentionInterval
	}
	return &RetentionTicker{runner: runner, log: log, interval: interval}
}

func (t *RetentionTicker) Run(ctx context.Context) {
	if t == nil || t.runner == nil {
		return
	}

	t.tick(ctx)

	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.tick(ctx)
		}
	}
}

func (t *RetentionTicker) tick(ctx context.Context) {
	run, err := t.runner.Run(ctx)
	if err != nil {
		t.log.Warn("retention run failed", "error", err)
		return
	}
	if run.Skipped {
		return
	}
	t.log.Info("retention run finished", "deleted", run.Deleted, "errors", run.Errors, "windowStart", run.WindowStart)
}

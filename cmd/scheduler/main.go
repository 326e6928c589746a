package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"valdi_backend/internal/adapters/storage"
	"valdi_backend/internal/audit"
	"valdi_backend/internal/email"
	"valdi_backend/internal/events"
	"valdi_backend/internal/notification"
	"valdi_backend/internal/retention"
	"valdi_backend/internal/scheduler"
	"valdi_backend/internal/scoring"
	"valdi_backend/internal/transcription"
	"valdi_backend/platform/config"
	"valdi_backend/platform/db"
	"valdi_backend/platform/logger"
	"valdi_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	log.Info("starting scheduler", "env", cfg.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var pool *pgxpool.Pool
	if err := withRetry(ctx, log, "database connection", 5, 2*time.Second, func() error {
		p, err := db.NewPool(ctx, cfg)
		if err != nil {
			return err
		}
		pool = p
		return nil
	}); err != nil {
		log.Error("failed to connect to database", "error", err)
		panic("failed to connect to database: " + err.Error())
	}
	defer pool.Close()

	storageSvc, err := storage.NewMinIOService(cfg)
	if err != nil {
		log.Error("failed to initialize storage service", "error", err)
		panic("failed to initialize storage service: " + err.Error())
	}

	eventBus := events.NewInMemoryBus(log)
	notification.New(email.NewSender(cfg), cfg.GetOperatorAlertEmail(), log).RegisterHandlers(eventBus)
	audit.NewModule(pool, log).Recorder.RegisterHandlers(eventBus)

	queue, err := scheduler.NewClient(cfg)
	if err != nil {
		log.Error("failed to initialize task queue client", "error", err)
		panic("failed to initialize task queue client: " + err.Error())
	}
	defer func() { _ = queue.Close() }()

	redisClient, err := scheduler.NewRedisClient(cfg)
	if err != nil {
		log.Error("failed to initialize redis client", "error", err)
		panic("failed to initialize redis client: " + err.Error())
	}
	defer func() { _ = redisClient.Close() }()

	// Worker-side wiring (no HTTP handlers required).
	transcriber, err := transcription.NewService(ctx, pool, storageSvc, cfg, eventBus, log)
	if err != nil {
		log.Error("failed to initialize transcription", "error", err)
		panic("failed to initialize transcription: " + err.Error())
	}

	scoringModule, err := scoring.NewModule(pool, cfg, eventBus, validator.New(), log)
	if err != nil {
		log.Error("failed to initialize scoring module", "error", err)
		panic("failed to initialize scoring module: " + err.Error())
	}

	retentionModule := retention.NewModule(pool, storageSvc, redisClient, cfg, eventBus, log)
	retentionTicker := scheduler.NewRetentionTicker(retentionModule.Service, log, cfg.GetRetentionInterval())

	worker, err := scheduler.NewWorker(cfg, transcriber, scoringModule.Service, queue, log)
	if err != nil {
		log.Error("failed to initialize scheduler worker", "error", err)
		panic("failed to initialize scheduler worker: " + err.Error())
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		worker.Run(gctx)
		return nil
	})
	g.Go(func() error {
		retentionTicker.Run(gctx)
		return nil
	})
	_ = g.Wait()

	eventBus.Wait()
	log.Info("scheduler stopped")
}

func withRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return errors.New(name + ": invalid retry attempts")
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := fn(); err == nil {
			return nil
		} else {
			lastErr = err
			log.Warn("retryable operation failed", "operation", name, "attempt", attempt, "error", err)
		}

		if attempt < attempts {
			delay := time.Duration(attempt*attempt) * baseDelay
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	return errors.New(name + ": " + lastErr.Error())
}

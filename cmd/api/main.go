package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"valdi_backend/internal/adapters"
	"valdi_backend/internal/adapters/storage"
	"valdi_backend/internal/audit"
	"valdi_backend/internal/email"
	"valdi_backend/internal/events"
	apphttp "valdi_backend/internal/http"
	"valdi_backend/internal/http/router"
	leadsrepo "valdi_backend/internal/leads/repository"
	leadsvc "valdi_backend/internal/leads/service"
	"valdi_backend/internal/meetings"
	"valdi_backend/internal/notification"
	"valdi_backend/internal/recordings"
	"valdi_backend/internal/retention"
	"valdi_backend/internal/scheduler"
	"valdi_backend/internal/scoring"
	"valdi_backend/internal/webhook"
	"valdi_backend/migrations"
	"valdi_backend/platform/config"
	"valdi_backend/platform/db"
	"valdi_backend/platform/logger"
	"valdi_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	// Initialize structured logger
	log := logger.New(cfg.Env)
	log.Info("starting server", "env", cfg.Env, "addr", cfg.HTTPAddr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ========================================================================
	// Infrastructure Layer
	// ========================================================================

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
	log.Info("database connection established")

	if err := withRetry(ctx, log, "database migrations", 5, 2*time.Second, func() error {
		return db.RunMigrations(ctx, pool, migrations.FS)
	}); err != nil {
		log.Error("failed to run database migrations", "error", err)
		panic("failed to run database migrations: " + err.Error())
	}
	log.Info("database migrations complete")

	// Event bus for decoupled communication between modules
	eventBus := events.NewInMemoryBus(log)

	// Shared validator instance for dependency injection
	val := validator.New()

	// Storage service for call recordings (MinIO)
	storageSvc, err := storage.NewMinIOService(cfg)
	if err != nil {
		log.Error("failed to initialize storage service", "error", err)
		panic("failed to initialize storage service: " + err.Error())
	}
	if err := withRetry(ctx, log, "ensure call-recordings bucket", 5, 2*time.Second, func() error {
		return storageSvc.EnsureBucketExists(ctx, cfg.GetMinioBucketCallRecordings())
	}); err != nil {
		log.Error("failed to ensure storage bucket exists", "error", err, "bucket", cfg.GetMinioBucketCallRecordings())
		panic("failed to ensure storage bucket exists: " + err.Error())
	}
	log.Info("storage service initialized", "bucket", cfg.GetMinioBucketCallRecordings())

	taskQueue, redisClient, closeQueue := initQueue(cfg, log)
	defer closeQueue()

	// ========================================================================
	// Domain Modules (Composition Root)
	// ========================================================================

	// Event subscribers (not HTTP-facing)
	notification.New(email.NewSender(cfg), cfg.GetOperatorAlertEmail(), log).RegisterHandlers(eventBus)
	auditModule := audit.NewModule(pool, log)
	auditModule.Recorder.RegisterHandlers(eventBus)

	catalog, err := webhook.LoadCatalog()
	if err != nil {
		log.Error("failed to load provider catalog", "error", err)
		panic("failed to load provider catalog: " + err.Error())
	}

	leadCorrelator := adapters.NewLeadCorrelator(leadsvc.New(leadsrepo.New(pool), log))
	recordingsModule := recordings.NewModule(pool, storageSvc, cfg, leadCorrelator, eventBus, val, log)
	if taskQueue != nil {
		recordingsModule.Service.SetTranscriptionQueue(taskQueue)
	}

	// Anti-Corruption Layer: webhook only knows its own RecordingAcquirer interface
	acquirer := adapters.NewRecordingAcquirer(recordingsModule.Service, catalog)
	webhookModule := webhook.NewModule(pool, catalog, acquirer, cfg.GetAppBaseURL(), val, log)

	meetingsModule := meetings.NewModule(pool, eventBus, val, log)

	scoringModule, err := scoring.NewModule(pool, cfg, eventBus, val, log)
	if err != nil {
		log.Error("failed to initialize scoring module", "error", err)
		panic("failed to initialize scoring module: " + err.Error())
	}

	retentionModule := retention.NewModule(pool, storageSvc, redisClient, cfg, eventBus, log)

	// ========================================================================
	// HTTP Layer
	// ========================================================================

	app := &apphttp.App{
		Config:   cfg,
		Logger:   log,
		Health:   pool,
		EventBus: eventBus,
		Modules: []apphttp.Module{
			webhookModule,
			recordingsModule,
			meetingsModule,
			scoringModule,
			retentionModule,
			auditModule,
		},
	}

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router.New(app),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("server listening", "addr", cfg.HTTPAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutdown signal received, gracefully shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("server error", "error", err)
		panic("server error: " + err.Error())
	}
	eventBus.Wait()
}

// initQueue connects the transcription queue and the Redis client for the retention
// window lock. Both are optional: without REDIS_URL transcription is not scheduled and
// retention runs unguarded.
func initQueue(cfg config.SchedulerConfig, log *logger.Logger) (*scheduler.Client, *redis.Client, func()) {
	if cfg.GetRedisURL() == "" {
		log.Warn("REDIS_URL not configured; transcription queue and retention lock disabled")
		return nil, nil, func() {}
	}

	queue, err := scheduler.NewClient(cfg)
	if err != nil {
		log.Error("failed to initialize task queue client", "error", err)
		return nil, nil, func() {}
	}

	redisClient, err := scheduler.NewRedisClient(cfg)
	if err != nil {
		log.Error("failed to initialize redis client", "error", err)
		return queue, nil, func() { _ = queue.Close() }
	}

	return queue, redisClient, func() {
		_ = queue.Close()
		_ = redisClient.Close()
	}
}

func withRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return fmt.Errorf("%s: invalid retry attempts", name)
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

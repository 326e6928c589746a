// Package retention deletes recording audio past its retention deadline.
package retention

import (
	"valdi_backend/internal/adapters/storage"
	"valdi_backend/internal/events"
	apphttp "valdi_backend/internal/http"
	"valdi_backend/internal/retention/handler"
	"valdi_backend/internal/retention/repository"
	"valdi_backend/internal/retention/service"
	"valdi_backend/platform/config"
	"valdi_backend/platform/logger"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

// Config combines the settings the retention module reads.
type Config interface {
	config.RetentionConfig
	config.MinIOConfig
}

type Module struct {
	handler *handler.Handler
	Service *service.Service
}

// NewModule wires the retention run. A nil redisClient disables the window lock.
func NewModule(pool *pgxpool.Pool, storageSvc storage.StorageService, redisClient *redis.Client, cfg Config, eventBus events.Bus, log *logger.Logger) *Module {
	var lock service.WindowLock
	if redisClient != nil {
		lock = service.NewRedisWindowLock(redisClient)
	}

	svc := service.New(repository.New(pool), storageSvc, lock, eventBus, service.Config{
		Bucket:    cfg.GetMinioBucketCallRecordings(),
		BatchSize: cfg.GetRetentionBatchSize(),
		Window:    cfg.GetRetentionWindow(),
	}, log)

	return &Module{
		handler: handler.New(svc),
		Service: svc,
	}
}

func (m *Module) Name() string {
	return "retention"
}

// RegisterRoutes mounts the cron trigger. The Cron group enforces the shared secret.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	ctx.Cron.GET("/retention", m.handler.Cleanup)
	ctx.Cron.POST("/retention", m.handler.Cleanup)
}

var _ apphttp.Module = (*Module)(nil)

// Package recordings provides the call recording domain module: dialer
// acquisition, manual uploads and signed playback links.
package recordings

import (
	"net/http"

	"valdi_backend/internal/adapters/storage"
	"valdi_backend/internal/events"
	apphttp "valdi_backend/internal/http"
	"valdi_backend/internal/recordings/handler"
	"valdi_backend/internal/recordings/repository"
	"valdi_backend/internal/recordings/service"
	"valdi_backend/platform/config"
	"valdi_backend/platform/httpkit"
	"valdi_backend/platform/logger"
	"valdi_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module represents the recordings domain module
type Module struct {
	handler *handler.Handler
	Service *service.Service
}

// NewModule creates a new recordings module with all dependencies wired
func NewModule(
	pool *pgxpool.Pool,
	storageSvc storage.StorageService,
	cfg *config.Config,
	leads service.LeadCorrelator,
	eventBus events.Bus,
	val *validator.Validator,
	log *logger.Logger,
) *Module {
	repo := repository.New(pool)
	downloader := service.NewHTTPDownloader(&http.Client{}, cfg.GetRecordingMaxBytes(), cfg.GetDownloadTimeout())
	svc := service.New(repo, storageSvc, cfg.GetMinioBucketCallRecordings(), downloader, leads, eventBus, cfg, log)

	return &Module{
		handler: handler.New(svc, val),
		Service: svc,
	}
}

// Name returns the module name for logging
func (m *Module) Name() string {
	return "recordings"
}

// RegisterRoutes registers the module's routes under /api/v1/recordings
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	recordings := ctx.Protected.Group("/recordings")
	recordings.POST("", httpkit.RequireRole(httpkit.RoleSDR), m.handler.Upload)
	recordings.GET("/:id/audio", m.handler.GetAudio)

	ctx.Admin.GET("/recordings/expiration-stats", m.handler.ExpirationStats)
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)

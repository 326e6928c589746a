// Package meetings provides the meeting qualification domain module: creation,
// admin review, company approval and disputes.
package meetings

import (
	"valdi_backend/internal/events"
	apphttp "valdi_backend/internal/http"
	"valdi_backend/internal/meetings/handler"
	"valdi_backend/internal/meetings/repository"
	"valdi_backend/internal/meetings/service"
	"valdi_backend/platform/httpkit"
	"valdi_backend/platform/logger"
	"valdi_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module represents the meetings domain module
type Module struct {
	handler *handler.Handler
	Service *service.Service
}

// NewModule creates a new meetings module with all dependencies wired
func NewModule(pool *pgxpool.Pool, eventBus events.Bus, val *validator.Validator, log *logger.Logger) *Module {
	repo := repository.New(pool)
	svc := service.New(repo, eventBus, log)

	return &Module{
		handler: handler.New(svc, val),
		Service: svc,
	}
}

// Name returns the module name for logging
func (m *Module) Name() string {
	return "meetings"
}

// RegisterRoutes registers the meeting and dispute routes
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	meetings := ctx.Protected.Group("/meetings")
	meetings.POST("", httpkit.RequireRole(httpkit.RoleSDR), m.handler.Create)
	meetings.GET("/:id", m.handler.Get)
	meetings.GET("/:id/history", m.handler.History)
	meetings.GET("/:id/disputes", m.handler.ListDisputes)
	meetings.POST("/:id/review", httpkit.RequireRole(httpkit.RoleAdmin), m.handler.Review)
	meetings.POST("/:id/approve", httpkit.RequireRole(httpkit.RoleCompany), m.handler.Approve)

	disputes := ctx.Protected.Group("/disputes")
	disputes.POST("", m.handler.CreateDispute)
	disputes.POST("/:id/resolve", httpkit.RequireRole(httpkit.RoleAdmin), m.handler.ResolveDispute)
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)

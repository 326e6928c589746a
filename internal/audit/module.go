// Package audit keeps an append-only trail of pipeline state changes.
package audit

import (
	"valdi_backend/internal/audit/handler"
	"valdi_backend/internal/audit/repository"
	apphttp "valdi_backend/internal/http"
	"valdi_backend/platform/logger"

	"github.com/jackc/pgx/v5/pgxpool"
)

type Module struct {
	handler  *handler.Handler
	Recorder *Recorder
}

func NewModule(pool *pgxpool.Pool, log *logger.Logger) *Module {
	repo := repository.New(pool)
	return &Module{
		handler:  handler.New(repo),
		Recorder: NewRecorder(repo, log),
	}
}

func (m *Module) Name() string {
	return "audit"
}

func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	ctx.Admin.GET("/audit-logs", m.handler.List)
}

var _ apphttp.Module = (*Module)(nil)

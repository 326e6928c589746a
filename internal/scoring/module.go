// Package scoring provides the AI qualification scoring module.
package scoring

import (
	"time"

	"valdi_backend/internal/events"
	apphttp "valdi_backend/internal/http"
	"valdi_backend/internal/scoring/handler"
	"valdi_backend/internal/scoring/repository"
	"valdi_backend/internal/scoring/service"
	"valdi_backend/platform/ai/chatmodel"
	"valdi_backend/platform/config"
	"valdi_backend/platform/logger"
	"valdi_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	scoringTemperature = 0.3
	scoringBackoff     = 500 * time.Millisecond
)

// Module represents the scoring module
type Module struct {
	handler *handler.Handler
	Service *service.Service
}

// NewModule creates the scoring module. Without an API key the gateway fails
// closed and every request reports scoring unavailable.
func NewModule(pool *pgxpool.Pool, cfg config.ScoringConfig, eventBus events.Bus, val *validator.Validator, log *logger.Logger) (*Module, error) {
	var completer service.Completer
	if cfg.IsScoringEnabled() {
		temperature := scoringTemperature
		llm := chatmodel.NewModel(chatmodel.Config{
			APIKey:       cfg.GetScoringAPIKey(),
			BaseURL:      cfg.GetScoringBaseURL(),
			Model:        cfg.GetScoringModel(),
			Temperature:  &temperature,
			JSONResponse: true,
		})
		agentCompleter, err := service.NewAgentCompleter(llm)
		if err != nil {
			return nil, err
		}
		completer = agentCompleter
	} else {
		log.Warn("scoring model not configured; scoring requests will report unavailable")
	}

	gateway := service.NewGateway(completer, service.GatewayConfig{
		Timeout:     cfg.GetScoringTimeout(),
		MaxAttempts: cfg.GetScoringMaxAttempts(),
		Backoff:     scoringBackoff,
	}, log)
	svc := service.New(repository.New(pool), gateway, eventBus, log)

	return &Module{
		handler: handler.New(svc, val),
		Service: svc,
	}, nil
}

// Name returns the module name for logging
func (m *Module) Name() string {
	return "scoring"
}

// RegisterRoutes registers POST /api/v1/admin/scoring
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	ctx.Admin.POST("/scoring", m.handler.Score)
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)

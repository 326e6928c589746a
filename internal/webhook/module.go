// Package webhook provides the dialer webhook bounded context.
// This file defines the module that encapsulates all webhook setup and route registration.
package webhook

import (
	apphttp "valdi_backend/internal/http"
	"valdi_backend/platform/httpkit"
	"valdi_backend/platform/logger"
	"valdi_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module is the webhook bounded context module implementing http.Module.
type Module struct {
	handler *Handler
	service *Service
}

// NewModule creates and initializes the webhook module with all its dependencies.
func NewModule(pool *pgxpool.Pool, catalog *Catalog, acquirer RecordingAcquirer, appBaseURL string, val *validator.Validator, log *logger.Logger) *Module {
	repo := NewRepository(pool)
	service := NewService(catalog, repo, acquirer, log)
	handler := NewHandler(service, val, appBaseURL)

	return &Module{
		handler: handler,
		service: service,
	}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "webhook"
}

// Service exposes the webhook service for composition.
func (m *Module) Service() *Service {
	return m.service
}

// RegisterRoutes mounts webhook routes on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	// Public provider ingress (signature auth, no JWT)
	ingress := ctx.V1.Group("/webhooks/dialer")
	if ctx.WebhookRateLimiter != nil {
		ingress.Use(ctx.WebhookRateLimiter.RateLimit())
	}
	ingress.POST("", LimitBody(maxWebhookBodyBytes), m.handler.HandleDialerWebhook)
	ingress.GET("", m.handler.HandleHealth)
	ingress.GET("/providers/:provider/setup", m.handler.HandleProviderSetup)

	// SDR integration management
	integrations := ctx.Protected.Group("/dialer-integrations")
	integrations.Use(httpkit.RequireRole(httpkit.RoleSDR))
	integrations.GET("", m.handler.HandleListIntegrations)
	integrations.POST("", m.handler.HandleSaveIntegration)
	integrations.DELETE("/:id", m.handler.HandleDeactivateIntegration)
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)

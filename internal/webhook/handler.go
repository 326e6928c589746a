package webhook

import (
	"io"
	"net/http"
	"time"

	"valdi_backend/platform/httpkit"
	"valdi_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	errInvalidRequest       = "invalid request body"
	errValidation           = "validation error"
	errInvalidIntegrationID = "invalid integration ID"
	signatureHeader         = "X-Signature"
)

// Handler handles dialer webhook HTTP requests.
type Handler struct {
	service    *Service
	val        *validator.Validator
	appBaseURL string
}

// NewHandler creates a new webhook handler.
func NewHandler(service *Service, val *validator.Validator, appBaseURL string) *Handler {
	return &Handler{service: service, val: val, appBaseURL: appBaseURL}
}

// ---- Provider ingress (public, signature authenticated) ----

// HandleDialerWebhook processes one provider delivery.
// POST /api/v1/webhooks/dialer
func (h *Handler) HandleDialerWebhook(c *gin.Context) {
	raw, err := io.ReadAll(c.Request.Body)
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, errInvalidRequest, nil)
		return
	}

	result, err := h.service.Ingest(c.Request.Context(), raw, c.GetHeader(signatureHeader))
	if httpkit.HandleError(c, err) {
		return
	}

	c.JSON(http.StatusOK, result)
}

// HandleHealth reports that the ingress is up and which providers it accepts.
// GET /api/v1/webhooks/dialer
func (h *Handler) HandleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":              "ok",
		"message":             "Dialer webhook endpoint is active",
		"supported_providers": h.service.SupportedProviders(),
	})
}

// HandleProviderSetup returns provider setup instructions.
// GET /api/v1/webhooks/dialer/providers/:provider/setup
func (h *Handler) HandleProviderSetup(c *gin.Context) {
	c.JSON(http.StatusOK, h.service.Setup(c.Param("provider"), h.appBaseURL))
}

// ---- SDR integration management (JWT authenticated) ----

// SaveIntegrationRequest is the body for creating or updating an integration.
type SaveIntegrationRequest struct {
	Provider            string         `json:"provider" validate:"required,oneof=aircall ringcentral twilio justcall kixie other"`
	ProviderAccountID   string         `json:"providerAccountId" validate:"required,max=200"`
	ProviderPhoneNumber *string        `json:"providerPhoneNumber" validate:"omitempty,max=50"`
	WebhookSecret       string         `json:"webhookSecret" validate:"omitempty,min=8,max=512"`
	AccessToken         *string        `json:"accessToken" validate:"omitempty,max=4096"`
	Metadata            map[string]any `json:"metadata"`
}

// IntegrationResponse is returned for list and save operations.
// The webhook secret is only echoed by save so the SDR can paste it into the dialer.
type IntegrationResponse struct {
	ID                  uuid.UUID      `json:"id"`
	Provider            string         `json:"provider"`
	ProviderAccountID   string         `json:"providerAccountId"`
	ProviderPhoneNumber *string        `json:"providerPhoneNumber,omitempty"`
	WebhookSecret       string         `json:"webhookSecret,omitempty"`
	IsActive            bool           `json:"isActive"`
	LastSyncAt          *string        `json:"lastSyncAt,omitempty"`
	Metadata            map[string]any `json:"metadata"`
	CreatedAt           string         `json:"createdAt"`
}

// HandleListIntegrations lists the caller's integrations.
// GET /api/v1/dialer-integrations
func (h *Handler) HandleListIntegrations(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	integrations, err := h.service.ListIntegrations(c.Request.Context(), identity.UserID())
	if httpkit.HandleError(c, err) {
		return
	}

	resp := make([]IntegrationResponse, 0, len(integrations))
	for _, in := range integrations {
		resp = append(resp, toIntegrationResponse(in, false))
	}
	c.JSON(http.StatusOK, gin.H{"items": resp})
}

// HandleSaveIntegration creates or updates an integration.
// POST /api/v1/dialer-integrations
func (h *Handler) HandleSaveIntegration(c *gin.Context) {
	var req SaveIntegrationRequest
	if !h.bindAndValidate(c, &req) {
		return
	}
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	in, err := h.service.SaveIntegration(c.Request.Context(), identity.UserID(), UpsertIntegrationParams{
		Provider:            req.Provider,
		ProviderAccountID:   req.ProviderAccountID,
		ProviderPhoneNumber: req.ProviderPhoneNumber,
		WebhookSecret:       req.WebhookSecret,
		AccessToken:         req.AccessToken,
		Metadata:            req.Metadata,
	})
	if httpkit.HandleError(c, err) {
		return
	}

	c.JSON(http.StatusCreated, toIntegrationResponse(in, true))
}

// HandleDeactivateIntegration disables an integration.
// DELETE /api/v1/dialer-integrations/:id
func (h *Handler) HandleDeactivateIntegration(c *gin.Context) {
	integrationID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, errInvalidIntegrationID, nil)
		return
	}
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	if httpkit.HandleError(c, h.service.DeactivateIntegration(c.Request.Context(), identity.UserID(), integrationID)) {
		return
	}
	c.Status(http.StatusNoContent)
}

func toIntegrationResponse(in Integration, withSecret bool) IntegrationResponse {
	resp := IntegrationResponse{
		ID:                  in.ID,
		Provider:            in.Provider,
		ProviderAccountID:   in.ProviderAccountID,
		ProviderPhoneNumber: in.ProviderPhoneNumber,
		IsActive:            in.IsActive,
		Metadata:            in.Metadata,
		CreatedAt:           in.CreatedAt.Format(time.RFC3339),
	}
	if withSecret && in.WebhookSecret != nil {
		resp.WebhookSecret = *in.WebhookSecret
	}
	if in.LastSyncAt != nil {
		formatted := in.LastSyncAt.Format(time.RFC3339)
		resp.LastSyncAt = &formatted
	}
	return resp
}

func (h *Handler) bindAndValidate(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, errInvalidRequest, err.Error())
		return false
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, errValidation, err.Error())
		return false
	}
	return true
}

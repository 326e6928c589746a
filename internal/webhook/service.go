package webhook

import (
	"context"
	"net/http"
	"strings"

	"valdi_backend/platform/apperr"
	"valdi_backend/platform/logger"

	"github.com/google/uuid"
)

const (
	msgEventSkipped     = "Event skipped"
	msgRecordingStored  = "Call recording imported successfully"
	msgRecordingExisted = "Call recording already imported"
)

// RecordingAcquirer stores the recording behind an actionable event.
// Satisfied by an adapter over the recordings service.
type RecordingAcquirer interface {
	Acquire(ctx context.Context, event CanonicalCallEvent, integration Integration) (AcquiredRecording, error)
}

// AcquiredRecording identifies the persisted recording and whether this delivery created it.
type AcquiredRecording struct {
	ID      uuid.UUID
	Created bool
}

// IngestResult is the acknowledgement returned to the provider.
type IngestResult struct {
	Success     bool       `json:"success"`
	Message     string     `json:"message"`
	RecordingID *uuid.UUID `json:"recording_id,omitempty"`
	Duplicate   bool       `json:"duplicate,omitempty"`
}

// Service authenticates and routes dialer webhook deliveries.
type Service struct {
	catalog  *Catalog
	repo     IntegrationStore
	acquirer RecordingAcquirer
	log      *logger.Logger
}

// NewService creates a new webhook service.
func NewService(catalog *Catalog, repo IntegrationStore, acquirer RecordingAcquirer, log *logger.Logger) *Service {
	return &Service{
		catalog:  catalog,
		repo:     repo,
		acquirer: acquirer,
		log:      log,
	}
}

// Ingest handles one webhook delivery end to end.
// Non-actionable events are acknowledged as a successful no-op so providers do not retry them.
func (s *Service) Ingest(ctx context.Context, raw []byte, headerSignature string) (IngestResult, error) {
	event, err := s.catalog.Normalize(raw, headerSignature)
	if err != nil {
		s.log.WebhookRejected("", "", http.StatusBadRequest, err.Error())
		return IngestResult{}, err
	}

	integration, err := s.repo.FindActive(ctx, event.Provider, event.AccountKey)
	if err != nil {
		if apperr.GetKind(err) == apperr.KindNotFound {
			s.log.WebhookRejected(event.Provider, event.CallID, http.StatusNotFound, "no matching integration")
		}
		return IngestResult{}, err
	}

	if err := s.authenticate(event, integration, raw); err != nil {
		s.log.WebhookRejected(event.Provider, event.CallID, http.StatusUnauthorized, err.Error())
		return IngestResult{}, err
	}

	if !event.Actionable() {
		s.log.Debug("webhook event skipped", "provider", event.Provider, "callId", event.CallID, "eventType", event.EventType)
		return IngestResult{Success: true, Message: msgEventSkipped}, nil
	}

	acquired, err := s.acquirer.Acquire(ctx, event, integration)
	if err != nil {
		return IngestResult{}, err
	}

	if err := s.repo.TouchLastSync(ctx, integration.ID); err != nil {
		s.log.Warn("failed to update integration last sync", "integrationId", integration.ID, "error", err)
	}

	result := IngestResult{Success: true, Message: msgRecordingStored, RecordingID: &acquired.ID}
	if !acquired.Created {
		result.Message = msgRecordingExisted
		result.Duplicate = true
	}
	return result, nil
}

// authenticate verifies the delivery signature when the integration carries a secret.
func (s *Service) authenticate(event CanonicalCallEvent, integration Integration, raw []byte) error {
	if integration.WebhookSecret == nil || strings.TrimSpace(*integration.WebhookSecret) == "" {
		return nil
	}
	provider, _ := s.catalog.Lookup(event.Provider)
	if event.Signature == "" {
		return apperr.Authentication("missing signature")
	}
	if !VerifySignature(provider.SignatureScheme, raw, event.Signature, *integration.WebhookSecret) {
		return apperr.Authentication("invalid signature")
	}
	return nil
}

// SetupInstructions describes how an SDR connects a provider to the ingress.
type SetupInstructions struct {
	Provider       string   `json:"provider"`
	Name           string   `json:"name"`
	WebhookURL     string   `json:"webhookUrl"`
	Instructions   []string `json:"instructions"`
	RequiredFields []string `json:"requiredFields"`
}

// Setup returns the setup instructions for provider, falling back to the generic entry.
func (s *Service) Setup(provider, baseURL string) SetupInstructions {
	p, ok := s.catalog.Lookup(provider)
	if !ok {
		p, _ = s.catalog.Lookup("other")
	}
	webhookURL := strings.TrimRight(baseURL, "/") + "/api/v1/webhooks/dialer"
	return SetupInstructions{
		Provider:       p.ID,
		Name:           p.Name,
		WebhookURL:     webhookURL,
		Instructions:   p.SetupInstructions(webhookURL),
		RequiredFields: p.RequiredFields,
	}
}

// SupportedProviders lists the providers advertised on the health check.
func (s *Service) SupportedProviders() []string {
	return s.catalog.Listed()
}

// ListIntegrations returns the caller's active integrations.
func (s *Service) ListIntegrations(ctx context.Context, userID uuid.UUID) ([]Integration, error) {
	sdrID, err := s.repo.ResolveSDRID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.repo.ListBySDR(ctx, sdrID)
}

// SaveIntegration upserts an integration for the caller, generating a secret when none is supplied.
func (s *Service) SaveIntegration(ctx context.Context, userID uuid.UUID, params UpsertIntegrationParams) (Integration, error) {
	if _, ok := s.catalog.Lookup(params.Provider); !ok {
		return Integration{}, apperr.BadRequest("unsupported provider")
	}
	sdrID, err := s.repo.ResolveSDRID(ctx, userID)
	if err != nil {
		return Integration{}, err
	}
	params.SDRID = sdrID
	params.Provider = strings.ToLower(strings.TrimSpace(params.Provider))
	if strings.TrimSpace(params.WebhookSecret) == "" {
		secret, err := GenerateWebhookSecret()
		if err != nil {
			return Integration{}, apperr.Wrap(apperr.KindInternal, "failed to generate webhook secret", err)
		}
		params.WebhookSecret = secret
	}
	return s.repo.Upsert(ctx, params)
}

// DeactivateIntegration disables one of the caller's integrations.
func (s *Service) DeactivateIntegration(ctx context.Context, userID, integrationID uuid.UUID) error {
	sdrID, err := s.repo.ResolveSDRID(ctx, userID)
	if err != nil {
		return err
	}
	return s.repo.Deactivate(ctx, integrationID, sdrID)
}

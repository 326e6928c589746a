package adapters

import (
	"context"

	recordingsvc "valdi_backend/internal/recordings/service"
	"valdi_backend/internal/webhook"
)

// RecordingAcquirer lets webhook ingestion hand actionable calls to the recordings service.
type RecordingAcquirer struct {
	svc     *recordingsvc.Service
	catalog *webhook.Catalog
}

// NewRecordingAcquirer creates the webhook → recordings adapter.
func NewRecordingAcquirer(svc *recordingsvc.Service, catalog *webhook.Catalog) *RecordingAcquirer {
	return &RecordingAcquirer{svc: svc, catalog: catalog}
}

// Acquire maps the canonical event and integration onto the acquisition service.
func (a *RecordingAcquirer) Acquire(ctx context.Context, event webhook.CanonicalCallEvent, integration webhook.Integration) (webhook.AcquiredRecording, error) {
	provider, _ := a.catalog.Lookup(event.Provider)

	accessToken := ""
	if integration.AccessToken != nil {
		accessToken = *integration.AccessToken
	}

	result, err := a.svc.Acquire(ctx, recordingsvc.DialerCall{
		Provider:        event.Provider,
		CallID:          event.CallID,
		RecordingURL:    event.RecordingURL,
		DurationSeconds: event.DurationSeconds,
		To:              event.To,
		Contact: recordingsvc.ContactInfo{
			Name:  event.Contact.Name,
			Email: event.Contact.Email,
			Phone: event.Contact.Phone,
		},
	}, recordingsvc.DialerIntegration{
		ID:             integration.ID,
		SDRID:          integration.SDRID,
		AccessToken:    accessToken,
		BearerDownload: provider.BearerDownload,
	})
	if err != nil {
		return webhook.AcquiredRecording{}, err
	}
	return webhook.AcquiredRecording{ID: result.Recording.ID, Created: result.Created}, nil
}

var _ webhook.RecordingAcquirer = (*RecordingAcquirer)(nil)

package adapters

import (
	"context"

	leadsvc "valdi_backend/internal/leads/service"
	recordingsvc "valdi_backend/internal/recordings/service"

	"github.com/google/uuid"
)

// LeadCorrelator exposes the leads service to recording acquisition.
type LeadCorrelator struct {
	svc *leadsvc.Service
}

// NewLeadCorrelator creates the recordings → leads adapter.
func NewLeadCorrelator(svc *leadsvc.Service) *LeadCorrelator {
	return &LeadCorrelator{svc: svc}
}

func (a *LeadCorrelator) FindOrCreate(ctx context.Context, campaignID, companyID uuid.UUID, contact recordingsvc.ContactInfo) (uuid.UUID, error) {
	return a.svc.FindOrCreate(ctx, campaignID, companyID, leadsvc.Contact{
		Name:     contact.Name,
		Email:    contact.Email,
		Phone:    contact.Phone,
		CalledTo: contact.CalledTo,
	})
}

func (a *LeadCorrelator) RecordOutreachAttempt(ctx context.Context, attempt recordingsvc.OutreachAttempt) error {
	return a.svc.RecordOutreachAttempt(ctx, leadsvc.OutreachAttempt{
		LeadID:              attempt.LeadID,
		SDRID:               attempt.SDRID,
		CampaignID:          attempt.CampaignID,
		DurationSeconds:     attempt.DurationSeconds,
		CallRecordingID:     attempt.CallRecordingID,
		DialerCallID:        attempt.DialerCallID,
		DialerIntegrationID: attempt.DialerIntegrationID,
		Provider:            attempt.Provider,
	})
}

var _ recordingsvc.LeadCorrelator = (*LeadCorrelator)(nil)

// Package service correlates dialer calls with campaign leads.
package service

import (
	"context"
	"fmt"
	"strings"

	"valdi_backend/internal/leads/repository"
	"valdi_backend/platform/logger"
	"valdi_backend/platform/phone"

	"github.com/google/uuid"
)

// Outreach attempt outcomes.
const (
	AttemptConnected = "connected"
	AttemptNoAnswer  = "no_answer"
)

// Store is the persistence the correlator needs.
type Store interface {
	FindByPhone(ctx context.Context, campaignID uuid.UUID, candidates []string) (*uuid.UUID, error)
	FindByEmail(ctx context.Context, campaignID uuid.UUID, email string) (*uuid.UUID, error)
	Create(ctx context.Context, params repository.CreateLeadParams) (repository.Lead, error)
	CreateOutreachAttempt(ctx context.Context, params repository.CreateOutreachAttemptParams) (uuid.UUID, error)
}

// Contact is what a call tells us about the person on the other end.
type Contact struct {
	Name  string
	Email string
	Phone string
	// CalledTo is the dialed number, used when the contact carries no phone.
	CalledTo string
}

// OutreachAttempt describes one imported call.
type OutreachAttempt struct {
	LeadID              uuid.UUID
	SDRID               uuid.UUID
	CampaignID          uuid.UUID
	DurationSeconds     int
	CallRecordingID     uuid.UUID
	DialerCallID        string
	DialerIntegrationID uuid.UUID
	Provider            string
}

// Service finds or creates the lead behind a call.
type Service struct {
	store Store
	log   *logger.Logger
}

// New creates a new lead correlator
func New(store Store, log *logger.Logger) *Service {
	return &Service{store: store, log: log}
}

// FindOrCreate matches by phone first, then by email, both within the campaign.
// Without a match a new lead is created in status contacted.
func (s *Service) FindOrCreate(ctx context.Context, campaignID, companyID uuid.UUID, contact Contact) (uuid.UUID, error) {
	rawPhone := strings.TrimSpace(contact.Phone)
	if rawPhone == "" {
		rawPhone = strings.TrimSpace(contact.CalledTo)
	}
	normalized := phone.NormalizeE164(rawPhone)
	email := strings.TrimSpace(contact.Email)

	if normalized != "" {
		candidates := []string{normalized}
		if rawPhone != normalized {
			candidates = append(candidates, rawPhone)
		}
		id, err := s.store.FindByPhone(ctx, campaignID, candidates)
		if err != nil {
			return uuid.Nil, err
		}
		if id != nil {
			return *id, nil
		}
	}

	if email != "" {
		id, err := s.store.FindByEmail(ctx, campaignID, email)
		if err != nil {
			return uuid.Nil, err
		}
		if id != nil {
			return *id, nil
		}
	}

	first, last := SplitName(contact.Name)
	lead, err := s.store.Create(ctx, repository.CreateLeadParams{
		CampaignID: campaignID,
		CompanyID:  companyID,
		FirstName:  first,
		LastName:   last,
		Email:      optional(strings.ToLower(email)),
		Phone:      optional(normalized),
		Status:     repository.StatusContacted,
	})
	if err != nil {
		return uuid.Nil, err
	}

	s.log.Info("lead created from call", "leadId", lead.ID, "campaignId", campaignID)
	return lead.ID, nil
}

// RecordOutreachAttempt logs the call against its lead.
func (s *Service) RecordOutreachAttempt(ctx context.Context, attempt OutreachAttempt) error {
	status := AttemptNoAnswer
	if attempt.DurationSeconds > 0 {
		status = AttemptConnected
	}
	notes := fmt.Sprintf("Auto-imported from %s", attempt.Provider)
	recordingID, integrationID := attempt.CallRecordingID, attempt.DialerIntegrationID

	_, err := s.store.CreateOutreachAttempt(ctx, repository.CreateOutreachAttemptParams{
		LeadID:              attempt.LeadID,
		SDRID:               attempt.SDRID,
		CampaignID:          attempt.CampaignID,
		AttemptStatus:       status,
		DurationSeconds:     attempt.DurationSeconds,
		CallRecordingID:     &recordingID,
		DialerCallID:        optional(attempt.DialerCallID),
		DialerIntegrationID: &integrationID,
		Notes:               &notes,
	})
	return err
}

// SplitName splits a display name into first name and the remainder.
func SplitName(name string) (string, string) {
	fields := strings.Fields(name)
	switch len(fields) {
	case 0:
		return "", ""
	case 1:
		return fields[0], ""
	default:
		return fields[0], strings.Join(fields[1:], " ")
	}
}

func optional(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}

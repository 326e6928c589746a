package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"valdi_backend/internal/events"
	"valdi_backend/internal/recordings/repository"
	"valdi_backend/platform/apperr"

	"github.com/google/uuid"
)

// Acquisition stages reported on failures.
const (
	StageCampaign = "campaign"
	StageDownload = "download"
	StageUpload   = "upload"
	StageInsert   = "insert"
)

// DialerCall is the canonical call event the acquisition works from.
type DialerCall struct {
	Provider        string
	CallID          string
	RecordingURL    string
	DurationSeconds int
	To              string
	Contact         ContactInfo
}

// DialerIntegration is the subset of an integration the acquisition needs.
type DialerIntegration struct {
	ID             uuid.UUID
	SDRID          uuid.UUID
	AccessToken    string
	BearerDownload bool
}

// AcquireResult reports the persisted recording and whether this call created it.
type AcquireResult struct {
	Recording repository.CallRecording
	Created   bool
}

// StorageKey is the deterministic object key for a provider call.
// Concurrent deliveries of one call upload to the same key.
func StorageKey(sdrID, campaignID uuid.UUID, provider, callID string) string {
	return fmt.Sprintf("%s/%s/%s-%s.mp3", sdrID, campaignID, provider, sanitizeKeySegment(callID))
}

func sanitizeKeySegment(value string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			return r
		default:
			return '_'
		}
	}, value)
}

// Acquire downloads, stores and records a provider recording exactly once per provider call.
func (s *Service) Acquire(ctx context.Context, call DialerCall, integration DialerIntegration) (AcquireResult, error) {
	existing, err := s.repo.FindByProviderCall(ctx, call.Provider, call.CallID)
	if err != nil {
		return AcquireResult{}, s.fail(ctx, call, StageInsert, err)
	}
	if existing != nil {
		s.log.Info("recording already imported", "provider", call.Provider, "callId", call.CallID, "recordingId", existing.ID)
		return AcquireResult{Recording: *existing, Created: false}, nil
	}

	campaign, err := s.repo.ResolveActiveCampaign(ctx, integration.SDRID)
	if err != nil {
		if apperr.HasCode(err, apperr.CodeNoActiveCampaign) {
			s.log.Warn("no active campaign for sdr", "provider", call.Provider, "callId", call.CallID, "sdrId", integration.SDRID)
			return AcquireResult{}, err
		}
		return AcquireResult{}, s.fail(ctx, call, StageCampaign, err)
	}

	req := DownloadRequest{URL: call.RecordingURL}
	if integration.BearerDownload {
		req.BearerToken = integration.AccessToken
	}
	var data []byte
	err = withRetry(ctx, s.cfg.GetAcquisitionMaxAttempts(), s.cfg.GetAcquisitionBackoff(), func(ctx context.Context) error {
		var dlErr error
		data, dlErr = s.downloader.Download(ctx, req)
		return dlErr
	})
	if err != nil {
		return AcquireResult{}, s.fail(ctx, call, StageDownload, err)
	}

	fileKey := StorageKey(integration.SDRID, campaign.CampaignID, call.Provider, call.CallID)
	if err := s.putObject(ctx, fileKey, defaultMimeType, data); err != nil {
		return AcquireResult{}, s.fail(ctx, call, StageUpload, err)
	}

	leadID := s.correlateLead(ctx, call, campaign)

	now := s.now().UTC()
	provider, callID, integrationID := call.Provider, call.CallID, integration.ID
	rec, inserted, err := s.repo.InsertIfAbsent(ctx, repository.CallRecording{
		SDRID:               integration.SDRID,
		CampaignID:          campaign.CampaignID,
		LeadID:              leadID,
		StoragePath:         &fileKey,
		FileName:            call.CallID + ".mp3",
		FileSize:            int64(len(data)),
		MimeType:            defaultMimeType,
		DurationSeconds:     call.DurationSeconds,
		DialerProvider:      &provider,
		DialerCallID:        &callID,
		DialerIntegrationID: &integrationID,
		AutoDeletedAt:       now.Add(s.cfg.GetRetentionPeriod()),
		UploadedAt:          now,
	})
	if err != nil {
		s.compensate(ctx, fileKey, defaultMimeType, data)
		return AcquireResult{}, s.fail(ctx, call, StageInsert, err)
	}
	if !inserted {
		// A concurrent delivery won the insert and shares fileKey, so nothing is cleaned up.
		winner, err := s.repo.FindByProviderCall(ctx, call.Provider, call.CallID)
		if err != nil {
			return AcquireResult{}, s.fail(ctx, call, StageInsert, err)
		}
		if winner == nil {
			return AcquireResult{}, s.fail(ctx, call, StageInsert, errors.New("conflicting recording row not found"))
		}
		s.log.Info("duplicate delivery absorbed", "provider", call.Provider, "callId", call.CallID, "recordingId", winner.ID)
		return AcquireResult{Recording: *winner, Created: false}, nil
	}

	if leadID != nil {
		attempt := OutreachAttempt{
			LeadID:              *leadID,
			SDRID:               integration.SDRID,
			CampaignID:          campaign.CampaignID,
			DurationSeconds:     call.DurationSeconds,
			CallRecordingID:     rec.ID,
			DialerCallID:        call.CallID,
			DialerIntegrationID: integration.ID,
			Provider:            call.Provider,
		}
		if err := s.leads.RecordOutreachAttempt(ctx, attempt); err != nil {
			s.log.Warn("failed to record outreach attempt", "recordingId", rec.ID, "leadId", *leadID, "error", err)
		}
	}

	s.eventBus.Publish(ctx, events.CallRecordingImported{
		BaseEvent:   events.NewBaseEvent(),
		RecordingID: rec.ID,
		SDRID:       rec.SDRID,
		CampaignID:  rec.CampaignID,
		LeadID:      leadID,
		Provider:    call.Provider,
		CallID:      call.CallID,
	})
	s.enqueueTranscription(ctx, rec.ID)

	s.log.Info("recording imported", "provider", call.Provider, "callId", call.CallID, "recordingId", rec.ID, "bytes", len(data))
	return AcquireResult{Recording: rec, Created: true}, nil
}

func (s *Service) correlateLead(ctx context.Context, call DialerCall, campaign repository.ActiveCampaign) *uuid.UUID {
	if s.leads == nil {
		return nil
	}
	contact := call.Contact
	contact.CalledTo = call.To
	leadID, err := s.leads.FindOrCreate(ctx, campaign.CampaignID, campaign.CompanyID, contact)
	if err != nil {
		s.log.Warn("lead correlation failed", "provider", call.Provider, "callId", call.CallID, "error", err)
		return nil
	}
	return &leadID
}

// fail logs and publishes an acquisition failure and returns the structured error.
func (s *Service) fail(ctx context.Context, call DialerCall, stage string, cause error) error {
	s.log.Error("recording acquisition failed", "provider", call.Provider, "callId", call.CallID, "stage", stage, "error", cause)
	s.eventBus.Publish(ctx, events.AcquisitionFailed{
		BaseEvent: events.NewBaseEvent(),
		Provider:  call.Provider,
		CallID:    call.CallID,
		Stage:     stage,
		Reason:    cause.Error(),
	})
	return apperr.Acquisition(stage, cause).WithDetails(map[string]string{
		"provider": call.Provider,
		"call_id":  call.CallID,
		"stage":    stage,
	})
}

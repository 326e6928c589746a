// Package service implements recording acquisition, manual upload and playback.
package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"valdi_backend/internal/adapters/storage"
	"valdi_backend/internal/events"
	"valdi_backend/internal/recordings/repository"
	"valdi_backend/platform/apperr"
	"valdi_backend/platform/logger"

	"github.com/google/uuid"
)

const (
	defaultMimeType    = "audio/mpeg"
	expiringSoonWindow = 7 * 24 * time.Hour
)

// Repository is the persistence the recordings service needs.
type Repository interface {
	FindByProviderCall(ctx context.Context, provider, callID string) (*repository.CallRecording, error)
	ResolveActiveCampaign(ctx context.Context, sdrID uuid.UUID) (repository.ActiveCampaign, error)
	ApprovedCampaign(ctx context.Context, sdrID, campaignID uuid.UUID) (repository.ActiveCampaign, error)
	MeetingOwnedBy(ctx context.Context, meetingID, sdrID, campaignID uuid.UUID) (bool, error)
	ResolveSDRID(ctx context.Context, userID uuid.UUID) (uuid.UUID, error)
	InsertIfAbsent(ctx context.Context, rec repository.CallRecording) (repository.CallRecording, bool, error)
	StoragePathReferenced(ctx context.Context, fileKey string) (bool, error)
	GetAccess(ctx context.Context, id uuid.UUID) (repository.RecordingAccess, error)
	GetExpirationStats(ctx context.Context, now time.Time, soonWindow time.Duration) (repository.ExpirationStats, error)
}

// Downloader fetches recording bytes from a provider.
type Downloader interface {
	Download(ctx context.Context, req DownloadRequest) ([]byte, error)
}

// ContactInfo is the counterpart metadata used to correlate a lead.
type ContactInfo struct {
	Name     string
	Email    string
	Phone    string
	CalledTo string
}

// OutreachAttempt records the call against the correlated lead.
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

// LeadCorrelator finds or creates the lead behind a call. Satisfied by an adapter over the leads service.
type LeadCorrelator interface {
	FindOrCreate(ctx context.Context, campaignID, companyID uuid.UUID, contact ContactInfo) (uuid.UUID, error)
	RecordOutreachAttempt(ctx context.Context, attempt OutreachAttempt) error
}

// TranscriptionQueue schedules post-call transcription.
type TranscriptionQueue interface {
	EnqueueTranscription(ctx context.Context, recordingID uuid.UUID) error
}

// Config carries the limits the service enforces.
type Config interface {
	GetRecordingMaxBytes() int64
	GetUploadTimeout() time.Duration
	GetAcquisitionMaxAttempts() int
	GetAcquisitionBackoff() time.Duration
	GetRecordingURLTTL() time.Duration
	GetRetentionPeriod() time.Duration
}

// Service coordinates storage, persistence and lead correlation for recordings.
type Service struct {
	repo       Repository
	storage    storage.StorageService
	bucket     string
	downloader Downloader
	leads      LeadCorrelator
	queue      TranscriptionQueue
	eventBus   events.Bus
	cfg        Config
	log        *logger.Logger
	now        func() time.Time
}

// New creates a new recordings service.
func New(repo Repository, storageSvc storage.StorageService, bucket string, downloader Downloader, leads LeadCorrelator, eventBus events.Bus, cfg Config, log *logger.Logger) *Service {
	return &Service{
		repo:       repo,
		storage:    storageSvc,
		bucket:     bucket,
		downloader: downloader,
		leads:      leads,
		eventBus:   eventBus,
		cfg:        cfg,
		log:        log,
		now:        time.Now,
	}
}

// SetTranscriptionQueue wires the task queue after construction (optional in the API process).
func (s *Service) SetTranscriptionQueue(queue TranscriptionQueue) {
	s.queue = queue
}

// UploadInput is a manually uploaded recording.
type UploadInput struct {
	CampaignID  uuid.UUID
	MeetingID   *uuid.UUID
	FileName    string
	ContentType string
	Size        int64
	Reader      io.Reader
}

// Upload stores a recording uploaded by an SDR and persists its row.
func (s *Service) Upload(ctx context.Context, userID uuid.UUID, in UploadInput) (repository.CallRecording, error) {
	if err := storage.ValidateContentType(in.ContentType); err != nil {
		return repository.CallRecording{}, apperr.Validation(err.Error())
	}
	if err := storage.ValidateFileSize(in.Size, s.cfg.GetRecordingMaxBytes()); err != nil {
		return repository.CallRecording{}, apperr.Validation(err.Error())
	}

	sdrID, err := s.repo.ResolveSDRID(ctx, userID)
	if err != nil {
		return repository.CallRecording{}, err
	}
	campaign, err := s.repo.ApprovedCampaign(ctx, sdrID, in.CampaignID)
	if err != nil {
		return repository.CallRecording{}, err
	}
	if in.MeetingID != nil {
		owned, err := s.repo.MeetingOwnedBy(ctx, *in.MeetingID, sdrID, campaign.CampaignID)
		if err != nil {
			return repository.CallRecording{}, err
		}
		if !owned {
			return repository.CallRecording{}, apperr.NotFound("meeting not found")
		}
	}

	contentType := storage.NormalizeContentType(in.ContentType)
	fileKey := fmt.Sprintf("%s/%s/upload-%s%s", sdrID, campaign.CampaignID, uuid.New(), storage.ExtensionForContentType(contentType))

	data, err := io.ReadAll(io.LimitReader(in.Reader, s.cfg.GetRecordingMaxBytes()+1))
	if err != nil {
		return repository.CallRecording{}, apperr.BadRequest("failed to read upload")
	}
	if int64(len(data)) > s.cfg.GetRecordingMaxBytes() {
		return repository.CallRecording{}, apperr.Validation("file exceeds maximum allowed size")
	}

	if err := s.putObject(ctx, fileKey, contentType, data); err != nil {
		return repository.CallRecording{}, apperr.Acquisition("upload", err)
	}

	now := s.now().UTC()
	rec, _, err := s.repo.InsertIfAbsent(ctx, repository.CallRecording{
		MeetingID:     in.MeetingID,
		SDRID:         sdrID,
		CampaignID:    campaign.CampaignID,
		StoragePath:   &fileKey,
		FileName:      in.FileName,
		FileSize:      int64(len(data)),
		MimeType:      contentType,
		AutoDeletedAt: now.Add(s.cfg.GetRetentionPeriod()),
		UploadedAt:    now,
	})
	if err != nil {
		s.compensate(ctx, fileKey, contentType, data)
		return repository.CallRecording{}, apperr.Acquisition("insert", err)
	}

	s.enqueueTranscription(ctx, rec.ID)
	return rec, nil
}

// AudioURL returns a short-lived download link for callers entitled to the recording.
func (s *Service) AudioURL(ctx context.Context, userID uuid.UUID, isAdmin bool, recordingID uuid.UUID) (*storage.PresignedURL, error) {
	access, err := s.repo.GetAccess(ctx, recordingID)
	if err != nil {
		return nil, err
	}
	if !isAdmin && userID != access.SDRUserID && userID != access.CompanyUserID {
		return nil, apperr.Forbidden("not allowed to access this recording")
	}
	if access.Recording.StoragePath == nil {
		return nil, apperr.Gone("recording was deleted under the retention policy")
	}

	url, err := s.storage.GenerateDownloadURL(ctx, s.bucket, *access.Recording.StoragePath, s.cfg.GetRecordingURLTTL())
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "failed to sign recording url", err)
	}
	return url, nil
}

// ExpirationStats reports how many stored recordings are near or past their deadline.
func (s *Service) ExpirationStats(ctx context.Context) (repository.ExpirationStats, error) {
	return s.repo.GetExpirationStats(ctx, s.now().UTC(), expiringSoonWindow)
}

func (s *Service) putObject(ctx context.Context, fileKey, contentType string, data []byte) error {
	return withRetry(ctx, s.cfg.GetAcquisitionMaxAttempts(), s.cfg.GetAcquisitionBackoff(), func(ctx context.Context) error {
		attemptCtx, cancel := context.WithTimeout(ctx, s.cfg.GetUploadTimeout())
		defer cancel()
		return s.storage.PutObject(attemptCtx, s.bucket, fileKey, contentType, bytes.NewReader(data), int64(len(data)))
	})
}

// compensate deletes an uploaded object whose row could not be written,
// unless another row already points at the same key. Dialer keys are shared by
// redeliveries, so a row committed between the check and the delete gets its
// object put back from data.
func (s *Service) compensate(ctx context.Context, fileKey, contentType string, data []byte) {
	ctx = context.WithoutCancel(ctx)
	referenced, err := s.repo.StoragePathReferenced(ctx, fileKey)
	if err != nil {
		s.log.Error("compensating delete skipped: reference check failed", "fileKey", fileKey, "error", err)
		return
	}
	if referenced {
		s.log.Info("compensating delete skipped: object referenced by another row", "fileKey", fileKey)
		return
	}
	if err := s.storage.DeleteObject(ctx, s.bucket, fileKey); err != nil {
		s.log.Error("compensating delete failed, object orphaned", "fileKey", fileKey, "error", err)
		return
	}

	referenced, err = s.repo.StoragePathReferenced(ctx, fileKey)
	if err != nil || referenced {
		if putErr := s.putObject(ctx, fileKey, contentType, data); putErr != nil {
			s.log.Error("failed to restore object after compensating delete", "fileKey", fileKey, "error", putErr)
			return
		}
		s.log.Warn("object restored after compensating delete raced a concurrent insert", "fileKey", fileKey, "checkError", err)
		return
	}
	s.log.Info("compensating delete completed", "fileKey", fileKey)
}

func (s *Service) enqueueTranscription(ctx context.Context, recordingID uuid.UUID) {
	if s.queue == nil {
		return
	}
	if err := s.queue.EnqueueTranscription(ctx, recordingID); err != nil {
		s.log.Warn("failed to enqueue transcription", "recordingId", recordingID, "error", err)
	}
}

package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"valdi_backend/platform/apperr"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// CallRecording represents the call_recordings database model
type CallRecording struct {
	ID                  uuid.UUID  `db:"id"`
	MeetingID           *uuid.UUID `db:"meeting_id"`
	SDRID               uuid.UUID  `db:"sdr_id"`
	CampaignID          uuid.UUID  `db:"campaign_id"`
	LeadID              *uuid.UUID `db:"lead_id"`
	StoragePath         *string    `db:"storage_path"`
	FileName            string     `db:"file_name"`
	FileSize            int64      `db:"file_size"`
	MimeType            string     `db:"mime_type"`
	DurationSeconds     int        `db:"duration_seconds"`
	TranscriptionStatus string     `db:"transcription_status"`
	DialerProvider      *string    `db:"dialer_provider"`
	DialerCallID        *string    `db:"dialer_call_id"`
	DialerIntegrationID *uuid.UUID `db:"dialer_integration_id"`
	AutoDeletedAt       time.Time  `db:"auto_deleted_at"`
	UploadedAt          time.Time  `db:"uploaded_at"`
}

// ActiveCampaign is the campaign a rep currently works for.
type ActiveCampaign struct {
	CampaignID uuid.UUID
	CompanyID  uuid.UUID
}

// RecordingAccess pairs a recording with the users allowed to play it back.
type RecordingAccess struct {
	Recording     CallRecording
	SDRUserID     uuid.UUID
	CompanyUserID uuid.UUID
}

// ExpirationStats summarizes recordings still holding media.
type ExpirationStats struct {
	Total        int
	ExpiringSoon int
	Expired      int
}

// Repository provides database operations for call recordings
type Repository struct {
	pool *pgxpool.Pool
}

const recordingNotFoundMsg = "recording not found"

const recordingColumns = `id, meeting_id, sdr_id, campaign_id, lead_id, storage_path, file_name, file_size,
	mime_type, duration_seconds, transcription_status, dialer_provider, dialer_call_id,
	dialer_integration_id, auto_deleted_at, uploaded_at`

// New creates a new recordings repository
func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func scanRecording(row pgx.Row) (CallRecording, error) {
	var rec CallRecording
	err := row.Scan(
		&rec.ID, &rec.MeetingID, &rec.SDRID, &rec.CampaignID, &rec.LeadID, &rec.StoragePath,
		&rec.FileName, &rec.FileSize, &rec.MimeType, &rec.DurationSeconds, &rec.TranscriptionStatus,
		&rec.DialerProvider, &rec.DialerCallID, &rec.DialerIntegrationID, &rec.AutoDeletedAt, &rec.UploadedAt,
	)
	return rec, err
}

// FindByProviderCall returns the recording for an external call, if one was stored.
func (r *Repository) FindByProviderCall(ctx context.Context, provider, callID string) (*CallRecording, error) {
	rec, err := scanRecording(r.pool.QueryRow(ctx, `
		SELECT `+recordingColumns+`
		FROM call_recordings
		WHERE dialer_provider = $1 AND dialer_call_id = $2
	`, provider, callID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find recording by provider call: %w", err)
	}
	return &rec, nil
}

// ResolveActiveCampaign returns the rep's most recently approved campaign application.
func (r *Repository) ResolveActiveCampaign(ctx context.Context, sdrID uuid.UUID) (ActiveCampaign, error) {
	var ac ActiveCampaign
	err := r.pool.QueryRow(ctx, `
		SELECT ca.campaign_id, c.company_id
		FROM campaign_applications ca
		JOIN campaigns c ON c.id = ca.campaign_id
		WHERE ca.sdr_id = $1 AND ca.status = 'approved'
		ORDER BY ca.created_at DESC
		LIMIT 1
	`, sdrID).Scan(&ac.CampaignID, &ac.CompanyID)
	if errors.Is(err, pgx.ErrNoRows) {
		return ActiveCampaign{}, apperr.NoActiveCampaign("no active campaign found")
	}
	if err != nil {
		return ActiveCampaign{}, fmt.Errorf("failed to resolve active campaign: %w", err)
	}
	return ac, nil
}

// ApprovedCampaign checks that sdrID has an approved application to campaignID.
func (r *Repository) ApprovedCampaign(ctx context.Context, sdrID, campaignID uuid.UUID) (ActiveCampaign, error) {
	var ac ActiveCampaign
	err := r.pool.QueryRow(ctx, `
		SELECT ca.campaign_id, c.company_id
		FROM campaign_applications ca
		JOIN campaigns c ON c.id = ca.campaign_id
		WHERE ca.sdr_id = $1 AND ca.campaign_id = $2 AND ca.status = 'approved'
	`, sdrID, campaignID).Scan(&ac.CampaignID, &ac.CompanyID)
	if errors.Is(err, pgx.ErrNoRows) {
		return ActiveCampaign{}, apperr.Forbidden("not approved for this campaign")
	}
	if err != nil {
		return ActiveCampaign{}, fmt.Errorf("failed to check campaign application: %w", err)
	}
	return ac, nil
}

// MeetingOwnedBy reports whether meetingID was logged by sdrID for campaignID.
func (r *Repository) MeetingOwnedBy(ctx context.Context, meetingID, sdrID, campaignID uuid.UUID) (bool, error) {
	var ok bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM meetings WHERE id = $1 AND sdr_id = $2 AND campaign_id = $3)
	`, meetingID, sdrID, campaignID).Scan(&ok)
	if err != nil {
		return false, fmt.Errorf("failed to check meeting ownership: %w", err)
	}
	return ok, nil
}

// ResolveSDRID maps an authenticated user to their SDR profile.
func (r *Repository) ResolveSDRID(ctx context.Context, userID uuid.UUID) (uuid.UUID, error) {
	var sdrID uuid.UUID
	err := r.pool.QueryRow(ctx, `SELECT id FROM sdrs WHERE user_id = $1`, userID).Scan(&sdrID)
	if errors.Is(err, pgx.ErrNoRows) {
		return uuid.Nil, apperr.Forbidden("sdr profile required")
	}
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to resolve sdr: %w", err)
	}
	return sdrID, nil
}

// InsertIfAbsent inserts rec unless a row for the same provider call exists.
// inserted is false when the uniqueness constraint absorbed the insert.
func (r *Repository) InsertIfAbsent(ctx context.Context, rec CallRecording) (CallRecording, bool, error) {
	stored, err := scanRecording(r.pool.QueryRow(ctx, `
		INSERT INTO call_recordings (
			meeting_id, sdr_id, campaign_id, lead_id, storage_path, file_name, file_size, mime_type,
			duration_seconds, transcription_status, dialer_provider, dialer_call_id,
			dialer_integration_id, auto_deleted_at, uploaded_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, 'pending', $10, $11, $12, $13, $14)
		ON CONFLICT (dialer_provider, dialer_call_id) DO NOTHING
		RETURNING `+recordingColumns,
		rec.MeetingID, rec.SDRID, rec.CampaignID, rec.LeadID, rec.StoragePath, rec.FileName,
		rec.FileSize, rec.MimeType, rec.DurationSeconds, rec.DialerProvider, rec.DialerCallID,
		rec.DialerIntegrationID, rec.AutoDeletedAt, rec.UploadedAt,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return CallRecording{}, false, nil
	}
	if err != nil {
		return CallRecording{}, false, fmt.Errorf("failed to insert recording: %w", err)
	}
	return stored, true, nil
}

// StoragePathReferenced reports whether any row points at fileKey.
func (r *Repository) StoragePathReferenced(ctx context.Context, fileKey string) (bool, error) {
	var ok bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM call_recordings WHERE storage_path = $1)
	`, fileKey).Scan(&ok)
	if err != nil {
		return false, fmt.Errorf("failed to check storage path reference: %w", err)
	}
	return ok, nil
}

// GetAccess loads a recording with the users entitled to it.
func (r *Repository) GetAccess(ctx context.Context, id uuid.UUID) (RecordingAccess, error) {
	var access RecordingAccess
	rec := &access.Recording
	err := r.pool.QueryRow(ctx, `
		SELECT cr.id, cr.meeting_id, cr.sdr_id, cr.campaign_id, cr.lead_id, cr.storage_path, cr.file_name,
			cr.file_size, cr.mime_type, cr.duration_seconds, cr.transcription_status, cr.dialer_provider,
			cr.dialer_call_id, cr.dialer_integration_id, cr.auto_deleted_at, cr.uploaded_at,
			s.user_id, co.user_id
		FROM call_recordings cr
		JOIN sdrs s ON s.id = cr.sdr_id
		JOIN campaigns c ON c.id = cr.campaign_id
		JOIN companies co ON co.id = c.company_id
		WHERE cr.id = $1
	`, id).Scan(
		&rec.ID, &rec.MeetingID, &rec.SDRID, &rec.CampaignID, &rec.LeadID, &rec.StoragePath,
		&rec.FileName, &rec.FileSize, &rec.MimeType, &rec.DurationSeconds, &rec.TranscriptionStatus,
		&rec.DialerProvider, &rec.DialerCallID, &rec.DialerIntegrationID, &rec.AutoDeletedAt, &rec.UploadedAt,
		&access.SDRUserID, &access.CompanyUserID,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return RecordingAccess{}, apperr.NotFound(recordingNotFoundMsg)
	}
	if err != nil {
		return RecordingAccess{}, fmt.Errorf("failed to load recording: %w", err)
	}
	return access, nil
}

// GetExpirationStats counts recordings that still hold media, split by retention deadline.
func (r *Repository) GetExpirationStats(ctx context.Context, now time.Time, soonWindow time.Duration) (ExpirationStats, error) {
	var stats ExpirationStats
	err := r.pool.QueryRow(ctx, `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE auto_deleted_at > $1 AND auto_deleted_at <= $2),
			COUNT(*) FILTER (WHERE auto_deleted_at <= $1)
		FROM call_recordings
		WHERE storage_path IS NOT NULL
	`, now, now.Add(soonWindow)).Scan(&stats.Total, &stats.ExpiringSoon, &stats.Expired)
	if err != nil {
		return ExpirationStats{}, fmt.Errorf("failed to compute expiration stats: %w", err)
	}
	return stats, nil
}

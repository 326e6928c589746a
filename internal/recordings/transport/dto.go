package transport

import (
	"time"

	"valdi_backend/internal/recordings/repository"

	"github.com/google/uuid"
)

// UploadRecordingRequest carries the multipart form fields of a manual upload.
type UploadRecordingRequest struct {
	CampaignID string `form:"campaignId" validate:"required,uuid"`
	MeetingID  string `form:"meetingId" validate:"omitempty,uuid"`
}

// RecordingResponse is the public view of a call recording.
type RecordingResponse struct {
	ID                  uuid.UUID  `json:"id"`
	MeetingID           *uuid.UUID `json:"meetingId,omitempty"`
	SDRID               uuid.UUID  `json:"sdrId"`
	CampaignID          uuid.UUID  `json:"campaignId"`
	LeadID              *uuid.UUID `json:"leadId,omitempty"`
	FileName            string     `json:"fileName"`
	FileSize            int64      `json:"fileSize"`
	MimeType            string     `json:"mimeType"`
	DurationSeconds     int        `json:"durationSeconds"`
	TranscriptionStatus string     `json:"transcriptionStatus"`
	DialerProvider      *string    `json:"dialerProvider,omitempty"`
	HasMedia            bool       `json:"hasMedia"`
	AutoDeletedAt       time.Time  `json:"autoDeletedAt"`
	UploadedAt          time.Time  `json:"uploadedAt"`
}

// AudioURLResponse is a short-lived playback link.
type AudioURLResponse struct {
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// ExpirationStatsResponse mirrors the retention dashboard counters.
type ExpirationStatsResponse struct {
	Total        int `json:"total"`
	ExpiringSoon int `json:"expiringSoon"`
	Expired      int `json:"expired"`
}

// ToRecordingResponse maps a stored recording to its response.
func ToRecordingResponse(rec repository.CallRecording) RecordingResponse {
	return RecordingResponse{
		ID:                  rec.ID,
		MeetingID:           rec.MeetingID,
		SDRID:               rec.SDRID,
		CampaignID:          rec.CampaignID,
		LeadID:              rec.LeadID,
		FileName:            rec.FileName,
		FileSize:            rec.FileSize,
		MimeType:            rec.MimeType,
		DurationSeconds:     rec.DurationSeconds,
		TranscriptionStatus: rec.TranscriptionStatus,
		DialerProvider:      rec.DialerProvider,
		HasMedia:            rec.StoragePath != nil,
		AutoDeletedAt:       rec.AutoDeletedAt,
		UploadedAt:          rec.UploadedAt,
	}
}

package transport

import (
	"valdi_backend/internal/scoring/domain"

	"github.com/google/uuid"
)

// ScoreRequest is the body of POST /admin/scoring. One of the ids is required.
type ScoreRequest struct {
	CallRecordingID *string `json:"call_recording_id" validate:"omitempty,uuid"`
	MeetingID       *string `json:"meeting_id" validate:"omitempty,uuid"`
}

// ScoreResponse reports a persisted qualification score.
type ScoreResponse struct {
	ScoreID uuid.UUID                 `json:"score_id"`
	Score   domain.QualificationScore `json:"score"`
}

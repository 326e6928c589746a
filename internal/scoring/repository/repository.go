// Package repository loads scoring inputs and appends AI score rows.
package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"valdi_backend/platform/apperr"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ScoreTypeQualification is the score_type written by qualification scoring.
const ScoreTypeQualification = "qualification"

// Subject is everything needed to score one recording.
type Subject struct {
	RecordingID uuid.UUID
	MeetingID   *uuid.UUID
	SDRID       uuid.UUID
	Transcript  *string
	CriteriaRaw []byte
	Threshold   *float64
}

// AIScore represents the ai_scores database model
type AIScore struct {
	ID              uuid.UUID
	CallRecordingID *uuid.UUID
	MeetingID       *uuid.UUID
	SDRID           uuid.UUID
	ScoreType       string
	ScoreValue      float64
	ScoreDetails    json.RawMessage
	AIModel         string
	CreatedAt       time.Time
}

// Repository provides database operations for AI scores
type Repository struct {
	pool *pgxpool.Pool
}

// New creates a new scoring repository
func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const subjectQuery = `
	SELECT cr.id, cr.meeting_id, cr.sdr_id, cr.transcription, c.qualification_criteria, c.qualification_threshold::float8
	FROM call_recordings cr
	JOIN campaigns c ON c.id = cr.campaign_id`

func (r *Repository) scanSubject(row pgx.Row) (Subject, error) {
	var s Subject
	err := row.Scan(&s.RecordingID, &s.MeetingID, &s.SDRID, &s.Transcript, &s.CriteriaRaw, &s.Threshold)
	return s, err
}

// RecordingSubject loads the scoring inputs of a recording.
func (r *Repository) RecordingSubject(ctx context.Context, recordingID uuid.UUID) (Subject, error) {
	s, err := r.scanSubject(r.pool.QueryRow(ctx, subjectQuery+` WHERE cr.id = $1`, recordingID))
	if errors.Is(err, pgx.ErrNoRows) {
		return Subject{}, apperr.NotFound("recording not found")
	}
	if err != nil {
		return Subject{}, fmt.Errorf("failed to load recording for scoring: %w", err)
	}
	return s, nil
}

// MeetingSubject loads the latest transcribed recording linked to a meeting.
func (r *Repository) MeetingSubject(ctx context.Context, meetingID uuid.UUID) (Subject, error) {
	var exists bool
	if err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM meetings WHERE id = $1)`, meetingID).Scan(&exists); err != nil {
		return Subject{}, fmt.Errorf("failed to check meeting: %w", err)
	}
	if !exists {
		return Subject{}, apperr.NotFound("meeting not found")
	}

	s, err := r.scanSubject(r.pool.QueryRow(ctx, subjectQuery+`
		WHERE cr.meeting_id = $1 AND cr.transcription IS NOT NULL
		ORDER BY cr.uploaded_at DESC
		LIMIT 1
	`, meetingID))
	if errors.Is(err, pgx.ErrNoRows) {
		return Subject{}, apperr.Validation("meeting has no transcribed recording to score")
	}
	if err != nil {
		return Subject{}, fmt.Errorf("failed to load meeting for scoring: %w", err)
	}
	s.MeetingID = &meetingID
	return s, nil
}

// InsertScore appends an AI score row.
func (r *Repository) InsertScore(ctx context.Context, score AIScore) (AIScore, error) {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO ai_scores (call_recording_id, meeting_id, sdr_id, score_type, score_value, score_details, ai_model)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at
	`, score.CallRecordingID, score.MeetingID, score.SDRID, score.ScoreType, score.ScoreValue,
		score.ScoreDetails, score.AIModel,
	).Scan(&score.ID, &score.CreatedAt)
	if err != nil {
		return AIScore{}, fmt.Errorf("failed to insert ai score: %w", err)
	}
	return score, nil
}

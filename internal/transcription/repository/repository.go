// Package repository owns the transcription columns of call_recordings.
package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// Job is a recording claimed for transcription.
type Job struct {
	RecordingID uuid.UUID
	StoragePath string
	MimeType    string
}

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Claim moves a pending or failed recording with audio to processing and stamps
// transcription_started_at. A processing row whose claim is older than lease is
// taken over, since the worker that held it is gone.
// It returns false when the recording is already transcribed, held by a live claim, or redacted.
func (r *Repository) Claim(ctx context.Context, recordingID uuid.UUID, lease time.Duration) (Job, bool, error) {
	job := Job{RecordingID: recordingID}
	err := r.pool.QueryRow(ctx, `
		UPDATE call_recordings
		SET transcription_status = $2, transcription_started_at = now()
		WHERE id = $1
		  AND storage_path IS NOT NULL
		  AND (
		    transcription_status IN ($3, $4)
		    OR (transcription_status = $2
		        AND (transcription_started_at IS NULL
		             OR transcription_started_at < now() - $5::float8 * interval '1 second'))
		  )
		RETURNING storage_path, mime_type
	`, recordingID, StatusProcessing, StatusPending, StatusFailed, lease.Seconds()).Scan(&job.StoragePath, &job.MimeType)
	if errors.Is(err, pgx.ErrNoRows) {
		return Job{}, false, nil
	}
	if err != nil {
		return Job{}, false, fmt.Errorf("failed to claim recording for transcription: %w", err)
	}
	return job, true, nil
}

// Complete stores the transcript. A recording redacted in the meantime stays redacted.
func (r *Repository) Complete(ctx context.Context, recordingID uuid.UUID, transcript string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE call_recordings
		SET transcription = $2, transcription_status = $3
		WHERE id = $1 AND storage_path IS NOT NULL
	`, recordingID, transcript, StatusCompleted)
	if err != nil {
		return fmt.Errorf("failed to store transcript: %w", err)
	}
	return nil
}

// Fail marks the recording so a later retry can claim it again.
func (r *Repository) Fail(ctx context.Context, recordingID uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE call_recordings SET transcription_status = $2 WHERE id = $1
	`, recordingID, StatusFailed)
	if err != nil {
		return fmt.Errorf("failed to mark transcription failed: %w", err)
	}
	return nil
}

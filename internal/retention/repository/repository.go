// Package repository reads and redacts call recordings whose retention deadline has passed.
package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// RedactedFileName replaces the original file name once the audio is gone.
const RedactedFileName = "[DELETED - GDPR Compliance]"

// ExpiredRecording is a recording that still references a stored object after its deadline.
type ExpiredRecording struct {
	ID          uuid.UUID
	StoragePath string
}

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ListExpired returns up to limit expired recordings ordered by id, strictly after afterID when set.
func (r *Repository) ListExpired(ctx context.Context, now time.Time, afterID *uuid.UUID, limit int) ([]ExpiredRecording, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, storage_path
		FROM call_recordings
		WHERE auto_deleted_at <= $1
		  AND storage_path IS NOT NULL
		  AND ($2::uuid IS NULL OR id > $2)
		ORDER BY id
		LIMIT $3
	`, now, afterID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list expired recordings: %w", err)
	}
	defer rows.Close()

	items := make([]ExpiredRecording, 0, limit)
	for rows.Next() {
		var item ExpiredRecording
		if err := rows.Scan(&item.ID, &item.StoragePath); err != nil {
			return nil, fmt.Errorf("failed to scan expired recording: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate expired recordings: %w", err)
	}
	return items, nil
}

// Redact clears the storage reference, file name and transcript of the given recordings.
// id, duration and the meeting link are kept.
func (r *Repository) Redact(ctx context.Context, ids []uuid.UUID) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	tag, err := r.pool.Exec(ctx, `
		UPDATE call_recordings
		SET storage_path = NULL,
			file_name = $2,
			transcription = NULL
		WHERE id = ANY($1)
		  AND storage_path IS NOT NULL
	`, ids, RedactedFileName)
	if err != nil {
		return 0, fmt.Errorf("failed to redact recordings: %w", err)
	}
	return tag.RowsAffected(), nil
}

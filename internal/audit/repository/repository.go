// Package repository persists the append-only audit trail.
package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Entry is one audit_logs row.
type Entry struct {
	ID           uuid.UUID       `json:"id"`
	UserID       *uuid.UUID      `json:"userId,omitempty"`
	ActionType   string          `json:"actionType"`
	ResourceType string          `json:"resourceType"`
	ResourceID   *uuid.UUID      `json:"resourceId,omitempty"`
	Changes      json.RawMessage `json:"changes"`
	CreatedAt    time.Time       `json:"createdAt"`
}

// ListFilter narrows ListEntries. Zero values match everything.
type ListFilter struct {
	ResourceType string
	ResourceID   *uuid.UUID
	UserID       *uuid.UUID
	Limit        int
}

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) Insert(ctx context.Context, entry Entry) error {
	changes := entry.Changes
	if len(changes) == 0 {
		changes = json.RawMessage(`{}`)
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO audit_logs (user_id, action_type, resource_type, resource_id, changes)
		VALUES ($1, $2, $3, $4, $5)
	`, entry.UserID, entry.ActionType, entry.ResourceType, entry.ResourceID, changes)
	if err != nil {
		return fmt.Errorf("failed to insert audit log: %w", err)
	}
	return nil
}

// ListEntries returns the newest entries first.
func (r *Repository) ListEntries(ctx context.Context, filter ListFilter) ([]Entry, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, user_id, action_type, resource_type, resource_id, changes, created_at
		FROM audit_logs
		WHERE ($1 = '' OR resource_type = $1)
		  AND ($2::uuid IS NULL OR resource_id = $2)
		  AND ($3::uuid IS NULL OR user_id = $3)
		ORDER BY created_at DESC
		LIMIT $4
	`, filter.ResourceType, filter.ResourceID, filter.UserID, filter.Limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit logs: %w", err)
	}
	defer rows.Close()

	entries := make([]Entry, 0)
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.UserID, &e.ActionType, &e.ResourceType, &e.ResourceID, &e.Changes, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan audit log: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate audit logs: %w", err)
	}
	return entries, nil
}

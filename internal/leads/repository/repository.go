// Package repository stores campaign leads and the outreach attempts made against them.
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

// Lead statuses the correlator writes.
const (
	StatusContacted = "contacted"
)

// Lead represents the leads database model
type Lead struct {
	ID         uuid.UUID `db:"id"`
	CampaignID uuid.UUID `db:"campaign_id"`
	CompanyID  uuid.UUID `db:"company_id"`
	FirstName  string    `db:"first_name"`
	LastName   string    `db:"last_name"`
	Email      *string   `db:"email"`
	Phone      *string   `db:"phone"`
	Status     string    `db:"status"`
	CreatedAt  time.Time `db:"created_at"`
}

// CreateLeadParams holds the fields of a lead created from a call.
type CreateLeadParams struct {
	CampaignID uuid.UUID
	CompanyID  uuid.UUID
	FirstName  string
	LastName   string
	Email      *string
	Phone      *string
	Status     string
}

// CreateOutreachAttemptParams holds one logged call attempt.
type CreateOutreachAttemptParams struct {
	LeadID              uuid.UUID
	SDRID               uuid.UUID
	CampaignID          uuid.UUID
	AttemptStatus       string
	DurationSeconds     int
	CallRecordingID     *uuid.UUID
	DialerCallID        *string
	DialerIntegrationID *uuid.UUID
	Notes               *string
}

// Repository provides database operations for leads
type Repository struct {
	pool *pgxpool.Pool
}

// New creates a new leads repository
func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// FindByPhone returns the oldest lead in the campaign whose phone matches one of the candidates.
func (r *Repository) FindByPhone(ctx context.Context, campaignID uuid.UUID, candidates []string) (*uuid.UUID, error) {
	return r.findOne(ctx, `
		SELECT id FROM leads
		WHERE campaign_id = $1 AND phone = ANY($2)
		ORDER BY created_at ASC
		LIMIT 1
	`, campaignID, candidates)
}

// FindByEmail returns the oldest lead in the campaign with the email, ignoring case.
func (r *Repository) FindByEmail(ctx context.Context, campaignID uuid.UUID, email string) (*uuid.UUID, error) {
	return r.findOne(ctx, `
		SELECT id FROM leads
		WHERE campaign_id = $1 AND lower(email) = lower($2)
		ORDER BY created_at ASC
		LIMIT 1
	`, campaignID, email)
}

func (r *Repository) findOne(ctx context.Context, query string, args ...any) (*uuid.UUID, error) {
	var id uuid.UUID
	err := r.pool.QueryRow(ctx, query, args...).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up lead: %w", err)
	}
	return &id, nil
}

// Create inserts a new lead
func (r *Repository) Create(ctx context.Context, params CreateLeadParams) (Lead, error) {
	var lead Lead
	err := r.pool.QueryRow(ctx, `
		INSERT INTO leads (campaign_id, company_id, first_name, last_name, email, phone, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, campaign_id, company_id, first_name, last_name, email, phone, status, created_at
	`, params.CampaignID, params.CompanyID, params.FirstName, params.LastName, params.Email, params.Phone, params.Status).Scan(
		&lead.ID, &lead.CampaignID, &lead.CompanyID, &lead.FirstName, &lead.LastName,
		&lead.Email, &lead.Phone, &lead.Status, &lead.CreatedAt,
	)
	if err != nil {
		return Lead{}, fmt.Errorf("failed to create lead: %w", err)
	}
	return lead, nil
}

// CreateOutreachAttempt logs a call attempt against a lead
func (r *Repository) CreateOutreachAttempt(ctx context.Context, params CreateOutreachAttemptParams) (uuid.UUID, error) {
	var id uuid.UUID
	err := r.pool.QueryRow(ctx, `
		INSERT INTO outreach_attempts (
			lead_id, sdr_id, campaign_id, attempt_type, attempt_status, duration_seconds,
			call_recording_id, dialer_call_id, dialer_integration_id, notes
		) VALUES ($1, $2, $3, 'call', $4, $5, $6, $7, $8, $9)
		RETURNING id
	`, params.LeadID, params.SDRID, params.CampaignID, params.AttemptStatus, params.DurationSeconds,
		params.CallRecordingID, params.DialerCallID, params.DialerIntegrationID, params.Notes,
	).Scan(&id)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to create outreach attempt: %w", err)
	}
	return id, nil
}

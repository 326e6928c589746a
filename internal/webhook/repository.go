// Package webhook provides the dialer webhook bounded context.
// It authenticates provider deliveries, normalizes them and manages SDR dialer integrations.
package webhook

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"valdi_backend/platform/apperr"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Integration is an SDR's binding to one dialer account.
type Integration struct {
	ID                  uuid.UUID
	SDRID               uuid.UUID
	Provider            string
	ProviderAccountID   string
	ProviderPhoneNumber *string
	WebhookSecret       *string
	AccessToken         *string
	IsActive            bool
	LastSyncAt          *time.Time
	Metadata            map[string]any
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// UpsertIntegrationParams carries the fields an SDR may set on an integration.
type UpsertIntegrationParams struct {
	SDRID               uuid.UUID
	Provider            string
	ProviderAccountID   string
	ProviderPhoneNumber *string
	WebhookSecret       string
	AccessToken         *string
	Metadata            map[string]any
}

// IntegrationStore is the data access the webhook service needs.
type IntegrationStore interface {
	FindActive(ctx context.Context, provider, accountKey string) (Integration, error)
	TouchLastSync(ctx context.Context, id uuid.UUID) error
	ResolveSDRID(ctx context.Context, userID uuid.UUID) (uuid.UUID, error)
	ListBySDR(ctx context.Context, sdrID uuid.UUID) ([]Integration, error)
	Upsert(ctx context.Context, params UpsertIntegrationParams) (Integration, error)
	Deactivate(ctx context.Context, id, sdrID uuid.UUID) error
}

// Repository provides data access for dialer integrations.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new webhook repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// GenerateWebhookSecret returns 32 random bytes hex encoded.
func GenerateWebhookSecret() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

const integrationColumns = `id, sdr_id, dialer_provider, COALESCE(provider_account_id, ''), provider_phone_number,
	webhook_secret, access_token, is_active, last_sync_at, metadata, created_at, updated_at`

func scanIntegration(row pgx.Row) (Integration, error) {
	var in Integration
	err := row.Scan(
		&in.ID, &in.SDRID, &in.Provider, &in.ProviderAccountID, &in.ProviderPhoneNumber,
		&in.WebhookSecret, &in.AccessToken, &in.IsActive, &in.LastSyncAt, &in.Metadata,
		&in.CreatedAt, &in.UpdatedAt,
	)
	return in, err
}

// FindActive returns the active integration matching provider and the account id or phone number.
func (r *Repository) FindActive(ctx context.Context, provider, accountKey string) (Integration, error) {
	if accountKey == "" {
		return Integration{}, apperr.NotFound("dialer integration not found")
	}
	in, err := scanIntegration(r.pool.QueryRow(ctx, `
		SELECT `+integrationColumns+`
		FROM dialer_integrations
		WHERE dialer_provider = $1
		  AND is_active = true
		  AND (provider_account_id = $2 OR provider_phone_number = $2)
		ORDER BY (provider_account_id = $2) DESC, updated_at DESC
		LIMIT 1
	`, provider, accountKey))
	if errors.Is(err, pgx.ErrNoRows) {
		return Integration{}, apperr.NotFound("dialer integration not found")
	}
	if err != nil {
		return Integration{}, fmt.Errorf("failed to load dialer integration: %w", err)
	}
	return in, nil
}

// TouchLastSync records a successful import.
func (r *Repository) TouchLastSync(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE dialer_integrations SET last_sync_at = now(), updated_at = now() WHERE id = $1
	`, id)
	if err != nil {
		return fmt.Errorf("failed to update last sync: %w", err)
	}
	return nil
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

// ListBySDR returns the SDR's active integrations, newest first.
func (r *Repository) ListBySDR(ctx context.Context, sdrID uuid.UUID) ([]Integration, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+integrationColumns+`
		FROM dialer_integrations
		WHERE sdr_id = $1 AND is_active = true
		ORDER BY created_at DESC
	`, sdrID)
	if err != nil {
		return nil, fmt.Errorf("failed to list dialer integrations: %w", err)
	}
	defer rows.Close()

	var out []Integration
	for rows.Next() {
		in, err := scanIntegration(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan dialer integration: %w", err)
		}
		out = append(out, in)
	}
	return out, rows.Err()
}

// Upsert creates or reactivates the integration keyed by (sdr, provider, account).
func (r *Repository) Upsert(ctx context.Context, p UpsertIntegrationParams) (Integration, error) {
	metadata := p.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}
	in, err := scanIntegration(r.pool.QueryRow(ctx, `
		INSERT INTO dialer_integrations (
			sdr_id, dialer_provider, provider_account_id, provider_phone_number,
			webhook_secret, access_token, metadata, is_active, last_sync_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, true, now())
		ON CONFLICT (sdr_id, dialer_provider, provider_account_id) DO UPDATE SET
			provider_phone_number = EXCLUDED.provider_phone_number,
			webhook_secret = EXCLUDED.webhook_secret,
			access_token = COALESCE(EXCLUDED.access_token, dialer_integrations.access_token),
			metadata = EXCLUDED.metadata,
			is_active = true,
			updated_at = now()
		RETURNING `+integrationColumns,
		p.SDRID, p.Provider, p.ProviderAccountID, p.ProviderPhoneNumber,
		p.WebhookSecret, p.AccessToken, metadata,
	))
	if err != nil {
		return Integration{}, fmt.Errorf("failed to upsert dialer integration: %w", err)
	}
	return in, nil
}

// Deactivate disables an integration owned by sdrID.
func (r *Repository) Deactivate(ctx context.Context, id, sdrID uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE dialer_integrations SET is_active = false, updated_at = now()
		WHERE id = $1 AND sdr_id = $2
	`, id, sdrID)
	if err != nil {
		return fmt.Errorf("failed to deactivate dialer integration: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("dialer integration not found")
	}
	return nil
}

var _ IntegrationStore = (*Repository)(nil)

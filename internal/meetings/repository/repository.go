// Package repository persists meetings, their reviews and disputes, and the status history.
// Every status write is version-checked and shares a transaction with its fact row.
package repository

import (
	"context"
	"errors"
	"fmt"

	"valdi_backend/internal/meetings/domain"
	"valdi_backend/platform/apperr"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const meetingColumns = `id, campaign_id, sdr_id, contact_name, contact_email, contact_phone, meeting_date,
	notes, qualification_checklist, status, rejection_reason, version, created_at, updated_at`

// Repository provides database operations for meetings
type Repository struct {
	pool *pgxpool.Pool
}

// New creates a new meetings repository
func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func scanMeeting(row pgx.Row) (Meeting, error) {
	var m Meeting
	var status string
	err := row.Scan(
		&m.ID, &m.CampaignID, &m.SDRID, &m.ContactName, &m.ContactEmail, &m.ContactPhone, &m.MeetingDate,
		&m.Notes, &m.QualificationChecklist, &status, &m.RejectionReason, &m.Version, &m.CreatedAt, &m.UpdatedAt,
	)
	m.Status = domain.Status(status)
	return m, err
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

// ApprovedCampaignCriteria returns the raw criteria of a campaign the SDR is approved for.
func (r *Repository) ApprovedCampaignCriteria(ctx context.Context, sdrID, campaignID uuid.UUID) ([]byte, error) {
	var raw []byte
	err := r.pool.QueryRow(ctx, `
		SELECT c.qualification_criteria
		FROM campaigns c
		JOIN campaign_applications ca ON ca.campaign_id = c.id
		WHERE c.id = $1 AND ca.sdr_id = $2 AND ca.status = 'approved'
	`, campaignID, sdrID).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.Forbidden("no approved application for this campaign")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load campaign criteria: %w", err)
	}
	return raw, nil
}

// Create inserts a meeting in status pending
func (r *Repository) Create(ctx context.Context, params CreateMeetingParams) (Meeting, error) {
	m, err := scanMeeting(r.pool.QueryRow(ctx, `
		INSERT INTO meetings (
			campaign_id, sdr_id, contact_name, contact_email, contact_phone, meeting_date, notes,
			qualification_checklist, status
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 'pending')
		RETURNING `+meetingColumns,
		params.CampaignID, params.SDRID, params.ContactName, params.ContactEmail, params.ContactPhone,
		params.MeetingDate, params.Notes, params.QualificationChecklist,
	))
	if err != nil {
		return Meeting{}, fmt.Errorf("failed to create meeting: %w", err)
	}
	return m, nil
}

// Get loads a meeting
func (r *Repository) Get(ctx context.Context, id uuid.UUID) (Meeting, error) {
	m, err := scanMeeting(r.pool.QueryRow(ctx, `SELECT `+meetingColumns+` FROM meetings WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Meeting{}, apperr.NotFound("meeting not found")
	}
	if err != nil {
		return Meeting{}, fmt.Errorf("failed to get meeting: %w", err)
	}
	return m, nil
}

// GetAccess returns the SDR and company users of a meeting.
func (r *Repository) GetAccess(ctx context.Context, id uuid.UUID) (MeetingAccess, error) {
	var access MeetingAccess
	err := r.pool.QueryRow(ctx, `
		SELECT s.user_id, co.user_id
		FROM meetings m
		JOIN sdrs s ON s.id = m.sdr_id
		JOIN campaigns c ON c.id = m.campaign_id
		JOIN companies co ON co.id = c.company_id
		WHERE m.id = $1
	`, id).Scan(&access.SDRUserID, &access.CompanyUserID)
	if errors.Is(err, pgx.ErrNoRows) {
		return MeetingAccess{}, apperr.NotFound("meeting not found")
	}
	if err != nil {
		return MeetingAccess{}, fmt.Errorf("failed to get meeting access: %w", err)
	}
	return access, nil
}

// HasOpenDispute reports whether any dispute on the meeting is still open or under review.
func (r *Repository) HasOpenDispute(ctx context.Context, meetingID uuid.UUID) (bool, error) {
	var open bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM disputes WHERE meeting_id = $1 AND status IN ('open', 'under_review'))
	`, meetingID).Scan(&open)
	if err != nil {
		return false, fmt.Errorf("failed to check open disputes: %w", err)
	}
	return open, nil
}

// RecordReview appends an admin review and its transition in one transaction.
func (r *Repository) RecordReview(ctx context.Context, w TransitionWrite, params ReviewParams) (AdminReview, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return AdminReview{}, fmt.Errorf("failed to begin review: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	review := AdminReview{
		MeetingID:          w.MeetingID,
		ReviewedBy:         w.ActorID,
		ReviewDecision:     params.Decision,
		ReviewNotes:        params.Notes,
		QualificationScore: params.QualificationScore,
		QualityScore:       params.QualityScore,
		CallRecordingID:    params.CallRecordingID,
	}
	err = tx.QueryRow(ctx, `
		INSERT INTO admin_reviews (
			meeting_id, reviewed_by, review_decision, review_notes, qualification_score, quality_score, call_recording_id
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at
	`, w.MeetingID, w.ActorID, string(params.Decision), params.Notes, params.QualificationScore,
		params.QualityScore, params.CallRecordingID,
	).Scan(&review.ID, &review.CreatedAt)
	if err != nil {
		return AdminReview{}, fmt.Errorf("failed to insert review: %w", err)
	}

	if err := applyTransition(ctx, tx, w, &review.ID); err != nil {
		return AdminReview{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return AdminReview{}, fmt.Errorf("failed to commit review: %w", err)
	}
	return review, nil
}

// RecordApproval writes a company approval transition.
func (r *Repository) RecordApproval(ctx context.Context, w TransitionWrite) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("failed to begin approval: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := applyTransition(ctx, tx, w, nil); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit approval: %w", err)
	}
	return nil
}

// OpenDispute appends a dispute and forces the meeting into disputed.
func (r *Repository) OpenDispute(ctx context.Context, w TransitionWrite, params DisputeParams) (Dispute, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Dispute{}, fmt.Errorf("failed to begin dispute: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	d, err := scanDispute(tx.QueryRow(ctx, `
		INSERT INTO disputes (meeting_id, raised_by, dispute_type, reason, status)
		VALUES ($1, $2, $3, $4, 'open')
		RETURNING `+disputeColumns,
		w.MeetingID, w.ActorID, params.DisputeType, params.Reason,
	))
	if err != nil {
		return Dispute{}, fmt.Errorf("failed to insert dispute: %w", err)
	}

	if err := applyTransition(ctx, tx, w, &d.ID); err != nil {
		return Dispute{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return Dispute{}, fmt.Errorf("failed to commit dispute: %w", err)
	}
	return d, nil
}

// ResolveDispute closes an open dispute. The meeting status is left as is.
func (r *Repository) ResolveDispute(ctx context.Context, w TransitionWrite, params ResolveParams) (Dispute, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Dispute{}, fmt.Errorf("failed to begin resolution: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	d, err := scanDispute(tx.QueryRow(ctx, `
		UPDATE disputes
		SET status = $2, resolution = $3, resolved_by = $4, resolved_at = now()
		WHERE id = $1 AND status IN ('open', 'under_review')
		RETURNING `+disputeColumns,
		params.DisputeID, params.Status, params.Resolution, w.ActorID,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return Dispute{}, apperr.Conflict("dispute is already closed")
	}
	if err != nil {
		return Dispute{}, fmt.Errorf("failed to resolve dispute: %w", err)
	}

	if err := applyTransition(ctx, tx, w, &d.ID); err != nil {
		return Dispute{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return Dispute{}, fmt.Errorf("failed to commit resolution: %w", err)
	}
	return d, nil
}

// GetDispute loads a dispute
func (r *Repository) GetDispute(ctx context.Context, id uuid.UUID) (Dispute, error) {
	d, err := scanDispute(r.pool.QueryRow(ctx, `SELECT `+disputeColumns+` FROM disputes WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Dispute{}, apperr.NotFound("dispute not found")
	}
	if err != nil {
		return Dispute{}, fmt.Errorf("failed to get dispute: %w", err)
	}
	return d, nil
}

// ListDisputes returns the disputes of a meeting, oldest first.
func (r *Repository) ListDisputes(ctx context.Context, meetingID uuid.UUID) ([]Dispute, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+disputeColumns+` FROM disputes WHERE meeting_id = $1 ORDER BY created_at ASC
	`, meetingID)
	if err != nil {
		return nil, fmt.Errorf("failed to list disputes: %w", err)
	}
	defer rows.Close()

	disputes := []Dispute{}
	for rows.Next() {
		d, err := scanDispute(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan dispute: %w", err)
		}
		disputes = append(disputes, d)
	}
	return disputes, rows.Err()
}

// ListHistory returns every transition attempt on a meeting, oldest first.
func (r *Repository) ListHistory(ctx context.Context, meetingID uuid.UUID) ([]HistoryEntry, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, meeting_id, from_status, to_status, trigger, actor_id, applied, reference_id, created_at
		FROM meeting_status_history
		WHERE meeting_id = $1
		ORDER BY created_at ASC, id ASC
	`, meetingID)
	if err != nil {
		return nil, fmt.Errorf("failed to list meeting history: %w", err)
	}
	defer rows.Close()

	entries := []HistoryEntry{}
	for rows.Next() {
		var e HistoryEntry
		var from, to, trigger string
		if err := rows.Scan(&e.ID, &e.MeetingID, &from, &to, &trigger, &e.ActorID, &e.Applied, &e.ReferenceID, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan meeting history: %w", err)
		}
		e.FromStatus, e.ToStatus, e.Trigger = domain.Status(from), domain.Status(to), domain.Trigger(trigger)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

const disputeColumns = `id, meeting_id, raised_by, dispute_type, reason, status, resolution, resolved_by, resolved_at, created_at`

func scanDispute(row pgx.Row) (Dispute, error) {
	var d Dispute
	err := row.Scan(&d.ID, &d.MeetingID, &d.RaisedBy, &d.DisputeType, &d.Reason, &d.Status,
		&d.Resolution, &d.ResolvedBy, &d.ResolvedAt, &d.CreatedAt)
	return d, err
}

// applyTransition performs the version-checked status update (when the attempt
// applies) and appends the history row. A lost race returns domain.ErrStaleVersion.
func applyTransition(ctx context.Context, tx pgx.Tx, w TransitionWrite, referenceID *uuid.UUID) error {
	t := w.Transition
	if t.Applied {
		tag, err := tx.Exec(ctx, `
			UPDATE meetings
			SET status = $3,
				rejection_reason = CASE WHEN $4::boolean THEN $5 ELSE rejection_reason END,
				version = version + 1,
				updated_at = now()
			WHERE id = $1 AND version = $2
		`, w.MeetingID, w.ExpectedVersion, string(t.To), w.SetRejectionReason, w.RejectionReason)
		if err != nil {
			return fmt.Errorf("failed to update meeting status: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return domain.ErrStaleVersion
		}
	}

	_, err := tx.Exec(ctx, `
		INSERT INTO meeting_status_history (meeting_id, from_status, to_status, trigger, actor_id, applied, reference_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, w.MeetingID, string(t.From), string(t.To), string(t.Trigger), w.ActorID, t.Applied, referenceID)
	if err != nil {
		return fmt.Errorf("failed to insert meeting history: %w", err)
	}
	return nil
}

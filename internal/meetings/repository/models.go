package repository

import (
	"time"

	"valdi_backend/internal/meetings/domain"

	"github.com/google/uuid"
)

// Meeting represents the meetings database model
type Meeting struct {
	ID                     uuid.UUID
	CampaignID             uuid.UUID
	SDRID                  uuid.UUID
	ContactName            string
	ContactEmail           *string
	ContactPhone           *string
	MeetingDate            time.Time
	Notes                  *string
	QualificationChecklist []bool
	Status                 domain.Status
	RejectionReason        *string
	Version                int
	CreatedAt              time.Time
	UpdatedAt              time.Time
}

// MeetingAccess names the users entitled to a meeting besides admins.
type MeetingAccess struct {
	SDRUserID     uuid.UUID
	CompanyUserID uuid.UUID
}

// CreateMeetingParams holds the fields of a new meeting.
type CreateMeetingParams struct {
	CampaignID             uuid.UUID
	SDRID                  uuid.UUID
	ContactName            string
	ContactEmail           *string
	ContactPhone           *string
	MeetingDate            time.Time
	Notes                  *string
	QualificationChecklist []bool
}

// AdminReview is an immutable review record.
type AdminReview struct {
	ID                 uuid.UUID
	MeetingID          uuid.UUID
	ReviewedBy         uuid.UUID
	ReviewDecision     domain.ReviewDecision
	ReviewNotes        *string
	QualificationScore *float64
	QualityScore       *float64
	CallRecordingID    *uuid.UUID
	CreatedAt          time.Time
}

// Dispute represents the disputes database model
type Dispute struct {
	ID          uuid.UUID
	MeetingID   uuid.UUID
	RaisedBy    uuid.UUID
	DisputeType string
	Reason      string
	Status      string
	Resolution  *string
	ResolvedBy  *uuid.UUID
	ResolvedAt  *time.Time
	CreatedAt   time.Time
}

// HistoryEntry is one row of meeting_status_history.
type HistoryEntry struct {
	ID          uuid.UUID
	MeetingID   uuid.UUID
	FromStatus  domain.Status
	ToStatus    domain.Status
	Trigger     domain.Trigger
	ActorID     uuid.UUID
	Applied     bool
	ReferenceID *uuid.UUID
	CreatedAt   time.Time
}

// TransitionWrite is a transition attempt plus the version it was decided against.
type TransitionWrite struct {
	MeetingID       uuid.UUID
	ExpectedVersion int
	Transition      domain.Transition
	ActorID         uuid.UUID
	// SetRejectionReason replaces rejection_reason with RejectionReason (company path only).
	SetRejectionReason bool
	RejectionReason    *string
}

// ReviewParams holds a new admin review.
type ReviewParams struct {
	Decision           domain.ReviewDecision
	Notes              *string
	QualificationScore *float64
	QualityScore       *float64
	CallRecordingID    *uuid.UUID
}

// DisputeParams holds a new dispute.
type DisputeParams struct {
	DisputeType string
	Reason      string
}

// ResolveParams closes a dispute.
type ResolveParams struct {
	DisputeID  uuid.UUID
	Status     string
	Resolution string
}

package transport

import (
	"time"

	"valdi_backend/internal/meetings/repository"

	"github.com/google/uuid"
)

// CreateMeetingRequest is the body of POST /meetings
type CreateMeetingRequest struct {
	CampaignID             string    `json:"campaign_id" validate:"required,uuid"`
	ContactName            string    `json:"contact_name" validate:"required,min=1,max=200"`
	ContactEmail           *string   `json:"contact_email" validate:"omitempty,email"`
	ContactPhone           *string   `json:"contact_phone" validate:"omitempty,max=40"`
	MeetingDate            time.Time `json:"meeting_date" validate:"required"`
	Notes                  *string   `json:"notes" validate:"omitempty,max=5000"`
	QualificationChecklist []bool    `json:"qualification_checklist" validate:"required"`
}

// SubmitReviewRequest is the body of POST /meetings/:id/review
type SubmitReviewRequest struct {
	ReviewDecision     string   `json:"review_decision" validate:"required,oneof=approve reject needs_revision"`
	ReviewNotes        *string  `json:"review_notes" validate:"omitempty,max=5000"`
	QualificationScore *float64 `json:"qualification_score" validate:"omitempty,min=0,max=100"`
	QualityScore       *float64 `json:"quality_score" validate:"omitempty,min=0,max=100"`
	CallRecordingID    *string  `json:"call_recording_id" validate:"omitempty,uuid"`
}

// SubmitApprovalRequest is the body of POST /meetings/:id/approve
type SubmitApprovalRequest struct {
	Approved        *bool   `json:"approved" validate:"required"`
	RejectionReason *string `json:"rejection_reason" validate:"omitempty,max=2000"`
}

// CreateDisputeRequest is the body of POST /disputes
type CreateDisputeRequest struct {
	MeetingID   string `json:"meeting_id" validate:"required,uuid"`
	DisputeType string `json:"dispute_type" validate:"required,oneof=qualification quality payment other"`
	Reason      string `json:"reason" validate:"required,min=10,max=5000"`
}

// ResolveDisputeRequest is the body of POST /disputes/:id/resolve
type ResolveDisputeRequest struct {
	Resolution string `json:"resolution" validate:"required,min=1,max=5000"`
	Status     string `json:"status" validate:"required,oneof=resolved rejected"`
}

// MeetingResponse is the public view of a meeting
type MeetingResponse struct {
	ID                     uuid.UUID `json:"id"`
	CampaignID             uuid.UUID `json:"campaign_id"`
	SDRID                  uuid.UUID `json:"sdr_id"`
	ContactName            string    `json:"contact_name"`
	ContactEmail           *string   `json:"contact_email,omitempty"`
	ContactPhone           *string   `json:"contact_phone,omitempty"`
	MeetingDate            time.Time `json:"meeting_date"`
	Notes                  *string   `json:"notes,omitempty"`
	QualificationChecklist []bool    `json:"qualification_checklist"`
	Status                 string    `json:"status"`
	RejectionReason        *string   `json:"rejection_reason,omitempty"`
	Version                int       `json:"version"`
	CreatedAt              time.Time `json:"created_at"`
	UpdatedAt              time.Time `json:"updated_at"`
}

// ReviewResponse reports the stored review and the resulting meeting
type ReviewResponse struct {
	ReviewID uuid.UUID       `json:"review_id"`
	Applied  bool            `json:"applied"`
	Meeting  MeetingResponse `json:"meeting"`
}

// DisputeResponse is the public view of a dispute
type DisputeResponse struct {
	ID          uuid.UUID  `json:"id"`
	MeetingID   uuid.UUID  `json:"meeting_id"`
	RaisedBy    uuid.UUID  `json:"raised_by"`
	DisputeType string     `json:"dispute_type"`
	Reason      string     `json:"reason"`
	Status      string     `json:"status"`
	Resolution  *string    `json:"resolution,omitempty"`
	ResolvedBy  *uuid.UUID `json:"resolved_by,omitempty"`
	ResolvedAt  *time.Time `json:"resolved_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// HistoryEntryResponse is one attempted transition
type HistoryEntryResponse struct {
	FromStatus  string     `json:"from_status"`
	ToStatus    string     `json:"to_status"`
	Trigger     string     `json:"trigger"`
	ActorID     uuid.UUID  `json:"actor_id"`
	Applied     bool       `json:"applied"`
	ReferenceID *uuid.UUID `json:"reference_id,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// ToMeetingResponse maps a stored meeting
func ToMeetingResponse(m repository.Meeting) MeetingResponse {
	checklist := m.QualificationChecklist
	if checklist == nil {
		checklist = []bool{}
	}
	return MeetingResponse{
		ID:                     m.ID,
		CampaignID:             m.CampaignID,
		SDRID:                  m.SDRID,
		ContactName:            m.ContactName,
		ContactEmail:           m.ContactEmail,
		ContactPhone:           m.ContactPhone,
		MeetingDate:            m.MeetingDate,
		Notes:                  m.Notes,
		QualificationChecklist: checklist,
		Status:                 string(m.Status),
		RejectionReason:        m.RejectionReason,
		Version:                m.Version,
		CreatedAt:              m.CreatedAt,
		UpdatedAt:              m.UpdatedAt,
	}
}

// ToDisputeResponse maps a stored dispute
func ToDisputeResponse(d repository.Dispute) DisputeResponse {
	return DisputeResponse{
		ID:          d.ID,
		MeetingID:   d.MeetingID,
		RaisedBy:    d.RaisedBy,
		DisputeType: d.DisputeType,
		Reason:      d.Reason,
		Status:      d.Status,
		Resolution:  d.Resolution,
		ResolvedBy:  d.ResolvedBy,
		ResolvedAt:  d.ResolvedAt,
		CreatedAt:   d.CreatedAt,
	}
}

// ToHistoryResponse maps stored history rows
func ToHistoryResponse(entries []repository.HistoryEntry) []HistoryEntryResponse {
	out := make([]HistoryEntryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, HistoryEntryResponse{
			FromStatus:  string(e.FromStatus),
			ToStatus:    string(e.ToStatus),
			Trigger:     string(e.Trigger),
			ActorID:     e.ActorID,
			Applied:     e.Applied,
			ReferenceID: e.ReferenceID,
			CreatedAt:   e.CreatedAt,
		})
	}
	return out
}

// Package service runs the meeting qualification state machine.
//
// Admin review and company approval are independent triggers on the same status;
// the last committed write wins and every attempt is kept in the status history.
package service

import (
	"context"
	"errors"
	"time"
	"unicode/utf8"

	"valdi_backend/internal/events"
	"valdi_backend/internal/meetings/domain"
	"valdi_backend/internal/meetings/repository"
	scoring "valdi_backend/internal/scoring/domain"
	"valdi_backend/platform/apperr"
	"valdi_backend/platform/logger"
	"valdi_backend/platform/sanitize"

	"github.com/google/uuid"
)

// maxTransitionAttempts bounds the re-read/retry loop on version conflicts.
const maxTransitionAttempts = 5

// minDisputeReasonLength matches the disputes.reason check constraint.
const minDisputeReasonLength = 10

// Store is the persistence the state machine needs.
type Store interface {
	ResolveSDRID(ctx context.Context, userID uuid.UUID) (uuid.UUID, error)
	ApprovedCampaignCriteria(ctx context.Context, sdrID, campaignID uuid.UUID) ([]byte, error)
	Create(ctx context.Context, params repository.CreateMeetingParams) (repository.Meeting, error)
	Get(ctx context.Context, id uuid.UUID) (repository.Meeting, error)
	GetAccess(ctx context.Context, id uuid.UUID) (repository.MeetingAccess, error)
	HasOpenDispute(ctx context.Context, meetingID uuid.UUID) (bool, error)
	RecordReview(ctx context.Context, w repository.TransitionWrite, params repository.ReviewParams) (repository.AdminReview, error)
	RecordApproval(ctx context.Context, w repository.TransitionWrite) error
	OpenDispute(ctx context.Context, w repository.TransitionWrite, params repository.DisputeParams) (repository.Dispute, error)
	ResolveDispute(ctx context.Context, w repository.TransitionWrite, params repository.ResolveParams) (repository.Dispute, error)
	GetDispute(ctx context.Context, id uuid.UUID) (repository.Dispute, error)
	ListDisputes(ctx context.Context, meetingID uuid.UUID) ([]repository.Dispute, error)
	ListHistory(ctx context.Context, meetingID uuid.UUID) ([]repository.HistoryEntry, error)
}

// Actor is the authenticated caller of an operation.
type Actor struct {
	UserID uuid.UUID
	Roles  []string
}

func (a Actor) has(role string) bool {
	for _, r := range a.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// Service implements the meeting lifecycle operations
type Service struct {
	store    Store
	eventBus events.Bus
	log      *logger.Logger
}

// New creates a new meetings service
func New(store Store, eventBus events.Bus, log *logger.Logger) *Service {
	return &Service{store: store, eventBus: eventBus, log: log}
}

// CreateMeetingInput carries a new meeting logged by an SDR.
type CreateMeetingInput struct {
	CampaignID             uuid.UUID
	ContactName            string
	ContactEmail           *string
	ContactPhone           *string
	MeetingDate            time.Time
	Notes                  *string
	QualificationChecklist []bool
}

// CreateMeeting records a meeting in status pending after checking the checklist invariants.
func (s *Service) CreateMeeting(ctx context.Context, userID uuid.UUID, in CreateMeetingInput) (repository.Meeting, error) {
	sdrID, err := s.store.ResolveSDRID(ctx, userID)
	if err != nil {
		return repository.Meeting{}, err
	}
	raw, err := s.store.ApprovedCampaignCriteria(ctx, sdrID, in.CampaignID)
	if err != nil {
		return repository.Meeting{}, err
	}

	criteria := scoring.ParseCriteria(raw)
	if err := domain.ValidateChecklist(in.QualificationChecklist, len(criteria)); err != nil {
		return repository.Meeting{}, apperr.Validation(err.Error())
	}

	m, err := s.store.Create(ctx, repository.CreateMeetingParams{
		CampaignID:             in.CampaignID,
		SDRID:                  sdrID,
		ContactName:            sanitize.Text(in.ContactName),
		ContactEmail:           in.ContactEmail,
		ContactPhone:           in.ContactPhone,
		MeetingDate:            in.MeetingDate,
		Notes:                  sanitize.TextPtr(in.Notes),
		QualificationChecklist: in.QualificationChecklist,
	})
	if err != nil {
		return repository.Meeting{}, err
	}
	s.log.Info("meeting created", "meetingId", m.ID, "campaignId", m.CampaignID, "sdrId", sdrID)
	return m, nil
}

// GetMeeting returns a meeting visible to the actor.
func (s *Service) GetMeeting(ctx context.Context, actor Actor, id uuid.UUID) (repository.Meeting, error) {
	if err := s.authorizeView(ctx, actor, id); err != nil {
		return repository.Meeting{}, err
	}
	return s.store.Get(ctx, id)
}

// ListMeetingHistory returns every attempted transition of a meeting.
func (s *Service) ListMeetingHistory(ctx context.Context, actor Actor, id uuid.UUID) ([]repository.HistoryEntry, error) {
	if err := s.authorizeView(ctx, actor, id); err != nil {
		return nil, err
	}
	return s.store.ListHistory(ctx, id)
}

// ListDisputes returns the disputes raised against a meeting.
func (s *Service) ListDisputes(ctx context.Context, actor Actor, id uuid.UUID) ([]repository.Dispute, error) {
	if err := s.authorizeView(ctx, actor, id); err != nil {
		return nil, err
	}
	return s.store.ListDisputes(ctx, id)
}

// ReviewInput is an admin's review submission.
type ReviewInput struct {
	Decision           domain.ReviewDecision
	Notes              *string
	QualificationScore *float64
	QualityScore       *float64
	CallRecordingID    *uuid.UUID
}

// ReviewResult pairs the stored review with the transition it produced.
type ReviewResult struct {
	Review     repository.AdminReview
	Transition domain.Transition
	Meeting    repository.Meeting
}

// SubmitReview appends an admin review and applies its decision.
func (s *Service) SubmitReview(ctx context.Context, meetingID, adminID uuid.UUID, in ReviewInput) (ReviewResult, error) {
	if !domain.ValidateDecision(in.Decision) {
		return ReviewResult{}, apperr.Validation("review_decision must be approve, reject or needs_revision")
	}

	var result ReviewResult
	err := s.transition(ctx, meetingID, func(m repository.Meeting, openDispute bool) error {
		t := domain.Review(m.Status, in.Decision, openDispute)
		review, err := s.store.RecordReview(ctx, repository.TransitionWrite{
			MeetingID:       m.ID,
			ExpectedVersion: m.Version,
			Transition:      t,
			ActorID:         adminID,
		}, repository.ReviewParams{
			Decision:           in.Decision,
			Notes:              sanitize.TextPtr(in.Notes),
			QualificationScore: in.QualificationScore,
			QualityScore:       in.QualityScore,
			CallRecordingID:    in.CallRecordingID,
		})
		if err != nil {
			return err
		}
		result = ReviewResult{Review: review, Transition: t}
		return nil
	})
	if err != nil {
		return ReviewResult{}, err
	}

	if in.Decision == domain.DecisionNeedsRevision {
		s.log.Warn("needs_revision review leaves meeting status unchanged", "meetingId", meetingID, "reviewId", result.Review.ID)
	}
	s.afterTransition(ctx, meetingID, adminID, result.Transition)

	result.Meeting, err = s.store.Get(ctx, meetingID)
	return result, err
}

// ApprovalInput is a company's decision on a meeting.
type ApprovalInput struct {
	Approved        bool
	RejectionReason *string
}

// SubmitApproval applies a company decision. The caller must own the meeting's campaign.
func (s *Service) SubmitApproval(ctx context.Context, meetingID, companyUserID uuid.UUID, in ApprovalInput) (repository.Meeting, error) {
	access, err := s.store.GetAccess(ctx, meetingID)
	if err != nil {
		return repository.Meeting{}, err
	}
	if access.CompanyUserID != companyUserID {
		return repository.Meeting{}, apperr.Forbidden("meeting does not belong to your campaign")
	}

	reason := sanitize.TextPtr(in.RejectionReason)
	if in.Approved {
		reason = nil
	}

	var applied domain.Transition
	err = s.transition(ctx, meetingID, func(m repository.Meeting, openDispute bool) error {
		applied = domain.Approval(m.Status, in.Approved, openDispute)
		return s.store.RecordApproval(ctx, repository.TransitionWrite{
			MeetingID:          m.ID,
			ExpectedVersion:    m.Version,
			Transition:         applied,
			ActorID:            companyUserID,
			SetRejectionReason: applied.Applied,
			RejectionReason:    reason,
		})
	})
	if err != nil {
		return repository.Meeting{}, err
	}

	s.afterTransition(ctx, meetingID, companyUserID, applied)
	return s.store.Get(ctx, meetingID)
}

// DisputeInput opens a dispute against a meeting.
type DisputeInput struct {
	MeetingID   uuid.UUID
	DisputeType string
	Reason      string
}

// CreateDispute appends an open dispute and forces the meeting into disputed.
func (s *Service) CreateDispute(ctx context.Context, actor Actor, in DisputeInput) (repository.Dispute, error) {
	reason := sanitize.Text(in.Reason)
	if utf8.RuneCountInString(reason) < minDisputeReasonLength {
		return repository.Dispute{}, apperr.Validation("reason must be at least 10 characters of text")
	}
	if err := s.authorizeView(ctx, actor, in.MeetingID); err != nil {
		return repository.Dispute{}, err
	}

	var dispute repository.Dispute
	var applied domain.Transition
	err := s.transition(ctx, in.MeetingID, func(m repository.Meeting, _ bool) error {
		applied = domain.DisputeOpened(m.Status)
		d, err := s.store.OpenDispute(ctx, repository.TransitionWrite{
			MeetingID:       m.ID,
			ExpectedVersion: m.Version,
			Transition:      applied,
			ActorID:         actor.UserID,
		}, repository.DisputeParams{DisputeType: in.DisputeType, Reason: reason})
		if err != nil {
			return err
		}
		dispute = d
		return nil
	})
	if err != nil {
		return repository.Dispute{}, err
	}

	s.afterTransition(ctx, in.MeetingID, actor.UserID, applied)
	s.eventBus.Publish(ctx, events.DisputeOpened{
		BaseEvent:   events.NewBaseEvent(),
		DisputeID:   dispute.ID,
		MeetingID:   dispute.MeetingID,
		RaisedBy:    actor.UserID,
		DisputeType: dispute.DisputeType,
	})
	return dispute, nil
}

// ResolveInput closes a dispute.
type ResolveInput struct {
	Resolution string
	Status     string
}

// ResolveDispute records the resolution. The meeting stays disputed until someone
// re-runs an approval.
func (s *Service) ResolveDispute(ctx context.Context, disputeID, adminID uuid.UUID, in ResolveInput) (repository.Dispute, error) {
	if in.Status != domain.DisputeResolved && in.Status != domain.DisputeRejected {
		return repository.Dispute{}, apperr.Validation("status must be resolved or rejected")
	}
	existing, err := s.store.GetDispute(ctx, disputeID)
	if err != nil {
		return repository.Dispute{}, err
	}

	var dispute repository.Dispute
	err = s.transition(ctx, existing.MeetingID, func(m repository.Meeting, _ bool) error {
		d, err := s.store.ResolveDispute(ctx, repository.TransitionWrite{
			MeetingID:       m.ID,
			ExpectedVersion: m.Version,
			Transition:      domain.DisputeResolution(m.Status),
			ActorID:         adminID,
		}, repository.ResolveParams{DisputeID: disputeID, Status: in.Status, Resolution: sanitize.Text(in.Resolution)})
		if err != nil {
			return err
		}
		dispute = d
		return nil
	})
	if err != nil {
		return repository.Dispute{}, err
	}

	s.eventBus.Publish(ctx, events.DisputeResolved{
		BaseEvent:  events.NewBaseEvent(),
		DisputeID:  dispute.ID,
		MeetingID:  dispute.MeetingID,
		ResolvedBy: adminID,
		Status:     dispute.Status,
	})
	return dispute, nil
}

// transition re-reads the meeting and retries write while it loses version races.
func (s *Service) transition(ctx context.Context, meetingID uuid.UUID, write func(m repository.Meeting, openDispute bool) error) error {
	for attempt := 1; attempt <= maxTransitionAttempts; attempt++ {
		m, err := s.store.Get(ctx, meetingID)
		if err != nil {
			return err
		}
		openDispute, err := s.store.HasOpenDispute(ctx, meetingID)
		if err != nil {
			return err
		}

		err = write(m, openDispute)
		if errors.Is(err, domain.ErrStaleVersion) {
			s.log.Info("meeting transition lost a version race, retrying", "meetingId", meetingID, "attempt", attempt)
			continue
		}
		return err
	}
	return apperr.Conflict("meeting is being updated concurrently, try again")
}

func (s *Service) afterTransition(ctx context.Context, meetingID, actorID uuid.UUID, t domain.Transition) {
	if !t.Applied {
		s.log.Info("meeting transition recorded without status change",
			"meetingId", meetingID, "trigger", t.Trigger, "status", t.From, "reason", t.Reason)
		return
	}
	if !t.Changed() {
		return
	}
	s.log.Info("meeting status changed", "meetingId", meetingID, "from", t.From, "to", t.To, "trigger", t.Trigger)
	s.eventBus.Publish(ctx, events.MeetingStatusChanged{
		BaseEvent:  events.NewBaseEvent(),
		MeetingID:  meetingID,
		FromStatus: string(t.From),
		ToStatus:   string(t.To),
		Trigger:    string(t.Trigger),
		ActorID:    actorID,
	})
}

func (s *Service) authorizeView(ctx context.Context, actor Actor, meetingID uuid.UUID) error {
	access, err := s.store.GetAccess(ctx, meetingID)
	if err != nil {
		return err
	}
	if actor.has("admin") || actor.UserID == access.SDRUserID || actor.UserID == access.CompanyUserID {
		return nil
	}
	return apperr.Forbidden("not allowed to access this meeting")
}

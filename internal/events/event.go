// Package events provides domain event definitions for decoupled,
// event-driven communication between modules.
// Infrastructure (Bus, Handler) is in platform/events.
package events

import (
	"time"

	"valdi_backend/platform/events"

	"github.com/google/uuid"
)

// Re-export platform types for convenience
type (
	Event       = events.Event
	Bus         = events.Bus
	Handler     = events.Handler
	HandlerFunc = events.HandlerFunc
	BaseEvent   = events.BaseEvent
)

// Re-export platform functions
var NewBaseEvent = events.NewBaseEvent

// =============================================================================
// Recording Domain Events
// =============================================================================

// CallRecordingImported is published when a dialer recording is stored and persisted.
type CallRecordingImported struct {
	BaseEvent
	RecordingID uuid.UUID  `json:"recordingId"`
	SDRID       uuid.UUID  `json:"sdrId"`
	CampaignID  uuid.UUID  `json:"campaignId"`
	LeadID      *uuid.UUID `json:"leadId,omitempty"`
	Provider    string     `json:"provider"`
	CallID      string     `json:"callId"`
}

func (e CallRecordingImported) EventName() string { return "recordings.call.imported" }

// AcquisitionFailed is published when a recording could not be acquired after all retries.
type AcquisitionFailed struct {
	BaseEvent
	Provider string `json:"provider"`
	CallID   string `json:"callId"`
	Stage    string `json:"stage"`
	Reason   string `json:"reason"`
}

func (e AcquisitionFailed) EventName() string { return "recordings.acquisition.failed" }

// TranscriptionCompleted is published when a recording transcript has been stored.
type TranscriptionCompleted struct {
	BaseEvent
	RecordingID uuid.UUID `json:"recordingId"`
}

func (e TranscriptionCompleted) EventName() string { return "recordings.transcription.completed" }

// =============================================================================
// Meeting Domain Events
// =============================================================================

// MeetingStatusChanged is published after a status transition is committed.
type MeetingStatusChanged struct {
	BaseEvent
	MeetingID  uuid.UUID `json:"meetingId"`
	FromStatus string    `json:"fromStatus"`
	ToStatus   string    `json:"toStatus"`
	Trigger    string    `json:"trigger"`
	ActorID    uuid.UUID `json:"actorId"`
}

func (e MeetingStatusChanged) EventName() string { return "meetings.status.changed" }

// DisputeOpened is published when a dispute forces a meeting into disputed.
type DisputeOpened struct {
	BaseEvent
	DisputeID   uuid.UUID `json:"disputeId"`
	MeetingID   uuid.UUID `json:"meetingId"`
	RaisedBy    uuid.UUID `json:"raisedBy"`
	DisputeType string    `json:"disputeType"`
}

func (e DisputeOpened) EventName() string { return "meetings.dispute.opened" }

// DisputeResolved is published when an admin closes a dispute.
type DisputeResolved struct {
	BaseEvent
	DisputeID  uuid.UUID `json:"disputeId"`
	MeetingID  uuid.UUID `json:"meetingId"`
	ResolvedBy uuid.UUID `json:"resolvedBy"`
	Status     string    `json:"status"`
}

func (e DisputeResolved) EventName() string { return "meetings.dispute.resolved" }

// =============================================================================
// Scoring & Retention Events
// =============================================================================

// QualificationScored is published after an AI score row is appended.
type QualificationScored struct {
	BaseEvent
	ScoreID     uuid.UUID  `json:"scoreId"`
	MeetingID   *uuid.UUID `json:"meetingId,omitempty"`
	RecordingID *uuid.UUID `json:"recordingId,omitempty"`
	Overall     float64    `json:"overall"`
	IsQualified bool       `json:"isQualified"`
}

func (e QualificationScored) EventName() string { return "scoring.qualification.scored" }

// RetentionCompleted is published after a retention run finishes.
type RetentionCompleted struct {
	BaseEvent
	WindowStart time.Time `json:"windowStart"`
	Deleted     int       `json:"deleted"`
	Errors      int       `json:"errors"`
}

func (e RetentionCompleted) EventName() string { return "retention.run.completed" }

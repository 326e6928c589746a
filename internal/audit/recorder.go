package audit

import (
	"context"
	"encoding/json"

	"valdi_backend/internal/audit/repository"
	"valdi_backend/internal/events"
	"valdi_backend/platform/logger"

	"github.com/google/uuid"
)

const (
	ResourceMeeting   = "meeting"
	ResourceDispute   = "dispute"
	ResourceRecording = "call_recording"
	ResourceScore     = "ai_score"
)

// Writer appends audit entries.
type Writer interface {
	Insert(ctx context.Context, entry repository.Entry) error
}

// Recorder writes one audit entry per state-changing pipeline event.
type Recorder struct {
	writer Writer
	log    *logger.Logger
}

func NewRecorder(writer Writer, log *logger.Logger) *Recorder {
	return &Recorder{writer: writer, log: log}
}

// RegisterHandlers subscribes the recorder to every audited event.
func (r *Recorder) RegisterHandlers(bus *events.InMemoryBus) {
	bus.Subscribe(events.CallRecordingImported{}.EventName(), r)
	bus.Subscribe(events.MeetingStatusChanged{}.EventName(), r)
	bus.Subscribe(events.DisputeOpened{}.EventName(), r)
	bus.Subscribe(events.DisputeResolved{}.EventName(), r)
	bus.Subscribe(events.QualificationScored{}.EventName(), r)
}

// Handle implements events.Handler.
func (r *Recorder) Handle(ctx context.Context, event events.Event) error {
	entry, ok := entryFor(event)
	if !ok {
		return nil
	}

	changes, err := json.Marshal(event)
	if err != nil {
		return err
	}
	entry.ActionType = event.EventName()
	entry.Changes = changes

	if err := r.writer.Insert(ctx, entry); err != nil {
		r.log.Error("failed to write audit log", "action", entry.ActionType, "error", err)
		return err
	}
	return nil
}

func entryFor(event events.Event) (repository.Entry, bool) {
	switch e := event.(type) {
	case events.CallRecordingImported:
		return repository.Entry{ResourceType: ResourceRecording, ResourceID: ptr(e.RecordingID)}, true
	case events.MeetingStatusChanged:
		return repository.Entry{UserID: actor(e.ActorID), ResourceType: ResourceMeeting, ResourceID: ptr(e.MeetingID)}, true
	case events.DisputeOpened:
		return repository.Entry{UserID: actor(e.RaisedBy), ResourceType: ResourceDispute, ResourceID: ptr(e.DisputeID)}, true
	case events.DisputeResolved:
		return repository.Entry{UserID: actor(e.ResolvedBy), ResourceType: ResourceDispute, ResourceID: ptr(e.DisputeID)}, true
	case events.QualificationScored:
		return repository.Entry{ResourceType: ResourceScore, ResourceID: ptr(e.ScoreID)}, true
	default:
		return repository.Entry{}, false
	}
}

func ptr(id uuid.UUID) *uuid.UUID {
	return &id
}

func actor(id uuid.UUID) *uuid.UUID {
	if id == uuid.Nil {
		return nil
	}
	return &id
}

package notification

import (
	"context"
	"testing"
	"time"

	"valdi_backend/internal/email"
	"valdi_backend/internal/events"
	"valdi_backend/platform/logger"

	"github.com/google/uuid"
)

type recordingSender struct {
	alerts []email.Alert
	to     []string
}

func (s *recordingSender) SendAlert(_ context.Context, toEmail string, alert email.Alert) error {
	s.to = append(s.to, toEmail)
	s.alerts = append(s.alerts, alert)
	return nil
}

func TestHandleSendsOperatorAlerts(t *testing.T) {
	cases := []struct {
		name  string
		event events.Event
		want  int
	}{
		{"acquisition failed", events.AcquisitionFailed{BaseEvent: events.NewBaseEvent(), Provider: "aircall", CallID: "c1", Stage: "download", Reason: "timeout"}, 1},
		{"retention with errors", events.RetentionCompleted{BaseEvent: events.NewBaseEvent(), WindowStart: time.Now(), Deleted: 3, Errors: 2}, 1},
		{"clean retention", events.RetentionCompleted{BaseEvent: events.NewBaseEvent(), WindowStart: time.Now(), Deleted: 3}, 0},
		{"dispute opened", events.DisputeOpened{BaseEvent: events.NewBaseEvent(), DisputeID: uuid.New(), MeetingID: uuid.New(), DisputeType: "quality"}, 1},
		{"unrelated", events.TranscriptionCompleted{BaseEvent: events.NewBaseEvent(), RecordingID: uuid.New()}, 0},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			sender := &recordingSender{}
			m := New(sender, "ops@example.com", logger.New("development"))

			if err := m.Handle(context.Background(), tc.event); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(sender.alerts) != tc.want {
				t.Fatalf("expected %d alerts, got %d", tc.want, len(sender.alerts))
			}
			if tc.want > 0 && sender.to[0] != "ops@example.com" {
				t.Fatalf("unexpected recipient %q", sender.to[0])
			}
		})
	}
}

func TestHandleWithoutRecipientIsNoop(t *testing.T) {
	sender := &recordingSender{}
	m := New(sender, "", logger.New("development"))

	err := m.Handle(context.Background(), events.AcquisitionFailed{BaseEvent: events.NewBaseEvent(), Provider: "aircall"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(sender.alerts) != 0 {
		t.Fatalf("expected no alerts without a recipient")
	}
}

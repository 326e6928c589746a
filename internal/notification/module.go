// Package notification turns pipeline events into operator alerts.
// Domain modules publish events and never talk to the mail transport directly.
package notification

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"valdi_backend/internal/email"
	"valdi_backend/internal/events"
	"valdi_backend/platform/logger"
)

const sendTimeout = 20 * time.Second

// Module subscribes to pipeline events that need a human.
type Module struct {
	sender  email.Sender
	alertTo string
	log     *logger.Logger
}

// New creates the notification module. An empty alertTo disables delivery.
func New(sender email.Sender, alertTo string, log *logger.Logger) *Module {
	if sender == nil {
		sender = email.NoopSender{}
	}
	return &Module{sender: sender, alertTo: alertTo, log: log}
}

// RegisterHandlers subscribes the module to the events it alerts on.
func (m *Module) RegisterHandlers(bus *events.InMemoryBus) {
	bus.Subscribe(events.AcquisitionFailed{}.EventName(), m)
	bus.Subscribe(events.RetentionCompleted{}.EventName(), m)
	bus.Subscribe(events.DisputeOpened{}.EventName(), m)
}

// Handle implements events.Handler.
func (m *Module) Handle(ctx context.Context, event events.Event) error {
	switch e := event.(type) {
	case events.AcquisitionFailed:
		return m.handleAcquisitionFailed(ctx, e)
	case events.RetentionCompleted:
		return m.handleRetentionCompleted(ctx, e)
	case events.DisputeOpened:
		return m.handleDisputeOpened(ctx, e)
	default:
		return nil
	}
}

func (m *Module) handleAcquisitionFailed(ctx context.Context, e events.AcquisitionFailed) error {
	return m.send(ctx, email.Alert{
		Subject: fmt.Sprintf("Recording acquisition failed (%s)", e.Provider),
		Heading: "Recording acquisition failed",
		Summary: "A dialer recording could not be stored after all retries. The provider may redeliver the webhook.",
		Fields: []email.Field{
			{Label: "Provider", Value: e.Provider},
			{Label: "Call", Value: e.CallID},
			{Label: "Stage", Value: e.Stage},
			{Label: "Reason", Value: e.Reason},
		},
	})
}

func (m *Module) handleRetentionCompleted(ctx context.Context, e events.RetentionCompleted) error {
	if e.Errors == 0 {
		return nil
	}
	return m.send(ctx, email.Alert{
		Subject: fmt.Sprintf("Retention run finished with %d errors", e.Errors),
		Heading: "Retention run incomplete",
		Summary: "Some expired recordings could not be deleted. They stay untouched and are retried in the next window.",
		Fields: []email.Field{
			{Label: "Window", Value: e.WindowStart.Format(time.RFC3339)},
			{Label: "Deleted", Value: strconv.Itoa(e.Deleted)},
			{Label: "Errors", Value: strconv.Itoa(e.Errors)},
		},
	})
}

func (m *Module) handleDisputeOpened(ctx context.Context, e events.DisputeOpened) error {
	return m.send(ctx, email.Alert{
		Subject: "New meeting dispute",
		Heading: "A meeting was disputed",
		Summary: "The meeting is frozen in disputed until an admin resolves the dispute.",
		Fields: []email.Field{
			{Label: "Dispute", Value: e.DisputeID.String()},
			{Label: "Meeting", Value: e.MeetingID.String()},
			{Label: "Type", Value: e.DisputeType},
		},
	})
}

func (m *Module) send(ctx context.Context, alert email.Alert) error {
	if m.alertTo == "" {
		return nil
	}

	sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sendTimeout)
	defer cancel()

	if err := m.sender.SendAlert(sendCtx, m.alertTo, alert); err != nil {
		m.log.Error("failed to send operator alert", "subject", alert.Subject, "error", err)
		return err
	}
	m.log.Info("operator alert sent", "subject", alert.Subject)
	return nil
}

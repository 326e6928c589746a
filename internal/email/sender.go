// Package email delivers operator alert emails.
package email

import (
	"context"

	"valdi_backend/platform/config"
)

// Alert is one operator notification.
type Alert struct {
	Subject string
	Heading string
	Summary string
	Fields  []Field
}

// Field is a labelled value rendered as a table row.
type Field struct {
	Label string
	Value string
}

type Sender interface {
	SendAlert(ctx context.Context, toEmail string, alert Alert) error
}

type NoopSender struct{}

func (NoopSender) SendAlert(ctx context.Context, toEmail string, alert Alert) error {
	return nil
}

// NewSender returns an SMTP sender when alerting is configured and a NoopSender otherwise.
func NewSender(cfg config.SMTPConfig) Sender {
	if !cfg.IsAlertingEnabled() {
		return NoopSender{}
	}
	return NewSMTPSender(
		cfg.GetSMTPHost(),
		cfg.GetSMTPPort(),
		cfg.GetSMTPUsername(),
		cfg.GetSMTPPassword(),
		cfg.GetEmailFromAddress(),
		cfg.GetEmailFromName(),
	)
}

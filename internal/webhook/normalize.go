package webhook

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"valdi_backend/platform/apperr"
)

// EventCallEnded is the only event type that carries a finished recording.
const EventCallEnded = "call.ended"

// Payload is the webhook body accepted from every provider.
type Payload struct {
	Provider  string   `json:"provider"`
	EventType string   `json:"event_type"`
	CallID    string   `json:"call_id"`
	CallData  CallData `json:"call_data"`
	Signature string   `json:"signature,omitempty"`
	Timestamp string   `json:"timestamp,omitempty"`
}

// CallData is the provider-specific call description.
type CallData struct {
	ID           string      `json:"id"`
	Direction    string      `json:"direction,omitempty"`
	From         string      `json:"from,omitempty"`
	To           string      `json:"to,omitempty"`
	Duration     flexSeconds `json:"duration,omitempty"`
	StartedAt    string      `json:"started_at,omitempty"`
	EndedAt      string      `json:"ended_at,omitempty"`
	RecordingURL string      `json:"recording_url,omitempty"`
	RecordingID  string      `json:"recording_id,omitempty"`
	Status       string      `json:"status,omitempty"`
	UserID       string      `json:"user_id,omitempty"`
	PhoneNumber  string      `json:"phone_number,omitempty"`
	ContactID    string      `json:"contact_id,omitempty"`
	ContactName  string      `json:"contact_name,omitempty"`
	ContactEmail string      `json:"contact_email,omitempty"`
	ContactPhone string      `json:"contact_phone,omitempty"`
}

// flexSeconds accepts a JSON number, a numeric string or null.
type flexSeconds int

func (s *flexSeconds) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		*s = 0
		return nil
	}
	raw := strings.Trim(string(trimmed), `"`)
	if raw == "" {
		*s = 0
		return nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(f) || f < 0 {
		return fmt.Errorf("invalid duration %s", trimmed)
	}
	*s = flexSeconds(math.Round(f))
	return nil
}

// Contact is the counterpart metadata attached to a call.
type Contact struct {
	Name  string
	Email string
	Phone string
}

// CanonicalCallEvent is a provider-neutral view of one webhook delivery.
type CanonicalCallEvent struct {
	Provider        string
	EventType       string
	CallID          string
	AccountKey      string
	Direction       string
	From            string
	To              string
	DurationSeconds int
	StartedAt       *time.Time
	EndedAt         *time.Time
	RecordingURL    string
	RecordingID     string
	Contact         Contact
	Signature       string
}

// Actionable reports whether the event should trigger recording acquisition.
func (e CanonicalCallEvent) Actionable() bool {
	return e.EventType == EventCallEnded && strings.TrimSpace(e.RecordingURL) != ""
}

// Normalize parses a raw webhook body into a canonical event.
// The header signature wins over the body signature when both are present.
func (c *Catalog) Normalize(raw []byte, headerSignature string) (CanonicalCallEvent, error) {
	var payload Payload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return CanonicalCallEvent{}, apperr.Validation("invalid webhook payload")
	}

	provider, ok := c.Lookup(payload.Provider)
	if !ok {
		return CanonicalCallEvent{}, apperr.BadRequest(fmt.Sprintf("unsupported provider %q", payload.Provider))
	}

	callID := strings.TrimSpace(payload.CallData.ID)
	if callID == "" {
		callID = strings.TrimSpace(payload.CallID)
	}
	if callID == "" {
		return CanonicalCallEvent{}, apperr.Validation("call id is required")
	}

	accountKey := strings.TrimSpace(payload.CallData.UserID)
	if accountKey == "" {
		accountKey = strings.TrimSpace(payload.CallData.PhoneNumber)
	}

	signature := strings.TrimSpace(headerSignature)
	if signature == "" {
		signature = strings.TrimSpace(payload.Signature)
	}

	return CanonicalCallEvent{
		Provider:        provider.ID,
		EventType:       strings.TrimSpace(payload.EventType),
		CallID:          callID,
		AccountKey:      accountKey,
		Direction:       payload.CallData.Direction,
		From:            strings.TrimSpace(payload.CallData.From),
		To:              strings.TrimSpace(payload.CallData.To),
		DurationSeconds: int(payload.CallData.Duration),
		StartedAt:       parseTimestamp(payload.CallData.StartedAt),
		EndedAt:         parseTimestamp(payload.CallData.EndedAt),
		RecordingURL:    strings.TrimSpace(payload.CallData.RecordingURL),
		RecordingID:     payload.CallData.RecordingID,
		Contact: Contact{
			Name:  strings.TrimSpace(payload.CallData.ContactName),
			Email: strings.TrimSpace(payload.CallData.ContactEmail),
			Phone: strings.TrimSpace(payload.CallData.ContactPhone),
		},
		Signature: signature,
	}, nil
}

func parseTimestamp(value string) *time.Time {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return &t
	}
	if unix, err := strconv.ParseInt(value, 10, 64); err == nil {
		t := time.Unix(unix, 0).UTC()
		return &t
	}
	return nil
}

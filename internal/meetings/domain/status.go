// Package domain defines the meeting qualification state machine as pure functions.
package domain

import (
	"errors"
	"fmt"
)

// Status is a meeting's qualification status.
type Status string

const (
	StatusPending      Status = "pending"
	StatusQualified    Status = "qualified"
	StatusNotQualified Status = "not_qualified"
	StatusDisputed     Status = "disputed"
)

// Trigger names the actor path that attempted a transition.
type Trigger string

const (
	TriggerAdminReview     Trigger = "admin_review"
	TriggerCompanyApproval Trigger = "company_approval"
	TriggerDisputeOpened   Trigger = "dispute_opened"
	TriggerDisputeResolved Trigger = "dispute_resolved"
)

// ReviewDecision is an admin's verdict on a meeting.
type ReviewDecision string

const (
	DecisionApprove       ReviewDecision = "approve"
	DecisionReject        ReviewDecision = "reject"
	DecisionNeedsRevision ReviewDecision = "needs_revision"
)

// Dispute statuses.
const (
	DisputeOpen        = "open"
	DisputeUnderReview = "under_review"
	DisputeResolved    = "resolved"
	DisputeRejected    = "rejected"
)

// MandatoryCriteria is how many leading checklist entries must be true.
const MandatoryCriteria = 2

// ErrStaleVersion reports that a meeting changed between read and write.
var ErrStaleVersion = errors.New("meeting version changed")

// Transition is one attempted status change. Applied is false when the attempt is
// recorded for history but leaves the status alone.
type Transition struct {
	From    Status
	To      Status
	Trigger Trigger
	Applied bool
	// Reason explains a non-applied attempt in logs and history readers.
	Reason string
}

// Changed reports whether committing t alters the stored status.
func (t Transition) Changed() bool {
	return t.Applied && t.From != t.To
}

// Review decides the outcome of an admin review.
// needs_revision never moves the meeting; an open dispute blocks any move.
func Review(current Status, decision ReviewDecision, openDispute bool) Transition {
	t := Transition{From: current, To: current, Trigger: TriggerAdminReview}
	switch decision {
	case DecisionApprove:
		t.To = StatusQualified
	case DecisionReject:
		t.To = StatusNotQualified
	case DecisionNeedsRevision:
		t.Reason = "needs_revision keeps the current status"
		return t
	default:
		t.Reason = fmt.Sprintf("unknown decision %q", decision)
		return t
	}
	return settle(t, openDispute)
}

// Approval decides the outcome of a company approval. It is independent of admin
// review; whichever commits last wins.
func Approval(current Status, approved bool, openDispute bool) Transition {
	t := Transition{From: current, To: StatusNotQualified, Trigger: TriggerCompanyApproval}
	if approved {
		t.To = StatusQualified
	}
	return settle(t, openDispute)
}

// DisputeOpened forces the meeting into disputed from any status.
func DisputeOpened(current Status) Transition {
	return Transition{From: current, To: StatusDisputed, Trigger: TriggerDisputeOpened, Applied: true}
}

// DisputeResolution records a resolution without restoring the earlier status.
func DisputeResolution(current Status) Transition {
	return Transition{
		From:    current,
		To:      current,
		Trigger: TriggerDisputeResolved,
		Reason:  "resolution does not restore a status; re-run approval to change it",
	}
}

func settle(t Transition, openDispute bool) Transition {
	if openDispute {
		t.To = t.From
		t.Reason = "meeting has an open dispute"
		return t
	}
	t.Applied = true
	return t
}

// ValidateDecision reports whether decision is a known review decision.
func ValidateDecision(decision ReviewDecision) bool {
	switch decision {
	case DecisionApprove, DecisionReject, DecisionNeedsRevision:
		return true
	}
	return false
}

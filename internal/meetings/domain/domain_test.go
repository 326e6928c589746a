package domain

import "testing"

func TestReview(t *testing.T) {
	cases := []struct {
		name        string
		current     Status
		decision    ReviewDecision
		openDispute bool
		wantTo      Status
		wantApplied bool
	}{
		{"approve", StatusPending, DecisionApprove, false, StatusQualified, true},
		{"reject", StatusPending, DecisionReject, false, StatusNotQualified, true},
		{"needs revision stays pending", StatusPending, DecisionNeedsRevision, false, StatusPending, false},
		{"reject overrides company approval", StatusQualified, DecisionReject, false, StatusNotQualified, true},
		{"open dispute blocks", StatusDisputed, DecisionApprove, true, StatusDisputed, false},
		{"resolved dispute allows review", StatusDisputed, DecisionApprove, false, StatusQualified, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Review(tc.current, tc.decision, tc.openDispute)
			if got.To != tc.wantTo || got.Applied != tc.wantApplied {
				t.Fatalf("expected to=%s applied=%v, got to=%s applied=%v", tc.wantTo, tc.wantApplied, got.To, got.Applied)
			}
			if got.From != tc.current || got.Trigger != TriggerAdminReview {
				t.Fatalf("unexpected transition %+v", got)
			}
		})
	}
}

func TestApprovalLastWriterWins(t *testing.T) {
	approved := Review(StatusPending, DecisionApprove, false)
	if approved.To != StatusQualified {
		t.Fatalf("expected qualified after admin approve, got %s", approved.To)
	}

	rejected := Approval(approved.To, false, false)
	if !rejected.Changed() || rejected.To != StatusNotQualified {
		t.Fatalf("expected company rejection to win, got %+v", rejected)
	}
}

func TestDisputePrecedence(t *testing.T) {
	opened := DisputeOpened(StatusQualified)
	if !opened.Changed() || opened.To != StatusDisputed {
		t.Fatalf("expected qualified → disputed, got %+v", opened)
	}

	resolved := DisputeResolution(opened.To)
	if resolved.Changed() || resolved.To != StatusDisputed {
		t.Fatalf("resolution must not restore status, got %+v", resolved)
	}
}

func TestValidateChecklist(t *testing.T) {
	cases := []struct {
		name      string
		checklist []bool
		criteria  int
		wantErr   bool
	}{
		{"mandatory checked", []bool{true, true, false}, 3, false},
		{"first unchecked", []bool{false, true, true}, 3, true},
		{"second unchecked", []bool{true, false, true}, 3, true},
		{"length mismatch", []bool{true, true}, 3, true},
		{"single criterion unchecked", []bool{false}, 1, false},
		{"no criteria", []bool{}, 0, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateChecklist(tc.checklist, tc.criteria)
			if (err != nil) != tc.wantErr {
				t.Fatalf("expected error=%v, got %v", tc.wantErr, err)
			}
		})
	}
}

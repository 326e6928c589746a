package domain

import "fmt"

// ChecklistError describes why a qualification checklist was rejected.
type ChecklistError struct {
	Reason string
}

func (e *ChecklistError) Error() string { return e.Reason }

// ValidateChecklist enforces the creation-time checklist invariants: one entry per
// campaign criterion, and the mandatory leading criteria all checked.
func ValidateChecklist(checklist []bool, criteriaCount int) error {
	if len(checklist) != criteriaCount {
		return &ChecklistError{Reason: fmt.Sprintf("checklist has %d entries, campaign has %d criteria", len(checklist), criteriaCount)}
	}
	if criteriaCount < MandatoryCriteria {
		return nil
	}
	for i := 0; i < MandatoryCriteria; i++ {
		if !checklist[i] {
			return &ChecklistError{Reason: fmt.Sprintf("criterion %d is mandatory and must be checked", i+1)}
		}
	}
	return nil
}

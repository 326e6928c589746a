package domain

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

const (
	// DefaultThreshold applies when a campaign sets none.
	DefaultThreshold = 70.0
	// CriterionMetScore is the per-criterion bar, independent of the campaign threshold.
	CriterionMetScore = 70.0
	// DefaultConfidence is used when the model omits or garbles its confidence.
	DefaultConfidence = 0.8

	ReadinessReady         = "ready"
	ReadinessNotReady      = "not_ready"
	ReadinessNeedsFollowUp = "needs_follow_up"
)

// CriterionResult is one criterion's normalized score.
type CriterionResult struct {
	Criterion string  `json:"criterion"`
	Score     float64 `json:"score"`
	Met       bool    `json:"met"`
}

// QualificationScore is the aggregated outcome of one scoring call.
type QualificationScore struct {
	OverallScore     float64           `json:"overall_score"`
	Threshold        float64           `json:"threshold"`
	IsQualified      bool              `json:"is_qualified"`
	Criteria         []CriterionResult `json:"criteria"`
	CriteriaMet      []string          `json:"criteria_met"`
	CriteriaUnmet    []string          `json:"criteria_unmet"`
	Confidence       float64           `json:"confidence"`
	MeetingReadiness string            `json:"meeting_readiness"`
	Reasoning        string            `json:"reasoning"`
	KeyQuotes        []string          `json:"key_quotes"`
	Objections       []string          `json:"objections"`
	NextSteps        []string          `json:"next_steps"`
	Summary          string            `json:"summary,omitempty"`
}

// RoundedOverall is the persisted form of the overall score (one decimal).
func (q QualificationScore) RoundedOverall() float64 {
	return math.Round(q.OverallScore*10) / 10
}

// CriterionKey is the response key the model fills for criterion i.
func CriterionKey(i int) string {
	return fmt.Sprintf("criterion_%d_score", i)
}

// ResolveThreshold returns the campaign threshold or the default.
// Zero is a valid threshold; only nil and values outside 0..100 fall back.
func ResolveThreshold(threshold *float64) float64 {
	if threshold == nil || *threshold < 0 || *threshold > 100 {
		return DefaultThreshold
	}
	return *threshold
}

// Aggregate normalizes the model's raw JSON object into a QualificationScore.
// Missing or malformed criterion scores count as 0 and every score is clamped to 0..100.
func Aggregate(criteria Criteria, raw map[string]json.RawMessage, threshold float64) QualificationScore {
	result := QualificationScore{
		Threshold:     threshold,
		Criteria:      make([]CriterionResult, 0, len(criteria)),
		CriteriaMet:   []string{},
		CriteriaUnmet: []string{},
		Confidence:    DefaultConfidence,
	}

	var sum float64
	for i, criterion := range criteria {
		score := 0.0
		if v, ok := raw[CriterionKey(i)]; ok {
			if n, ok := parseNumber(v); ok {
				score = clamp(n, 0, 100)
			}
		}
		met := score >= CriterionMetScore
		result.Criteria = append(result.Criteria, CriterionResult{Criterion: criterion, Score: score, Met: met})
		if met {
			result.CriteriaMet = append(result.CriteriaMet, criterion)
		} else {
			result.CriteriaUnmet = append(result.CriteriaUnmet, criterion)
		}
		sum += score
	}
	if len(criteria) > 0 {
		result.OverallScore = sum / float64(len(criteria))
	}
	result.IsQualified = result.OverallScore >= threshold

	if v, ok := raw["confidence"]; ok {
		if n, ok := parseNumber(v); ok && n >= 0 && n <= 1 {
			result.Confidence = n
		}
	}

	result.MeetingReadiness = ReadinessNotReady
	if result.IsQualified {
		result.MeetingReadiness = ReadinessReady
	}
	if s := decodeString(raw["meeting_readiness"]); isReadiness(s) {
		result.MeetingReadiness = s
	}

	result.Reasoning = decodeString(raw["reasoning"])
	result.Summary = decodeString(raw["summary"])
	result.KeyQuotes = decodeStrings(raw["key_quotes"])
	result.Objections = decodeStrings(raw["objections"])
	result.NextSteps = decodeStrings(raw["next_steps"])
	return result
}

func isReadiness(s string) bool {
	switch s {
	case ReadinessReady, ReadinessNotReady, ReadinessNeedsFollowUp:
		return true
	}
	return false
}

// decodeString returns "" for absent or non-string values.
func decodeString(raw json.RawMessage) string {
	var s string
	if len(raw) == 0 || json.Unmarshal(raw, &s) != nil {
		return ""
	}
	return strings.TrimSpace(s)
}

// decodeStrings keeps the non-empty string items of a JSON array. A single
// string is treated as a one-item list; anything else decodes to empty.
func decodeStrings(raw json.RawMessage) []string {
	out := []string{}
	if len(raw) == 0 {
		return out
	}
	var items []json.RawMessage
	if json.Unmarshal(raw, &items) != nil {
		if s := decodeString(raw); s != "" {
			out = append(out, s)
		}
		return out
	}
	for _, item := range items {
		if s := decodeString(item); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func parseNumber(raw json.RawMessage) (float64, bool) {
	var n float64
	if err := json.Unmarshal(raw, &n); err == nil {
		return n, !math.IsNaN(n) && !math.IsInf(n, 0)
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		n, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err == nil && !math.IsNaN(n) && !math.IsInf(n, 0) {
			return n, true
		}
	}
	return 0, false
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

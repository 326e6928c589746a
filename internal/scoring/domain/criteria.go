// Package domain holds the pure qualification scoring rules: criteria parsing,
// score normalization and aggregation.
package domain

import (
	"encoding/json"
	"strings"
)

// Criteria is the ordered list of qualification criteria of a campaign.
type Criteria []string

// ParseCriteria accepts a JSON array, a JSON string holding an encoded array,
// or a bare string naming a single criterion. Empty and non-string entries are dropped.
func ParseCriteria(raw []byte) Criteria {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return Criteria{}
	}

	var items []any
	if err := json.Unmarshal([]byte(trimmed), &items); err == nil {
		return fromItems(items)
	}

	var encoded string
	if err := json.Unmarshal([]byte(trimmed), &encoded); err == nil {
		return ParseCriteriaString(encoded)
	}

	return ParseCriteriaString(trimmed)
}

// ParseCriteriaString parses a value that arrived as text: either an encoded
// JSON array or one criterion.
func ParseCriteriaString(value string) Criteria {
	value = strings.TrimSpace(value)
	if value == "" {
		return Criteria{}
	}
	if strings.HasPrefix(value, "[") {
		var items []any
		if err := json.Unmarshal([]byte(value), &items); err == nil {
			return fromItems(items)
		}
	}
	return Criteria{value}
}

func fromItems(items []any) Criteria {
	out := make(Criteria, 0, len(items))
	for _, item := range items {
		s, ok := item.(string)
		if !ok {
			continue
		}
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

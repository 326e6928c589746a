package service

import (
	"fmt"
	"strings"

	"valdi_backend/internal/scoring/domain"
)

const systemInstruction = `You are a B2B sales qualification analyst. You read the transcript of a sales call
and score how well the prospect meets each qualification criterion of the campaign.
Score every criterion from 0 (clearly not met) to 100 (clearly met) using only evidence in the transcript.
Reply with a single JSON object and nothing else.`

// buildPrompt renders the user message for one scoring call.
func buildPrompt(transcript string, criteria domain.Criteria) string {
	var b strings.Builder
	b.WriteString("Qualification criteria:\n")
	for i, c := range criteria {
		fmt.Fprintf(&b, "%d. %s\n", i+1, c)
	}

	b.WriteString("\nTranscript:\n\"\"\"\n")
	b.WriteString(strings.TrimSpace(transcript))
	b.WriteString("\n\"\"\"\n\n")

	b.WriteString("Respond with JSON using exactly these keys:\n{\n")
	for i := range criteria {
		fmt.Fprintf(&b, "  %q: <number 0-100>,\n", domain.CriterionKey(i))
	}
	b.WriteString(`  "confidence": <number 0-1>,` + "\n")
	b.WriteString(`  "meeting_readiness": "ready" | "not_ready" | "needs_follow_up",` + "\n")
	b.WriteString(`  "reasoning": "<why the scores were given>",` + "\n")
	b.WriteString(`  "summary": "<two sentences>",` + "\n")
	b.WriteString(`  "key_quotes": ["<verbatim prospect quote supporting qualification>"],` + "\n")
	b.WriteString(`  "objections": ["<objection raised during the call>"],` + "\n")
	b.WriteString(`  "next_steps": ["<next step agreed on the call>"]` + "\n}\n")
	return b.String()
}

// extractJSONObject trims code fences and prose around the first JSON object.
func extractJSONObject(text string) (string, bool) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return "", false
	}
	return text[start : end+1], true
}

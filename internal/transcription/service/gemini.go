package service

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

const defaultTranscriptionModel = "gemini-2.0-flash"

// GeminiTranscriber sends recorded audio inline to a Gemini model.
type GeminiTranscriber struct {
	client   *genai.Client
	model    string
	language string
}

func NewGeminiTranscriber(ctx context.Context, apiKey, model, language string) (*GeminiTranscriber, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}
	if model == "" {
		model = defaultTranscriptionModel
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	return &GeminiTranscriber{client: client, model: model, language: language}, nil
}

func (g *GeminiTranscriber) Transcribe(ctx context.Context, audio []byte, mimeType string) (string, error) {
	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromBytes(audio, mimeType),
			genai.NewPartFromText(transcriptionPrompt(g.language)),
		}, genai.RoleUser),
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, &genai.GenerateContentConfig{
		Temperature: genai.Ptr[float32](0),
	})
	if err != nil {
		return "", fmt.Errorf("gemini transcription failed: %w", err)
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", fmt.Errorf("gemini returned an empty transcript")
	}
	return text, nil
}

func transcriptionPrompt(language string) string {
	if language == "" {
		language = "sv"
	}
	return fmt.Sprintf(`Transcribe this sales call verbatim. The call is in language %q.
Label each turn as "SDR:" or "Prospect:" on its own line.
Return only the transcript without commentary.`, language)
}

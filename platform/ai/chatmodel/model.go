// Package chatmodel adapts OpenAI-compatible chat/completions endpoints to the ADK model.LLM interface.
package chatmodel

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"iter"
	"net/http"
	"strings"

	"google.golang.org/adk/model"
	"google.golang.org/genai"
)

// Config for an OpenAI-compatible chat endpoint.
type Config struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature *float64
	// JSONResponse requests response_format {"type":"json_object"}.
	JSONResponse bool
	HTTPClient   *http.Client
}

// Model adapts a chat/completions API to model.LLM.
type Model struct {
	config Config
	client *http.Client
}

func NewModel(cfg Config) *Model {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-4-turbo-preview"
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{}
	}
	return &Model{
		config: cfg,
		client: client,
	}
}

func (m *Model) Name() string {
	return m.config.Model
}

// GenerateContent ignores stream and always yields a single response.
func (m *Model) GenerateContent(ctx context.Context, req *model.LLMRequest, stream bool) iter.Seq2[*model.LLMResponse, error] {
	return func(yield func(*model.LLMResponse, error) bool) {
		resp, err := m.generate(ctx, req)
		yield(resp, err)
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error interface{} `json:"error"`
}

func (m *Model) generate(ctx context.Context, req *model.LLMRequest) (*model.LLMResponse, error) {
	payload := map[string]interface{}{
		"model":    m.config.Model,
		"messages": m.convertMessages(req),
	}

	switch {
	case m.config.Temperature != nil:
		payload["temperature"] = *m.config.Temperature
	case req != nil && req.Config != nil && req.Config.Temperature != nil:
		payload["temperature"] = float64(*req.Config.Temperature)
	}
	if m.config.JSONResponse || (req != nil && req.Config != nil && req.Config.ResponseMIMEType == "application/json") {
		payload["response_format"] = map[string]string{"type": "json_object"}
	}

	jsonBody, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode chat request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(m.config.BaseURL, "/")+"/chat/completions", bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("failed to build chat request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+m.config.APIKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := m.client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("chat api returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	var result chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode chat response: %w", err)
	}
	if result.Error != nil {
		return nil, fmt.Errorf("chat api error: %v", result.Error)
	}
	if len(result.Choices) == 0 {
		return nil, fmt.Errorf("chat api error: empty choices")
	}

	content := result.Choices[0].Message.Content
	parts := make([]*genai.Part, 0, 1)
	if strings.TrimSpace(content) != "" {
		parts = append(parts, genai.NewPartFromText(content))
	}

	return &model.LLMResponse{
		Content: &genai.Content{
			Role:  genai.RoleModel,
			Parts: parts,
		},
	}, nil
}

func (m *Model) convertMessages(req *model.LLMRequest) []chatMessage {
	if req == nil {
		return nil
	}
	messages := make([]chatMessage, 0, len(req.Contents)+1)
	if req.Config != nil && req.Config.SystemInstruction != nil {
		if text := joinText(req.Config.SystemInstruction); text != "" {
			messages = append(messages, chatMessage{Role: "system", Content: text})
		}
	}
	for _, content := range req.Contents {
		if content == nil {
			continue
		}
		text := joinText(content)
		if text == "" {
			continue
		}
		messages = append(messages, chatMessage{Role: roleForContent(content.Role), Content: text})
	}
	return messages
}

func roleForContent(role string) string {
	if role == genai.RoleModel {
		return "assistant"
	}
	return "user"
}

func joinText(content *genai.Content) string {
	var b strings.Builder
	for _, part := range content.Parts {
		if part == nil || strings.TrimSpace(part.Text) == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString(part.Text)
	}
	return strings.TrimSpace(b.String())
}

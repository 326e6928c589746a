package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"google.golang.org/adk/agent"
	"google.golang.org/adk/agent/llmagent"
	"google.golang.org/adk/model"
	"google.golang.org/adk/runner"
	"google.golang.org/adk/session"
	"google.golang.org/genai"
)

const scoringAppName = "qualification_scorer"

// AgentCompleter runs prompts through an ADK agent backed by any model.LLM.
type AgentCompleter struct {
	llm            model.LLM
	runner         *runner.Runner
	sessionService session.Service
}

// NewAgentCompleter builds the scoring agent and its runner.
func NewAgentCompleter(llm model.LLM) (*AgentCompleter, error) {
	scorer, err := llmagent.New(llmagent.Config{
		Name:        "QualificationScorer",
		Model:       llm,
		Description: "Scores sales call transcripts against campaign qualification criteria.",
		Instruction: systemInstruction,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create scoring agent: %w", err)
	}

	sessionService := session.InMemoryService()
	r, err := runner.New(runner.Config{
		AppName:        scoringAppName,
		Agent:          scorer,
		SessionService: sessionService,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create scoring runner: %w", err)
	}

	return &AgentCompleter{llm: llm, runner: r, sessionService: sessionService}, nil
}

// ModelName returns the underlying model's name.
func (a *AgentCompleter) ModelName() string {
	return a.llm.Name()
}

// Complete runs prompt in a throwaway session and concatenates the reply text.
func (a *AgentCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	userID := "scoring"
	sessionID := uuid.New().String()

	if _, err := a.sessionService.Create(ctx, &session.CreateRequest{
		AppName:   scoringAppName,
		UserID:    userID,
		SessionID: sessionID,
	}); err != nil {
		return "", fmt.Errorf("failed to create session: %w", err)
	}
	defer func() {
		_ = a.sessionService.Delete(context.WithoutCancel(ctx), &session.DeleteRequest{
			AppName:   scoringAppName,
			UserID:    userID,
			SessionID: sessionID,
		})
	}()

	var out strings.Builder
	message := genai.NewContentFromText(prompt, genai.RoleUser)
	for event, err := range a.runner.Run(ctx, userID, sessionID, message, agent.RunConfig{StreamingMode: agent.StreamingModeNone}) {
		if err != nil {
			return "", fmt.Errorf("scoring run failed: %w", err)
		}
		if event == nil || event.Content == nil {
			continue
		}
		for _, part := range event.Content.Parts {
			if part != nil {
				out.WriteString(part.Text)
			}
		}
	}
	if strings.TrimSpace(out.String()) == "" {
		return "", fmt.Errorf("scoring model returned an empty reply")
	}
	return out.String(), nil
}

package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"valdi_backend/internal/scoring/domain"
	"valdi_backend/platform/apperr"
	"valdi_backend/platform/logger"
)

// Completer sends one prompt to the language model and returns its text reply.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
	ModelName() string
}

// GatewayConfig bounds model calls.
type GatewayConfig struct {
	Timeout     time.Duration
	MaxAttempts int
	Backoff     time.Duration
}

// Gateway scores transcripts against campaign criteria. It fails closed: any
// model or parsing failure is reported as scoring unavailable.
type Gateway struct {
	model Completer
	cfg   GatewayConfig
	log   *logger.Logger
}

// NewGateway creates a scoring gateway.
func NewGateway(model Completer, cfg GatewayConfig, log *logger.Logger) *Gateway {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	return &Gateway{model: model, cfg: cfg, log: log}
}

// ModelName names the model recorded on persisted scores.
func (g *Gateway) ModelName() string {
	if g.model == nil {
		return ""
	}
	return g.model.ModelName()
}

// Score rates transcript against criteria. threshold nil means the default.
func (g *Gateway) Score(ctx context.Context, transcript string, criteria domain.Criteria, threshold *float64) (domain.QualificationScore, error) {
	if len(criteria) == 0 {
		return domain.QualificationScore{}, apperr.Validation("campaign has no qualification criteria")
	}
	if g.model == nil {
		return domain.QualificationScore{}, apperr.ScoringUnavailable(errors.New("scoring model is not configured"))
	}

	prompt := buildPrompt(transcript, criteria)

	var raw map[string]json.RawMessage
	var lastErr error
	for attempt := 1; attempt <= g.cfg.MaxAttempts; attempt++ {
		raw, lastErr = g.attempt(ctx, prompt)
		if lastErr == nil {
			break
		}
		g.log.Warn("scoring attempt failed", "attempt", attempt, "error", lastErr)
		if attempt == g.cfg.MaxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return domain.QualificationScore{}, apperr.ScoringUnavailable(errors.Join(lastErr, ctx.Err()))
		case <-time.After(g.cfg.Backoff * time.Duration(attempt*attempt)):
		}
	}
	if lastErr != nil {
		return domain.QualificationScore{}, apperr.ScoringUnavailable(lastErr)
	}

	return domain.Aggregate(criteria, raw, domain.ResolveThreshold(threshold)), nil
}

func (g *Gateway) attempt(ctx context.Context, prompt string) (map[string]json.RawMessage, error) {
	if g.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.cfg.Timeout)
		defer cancel()
	}

	text, err := g.model.Complete(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("model call failed: %w", err)
	}
	body, ok := extractJSONObject(text)
	if !ok {
		return nil, errors.New("model reply contains no JSON object")
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal([]byte(body), &raw); err != nil {
		return nil, fmt.Errorf("model reply is not valid JSON: %w", err)
	}
	return raw, nil
}

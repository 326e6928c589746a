// Package service scores call transcripts against campaign criteria through a
// language model and records the results.
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"valdi_backend/internal/events"
	"valdi_backend/internal/scoring/domain"
	"valdi_backend/internal/scoring/repository"
	"valdi_backend/platform/apperr"
	"valdi_backend/platform/logger"

	"github.com/google/uuid"
)

// Store is the persistence the scoring service needs.
type Store interface {
	RecordingSubject(ctx context.Context, recordingID uuid.UUID) (repository.Subject, error)
	MeetingSubject(ctx context.Context, meetingID uuid.UUID) (repository.Subject, error)
	InsertScore(ctx context.Context, score repository.AIScore) (repository.AIScore, error)
}

// Scorer is the gateway contract.
type Scorer interface {
	Score(ctx context.Context, transcript string, criteria domain.Criteria, threshold *float64) (domain.QualificationScore, error)
	ModelName() string
}

// Result is a persisted score with its breakdown.
type Result struct {
	ScoreID uuid.UUID
	Score   domain.QualificationScore
}

// Service orchestrates loading, scoring and persisting
type Service struct {
	store    Store
	scorer   Scorer
	eventBus events.Bus
	log      *logger.Logger
}

// New creates a new scoring service
func New(store Store, scorer Scorer, eventBus events.Bus, log *logger.Logger) *Service {
	return &Service{store: store, scorer: scorer, eventBus: eventBus, log: log}
}

// ScoreRecording scores the transcript of one recording.
func (s *Service) ScoreRecording(ctx context.Context, recordingID uuid.UUID) (Result, error) {
	subject, err := s.store.RecordingSubject(ctx, recordingID)
	if err != nil {
		return Result{}, err
	}
	return s.score(ctx, subject)
}

// ScoreMeeting scores the latest transcribed recording of a meeting.
func (s *Service) ScoreMeeting(ctx context.Context, meetingID uuid.UUID) (Result, error) {
	subject, err := s.store.MeetingSubject(ctx, meetingID)
	if err != nil {
		return Result{}, err
	}
	return s.score(ctx, subject)
}

func (s *Service) score(ctx context.Context, subject repository.Subject) (Result, error) {
	if subject.Transcript == nil || strings.TrimSpace(*subject.Transcript) == "" {
		return Result{}, apperr.Validation("recording has no transcript yet")
	}

	criteria := domain.ParseCriteria(subject.CriteriaRaw)
	qs, err := s.scorer.Score(ctx, *subject.Transcript, criteria, subject.Threshold)
	if err != nil {
		s.log.Error("qualification scoring failed", "recordingId", subject.RecordingID, "error", err)
		return Result{}, err
	}

	details, err := json.Marshal(qs)
	if err != nil {
		return Result{}, fmt.Errorf("failed to encode score details: %w", err)
	}
	recordingID := subject.RecordingID
	stored, err := s.store.InsertScore(ctx, repository.AIScore{
		CallRecordingID: &recordingID,
		MeetingID:       subject.MeetingID,
		SDRID:           subject.SDRID,
		ScoreType:       repository.ScoreTypeQualification,
		ScoreValue:      qs.RoundedOverall(),
		ScoreDetails:    details,
		AIModel:         s.scorer.ModelName(),
	})
	if err != nil {
		return Result{}, err
	}

	s.log.Info("qualification scored", "scoreId", stored.ID, "recordingId", recordingID,
		"overall", qs.RoundedOverall(), "qualified", qs.IsQualified)
	s.eventBus.Publish(ctx, events.QualificationScored{
		BaseEvent:   events.NewBaseEvent(),
		ScoreID:     stored.ID,
		MeetingID:   subject.MeetingID,
		RecordingID: &recordingID,
		Overall:     qs.RoundedOverall(),
		IsQualified: qs.IsQualified,
	})
	return Result{ScoreID: stored.ID, Score: qs}, nil
}

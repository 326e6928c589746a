// Package service turns stored call audio into a transcript.
package service

import (
	"context"
	"fmt"
	"io"
	"time"

	"valdi_backend/internal/events"
	"valdi_backend/internal/transcription/repository"
	"valdi_backend/platform/logger"

	"github.com/google/uuid"
)

// Store is the persistence surface of the transcription worker.
type Store interface {
	Claim(ctx context.Context, recordingID uuid.UUID, lease time.Duration) (repository.Job, bool, error)
	Complete(ctx context.Context, recordingID uuid.UUID, transcript string) error
	Fail(ctx context.Context, recordingID uuid.UUID) error
}

// AudioSource reads stored recording objects.
type AudioSource interface {
	DownloadFile(ctx context.Context, bucket, fileKey string) (io.ReadCloser, error)
}

// Transcriber converts audio into text.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, mimeType string) (string, error)
}

// DefaultClaimLease bounds one transcription attempt. A claim older than this
// belongs to a dead worker and may be taken over.
const DefaultClaimLease = 15 * time.Minute

type Service struct {
	store       Store
	lease       time.Duration
	audio       AudioSource
	bucket      string
	maxBytes    int64
	transcriber Transcriber
	eventBus    events.Bus
	log         *logger.Logger
}

func New(store Store, audio AudioSource, bucket string, maxBytes int64, transcriber Transcriber, eventBus events.Bus, log *logger.Logger) *Service {
	return &Service{
		store:       store,
		lease:       DefaultClaimLease,
		audio:       audio,
		bucket:      bucket,
		maxBytes:    maxBytes,
		transcriber: transcriber,
		eventBus:    eventBus,
		log:         log,
	}
}

// Transcribe processes one recording. It returns (false, nil) when there is nothing to do.
func (s *Service) Transcribe(ctx context.Context, recordingID uuid.UUID) (bool, error) {
	job, ok, err := s.store.Claim(ctx, recordingID, s.lease)
	if err != nil {
		return false, err
	}
	if !ok {
		s.log.Info("transcription skipped", "recordingId", recordingID)
		return false, nil
	}

	runCtx, cancel := context.WithTimeout(ctx, s.lease)
	transcript, err := s.run(runCtx, job)
	cancel()
	if err != nil {
		if failErr := s.store.Fail(context.WithoutCancel(ctx), recordingID); failErr != nil {
			s.log.Error("failed to mark transcription failed", "recordingId", recordingID, "error", failErr)
		}
		s.log.Warn("transcription failed", "recordingId", recordingID, "error", err)
		return false, err
	}

	if err := s.store.Complete(ctx, recordingID, transcript); err != nil {
		return false, err
	}

	if s.eventBus != nil {
		s.eventBus.Publish(ctx, events.TranscriptionCompleted{
			BaseEvent:   events.NewBaseEvent(),
			RecordingID: recordingID,
		})
	}
	s.log.Info("transcription completed", "recordingId", recordingID, "chars", len(transcript))
	return true, nil
}

func (s *Service) run(ctx context.Context, job repository.Job) (string, error) {
	if s.transcriber == nil {
		return "", fmt.Errorf("transcription is not configured")
	}

	body, err := s.audio.DownloadFile(ctx, s.bucket, job.StoragePath)
	if err != nil {
		return "", err
	}
	defer func() { _ = body.Close() }()

	var reader io.Reader = body
	if s.maxBytes > 0 {
		reader = io.LimitReader(body, s.maxBytes+1)
	}
	audio, err := io.ReadAll(reader)
	if err != nil {
		return "", fmt.Errorf("failed to read recording: %w", err)
	}
	if s.maxBytes > 0 && int64(len(audio)) > s.maxBytes {
		return "", fmt.Errorf("recording exceeds %d bytes", s.maxBytes)
	}

	return s.transcriber.Transcribe(ctx, audio, job.MimeType)
}

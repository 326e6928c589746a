// Package transcription wires the post-call transcription worker.
package transcription

import (
	"context"

	"valdi_backend/internal/adapters/storage"
	"valdi_backend/internal/events"
	"valdi_backend/internal/transcription/repository"
	"valdi_backend/internal/transcription/service"
	"valdi_backend/platform/config"
	"valdi_backend/platform/logger"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Config combines the settings transcription reads.
type Config interface {
	config.TranscriptionConfig
	config.MinIOConfig
	config.AcquisitionConfig
}

// NewService builds the transcription service. Without a Gemini key every job fails
// and is left in failed for a later retry.
func NewService(ctx context.Context, pool *pgxpool.Pool, storageSvc storage.StorageService, cfg Config, eventBus events.Bus, log *logger.Logger) (*service.Service, error) {
	var transcriber service.Transcriber
	if cfg.IsTranscriptionEnabled() {
		gemini, err := service.NewGeminiTranscriber(ctx, cfg.GetGeminiAPIKey(), cfg.GetTranscriptionModel(), cfg.GetTranscriptionLanguage())
		if err != nil {
			return nil, err
		}
		transcriber = gemini
	} else {
		log.Warn("GEMINI_API_KEY not configured; transcription disabled")
	}

	return service.New(
		repository.New(pool),
		storageSvc,
		cfg.GetMinioBucketCallRecordings(),
		cfg.GetRecordingMaxBytes(),
		transcriber,
		eventBus,
		log,
	), nil
}

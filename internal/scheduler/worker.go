package scheduler

import (
	"context"
	"fmt"

	scoringservice "valdi_backend/internal/scoring/service"
	"valdi_backend/platform/apperr"
	"valdi_backend/platform/config"
	"valdi_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

// Transcriber runs transcription for one recording.
type Transcriber interface {
	Transcribe(ctx context.Context, recordingID uuid.UUID) (bool, error)
}

// Scorer scores one recording against its campaign criteria.
type Scorer interface {
	ScoreRecording(ctx context.Context, recordingID uuid.UUID) (scoringservice.Result, error)
}

// ScoringQueue schedules scoring after a transcript exists.
type ScoringQueue interface {
	EnqueueScoring(ctx context.Context, recordingID uuid.UUID) error
}

type Worker struct {
	server      *asynq.Server
	mux         *asynq.ServeMux
	transcriber Transcriber
	scorer      Scorer
	scoring     ScoringQueue
	log         *logger.Logger
}

func NewWorker(cfg config.SchedulerConfig, transcriber Transcriber, scorer Scorer, scoring ScoringQueue, log *logger.Logger) (*Worker, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	queue := cfg.GetAsynqQueueName()
	if queue == "" {
		queue = "default"
	}

	concurrency := cfg.GetAsynqConcurrency()
	if concurrency < 1 {
		concurrency = 10
	}

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			queue: 1,
		},
	})

	w := newWorker(transcriber, scorer, scoring, log)
	w.server = server
	return w, nil
}

func newWorker(transcriber Transcriber, scorer Scorer, scoring ScoringQueue, log *logger.Logger) *Worker {
	mux := asynq.NewServeMux()
	w := &Worker{
		mux:         mux,
		transcriber: transcriber,
		scorer:      scorer,
		scoring:     scoring,
		log:         log,
	}

	mux.HandleFunc(TaskTranscribeRecording, w.handleTranscribeRecording)
	mux.HandleFunc(TaskScoreRecording, w.handleScoreRecording)
	return w
}

func (w *Worker) Run(ctx context.Context) {
	if w == nil || w.server == nil {
		return
	}

	go func() {
		<-ctx.Done()
		w.server.Shutdown()
	}()

	if err := w.server.Run(w.mux); err != nil {
		w.log.Error("scheduler worker stopped", "error", err)
	}
}

func (w *Worker) handleTranscribeRecording(ctx context.Context, task *asynq.Task) error {
	recordingID, err := parseRecordingID(task)
	if err != nil {
		return err
	}

	done, err := w.transcriber.Transcribe(ctx, recordingID)
	if err != nil {
		return err
	}
	if !done || w.scoring == nil {
		return nil
	}

	if err := w.scoring.EnqueueScoring(ctx, recordingID); err != nil {
		w.log.Warn("failed to enqueue scoring", "recordingId", recordingID, "error", err)
	}
	return nil
}

func (w *Worker) handleScoreRecording(ctx context.Context, task *asynq.Task) error {
	recordingID, err := parseRecordingID(task)
	if err != nil {
		return err
	}

	result, err := w.scorer.ScoreRecording(ctx, recordingID)
	if err != nil {
		// Only an unavailable model is worth retrying; missing transcripts or criteria are not.
		if apperr.Is(err, apperr.KindUnavailable) {
			return err
		}
		w.log.Warn("automatic scoring skipped", "recordingId", recordingID, "error", err)
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}

	w.log.Info("recording scored", "recordingId", recordingID, "scoreId", result.ScoreID, "qualified", result.Score.IsQualified)
	return nil
}

func parseRecordingID(task *asynq.Task) (uuid.UUID, error) {
	payload, err := ParseRecordingPayload(task)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}
	id, err := uuid.Parse(payload.RecordingID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}
	return id, nil
}

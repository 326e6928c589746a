package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	retentionservice "valdi_backend/internal/retention/service"
	scoringservice "valdi_backend/internal/scoring/service"
	"valdi_backend/platform/apperr"
	"valdi_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

type transcriberStub struct {
	done bool
	err  error
}

func (s transcriberStub) Transcribe(context.Context, uuid.UUID) (bool, error) { return s.done, s.err }

type scorerStub struct {
	err error
}

func (s scorerStub) ScoreRecording(context.Context, uuid.UUID) (scoringservice.Result, error) {
	return scoringservice.Result{ScoreID: uuid.New()}, s.err
}

type scoringQueueStub struct {
	ids []uuid.UUID
}

func (q *scoringQueueStub) EnqueueScoring(_ context.Context, id uuid.UUID) error {
	q.ids = append(q.ids, id)
	return nil
}

func recordingTask(t *testing.T, typename string, id string) *asynq.Task {
	t.Helper()
	var (
		task *asynq.Task
		err  error
	)
	if typename == TaskTranscribeRecording {
		task, err = NewTranscribeRecordingTask(RecordingPayload{RecordingID: id})
	} else {
		task, err = NewScoreRecordingTask(RecordingPayload{RecordingID: id})
	}
	if err != nil {
		t.Fatalf("failed to build task: %v", err)
	}
	return task
}

func TestTranscriptionEnqueuesScoringOnlyWhenDone(t *testing.T) {
	cases := []struct {
		name        string
		transcriber transcriberStub
		wantErr     bool
		wantQueued  int
	}{
		{"transcribed", transcriberStub{done: true}, false, 1},
		{"nothing to do", transcriberStub{}, false, 0},
		{"model failure", transcriberStub{err: errors.New("quota")}, true, 0},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			queue := &scoringQueueStub{}
			w := newWorker(tc.transcriber, scorerStub{}, queue, logger.New("development"))
			id := uuid.New()

			err := w.mux.ProcessTask(context.Background(), recordingTask(t, TaskTranscribeRecording, id.String()))
			if (err != nil) != tc.wantErr {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(queue.ids) != tc.wantQueued {
				t.Fatalf("expected %d scoring tasks, got %d", tc.wantQueued, len(queue.ids))
			}
			if tc.wantQueued == 1 && queue.ids[0] != id {
				t.Fatalf("scoring enqueued for the wrong recording")
			}
		})
	}
}

func TestScoringRetriesOnlyWhenModelUnavailable(t *testing.T) {
	cases := []struct {
		name      string
		err       error
		wantErr   bool
		wantRetry bool
	}{
		{"scored", nil, false, false},
		{"model unavailable", apperr.ScoringUnavailable(errors.New("timeout")), true, true},
		{"no transcript", apperr.Validation("recording has no transcript"), true, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := newWorker(transcriberStub{}, scorerStub{err: tc.err}, nil, logger.New("development"))
			err := w.mux.ProcessTask(context.Background(), recordingTask(t, TaskScoreRecording, uuid.NewString()))
			if (err != nil) != tc.wantErr {
				t.Fatalf("unexpected error: %v", err)
			}
			if err != nil && errors.Is(err, asynq.SkipRetry) == tc.wantRetry {
				t.Fatalf("retry mismatch for %v", err)
			}
		})
	}
}

func TestMalformedPayloadSkipsRetry(t *testing.T) {
	w := newWorker(transcriberStub{}, scorerStub{}, nil, logger.New("development"))
	err := w.mux.ProcessTask(context.Background(), recordingTask(t, TaskScoreRecording, "not-a-uuid"))
	if !errors.Is(err, asynq.SkipRetry) {
		t.Fatalf("expected SkipRetry, got %v", err)
	}
}

type retentionRunnerStub struct {
	calls atomic.Int32
}

func (r *retentionRunnerStub) Run(context.Context) (retentionservice.RunResult, error) {
	r.calls.Add(1)
	return retentionservice.RunResult{Skipped: r.calls.Load() > 1}, nil
}

func TestRetentionTickerRunsOnStartAndOnTick(t *testing.T) {
	runner := &retentionRunnerStub{}
	ticker := NewRetentionTicker(runner, logger.New("development"), 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		ticker.Run(ctx)
		close(done)
	}()

	deadline := time.After(2 * time.Second)
	for runner.calls.Load() < 3 {
		select {
		case <-deadline:
			t.Fatalf("expected at least 3 runs, got %d", runner.calls.Load())
		case <-time.After(5 * time.Millisecond):
		}
	}
	cancel()
	<-done
}

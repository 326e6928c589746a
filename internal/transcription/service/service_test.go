package service

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"valdi_backend/internal/events"
	"valdi_backend/internal/transcription/repository"
	"valdi_backend/platform/logger"

	"github.com/google/uuid"
)

type memStore struct {
	mu         sync.Mutex
	now        time.Time
	status     map[uuid.UUID]string
	path       map[uuid.UUID]string
	transcript map[uuid.UUID]string
	startedAt  map[uuid.UUID]time.Time
}

func newMemStore() *memStore {
	return &memStore{
		now:        time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC),
		status:     map[uuid.UUID]string{},
		path:       map[uuid.UUID]string{},
		transcript: map[uuid.UUID]string{},
		startedAt:  map[uuid.UUID]time.Time{},
	}
}

func (m *memStore) add(path string) uuid.UUID {
	id := uuid.New()
	m.status[id] = repository.StatusPending
	m.path[id] = path
	return id
}

func (m *memStore) Claim(_ context.Context, id uuid.UUID, lease time.Duration) (repository.Job, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st := m.status[id]
	claimable := st == repository.StatusPending || st == repository.StatusFailed
	if st == repository.StatusProcessing {
		started, ok := m.startedAt[id]
		claimable = !ok || started.Before(m.now.Add(-lease))
	}
	if m.path[id] == "" || !claimable {
		return repository.Job{}, false, nil
	}
	m.status[id] = repository.StatusProcessing
	m.startedAt[id] = m.now
	return repository.Job{RecordingID: id, StoragePath: m.path[id], MimeType: "audio/mpeg"}, true, nil
}

func (m *memStore) Complete(_ context.Context, id uuid.UUID, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.status[id] = repository.StatusCompleted
	m.transcript[id] = text
	return nil
}

func (m *memStore) Fail(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.status[id] = repository.StatusFailed
	return nil
}

type audioStub struct {
	data map[string][]byte
}

func (a audioStub) DownloadFile(_ context.Context, _, key string) (io.ReadCloser, error) {
	data, ok := a.data[key]
	if !ok {
		return nil, errors.New("object not found")
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

type transcriberStub struct {
	text  string
	err   error
	calls int
}

func (t *transcriberStub) Transcribe(_ context.Context, audio []byte, mimeType string) (string, error) {
	t.calls++
	if len(audio) == 0 || mimeType == "" {
		return "", errors.New("bad input")
	}
	return t.text, t.err
}

func TestTranscribeStoresTranscriptAndPublishes(t *testing.T) {
	store := newMemStore()
	id := store.add("sdr/campaign/aircall-1.mp3")
	audio := audioStub{data: map[string][]byte{"sdr/campaign/aircall-1.mp3": []byte("ID3")}}
	tr := &transcriberStub{text: "SDR: Hej!"}

	bus := events.NewInMemoryBus(logger.New("development"))
	var got []uuid.UUID
	var mu sync.Mutex
	bus.Subscribe(events.TranscriptionCompleted{}.EventName(), events.HandlerFunc(func(_ context.Context, e events.Event) error {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, e.(events.TranscriptionCompleted).RecordingID)
		return nil
	}))

	svc := New(store, audio, "call-recordings", 1024, tr, bus, logger.New("development"))
	done, err := svc.Transcribe(context.Background(), id)
	if err != nil || !done {
		t.Fatalf("expected transcription, got %v %v", done, err)
	}
	if store.status[id] != repository.StatusCompleted || store.transcript[id] != "SDR: Hej!" {
		t.Fatalf("unexpected row state: %s %q", store.status[id], store.transcript[id])
	}

	done, err = svc.Transcribe(context.Background(), id)
	if err != nil || done {
		t.Fatalf("second run should be a no-op, got %v %v", done, err)
	}
	if tr.calls != 1 {
		t.Fatalf("expected one model call, got %d", tr.calls)
	}

	bus.Wait()
	if len(got) != 1 || got[0] != id {
		t.Fatalf("expected one completion event for %s, got %v", id, got)
	}
}

func TestTranscribeFailureAllowsRetry(t *testing.T) {
	cases := []struct {
		name  string
		audio map[string][]byte
		tr    *transcriberStub
		max   int64
	}{
		{"model error", map[string][]byte{"a.mp3": []byte("ID3")}, &transcriberStub{err: errors.New("quota")}, 1024},
		{"missing object", map[string][]byte{}, &transcriberStub{text: "x"}, 1024},
		{"too large", map[string][]byte{"a.mp3": bytes.Repeat([]byte{1}, 32)}, &transcriberStub{text: "x"}, 16},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			store := newMemStore()
			id := store.add("a.mp3")
			svc := New(store, audioStub{data: tc.audio}, "b", tc.max, tc.tr, nil, logger.New("development"))

			if _, err := svc.Transcribe(context.Background(), id); err == nil {
				t.Fatalf("expected error")
			}
			if store.status[id] != repository.StatusFailed {
				t.Fatalf("expected failed status, got %s", store.status[id])
			}
			if _, ok, _ := store.Claim(context.Background(), id, DefaultClaimLease); !ok {
				t.Fatalf("failed recording should be claimable again")
			}
		})
	}
}

func TestTranscribeTakesOverStaleClaim(t *testing.T) {
	cases := []struct {
		name    string
		started time.Duration
		want    bool
	}{
		{"claim from a crashed worker", -time.Hour, true},
		{"claim still within lease", -time.Minute, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			store := newMemStore()
			id := store.add("a.mp3")
			store.status[id] = repository.StatusProcessing
			store.startedAt[id] = store.now.Add(tc.started)

			tr := &transcriberStub{text: "SDR: Hej!"}
			svc := New(store, audioStub{data: map[string][]byte{"a.mp3": []byte("ID3")}}, "b", 1024, tr, nil, logger.New("development"))

			done, err := svc.Transcribe(context.Background(), id)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if done != tc.want {
				t.Fatalf("expected done=%v, got %v", tc.want, done)
			}
			if tc.want && store.status[id] != repository.StatusCompleted {
				t.Fatalf("expected completed status, got %s", store.status[id])
			}
			if !tc.want && (store.status[id] != repository.StatusProcessing || tr.calls != 0) {
				t.Fatalf("live claim must be left alone, got %s with %d calls", store.status[id], tr.calls)
			}
		})
	}
}

func TestTranscribeSkipsRedactedRecording(t *testing.T) {
	store := newMemStore()
	id := store.add("")
	tr := &transcriberStub{text: "x"}
	svc := New(store, audioStub{}, "b", 0, tr, nil, logger.New("development"))

	done, err := svc.Transcribe(context.Background(), id)
	if err != nil || done {
		t.Fatalf("expected skip, got %v %v", done, err)
	}
	if tr.calls != 0 {
		t.Fatalf("model must not be called")
	}
}

func TestTranscriptionPromptDefaultsToSwedish(t *testing.T) {
	if got := transcriptionPrompt(""); !strings.Contains(got, `"sv"`) {
		t.Fatalf("expected sv in prompt, got %q", got)
	}
}

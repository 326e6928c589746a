package events

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"valdi_backend/platform/logger"
)

type pingEvent struct{ BaseEvent }

func (pingEvent) EventName() string { return "test.ping" }

func TestPublishSyncJoinsHandlerErrors(t *testing.T) {
	bus := NewInMemoryBus(logger.New("test"))
	var calls int32
	bus.Subscribe("test.ping", HandlerFunc(func(ctx context.Context, e Event) error {
		atomic.AddInt32(&calls, 1)
		return errors.New("first failed")
	}))
	bus.Subscribe("test.ping", HandlerFunc(func(ctx context.Context, e Event) error {
		atomic.AddInt32(&calls, 1)
		return nil
	}))

	err := bus.PublishSync(context.Background(), pingEvent{NewBaseEvent()})
	if err == nil {
		t.Fatal("expected joined error")
	}
	if calls != 2 {
		t.Fatalf("expected both handlers to run, got %d", calls)
	}
}

func TestPublishRecoversPanickingHandler(t *testing.T) {
	bus := NewInMemoryBus(logger.New("test"))
	var ran int32
	bus.Subscribe("test.ping", HandlerFunc(func(ctx context.Context, e Event) error {
		panic("boom")
	}))
	bus.Subscribe("test.ping", HandlerFunc(func(ctx context.Context, e Event) error {
		atomic.StoreInt32(&ran, 1)
		return nil
	}))

	bus.Publish(context.Background(), pingEvent{NewBaseEvent()})
	bus.Wait()

	if atomic.LoadInt32(&ran) != 1 {
		t.Fatal("expected the healthy handler to run")
	}
}

func TestPublishWithoutSubscribersIsNoop(t *testing.T) {
	bus := NewInMemoryBus(logger.New("test"))
	if err := bus.PublishSync(context.Background(), pingEvent{NewBaseEvent()}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

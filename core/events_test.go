package core

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestEventBusEmit_JoinsObserverFailuresAndRecoversPanics(t *testing.T) {
	delivered := 0
	bus := NewEventBus(
		EventObserverFunc{ID: "counting", Fn: func(context.Context, Event) error {
			delivered++
			return nil
		}},
		EventObserverFunc{ID: "failing", Fn: func(context.Context, Event) error {
			return errors.New("observer down")
		}},
		EventObserverFunc{ID: "panicking", Fn: func(context.Context, Event) error {
			panic("observer exploded")
		}},
	)

	err := bus.Emit(context.Background(), NewEvent(EventIntegrationRegistered, "slack", nil))
	if err == nil {
		t.Fatalf("expected joined observer error")
	}
	if !strings.Contains(err.Error(), `"failing"`) || !strings.Contains(err.Error(), `"panicking"`) {
		t.Fatalf("expected both failing observers in error, got %v", err)
	}
	if delivered != 1 {
		t.Fatalf("expected healthy observer to receive the event, got %d", delivered)
	}
}

func TestEventBusUnsubscribe(t *testing.T) {
	bus := NewEventBus()
	calls := 0
	bus.Subscribe(EventObserverFunc{ID: "once", Fn: func(context.Context, Event) error {
		calls++
		return nil
	}})
	_ = bus.Emit(context.Background(), NewEvent(EventSyncStarted, "zapier", nil))
	if !bus.Unsubscribe("once") {
		t.Fatalf("expected observer to be removed")
	}
	if bus.Unsubscribe("once") {
		t.Fatalf("expected second unsubscribe to report false")
	}
	_ = bus.Emit(context.Background(), NewEvent(EventSyncStarted, "zapier", nil))
	if calls != 1 {
		t.Fatalf("expected a single delivery, got %d", calls)
	}
}

func TestChannelObserver_DropsWhenFull(t *testing.T) {
	observer := NewChannelObserver("buffered", 1)
	bus := NewEventBus(observer)
	ctx := context.Background()

	_ = bus.Emit(ctx, NewEvent(EventWebhookProcessed, "slack", map[string]any{"event": "message"}))
	_ = bus.Emit(ctx, NewEvent(EventWebhookProcessed, "slack", nil))

	if observer.Dropped() != 1 {
		t.Fatalf("expected one dropped event, got %d", observer.Dropped())
	}
	event := <-observer.Events()
	if event.Integration != "slack" || event.Metadata["event"] != "message" {
		t.Fatalf("unexpected buffered event %#v", event)
	}
	if event.OccurredAt.IsZero() {
		t.Fatalf("expected emit to stamp occurred_at")
	}
}

func TestEventWithError(t *testing.T) {
	event := NewEvent(EventWebhookFailed, "zapier", nil).WithError(errBoom)
	if event.Error != "boom" {
		t.Fatalf("expected error text, got %q", event.Error)
	}
	if cleared := event.WithError(nil); cleared.Error != "boom" {
		t.Fatalf("expected nil error to leave event unchanged, got %q", cleared.Error)
	}
}

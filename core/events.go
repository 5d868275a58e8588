package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
)

const (
	EventIntegrationRegistered   = "integration:registered"
	EventIntegrationUnregistered = "integration:unregistered"
	EventIntegrationEnabled      = "integration:enabled"
	EventIntegrationDisabled     = "integration:disabled"
	EventIntegrationError        = "integration:error"
	EventWebhookRegistered       = "webhook:registered"
	EventWebhookProcessed        = "webhook:processed"
	EventWebhookFailed           = "webhook:failed"
	EventSyncStarted             = "sync:started"
	EventSyncProgress            = "sync:progress"
	EventSyncCompleted           = "sync:completed"
)

type Event struct {
	Name        string
	Integration string
	OccurredAt  time.Time
	Metadata    map[string]any
	Error       string
}

func NewEvent(name string, integration string, metadata map[string]any) Event {
	return Event{
		Name:        strings.TrimSpace(name),
		Integration: strings.TrimSpace(integration),
		OccurredAt:  time.Now().UTC(),
		Metadata:    copyAnyMap(metadata),
	}
}

func (e Event) WithError(err error) Event {
	if err != nil {
		e.Error = err.Error()
	}
	return e
}

type EventObserver interface {
	Name() string
	OnEvent(ctx context.Context, event Event) error
}

// EventEmitter is what components hold to publish lifecycle events.
type EventEmitter interface {
	Emit(ctx context.Context, event Event) error
}

type EventObserverFunc struct {
	ID string
	Fn func(ctx context.Context, event Event) error
}

func (f EventObserverFunc) Name() string {
	return f.ID
}

func (f EventObserverFunc) OnEvent(ctx context.Context, event Event) error {
	if f.Fn == nil {
		return nil
	}
	return f.Fn(ctx, event)
}

// EventBus fans events out to observers in subscription order. Observer
// failures are aggregated and never stop the remaining observers.
type EventBus struct {
	mu        sync.RWMutex
	observers []EventObserver
}

func NewEventBus(observers ...EventObserver) *EventBus {
	bus := &EventBus{observers: make([]EventObserver, 0, len(observers))}
	for _, observer := range observers {
		bus.Subscribe(observer)
	}
	return bus
}

func (b *EventBus) Subscribe(observer EventObserver) {
	if b == nil || observer == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.observers = append(b.observers, observer)
}

func (b *EventBus) Unsubscribe(name string) bool {
	if b == nil {
		return false
	}
	name = strings.TrimSpace(name)
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, observer := range b.observers {
		if observerName(observer) == name {
			b.observers = append(b.observers[:i], b.observers[i+1:]...)
			return true
		}
	}
	return false
}

func (b *EventBus) Emit(ctx context.Context, event Event) error {
	if b == nil {
		return nil
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}
	var emitErr error
	for _, observer := range b.snapshot() {
		if err := notify(ctx, observer, event); err != nil {
			emitErr = errors.Join(emitErr, fmt.Errorf("event observer %q failed: %w", observerName(observer), err))
		}
	}
	return emitErr
}

func (b *EventBus) snapshot() []EventObserver {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]EventObserver, len(b.observers))
	copy(out, b.observers)
	return out
}

func notify(ctx context.Context, observer EventObserver, event Event) (err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			err = fmt.Errorf("panic: %v", recovered)
		}
	}()
	return observer.OnEvent(ctx, event)
}

func observerName(observer EventObserver) string {
	if observer == nil {
		return "unknown"
	}
	name := strings.TrimSpace(observer.Name())
	if name == "" {
		return "unnamed"
	}
	return name
}

// ChannelObserver forwards events to a buffered channel and drops them when
// the buffer is full.
type ChannelObserver struct {
	name    string
	events  chan Event
	mu      sync.Mutex
	dropped int
}

func NewChannelObserver(name string, buffer int) *ChannelObserver {
	if buffer <= 0 {
		buffer = 64
	}
	return &ChannelObserver{name: strings.TrimSpace(name), events: make(chan Event, buffer)}
}

func (o *ChannelObserver) Name() string {
	if o == nil {
		return ""
	}
	return o.name
}

func (o *ChannelObserver) Events() <-chan Event {
	if o == nil {
		return nil
	}
	return o.events
}

func (o *ChannelObserver) Dropped() int {
	if o == nil {
		return 0
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.dropped
}

func (o *ChannelObserver) OnEvent(_ context.Context, event Event) error {
	if o == nil {
		return nil
	}
	select {
	case o.events <- event:
	default:
		o.mu.Lock()
		o.dropped++
		o.mu.Unlock()
	}
	return nil
}

// LoggingObserver writes every event to a logger.
type LoggingObserver struct {
	logger Logger
}

func NewLoggingObserver(logger Logger) *LoggingObserver {
	return &LoggingObserver{logger: logger}
}

func (*LoggingObserver) Name() string {
	return "logging"
}

func (o *LoggingObserver) OnEvent(ctx context.Context, event Event) error {
	if o == nil || o.logger == nil {
		return nil
	}
	fields := copyAnyMap(event.Metadata)
	fields["event"] = event.Name
	fields["integration"] = event.Integration
	logger := o.logger
	if ctx != nil {
		logger = logger.WithContext(ctx)
	}
	if event.Error != "" {
		fields["error"] = event.Error
		logger.Warn("integration event", flattenFields(fields)...)
		return nil
	}
	logger.Debug("integration event", flattenFields(fields)...)
	return nil
}

package webhooks

import (
	"context"
	"strings"
	"sync"
	"time"
)

const (
	DirectionInbound  = "inbound"
	DirectionOutbound = "outbound"
)

const (
	AttemptStatusSucceeded = "succeeded"
	AttemptStatusFailed    = "failed"
	AttemptStatusTimedOut  = "timed_out"
	AttemptStatusRejected  = "rejected"
)

// DeliveryAttempt is one handler invocation or outbound POST.
type DeliveryAttempt struct {
	DeliveryID string
	Webhook    string
	Direction  string
	Event      string
	Attempt    int
	Status     string
	StatusCode int
	Error      string
	StartedAt  time.Time
	Duration   time.Duration
}

type DeliveryLog interface {
	Append(ctx context.Context, attempt DeliveryAttempt) error
}

// MemoryDeliveryLog keeps the most recent attempts in a fixed size ring.
type MemoryDeliveryLog struct {
	mu       sync.RWMutex
	capacity int
	entries  []DeliveryAttempt
	next     int
	full     bool
}

func NewMemoryDeliveryLog(capacity int) *MemoryDeliveryLog {
	if capacity <= 0 {
		capacity = 1024
	}
	return &MemoryDeliveryLog{
		capacity: capacity,
		entries:  make([]DeliveryAttempt, capacity),
	}
}

func (l *MemoryDeliveryLog) Append(_ context.Context, attempt DeliveryAttempt) error {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries[l.next] = attempt
	l.next = (l.next + 1) % l.capacity
	if l.next == 0 {
		l.full = true
	}
	return nil
}

// Recent returns up to limit attempts for webhook, newest first. An empty
// webhook matches every entry and a non-positive limit returns all.
func (l *MemoryDeliveryLog) Recent(webhook string, limit int) []DeliveryAttempt {
	if l == nil {
		return nil
	}
	webhook = strings.TrimSpace(webhook)
	l.mu.RLock()
	defer l.mu.RUnlock()

	size := l.next
	if l.full {
		size = l.capacity
	}
	out := make([]DeliveryAttempt, 0, size)
	for i := 0; i < size; i++ {
		idx := (l.next - 1 - i + l.capacity) % l.capacity
		entry := l.entries[idx]
		if webhook != "" && entry.Webhook != webhook {
			continue
		}
		out = append(out, entry)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}

// ForDelivery returns every attempt of one delivery in attempt order.
func (l *MemoryDeliveryLog) ForDelivery(deliveryID string) []DeliveryAttempt {
	recent := l.Recent("", 0)
	out := []DeliveryAttempt{}
	for i := len(recent) - 1; i >= 0; i-- {
		if recent[i].DeliveryID == deliveryID {
			out = append(out, recent[i])
		}
	}
	return out
}

// MultiDeliveryLog fans attempts out to several logs and keeps going when
// one fails.
type MultiDeliveryLog []DeliveryLog

func (m MultiDeliveryLog) Append(ctx context.Context, attempt DeliveryAttempt) error {
	var firstErr error
	for _, log := range m {
		if log == nil {
			continue
		}
		if err := log.Append(ctx, attempt); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

var (
	_ DeliveryLog = (*MemoryDeliveryLog)(nil)
	_ DeliveryLog = MultiDeliveryLog(nil)
)

package webhooks

import (
	"strings"
	"sync"
	"time"
)

// ReplayGuard suppresses inbound deliveries whose id was already seen within
// a window. Vendors such as Slack redeliver when an ack is slow.
type ReplayGuard interface {
	Seen(webhook string, headers map[string]string) (key string, duplicate bool)
	Forget(key string)
}

type ReplayKeyExtractor func(webhook string, headers map[string]string) (string, bool)

type ReplayGuardOptions struct {
	Window     time.Duration
	MaxEntries int
	ExtractKey ReplayKeyExtractor
	Now        func() time.Time
}

type WindowReplayGuard struct {
	window     time.Duration
	maxEntries int
	extractKey ReplayKeyExtractor
	now        func() time.Time

	mu      sync.Mutex
	entries map[string]time.Time
}

func NewReplayGuard(opts ReplayGuardOptions) *WindowReplayGuard {
	window := opts.Window
	if window <= 0 {
		window = 5 * time.Minute
	}
	maxEntries := opts.MaxEntries
	if maxEntries <= 0 {
		maxEntries = 4096
	}
	extractKey := opts.ExtractKey
	if extractKey == nil {
		extractKey = DefaultReplayKeyExtractor
	}
	now := opts.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &WindowReplayGuard{
		window:     window,
		maxEntries: maxEntries,
		extractKey: extractKey,
		now:        now,
		entries:    map[string]time.Time{},
	}
}

func (g *WindowReplayGuard) Seen(webhook string, headers map[string]string) (string, bool) {
	if g == nil {
		return "", false
	}
	key, ok := g.extractKey(webhook, headers)
	key = strings.TrimSpace(key)
	if !ok || key == "" {
		return "", false
	}

	now := g.now().UTC()
	g.mu.Lock()
	defer g.mu.Unlock()

	lastSeen, exists := g.entries[key]
	if exists && now.Sub(lastSeen) < g.window {
		return key, true
	}
	g.entries[key] = now
	g.cleanup(now)
	return key, false
}

// Forget drops a key so a failed delivery can be retried by the sender.
func (g *WindowReplayGuard) Forget(key string) {
	if g == nil {
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.entries, strings.TrimSpace(key))
}

func (g *WindowReplayGuard) cleanup(now time.Time) {
	for key, seenAt := range g.entries {
		if now.Sub(seenAt) >= g.window {
			delete(g.entries, key)
		}
	}
	if len(g.entries) <= g.maxEntries {
		return
	}
	// Over capacity with live entries: evict the oldest.
	for len(g.entries) > g.maxEntries {
		oldestKey := ""
		var oldest time.Time
		for key, seenAt := range g.entries {
			if oldestKey == "" || seenAt.Before(oldest) {
				oldestKey, oldest = key, seenAt
			}
		}
		delete(g.entries, oldestKey)
	}
}

// DefaultReplayKeyExtractor keys on the common delivery id headers.
func DefaultReplayKeyExtractor(webhook string, headers map[string]string) (string, bool) {
	webhook = strings.ToLower(strings.TrimSpace(webhook))
	if webhook == "" {
		return "", false
	}
	for _, header := range []string{"X-Webhook-Delivery", "X-Delivery-Id", "X-GitHub-Delivery", "X-Zapier-Delivery-Id"} {
		if value := headerValue(headers, header); value != "" {
			return webhook + ":" + value, true
		}
	}
	return "", false
}

var _ ReplayGuard = (*WindowReplayGuard)(nil)

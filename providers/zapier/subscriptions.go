package zapier

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/goliatone/go-integrations/core"
	"golang.org/x/sync/errgroup"
)

// Subscription is a REST hook target registered by a Zap.
type Subscription struct {
	ID        string
	Event     string
	TargetURL string
	CreatedAt time.Time
}

func (s Subscription) toMap() map[string]any {
	return map[string]any{
		"id":         s.ID,
		"event":      s.Event,
		"target_url": s.TargetURL,
		"created_at": s.CreatedAt.Format(time.RFC3339),
	}
}

// TriggerAck is the outcome of one hook delivery.
type TriggerAck struct {
	SubscriptionID string
	TargetURL      string
	Receipt        core.DeliveryReceipt
	Err            error
	// Removed is set when the target answered 410 Gone and the
	// subscription was dropped.
	Removed bool
}

func registrationName(id string) string {
	return Name + ".hook." + id
}

// Subscribe registers targetURL as an outbound delivery for event.
func (a *Adapter) Subscribe(_ context.Context, event string, targetURL string) (Subscription, error) {
	event = strings.TrimSpace(event)
	targetURL = strings.TrimSpace(targetURL)
	if event == "" {
		return Subscription{}, core.BadInputError("zapier: subscription event is required", nil)
	}
	parsed, err := url.Parse(targetURL)
	if err != nil || (parsed.Scheme != "https" && parsed.Scheme != "http") || parsed.Host == "" {
		return Subscription{}, core.BadInputError("zapier: subscription target url is invalid", map[string]any{"target_url": targetURL})
	}
	if a.cfg.Outbound == nil {
		return Subscription{}, core.InternalError("zapier: outbound dispatcher is not configured", nil)
	}

	a.mu.RLock()
	ready := a.initialized
	cfg := a.hookDefaults
	a.mu.RUnlock()
	if !ready {
		return Subscription{}, core.InternalError("zapier: adapter is not initialized", nil)
	}

	sub := Subscription{ID: a.newID(), Event: event, TargetURL: targetURL, CreatedAt: a.now()}
	cfg.URL = targetURL
	if err := a.cfg.Outbound.Register(registrationName(sub.ID), cfg, nil); err != nil {
		return Subscription{}, err
	}

	a.mu.Lock()
	a.subscriptions[sub.ID] = sub
	a.mu.Unlock()
	a.logger.Info("zapier hook subscribed", "subscription_id", sub.ID, "event", event)
	return sub, nil
}

func (a *Adapter) Unsubscribe(_ context.Context, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return core.BadInputError("zapier: subscription id is required", nil)
	}
	a.mu.Lock()
	_, ok := a.subscriptions[id]
	delete(a.subscriptions, id)
	a.mu.Unlock()
	if !ok {
		return core.NotFoundError("zapier subscription", id)
	}
	if a.cfg.Outbound == nil {
		return nil
	}
	if err := a.cfg.Outbound.Unregister(registrationName(id)); err != nil && !core.HasErrorCode(err, core.ErrorNotFound) {
		return err
	}
	return nil
}

// Subscriptions lists hooks for event, or all hooks when event is empty.
func (a *Adapter) Subscriptions(event string) []Subscription {
	event = strings.TrimSpace(event)
	a.mu.RLock()
	out := make([]Subscription, 0, len(a.subscriptions))
	for _, sub := range a.subscriptions {
		if event == "" || sub.Event == event {
			out = append(out, sub)
		}
	}
	a.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// TriggerEvent delivers data to every hook subscribed to event. Acks are
// returned in subscription order; the error joins every failed delivery.
func (a *Adapter) TriggerEvent(ctx context.Context, event string, data any) ([]TriggerAck, error) {
	event = strings.TrimSpace(event)
	if event == "" {
		return nil, core.BadInputError("zapier: trigger event is required", nil)
	}
	if a.cfg.Outbound == nil {
		return nil, core.InternalError("zapier: outbound dispatcher is not configured", nil)
	}
	subs := a.Subscriptions(event)
	acks := make([]TriggerAck, len(subs))

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(a.cfg.MaxConcurrentTriggers)
	for index, sub := range subs {
		group.Go(func() error {
			receipt, err := a.cfg.Outbound.Deliver(groupCtx, registrationName(sub.ID), event, data)
			acks[index] = TriggerAck{
				SubscriptionID: sub.ID,
				TargetURL:      sub.TargetURL,
				Receipt:        receipt,
				Err:            err,
			}
			return nil
		})
	}
	_ = group.Wait()

	var failures []error
	for index := range acks {
		ack := &acks[index]
		if ack.Receipt.StatusCode == http.StatusGone {
			if err := a.Unsubscribe(ctx, ack.SubscriptionID); err == nil {
				ack.Removed = true
			}
			continue
		}
		if ack.Err != nil {
			failures = append(failures, fmt.Errorf("subscription %s: %w", ack.SubscriptionID, ack.Err))
		}
	}
	return acks, errors.Join(failures...)
}

package webhooks

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	glog "github.com/goliatone/go-logger/glog"
	"github.com/google/uuid"

	"github.com/goliatone/go-integrations/core"
)

const (
	HeaderWebhookName     = "X-Webhook-Name"
	HeaderWebhookEvent    = "X-Webhook-Event"
	HeaderWebhookDelivery = "X-Webhook-Delivery"
)

type registration struct {
	config  core.WebhookDeliveryConfig
	handler core.WebhookHandler
}

// Dispatcher routes inbound deliveries to registered handlers and sends
// outbound deliveries to registered targets.
type Dispatcher struct {
	mu            sync.RWMutex
	registrations map[string]registration

	codec     SignatureCodec
	transport core.TransportAdapter
	events    core.EventEmitter
	log       DeliveryLog
	replay    ReplayGuard
	logger    core.Logger
	observer  core.Observer
	source    string
	now       func() time.Time
	wait      func(ctx context.Context, delay time.Duration) error
}

type DispatcherOption func(*Dispatcher)

func WithTransport(transport core.TransportAdapter) DispatcherOption {
	return func(d *Dispatcher) {
		d.transport = transport
	}
}

func WithEvents(emitter core.EventEmitter) DispatcherOption {
	return func(d *Dispatcher) {
		d.events = emitter
	}
}

func WithDeliveryLog(log DeliveryLog) DispatcherOption {
	return func(d *Dispatcher) {
		if log != nil {
			d.log = log
		}
	}
}

func WithReplayGuard(guard ReplayGuard) DispatcherOption {
	return func(d *Dispatcher) {
		d.replay = guard
	}
}

func WithCodec(codec SignatureCodec) DispatcherOption {
	return func(d *Dispatcher) {
		d.codec = codec
	}
}

func WithLogger(logger core.Logger) DispatcherOption {
	return func(d *Dispatcher) {
		d.logger = logger
	}
}

func WithMetricsRecorder(recorder core.MetricsRecorder) DispatcherOption {
	return func(d *Dispatcher) {
		d.observer.Metrics = recorder
	}
}

// WithSource sets the "source" field of outbound envelopes.
func WithSource(source string) DispatcherOption {
	return func(d *Dispatcher) {
		d.source = strings.TrimSpace(source)
	}
}

func WithClock(now func() time.Time) DispatcherOption {
	return func(d *Dispatcher) {
		if now != nil {
			d.now = now
		}
	}
}

func NewDispatcher(opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		registrations: map[string]registration{},
		log:           NewMemoryDeliveryLog(0),
		source:        "integrations",
		now:           func() time.Time { return time.Now().UTC() },
		wait:          sleepContext,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(d)
		}
	}
	d.logger = glog.Ensure(d.logger)
	d.observer = core.NewObserver(d.logger, d.observer.Metrics, "integrations")
	return d
}

func (d *Dispatcher) Register(name string, cfg core.WebhookDeliveryConfig, handler core.WebhookHandler) error {
	return d.store(name, cfg, handler, false)
}

// Replace overwrites an existing registration or creates a new one.
func (d *Dispatcher) Replace(name string, cfg core.WebhookDeliveryConfig, handler core.WebhookHandler) error {
	return d.store(name, cfg, handler, true)
}

func (d *Dispatcher) store(name string, cfg core.WebhookDeliveryConfig, handler core.WebhookHandler, overwrite bool) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return core.BadInputError("webhooks: registration name is required", nil)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	d.mu.Lock()
	_, exists := d.registrations[name]
	if exists && !overwrite {
		d.mu.Unlock()
		return core.DuplicateRegistrationError("webhook", name)
	}
	d.registrations[name] = registration{config: cfg, handler: handler}
	d.mu.Unlock()

	d.emit(context.Background(), core.NewEvent(core.EventWebhookRegistered, name, map[string]any{
		"has_handler": handler != nil,
		"outbound":    strings.TrimSpace(cfg.URL) != "",
		"replaced":    exists,
	}))
	return nil
}

func (d *Dispatcher) Unregister(name string) error {
	name = strings.TrimSpace(name)
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.registrations[name]; !ok {
		return core.NotFoundError("webhook", name)
	}
	delete(d.registrations, name)
	return nil
}

func (d *Dispatcher) Registered(name string) bool {
	_, ok := d.lookup(name)
	return ok
}

// Names lists registrations in sorted order.
func (d *Dispatcher) Names() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	names := make([]string, 0, len(d.registrations))
	for name := range d.registrations {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Config returns the delivery config registered under name.
func (d *Dispatcher) Config(name string) (core.WebhookDeliveryConfig, bool) {
	reg, ok := d.lookup(name)
	return reg.config, ok
}

// DeliverInbound verifies rawPayload against the registration secret and
// runs the handler under the retry loop. Signature failures are final.
func (d *Dispatcher) DeliverInbound(
	ctx context.Context,
	name string,
	rawPayload []byte,
	headers map[string]string,
) (result core.WebhookResult, err error) {
	startedAt := time.Now()
	name = strings.TrimSpace(name)
	fields := map[string]any{"webhook": name, "direction": DirectionInbound}
	defer func() {
		d.observer.Operation(ctx, startedAt, "webhook_inbound", err, fields)
	}()

	reg, ok := d.lookup(name)
	if !ok {
		return core.WebhookResult{}, core.NotFoundError("webhook", name)
	}
	if reg.handler == nil {
		return core.WebhookResult{}, core.NotFoundError("webhook handler", name)
	}

	signature := headerValue(headers, reg.config.Header())
	if strings.TrimSpace(reg.config.Secret) != "" {
		if !d.verify(reg.config, rawPayload, headers, signature) {
			d.append(ctx, DeliveryAttempt{
				Webhook:   name,
				Direction: DirectionInbound,
				Status:    AttemptStatusRejected,
				Error:     "signature verification failed",
				StartedAt: d.now(),
			})
			d.observer.Warn(ctx, "webhook signature rejected", map[string]any{
				"webhook": name,
				"headers": core.RedactHeaders(headers),
			})
			return core.WebhookResult{}, core.InvalidSignatureError(name)
		}
	}

	replayKey := ""
	if d.replay != nil {
		key, duplicate := d.replay.Seen(name, headers)
		if duplicate {
			fields["deduped"] = true
			return core.WebhookResult{
				Accepted:   true,
				StatusCode: http.StatusOK,
				Data:       map[string]any{"deduped": true, "replay_key": key},
			}, nil
		}
		replayKey = key
	}

	payload := core.NewWebhookPayload(name, eventName(rawPayload), rawPayload, signature, d.now())
	fields["event"] = payload.Event
	fields["delivery_id"] = payload.ID

	result, attempts, err := d.runInbound(ctx, name, reg, payload)
	fields["attempts"] = attempts
	if err != nil && replayKey != "" {
		d.replay.Forget(replayKey)
	}
	return result, err
}

// TestRegistration pushes a synthetic webhook.test payload through the
// handler path without a signature check.
func (d *Dispatcher) TestRegistration(ctx context.Context, name string) (result core.WebhookResult, err error) {
	startedAt := time.Now()
	name = strings.TrimSpace(name)
	fields := map[string]any{"webhook": name, "event": core.TestWebhookEvent}
	defer func() {
		d.observer.Operation(ctx, startedAt, "webhook_test", err, fields)
	}()

	reg, ok := d.lookup(name)
	if !ok {
		return core.WebhookResult{}, core.NotFoundError("webhook", name)
	}
	if reg.handler == nil {
		return core.WebhookResult{}, core.NotFoundError("webhook handler", name)
	}
	body, err := json.Marshal(map[string]any{
		"event": core.TestWebhookEvent,
		"test":  true,
		"sent":  d.now().Format(time.RFC3339),
	})
	if err != nil {
		return core.WebhookResult{}, core.InternalError("webhooks: encode test payload", map[string]any{"webhook": name})
	}
	payload := core.NewWebhookPayload(name, core.TestWebhookEvent, body, "", d.now())
	fields["delivery_id"] = payload.ID
	result, attempts, err := d.runInbound(ctx, name, reg, payload)
	fields["attempts"] = attempts
	return result, err
}

func (d *Dispatcher) runInbound(
	ctx context.Context,
	name string,
	reg registration,
	payload core.WebhookPayload,
) (core.WebhookResult, int, error) {
	attempts, outcome, err := d.retry(ctx, name, DirectionInbound, payload.ID, payload.Event, reg.config, func(attemptCtx context.Context) attemptOutcome {
		result, handleErr := reg.handler.HandleWebhook(attemptCtx, payload)
		return attemptOutcome{result: result, statusCode: result.StatusCode, err: handleErr}
	})
	d.finish(ctx, name, DirectionInbound, payload.ID, payload.Event, attempts, err)
	if err != nil {
		return core.WebhookResult{}, attempts, err
	}
	return outcome.result, attempts, nil
}

// Deliver sends a signed envelope to the registration URL, retrying failed
// or non-2xx attempts.
func (d *Dispatcher) Deliver(ctx context.Context, name string, event string, data any) (receipt core.DeliveryReceipt, err error) {
	startedAt := time.Now()
	name = strings.TrimSpace(name)
	event = strings.TrimSpace(event)
	fields := map[string]any{"webhook": name, "event": event, "direction": DirectionOutbound}
	defer func() {
		fields["attempts"] = receipt.Attempts
		d.observer.Operation(ctx, startedAt, "webhook_outbound", err, fields)
	}()

	reg, ok := d.lookup(name)
	if !ok {
		return core.DeliveryReceipt{}, core.NotFoundError("webhook", name)
	}
	url := strings.TrimSpace(reg.config.URL)
	if url == "" {
		return core.DeliveryReceipt{}, core.BadInputError("webhooks: registration has no delivery url", map[string]any{"webhook": name})
	}
	if event == "" {
		return core.DeliveryReceipt{}, core.BadInputError("webhooks: event is required", map[string]any{"webhook": name})
	}
	if d.transport == nil {
		return core.DeliveryReceipt{}, core.InternalError("webhooks: outbound transport is not configured", map[string]any{"webhook": name})
	}

	deliveryID := uuid.NewString()
	fields["delivery_id"] = deliveryID
	envelope := map[string]any{
		"id":        deliveryID,
		"event":     event,
		"source":    d.source,
		"timestamp": d.now().Format(time.RFC3339Nano),
		"data":      data,
	}
	body, signature, err := d.codecFor(reg.config).SignJSON(reg.config.Secret, envelope)
	if err != nil {
		return core.DeliveryReceipt{}, core.BadInputError(err.Error(), map[string]any{"webhook": name})
	}
	headers := map[string]string{
		"Content-Type":        "application/json",
		HeaderWebhookName:     name,
		HeaderWebhookEvent:    event,
		HeaderWebhookDelivery: deliveryID,
	}
	if strings.TrimSpace(reg.config.Secret) != "" {
		headers[reg.config.Header()] = reg.config.SignaturePrefix + signature
	}

	attempts, outcome, err := d.retry(ctx, name, DirectionOutbound, deliveryID, event, reg.config, func(attemptCtx context.Context) attemptOutcome {
		response, doErr := d.transport.Do(attemptCtx, core.TransportRequest{
			Method:      http.MethodPost,
			URL:         url,
			Headers:     copyHeaders(headers),
			Body:        body,
			Timeout:     reg.config.Timeout,
			Idempotency: deliveryID,
		})
		if doErr != nil {
			return attemptOutcome{statusCode: response.StatusCode, body: response.Body, err: doErr}
		}
		if response.StatusCode < 200 || response.StatusCode > 299 {
			return attemptOutcome{
				statusCode: response.StatusCode,
				body:       response.Body,
				err:        fmt.Errorf("webhooks: %s responded with status %d", name, response.StatusCode),
				// 410 Gone is not retried.
				final: response.StatusCode == http.StatusGone,
			}
		}
		return attemptOutcome{statusCode: response.StatusCode, body: response.Body}
	})
	d.finish(ctx, name, DirectionOutbound, deliveryID, event, attempts, err)

	receipt = core.DeliveryReceipt{
		DeliveryID: deliveryID,
		Webhook:    name,
		Event:      event,
		Attempts:   attempts,
		StatusCode: outcome.statusCode,
		Body:       outcome.body,
		Duration:   time.Since(startedAt),
	}
	return receipt, err
}

type attemptOutcome struct {
	result     core.WebhookResult
	statusCode int
	body       []byte
	err        error
	final      bool
}

// retry runs attempt up to cfg.Attempts() times. It returns the number of
// attempts made and the last outcome.
func (d *Dispatcher) retry(
	ctx context.Context,
	name string,
	direction string,
	deliveryID string,
	event string,
	cfg core.WebhookDeliveryConfig,
	attempt func(context.Context) attemptOutcome,
) (int, attemptOutcome, error) {
	total := cfg.Attempts()
	made := 0
	var last attemptOutcome
	var lastErr error
	for n := 1; n <= total; n++ {
		if n > 1 {
			if waitErr := d.wait(ctx, cfg.Delay(n-1)); waitErr != nil {
				lastErr = waitErr
				break
			}
		}
		made = n
		startedAt := d.now()
		began := time.Now()
		last = d.runAttempt(ctx, name, n, cfg.Timeout, attempt)

		record := DeliveryAttempt{
			DeliveryID: deliveryID,
			Webhook:    name,
			Direction:  direction,
			Event:      event,
			Attempt:    n,
			Status:     AttemptStatusSucceeded,
			StatusCode: last.statusCode,
			StartedAt:  startedAt,
			Duration:   time.Since(began),
		}
		if last.err != nil {
			record.Status = AttemptStatusFailed
			if core.HasErrorCode(last.err, core.ErrorTimeout) {
				record.Status = AttemptStatusTimedOut
			}
			record.Error = last.err.Error()
		}
		d.append(ctx, record)

		if last.err == nil {
			return made, last, nil
		}
		lastErr = last.err
		if last.final || ctx.Err() != nil {
			break
		}
		if n < total {
			d.observer.Warn(ctx, "webhook attempt failed", map[string]any{
				"webhook":     name,
				"direction":   direction,
				"delivery_id": deliveryID,
				"attempt":     n,
				"error":       last.err.Error(),
			})
		}
	}
	return made, last, core.DeliveryError(name, made, lastErr)
}

// runAttempt races fn against timeout. A result arriving after the deadline
// is discarded.
func (d *Dispatcher) runAttempt(
	ctx context.Context,
	name string,
	attempt int,
	timeout time.Duration,
	fn func(context.Context) attemptOutcome,
) attemptOutcome {
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan attemptOutcome, 1)
	go func() {
		defer func() {
			if recovered := recover(); recovered != nil {
				done <- attemptOutcome{err: fmt.Errorf("webhooks: handler panic: %v", recovered)}
			}
		}()
		done <- fn(attemptCtx)
	}()

	select {
	case outcome := <-done:
		return outcome
	case <-attemptCtx.Done():
		if ctx.Err() != nil {
			return attemptOutcome{err: ctx.Err()}
		}
		return attemptOutcome{err: core.TimeoutError(name, attempt)}
	}
}

// verify checks an inbound request with the registration's verifier, or
// with an HMAC over the raw body in the registration's encoding.
func (d *Dispatcher) verify(cfg core.WebhookDeliveryConfig, body []byte, headers map[string]string, signature string) bool {
	if cfg.Verifier != nil {
		return cfg.Verifier.VerifyWebhook(cfg.Secret, body, headers)
	}
	return d.codecFor(cfg).Verify(cfg.Secret, body, signature, cfg.SignaturePrefix)
}

func (d *Dispatcher) codecFor(cfg core.WebhookDeliveryConfig) SignatureCodec {
	if encoding := strings.TrimSpace(cfg.SignatureEncoding); encoding != "" {
		return SignatureCodec{Encoding: encoding}
	}
	return d.codec
}

func (d *Dispatcher) finish(ctx context.Context, name, direction, deliveryID, event string, attempts int, err error) {
	metadata := map[string]any{
		"event":       event,
		"delivery_id": deliveryID,
		"direction":   direction,
		"attempts":    attempts,
	}
	if err != nil {
		d.emit(ctx, core.NewEvent(core.EventWebhookFailed, name, metadata).WithError(err))
		return
	}
	d.emit(ctx, core.NewEvent(core.EventWebhookProcessed, name, metadata))
}

func (d *Dispatcher) lookup(name string) (registration, bool) {
	if d == nil {
		return registration{}, false
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	reg, ok := d.registrations[strings.TrimSpace(name)]
	return reg, ok
}

func (d *Dispatcher) append(ctx context.Context, attempt DeliveryAttempt) {
	if d.log == nil {
		return
	}
	if err := d.log.Append(ctx, attempt); err != nil {
		d.observer.Warn(ctx, "delivery log append failed", map[string]any{
			"webhook":     attempt.Webhook,
			"delivery_id": attempt.DeliveryID,
			"error":       err.Error(),
		})
	}
}

func (d *Dispatcher) emit(ctx context.Context, event core.Event) {
	if d.events == nil {
		return
	}
	if err := d.events.Emit(ctx, event); err != nil {
		d.observer.Warn(ctx, "event observer failed", map[string]any{
			"event":   event.Name,
			"webhook": event.Integration,
			"error":   err.Error(),
		})
	}
}

// eventName reads "event", then "type", from a JSON object body.
func eventName(raw []byte) string {
	var body map[string]any
	if err := json.Unmarshal(raw, &body); err != nil {
		return core.DefaultWebhookEvent
	}
	for _, key := range []string{"event", "type"} {
		if value, ok := body[key].(string); ok && strings.TrimSpace(value) != "" {
			return strings.TrimSpace(value)
		}
	}
	return core.DefaultWebhookEvent
}

func copyHeaders(headers map[string]string) map[string]string {
	out := make(map[string]string, len(headers))
	for key, value := range headers {
		out[key] = value
	}
	return out
}

func sleepContext(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

var (
	_ core.WebhookRegistrar = (*Dispatcher)(nil)
	_ core.WebhookDeliverer = (*Dispatcher)(nil)
)

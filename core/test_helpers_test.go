package core

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

type stubLogger struct{}

func (stubLogger) Trace(string, ...any) {}
func (stubLogger) Debug(string, ...any) {}
func (stubLogger) Info(string, ...any)  {}
func (stubLogger) Warn(string, ...any)  {}
func (stubLogger) Error(string, ...any) {}
func (stubLogger) Fatal(string, ...any) {}
func (s stubLogger) WithContext(context.Context) Logger {
	return s
}

type stubLoggerProvider struct {
	logger Logger
}

func (s stubLoggerProvider) GetLogger(string) Logger {
	return s.logger
}

type mapRawLoader struct {
	values map[string]any
}

func (l mapRawLoader) LoadRaw(context.Context) (map[string]any, error) {
	if len(l.values) == 0 {
		return map[string]any{}, nil
	}
	return l.values, nil
}

type stubAdapter struct {
	mu sync.Mutex

	initErr       error
	authErr       error
	disconnectErr error
	healthErr     error
	healthPanic   bool
	handler       WebhookHandler

	initCalls       int
	authCalls       int
	disconnectCalls int
	healthCalls     int
	lastConfig      IntegrationConfig
	lastCreds       IntegrationCredentials
}

func (a *stubAdapter) Initialize(_ context.Context, cfg IntegrationConfig) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.initCalls++
	a.lastConfig = cfg
	return a.initErr
}

func (a *stubAdapter) Authenticate(_ context.Context, creds IntegrationCredentials) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.authCalls++
	a.lastCreds = creds
	return a.authErr
}

func (a *stubAdapter) Disconnect(context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.disconnectCalls++
	return a.disconnectErr
}

func (a *stubAdapter) HealthCheck(context.Context) (HealthResult, error) {
	a.mu.Lock()
	a.healthCalls++
	healthErr := a.healthErr
	panics := a.healthPanic
	a.mu.Unlock()
	if panics {
		panic("probe exploded")
	}
	if healthErr != nil {
		return HealthResult{}, healthErr
	}
	return HealthResult{Status: HealthStatusHealthy, Message: "ok"}, nil
}

func (a *stubAdapter) WebhookHandler() WebhookHandler {
	return a.handler
}

func (a *stubAdapter) counts() (initCalls int, disconnectCalls int, healthCalls int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.initCalls, a.disconnectCalls, a.healthCalls
}

type registrarCall struct {
	op   string
	name string
	cfg  WebhookDeliveryConfig
}

type stubRegistrar struct {
	mu         sync.Mutex
	registered map[string]WebhookHandler
	calls      []registrarCall
}

func newStubRegistrar() *stubRegistrar {
	return &stubRegistrar{registered: map[string]WebhookHandler{}}
}

func (r *stubRegistrar) Register(name string, cfg WebhookDeliveryConfig, handler WebhookHandler) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.registered[name]; exists {
		return DuplicateRegistrationError("webhook", name)
	}
	r.registered[name] = handler
	r.calls = append(r.calls, registrarCall{op: "register", name: name, cfg: cfg})
	return nil
}

func (r *stubRegistrar) Replace(name string, cfg WebhookDeliveryConfig, handler WebhookHandler) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.registered[name] = handler
	r.calls = append(r.calls, registrarCall{op: "replace", name: name, cfg: cfg})
	return nil
}

func (r *stubRegistrar) Unregister(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.registered[name]; !exists {
		return NotFoundError("webhook", name)
	}
	delete(r.registered, name)
	r.calls = append(r.calls, registrarCall{op: "unregister", name: name})
	return nil
}

func (r *stubRegistrar) Registered(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.registered[name]
	return ok
}

// memoryTracker is a minimal tracker so registry tests stay inside core.
type memoryTracker struct {
	mu  sync.Mutex
	ops map[string]SyncOperation
	seq int
}

func newMemoryTracker() *memoryTracker {
	return &memoryTracker{ops: map[string]SyncOperation{}}
}

func (t *memoryTracker) Start(_ context.Context, op SyncOperation) (SyncOperation, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.seq++
	op.ID = fmt.Sprintf("op_%d", t.seq)
	op.Status = SyncStatusRunning
	op.StartedAt = time.Now().UTC()
	t.ops[op.ID] = op
	return op.Clone(), nil
}

func (t *memoryTracker) UpdateProgress(_ context.Context, id string, progress SyncProgress) (SyncOperation, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	op, ok := t.ops[id]
	if !ok || op.Status.Terminal() {
		return SyncOperation{}, false
	}
	if progress.RecordsProcessed != nil {
		op.RecordsProcessed = *progress.RecordsProcessed
	}
	t.ops[id] = op
	return op.Clone(), true
}

func (t *memoryTracker) Complete(_ context.Context, id string, status SyncStatus, errMsg string) (SyncOperation, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	op, ok := t.ops[id]
	if !ok {
		return SyncOperation{}, NotFoundError("sync operation", id)
	}
	if op.Status.Terminal() {
		return SyncOperation{}, SyncFinalizedError(id, op.Status)
	}
	now := time.Now().UTC()
	op.Status = status
	op.CompletedAt = &now
	if errMsg != "" {
		op.Errors = append(op.Errors, errMsg)
	}
	t.ops[id] = op
	return op.Clone(), nil
}

func (t *memoryTracker) Get(id string) (SyncOperation, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	op, ok := t.ops[id]
	return op.Clone(), ok
}

func (t *memoryTracker) List(integration string) []SyncOperation {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := []SyncOperation{}
	for _, op := range t.ops {
		if integration == "" || op.Integration == integration {
			out = append(out, op.Clone())
		}
	}
	return out
}

type stubEnqueuer struct {
	mu       sync.Mutex
	messages []*JobExecutionMessage
	err      error
}

func (e *stubEnqueuer) Enqueue(_ context.Context, msg *JobExecutionMessage) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.err != nil {
		return e.err
	}
	e.messages = append(e.messages, msg)
	return nil
}

type recordingMetrics struct {
	mu         sync.Mutex
	counters   map[string]int64
	histograms map[string]int
}

func newRecordingMetrics() *recordingMetrics {
	return &recordingMetrics{counters: map[string]int64{}, histograms: map[string]int{}}
}

func (m *recordingMetrics) IncCounter(_ context.Context, name string, value int64, _ map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counters[name] += value
}

func (m *recordingMetrics) ObserveHistogram(_ context.Context, name string, _ float64, _ map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.histograms[name]++
}

func (m *recordingMetrics) counter(name string) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counters[name]
}

func collectEvents(bus *EventBus) func() []Event {
	var mu sync.Mutex
	events := []Event{}
	bus.Subscribe(EventObserverFunc{ID: "collector", Fn: func(_ context.Context, event Event) error {
		mu.Lock()
		defer mu.Unlock()
		events = append(events, event)
		return nil
	}})
	return func() []Event {
		mu.Lock()
		defer mu.Unlock()
		return append([]Event(nil), events...)
	}
}

func countEvents(events []Event, name string) int {
	count := 0
	for _, event := range events {
		if event.Name == name {
			count++
		}
	}
	return count
}

var errBoom = errors.New("boom")

package core

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	goerrors "github.com/goliatone/go-errors"
	glog "github.com/goliatone/go-logger/glog"
	"golang.org/x/sync/errgroup"
)

type registryEntry struct {
	name         string
	adapter      Adapter
	config       IntegrationConfig
	ready        bool
	initialized  bool
	wired        bool
	lastError    string
	registeredAt time.Time
}

func (e *registryEntry) status() IntegrationStatus {
	return IntegrationStatus{
		Name:          e.name,
		Enabled:       e.config.Enabled,
		Ready:         e.ready,
		HasWebhook:    e.adapter.WebhookHandler() != nil,
		WebhookWired:  e.wired,
		LastError:     e.lastError,
		RegisteredAt:  e.registeredAt,
		CredentialSet: e.config.Credentials != nil,
	}
}

// Registry owns adapter lifecycles: registration, enablement, credentials,
// health, inbound routing and tracked sync operations.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*registryEntry

	config   Config
	logger   Logger
	observer Observer
	events   *EventBus
	webhooks WebhookRegistrar
	tracker  SyncTracker
	jobs     JobEnqueuer
	mapError ErrorMapper
	now      func() time.Time
}

func NewRegistry(cfg Config, opts ...Option) (*Registry, error) {
	builder := defaultRegistryBuilder(cfg)
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&builder)
	}

	provider, logger := glog.Resolve("integrations", builder.loggerProvider, builder.logger)
	logger = glog.Ensure(logger)
	if provider != nil {
		if named := provider.GetLogger("integrations.registry"); named != nil {
			logger = glog.Ensure(named)
		}
	}
	if builder.metricsRecorder == nil {
		builder.metricsRecorder = NopMetricsRecorder{}
	}
	if builder.errorMapper == nil {
		builder.errorMapper = MapError
	}
	if builder.events == nil {
		builder.events = NewEventBus()
	}
	if builder.now == nil {
		builder.now = func() time.Time { return time.Now().UTC() }
	}

	finalConfig, err := ResolveConfig(context.Background(), builder.configProvider, builder.optionsResolver, builder.runtimeConfig)
	if err != nil {
		return nil, mapBuildError(builder.errorMapper, err)
	}

	return &Registry{
		entries:  map[string]*registryEntry{},
		config:   finalConfig,
		logger:   logger,
		observer: NewObserver(logger, builder.metricsRecorder, finalConfig.ServiceName),
		events:   builder.events,
		webhooks: builder.webhooks,
		tracker:  builder.tracker,
		jobs:     builder.jobEnqueuer,
		mapError: builder.errorMapper,
		now:      builder.now,
	}, nil
}

func mapBuildError(mapper ErrorMapper, err error) error {
	if err == nil {
		return nil
	}
	if mapper == nil {
		return err
	}
	if mapped := mapper(err); mapped != nil {
		return mapped
	}
	return err
}

func (r *Registry) obs() Observer {
	if r == nil {
		return Observer{}
	}
	return r.observer
}

func (r *Registry) Config() Config {
	if r == nil {
		return Config{}
	}
	return r.config
}

func (r *Registry) Events() *EventBus {
	if r == nil {
		return nil
	}
	return r.events
}

func (r *Registry) Logger() Logger {
	if r == nil {
		return glog.Nop()
	}
	return r.logger
}

// Register stores the adapter and, when enabled, initializes it. A failed
// initialization leaves the entry registered but not ready.
func (r *Registry) Register(ctx context.Context, name string, adapter Adapter, cfg IntegrationConfig) (err error) {
	startedAt := time.Now()
	name = strings.TrimSpace(name)
	defer func() {
		r.obs().Operation(ctx, startedAt, "register", err, map[string]any{"integration": name, "enabled": cfg.Enabled})
	}()
	if r == nil {
		return InternalError("core: registry is nil", nil)
	}
	if name == "" {
		return BadInputError("core: integration name is required", nil)
	}
	if adapter == nil {
		return BadInputError("core: adapter is required", map[string]any{"integration": name})
	}

	entry := &registryEntry{
		name:         name,
		adapter:      adapter,
		config:       cfg.Clone(),
		registeredAt: r.now(),
	}
	r.mu.Lock()
	if _, exists := r.entries[name]; exists {
		r.mu.Unlock()
		return DuplicateRegistrationError("integration", name)
	}
	r.entries[name] = entry
	r.mu.Unlock()

	r.emit(ctx, NewEvent(EventIntegrationRegistered, name, map[string]any{"enabled": cfg.Enabled}))
	if !cfg.Enabled {
		return nil
	}
	return r.activate(ctx, entry)
}

// Replace disconnects and unwires any previous adapter under name, then
// registers the new one.
func (r *Registry) Replace(ctx context.Context, name string, adapter Adapter, cfg IntegrationConfig) (err error) {
	startedAt := time.Now()
	name = strings.TrimSpace(name)
	defer func() {
		r.obs().Operation(ctx, startedAt, "replace", err, map[string]any{"integration": name, "enabled": cfg.Enabled})
	}()
	if r == nil {
		return InternalError("core: registry is nil", nil)
	}
	if name == "" {
		return BadInputError("core: integration name is required", nil)
	}
	if adapter == nil {
		return BadInputError("core: adapter is required", map[string]any{"integration": name})
	}

	entry := &registryEntry{
		name:         name,
		adapter:      adapter,
		config:       cfg.Clone(),
		registeredAt: r.now(),
	}
	r.mu.Lock()
	previous := r.entries[name]
	r.entries[name] = entry
	r.mu.Unlock()

	if previous != nil {
		r.deactivate(ctx, previous)
	}
	r.emit(ctx, NewEvent(EventIntegrationRegistered, name, map[string]any{
		"enabled":  cfg.Enabled,
		"replaced": previous != nil,
	}))
	if !cfg.Enabled {
		return nil
	}
	return r.activate(ctx, entry)
}

func (r *Registry) Unregister(ctx context.Context, name string) (err error) {
	startedAt := time.Now()
	name = strings.TrimSpace(name)
	defer func() {
		r.obs().Operation(ctx, startedAt, "unregister", err, map[string]any{"integration": name})
	}()
	if r == nil {
		return InternalError("core: registry is nil", nil)
	}
	r.mu.Lock()
	entry, ok := r.entries[name]
	if ok {
		delete(r.entries, name)
	}
	r.mu.Unlock()
	if !ok {
		return NotFoundError("integration", name)
	}

	r.deactivate(ctx, entry)
	r.emit(ctx, NewEvent(EventIntegrationUnregistered, name, nil))
	return nil
}

func (r *Registry) Enable(ctx context.Context, name string) (err error) {
	startedAt := time.Now()
	name = strings.TrimSpace(name)
	defer func() {
		r.obs().Operation(ctx, startedAt, "enable", err, map[string]any{"integration": name})
	}()
	entry, err := r.entry(name)
	if err != nil {
		return err
	}

	r.mu.Lock()
	if entry.config.Enabled && entry.ready {
		r.mu.Unlock()
		return nil
	}
	entry.config.Enabled = true
	r.mu.Unlock()

	if err := r.activate(ctx, entry); err != nil {
		return err
	}
	r.emit(ctx, NewEvent(EventIntegrationEnabled, name, nil))
	return nil
}

func (r *Registry) Disable(ctx context.Context, name string) (err error) {
	startedAt := time.Now()
	name = strings.TrimSpace(name)
	defer func() {
		r.obs().Operation(ctx, startedAt, "disable", err, map[string]any{"integration": name})
	}()
	entry, err := r.entry(name)
	if err != nil {
		return err
	}

	r.mu.Lock()
	entry.config.Enabled = false
	r.mu.Unlock()

	if disconnectErr := r.deactivate(ctx, entry); disconnectErr != nil {
		return WrapError(disconnectErr, goerrors.CategoryExternal, "core: disconnect integration", ErrorExternalFailure, map[string]any{
			"integration": name,
		})
	}
	r.emit(ctx, NewEvent(EventIntegrationDisabled, name, nil))
	return nil
}

// Authenticate validates and applies credentials, storing them on success.
func (r *Registry) Authenticate(ctx context.Context, name string, creds IntegrationCredentials) (err error) {
	startedAt := time.Now()
	name = strings.TrimSpace(name)
	defer func() {
		fields := creds.Redacted()
		fields["integration"] = name
		r.obs().Operation(ctx, startedAt, "authenticate", err, fields)
	}()
	if err := creds.Validate(); err != nil {
		return err
	}
	entry, err := r.entry(name)
	if err != nil {
		return err
	}
	if authErr := callAdapter(func() error { return entry.adapter.Authenticate(ctx, creds) }); authErr != nil {
		r.recordError(entry, authErr)
		r.emit(ctx, NewEvent(EventIntegrationError, name, map[string]any{"operation": "authenticate"}).WithError(authErr))
		return WrapError(authErr, goerrors.CategoryAuth, "core: authenticate integration", ErrorExternalFailure, map[string]any{
			"integration": name,
			"kind":        string(creds.Kind),
		})
	}

	r.mu.Lock()
	stored := creds
	entry.config.Credentials = &stored
	entry.lastError = ""
	r.mu.Unlock()
	return nil
}

// HealthCheck runs a single adapter probe. Disabled adapters are not invoked.
func (r *Registry) HealthCheck(ctx context.Context, name string) (HealthResult, error) {
	entry, err := r.entry(name)
	if err != nil {
		return HealthResult{}, err
	}
	return r.probe(ctx, entry), nil
}

// HealthCheckAll probes every adapter concurrently. A failing or panicking
// adapter produces an error entry; the call itself never fails.
func (r *Registry) HealthCheckAll(ctx context.Context) map[string]HealthResult {
	results := map[string]HealthResult{}
	if r == nil {
		return results
	}
	startedAt := time.Now()
	entries := r.snapshot()

	var mu sync.Mutex
	var group errgroup.Group
	for _, entry := range entries {
		group.Go(func() error {
			result := r.probe(ctx, entry)
			mu.Lock()
			results[entry.name] = result
			mu.Unlock()
			return nil
		})
	}
	_ = group.Wait()

	unhealthy := 0
	for _, result := range results {
		if result.Status == HealthStatusError || result.Status == HealthStatusUnhealthy {
			unhealthy++
		}
	}
	r.obs().Operation(ctx, startedAt, "health_check_all", nil, map[string]any{
		"checked":   len(results),
		"unhealthy": unhealthy,
	})
	return results
}

func (r *Registry) probe(ctx context.Context, entry *registryEntry) HealthResult {
	r.mu.RLock()
	enabled := entry.config.Enabled
	r.mu.RUnlock()

	checkedAt := r.now()
	if !enabled {
		return HealthResult{
			Integration: entry.name,
			Status:      HealthStatusDisabled,
			Message:     "integration is disabled",
			CheckedAt:   checkedAt,
		}
	}

	startedAt := time.Now()
	var result HealthResult
	err := callAdapter(func() error {
		var checkErr error
		result, checkErr = entry.adapter.HealthCheck(ctx)
		return checkErr
	})
	if err != nil {
		return HealthResult{
			Integration: entry.name,
			Status:      HealthStatusError,
			Message:     "health check failed",
			Error:       err.Error(),
			CheckedAt:   checkedAt,
			Latency:     time.Since(startedAt),
		}
	}
	result.Integration = entry.name
	if result.Status == "" {
		result.Status = HealthStatusHealthy
	}
	if result.CheckedAt.IsZero() {
		result.CheckedAt = checkedAt
	}
	if result.Latency == 0 {
		result.Latency = time.Since(startedAt)
	}
	return result
}

// RouteWebhook hands an already-verified payload to the adapter's handler.
func (r *Registry) RouteWebhook(ctx context.Context, name string, payload WebhookPayload) (result WebhookResult, err error) {
	startedAt := time.Now()
	name = strings.TrimSpace(name)
	defer func() {
		r.obs().Operation(ctx, startedAt, "route_webhook", err, map[string]any{
			"integration": name,
			"event":       payload.Event,
			"delivery_id": payload.ID,
		})
	}()
	entry, err := r.entry(name)
	if err != nil {
		return WebhookResult{}, err
	}
	handler := entry.adapter.WebhookHandler()
	if handler == nil {
		return WebhookResult{}, NotFoundError("webhook handler", name)
	}

	err = callAdapter(func() error {
		var handleErr error
		result, handleErr = handler.HandleWebhook(ctx, payload)
		return handleErr
	})
	metadata := map[string]any{"event": payload.Event, "delivery_id": payload.ID, "attempts": 1}
	if err != nil {
		r.emit(ctx, NewEvent(EventWebhookFailed, name, metadata).WithError(err))
		return WebhookResult{}, err
	}
	r.emit(ctx, NewEvent(EventWebhookProcessed, name, metadata))
	return result, nil
}

type ShutdownOutcome struct {
	Integration string
	Err         error
}

type ShutdownReport struct {
	Outcomes []ShutdownOutcome
}

// Err joins every failed disconnect.
func (r ShutdownReport) Err() error {
	var joined error
	for _, outcome := range r.Outcomes {
		if outcome.Err != nil {
			joined = errors.Join(joined, fmt.Errorf("%s: %w", outcome.Integration, outcome.Err))
		}
	}
	return joined
}

// Shutdown disconnects every adapter concurrently and clears the registry.
func (r *Registry) Shutdown(ctx context.Context) ShutdownReport {
	report := ShutdownReport{}
	if r == nil {
		return report
	}
	startedAt := time.Now()
	r.mu.Lock()
	entries := make([]*registryEntry, 0, len(r.entries))
	for _, entry := range r.entries {
		entries = append(entries, entry)
	}
	r.entries = map[string]*registryEntry{}
	r.mu.Unlock()

	outcomes := make([]ShutdownOutcome, len(entries))
	var group errgroup.Group
	for i, entry := range entries {
		group.Go(func() error {
			outcomes[i] = ShutdownOutcome{Integration: entry.name, Err: r.deactivate(ctx, entry)}
			return nil
		})
	}
	_ = group.Wait()

	sort.Slice(outcomes, func(i, j int) bool { return outcomes[i].Integration < outcomes[j].Integration })
	report.Outcomes = outcomes
	r.obs().Operation(ctx, startedAt, "shutdown", report.Err(), map[string]any{"integrations": len(outcomes)})
	return report
}

func (r *Registry) List() []IntegrationStatus {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]IntegrationStatus, 0, len(r.entries))
	for _, entry := range r.entries {
		out = append(out, entry.status())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (r *Registry) Get(name string) (IntegrationStatus, bool) {
	entry, err := r.entry(name)
	if err != nil {
		return IntegrationStatus{}, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return entry.status(), true
}

func (r *Registry) Adapter(name string) (Adapter, bool) {
	entry, err := r.entry(name)
	if err != nil {
		return nil, false
	}
	return entry.adapter, true
}

func (r *Registry) IntegrationConfig(name string) (IntegrationConfig, bool) {
	entry, err := r.entry(name)
	if err != nil {
		return IntegrationConfig{}, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return entry.config.Clone(), true
}

func (r *Registry) activate(ctx context.Context, entry *registryEntry) error {
	r.mu.RLock()
	cfg := entry.config.Clone()
	r.mu.RUnlock()

	r.mu.Lock()
	entry.initialized = true
	r.mu.Unlock()
	if initErr := callAdapter(func() error { return entry.adapter.Initialize(ctx, cfg) }); initErr != nil {
		r.mu.Lock()
		entry.ready = false
		entry.lastError = initErr.Error()
		r.mu.Unlock()
		r.emit(ctx, NewEvent(EventIntegrationError, entry.name, map[string]any{"operation": "initialize"}).WithError(initErr))
		return InitializationError(entry.name, initErr)
	}

	r.mu.Lock()
	entry.ready = true
	entry.lastError = ""
	r.mu.Unlock()

	if wireErr := r.wire(entry, cfg); wireErr != nil {
		r.mu.Lock()
		entry.ready = false
		r.mu.Unlock()
		r.recordError(entry, wireErr)
		r.emit(ctx, NewEvent(EventIntegrationError, entry.name, map[string]any{"operation": "wire_webhook"}).WithError(wireErr))
		return wireErr
	}
	return nil
}

// deactivate unwires the adapter and disconnects it if Initialize was ever
// called, including a failed one that may hold partial resources.
func (r *Registry) deactivate(ctx context.Context, entry *registryEntry) error {
	r.unwire(entry)

	r.mu.Lock()
	initialized := entry.initialized
	entry.ready = false
	entry.initialized = false
	r.mu.Unlock()
	if !initialized {
		return nil
	}
	if err := callAdapter(func() error { return entry.adapter.Disconnect(ctx) }); err != nil {
		r.recordError(entry, err)
		r.emit(ctx, NewEvent(EventIntegrationError, entry.name, map[string]any{"operation": "disconnect"}).WithError(err))
		return err
	}
	return nil
}

func (r *Registry) wire(entry *registryEntry, cfg IntegrationConfig) error {
	if r.webhooks == nil || strings.TrimSpace(cfg.WebhookURL) == "" {
		return nil
	}
	handler := entry.adapter.WebhookHandler()
	if handler == nil {
		return nil
	}
	delivery := cfg.DeliveryConfig(r.config.DeliveryDefaults())
	if verifier, ok := entry.adapter.(RequestVerifier); ok {
		delivery.Verifier = verifier
	}
	// A registration the host made under the same name is never overwritten.
	if err := r.webhooks.Register(entry.name, delivery, handler); err != nil {
		return err
	}
	r.mu.Lock()
	entry.wired = true
	r.mu.Unlock()
	return nil
}

func (r *Registry) unwire(entry *registryEntry) {
	r.mu.Lock()
	wired := entry.wired
	entry.wired = false
	r.mu.Unlock()
	if !wired || r.webhooks == nil {
		return
	}
	if err := r.webhooks.Unregister(entry.name); err != nil && !HasErrorCode(err, ErrorNotFound) {
		r.obs().Warn(context.Background(), "webhook unwire failed", map[string]any{
			"integration": entry.name,
			"error":       err.Error(),
		})
	}
}

func (r *Registry) entry(name string) (*registryEntry, error) {
	if r == nil {
		return nil, InternalError("core: registry is nil", nil)
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, BadInputError("core: integration name is required", nil)
	}
	r.mu.RLock()
	entry, ok := r.entries[name]
	r.mu.RUnlock()
	if !ok {
		return nil, NotFoundError("integration", name)
	}
	return entry, nil
}

func (r *Registry) snapshot() []*registryEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*registryEntry, 0, len(r.entries))
	for _, entry := range r.entries {
		out = append(out, entry)
	}
	return out
}

func (r *Registry) recordError(entry *registryEntry, err error) {
	if err == nil {
		return
	}
	r.mu.Lock()
	entry.lastError = err.Error()
	r.mu.Unlock()
}

func (r *Registry) emit(ctx context.Context, event Event) {
	if r == nil || r.events == nil {
		return
	}
	if err := r.events.Emit(ctx, event); err != nil {
		r.obs().Warn(ctx, "event observer failed", map[string]any{
			"event":       event.Name,
			"integration": event.Integration,
			"error":       err.Error(),
		})
	}
}

// callAdapter converts adapter panics into errors.
func callAdapter(fn func() error) (err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			err = fmt.Errorf("adapter panic: %v", recovered)
		}
	}()
	return fn()
}

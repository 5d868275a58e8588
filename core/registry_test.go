package core

import (
	"context"
	"strings"
	"testing"
	"time"
)

func newTestRegistry(t *testing.T, opts ...Option) (*Registry, func() []Event) {
	t.Helper()
	bus := NewEventBus()
	events := collectEvents(bus)
	opts = append([]Option{WithEventBus(bus), WithLogger(stubLogger{})}, opts...)
	registry, err := NewRegistry(Config{}, opts...)
	if err != nil {
		t.Fatalf("new registry: %v", err)
	}
	return registry, events
}

func TestRegistryRegister_InitializesEnabledAdapter(t *testing.T) {
	ctx := context.Background()
	registry, events := newTestRegistry(t)
	adapter := &stubAdapter{}

	if err := registry.Register(ctx, "slack", adapter, IntegrationConfig{Enabled: true, BaseURL: "https://slack.test"}); err != nil {
		t.Fatalf("register: %v", err)
	}
	initCalls, _, _ := adapter.counts()
	if initCalls != 1 {
		t.Fatalf("expected one initialize call, got %d", initCalls)
	}
	status, ok := registry.Get("slack")
	if !ok || !status.Ready || !status.Enabled {
		t.Fatalf("expected ready enabled status, got %#v", status)
	}
	if countEvents(events(), EventIntegrationRegistered) != 1 {
		t.Fatalf("expected integration:registered event")
	}
}

func TestRegistryRegister_DisabledAdapterIsNotInitialized(t *testing.T) {
	registry, _ := newTestRegistry(t)
	adapter := &stubAdapter{}
	if err := registry.Register(context.Background(), "zapier", adapter, IntegrationConfig{}); err != nil {
		t.Fatalf("register: %v", err)
	}
	if initCalls, _, _ := adapter.counts(); initCalls != 0 {
		t.Fatalf("expected disabled adapter to stay uninitialized, got %d calls", initCalls)
	}
}

func TestRegistryRegister_InitializationFailureKeepsEntry(t *testing.T) {
	registry, events := newTestRegistry(t)
	adapter := &stubAdapter{initErr: errBoom}

	err := registry.Register(context.Background(), "slack", adapter, IntegrationConfig{Enabled: true})
	if err == nil {
		t.Fatalf("expected initialization failure")
	}
	if !HasErrorCode(err, ErrorInitializationFailure) {
		t.Fatalf("expected initialization failure code, got %v", err)
	}
	status, ok := registry.Get("slack")
	if !ok {
		t.Fatalf("expected entry to remain registered")
	}
	if status.Ready {
		t.Fatalf("expected entry to be not ready")
	}
	if !strings.Contains(status.LastError, "boom") {
		t.Fatalf("expected last error to be recorded, got %q", status.LastError)
	}
	if countEvents(events(), EventIntegrationError) != 1 {
		t.Fatalf("expected integration:error event")
	}
}

func TestRegistryRegister_RejectsDuplicateName(t *testing.T) {
	ctx := context.Background()
	registry, _ := newTestRegistry(t)
	if err := registry.Register(ctx, "slack", &stubAdapter{}, IntegrationConfig{}); err != nil {
		t.Fatalf("register: %v", err)
	}
	err := registry.Register(ctx, "slack", &stubAdapter{}, IntegrationConfig{})
	if !HasErrorCode(err, ErrorDuplicateRegistration) {
		t.Fatalf("expected duplicate registration error, got %v", err)
	}
}

func TestRegistryReplace_DisconnectsPreviousAdapter(t *testing.T) {
	ctx := context.Background()
	registrar := newStubRegistrar()
	registry, _ := newTestRegistry(t, WithWebhookRegistrar(registrar))
	handler := WebhookHandlerFunc(func(context.Context, WebhookPayload) (WebhookResult, error) {
		return WebhookResult{Accepted: true}, nil
	})
	first := &stubAdapter{handler: handler}
	cfg := IntegrationConfig{Enabled: true, WebhookURL: "https://hooks.test/slack"}
	if err := registry.Register(ctx, "slack", first, cfg); err != nil {
		t.Fatalf("register: %v", err)
	}

	second := &stubAdapter{handler: handler}
	if err := registry.Replace(ctx, "slack", second, cfg); err != nil {
		t.Fatalf("replace: %v", err)
	}
	if _, disconnects, _ := first.counts(); disconnects != 1 {
		t.Fatalf("expected previous adapter to be disconnected once, got %d", disconnects)
	}
	if initCalls, _, _ := second.counts(); initCalls != 1 {
		t.Fatalf("expected replacement to be initialized, got %d", initCalls)
	}
	if !registrar.Registered("slack") {
		t.Fatalf("expected replacement handler to be wired")
	}
	for _, call := range registrar.calls {
		if call.op == "replace" {
			t.Fatalf("expected registry replace to unwire then register, got %#v", registrar.calls)
		}
	}
	current, _ := registry.Adapter("slack")
	if current != second {
		t.Fatalf("expected replacement adapter to be current")
	}
}

func TestRegistryUnregister_UnknownNameIsNotFound(t *testing.T) {
	ctx := context.Background()
	registry, _ := newTestRegistry(t)
	if err := registry.Register(ctx, "slack", &stubAdapter{}, IntegrationConfig{Enabled: true}); err != nil {
		t.Fatalf("register: %v", err)
	}

	err := registry.Unregister(ctx, "ghost")
	if !HasErrorCode(err, ErrorNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, ok := registry.Get("slack"); !ok {
		t.Fatalf("expected other registrations to be unaffected")
	}
}

func TestRegistryUnregister_DisconnectsAndUnwires(t *testing.T) {
	ctx := context.Background()
	registrar := newStubRegistrar()
	registry, events := newTestRegistry(t, WithWebhookRegistrar(registrar))
	adapter := &stubAdapter{handler: WebhookHandlerFunc(func(context.Context, WebhookPayload) (WebhookResult, error) {
		return WebhookResult{Accepted: true}, nil
	})}
	if err := registry.Register(ctx, "zapier", adapter, IntegrationConfig{Enabled: true, WebhookURL: "https://hooks.test/zapier"}); err != nil {
		t.Fatalf("register: %v", err)
	}
	if !registrar.Registered("zapier") {
		t.Fatalf("expected webhook handler to be wired")
	}

	if err := registry.Unregister(ctx, "zapier"); err != nil {
		t.Fatalf("unregister: %v", err)
	}
	if registrar.Registered("zapier") {
		t.Fatalf("expected webhook handler to be unwired")
	}
	if _, disconnects, _ := adapter.counts(); disconnects != 1 {
		t.Fatalf("expected one disconnect, got %d", disconnects)
	}
	if countEvents(events(), EventIntegrationUnregistered) != 1 {
		t.Fatalf("expected integration:unregistered event")
	}
}

func TestRegistryWire_UsesConfigDefaultsAndOverrides(t *testing.T) {
	registrar := newStubRegistrar()
	registry, _ := newTestRegistry(t, WithWebhookRegistrar(registrar))
	adapter := &stubAdapter{handler: WebhookHandlerFunc(func(context.Context, WebhookPayload) (WebhookResult, error) {
		return WebhookResult{Accepted: true}, nil
	})}
	cfg := IntegrationConfig{
		Enabled:       true,
		WebhookURL:    "https://hooks.test/slack",
		WebhookSecret: "s3cr3t",
		MaxRetries:    IntPtr(0),
		Timeout:       2 * time.Second,
	}
	if err := registry.Register(context.Background(), "slack", adapter, cfg); err != nil {
		t.Fatalf("register: %v", err)
	}
	if len(registrar.calls) != 1 {
		t.Fatalf("expected one registrar call, got %d", len(registrar.calls))
	}
	wired := registrar.calls[0].cfg
	if wired.Secret != "s3cr3t" || wired.MaxRetries != 0 || wired.Timeout != 2*time.Second {
		t.Fatalf("unexpected wired delivery config: %#v", wired)
	}
	if wired.RetryDelay != time.Second {
		t.Fatalf("expected retry delay default of 1s, got %s", wired.RetryDelay)
	}
	if wired.SignatureHeader != DefaultSignatureHeader {
		t.Fatalf("expected default signature header, got %q", wired.SignatureHeader)
	}
}

func TestRegistryEnableDisable_TogglesLifecycle(t *testing.T) {
	ctx := context.Background()
	registry, events := newTestRegistry(t)
	adapter := &stubAdapter{}
	if err := registry.Register(ctx, "slack", adapter, IntegrationConfig{}); err != nil {
		t.Fatalf("register: %v", err)
	}

	if err := registry.Enable(ctx, "slack"); err != nil {
		t.Fatalf("enable: %v", err)
	}
	if err := registry.Disable(ctx, "slack"); err != nil {
		t.Fatalf("disable: %v", err)
	}
	initCalls, disconnects, _ := adapter.counts()
	if initCalls != 1 || disconnects != 1 {
		t.Fatalf("expected one initialize and one disconnect, got %d/%d", initCalls, disconnects)
	}
	collected := events()
	if countEvents(collected, EventIntegrationEnabled) != 1 || countEvents(collected, EventIntegrationDisabled) != 1 {
		t.Fatalf("expected enabled and disabled events, got %#v", collected)
	}
	if err := registry.Enable(ctx, "missing"); !HasErrorCode(err, ErrorNotFound) {
		t.Fatalf("expected not found for unknown integration, got %v", err)
	}
}

func TestRegistryAuthenticate_StoresValidatedCredentials(t *testing.T) {
	ctx := context.Background()
	registry, _ := newTestRegistry(t)
	adapter := &stubAdapter{}
	if err := registry.Register(ctx, "zapier", adapter, IntegrationConfig{Enabled: true}); err != nil {
		t.Fatalf("register: %v", err)
	}

	if err := registry.Authenticate(ctx, "zapier", IntegrationCredentials{Kind: CredentialKindAPIKey}); !HasErrorCode(err, ErrorBadInput) {
		t.Fatalf("expected bad input for empty api key, got %v", err)
	}
	if err := registry.Authenticate(ctx, "zapier", APIKeyCredentials("zk_1")); err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if adapter.lastCreds.APIKey != "zk_1" {
		t.Fatalf("expected adapter to receive credentials, got %#v", adapter.lastCreds)
	}
	cfg, _ := registry.IntegrationConfig("zapier")
	if cfg.Credentials == nil || cfg.Credentials.APIKey != "zk_1" {
		t.Fatalf("expected credentials to be stored, got %#v", cfg.Credentials)
	}
}

func TestRegistryHealthCheckAll_IsolatesFailures(t *testing.T) {
	ctx := context.Background()
	registry, _ := newTestRegistry(t)
	if err := registry.Register(ctx, "healthy", &stubAdapter{}, IntegrationConfig{Enabled: true}); err != nil {
		t.Fatalf("register healthy: %v", err)
	}
	if err := registry.Register(ctx, "failing", &stubAdapter{healthErr: errBoom}, IntegrationConfig{Enabled: true}); err != nil {
		t.Fatalf("register failing: %v", err)
	}
	if err := registry.Register(ctx, "panicking", &stubAdapter{healthPanic: true}, IntegrationConfig{Enabled: true}); err != nil {
		t.Fatalf("register panicking: %v", err)
	}
	disabled := &stubAdapter{}
	if err := registry.Register(ctx, "disabled", disabled, IntegrationConfig{}); err != nil {
		t.Fatalf("register disabled: %v", err)
	}

	results := registry.HealthCheckAll(ctx)
	if len(results) != 4 {
		t.Fatalf("expected 4 health entries, got %d", len(results))
	}
	if results["healthy"].Status != HealthStatusHealthy {
		t.Fatalf("expected healthy entry, got %#v", results["healthy"])
	}
	if results["failing"].Status != HealthStatusError || !strings.Contains(results["failing"].Error, "boom") {
		t.Fatalf("expected error entry for failing adapter, got %#v", results["failing"])
	}
	if results["panicking"].Status != HealthStatusError {
		t.Fatalf("expected error entry for panicking adapter, got %#v", results["panicking"])
	}
	if results["disabled"].Status != HealthStatusDisabled {
		t.Fatalf("expected disabled entry, got %#v", results["disabled"])
	}
	if _, _, probes := disabled.counts(); probes != 0 {
		t.Fatalf("expected disabled adapter to be skipped, got %d probes", probes)
	}
}

func TestRegistryRouteWebhook_UnknownAdapterIsNotFound(t *testing.T) {
	registry, _ := newTestRegistry(t)
	_, err := registry.RouteWebhook(context.Background(), "unknown-adapter", NewWebhookPayload("x", "", nil, "", time.Time{}))
	if !HasErrorCode(err, ErrorNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestRegistryRouteWebhook_InvokesHandlerAndEmits(t *testing.T) {
	ctx := context.Background()
	registry, events := newTestRegistry(t)
	var received WebhookPayload
	adapter := &stubAdapter{handler: WebhookHandlerFunc(func(_ context.Context, payload WebhookPayload) (WebhookResult, error) {
		received = payload
		return WebhookResult{Accepted: true, StatusCode: 200}, nil
	})}
	if err := registry.Register(ctx, "slack", adapter, IntegrationConfig{Enabled: true}); err != nil {
		t.Fatalf("register: %v", err)
	}
	payload := NewWebhookPayload("slack", "message", []byte(`{"text":"hi"}`), "", time.Time{})
	result, err := registry.RouteWebhook(ctx, "slack", payload)
	if err != nil {
		t.Fatalf("route webhook: %v", err)
	}
	if !result.Accepted || received.ID != payload.ID {
		t.Fatalf("unexpected routing result %#v / %#v", result, received)
	}
	if countEvents(events(), EventWebhookProcessed) != 1 {
		t.Fatalf("expected webhook:processed event")
	}

	if err := registry.Register(ctx, "silent", &stubAdapter{}, IntegrationConfig{Enabled: true}); err != nil {
		t.Fatalf("register silent: %v", err)
	}
	if _, err := registry.RouteWebhook(ctx, "silent", payload); !HasErrorCode(err, ErrorNotFound) {
		t.Fatalf("expected not found for adapter without handler, got %v", err)
	}
}

func TestRegistryShutdown_CollectsOutcomes(t *testing.T) {
	ctx := context.Background()
	registry, _ := newTestRegistry(t)
	if err := registry.Register(ctx, "a", &stubAdapter{}, IntegrationConfig{Enabled: true}); err != nil {
		t.Fatalf("register a: %v", err)
	}
	if err := registry.Register(ctx, "b", &stubAdapter{disconnectErr: errBoom}, IntegrationConfig{Enabled: true}); err != nil {
		t.Fatalf("register b: %v", err)
	}

	report := registry.Shutdown(ctx)
	if len(report.Outcomes) != 2 {
		t.Fatalf("expected two outcomes, got %d", len(report.Outcomes))
	}
	if report.Outcomes[0].Integration != "a" || report.Outcomes[0].Err != nil {
		t.Fatalf("unexpected first outcome %#v", report.Outcomes[0])
	}
	if report.Outcomes[1].Err == nil {
		t.Fatalf("expected disconnect failure to be reported")
	}
	if report.Err() == nil || !strings.Contains(report.Err().Error(), "b: boom") {
		t.Fatalf("expected joined shutdown error, got %v", report.Err())
	}
	if len(registry.List()) != 0 {
		t.Fatalf("expected registry to be cleared")
	}
}

func TestRegistrySync_LifecycleEmitsEvents(t *testing.T) {
	ctx := context.Background()
	enqueuer := &stubEnqueuer{}
	registry, events := newTestRegistry(t, WithSyncTracker(newMemoryTracker()), WithJobEnqueuer(enqueuer))
	if err := registry.Register(ctx, "zapier", &stubAdapter{}, IntegrationConfig{Enabled: true}); err != nil {
		t.Fatalf("register: %v", err)
	}

	op, err := registry.StartSync(ctx, StartSyncRequest{
		Integration: "zapier",
		Kind:        SyncKindImport,
		EntityType:  "contact",
		Enqueue:     true,
	})
	if err != nil {
		t.Fatalf("start sync: %v", err)
	}
	if _, ok := registry.UpdateSyncProgress(ctx, op.ID, SyncProgress{RecordsProcessed: IntPtr(5)}); !ok {
		t.Fatalf("expected progress update to apply")
	}
	if _, ok := registry.UpdateSyncProgress(ctx, "missing", SyncProgress{RecordsProcessed: IntPtr(1)}); ok {
		t.Fatalf("expected unknown id to be a no-op")
	}
	completed, err := registry.CompleteSyncOperation(ctx, op.ID, SyncStatusCompleted, "")
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if completed.Status != SyncStatusCompleted || completed.RecordsProcessed != 5 {
		t.Fatalf("unexpected completed operation %#v", completed)
	}
	if _, err := registry.CompleteSyncOperation(ctx, op.ID, SyncStatusFailed, "late"); !HasErrorCode(err, ErrorSyncFinalized) {
		t.Fatalf("expected finalized error on second completion, got %v", err)
	}

	collected := events()
	for _, name := range []string{EventSyncStarted, EventSyncProgress, EventSyncCompleted} {
		if countEvents(collected, name) != 1 {
			t.Fatalf("expected one %s event, got %d", name, countEvents(collected, name))
		}
	}
	if len(enqueuer.messages) != 1 {
		t.Fatalf("expected one enqueued sync run, got %d", len(enqueuer.messages))
	}
	msg := enqueuer.messages[0]
	if msg.JobID != DefaultSyncJobID || msg.IdempotencyKey != op.ID {
		t.Fatalf("unexpected job message %#v", msg)
	}

	if _, err := registry.StartSync(ctx, StartSyncRequest{Integration: "ghost", Kind: SyncKindImport, EntityType: "deal"}); !HasErrorCode(err, ErrorNotFound) {
		t.Fatalf("expected not found for unknown integration, got %v", err)
	}
}

func TestRegistryOperations_RecordMetrics(t *testing.T) {
	metrics := newRecordingMetrics()
	registry, _ := newTestRegistry(t, WithMetricsRecorder(metrics))
	if err := registry.Register(context.Background(), "slack", &stubAdapter{}, IntegrationConfig{}); err != nil {
		t.Fatalf("register: %v", err)
	}
	if metrics.counter("integrations.register.total") != 1 {
		t.Fatalf("expected register counter, got %#v", metrics.counters)
	}
}

type hostHandler struct{ name string }

func (h *hostHandler) HandleWebhook(context.Context, WebhookPayload) (WebhookResult, error) {
	return WebhookResult{Accepted: true}, nil
}

func TestRegistryRegister_KeepsHostWebhookRegistration(t *testing.T) {
	ctx := context.Background()
	registrar := newStubRegistrar()
	host := &hostHandler{name: "host"}
	if err := registrar.Register("crm", WebhookDeliveryConfig{Timeout: time.Second}, host); err != nil {
		t.Fatalf("host register: %v", err)
	}
	registry, _ := newTestRegistry(t, WithWebhookRegistrar(registrar))
	adapter := &stubAdapter{handler: &hostHandler{name: "adapter"}}

	err := registry.Register(ctx, "crm", adapter, IntegrationConfig{Enabled: true, WebhookURL: "https://hooks.test/crm"})
	if !HasErrorCode(err, ErrorDuplicateRegistration) {
		t.Fatalf("expected duplicate registration, got %v", err)
	}
	if registrar.registered["crm"] != WebhookHandler(host) {
		t.Fatalf("expected host handler to stay registered")
	}
	status, ok := registry.Get("crm")
	if !ok || status.Ready || status.WebhookWired {
		t.Fatalf("expected unwired, not ready entry, got %#v", status)
	}

	if err := registry.Unregister(ctx, "crm"); err != nil {
		t.Fatalf("unregister: %v", err)
	}
	if registrar.registered["crm"] != WebhookHandler(host) {
		t.Fatalf("expected unregister to leave the host handler in place")
	}
	if _, disconnects, _ := adapter.counts(); disconnects != 1 {
		t.Fatalf("expected initialized adapter to be disconnected, got %d", disconnects)
	}
}

func TestRegistryDisable_DisconnectsAfterFailedInitialize(t *testing.T) {
	ctx := context.Background()
	registry, _ := newTestRegistry(t)
	failed := &stubAdapter{initErr: errBoom}
	if err := registry.Register(ctx, "slack", failed, IntegrationConfig{Enabled: true}); err == nil {
		t.Fatalf("expected initialization failure")
	}
	if err := registry.Disable(ctx, "slack"); err != nil {
		t.Fatalf("disable: %v", err)
	}
	if _, disconnects, _ := failed.counts(); disconnects != 1 {
		t.Fatalf("expected failed adapter to be disconnected once, got %d", disconnects)
	}

	idle := &stubAdapter{}
	if err := registry.Register(ctx, "zapier", idle, IntegrationConfig{}); err != nil {
		t.Fatalf("register idle: %v", err)
	}
	if err := registry.Unregister(ctx, "zapier"); err != nil {
		t.Fatalf("unregister idle: %v", err)
	}
	if _, disconnects, _ := idle.counts(); disconnects != 0 {
		t.Fatalf("expected never-initialized adapter to be left alone, got %d", disconnects)
	}
}

type verifyingAdapter struct {
	*stubAdapter
}

func (verifyingAdapter) VerifyWebhook(secret string, _ []byte, headers map[string]string) bool {
	return headers["X-Token"] == secret
}

func TestRegistryWire_PassesAdapterVerifier(t *testing.T) {
	registrar := newStubRegistrar()
	registry, _ := newTestRegistry(t, WithWebhookRegistrar(registrar))
	adapter := verifyingAdapter{stubAdapter: &stubAdapter{handler: &hostHandler{name: "vendor"}}}
	cfg := IntegrationConfig{Enabled: true, WebhookURL: "https://hooks.test/vendor", WebhookSecret: "tok", SignatureEncoding: SignatureEncodingBase64}
	if err := registry.Register(context.Background(), "vendor", adapter, cfg); err != nil {
		t.Fatalf("register: %v", err)
	}
	wired := registrar.calls[0].cfg
	if wired.Verifier == nil || !wired.Verifier.VerifyWebhook("tok", nil, map[string]string{"X-Token": "tok"}) {
		t.Fatalf("expected adapter verifier to be wired, got %#v", wired)
	}
	if wired.SignatureEncoding != SignatureEncodingBase64 {
		t.Fatalf("expected signature encoding to be wired, got %q", wired.SignatureEncoding)
	}
}

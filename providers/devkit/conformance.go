package devkit

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-integrations/core"
)

func ValidateTransportAdapterConformance(
	ctx context.Context,
	adapter core.TransportAdapter,
	request core.TransportRequest,
) error {
	if adapter == nil {
		return fmt.Errorf("devkit: transport adapter is required")
	}
	if strings.TrimSpace(adapter.Kind()) == "" {
		return fmt.Errorf("devkit: transport adapter kind is required")
	}
	_, err := adapter.Do(ctx, request)
	return err
}

// AdapterConformance describes one lifecycle pass over an adapter.
type AdapterConformance struct {
	Config      core.IntegrationConfig
	Credentials *core.IntegrationCredentials
	// ExpectHandler requires WebhookHandler to be non-nil.
	ExpectHandler bool
	// Probe is routed through the handler when set.
	Probe *core.WebhookPayload
}

// ValidateAdapterConformance drives initialize, authenticate, health check,
// an optional webhook probe and disconnect.
func ValidateAdapterConformance(ctx context.Context, adapter core.Adapter, suite AdapterConformance) error {
	if adapter == nil {
		return fmt.Errorf("devkit: adapter is required")
	}
	if err := adapter.Initialize(ctx, suite.Config); err != nil {
		return fmt.Errorf("devkit: initialize: %w", err)
	}
	if suite.Credentials != nil {
		if err := adapter.Authenticate(ctx, *suite.Credentials); err != nil {
			return fmt.Errorf("devkit: authenticate: %w", err)
		}
	}
	health, err := adapter.HealthCheck(ctx)
	if err != nil {
		return fmt.Errorf("devkit: health check: %w", err)
	}
	if !health.Healthy() {
		return fmt.Errorf("devkit: expected healthy adapter, got %q (%s)", health.Status, health.Message)
	}

	handler := adapter.WebhookHandler()
	if suite.ExpectHandler && handler == nil {
		return fmt.Errorf("devkit: adapter exposes no webhook handler")
	}
	if suite.Probe != nil {
		if handler == nil {
			return fmt.Errorf("devkit: probe given but adapter exposes no webhook handler")
		}
		result, err := handler.HandleWebhook(ctx, *suite.Probe)
		if err != nil {
			return fmt.Errorf("devkit: webhook probe: %w", err)
		}
		if !result.Accepted {
			return fmt.Errorf("devkit: webhook probe was not accepted (status %d)", result.StatusCode)
		}
	}

	if err := adapter.Disconnect(ctx); err != nil {
		return fmt.Errorf("devkit: disconnect: %w", err)
	}
	return nil
}

// ValidateSyncSnapshotConformance round trips operations through a snapshot
// store and checks that terminal state survives.
func ValidateSyncSnapshotConformance(
	ctx context.Context,
	writer core.SyncSnapshotWriter,
	reader core.SyncSnapshotReader,
) error {
	if writer == nil || reader == nil {
		return fmt.Errorf("devkit: snapshot writer and reader are required")
	}
	completedAt := time.Date(2026, 3, 1, 12, 5, 0, 0, time.UTC)
	ops := []core.SyncOperation{
		{
			ID:               "sync_conformance_running",
			Integration:      "zapier",
			Kind:             core.SyncKindImport,
			EntityType:       "contact",
			Status:           core.SyncStatusRunning,
			StartedAt:        time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
			RecordsProcessed: 4,
			RecordsTotal:     core.IntPtr(10),
		},
		{
			ID:               "sync_conformance_done",
			Integration:      "slack",
			Kind:             core.SyncKindExport,
			EntityType:       "message",
			Status:           core.SyncStatusFailed,
			StartedAt:        time.Date(2026, 3, 1, 12, 1, 0, 0, time.UTC),
			CompletedAt:      &completedAt,
			RecordsProcessed: 2,
			Errors:           []string{"rate limited"},
		},
	}
	if err := writer.SaveSyncOperations(ctx, ops); err != nil {
		return fmt.Errorf("devkit: save snapshot: %w", err)
	}
	loaded, err := reader.LoadSyncOperations(ctx)
	if err != nil {
		return fmt.Errorf("devkit: load snapshot: %w", err)
	}
	byID := map[string]core.SyncOperation{}
	for _, op := range loaded {
		byID[op.ID] = op
	}
	for _, want := range ops {
		got, ok := byID[want.ID]
		if !ok {
			return fmt.Errorf("devkit: operation %s missing from snapshot", want.ID)
		}
		if got.Status != want.Status || got.RecordsProcessed != want.RecordsProcessed || got.Integration != want.Integration {
			return fmt.Errorf("devkit: operation %s changed across snapshot: %+v", want.ID, got)
		}
		if (want.CompletedAt == nil) != (got.CompletedAt == nil) {
			return fmt.Errorf("devkit: operation %s completion time not preserved", want.ID)
		}
		if len(got.Errors) != len(want.Errors) {
			return fmt.Errorf("devkit: operation %s errors not preserved", want.ID)
		}
	}
	return nil
}

// ValidateSignatureFixture checks that fixture headers verify against its
// scheme and that a one byte change does not.
func ValidateSignatureFixture(fixture SignedWebhookFixture) error {
	codec := fixture.Scheme.Codec()
	provided := ""
	for key, value := range fixture.Headers {
		if strings.EqualFold(key, fixture.Scheme.Header) {
			provided = value
		}
	}
	if provided == "" {
		return fmt.Errorf("devkit: fixture %s carries no %s header", fixture.Name, fixture.Scheme.Header)
	}
	if !codec.Verify(fixture.Secret, fixture.Body, provided, fixture.Scheme.Prefix) {
		return fmt.Errorf("devkit: fixture %s does not verify", fixture.Name)
	}
	tampered := append([]byte(nil), fixture.Body...)
	tampered = append(tampered, ' ')
	if codec.Verify(fixture.Secret, tampered, provided, fixture.Scheme.Prefix) {
		return fmt.Errorf("devkit: fixture %s verified a tampered body", fixture.Name)
	}
	return nil
}

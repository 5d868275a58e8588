package integrations

import (
	"context"
	"net/http"
	"sync"

	"github.com/goliatone/go-integrations/core"
)

type stubAdapter struct {
	mu          sync.Mutex
	received    []core.WebhookPayload
	disconnects int
	healthErr   error
}

func (s *stubAdapter) Initialize(context.Context, core.IntegrationConfig) error { return nil }

func (s *stubAdapter) Authenticate(context.Context, core.IntegrationCredentials) error { return nil }

func (s *stubAdapter) Disconnect(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.disconnects++
	return nil
}

func (s *stubAdapter) HealthCheck(context.Context) (core.HealthResult, error) {
	if s.healthErr != nil {
		return core.HealthResult{}, s.healthErr
	}
	return core.HealthResult{Status: core.HealthStatusHealthy}, nil
}

func (s *stubAdapter) WebhookHandler() core.WebhookHandler {
	return core.WebhookHandlerFunc(func(_ context.Context, payload core.WebhookPayload) (core.WebhookResult, error) {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.received = append(s.received, payload)
		return core.WebhookResult{
			Accepted:   true,
			StatusCode: http.StatusAccepted,
			Data:       map[string]any{"event": payload.Event},
		}, nil
	})
}

func (s *stubAdapter) payloads() []core.WebhookPayload {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.WebhookPayload(nil), s.received...)
}

type recordingTransport struct {
	mu       sync.Mutex
	requests []core.TransportRequest
	status   int
}

func (*recordingTransport) Kind() string { return "recording" }

func (r *recordingTransport) Do(_ context.Context, req core.TransportRequest) (core.TransportResponse, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.requests = append(r.requests, req)
	status := r.status
	if status == 0 {
		status = http.StatusOK
	}
	return core.TransportResponse{StatusCode: status, Body: []byte(`{"ok":true}`)}, nil
}

func (r *recordingTransport) calls() []core.TransportRequest {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]core.TransportRequest(nil), r.requests...)
}

type memorySnapshotStore struct {
	mu  sync.Mutex
	ops map[string]core.SyncOperation
}

func newMemorySnapshotStore(ops ...core.SyncOperation) *memorySnapshotStore {
	store := &memorySnapshotStore{ops: map[string]core.SyncOperation{}}
	for _, op := range ops {
		store.ops[op.ID] = op.Clone()
	}
	return store
}

func (m *memorySnapshotStore) SaveSyncOperations(_ context.Context, ops []core.SyncOperation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, op := range ops {
		m.ops[op.ID] = op.Clone()
	}
	return nil
}

func (m *memorySnapshotStore) LoadSyncOperations(context.Context) ([]core.SyncOperation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]core.SyncOperation, 0, len(m.ops))
	for _, op := range m.ops {
		out = append(out, op.Clone())
	}
	return out, nil
}

func (m *memorySnapshotStore) get(id string) (core.SyncOperation, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	op, ok := m.ops[id]
	return op, ok
}

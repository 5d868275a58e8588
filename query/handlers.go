package query

import (
	"context"
	"strings"

	"github.com/goliatone/go-integrations/core"
	"github.com/goliatone/go-integrations/webhooks"
)

// IntegrationReader is the read side of the registry. It is satisfied by
// *core.Registry.
type IntegrationReader interface {
	List() []core.IntegrationStatus
	Get(name string) (core.IntegrationStatus, bool)
	HealthCheck(ctx context.Context, name string) (core.HealthResult, error)
	HealthCheckAll(ctx context.Context) map[string]core.HealthResult
}

type SyncOperationReader interface {
	GetSyncOperation(id string) (core.SyncOperation, bool)
	ListSyncOperations(integration string) []core.SyncOperation
}

// DeliveryHistoryReader reads the webhook delivery log. The SQL delivery
// store satisfies it; MemoryDeliveryHistory adapts the in-memory log.
type DeliveryHistoryReader interface {
	Recent(ctx context.Context, webhook string, limit int) ([]webhooks.DeliveryAttempt, error)
	ForDelivery(ctx context.Context, deliveryID string) ([]webhooks.DeliveryAttempt, error)
}

type GetIntegrationQuery struct {
	reader IntegrationReader
}

func NewGetIntegrationQuery(reader IntegrationReader) *GetIntegrationQuery {
	return &GetIntegrationQuery{reader: reader}
}

func (q *GetIntegrationQuery) Query(_ context.Context, msg GetIntegrationMessage) (core.IntegrationStatus, error) {
	if q == nil || q.reader == nil {
		return core.IntegrationStatus{}, core.MissingDependencyError("query", "integration reader")
	}
	name := strings.TrimSpace(msg.Name)
	status, ok := q.reader.Get(name)
	if !ok {
		return core.IntegrationStatus{}, core.NotFoundError("integration", name)
	}
	return status, nil
}

type ListIntegrationsQuery struct {
	reader IntegrationReader
}

func NewListIntegrationsQuery(reader IntegrationReader) *ListIntegrationsQuery {
	return &ListIntegrationsQuery{reader: reader}
}

func (q *ListIntegrationsQuery) Query(_ context.Context, msg ListIntegrationsMessage) ([]core.IntegrationStatus, error) {
	if q == nil || q.reader == nil {
		return nil, core.MissingDependencyError("query", "integration reader")
	}
	all := q.reader.List()
	if !msg.EnabledOnly {
		return all, nil
	}
	out := make([]core.IntegrationStatus, 0, len(all))
	for _, status := range all {
		if status.Enabled {
			out = append(out, status)
		}
	}
	return out, nil
}

type HealthCheckQuery struct {
	reader IntegrationReader
}

func NewHealthCheckQuery(reader IntegrationReader) *HealthCheckQuery {
	return &HealthCheckQuery{reader: reader}
}

func (q *HealthCheckQuery) Query(ctx context.Context, msg HealthCheckMessage) (core.HealthResult, error) {
	if q == nil || q.reader == nil {
		return core.HealthResult{}, core.MissingDependencyError("query", "integration reader")
	}
	return q.reader.HealthCheck(ctx, strings.TrimSpace(msg.Name))
}

type HealthCheckAllQuery struct {
	reader IntegrationReader
}

func NewHealthCheckAllQuery(reader IntegrationReader) *HealthCheckAllQuery {
	return &HealthCheckAllQuery{reader: reader}
}

func (q *HealthCheckAllQuery) Query(ctx context.Context, _ HealthCheckAllMessage) (map[string]core.HealthResult, error) {
	if q == nil || q.reader == nil {
		return nil, core.MissingDependencyError("query", "integration reader")
	}
	return q.reader.HealthCheckAll(ctx), nil
}

type GetSyncOperationQuery struct {
	reader SyncOperationReader
}

func NewGetSyncOperationQuery(reader SyncOperationReader) *GetSyncOperationQuery {
	return &GetSyncOperationQuery{reader: reader}
}

func (q *GetSyncOperationQuery) Query(_ context.Context, msg GetSyncOperationMessage) (core.SyncOperation, error) {
	if q == nil || q.reader == nil {
		return core.SyncOperation{}, core.MissingDependencyError("query", "sync operation reader")
	}
	id := strings.TrimSpace(msg.ID)
	op, ok := q.reader.GetSyncOperation(id)
	if !ok {
		return core.SyncOperation{}, core.NotFoundError("sync operation", id)
	}
	return op, nil
}

type ListSyncOperationsQuery struct {
	reader SyncOperationReader
}

func NewListSyncOperationsQuery(reader SyncOperationReader) *ListSyncOperationsQuery {
	return &ListSyncOperationsQuery{reader: reader}
}

func (q *ListSyncOperationsQuery) Query(_ context.Context, msg ListSyncOperationsMessage) ([]core.SyncOperation, error) {
	if q == nil || q.reader == nil {
		return nil, core.MissingDependencyError("query", "sync operation reader")
	}
	return q.reader.ListSyncOperations(strings.TrimSpace(msg.Integration)), nil
}

type RecentDeliveriesQuery struct {
	reader DeliveryHistoryReader
}

func NewRecentDeliveriesQuery(reader DeliveryHistoryReader) *RecentDeliveriesQuery {
	return &RecentDeliveriesQuery{reader: reader}
}

func (q *RecentDeliveriesQuery) Query(ctx context.Context, msg RecentDeliveriesMessage) ([]webhooks.DeliveryAttempt, error) {
	if q == nil || q.reader == nil {
		return nil, core.MissingDependencyError("query", "delivery history reader")
	}
	return q.reader.Recent(ctx, strings.TrimSpace(msg.Webhook), msg.Limit)
}

type DeliveryAttemptsQuery struct {
	reader DeliveryHistoryReader
}

func NewDeliveryAttemptsQuery(reader DeliveryHistoryReader) *DeliveryAttemptsQuery {
	return &DeliveryAttemptsQuery{reader: reader}
}

func (q *DeliveryAttemptsQuery) Query(ctx context.Context, msg DeliveryAttemptsMessage) ([]webhooks.DeliveryAttempt, error) {
	if q == nil || q.reader == nil {
		return nil, core.MissingDependencyError("query", "delivery history reader")
	}
	return q.reader.ForDelivery(ctx, strings.TrimSpace(msg.DeliveryID))
}

// MemoryDeliveryHistory exposes a MemoryDeliveryLog as a DeliveryHistoryReader.
func MemoryDeliveryHistory(log *webhooks.MemoryDeliveryLog) DeliveryHistoryReader {
	return memoryDeliveryHistory{log: log}
}

type memoryDeliveryHistory struct {
	log *webhooks.MemoryDeliveryLog
}

func (m memoryDeliveryHistory) Recent(_ context.Context, webhook string, limit int) ([]webhooks.DeliveryAttempt, error) {
	return m.log.Recent(webhook, limit), nil
}

func (m memoryDeliveryHistory) ForDelivery(_ context.Context, deliveryID string) ([]webhooks.DeliveryAttempt, error) {
	return m.log.ForDelivery(deliveryID), nil
}

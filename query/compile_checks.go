package query

import (
	gocmd "github.com/goliatone/go-command"

	"github.com/goliatone/go-integrations/core"
	"github.com/goliatone/go-integrations/webhooks"
)

var (
	_ gocmd.Querier[GetIntegrationMessage, core.IntegrationStatus]       = (*GetIntegrationQuery)(nil)
	_ gocmd.Querier[ListIntegrationsMessage, []core.IntegrationStatus]   = (*ListIntegrationsQuery)(nil)
	_ gocmd.Querier[HealthCheckMessage, core.HealthResult]               = (*HealthCheckQuery)(nil)
	_ gocmd.Querier[HealthCheckAllMessage, map[string]core.HealthResult] = (*HealthCheckAllQuery)(nil)
	_ gocmd.Querier[GetSyncOperationMessage, core.SyncOperation]         = (*GetSyncOperationQuery)(nil)
	_ gocmd.Querier[ListSyncOperationsMessage, []core.SyncOperation]     = (*ListSyncOperationsQuery)(nil)
	_ gocmd.Querier[RecentDeliveriesMessage, []webhooks.DeliveryAttempt] = (*RecentDeliveriesQuery)(nil)
	_ gocmd.Querier[DeliveryAttemptsMessage, []webhooks.DeliveryAttempt] = (*DeliveryAttemptsQuery)(nil)

	_ IntegrationReader   = (*core.Registry)(nil)
	_ SyncOperationReader = (*core.Registry)(nil)
)

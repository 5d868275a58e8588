package sqlstore

import (
	"github.com/goliatone/go-integrations/core"
	"github.com/goliatone/go-integrations/query"
	"github.com/goliatone/go-integrations/webhooks"
)

var (
	_ core.SyncSnapshotWriter = (*SyncOperationStore)(nil)
	_ core.SyncSnapshotReader = (*SyncOperationStore)(nil)
	_ core.SyncSnapshotWriter = (*CachedSyncOperationStore)(nil)
	_ core.SyncSnapshotReader = (*CachedSyncOperationStore)(nil)
	_ SyncOperationBackend    = (*SyncOperationStore)(nil)
	_ webhooks.DeliveryLog    = (*WebhookDeliveryStore)(nil)

	_ query.DeliveryHistoryReader = (*WebhookDeliveryStore)(nil)
)

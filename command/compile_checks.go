package command

import (
	gocmd "github.com/goliatone/go-command"

	"github.com/goliatone/go-integrations/core"
)

var (
	_ gocmd.Commander[RegisterIntegrationMessage]   = (*RegisterIntegrationCommand)(nil)
	_ gocmd.Commander[UnregisterIntegrationMessage] = (*UnregisterIntegrationCommand)(nil)
	_ gocmd.Commander[EnableIntegrationMessage]     = (*EnableIntegrationCommand)(nil)
	_ gocmd.Commander[DisableIntegrationMessage]    = (*DisableIntegrationCommand)(nil)
	_ gocmd.Commander[AuthenticateMessage]          = (*AuthenticateCommand)(nil)
	_ gocmd.Commander[RouteWebhookMessage]          = (*RouteWebhookCommand)(nil)
	_ gocmd.Commander[DeliverWebhookMessage]        = (*DeliverWebhookCommand)(nil)
	_ gocmd.Commander[StartSyncMessage]             = (*StartSyncCommand)(nil)
	_ gocmd.Commander[UpdateSyncProgressMessage]    = (*UpdateSyncProgressCommand)(nil)
	_ gocmd.Commander[CompleteSyncMessage]          = (*CompleteSyncCommand)(nil)

	_ IntegrationService = (*core.Registry)(nil)
	_ SyncService        = (*core.Registry)(nil)
)

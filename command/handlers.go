package command

import (
	"context"

	gocmd "github.com/goliatone/go-command"

	"github.com/goliatone/go-integrations/core"
)

// IntegrationService is the registry surface the commands mutate. It is
// satisfied by *core.Registry.
type IntegrationService interface {
	Register(ctx context.Context, name string, adapter core.Adapter, cfg core.IntegrationConfig) error
	Replace(ctx context.Context, name string, adapter core.Adapter, cfg core.IntegrationConfig) error
	Unregister(ctx context.Context, name string) error
	Enable(ctx context.Context, name string) error
	Disable(ctx context.Context, name string) error
	Authenticate(ctx context.Context, name string, creds core.IntegrationCredentials) error
	RouteWebhook(ctx context.Context, name string, payload core.WebhookPayload) (core.WebhookResult, error)
}

// SyncService is the sync lifecycle surface of the registry.
type SyncService interface {
	StartSync(ctx context.Context, req core.StartSyncRequest) (core.SyncOperation, error)
	UpdateSyncProgress(ctx context.Context, id string, progress core.SyncProgress) (core.SyncOperation, bool)
	CompleteSyncOperation(ctx context.Context, id string, status core.SyncStatus, errMsg string) (core.SyncOperation, error)
}

type RegisterIntegrationCommand struct {
	service IntegrationService
}

func NewRegisterIntegrationCommand(service IntegrationService) *RegisterIntegrationCommand {
	return &RegisterIntegrationCommand{service: service}
}

func (c *RegisterIntegrationCommand) Execute(ctx context.Context, msg RegisterIntegrationMessage) error {
	if c == nil || c.service == nil {
		return core.MissingDependencyError("command", "integration service")
	}
	if msg.Replace {
		return c.service.Replace(ctx, msg.Name, msg.Adapter, msg.Config)
	}
	return c.service.Register(ctx, msg.Name, msg.Adapter, msg.Config)
}

type UnregisterIntegrationCommand struct {
	service IntegrationService
}

func NewUnregisterIntegrationCommand(service IntegrationService) *UnregisterIntegrationCommand {
	return &UnregisterIntegrationCommand{service: service}
}

func (c *UnregisterIntegrationCommand) Execute(ctx context.Context, msg UnregisterIntegrationMessage) error {
	if c == nil || c.service == nil {
		return core.MissingDependencyError("command", "integration service")
	}
	return c.service.Unregister(ctx, msg.Name)
}

type EnableIntegrationCommand struct {
	service IntegrationService
}

func NewEnableIntegrationCommand(service IntegrationService) *EnableIntegrationCommand {
	return &EnableIntegrationCommand{service: service}
}

func (c *EnableIntegrationCommand) Execute(ctx context.Context, msg EnableIntegrationMessage) error {
	if c == nil || c.service == nil {
		return core.MissingDependencyError("command", "integration service")
	}
	return c.service.Enable(ctx, msg.Name)
}

type DisableIntegrationCommand struct {
	service IntegrationService
}

func NewDisableIntegrationCommand(service IntegrationService) *DisableIntegrationCommand {
	return &DisableIntegrationCommand{service: service}
}

func (c *DisableIntegrationCommand) Execute(ctx context.Context, msg DisableIntegrationMessage) error {
	if c == nil || c.service == nil {
		return core.MissingDependencyError("command", "integration service")
	}
	return c.service.Disable(ctx, msg.Name)
}

type AuthenticateCommand struct {
	service IntegrationService
}

func NewAuthenticateCommand(service IntegrationService) *AuthenticateCommand {
	return &AuthenticateCommand{service: service}
}

func (c *AuthenticateCommand) Execute(ctx context.Context, msg AuthenticateMessage) error {
	if c == nil || c.service == nil {
		return core.MissingDependencyError("command", "integration service")
	}
	return c.service.Authenticate(ctx, msg.Name, msg.Credentials)
}

type RouteWebhookCommand struct {
	service IntegrationService
}

func NewRouteWebhookCommand(service IntegrationService) *RouteWebhookCommand {
	return &RouteWebhookCommand{service: service}
}

func (c *RouteWebhookCommand) Execute(ctx context.Context, msg RouteWebhookMessage) error {
	if c == nil || c.service == nil {
		return core.MissingDependencyError("command", "integration service")
	}
	out, err := c.service.RouteWebhook(ctx, msg.Name, msg.Payload)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type DeliverWebhookCommand struct {
	deliverer core.WebhookDeliverer
}

func NewDeliverWebhookCommand(deliverer core.WebhookDeliverer) *DeliverWebhookCommand {
	return &DeliverWebhookCommand{deliverer: deliverer}
}

func (c *DeliverWebhookCommand) Execute(ctx context.Context, msg DeliverWebhookMessage) error {
	if c == nil || c.deliverer == nil {
		return core.MissingDependencyError("command", "webhook deliverer")
	}
	out, err := c.deliverer.Deliver(ctx, msg.Name, msg.Event, msg.Data)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type StartSyncCommand struct {
	service SyncService
}

func NewStartSyncCommand(service SyncService) *StartSyncCommand {
	return &StartSyncCommand{service: service}
}

func (c *StartSyncCommand) Execute(ctx context.Context, msg StartSyncMessage) error {
	if c == nil || c.service == nil {
		return core.MissingDependencyError("command", "sync service")
	}
	out, err := c.service.StartSync(ctx, msg.Request)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type UpdateSyncProgressCommand struct {
	service SyncService
}

func NewUpdateSyncProgressCommand(service SyncService) *UpdateSyncProgressCommand {
	return &UpdateSyncProgressCommand{service: service}
}

func (c *UpdateSyncProgressCommand) Execute(ctx context.Context, msg UpdateSyncProgressMessage) error {
	if c == nil || c.service == nil {
		return core.MissingDependencyError("command", "sync service")
	}
	op, applied := c.service.UpdateSyncProgress(ctx, msg.ID, msg.Progress)
	storeResult(ctx, SyncProgressResult{Operation: op, Applied: applied})
	return nil
}

type CompleteSyncCommand struct {
	service SyncService
}

func NewCompleteSyncCommand(service SyncService) *CompleteSyncCommand {
	return &CompleteSyncCommand{service: service}
}

func (c *CompleteSyncCommand) Execute(ctx context.Context, msg CompleteSyncMessage) error {
	if c == nil || c.service == nil {
		return core.MissingDependencyError("command", "sync service")
	}
	out, err := c.service.CompleteSyncOperation(ctx, msg.ID, msg.Status, msg.Error)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

func storeResult[T any](ctx context.Context, value T) {
	collector := gocmd.ResultFromContext[T](ctx)
	if collector == nil {
		return
	}
	collector.Store(value)
}

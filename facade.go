package integrations

import (
	"fmt"

	integrationcommand "github.com/goliatone/go-integrations/command"
	"github.com/goliatone/go-integrations/core"
	integrationquery "github.com/goliatone/go-integrations/query"
)

type Commands struct {
	Register       *integrationcommand.RegisterIntegrationCommand
	Unregister     *integrationcommand.UnregisterIntegrationCommand
	Enable         *integrationcommand.EnableIntegrationCommand
	Disable        *integrationcommand.DisableIntegrationCommand
	Authenticate   *integrationcommand.AuthenticateCommand
	RouteWebhook   *integrationcommand.RouteWebhookCommand
	DeliverWebhook *integrationcommand.DeliverWebhookCommand
	StartSync      *integrationcommand.StartSyncCommand
	UpdateSync     *integrationcommand.UpdateSyncProgressCommand
	CompleteSync   *integrationcommand.CompleteSyncCommand
}

type Queries struct {
	GetIntegration     *integrationquery.GetIntegrationQuery
	ListIntegrations   *integrationquery.ListIntegrationsQuery
	HealthCheck        *integrationquery.HealthCheckQuery
	HealthCheckAll     *integrationquery.HealthCheckAllQuery
	GetSyncOperation   *integrationquery.GetSyncOperationQuery
	ListSyncOperations *integrationquery.ListSyncOperationsQuery
	RecentDeliveries   *integrationquery.RecentDeliveriesQuery
	DeliveryAttempts   *integrationquery.DeliveryAttemptsQuery
}

// Facade exposes the registry as go-command commands and queries.
type Facade struct {
	registry *core.Registry
	commands Commands
	queries  Queries
}

type FacadeOption func(*facadeOptions)

type facadeOptions struct {
	deliverer core.WebhookDeliverer
	history   integrationquery.DeliveryHistoryReader
}

// WithDeliverer enables the DeliverWebhook command.
func WithDeliverer(deliverer core.WebhookDeliverer) FacadeOption {
	return func(options *facadeOptions) {
		options.deliverer = deliverer
	}
}

// WithDeliveryHistory enables the delivery history queries.
func WithDeliveryHistory(history integrationquery.DeliveryHistoryReader) FacadeOption {
	return func(options *facadeOptions) {
		options.history = history
	}
}

func NewFacade(registry *core.Registry, opts ...FacadeOption) (*Facade, error) {
	if registry == nil {
		return nil, fmt.Errorf("integrations: registry is required")
	}
	cfg := facadeOptions{}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&cfg)
	}

	facade := &Facade{registry: registry}
	facade.commands = Commands{
		Register:     integrationcommand.NewRegisterIntegrationCommand(registry),
		Unregister:   integrationcommand.NewUnregisterIntegrationCommand(registry),
		Enable:       integrationcommand.NewEnableIntegrationCommand(registry),
		Disable:      integrationcommand.NewDisableIntegrationCommand(registry),
		Authenticate: integrationcommand.NewAuthenticateCommand(registry),
		RouteWebhook: integrationcommand.NewRouteWebhookCommand(registry),
		StartSync:    integrationcommand.NewStartSyncCommand(registry),
		UpdateSync:   integrationcommand.NewUpdateSyncProgressCommand(registry),
		CompleteSync: integrationcommand.NewCompleteSyncCommand(registry),
	}
	if cfg.deliverer != nil {
		facade.commands.DeliverWebhook = integrationcommand.NewDeliverWebhookCommand(cfg.deliverer)
	}
	facade.queries = Queries{
		GetIntegration:     integrationquery.NewGetIntegrationQuery(registry),
		ListIntegrations:   integrationquery.NewListIntegrationsQuery(registry),
		HealthCheck:        integrationquery.NewHealthCheckQuery(registry),
		HealthCheckAll:     integrationquery.NewHealthCheckAllQuery(registry),
		GetSyncOperation:   integrationquery.NewGetSyncOperationQuery(registry),
		ListSyncOperations: integrationquery.NewListSyncOperationsQuery(registry),
	}
	if cfg.history != nil {
		facade.queries.RecentDeliveries = integrationquery.NewRecentDeliveriesQuery(cfg.history)
		facade.queries.DeliveryAttempts = integrationquery.NewDeliveryAttemptsQuery(cfg.history)
	}
	return facade, nil
}

// Facade builds a facade with delivery and history wired to the runtime.
func (rt *Runtime) Facade() (*Facade, error) {
	if rt == nil {
		return nil, fmt.Errorf("integrations: runtime is not configured")
	}
	return NewFacade(rt.Registry, WithDeliverer(rt.Dispatcher), WithDeliveryHistory(rt.history))
}

func (f *Facade) Commands() Commands {
	if f == nil {
		return Commands{}
	}
	return f.commands
}

func (f *Facade) Queries() Queries {
	if f == nil {
		return Queries{}
	}
	return f.queries
}

func (f *Facade) Registry() *core.Registry {
	if f == nil {
		return nil
	}
	return f.registry
}

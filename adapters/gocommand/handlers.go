package gocommand

import (
	"fmt"

	commanddispatcher "github.com/goliatone/go-command/dispatcher"
	"github.com/goliatone/go-command/runner"

	integrationcommand "github.com/goliatone/go-integrations/command"
	"github.com/goliatone/go-integrations/core"
	integrationquery "github.com/goliatone/go-integrations/query"
)

// HandlerDependencies feeds RegisterIntegrationHandlers. Deliverer and
// History are optional; their handlers are skipped when nil.
type HandlerDependencies struct {
	Registry  *core.Registry
	Deliverer core.WebhookDeliverer
	History   integrationquery.DeliveryHistoryReader
}

// Subscriptions groups dispatcher subscriptions so callers can drop them
// together.
type Subscriptions []commanddispatcher.Subscription

func (s Subscriptions) Unsubscribe() {
	for _, sub := range s {
		if sub != nil {
			sub.Unsubscribe()
		}
	}
}

// RegisterIntegrationHandlers registers and subscribes every integration
// command and query. On failure the subscriptions made so far are dropped.
func RegisterIntegrationHandlers(
	adapter *RegistryAdapter,
	deps HandlerDependencies,
	runnerOpts ...runner.Option,
) (Subscriptions, error) {
	if deps.Registry == nil {
		return nil, fmt.Errorf("gocommand: integration registry is required")
	}
	reg := deps.Registry

	steps := []func() (commanddispatcher.Subscription, error){
		func() (commanddispatcher.Subscription, error) {
			return RegisterAndSubscribe(adapter, integrationcommand.NewRegisterIntegrationCommand(reg), runnerOpts...)
		},
		func() (commanddispatcher.Subscription, error) {
			return RegisterAndSubscribe(adapter, integrationcommand.NewUnregisterIntegrationCommand(reg), runnerOpts...)
		},
		func() (commanddispatcher.Subscription, error) {
			return RegisterAndSubscribe(adapter, integrationcommand.NewEnableIntegrationCommand(reg), runnerOpts...)
		},
		func() (commanddispatcher.Subscription, error) {
			return RegisterAndSubscribe(adapter, integrationcommand.NewDisableIntegrationCommand(reg), runnerOpts...)
		},
		func() (commanddispatcher.Subscription, error) {
			return RegisterAndSubscribe(adapter, integrationcommand.NewAuthenticateCommand(reg), runnerOpts...)
		},
		func() (commanddispatcher.Subscription, error) {
			return RegisterAndSubscribe(adapter, integrationcommand.NewRouteWebhookCommand(reg), runnerOpts...)
		},
		func() (commanddispatcher.Subscription, error) {
			return RegisterAndSubscribe(adapter, integrationcommand.NewStartSyncCommand(reg), runnerOpts...)
		},
		func() (commanddispatcher.Subscription, error) {
			return RegisterAndSubscribe(adapter, integrationcommand.NewUpdateSyncProgressCommand(reg), runnerOpts...)
		},
		func() (commanddispatcher.Subscription, error) {
			return RegisterAndSubscribe(adapter, integrationcommand.NewCompleteSyncCommand(reg), runnerOpts...)
		},
		func() (commanddispatcher.Subscription, error) {
			return RegisterAndSubscribeQuery(adapter, integrationquery.NewGetIntegrationQuery(reg), runnerOpts...)
		},
		func() (commanddispatcher.Subscription, error) {
			return RegisterAndSubscribeQuery(adapter, integrationquery.NewListIntegrationsQuery(reg), runnerOpts...)
		},
		func() (commanddispatcher.Subscription, error) {
			return RegisterAndSubscribeQuery(adapter, integrationquery.NewHealthCheckQuery(reg), runnerOpts...)
		},
		func() (commanddispatcher.Subscription, error) {
			return RegisterAndSubscribeQuery(adapter, integrationquery.NewHealthCheckAllQuery(reg), runnerOpts...)
		},
		func() (commanddispatcher.Subscription, error) {
			return RegisterAndSubscribeQuery(adapter, integrationquery.NewGetSyncOperationQuery(reg), runnerOpts...)
		},
		func() (commanddispatcher.Subscription, error) {
			return RegisterAndSubscribeQuery(adapter, integrationquery.NewListSyncOperationsQuery(reg), runnerOpts...)
		},
	}
	if deps.Deliverer != nil {
		steps = append(steps, func() (commanddispatcher.Subscription, error) {
			return RegisterAndSubscribe(adapter, integrationcommand.NewDeliverWebhookCommand(deps.Deliverer), runnerOpts...)
		})
	}
	if deps.History != nil {
		steps = append(steps,
			func() (commanddispatcher.Subscription, error) {
				return RegisterAndSubscribeQuery(adapter, integrationquery.NewRecentDeliveriesQuery(deps.History), runnerOpts...)
			},
			func() (commanddispatcher.Subscription, error) {
				return RegisterAndSubscribeQuery(adapter, integrationquery.NewDeliveryAttemptsQuery(deps.History), runnerOpts...)
			},
		)
	}

	subs := make(Subscriptions, 0, len(steps))
	for _, step := range steps {
		sub, err := step()
		if err != nil {
			subs.Unsubscribe()
			return nil, err
		}
		subs = append(subs, sub)
	}
	return subs, nil
}

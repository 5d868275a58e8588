package integrations

import (
	"context"
	"fmt"

	"github.com/goliatone/go-integrations/core"
	"github.com/goliatone/go-integrations/providers/slack"
	"github.com/goliatone/go-integrations/providers/zapier"
)

// SlackAdapter builds a Slack adapter logging under the runtime. Fields
// already set on cfg are kept.
func (rt *Runtime) SlackAdapter(cfg slack.Config) *slack.Adapter {
	if cfg.Logger == nil && rt != nil {
		cfg.Logger = rt.Logger("slack")
	}
	return slack.New(cfg)
}

// ZapierAdapter builds a Zapier adapter whose REST hooks go through the
// runtime dispatcher and whose imports are tracked by the registry.
func (rt *Runtime) ZapierAdapter(cfg zapier.Config) *zapier.Adapter {
	if rt != nil {
		if cfg.Outbound == nil {
			cfg.Outbound = rt.Dispatcher
		}
		if cfg.Syncs == nil {
			cfg.Syncs = rt.Registry
		}
		if cfg.Logger == nil {
			cfg.Logger = rt.Logger(zapier.Name)
		}
	}
	return zapier.New(cfg)
}

// RegisterSlack builds and registers a Slack adapter under name.
func (rt *Runtime) RegisterSlack(ctx context.Context, name string, cfg slack.Config, integration core.IntegrationConfig) (*slack.Adapter, error) {
	if rt == nil || rt.Registry == nil {
		return nil, fmt.Errorf("integrations: runtime is not configured")
	}
	adapter := rt.SlackAdapter(cfg)
	if err := rt.Registry.Register(ctx, name, adapter, integration); err != nil {
		return adapter, err
	}
	return adapter, nil
}

// RegisterZapier builds and registers a Zapier adapter under name.
func (rt *Runtime) RegisterZapier(ctx context.Context, name string, cfg zapier.Config, integration core.IntegrationConfig) (*zapier.Adapter, error) {
	if rt == nil || rt.Registry == nil {
		return nil, fmt.Errorf("integrations: runtime is not configured")
	}
	adapter := rt.ZapierAdapter(cfg)
	if err := rt.Registry.Register(ctx, name, adapter, integration); err != nil {
		return adapter, err
	}
	return adapter, nil
}

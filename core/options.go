package core

import (
	"context"
	"fmt"
	"maps"
	"strings"
	"time"

	"github.com/goliatone/go-config/cfgx"
	goerrors "github.com/goliatone/go-errors"
	glog "github.com/goliatone/go-logger/glog"
	opts "github.com/goliatone/go-options"
)

type ErrorMapper func(err error) *goerrors.Error

type ConfigProvider interface {
	Load(ctx context.Context, defaults Config) (Config, error)
}

type RawConfigLoader interface {
	LoadRaw(ctx context.Context) (map[string]any, error)
}

type OptionsResolver interface {
	Resolve(defaults Config, loaded Config, runtime Config) (Config, error)
}

type registryBuilder struct {
	runtimeConfig   Config
	logger          Logger
	loggerProvider  LoggerProvider
	metricsRecorder MetricsRecorder
	errorMapper     ErrorMapper
	configProvider  ConfigProvider
	optionsResolver OptionsResolver
	events          *EventBus
	webhooks        WebhookRegistrar
	tracker         SyncTracker
	jobEnqueuer     JobEnqueuer
	now             func() time.Time
}

type Option func(*registryBuilder)

func WithLogger(logger Logger) Option {
	return func(b *registryBuilder) {
		b.logger = logger
	}
}

func WithLoggerProvider(provider LoggerProvider) Option {
	return func(b *registryBuilder) {
		b.loggerProvider = provider
	}
}

func WithMetricsRecorder(recorder MetricsRecorder) Option {
	return func(b *registryBuilder) {
		b.metricsRecorder = recorder
	}
}

func WithErrorMapper(mapper ErrorMapper) Option {
	return func(b *registryBuilder) {
		b.errorMapper = mapper
	}
}

func WithConfigProvider(provider ConfigProvider) Option {
	return func(b *registryBuilder) {
		b.configProvider = provider
	}
}

func WithOptionsResolver(resolver OptionsResolver) Option {
	return func(b *registryBuilder) {
		b.optionsResolver = resolver
	}
}

func WithEventBus(bus *EventBus) Option {
	return func(b *registryBuilder) {
		b.events = bus
	}
}

// WithWebhookRegistrar wires inbound handlers of enabled adapters into a
// dispatcher.
func WithWebhookRegistrar(registrar WebhookRegistrar) Option {
	return func(b *registryBuilder) {
		b.webhooks = registrar
	}
}

func WithSyncTracker(tracker SyncTracker) Option {
	return func(b *registryBuilder) {
		b.tracker = tracker
	}
}

// WithJobEnqueuer makes StartSync enqueue a run message for background
// execution.
func WithJobEnqueuer(enqueuer JobEnqueuer) Option {
	return func(b *registryBuilder) {
		b.jobEnqueuer = enqueuer
	}
}

func WithClock(now func() time.Time) Option {
	return func(b *registryBuilder) {
		b.now = now
	}
}

func defaultRegistryBuilder(runtime Config) registryBuilder {
	loggerProvider, logger := glog.Resolve("integrations", nil, nil)
	return registryBuilder{
		runtimeConfig:   runtime,
		loggerProvider:  loggerProvider,
		logger:          logger,
		metricsRecorder: NopMetricsRecorder{},
		errorMapper:     MapError,
		configProvider:  NewCfgxConfigProvider(nil),
		optionsResolver: GoOptionsResolver{},
		now: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// ResolveConfig runs defaults, loaded and runtime values through the
// provider and resolver pair.
func ResolveConfig(ctx context.Context, provider ConfigProvider, resolver OptionsResolver, runtime Config) (Config, error) {
	if provider == nil {
		provider = NewCfgxConfigProvider(nil)
	}
	if resolver == nil {
		resolver = GoOptionsResolver{}
	}
	defaults := DefaultConfig()
	loaded, err := provider.Load(ctx, defaults)
	if err != nil {
		return Config{}, err
	}
	return resolver.Resolve(defaults, loaded, runtime)
}

type StaticConfigLoader struct {
	Values map[string]any
}

func (l StaticConfigLoader) LoadRaw(context.Context) (map[string]any, error) {
	out := make(map[string]any, len(l.Values))
	maps.Copy(out, l.Values)
	return out, nil
}

type CfgxConfigProvider struct {
	Loader RawConfigLoader
}

func NewCfgxConfigProvider(loader RawConfigLoader) *CfgxConfigProvider {
	return &CfgxConfigProvider{Loader: loader}
}

func (p *CfgxConfigProvider) Load(ctx context.Context, defaults Config) (Config, error) {
	if p == nil {
		return defaults, nil
	}
	loader := p.Loader
	if loader == nil {
		loader = StaticConfigLoader{}
	}
	raw, err := loader.LoadRaw(ctx)
	if err != nil {
		return Config{}, err
	}
	return cfgx.Build[Config](raw,
		cfgx.WithDefaults(defaults),
		cfgx.WithValidator[Config]((*Config).Validate),
	)
}

// GoOptionsResolver layers defaults < config < runtime. Zero runtime values
// are treated as unset.
type GoOptionsResolver struct{}

func (GoOptionsResolver) Resolve(defaults Config, loaded Config, runtime Config) (Config, error) {
	stack, err := opts.NewStack(
		opts.NewLayer(
			opts.NewScope("defaults", 0),
			configToLayerMap(defaults, true),
			opts.WithSnapshotID[map[string]any]("defaults"),
		),
		opts.NewLayer(
			opts.NewScope("config", 10),
			configToLayerMap(loaded, false),
			opts.WithSnapshotID[map[string]any]("config"),
		),
		opts.NewLayer(
			opts.NewScope("runtime", 20),
			configToLayerMap(runtime, false),
			opts.WithSnapshotID[map[string]any]("runtime"),
		),
	)
	if err != nil {
		return Config{}, fmt.Errorf("core: options stack build failed: %w", err)
	}
	merged, err := stack.Merge()
	if err != nil {
		return Config{}, fmt.Errorf("core: options merge failed: %w", err)
	}
	resolved, err := cfgx.Build[Config](merged.Value,
		cfgx.WithDefaults(defaults),
		cfgx.WithValidator[Config]((*Config).Validate),
	)
	if err != nil {
		return Config{}, err
	}
	if err := resolved.Validate(); err != nil {
		return Config{}, err
	}
	return resolved, nil
}

// layerValues collects one config section. Unless includeZero is set only
// fields with a value are kept, so an upper layer never masks a lower one
// with an unset value.
type layerValues struct {
	values      map[string]any
	includeZero bool
}

func newLayerValues(includeZero bool) layerValues {
	return layerValues{values: map[string]any{}, includeZero: includeZero}
}

func (l layerValues) put(key string, value any, set bool) {
	if l.includeZero || set {
		l.values[key] = value
	}
}

func (l layerValues) nest(parent map[string]any, key string) {
	if len(l.values) > 0 {
		parent[key] = l.values
	}
}

func configToLayerMap(cfg Config, includeZero bool) map[string]any {
	root := newLayerValues(includeZero)
	root.put("service_name", cfg.ServiceName, strings.TrimSpace(cfg.ServiceName) != "")

	d := cfg.Dispatcher
	dispatcher := newLayerValues(includeZero)
	dispatcher.put("timeout_ms", d.TimeoutMS, d.TimeoutMS > 0)
	dispatcher.put("max_retries", d.MaxRetries, d.MaxRetries > 0)
	dispatcher.put("retry_delay_ms", d.RetryDelayMS, d.RetryDelayMS > 0)
	dispatcher.put("backoff", d.Backoff, strings.TrimSpace(d.Backoff) != "")
	dispatcher.put("max_retry_delay_ms", d.MaxRetryDelayMS, d.MaxRetryDelayMS > 0)
	dispatcher.put("signature_header", d.SignatureHeader, strings.TrimSpace(d.SignatureHeader) != "")
	dispatcher.put("signature_prefix", d.SignaturePrefix, strings.TrimSpace(d.SignaturePrefix) != "")
	dispatcher.nest(root.values, "dispatcher")

	sync := newLayerValues(includeZero)
	sync.put("clamp_progress", cfg.Sync.ClampProgress, cfg.Sync.ClampProgress)
	sync.put("job_id", cfg.Sync.JobID, strings.TrimSpace(cfg.Sync.JobID) != "")
	sync.nest(root.values, "sync")

	return root.values
}

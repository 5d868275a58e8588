package integrations

import (
	"context"
	"errors"
	"fmt"

	"github.com/goliatone/go-integrations/adapters/gologger"
	"github.com/goliatone/go-integrations/core"
	"github.com/goliatone/go-integrations/inbound"
	"github.com/goliatone/go-integrations/query"
	integrationsync "github.com/goliatone/go-integrations/sync"
	"github.com/goliatone/go-integrations/webhooks"
)

// SnapshotStore persists tracked sync operations across restarts. The SQL
// sync operation store satisfies it.
type SnapshotStore interface {
	core.SyncSnapshotWriter
	core.SyncSnapshotReader
}

// Runtime is one wired registry, dispatcher and tracker sharing an event
// bus. Hosts own its lifetime; there is no package level instance.
type Runtime struct {
	Registry   *core.Registry
	Dispatcher *webhooks.Dispatcher
	Tracker    *integrationsync.Tracker
	Events     *core.EventBus
	Deliveries *webhooks.MemoryDeliveryLog
	Inbound    *inbound.Handler

	loggers   gologger.Loggers
	history   query.DeliveryHistoryReader
	snapshots SnapshotStore
	restored  int
}

type SetupOption func(*setupOptions)

type setupOptions struct {
	registryOpts   []core.Option
	dispatcherOpts []webhooks.DispatcherOption
	trackerOpts    []integrationsync.TrackerOption
	inboundOpts    []inbound.HandlerOption

	loggerProvider core.LoggerProvider
	logger         core.Logger
	metrics        core.MetricsRecorder
	transport      core.TransportAdapter
	durableLog     webhooks.DeliveryLog
	snapshots      SnapshotStore
	logCapacity    int
}

// WithRegistryOptions forwards options to core.NewRegistry. Setup still
// installs its own tracker, dispatcher and event bus.
func WithRegistryOptions(opts ...core.Option) SetupOption {
	return func(o *setupOptions) {
		o.registryOpts = append(o.registryOpts, opts...)
	}
}

func WithDispatcherOptions(opts ...webhooks.DispatcherOption) SetupOption {
	return func(o *setupOptions) {
		o.dispatcherOpts = append(o.dispatcherOpts, opts...)
	}
}

func WithTrackerOptions(opts ...integrationsync.TrackerOption) SetupOption {
	return func(o *setupOptions) {
		o.trackerOpts = append(o.trackerOpts, opts...)
	}
}

func WithInboundOptions(opts ...inbound.HandlerOption) SetupOption {
	return func(o *setupOptions) {
		o.inboundOpts = append(o.inboundOpts, opts...)
	}
}

// WithLogging sets the logger provider and fallback logger for every
// component, resolved provider > logger > nop.
func WithLogging(provider core.LoggerProvider, logger core.Logger) SetupOption {
	return func(o *setupOptions) {
		o.loggerProvider = provider
		o.logger = logger
	}
}

func WithMetrics(recorder core.MetricsRecorder) SetupOption {
	return func(o *setupOptions) {
		o.metrics = recorder
	}
}

// WithOutboundTransport sets the transport used for outbound deliveries.
func WithOutboundTransport(transport core.TransportAdapter) SetupOption {
	return func(o *setupOptions) {
		o.transport = transport
	}
}

// WithDurableDeliveryLog appends every attempt to log as well as the
// in-memory ring. When log can also be read back it serves delivery queries.
func WithDurableDeliveryLog(log webhooks.DeliveryLog) SetupOption {
	return func(o *setupOptions) {
		o.durableLog = log
	}
}

// WithSnapshotStore restores tracked operations during Setup and saves them
// again on Shutdown.
func WithSnapshotStore(store SnapshotStore) SetupOption {
	return func(o *setupOptions) {
		o.snapshots = store
	}
}

func WithDeliveryLogCapacity(capacity int) SetupOption {
	return func(o *setupOptions) {
		o.logCapacity = capacity
	}
}

// Setup wires a Runtime: tracker, dispatcher with delivery log, registry
// with the dispatcher as its webhook registrar, and the inbound handler.
func Setup(ctx context.Context, cfg Config, opts ...SetupOption) (*Runtime, error) {
	options := setupOptions{}
	for _, opt := range opts {
		if opt != nil {
			opt(&options)
		}
	}

	loggers := gologger.New(options.loggerProvider, options.logger)
	logger := loggers.Root()
	events := core.NewEventBus()
	deliveries := webhooks.NewMemoryDeliveryLog(options.logCapacity)

	var deliveryLog webhooks.DeliveryLog = deliveries
	var history query.DeliveryHistoryReader = query.MemoryDeliveryHistory(deliveries)
	if options.durableLog != nil {
		deliveryLog = webhooks.MultiDeliveryLog{deliveries, options.durableLog}
		if reader, ok := options.durableLog.(query.DeliveryHistoryReader); ok {
			history = reader
		}
	}

	tracker := integrationsync.NewTrackerFromConfig(cfg, append([]integrationsync.TrackerOption{
		integrationsync.WithLogger(loggers.Named("sync")),
	}, options.trackerOpts...)...)

	dispatcherOpts := []webhooks.DispatcherOption{
		webhooks.WithEvents(events),
		webhooks.WithDeliveryLog(deliveryLog),
		webhooks.WithLogger(loggers.Named("webhooks")),
	}
	if options.metrics != nil {
		dispatcherOpts = append(dispatcherOpts, webhooks.WithMetricsRecorder(options.metrics))
	}
	if options.transport != nil {
		dispatcherOpts = append(dispatcherOpts, webhooks.WithTransport(options.transport))
	}
	dispatcher := webhooks.NewDispatcher(append(dispatcherOpts, options.dispatcherOpts...)...)

	registryOpts := append([]core.Option(nil), options.registryOpts...)
	registryOpts = append(registryOpts,
		core.WithLoggerProvider(loggers.Provider()),
		core.WithLogger(logger),
		core.WithEventBus(events),
		core.WithWebhookRegistrar(dispatcher),
		core.WithSyncTracker(tracker),
	)
	if options.metrics != nil {
		registryOpts = append(registryOpts, core.WithMetricsRecorder(options.metrics))
	}
	registry, err := core.NewRegistry(cfg, registryOpts...)
	if err != nil {
		return nil, err
	}

	rt := &Runtime{
		Registry:   registry,
		Dispatcher: dispatcher,
		Tracker:    tracker,
		Events:     events,
		Deliveries: deliveries,
		Inbound:    inbound.NewHandler(dispatcher, append([]inbound.HandlerOption{inbound.WithLogger(loggers.Named("inbound"))}, options.inboundOpts...)...),
		loggers:    loggers,
		history:    history,
		snapshots:  options.snapshots,
	}

	if rt.snapshots != nil {
		restored, err := tracker.Restore(ctx, rt.snapshots)
		if err != nil {
			return nil, fmt.Errorf("integrations: restore sync operations: %w", err)
		}
		rt.restored = restored
		if restored > 0 {
			logger.Info("sync operations restored", "count", restored)
		}
	}
	return rt, nil
}

// Restored reports how many sync operations Setup loaded from the snapshot
// store.
func (rt *Runtime) Restored() int {
	if rt == nil {
		return 0
	}
	return rt.restored
}

// History reads delivery attempts from the durable log when it supports
// reads, otherwise from the in-memory ring.
func (rt *Runtime) History() query.DeliveryHistoryReader {
	if rt == nil {
		return nil
	}
	return rt.history
}

// Logger returns the logger for one integration, named under the runtime
// root logger.
func (rt *Runtime) Logger(integration string) core.Logger {
	if rt == nil {
		return gologger.Loggers{}.Named(integration)
	}
	return rt.loggers.Named(integration)
}

// Shutdown snapshots tracked operations when a store is configured, then
// disconnects every adapter. Failed disconnects are reported, not fatal.
func (rt *Runtime) Shutdown(ctx context.Context) (core.ShutdownReport, error) {
	if rt == nil || rt.Registry == nil {
		return core.ShutdownReport{}, nil
	}
	var snapshotErr error
	if rt.snapshots != nil {
		if err := rt.Tracker.Snapshot(ctx, rt.snapshots); err != nil {
			snapshotErr = fmt.Errorf("integrations: snapshot sync operations: %w", err)
			rt.loggers.Root().Error("sync snapshot failed", "error", err.Error())
		}
	}
	report := rt.Registry.Shutdown(ctx)
	return report, errors.Join(snapshotErr, report.Err())
}

package integrations

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/goliatone/go-integrations/core"
)

// AdapterRegistration is one adapter an AdapterPack contributes.
type AdapterRegistration struct {
	Name    string
	Adapter core.Adapter
	Config  core.IntegrationConfig
}

type AdapterPack struct {
	Name         string
	Integrations []AdapterRegistration
}

// ObserverPack subscribes event observers to the runtime event bus.
type ObserverPack struct {
	Name      string
	Observers []core.EventObserver
}

type CommandQueryBundleFactory func(facade *Facade) (any, error)

// ExtensionHooks collects adapter packs, observer packs and command/query
// bundles from downstream modules, then applies them in name order.
type ExtensionHooks struct {
	mu sync.RWMutex

	adapterPacks  map[string]AdapterPack
	observerPacks map[string]ObserverPack
	bundles       map[string]CommandQueryBundleFactory
}

func NewExtensionHooks() *ExtensionHooks {
	return &ExtensionHooks{
		adapterPacks:  map[string]AdapterPack{},
		observerPacks: map[string]ObserverPack{},
		bundles:       map[string]CommandQueryBundleFactory{},
	}
}

func (h *ExtensionHooks) RegisterAdapterPack(pack AdapterPack) error {
	if h == nil {
		return fmt.Errorf("integrations: extension hooks are nil")
	}
	name := strings.TrimSpace(pack.Name)
	if name == "" {
		return fmt.Errorf("integrations: adapter pack name is required")
	}
	if len(pack.Integrations) == 0 {
		return fmt.Errorf("integrations: adapter pack %q has no integrations", name)
	}
	seen := map[string]struct{}{}
	for _, entry := range pack.Integrations {
		entryName := strings.TrimSpace(entry.Name)
		if entryName == "" {
			return fmt.Errorf("integrations: adapter pack %q has an unnamed integration", name)
		}
		if entry.Adapter == nil {
			return fmt.Errorf("integrations: adapter pack %q integration %q has no adapter", name, entryName)
		}
		if _, dup := seen[entryName]; dup {
			return fmt.Errorf("integrations: adapter pack %q lists %q twice", name, entryName)
		}
		seen[entryName] = struct{}{}
	}

	normalized := AdapterPack{
		Name:         name,
		Integrations: append([]AdapterRegistration(nil), pack.Integrations...),
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if _, exists := h.adapterPacks[name]; exists {
		return fmt.Errorf("integrations: adapter pack %q already registered", name)
	}
	h.adapterPacks[name] = normalized
	return nil
}

func (h *ExtensionHooks) RegisterObserverPack(pack ObserverPack) error {
	if h == nil {
		return fmt.Errorf("integrations: extension hooks are nil")
	}
	name := strings.TrimSpace(pack.Name)
	if name == "" {
		return fmt.Errorf("integrations: observer pack name is required")
	}
	if len(pack.Observers) == 0 {
		return fmt.Errorf("integrations: observer pack %q has no observers", name)
	}
	normalized := ObserverPack{
		Name:      name,
		Observers: append([]core.EventObserver(nil), pack.Observers...),
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if _, exists := h.observerPacks[name]; exists {
		return fmt.Errorf("integrations: observer pack %q already registered", name)
	}
	h.observerPacks[name] = normalized
	return nil
}

func (h *ExtensionHooks) RegisterCommandQueryBundle(
	name string,
	factory CommandQueryBundleFactory,
) error {
	if h == nil {
		return fmt.Errorf("integrations: extension hooks are nil")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("integrations: command/query bundle name is required")
	}
	if factory == nil {
		return fmt.Errorf("integrations: command/query bundle %q factory is required", name)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if _, exists := h.bundles[name]; exists {
		return fmt.Errorf("integrations: command/query bundle %q already registered", name)
	}
	h.bundles[name] = factory
	return nil
}

// ApplyAdapterPacks registers every pack integration with registry. It stops
// at the first failure; integrations registered before it stay registered.
func (h *ExtensionHooks) ApplyAdapterPacks(ctx context.Context, registry *core.Registry) error {
	if h == nil {
		return nil
	}
	if registry == nil {
		return fmt.Errorf("integrations: registry is required")
	}
	for _, pack := range h.AdapterPacks() {
		for _, entry := range pack.Integrations {
			if err := registry.Register(ctx, entry.Name, entry.Adapter, entry.Config); err != nil {
				return fmt.Errorf("integrations: adapter pack %q: %w", pack.Name, err)
			}
		}
	}
	return nil
}

func (h *ExtensionHooks) ApplyObserverPacks(bus *core.EventBus) error {
	if h == nil {
		return nil
	}
	if bus == nil {
		return fmt.Errorf("integrations: event bus is required")
	}
	h.mu.RLock()
	names := sortedKeys(h.observerPacks)
	packs := make([]ObserverPack, 0, len(names))
	for _, name := range names {
		packs = append(packs, h.observerPacks[name])
	}
	h.mu.RUnlock()

	for _, pack := range packs {
		for _, observer := range pack.Observers {
			bus.Subscribe(observer)
		}
	}
	return nil
}

// Apply registers adapter packs and observer packs against rt. Observers
// are subscribed first so they see the registration events.
func (h *ExtensionHooks) Apply(ctx context.Context, rt *Runtime) error {
	if rt == nil {
		return fmt.Errorf("integrations: runtime is required")
	}
	if err := h.ApplyObserverPacks(rt.Events); err != nil {
		return err
	}
	return h.ApplyAdapterPacks(ctx, rt.Registry)
}

func (h *ExtensionHooks) BuildCommandQueryBundles(facade *Facade) (map[string]any, error) {
	if h == nil {
		return map[string]any{}, nil
	}
	if facade == nil {
		return nil, fmt.Errorf("integrations: facade is required")
	}

	h.mu.RLock()
	names := sortedKeys(h.bundles)
	factories := make(map[string]CommandQueryBundleFactory, len(h.bundles))
	for name, factory := range h.bundles {
		factories[name] = factory
	}
	h.mu.RUnlock()

	result := make(map[string]any, len(names))
	for _, name := range names {
		bundle, err := factories[name](facade)
		if err != nil {
			return nil, err
		}
		result[name] = bundle
	}
	return result, nil
}

func (h *ExtensionHooks) AdapterPacks() []AdapterPack {
	if h == nil {
		return nil
	}
	h.mu.RLock()
	defer h.mu.RUnlock()

	names := sortedKeys(h.adapterPacks)
	out := make([]AdapterPack, 0, len(names))
	for _, name := range names {
		pack := h.adapterPacks[name]
		out = append(out, AdapterPack{
			Name:         pack.Name,
			Integrations: append([]AdapterRegistration(nil), pack.Integrations...),
		})
	}
	return out
}

func (h *ExtensionHooks) BundleNames() []string {
	if h == nil {
		return nil
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	return sortedKeys(h.bundles)
}

func sortedKeys[V any](in map[string]V) []string {
	names := make([]string, 0, len(in))
	for name := range in {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

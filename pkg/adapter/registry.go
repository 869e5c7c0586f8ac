package adapter

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"
)

// Factory constructs an adapter of one type from its config.
type Factory func(cfg Config, logger *slog.Logger) (Adapter, error)

var (
	factoriesMu sync.RWMutex
	factories   = make(map[string]Factory)
)

// Register adds an adapter factory to the registry.
// Called by adapter implementations in their init() functions.
func Register(typ string, factory Factory) {
	factoriesMu.Lock()
	defer factoriesMu.Unlock()
	factories[typ] = factory
}

// Get retrieves an adapter factory by type.
func Get(typ string) (Factory, bool) {
	factoriesMu.RLock()
	defer factoriesMu.RUnlock()
	f, ok := factories[typ]
	return f, ok
}

// ListAdapters returns all registered adapter types (sorted).
func ListAdapters() []string {
	factoriesMu.RLock()
	defer factoriesMu.RUnlock()
	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// IsRegistered checks if an adapter type is registered.
func IsRegistered(typ string) bool {
	_, ok := Get(typ)
	return ok
}

// NewAdapter creates a new adapter instance based on config type.
// The logger parameter is passed to the factory (nil uses discard logger).
func NewAdapter(cfg Config, logger *slog.Logger) (Adapter, error) {
	if cfg.Type == "" {
		return nil, fmt.Errorf("adapter type not specified")
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	factory, ok := Get(cfg.Type)
	if !ok {
		return nil, &UnknownAdapterError{
			Name:      cfg.Type,
			Available: ListAdapters(),
			Hint:      "check the adapter type in leapquery.yaml",
		}
	}
	if cfg.Name == "" {
		cfg.Name = cfg.Type
	}
	return factory(cfg, logger.With(slog.String("adapter", cfg.Name)))
}

// Registry holds named adapter instances. Queries resolve adapter names in
// attribute paths through a Registry.
type Registry struct {
	mu       sync.RWMutex
	adapters map[string]Adapter
	order    []string
}

// NewRegistry creates an empty adapter registry.
func NewRegistry(adapters ...Adapter) *Registry {
	r := &Registry{adapters: make(map[string]Adapter)}
	for _, a := range adapters {
		r.Register(a)
	}
	return r
}

// Register adds or replaces an adapter under its Name().
func (r *Registry) Register(a Adapter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	name := a.Name()
	if _, exists := r.adapters[name]; !exists {
		r.order = append(r.order, name)
	}
	r.adapters[name] = a
}

// Lookup returns the adapter registered under name.
func (r *Registry) Lookup(name string) (Adapter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.adapters[name]
	if !ok {
		return nil, &UnknownAdapterError{Name: name, Available: r.namesLocked()}
	}
	return a, nil
}

// Exists reports whether an adapter is registered under name.
func (r *Registry) Exists(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.adapters[name]
	return ok
}

// Names returns registered adapter names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}

// First returns the first registered adapter, if any.
func (r *Registry) First() (Adapter, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if len(r.order) == 0 {
		return nil, false
	}
	return r.adapters[r.order[0]], true
}

// Close closes every adapter that holds resources.
func (r *Registry) Close() error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var firstErr error
	for _, name := range r.order {
		if c, ok := r.adapters[name].(Closer); ok {
			if err := c.Close(); err != nil && firstErr == nil {
				firstErr = fmt.Errorf("close adapter %s: %w", name, err)
			}
		}
	}
	return firstErr
}

func (r *Registry) namesLocked() []string {
	names := make([]string, 0, len(r.adapters))
	for name := range r.adapters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// UnknownAdapterError is returned when an adapter name or type is not registered.
type UnknownAdapterError struct {
	Name      string
	Available []string
	Hint      string
}

func (e *UnknownAdapterError) Error() string {
	msg := fmt.Sprintf("unknown adapter %q\nAvailable adapters: %v", e.Name, e.Available)
	if e.Hint != "" {
		msg += "\nHint: " + e.Hint
	}
	return msg
}

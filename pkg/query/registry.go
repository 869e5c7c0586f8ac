package query

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/leapstack-labs/leapquery/internal/engine"
	"github.com/leapstack-labs/leapquery/pkg/adapter"
	"github.com/leapstack-labs/leapquery/pkg/criteria"
	"github.com/leapstack-labs/leapquery/pkg/operator"
)

// Registry creates queries bound to an adapter registry and keeps named
// queries for the lifetime of the process.
type Registry struct {
	adapters       *adapter.Registry
	ops            operator.Resolver
	defaultAdapter string
	dispatcher     *engine.Dispatcher
	logger         *slog.Logger

	mu      sync.RWMutex
	queries map[string]*Query
}

// Config holds registry configuration.
type Config struct {
	// Adapters resolves adapter names (optional, a new empty registry if nil)
	Adapters *adapter.Registry
	// Operators evaluates constraints (optional, uses operator.Default)
	Operators operator.Resolver
	// DefaultAdapter is used for unqualified paths (optional, "memory")
	DefaultAdapter string
	// Recorder persists every finished execution (optional)
	Recorder Recorder
	// Logger is the structured logger (optional, uses discard if nil)
	Logger *slog.Logger
}

// NewRegistry creates a query registry.
func NewRegistry(cfg Config) *Registry {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	adapters := cfg.Adapters
	if adapters == nil {
		adapters = adapter.NewRegistry()
	}
	ops := cfg.Operators
	if ops == nil {
		ops = operator.Default()
	}
	def := cfg.DefaultAdapter
	if def == "" {
		def = criteria.DefaultAdapter
	}

	// New only fails without an adapter registry.
	dispatcher, _ := engine.New(engine.Config{
		Adapters:  adapters,
		Operators: ops,
		Recorder:  cfg.Recorder,
		Logger:    logger,
	})

	return &Registry{
		adapters:       adapters,
		ops:            ops,
		defaultAdapter: def,
		dispatcher:     dispatcher,
		logger:         logger,
		queries:        make(map[string]*Query),
	}
}

// Adapters returns the adapter registry queries resolve names through.
func (r *Registry) Adapters() *adapter.Registry {
	return r.adapters
}

// Use registers adapter instances.
func (r *Registry) Use(adapters ...adapter.Adapter) *Registry {
	for _, a := range adapters {
		r.adapters.Register(a)
	}
	return r
}

// New creates an anonymous query.
func (r *Registry) New() *Query {
	return &Query{reg: r, id: uuid.NewString()}
}

// Named returns a fresh clone of the query registered under name. The
// first call registers an empty definition; Store replaces it. Every clone
// shares the name and identity of the stored definition.
func (r *Registry) Named(name string) *Query {
	if name == "" {
		return r.New()
	}

	r.mu.RLock()
	q, ok := r.queries[name]
	if ok {
		q = q.Clone()
	}
	r.mu.RUnlock()
	if ok {
		return q
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if q, ok := r.queries[name]; ok {
		return q.Clone()
	}
	q = &Query{reg: r, name: name, id: uuid.NewString()}
	r.queries[name] = q
	return q.Clone()
}

// Store saves a copy of q as the definition of its named query. Later
// Named and Lookup calls return clones of that copy; q itself stays owned
// by the caller. The identity of an existing definition is kept.
func (r *Registry) Store(q *Query) error {
	if q.name == "" {
		return errors.New("cannot store an anonymous query")
	}
	if q.reg != r {
		return fmt.Errorf("query %q belongs to another registry", q.name)
	}
	if err := q.Err(); err != nil {
		return fmt.Errorf("query %s: %w", q.name, err)
	}

	def := q.Clone()

	r.mu.Lock()
	defer r.mu.Unlock()
	if prev, ok := r.queries[q.name]; ok {
		def.id = prev.id
	}
	r.queries[q.name] = def
	return nil
}

// Lookup returns a clone of a stored named query.
func (r *Registry) Lookup(name string) (*Query, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	q, ok := r.queries[name]
	if !ok {
		return nil, fmt.Errorf("unknown query %q", name)
	}
	return q.Clone(), nil
}

// Names returns the stored query names (sorted).
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.queries))
	for name := range r.queries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

var (
	defaultOnce sync.Once
	defaultReg  *Registry
)

// Default returns the process-wide registry used by New and Named.
func Default() *Registry {
	defaultOnce.Do(func() {
		defaultReg = NewRegistry(Config{})
	})
	return defaultReg
}

// New creates an anonymous query on the default registry.
func New() *Query {
	return Default().New()
}

// Named returns a named query from the default registry.
func Named(name string) *Query {
	return Default().Named(name)
}

// Store saves q on the default registry.
func Store(q *Query) error {
	return Default().Store(q)
}

// Use registers adapter instances on the default registry.
func Use(adapters ...adapter.Adapter) {
	Default().Use(adapters...)
}

// Package memory provides an in-process record store adapter.
//
// Records are kept per resource in insertion order. Every action is
// supported: reads go through the shared record filter, writes notify
// change watchers.
package memory

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/leapstack-labs/leapquery/internal/notifier"
	"github.com/leapstack-labs/leapquery/pkg/adapter"
	"github.com/leapstack-labs/leapquery/pkg/criteria"
	"github.com/leapstack-labs/leapquery/pkg/operator"
)

// Params holds memory-specific configuration.
// Parsed from adapter.Config.Params using mapstructure.
type Params struct {
	// Fixtures are YAML files loaded at construction, in order.
	Fixtures []string `mapstructure:"fixtures"`
	// Watch reloads the fixture files when they change on disk.
	Watch bool `mapstructure:"watch"`
}

// Adapter implements adapter.Adapter over in-memory record sets.
type Adapter struct {
	name   string
	logger *slog.Logger
	ops    operator.Resolver
	schema *adapter.Schema

	mu     sync.RWMutex
	tables map[string][]criteria.Record

	watchMu  sync.Mutex
	watchers map[string]*notifier.Notifier[adapter.Change]
	fixtures *fixtureWatcher
}

// New creates an empty memory adapter registered under name.
// If logger is nil, a discard logger is used.
func New(name string, logger *slog.Logger) *Adapter {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if name == "" {
		name = criteria.DefaultAdapter
	}
	return &Adapter{
		name:     name,
		logger:   logger,
		ops:      operator.Default(),
		tables:   make(map[string][]criteria.Record),
		watchers: make(map[string]*notifier.Notifier[adapter.Change]),
	}
}

// NewFromConfig builds a memory adapter and loads configured fixtures.
func NewFromConfig(cfg adapter.Config, logger *slog.Logger) (*Adapter, error) {
	var params Params
	if err := adapter.DecodeParams(cfg.Params, &params); err != nil {
		return nil, err
	}
	a := New(cfg.Name, logger)

	files := params.Fixtures
	if cfg.Path != "" {
		files = append([]string{cfg.Path}, files...)
	}
	for _, f := range files {
		if err := a.LoadFixtureFile(f); err != nil {
			return nil, err
		}
	}
	if params.Watch {
		if err := a.WatchFixtures(files); err != nil {
			return nil, err
		}
	}
	return a, nil
}

// Name returns the registry name.
func (a *Adapter) Name() string {
	return a.name
}

// Schema returns the declared schema, or nil when none was set.
func (a *Adapter) Schema() *adapter.Schema {
	return a.schema
}

// SetSchema replaces the declared schema.
func (a *Adapter) SetSchema(s *adapter.Schema) {
	a.schema = s
}

// Define declares params for an action key, creating the schema on demand.
func (a *Adapter) Define(key string, params ...*adapter.Param) *adapter.ActionSchema {
	if a.schema == nil {
		a.schema = adapter.NewSchema()
	}
	return a.schema.Define(key, params...)
}

// SetOperators replaces the operator set used for filtering.
func (a *Adapter) SetOperators(ops operator.Resolver) {
	a.ops = ops
}

// Insert appends records to resource and notifies watchers.
func (a *Adapter) Insert(resource string, records ...criteria.Record) []criteria.Record {
	a.mu.Lock()
	created := make([]criteria.Record, 0, len(records))
	for _, rec := range records {
		cp := rec.Clone()
		a.tables[resource] = append(a.tables[resource], cp)
		created = append(created, cp.Clone())
	}
	a.mu.Unlock()

	for _, rec := range created {
		a.notify(adapter.Change{Kind: adapter.ChangeCreate, Resource: resource, Record: rec})
	}
	return created
}

// Records returns a copy of every record stored for resource.
func (a *Adapter) Records(resource string) []criteria.Record {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return cloneAll(a.tables[resource])
}

// Resources returns the stored resource names (sorted).
func (a *Adapter) Resources() []string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	names := make([]string, 0, len(a.tables))
	for name := range a.tables {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Execute runs one plan.
func (a *Adapter) Execute(ctx context.Context, plan *adapter.Plan) (*adapter.Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	resource := plan.Resource.Resource

	a.logger.Debug("executing plan",
		slog.String("key", plan.Key),
		slog.Int("constraints", len(plan.Constraints)))

	switch plan.Action {
	case criteria.ActionCreate:
		created := a.Insert(resource, plan.Data...)
		return &adapter.Result{Records: created, Count: len(created)}, nil
	case criteria.ActionUpdate:
		return a.update(resource, plan)
	case criteria.ActionRemove:
		return a.remove(resource, plan)
	default:
		return adapter.ApplyPlan(a.Records(resource), plan, a.ops)
	}
}

// Stream emits each matching record in order.
func (a *Adapter) Stream(ctx context.Context, plan *adapter.Plan, emit func(criteria.Record) error) error {
	if plan.Action.Writes() {
		return fmt.Errorf("stream %s: %w", plan.Action, adapter.ErrUnsupportedAction)
	}
	res, err := adapter.ApplyPlan(a.Records(plan.Resource.Resource), plan, a.ops)
	if err != nil {
		return err
	}
	for _, rec := range res.Records {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := emit(rec); err != nil {
			return err
		}
	}
	return nil
}

// Watch calls fn for every change on resource until cancel is called.
func (a *Adapter) Watch(resource string, fn func(adapter.Change)) (cancel func()) {
	a.watchMu.Lock()
	n, ok := a.watchers[resource]
	if !ok {
		n = notifier.New[adapter.Change]()
		a.watchers[resource] = n
	}
	a.watchMu.Unlock()

	id := n.Subscribe(fn)
	a.logger.Debug("watch started", slog.String("resource", resource), slog.String("id", id))

	var once sync.Once
	return func() {
		once.Do(func() { n.Unsubscribe(id) })
	}
}

// update merges the first data record into every matching record.
func (a *Adapter) update(resource string, plan *adapter.Plan) (*adapter.Result, error) {
	if len(plan.Relations) > 0 {
		return nil, fmt.Errorf("relation traversal: %w", adapter.ErrUnsupportedCriteria)
	}
	var patch criteria.Record
	if len(plan.Data) > 0 {
		patch = plan.Data[0]
	}

	a.mu.Lock()
	var updated []criteria.Record
	for _, rec := range a.tables[resource] {
		ok, err := criteria.Matches(rec, plan.Constraints, a.ops)
		if err != nil {
			a.mu.Unlock()
			return nil, err
		}
		if !ok {
			continue
		}
		for k, v := range patch {
			rec[k] = v
		}
		updated = append(updated, rec.Clone())
	}
	a.mu.Unlock()

	for _, rec := range updated {
		a.notify(adapter.Change{Kind: adapter.ChangeUpdate, Resource: resource, Record: rec})
	}
	return &adapter.Result{Records: updated, Count: len(updated)}, nil
}

func (a *Adapter) remove(resource string, plan *adapter.Plan) (*adapter.Result, error) {
	if len(plan.Relations) > 0 {
		return nil, fmt.Errorf("relation traversal: %w", adapter.ErrUnsupportedCriteria)
	}

	a.mu.Lock()
	var kept, removed []criteria.Record
	for _, rec := range a.tables[resource] {
		ok, err := criteria.Matches(rec, plan.Constraints, a.ops)
		if err != nil {
			a.mu.Unlock()
			return nil, err
		}
		if ok {
			removed = append(removed, rec)
		} else {
			kept = append(kept, rec)
		}
	}
	a.tables[resource] = kept
	a.mu.Unlock()

	for _, rec := range removed {
		a.notify(adapter.Change{Kind: adapter.ChangeRemove, Resource: resource, Record: rec})
	}
	return &adapter.Result{Records: removed, Count: len(removed)}, nil
}

func (a *Adapter) notify(c adapter.Change) {
	a.watchMu.Lock()
	n := a.watchers[c.Resource]
	a.watchMu.Unlock()
	if n != nil {
		n.Broadcast(c)
	}
}

func cloneAll(records []criteria.Record) []criteria.Record {
	out := make([]criteria.Record, len(records))
	for i, rec := range records {
		out[i] = rec.Clone()
	}
	return out
}

// Ensure Adapter implements the adapter interfaces.
var (
	_ adapter.Adapter  = (*Adapter)(nil)
	_ adapter.Streamer = (*Adapter)(nil)
	_ adapter.Watcher  = (*Adapter)(nil)
	_ adapter.Closer   = (*Adapter)(nil)
)

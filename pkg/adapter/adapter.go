// Package adapter provides the storage adapter contract used by the query
// dispatcher, the adapter registries, and shared helpers for concrete
// adapters.
//
// Concrete adapter implementations are in pkg/adapters/ subdirectories.
package adapter

import (
	"context"
	"errors"

	"github.com/leapstack-labs/leapquery/pkg/criteria"
)

// ErrUnsupportedAction is returned by adapters that cannot run an action.
var ErrUnsupportedAction = errors.New("action not supported by adapter")

// ErrUnsupportedCriteria is returned by adapters that cannot honour part of
// a plan (for example relation traversal).
var ErrUnsupportedCriteria = errors.New("criteria not supported by adapter")

// Config holds the configuration for constructing an adapter.
type Config struct {
	// Name is the registry name queries use in paths ("memory", "warehouse").
	Name string

	// Type selects the adapter factory ("memory", "sqlite", "postgres").
	Type string

	// Path is the file path for file-based databases and fixture files.
	Path string

	// DSN is a full connection string; takes precedence over the fields below.
	DSN string

	Host     string
	Port     int
	Database string
	Username string
	Password string
	Schema   string

	// Options contains additional driver-specific options.
	Options map[string]string

	// Params holds adapter-specific configuration decoded by the adapter.
	Params map[string]any
}

// Plan is the unit of work handed to an adapter: one topology node.
type Plan struct {
	// Key is the node key ("users.find").
	Key string

	Resource    criteria.ResourceReference
	Action      criteria.ActionKind
	Data        []criteria.Record
	Constraints []*criteria.Constraint
	Sorting     []criteria.Sort
	Relations   []criteria.Relation

	// Limit and Offset are already resolved (page applied). Zero limit
	// means unlimited.
	Limit  int
	Offset int
}

// Result is what an adapter returns for a plan.
type Result struct {
	Records []criteria.Record
	// Count is the number of matching (or affected) records.
	Count int
}

// Exists reports whether the result matched anything.
func (r *Result) Exists() bool {
	return r != nil && r.Count > 0
}

// Adapter defines the interface that all storage adapters must implement.
type Adapter interface {
	// Name returns the registry name of this adapter instance.
	Name() string

	// Execute runs one plan. Constraints are applied as a single batch.
	Execute(ctx context.Context, plan *Plan) (*Result, error)

	// Schema returns declared action/parameter metadata, or nil when the
	// adapter declares none (its constraints are trusted as-is).
	Schema() *Schema
}

// Streamer is implemented by adapters that can push records one at a time.
type Streamer interface {
	Stream(ctx context.Context, plan *Plan, emit func(criteria.Record) error) error
}

// ChangeKind is the kind of a record mutation.
type ChangeKind string

// Change kinds.
const (
	ChangeCreate ChangeKind = "create"
	ChangeUpdate ChangeKind = "update"
	ChangeRemove ChangeKind = "remove"
)

// Change describes a mutation on a resource.
type Change struct {
	Kind     ChangeKind
	Resource string
	Record   criteria.Record
}

// Watcher is implemented by adapters that publish record changes.
type Watcher interface {
	// Watch calls fn for each change on resource until cancel is called.
	Watch(resource string, fn func(Change)) (cancel func())
}

// Column represents an attribute of a stored resource.
type Column struct {
	Name       string
	Type       string
	Nullable   bool
	PrimaryKey bool
	Position   int
}

// Metadata holds metadata about a stored resource.
type Metadata struct {
	Schema   string
	Name     string
	Columns  []Column
	RowCount int64
}

// Describer is implemented by adapters that can report attribute metadata.
type Describer interface {
	Describe(ctx context.Context, resource string) (*Metadata, error)
}

// Closer is implemented by adapters holding connections.
type Closer interface {
	Close() error
}

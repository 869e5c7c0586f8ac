// Package query provides the fluent query builder.
//
// A Query accumulates sources, constraints, sorting, relations, paging and
// an action without touching any adapter. Terminal verbs (Find, Count,
// Exec, ...) validate the accumulated constraints against adapter schemas,
// compile them into a topology and hand it to the execution dispatcher.
//
//	users, err := query.New().
//		Start("users").
//		Where("likeCount").Gte(10).Lt(20).
//		Find(ctx)
//
// Chain methods never fail directly. The first structural error (malformed
// path, unknown adapter, missing resource) is recorded on the query,
// returned by Err and by every terminal verb before any I/O.
package query

import (
	"errors"
	"fmt"

	"github.com/leapstack-labs/leapquery/pkg/adapter"
	"github.com/leapstack-labs/leapquery/pkg/criteria"
)

// ErrNoAttribute is recorded when a comparison is chained without a
// preceding Where.
var ErrNoAttribute = errors.New("no attribute to compare, call Where first")

// Query is a mutable query builder. A single Query is not safe for
// concurrent use; separate queries are independent.
type Query struct {
	reg  *Registry
	name string
	id   string

	// adapters is the preference list; the first entry is the default
	// adapter for unqualified paths.
	adapters []string

	sources     []criteria.Source
	constraints []*criteria.Constraint
	sorting     []criteria.Sort
	relations   []criteria.Relation
	paging      criteria.Paging
	action      criteria.Action
	returns     string
	size        int

	// chaining context
	start string
	where string

	explain func(*criteria.Criteria)
	err     error
}

// Ref marks a value as a reference to another attribute path.
//
//	query.New().Start("users").Where("email").Eq(query.Ref("facebook.user.email"))
func Ref(path string) criteria.Ref {
	return criteria.Ref(path)
}

// Name returns the query name, empty for anonymous queries.
func (q *Query) Name() string {
	return q.name
}

// ID returns the query identity. Clones share it.
func (q *Query) ID() string {
	return q.id
}

// Err returns the first structural error recorded while chaining.
func (q *Query) Err() error {
	return q.err
}

// Size returns the number of accumulated criteria.
func (q *Query) Size() int {
	return q.size
}

// Constraints returns a copy of the accumulated constraints.
func (q *Query) Constraints() []*criteria.Constraint {
	out := make([]*criteria.Constraint, len(q.constraints))
	for i, c := range q.constraints {
		out[i] = c.Clone()
	}
	return out
}

// Start sets the resource context and records a start directive.
func (q *Query) Start(key string) *Query {
	return q.source(criteria.SourceStart, key)
}

// Select adds a resource to the query. Without a prior Start it also sets
// the resource context.
func (q *Query) Select(key string) *Query {
	return q.source(criteria.SourceSelect, key)
}

func (q *Query) source(kind criteria.SourceKind, key string) *Query {
	ref, err := criteria.ResolveResource(key, q.defaultAdapter())
	if err != nil {
		return q.fail(err)
	}
	if kind == criteria.SourceStart || q.start == "" {
		q.start = key
	}
	q.sources = append(q.sources, criteria.Source{Kind: kind, Resource: ref})
	q.size++
	return q
}

// As names the data returned by the last start or select directive.
func (q *Query) As(alias string) *Query {
	if len(q.sources) == 0 {
		return q.fail(&criteria.MissingSelectionError{Op: "as"})
	}
	q.sources[len(q.sources)-1].Alias = alias
	q.size++
	return q
}

// Where sets the attribute used by the following comparisons. With a value
// it also appends an eq constraint.
func (q *Query) Where(key string, value ...any) *Query {
	q.where = key
	if len(value) > 0 {
		return q.Eq(value[0])
	}
	return q
}

// Eq appends an equality constraint on the Where attribute.
func (q *Query) Eq(v any) *Query { return q.compare(criteria.OpEq, v) }

// Neq appends an inequality constraint on the Where attribute.
func (q *Query) Neq(v any) *Query { return q.compare(criteria.OpNeq, v) }

// Gte appends a greater-or-equal constraint on the Where attribute.
func (q *Query) Gte(v any) *Query { return q.compare(criteria.OpGte, v) }

// Gt appends a greater-than constraint on the Where attribute.
func (q *Query) Gt(v any) *Query { return q.compare(criteria.OpGt, v) }

// Lte appends a less-or-equal constraint on the Where attribute.
func (q *Query) Lte(v any) *Query { return q.compare(criteria.OpLte, v) }

// Lt appends a less-than constraint on the Where attribute.
func (q *Query) Lt(v any) *Query { return q.compare(criteria.OpLt, v) }

// In appends a membership constraint on the Where attribute.
func (q *Query) In(v any) *Query { return q.compare(criteria.OpIn, v) }

// Contains is an alias for In.
func (q *Query) Contains(v any) *Query { return q.compare(criteria.OpIn, v) }

// Nin appends a non-membership constraint on the Where attribute.
func (q *Query) Nin(v any) *Query { return q.compare(criteria.OpNin, v) }

// Match appends a regular expression constraint on the Where attribute.
func (q *Query) Match(v any) *Query { return q.compare(criteria.OpMatch, v) }

func (q *Query) compare(op criteria.Operator, v any) *Query {
	if q.where == "" {
		return q.fail(fmt.Errorf("%s: %w", op, ErrNoAttribute))
	}
	return q.Constraint(q.where, op, v)
}

// Constraint appends a constraint with an explicit attribute path.
func (q *Query) Constraint(key string, op criteria.Operator, v any) *Query {
	c, err := criteria.NewConstraint(key, op, v, q.start, q.defaultAdapter())
	if err != nil {
		return q.fail(err)
	}
	q.constraints = append(q.constraints, c)
	q.size++
	return q
}

// Incoming adds a traversal over the records pointing to the current ones.
func (q *Query) Incoming(key string) *Query {
	return q.relation(criteria.Incoming, key)
}

// Outgoing adds a traversal over the records the current ones point to.
func (q *Query) Outgoing(key string) *Query {
	return q.relation(criteria.Outgoing, key)
}

func (q *Query) relation(dir criteria.RelationDirection, key string) *Query {
	attr, err := criteria.ResolveAttr(key, q.start, q.defaultAdapter())
	if err != nil {
		return q.fail(err)
	}
	q.relations = append(q.relations, criteria.Relation{Attr: attr, Direction: dir})
	q.size++
	return q
}

// Asc sorts ascending by key.
func (q *Query) Asc(key string) *Query {
	return q.order(criteria.Asc, key)
}

// Desc sorts descending by key.
func (q *Query) Desc(key string) *Query {
	return q.order(criteria.Desc, key)
}

func (q *Query) order(dir criteria.Direction, key string) *Query {
	attr, err := criteria.ResolveAttr(key, q.start, q.defaultAdapter())
	if err != nil {
		return q.fail(err)
	}
	q.sorting = append(q.sorting, criteria.Sort{Attr: attr, Direction: dir})
	q.size++
	return q
}

// Limit caps the number of returned records. Zero means unlimited.
func (q *Query) Limit(n int) *Query {
	if n < 0 {
		return q.fail(fmt.Errorf("limit must not be negative, got %d", n))
	}
	q.paging.Limit = n
	return q
}

// Page selects a 1-based page of Limit records. It takes precedence over
// Offset.
func (q *Query) Page(n int) *Query {
	if n < 0 {
		return q.fail(fmt.Errorf("page must not be negative, got %d", n))
	}
	q.paging.Page = n
	return q
}

// Offset skips n records.
func (q *Query) Offset(n int) *Query {
	if n < 0 {
		return q.fail(fmt.Errorf("offset must not be negative, got %d", n))
	}
	q.paging.Offset = n
	return q
}

// Returns selects the resource whose records the query returns.
func (q *Query) Returns(key string) *Query {
	if _, err := criteria.ResolveResource(key, q.defaultAdapter()); err != nil {
		return q.fail(err)
	}
	q.returns = key
	q.size++
	return q
}

// Action sets the terminal action and its payload without executing.
func (q *Query) Action(kind criteria.ActionKind, data ...criteria.Record) *Query {
	q.action = criteria.Action{Kind: kind, Data: data}
	q.size++
	return q
}

// Use adds a registered adapter to the preference list. The first adapter
// used becomes the default for unqualified paths, so call Use before
// adding paths.
func (q *Query) Use(name string) *Query {
	if _, err := q.reg.adapters.Lookup(name); err != nil {
		return q.fail(err)
	}
	q.adapters = append(q.adapters, name)
	return q
}

// UseAdapter registers a and adds it to the preference list.
func (q *Query) UseAdapter(a adapter.Adapter) *Query {
	q.reg.adapters.Register(a)
	return q.Use(a.Name())
}

// Explain registers a sink receiving the criteria before compilation.
func (q *Query) Explain(fn func(*criteria.Criteria)) *Query {
	q.explain = fn
	return q
}

// Clone returns an independent copy sharing name and identity.
func (q *Query) Clone() *Query {
	cp := *q
	cp.adapters = append([]string(nil), q.adapters...)
	cp.sources = append([]criteria.Source(nil), q.sources...)
	cp.sorting = append([]criteria.Sort(nil), q.sorting...)
	cp.relations = append([]criteria.Relation(nil), q.relations...)
	cp.constraints = make([]*criteria.Constraint, len(q.constraints))
	for i, c := range q.constraints {
		cp.constraints[i] = c.Clone()
	}
	if q.action.Data != nil {
		cp.action.Data = cloneRecords(q.action.Data)
	}
	return &cp
}

// Reset clears accumulated criteria and errors. Identity, the adapter
// preference list and the explain sink are kept.
func (q *Query) Reset() *Query {
	q.sources = nil
	q.constraints = nil
	q.sorting = nil
	q.relations = nil
	q.paging = criteria.Paging{}
	q.action = criteria.Action{}
	q.returns = ""
	q.size = 0
	q.start = ""
	q.where = ""
	q.err = nil
	return q
}

// Criteria returns a snapshot of the accumulated state.
func (q *Query) Criteria() *criteria.Criteria {
	c := &criteria.Criteria{
		Name:           q.name,
		DefaultAdapter: q.defaultAdapter(),
		Sources:        append([]criteria.Source(nil), q.sources...),
		Constraints:    make([]*criteria.Constraint, len(q.constraints)),
		Sorting:        append([]criteria.Sort(nil), q.sorting...),
		Relations:      append([]criteria.Relation(nil), q.relations...),
		Paging:         q.paging,
		Action:         q.action,
		Returns:        q.returns,
	}
	copy(c.Constraints, q.constraints)
	return c
}

// ActionKind returns the current action.
func (q *Query) ActionKind() criteria.ActionKind {
	return q.action.Kind
}

func (q *Query) defaultAdapter() string {
	if len(q.adapters) > 0 {
		return q.adapters[0]
	}
	return q.reg.defaultAdapter
}

// fail records the first structural error.
func (q *Query) fail(err error) *Query {
	if q.err == nil {
		q.err = err
	}
	return q
}

func cloneRecords(records []criteria.Record) []criteria.Record {
	out := make([]criteria.Record, len(records))
	for i, r := range records {
		out[i] = r.Clone()
	}
	return out
}

var _ adapter.ValidationContext = (*Query)(nil)

package query

import (
	"context"

	"github.com/leapstack-labs/leapquery/internal/engine"
	"github.com/leapstack-labs/leapquery/pkg/adapter"
	"github.com/leapstack-labs/leapquery/pkg/criteria"
	"github.com/leapstack-labs/leapquery/pkg/topology"
)

// Event is a streamed record or the final close/error notification.
type Event = engine.Event

// EventKind identifies a stream event.
type EventKind = engine.EventKind

// Run is the execution record handed to a Recorder.
type Run = engine.Run

// Recorder persists finished executions.
type Recorder = engine.Recorder

// Stream event kinds.
const (
	EventData  = engine.EventData
	EventClose = engine.EventClose
	EventError = engine.EventError
)

// Compile validates the query structure and compiles it into a topology.
// The explain sink, if any, receives the criteria first.
func (q *Query) Compile() (*topology.Topology, error) {
	if q.err != nil {
		return nil, q.err
	}
	return q.compile(q.Criteria())
}

// Topology is an alias for Compile.
func (q *Query) Topology() (*topology.Topology, error) {
	return q.Compile()
}

func (q *Query) compile(c *criteria.Criteria) (*topology.Topology, error) {
	if _, ok := c.Terminal(); !ok {
		return nil, &criteria.MissingSelectionError{Op: c.Action.Kind.String()}
	}
	if q.explain != nil {
		q.explain(snapshot(c))
	}
	return topology.Compile(c)
}

// Exec validates, compiles and executes the query with its current action.
func (q *Query) Exec(ctx context.Context) (*adapter.Result, error) {
	topo, err := q.prepare(ctx)
	if err != nil {
		return nil, err
	}
	defer q.done()

	q.reg.logger.Debug("executing query",
		"name", q.name,
		"action", q.action.Kind.String(),
		"nodes", len(topo.Nodes))

	if q.name != "" {
		ctx = engine.WithLabel(ctx, q.name)
	}
	return q.reg.dispatcher.Execute(ctx, topo)
}

// prepare runs the pipeline up to a compiled topology.
func (q *Query) prepare(ctx context.Context) (*topology.Topology, error) {
	if q.err != nil {
		return nil, q.err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c := q.Criteria()
	if _, ok := c.Terminal(); !ok {
		return nil, &criteria.MissingSelectionError{Op: c.Action.Kind.String()}
	}
	if err := q.validate(c); err != nil {
		return nil, err
	}
	return q.compile(c)
}

// done resets the chaining context after execution.
func (q *Query) done() {
	q.start = ""
	q.where = ""
}

func (q *Query) run(ctx context.Context, kind criteria.ActionKind, data ...criteria.Record) (*adapter.Result, error) {
	q.action = criteria.Action{Kind: kind, Data: data}
	return q.Exec(ctx)
}

// Find returns the matching records.
func (q *Query) Find(ctx context.Context) ([]criteria.Record, error) {
	res, err := q.run(ctx, criteria.ActionFind)
	if err != nil {
		return nil, err
	}
	return res.Records, nil
}

// All is an alias for Find.
func (q *Query) All(ctx context.Context) ([]criteria.Record, error) {
	return q.Find(ctx)
}

// Create inserts records into the terminal resource and returns them.
func (q *Query) Create(ctx context.Context, data ...criteria.Record) ([]criteria.Record, error) {
	res, err := q.run(ctx, criteria.ActionCreate, data...)
	if err != nil {
		return nil, err
	}
	return res.Records, nil
}

// Update merges data into every matching record and returns the updated
// records.
func (q *Query) Update(ctx context.Context, data criteria.Record) ([]criteria.Record, error) {
	res, err := q.run(ctx, criteria.ActionUpdate, data)
	if err != nil {
		return nil, err
	}
	return res.Records, nil
}

// Remove deletes every matching record and returns the removed records.
func (q *Query) Remove(ctx context.Context) ([]criteria.Record, error) {
	res, err := q.run(ctx, criteria.ActionRemove)
	if err != nil {
		return nil, err
	}
	return res.Records, nil
}

// Count returns the number of matching records.
func (q *Query) Count(ctx context.Context) (int, error) {
	res, err := q.run(ctx, criteria.ActionCount)
	if err != nil {
		return 0, err
	}
	return res.Count, nil
}

// Exists reports whether any record matches.
func (q *Query) Exists(ctx context.Context) (bool, error) {
	res, err := q.run(ctx, criteria.ActionExists)
	if err != nil {
		return false, err
	}
	return res.Exists(), nil
}

// First runs a find limited to one record and returns it, or nil when
// nothing matches. The query's own paging is left unchanged.
func (q *Query) First(ctx context.Context) (criteria.Record, error) {
	paging := q.paging
	defer func() { q.paging = paging }()

	records, err := q.Limit(1).Find(ctx)
	if err != nil || len(records) == 0 {
		return nil, err
	}
	return records[0], nil
}

// Last behaves exactly like First. It does not reverse the sort order.
func (q *Query) Last(ctx context.Context) (criteria.Record, error) {
	// TODO: decide whether Last should reverse the sort directives first.
	return q.First(ctx)
}

// Stream executes the query and pushes matching records as data events,
// followed by a close or error event. Pipeline errors are returned before
// any event is produced.
func (q *Query) Stream(ctx context.Context) (<-chan Event, error) {
	q.action = criteria.Action{Kind: criteria.ActionStream}
	topo, err := q.prepare(ctx)
	if err != nil {
		return nil, err
	}
	q.done()
	return q.reg.dispatcher.Stream(ctx, topo), nil
}

// Pipe streams matching records into fn. It returns the first error from
// the pipeline, the adapters or fn.
func (q *Query) Pipe(ctx context.Context, fn func(criteria.Record) error) error {
	q.action = criteria.Action{Kind: criteria.ActionPipe}
	topo, err := q.prepare(ctx)
	if err != nil {
		return err
	}
	q.done()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	for ev := range q.reg.dispatcher.Stream(ctx, topo) {
		switch ev.Kind {
		case EventData:
			if err := fn(ev.Record); err != nil {
				return err
			}
		case EventError:
			return ev.Err
		}
	}
	return nil
}

// snapshot copies c so that an explain sink cannot alter compilation.
func snapshot(c *criteria.Criteria) *criteria.Criteria {
	cp := *c
	cp.Sources = append([]criteria.Source(nil), c.Sources...)
	cp.Sorting = append([]criteria.Sort(nil), c.Sorting...)
	cp.Relations = append([]criteria.Relation(nil), c.Relations...)
	cp.Constraints = make([]*criteria.Constraint, len(c.Constraints))
	for i, con := range c.Constraints {
		cp.Constraints[i] = con.Clone()
	}
	if c.Action.Data != nil {
		cp.Action.Data = cloneRecords(c.Action.Data)
	}
	return &cp
}

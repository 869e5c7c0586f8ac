package query

import (
	"context"
	"errors"
	"fmt"

	"github.com/leapstack-labs/leapquery/pkg/adapter"
	"github.com/leapstack-labs/leapquery/pkg/criteria"
)

// ErrSubscribeUnsupported is returned when the terminal adapter cannot
// publish record changes.
var ErrSubscribeUnsupported = errors.New("adapter does not support subscriptions")

// Change is a create, update or remove event on a subscribed resource.
type Change = adapter.Change

// Subscribe calls fn for every change on the query's terminal resource
// whose record satisfies the query's constraints on that resource.
// Constraints referencing other attributes are ignored. The subscription
// ends when cancel is called or ctx is done.
func (q *Query) Subscribe(ctx context.Context, fn func(Change)) (cancel func(), err error) {
	if q.err != nil {
		return nil, q.err
	}
	c := q.Criteria()
	terminal, ok := c.Terminal()
	if !ok {
		return nil, &criteria.MissingSelectionError{Op: "subscribe"}
	}

	a, err := q.reg.adapters.Lookup(terminal.Adapter)
	if err != nil {
		return nil, err
	}
	w, ok := a.(adapter.Watcher)
	if !ok {
		return nil, fmt.Errorf("%s: %w", a.Name(), ErrSubscribeUnsupported)
	}

	var constraints []*criteria.Constraint
	for _, con := range c.Constraints {
		if con.Left.Namespace == terminal.Namespace && !con.CrossResource() {
			constraints = append(constraints, con)
		}
	}

	ops := q.reg.ops
	logger := q.reg.logger
	stopWatch := w.Watch(terminal.Resource, func(ch adapter.Change) {
		ok, err := criteria.Matches(ch.Record, constraints, ops)
		if err != nil {
			logger.Debug("subscription filter failed", "resource", terminal.Namespace, "error", err.Error())
			return
		}
		if ok {
			fn(ch)
		}
	})

	stopCtx := context.AfterFunc(ctx, stopWatch)
	return func() {
		stopCtx()
		stopWatch()
	}, nil
}

package engine

import (
	"context"
	"fmt"

	"github.com/leapstack-labs/leapquery/pkg/adapter"
	"github.com/leapstack-labs/leapquery/pkg/criteria"
	"github.com/leapstack-labs/leapquery/pkg/topology"
)

// EventKind identifies a stream event.
type EventKind string

// Stream event kinds.
const (
	EventData  EventKind = "data"
	EventClose EventKind = "close"
	EventError EventKind = "error"
)

// Event is pushed by Stream. Data events carry a record; the last event is
// either a close or an error event.
type Event struct {
	Kind   EventKind
	Record criteria.Record
	Err    error
}

// Stream executes t and pushes the terminal node's records as data events,
// followed by a single close event, or an error event on failure. Nodes
// ordered before the terminal one run as in Execute; later nodes are
// skipped. Adapters implementing
// adapter.Streamer push terminal records one at a time.
//
// The channel is closed after the final event.
func (d *Dispatcher) Stream(ctx context.Context, t *topology.Topology) <-chan Event {
	events := make(chan Event)
	go func() {
		defer close(events)
		if err := d.stream(ctx, t, events); err != nil {
			d.logger.Debug("stream failed", "terminal", t.Terminal.Key, "error", err.Error())
			send(ctx, events, Event{Kind: EventError, Err: err})
			return
		}
		send(ctx, events, Event{Kind: EventClose})
	}()
	return events
}

func (d *Dispatcher) stream(ctx context.Context, t *topology.Topology, events chan<- Event) error {
	run := newRun()
	t.ResetResults()

	// Nodes after the terminal one cannot feed it.
	for _, n := range t.Nodes {
		if n.Terminal {
			break
		}
		res, err := d.executeNode(ctx, run, t, n)
		if err != nil {
			return err
		}
		n.Result = res
	}

	n := t.Terminal
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("node %s: %w", n.Key, err)
	}
	a, err := d.resolve(t, n)
	if err != nil {
		return fmt.Errorf("node %s: %w", n.Key, err)
	}

	emit := func(rec criteria.Record) error {
		if !send(ctx, events, Event{Kind: EventData, Record: rec}) {
			return ctx.Err()
		}
		return nil
	}

	if s, ok := a.(adapter.Streamer); ok && !n.Action.Writes() {
		plan, err := d.plan(t, n)
		if err != nil {
			return fmt.Errorf("node %s: %w", n.Key, err)
		}
		d.logger.Debug("streaming node", "key", n.Key, "adapter", a.Name())
		if err := s.Stream(ctx, plan, emit); err != nil {
			return fmt.Errorf("node %s: %w", n.Key, err)
		}
		return nil
	}

	res, err := d.executeNode(ctx, run, t, n)
	if err != nil {
		return err
	}
	n.Result = res
	for _, rec := range res.Records {
		if err := emit(rec); err != nil {
			return fmt.Errorf("node %s: %w", n.Key, err)
		}
	}
	return nil
}

// send delivers ev unless ctx is done first.
func send(ctx context.Context, events chan<- Event, ev Event) bool {
	select {
	case events <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

// Package engine provides the query execution dispatcher.
// It walks a compiled topology in order, resolves each node's adapter,
// substitutes cross-resource references with already-fetched values and
// buffers every node's result.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/leapstack-labs/leapquery/pkg/adapter"
	"github.com/leapstack-labs/leapquery/pkg/operator"
	"github.com/leapstack-labs/leapquery/pkg/topology"
)

// Dispatcher executes topologies against registered adapters.
type Dispatcher struct {
	adapters *adapter.Registry
	ops      operator.Resolver
	recorder Recorder
	logger   *slog.Logger
}

// Config holds dispatcher configuration.
type Config struct {
	// Adapters resolves adapter names used by node namespaces
	Adapters *adapter.Registry
	// Operators is used to order fetched values (optional, uses operator.Default)
	Operators operator.Resolver
	// Recorder persists finished runs (optional)
	Recorder Recorder
	// Logger is the structured logger (optional, uses discard if nil)
	Logger *slog.Logger
}

// New creates a dispatcher.
func New(cfg Config) (*Dispatcher, error) {
	if cfg.Adapters == nil {
		return nil, errors.New("adapter registry not specified")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	ops := cfg.Operators
	if ops == nil {
		ops = operator.Default()
	}
	return &Dispatcher{adapters: cfg.Adapters, ops: ops, recorder: cfg.Recorder, logger: logger}, nil
}

// Execute runs every node of t in order and returns the terminal node's
// result. The first failing node aborts the execution; no partial result is
// returned.
func (d *Dispatcher) Execute(ctx context.Context, t *topology.Topology) (*adapter.Result, error) {
	run, err := d.Run(ctx, t)
	if err != nil {
		return nil, err
	}
	return run.Result, nil
}

// Run executes t like Execute and reports per-node execution details.
// On failure the returned run is still populated up to the failing node.
func (d *Dispatcher) Run(ctx context.Context, t *topology.Topology) (*Run, error) {
	run := newRun()
	run.Label = LabelFrom(ctx)
	run.Action = t.Terminal.Action.String()
	d.logger.Debug("starting run", "run_id", run.ID, "nodes", len(t.Nodes), "terminal", t.Terminal.Key)

	t.ResetResults()
	for _, n := range t.Nodes {
		res, err := d.executeNode(ctx, run, t, n)
		if err != nil {
			run.fail(err)
			d.logger.Debug("run failed", "run_id", run.ID, "node", n.Key, "error", err.Error())
			t.ResetResults()
			d.record(ctx, run)
			return run, err
		}
		n.Result = res
	}

	run.Result = t.Terminal.Result
	run.complete()
	d.logger.Debug("run completed", "run_id", run.ID, "duration_ms", run.Duration().Milliseconds())
	d.record(ctx, run)
	return run, nil
}

// record hands a finished run to the recorder. Recording failures are
// logged and never fail the run.
func (d *Dispatcher) record(ctx context.Context, run *Run) {
	if d.recorder == nil {
		return
	}
	if err := d.recorder.RecordRun(context.WithoutCancel(ctx), run); err != nil {
		d.logger.Warn("failed to record run", "run_id", run.ID, "error", err.Error())
	}
}

// executeNode runs a single node and records it on run.
func (d *Dispatcher) executeNode(ctx context.Context, run *Run, t *topology.Topology, n *topology.Node) (*adapter.Result, error) {
	nr := run.startNode(n.Key)
	res, err := d.runNode(ctx, t, n, nr)
	if err != nil {
		nr.fail(err)
		return nil, err
	}
	nr.complete(res.Count)
	return res, nil
}

func (d *Dispatcher) runNode(ctx context.Context, t *topology.Topology, n *topology.Node, nr *NodeRun) (*adapter.Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("node %s: %w", n.Key, err)
	}

	a, err := d.resolve(t, n)
	if err != nil {
		return nil, fmt.Errorf("node %s: %w", n.Key, err)
	}
	nr.Adapter = a.Name()

	plan, err := d.plan(t, n)
	if err != nil {
		return nil, fmt.Errorf("node %s: %w", n.Key, err)
	}

	d.logger.Debug("executing node",
		"key", n.Key,
		"adapter", a.Name(),
		"constraints", len(plan.Constraints),
		"limit", plan.Limit,
		"offset", plan.Offset)

	start := time.Now()
	res, err := a.Execute(ctx, plan)
	if err != nil {
		return nil, fmt.Errorf("node %s: %w", n.Key, err)
	}
	if res == nil {
		res = &adapter.Result{}
	}

	d.logger.Debug("node executed", "key", n.Key, "count", res.Count, "duration_ms", time.Since(start).Milliseconds())
	return res, nil
}

// resolve returns the adapter of a node, falling back to the topology's
// default adapter when the node names none.
func (d *Dispatcher) resolve(t *topology.Topology, n *topology.Node) (adapter.Adapter, error) {
	name := n.Resource.Adapter
	if name == "" {
		name = t.DefaultAdapter
	}
	return d.adapters.Lookup(name)
}

// plan builds the adapter plan for n with references substituted and the
// effective offset resolved.
func (d *Dispatcher) plan(t *topology.Topology, n *topology.Node) (*adapter.Plan, error) {
	constraints, err := d.substitute(t, n)
	if err != nil {
		return nil, err
	}
	return &adapter.Plan{
		Key:         n.Key,
		Resource:    n.Resource,
		Action:      n.Action,
		Data:        n.Data,
		Constraints: constraints,
		Sorting:     n.Sorting,
		Relations:   n.Relations,
		Limit:       n.Paging.Limit,
		Offset:      n.Paging.EffectiveOffset(),
	}, nil
}

// newRunID returns a fresh run identifier.
func newRunID() string {
	return uuid.NewString()
}

package engine

// run.go - Execution records for dispatched topologies

import (
	"context"
	"errors"
	"time"

	"github.com/leapstack-labs/leapquery/pkg/adapter"
)

// RunStatus represents the status of a topology execution.
type RunStatus string

// Run status constants.
const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
	RunStatusCancelled RunStatus = "cancelled"
)

// NodeRunStatus represents the status of an individual node execution.
type NodeRunStatus string

// Node run status constants.
const (
	NodeRunStatusRunning NodeRunStatus = "running"
	NodeRunStatusSuccess NodeRunStatus = "success"
	NodeRunStatusFailed  NodeRunStatus = "failed"
)

// Run represents one execution of a topology.
type Run struct {
	ID string
	// Label names the run, usually the named query that issued it.
	Label string
	// Action is the terminal node's action.
	Action      string
	Status      RunStatus
	StartedAt   time.Time
	CompletedAt *time.Time
	Error       string

	// Nodes are the executed nodes in execution order.
	Nodes []*NodeRun

	// Result is the terminal node's result, nil unless completed.
	Result *adapter.Result
}

// NodeRun records the execution of one topology node.
type NodeRun struct {
	Key       string
	Adapter   string
	Status    NodeRunStatus
	Count     int
	StartedAt time.Time
	Duration  time.Duration
	Error     string
}

// Recorder persists finished runs.
type Recorder interface {
	RecordRun(ctx context.Context, run *Run) error
}

type labelKey struct{}

// WithLabel returns a context whose runs are recorded under label.
func WithLabel(ctx context.Context, label string) context.Context {
	return context.WithValue(ctx, labelKey{}, label)
}

// LabelFrom returns the run label carried by ctx, if any.
func LabelFrom(ctx context.Context) string {
	label, _ := ctx.Value(labelKey{}).(string)
	return label
}

func newRun() *Run {
	return &Run{
		ID:        newRunID(),
		Status:    RunStatusRunning,
		StartedAt: time.Now(),
	}
}

// Duration returns the elapsed time of the run, up to now while running.
func (r *Run) Duration() time.Duration {
	if r.CompletedAt == nil {
		return time.Since(r.StartedAt)
	}
	return r.CompletedAt.Sub(r.StartedAt)
}

func (r *Run) startNode(key string) *NodeRun {
	nr := &NodeRun{Key: key, Status: NodeRunStatusRunning, StartedAt: time.Now()}
	r.Nodes = append(r.Nodes, nr)
	return nr
}

func (r *Run) complete() {
	now := time.Now()
	r.Status = RunStatusCompleted
	r.CompletedAt = &now
}

func (r *Run) fail(err error) {
	now := time.Now()
	r.Status = RunStatusFailed
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		r.Status = RunStatusCancelled
	}
	r.CompletedAt = &now
	r.Error = err.Error()
}

func (nr *NodeRun) complete(count int) {
	nr.Status = NodeRunStatusSuccess
	nr.Count = count
	nr.Duration = time.Since(nr.StartedAt)
}

func (nr *NodeRun) fail(err error) {
	nr.Status = NodeRunStatusFailed
	nr.Duration = time.Since(nr.StartedAt)
	nr.Error = err.Error()
}

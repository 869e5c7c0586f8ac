package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/leapquery/pkg/adapter"
	"github.com/leapstack-labs/leapquery/pkg/adapters/memory"
	"github.com/leapstack-labs/leapquery/pkg/criteria"
	"github.com/leapstack-labs/leapquery/pkg/topology"
)

// recordingAdapter returns a fixed result and remembers every plan.
type recordingAdapter struct {
	name   string
	result *adapter.Result
	err    error
	plans  []*adapter.Plan
}

func (r *recordingAdapter) Name() string            { return r.name }
func (r *recordingAdapter) Schema() *adapter.Schema { return nil }

func (r *recordingAdapter) Execute(_ context.Context, plan *adapter.Plan) (*adapter.Result, error) {
	r.plans = append(r.plans, plan)
	if r.err != nil {
		return nil, r.err
	}
	return r.result, nil
}

func con(t *testing.T, path string, op criteria.Operator, v any) *criteria.Constraint {
	t.Helper()
	c, err := criteria.NewConstraint(path, op, v, "", criteria.DefaultAdapter)
	require.NoError(t, err)
	return c
}

func compile(t *testing.T, action criteria.ActionKind, constraints []*criteria.Constraint, sources ...string) *topology.Topology {
	t.Helper()
	c := &criteria.Criteria{DefaultAdapter: criteria.DefaultAdapter, Action: criteria.Action{Kind: action}, Constraints: constraints}
	for i, s := range sources {
		ref, err := criteria.ResolveResource(s, criteria.DefaultAdapter)
		require.NoError(t, err)
		kind := criteria.SourceSelect
		if i == 0 {
			kind = criteria.SourceStart
		}
		c.Sources = append(c.Sources, criteria.Source{Kind: kind, Resource: ref})
	}
	topo, err := topology.Compile(c)
	require.NoError(t, err)
	return topo
}

func crossAdapterTopology(t *testing.T) *topology.Topology {
	t.Helper()
	return compile(t, criteria.ActionCount, []*criteria.Constraint{
		con(t, "twitter.user.email", criteria.OpEq, criteria.Ref("facebook.user.email")),
		con(t, "facebook.user.likeCount", criteria.OpGte, 10),
		con(t, "users.email", criteria.OpEq, criteria.Ref("twitter.user.email")),
	}, "users", "facebook.user", "twitter.user")
}

func crossAdapterRegistry() *adapter.Registry {
	fb := memory.New("facebook", nil)
	fb.Insert("user",
		criteria.Record{"email": "a@x", "likeCount": 20},
		criteria.Record{"email": "b@x", "likeCount": 5},
		criteria.Record{"email": "c@x", "likeCount": 15},
	)
	tw := memory.New("twitter", nil)
	tw.Insert("user",
		criteria.Record{"email": "a@x"},
		criteria.Record{"email": "b@x"},
		criteria.Record{"email": "d@x"},
	)
	mem := memory.New("memory", nil)
	mem.Insert("users",
		criteria.Record{"email": "a@x"},
		criteria.Record{"email": "b@x"},
		criteria.Record{"email": "e@x"},
	)
	return adapter.NewRegistry(mem, fb, tw)
}

func newDispatcher(t *testing.T, reg *adapter.Registry) *Dispatcher {
	t.Helper()
	d, err := New(Config{Adapters: reg})
	require.NoError(t, err)
	return d
}

func TestNew_RequiresRegistry(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)
}

func TestExecute_CrossAdapter(t *testing.T) {
	topo := crossAdapterTopology(t)
	d := newDispatcher(t, crossAdapterRegistry())

	res, err := d.Execute(context.Background(), topo)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Count)

	fb, _ := topo.NodeFor("facebook.user")
	require.NotNil(t, fb.Result)
	assert.Equal(t, 2, fb.Result.Count)

	tw, _ := topo.NodeFor("twitter.user")
	require.NotNil(t, tw.Result)
	assert.Equal(t, []criteria.Record{{"email": "a@x"}}, tw.Result.Records)

	assert.Same(t, res, topo.Terminal.Result)
	// compiled constraints keep their references
	assert.True(t, tw.Constraints[0].Right.IsRef())
}

func TestRun_RecordsNodes(t *testing.T) {
	topo := crossAdapterTopology(t)
	d := newDispatcher(t, crossAdapterRegistry())

	run, err := d.Run(context.Background(), topo)
	require.NoError(t, err)

	assert.NotEmpty(t, run.ID)
	assert.Equal(t, RunStatusCompleted, run.Status)
	require.NotNil(t, run.CompletedAt)
	require.Len(t, run.Nodes, 3)

	keys := make([]string, len(run.Nodes))
	for i, nr := range run.Nodes {
		keys[i] = nr.Key
		assert.Equal(t, NodeRunStatusSuccess, nr.Status)
	}
	assert.Equal(t, topo.Keys(), keys)
	assert.Equal(t, "facebook", run.Nodes[0].Adapter)
	assert.Equal(t, 2, run.Nodes[0].Count)
}

func TestExecute_SubstitutesReferences(t *testing.T) {
	source := &recordingAdapter{name: "facebook", result: &adapter.Result{
		Records: []criteria.Record{{"email": "a"}, {"email": "b"}, {"email": "a"}, {"other": 1}},
		Count:   4,
	}}
	target := &recordingAdapter{name: "memory", result: &adapter.Result{}}
	d := newDispatcher(t, adapter.NewRegistry(source, target))

	topo := compile(t, criteria.ActionFind, []*criteria.Constraint{
		con(t, "users.email", criteria.OpEq, criteria.Ref("facebook.user.email")),
		con(t, "users.name", criteria.OpEq, "x"),
	}, "users")

	_, err := d.Execute(context.Background(), topo)
	require.NoError(t, err)

	require.Len(t, target.plans, 1)
	got := target.plans[0].Constraints
	require.Len(t, got, 2)
	assert.Equal(t, criteria.OpIn, got[0].Operator)
	assert.Equal(t, []any{"a", "b"}, got[0].Right.Value)
	assert.False(t, got[0].Right.IsRef())
	assert.Same(t, topo.Terminal.Constraints[1], got[1])
}

func TestRewrite(t *testing.T) {
	d := newDispatcher(t, adapter.NewRegistry())
	values := []any{3, 1, 2}

	tests := []struct {
		op      criteria.Operator
		values  []any
		wantOp  criteria.Operator
		wantVal any
	}{
		{criteria.OpEq, values, criteria.OpIn, values},
		{criteria.OpIn, values, criteria.OpIn, values},
		{criteria.OpNeq, values, criteria.OpNin, values},
		{criteria.OpNin, values, criteria.OpNin, values},
		{criteria.OpGt, values, criteria.OpGt, 1},
		{criteria.OpGte, values, criteria.OpGte, 1},
		{criteria.OpLt, values, criteria.OpLt, 3},
		{criteria.OpLte, values, criteria.OpLte, 3},
		{criteria.OpEq, nil, criteria.OpIn, []any{}},
		{criteria.OpGte, nil, criteria.OpIn, []any{}},
		{criteria.OpNeq, nil, criteria.OpNin, []any{}},
	}

	for _, tt := range tests {
		t.Run(string(tt.op), func(t *testing.T) {
			c := con(t, "users.n", tt.op, criteria.Ref("other.n"))
			got, err := d.rewrite(c, tt.values)
			require.NoError(t, err)
			assert.Equal(t, tt.wantOp, got.Operator)
			assert.Equal(t, tt.wantVal, got.Right.Value)
			assert.Equal(t, c.Left, got.Left)
		})
	}
}

func TestRewrite_MatchUnsupported(t *testing.T) {
	d := newDispatcher(t, adapter.NewRegistry())
	c := con(t, "users.n", criteria.OpMatch, criteria.Ref("other.n"))

	_, err := d.rewrite(c, []any{"a"})
	assert.ErrorIs(t, err, ErrUnsupportedReference)
}

func TestExecute_FailFast(t *testing.T) {
	boom := errors.New("boom")
	source := &recordingAdapter{name: "facebook", err: boom}
	target := &recordingAdapter{name: "memory", result: &adapter.Result{}}
	d := newDispatcher(t, adapter.NewRegistry(source, target))

	topo := compile(t, criteria.ActionFind, []*criteria.Constraint{
		con(t, "users.email", criteria.OpEq, criteria.Ref("facebook.user.email")),
	}, "users")

	res, err := d.Execute(context.Background(), topo)
	assert.Nil(t, res)
	require.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "node facebook.user.find")
	assert.Empty(t, target.plans)
	assert.Nil(t, topo.Terminal.Result)

	run, err := d.Run(context.Background(), topo)
	require.Error(t, err)
	assert.Equal(t, RunStatusFailed, run.Status)
	require.Len(t, run.Nodes, 1)
	assert.Equal(t, NodeRunStatusFailed, run.Nodes[0].Status)
	assert.Equal(t, err.Error(), run.Error)
}

func TestExecute_UnknownAdapter(t *testing.T) {
	d := newDispatcher(t, adapter.NewRegistry(&recordingAdapter{name: "memory"}))
	topo := compile(t, criteria.ActionFind, nil, "nowhere.users")

	_, err := d.Execute(context.Background(), topo)
	var uae *adapter.UnknownAdapterError
	require.ErrorAs(t, err, &uae)
	assert.Equal(t, "nowhere", uae.Name)
}

func TestExecute_Canceled(t *testing.T) {
	target := &recordingAdapter{name: "memory", result: &adapter.Result{}}
	d := newDispatcher(t, adapter.NewRegistry(target))
	topo := compile(t, criteria.ActionFind, nil, "users")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	run, err := d.Run(ctx, topo)
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, RunStatusCancelled, run.Status)
	assert.Empty(t, target.plans)
}

func TestExecute_Paging(t *testing.T) {
	target := &recordingAdapter{name: "memory", result: &adapter.Result{}}
	d := newDispatcher(t, adapter.NewRegistry(target))

	tests := []struct {
		name       string
		paging     criteria.Paging
		wantLimit  int
		wantOffset int
	}{
		{"page", criteria.Paging{Limit: 2, Page: 3}, 2, 4},
		{"offset", criteria.Paging{Limit: 5, Offset: 7}, 5, 7},
		{"page wins over offset", criteria.Paging{Limit: 5, Page: 2, Offset: 1}, 5, 5},
		{"unset", criteria.Paging{}, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			topo := compile(t, criteria.ActionFind, nil, "users")
			topo.Terminal.Paging = tt.paging

			_, err := d.Execute(context.Background(), topo)
			require.NoError(t, err)

			plan := target.plans[len(target.plans)-1]
			assert.Equal(t, tt.wantLimit, plan.Limit)
			assert.Equal(t, tt.wantOffset, plan.Offset)
		})
	}
}

func TestExecute_NilResult(t *testing.T) {
	d := newDispatcher(t, adapter.NewRegistry(&recordingAdapter{name: "memory"}))
	topo := compile(t, criteria.ActionFind, nil, "users")

	res, err := d.Execute(context.Background(), topo)
	require.NoError(t, err)
	assert.Zero(t, res.Count)
}

type runRecorder struct {
	runs []*Run
	err  error
}

func (r *runRecorder) RecordRun(_ context.Context, run *Run) error {
	r.runs = append(r.runs, run)
	return r.err
}

func TestRun_Recorder(t *testing.T) {
	target := &recordingAdapter{name: "memory", result: &adapter.Result{Count: 2}}
	rec := &runRecorder{err: errors.New("disk full")}
	d, err := New(Config{Adapters: adapter.NewRegistry(target), Recorder: rec})
	require.NoError(t, err)

	topo := compile(t, criteria.ActionCount, nil, "users")
	run, err := d.Run(WithLabel(context.Background(), "active"), topo)
	require.NoError(t, err, "recording failures do not fail the run")

	require.Len(t, rec.runs, 1)
	assert.Same(t, run, rec.runs[0])
	assert.Equal(t, "active", run.Label)
	assert.Equal(t, "count", run.Action)
	assert.Equal(t, RunStatusCompleted, run.Status)

	target.err = errors.New("boom")
	_, err = d.Run(context.Background(), topo)
	require.Error(t, err)
	require.Len(t, rec.runs, 2)
	assert.Equal(t, RunStatusFailed, rec.runs[1].Status)
	assert.Empty(t, rec.runs[1].Label)
}

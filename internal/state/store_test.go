package state

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/leapquery/internal/engine"
	"github.com/leapstack-labs/leapquery/internal/testutil"
	"github.com/leapstack-labs/leapquery/pkg/adapter"
	"github.com/leapstack-labs/leapquery/pkg/adapters/memory"
	"github.com/leapstack-labs/leapquery/pkg/criteria"
	"github.com/leapstack-labs/leapquery/pkg/topology"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), MemoryPath, testutil.NewTestLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func sampleRun(id, label string, started time.Time) *engine.Run {
	done := started.Add(40 * time.Millisecond)
	return &engine.Run{
		ID:          id,
		Label:       label,
		Action:      "find",
		Status:      engine.RunStatusCompleted,
		StartedAt:   started,
		CompletedAt: &done,
		Result:      &adapter.Result{Count: 3},
		Nodes: []*engine.NodeRun{
			{Key: "facebook.user.find", Adapter: "facebook", Status: engine.NodeRunStatusSuccess, Count: 5, StartedAt: started, Duration: 10 * time.Millisecond},
			{Key: "twitter.user.find", Adapter: "twitter", Status: engine.NodeRunStatusSuccess, Count: 3, StartedAt: started, Duration: 20 * time.Millisecond},
		},
	}
}

func TestOpen_Migrates(t *testing.T) {
	s := openStore(t)

	version, err := s.MigrationVersion(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), version)
	assert.Equal(t, MemoryPath, s.Path())
}

func TestOpen_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "history.db")
	ctx := context.Background()

	s, err := Open(ctx, path, nil)
	require.NoError(t, err)
	require.NoError(t, s.RecordRun(ctx, sampleRun("r1", "popular", time.Now())))
	require.NoError(t, s.Close())

	s, err = Open(ctx, path, nil)
	require.NoError(t, err)
	defer func() { _ = s.Close() }()

	run, err := s.GetRun(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, "popular", run.Label)
}

func TestRecordAndGetRun(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	started := time.Unix(1700000000, 0)

	require.NoError(t, s.RecordRun(ctx, sampleRun("r1", "linked", started)))

	run, err := s.GetRun(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, "linked", run.Label)
	assert.Equal(t, "find", run.Action)
	assert.Equal(t, engine.RunStatusCompleted, run.Status)
	assert.True(t, started.Equal(run.StartedAt))
	require.NotNil(t, run.CompletedAt)
	assert.Equal(t, 40*time.Millisecond, run.Duration())
	require.NotNil(t, run.Result)
	assert.Equal(t, 3, run.Result.Count)

	require.Len(t, run.Nodes, 2)
	assert.Equal(t, "facebook.user.find", run.Nodes[0].Key)
	assert.Equal(t, "facebook", run.Nodes[0].Adapter)
	assert.Equal(t, 5, run.Nodes[0].Count)
	assert.Equal(t, 20*time.Millisecond, run.Nodes[1].Duration)

	_, err = s.GetRun(ctx, "missing")
	assert.ErrorIs(t, err, ErrRunNotFound)

	assert.Error(t, s.RecordRun(ctx, sampleRun("r1", "linked", started)), "duplicate id")
}

func TestRecordRun_Failed(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	run := sampleRun("bad", "", time.Now())
	run.Status = engine.RunStatusFailed
	run.Error = "node twitter.user.find: boom"
	run.Result = nil
	run.Nodes[1].Status = engine.NodeRunStatusFailed
	run.Nodes[1].Error = "boom"
	require.NoError(t, s.RecordRun(ctx, run))

	got, err := s.GetRun(ctx, "bad")
	require.NoError(t, err)
	assert.Equal(t, engine.RunStatusFailed, got.Status)
	assert.Equal(t, run.Error, got.Error)
	assert.Nil(t, got.Result)
	assert.Equal(t, "boom", got.Nodes[1].Error)
}

func TestListAndPruneRuns(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	base := time.Unix(1700000000, 0)

	for i, label := range []string{"a", "b", "a", "c"} {
		id := string(rune('1' + i))
		require.NoError(t, s.RecordRun(ctx, sampleRun(id, label, base.Add(time.Duration(i)*time.Minute))))
	}

	runs, err := s.ListRuns(ctx, ListOptions{})
	require.NoError(t, err)
	require.Len(t, runs, 4)
	assert.Equal(t, "4", runs[0].ID, "newest first")
	assert.Empty(t, runs[0].Nodes)

	runs, err = s.ListRuns(ctx, ListOptions{Label: "a"})
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "3", runs[0].ID)

	runs, err = s.ListRuns(ctx, ListOptions{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, runs, 1)

	removed, err := s.PruneRuns(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(2), removed)

	_, err = s.GetRun(ctx, "1")
	assert.ErrorIs(t, err, ErrRunNotFound)

	var nodes int
	require.NoError(t, s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM node_runs`).Scan(&nodes))
	assert.Equal(t, 4, nodes, "node steps are removed with their run")
}

func TestStore_RecordsDispatchedRuns(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	mem := memory.New("memory", nil)
	mem.Insert("users", criteria.Record{"name": "first"}, criteria.Record{"name": "second"})

	d, err := engine.New(engine.Config{Adapters: adapter.NewRegistry(mem), Recorder: s})
	require.NoError(t, err)

	ref, err := criteria.ResolveResource("users", criteria.DefaultAdapter)
	require.NoError(t, err)
	topo, err := topology.Compile(&criteria.Criteria{
		DefaultAdapter: criteria.DefaultAdapter,
		Action:         criteria.Action{Kind: criteria.ActionFind},
		Sources:        []criteria.Source{{Kind: criteria.SourceStart, Resource: ref}},
	})
	require.NoError(t, err)

	run, err := d.Run(engine.WithLabel(ctx, "everyone"), topo)
	require.NoError(t, err)

	got, err := s.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, "everyone", got.Label)
	assert.Equal(t, 2, got.Result.Count)
	require.Len(t, got.Nodes, 1)
	assert.Equal(t, "users.find", got.Nodes[0].Key)
	assert.Equal(t, "memory", got.Nodes[0].Adapter)
}

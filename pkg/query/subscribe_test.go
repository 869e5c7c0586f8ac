package query

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/leapquery/pkg/adapter"
	"github.com/leapstack-labs/leapquery/pkg/adapters/memory"
	"github.com/leapstack-labs/leapquery/pkg/criteria"
)

type plainAdapter struct{}

func (plainAdapter) Name() string            { return "plain" }
func (plainAdapter) Schema() *adapter.Schema { return nil }
func (plainAdapter) Execute(context.Context, *adapter.Plan) (*adapter.Result, error) {
	return &adapter.Result{}, nil
}

func TestSubscribe_FiltersChanges(t *testing.T) {
	mem := memory.New("memory", nil)
	reg := newRegistry(mem)
	ctx := context.Background()

	var got []Change
	cancel, err := reg.New().Start("users").Where("likeCount").Gte(10).Subscribe(ctx, func(c Change) {
		got = append(got, c)
	})
	require.NoError(t, err)

	_, err = reg.New().Start("users").Create(ctx,
		criteria.Record{"name": "a", "likeCount": 20},
		criteria.Record{"name": "b", "likeCount": 1},
	)
	require.NoError(t, err)
	mem.Insert("posts", criteria.Record{"likeCount": 50})

	_, err = reg.New().Start("users").Where("name").Eq("a").Update(ctx, criteria.Record{"likeCount": 5})
	require.NoError(t, err)
	_, err = reg.New().Start("users").Where("name").Eq("b").Update(ctx, criteria.Record{"likeCount": 15})
	require.NoError(t, err)

	require.Len(t, got, 2)
	assert.Equal(t, adapter.ChangeCreate, got[0].Kind)
	assert.Equal(t, "a", got[0].Record["name"])
	assert.Equal(t, adapter.ChangeUpdate, got[1].Kind)
	assert.Equal(t, "b", got[1].Record["name"])

	cancel()
	mem.Insert("users", criteria.Record{"name": "c", "likeCount": 99})
	assert.Len(t, got, 2)
	cancel()
}

func TestSubscribe_StopsWithContext(t *testing.T) {
	mem := memory.New("memory", nil)
	reg := newRegistry(mem)
	ctx, cancelCtx := context.WithCancel(context.Background())

	var calls atomic.Int32
	_, err := reg.New().Start("users").Subscribe(ctx, func(Change) { calls.Add(1) })
	require.NoError(t, err)

	mem.Insert("users", criteria.Record{"id": 1})
	assert.Equal(t, int32(1), calls.Load())

	cancelCtx()
	assert.Eventually(t, func() bool {
		before := calls.Load()
		mem.Insert("users", criteria.Record{"id": 2})
		return calls.Load() == before
	}, time.Second, 10*time.Millisecond)
}

func TestSubscribe_Unsupported(t *testing.T) {
	reg := newRegistry(plainAdapter{})

	_, err := reg.New().Use("plain").Start("users").Subscribe(context.Background(), func(Change) {})
	assert.ErrorIs(t, err, ErrSubscribeUnsupported)
}

func TestSubscribe_MissingSelection(t *testing.T) {
	_, err := newRegistry().New().Subscribe(context.Background(), func(Change) {})
	var mse *criteria.MissingSelectionError
	assert.ErrorAs(t, err, &mse)
}

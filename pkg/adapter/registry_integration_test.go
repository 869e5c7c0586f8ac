package adapter_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/leapquery/pkg/adapter"
	"github.com/leapstack-labs/leapquery/pkg/criteria"

	// Import adapter packages to ensure adapters are registered via init()
	_ "github.com/leapstack-labs/leapquery/pkg/adapters/memory"
	_ "github.com/leapstack-labs/leapquery/pkg/adapters/postgres"
	_ "github.com/leapstack-labs/leapquery/pkg/adapters/sqlite"
)

func TestSelfRegistration(t *testing.T) {
	adapters := adapter.ListAdapters()

	for _, typ := range []string{"memory", "postgres", "sqlite"} {
		assert.Contains(t, adapters, typ, "%s should be in adapter list", typ)
	}
}

func TestIsRegistered(t *testing.T) {
	tests := []struct {
		name        string
		adapterName string
		expected    bool
	}{
		{"memory registered", "memory", true},
		{"sqlite registered", "sqlite", true},
		{"postgres registered", "postgres", true},
		{"unknown not registered", "unknown_db", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := adapter.IsRegistered(tt.adapterName)
			assert.Equal(t, tt.expected, got, "IsRegistered(%q)", tt.adapterName)
		})
	}
}

func TestNewAdapter_Success(t *testing.T) {
	tests := []struct {
		name string
		cfg  adapter.Config
		want string
	}{
		{"memory", adapter.Config{Type: "memory"}, "memory"},
		{"named memory", adapter.Config{Name: "cache", Type: "memory"}, "cache"},
		{"sqlite in memory", adapter.Config{Name: "local", Type: "sqlite", Path: ":memory:"}, "local"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			adp, err := adapter.NewAdapter(tt.cfg, nil)
			require.NoError(t, err)
			require.NotNil(t, adp)
			assert.Equal(t, tt.want, adp.Name())
			if c, ok := adp.(adapter.Closer); ok {
				assert.NoError(t, c.Close())
			}
		})
	}
}

func TestNewAdapter_UnknownTypeListsAvailable(t *testing.T) {
	_, err := adapter.NewAdapter(adapter.Config{Type: "unknown_adapter"}, nil)

	var unknownErr *adapter.UnknownAdapterError
	require.ErrorAs(t, err, &unknownErr)
	assert.Equal(t, "unknown_adapter", unknownErr.Name)
	assert.Contains(t, unknownErr.Available, "memory")
	assert.NotEmpty(t, unknownErr.Hint)
}

func TestRegistry_MixedAdapters(t *testing.T) {
	ctx := context.Background()

	mem, err := adapter.NewAdapter(adapter.Config{Name: "cache", Type: "memory"}, nil)
	require.NoError(t, err)
	lite, err := adapter.NewAdapter(adapter.Config{Name: "local", Type: "sqlite"}, nil)
	require.NoError(t, err)

	reg := adapter.NewRegistry(mem, lite)
	defer func() { assert.NoError(t, reg.Close()) }()

	assert.Equal(t, []string{"cache", "local"}, reg.Names())

	_, err = lite.Execute(ctx, &adapter.Plan{
		Key:      "local.users.create",
		Resource: criteria.ResourceReference{Adapter: "local", Resource: "users", Namespace: "local.users"},
		Action:   criteria.ActionCreate,
	})
	assert.ErrorIs(t, err, adapter.ErrUnsupportedAction)

	res, err := mem.Execute(ctx, &adapter.Plan{
		Key:      "cache.users.create",
		Resource: criteria.ResourceReference{Adapter: "cache", Resource: "users", Namespace: "cache.users"},
		Action:   criteria.ActionCreate,
		Data:     []criteria.Record{{"id": 1}},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Count)
}

package memory

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/leapquery/internal/testutil"
	"github.com/leapstack-labs/leapquery/pkg/adapter"
)

func TestWatchFixtures_Reload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "users.yaml")
	require.NoError(t, os.WriteFile(path, []byte("users:\n  - {name: first}\n"), 0o600))

	got, err := adapter.NewAdapter(adapter.Config{
		Name:   "live",
		Type:   "memory",
		Path:   path,
		Params: map[string]any{"watch": true},
	}, testutil.NewTestLogger(t))
	require.NoError(t, err)
	a := got.(*Adapter)
	t.Cleanup(func() { _ = a.Close() })

	var (
		mu      sync.Mutex
		changes []adapter.Change
	)
	cancel := a.Watch("users", func(c adapter.Change) {
		mu.Lock()
		changes = append(changes, c)
		mu.Unlock()
	})
	defer cancel()

	a.Insert("users", map[string]any{"name": "inserted"})
	require.Len(t, a.Records("users"), 2)

	require.NoError(t, os.WriteFile(path, []byte("users:\n  - {name: first}\n  - {name: second}\n"), 0o600))

	require.Eventually(t, func() bool {
		records := a.Records("users")
		return len(records) == 2 && records[1]["name"] == "second"
	}, 5*time.Second, 20*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	var removes, creates int
	for _, c := range changes {
		switch c.Kind {
		case adapter.ChangeRemove:
			removes++
		case adapter.ChangeCreate:
			creates++
		}
	}
	assert.GreaterOrEqual(t, removes, 2)
	assert.GreaterOrEqual(t, creates, 3)
}

func TestWatchFixtures_BadReloadKeepsRecords(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "users.yaml")
	require.NoError(t, os.WriteFile(path, []byte("users:\n  - {name: first}\n"), 0o600))

	a := New("live", testutil.NewTestLogger(t))
	require.NoError(t, a.LoadFixtureFile(path))
	require.NoError(t, a.WatchFixtures([]string{path}))

	require.NoError(t, os.WriteFile(path, []byte("users: [1, 2"), 0o600))
	time.Sleep(3 * reloadDebounce)
	assert.Equal(t, "first", a.Records("users")[0]["name"])

	require.NoError(t, a.Close())
	require.NoError(t, a.Close())
}

func TestWatchFixtures_NoFiles(t *testing.T) {
	a := New("live", nil)
	assert.NoError(t, a.WatchFixtures(nil))
	assert.NoError(t, a.Close())
}

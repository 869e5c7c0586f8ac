package server

import (
	"bufio"
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/leapquery/internal/config"
	"github.com/leapstack-labs/leapquery/internal/testutil"
	"github.com/leapstack-labs/leapquery/pkg/adapter"
	"github.com/leapstack-labs/leapquery/pkg/adapters/memory"
	"github.com/leapstack-labs/leapquery/pkg/criteria"
	"github.com/leapstack-labs/leapquery/pkg/query"
)

// execFind runs every query as find, or count when asked.
func execFind(ctx context.Context, q *query.Query, action string) ([]criteria.Record, error) {
	if action == "count" {
		n, err := q.Count(ctx)
		if err != nil {
			return nil, err
		}
		return []criteria.Record{{"count": n}}, nil
	}
	return q.Find(ctx)
}

func newTestServer(t *testing.T) (*httptest.Server, *memory.Adapter) {
	t.Helper()
	mem := memory.New("memory", nil)
	mem.Insert("users",
		criteria.Record{"name": "first", "likeCount": 20},
		criteria.Record{"name": "second", "likeCount": 10},
		criteria.Record{"name": "third", "likeCount": 8},
	)

	reg := query.NewRegistry(query.Config{Adapters: adapter.NewRegistry(mem)})
	require.NoError(t, reg.Store(reg.Named("popular").Start("users").Where("likeCount").Gte(10).Asc("name")))
	require.NoError(t, reg.Store(reg.Named("quiet").Start("users").Where("likeCount").Lt(10)))
	require.NoError(t, reg.Store(reg.Named("elsewhere").Start("nowhere.users")))

	srv, err := New(Config{
		Queries: reg,
		Definitions: map[string]*config.QueryConfig{
			"popular":   {Start: "users", Action: "find", Description: "well liked"},
			"quiet":     {Start: "users", Action: "count"},
			"elsewhere": {Start: "nowhere.users", Action: "find"},
		},
		Execute: execFind,
		Logger:  testutil.NewTestLogger(t),
	})
	require.NoError(t, err)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts, mem
}

func getJSON(t *testing.T, url string, v any) int {
	t.Helper()
	resp, err := http.Get(url) //nolint:noctx // test helper
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
	return resp.StatusCode
}

func TestNew_Validation(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)

	_, err = New(Config{Queries: query.NewRegistry(query.Config{})})
	assert.Error(t, err)
}

func TestHealth(t *testing.T) {
	ts, _ := newTestServer(t)

	var body map[string]string
	assert.Equal(t, http.StatusOK, getJSON(t, ts.URL+"/healthz", &body))
	assert.Equal(t, "ok", body["status"])
}

func TestListQueries(t *testing.T) {
	ts, _ := newTestServer(t)

	var infos []queryInfo
	require.Equal(t, http.StatusOK, getJSON(t, ts.URL+"/queries", &infos))
	require.Len(t, infos, 3)
	assert.Equal(t, "elsewhere", infos[0].Name)
	assert.Equal(t, queryInfo{Name: "popular", Description: "well liked", Action: "find", Start: "users"}, infos[1])
}

func TestRunQuery(t *testing.T) {
	ts, _ := newTestServer(t)

	tests := []struct {
		name       string
		path       string
		wantStatus int
		wantNames  []string
		wantCount  float64
		wantErr    string
	}{
		{name: "find", path: "/queries/popular", wantStatus: http.StatusOK, wantNames: []string{"first", "second"}},
		{name: "limit override", path: "/queries/popular?limit=1&page=2", wantStatus: http.StatusOK, wantNames: []string{"second"}},
		{name: "count", path: "/queries/quiet", wantStatus: http.StatusOK, wantCount: 1},
		{name: "bad limit", path: "/queries/popular?limit=zero", wantStatus: http.StatusBadRequest, wantErr: "limit must be a positive integer"},
		{name: "unknown query", path: "/queries/missing", wantStatus: http.StatusNotFound, wantErr: `unknown query "missing"`},
		{name: "unknown adapter", path: "/queries/elsewhere", wantStatus: http.StatusUnprocessableEntity, wantErr: "nowhere"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var body struct {
				Name    string           `json:"name"`
				Records []map[string]any `json:"records"`
				Error   string           `json:"error"`
			}
			status := getJSON(t, ts.URL+tt.path, &body)
			assert.Equal(t, tt.wantStatus, status)

			if tt.wantErr != "" {
				assert.Contains(t, body.Error, tt.wantErr)
				return
			}
			if tt.wantCount > 0 {
				require.Len(t, body.Records, 1)
				assert.Equal(t, tt.wantCount, body.Records[0]["count"])
				return
			}
			var names []string
			for _, rec := range body.Records {
				names = append(names, rec["name"].(string))
			}
			assert.Equal(t, tt.wantNames, names)
		})
	}
}

func TestEvents(t *testing.T) {
	ts, mem := newTestServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/queries/popular/events", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	mem.Insert("users", criteria.Record{"name": "ignored", "likeCount": 1})
	mem.Insert("users", criteria.Record{"name": "fourth", "likeCount": 300})

	reader := bufio.NewReader(resp.Body)
	var lines []string
	for len(lines) < 2 {
		line, err := reader.ReadString('\n')
		require.NoError(t, err)
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	assert.Equal(t, "event: create", lines[0])
	assert.JSONEq(t, `{"name":"fourth","likeCount":300}`, strings.TrimPrefix(lines[1], "data: "))
}

func TestEvents_Unsupported(t *testing.T) {
	ts, _ := newTestServer(t)

	var body errorBody
	assert.Equal(t, http.StatusNotFound, getJSON(t, ts.URL+"/queries/missing/events", &body))
	assert.Equal(t, http.StatusUnprocessableEntity, getJSON(t, ts.URL+"/queries/elsewhere/events", &body))
}

func TestServe_Shutdown(t *testing.T) {
	reg := query.NewRegistry(query.Config{})
	srv, err := New(Config{Queries: reg, Execute: execFind})
	require.NoError(t, err)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.serve(ctx, ln) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + ln.Addr().String() + "/healthz") //nolint:noctx // test
		if err != nil {
			return false
		}
		_ = resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}

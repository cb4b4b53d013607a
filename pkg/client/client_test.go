package client

import (
	"context"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loykin/sidecar/internal/dialog"
	"github.com/loykin/sidecar/internal/server"
	"github.com/loykin/sidecar/internal/supervisor"
)

type stubDialogs struct {
	path string
	err  error
}

func (s stubDialogs) PickFiles(context.Context, []dialog.Filter) ([]string, error) {
	if s.err != nil {
		return nil, s.err
	}
	return []string{s.path}, nil
}

func (s stubDialogs) PickFolder(context.Context) (string, error) { return s.path, s.err }

func (s stubDialogs) SaveFile(context.Context, string, []dialog.Filter) (string, error) {
	return s.path, s.err
}

type stubStatus struct{}

func (stubStatus) Status() supervisor.Status {
	return supervisor.Status{
		State:    supervisor.Ready,
		Endpoint: "127.0.0.1:8000",
		LaunchID: "abc",
		Result:   &supervisor.Result{Outcome: supervisor.ReadyWithinBudget, State: supervisor.Ready, Attempts: 3, Elapsed: 2 * time.Second, LaunchID: "abc", PID: 42},
	}
}

func newTestClient(t *testing.T, d dialog.Service) *Client {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := server.NewRouter(server.Options{Dialogs: d, Status: stubStatus{}})
	ts := httptest.NewServer(r.Handler())
	t.Cleanup(ts.Close)
	return New(Config{BaseURL: ts.URL, Timeout: 2 * time.Second})
}

func TestClient_StatusAndReachable(t *testing.T) {
	c := newTestClient(t, stubDialogs{path: "/tmp/a.wav"})
	ctx := context.Background()
	require.True(t, c.IsReachable(ctx))

	st, err := c.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, "ready", st.State)
	assert.Equal(t, "127.0.0.1:8000", st.Endpoint)
	require.NotNil(t, st.Result)
	assert.Equal(t, "ready_within_budget", st.Result.Outcome)
	assert.Equal(t, 3, st.Result.Attempts)
	assert.Equal(t, 42, st.Result.PID)
	assert.Equal(t, 2*time.Second, st.Result.Elapsed)
}

func TestClient_Unreachable(t *testing.T) {
	c := New(Config{BaseURL: "http://127.0.0.1:1", Timeout: 200 * time.Millisecond})
	assert.False(t, c.IsReachable(context.Background()))
}

func TestClient_Dialogs(t *testing.T) {
	ctx := context.Background()
	c := newTestClient(t, stubDialogs{path: "/tmp/a.wav"})

	paths, err := c.SelectFiles(ctx, "audio")
	require.NoError(t, err)
	assert.Equal(t, []string{"/tmp/a.wav"}, paths)

	p, err := c.SelectFolder(ctx)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/a.wav", p)

	_, err = c.SelectFiles(ctx, "nope")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown preset")

	cancelled := newTestClient(t, stubDialogs{err: dialog.ErrCancelled})
	_, err = cancelled.SaveFile(ctx, "out.csv")
	require.ErrorIs(t, err, ErrCancelled)
}

func TestClient_WriteFileAndUniqueName(t *testing.T) {
	ctx := context.Background()
	c := newTestClient(t, nil)
	dir := t.TempDir()

	target := filepath.Join(dir, "notes.txt")
	require.NoError(t, c.WriteFile(ctx, target, "hello"))
	data, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))

	require.NoError(t, os.Mkdir(filepath.Join(dir, "run"), 0o755))
	name, err := c.UniqueFolderName(ctx, dir, "run")
	require.NoError(t, err)
	assert.Equal(t, "run_1", name)

	_, err = c.UniqueFolderName(ctx, filepath.Join(dir, "missing"), "run")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
}

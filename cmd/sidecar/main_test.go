package main

import (
	"bytes"
	"encoding/json"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loykin/sidecar/internal/config"
	"github.com/loykin/sidecar/internal/history"
	"github.com/loykin/sidecar/internal/supervisor"
)

// execute runs the CLI with args and returns its standard output.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := buildRoot()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func listen(t *testing.T) (string, int) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ln.Close() })
	go func() {
		for {
			c, err := ln.Accept()
			if err != nil {
				return
			}
			_ = c.Close()
		}
	}()
	return "127.0.0.1", ln.Addr().(*net.TCPAddr).Port
}

func freePort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	require.NoError(t, ln.Close())
	return port
}

func writeTOML(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func TestHelpMentionsSidecar(t *testing.T) {
	out, err := execute(t, "--help")
	require.NoError(t, err)
	assert.Contains(t, out, "sidecar")
	for _, sub := range []string{"run", "probe", "wait", "status", "history", "unique-name", "config"} {
		assert.Contains(t, out, sub)
	}
}

func TestProbe(t *testing.T) {
	host, port := listen(t)
	out, err := execute(t, "probe", "--host", host, "--port", strconv.Itoa(port))
	require.NoError(t, err)
	assert.Contains(t, out, "live")

	closed := freePort(t)
	out, err = execute(t, "probe", "--host", "127.0.0.1", "--port", strconv.Itoa(closed), "--timeout", "200ms")
	require.ErrorIs(t, err, errNotLive)
	assert.Contains(t, out, "not live")
}

func TestProbe_InvalidPort(t *testing.T) {
	_, err := execute(t, "probe", "--port", "70000")
	require.Error(t, err)
	assert.NotErrorIs(t, err, errNotLive)
}

func TestWait(t *testing.T) {
	host, port := listen(t)
	out, err := execute(t, "wait", "--host", host, "--port", strconv.Itoa(port), "--attempts", "3", "--interval", "10ms")
	require.NoError(t, err)
	assert.Contains(t, out, "ready after 1 attempt")

	closed := freePort(t)
	_, err = execute(t, "wait", "--host", "127.0.0.1", "--port", strconv.Itoa(closed),
		"--attempts", "2", "--interval", "10ms", "--timeout", "100ms")
	require.ErrorIs(t, err, supervisor.ErrTimeoutExceeded)
	assert.Contains(t, err.Error(), "after 2 attempts")
}

func TestWait_RejectsZeroAttempts(t *testing.T) {
	_, err := execute(t, "wait", "--attempts", "0")
	require.Error(t, err)
}

func TestUniqueName(t *testing.T) {
	base := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(base, "take"), 0o755))

	out, err := execute(t, "unique-name", "--base", base, "--name", "take")
	require.NoError(t, err)
	assert.Equal(t, "take_1", strings.TrimSpace(out))

	out, err = execute(t, "unique-name", "--base", base, "--name", "fresh")
	require.NoError(t, err)
	assert.Equal(t, "fresh", strings.TrimSpace(out))

	_, err = execute(t, "unique-name", "--base", base)
	require.Error(t, err)
}

func TestConfigInit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conf", "sidecar.toml")
	out, err := execute(t, "config", "init", path)
	require.NoError(t, err)
	assert.Contains(t, out, "wrote")

	_, err = execute(t, "config", "init", path)
	require.Error(t, err, "existing file needs --force")

	_, err = execute(t, "config", "init", path, "--force")
	require.NoError(t, err)

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, config.Default().Backend.Port, cfg.Backend.Port)
	assert.Equal(t, config.Default().Readiness.Interval, cfg.Readiness.Interval)
}

func TestStatus_ReportsEndpointDetector(t *testing.T) {
	host, port := listen(t)
	dir := t.TempDir()
	cfgPath := writeTOML(t, dir, "sidecar.toml", `
[backend]
host = "`+host+`"
port = `+strconv.Itoa(port)+`
pidfile = "`+filepath.Join(dir, "missing.pid")+`"

[server]
enabled = false
`)
	out, err := execute(t, "--config", cfgPath, "status")
	require.NoError(t, err)

	var rep statusReport
	require.NoError(t, json.Unmarshal([]byte(out), &rep))
	assert.Equal(t, net.JoinHostPort(host, strconv.Itoa(port)), rep.Endpoint)
	require.Len(t, rep.Detectors, 2)
	assert.True(t, rep.Detectors[0].Alive)
	assert.False(t, rep.Detectors[1].Alive)
	assert.Nil(t, rep.Process)
}

func TestHistory_RequiresDSN(t *testing.T) {
	cfgPath := writeTOML(t, t.TempDir(), "sidecar.toml", "[history]\nenabled = false\n")
	_, err := execute(t, "--config", cfgPath, "history")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dsn")
}

func TestRunHeadlessOnce_AlreadyRunningRecordsHistory(t *testing.T) {
	host, port := listen(t)
	dir := t.TempDir()
	dsn := filepath.Join(dir, "history.db")
	cfgPath := writeTOML(t, dir, "sidecar.toml", `
[backend]
name = "missing-backend"
host = "`+host+`"
port = `+strconv.Itoa(port)+`

[readiness]
max_attempts = 2
interval = "10ms"
probe_timeout = "200ms"

[log]
level = "error"

[server]
enabled = false

[history]
enabled = true
dsn = "`+dsn+`"
`)
	_, err := execute(t, "--config", cfgPath, "run", "--headless", "--once")
	require.NoError(t, err)

	out, err := execute(t, "--config", cfgPath, "history", "--limit", "5")
	require.NoError(t, err)
	var events []history.Event
	require.NoError(t, json.Unmarshal([]byte(out), &events))
	require.Len(t, events, 1)
	assert.Equal(t, history.EventLaunch, events[0].Type)
	assert.Equal(t, string(supervisor.AlreadyRunning), events[0].Outcome)
	assert.Equal(t, 0, events[0].PID)

	out, err = execute(t, "history", "--dsn", dsn, "--launch-id", events[0].LaunchID)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(out), &events))
	assert.Len(t, events, 1)
}

func TestRunHeadlessOnce_MissingBackendFails(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeTOML(t, dir, "sidecar.toml", `
[backend]
name = "definitely-not-a-backend"
sidecar_dir = "`+dir+`"
port = `+strconv.Itoa(freePort(t))+`

[log]
level = "error"

[server]
enabled = false
`)
	_, err := execute(t, "--config", cfgPath, "run", "--headless", "--once")
	require.Error(t, err)
	assert.Contains(t, err.Error(), string(supervisor.StartFailed))
}

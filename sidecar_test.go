package sidecar

import (
	"context"
	"io"
	"net"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loykin/sidecar/internal/supervisor"
)

func listenLoopback(t *testing.T) *net.TCPAddr {
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
	return ln.Addr().(*net.TCPAddr)
}

func TestLoadConfig_MissingFileUsesDefaults(t *testing.T) {
	c, err := LoadConfig(filepath.Join(t.TempDir(), "absent.toml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().Backend.Name, c.Backend.Name)
	assert.Equal(t, DefaultConfig().Endpoint(), c.Endpoint())
}

func TestNewSupervisor_AlreadyRunning(t *testing.T) {
	addr := listenLoopback(t)
	c := DefaultConfig()
	c.Backend.Port = addr.Port
	c.Readiness.Interval = 10 * time.Millisecond

	sink, err := OpenHistorySink(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = sink.(io.Closer).Close() })

	revealed := 0
	sup, err := NewSupervisor(c, sink, func() { revealed++ }, nil)
	require.NoError(t, err)

	res, err := sup.Run(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, supervisor.AlreadyRunning, res.Outcome)
	assert.Equal(t, supervisor.Ready, res.State)
	assert.Equal(t, 1, revealed)
	assert.Equal(t, supervisor.Ready, sup.Status().State)
}

func TestNewSupervisor_BadEnvFile(t *testing.T) {
	c := DefaultConfig()
	c.Backend.EnvFiles = []string{filepath.Join(t.TempDir(), "missing.env")}
	_, err := NewSupervisor(c, nil, nil, nil)
	require.Error(t, err)
}

func TestMetricsHelpers(t *testing.T) {
	reg := prometheus.NewRegistry()
	require.NoError(t, RegisterMetrics(reg))
	require.NoError(t, RegisterMetricsDefault())

	srv, err := ServeMetrics("127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = srv.Close() })

	resp, err := http.Get("http://" + srv.Addr + "/metrics")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestServeMetrics_BindError(t *testing.T) {
	addr := listenLoopback(t)
	_, err := ServeMetrics(addr.String())
	require.Error(t, err)
}

func TestNewCommandServer_Healthz(t *testing.T) {
	sup, err := NewSupervisor(DefaultConfig(), nil, nil, nil)
	require.NoError(t, err)
	srv, err := NewCommandServer("127.0.0.1:0", sup, "test", false)
	require.NoError(t, err)
	t.Cleanup(func() { _ = srv.Close() })

	resp, err := http.Get("http://" + srv.Addr + "/healthz")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get("http://" + srv.Addr + "/supervisor/status")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

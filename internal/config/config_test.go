package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loykin/sidecar/internal/detector"
)

func writeTOML(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "sidecar.toml")
	require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	return p
}

func TestLoad_MissingFileGivesDefaults(t *testing.T) {
	c, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	require.NoError(t, err)
	assert.Equal(t, "lightweight_server", c.Backend.Name)
	assert.Equal(t, "127.0.0.1:8000", c.Endpoint().Addr())
	assert.Equal(t, 30, c.Budget().MaxAttempts)
	assert.Equal(t, time.Second, c.Budget().Interval)
	assert.Equal(t, time.Second, c.Readiness.ProbeTimeout)
	assert.Equal(t, []string{"--port", "{port}"}, c.Backend.Args)
	assert.False(t, c.Backend.StopOnExit)
	assert.True(t, c.Server.Enabled)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	p := writeTOML(t, `
[backend]
name = "analyzer"
port = 9100
args = ["serve", "--port", "{port}"]
env = ["MODE=desktop"]
pidfile = "/tmp/analyzer.pid"
stop_on_exit = true
stop_timeout = "2s"

[backend.log]
dir = "/tmp/analyzer-logs"
max_size_mb = 5

[[backend.detectors]]
type = "command"
command = "true"

[readiness]
max_attempts = 5
interval = "250ms"

[log]
level = "debug"
format = "json"

[history]
enabled = true
dsn = "sqlite:///tmp/history.db"
`)
	c, err := Load(p)
	require.NoError(t, err)
	assert.Equal(t, "analyzer", c.Backend.Name)
	assert.Equal(t, 9100, c.Backend.Port)
	assert.Equal(t, "127.0.0.1", c.Backend.Host)
	assert.Equal(t, []string{"serve", "--port", "{port}"}, c.Backend.Args)
	assert.True(t, c.Backend.StopOnExit)
	assert.Equal(t, 2*time.Second, c.Backend.StopTimeout)
	assert.Equal(t, "/tmp/analyzer-logs", c.Backend.Log.Dir)
	assert.Equal(t, 5, c.Backend.Log.MaxSizeMB)
	assert.Equal(t, 5, c.Readiness.MaxAttempts)
	assert.Equal(t, 250*time.Millisecond, c.Readiness.Interval)
	assert.Equal(t, "debug", c.Log.Level)
	assert.Equal(t, "json", c.Log.Format)
	assert.True(t, c.History.Enabled)

	ds := c.Detectors()
	require.Len(t, ds, 3)
	assert.Equal(t, "tcp:127.0.0.1:9100", ds[0].Describe())
	assert.Equal(t, "pidfile:/tmp/analyzer.pid", ds[1].Describe())
	assert.IsType(t, detector.CommandDetector{}, ds[2])

	tmpl, err := c.BackendTemplate()
	require.NoError(t, err)
	assert.Contains(t, tmpl.Env, "MODE=desktop")
	assert.Equal(t, "/tmp/analyzer.pid", tmpl.PIDFile)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("SIDECAR_BACKEND_PORT", "9200")
	c, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 9200, c.Backend.Port)
	assert.Equal(t, 30, c.Readiness.MaxAttempts)
}

func TestLoad_Invalid(t *testing.T) {
	cases := map[string]string{
		"zero attempts":     "[readiness]\nmax_attempts = 0\n",
		"negative interval": "[readiness]\ninterval = \"-1s\"\n",
		"bad port":          "[backend]\nport = 70000\n",
		"history no dsn":    "[history]\nenabled = true\n",
		"unknown detector":  "[[backend.detectors]]\ntype = \"http\"\n",
		"empty name":        "[backend]\nname = \" \"\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeTOML(t, body))
			assert.Error(t, err)
		})
	}

	_, err := Load(writeTOML(t, "this is not toml ="))
	assert.Error(t, err)
}

func TestWrite_RoundTrip(t *testing.T) {
	p := filepath.Join(t.TempDir(), "nested", "sidecar.toml")
	d := Default()
	d.Backend.StopTimeout = 3 * time.Second
	require.NoError(t, Write(p, d, false))

	b, err := os.ReadFile(p)
	require.NoError(t, err)
	assert.Regexp(t, `interval = ["']1s["']`, string(b))

	c, err := Load(p)
	require.NoError(t, err)
	assert.Equal(t, d.Backend.Name, c.Backend.Name)
	assert.Equal(t, d.Backend.Args, c.Backend.Args)
	assert.Equal(t, 3*time.Second, c.Backend.StopTimeout)
	assert.Equal(t, d.Readiness, c.Readiness)
	assert.Equal(t, d.Server, c.Server)

	assert.Error(t, Write(p, d, false), "existing file must not be replaced")
	assert.NoError(t, Write(p, d, true))
}

func TestBackendEnv_Files(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, "backend.env")
	require.NoError(t, os.WriteFile(envFile, []byte("MODEL_DIR=/models\nMODE=file\n"), 0o644))
	c := Default()
	c.Backend.EnvFiles = []string{envFile}
	c.Backend.Env = []string{"MODE=explicit"}
	environ, err := c.BackendEnv()
	require.NoError(t, err)
	assert.Contains(t, environ, "MODEL_DIR=/models")
	assert.Contains(t, environ, "MODE=explicit")
	assert.NotContains(t, environ, "MODE=file")

	c.Backend.EnvFiles = []string{filepath.Join(dir, "missing.env")}
	_, err = c.BackendEnv()
	assert.Error(t, err)
}

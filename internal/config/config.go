package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/viper"

	"github.com/loykin/sidecar/internal/detector"
	"github.com/loykin/sidecar/internal/env"
	"github.com/loykin/sidecar/internal/logger"
	"github.com/loykin/sidecar/internal/process"
	"github.com/loykin/sidecar/internal/supervisor"
)

// EnvPrefix is the prefix of environment overrides, e.g. SIDECAR_BACKEND_PORT.
const EnvPrefix = "SIDECAR"

// Config represents the top-level TOML structure.
type Config struct {
	Backend   BackendConfig   `toml:"backend" mapstructure:"backend"`
	Readiness ReadinessConfig `toml:"readiness" mapstructure:"readiness"`
	Log       logger.Config   `toml:"log" mapstructure:"log"`
	Metrics   MetricsConfig   `toml:"metrics" mapstructure:"metrics"`
	History   HistoryConfig   `toml:"history" mapstructure:"history"`
	Server    ServerConfig    `toml:"server" mapstructure:"server"`
	UI        UIConfig        `toml:"ui" mapstructure:"ui"`
}

type BackendConfig struct {
	Name        string            `toml:"name" mapstructure:"name"`
	Host        string            `toml:"host" mapstructure:"host"`
	Port        int               `toml:"port" mapstructure:"port"`
	Args        []string          `toml:"args" mapstructure:"args"`
	SidecarDir  string            `toml:"sidecar_dir" mapstructure:"sidecar_dir"`
	LookupPath  bool              `toml:"lookup_path" mapstructure:"lookup_path"`
	WorkDir     string            `toml:"work_dir" mapstructure:"work_dir"`
	Env         []string          `toml:"env" mapstructure:"env"`
	EnvFiles    []string          `toml:"env_files" mapstructure:"env_files"`
	PIDFile     string            `toml:"pidfile" mapstructure:"pidfile"`
	StopOnExit  bool              `toml:"stop_on_exit" mapstructure:"stop_on_exit"`
	StopTimeout time.Duration     `toml:"stop_timeout" mapstructure:"stop_timeout"`
	Log         logger.FileConfig `toml:"log" mapstructure:"log"`
	Detectors   []DetectorEntry   `toml:"detectors" mapstructure:"detectors"`
}

// DetectorEntry adds a liveness check reported by `sidecar status`.
type DetectorEntry struct {
	Type    string `toml:"type" mapstructure:"type"` // pidfile, pid, command or tcp
	Path    string `toml:"path" mapstructure:"path"`
	PID     int    `toml:"pid" mapstructure:"pid"`
	Command string `toml:"command" mapstructure:"command"`
	Addr    string `toml:"addr" mapstructure:"addr"`
}

type ReadinessConfig struct {
	MaxAttempts  int           `toml:"max_attempts" mapstructure:"max_attempts"`
	Interval     time.Duration `toml:"interval" mapstructure:"interval"`
	ProbeTimeout time.Duration `toml:"probe_timeout" mapstructure:"probe_timeout"`
}

type MetricsConfig struct {
	Enabled bool   `toml:"enabled" mapstructure:"enabled"`
	Listen  string `toml:"listen" mapstructure:"listen"`
}

type HistoryConfig struct {
	Enabled bool   `toml:"enabled" mapstructure:"enabled"`
	DSN     string `toml:"dsn" mapstructure:"dsn"`
}

type ServerConfig struct {
	Enabled bool   `toml:"enabled" mapstructure:"enabled"`
	Listen  string `toml:"listen" mapstructure:"listen"`
}

type UIConfig struct {
	Title string `toml:"title" mapstructure:"title"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Backend: BackendConfig{
			Name:        "lightweight_server",
			Host:        supervisor.DefaultEndpoint.Host,
			Port:        supervisor.DefaultEndpoint.Port,
			Args:        []string{"--port", supervisor.PortPlaceholder},
			StopTimeout: 5 * time.Second,
		},
		Readiness: ReadinessConfig{
			MaxAttempts:  supervisor.DefaultBudget.MaxAttempts,
			Interval:     supervisor.DefaultBudget.Interval,
			ProbeTimeout: detector.DefaultProbeTimeout,
		},
		Log: logger.Config{
			Level:  "info",
			Format: "text",
			Color:  true,
		},
		Metrics: MetricsConfig{Listen: "127.0.0.1:9464"},
		History: HistoryConfig{},
		Server:  ServerConfig{Enabled: true, Listen: "127.0.0.1:8765"},
		UI:      UIConfig{Title: "sidecar"},
	}
}

func setDefaults(v *viper.Viper, d Config) {
	v.SetDefault("backend.name", d.Backend.Name)
	v.SetDefault("backend.host", d.Backend.Host)
	v.SetDefault("backend.port", d.Backend.Port)
	v.SetDefault("backend.args", d.Backend.Args)
	v.SetDefault("backend.sidecar_dir", d.Backend.SidecarDir)
	v.SetDefault("backend.lookup_path", d.Backend.LookupPath)
	v.SetDefault("backend.work_dir", d.Backend.WorkDir)
	v.SetDefault("backend.pidfile", d.Backend.PIDFile)
	v.SetDefault("backend.stop_on_exit", d.Backend.StopOnExit)
	v.SetDefault("backend.stop_timeout", d.Backend.StopTimeout)
	v.SetDefault("readiness.max_attempts", d.Readiness.MaxAttempts)
	v.SetDefault("readiness.interval", d.Readiness.Interval)
	v.SetDefault("readiness.probe_timeout", d.Readiness.ProbeTimeout)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
	v.SetDefault("log.color", d.Log.Color)
	v.SetDefault("log.path", d.Log.Path)
	v.SetDefault("metrics.enabled", d.Metrics.Enabled)
	v.SetDefault("metrics.listen", d.Metrics.Listen)
	v.SetDefault("history.enabled", d.History.Enabled)
	v.SetDefault("history.dsn", d.History.DSN)
	v.SetDefault("server.enabled", d.Server.Enabled)
	v.SetDefault("server.listen", d.Server.Listen)
	v.SetDefault("ui.title", d.UI.Title)
}

// Load reads path over the defaults and applies SIDECAR_* environment overrides.
// An empty path, or one that does not exist, yields the defaults.
func Load(path string) (Config, error) {
	v := viper.New()
	setDefaults(v, Default())
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			v.SetConfigFile(path)
			v.SetConfigType("toml")
			if err := v.ReadInConfig(); err != nil {
				return Config{}, fmt.Errorf("read config %s: %w", path, err)
			}
		} else if !errors.Is(err, os.ErrNotExist) {
			return Config{}, err
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Validate checks ranges that would otherwise surface as runtime failures.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Backend.Name) == "" {
		return errors.New("backend.name is required")
	}
	if err := c.Endpoint().Validate(); err != nil {
		return fmt.Errorf("backend: %w", err)
	}
	if err := c.Budget().Validate(); err != nil {
		return fmt.Errorf("readiness: %w", err)
	}
	if c.Readiness.ProbeTimeout < 0 {
		return errors.New("readiness.probe_timeout must be >= 0")
	}
	if c.History.Enabled && strings.TrimSpace(c.History.DSN) == "" {
		return errors.New("history.dsn is required when history is enabled")
	}
	for i, d := range c.Backend.Detectors {
		switch strings.ToLower(d.Type) {
		case "pidfile", "pid", "command", "tcp":
		default:
			return fmt.Errorf("backend.detectors[%d]: unknown type %q", i, d.Type)
		}
	}
	return nil
}

func (c Config) Endpoint() supervisor.Endpoint {
	return supervisor.Endpoint{Host: c.Backend.Host, Port: c.Backend.Port}
}

func (c Config) Budget() supervisor.RetryBudget {
	return supervisor.RetryBudget{MaxAttempts: c.Readiness.MaxAttempts, Interval: c.Readiness.Interval}
}

func (c Config) Resolver() process.Resolver {
	return process.Resolver{Dir: c.Backend.SidecarDir, Lookup: c.Backend.LookupPath}
}

// BackendEnv composes the backend's environment: OS env, then env_files, then env entries.
func (c Config) BackendEnv() ([]string, error) {
	e := env.New().FromOS()
	if err := e.LoadFiles(c.Backend.EnvFiles...); err != nil {
		return nil, fmt.Errorf("backend.env_files: %w", err)
	}
	return e.Merge(c.Backend.Env), nil
}

// BackendTemplate returns the spawn template shared by every launch.
func (c Config) BackendTemplate() (process.Spec, error) {
	environ, err := c.BackendEnv()
	if err != nil {
		return process.Spec{}, err
	}
	return process.Spec{
		WorkDir: c.Backend.WorkDir,
		Env:     environ,
		PIDFile: c.Backend.PIDFile,
		Log:     c.Backend.Log,
	}, nil
}

// Detectors builds the liveness checks reported by `sidecar status`: the TCP endpoint,
// the pidfile when configured, then any extra entries.
func (c Config) Detectors() []detector.Detector {
	ds := []detector.Detector{detector.TCPDetector{Addr: c.Endpoint().Addr(), Timeout: c.Readiness.ProbeTimeout}}
	if c.Backend.PIDFile != "" {
		ds = append(ds, detector.PIDFileDetector{PIDFile: c.Backend.PIDFile})
	}
	for _, d := range c.Backend.Detectors {
		switch strings.ToLower(d.Type) {
		case "pidfile":
			ds = append(ds, detector.PIDFileDetector{PIDFile: d.Path})
		case "pid":
			ds = append(ds, detector.PIDDetector{PID: d.PID})
		case "command":
			ds = append(ds, detector.CommandDetector{Command: d.Command})
		case "tcp":
			ds = append(ds, detector.TCPDetector{Addr: d.Addr, Timeout: c.Readiness.ProbeTimeout})
		}
	}
	return ds
}

// Write marshals c as TOML to path, creating parent directories. An existing file is
// only replaced when overwrite is set.
func Write(path string, c Config, overwrite bool) error {
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config %s already exists", path)
		}
	}
	b, err := toml.Marshal(c.document())
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return err
		}
	}
	return os.WriteFile(path, b, 0o644)
}

// document renders c for TOML output with durations as strings ("1s") rather than
// integer nanoseconds, so the written file reads like a hand-written one.
func (c Config) document() map[string]any {
	b := c.Backend
	backend := map[string]any{
		"name":         b.Name,
		"host":         b.Host,
		"port":         b.Port,
		"args":         b.Args,
		"sidecar_dir":  b.SidecarDir,
		"lookup_path":  b.LookupPath,
		"work_dir":     b.WorkDir,
		"env":          nonNil(b.Env),
		"env_files":    nonNil(b.EnvFiles),
		"pidfile":      b.PIDFile,
		"stop_on_exit": b.StopOnExit,
		"stop_timeout": b.StopTimeout.String(),
		"log":          b.Log,
	}
	if len(b.Detectors) > 0 {
		backend["detectors"] = b.Detectors
	}
	return map[string]any{
		"backend": backend,
		"readiness": map[string]any{
			"max_attempts":  c.Readiness.MaxAttempts,
			"interval":      c.Readiness.Interval.String(),
			"probe_timeout": c.Readiness.ProbeTimeout.String(),
		},
		"log":     c.Log,
		"metrics": c.Metrics,
		"history": c.History,
		"server":  c.Server,
		"ui":      c.UI,
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

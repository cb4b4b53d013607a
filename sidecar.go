package sidecar

import (
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	cfg "github.com/loykin/sidecar/internal/config"
	"github.com/loykin/sidecar/internal/dialog"
	"github.com/loykin/sidecar/internal/files"
	"github.com/loykin/sidecar/internal/history"
	"github.com/loykin/sidecar/internal/history/factory"
	"github.com/loykin/sidecar/internal/metrics"
	iapi "github.com/loykin/sidecar/internal/server"
	"github.com/loykin/sidecar/internal/supervisor"
)

// Re-export core types for external consumers.
// These are aliases so conversions are zero-cost.

type Config = cfg.Config

type Endpoint = supervisor.Endpoint

type RetryBudget = supervisor.RetryBudget

type Outcome = supervisor.Outcome

type State = supervisor.State

type Result = supervisor.Result

type Status = supervisor.Status

type Supervisor = supervisor.Orchestrator

type HistorySink = history.Sink

type HistoryEvent = history.Event

func DefaultConfig() Config { return cfg.Default() }

func LoadConfig(path string) (Config, error) { return cfg.Load(path) }

// NewSupervisor builds the launch-and-wait sequence described by c.
// sink and reveal may be nil.
func NewSupervisor(c Config, sink HistorySink, reveal func(), log *slog.Logger) (*Supervisor, error) {
	tmpl, err := c.BackendTemplate()
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = slog.Default()
	}
	launcher := &supervisor.Launcher{
		Resolver:     c.Resolver(),
		Template:     tmpl,
		ProbeTimeout: c.Readiness.ProbeTimeout,
		Logger:       log,
	}
	return supervisor.New(supervisor.Options{
		Backend:  c.Backend.Name,
		Args:     c.Backend.Args,
		Endpoint: c.Endpoint(),
		Budget:   c.Budget(),
		Launcher: launcher,
		Sink:     sink,
		Reveal:   reveal,
		Logger:   log,
	}), nil
}

// OpenHistorySink opens the sink named by dsn (sqlite path or URL, postgres:// or clickhouse://).
func OpenHistorySink(dsn string) (HistorySink, error) { return factory.NewSinkFromDSN(dsn) }

// NewCommandServer starts the loopback command API on addr with native file dialogs.
func NewCommandServer(addr string, status iapi.StatusProvider, title string, withMetrics bool) (*http.Server, error) {
	r := iapi.NewRouter(iapi.Options{
		Dialogs: dialog.Native{Title: title},
		Files:   files.New(nil),
		Status:  status,
		Metrics: withMetrics,
	})
	return iapi.NewServer(addr, r)
}

// Metrics helpers (public facade)

func RegisterMetrics(r prometheus.Registerer) error { return metrics.Register(r) }
func RegisterMetricsDefault() error                 { return metrics.Register(prometheus.DefaultRegisterer) }

// ServeMetrics binds addr and serves /metrics from the default registry in the background.
// It returns any immediate listen error.
func ServeMetrics(addr string) (*http.Server, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	srv := &http.Server{
		Addr:              ln.Addr().String(),
		Handler:           mux,
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("metrics server stopped", "error", err)
		}
	}()
	return srv, nil
}

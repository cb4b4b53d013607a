package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/loykin/sidecar"
	"github.com/loykin/sidecar/internal/logger"
	"github.com/loykin/sidecar/internal/metrics"
	"github.com/loykin/sidecar/internal/ui"
)

const sampleInterval = 5 * time.Second

// Run executes the full shell until the user quits or the process is interrupted.
func (c *command) Run(ctx context.Context, f RunFlags) error {
	cfg, err := c.loadConfig()
	if err != nil {
		return err
	}

	// the terminal UI owns stderr, so logs only go to the configured file
	var closer io.Closer
	if f.Headless {
		closer = logger.Setup(cfg.Log)
	} else {
		var l *slog.Logger
		l, closer = cfg.Log.New(nil)
		slog.SetDefault(l)
	}
	defer func() { _ = closer.Close() }()
	log := slog.Default()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Metrics.Enabled {
		if err := sidecar.RegisterMetricsDefault(); err != nil {
			return fmt.Errorf("register metrics: %w", err)
		}
		msrv, err := sidecar.ServeMetrics(cfg.Metrics.Listen)
		if err != nil {
			return fmt.Errorf("metrics listen %s: %w", cfg.Metrics.Listen, err)
		}
		defer shutdownServer(msrv)
		log.Info("metrics listening", "addr", msrv.Addr)
	}

	var sink sidecar.HistorySink
	if cfg.History.Enabled {
		s, err := sidecar.OpenHistorySink(cfg.History.DSN)
		if err != nil {
			// history is optional; the shell keeps running without it
			log.Warn("history disabled", "error", err)
		} else {
			sink = s
			if cl, ok := s.(io.Closer); ok {
				defer func() { _ = cl.Close() }()
			}
		}
	}

	var (
		host    ui.Host
		program *tea.Program
	)
	if f.Headless {
		host = ui.NewHeadlessHost(log)
	} else {
		program = ui.NewProgram(ui.New(ui.Options{
			Title:    cfg.UI.Title,
			Endpoint: cfg.Endpoint().Addr(),
			APIAddr:  apiAddr(cfg.Server.Enabled, cfg.Server.Listen),
		}), tea.WithContext(ctx))
		host = ui.TeaHost{Program: program}
	}
	revealer := ui.NewRevealer(host, log)

	orch, err := sidecar.NewSupervisor(cfg, sink, revealer.Reveal, log)
	if err != nil {
		return err
	}

	if cfg.Server.Enabled {
		srv, err := sidecar.NewCommandServer(cfg.Server.Listen, orch, cfg.UI.Title, cfg.Metrics.Enabled)
		if err != nil {
			return fmt.Errorf("command API listen %s: %w", cfg.Server.Listen, err)
		}
		defer shutdownServer(srv)
		log.Info("command API listening", "addr", srv.Addr)
	}

	onOutcome := func(r sidecar.Result) {
		if r.PID > 0 && cfg.Metrics.Enabled {
			go metrics.WatchBackend(ctx, int32(r.PID), sampleInterval)
		}
		if program != nil {
			program.Send(ui.OutcomeMsg{Result: r})
		}
	}
	results, err := orch.Start(ctx, onOutcome)
	if err != nil {
		return err
	}

	var res sidecar.Result
	if program != nil {
		if _, err := program.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
			log.Error("terminal UI failed", "error", err)
		}
		// quitting the UI abandons a wait still in progress
		stop()
		res = <-results
	} else {
		res = <-results
		if !f.Once {
			<-ctx.Done()
		}
	}

	// the channel closes once the launch event is recorded; the sink is closed on return
	for range results {
	}

	if cfg.Backend.StopOnExit {
		if err := orch.Shutdown(cfg.Backend.StopTimeout); err != nil {
			log.Warn("backend stop", "error", err)
		}
	}

	if f.Once && !res.Outcome.Ready() {
		if res.Err != nil {
			return fmt.Errorf("backend %s: %w", res.Outcome, res.Err)
		}
		return fmt.Errorf("backend %s", res.Outcome)
	}
	return nil
}

func apiAddr(enabled bool, listen string) string {
	if !enabled {
		return ""
	}
	return listen
}

func shutdownServer(srv *http.Server) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctx)
}

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/loykin/sidecar/internal/config"
	"github.com/loykin/sidecar/internal/detector"
	"github.com/loykin/sidecar/internal/files"
	"github.com/loykin/sidecar/internal/history"
	"github.com/loykin/sidecar/internal/metrics"
	"github.com/loykin/sidecar/internal/supervisor"
	"github.com/loykin/sidecar/pkg/client"
)

// errNotLive makes probe exit with status 1 without an error message.
var errNotLive = errors.New("backend not live")

// command binds the CLI handlers to the persistent flags and output stream.
type command struct {
	global *GlobalFlags
	out    io.Writer
}

func (c *command) writer() io.Writer {
	if c.out == nil {
		return os.Stdout
	}
	return c.out
}

func (c *command) loadConfig() (config.Config, error) {
	cfg, err := config.Load(c.global.ConfigPath)
	if err != nil {
		return config.Config{}, fmt.Errorf("error loading config: %w", err)
	}
	return cfg, nil
}

func (c *command) printJSON(v any) error {
	enc := json.NewEncoder(c.writer())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// endpointFrom overrides the configured endpoint with the flags the user set.
func endpointFrom(cfg config.Config, host string, port int, changed func(string) bool) supervisor.Endpoint {
	ep := cfg.Endpoint()
	if changed("host") {
		ep.Host = host
	}
	if changed("port") {
		ep.Port = port
	}
	return ep
}

// Probe attempts one connection and reports the result.
func (c *command) Probe(ctx context.Context, f ProbeFlags, changed func(string) bool) error {
	cfg, err := c.loadConfig()
	if err != nil {
		return err
	}
	ep := endpointFrom(cfg, f.Host, f.Port, changed)
	if err := ep.Validate(); err != nil {
		return err
	}
	timeout := cfg.Readiness.ProbeTimeout
	if changed("timeout") {
		timeout = f.Timeout
	}
	live := detector.Probe(ctx, ep.Addr(), timeout)
	metrics.IncProbe(live)
	if !live {
		_, _ = fmt.Fprintf(c.writer(), "%s: not live\n", ep.Addr())
		return errNotLive
	}
	_, _ = fmt.Fprintf(c.writer(), "%s: live\n", ep.Addr())
	return nil
}

// Wait runs the readiness waiter without launching anything.
func (c *command) Wait(ctx context.Context, f WaitFlags, changed func(string) bool) error {
	cfg, err := c.loadConfig()
	if err != nil {
		return err
	}
	ep := endpointFrom(cfg, f.Host, f.Port, changed)
	if err := ep.Validate(); err != nil {
		return err
	}
	budget := cfg.Budget()
	if changed("attempts") {
		budget.MaxAttempts = f.Attempts
	}
	if changed("interval") {
		budget.Interval = f.Interval
	}
	if err := budget.Validate(); err != nil {
		return err
	}
	timeout := cfg.Readiness.ProbeTimeout
	if changed("timeout") {
		timeout = f.Timeout
	}
	w := &supervisor.Waiter{ProbeTimeout: timeout}
	ready, attempts := w.WaitReady(ctx, ep, budget)
	if !ready {
		return fmt.Errorf("%s after %d attempts: %w", ep.Addr(), attempts, supervisor.ErrTimeoutExceeded)
	}
	_, _ = fmt.Fprintf(c.writer(), "%s: ready after %d attempt(s)\n", ep.Addr(), attempts)
	return nil
}

type detectorReport struct {
	Detector string `json:"detector"`
	Alive    bool   `json:"alive"`
	Error    string `json:"error,omitempty"`
}

type statusReport struct {
	Endpoint  string                 `json:"endpoint"`
	Detectors []detectorReport       `json:"detectors"`
	PIDFile   *detector.PIDFileMeta  `json:"pidfile,omitempty"`
	Process   *metrics.ProcessSample `json:"process,omitempty"`
	Shell     *client.ShellStatus    `json:"shell,omitempty"`
}

// Status runs every configured detector and samples the backend named by the PID file.
func (c *command) Status(ctx context.Context) error {
	cfg, err := c.loadConfig()
	if err != nil {
		return err
	}
	rep := statusReport{Endpoint: cfg.Endpoint().Addr()}
	for _, d := range cfg.Detectors() {
		alive, err := d.Alive()
		dr := detectorReport{Detector: d.Describe(), Alive: alive}
		if err != nil {
			dr.Error = err.Error()
		}
		rep.Detectors = append(rep.Detectors, dr)
	}
	if cfg.Backend.PIDFile != "" {
		if pid, meta, err := detector.ReadPIDFile(cfg.Backend.PIDFile); err == nil {
			rep.PIDFile = &meta
			if sample, err := metrics.SampleProcess(ctx, int32(pid)); err == nil {
				rep.Process = &sample
			}
		}
	}
	if cfg.Server.Enabled {
		api := client.New(client.Config{BaseURL: "http://" + cfg.Server.Listen, Timeout: 2 * time.Second})
		if api.IsReachable(ctx) {
			if st, err := api.Status(ctx); err == nil {
				rep.Shell = &st
			}
		}
	}
	return c.printJSON(rep)
}

// History lists recorded events, most recent first.
func (c *command) History(ctx context.Context, f HistoryFlags) error {
	dsn := f.DSN
	if dsn == "" {
		cfg, err := c.loadConfig()
		if err != nil {
			return err
		}
		dsn = cfg.History.DSN
	}
	if dsn == "" {
		return errors.New("history dsn not configured; set [history].dsn or --dsn")
	}
	r, err := history.OpenReader(dsn)
	if err != nil {
		return err
	}
	defer func() { _ = r.Close() }()

	var events []history.Event
	if f.LaunchID != "" {
		events, err = r.ByLaunchID(ctx, f.LaunchID)
	} else {
		events, err = r.Recent(ctx, f.Limit)
	}
	if err != nil {
		return err
	}
	if events == nil {
		events = []history.Event{}
	}
	return c.printJSON(events)
}

// UniqueName prints the first free folder name under the base directory.
func (c *command) UniqueName(f UniqueNameFlags) error {
	name, err := files.New(nil).UniqueFolderName(f.Base, f.Name)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintln(c.writer(), name)
	return nil
}

// ConfigInit writes the default configuration to path.
func (c *command) ConfigInit(path string, f ConfigInitFlags) error {
	if err := config.Write(path, config.Default(), f.Force); err != nil {
		return err
	}
	_, _ = fmt.Fprintf(c.writer(), "wrote %s\n", path)
	return nil
}

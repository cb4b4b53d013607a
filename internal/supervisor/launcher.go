package supervisor

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/loykin/sidecar/internal/detector"
	"github.com/loykin/sidecar/internal/metrics"
	"github.com/loykin/sidecar/internal/process"
)

// ProbeFunc reports whether addr accepts a TCP connection within timeout.
type ProbeFunc func(ctx context.Context, addr string, timeout time.Duration) bool

// LaunchKind classifies a Launcher result.
type LaunchKind int

const (
	Skipped LaunchKind = iota
	Spawned
	LaunchFailed
)

func (k LaunchKind) String() string {
	switch k {
	case Skipped:
		return "skipped"
	case Spawned:
		return "spawned"
	case LaunchFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// LaunchResult is the outcome of EnsureStarted. Handle is set only for Spawned,
// Err only for LaunchFailed.
type LaunchResult struct {
	Kind   LaunchKind
	Handle *process.Handle
	Err    error
}

// Outcome is the launch step's own classification. Started is never terminal: the
// sequence goes on to wait and ends as ReadyWithinBudget or TimedOut.
func (r LaunchResult) Outcome() Outcome {
	switch r.Kind {
	case Skipped:
		return AlreadyRunning
	case Spawned:
		return Started
	default:
		return StartFailed
	}
}

// Launcher starts the backend unless something already listens on the endpoint.
type Launcher struct {
	Resolver     process.Resolver
	Template     process.Spec // WorkDir, Env, PIDFile and Log are copied into every spawn
	ProbeTimeout time.Duration
	Probe        ProbeFunc
	Logger       *slog.Logger
}

// PortPlaceholder in an argument is replaced by the endpoint port.
const PortPlaceholder = "{port}"

// EnsureStarted probes endpoint once and spawns executableRef with args when nothing answers.
// A nil args defaults to --port <endpoint.Port>. Failures are not retried.
func (l *Launcher) EnsureStarted(ctx context.Context, endpoint Endpoint, executableRef string, args []string) LaunchResult {
	return l.ensureStarted(ctx, endpoint, executableRef, args, "")
}

func (l *Launcher) ensureStarted(ctx context.Context, endpoint Endpoint, ref string, args []string, launchID string) LaunchResult {
	log := l.logger()
	addr := endpoint.Addr()
	live := l.probe()(ctx, addr, l.ProbeTimeout)
	metrics.IncProbe(live)
	if live {
		log.Info("backend already running", "addr", addr)
		metrics.IncSpawn(Skipped.String())
		return LaunchResult{Kind: Skipped}
	}

	path, err := l.Resolver.Resolve(ref)
	if err != nil {
		log.Error("backend executable not resolved", "ref", ref, "error", err)
		metrics.IncSpawn(LaunchFailed.String())
		return LaunchResult{Kind: LaunchFailed, Err: fmt.Errorf("%w: %w", ErrSpawnFailure, err)}
	}

	spec := l.Template
	spec.Name = backendName(ref)
	spec.Path = path
	spec.Args = expandArgs(args, endpoint.Port)
	h, err := process.Start(spec, launchID)
	if err != nil {
		log.Error("backend spawn failed", "path", path, "error", err)
		metrics.IncSpawn(LaunchFailed.String())
		return LaunchResult{Kind: LaunchFailed, Err: fmt.Errorf("%w: %s: %w", ErrSpawnFailure, path, err)}
	}
	log.Info("backend spawned", "path", path, "args", spec.Args, "pid", h.PID())
	metrics.IncSpawn(Spawned.String())
	return LaunchResult{Kind: Spawned, Handle: h}
}

func (l *Launcher) probe() ProbeFunc {
	if l.Probe != nil {
		return l.Probe
	}
	return detector.Probe
}

func (l *Launcher) logger() *slog.Logger {
	if l.Logger != nil {
		return l.Logger
	}
	return slog.Default()
}

func expandArgs(args []string, port int) []string {
	p := strconv.Itoa(port)
	if args == nil {
		return []string{"--port", p}
	}
	out := make([]string, len(args))
	for i, a := range args {
		out[i] = strings.ReplaceAll(a, PortPlaceholder, p)
	}
	return out
}

func backendName(ref string) string {
	name := filepath.Base(ref)
	return strings.TrimSuffix(name, filepath.Ext(name))
}

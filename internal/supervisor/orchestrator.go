package supervisor

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/loykin/sidecar/internal/history"
	"github.com/loykin/sidecar/internal/metrics"
	"github.com/loykin/sidecar/internal/process"
)

// Result is produced once per supervision sequence.
type Result struct {
	Outcome  Outcome       `json:"outcome"`
	State    State         `json:"state"`
	Attempts int           `json:"attempts"`
	Elapsed  time.Duration `json:"elapsed"`
	LaunchID string        `json:"launch_id"`
	PID      int           `json:"pid,omitempty"`
	Err      error         `json:"-"`
}

// Error returns the failure reason, empty when the backend became ready.
func (r Result) Error() string {
	if r.Err == nil {
		return ""
	}
	return r.Err.Error()
}

// Options configures an Orchestrator.
type Options struct {
	Backend  string   // executable reference passed to the Launcher
	Args     []string // nil means --port <Endpoint.Port>
	Endpoint Endpoint
	Budget   RetryBudget
	Launcher *Launcher
	Waiter   *Waiter
	Sink     history.Sink // optional
	// Reveal runs after the terminal state is reached and the outcome callback returned.
	Reveal func()
	Logger *slog.Logger
}

// Orchestrator sequences launch and readiness wait for one application run.
type Orchestrator struct {
	opts    Options
	log     *slog.Logger
	started atomic.Bool

	mu       sync.Mutex
	state    State
	handle   *process.Handle
	launchID string
	result   *Result
}

// New returns an Orchestrator in state Idle. Zero Endpoint and Budget take the defaults.
func New(opts Options) *Orchestrator {
	if opts.Endpoint == (Endpoint{}) {
		opts.Endpoint = DefaultEndpoint
	}
	if opts.Budget == (RetryBudget{}) {
		opts.Budget = DefaultBudget
	}
	if opts.Launcher == nil {
		opts.Launcher = &Launcher{}
	}
	if opts.Waiter == nil {
		opts.Waiter = &Waiter{ProbeTimeout: opts.Launcher.ProbeTimeout, Probe: opts.Launcher.Probe}
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Orchestrator{opts: opts, log: log.With("component", "supervisor")}
}

// Run executes the sequence on the calling goroutine. onOutcome, when not nil, is called
// exactly once with the terminal result, before Reveal. Run returns after the launch event
// has been recorded.
func (o *Orchestrator) Run(ctx context.Context, onOutcome func(Result)) (Result, error) {
	if !o.started.CompareAndSwap(false, true) {
		return Result{}, ErrAlreadyStarted
	}
	res := o.sequence(ctx, onOutcome)
	o.record(o.log.With("launch_id", res.LaunchID), history.EventLaunch, res)
	return res, nil
}

// Start executes the sequence on a background goroutine. The returned channel receives
// the result as soon as the sequence ends and is closed once the launch event has been
// recorded, so a slow history sink never holds back the result.
func (o *Orchestrator) Start(ctx context.Context, onOutcome func(Result)) (<-chan Result, error) {
	if !o.started.CompareAndSwap(false, true) {
		return nil, ErrAlreadyStarted
	}
	ch := make(chan Result, 1)
	go func() {
		defer close(ch)
		res := o.sequence(ctx, onOutcome)
		ch <- res
		o.record(o.log.With("launch_id", res.LaunchID), history.EventLaunch, res)
	}()
	return ch, nil
}

func (o *Orchestrator) sequence(ctx context.Context, onOutcome func(Result)) Result {
	begin := time.Now()
	id := uuid.NewString()
	o.mu.Lock()
	o.launchID = id
	o.mu.Unlock()
	log := o.log.With("launch_id", id, "addr", o.opts.Endpoint.Addr())

	res := Result{LaunchID: id}
	if err := o.opts.Budget.Validate(); err != nil {
		// an invalid budget still produces a terminal result so the UI is revealed
		log.Error("invalid retry budget", "error", err)
		o.mustTransition(log, Launching)
		o.mustTransition(log, Failed)
		res.Outcome, res.Err = StartFailed, err
		return o.finish(log, res, begin, onOutcome)
	}

	o.mustTransition(log, Launching)
	lr := o.opts.Launcher.ensureStarted(ctx, o.opts.Endpoint, o.opts.Backend, o.opts.Args, id)
	log.Debug("launch step finished", "kind", lr.Kind, "outcome", lr.Outcome())
	switch lr.Kind {
	case LaunchFailed:
		o.mustTransition(log, Failed)
		res.Outcome, res.Err = StartFailed, lr.Err
		return o.finish(log, res, begin, onOutcome)
	case Spawned:
		o.mu.Lock()
		o.handle = lr.Handle
		o.mu.Unlock()
		res.PID = lr.Handle.PID()
	}

	o.mustTransition(log, Waiting)
	ready, attempts := o.opts.Waiter.WaitReady(ctx, o.opts.Endpoint, o.opts.Budget)
	res.Attempts = attempts
	if !ready {
		o.mustTransition(log, Failed)
		res.Outcome = TimedOut
		res.Err = fmt.Errorf("%w: %d attempts over %s", ErrTimeoutExceeded, attempts, o.opts.Budget.Upper())
		return o.finish(log, res, begin, onOutcome)
	}
	o.mustTransition(log, Ready)
	if lr.Kind == Skipped {
		res.Outcome = AlreadyRunning
	} else {
		res.Outcome = ReadyWithinBudget
	}
	return o.finish(log, res, begin, onOutcome)
}

func (o *Orchestrator) finish(log *slog.Logger, res Result, begin time.Time, onOutcome func(Result)) Result {
	res.Elapsed = time.Since(begin)
	res.State = o.State()
	o.mu.Lock()
	r := res
	o.result = &r
	o.mu.Unlock()

	if res.Err != nil {
		log.Warn("backend supervision finished", "outcome", res.Outcome, "attempts", res.Attempts, "elapsed", res.Elapsed, "error", res.Err)
	} else {
		log.Info("backend supervision finished", "outcome", res.Outcome, "attempts", res.Attempts, "elapsed", res.Elapsed, "pid", res.PID)
	}
	metrics.ObserveOutcome(string(res.Outcome), res.Elapsed.Seconds())

	if onOutcome != nil {
		onOutcome(res)
	}
	if o.opts.Reveal != nil {
		o.opts.Reveal()
	}
	return res
}

// transition moves the state machine forward, rejecting anything not in the transition table.
func (o *Orchestrator) transition(to State) (State, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	from := o.state
	if !canTransition(from, to) {
		return from, fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, from, to)
	}
	o.state = to
	return from, nil
}

func (o *Orchestrator) mustTransition(log *slog.Logger, to State) {
	from, err := o.transition(to)
	if err != nil {
		log.Error("state transition rejected", "error", err)
		return
	}
	log.Debug("state transition", "from", from, "to", to)
	metrics.RecordStateTransition(from.String(), to.String())
}

func (o *Orchestrator) record(log *slog.Logger, typ history.EventType, res Result) {
	if o.opts.Sink == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	e := history.Event{
		Type:       typ,
		OccurredAt: time.Now().UTC(),
		Record: history.Record{
			LaunchID:  res.LaunchID,
			Backend:   o.opts.Backend,
			Endpoint:  o.opts.Endpoint.Addr(),
			Outcome:   string(res.Outcome),
			State:     res.State.String(),
			Attempts:  res.Attempts,
			ElapsedMS: res.Elapsed.Milliseconds(),
			PID:       res.PID,
			Error:     res.Error(),
		},
	}
	if err := o.opts.Sink.Send(ctx, e); err != nil {
		log.Warn("history send failed", "event", typ, "error", err)
	}
}

// State returns the current state.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Handle returns the spawned backend, nil when none was spawned.
func (o *Orchestrator) Handle() *process.Handle {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.handle
}

// Status is a snapshot served by the command API and the status command.
type Status struct {
	State    State           `json:"state"`
	Endpoint string          `json:"endpoint"`
	LaunchID string          `json:"launch_id,omitempty"`
	Result   *Result         `json:"result,omitempty"`
	Error    string          `json:"error,omitempty"`
	Backend  *process.Status `json:"backend,omitempty"`
}

func (o *Orchestrator) Status() Status {
	o.mu.Lock()
	defer o.mu.Unlock()
	st := Status{State: o.state, Endpoint: o.opts.Endpoint.Addr(), LaunchID: o.launchID}
	if o.result != nil {
		r := *o.result
		st.Result = &r
		st.Error = r.Error()
	}
	if o.handle != nil {
		bs := o.handle.Snapshot()
		st.Backend = &bs
	}
	return st
}

// Shutdown stops a backend spawned by this Orchestrator and records a stop event.
// It does nothing when the backend was already running or never started.
func (o *Orchestrator) Shutdown(wait time.Duration) error {
	h := o.Handle()
	if h == nil {
		return nil
	}
	log := o.log.With("pid", h.PID())
	log.Info("stopping backend", "timeout", wait)
	err := h.Stop(wait)
	if err != nil {
		log.Error("backend stop failed", "error", err)
	}
	o.mu.Lock()
	var res Result
	if o.result != nil {
		res = *o.result
	}
	o.mu.Unlock()
	o.record(log, history.EventStop, res)
	return err
}

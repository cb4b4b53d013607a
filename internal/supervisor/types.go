package supervisor

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"
)

var (
	// ErrSpawnFailure wraps resolution and spawn errors of the backend executable.
	ErrSpawnFailure = errors.New("backend spawn failed")
	// ErrTimeoutExceeded is attached to a timed_out result.
	ErrTimeoutExceeded = errors.New("backend readiness timeout exceeded")
	// ErrAlreadyStarted is returned by a second Run or Start on the same Orchestrator.
	ErrAlreadyStarted = errors.New("supervision already started")
	// ErrIllegalTransition is returned when the state machine is asked to move backwards.
	ErrIllegalTransition = errors.New("illegal state transition")
)

// Endpoint is the loopback address the backend listens on.
type Endpoint struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

// DefaultEndpoint is 127.0.0.1:8000.
var DefaultEndpoint = Endpoint{Host: "127.0.0.1", Port: 8000}

// Addr returns host:port.
func (e Endpoint) Addr() string {
	return net.JoinHostPort(e.Host, strconv.Itoa(e.Port))
}

func (e Endpoint) Validate() error {
	if e.Host == "" {
		return errors.New("endpoint host is required")
	}
	if e.Port < 1 || e.Port > 65535 {
		return fmt.Errorf("endpoint port %d out of range", e.Port)
	}
	return nil
}

// RetryBudget bounds the readiness poll.
type RetryBudget struct {
	MaxAttempts int           `json:"max_attempts"`
	Interval    time.Duration `json:"interval"`
}

// DefaultBudget polls 30 times one second apart.
var DefaultBudget = RetryBudget{MaxAttempts: 30, Interval: time.Second}

func (b RetryBudget) Validate() error {
	if b.MaxAttempts < 1 {
		return fmt.Errorf("max attempts must be >= 1, got %d", b.MaxAttempts)
	}
	if b.Interval < 0 {
		return fmt.Errorf("interval must be >= 0, got %s", b.Interval)
	}
	return nil
}

// Upper is the total sleep time of an exhausted budget.
func (b RetryBudget) Upper() time.Duration {
	return time.Duration(b.MaxAttempts) * b.Interval
}

// Outcome classifies one supervision sequence. Started only describes the launch step
// (see LaunchResult.Outcome); a Result never carries it.
type Outcome string

const (
	AlreadyRunning    Outcome = "already_running"
	Started           Outcome = "started"
	StartFailed       Outcome = "start_failed"
	ReadyWithinBudget Outcome = "ready_within_budget"
	TimedOut          Outcome = "timed_out"
)

// Ready reports whether the backend was reachable at the end of the sequence.
func (o Outcome) Ready() bool {
	return o == AlreadyRunning || o == ReadyWithinBudget
}

// State is the orchestrator's position in Idle -> Launching -> Waiting -> {Ready, Failed}.
type State int

const (
	Idle State = iota
	Launching
	Waiting
	Ready
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Launching:
		return "launching"
	case Waiting:
		return "waiting"
	case Ready:
		return "ready"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool { return s == Ready || s == Failed }

func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

var transitions = map[State][]State{
	Idle:      {Launching},
	Launching: {Waiting, Failed},
	Waiting:   {Ready, Failed},
}

func canTransition(from, to State) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

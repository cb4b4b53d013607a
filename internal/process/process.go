package process

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"time"
)

// Status is a point-in-time snapshot of a spawned backend.
type Status struct {
	Name      string    `json:"name"`
	Running   bool      `json:"running"`
	PID       int       `json:"pid"`
	StartedAt time.Time `json:"started_at"`
	StoppedAt time.Time `json:"stopped_at"`
	ExitErr   string    `json:"exit_error,omitempty"`
}

// Handle owns a spawned backend for the lifetime of the shell.
// A monitor goroutine reaps the child; Done is closed once it has exited.
type Handle struct {
	mu        sync.Mutex
	spec      Spec
	cmd       *exec.Cmd
	status    Status
	exitErr   error
	stopping  bool
	done      chan struct{}
	outCloser io.WriteCloser
	errCloser io.WriteCloser
}

// Start spawns the backend described by spec. launchID is recorded in the PID file.
func Start(spec Spec, launchID string) (*Handle, error) {
	h := &Handle{spec: spec, done: make(chan struct{})}
	cmd := spec.BuildCommand()
	h.configureOutput(cmd)
	if err := cmd.Start(); err != nil {
		h.closeWriters()
		return nil, err
	}
	h.mu.Lock()
	h.cmd = cmd
	h.status = Status{Name: spec.Name, Running: true, PID: cmd.Process.Pid, StartedAt: time.Now()}
	h.mu.Unlock()

	if spec.PIDFile != "" {
		// best-effort: a missing pidfile only degrades `status`
		_ = writePIDFile(spec.PIDFile, cmd.Process.Pid, launchID)
	}
	go h.monitor()
	return h, nil
}

// configureOutput wires stdout/stderr to rotated files when configured, else to the null device.
func (h *Handle) configureOutput(cmd *exec.Cmd) {
	if !h.spec.Log.Enabled() {
		return // exec leaves nil streams connected to os.DevNull
	}
	outW, errW, err := h.spec.Log.Writers(h.spec.Name)
	if err != nil {
		slog.Warn("backend output discarded", "name", h.spec.Name, "error", err)
		return
	}
	h.outCloser, h.errCloser = outW, errW
	if outW != nil {
		cmd.Stdout = outW
	}
	if errW != nil {
		cmd.Stderr = errW
	}
}

func (h *Handle) monitor() {
	err := h.cmd.Wait()
	h.mu.Lock()
	h.status.Running = false
	h.status.StoppedAt = time.Now()
	h.exitErr = err
	if err != nil {
		h.status.ExitErr = err.Error()
	}
	pidFile := h.spec.PIDFile
	h.mu.Unlock()
	h.closeWriters()
	if pidFile != "" {
		_ = os.Remove(pidFile)
	}
	close(h.done)
}

func (h *Handle) closeWriters() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.outCloser != nil {
		_ = h.outCloser.Close()
		h.outCloser = nil
	}
	if h.errCloser != nil {
		_ = h.errCloser.Close()
		h.errCloser = nil
	}
}

// PID returns the backend's process ID.
func (h *Handle) PID() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.status.PID
}

// StartedAt returns when the backend was spawned.
func (h *Handle) StartedAt() time.Time {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.status.StartedAt
}

// Done is closed once the backend has exited and been reaped.
func (h *Handle) Done() <-chan struct{} { return h.done }

// ExitErr returns the error from cmd.Wait, nil while running or on a clean exit.
func (h *Handle) ExitErr() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.exitErr
}

// Snapshot returns a copy of the current status.
func (h *Handle) Snapshot() Status {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.status
}

// Stopping reports whether Stop has been requested.
func (h *Handle) Stopping() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.stopping
}

// Stop terminates the backend's process group, escalating to a kill after wait.
// It returns nil when the backend was already gone or exited due to the signal.
func (h *Handle) Stop(wait time.Duration) error {
	select {
	case <-h.done:
		return nil
	default:
	}
	h.mu.Lock()
	h.stopping = true
	proc := h.cmd.Process
	h.mu.Unlock()

	if err := terminateGroup(proc); err != nil && !errors.Is(err, os.ErrProcessDone) {
		_ = killGroup(proc)
	}
	select {
	case <-h.done:
		return nil
	case <-time.After(wait):
	}
	_ = killGroup(proc)
	select {
	case <-h.done:
		return nil
	case <-time.After(2 * time.Second):
		return fmt.Errorf("backend pid %d did not exit after kill", proc.Pid)
	}
}

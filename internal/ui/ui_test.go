package ui

import (
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loykin/sidecar/internal/supervisor"
)

type recordingHost struct {
	mu      sync.Mutex
	calls   []string
	hideErr error
}

func (h *recordingHost) Show(s Surface) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.calls = append(h.calls, "show:"+string(s))
	return nil
}

func (h *recordingHost) HideOrClose(s Surface) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.calls = append(h.calls, "hide:"+string(s))
	return h.hideErr
}

func TestRevealer_RunsOnce(t *testing.T) {
	h := &recordingHost{}
	r := NewRevealer(h, nil)
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.Reveal()
		}()
	}
	wg.Wait()
	assert.Equal(t, []string{"show:main", "hide:splashscreen"}, h.calls)
}

func TestRevealer_SplashFailureStillShowsMain(t *testing.T) {
	h := &recordingHost{hideErr: errors.New("no splash window")}
	NewRevealer(h, nil).Reveal()
	assert.Equal(t, []string{"show:main", "hide:splashscreen"}, h.calls)
}

func TestHeadlessHost(t *testing.T) {
	h := NewHeadlessHost(nil)
	assert.True(t, h.Visible(Splash))
	assert.False(t, h.Visible(Main))
	NewRevealer(h, nil).Reveal()
	assert.True(t, h.Visible(Main))
	assert.False(t, h.Visible(Splash))
	// closing an absent surface is fine
	require.NoError(t, h.HideOrClose(Splash))
}

func update(t *testing.T, m Model, msg tea.Msg) Model {
	t.Helper()
	next, _ := m.Update(msg)
	out, ok := next.(Model)
	require.True(t, ok)
	return out
}

func TestModel_SplashToMain(t *testing.T) {
	m := New(Options{Title: "Analyzer", Endpoint: "127.0.0.1:8000", APIAddr: "127.0.0.1:8765"})
	assert.Contains(t, m.View(), "Starting backend on 127.0.0.1:8000")

	res := supervisor.Result{Outcome: supervisor.ReadyWithinBudget, Attempts: 3, LaunchID: "0123456789abcdef", PID: 99, Elapsed: 2 * time.Second}
	m = update(t, m, OutcomeMsg{Result: res})
	// the outcome alone does not reveal main
	assert.Contains(t, m.View(), "Starting backend")

	m = update(t, m, showMsg{surface: Main})
	m = update(t, m, hideMsg{surface: Splash})
	v := m.View()
	assert.Contains(t, v, "Backend ready on 127.0.0.1:8000")
	assert.Contains(t, v, "launch 01234567")
	assert.Contains(t, v, "backend pid 99")
	assert.Contains(t, v, "http://127.0.0.1:8765")
	assert.False(t, strings.Contains(v, "Starting backend"))
}

func TestModel_FailureStatus(t *testing.T) {
	m := New(Options{Endpoint: "127.0.0.1:8000"})
	m = update(t, m, showMsg{surface: Main})
	assert.Contains(t, m.View(), "Backend status unknown")

	res := supervisor.Result{Outcome: supervisor.TimedOut, Err: supervisor.ErrTimeoutExceeded}
	m = update(t, m, OutcomeMsg{Result: res})
	assert.Contains(t, m.View(), "did not become ready")

	res = supervisor.Result{Outcome: supervisor.StartFailed, Err: supervisor.ErrSpawnFailure}
	m = update(t, m, OutcomeMsg{Result: res})
	assert.Contains(t, m.View(), "failed to start")
}

func TestModel_Quit(t *testing.T) {
	m := New(Options{})
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	require.NotNil(t, cmd)
	_, ok := cmd().(tea.QuitMsg)
	assert.True(t, ok)
}

func TestModel_EmptyWhenNothingVisible(t *testing.T) {
	m := New(Options{})
	m = update(t, m, hideMsg{surface: Splash})
	assert.Equal(t, "", m.View())
}

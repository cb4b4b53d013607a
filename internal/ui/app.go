package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/loykin/sidecar/internal/supervisor"
)

// Options configures the terminal host.
type Options struct {
	Title    string
	Endpoint string // backend address shown on both surfaces
	APIAddr  string // command API listen address, empty when disabled
}

// Model is the Bubble Tea model of the terminal host.
type Model struct {
	opts    Options
	styles  Styles
	spinner spinner.Model
	started time.Time
	width   int

	visible map[Surface]bool
	result  *supervisor.Result
}

// Messages

// OutcomeMsg delivers the supervision result to the event loop.
type OutcomeMsg struct{ Result supervisor.Result }

type showMsg struct{ surface Surface }

type hideMsg struct{ surface Surface }

// New creates the model with the splash visible.
func New(opts Options) Model {
	if opts.Title == "" {
		opts.Title = "sidecar"
	}
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	styles := defaultStyles()
	sp.Style = styles.Title
	return Model{
		opts:    opts,
		styles:  styles,
		spinner: sp,
		started: time.Now(),
		visible: map[Surface]bool{Splash: true},
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return m.spinner.Tick
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q", "esc":
			return m, tea.Quit
		}
		return m, nil

	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case OutcomeMsg:
		r := msg.Result
		m.result = &r
		return m, nil

	case showMsg:
		m.visible = copyVisible(m.visible)
		m.visible[msg.surface] = true
		return m, nil

	case hideMsg:
		m.visible = copyVisible(m.visible)
		delete(m.visible, msg.surface)
		return m, nil

	case spinner.TickMsg:
		if !m.visible[Splash] {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

// View implements tea.Model.
func (m Model) View() string {
	switch {
	case m.visible[Main]:
		return m.renderMain()
	case m.visible[Splash]:
		return m.renderSplash()
	default:
		return ""
	}
}

func (m Model) renderSplash() string {
	elapsed := time.Since(m.started).Truncate(time.Second)
	body := lipgloss.JoinVertical(lipgloss.Left,
		m.styles.Title.Render(m.opts.Title),
		"",
		fmt.Sprintf("%s Starting backend on %s", m.spinner.View(), m.opts.Endpoint),
		m.styles.Muted.Render(fmt.Sprintf("elapsed %s", elapsed)),
	)
	return m.styles.Box.Render(body)
}

func (m Model) renderMain() string {
	lines := []string{m.styles.Title.Render(m.opts.Title), ""}
	lines = append(lines, m.statusLine())
	if m.result != nil {
		lines = append(lines, m.styles.Muted.Render(fmt.Sprintf("launch %s  attempts %d  elapsed %s",
			shortID(m.result.LaunchID), m.result.Attempts, m.result.Elapsed.Truncate(time.Millisecond))))
		if m.result.PID > 0 {
			lines = append(lines, m.styles.Muted.Render(fmt.Sprintf("backend pid %d", m.result.PID)))
		}
	}
	if m.opts.APIAddr != "" {
		lines = append(lines, "", "Command API: http://"+m.opts.APIAddr)
	}
	lines = append(lines, "", m.styles.Key.Render("q")+m.styles.Muted.Render(" quit"))
	return m.styles.Box.Render(strings.Join(lines, "\n"))
}

func (m Model) statusLine() string {
	if m.result == nil {
		return m.styles.Muted.Render("Backend status unknown")
	}
	r := m.result
	switch r.Outcome {
	case supervisor.AlreadyRunning:
		return m.styles.Success.Render("Backend already running on " + m.opts.Endpoint)
	case supervisor.ReadyWithinBudget:
		return m.styles.Success.Render("Backend ready on " + m.opts.Endpoint)
	case supervisor.TimedOut:
		return m.styles.Danger.Render("Backend did not become ready: " + r.Error())
	default:
		return m.styles.Danger.Render("Backend failed to start: " + r.Error())
	}
}

func copyVisible(in map[Surface]bool) map[Surface]bool {
	out := make(map[Surface]bool, len(in)+1)
	for k, v := range in {
		out[k] = v
	}
	return out
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// TeaHost implements Host by sending visibility messages to a running program.
type TeaHost struct {
	Program *tea.Program
}

func (h TeaHost) Show(s Surface) error {
	h.Program.Send(showMsg{surface: s})
	return nil
}

func (h TeaHost) HideOrClose(s Surface) error {
	h.Program.Send(hideMsg{surface: s})
	return nil
}

// NewProgram builds the Bubble Tea program for m.
func NewProgram(m Model, opts ...tea.ProgramOption) *tea.Program {
	return tea.NewProgram(m, append([]tea.ProgramOption{tea.WithAltScreen()}, opts...)...)
}

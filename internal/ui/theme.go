package ui

import "github.com/charmbracelet/lipgloss"

// Styles holds the lipgloss styles used by the terminal host.
type Styles struct {
	Title   lipgloss.Style
	Muted   lipgloss.Style
	Success lipgloss.Style
	Danger  lipgloss.Style
	Box     lipgloss.Style
	Key     lipgloss.Style
}

func defaultStyles() Styles {
	return Styles{
		Title: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#bd93f9")),
		Muted: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#6272a4")),
		Success: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#50fa7b")),
		Danger: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#ff5555")),
		Box: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#44475a")).
			Padding(1, 3),
		Key: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#f1fa8c")),
	}
}

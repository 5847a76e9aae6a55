package tui

import "github.com/charmbracelet/lipgloss"

const (
	colorText   = lipgloss.Color("#e2e8f0")
	colorSubtle = lipgloss.Color("#94a3b8")
	colorPanel  = lipgloss.Color("#1e293b")
	colorError  = lipgloss.Color("#ef4444")
)

type styles struct {
	title     lipgloss.Style
	tab       lipgloss.Style
	activeTab lipgloss.Style
	frame     lipgloss.Style
	caption   lipgloss.Style
	label     lipgloss.Style
	summary   lipgloss.Style
	help      lipgloss.Style
	err       lipgloss.Style
}

// newStyles derives the player styles from a topic's accent color.
func newStyles(accent string) styles {
	if accent == "" {
		accent = "#6366f1"
	}
	a := lipgloss.Color(accent)
	return styles{
		title:     lipgloss.NewStyle().Bold(true).Foreground(a),
		tab:       lipgloss.NewStyle().Foreground(colorSubtle).Background(colorPanel).Padding(0, 1),
		activeTab: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#000000")).Background(a).Padding(0, 1),
		frame:     lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(a).Padding(0, 1),
		caption:   lipgloss.NewStyle().Italic(true).Foreground(colorText),
		label:     lipgloss.NewStyle().Bold(true).Foreground(a),
		summary:   lipgloss.NewStyle().Border(lipgloss.NormalBorder()).BorderForeground(colorSubtle),
		help:      lipgloss.NewStyle().Foreground(colorSubtle),
		err:       lipgloss.NewStyle().Foreground(colorError),
	}
}

package tui

import "github.com/charmbracelet/lipgloss"

type styles struct {
	frame    lipgloss.Style
	title    lipgloss.Style
	cursor   lipgloss.Style
	selected lipgloss.Style
	wallet   lipgloss.Style
	chain    lipgloss.Style
	empty    lipgloss.Style
	help     lipgloss.Style
}

func newStyles() styles {
	return styles{
		frame:    lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("62")).Padding(0, 1),
		title:    lipgloss.NewStyle().Bold(true).MarginBottom(1),
		cursor:   lipgloss.NewStyle().Foreground(lipgloss.Color("39")),
		selected: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39")),
		wallet:   lipgloss.NewStyle().Foreground(lipgloss.Color("252")),
		chain:    lipgloss.NewStyle().Foreground(lipgloss.Color("245")),
		empty:    lipgloss.NewStyle().Faint(true),
		help:     lipgloss.NewStyle().Foreground(lipgloss.Color("241")).MarginTop(1),
	}
}

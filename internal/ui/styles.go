package ui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/webdevtodayjason/context-forge-sub002/internal/config"
)

// Styles holds the rendered lipgloss styles for the dashboard, built once
// from the color settings.
type Styles struct {
	Title        lipgloss.Style
	Header       lipgloss.Style
	Selected     lipgloss.Style
	Active       lipgloss.Style
	Idle         lipgloss.Style
	Blocked      lipgloss.Style
	Error        lipgloss.Style
	Completed    lipgloss.Style
	Notification lipgloss.Style
	Help         lipgloss.Style
	Border       lipgloss.Style
}

func NewStyles(c config.Colors) Styles {
	return Styles{
		Title: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color(c.Title)).
			Padding(0, 1),

		Header: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color(c.Header)),

		Selected: lipgloss.NewStyle().
			Background(lipgloss.Color("236")).
			Foreground(lipgloss.Color("255")),

		Active: lipgloss.NewStyle().
			Foreground(lipgloss.Color(c.Active)),

		Idle: lipgloss.NewStyle().
			Foreground(lipgloss.Color(c.Idle)),

		Blocked: lipgloss.NewStyle().
			Foreground(lipgloss.Color(c.Blocked)).
			Bold(true),

		Error: lipgloss.NewStyle().
			Foreground(lipgloss.Color(c.Error)).
			Bold(true),

		Completed: lipgloss.NewStyle().
			Foreground(lipgloss.Color(c.Completed)),

		Notification: lipgloss.NewStyle().
			Foreground(lipgloss.Color(c.Notification)).
			Italic(true),

		Help: lipgloss.NewStyle().
			Foreground(lipgloss.Color(c.Help)),

		Border: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color(c.Border)).
			Padding(1, 2),
	}
}

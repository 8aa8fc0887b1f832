package ui

import "github.com/charmbracelet/lipgloss"

var (
	accentColor   = lipgloss.AdaptiveColor{Light: "#005F87", Dark: "#5FD7FF"}
	selectedColor = lipgloss.AdaptiveColor{Light: "#AF5F00", Dark: "#FFD75F"}
	mutedColor    = lipgloss.AdaptiveColor{Light: "#767676", Dark: "#8A8A8A"}
	errorColor    = lipgloss.AdaptiveColor{Light: "#AF0000", Dark: "#FF5F5F"}
	upColor       = lipgloss.AdaptiveColor{Light: "#00875F", Dark: "#5FD787"}
	downColor     = lipgloss.AdaptiveColor{Light: "#AF005F", Dark: "#FF87AF"}
)

type styles struct {
	Header   lipgloss.Style
	Title    lipgloss.Style
	Selected lipgloss.Style
	Muted    lipgloss.Style
	Error    lipgloss.Style
	Up       lipgloss.Style
	Down     lipgloss.Style
	Pane     lipgloss.Style
}

func newStyles(colors bool) styles {
	if !colors {
		plain := lipgloss.NewStyle()
		return styles{
			Header:   plain.Bold(true),
			Title:    plain.Bold(true),
			Selected: plain.Reverse(true),
			Muted:    plain,
			Error:    plain,
			Up:       plain,
			Down:     plain,
			Pane:     plain.BorderStyle(lipgloss.NormalBorder()),
		}
	}
	return styles{
		Header:   lipgloss.NewStyle().Bold(true).Foreground(accentColor),
		Title:    lipgloss.NewStyle().Bold(true),
		Selected: lipgloss.NewStyle().Bold(true).Foreground(selectedColor),
		Muted:    lipgloss.NewStyle().Foreground(mutedColor),
		Error:    lipgloss.NewStyle().Foreground(errorColor),
		Up:       lipgloss.NewStyle().Foreground(upColor),
		Down:     lipgloss.NewStyle().Foreground(downColor),
		Pane:     lipgloss.NewStyle().BorderStyle(lipgloss.NormalBorder()).BorderForeground(mutedColor),
	}
}

// Package theme holds the catppuccin mocha colours shared by every view.
package theme

import "github.com/charmbracelet/lipgloss"

var (
	Base     = lipgloss.Color("#1e1e2e")
	Mantle   = lipgloss.Color("#181825")
	Surface1 = lipgloss.Color("#45475a")
	Text     = lipgloss.Color("#cdd6f4")
	Subtext0 = lipgloss.Color("#a6adc8")
	Lavender = lipgloss.Color("#b4befe")
	Sapphire = lipgloss.Color("#74c7ec")
	Green    = lipgloss.Color("#a6e3a1")
	Yellow   = lipgloss.Color("#f9e2af")
	Peach    = lipgloss.Color("#fab387")
	Red      = lipgloss.Color("#f38ba8")

	Pane = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(Surface1).
		Foreground(Text).
		Padding(1)

	PaneActive = Pane.BorderForeground(Lavender)

	Title = lipgloss.NewStyle().Foreground(Sapphire).Bold(true)
	Muted = lipgloss.NewStyle().Foreground(Subtext0)
	Hot   = lipgloss.NewStyle().Foreground(Peach).Bold(true)
	Clock = lipgloss.NewStyle().Foreground(Green).Bold(true)
)

// State colours a session state label. Unknown states render muted.
func State(state string) string {
	var c lipgloss.TerminalColor
	switch state {
	case "ACTIVE":
		c = Green
	case "PAUSED":
		c = Yellow
	case "STOPPED":
		c = Lavender
	case "SPLIT":
		c = Sapphire
	default:
		return Muted.Render(state)
	}
	return lipgloss.NewStyle().Foreground(c).Bold(true).Render(state)
}

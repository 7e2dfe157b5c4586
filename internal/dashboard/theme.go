// Package dashboard provides a live terminal view of a running gateway
// process: active sessions, connection counts, and a tail of its logs.
package dashboard

import "github.com/charmbracelet/lipgloss"

// Colors — shared palette.
var (
	ColorPrimary   = lipgloss.Color("#7C3AED") // violet
	ColorSecondary = lipgloss.Color("#6366F1") // indigo
	ColorAccent    = lipgloss.Color("#F59E0B") // amber

	ColorSuccess = lipgloss.Color("#10B981") // emerald
	ColorWarning = lipgloss.Color("#F59E0B") // amber
	ColorError   = lipgloss.Color("#EF4444") // red
	ColorMuted   = lipgloss.Color("#6B7280") // gray-500
	ColorText    = lipgloss.Color("#E5E7EB") // gray-200
	ColorSubtle  = lipgloss.Color("#9CA3AF") // gray-400
)

// Shared styles used across the dashboard panels.
var (
	Title = lipgloss.NewStyle().
		Bold(true).
		Foreground(ColorPrimary).
		MarginBottom(1)

	Subtitle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorSecondary)

	Description = lipgloss.NewStyle().
			Foreground(ColorSubtle)

	Selected = lipgloss.NewStyle().
			Foreground(ColorPrimary).
			Bold(true)

	Dimmed = lipgloss.NewStyle().
		Foreground(ColorMuted)

	Success = lipgloss.NewStyle().
		Foreground(ColorSuccess)

	ErrorStyle = lipgloss.NewStyle().
			Foreground(ColorError)

	WarningStyle = lipgloss.NewStyle().
			Foreground(ColorWarning)

	Help = lipgloss.NewStyle().
		Foreground(ColorMuted)

	ActiveDot = lipgloss.NewStyle().
			Foreground(ColorSuccess).
			Render("●")

	InactiveDot = lipgloss.NewStyle().
			Foreground(ColorError).
			Render("●")
)

// StatusDot returns a colored dot for whether the gateway is reachable.
func StatusDot(reachable bool) string {
	if reachable {
		return ActiveDot
	}
	return InactiveDot
}

// StatusText returns a colored status label for whether the gateway is reachable.
func StatusText(reachable bool) string {
	if reachable {
		return Success.Render("reachable")
	}
	return ErrorStyle.Render("unreachable")
}

// LogLevelStyle returns a style for the given log level name.
func LogLevelStyle(level string) lipgloss.Style {
	switch level {
	case "DEBUG":
		return lipgloss.NewStyle().Foreground(ColorMuted)
	case "INFO":
		return lipgloss.NewStyle().Foreground(ColorSuccess)
	case "WARN":
		return lipgloss.NewStyle().Foreground(ColorWarning)
	case "ERROR":
		return lipgloss.NewStyle().Foreground(ColorError)
	default:
		return lipgloss.NewStyle().Foreground(ColorText)
	}
}

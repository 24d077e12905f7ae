package tui

import "github.com/charmbracelet/lipgloss"

var (
	primaryColor = lipgloss.Color("#7C3AED")
	mutedColor   = lipgloss.Color("#6B7280")
	errorColor   = lipgloss.Color("#EF4444")
	successColor = lipgloss.Color("#10B981")

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(primaryColor)

	selectedStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FFFFFF")).
			Background(primaryColor)

	itemStyle = lipgloss.NewStyle()

	mutedStyle = lipgloss.NewStyle().Foreground(mutedColor)

	outcomeStyles = map[string]lipgloss.Style{
		"end_of_stream": lipgloss.NewStyle().Foreground(successColor),
		"no_debugger":   lipgloss.NewStyle().Foreground(errorColor),
		"fork_failed":   lipgloss.NewStyle().Foreground(errorColor),
	}

	statusStyle = lipgloss.NewStyle().Foreground(mutedColor).Italic(true)
)

func outcomeStyle(outcome string) lipgloss.Style {
	if s, ok := outcomeStyles[outcome]; ok {
		return s
	}
	return mutedStyle
}

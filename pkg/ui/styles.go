package ui

import (
	"github.com/charmbracelet/lipgloss"
)

var (
	neonCyan    = lipgloss.Color("#00FFFF")
	neonMagenta = lipgloss.Color("#FF00FF")
	neonGreen   = lipgloss.Color("#39FF14")
	neonYellow  = lipgloss.Color("#FFFF00")
	neonRed     = lipgloss.Color("#FF0000")
	dimWhite    = lipgloss.Color("#B0B0B0")

	logoStyle = lipgloss.NewStyle().
			Foreground(neonCyan).
			Bold(true)

	headerStyle = lipgloss.NewStyle().
			Foreground(neonMagenta).
			Bold(true).
			Padding(0, 1)

	cellStyle = lipgloss.NewStyle().
			Padding(0, 1)

	borderStyle = lipgloss.NewStyle().
			Foreground(dimWhite)

	failedCellStyle = cellStyle.
			Foreground(neonRed)
)

// Color functions for terminal output
var (
	Cyan    = render(lipgloss.NewStyle().Foreground(neonCyan))
	Yellow  = render(lipgloss.NewStyle().Foreground(neonYellow))
	Red     = render(lipgloss.NewStyle().Foreground(neonRed))
	Green   = render(lipgloss.NewStyle().Foreground(neonGreen))
	Magenta = render(lipgloss.NewStyle().Foreground(neonMagenta))
	Dim     = render(lipgloss.NewStyle().Faint(true))
)

func render(style lipgloss.Style) func(string) string {
	return func(text string) string {
		return style.Render(text)
	}
}

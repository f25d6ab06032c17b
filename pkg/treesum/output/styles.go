package output

import "github.com/charmbracelet/lipgloss"

// ANSI 256 palette, shared by all formatters.
const (
	colorAdded     = lipgloss.Color("42")  // green
	colorRemoved   = lipgloss.Color("196") // red
	colorChanged   = lipgloss.Color("214") // orange
	colorUnchanged = lipgloss.Color("245") // gray
	colorPrimary   = lipgloss.Color("39")  // bright blue
)

var (
	addedStyle     = lipgloss.NewStyle().Foreground(colorAdded)
	removedStyle   = lipgloss.NewStyle().Foreground(colorRemoved)
	changedStyle   = lipgloss.NewStyle().Foreground(colorChanged)
	unchangedStyle = lipgloss.NewStyle().Foreground(colorUnchanged)

	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(colorPrimary)
	mutedStyle = lipgloss.NewStyle().Foreground(colorUnchanged)

	summaryBox = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorUnchanged).
			Padding(0, 1).
			MarginTop(1)
)

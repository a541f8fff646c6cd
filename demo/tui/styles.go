package tui

import "github.com/charmbracelet/lipgloss"

// Palette keyed by what is drawn: the hub, slots by state, and text roles
const (
	hubColor     = lipgloss.Color("#7D56F4")
	filledColor  = lipgloss.Color("#04B575")
	pendingColor = lipgloss.Color("#3C3C3C")
	failedColor  = lipgloss.Color("#FF5F5F")
	mutedColor   = lipgloss.Color("#8A8A8A")
	brightColor  = lipgloss.Color("#FAFAFA")
	frameColor   = lipgloss.Color("#874BFD")
)

const slotWidth = 22

var (
	TitleStyle = lipgloss.NewStyle().
		Bold(true).
		Foreground(hubColor).
		MarginTop(1).
		MarginBottom(1)

	StatusStyle = lipgloss.NewStyle().Foreground(filledColor)
	ErrorStyle  = lipgloss.NewStyle().Foreground(failedColor)
	InfoStyle   = lipgloss.NewStyle().Foreground(mutedColor)

	// BoxStyle frames the details and log panels
	BoxStyle = lipgloss.NewStyle().
		Border(lipgloss.NormalBorder()).
		BorderForeground(frameColor).
		Padding(0, 1)

	HighlightStyle = lipgloss.NewStyle().
		Bold(true).
		Foreground(brightColor).
		Background(hubColor).
		Padding(0, 1)

	HubStyle = lipgloss.NewStyle().
		Bold(true).
		Border(lipgloss.DoubleBorder()).
		BorderForeground(hubColor).
		Padding(0, 2)

	EmptySlotStyle = lipgloss.NewStyle().
		Width(slotWidth).
		Border(lipgloss.RoundedBorder()).
		BorderForeground(pendingColor).
		Foreground(mutedColor).
		Padding(0, 1)

	FilledSlotStyle = lipgloss.NewStyle().
		Width(slotWidth).
		Border(lipgloss.RoundedBorder()).
		BorderForeground(filledColor).
		Padding(0, 1)

	// SelectedSlotStyle marks the slot the details panel describes
	SelectedSlotStyle = FilledSlotStyle.
		BorderForeground(hubColor).
		BorderStyle(lipgloss.ThickBorder())
)

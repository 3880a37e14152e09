// Package cli holds the terminal side of qflow: styled messages, tables,
// prompts and the interactive review loop.
package cli

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/Veraticus/the-queue-must-flow/internal/model"
)

// Palette. Adaptive colors keep messages readable on light terminals.
var (
	accent  = lipgloss.AdaptiveColor{Light: "#3B5B8C", Dark: "#81A1C1"}
	green   = lipgloss.AdaptiveColor{Light: "#2E7D6B", Dark: "#A3BE8C"}
	amber   = lipgloss.AdaptiveColor{Light: "#9A6A00", Dark: "#EBCB8B"}
	red     = lipgloss.AdaptiveColor{Light: "#B03A2E", Dark: "#BF616A"}
	cyan    = lipgloss.AdaptiveColor{Light: "#1F6F8B", Dark: "#88C0D0"}
	muted   = lipgloss.AdaptiveColor{Light: "#7A7A7A", Dark: "#6C7086"}
	outline = lipgloss.AdaptiveColor{Light: "#C0C0C0", Dark: "#3B4252"}
)

var (
	// BoldStyle emphasizes totals and labels.
	BoldStyle = lipgloss.NewStyle().Bold(true)
	// WarningStyle marks cells that need attention.
	WarningStyle = lipgloss.NewStyle().Foreground(amber)
	// TableHeaderStyle is applied to table header cells.
	TableHeaderStyle = lipgloss.NewStyle().Bold(true).Foreground(accent)

	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(accent)
	promptStyle = lipgloss.NewStyle().Bold(true).Foreground(accent)
	boxStyle    = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(outline).
			Padding(1, 2)
)

// Icons used in headings and summaries.
const (
	QueueIcon  = "📦"
	LedgerIcon = "📒"
	ChartIcon  = "📊"
)

type tone struct {
	icon  string
	style lipgloss.Style
}

var (
	toneSuccess = tone{"✓", lipgloss.NewStyle().Foreground(green)}
	toneError   = tone{"✗", lipgloss.NewStyle().Foreground(red)}
	toneWarning = tone{"!", lipgloss.NewStyle().Foreground(amber)}
	toneInfo    = tone{"•", lipgloss.NewStyle().Foreground(cyan)}
)

func (t tone) render(message string) string {
	return t.style.Render(t.icon + " " + message)
}

// FormatSuccess renders a confirmation line.
func FormatSuccess(message string) string { return toneSuccess.render(message) }

// FormatError renders a failure line.
func FormatError(message string) string { return toneError.render(message) }

// FormatWarning renders a warning line.
func FormatWarning(message string) string { return toneWarning.render(message) }

// FormatInfo renders a neutral line.
func FormatInfo(message string) string { return toneInfo.render(message) }

// FormatTitle renders a section heading.
func FormatTitle(title string) string {
	return titleStyle.MarginBottom(1).Render(QueueIcon + " " + title)
}

// FormatPrompt renders a question waiting for input.
func FormatPrompt(prompt string) string {
	return promptStyle.Render(prompt + " → ")
}

var statusColors = map[model.Status]lipgloss.TerminalColor{
	model.StatusPending:   muted,
	model.StatusPreparing: amber,
	model.StatusReady:     cyan,
	model.StatusCompleted: green,
	model.StatusCancelled: red,
}

// FormatStatus renders a status in its board color.
func FormatStatus(status model.Status) string {
	color, ok := statusColors[status]
	if !ok {
		return string(status)
	}
	return lipgloss.NewStyle().Foreground(color).Render(string(status))
}

// RenderBox frames content under a title.
func RenderBox(title, content string) string {
	return boxStyle.Render(lipgloss.JoinVertical(lipgloss.Left, titleStyle.Render(title), content))
}

package cli

import (
	"github.com/charmbracelet/lipgloss"

	"ytdlp-queue/internal/model"
)

var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	mutedStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("203")).Bold(true)
	okStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true)
	warnStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Bold(true)
	runningStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("39")).Bold(true)
	panelStyle    = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	selectedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("230")).Background(lipgloss.Color("62")).Bold(true)
)

// statusLabel renders a fixed-width, coloured status tag.
func statusLabel(status model.Status) string {
	text := string(status)
	for len(text) < len("canceled") {
		text += " "
	}
	switch status {
	case model.StatusDone:
		return okStyle.Render(text)
	case model.StatusFailed:
		return errorStyle.Render(text)
	case model.StatusCanceled:
		return warnStyle.Render(text)
	case model.StatusRunning:
		return runningStyle.Render(text)
	default:
		return mutedStyle.Render(text)
	}
}

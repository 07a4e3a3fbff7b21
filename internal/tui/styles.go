package tui

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/ppiankov/guardscan/internal/models"
)

// Severity colors
var (
	colorHigh   = lipgloss.Color("#FF0000")
	colorMedium = lipgloss.Color("#FF8800")
	colorLow    = lipgloss.Color("#FFFF00")
	colorInfo   = lipgloss.Color("#00AAFF")
	colorGood   = lipgloss.Color("#00FF00")
	colorMuted  = lipgloss.Color("#888888")
	colorAccent = lipgloss.Color("#7B68EE")
	colorBorder = lipgloss.Color("#444444")
)

// Panel styles
var (
	styleHeader = lipgloss.NewStyle().
			Bold(true).
			Padding(0, 1).
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(colorBorder)

	styleDetailPanel = lipgloss.NewStyle().
				Padding(0, 1).
				BorderStyle(lipgloss.NormalBorder()).
				BorderTop(true).
				BorderForeground(colorBorder)

	styleFooter = lipgloss.NewStyle().
			Foreground(colorMuted).
			Padding(0, 1)

	styleSearchPrompt = lipgloss.NewStyle().
				Foreground(colorAccent).Bold(true)
)

// severityStyle returns the lipgloss style for a severity level.
func severityStyle(severity string) lipgloss.Style {
	switch severity {
	case models.SeverityHigh:
		return lipgloss.NewStyle().Foreground(colorHigh).Bold(true)
	case models.SeverityMedium:
		return lipgloss.NewStyle().Foreground(colorMedium).Bold(true)
	case models.SeverityLow:
		return lipgloss.NewStyle().Foreground(colorLow)
	case models.SeverityInformational:
		return lipgloss.NewStyle().Foreground(colorInfo)
	default:
		return lipgloss.NewStyle()
	}
}

// labelStyle returns the lipgloss style for a label.
func labelStyle(label models.Label) lipgloss.Style {
	switch label {
	case models.LabelTruePositive:
		return lipgloss.NewStyle().Foreground(colorHigh).Bold(true)
	case models.LabelFalsePositive:
		return lipgloss.NewStyle().Foreground(colorGood)
	case models.LabelInformational:
		return lipgloss.NewStyle().Foreground(colorInfo)
	default:
		return lipgloss.NewStyle().Foreground(colorMuted)
	}
}

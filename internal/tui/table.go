package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/lipgloss"
	"github.com/ppiankov/guardscan/internal/models"
)

var tableColumns = []table.Column{
	{Title: "Severity", Width: 13},
	{Title: "Rule", Width: 24},
	{Title: "Location", Width: 32},
	{Title: "Label", Width: 14},
	{Title: "Evidence", Width: 40},
}

// buildRows converts sample items to table rows.
func buildRows(items []sampleItem) []table.Row {
	rows := make([]table.Row, 0, len(items))
	for _, it := range items {
		rows = append(rows, table.Row{
			severityLabel(it.Severity),
			truncate(it.RuleID, tableColumns[1].Width),
			truncate(it.location(), tableColumns[2].Width),
			labelName(it.Label),
			truncate(firstLine(it.Sample.MatchedText), tableColumns[4].Width),
		})
	}
	return rows
}

func severityLabel(s string) string {
	return strings.ToUpper(s)
}

func labelName(l models.Label) string {
	switch l {
	case models.LabelTruePositive:
		return "TP"
	case models.LabelFalsePositive:
		return "FP"
	case models.LabelInformational:
		return "INFO"
	default:
		return "-"
	}
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i] + " ⏎"
	}
	return s
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	const ellipsis = "..."
	if maxLen <= len(ellipsis) {
		return s[:maxLen]
	}
	return s[:maxLen-len(ellipsis)] + ellipsis
}

func (it sampleItem) location() string {
	return fmt.Sprintf("%s:%d:%d", it.Sample.FilePath, it.Sample.LineNumber, it.Sample.ColumnOffset)
}

// newTable creates a bubbles table with standard columns and styling.
func newTable(rows []table.Row, height int) table.Model {
	t := table.New(
		table.WithColumns(tableColumns),
		table.WithRows(rows),
		table.WithFocused(true),
		table.WithHeight(height),
	)

	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(colorBorder).
		BorderBottom(true).
		Bold(true)
	s.Selected = s.Selected.
		Foreground(lipgloss.Color("#FFFFFF")).
		Background(colorAccent).
		Bold(false)
	t.SetStyles(s)

	return t
}

package tui

import (
	"fmt"
	"strings"
)

// detailHeight is the fixed number of lines for the detail panel.
const detailHeight = 6

// renderDetail produces the detail view for a selected sample.
func renderDetail(it *sampleItem, width int) string {
	if it == nil {
		return styleDetailPanel.Width(width).Render("No sample selected")
	}

	var b strings.Builder

	sevStyled := severityStyle(it.Severity).Render(strings.ToUpper(it.Severity))
	b.WriteString(fmt.Sprintf("%s  %s / %s  %s\n", sevStyled, it.RuleID, it.Category, labelStyle(it.Label).Render(string(it.Label))))
	b.WriteString(fmt.Sprintf("Location: %s\n", it.location()))

	lines := strings.Split(it.Sample.MatchedText, "\n")
	if len(lines) > 3 {
		lines = append(lines[:3], fmt.Sprintf("... (%d more lines)", len(lines)-3))
	}
	b.WriteString("Evidence: " + strings.Join(lines, "\n          "))
	b.WriteString("\n")
	b.WriteString(fmt.Sprintf("Fingerprint: %s", it.Sample.Fingerprint))

	return styleDetailPanel.Width(width).Render(b.String())
}

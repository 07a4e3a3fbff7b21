package tui

import (
	"fmt"
	"strings"

	"github.com/ppiankov/guardscan/internal/models"
)

// headerHeight is the number of terminal lines the header occupies.
const headerHeight = 5

// renderHeader produces the header string from report and labeling state.
func renderHeader(report *models.Report, labeled, sampled int, rate *models.RateEstimate, sparkline []int, width int) string {
	var b strings.Builder

	// Line 1: title and root
	b.WriteString(fmt.Sprintf("guardscan labeling  Root: %s", report.Root))
	if report.Incomplete {
		b.WriteString("  " + severityStyle(models.SeverityHigh).Render("INCOMPLETE"))
	}
	b.WriteString("\n")

	// Line 2: totals and labeling progress
	b.WriteString(fmt.Sprintf("Findings: %d  Rules: %d/%d  Labeled: %d/%d samples",
		report.Summary.TotalFindings, report.Summary.RulesMatched, report.Summary.RulesInCatalog, labeled, sampled))
	b.WriteString("\n")

	// Line 3: severity breakdown and selected rule rate
	sevParts := make([]string, 0, 4)
	for _, sev := range []string{models.SeverityHigh, models.SeverityMedium, models.SeverityLow, models.SeverityInformational} {
		if count := report.Summary.FindingsBySeverity[sev]; count > 0 {
			label := fmt.Sprintf("%s:%d", strings.ToUpper(sev[:1]), count)
			sevParts = append(sevParts, severityStyle(sev).Render(label))
		}
	}
	b.WriteString(strings.Join(sevParts, "  "))
	if rate != nil {
		b.WriteString(fmt.Sprintf("  %s TP rate: %s (%d labeled)", rate.RuleID, rate.FormatRate(), rate.SampleSize))
	}
	b.WriteString("\n")

	// Line 4: sparkline
	if len(sparkline) > 0 {
		b.WriteString("Trend: ")
		b.WriteString(renderSparkline(sparkline))
	}

	return styleHeader.Width(width).Render(b.String())
}

// renderSparkline converts an int slice to a unicode sparkline string.
func renderSparkline(values []int) string {
	if len(values) == 0 {
		return ""
	}

	bars := []rune{'▁', '▂', '▃', '▄', '▅', '▆', '▇', '█'}

	min, max := values[0], values[0]
	for _, v := range values {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}

	var b strings.Builder
	for _, v := range values {
		if max == min {
			b.WriteRune(bars[len(bars)/2])
		} else {
			normalized := float64(v-min) / float64(max-min)
			idx := int(normalized * float64(len(bars)-1))
			b.WriteRune(bars[idx])
		}
	}

	b.WriteString(fmt.Sprintf(" [%d→%d]", values[0], values[len(values)-1]))
	return b.String()
}

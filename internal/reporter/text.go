package reporter

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/ppiankov/guardscan/internal/aggregator"
	"github.com/ppiankov/guardscan/internal/models"
)

// maxTextRecommendations caps the actions listed in text output
const maxTextRecommendations = 5

// TextReporter generates human-readable text reports
type TextReporter struct {
	writer io.Writer
}

// NewTextReporter creates a new text reporter
func NewTextReporter(writer io.Writer) *TextReporter {
	return &TextReporter{
		writer: writer,
	}
}

// Generate creates a text report. Map-backed sections are printed in a
// fixed order so identical reports render identically.
func (r *TextReporter) Generate(report *models.Report) error {
	r.printHeader()
	r.printf("Root: %s\n", report.Root)
	r.printf("Seed: %d  Sample size: %d\n", report.Seed, report.SampleSize)
	if report.Incomplete {
		r.printf("Status: INCOMPLETE (scan was cancelled or files timed out)\n")
	}
	r.printf("\n")

	r.printOverallSummary(report)
	r.printResults(report.Results)

	if len(report.Recommendations) > 0 {
		top := aggregator.NewRecommendationGenerator().GetTopRecommendations(report.Recommendations, maxTextRecommendations)
		r.printRecommendations(top)
	}

	if len(report.Skipped) > 0 {
		r.printSkipped(report.Skipped)
	}

	return nil
}

// GenerateRates prints one line per rule estimate
func (r *TextReporter) GenerateRates(rates []models.RateEstimate) error {
	r.printf("True-Positive Rate Estimates:\n")
	r.printf("--------------------------------------------------\n")
	if len(rates) == 0 {
		r.printf("  No labeled rules.\n")
		return nil
	}
	for _, est := range rates {
		r.printf("  %-28s %-13s (%d/%d labeled true positive)\n",
			est.RuleID, est.FormatRate(), est.TruePositiveCount, est.SampleSize)
	}
	return nil
}

// GenerateTrend prints a comparison against a previous run
func (r *TextReporter) GenerateTrend(trend *models.Trend) error {
	r.printTrendInfo(trend)
	if len(trend.ByRule) == 0 {
		return nil
	}
	r.printf("\nChanged Rules:\n")
	for _, rc := range trend.ByRule {
		name := rc.RuleID
		if rc.RepositoryID != "" {
			name = rc.RepositoryID + "/" + rc.RuleID
		}
		r.printf("  %-36s %d → %d (%+d)\n", name, rc.Previous, rc.Current, rc.Change)
	}
	return nil
}

// printHeader prints the report header
func (r *TextReporter) printHeader() {
	r.printf("╔════════════════════════════════════════════╗\n")
	r.printf("║         guardscan Findings Report          ║\n")
	r.printf("╚════════════════════════════════════════════╝\n\n")
}

// printOverallSummary prints the overall summary section
func (r *TextReporter) printOverallSummary(report *models.Report) {
	s := report.Summary
	r.printf("Overall Summary:\n")
	r.printf("--------------------------------------------------\n")
	r.printf("  Files Scanned: %d\n", s.FilesScanned)
	r.printf("  Files Skipped: %d\n", s.FilesSkipped)
	r.printf("  Total Findings: %d\n", s.TotalFindings)
	r.printf("  Rules Matched: %d of %d\n\n", s.RulesMatched, s.RulesInCatalog)

	if len(s.FindingsByCategory) > 0 {
		r.printf("Findings by Category:\n")
		for _, c := range models.Categories {
			if n := s.FindingsByCategory[string(c)]; n > 0 {
				r.printf("  %s: %d\n", c, n)
			}
		}
		r.printf("\n")
	}

	if len(s.FindingsBySeverity) > 0 {
		r.printf("Findings by Severity:\n")
		for _, sev := range severitiesInOrder() {
			if n := s.FindingsBySeverity[sev]; n > 0 {
				r.printf("  %s: %d\n", sev, n)
			}
		}
		r.printf("\n")
	}
}

// printResults prints one block per (rule, repository) with literal evidence
func (r *TextReporter) printResults(results []models.RuleResult) {
	r.printf("Results:\n")
	r.printf("--------------------------------------------------\n")
	if len(results) == 0 {
		r.printf("  No findings.\n\n")
		return
	}

	for _, res := range results {
		r.printf("[%s] %s (%s)", strings.ToUpper(res.Severity), res.RuleID, res.Category)
		if res.RepositoryID != "" {
			r.printf("  repo: %s", res.RepositoryID)
		}
		r.printf("\n")
		if res.Description != "" {
			r.printf("  %s\n", res.Description)
		}
		r.printf("  Findings: %d  TP rate: %s", res.FindingCount, formatRate(res.EstimatedRate))
		if res.LabeledSamples > 0 {
			r.printf(" (%d labeled)", res.LabeledSamples)
		}
		if res.EstimatedTruePositives != nil {
			r.printf("  est. true positives: %.1f", *res.EstimatedTruePositives)
		}
		r.printf("\n")

		if len(res.Sample) > 0 {
			r.printf("  Evidence (%d of %d):\n", len(res.Sample), res.FindingCount)
			for _, s := range res.Sample {
				r.printEvidence(s)
			}
		}
		r.printf("\n")
	}
}

// printEvidence prints file:line:column and the literal matched text.
// Continuation lines of multiline matches are indented under the first.
func (r *TextReporter) printEvidence(s models.SampleRecord) {
	loc := fmt.Sprintf("%s:%d:%d", s.FilePath, s.LineNumber, s.ColumnOffset)
	label := ""
	if s.Label != "" {
		label = " [" + string(s.Label) + "]"
	}
	lines := strings.Split(s.MatchedText, "\n")
	r.printf("    %s%s  %s\n", loc, label, lines[0])
	for _, l := range lines[1:] {
		r.printf("    %s  %s\n", strings.Repeat(" ", len(loc)+len(label)), l)
	}
}

// printRecommendations prints the recommendations section
func (r *TextReporter) printRecommendations(recommendations []models.Recommendation) {
	r.printf("Recommended Actions:\n")
	r.printf("--------------------------------------------------\n")

	for i, rec := range recommendations {
		r.printf("  %d. [%s] %s\n", i+1, strings.ToUpper(rec.Severity), rec.Action)
		r.printf("     Impact: %s\n", rec.Impact)
	}
	r.printf("\n")
}

// printSkipped lists every file the run did not fully scan
func (r *TextReporter) printSkipped(skipped []models.Skip) {
	r.printf("Skipped Files (%d):\n", len(skipped))
	r.printf("--------------------------------------------------\n")
	for _, s := range skipped {
		if s.Detail != "" {
			r.printf("  %s (%s): %s\n", s.Path, s.Reason, s.Detail)
		} else {
			r.printf("  %s (%s)\n", s.Path, s.Reason)
		}
	}
	r.printf("\n")
}

// printTrendInfo prints trend information
func (r *TextReporter) printTrendInfo(trend *models.Trend) {
	r.printf("Trend Analysis:\n")
	r.printf("--------------------------------------------------\n")
	r.printf("  Direction: %s %s\n", trend.Direction, aggregator.GetTrendIndicator(trend.Direction))
	r.printf("  Change: %d → %d findings (%.1f%%)\n",
		trend.PreviousFindings,
		trend.CurrentFindings,
		trend.ChangePercent)

	if trend.NewFindings > 0 {
		r.printf("  New Findings: %d\n", trend.NewFindings)
	}
	if trend.ResolvedFindings > 0 {
		r.printf("  Resolved: %d\n", trend.ResolvedFindings)
	}

	if !trend.ComparedWith.IsZero() {
		r.printf("  Compared With: %s\n", formatTimestamp(trend.ComparedWith))
	}
}

// printf is a helper to write formatted output
func (r *TextReporter) printf(format string, args ...interface{}) {
	fmt.Fprintf(r.writer, format, args...)
}

func formatRate(rate *float64) string {
	return models.RateEstimate{EstimatedRate: rate}.FormatRate()
}

func severitiesInOrder() []string {
	out := make([]string, 0, len(models.SeverityOrder))
	for s := range models.SeverityOrder {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return models.SeverityOrder[out[i]] < models.SeverityOrder[out[j]] })
	return out
}

// formatTimestamp formats a timestamp for display
func formatTimestamp(t time.Time) string {
	return t.Format("2006-01-02 15:04:05")
}

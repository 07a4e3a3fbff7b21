package aggregator

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/ppiankov/guardscan/internal/models"
)

// TrendAnalyzer analyzes finding counts across stored runs
type TrendAnalyzer struct{}

// NewTrendAnalyzer creates a new trend analyzer
func NewTrendAnalyzer() *TrendAnalyzer {
	return &TrendAnalyzer{}
}

// CalculateTrend compares current with previous. New and resolved counts
// are summed from per-(rule, repository) deltas.
func (t *TrendAnalyzer) CalculateTrend(current *models.Report, previous *models.Run) *models.Trend {
	if previous == nil || previous.Report == nil {
		return nil
	}

	trend := &models.Trend{
		PreviousFindings: previous.Report.TotalFindings(),
		CurrentFindings:  current.TotalFindings(),
		ComparedWith:     previous.Timestamp,
	}

	change := trend.CurrentFindings - trend.PreviousFindings
	if trend.PreviousFindings > 0 {
		trend.ChangePercent = float64(change) / float64(trend.PreviousFindings) * 100.0
	}

	switch {
	case change < 0:
		trend.Direction = "improving"
	case change > 0:
		trend.Direction = "degrading"
	default:
		trend.Direction = "stable"
	}

	trend.ByRule = ruleChanges(current, previous.Report)
	for _, rc := range trend.ByRule {
		if rc.Change > 0 {
			trend.NewFindings += rc.Change
		} else {
			trend.ResolvedFindings += -rc.Change
		}
	}

	return trend
}

func ruleChanges(current, previous *models.Report) []models.RuleChange {
	counts := make(map[models.AggregateKey]*models.RuleChange)
	get := func(ruleID, repoID string) *models.RuleChange {
		key := models.AggregateKey{RuleID: ruleID, RepositoryID: repoID}
		rc, ok := counts[key]
		if !ok {
			rc = &models.RuleChange{RuleID: ruleID, RepositoryID: repoID}
			counts[key] = rc
		}
		return rc
	}

	for _, r := range previous.Results {
		get(r.RuleID, r.RepositoryID).Previous += r.FindingCount
	}
	for _, r := range current.Results {
		get(r.RuleID, r.RepositoryID).Current += r.FindingCount
	}

	keys := make([]models.AggregateKey, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	SortKeys(keys)

	var out []models.RuleChange
	for _, k := range keys {
		rc := counts[k]
		rc.Change = rc.Current - rc.Previous
		if rc.Change != 0 {
			out = append(out, *rc)
		}
	}
	return out
}

// AnalyzeLastNRuns summarizes runs ordered oldest first
func (t *TrendAnalyzer) AnalyzeLastNRuns(runs []*models.Run) *models.TrendSummary {
	if len(runs) == 0 {
		return nil
	}

	summary := &models.TrendSummary{
		RunsAnalyzed: len(runs),
		ByCategory:   make(map[string]*models.CategoryTrend),
	}

	if len(runs) > 1 {
		earliest := runs[0].Timestamp
		latest := runs[len(runs)-1].Timestamp
		days := int(latest.Sub(earliest).Hours() / 24)
		summary.TimeRange = fmt.Sprintf("Last %d days", days)
	} else {
		summary.TimeRange = "Single run"
	}

	summary.FindingSparkline = make([]int, len(runs))
	for i, run := range runs {
		summary.FindingSparkline[i] = run.Report.TotalFindings()
	}

	if len(runs) >= 2 {
		t.calculateCategoryTrends(runs, summary)
	}

	return summary
}

// calculateCategoryTrends compares the earliest and latest runs per category
func (t *TrendAnalyzer) calculateCategoryTrends(runs []*models.Run, summary *models.TrendSummary) {
	earliest := runs[0].Report.Summary.FindingsByCategory
	latest := runs[len(runs)-1].Report.Summary.FindingsByCategory

	all := make(map[string]bool)
	for c := range earliest {
		all[c] = true
	}
	for c := range latest {
		all[c] = true
	}

	for category := range all {
		previousCount := earliest[category]
		currentCount := latest[category]
		change := currentCount - previousCount

		changePercent := 0.0
		if previousCount > 0 {
			changePercent = float64(change) / float64(previousCount) * 100.0
		} else if currentCount > 0 {
			changePercent = 100.0
		}

		summary.ByCategory[category] = &models.CategoryTrend{
			Category:         category,
			CurrentFindings:  currentCount,
			PreviousFindings: previousCount,
			Change:           change,
			ChangePercent:    changePercent,
		}
	}
}

// GenerateComparisonReport renders a plain-text comparison of two runs
func (t *TrendAnalyzer) GenerateComparisonReport(current, previous *models.Run) string {
	if previous == nil {
		return "No previous run to compare with"
	}

	trend := t.CalculateTrend(current.Report, previous)

	var b strings.Builder
	fmt.Fprintf(&b, "Comparison: %s vs %s\n\n", formatDate(current.Timestamp), formatDate(previous.Timestamp))
	fmt.Fprintf(&b, "Overall: %d → %d findings (%.1f%% %s)\n\n",
		trend.PreviousFindings, trend.CurrentFindings, trend.ChangePercent, trend.Direction)

	byRule := append([]models.RuleChange(nil), trend.ByRule...)
	sort.SliceStable(byRule, func(i, j int) bool {
		return abs(byRule[i].Change) > abs(byRule[j].Change)
	})
	for _, rc := range byRule {
		name := rc.RuleID
		if rc.RepositoryID != "" {
			name = rc.RepositoryID + "/" + rc.RuleID
		}
		fmt.Fprintf(&b, "%s:\n  %d → %d (%+d)\n", name, rc.Previous, rc.Current, rc.Change)
	}

	if trend.NewFindings > 0 {
		fmt.Fprintf(&b, "\nNew Findings: %d\n", trend.NewFindings)
	}
	if trend.ResolvedFindings > 0 {
		fmt.Fprintf(&b, "\nResolved Findings: %d\n", trend.ResolvedFindings)
	}

	return b.String()
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

// formatDate formats a timestamp for display
func formatDate(t time.Time) string {
	return t.Format("2006-01-02")
}

// GetTrendIndicator returns a visual indicator for trend direction
func GetTrendIndicator(direction string) string {
	switch direction {
	case "improving":
		return "↓"
	case "degrading":
		return "↑"
	case "stable":
		return "→"
	default:
		return "?"
	}
}

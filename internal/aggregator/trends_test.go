package aggregator

import (
	"math"
	"strings"
	"testing"
	"time"

	"github.com/ppiankov/guardscan/internal/models"
)

func reportWith(counts map[string]int) *models.Report {
	r := &models.Report{
		Summary: models.ReportSummary{FindingsByCategory: map[string]int{}},
	}
	for ruleID, n := range counts {
		r.Results = append(r.Results, models.RuleResult{
			RuleID:       ruleID,
			RepositoryID: "repo",
			Category:     models.CategorySecrets,
			FindingCount: n,
		})
		r.Summary.FindingsByCategory[string(models.CategorySecrets)] += n
	}
	return r
}

func TestTrendAnalyzerCalculateTrend(t *testing.T) {
	analyzer := NewTrendAnalyzer()
	ts := time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name          string
		current       map[string]int
		previous      map[string]int
		previousNil   bool
		wantNil       bool
		direction     string
		changePercent float64
		newFindings   int
		resolved      int
	}{
		{
			name:        "no previous",
			current:     map[string]int{"a": 3},
			previousNil: true,
			wantNil:     true,
		},
		{
			name:          "improving",
			current:       map[string]int{"a": 3},
			previous:      map[string]int{"a": 5},
			direction:     "improving",
			changePercent: -40.0,
			resolved:      2,
		},
		{
			name:          "degrading",
			current:       map[string]int{"a": 6},
			previous:      map[string]int{"a": 4},
			direction:     "degrading",
			changePercent: 50.0,
			newFindings:   2,
		},
		{
			name:        "stable with churn",
			current:     map[string]int{"a": 1, "b": 3},
			previous:    map[string]int{"a": 3, "b": 1},
			direction:   "stable",
			newFindings: 2,
			resolved:    2,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			current := reportWith(tt.current)

			var previous *models.Run
			if !tt.previousNil {
				previous = &models.Run{Timestamp: ts, Report: reportWith(tt.previous)}
			}

			trend := analyzer.CalculateTrend(current, previous)
			if tt.wantNil {
				if trend != nil {
					t.Fatalf("expected nil trend, got %+v", trend)
				}
				return
			}
			if trend == nil {
				t.Fatalf("expected trend, got nil")
			}
			if trend.Direction != tt.direction {
				t.Fatalf("expected direction %q, got %q", tt.direction, trend.Direction)
			}
			if math.Abs(trend.ChangePercent-tt.changePercent) > 0.0001 {
				t.Fatalf("expected change percent %.2f, got %.2f", tt.changePercent, trend.ChangePercent)
			}
			if trend.NewFindings != tt.newFindings || trend.ResolvedFindings != tt.resolved {
				t.Fatalf("expected new=%d resolved=%d, got new=%d resolved=%d",
					tt.newFindings, tt.resolved, trend.NewFindings, trend.ResolvedFindings)
			}
			if !trend.ComparedWith.Equal(ts) {
				t.Fatalf("unexpected compared-with time %v", trend.ComparedWith)
			}
		})
	}
}

func TestTrendAnalyzerAnalyzeLastNRuns(t *testing.T) {
	analyzer := NewTrendAnalyzer()
	base := time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC)

	if summary := analyzer.AnalyzeLastNRuns(nil); summary != nil {
		t.Fatalf("expected nil summary, got %+v", summary)
	}

	single := analyzer.AnalyzeLastNRuns([]*models.Run{{Timestamp: base, Report: reportWith(map[string]int{"a": 2})}})
	if single.TimeRange != "Single run" || len(single.FindingSparkline) != 1 || single.FindingSparkline[0] != 2 {
		t.Fatalf("unexpected single-run summary: %+v", single)
	}

	runs := []*models.Run{
		{Timestamp: base, Report: reportWith(map[string]int{"a": 2})},
		{Timestamp: base.Add(48 * time.Hour), Report: reportWith(map[string]int{"a": 1, "b": 4})},
	}
	summary := analyzer.AnalyzeLastNRuns(runs)
	if summary.TimeRange != "Last 2 days" {
		t.Fatalf("expected time range %q, got %q", "Last 2 days", summary.TimeRange)
	}
	if len(summary.FindingSparkline) != 2 || summary.FindingSparkline[0] != 2 || summary.FindingSparkline[1] != 5 {
		t.Fatalf("unexpected sparkline %v", summary.FindingSparkline)
	}
	secrets := summary.ByCategory[string(models.CategorySecrets)]
	if secrets == nil {
		t.Fatalf("missing secrets trend")
	}
	if secrets.Change != 3 || secrets.PreviousFindings != 2 || secrets.CurrentFindings != 5 || secrets.ChangePercent != 150.0 {
		t.Fatalf("unexpected secrets trend: %+v", secrets)
	}
}

func TestTrendAnalyzerGenerateComparisonReport(t *testing.T) {
	analyzer := NewTrendAnalyzer()
	base := time.Date(2026, 2, 12, 0, 0, 0, 0, time.UTC)

	current := &models.Run{Timestamp: base.Add(24 * time.Hour), Report: reportWith(map[string]int{"a": 3, "b": 1})}

	if got := analyzer.GenerateComparisonReport(current, nil); !strings.Contains(got, "No previous run to compare with") {
		t.Fatalf("unexpected output %q", got)
	}

	previous := &models.Run{Timestamp: base, Report: reportWith(map[string]int{"a": 1, "b": 1})}
	report := analyzer.GenerateComparisonReport(current, previous)

	for _, expected := range []string{
		"Comparison: " + formatDate(base.Add(24*time.Hour)) + " vs " + formatDate(base),
		"Overall: 2 → 4 findings",
		"repo/a:",
		"  1 → 3 (+2)",
		"New Findings: 2",
	} {
		if !strings.Contains(report, expected) {
			t.Fatalf("expected report to contain %q, got %q", expected, report)
		}
	}
	if strings.Contains(report, "repo/b:") {
		t.Fatalf("unchanged rules should be omitted, got %q", report)
	}
	if strings.Contains(report, "Resolved Findings:") {
		t.Fatalf("unexpected resolved section in %q", report)
	}
}

func TestGetTrendIndicator(t *testing.T) {
	tests := []struct {
		direction string
		expected  string
	}{
		{"improving", "↓"},
		{"degrading", "↑"},
		{"stable", "→"},
		{"unknown", "?"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.direction, func(t *testing.T) {
			if got := GetTrendIndicator(tt.direction); got != tt.expected {
				t.Fatalf("expected %q, got %q", tt.expected, got)
			}
		})
	}
}

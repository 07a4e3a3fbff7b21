package aggregator

import (
	"testing"

	"github.com/ppiankov/guardscan/internal/models"
)

func TestRecommendationGeneratorGenerateRecommendations(t *testing.T) {
	generator := NewRecommendationGenerator()

	tests := []struct {
		name      string
		results   []models.RuleResult
		wantCount int
		wantOrder []models.Recommendation
	}{
		{
			name: "grouping and sorting",
			results: []models.RuleResult{
				{RuleID: "aws-access-key", Category: models.CategorySecrets, Severity: models.SeverityHigh, FindingCount: 2},
				{RuleID: "private-key-block", Category: models.CategorySecrets, Severity: models.SeverityHigh, FindingCount: 3},
				{RuleID: "debug-enabled", Category: models.CategoryInsecureDefaults, Severity: models.SeverityLow, FindingCount: 7},
				{RuleID: "force-push", Category: models.CategoryDestructiveGovernance, Severity: models.SeverityMedium, FindingCount: 4},
				{RuleID: "eval-call", Category: models.CategoryInjection, Severity: models.SeverityMedium, FindingCount: 0},
			},
			wantCount: 3,
			wantOrder: []models.Recommendation{
				{
					Severity: models.SeverityHigh,
					Category: models.CategorySecrets,
					Action:   "Rotate and remove 5 hard-coded secret(s)",
					Impact:   "Credentials in source are exposed to anyone with read access",
					Count:    5,
				},
				{
					Severity: models.SeverityMedium,
					Category: models.CategoryDestructiveGovernance,
					Action:   "Gate 4 destructive command(s) behind review",
					Impact:   "Moderate risk; review before release",
					Count:    4,
				},
				{
					Severity: models.SeverityLow,
					Category: models.CategoryInsecureDefaults,
					Action:   "Harden 7 insecure default(s)",
					Impact:   "Low priority cleanup",
					Count:    7,
				},
			},
		},
		{
			name:      "no results",
			results:   nil,
			wantCount: 0,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			recs := generator.GenerateRecommendations(tt.results)
			if len(recs) != tt.wantCount {
				t.Fatalf("expected %d recommendations, got %d", tt.wantCount, len(recs))
			}
			for i, want := range tt.wantOrder {
				if recs[i] != want {
					t.Fatalf("unexpected recommendation %d: %+v", i, recs[i])
				}
			}
		})
	}
}

func TestRecommendationGeneratorGenerateAction(t *testing.T) {
	generator := NewRecommendationGenerator()

	tests := []struct {
		category models.Category
		want     string
	}{
		{models.CategorySecrets, "Rotate and remove 2 hard-coded secret(s)"},
		{models.CategoryInjection, "Parameterize 2 injection-prone call(s)"},
		{models.CategoryDestructiveGovernance, "Gate 2 destructive command(s) behind review"},
		{models.CategoryInsecureDefaults, "Harden 2 insecure default(s)"},
		{models.CategoryClaimVerification, "Back 2 unverified claim(s) with evidence"},
		{models.CategoryScopeControl, "Resolve 2 scope marker(s)"},
		{models.Category("other"), "Review 2 finding(s)"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(string(tt.category), func(t *testing.T) {
			got := generator.generateAction(&findingGroup{category: tt.category, count: 2})
			if got != tt.want {
				t.Fatalf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestRecommendationGeneratorSeverityPriority(t *testing.T) {
	generator := NewRecommendationGenerator()

	tests := []struct {
		severity string
		want     int
	}{
		{models.SeverityHigh, 3},
		{models.SeverityMedium, 2},
		{models.SeverityLow, 1},
		{models.SeverityInformational, 0},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.severity, func(t *testing.T) {
			if got := generator.severityPriority(tt.severity); got != tt.want {
				t.Fatalf("expected %d, got %d", tt.want, got)
			}
		})
	}
}

func TestRecommendationGeneratorGetTopRecommendations(t *testing.T) {
	generator := NewRecommendationGenerator()
	recs := []models.Recommendation{{Action: "a"}, {Action: "b"}, {Action: "c"}}

	if got := generator.GetTopRecommendations(recs, 2); len(got) != 2 || got[1].Action != "b" {
		t.Fatalf("unexpected top recommendations: %+v", got)
	}
	if got := generator.GetTopRecommendations(recs, 10); len(got) != 3 {
		t.Fatalf("expected all recommendations, got %d", len(got))
	}
}

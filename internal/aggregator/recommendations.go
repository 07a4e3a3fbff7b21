package aggregator

import (
	"fmt"
	"sort"

	"github.com/ppiankov/guardscan/internal/models"
)

// findingGroup is the finding total for one (category, severity) pair
type findingGroup struct {
	category models.Category
	severity string
	count    int
}

// RecommendationGenerator turns report results into next steps
type RecommendationGenerator struct{}

// NewRecommendationGenerator creates a new recommendation generator
func NewRecommendationGenerator() *RecommendationGenerator {
	return &RecommendationGenerator{}
}

// GenerateRecommendations groups results by category and severity. Output
// is ordered by severity, then count, then category, so it is stable across
// runs.
func (r *RecommendationGenerator) GenerateRecommendations(results []models.RuleResult) []models.Recommendation {
	groups := make(map[string]*findingGroup)
	for _, res := range results {
		if res.FindingCount == 0 {
			continue
		}
		key := fmt.Sprintf("%s:%s", res.Category, res.Severity)
		if g, ok := groups[key]; ok {
			g.count += res.FindingCount
			continue
		}
		groups[key] = &findingGroup{category: res.Category, severity: res.Severity, count: res.FindingCount}
	}

	recommendations := make([]models.Recommendation, 0, len(groups))
	for _, g := range groups {
		recommendations = append(recommendations, models.Recommendation{
			Severity: g.severity,
			Category: g.category,
			Action:   r.generateAction(g),
			Impact:   r.generateImpact(g),
			Count:    g.count,
		})
	}

	sort.Slice(recommendations, func(i, j int) bool {
		a, b := recommendations[i], recommendations[j]
		if pa, pb := r.severityPriority(a.Severity), r.severityPriority(b.Severity); pa != pb {
			return pa > pb
		}
		if a.Count != b.Count {
			return a.Count > b.Count
		}
		return a.Category < b.Category
	})

	return recommendations
}

// generateAction creates actionable text based on category and count
func (r *RecommendationGenerator) generateAction(g *findingGroup) string {
	switch g.category {
	case models.CategorySecrets:
		return fmt.Sprintf("Rotate and remove %d hard-coded secret(s)", g.count)
	case models.CategoryInjection:
		return fmt.Sprintf("Parameterize %d injection-prone call(s)", g.count)
	case models.CategoryDestructiveGovernance:
		return fmt.Sprintf("Gate %d destructive command(s) behind review", g.count)
	case models.CategoryInsecureDefaults:
		return fmt.Sprintf("Harden %d insecure default(s)", g.count)
	case models.CategoryClaimVerification:
		return fmt.Sprintf("Back %d unverified claim(s) with evidence", g.count)
	case models.CategoryScopeControl:
		return fmt.Sprintf("Resolve %d scope marker(s)", g.count)
	default:
		return fmt.Sprintf("Review %d finding(s)", g.count)
	}
}

// generateImpact describes the potential impact based on severity and category
func (r *RecommendationGenerator) generateImpact(g *findingGroup) string {
	switch g.severity {
	case models.SeverityHigh:
		switch g.category {
		case models.CategorySecrets:
			return "Credentials in source are exposed to anyone with read access"
		case models.CategoryInjection:
			return "Untrusted input may reach an interpreter"
		case models.CategoryDestructiveGovernance:
			return "Irreversible data or history loss"
		default:
			return "Significant security exposure"
		}

	case models.SeverityMedium:
		switch g.category {
		case models.CategorySecrets:
			return "Likely credentials; confirm and rotate"
		case models.CategoryInsecureDefaults:
			return "Weakened defaults may ship to production"
		default:
			return "Moderate risk; review before release"
		}

	case models.SeverityLow:
		switch g.category {
		case models.CategoryClaimVerification:
			return "Behaviour is asserted but not demonstrated"
		case models.CategoryScopeControl:
			return "Suppressed checks hide regressions"
		default:
			return "Low priority cleanup"
		}

	default:
		return "Informational; review as needed"
	}
}

// severityPriority returns numeric priority for sorting (higher = more urgent)
func (r *RecommendationGenerator) severityPriority(severity string) int {
	switch severity {
	case models.SeverityHigh:
		return 3
	case models.SeverityMedium:
		return 2
	case models.SeverityLow:
		return 1
	default:
		return 0
	}
}

// GetTopRecommendations returns the top N most critical recommendations
func (r *RecommendationGenerator) GetTopRecommendations(recommendations []models.Recommendation, n int) []models.Recommendation {
	if n >= len(recommendations) {
		return recommendations
	}
	return recommendations[:n]
}

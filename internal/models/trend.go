package models

import "time"

// Run is a stored report together with the time it was saved
type Run struct {
	Timestamp time.Time
	Report    *Report
}

// Trend compares a report against a previous run
type Trend struct {
	PreviousFindings int          `json:"previous_findings"`
	CurrentFindings  int          `json:"current_findings"`
	ChangePercent    float64      `json:"change_percent"`
	Direction        string       `json:"direction"` // improving, degrading, stable
	NewFindings      int          `json:"new_findings"`
	ResolvedFindings int          `json:"resolved_findings"`
	ComparedWith     time.Time    `json:"compared_with"`
	ByRule           []RuleChange `json:"by_rule,omitempty"`
}

// RuleChange is the per-(rule, repository) count delta between two runs
type RuleChange struct {
	RuleID       string `json:"rule_id"`
	RepositoryID string `json:"repository_id,omitempty"`
	Previous     int    `json:"previous"`
	Current      int    `json:"current"`
	Change       int    `json:"change"`
}

// TrendSummary describes finding counts over several stored runs
type TrendSummary struct {
	RunsAnalyzed     int                       `json:"runs_analyzed"`
	TimeRange        string                    `json:"time_range"`
	FindingSparkline []int                     `json:"finding_sparkline"`
	ByCategory       map[string]*CategoryTrend `json:"by_category,omitempty"`
}

// CategoryTrend is the change in one category between the first and last run
type CategoryTrend struct {
	Category         string  `json:"category"`
	CurrentFindings  int     `json:"current_findings"`
	PreviousFindings int     `json:"previous_findings"`
	Change           int     `json:"change"`
	ChangePercent    float64 `json:"change_percent"`
}

// Recommendation is an actionable next step derived from report results
type Recommendation struct {
	Severity string   `json:"severity"`
	Category Category `json:"category"`
	Action   string   `json:"action"`
	Impact   string   `json:"impact"`
	Count    int      `json:"count"`
}

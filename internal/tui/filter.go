package tui

import (
	"sort"
	"strings"

	"github.com/ppiankov/guardscan/internal/models"
)

// sampleItem is one labelable row: a sampled finding and its rule context.
type sampleItem struct {
	RuleID       string
	RepositoryID string
	Category     models.Category
	Severity     string
	Sample       models.SampleRecord
	Label        models.Label
}

func (it sampleItem) finding() models.Finding {
	return it.Sample.Finding(it.RuleID, it.RepositoryID)
}

// filterState holds current active filters.
type filterState struct {
	Rule       string
	Severity   string
	Unlabeled  bool
	SearchText string
}

// sortField enumerates columns that can be sorted.
type sortField int

const (
	sortBySeverity sortField = iota
	sortByRule
	sortByFile
	sortByLabel
)

// sortFieldCount is the total number of sortable columns.
const sortFieldCount = 4

// itemsFromReport flattens every sampled finding of report into rows.
func itemsFromReport(report *models.Report) []sampleItem {
	var items []sampleItem
	for _, res := range report.Results {
		for _, s := range res.Sample {
			label := s.Label
			if label == "" {
				label = models.LabelUnclassified
			}
			items = append(items, sampleItem{
				RuleID:       res.RuleID,
				RepositoryID: res.RepositoryID,
				Category:     res.Category,
				Severity:     res.Severity,
				Sample:       s,
				Label:        label,
			})
		}
	}
	return items
}

// applyFilters returns items matching all active filters.
func applyFilters(items []sampleItem, f filterState) []sampleItem {
	result := make([]sampleItem, 0, len(items))
	searchLower := strings.ToLower(f.SearchText)

	for _, it := range items {
		if f.Rule != "" && it.RuleID != f.Rule {
			continue
		}
		if f.Severity != "" && it.Severity != f.Severity {
			continue
		}
		if f.Unlabeled && it.Label != models.LabelUnclassified {
			continue
		}
		if searchLower != "" && !matchesSearch(it, searchLower) {
			continue
		}
		result = append(result, it)
	}
	return result
}

func matchesSearch(it sampleItem, searchLower string) bool {
	return strings.Contains(strings.ToLower(it.RuleID), searchLower) ||
		strings.Contains(strings.ToLower(string(it.Category)), searchLower) ||
		strings.Contains(strings.ToLower(it.Sample.FilePath), searchLower) ||
		strings.Contains(strings.ToLower(it.Sample.MatchedText), searchLower)
}

// sortItems sorts a slice of items in place by the given field. Ties fall
// back to location order so the table never reshuffles.
func sortItems(items []sampleItem, field sortField) {
	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i], items[j]
		switch field {
		case sortBySeverity:
			if pa, pb := models.SeverityOrder[a.Severity], models.SeverityOrder[b.Severity]; pa != pb {
				return pa < pb
			}
		case sortByRule:
			if a.RuleID != b.RuleID {
				return a.RuleID < b.RuleID
			}
		case sortByLabel:
			if a.Label != b.Label {
				return a.Label < b.Label
			}
		}
		return a.finding().Less(b.finding())
	})
}

// uniqueRules returns deduplicated, sorted rule ids from items.
func uniqueRules(items []sampleItem) []string {
	seen := make(map[string]bool)
	var rules []string
	for _, it := range items {
		if !seen[it.RuleID] {
			seen[it.RuleID] = true
			rules = append(rules, it.RuleID)
		}
	}
	sort.Strings(rules)
	return rules
}

// sortFieldName returns a human-readable name for the sort field.
func sortFieldName(f sortField) string {
	switch f {
	case sortBySeverity:
		return "severity"
	case sortByRule:
		return "rule"
	case sortByFile:
		return "file"
	case sortByLabel:
		return "label"
	default:
		return "unknown"
	}
}

package models

import (
	"fmt"
	"strconv"
)

// Category groups rules by the checklist they come from
type Category string

const (
	CategorySecrets               Category = "secrets"
	CategoryInjection             Category = "injection"
	CategoryDestructiveGovernance Category = "destructive-governance"
	CategoryInsecureDefaults      Category = "insecure-defaults"
	CategoryClaimVerification     Category = "claim-verification"
	CategoryScopeControl          Category = "scope-control"
)

// Categories lists every known category in display order
var Categories = []Category{
	CategorySecrets,
	CategoryInjection,
	CategoryDestructiveGovernance,
	CategoryInsecureDefaults,
	CategoryClaimVerification,
	CategoryScopeControl,
}

// IsValidCategory reports whether c is a known category
func IsValidCategory(c Category) bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// Severity tiers for rules
const (
	SeverityHigh          = "high"
	SeverityMedium        = "medium"
	SeverityLow           = "low"
	SeverityInformational = "informational"
)

// SeverityOrder ranks severities for display, highest first
var SeverityOrder = map[string]int{
	SeverityHigh:          0,
	SeverityMedium:        1,
	SeverityLow:           2,
	SeverityInformational: 3,
}

// IsValidSeverity reports whether s is a known severity tier
func IsValidSeverity(s string) bool {
	_, ok := SeverityOrder[s]
	return ok
}

// Rule is an immutable detection rule loaded from a catalog
type Rule struct {
	ID           string   `yaml:"id" json:"id"`
	Description  string   `yaml:"description,omitempty" json:"description,omitempty"`
	Pattern      string   `yaml:"pattern" json:"pattern"`
	IgnoreCase   bool     `yaml:"ignore_case,omitempty" json:"ignore_case,omitempty"`
	Multiline    bool     `yaml:"multiline,omitempty" json:"multiline,omitempty"`
	Keywords     []string `yaml:"keywords,omitempty" json:"keywords,omitempty"` // optional prefilter
	IncludeGlobs []string `yaml:"include_globs" json:"include_globs"`
	ExcludeGlobs []string `yaml:"exclude_globs,omitempty" json:"exclude_globs,omitempty"`
	Category     Category `yaml:"category" json:"category"`
	Severity     string   `yaml:"severity" json:"severity"`
}

// Finding is a single rule match at a file/line/column.
// Findings are values and are never mutated after the matcher creates them.
type Finding struct {
	RuleID       string `json:"rule_id"`
	RepositoryID string `json:"repository_id,omitempty"`
	FilePath     string `json:"file_path"`     // slash-separated, relative to the scan root
	LineNumber   int    `json:"line_number"`   // 1-based
	ColumnOffset int    `json:"column_offset"` // 1-based byte column
	MatchedText  string `json:"matched_text"`  // literal, bounded excerpt
	Truncated    bool   `json:"truncated,omitempty"`
}

// Fingerprint identifies a finding across runs: repository:file:rule:line:column
func (f Finding) Fingerprint() string {
	return fmt.Sprintf("%s:%s:%s:%d:%d", f.RepositoryID, f.FilePath, f.RuleID, f.LineNumber, f.ColumnOffset)
}

// Less orders findings by file, line, column, then rule id
func (f Finding) Less(o Finding) bool {
	if f.RepositoryID != o.RepositoryID {
		return f.RepositoryID < o.RepositoryID
	}
	if f.FilePath != o.FilePath {
		return f.FilePath < o.FilePath
	}
	if f.LineNumber != o.LineNumber {
		return f.LineNumber < o.LineNumber
	}
	if f.ColumnOffset != o.ColumnOffset {
		return f.ColumnOffset < o.ColumnOffset
	}
	return f.RuleID < o.RuleID
}

// AggregateKey identifies one aggregate bucket
type AggregateKey struct {
	RuleID       string
	RepositoryID string
}

func (k AggregateKey) String() string {
	if k.RepositoryID == "" {
		return k.RuleID
	}
	return k.RepositoryID + "/" + k.RuleID
}

// AggregateResult holds the deduplicated count and bounded sample for one key.
// FindingCount is always >= len(Sample).
type AggregateResult struct {
	Key          AggregateKey
	FindingCount int
	Sample       []Finding
}

// Label is a human classification attached to a sampled finding
type Label string

const (
	LabelTruePositive  Label = "true_positive"
	LabelFalsePositive Label = "false_positive"
	LabelInformational Label = "informational"
	LabelUnclassified  Label = "unclassified"
)

// ParseLabel accepts the canonical names plus the short forms tp, fp, info.
func ParseLabel(s string) (Label, error) {
	switch s {
	case string(LabelTruePositive), "tp":
		return LabelTruePositive, nil
	case string(LabelFalsePositive), "fp":
		return LabelFalsePositive, nil
	case string(LabelInformational), "info":
		return LabelInformational, nil
	case string(LabelUnclassified), "none":
		return LabelUnclassified, nil
	default:
		return "", fmt.Errorf("unknown label %q (use true_positive, false_positive, informational, unclassified)", s)
	}
}

// RateEstimate is derived from recorded labels and never stored.
// EstimatedRate is nil when no labeled samples exist.
type RateEstimate struct {
	RuleID            string   `json:"rule_id"`
	SampleSize        int      `json:"sample_size"`
	TruePositiveCount int      `json:"true_positive_count"`
	EstimatedRate     *float64 `json:"estimated_rate"`
}

// FormatRate renders the rate as a percentage, or "unclassified"
func (r RateEstimate) FormatRate() string {
	if r.EstimatedRate == nil {
		return "unclassified"
	}
	return strconv.FormatFloat(*r.EstimatedRate*100, 'f', 1, 64) + "%"
}

// SkipReason explains why a file produced no findings
type SkipReason string

const (
	SkipUnreadable SkipReason = "unreadable"
	SkipBinary     SkipReason = "binary"
	SkipTooLarge   SkipReason = "too_large"
	SkipTimeout    SkipReason = "timeout"
	SkipCancelled  SkipReason = "cancelled"
)

// Skip records a file the run did not fully scan
type Skip struct {
	Path   string     `json:"path"`
	Reason SkipReason `json:"reason"`
	Detail string     `json:"detail,omitempty"`
}

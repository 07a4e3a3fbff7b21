package models

// ReportSchemaVersion is bumped whenever the persisted report layout changes
const ReportSchemaVersion = 1

// Report is the rendered, persisted outcome of one scan run.
// It carries no timestamps so identical inputs produce identical documents.
type Report struct {
	SchemaVersion   int              `json:"schema_version"`
	Root            string           `json:"root"`
	Seed            int64            `json:"seed"`
	SampleSize      int              `json:"sample_size"`
	Incomplete      bool             `json:"incomplete"`
	Summary         ReportSummary    `json:"summary"`
	Results         []RuleResult     `json:"results"`
	Recommendations []Recommendation `json:"recommendations,omitempty"`
	Skipped         []Skip           `json:"skipped"`
}

// ReportSummary provides aggregate statistics for the whole run
type ReportSummary struct {
	FilesScanned       int            `json:"files_scanned"`
	FilesSkipped       int            `json:"files_skipped"`
	TotalFindings      int            `json:"total_findings"`
	RulesMatched       int            `json:"rules_matched"`
	RulesInCatalog     int            `json:"rules_in_catalog"`
	FindingsByCategory map[string]int `json:"findings_by_category"`
	FindingsBySeverity map[string]int `json:"findings_by_severity"`
}

// RuleResult is one (rule, repository) row of the report
type RuleResult struct {
	RuleID                 string         `json:"rule_id"`
	Description            string         `json:"description,omitempty"`
	RepositoryID           string         `json:"repository_id,omitempty"`
	Category               Category       `json:"category"`
	Severity               string         `json:"severity"`
	FindingCount           int            `json:"finding_count"`
	EstimatedRate          *float64       `json:"estimated_rate"`
	LabeledSamples         int            `json:"labeled_samples"`
	EstimatedTruePositives *float64       `json:"estimated_true_positives,omitempty"`
	Sample                 []SampleRecord `json:"sample"`
}

// SampleRecord is a literal evidence excerpt
type SampleRecord struct {
	Fingerprint  string `json:"fingerprint"`
	FilePath     string `json:"file_path"`
	LineNumber   int    `json:"line_number"`
	ColumnOffset int    `json:"column_offset"`
	MatchedText  string `json:"matched_text"`
	Label        Label  `json:"label,omitempty"`
}

// Finding converts a sample record back into the finding it was built from
func (s SampleRecord) Finding(ruleID, repositoryID string) Finding {
	return Finding{
		RuleID:       ruleID,
		RepositoryID: repositoryID,
		FilePath:     s.FilePath,
		LineNumber:   s.LineNumber,
		ColumnOffset: s.ColumnOffset,
		MatchedText:  s.MatchedText,
	}
}

// TotalFindings sums finding counts across all results
func (r *Report) TotalFindings() int {
	total := 0
	for _, res := range r.Results {
		total += res.FindingCount
	}
	return total
}

// FindSample looks up a sampled finding by fingerprint
func (r *Report) FindSample(fingerprint string) (Finding, bool) {
	for _, res := range r.Results {
		for _, s := range res.Sample {
			if s.Fingerprint == fingerprint {
				return s.Finding(res.RuleID, res.RepositoryID), true
			}
		}
	}
	return Finding{}, false
}

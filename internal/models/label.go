package models

import "time"

// LabelRecord is the current label for one sampled finding
type LabelRecord struct {
	Fingerprint  string    `json:"fingerprint"`
	RuleID       string    `json:"rule_id"`
	RepositoryID string    `json:"repository_id,omitempty"`
	FilePath     string    `json:"file_path"`
	LineNumber   int       `json:"line_number"`
	ColumnOffset int       `json:"column_offset"`
	Label        Label     `json:"label"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// NewLabelRecord builds a record for f
func NewLabelRecord(f Finding, label Label, at time.Time) LabelRecord {
	return LabelRecord{
		Fingerprint:  f.Fingerprint(),
		RuleID:       f.RuleID,
		RepositoryID: f.RepositoryID,
		FilePath:     f.FilePath,
		LineNumber:   f.LineNumber,
		ColumnOffset: f.ColumnOffset,
		Label:        label,
		UpdatedAt:    at,
	}
}

// LabelAudit is one append-only entry in the labeling trail
type LabelAudit struct {
	ID          string    `json:"id"`
	Time        time.Time `json:"time"`
	Actor       string    `json:"actor,omitempty"`
	Fingerprint string    `json:"fingerprint"`
	RuleID      string    `json:"rule_id"`
	Previous    Label     `json:"previous"`
	Label       Label     `json:"label"`
}

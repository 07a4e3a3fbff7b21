package storage

import (
	"time"

	"github.com/ppiankov/guardscan/internal/models"
)

// Storage defines the interface for persisting scan reports
type Storage interface {
	// SaveReport stores a report under the given run time
	SaveReport(report *models.Report, at time.Time) (string, error)

	// LoadReport loads the report saved at a specific run time
	LoadReport(timestamp time.Time) (*models.Report, error)

	// GetLatestRun retrieves the most recent run
	GetLatestRun() (*models.Run, error)

	// GetLastNRuns retrieves the last N runs, oldest first
	GetLastNRuns(n int) ([]*models.Run, error)

	// ListRuns returns all available run timestamps
	ListRuns() ([]time.Time, error)
}

// LabelStore persists classification labels and their audit trail
type LabelStore interface {
	// LoadLabels returns the current label per fingerprint
	LoadLabels() (map[string]models.LabelRecord, error)

	// SaveLabels replaces the stored label set
	SaveLabels(labels map[string]models.LabelRecord) error

	// AppendAudit adds one entry to the audit trail
	AppendAudit(entry models.LabelAudit) error
}

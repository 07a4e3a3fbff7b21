package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/ppiankov/guardscan/internal/models"
)

const (
	runsDirName    = "runs"
	reportSuffix   = "-report.json"
	labelsFileName = "labels.json"
	auditFileName  = "labels.audit.jsonl"
	timestampFmt   = "2006-01-02T15-04-05.000"

	// maxSaveAttempts bounds the millisecond bumps SaveReport tries when a
	// run file for the same instant already exists
	maxSaveAttempts = 1000
)

// ErrNoRuns is returned when no stored run exists
var ErrNoRuns = errors.New("no runs found")

// LocalStorage implements Storage and LabelStore on the local filesystem
type LocalStorage struct {
	baseDir string
}

// NewLocal creates a new local storage instance
func NewLocal(baseDir string) *LocalStorage {
	return &LocalStorage{
		baseDir: baseDir,
	}
}

// SaveReport writes report to runs/<timestamp>-report.json and returns the
// path. An existing run is never overwritten: when the millisecond is taken
// the timestamp moves forward until a free name is found.
func (s *LocalStorage) SaveReport(report *models.Report, at time.Time) (string, error) {
	runsDir := filepath.Join(s.baseDir, runsDirName)
	if err := os.MkdirAll(runsDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create runs directory: %w", err)
	}

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal report: %w", err)
	}

	at = at.UTC().Truncate(time.Millisecond)
	for i := 0; i < maxSaveAttempts; i++ {
		path := filepath.Join(runsDir, s.formatTimestamp(at)+reportSuffix)
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
		if errors.Is(err, fs.ErrExist) {
			at = at.Add(time.Millisecond)
			continue
		}
		if err != nil {
			return "", fmt.Errorf("failed to create file: %w", err)
		}
		if _, err := f.Write(data); err != nil {
			_ = f.Close()
			return "", fmt.Errorf("failed to write file: %w", err)
		}
		if err := f.Close(); err != nil {
			return "", fmt.Errorf("failed to write file: %w", err)
		}
		return path, nil
	}
	return "", fmt.Errorf("no free run name near %s", s.formatTimestamp(at))
}

// LoadReport loads a report from a specific timestamp
func (s *LocalStorage) LoadReport(timestamp time.Time) (*models.Report, error) {
	path := filepath.Join(s.baseDir, runsDirName, s.formatTimestamp(timestamp)+reportSuffix)
	return LoadReportFile(path)
}

// GetLatestRun retrieves the most recent run
func (s *LocalStorage) GetLatestRun() (*models.Run, error) {
	timestamps, err := s.ListRuns()
	if err != nil {
		return nil, err
	}

	if len(timestamps) == 0 {
		return nil, ErrNoRuns
	}

	latest := timestamps[len(timestamps)-1]
	report, err := s.LoadReport(latest)
	if err != nil {
		return nil, err
	}
	return &models.Run{Timestamp: latest, Report: report}, nil
}

// GetLastNRuns retrieves the last N runs, oldest first
func (s *LocalStorage) GetLastNRuns(n int) ([]*models.Run, error) {
	timestamps, err := s.ListRuns()
	if err != nil {
		return nil, err
	}

	if len(timestamps) == 0 {
		return nil, ErrNoRuns
	}

	start := len(timestamps) - n
	if start < 0 {
		start = 0
	}

	selected := timestamps[start:]
	runs := make([]*models.Run, 0, len(selected))

	for _, timestamp := range selected {
		report, err := s.LoadReport(timestamp)
		if err != nil {
			// Skip reports that fail to load but continue with others
			continue
		}
		runs = append(runs, &models.Run{Timestamp: timestamp, Report: report})
	}

	return runs, nil
}

// ListRuns returns all available run timestamps sorted chronologically
func (s *LocalStorage) ListRuns() ([]time.Time, error) {
	runsDir := filepath.Join(s.baseDir, runsDirName)

	if _, err := os.Stat(runsDir); os.IsNotExist(err) {
		return []time.Time{}, nil
	}

	entries, err := os.ReadDir(runsDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read runs directory: %w", err)
	}

	var timestamps []time.Time

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), reportSuffix) {
			continue
		}

		// Format: 2006-01-02T15-04-05.000-report.json
		timestamp, err := s.parseTimestamp(strings.TrimSuffix(entry.Name(), reportSuffix))
		if err != nil {
			continue
		}

		timestamps = append(timestamps, timestamp)
	}

	sort.Slice(timestamps, func(i, j int) bool {
		return timestamps[i].Before(timestamps[j])
	})

	return timestamps, nil
}

// LoadReportFile reads a JSON report written by SaveReport or `scan --format json`
func LoadReportFile(path string) (*models.Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("report not found: %s", path)
		}
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	var report models.Report
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, fmt.Errorf("failed to unmarshal report: %w", err)
	}
	if report.SchemaVersion != models.ReportSchemaVersion {
		return nil, fmt.Errorf("report %s has schema version %d, expected %d",
			path, report.SchemaVersion, models.ReportSchemaVersion)
	}

	return &report, nil
}

// LoadLabels reads labels.json. A missing file is an empty label set.
func (s *LocalStorage) LoadLabels() (map[string]models.LabelRecord, error) {
	labels := make(map[string]models.LabelRecord)

	data, err := os.ReadFile(filepath.Join(s.baseDir, labelsFileName))
	if err != nil {
		if os.IsNotExist(err) {
			return labels, nil
		}
		return nil, fmt.Errorf("failed to read labels: %w", err)
	}

	var records []models.LabelRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("failed to unmarshal labels: %w", err)
	}
	for _, r := range records {
		labels[r.Fingerprint] = r
	}
	return labels, nil
}

// SaveLabels writes labels.json sorted by fingerprint, replacing the file
// atomically
func (s *LocalStorage) SaveLabels(labels map[string]models.LabelRecord) error {
	if err := os.MkdirAll(s.baseDir, 0755); err != nil {
		return fmt.Errorf("failed to create storage directory: %w", err)
	}

	records := make([]models.LabelRecord, 0, len(labels))
	for _, r := range labels {
		records = append(records, r)
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].Fingerprint < records[j].Fingerprint
	})

	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal labels: %w", err)
	}

	path := filepath.Join(s.baseDir, labelsFileName)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write labels: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to replace labels: %w", err)
	}
	return nil
}

// AppendAudit appends one JSON line to labels.audit.jsonl
func (s *LocalStorage) AppendAudit(entry models.LabelAudit) error {
	if err := os.MkdirAll(s.baseDir, 0755); err != nil {
		return fmt.Errorf("failed to create storage directory: %w", err)
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal audit entry: %w", err)
	}

	f, err := os.OpenFile(filepath.Join(s.baseDir, auditFileName), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open audit log: %w", err)
	}
	defer func() { _ = f.Close() }()

	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("failed to write audit log: %w", err)
	}
	return nil
}

// AuditPath returns the path of the labeling audit trail
func (s *LocalStorage) AuditPath() string {
	return filepath.Join(s.baseDir, auditFileName)
}

// formatTimestamp converts a time.Time to filename-safe format
func (s *LocalStorage) formatTimestamp(t time.Time) string {
	return t.UTC().Format(timestampFmt)
}

// parseTimestamp converts filename format back to time.Time
func (s *LocalStorage) parseTimestamp(str string) (time.Time, error) {
	return time.Parse(timestampFmt, str)
}

// GetStoragePath returns the full path to the storage directory
func (s *LocalStorage) GetStoragePath() string {
	return s.baseDir
}

// EnsureDirectoryExists creates the storage directory if it doesn't exist
func (s *LocalStorage) EnsureDirectoryExists() error {
	return os.MkdirAll(filepath.Join(s.baseDir, runsDirName), 0755)
}

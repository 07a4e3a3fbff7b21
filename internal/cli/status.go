package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/ppiankov/guardscan/internal/aggregator"
	"github.com/ppiankov/guardscan/internal/models"
	"github.com/ppiankov/guardscan/internal/storage"
	"github.com/spf13/cobra"
)

var statusFormat string

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show stored runs, labeling progress, and configuration",
	Long: `Status summarizes the local store: the latest stored scan, the finding
trend over the last runs, how many samples have been labeled, and the
configuration in effect.

Example:
  guardscan status
  guardscan status --format json`,
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().StringVar(&statusFormat, "format", "text",
		"output format: text or json")
}

type statusResult struct {
	Config     statusConfig         `json:"config"`
	ConfigFile string               `json:"config_file,omitempty"`
	Runs       int                  `json:"runs"`
	Latest     *statusRun           `json:"latest,omitempty"`
	Trend      *models.TrendSummary `json:"trend,omitempty"`
	Labels     statusLabels         `json:"labels"`
}

type statusRun struct {
	Timestamp     string `json:"timestamp"`
	Root          string `json:"root"`
	FilesScanned  int    `json:"files_scanned"`
	FilesSkipped  int    `json:"files_skipped"`
	TotalFindings int    `json:"total_findings"`
	RulesMatched  int    `json:"rules_matched"`
	Incomplete    bool   `json:"incomplete"`
}

type statusLabels struct {
	Total   int            `json:"total"`
	ByLabel map[string]int `json:"by_label"`
	Rules   int            `json:"rules"`
}

type statusConfig struct {
	StorageDir string `json:"storage_dir"`
	Catalog    string `json:"catalog"`
	Format     string `json:"format"`
	SampleSize int    `json:"sample_size"`
	Seed       int64  `json:"seed"`
	Actor      string `json:"actor"`
}

func runStatus(cmd *cobra.Command, args []string) error {
	if statusFormat != "text" && statusFormat != "json" {
		return fmt.Errorf("unsupported format: %s (use text or json)", statusFormat)
	}

	store, err := openStorage()
	if err != nil {
		return err
	}
	result, err := collectStatus(store)
	if err != nil {
		return err
	}

	if statusFormat == "json" {
		return writeStatusJSON(os.Stdout, result)
	}
	return writeStatusText(os.Stdout, result)
}

func collectStatus(store *storage.LocalStorage) (*statusResult, error) {
	result := &statusResult{
		Config: statusConfig{
			StorageDir: store.GetStoragePath(),
			Catalog:    catalogName(cfg.Catalog),
			Format:     cfg.Format,
			SampleSize: cfg.SampleSize,
			Seed:       cfg.Seed,
			Actor:      cfg.Actor,
		},
		ConfigFile: configFile,
		Labels:     statusLabels{ByLabel: map[string]int{}},
	}

	timestamps, err := store.ListRuns()
	if err != nil {
		return nil, err
	}
	result.Runs = len(timestamps)

	runs, err := store.GetLastNRuns(cfg.LastRuns)
	if err != nil && !errors.Is(err, storage.ErrNoRuns) {
		return nil, err
	}
	if len(runs) > 0 {
		latest := runs[len(runs)-1]
		s := latest.Report.Summary
		result.Latest = &statusRun{
			Timestamp:     latest.Timestamp.Format("2006-01-02 15:04:05"),
			Root:          latest.Report.Root,
			FilesScanned:  s.FilesScanned,
			FilesSkipped:  s.FilesSkipped,
			TotalFindings: s.TotalFindings,
			RulesMatched:  s.RulesMatched,
			Incomplete:    latest.Report.Incomplete,
		}
		result.Trend = aggregator.NewTrendAnalyzer().AnalyzeLastNRuns(runs)
	}

	labels, err := store.LoadLabels()
	if err != nil {
		return nil, fmt.Errorf("failed to load labels: %w", err)
	}
	rules := make(map[string]bool)
	for _, l := range labels {
		result.Labels.Total++
		result.Labels.ByLabel[string(l.Label)]++
		rules[l.RuleID] = true
	}
	result.Labels.Rules = len(rules)

	return result, nil
}

func writeStatusJSON(w io.Writer, result *statusResult) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

func writeStatusText(w io.Writer, result *statusResult) error {
	p := func(format string, args ...interface{}) {
		_, _ = fmt.Fprintf(w, format, args...)
	}

	if result.Latest == nil {
		p("Runs:     none stored (run 'guardscan scan --store')\n")
	} else {
		l := result.Latest
		p("Runs:     %d stored\n", result.Runs)
		p("Latest:   %s  %s\n", l.Timestamp, l.Root)
		p("Findings: %d across %d rule(s), %d file(s) scanned, %d skipped\n",
			l.TotalFindings, l.RulesMatched, l.FilesScanned, l.FilesSkipped)
		if l.Incomplete {
			p("          incomplete run\n")
		}
		if t := result.Trend; t != nil && len(t.FindingSparkline) > 1 {
			first := t.FindingSparkline[0]
			last := t.FindingSparkline[len(t.FindingSparkline)-1]
			p("Trend:    %d → %d over %d runs (%s)\n", first, last, t.RunsAnalyzed, t.TimeRange)
		}
	}

	p("Labels:   %d across %d rule(s)", result.Labels.Total, result.Labels.Rules)
	if result.Labels.Total > 0 {
		p(" (tp %d, fp %d, info %d)",
			result.Labels.ByLabel[string(models.LabelTruePositive)],
			result.Labels.ByLabel[string(models.LabelFalsePositive)],
			result.Labels.ByLabel[string(models.LabelInformational)])
	}
	p("\n")

	p("Storage:  %s\n", result.Config.StorageDir)
	p("Catalog:  %s\n", result.Config.Catalog)
	p("Sampling: %d per rule, seed %d\n", result.Config.SampleSize, result.Config.Seed)
	if result.ConfigFile != "" {
		p("Config:   %s\n", result.ConfigFile)
	}
	return nil
}

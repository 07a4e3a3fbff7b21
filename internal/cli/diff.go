package cli

import (
	"errors"
	"fmt"

	"github.com/ppiankov/guardscan/internal/aggregator"
	"github.com/ppiankov/guardscan/internal/models"
	"github.com/ppiankov/guardscan/internal/reporter"
	"github.com/ppiankov/guardscan/internal/storage"
	"github.com/spf13/cobra"
)

var (
	diffFormat   string
	diffOutput   string
	diffBaseline string
	diffCurrent  string
)

var diffCmd = &cobra.Command{
	Use:   "diff",
	Short: "Show per-rule drift between two scans",
	Long: `Compare the latest stored scan against a baseline and show which
rule counts went up or down.

By default compares the two most recent stored runs. Use --baseline to
compare against a saved report file, and --current to compare two files
without touching the store.

Example:
  guardscan diff
  guardscan diff --baseline ./baseline.json --format json
  guardscan diff --baseline old.json --current new.json`,
	RunE: runDiff,
}

func init() {
	diffCmd.Flags().StringVarP(&diffFormat, "format", "f", "text",
		"output format: text or json")
	diffCmd.Flags().StringVarP(&diffOutput, "output", "o", "",
		"write output to file instead of stdout")
	diffCmd.Flags().StringVar(&diffBaseline, "baseline", "",
		"path to baseline report JSON (default: previous stored run)")
	diffCmd.Flags().StringVar(&diffCurrent, "current", "",
		"path to current report JSON (default: latest stored run)")
}

func runDiff(cmd *cobra.Command, args []string) error {
	if diffFormat != reporter.FormatText && diffFormat != reporter.FormatJSON {
		return fmt.Errorf("unsupported format: %s (use text or json)", diffFormat)
	}

	store, err := openStorage()
	if err != nil {
		return err
	}

	baseline, current, err := resolveDiffRuns(store, diffBaseline, diffCurrent)
	if err != nil {
		return err
	}
	if baseline == nil {
		fmt.Println("Need at least 2 stored runs for diff.")
		fmt.Println("Run 'guardscan scan --store' to store more reports.")
		return nil
	}

	logVerbose("Comparing %s (current) vs %s (baseline)",
		describeRun(current), describeRun(baseline))

	analyzer := aggregator.NewTrendAnalyzer()
	trend := analyzer.CalculateTrend(current.Report, baseline)

	w, closeFn, err := openOutput(diffOutput)
	if err != nil {
		return err
	}
	if diffFormat == reporter.FormatJSON {
		err = reporter.NewJSONReporter(w, true).GenerateTrend(trend)
	} else if stored(current) && stored(baseline) {
		_, err = fmt.Fprint(w, analyzer.GenerateComparisonReport(current, baseline))
		if err == nil && len(trend.ByRule) == 0 {
			_, err = fmt.Fprintln(w, "\nNo drift detected.")
		}
	} else {
		err = reporter.NewTextReporter(w).GenerateTrend(trend)
		if err == nil && len(trend.ByRule) == 0 {
			_, err = fmt.Fprintln(w, "\nNo drift detected.")
		}
	}
	if err != nil {
		_ = closeFn()
		return fmt.Errorf("failed to write diff: %w", err)
	}
	return closeFn()
}

// resolveDiffRuns picks the baseline and current runs. A nil baseline with
// a nil error means the store holds fewer than two runs.
func resolveDiffRuns(store *storage.LocalStorage, baselinePath, currentPath string) (*models.Run, *models.Run, error) {
	var current *models.Run
	if currentPath != "" {
		report, err := storage.LoadReportFile(currentPath)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to load current report: %w", err)
		}
		current = &models.Run{Report: report}
	}

	if baselinePath != "" {
		report, err := storage.LoadReportFile(baselinePath)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to load baseline: %w", err)
		}
		if current == nil {
			current, err = store.GetLatestRun()
			if err != nil {
				return nil, nil, fmt.Errorf("no stored runs (run 'guardscan scan --store' first): %w", err)
			}
		}
		return &models.Run{Report: report}, current, nil
	}

	runs, err := store.GetLastNRuns(2)
	if err != nil && !errors.Is(err, storage.ErrNoRuns) {
		return nil, nil, err
	}
	if current != nil {
		if len(runs) == 0 {
			return nil, current, nil
		}
		return runs[len(runs)-1], current, nil
	}
	if len(runs) < 2 {
		return nil, nil, nil
	}
	return runs[0], runs[1], nil
}

func stored(run *models.Run) bool {
	return run != nil && !run.Timestamp.IsZero()
}

func describeRun(run *models.Run) string {
	if !stored(run) {
		return "report file"
	}
	return run.Timestamp.Format("2006-01-02 15:04")
}

package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/ppiankov/guardscan/internal/aggregator"
	"github.com/ppiankov/guardscan/internal/classifier"
	"github.com/ppiankov/guardscan/internal/models"
	"github.com/ppiankov/guardscan/internal/storage"
	"github.com/ppiankov/guardscan/internal/tui"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var (
	labelReport      string
	labelInteractive bool
	labelList        bool
)

var labelCmd = &cobra.Command{
	Use:   "label [fingerprint label]",
	Short: "Label sampled findings as true positive, false positive or informational",
	Long: `Label attaches a human classification to a sampled finding. Only findings
that appear in a report's evidence sample can be labeled; the fingerprint
is printed next to each sample in text output and carried in JSON and SARIF.

Labels: true_positive (tp), false_positive (fp), informational (info),
unclassified (none). Re-labeling overwrites the previous label; every
change is appended to the audit trail.

--interactive opens a terminal browser over the latest stored report.

Example:
  guardscan label repo:config.py:secret-pattern:3:1 tp
  guardscan label --report out.json repo:deploy.sh:rm-rf:12:5 info
  guardscan label --interactive
  guardscan label --list`,
	Args: func(cmd *cobra.Command, args []string) error {
		if labelInteractive || labelList {
			return cobra.NoArgs(cmd, args)
		}
		return cobra.ExactArgs(2)(cmd, args)
	},
	RunE: runLabel,
}

func init() {
	labelCmd.Flags().StringVar(&labelReport, "report", "",
		"report JSON holding the sample (default: latest stored run)")
	labelCmd.Flags().BoolVarP(&labelInteractive, "interactive", "i", false,
		"browse and label samples in a terminal UI")
	labelCmd.Flags().BoolVar(&labelList, "list", false,
		"print every recorded label")
}

func runLabel(cmd *cobra.Command, args []string) error {
	store, err := openStorage()
	if err != nil {
		return err
	}
	if err := store.EnsureDirectoryExists(); err != nil {
		return err
	}
	clf, err := openClassifier(store)
	if err != nil {
		return fmt.Errorf("failed to load labels: %w", err)
	}

	switch {
	case labelList:
		return printLabels(clf.Labels())
	case labelInteractive:
		return runLabelInteractive(store, clf)
	}

	label, err := models.ParseLabel(args[1])
	if err != nil {
		return err
	}
	report, err := loadReport(store, labelReport)
	if err != nil {
		return err
	}
	finding, err := findSample(report, args[0])
	if err != nil {
		return err
	}

	if err := clf.RecordLabel(finding, label); err != nil {
		return fmt.Errorf("failed to record label: %w", err)
	}

	est := clf.EstimateRate(finding.RuleID)
	fmt.Printf("Labeled %s as %s\n", finding.Fingerprint(), label)
	fmt.Printf("%s TP rate: %s (%d labeled)\n", est.RuleID, est.FormatRate(), est.SampleSize)
	return nil
}

// findSample resolves fingerprint against the sampled findings of report
func findSample(report *models.Report, fingerprint string) (models.Finding, error) {
	f, ok := report.FindSample(fingerprint)
	if !ok {
		return models.Finding{}, fmt.Errorf("fingerprint %q is not in the report's evidence sample", fingerprint)
	}
	return f, nil
}

func runLabelInteractive(store *storage.LocalStorage, clf *classifier.Classifier) error {
	if !term.IsTerminal(int(os.Stdin.Fd())) || !term.IsTerminal(int(os.Stdout.Fd())) {
		return errors.New("--interactive requires a terminal")
	}

	report, err := loadReport(store, labelReport)
	if err != nil {
		return err
	}
	refreshLabels(report, clf)

	var trend *models.TrendSummary
	if runs, err := store.GetLastNRuns(cfg.LastRuns); err == nil && len(runs) > 1 {
		trend = aggregator.NewTrendAnalyzer().AnalyzeLastNRuns(runs)
	}

	return tui.Run(report, trend, clf)
}

// refreshLabels replaces the labels captured at scan time with the
// current ones
func refreshLabels(report *models.Report, clf *classifier.Classifier) {
	for i := range report.Results {
		res := &report.Results[i]
		for j := range res.Sample {
			res.Sample[j].Label = clf.LabelFor(res.Sample[j].Finding(res.RuleID, res.RepositoryID))
		}
	}
}

func printLabels(labels []models.LabelRecord) error {
	if len(labels) == 0 {
		fmt.Println("No labels recorded.")
		return nil
	}
	for _, l := range labels {
		fmt.Printf("%-16s %s\n", l.Label, l.Fingerprint)
	}
	fmt.Printf("\n%d label(s)\n", len(labels))
	return nil
}

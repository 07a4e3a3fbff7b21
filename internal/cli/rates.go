package cli

import (
	"fmt"

	"github.com/ppiankov/guardscan/internal/reporter"
	"github.com/spf13/cobra"
)

var (
	ratesFormat  string
	ratesOutput  string
	ratesAll     bool
	ratesCatalog string
)

var ratesCmd = &cobra.Command{
	Use:   "rates [rule-id...]",
	Short: "Show true-positive rate estimates from recorded labels",
	Long: `Rates reports, per rule, how many sampled findings were labeled and
what share of them are true positives. Unclassified samples do not count;
a rule without labeled samples shows "unclassified".

With no arguments every labeled rule is listed. --all lists every rule in
the catalog, labeled or not.

Example:
  guardscan rates
  guardscan rates secret-pattern rm-rf
  guardscan rates --all --format json`,
	RunE: runRates,
}

func init() {
	ratesCmd.Flags().StringVarP(&ratesFormat, "format", "f", "text",
		"output format: text or json")
	ratesCmd.Flags().StringVarP(&ratesOutput, "output", "o", "",
		"write output to file instead of stdout")
	ratesCmd.Flags().BoolVar(&ratesAll, "all", false,
		"include every catalog rule, not only labeled ones")
	ratesCmd.Flags().StringVar(&ratesCatalog, "catalog", "",
		"rule catalog YAML used with --all (default: configured catalog)")
}

func runRates(cmd *cobra.Command, args []string) error {
	if ratesFormat != reporter.FormatText && ratesFormat != reporter.FormatJSON {
		return fmt.Errorf("unsupported format: %s (use text or json)", ratesFormat)
	}

	store, err := openStorage()
	if err != nil {
		return err
	}
	clf, err := openClassifier(store)
	if err != nil {
		return fmt.Errorf("failed to load labels: %w", err)
	}

	ruleIDs := args
	switch {
	case len(ruleIDs) > 0:
	case ratesAll:
		path := cfg.Catalog
		if cmd.Flags().Changed("catalog") {
			path = ratesCatalog
		}
		cat, err := loadCatalog(path)
		if err != nil {
			return err
		}
		ruleIDs = cat.IDs()
	default:
		ruleIDs = clf.LabeledRules()
	}

	rates := clf.EstimateAll(ruleIDs)

	w, closeFn, err := openOutput(ratesOutput)
	if err != nil {
		return err
	}
	if ratesFormat == reporter.FormatJSON {
		err = reporter.NewJSONReporter(w, true).GenerateRates(rates)
	} else {
		err = reporter.NewTextReporter(w).GenerateRates(rates)
	}
	if err != nil {
		_ = closeFn()
		return fmt.Errorf("failed to write rates: %w", err)
	}
	return closeFn()
}

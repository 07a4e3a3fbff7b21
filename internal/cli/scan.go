package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ppiankov/guardscan/internal/matcher"
	"github.com/ppiankov/guardscan/internal/models"
	"github.com/ppiankov/guardscan/internal/reporter"
	"github.com/ppiankov/guardscan/internal/scanner"
	"github.com/ppiankov/guardscan/internal/walker"
	"github.com/spf13/cobra"
)

var (
	scanRoot        string
	scanCatalog     string
	scanFormat      string
	scanOutput      string
	scanSampleSize  int
	scanSeed        int64
	scanThreads     int
	scanMaxFileSize int64
	scanTimeoutMS   int
	scanWindowLines int
	scanMaxExcerpt  int
	scanInclude     []string
	scanExclude     []string
	scanMultiRepo   bool
	scanStore       bool
	scanStrict      bool
	scanRunTimeout  time.Duration
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan a source tree with the rule catalog",
	Long: `Scan walks the root, applies every rule in the catalog and prints a report
with deduplicated counts and a seeded evidence sample per rule.

Files that are binary, larger than --max-file-size, unreadable, or that
exceed the per-file budget are listed under skipped. An interrupted run
(Ctrl-C, --run-timeout) still prints its partial report, marked incomplete.

Exit codes:
  0  Scan completed (any number of findings)
  1  Rule catalog missing or invalid
  2  Root unreadable
  3  Incomplete run with --strict
  4  Other runtime error

Example:
  guardscan scan --root .
  guardscan scan --root ./repos --multi-repo --format json --store
  guardscan scan --root . --catalog rules.yaml --seed 42 --format sarif -o out.sarif`,
	RunE: runScan,
}

func init() {
	scanCmd.Flags().StringVar(&scanRoot, "root", ".", "directory to scan")
	scanCmd.Flags().StringVar(&scanCatalog, "catalog", "", "rule catalog YAML (default: built-in catalog)")
	scanCmd.Flags().StringVarP(&scanFormat, "format", "f", "text", "output format: text, json, or sarif")
	scanCmd.Flags().StringVarP(&scanOutput, "output", "o", "", "write report to file instead of stdout")
	scanCmd.Flags().IntVar(&scanSampleSize, "sample-size", 10, "evidence samples kept per rule and repository")
	scanCmd.Flags().Int64Var(&scanSeed, "seed", 1, "sampling seed")
	scanCmd.Flags().IntVar(&scanThreads, "threads", 0, "worker threads (default: one per CPU)")
	scanCmd.Flags().Int64Var(&scanMaxFileSize, "max-file-size", walker.DefaultMaxFileSize, "skip files larger than this many bytes")
	scanCmd.Flags().IntVar(&scanTimeoutMS, "timeout-ms", 500, "per-file matching budget in milliseconds")
	scanCmd.Flags().IntVar(&scanWindowLines, "window-lines", matcher.DefaultWindowLines, "lines spanned by multiline rules")
	scanCmd.Flags().IntVar(&scanMaxExcerpt, "max-excerpt", matcher.DefaultMaxExcerptBytes, "maximum bytes of matched text per finding")
	scanCmd.Flags().StringArrayVar(&scanInclude, "include", nil, "only walk paths matching this glob (repeatable)")
	scanCmd.Flags().StringArrayVar(&scanExclude, "exclude", nil, "never walk paths matching this glob (repeatable)")
	scanCmd.Flags().BoolVar(&scanMultiRepo, "multi-repo", false, "treat each top-level directory as a repository")
	scanCmd.Flags().BoolVar(&scanStore, "store", false, "persist the report for diff, status and labeling")
	scanCmd.Flags().BoolVar(&scanStrict, "strict", false, "exit 3 when the run is incomplete")
	scanCmd.Flags().DurationVar(&scanRunTimeout, "run-timeout", 0, "cancel the whole run after this duration (0 = none)")
}

// applyScanFlags overrides config values with explicitly set flags
func applyScanFlags(cmd *cobra.Command) {
	flags := cmd.Flags()
	if flags.Changed("catalog") {
		cfg.Catalog = scanCatalog
	}
	if flags.Changed("format") {
		cfg.Format = scanFormat
	}
	if flags.Changed("sample-size") {
		cfg.SampleSize = scanSampleSize
	}
	if flags.Changed("seed") {
		cfg.Seed = scanSeed
	}
	if flags.Changed("threads") {
		cfg.Threads = scanThreads
	}
	if flags.Changed("max-file-size") {
		cfg.MaxFileSize = scanMaxFileSize
	}
	if flags.Changed("timeout-ms") {
		cfg.TimeoutMS = scanTimeoutMS
	}
	if flags.Changed("window-lines") {
		cfg.WindowLines = scanWindowLines
	}
	if flags.Changed("max-excerpt") {
		cfg.MaxExcerpt = scanMaxExcerpt
	}
	if flags.Changed("include") {
		cfg.Include = scanInclude
	}
	if flags.Changed("exclude") {
		cfg.Exclude = scanExclude
	}
	if flags.Changed("multi-repo") {
		cfg.MultiRepo = scanMultiRepo
	}
	if flags.Changed("store") {
		cfg.Store = scanStore
	}
	if flags.Changed("strict") {
		cfg.Strict = scanStrict
	}
	if flags.Changed("run-timeout") {
		cfg.RunTimeout = scanRunTimeout
	}
}

func runScan(cmd *cobra.Command, args []string) error {
	applyScanFlags(cmd)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	cat, err := loadCatalog(cfg.Catalog)
	if err != nil {
		return err
	}
	rules := cat.Rules()

	engine, err := matcher.New(rules, matcher.Options{
		WindowLines:     cfg.WindowLines,
		MaxExcerptBytes: cfg.MaxExcerpt,
		Logger:          logger,
	})
	if err != nil {
		return &CatalogError{Path: cfg.Catalog, Err: err}
	}

	s, err := scanner.New(engine, scanner.Config{
		Threads:     cfg.Threads,
		FileTimeout: time.Duration(cfg.TimeoutMS) * time.Millisecond,
		Walker: walker.Options{
			IncludeGlobs: cfg.Include,
			ExcludeGlobs: cfg.Exclude,
			MaxFileSize:  cfg.MaxFileSize,
			MultiRepo:    cfg.MultiRepo,
		},
		Logger: logger,
	})
	if err != nil {
		return fmt.Errorf("invalid scan scope: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if cfg.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.RunTimeout)
		defer cancel()
	}

	logVerbose("Scanning %s with %d rule(s)", scanRoot, len(rules))

	result, err := s.Scan(ctx, scanRoot)
	if err != nil {
		return err
	}

	store, err := openStorage()
	if err != nil {
		return err
	}
	clf, err := openClassifier(store)
	if err != nil {
		return fmt.Errorf("failed to load labels: %w", err)
	}

	report, err := scanner.BuildReport(result, rules, scanner.ReportOptions{
		SampleSize: cfg.SampleSize,
		Seed:       cfg.Seed,
		Rates:      clf,
	})
	if err != nil {
		return err
	}

	if cfg.Store {
		if err := store.EnsureDirectoryExists(); err != nil {
			return err
		}
		path, err := store.SaveReport(report, time.Now())
		if err != nil {
			return fmt.Errorf("failed to store report: %w", err)
		}
		logVerbose("Report stored at %s", path)
	}

	if err := writeReport(report, cfg.Format, scanOutput); err != nil {
		return err
	}

	if report.Incomplete {
		incomplete := countIncomplete(report.Skipped)
		logError("%v", incomplete)
		if cfg.Strict {
			return incomplete
		}
	}

	return nil
}

func writeReport(report *models.Report, format, outputPath string) error {
	w, closeFn, err := openOutput(outputPath)
	if err != nil {
		return err
	}
	if err := reporter.Render(w, report, format, buildVersion); err != nil {
		_ = closeFn()
		return fmt.Errorf("failed to write report: %w", err)
	}
	return closeFn()
}

func countIncomplete(skipped []models.Skip) *IncompleteError {
	e := &IncompleteError{}
	for _, s := range skipped {
		switch s.Reason {
		case models.SkipCancelled:
			e.Cancelled++
		case models.SkipTimeout:
			e.TimedOut++
		}
	}
	return e
}

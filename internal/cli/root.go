package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/ppiankov/guardscan/internal/config"
	"github.com/ppiankov/guardscan/internal/logging"
	"github.com/ppiankov/guardscan/internal/walker"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const (
	ExitOK             = 0 // Success, any number of findings
	ExitCatalogFailure = 1 // Rule catalog missing or invalid
	ExitRootUnreadable = 2 // Scan root cannot be enumerated
	ExitIncomplete     = 3 // Cancelled or timed-out files with --strict
	ExitRuntimeError   = 4 // Configuration, I/O or output failure
)

var (
	// Global config instance
	cfg *config.Config

	// Structured logger handed to library packages
	logger = zap.NewNop()

	// Global flags
	configFile string
	verbose    bool
	debug      bool

	buildVersion = "dev"
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "guardscan",
	Short: "guardscan - pattern-based security and governance scanner",
	Long: `guardscan scans source trees with a catalog of regular-expression rules
for hard-coded secrets, injection-prone calls, destructive commands,
insecure defaults, unverified claims and scope-control markers.

It provides:
- Literal evidence (file, line, column, matched text) for every finding
- Deduplicated counts and a reproducible, seeded evidence sample per rule
- Human labeling of sampled findings and true-positive rate estimates
- Stored runs with per-rule drift between scans

Quick start:
  guardscan scan --root . --store
  guardscan label --interactive
  guardscan rates
  guardscan diff

Other commands:
  guardscan catalog list
  guardscan catalog validate rules.yaml
  guardscan status`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.LoadFromFile(configFile)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		if verbose {
			cfg.Verbose = true
		}
		if debug {
			cfg.Debug = true
		}

		logger = logging.Init(logging.Options{Verbose: cfg.Verbose, Debug: cfg.Debug})
		return nil
	},
}

// Execute runs the root command and exits with the mapped exit code
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		logError("%v", err)
	}
	_ = logger.Sync()
	os.Exit(HandleError(err))
}

// SetVersion stamps the binary version reported by `version` and SARIF output
func SetVersion(v string) {
	if v != "" {
		buildVersion = v
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "",
		"config file (default: ./guardscan.yaml, ~/guardscan.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false,
		"verbose output")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false,
		"debug mode (very verbose)")

	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(labelCmd)
	rootCmd.AddCommand(ratesCmd)
	rootCmd.AddCommand(diffCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(catalogCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(versionCmd)
}

// versionCmd shows version information
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("guardscan %s\n", buildVersion)
		fmt.Println("Pattern-based security and governance scanner")
	},
}

// HandleError determines the appropriate exit code for an error
func HandleError(err error) int {
	if err == nil {
		return ExitOK
	}

	var catalogErr *CatalogError
	var rootErr *walker.RootError
	var incompleteErr *IncompleteError

	switch {
	case errors.As(err, &catalogErr):
		return ExitCatalogFailure
	case errors.As(err, &rootErr):
		return ExitRootUnreadable
	case errors.As(err, &incompleteErr):
		return ExitIncomplete
	default:
		return ExitRuntimeError
	}
}

// CatalogError wraps any failure to load or validate the rule catalog
type CatalogError struct {
	Path string
	Err  error
}

func (e *CatalogError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("rule catalog: %v", e.Err)
	}
	return fmt.Sprintf("rule catalog %s: %v", e.Path, e.Err)
}

func (e *CatalogError) Unwrap() error {
	return e.Err
}

// IncompleteError reports a run that did not scan every admitted file
type IncompleteError struct {
	Cancelled int
	TimedOut  int
}

func (e *IncompleteError) Error() string {
	return fmt.Sprintf("scan incomplete: %d file(s) cancelled, %d file(s) timed out", e.Cancelled, e.TimedOut)
}

// logVerbose logs at info level; shown with --verbose
func logVerbose(format string, args ...interface{}) {
	logging.Logger.Infof(format, args...)
}

// logDebug logs at debug level; shown with --debug
func logDebug(format string, args ...interface{}) {
	logging.Logger.Debugf(format, args...)
}

// logError always prints, even before the logger is configured
func logError(format string, args ...interface{}) {
	if cfg == nil {
		fmt.Fprintf(os.Stderr, "[ERROR] "+format+"\n", args...)
		return
	}
	logging.Logger.Errorf(format, args...)
}

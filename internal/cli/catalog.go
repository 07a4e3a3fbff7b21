package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ppiankov/guardscan/internal/catalog"
	"github.com/ppiankov/guardscan/internal/matcher"
	"github.com/ppiankov/guardscan/internal/models"
	"github.com/spf13/cobra"
)

var (
	catalogFormat string
	catalogForce  bool
)

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Inspect, validate, or export rule catalogs",
	Long: `Catalog works with rule catalogs: YAML files listing the rules a scan
applies. Without a file argument the built-in catalog is used.

Example:
  guardscan catalog list
  guardscan catalog show secret-pattern
  guardscan catalog validate rules.yaml
  guardscan catalog init rules.yaml`,
}

var catalogListCmd = &cobra.Command{
	Use:   "list [file]",
	Short: "List the rules of a catalog",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cat, err := loadCatalog(catalogArg(args))
		if err != nil {
			return err
		}
		return writeRuleList(os.Stdout, cat.Rules(), catalogFormat)
	},
}

var catalogShowCmd = &cobra.Command{
	Use:   "show <rule-id> [file]",
	Short: "Show one rule in full",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cat, err := loadCatalog(catalogArg(args[1:]))
		if err != nil {
			return err
		}
		rule, err := cat.Lookup(args[0])
		if err != nil {
			return err
		}
		return writeRule(os.Stdout, rule, catalogFormat)
	},
}

var catalogValidateCmd = &cobra.Command{
	Use:   "validate <file>",
	Short: "Validate a catalog file without scanning",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cat, err := loadCatalog(args[0])
		if err != nil {
			return err
		}
		if _, err := matcher.New(cat.Rules(), matcher.Options{Logger: logger}); err != nil {
			return &CatalogError{Path: args[0], Err: err}
		}
		fmt.Printf("%s: %d rule(s) OK\n", args[0], cat.Len())
		return nil
	},
}

var catalogInitCmd = &cobra.Command{
	Use:   "init [file]",
	Short: "Write the built-in catalog to a file for editing",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := "guardscan-rules.yaml"
		if len(args) == 1 {
			path = args[0]
		}
		if err := writeDefaultCatalog(path, catalogForce); err != nil {
			return err
		}
		fmt.Printf("Catalog written to %s\n", path)
		fmt.Printf("Use it with: guardscan scan --catalog %s\n", path)
		return nil
	},
}

func init() {
	catalogCmd.PersistentFlags().StringVarP(&catalogFormat, "format", "f", "text",
		"output format: text or json")
	catalogInitCmd.Flags().BoolVar(&catalogForce, "force", false,
		"overwrite an existing file")

	catalogCmd.AddCommand(catalogListCmd)
	catalogCmd.AddCommand(catalogShowCmd)
	catalogCmd.AddCommand(catalogValidateCmd)
	catalogCmd.AddCommand(catalogInitCmd)
}

// catalogArg returns the optional file argument, falling back to the
// configured catalog
func catalogArg(args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	return cfg.Catalog
}

func writeDefaultCatalog(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		} else if !errors.Is(err, os.ErrNotExist) {
			return err
		}
	}
	if err := os.WriteFile(path, catalog.Default(), 0644); err != nil {
		return fmt.Errorf("failed to write catalog: %w", err)
	}
	return nil
}

func writeRuleList(w io.Writer, rules []models.Rule, format string) error {
	switch format {
	case "json":
		return encodeJSON(w, rules)
	case "text":
		for _, r := range rules {
			fmt.Fprintf(w, "%-28s %-14s %-24s %s\n", r.ID, strings.ToUpper(r.Severity), r.Category, r.Description)
		}
		fmt.Fprintf(w, "\n%d rule(s)\n", len(rules))
		return nil
	default:
		return fmt.Errorf("unsupported format: %s (use text or json)", format)
	}
}

func writeRule(w io.Writer, r models.Rule, format string) error {
	switch format {
	case "json":
		return encodeJSON(w, r)
	case "text":
		fmt.Fprintf(w, "ID:          %s\n", r.ID)
		fmt.Fprintf(w, "Description: %s\n", r.Description)
		fmt.Fprintf(w, "Category:    %s\n", r.Category)
		fmt.Fprintf(w, "Severity:    %s\n", r.Severity)
		fmt.Fprintf(w, "Pattern:     %s\n", r.Pattern)
		if r.IgnoreCase || r.Multiline {
			fmt.Fprintf(w, "Flags:       ignore_case=%t multiline=%t\n", r.IgnoreCase, r.Multiline)
		}
		if len(r.Keywords) > 0 {
			fmt.Fprintf(w, "Keywords:    %s\n", strings.Join(r.Keywords, ", "))
		}
		fmt.Fprintf(w, "Include:     %s\n", strings.Join(r.IncludeGlobs, ", "))
		if len(r.ExcludeGlobs) > 0 {
			fmt.Fprintf(w, "Exclude:     %s\n", strings.Join(r.ExcludeGlobs, ", "))
		}
		return nil
	default:
		return fmt.Errorf("unsupported format: %s (use text or json)", format)
	}
}

func encodeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

package catalog

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"sort"
	"strings"

	"github.com/ppiankov/guardscan/internal/models"
	"github.com/ppiankov/guardscan/internal/pathglob"
	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var defaultCatalog []byte

// Default returns the embedded catalog source
func Default() []byte {
	out := make([]byte, len(defaultCatalog))
	copy(out, defaultCatalog)
	return out
}

// file is the on-disk catalog layout
type file struct {
	Version int           `yaml:"version"`
	Rules   []models.Rule `yaml:"rules"`
}

// Catalog is the read-only set of rules for a process.
type Catalog struct {
	Version int
	rules   []models.Rule
	byID    map[string]int
}

// InvalidRuleError is returned when a catalog entry cannot be used
type InvalidRuleError struct {
	RuleID string
	Index  int // 0-based position in the catalog
	Reason string
}

func (e *InvalidRuleError) Error() string {
	id := e.RuleID
	if id == "" {
		id = fmt.Sprintf("#%d", e.Index)
	}
	return fmt.Sprintf("invalid rule %s: %s", id, e.Reason)
}

// UnknownRuleError is returned by Lookup for ids not in the catalog
type UnknownRuleError struct {
	RuleID string
}

func (e *UnknownRuleError) Error() string {
	return fmt.Sprintf("unknown rule %q", e.RuleID)
}

// LoadFile reads a catalog from a YAML (or JSON) file
func LoadFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return Load(bytes.NewReader(data))
}

// LoadDefault parses the embedded catalog
func LoadDefault() (*Catalog, error) {
	return Load(bytes.NewReader(defaultCatalog))
}

// Load parses and validates a catalog. Any invalid rule fails the whole load;
// the returned error joins one *InvalidRuleError per problem.
func Load(r io.Reader) (*Catalog, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}

	var f file
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, &InvalidRuleError{Index: -1, Reason: "catalog is empty"}
		}
		return nil, fmt.Errorf("parse catalog: %w", err)
	}

	if len(f.Rules) == 0 {
		return nil, &InvalidRuleError{Index: -1, Reason: "catalog defines no rules"}
	}

	c := &Catalog{
		Version: f.Version,
		rules:   make([]models.Rule, 0, len(f.Rules)),
		byID:    make(map[string]int, len(f.Rules)),
	}

	var problems []error
	for i, rule := range f.Rules {
		rule = normalize(rule)
		if err := validate(rule, i); err != nil {
			problems = append(problems, err)
			continue
		}
		if _, dup := c.byID[rule.ID]; dup {
			problems = append(problems, &InvalidRuleError{RuleID: rule.ID, Index: i, Reason: "duplicate id"})
			continue
		}
		c.byID[rule.ID] = len(c.rules)
		c.rules = append(c.rules, rule)
	}

	if len(problems) > 0 {
		return nil, errors.Join(problems...)
	}
	return c, nil
}

func normalize(rule models.Rule) models.Rule {
	rule.ID = strings.TrimSpace(rule.ID)
	rule.Category = models.Category(strings.ToLower(strings.TrimSpace(string(rule.Category))))
	rule.Severity = strings.ToLower(strings.TrimSpace(rule.Severity))
	if rule.Severity == "" {
		rule.Severity = models.SeverityMedium
	}
	keywords := make([]string, 0, len(rule.Keywords))
	for _, k := range rule.Keywords {
		k = strings.ToLower(strings.TrimSpace(k))
		if k != "" {
			keywords = append(keywords, k)
		}
	}
	rule.Keywords = keywords
	return rule
}

func validate(rule models.Rule, index int) error {
	invalid := func(format string, args ...any) error {
		return &InvalidRuleError{RuleID: rule.ID, Index: index, Reason: fmt.Sprintf(format, args...)}
	}

	if rule.ID == "" {
		return invalid("missing id")
	}
	if strings.TrimSpace(rule.Pattern) == "" {
		return invalid("empty pattern")
	}
	if _, err := CompilePattern(rule); err != nil {
		return invalid("pattern does not compile: %v", err)
	}
	if len(rule.IncludeGlobs) == 0 {
		return invalid("include_globs must not be empty")
	}
	if _, err := pathglob.NewScope(rule.IncludeGlobs, rule.ExcludeGlobs); err != nil {
		return invalid("bad glob: %v", err)
	}
	if !models.IsValidCategory(rule.Category) {
		return invalid("unknown category %q", rule.Category)
	}
	if !models.IsValidSeverity(rule.Severity) {
		return invalid("unknown severity %q", rule.Severity)
	}
	return nil
}

// CompilePattern compiles a rule's pattern with its case and multiline flags
func CompilePattern(rule models.Rule) (*regexp.Regexp, error) {
	flags := ""
	if rule.IgnoreCase {
		flags += "i"
	}
	if rule.Multiline {
		flags += "m"
	}
	pattern := rule.Pattern
	if flags != "" {
		pattern = "(?" + flags + ")" + pattern
	}
	return regexp.Compile(pattern)
}

// Rules returns the rules in catalog order
func (c *Catalog) Rules() []models.Rule {
	out := make([]models.Rule, len(c.rules))
	copy(out, c.rules)
	return out
}

// Len returns the number of rules
func (c *Catalog) Len() int {
	return len(c.rules)
}

// IDs returns the sorted rule ids
func (c *Catalog) IDs() []string {
	ids := make([]string, 0, len(c.rules))
	for _, r := range c.rules {
		ids = append(ids, r.ID)
	}
	sort.Strings(ids)
	return ids
}

// Lookup returns the rule with the given id
func (c *Catalog) Lookup(id string) (models.Rule, error) {
	idx, ok := c.byID[id]
	if !ok {
		return models.Rule{}, &UnknownRuleError{RuleID: id}
	}
	return c.rules[idx], nil
}

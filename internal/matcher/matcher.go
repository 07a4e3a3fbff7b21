package matcher

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"time"
	"unicode/utf8"

	ahocorasick "github.com/BobuSumisu/aho-corasick"
	"github.com/ppiankov/guardscan/internal/catalog"
	"github.com/ppiankov/guardscan/internal/models"
	"github.com/ppiankov/guardscan/internal/pathglob"
	"go.uber.org/zap"
	"golang.org/x/exp/maps"
)

const (
	// DefaultWindowLines spans a 4096-bit RSA PEM block with room to spare
	DefaultWindowLines = 64

	// DefaultMaxExcerptBytes bounds Finding.MatchedText
	DefaultMaxExcerptBytes = 200

	// ctxCheckInterval is how many lines are scanned between context checks
	ctxCheckInterval = 64
)

// Options configures the engine
type Options struct {
	WindowLines     int
	MaxExcerptBytes int
	Logger          *zap.Logger
}

// Target identifies the file being matched
type Target struct {
	Path         string // slash-separated, relative to the scan root
	RepositoryID string
}

// MatchTimeoutError is returned when a file exceeds its scan budget
type MatchTimeoutError struct {
	Path   string
	Budget time.Duration
}

func (e *MatchTimeoutError) Error() string {
	if e.Budget > 0 {
		return fmt.Sprintf("matching %s exceeded %s budget", e.Path, e.Budget)
	}
	return fmt.Sprintf("matching %s exceeded its budget", e.Path)
}

type compiledRule struct {
	rule  models.Rule
	re    *regexp.Regexp
	scope *pathglob.Scope
}

// Engine applies compiled rules to file content. It is immutable after New
// and safe for concurrent use.
type Engine struct {
	rules []compiledRule
	opts  Options

	prefilter      *ahocorasick.Trie
	keywordToRules map[string][]int
	noKeywordRules []int
}

// New compiles rules into an engine
func New(rules []models.Rule, opts Options) (*Engine, error) {
	if opts.WindowLines <= 0 {
		opts.WindowLines = DefaultWindowLines
	}
	if opts.MaxExcerptBytes <= 0 {
		opts.MaxExcerptBytes = DefaultMaxExcerptBytes
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	e := &Engine{
		rules:          make([]compiledRule, 0, len(rules)),
		opts:           opts,
		keywordToRules: make(map[string][]int),
	}

	for i, rule := range rules {
		re, err := catalog.CompilePattern(rule)
		if err != nil {
			return nil, fmt.Errorf("compile rule %q: %w", rule.ID, err)
		}
		scope, err := pathglob.NewScope(rule.IncludeGlobs, rule.ExcludeGlobs)
		if err != nil {
			return nil, fmt.Errorf("compile rule %q globs: %w", rule.ID, err)
		}
		e.rules = append(e.rules, compiledRule{rule: rule, re: re, scope: scope})

		if len(rule.Keywords) == 0 {
			e.noKeywordRules = append(e.noKeywordRules, i)
			continue
		}
		for _, k := range rule.Keywords {
			e.keywordToRules[k] = append(e.keywordToRules[k], i)
		}
	}

	if len(e.keywordToRules) > 0 {
		keywords := maps.Keys(e.keywordToRules)
		sort.Strings(keywords)
		e.prefilter = ahocorasick.NewTrieBuilder().AddStrings(keywords).Build()
	}

	opts.Logger.Debug("matcher compiled",
		zap.Int("rules", len(e.rules)),
		zap.Int("keywords", len(e.keywordToRules)),
		zap.Int("unfiltered_rules", len(e.noKeywordRules)),
		zap.Int("window_lines", opts.WindowLines),
	)
	return e, nil
}

// Rules returns the engine's rules in catalog order
func (e *Engine) Rules() []models.Rule {
	out := make([]models.Rule, 0, len(e.rules))
	for _, cr := range e.rules {
		out = append(out, cr.rule)
	}
	return out
}

// Match scans content for every rule admitting path
func (e *Engine) Match(path string, content []byte) []models.Finding {
	findings, _ := e.MatchContext(context.Background(), Target{Path: path}, content)
	return findings
}

// MatchContext is like Match but stops when ctx is done. On a deadline it
// returns *MatchTimeoutError and no findings, so callers never see a partial
// file.
func (e *Engine) MatchContext(ctx context.Context, target Target, content []byte) ([]models.Finding, error) {
	candidates := e.candidateRules(target.Path, content)
	if len(candidates) == 0 {
		return nil, nil
	}

	lines := splitLines(content)
	var findings []models.Finding

	for _, idx := range candidates {
		cr := e.rules[idx]
		var ruleFindings []models.Finding
		var err error
		if cr.rule.Multiline {
			ruleFindings, err = e.matchWindows(ctx, cr, target, content, lines)
		} else {
			ruleFindings, err = e.matchLines(ctx, cr, target, content, lines)
		}
		if err != nil {
			return nil, e.contextError(target, err)
		}
		findings = append(findings, ruleFindings...)
	}

	sortFindings(findings)
	return findings, nil
}

func (e *Engine) contextError(target Target, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return &MatchTimeoutError{Path: target.Path}
	}
	return err
}

// candidateRules returns, in catalog order, the rules whose scope admits
// path and whose keywords (if any) occur in content
func (e *Engine) candidateRules(path string, content []byte) []int {
	selected := make(map[int]bool, len(e.rules))
	for _, idx := range e.noKeywordRules {
		selected[idx] = true
	}

	if e.prefilter != nil {
		lowered := bytes.ToLower(content)
		for _, m := range e.prefilter.Match(lowered) {
			for _, idx := range e.keywordToRules[string(m.Match())] {
				selected[idx] = true
			}
		}
	}

	out := make([]int, 0, len(selected))
	for idx := range selected {
		if e.rules[idx].scope.Admits(path) {
			out = append(out, idx)
		}
	}
	sort.Ints(out)
	return out
}

// line is a [start, end) byte range of content without its terminator
type line struct {
	start int
	end   int
}

func splitLines(content []byte) []line {
	lines := make([]line, 0, bytes.Count(content, []byte{'\n'})+1)
	start := 0
	for start <= len(content) {
		i := bytes.IndexByte(content[start:], '\n')
		if i < 0 {
			if start < len(content) {
				lines = append(lines, line{start: start, end: trimCR(content, start, len(content))})
			}
			break
		}
		end := start + i
		lines = append(lines, line{start: start, end: trimCR(content, start, end)})
		start = end + 1
	}
	return lines
}

func trimCR(content []byte, start, end int) int {
	if end > start && content[end-1] == '\r' {
		return end - 1
	}
	return end
}

func (e *Engine) matchLines(ctx context.Context, cr compiledRule, target Target, content []byte, lines []line) ([]models.Finding, error) {
	var out []models.Finding
	for i, ln := range lines {
		if i%ctxCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		text := content[ln.start:ln.end]
		for _, loc := range cr.re.FindAllIndex(text, -1) {
			if loc[1] == loc[0] {
				continue
			}
			out = append(out, e.newFinding(cr.rule, target, i+1, loc[0]+1, text[loc[0]:loc[1]]))
		}
	}
	return out, nil
}

// matchWindows evaluates a multiline rule over windows of up to WindowLines
// lines. A match is reported only from the window that starts on the match's
// first line, so each match is reported exactly once.
func (e *Engine) matchWindows(ctx context.Context, cr compiledRule, target Target, content []byte, lines []line) ([]models.Finding, error) {
	if len(lines) == 0 || !cr.re.Match(content) {
		return nil, nil
	}

	var out []models.Finding
	for i, first := range lines {
		if i%ctxCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		last := i + e.opts.WindowLines - 1
		if last >= len(lines) {
			last = len(lines) - 1
		}
		window := content[first.start:lines[last].end]
		firstLen := first.end - first.start

		for _, loc := range cr.re.FindAllIndex(window, -1) {
			if loc[0] >= firstLen {
				break
			}
			if loc[1] == loc[0] {
				continue
			}
			out = append(out, e.newFinding(cr.rule, target, i+1, loc[0]+1, window[loc[0]:loc[1]]))
		}
	}
	return out, nil
}

func (e *Engine) newFinding(rule models.Rule, target Target, lineNumber, column int, matched []byte) models.Finding {
	text, truncated := Excerpt(matched, e.opts.MaxExcerptBytes)
	return models.Finding{
		RuleID:       rule.ID,
		RepositoryID: target.RepositoryID,
		FilePath:     target.Path,
		LineNumber:   lineNumber,
		ColumnOffset: column,
		MatchedText:  text,
		Truncated:    truncated,
	}
}

// Excerpt returns at most maxBytes of b without splitting a UTF-8 sequence
func Excerpt(b []byte, maxBytes int) (string, bool) {
	if len(b) <= maxBytes {
		return string(b), false
	}
	cut := maxBytes
	for cut > 0 && !utf8.RuneStart(b[cut]) {
		cut--
	}
	return string(b[:cut]), true
}

func sortFindings(findings []models.Finding) {
	sort.SliceStable(findings, func(i, j int) bool {
		a, b := findings[i], findings[j]
		if a.LineNumber != b.LineNumber {
			return a.LineNumber < b.LineNumber
		}
		if a.ColumnOffset != b.ColumnOffset {
			return a.ColumnOffset < b.ColumnOffset
		}
		return a.RuleID < b.RuleID
	})
}

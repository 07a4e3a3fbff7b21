// Package pathglob compiles the path globs used by rule scopes and the walker.
//
// Supported syntax: '*' (any run of characters except '/'), '?' (one
// character except '/'), '**' (any run including '/'), '**/' (zero or more
// leading directories), '{a,b}' alternation and '[...]' classes. A glob
// without a '/' is matched against the base name, so "*.go" admits files
// in every directory.
package pathglob

import (
	"fmt"
	"path"
	"regexp"
	"strings"
)

// Pattern is a compiled glob
type Pattern struct {
	glob     string
	baseOnly bool
	re       *regexp.Regexp
}

// Compile turns a glob into a Pattern.
func Compile(glob string) (*Pattern, error) {
	glob = strings.TrimSpace(glob)
	if glob == "" {
		return nil, fmt.Errorf("empty glob")
	}
	expr, err := globToRegex(glob)
	if err != nil {
		return nil, fmt.Errorf("glob %q: %w", glob, err)
	}
	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, fmt.Errorf("glob %q: %w", glob, err)
	}
	return &Pattern{
		glob:     glob,
		baseOnly: !strings.Contains(glob, "/"),
		re:       re,
	}, nil
}

// String returns the source glob
func (p *Pattern) String() string {
	return p.glob
}

// Match reports whether the slash-separated relative path matches
func (p *Pattern) Match(rel string) bool {
	rel = strings.TrimPrefix(rel, "./")
	if p.baseOnly {
		return p.re.MatchString(path.Base(rel))
	}
	return p.re.MatchString(rel)
}

// Scope combines include and exclude globs. Exclude always wins.
type Scope struct {
	include []*Pattern
	exclude []*Pattern
}

// NewScope compiles include and exclude globs. An empty include list admits
// every path.
func NewScope(include, exclude []string) (*Scope, error) {
	s := &Scope{}
	for _, g := range include {
		p, err := Compile(g)
		if err != nil {
			return nil, err
		}
		s.include = append(s.include, p)
	}
	for _, g := range exclude {
		p, err := Compile(g)
		if err != nil {
			return nil, err
		}
		s.exclude = append(s.exclude, p)
	}
	return s, nil
}

// Admits reports whether rel is included and not excluded
func (s *Scope) Admits(rel string) bool {
	if s == nil {
		return true
	}
	if s.Excludes(rel) {
		return false
	}
	if len(s.include) == 0 {
		return true
	}
	for _, p := range s.include {
		if p.Match(rel) {
			return true
		}
	}
	return false
}

// Excludes reports whether any exclude glob matches rel
func (s *Scope) Excludes(rel string) bool {
	if s == nil {
		return false
	}
	for _, p := range s.exclude {
		if p.Match(rel) {
			return true
		}
	}
	return false
}

func globToRegex(glob string) (string, error) {
	var b strings.Builder
	b.WriteString("^")
	r := []rune(glob)
	depth := 0
	for i := 0; i < len(r); i++ {
		switch r[i] {
		case '*':
			if i+1 < len(r) && r[i+1] == '*' {
				if i+2 < len(r) && r[i+2] == '/' {
					b.WriteString("(?:.*/)?")
					i += 2
					continue
				}
				b.WriteString(".*")
				i++
			} else {
				b.WriteString("[^/]*")
			}
		case '?':
			b.WriteString("[^/]")
		case '{':
			depth++
			b.WriteString("(?:")
		case '}':
			if depth == 0 {
				return "", fmt.Errorf("unbalanced '}'")
			}
			depth--
			b.WriteString(")")
		case ',':
			if depth > 0 {
				b.WriteString("|")
			} else {
				b.WriteString(",")
			}
		case '[':
			end := -1
			for j := i + 1; j < len(r); j++ {
				if r[j] == ']' {
					end = j
					break
				}
			}
			if end < 0 {
				return "", fmt.Errorf("unterminated '['")
			}
			class := string(r[i+1 : end])
			if strings.HasPrefix(class, "!") {
				class = "^" + class[1:]
			}
			b.WriteString("[" + class + "]")
			i = end
		case '.', '+', '(', ')', ']', '^', '$', '|', '\\':
			b.WriteString("\\")
			b.WriteRune(r[i])
		default:
			b.WriteRune(r[i])
		}
	}
	if depth != 0 {
		return "", fmt.Errorf("unbalanced '{'")
	}
	b.WriteString("$")
	return b.String(), nil
}

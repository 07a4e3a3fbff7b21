package scanner

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/ppiankov/guardscan/internal/matcher"
	"github.com/ppiankov/guardscan/internal/models"
	"github.com/ppiankov/guardscan/internal/walker"
)

var secretRule = models.Rule{
	ID:           "secret-pattern",
	Pattern:      `api_key\s*=\s*"[^"]{8,}"`,
	IncludeGlobs: []string{"**/*"},
	Category:     models.CategorySecrets,
	Severity:     models.SeverityHigh,
}

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", rel, err)
	}
}

func newScanner(t *testing.T, rules []models.Rule, cfg Config) *Scanner {
	t.Helper()
	engine, err := matcher.New(rules, matcher.Options{})
	if err != nil {
		t.Fatalf("matcher.New: %v", err)
	}
	s, err := New(engine, cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s
}

func TestScanSingleSecret(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "config.py", "import os\n\napi_key = \"abcdefgh12345678\"\n")
	writeFile(t, root, "main.go", "package main\n")

	s := newScanner(t, []models.Rule{secretRule}, Config{Threads: 2})
	result, err := s.Scan(context.Background(), root)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}

	if len(result.Findings) != 1 {
		t.Fatalf("expected 1 finding, got %d: %+v", len(result.Findings), result.Findings)
	}
	f := result.Findings[0]
	if f.RuleID != "secret-pattern" || f.LineNumber != 3 || f.FilePath != "config.py" {
		t.Fatalf("unexpected finding: %+v", f)
	}
	if result.FilesScanned != 2 {
		t.Fatalf("expected 2 files scanned, got %d", result.FilesScanned)
	}
	if result.Incomplete {
		t.Fatal("complete scan flagged incomplete")
	}
}

func TestScanAggregatesAcrossFiles(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.py", "api_key = \"aaaaaaaaaaaa\"\n")
	writeFile(t, root, "b.py", "api_key = \"bbbbbbbbbbbb\"\nx = 1\napi_key = \"cccccccccccc\"\n")

	s := newScanner(t, []models.Rule{secretRule}, Config{Threads: 4})
	result, err := s.Scan(context.Background(), root)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}

	report, err := BuildReport(result, []models.Rule{secretRule}, ReportOptions{SampleSize: 10, Seed: 1})
	if err != nil {
		t.Fatalf("BuildReport: %v", err)
	}
	if len(report.Results) != 1 || report.Results[0].FindingCount != 3 {
		t.Fatalf("expected finding_count 3, got %+v", report.Results)
	}
}

func TestScanSkipsLargeAndBinary(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "big.txt", strings.Repeat("x", 2000))
	writeFile(t, root, "blob.bin", "api_key = \"abcdefgh12345678\"\x00\x01")
	writeFile(t, root, "ok.txt", "nothing here\n")

	s := newScanner(t, []models.Rule{secretRule}, Config{Walker: walker.Options{MaxFileSize: 1000}})
	result, err := s.Scan(context.Background(), root)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}

	want := []models.Skip{
		{Path: "big.txt", Reason: models.SkipTooLarge, Detail: "size 2000 exceeds 1000"},
		{Path: "blob.bin", Reason: models.SkipBinary},
	}
	if !reflect.DeepEqual(result.Skipped, want) {
		t.Fatalf("expected skips %+v, got %+v", want, result.Skipped)
	}
	if len(result.Findings) != 0 {
		t.Fatalf("skipped files must not produce findings: %+v", result.Findings)
	}
	if result.Incomplete {
		t.Fatal("size and binary skips do not make a run incomplete")
	}
}

func TestScanDeterministicAcrossThreads(t *testing.T) {
	root := t.TempDir()
	for i := 0; i < 200; i++ {
		content := "nothing\n"
		if i%3 == 0 {
			content = fmt.Sprintf("x = 1\napi_key = \"secret%08d\"\n", i)
		}
		writeFile(t, root, fmt.Sprintf("dir%d/file%03d.py", i%7, i), content)
	}

	render := func(threads int) *models.Report {
		s := newScanner(t, []models.Rule{secretRule}, Config{Threads: threads, BatchSize: 5})
		result, err := s.Scan(context.Background(), root)
		if err != nil {
			t.Fatalf("Scan: %v", err)
		}
		report, err := BuildReport(result, []models.Rule{secretRule}, ReportOptions{SampleSize: 10, Seed: 42})
		if err != nil {
			t.Fatalf("BuildReport: %v", err)
		}
		return report
	}

	first := render(1)
	for _, threads := range []int{2, 8} {
		if got := render(threads); !reflect.DeepEqual(first, got) {
			t.Fatalf("report with %d threads differs from single-threaded report", threads)
		}
	}
	if first.Results[0].FindingCount != 67 {
		t.Fatalf("expected 67 findings, got %d", first.Results[0].FindingCount)
	}
	if len(first.Results[0].Sample) != 10 {
		t.Fatalf("expected sample of 10, got %d", len(first.Results[0].Sample))
	}
}

func TestScanCancelled(t *testing.T) {
	root := t.TempDir()
	for i := 0; i < 10; i++ {
		writeFile(t, root, fmt.Sprintf("f%d.py", i), "api_key = \"abcdefgh12345678\"\n")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := newScanner(t, []models.Rule{secretRule}, Config{Threads: 2})
	result, err := s.Scan(ctx, root)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if !result.Incomplete {
		t.Fatal("cancelled scan must be incomplete")
	}
	if len(result.Skipped) == 0 || result.Skipped[0].Reason != models.SkipCancelled {
		t.Fatalf("expected cancelled skips, got %+v", result.Skipped)
	}
	if len(result.Findings) != 0 {
		t.Fatalf("expected no findings, got %d", len(result.Findings))
	}
}

func TestScanFileTimeout(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "slow.py", "api_key = \"abcdefgh12345678\"\n")

	s := newScanner(t, []models.Rule{secretRule}, Config{FileTimeout: time.Nanosecond})
	result, err := s.Scan(context.Background(), root)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(result.Skipped) != 1 || result.Skipped[0].Reason != models.SkipTimeout {
		t.Fatalf("expected one timeout skip, got %+v", result.Skipped)
	}
	if !result.Incomplete {
		t.Fatal("timed-out file must make the run incomplete")
	}
	if result.FilesScanned != 0 {
		t.Fatalf("timed-out file must not count as scanned")
	}
}

func TestAwaitMatchPrefersFinishedResult(t *testing.T) {
	done := make(chan struct{})
	close(done)
	want := []models.Finding{{RuleID: "secret-pattern", FilePath: "a.py", LineNumber: 1, ColumnOffset: 1}}

	tests := []struct {
		name    string
		ready   bool
		wantOK  bool
		wantLen int
	}{
		{"result ready at the deadline", true, true, 1},
		{"no result by the deadline", false, false, 0},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			for i := 0; i < 100; i++ {
				ch := make(chan matchResult, 1)
				if tt.ready {
					ch <- matchResult{findings: want}
				}
				res, ok := awaitMatch(done, ch)
				if ok != tt.wantOK || len(res.findings) != tt.wantLen {
					t.Fatalf("attempt %d: ok=%v findings=%d, want ok=%v findings=%d", i, ok, len(res.findings), tt.wantOK, tt.wantLen)
				}
			}
		})
	}
}

func TestScanRootError(t *testing.T) {
	s := newScanner(t, []models.Rule{secretRule}, Config{})
	_, err := s.Scan(context.Background(), filepath.Join(t.TempDir(), "missing"))

	var re *walker.RootError
	if !errors.As(err, &re) {
		t.Fatalf("expected RootError, got %v", err)
	}
}

func TestScanMultiRepo(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "alpha/config.py", "api_key = \"abcdefgh12345678\"\n")
	writeFile(t, root, "beta/config.py", "api_key = \"abcdefgh12345678\"\n")

	s := newScanner(t, []models.Rule{secretRule}, Config{Walker: walker.Options{MultiRepo: true}})
	result, err := s.Scan(context.Background(), root)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	report, err := BuildReport(result, []models.Rule{secretRule}, ReportOptions{})
	if err != nil {
		t.Fatalf("BuildReport: %v", err)
	}
	if len(report.Results) != 2 {
		t.Fatalf("expected one result per repository, got %d", len(report.Results))
	}
	if report.Results[0].RepositoryID != "alpha" || report.Results[1].RepositoryID != "beta" {
		t.Fatalf("unexpected repositories: %s, %s", report.Results[0].RepositoryID, report.Results[1].RepositoryID)
	}
}

package cli

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ppiankov/guardscan/internal/catalog"
	"github.com/ppiankov/guardscan/internal/config"
	"github.com/ppiankov/guardscan/internal/walker"
)

// --- Test helpers ---

// captureStdout runs fn and returns whatever it printed to os.Stdout.
func captureStdout(t *testing.T, fn func()) string {
	t.Helper()
	old := os.Stdout
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("os.Pipe: %v", err)
	}
	os.Stdout = w

	done := make(chan string)
	go func() {
		var buf bytes.Buffer
		_, _ = io.Copy(&buf, r)
		done <- buf.String()
	}()

	fn()

	_ = w.Close()
	os.Stdout = old
	return <-done
}

// withTestConfig sets the global cfg for the duration of the test.
func withTestConfig(t *testing.T, c *config.Config) {
	t.Helper()
	old := cfg
	cfg = c
	t.Cleanup(func() { cfg = old })
}

// testConfig returns defaults with storage in a fresh temp dir.
func testConfig(t *testing.T) *config.Config {
	t.Helper()
	c := config.DefaultConfig()
	c.StorageDir = t.TempDir()
	c.Actor = "tester"
	return c
}

const testCatalog = `
version: 1
rules:
  - id: secret-pattern
    description: Hard-coded API key
    pattern: 'api_key\s*=\s*"[^"]{8,}"'
    include_globs: ["**/*"]
    category: secrets
    severity: high
  - id: rm-rf
    pattern: 'rm\s+-rf'
    include_globs: ["**/*.sh"]
    category: destructive-governance
    severity: informational
`

func writeTestCatalog(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rules.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write catalog: %v", err)
	}
	return path
}

func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatalf("write %s: %v", rel, err)
		}
	}
}

// --- HandleError tests ---

func TestHandleError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, ExitOK},
		{"catalog", &CatalogError{Path: "rules.yaml", Err: errors.New("bad")}, ExitCatalogFailure},
		{"wrapped catalog", fmt.Errorf("scan: %w", &CatalogError{Err: &catalog.UnknownRuleError{RuleID: "x"}}), ExitCatalogFailure},
		{"root", &walker.RootError{Root: "/missing", Err: os.ErrNotExist}, ExitRootUnreadable},
		{"wrapped root", fmt.Errorf("scan: %w", &walker.RootError{Root: "/x", Err: os.ErrPermission}), ExitRootUnreadable},
		{"incomplete", &IncompleteError{Cancelled: 2}, ExitIncomplete},
		{"not exist", os.ErrNotExist, ExitRuntimeError},
		{"generic", errors.New("something went wrong"), ExitRuntimeError},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			if code := HandleError(tt.err); code != tt.want {
				t.Fatalf("HandleError(%v) = %d, want %d", tt.err, code, tt.want)
			}
		})
	}
}

// --- Error type tests ---

func TestCatalogErrorMessage(t *testing.T) {
	inner := errors.New("duplicate id")
	err := &CatalogError{Path: "rules.yaml", Err: inner}
	if err.Error() != "rule catalog rules.yaml: duplicate id" {
		t.Errorf("unexpected message %q", err.Error())
	}
	if !errors.Is(err, inner) {
		t.Error("CatalogError should unwrap to its cause")
	}
	if got := (&CatalogError{Err: inner}).Error(); got != "rule catalog: duplicate id" {
		t.Errorf("unexpected message without path %q", got)
	}
}

func TestIncompleteErrorMessage(t *testing.T) {
	err := &IncompleteError{Cancelled: 3, TimedOut: 1}
	want := "scan incomplete: 3 file(s) cancelled, 1 file(s) timed out"
	if err.Error() != want {
		t.Errorf("IncompleteError.Error() = %q, want %q", err.Error(), want)
	}
}

// --- SetVersion tests ---

func TestSetVersion(t *testing.T) {
	old := buildVersion
	t.Cleanup(func() { buildVersion = old })

	SetVersion("1.2.3")
	if buildVersion != "1.2.3" {
		t.Errorf("buildVersion = %q, want %q", buildVersion, "1.2.3")
	}
	SetVersion("")
	if buildVersion != "1.2.3" {
		t.Errorf("empty version should be ignored, got %q", buildVersion)
	}
}

func TestVersionCommand(t *testing.T) {
	old := buildVersion
	t.Cleanup(func() { buildVersion = old })
	buildVersion = "0.9.0"

	out := captureStdout(t, func() { versionCmd.Run(versionCmd, nil) })
	if !strings.Contains(out, "guardscan 0.9.0") {
		t.Errorf("expected version line, got %q", out)
	}
}

func TestRootRegistersCommands(t *testing.T) {
	want := []string{"scan", "label", "rates", "diff", "status", "catalog", "init", "version"}
	have := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		have[c.Name()] = true
	}
	for _, name := range want {
		if !have[name] {
			t.Errorf("missing command %q", name)
		}
	}
}

// --- Logging helper tests ---

func TestLogErrorWithoutConfig(t *testing.T) {
	withTestConfig(t, nil)

	old := os.Stderr
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("os.Pipe: %v", err)
	}
	os.Stderr = w
	logError("boom %d", 1)
	_ = w.Close()
	os.Stderr = old

	var buf bytes.Buffer
	_, _ = io.Copy(&buf, r)
	if buf.String() != "[ERROR] boom 1\n" {
		t.Errorf("unexpected stderr %q", buf.String())
	}
}

func TestOpenOutputFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.txt")
	w, closeFn, err := openOutput(path)
	if err != nil {
		t.Fatalf("openOutput: %v", err)
	}
	if _, err := io.WriteString(w, "hello"); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := closeFn(); err != nil {
		t.Fatalf("close: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil || string(data) != "hello" {
		t.Fatalf("unexpected file content %q (%v)", data, err)
	}

	if _, _, err := openOutput(filepath.Join(t.TempDir(), "missing", "out.txt")); err == nil {
		t.Fatal("expected error for missing directory")
	}
}

func TestLoadCatalogErrors(t *testing.T) {
	withTestConfig(t, testConfig(t))

	c, err := loadCatalog("")
	if err != nil {
		t.Fatalf("built-in catalog: %v", err)
	}
	if c.Len() == 0 {
		t.Fatal("built-in catalog is empty")
	}

	_, err = loadCatalog(filepath.Join(t.TempDir(), "missing.yaml"))
	var ce *CatalogError
	if !errors.As(err, &ce) {
		t.Fatalf("expected CatalogError, got %v", err)
	}
}

// storeTime returns distinct second-resolution timestamps for stored runs.
func storeTime(i int) time.Time {
	return time.Date(2026, 3, 1, 12, 0, i, 0, time.UTC)
}

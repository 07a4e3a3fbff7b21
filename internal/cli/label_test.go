package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ppiankov/guardscan/internal/models"
	"github.com/ppiankov/guardscan/internal/storage"
)

func withLabelFlags(t *testing.T, report string, list bool) {
	t.Helper()
	oldReport, oldInteractive, oldList := labelReport, labelInteractive, labelList
	labelReport, labelInteractive, labelList = report, false, list
	t.Cleanup(func() { labelReport, labelInteractive, labelList = oldReport, oldInteractive, oldList })
}

func withRatesFlags(t *testing.T, format string, all bool) {
	t.Helper()
	oldFormat, oldOutput, oldAll, oldCatalog := ratesFormat, ratesOutput, ratesAll, ratesCatalog
	ratesFormat, ratesOutput, ratesAll, ratesCatalog = format, "", all, ""
	t.Cleanup(func() { ratesFormat, ratesOutput, ratesAll, ratesCatalog = oldFormat, oldOutput, oldAll, oldCatalog })
}

// storedScan runs a stored scan over the fixture tree and returns the
// fingerprint of the secret sample.
func storedScan(t *testing.T) string {
	t.Helper()
	c := testConfig(t)
	c.Catalog = writeTestCatalog(t, testCatalog)
	c.Store = true
	withTestConfig(t, c)

	root := scanFixture(t)
	withScanFlags(t, root, filepath.Join(t.TempDir(), "out.txt"))
	if err := runScan(scanCmd, nil); err != nil {
		t.Fatalf("runScan: %v", err)
	}
	return filepath.Base(root) + ":config.py:secret-pattern:2:1"
}

func TestRunLabelRecordsAndAudits(t *testing.T) {
	fp := storedScan(t)
	withLabelFlags(t, "", false)

	var err error
	out := captureStdout(t, func() { err = runLabel(labelCmd, []string{fp, "tp"}) })
	if err != nil {
		t.Fatalf("runLabel: %v", err)
	}
	if !strings.Contains(out, "Labeled "+fp+" as true_positive") {
		t.Errorf("unexpected output %q", out)
	}
	if !strings.Contains(out, "secret-pattern TP rate: 100.0% (1 labeled)") {
		t.Errorf("expected rate line, got %q", out)
	}

	store := storage.NewLocal(cfg.StorageDir)
	labels, err := store.LoadLabels()
	if err != nil {
		t.Fatalf("LoadLabels: %v", err)
	}
	if labels[fp].Label != models.LabelTruePositive {
		t.Fatalf("expected stored true_positive, got %+v", labels[fp])
	}
	if _, err := os.Stat(store.AuditPath()); err != nil {
		t.Fatalf("expected audit log: %v", err)
	}

	// Re-labeling overwrites and a fresh scan carries the label and rate.
	captureStdout(t, func() { err = runLabel(labelCmd, []string{fp, "false_positive"}) })
	if err != nil {
		t.Fatalf("relabel: %v", err)
	}
	cfg.Format = "json"
	out2 := filepath.Join(t.TempDir(), "report.json")
	scanOutput = out2
	if err := runScan(scanCmd, nil); err != nil {
		t.Fatalf("rescan: %v", err)
	}
	report, err := storage.LoadReportFile(out2)
	if err != nil {
		t.Fatalf("load report: %v", err)
	}
	res, ok := report.FindSample(fp)
	if !ok {
		t.Fatalf("sample %s missing from rescan", fp)
	}
	if res.RuleID != "secret-pattern" {
		t.Fatalf("unexpected finding %+v", res)
	}
	for _, r := range report.Results {
		if r.RuleID != "secret-pattern" {
			continue
		}
		if r.Sample[0].Label != models.LabelFalsePositive {
			t.Errorf("expected sample labeled false_positive, got %q", r.Sample[0].Label)
		}
		if r.EstimatedRate == nil || *r.EstimatedRate != 0 {
			t.Errorf("expected rate 0 after relabel, got %v", r.EstimatedRate)
		}
		if r.LabeledSamples != 1 {
			t.Errorf("expected 1 labeled sample, got %d", r.LabeledSamples)
		}
	}
}

func TestRunLabelErrors(t *testing.T) {
	fp := storedScan(t)

	tests := []struct {
		name   string
		args   []string
		report string
		errMsg string
	}{
		{"unknown fingerprint", []string{"repo:nope.py:secret-pattern:1:1", "tp"}, "", "not in the report's evidence sample"},
		{"bad label", []string{fp, "maybe"}, "", "maybe"},
		{"missing report file", []string{fp, "tp"}, filepath.Join(t.TempDir(), "missing.json"), "report not found"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			withLabelFlags(t, tt.report, false)
			err := runLabel(labelCmd, tt.args)
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.errMsg) {
				t.Fatalf("expected error containing %q, got %v", tt.errMsg, err)
			}
		})
	}
}

func TestRunLabelNoStoredRuns(t *testing.T) {
	withTestConfig(t, testConfig(t))
	withLabelFlags(t, "", false)

	err := runLabel(labelCmd, []string{"repo:a.py:secret-pattern:1:1", "tp"})
	if err == nil || !strings.Contains(err.Error(), "no stored runs") {
		t.Fatalf("expected no stored runs error, got %v", err)
	}
}

func TestRunLabelList(t *testing.T) {
	fp := storedScan(t)
	withLabelFlags(t, "", false)
	captureStdout(t, func() {
		if err := runLabel(labelCmd, []string{fp, "info"}); err != nil {
			t.Errorf("runLabel: %v", err)
		}
	})

	withLabelFlags(t, "", true)
	var err error
	out := captureStdout(t, func() { err = runLabel(labelCmd, nil) })
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if !strings.Contains(out, "informational") || !strings.Contains(out, fp) || !strings.Contains(out, "1 label(s)") {
		t.Errorf("unexpected list output %q", out)
	}
}

func TestLabelArgs(t *testing.T) {
	withLabelFlags(t, "", false)
	if err := labelCmd.Args(labelCmd, []string{"only-one"}); err == nil {
		t.Error("expected error for a single argument")
	}
	if err := labelCmd.Args(labelCmd, []string{"fp", "tp"}); err != nil {
		t.Errorf("unexpected error: %v", err)
	}

	withLabelFlags(t, "", true)
	if err := labelCmd.Args(labelCmd, []string{"fp"}); err == nil {
		t.Error("--list should take no arguments")
	}
}

func TestRunRates(t *testing.T) {
	fp := storedScan(t)
	withLabelFlags(t, "", false)
	captureStdout(t, func() {
		if err := runLabel(labelCmd, []string{fp, "tp"}); err != nil {
			t.Errorf("runLabel: %v", err)
		}
	})

	withRatesFlags(t, "json", false)
	var err error
	out := captureStdout(t, func() { err = runRates(ratesCmd, nil) })
	if err != nil {
		t.Fatalf("runRates: %v", err)
	}
	var rates []models.RateEstimate
	if err := json.Unmarshal([]byte(out), &rates); err != nil {
		t.Fatalf("decode rates: %v\n%s", err, out)
	}
	if len(rates) != 1 || rates[0].RuleID != "secret-pattern" {
		t.Fatalf("unexpected rates %+v", rates)
	}
	if rates[0].EstimatedRate == nil || *rates[0].EstimatedRate != 1 {
		t.Fatalf("expected rate 1, got %v", rates[0].EstimatedRate)
	}

	withRatesFlags(t, "text", true)
	out = captureStdout(t, func() { err = runRates(ratesCmd, nil) })
	if err != nil {
		t.Fatalf("runRates --all: %v", err)
	}
	if !strings.Contains(out, "rm-rf") || !strings.Contains(out, "unclassified") {
		t.Errorf("expected unlabeled catalog rule listed as unclassified:\n%s", out)
	}
	if !strings.Contains(out, "100.0%") {
		t.Errorf("expected labeled rule rate:\n%s", out)
	}
}

func TestRunRatesExplicitRules(t *testing.T) {
	withTestConfig(t, testConfig(t))
	withRatesFlags(t, "json", false)

	var err error
	out := captureStdout(t, func() { err = runRates(ratesCmd, []string{"never-labeled"}) })
	if err != nil {
		t.Fatalf("runRates: %v", err)
	}
	if !strings.Contains(out, `"estimated_rate": null`) {
		t.Errorf("expected null rate for unlabeled rule:\n%s", out)
	}
}

func TestRunRatesBadFormat(t *testing.T) {
	withTestConfig(t, testConfig(t))
	withRatesFlags(t, "sarif", false)
	if err := runRates(ratesCmd, nil); err == nil {
		t.Fatal("expected unsupported format error")
	}
}

package reporter

import (
	"encoding/json"
	"io"

	"github.com/ppiankov/guardscan/internal/models"
)

// SARIF 2.1.0 output for code scanning integrations.
// Minimal structures, only what's needed for valid SARIF.

const sarifSchema = "https://raw.githubusercontent.com/oasis-tcs/sarif-spec/master/Schemata/sarif-schema-2.1.0.json"

type sarifLog struct {
	Schema  string     `json:"$schema"`
	Version string     `json:"version"`
	Runs    []sarifRun `json:"runs"`
}

type sarifRun struct {
	Tool    sarifTool     `json:"tool"`
	Results []sarifResult `json:"results"`
}

type sarifTool struct {
	Driver sarifDriver `json:"driver"`
}

type sarifDriver struct {
	Name    string      `json:"name"`
	Version string      `json:"version"`
	Rules   []sarifRule `json:"rules"`
}

type sarifRule struct {
	ID               string             `json:"id"`
	ShortDescription sarifMessage       `json:"shortDescription"`
	DefaultConfig    sarifDefaultConfig `json:"defaultConfiguration"`
	Properties       sarifRuleProps     `json:"properties"`
}

type sarifRuleProps struct {
	Category     string   `json:"category"`
	FindingCount int      `json:"findingCount"`
	Rate         *float64 `json:"estimatedTruePositiveRate,omitempty"`
}

type sarifDefaultConfig struct {
	Level string `json:"level"`
}

type sarifMessage struct {
	Text string `json:"text"`
}

type sarifResult struct {
	RuleID              string            `json:"ruleId"`
	Level               string            `json:"level"`
	Message             sarifMessage      `json:"message"`
	Locations           []sarifLocation   `json:"locations"`
	PartialFingerprints map[string]string `json:"partialFingerprints"`
}

type sarifLocation struct {
	PhysicalLocation sarifPhysical `json:"physicalLocation"`
}

type sarifPhysical struct {
	ArtifactLocation sarifArtifact `json:"artifactLocation"`
	Region           sarifRegion   `json:"region"`
}

type sarifArtifact struct {
	URI string `json:"uri"`
}

type sarifRegion struct {
	StartLine   int `json:"startLine"`
	StartColumn int `json:"startColumn"`
}

// SARIFReporter renders the sampled evidence of a report as SARIF. Rule
// properties carry the full finding count.
type SARIFReporter struct {
	writer  io.Writer
	version string
}

// NewSARIFReporter creates a SARIF reporter stamped with the tool version
func NewSARIFReporter(writer io.Writer, version string) *SARIFReporter {
	return &SARIFReporter{writer: writer, version: version}
}

// Generate writes the SARIF log
func (r *SARIFReporter) Generate(report *models.Report) error {
	var rules []sarifRule
	seen := map[string]int{}
	results := []sarifResult{}

	for _, res := range report.Results {
		if idx, ok := seen[res.RuleID]; ok {
			rules[idx].Properties.FindingCount += res.FindingCount
		} else {
			desc := res.Description
			if desc == "" {
				desc = res.RuleID
			}
			seen[res.RuleID] = len(rules)
			rules = append(rules, sarifRule{
				ID:               res.RuleID,
				ShortDescription: sarifMessage{Text: desc},
				DefaultConfig:    sarifDefaultConfig{Level: sarifLevel(res.Severity)},
				Properties: sarifRuleProps{
					Category:     string(res.Category),
					FindingCount: res.FindingCount,
					Rate:         res.EstimatedRate,
				},
			})
		}

		for _, s := range res.Sample {
			results = append(results, sarifResult{
				RuleID:  res.RuleID,
				Level:   sarifLevel(res.Severity),
				Message: sarifMessage{Text: s.MatchedText},
				Locations: []sarifLocation{{
					PhysicalLocation: sarifPhysical{
						ArtifactLocation: sarifArtifact{URI: s.FilePath},
						Region:           sarifRegion{StartLine: s.LineNumber, StartColumn: s.ColumnOffset},
					},
				}},
				PartialFingerprints: map[string]string{"guardscan/v1": s.Fingerprint},
			})
		}
	}

	log := sarifLog{
		Schema:  sarifSchema,
		Version: "2.1.0",
		Runs: []sarifRun{{
			Tool: sarifTool{
				Driver: sarifDriver{
					Name:    "guardscan",
					Version: r.version,
					Rules:   rules,
				},
			},
			Results: results,
		}},
	}

	enc := json.NewEncoder(r.writer)
	enc.SetIndent("", "  ")
	return enc.Encode(log)
}

func sarifLevel(severity string) string {
	switch severity {
	case models.SeverityHigh:
		return "error"
	case models.SeverityMedium:
		return "warning"
	default:
		return "note"
	}
}

package reporter

import (
	"fmt"
	"sort"

	"github.com/ppiankov/guardscan/internal/aggregator"
	"github.com/ppiankov/guardscan/internal/models"
)

// Supported output formats
const (
	FormatText  = "text"
	FormatJSON  = "json"
	FormatSARIF = "sarif"
)

// Formats lists every supported output format
var Formats = []string{FormatText, FormatJSON, FormatSARIF}

// RateSource supplies labels and rate estimates. *classifier.Classifier
// satisfies it.
type RateSource interface {
	EstimateRate(ruleID string) models.RateEstimate
	LabelFor(f models.Finding) models.Label
}

// BuildInput carries everything a report is derived from
type BuildInput struct {
	Root         string
	Seed         int64
	SampleSize   int
	Rules        []models.Rule
	Aggregate    *aggregator.Result
	Rates        RateSource // optional
	FilesScanned int
	Skipped      []models.Skip
	Incomplete   bool
}

// Build assembles a report. Ordering is normalized here: results by
// repository then rule, samples by file, line and column, skips by path.
func Build(in BuildInput) *models.Report {
	rules := make(map[string]models.Rule, len(in.Rules))
	for _, r := range in.Rules {
		rules[r.ID] = r
	}

	report := &models.Report{
		SchemaVersion: models.ReportSchemaVersion,
		Root:          in.Root,
		Seed:          in.Seed,
		SampleSize:    in.SampleSize,
		Incomplete:    in.Incomplete,
		Results:       []models.RuleResult{},
		Skipped:       []models.Skip{},
		Summary: models.ReportSummary{
			FilesScanned:       in.FilesScanned,
			FilesSkipped:       len(in.Skipped),
			RulesInCatalog:     len(in.Rules),
			FindingsByCategory: map[string]int{},
			FindingsBySeverity: map[string]int{},
		},
	}

	rates := make(map[string]models.RateEstimate)
	matched := make(map[string]bool)

	if in.Aggregate != nil {
		keys := append([]models.AggregateKey(nil), in.Aggregate.Keys...)
		aggregator.SortKeys(keys)

		for _, key := range keys {
			agg := in.Aggregate.ByKey[key]
			rule := rules[key.RuleID]

			result := models.RuleResult{
				RuleID:       key.RuleID,
				Description:  rule.Description,
				RepositoryID: key.RepositoryID,
				Category:     rule.Category,
				Severity:     rule.Severity,
				FindingCount: agg.FindingCount,
				Sample:       make([]models.SampleRecord, 0, len(agg.Sample)),
			}

			if in.Rates != nil {
				est, ok := rates[key.RuleID]
				if !ok {
					est = in.Rates.EstimateRate(key.RuleID)
					rates[key.RuleID] = est
				}
				result.EstimatedRate = est.EstimatedRate
				result.LabeledSamples = est.SampleSize
				if est.EstimatedRate != nil {
					tp := *est.EstimatedRate * float64(agg.FindingCount)
					result.EstimatedTruePositives = &tp
				}
			}

			sample := append([]models.Finding(nil), agg.Sample...)
			sort.Slice(sample, func(i, j int) bool { return sample[i].Less(sample[j]) })
			for _, f := range sample {
				rec := models.SampleRecord{
					Fingerprint:  f.Fingerprint(),
					FilePath:     f.FilePath,
					LineNumber:   f.LineNumber,
					ColumnOffset: f.ColumnOffset,
					MatchedText:  f.MatchedText,
				}
				if in.Rates != nil {
					if label := in.Rates.LabelFor(f); label != models.LabelUnclassified {
						rec.Label = label
					}
				}
				result.Sample = append(result.Sample, rec)
			}

			report.Results = append(report.Results, result)
			report.Summary.TotalFindings += agg.FindingCount
			report.Summary.FindingsByCategory[string(rule.Category)] += agg.FindingCount
			report.Summary.FindingsBySeverity[rule.Severity] += agg.FindingCount
			matched[key.RuleID] = true
		}
	}
	report.Summary.RulesMatched = len(matched)

	report.Skipped = append(report.Skipped, in.Skipped...)
	sort.SliceStable(report.Skipped, func(i, j int) bool {
		if report.Skipped[i].Path != report.Skipped[j].Path {
			return report.Skipped[i].Path < report.Skipped[j].Path
		}
		return report.Skipped[i].Reason < report.Skipped[j].Reason
	})

	report.Recommendations = aggregator.NewRecommendationGenerator().GenerateRecommendations(report.Results)

	return report
}

// ValidateFormat returns an error for unsupported formats
func ValidateFormat(format string) error {
	for _, f := range Formats {
		if f == format {
			return nil
		}
	}
	return fmt.Errorf("unsupported format: %s (use text, json, or sarif)", format)
}

package reporter

import (
	"encoding/json"
	"io"

	"github.com/ppiankov/guardscan/internal/models"
)

// JSONReporter generates machine-readable JSON reports
type JSONReporter struct {
	writer io.Writer
	pretty bool
}

// NewJSONReporter creates a new JSON reporter
func NewJSONReporter(writer io.Writer, pretty bool) *JSONReporter {
	return &JSONReporter{
		writer: writer,
		pretty: pretty,
	}
}

// Generate writes the full report document
func (r *JSONReporter) Generate(report *models.Report) error {
	return r.write(report)
}

// GenerateRates writes rate estimates
func (r *JSONReporter) GenerateRates(rates []models.RateEstimate) error {
	return r.write(rates)
}

// GenerateTrend writes a run comparison
func (r *JSONReporter) GenerateTrend(trend *models.Trend) error {
	return r.write(trend)
}

func (r *JSONReporter) write(v any) error {
	enc := json.NewEncoder(r.writer)
	enc.SetEscapeHTML(false)
	if r.pretty {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(v)
}

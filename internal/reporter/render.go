package reporter

import (
	"io"

	"github.com/ppiankov/guardscan/internal/models"
)

// Render writes report to w in the given format. version stamps SARIF output.
func Render(w io.Writer, report *models.Report, format, version string) error {
	if err := ValidateFormat(format); err != nil {
		return err
	}
	switch format {
	case FormatJSON:
		return NewJSONReporter(w, true).Generate(report)
	case FormatSARIF:
		return NewSARIFReporter(w, version).Generate(report)
	default:
		return NewTextReporter(w).Generate(report)
	}
}

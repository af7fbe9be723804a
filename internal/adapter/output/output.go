// Package output provides output formatters for attribution records.
package output

import (
	"io"

	"github.com/jmylchreest/niriurgent/internal/model"
)

// Formatter formats attribution records for output.
type Formatter interface {
	// Format writes formatted records to the writer.
	Format(w io.Writer, records []model.AttributionRecord) error
}

// FormatType represents an output format type.
type FormatType string

const (
	FormatPlain FormatType = "plain"
	FormatJSON  FormatType = "json"
	FormatYAML  FormatType = "yaml"
	FormatIDs   FormatType = "ids"
)

// NewFormatter creates a formatter for the specified format type.
// Unknown formats fall back to plain text.
func NewFormatter(format FormatType, opts FormatterOptions) Formatter {
	switch format {
	case FormatJSON:
		return NewJSONFormatter(opts)
	case FormatYAML:
		return NewYAMLFormatter()
	case FormatIDs:
		return NewIDsFormatter()
	default:
		return NewPlainFormatter(opts)
	}
}

// FormatterOptions configures formatter behavior.
type FormatterOptions struct {
	Template   string // Custom text/template for plain format
	ShowIndex  bool   // Show 1-based index prefix
	ShowTime   bool   // Show relative time
	ShowDetail bool   // Show pid, entry and windows on a second line
	MaxLen     int    // Maximum summary length (0 = unlimited)
}

// DefaultFormatterOptions returns sensible defaults for terminal output.
func DefaultFormatterOptions() FormatterOptions {
	return FormatterOptions{
		ShowIndex:  true,
		ShowTime:   true,
		ShowDetail: true,
		MaxLen:     80,
	}
}

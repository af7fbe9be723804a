package output

import (
	"io"

	"gopkg.in/yaml.v3"

	"github.com/jmylchreest/niriurgent/internal/model"
)

// YAMLFormatter formats records as a YAML sequence.
type YAMLFormatter struct{}

// NewYAMLFormatter creates a new YAML formatter.
func NewYAMLFormatter() *YAMLFormatter {
	return &YAMLFormatter{}
}

// Format writes records as YAML.
func (f *YAMLFormatter) Format(w io.Writer, records []model.AttributionRecord) error {
	if records == nil {
		records = []model.AttributionRecord{}
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(records); err != nil {
		return err
	}
	return enc.Close()
}

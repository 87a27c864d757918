package formatting

import (
	"fmt"

	"sigs.k8s.io/yaml"
)

// YAMLFormatter provides YAML output formatting. Values go through their
// JSON encoding, so json struct tags name the keys.
type YAMLFormatter struct {
	options Options
}

// NewYAMLFormatter creates a new YAML formatter
func NewYAMLFormatter(options Options) Formatter {
	return &YAMLFormatter{
		options: options,
	}
}

// FormatData writes data as YAML
func (f *YAMLFormatter) FormatData(data interface{}) error {
	out, err := yaml.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to format YAML: %w", err)
	}
	_, err = f.options.writer().Write(out)
	return err
}

// FormatRows writes rows as a YAML list of mappings keyed by header
func (f *YAMLFormatter) FormatRows(headers []string, rows [][]string) error {
	return f.FormatData(rowsToRecords(headers, rows))
}

// SetOptions updates the formatter options
func (f *YAMLFormatter) SetOptions(options Options) {
	f.options = options
}

// GetOptions returns the current formatter options
func (f *YAMLFormatter) GetOptions() Options {
	return f.options
}

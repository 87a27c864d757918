package formatting

import (
	"encoding/json"
)

// JSONFormatter provides structured JSON output formatting
type JSONFormatter struct {
	options Options
}

// NewJSONFormatter creates a new JSON formatter
func NewJSONFormatter(options Options) Formatter {
	return &JSONFormatter{
		options: options,
	}
}

// FormatData writes data as indented JSON
func (f *JSONFormatter) FormatData(data interface{}) error {
	enc := json.NewEncoder(f.options.writer())
	enc.SetIndent("", "  ")
	return enc.Encode(data)
}

// FormatRows writes rows as a JSON array of objects keyed by header
func (f *JSONFormatter) FormatRows(headers []string, rows [][]string) error {
	return f.FormatData(rowsToRecords(headers, rows))
}

// SetOptions updates the formatter options
func (f *JSONFormatter) SetOptions(options Options) {
	f.options = options
}

// GetOptions returns the current formatter options
func (f *JSONFormatter) GetOptions() Options {
	return f.options
}

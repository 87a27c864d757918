package formatting

import (
	"fmt"
	"sort"
	"strings"
)

// ConsoleFormatter provides simple console output formatting
type ConsoleFormatter struct {
	options Options
}

// NewConsoleFormatter creates a new console formatter
func NewConsoleFormatter(options Options) Formatter {
	return &ConsoleFormatter{
		options: options,
	}
}

// FormatData prints strings as-is, string maps as sorted "key: value"
// lines and anything else as indented JSON.
func (f *ConsoleFormatter) FormatData(data interface{}) error {
	w := f.options.writer()
	switch d := data.(type) {
	case string:
		_, err := fmt.Fprintln(w, d)
		return err
	case []string:
		for _, s := range d {
			if _, err := fmt.Fprintln(w, s); err != nil {
				return err
			}
		}
		return nil
	case map[string]string:
		keys := make([]string, 0, len(d))
		for k := range d {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if _, err := fmt.Fprintf(w, "%s: %s\n", k, d[k]); err != nil {
				return err
			}
		}
		return nil
	default:
		_, err := fmt.Fprintln(w, PrettyJSON(d))
		return err
	}
}

// FormatRows prints one line per row with columns separated by two spaces.
func (f *ConsoleFormatter) FormatRows(headers []string, rows [][]string) error {
	w := f.options.writer()
	if len(rows) == 0 {
		if !f.options.Quiet {
			_, err := fmt.Fprintln(w, "Nothing to show.")
			return err
		}
		return nil
	}
	for _, row := range rows {
		if _, err := fmt.Fprintln(w, strings.Join(row, "  ")); err != nil {
			return err
		}
	}
	return nil
}

// SetOptions updates the formatter options
func (f *ConsoleFormatter) SetOptions(options Options) {
	f.options = options
}

// GetOptions returns the current formatter options
func (f *ConsoleFormatter) GetOptions() Options {
	return f.options
}

package formatting

import (
	"fmt"
	"sort"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	pkgstrings "appkeeper/pkg/strings"
)

const maxCellWidth = 100

// TableFormatter provides rich table output formatting
type TableFormatter struct {
	options Options
}

// NewTableFormatter creates a new table formatter
func NewTableFormatter(options Options) Formatter {
	return &TableFormatter{
		options: options,
	}
}

// FormatData renders maps as KEY/VALUE tables and everything else through
// the console formatter.
func (f *TableFormatter) FormatData(data interface{}) error {
	switch d := data.(type) {
	case map[string]string:
		generic := make(map[string]interface{}, len(d))
		for k, v := range d {
			generic[k] = v
		}
		return f.formatObjectData(generic)
	case map[string]interface{}:
		return f.formatObjectData(d)
	default:
		return NewConsoleFormatter(f.options).FormatData(d)
	}
}

// FormatRows renders a table with one column per header
func (f *TableFormatter) FormatRows(headers []string, rows [][]string) error {
	w := f.options.writer()
	if len(rows) == 0 {
		_, err := fmt.Fprint(w, f.formatEmptyMessage("No items found"))
		return err
	}

	t := f.createTable()
	header := make(table.Row, len(headers))
	for i, h := range headers {
		header[i] = f.colorize(text.FgHiCyan, strings.ToUpper(h))
	}
	t.AppendHeader(header)
	for _, row := range rows {
		r := make(table.Row, len(row))
		for i, cell := range row {
			r[i] = pkgstrings.TruncateDescription(cell, maxCellWidth)
		}
		t.AppendRow(r)
	}
	t.Render()

	if !f.options.Quiet {
		_, err := fmt.Fprintf(w, "\n%s %s\n",
			f.colorize(text.FgHiBlue, "Total:"),
			f.colorize(text.FgHiWhite, fmt.Sprint(len(rows))))
		return err
	}
	return nil
}

// SetOptions updates the formatter options
func (f *TableFormatter) SetOptions(options Options) {
	f.options = options
}

// GetOptions returns the current formatter options
func (f *TableFormatter) GetOptions() Options {
	return f.options
}

// Helper methods

// createTable creates a new table with standard styling
func (f *TableFormatter) createTable() table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(f.options.writer())
	t.SetStyle(table.StyleRounded)
	return t
}

func (f *TableFormatter) colorize(c text.Color, s string) string {
	if !f.options.Color {
		return s
	}
	return c.Sprint(s)
}

// formatEmptyMessage formats empty result messages
func (f *TableFormatter) formatEmptyMessage(message string) string {
	return f.colorize(text.FgYellow, message) + "\n"
}

// formatObjectData formats object data as key-value pairs
func (f *TableFormatter) formatObjectData(data map[string]interface{}) error {
	t := f.createTable()
	t.AppendHeader(table.Row{
		f.colorize(text.FgHiCyan, "KEY"),
		f.colorize(text.FgHiCyan, "VALUE"),
	})

	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, key := range keys {
		t.AppendRow(table.Row{
			f.colorize(text.FgHiCyan, key),
			pkgstrings.TruncateDescription(fmt.Sprintf("%v", data[key]), maxCellWidth),
		})
	}

	t.Render()
	return nil
}

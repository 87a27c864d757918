package formatting

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type appInfo struct {
	ID      string `json:"id"`
	Version string `json:"version"`
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("")
	require.NoError(t, err)
	assert.Equal(t, FormatConsole, f)

	f, err = ParseFormat("yaml")
	require.NoError(t, err)
	assert.Equal(t, FormatYAML, f)

	_, err = ParseFormat("xml")
	assert.Error(t, err)
}

func TestNew(t *testing.T) {
	assert.IsType(t, &JSONFormatter{}, New(Options{Format: FormatJSON}))
	assert.IsType(t, &YAMLFormatter{}, New(Options{Format: FormatYAML}))
	assert.IsType(t, &TableFormatter{}, New(Options{Format: FormatTable}))
	assert.IsType(t, &ConsoleFormatter{}, New(Options{}))
}

func TestFormatRows(t *testing.T) {
	headers := []string{"id", "label"}
	rows := [][]string{{"wordpress", "Blog"}, {"nextcloud", "Cloud"}}

	t.Run("console", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, New(Options{Out: &buf}).FormatRows(headers, rows))
		assert.Equal(t, "wordpress  Blog\nnextcloud  Cloud\n", buf.String())
	})

	t.Run("json", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, New(Options{Format: FormatJSON, Out: &buf}).FormatRows(headers, rows))
		var got []map[string]string
		require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
		assert.Equal(t, "Cloud", got[1]["label"])
	})

	t.Run("yaml", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, New(Options{Format: FormatYAML, Out: &buf}).FormatRows(headers, rows))
		assert.Contains(t, buf.String(), "- id: wordpress\n  label: Blog\n")
	})

	t.Run("table", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, New(Options{Format: FormatTable, Out: &buf}).FormatRows(headers, rows))
		out := buf.String()
		assert.Contains(t, out, "ID")
		assert.Contains(t, out, "nextcloud")
		assert.Contains(t, out, "Total: 2")
	})

	t.Run("table empty", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, New(Options{Format: FormatTable, Out: &buf}).FormatRows(headers, nil))
		assert.Equal(t, "No items found\n", buf.String())
	})
}

func TestFormatData(t *testing.T) {
	info := appInfo{ID: "wordpress", Version: "6.4~ynh1"}

	var buf bytes.Buffer
	require.NoError(t, New(Options{Format: FormatYAML, Out: &buf}).FormatData(info))
	assert.Equal(t, "id: wordpress\nversion: 6.4~ynh1\n", buf.String(), "yaml keys follow json tags")

	buf.Reset()
	require.NoError(t, New(Options{Out: &buf}).FormatData(map[string]string{"b": "2", "a": "1"}))
	assert.Equal(t, "a: 1\nb: 2\n", buf.String())

	buf.Reset()
	require.NoError(t, New(Options{Format: FormatTable, Out: &buf}).FormatData(map[string]string{"domain": "example.org"}))
	assert.Contains(t, buf.String(), "example.org")
}

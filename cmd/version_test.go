package cmd

import (
	"bytes"
	"encoding/json"
	goruntime "runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runVersion runs the version command with the given build version and
// output format.
func runVersion(t *testing.T, version, format string) string {
	t.Helper()
	origVersion, origFormat := rootCmd.Version, rootOutputFormat
	t.Cleanup(func() { rootCmd.Version, rootOutputFormat = origVersion, origFormat })
	rootCmd.Version, rootOutputFormat = version, format

	versionCmd := newVersionCmd()
	var buf bytes.Buffer
	versionCmd.SetOut(&buf)
	require.NoError(t, versionCmd.RunE(versionCmd, nil))
	return buf.String()
}

func TestVersionCommandConsole(t *testing.T) {
	tests := []struct {
		name    string
		version string
		want    string
	}{
		{"release", "1.2.3-test", "appkeeper version 1.2.3-test\n"},
		{"unset", "", "appkeeper version \n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, runVersion(t, tt.version, "console"))
		})
	}
}

func TestVersionCommandJSON(t *testing.T) {
	out := runVersion(t, "2.0.0", "json")

	var got map[string]string
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, "2.0.0", got["version"])
	assert.Equal(t, goruntime.Version(), got["go"])
	assert.Equal(t, goruntime.GOOS+"/"+goruntime.GOARCH, got["platform"])
}

func TestVersionCommandRejectsArgs(t *testing.T) {
	versionCmd := newVersionCmd()
	versionCmd.SetOut(&bytes.Buffer{})
	versionCmd.SetErr(&bytes.Buffer{})
	versionCmd.SetArgs([]string{"extra"})
	assert.Error(t, versionCmd.Execute())
}

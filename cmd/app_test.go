package cmd

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"appkeeper/internal/api"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testConfig writes a config.yaml whose roots all live under a temp dir.
func testConfig(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	cfg := `settingsRoot: ` + filepath.Join(root, "apps") + `
workdirRoot: ` + filepath.Join(root, "work") + `
dataRoot: ` + filepath.Join(root, "data") + `
hooksRoot: ` + filepath.Join(root, "hooks") + `
catalogPath: ` + filepath.Join(root, "catalog.json") + `
ssowatConfPath: ` + filepath.Join(root, "ssowat", "conf.json") + `
domains: [example.org]
mainDomain: example.org
driftRoots: []
`
	require.NoError(t, os.WriteFile(filepath.Join(root, "config.yaml"), []byte(cfg), 0644))
	return root
}

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetArgs(args)
	defer rootCmd.SetArgs(nil)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestAppListEmpty(t *testing.T) {
	root := testConfig(t)

	out, err := runCLI(t, "app", "list", "--config-path", root, "-o", "json")
	require.NoError(t, err)

	var got map[string][]interface{}
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Empty(t, got["apps"])
}

func TestAppInfoNotInstalled(t *testing.T) {
	root := testConfig(t)

	_, err := runCLI(t, "app", "info", "wordpress", "--config-path", root, "-o", "console")
	require.Error(t, err)
	assert.True(t, api.HasKey(err, api.KeyAppNotInstalled))
	assert.Equal(t, ExitCodeValidation, getExitCode(err))
}

func TestAppSSOwatConf(t *testing.T) {
	root := testConfig(t)

	_, err := runCLI(t, "app", "ssowatconf", "--config-path", root, "-o", "console")
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(root, "ssowat", "conf.json"))
	require.NoError(t, err)
	var conf map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &conf))
	assert.Equal(t, []interface{}{"example.org"}, conf["domains"])
}

func TestAppManifestFromFolder(t *testing.T) {
	root := testConfig(t)
	pkg := t.TempDir()
	manifest := `{"id": "hello", "name": "Hello", "version": "1.0~ynh1", "packaging_format": 1, "description": {"en": "Says hello"}}`
	require.NoError(t, os.WriteFile(filepath.Join(pkg, "manifest.json"), []byte(manifest), 0644))
	require.NoError(t, os.MkdirAll(filepath.Join(pkg, "scripts"), 0755))

	out, err := runCLI(t, "app", "manifest", pkg, "--config-path", root, "-o", "json", "--quiet")
	require.NoError(t, err)

	var got map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, "hello", got["id"])
	assert.Equal(t, "1.0~ynh1", got["version"])
}

func TestAppHistoryEmpty(t *testing.T) {
	root := testConfig(t)

	out, err := runCLI(t, "app", "history", "--config-path", root, "-o", "console", "--quiet=false")
	require.NoError(t, err)
	assert.Contains(t, out, "Nothing to show.")
}

func TestInvalidOutputFormat(t *testing.T) {
	root := testConfig(t)

	_, err := runCLI(t, "app", "list", "--config-path", root, "-o", "xml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported output format")
}

func TestIsTerminalFalseForFilesAndPipes(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "out")
	require.NoError(t, err)
	defer f.Close()
	assert.False(t, isTerminal(f))

	r, w, err := os.Pipe()
	require.NoError(t, err)
	defer r.Close()
	defer w.Close()
	assert.False(t, isTerminal(r))
	assert.False(t, isTerminal(w))
}

func TestAppActionListNotInstalled(t *testing.T) {
	root := testConfig(t)

	_, err := runCLI(t, "app", "action", "list", "wordpress", "--config-path", root, "-o", "json")
	require.Error(t, err)
	assert.True(t, api.HasKey(err, api.KeyAppNotInstalled))
}

func TestAppMakeDefaultNotInstalled(t *testing.T) {
	root := testConfig(t)

	_, err := runCLI(t, "app", "makedefault", "wordpress", "--config-path", root, "-o", "console")
	require.Error(t, err)
	assert.Equal(t, ExitCodeValidation, getExitCode(err))
}

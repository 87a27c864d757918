package hooks

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"appkeeper/internal/api"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingRunner struct {
	ran   []string
	exits map[string]int
	err   error
}

func (r *recordingRunner) Run(_ context.Context, req api.ScriptRequest) (api.ScriptResult, error) {
	r.ran = append(r.ran, filepath.Base(req.Path))
	if r.err != nil {
		return api.ScriptResult{ExitCode: -1}, r.err
	}
	return api.ScriptResult{ExitCode: r.exits[filepath.Base(req.Path)]}, nil
}

func writeHook(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/bash\n"), 0755))
	return path
}

func TestRegistry_AddListRemove(t *testing.T) {
	pkgHooks := t.TempDir()
	writeHook(t, pkgHooks, "post_user_create")
	writeHook(t, pkgHooks, "10-post_user_create")
	writeHook(t, pkgHooks, "conf_regen")

	reg := NewRegistry(filepath.Join(t.TempDir(), "hooks.d"), &recordingRunner{})
	require.NoError(t, reg.AddDir("wordpress", pkgHooks))
	require.NoError(t, reg.Add("nextcloud", writeHook(t, t.TempDir(), "post_user_create")))
	require.NoError(t, reg.AddDir("nothing", filepath.Join(t.TempDir(), "missing")))

	hooks, err := reg.List("post_user_create")
	require.NoError(t, err)
	var got []string
	for _, h := range hooks {
		got = append(got, filepath.Base(h.Path))
	}
	assert.Equal(t, []string{"10-wordpress", "50-nextcloud", "50-wordpress"}, got)

	require.NoError(t, reg.Remove("wordpress"))
	hooks, err = reg.List("post_user_create")
	require.NoError(t, err)
	require.Len(t, hooks, 1)
	assert.Equal(t, "nextcloud", hooks[0].Owner)

	hooks, err = reg.List("conf_regen")
	require.NoError(t, err)
	assert.Empty(t, hooks)
}

func TestRegistry_Callback(t *testing.T) {
	runner := &recordingRunner{exits: map[string]int{"50-b": 1}}
	reg := NewRegistry(t.TempDir(), runner)
	require.NoError(t, reg.Add("a", writeHook(t, t.TempDir(), PostAppInstall)))
	require.NoError(t, reg.Add("b", writeHook(t, t.TempDir(), PostAppInstall)))

	failed, err := reg.Callback(context.Background(), PostAppInstall, nil, map[string]string{"YNH_APP_ID": "x"})
	require.NoError(t, err)
	assert.Equal(t, 1, failed)
	assert.Equal(t, []string{"50-a", "50-b"}, runner.ran)

	failed, err = reg.Callback(context.Background(), "no_such_event", nil, nil)
	require.NoError(t, err)
	assert.Zero(t, failed)
}

func TestRegistry_CallbackRunnerError(t *testing.T) {
	runner := &recordingRunner{err: errors.New("cannot start")}
	reg := NewRegistry(t.TempDir(), runner)
	require.NoError(t, reg.Add("a", writeHook(t, t.TempDir(), PostAppRemove)))

	failed, err := reg.Callback(context.Background(), PostAppRemove, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, failed)
}

func TestSplitHookName(t *testing.T) {
	p, n := splitHookName("05-backup")
	assert.Equal(t, 5, p)
	assert.Equal(t, "backup", n)

	p, n = splitHookName("my-app")
	assert.Equal(t, DefaultPriority, p)
	assert.Equal(t, "my-app", n)
}

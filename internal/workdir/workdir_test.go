package workdir

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllocateAndRelease(t *testing.T) {
	root := filepath.Join(t.TempDir(), "work")
	m := New(root, 12*time.Hour)

	w, err := m.Allocate()
	require.NoError(t, err)
	assert.DirExists(t, w.Path())
	assert.Equal(t, root, filepath.Dir(w.Path()))

	path := w.Path()
	w.Release()
	assert.NoDirExists(t, path)
	w.Release()
}

func TestRetain(t *testing.T) {
	m := New(t.TempDir(), time.Hour)
	w, err := m.Allocate()
	require.NoError(t, err)
	w.Retain()
	w.Release()
	assert.DirExists(t, w.Path())
}

func TestSweepRemovesOnlyExpired(t *testing.T) {
	root := t.TempDir()
	m := New(root, 12*time.Hour)

	old := filepath.Join(root, "app_old")
	fresh := filepath.Join(root, "app_fresh")
	require.NoError(t, os.Mkdir(old, 0700))
	require.NoError(t, os.Mkdir(fresh, 0700))
	stale := time.Now().Add(-13 * time.Hour)
	require.NoError(t, os.Chtimes(old, stale, stale))

	w, err := m.Allocate()
	require.NoError(t, err)
	defer w.Release()

	assert.NoDirExists(t, old)
	assert.DirExists(t, fresh)
}

func TestAllocateFrom(t *testing.T) {
	src := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(src, "scripts"), 0700))
	require.NoError(t, os.WriteFile(filepath.Join(src, "scripts", "remove"), []byte("#!/bin/bash\n"), 0755))

	m := New(filepath.Join(t.TempDir(), "work"), time.Hour)
	w, err := m.AllocateFrom(src)
	require.NoError(t, err)
	defer w.Release()

	assert.FileExists(t, filepath.Join(w.Path(), "scripts", "remove"))
}

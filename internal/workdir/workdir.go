// Package workdir hands out scratch directories for staging packages and
// running scripts. Every allocation sweeps directories older than the TTL,
// which covers scripts that start nested lifecycle operations and never
// release their own directory.
package workdir

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"appkeeper/pkg/logging"
)

// Manager allocates scratch directories under a shared root.
type Manager struct {
	root string
	ttl  time.Duration
	now  func() time.Time
}

// New returns a Manager for root.
func New(root string, ttl time.Duration) *Manager {
	return &Manager{root: root, ttl: ttl, now: time.Now}
}

// Workdir is one allocated scratch directory.
type Workdir struct {
	path     string
	retained bool
}

// Path returns the directory path.
func (w *Workdir) Path() string {
	return w.path
}

// Retain keeps the directory on Release, for post-mortem debugging.
func (w *Workdir) Retain() {
	w.retained = true
}

// Release removes the directory unless it was retained. It is safe to call
// more than once.
func (w *Workdir) Release() {
	if w == nil || w.path == "" {
		return
	}
	if w.retained {
		logging.Info("Workdir", "Keeping %s for inspection", w.path)
		return
	}
	if err := os.RemoveAll(w.path); err != nil {
		logging.Warn("Workdir", "Could not remove %s: %v", w.path, err)
		return
	}
	logging.Debug("Workdir", "Released %s", w.path)
	w.path = ""
}

// Allocate sweeps expired directories and creates a fresh one.
func (m *Manager) Allocate() (*Workdir, error) {
	if err := os.MkdirAll(m.root, 0700); err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", m.root, err)
	}
	m.Sweep()

	path, err := os.MkdirTemp(m.root, "app_")
	if err != nil {
		return nil, fmt.Errorf("failed to create workdir in %s: %w", m.root, err)
	}
	logging.Debug("Workdir", "Allocated %s", path)
	return &Workdir{path: path}, nil
}

// AllocateFrom allocates a workdir pre-filled with a copy of src.
func (m *Manager) AllocateFrom(src string) (*Workdir, error) {
	w, err := m.Allocate()
	if err != nil {
		return nil, err
	}
	// CopyFS refuses to overwrite, so copy into the empty directory's place.
	if err := os.Remove(w.path); err != nil {
		w.Release()
		return nil, err
	}
	if err := os.CopyFS(w.path, os.DirFS(src)); err != nil {
		w.Release()
		return nil, fmt.Errorf("failed to copy %s into workdir: %w", src, err)
	}
	return w, nil
}

// Sweep removes entries of the root older than the TTL. Failures are logged.
func (m *Manager) Sweep() {
	entries, err := os.ReadDir(m.root)
	if err != nil {
		logging.Warn("Workdir", "Could not list %s: %v", m.root, err)
		return
	}
	cutoff := m.now().Add(-m.ttl)
	for _, e := range entries {
		info, err := e.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			path := filepath.Join(m.root, e.Name())
			if err := os.RemoveAll(path); err != nil {
				logging.Warn("Workdir", "Could not sweep %s: %v", path, err)
				continue
			}
			logging.Debug("Workdir", "Swept expired %s", path)
		}
	}
}

package records

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"appkeeper/pkg/logging"
)

// PackageFiles are the parts of a package kept alongside the settings.
var PackageFiles = []string{
	"manifest.json",
	"manifest.toml",
	"actions.json",
	"actions.toml",
	"config_panel.toml",
	"scripts",
	"conf",
	"hooks",
	"doc",
}

// ScriptPath returns the stored path of a lifecycle script.
func (s *FileStore) ScriptPath(id, script string) string {
	return filepath.Join(s.Dir(id), "scripts", script)
}

// HasScript reports whether the stored package ships script.
func (s *FileStore) HasScript(id, script string) bool {
	info, err := os.Stat(s.ScriptPath(id, script))
	return err == nil && !info.IsDir()
}

// InstallFiles copies the package files found in src into the instance
// directory.
func (s *FileStore) InstallFiles(id, src string) error {
	for _, name := range PackageFiles {
		from := filepath.Join(src, name)
		if _, err := os.Stat(from); errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err := copyPath(from, filepath.Join(s.Dir(id), name)); err != nil {
			return fmt.Errorf("failed to copy %s of %s: %w", name, id, err)
		}
	}
	return nil
}

// ReplaceFiles swaps every stored package file for the one in src. Each
// file or directory is staged next to its target and renamed into place,
// so a failure leaves either the old or the new version, never a mix.
// Files absent from src are removed.
func (s *FileStore) ReplaceFiles(id, src string) error {
	dir := s.Dir(id)
	for _, name := range PackageFiles {
		target := filepath.Join(dir, name)
		from := filepath.Join(src, name)

		if _, err := os.Stat(from); errors.Is(err, os.ErrNotExist) {
			if err := os.RemoveAll(target); err != nil {
				return fmt.Errorf("failed to remove stale %s of %s: %w", name, id, err)
			}
			continue
		}

		staged := target + ".new"
		if err := os.RemoveAll(staged); err != nil {
			return err
		}
		if err := copyPath(from, staged); err != nil {
			_ = os.RemoveAll(staged)
			return fmt.Errorf("failed to stage %s of %s: %w", name, id, err)
		}

		old := target + ".old"
		_ = os.RemoveAll(old)
		hadOld := true
		if err := os.Rename(target, old); err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				_ = os.RemoveAll(staged)
				return fmt.Errorf("failed to set aside %s of %s: %w", name, id, err)
			}
			hadOld = false
		}
		if err := os.Rename(staged, target); err != nil {
			if hadOld {
				_ = os.Rename(old, target)
			}
			_ = os.RemoveAll(staged)
			return fmt.Errorf("failed to replace %s of %s: %w", name, id, err)
		}
		if hadOld {
			if err := os.RemoveAll(old); err != nil {
				logging.Warn("Records", "Could not remove %s: %v", old, err)
			}
		}
	}
	logging.Debug("Records", "Replaced package files of %s", id)
	return s.Restrict(id)
}

// copyPath copies a file or a directory tree, keeping execute bits.
func copyPath(from, to string) error {
	info, err := os.Stat(from)
	if err != nil {
		return err
	}
	if info.IsDir() {
		return os.CopyFS(to, os.DirFS(from))
	}
	data, err := os.ReadFile(from)
	if err != nil {
		return err
	}
	return os.WriteFile(to, data, info.Mode().Perm())
}

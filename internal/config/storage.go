package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"appkeeper/pkg/logging"
)

// ErrNotFound is returned by Load and Delete when the document does not exist.
var ErrNotFound = errors.New("document not found")

// Storage persists small YAML documents grouped by kind under a root
// directory: {root}/{kind}/{name}.yaml. Writes are atomic and files are
// readable by the owner only.
type Storage struct {
	mu   sync.RWMutex
	root string
}

// NewStorageWithPath creates a Storage rooted at root.
func NewStorageWithPath(root string) *Storage {
	return &Storage{root: root}
}

// Root returns the storage root directory.
func (ds *Storage) Root() string {
	return ds.root
}

// Save stores data under kind/name, replacing any previous document.
func (ds *Storage) Save(kind string, name string, data []byte) error {
	if kind == "" {
		return fmt.Errorf("kind cannot be empty")
	}
	if name == "" {
		return fmt.Errorf("name cannot be empty")
	}

	ds.mu.Lock()
	defer ds.mu.Unlock()

	targetDir := filepath.Join(ds.root, kind)
	if err := os.MkdirAll(targetDir, 0700); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", targetDir, err)
	}

	filePath := filepath.Join(targetDir, sanitizeFilename(name)+".yaml")
	if err := WriteFileAtomic(filePath, data, 0600); err != nil {
		return err
	}

	logging.Debug("Storage", "Saved %s/%s to %s", kind, name, filePath)
	return nil
}

// Load returns the document stored under kind/name.
func (ds *Storage) Load(kind string, name string) ([]byte, error) {
	if kind == "" || name == "" {
		return nil, fmt.Errorf("kind and name cannot be empty")
	}

	ds.mu.RLock()
	defer ds.mu.RUnlock()

	filePath := filepath.Join(ds.root, kind, sanitizeFilename(name)+".yaml")
	data, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%s/%s: %w", kind, name, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to read file %s: %w", filePath, err)
	}
	return data, nil
}

// Delete removes the document stored under kind/name.
func (ds *Storage) Delete(kind string, name string) error {
	if kind == "" || name == "" {
		return fmt.Errorf("kind and name cannot be empty")
	}

	ds.mu.Lock()
	defer ds.mu.Unlock()

	filePath := filepath.Join(ds.root, kind, sanitizeFilename(name)+".yaml")
	if err := os.Remove(filePath); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%s/%s: %w", kind, name, ErrNotFound)
		}
		return fmt.Errorf("failed to delete file %s: %w", filePath, err)
	}

	logging.Debug("Storage", "Deleted %s/%s", kind, name)
	return nil
}

// List returns the sorted names stored under kind.
func (ds *Storage) List(kind string) ([]string, error) {
	if kind == "" {
		return nil, fmt.Errorf("kind cannot be empty")
	}

	ds.mu.RLock()
	defer ds.mu.RUnlock()

	entries, err := os.ReadDir(filepath.Join(ds.root, kind))
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("failed to list %s: %w", kind, err)
	}

	names := []string{}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := filepath.Ext(entry.Name())
		if ext != ".yaml" && ext != ".yml" {
			continue
		}
		names = append(names, strings.TrimSuffix(entry.Name(), ext))
	}
	sort.Strings(names)
	return names, nil
}

// WriteFileAtomic writes data to a temporary sibling and renames it over path.
func WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file in %s: %w", dir, err)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		cleanup()
		return fmt.Errorf("failed to write %s: %w", tmpName, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		cleanup()
		return fmt.Errorf("failed to sync %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("failed to close %s: %w", tmpName, err)
	}
	if err := os.Chmod(tmpName, perm); err != nil {
		cleanup()
		return fmt.Errorf("failed to chmod %s: %w", tmpName, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		cleanup()
		return fmt.Errorf("failed to rename %s to %s: %w", tmpName, path, err)
	}
	return nil
}

// sanitizeFilename keeps names filesystem safe. Dots and underscores are
// preserved since permission and instance names rely on them.
func sanitizeFilename(name string) string {
	replacer := strings.NewReplacer(
		"/", "_", "\\", "_", ":", "_", "*", "_", "?", "_",
		"\"", "_", "<", "_", ">", "_", "|", "_", " ", "_",
	)
	sanitized := strings.Trim(replacer.Replace(name), " ")
	if sanitized == "" || sanitized == "." || sanitized == ".." {
		sanitized = "unnamed"
	}
	return sanitized
}

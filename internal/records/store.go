package records

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"appkeeper/internal/api"
	"appkeeper/internal/config"
	"appkeeper/pkg/logging"

	"gopkg.in/yaml.v3"
)

const settingsFile = "settings.yml"

// Repository is the App Record Store. The orchestrator is its only writer.
type Repository interface {
	// Create makes a fresh, empty instance directory. It fails when the
	// directory already exists.
	Create(ctx context.Context, id string) error
	Get(ctx context.Context, id string) (*Record, error)
	Put(ctx context.Context, rec *Record) error
	Delete(ctx context.Context, id string) error
	Exists(ctx context.Context, id string) (bool, error)
	// List returns installed instance ids, sorted.
	List(ctx context.Context) ([]string, error)
	// Dir is where the instance's package files are kept.
	Dir(id string) string
}

// FileStore keeps records as {root}/{id}/settings.yml.
type FileStore struct {
	root string
}

var _ Repository = (*FileStore)(nil)

// NewFileStore returns a store rooted at root.
func NewFileStore(root string) *FileStore {
	return &FileStore{root: root}
}

func (s *FileStore) Dir(id string) string {
	return filepath.Join(s.root, id)
}

func (s *FileStore) settingsPath(id string) string {
	return filepath.Join(s.Dir(id), settingsFile)
}

func (s *FileStore) Create(_ context.Context, id string) error {
	if id == "" || filepath.Base(id) != id {
		return fmt.Errorf("invalid instance id %q", id)
	}
	if err := os.MkdirAll(s.root, 0700); err != nil {
		return fmt.Errorf("failed to create %s: %w", s.root, err)
	}
	dir := s.Dir(id)
	if err := os.Mkdir(dir, 0700); err != nil {
		if errors.Is(err, os.ErrExist) {
			return api.NewValidationError(api.KeyAppAlreadyInstalled, "%s is already installed", id)
		}
		return fmt.Errorf("failed to create %s: %w", dir, err)
	}
	logging.Debug("Records", "Created record directory %s", dir)
	return nil
}

func (s *FileStore) Exists(_ context.Context, id string) (bool, error) {
	info, err := os.Stat(s.Dir(id))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	return info.IsDir(), nil
}

// Get loads the record of id. A record whose stored id does not match its
// directory is reported as not correctly installed. Legacy paths are
// repaired on the fly.
func (s *FileStore) Get(ctx context.Context, id string) (*Record, error) {
	exists, err := s.Exists(ctx, id)
	if err != nil {
		return nil, err
	}
	if !exists {
		installed, _ := s.List(ctx)
		return nil, api.NewNotInstalledError(id, installed)
	}

	data, err := os.ReadFile(s.settingsPath(id))
	if err != nil {
		return nil, fmt.Errorf("%s seems to be incorrectly installed: %w", id, err)
	}
	rec := New(id)
	rec.ID = ""
	if err := yaml.Unmarshal(data, rec); err != nil {
		return nil, fmt.Errorf("%s seems to be incorrectly installed: %w", id, err)
	}
	if rec.ID != id {
		return nil, fmt.Errorf("%s seems to be incorrectly installed: settings belong to %q", id, rec.ID)
	}
	if rec.Extra == nil {
		rec.Extra = map[string]interface{}{}
	}

	if rec.normalizePath() {
		logging.Info("Records", "Repaired legacy path of %s to %s", id, rec.Path)
		if err := s.Put(ctx, rec); err != nil {
			return nil, err
		}
	}
	return rec, nil
}

// Put writes rec atomically and leaves the settings file owner-only.
func (s *FileStore) Put(ctx context.Context, rec *Record) error {
	exists, err := s.Exists(ctx, rec.ID)
	if err != nil {
		return err
	}
	if !exists {
		installed, _ := s.List(ctx)
		return api.NewNotInstalledError(rec.ID, installed)
	}
	data, err := yaml.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to encode settings of %s: %w", rec.ID, err)
	}
	if err := config.WriteFileAtomic(s.settingsPath(rec.ID), data, 0600); err != nil {
		return err
	}
	return s.Restrict(rec.ID)
}

// Restrict locks the instance directory and settings down to the owner.
func (s *FileStore) Restrict(id string) error {
	if err := os.Chmod(s.Dir(id), 0700); err != nil {
		return fmt.Errorf("failed to restrict %s: %w", s.Dir(id), err)
	}
	if err := os.Chmod(s.settingsPath(id), 0400); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to restrict %s: %w", s.settingsPath(id), err)
	}
	return nil
}

// Delete removes the instance directory. A missing directory is logged and
// ignored.
func (s *FileStore) Delete(_ context.Context, id string) error {
	dir := s.Dir(id)
	if _, err := os.Stat(dir); errors.Is(err, os.ErrNotExist) {
		logging.Warn("Records", "Record directory %s is already gone", dir)
		return nil
	}
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("failed to delete %s: %w", dir, err)
	}
	logging.Debug("Records", "Deleted record directory %s", dir)
	return nil
}

func (s *FileStore) List(_ context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("failed to list %s: %w", s.root, err)
	}
	ids := []string{}
	for _, e := range entries {
		if e.IsDir() {
			ids = append(ids, e.Name())
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// BaseURL returns "domain/path" of a web instance, the base its relative
// permission urls resolve against.
func (s *FileStore) BaseURL(ctx context.Context, id string) (string, bool) {
	rec, err := s.Get(ctx, id)
	if err != nil || !rec.IsWebApp() {
		return "", false
	}
	return rec.Domain + rec.Path, true
}

// Package catalog reads the locally cached app catalog: quality levels,
// states, git references and the manifest of every known app.
package catalog

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"

	"appkeeper/internal/version"
	"appkeeper/pkg/logging"
)

// Git locates an app's package repository.
type Git struct {
	URL      string `json:"url"`
	Branch   string `json:"branch"`
	Revision string `json:"revision"`
}

// Entry is one app of the catalog.
type Entry struct {
	ID         string                 `json:"id"`
	Level      json.RawMessage        `json:"level,omitempty"`
	State      string                 `json:"state"`
	Git        *Git                   `json:"git,omitempty"`
	LastUpdate int64                  `json:"lastUpdate"`
	Manifest   map[string]interface{} `json:"manifest,omitempty"`
}

// QualityLevel returns the integer level, nil when the catalog holds
// something else ("?", null or nothing).
func (e *Entry) QualityLevel() *int {
	if len(e.Level) == 0 {
		return nil
	}
	var n int
	if err := json.Unmarshal(e.Level, &n); err == nil {
		return &n
	}
	var s string
	if err := json.Unmarshal(e.Level, &s); err == nil {
		if n, err := strconv.Atoi(s); err == nil {
			return &n
		}
	}
	return nil
}

// Version returns the packaged version from the catalog manifest.
func (e *Entry) Version() string {
	v, _ := e.Manifest["version"].(string)
	return v
}

// Info projects the entry onto what upgradability depends on.
func (e *Entry) Info() *version.CatalogInfo {
	return &version.CatalogInfo{
		Level:      e.QualityLevel(),
		State:      e.State,
		Version:    e.Version(),
		LastUpdate: e.LastUpdate,
		HasGit:     e.Git != nil && e.Git.URL != "",
	}
}

// Catalog is a read-only view of the cache file.
type Catalog struct {
	apps map[string]*Entry
}

type cacheFile struct {
	Apps map[string]*Entry `json:"apps"`
}

// Load reads the catalog cache. A missing cache yields an empty catalog.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logging.Warn("Catalog", "No app catalog cache at %s, only urls and local paths can be installed", path)
			return &Catalog{apps: map[string]*Entry{}}, nil
		}
		return nil, fmt.Errorf("failed to read app catalog %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes a catalog cache document.
func Parse(data []byte) (*Catalog, error) {
	var f cacheFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to decode app catalog: %w", err)
	}
	if f.Apps == nil {
		f.Apps = map[string]*Entry{}
	}
	for id, e := range f.Apps {
		if e == nil {
			delete(f.Apps, id)
			continue
		}
		e.ID = id
	}
	return &Catalog{apps: f.Apps}, nil
}

// Get returns the entry for id.
func (c *Catalog) Get(id string) (*Entry, bool) {
	e, ok := c.apps[id]
	return e, ok
}

// IDs lists known app ids, sorted.
func (c *Catalog) IDs() []string {
	ids := make([]string, 0, len(c.apps))
	for id := range c.apps {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Package fetcher resolves package source descriptors and materializes
// the package into a scratch workdir.
package fetcher

import (
	"os"
	"regexp"
	"strings"

	"appkeeper/internal/api"
	"appkeeper/internal/catalog"
)

// SourceKind tells how a package is obtained.
type SourceKind string

const (
	SourceCatalog SourceKind = "catalog"
	SourceGit     SourceKind = "git"
	SourcePath    SourceKind = "file"
)

const (
	defaultBranch   = "master"
	defaultRevision = "HEAD"
)

var appRepoURL = regexp.MustCompile(`^https://[a-zA-Z0-9-_.]+/[a-zA-Z0-9-_./]+/[a-zA-Z0-9-_.]+_ynh(/?(-/)?tree/[a-zA-Z0-9-_.]+)?(\.git)?/?$`)

// Source is a parsed source descriptor.
type Source struct {
	Kind     SourceKind
	Raw      string
	URL      string
	Branch   string
	Revision string
	Path     string

	// CatalogName is the catalog app this source corresponds to, empty for
	// local paths.
	CatalogName string
}

// IsRepoURL reports whether s looks like a package git repository.
func IsRepoURL(s string) bool {
	return strings.Contains(s, "@") || appRepoURL.MatchString(s)
}

// ParseSource classifies a descriptor: catalog id, git url or existing
// local path. Anything else is an unknown app.
func ParseSource(raw string, cat *catalog.Catalog) (Source, error) {
	src := Source{Raw: raw}

	if cat != nil {
		if e, ok := cat.Get(raw); ok {
			if e.Git == nil || e.Git.URL == "" {
				return src, api.NewValidationError(api.KeyUnsupportedRemote,
					"app %s has no git remote in the catalog", raw)
			}
			src.Kind = SourceCatalog
			src.URL = e.Git.URL
			src.Branch = orDefault(e.Git.Branch, defaultBranch)
			src.Revision = orDefault(e.Git.Revision, defaultRevision)
			src.CatalogName = raw
			return src, nil
		}
	}

	if IsRepoURL(raw) {
		url := strings.TrimRight(strings.TrimSpace(raw), "/")
		url = strings.ReplaceAll(url, "/-/", "/")
		src.Kind = SourceGit
		src.Branch = defaultBranch
		src.Revision = defaultRevision
		if base, branch, ok := strings.Cut(url, "/tree/"); ok {
			url = base
			src.Branch = branch
		}
		src.URL = url
		src.CatalogName = appNameFromURL(url)
		return src, nil
	}

	if _, err := os.Stat(raw); err == nil {
		src.Kind = SourcePath
		src.Path = raw
		return src, nil
	}

	return src, api.NewValidationError(api.KeyAppUnknown, "unknown app %s", raw)
}

// appNameFromURL maps ".../wordpress_ynh.git" to "wordpress".
func appNameFromURL(url string) string {
	name := url
	if i := strings.LastIndex(name, "/"); i >= 0 {
		name = name[i+1:]
	}
	if i := strings.LastIndex(name, ":"); i >= 0 {
		name = name[i+1:]
	}
	name = strings.TrimSuffix(name, ".git")
	return strings.TrimSuffix(name, "_ynh")
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

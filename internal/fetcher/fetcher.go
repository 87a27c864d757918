package fetcher

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"appkeeper/internal/api"
	"appkeeper/internal/catalog"
	"appkeeper/internal/manifest"
	"appkeeper/internal/workdir"
	"appkeeper/pkg/logging"
)

// Package is a fetched package tree and its normalized manifest.
type Package struct {
	Manifest *manifest.Manifest
	Dir      string
	Source   Source
	Quality  catalog.Quality

	workdir *workdir.Workdir
}

// Retain keeps the package workdir on Release.
func (p *Package) Retain() {
	if p != nil && p.workdir != nil {
		p.workdir.Retain()
	}
}

// Release removes the package workdir.
func (p *Package) Release() {
	if p != nil && p.workdir != nil {
		p.workdir.Release()
	}
}

// Fetcher is the default package fetcher.
type Fetcher struct {
	workdirs *workdir.Manager
	catalog  *catalog.Catalog
	git      GitFunc
	now      func() time.Time
}

// Option customizes a Fetcher.
type Option func(*Fetcher)

// WithGit replaces the git command runner.
func WithGit(git GitFunc) Option {
	return func(f *Fetcher) { f.git = git }
}

// New returns a Fetcher allocating from workdirs and resolving catalog ids
// against cat, which may be nil.
func New(workdirs *workdir.Manager, cat *catalog.Catalog, opts ...Option) *Fetcher {
	f := &Fetcher{workdirs: workdirs, catalog: cat, git: runGit, now: time.Now}
	for _, o := range opts {
		o(f)
	}
	return f
}

// Fetch materializes raw into a fresh workdir. The caller owns the result
// and must Release it.
func (f *Fetcher) Fetch(ctx context.Context, raw string) (*Package, error) {
	src, err := ParseSource(raw, f.catalog)
	if err != nil {
		return nil, err
	}

	wd, err := f.workdirs.Allocate()
	if err != nil {
		return nil, err
	}
	pkg := &Package{Source: src, workdir: wd, Dir: wd.Path()}

	remote, lastUpdate, err := f.materialize(ctx, src, pkg)
	if err != nil {
		pkg.Release()
		return nil, err
	}

	m, err := manifest.Load(pkg.Dir)
	if err != nil {
		pkg.Release()
		return nil, err
	}
	m.Remote = remote
	m.LastUpdate = lastUpdate
	pkg.Manifest = m
	pkg.Quality = f.quality(src)

	logging.Info("Fetcher", "Fetched %s (%s) version %s", m.ID, src.Kind, m.Version)
	return pkg, nil
}

func (f *Fetcher) materialize(ctx context.Context, src Source, pkg *Package) (*manifest.Remote, int64, error) {
	now := f.now().Unix()

	switch src.Kind {
	case SourceCatalog, SourceGit:
		ref := src.Revision
		if ref == defaultRevision {
			ref = src.Branch
		}
		logging.Info("Fetcher", "Downloading %s (%s)", src.URL, ref)
		if err := clone(ctx, f.git, pkg.Dir, src.URL, ref); err != nil {
			return nil, 0, &api.ExecutionError{Operation: "fetch", App: src.Raw, ExitCode: -1, Err: err}
		}
		revision := src.Revision
		if revision == defaultRevision {
			sha, err := resolveHead(ctx, f.git, pkg.Dir, src.URL, src.Branch)
			if err != nil {
				return nil, 0, &api.ExecutionError{Operation: "fetch", App: src.Raw, ExitCode: -1, Err: err}
			}
			revision = sha
		}
		remote := &manifest.Remote{Type: "git", URL: src.URL, Branch: src.Branch, Revision: revision, FetchedAt: now}
		lastUpdate := now
		if src.Kind == SourceCatalog {
			if e, ok := f.catalog.Get(src.CatalogName); ok && e.LastUpdate > 0 {
				lastUpdate = e.LastUpdate
			}
		}
		return remote, lastUpdate, nil

	case SourcePath:
		if err := f.copyLocal(src.Path, pkg.Dir); err != nil {
			return nil, 0, err
		}
		pkg.Dir = descend(pkg.Dir)
		abs, err := filepath.Abs(src.Path)
		if err != nil {
			abs = src.Path
		}
		return &manifest.Remote{Type: string(SourcePath), Path: abs, FetchedAt: now}, now, nil
	}
	return nil, 0, fmt.Errorf("unhandled source kind %q", src.Kind)
}

// copyLocal fills dest, an empty workdir, from a folder or an archive.
func (f *Fetcher) copyLocal(path, dest string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if err := os.Remove(dest); err != nil {
		return err
	}
	if info.IsDir() {
		if err := os.CopyFS(dest, os.DirFS(path)); err != nil {
			return fmt.Errorf("failed to copy %s: %w", path, err)
		}
		return nil
	}
	return extractArchive(path, dest)
}

// descend returns the only subdirectory of dir when dir holds nothing
// else, as archives usually wrap the package in one folder.
func descend(dir string) string {
	entries, err := os.ReadDir(dir)
	if err != nil || len(entries) != 1 || !entries[0].IsDir() {
		return dir
	}
	return filepath.Join(dir, entries[0].Name())
}

func (f *Fetcher) quality(src Source) catalog.Quality {
	if src.CatalogName == "" || f.catalog == nil {
		return catalog.QualityThirdParty
	}
	return f.catalog.QualityOf(src.CatalogName)
}

package fetcher

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"appkeeper/internal/api"
	"appkeeper/internal/catalog"
	"appkeeper/internal/workdir"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testManifest = `{"id": "hello", "name": "Hello", "version": "1.0~ynh1", "packaging_format": 1}`

const testCatalog = `{"apps": {
  "hello": {"level": 7, "state": "working", "lastUpdate": 1690000000,
            "git": {"url": "https://github.com/YunoHost-Apps/hello_ynh", "branch": "main", "revision": "HEAD"}},
  "nogit": {"level": 7, "state": "working"},
  "pinned": {"level": 2, "state": "working",
             "git": {"url": "https://example.org/pinned_ynh", "branch": "master", "revision": "c0ffee"}}
}}`

func testCatalogFixture(t *testing.T) *catalog.Catalog {
	t.Helper()
	c, err := catalog.Parse([]byte(testCatalog))
	require.NoError(t, err)
	return c
}

func TestParseSource(t *testing.T) {
	cat := testCatalogFixture(t)
	local := t.TempDir()

	tests := []struct {
		name    string
		raw     string
		want    Source
		wantKey string
	}{
		{
			name: "catalog id",
			raw:  "hello",
			want: Source{Kind: SourceCatalog, Raw: "hello", URL: "https://github.com/YunoHost-Apps/hello_ynh", Branch: "main", Revision: "HEAD", CatalogName: "hello"},
		},
		{
			name:    "catalog id without git",
			raw:     "nogit",
			wantKey: api.KeyUnsupportedRemote,
		},
		{
			name: "repo url",
			raw:  "https://github.com/YunoHost-Apps/wordpress_ynh",
			want: Source{Kind: SourceGit, Raw: "https://github.com/YunoHost-Apps/wordpress_ynh", URL: "https://github.com/YunoHost-Apps/wordpress_ynh", Branch: "master", Revision: "HEAD", CatalogName: "wordpress"},
		},
		{
			name: "gitlab tree url",
			raw:  "https://gitlab.com/group/nextcloud_ynh/-/tree/testing",
			want: Source{Kind: SourceGit, Raw: "https://gitlab.com/group/nextcloud_ynh/-/tree/testing", URL: "https://gitlab.com/group/nextcloud_ynh", Branch: "testing", Revision: "HEAD", CatalogName: "nextcloud"},
		},
		{
			name: "ssh remote",
			raw:  "git@github.com:me/custom_ynh.git",
			want: Source{Kind: SourceGit, Raw: "git@github.com:me/custom_ynh.git", URL: "git@github.com:me/custom_ynh.git", Branch: "master", Revision: "HEAD", CatalogName: "custom"},
		},
		{
			name: "local path",
			raw:  local,
			want: Source{Kind: SourcePath, Raw: local, Path: local},
		},
		{
			name:    "unknown",
			raw:     "definitely-not-an-app",
			wantKey: api.KeyAppUnknown,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseSource(tt.raw, cat)
			if tt.wantKey != "" {
				require.Error(t, err)
				assert.True(t, api.HasKey(err, tt.wantKey), "got %v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

type tarEntry struct {
	name, body string
}

func writeTarGz(t *testing.T, path string, entries []tarEntry, compress bool) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	var w io.Writer = f
	if compress {
		gz := gzip.NewWriter(f)
		defer gz.Close()
		w = gz
	}
	tw := tar.NewWriter(w)
	defer tw.Close()
	for _, e := range entries {
		if strings.HasSuffix(e.name, "/") {
			require.NoError(t, tw.WriteHeader(&tar.Header{Name: e.name, Typeflag: tar.TypeDir, Mode: 0755}))
			continue
		}
		require.NoError(t, tw.WriteHeader(&tar.Header{Name: e.name, Typeflag: tar.TypeReg, Mode: 0755, Size: int64(len(e.body))}))
		_, err := tw.Write([]byte(e.body))
		require.NoError(t, err)
	}
}

func newTestFetcher(t *testing.T, opts ...Option) *Fetcher {
	t.Helper()
	f := New(workdir.New(filepath.Join(t.TempDir(), "work"), time.Hour), testCatalogFixture(t), opts...)
	f.now = func() time.Time { return time.Unix(1700000000, 0) }
	return f
}

func TestFetch_Folder(t *testing.T) {
	src := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(src, "manifest.json"), []byte(testManifest), 0644))
	require.NoError(t, os.MkdirAll(filepath.Join(src, "scripts"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(src, "scripts", "install"), []byte("#!/bin/bash\n"), 0755))

	pkg, err := newTestFetcher(t).Fetch(context.Background(), src)
	require.NoError(t, err)
	defer pkg.Release()

	assert.Equal(t, "hello", pkg.Manifest.ID)
	assert.Equal(t, catalog.QualityThirdParty, pkg.Quality)
	assert.Equal(t, "file", pkg.Manifest.Remote.Type)
	assert.Equal(t, int64(1700000000), pkg.Manifest.LastUpdate)
	assert.FileExists(t, filepath.Join(pkg.Dir, "scripts", "install"))

	dir := pkg.Dir
	pkg.Release()
	assert.NoDirExists(t, dir)
}

func TestFetch_Archive(t *testing.T) {
	for _, compress := range []bool{true, false} {
		name := "tar"
		if compress {
			name = "tar.gz"
		}
		t.Run(name, func(t *testing.T) {
			archive := filepath.Join(t.TempDir(), "hello_ynh."+name)
			writeTarGz(t, archive, []tarEntry{
				{"hello_ynh-master/", ""},
				{"hello_ynh-master/manifest.json", testManifest},
				{"hello_ynh-master/scripts/", ""},
				{"hello_ynh-master/scripts/install", "#!/bin/bash\n"},
			}, compress)

			pkg, err := newTestFetcher(t).Fetch(context.Background(), archive)
			require.NoError(t, err)
			defer pkg.Release()

			assert.Equal(t, "hello", pkg.Manifest.ID)
			assert.Equal(t, "hello_ynh-master", filepath.Base(pkg.Dir), "single top-level folder is entered")
			assert.FileExists(t, filepath.Join(pkg.Dir, "scripts", "install"))
		})
	}
}

func TestFetch_MissingManifestReleasesWorkdir(t *testing.T) {
	src := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(src, "README.md"), []byte("hi"), 0644))

	root := filepath.Join(t.TempDir(), "work")
	f := New(workdir.New(root, time.Hour), nil)
	_, err := f.Fetch(context.Background(), src)
	require.Error(t, err)
	assert.True(t, api.HasKey(err, api.KeyManifestMissing))

	entries, err := os.ReadDir(root)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

type fakeGit struct {
	calls [][]string
	fail  string
}

func (g *fakeGit) run(_ context.Context, dir string, args ...string) (string, error) {
	g.calls = append(g.calls, args)
	if args[0] == g.fail {
		return "", errors.New("boom")
	}
	switch args[0] {
	case "init":
		if err := os.MkdirAll(dir, 0755); err != nil {
			return "", err
		}
	case "reset":
		return "", os.WriteFile(filepath.Join(dir, "manifest.json"), []byte(testManifest), 0644)
	case "ls-remote":
		return "deadbeef\trefs/heads/" + args[2] + "\n", nil
	}
	return "", nil
}

func TestFetch_CatalogGit(t *testing.T) {
	git := &fakeGit{}
	pkg, err := newTestFetcher(t, WithGit(git.run)).Fetch(context.Background(), "hello")
	require.NoError(t, err)
	defer pkg.Release()

	assert.Equal(t, []string{"fetch", "--depth=1", "origin", "main"}, git.calls[2])
	assert.Equal(t, "deadbeef", pkg.Manifest.Remote.Revision)
	assert.Equal(t, "deadbeef", pkg.Manifest.Revision())
	assert.Equal(t, int64(1690000000), pkg.Manifest.LastUpdate, "catalog last update wins")
	assert.Equal(t, catalog.QualitySuccess, pkg.Quality)
}

func TestFetch_PinnedRevision(t *testing.T) {
	git := &fakeGit{}
	pkg, err := newTestFetcher(t, WithGit(git.run)).Fetch(context.Background(), "pinned")
	require.NoError(t, err)
	defer pkg.Release()

	assert.Equal(t, []string{"fetch", "--depth=1", "origin", "c0ffee"}, git.calls[2])
	assert.Len(t, git.calls, 4, "no ls-remote for a pinned revision")
	assert.Equal(t, "c0ffee", pkg.Manifest.Remote.Revision)
	assert.Equal(t, catalog.QualityWarning, pkg.Quality)
}

func TestFetch_GitFailure(t *testing.T) {
	git := &fakeGit{fail: "fetch"}
	_, err := newTestFetcher(t, WithGit(git.run)).Fetch(context.Background(), "https://github.com/me/thing_ynh")
	require.Error(t, err)
	assert.True(t, api.IsExecution(err))
}

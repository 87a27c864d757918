package orchestrator

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"appkeeper/internal/api"
	"appkeeper/internal/catalog"
	"appkeeper/internal/config"
	"appkeeper/internal/fetcher"
	"appkeeper/internal/hooks"
	"appkeeper/internal/manifest"
	"appkeeper/internal/oplog"
	"appkeeper/internal/permission"
	"appkeeper/internal/records"
	"appkeeper/internal/ssowat"
	"appkeeper/internal/workdir"

	"github.com/stretchr/testify/require"
)

type scriptCall struct {
	Script string
	App    string
	Args   []string
	Env    map[string]string
	Dir    string
	User   string
}

// fakeRunner records script invocations. Exit codes are keyed by
// "<script>:<instance>"; before, when set, runs ahead of the exit code.
// The script named by block waits for its context to be cancelled and
// closes blocked once it started.
type fakeRunner struct {
	mu      sync.Mutex
	calls   []scriptCall
	exit    map[string]int
	before  func(call scriptCall)
	block   string
	blocked chan struct{}
}

// blockOn makes the script of app hang until its context is done.
func (r *fakeRunner) blockOn(script, app string) <-chan struct{} {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.block = script + ":" + app
	r.blocked = make(chan struct{})
	return r.blocked
}

func (r *fakeRunner) Run(ctx context.Context, req api.ScriptRequest) (api.ScriptResult, error) {
	call := scriptCall{
		Script: filepath.Base(req.Path),
		App:    req.Env[EnvInstanceName],
		Args:   req.Args,
		Env:    req.Env,
		Dir:    req.Dir,
		User:   req.User,
	}
	r.mu.Lock()
	r.calls = append(r.calls, call)
	code := r.exit[call.Script+":"+call.App]
	before := r.before
	var blocked chan struct{}
	if r.block == call.Script+":"+call.App {
		blocked, r.block = r.blocked, ""
	}
	r.mu.Unlock()

	if blocked != nil {
		close(blocked)
		<-ctx.Done()
		return api.ScriptResult{ExitCode: -1}, ctx.Err()
	}

	if before != nil {
		before(call)
	}
	res := api.ScriptResult{ExitCode: code}
	if code != 0 {
		res.Debug = "last lines of " + call.Script
	}
	return res, nil
}

func (r *fakeRunner) fail(script, app string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.exit[script+":"+app] = 1
}

func (r *fakeRunner) find(script, app string) (scriptCall, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.calls {
		if c.Script == script && c.App == app {
			return c, true
		}
	}
	return scriptCall{}, false
}

func (r *fakeRunner) ran(script, app string) bool {
	_, ok := r.find(script, app)
	return ok
}

type fakeHealth struct {
	mu      sync.Mutex
	postErr error
	phases  []api.Phase
}

func (h *fakeHealth) AssertSane(_ context.Context, services []string, phase api.Phase) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.phases = append(h.phases, phase)
	if phase == api.PhasePost && h.postErr != nil {
		return h.postErr
	}
	return nil
}

// fakePackage is written to a fresh directory on every fetch.
type fakePackage struct {
	manifest string
	scripts  map[string]string
	// files are written relative to the package root.
	files   map[string]string
	quality catalog.Quality
}

type fakeFetcher struct {
	t    *testing.T
	mu   sync.Mutex
	pkgs map[string]fakePackage
}

func (f *fakeFetcher) set(source string, pkg fakePackage) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pkgs[source] = pkg
}

func (f *fakeFetcher) Fetch(_ context.Context, source string) (*fetcher.Package, error) {
	f.mu.Lock()
	pkg, ok := f.pkgs[source]
	f.mu.Unlock()
	if !ok {
		return nil, api.NewValidationError(api.KeyAppUnknown, "unknown app %s", source)
	}

	dir := f.t.TempDir()
	require.NoError(f.t, os.WriteFile(filepath.Join(dir, "manifest.json"), []byte(pkg.manifest), 0644))
	require.NoError(f.t, os.MkdirAll(filepath.Join(dir, "scripts"), 0755))
	for name, body := range pkg.scripts {
		require.NoError(f.t, os.WriteFile(filepath.Join(dir, "scripts", name), []byte(body), 0755))
	}
	for name, body := range pkg.files {
		path := filepath.Join(dir, name)
		require.NoError(f.t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(f.t, os.WriteFile(path, []byte(body), 0644))
	}
	m, err := manifest.Load(dir)
	if err != nil {
		return nil, err
	}
	quality := pkg.quality
	if quality == "" {
		quality = catalog.QualitySuccess
	}
	return &fetcher.Package{Manifest: m, Dir: dir, Quality: quality}, nil
}

type harness struct {
	o       *Orchestrator
	store   *records.FileStore
	perms   *permission.Directory
	journal *oplog.Journal
	runner  *fakeRunner
	health  *fakeHealth
	fetch   *fakeFetcher
	ssoPath string
}

var testTime = time.Unix(1700000000, 0)

func newHarness(t *testing.T, cat *catalog.Catalog) *harness {
	t.Helper()
	root := t.TempDir()

	store := records.NewFileStore(filepath.Join(root, "apps"))
	storage := config.NewStorageWithPath(filepath.Join(root, "data"))
	perms := permission.NewDirectory(storage, store.BaseURL)
	journal := oplog.New(storage)
	runner := &fakeRunner{exit: map[string]int{}}
	health := &fakeHealth{}
	fetch := &fakeFetcher{t: t, pkgs: map[string]fakePackage{}}
	ssoPath := filepath.Join(root, "ssowat", "conf.json")

	o := New(Config{
		Records:     store,
		Locker:      records.NewLocker(filepath.Join(root, "locks")),
		Fetcher:     fetch,
		Runner:      runner,
		Health:      health,
		Permissions: perms,
		Proxy:       ssowat.NewPublisher(ssoPath),
		Domains: config.NewStaticDomains(config.AppkeeperConfig{
			Domains:    []string{"example.org", "other.org"},
			MainDomain: "example.org",
		}),
		Hooks:    hooks.NewRegistry(filepath.Join(root, "hooks"), runner),
		Journal:  journal,
		Workdirs: workdir.New(filepath.Join(root, "work"), time.Hour),
		Catalog:  cat,
	})
	o.now = func() time.Time { return testTime }

	return &harness{
		o:       o,
		store:   store,
		perms:   perms,
		journal: journal,
		runner:  runner,
		health:  health,
		fetch:   fetch,
		ssoPath: ssoPath,
	}
}

var lifecycleScripts = map[string]string{
	"install":    "#!/bin/bash\nynh_webpath_register\n",
	"remove":     "#!/bin/bash\n",
	"upgrade":    "#!/bin/bash\n",
	"change_url": "#!/bin/bash\n",
}

// webApp is a package asking for a domain and a path.
func webApp(id, version string, multi bool) fakePackage {
	m := map[string]interface{}{
		"id":               id,
		"name":             "App " + id,
		"description":      map[string]string{"en": "The " + id + " app"},
		"version":          version,
		"multi_instance":   multi,
		"packaging_format": 1,
		"arguments": map[string]interface{}{
			"install": []map[string]interface{}{
				{"name": "domain", "type": "domain"},
				{"name": "path", "type": "path", "default": "/" + id},
				{"name": "password", "type": "password"},
			},
		},
	}
	return fakePackage{manifest: mustJSON(m), scripts: lifecycleScripts}
}

// plainApp is a package without any web location.
func plainApp(id, version string) fakePackage {
	m := map[string]interface{}{
		"id":               id,
		"name":             "App " + id,
		"version":          version,
		"packaging_format": 1,
	}
	return fakePackage{manifest: mustJSON(m), scripts: lifecycleScripts}
}

func mustJSON(v interface{}) string {
	data, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return string(data)
}

func (h *harness) installWeb(t *testing.T, source, domain, path string) string {
	t.Helper()
	id, err := h.o.Install(context.Background(), InstallRequest{
		Source: source,
		Args:   map[string]string{"domain": domain, "path": path, "password": "s3cret"},
	})
	require.NoError(t, err)
	return id
}

func (h *harness) installPlain(t *testing.T, source string) string {
	t.Helper()
	id, err := h.o.Install(context.Background(), InstallRequest{Source: source})
	require.NoError(t, err)
	return id
}

func (h *harness) record(t *testing.T, id string) *records.Record {
	t.Helper()
	rec, err := h.store.Get(context.Background(), id)
	require.NoError(t, err)
	return rec
}

func (h *harness) ssoConf(t *testing.T) ssowat.Conf {
	t.Helper()
	data, err := os.ReadFile(h.ssoPath)
	require.NoError(t, err)
	var conf ssowat.Conf
	require.NoError(t, json.Unmarshal(data, &conf))
	return conf
}

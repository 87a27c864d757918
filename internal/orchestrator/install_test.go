package orchestrator

import (
	"context"
	"errors"
	"testing"

	"appkeeper/internal/api"
	"appkeeper/internal/catalog"
	"appkeeper/internal/records"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInstall_WebApp(t *testing.T) {
	h := newHarness(t, nil)
	h.fetch.set("demo", webApp("demo", "1.0~ynh1", false))
	ctx := context.Background()

	id := h.installWeb(t, "demo", "Example.org", "demo/")
	assert.Equal(t, "demo", id)

	rec := h.record(t, id)
	assert.Equal(t, "example.org", rec.Domain)
	assert.Equal(t, "/demo", rec.Path)
	assert.Equal(t, testTime.Unix(), rec.InstallTime)

	main, err := h.perms.Get(ctx, "demo.main")
	require.NoError(t, err)
	assert.Equal(t, "/", main.URL)
	assert.True(t, main.ShowTile)
	assert.Equal(t, "App demo", main.Label)
	assert.Equal(t, []string{api.PrincipalAllUsers}, main.Allowed)

	call, ok := h.runner.find("install", "demo")
	require.True(t, ok)
	assert.Equal(t, "demo", call.Env[EnvAppID])
	assert.Equal(t, "1", call.Env[EnvInstanceNumber])
	assert.Equal(t, "example.org", call.Env[EnvArgPrefix+"DOMAIN"])
	assert.Equal(t, "/demo", call.Env[EnvArgPrefix+"PATH"])
	assert.Equal(t, "1.0~ynh1", call.Env[EnvManifestVersion])

	assert.Equal(t, []api.Phase{api.PhasePre, api.PhasePost}, h.health.phases)
	assert.True(t, h.store.HasScript(id, "remove"), "package files are kept with the record")

	conf := h.ssoConf(t)
	require.Contains(t, conf.Permissions, "demo.main")
	assert.Equal(t, []string{"example.org/demo"}, conf.Permissions["demo.main"].URIs)

	entries, err := h.journal.List(id)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "app_install", entries[0].Operation)
	assert.True(t, entries[0].Success)
	assert.NotContains(t, entries[0].Env, EnvArgPrefix+"PASSWORD")
}

func TestInstall_ScriptFailureRollsBack(t *testing.T) {
	h := newHarness(t, nil)
	h.fetch.set("demo", webApp("demo", "1.0~ynh1", false))
	h.runner.fail("install", "demo")
	ctx := context.Background()

	_, err := h.o.Install(ctx, InstallRequest{
		Source: "demo",
		Args:   map[string]string{"domain": "example.org", "path": "/demo", "password": "x"},
	})
	require.Error(t, err)
	assert.True(t, api.IsExecution(err))

	exists, err := h.store.Exists(ctx, "demo")
	require.NoError(t, err)
	assert.False(t, exists)

	perms, err := h.perms.List(ctx, "demo")
	require.NoError(t, err)
	assert.Empty(t, perms)

	remove, ok := h.runner.find("remove", "demo")
	require.True(t, ok, "the remove script runs on a failed install")
	assert.Equal(t, []string{"demo"}, remove.Args)

	entries, err := h.journal.List("demo")
	require.NoError(t, err)
	ops := map[string]bool{}
	for _, e := range entries {
		ops[e.Operation] = e.Success
	}
	assert.Equal(t, map[string]bool{"app_install": false, "remove_on_failed_install": true}, ops)
}

func TestInstall_RollbackSurvivesFailingRemove(t *testing.T) {
	h := newHarness(t, nil)
	h.fetch.set("demo", plainApp("demo", "1.0~ynh1"))
	h.runner.fail("install", "demo")
	h.runner.fail("remove", "demo")
	ctx := context.Background()

	_, err := h.o.Install(ctx, InstallRequest{Source: "demo"})
	require.Error(t, err)

	var execErr *api.ExecutionError
	require.True(t, errors.As(err, &execErr))
	assert.Equal(t, "install", execErr.Operation, "the original failure is reported")

	exists, err := h.store.Exists(ctx, "demo")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestInstall_PostHealthFailureRollsBack(t *testing.T) {
	h := newHarness(t, nil)
	h.fetch.set("demo", plainApp("demo", "1.0~ynh1"))
	h.health.postErr = &api.SystemHealthError{Phase: api.PhasePost, Services: []string{"nginx"}}
	ctx := context.Background()

	_, err := h.o.Install(ctx, InstallRequest{Source: "demo"})
	require.Error(t, err)
	assert.True(t, api.IsSystemHealth(err))
	assert.False(t, api.IsValidation(err))

	exists, err := h.store.Exists(ctx, "demo")
	require.NoError(t, err)
	assert.False(t, exists)
	assert.True(t, h.runner.ran("remove", "demo"))
}

func TestInstall_NoRemoveOnFailure(t *testing.T) {
	h := newHarness(t, nil)
	h.fetch.set("demo", plainApp("demo", "1.0~ynh1"))
	h.runner.fail("install", "demo")
	ctx := context.Background()

	id, err := h.o.Install(ctx, InstallRequest{Source: "demo", NoRemoveOnFailure: true})
	require.Error(t, err)
	assert.True(t, api.IsExecution(err))
	assert.Equal(t, "demo", id)

	exists, err := h.store.Exists(ctx, "demo")
	require.NoError(t, err)
	assert.True(t, exists)
	assert.False(t, h.runner.ran("remove", "demo"))
}

func TestInstall_InstanceNumbering(t *testing.T) {
	h := newHarness(t, nil)
	h.fetch.set("multi", webApp("multi", "1.0~ynh1", true))
	ctx := context.Background()

	assert.Equal(t, "multi", h.installWeb(t, "multi", "example.org", "/one"))
	assert.Equal(t, "multi__2", h.installWeb(t, "multi", "example.org", "/two"))
	assert.Equal(t, "multi__3", h.installWeb(t, "multi", "example.org", "/three"))

	call, ok := h.runner.find("install", "multi__3")
	require.True(t, ok)
	assert.Equal(t, "multi", call.Env[EnvAppID])
	assert.Equal(t, "3", call.Env[EnvInstanceNumber])

	require.NoError(t, h.o.Remove(ctx, "multi__2", false))
	assert.Equal(t, "multi__2", h.installWeb(t, "multi", "example.org", "/again"))
}

func TestInstall_SingleInstanceRejectsSecond(t *testing.T) {
	h := newHarness(t, nil)
	h.fetch.set("demo", webApp("demo", "1.0~ynh1", false))
	h.installWeb(t, "demo", "example.org", "/demo")

	_, err := h.o.Install(context.Background(), InstallRequest{
		Source: "demo",
		Args:   map[string]string{"domain": "other.org", "path": "/demo", "password": "x"},
	})
	require.Error(t, err)
	assert.True(t, api.HasKey(err, api.KeyAppAlreadyInstalled))
}

func TestInstall_LocationConflict(t *testing.T) {
	h := newHarness(t, nil)
	h.fetch.set("blog", webApp("blog", "1.0~ynh1", false))
	h.fetch.set("wiki", webApp("wiki", "1.0~ynh1", false))
	h.installWeb(t, "blog", "example.org", "/blog")
	ctx := context.Background()

	_, err := h.o.Install(ctx, InstallRequest{
		Source: "wiki",
		Args:   map[string]string{"domain": "example.org", "path": "/blog/sub", "password": "x"},
	})
	var locErr *api.LocationUnavailableError
	require.True(t, errors.As(err, &locErr))
	require.Len(t, locErr.Conflicts, 1)
	assert.Equal(t, "blog", locErr.Conflicts[0].App)

	exists, err := h.store.Exists(ctx, "wiki")
	require.NoError(t, err)
	assert.False(t, exists, "nothing is created before the location is validated")
	assert.False(t, h.runner.ran("install", "wiki"))

	h.installWeb(t, "wiki", "example.org", "/blog2")
}

func TestInstall_UnknownDomain(t *testing.T) {
	h := newHarness(t, nil)
	h.fetch.set("demo", webApp("demo", "1.0~ynh1", false))

	_, err := h.o.Install(context.Background(), InstallRequest{
		Source: "demo",
		Args:   map[string]string{"domain": "nowhere.org", "path": "/demo", "password": "x"},
	})
	require.Error(t, err)
	assert.True(t, api.HasKey(err, api.KeyDomainUnknown))
}

func TestInstall_QualityConfirmation(t *testing.T) {
	h := newHarness(t, nil)
	pkg := plainApp("demo", "1.0~ynh1")
	pkg.quality = catalog.QualityThirdParty
	h.fetch.set("demo", pkg)
	ctx := context.Background()

	_, err := h.o.Install(ctx, InstallRequest{Source: "demo"})
	require.Error(t, err)
	assert.True(t, api.HasKey(err, api.KeyInstallAborted))

	var asked string
	h.o.confirm = func(_ context.Context, prompt string) (bool, error) {
		asked = prompt
		return false, nil
	}
	_, err = h.o.Install(ctx, InstallRequest{Source: "demo"})
	assert.True(t, api.HasKey(err, api.KeyInstallAborted))
	assert.NotEmpty(t, asked)

	id, err := h.o.Install(ctx, InstallRequest{Source: "demo", Force: true})
	require.NoError(t, err)
	assert.Equal(t, "demo", id)
}

func TestInstall_InsufficientSpace(t *testing.T) {
	h := newHarness(t, nil)
	h.fetch.set("demo", plainApp("demo", "1.0~ynh1"))
	h.o.minFreeSpace = 1024
	h.o.freeSpace = func(string) (uint64, error) { return 10, nil }

	_, err := h.o.Install(context.Background(), InstallRequest{Source: "demo"})
	assert.True(t, api.HasKey(err, api.KeyDiskSpaceInsufficient))
}

func TestInstall_InterruptedScriptRollsBack(t *testing.T) {
	h := newHarness(t, nil)
	h.fetch.set("demo", plainApp("demo", "1.0~ynh1"))
	started := h.runner.blockOn("install", "demo")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() {
		_, err := h.o.Install(ctx, InstallRequest{Source: "demo"})
		done <- err
	}()
	<-started
	cancel()
	err := <-done

	var execErr *api.ExecutionError
	require.True(t, errors.As(err, &execErr))
	assert.True(t, execErr.Interrupted)
	assert.Equal(t, "install", execErr.Operation)

	exists, err := h.store.Exists(context.Background(), "demo")
	require.NoError(t, err)
	assert.False(t, exists)
	assert.True(t, h.runner.ran("remove", "demo"), "the rollback runs after the interruption")
}

func TestInstall_FailureAfterScriptRollsBack(t *testing.T) {
	h := newHarness(t, nil)
	pkg := plainApp("demo", "1.0~ynh1")
	// A hooks file where a directory is expected cannot be registered.
	pkg.files = map[string]string{"hooks": "not a directory"}
	h.fetch.set("demo", pkg)
	ctx := context.Background()

	_, err := h.o.Install(ctx, InstallRequest{Source: "demo"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to register hooks of demo")

	exists, err := h.store.Exists(ctx, "demo")
	require.NoError(t, err)
	assert.False(t, exists)
	assert.True(t, h.runner.ran("remove", "demo"))

	entries, err := h.journal.List("demo")
	require.NoError(t, err)
	ops := map[string]bool{}
	for _, e := range entries {
		ops[e.Operation] = e.Success
	}
	assert.Equal(t, map[string]bool{"app_install": false, "remove_on_failed_install": true}, ops)
}

// staleListing hides ids from List, as a listing taken just before another
// install created them would.
type staleListing struct {
	*records.FileStore
	hidden string
}

func (s staleListing) List(ctx context.Context) ([]string, error) {
	ids, err := s.FileStore.List(ctx)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, id := range ids {
		if id != s.hidden {
			out = append(out, id)
		}
	}
	return out, nil
}

func TestInstall_IDTakenBeforeLockKeepsExisting(t *testing.T) {
	h := newHarness(t, nil)
	h.fetch.set("demo", plainApp("demo", "1.0~ynh1"))
	h.installPlain(t, "demo")
	h.o.records = staleListing{FileStore: h.store, hidden: "demo"}

	_, err := h.o.Install(context.Background(), InstallRequest{Source: "demo"})
	require.Error(t, err)
	assert.True(t, api.HasKey(err, api.KeyAppAlreadyInstalled))

	assert.Equal(t, testTime.Unix(), h.record(t, "demo").InstallTime)
	assert.True(t, h.store.HasScript("demo", "remove"))
	assert.False(t, h.runner.ran("remove", "demo"))
}

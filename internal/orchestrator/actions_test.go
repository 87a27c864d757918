package orchestrator

import (
	"context"
	"errors"
	"testing"

	"appkeeper/internal/api"
	"appkeeper/internal/oplog"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const demoActions = `
[restart_service]
name = "Restart service"
command = "systemctl restart $YNH_ACTION_SERVICE"
user = "root"
accepted_return_codes = [0, 3]

    [restart_service.arguments.service]
    type = "string"

    [restart_service.arguments.token]
    type = "password"
    optional = true

[clear_cache]
name = "Clear cache"
command = "rm -rf cache/*"
cwd = "/var/www/$app"
`

func newActionsHarness(t *testing.T) *harness {
	t.Helper()
	h := newHarness(t, nil)
	pkg := plainApp("demo", "1.0~ynh1")
	pkg.files = map[string]string{"actions.toml": demoActions}
	h.fetch.set("demo", pkg)
	h.installPlain(t, "demo")
	return h
}

func TestActions_List(t *testing.T) {
	h := newActionsHarness(t)

	list, err := h.o.ListActions(context.Background(), "demo")
	require.NoError(t, err)
	assert.Equal(t, "demo", list.App)
	assert.Equal(t, "App demo", list.AppName)
	require.Len(t, list.Actions, 2)
	assert.Equal(t, "restart_service", list.Actions[0].ID)
	assert.Equal(t, "clear_cache", list.Actions[1].ID)
}

func TestActions_ListWithoutActions(t *testing.T) {
	h := newHarness(t, nil)
	h.fetch.set("demo", plainApp("demo", "1.0~ynh1"))
	h.installPlain(t, "demo")

	list, err := h.o.ListActions(context.Background(), "demo")
	require.NoError(t, err)
	assert.Empty(t, list.Actions)
}

func TestActions_Run(t *testing.T) {
	h := newActionsHarness(t)

	err := h.o.RunAction(context.Background(), "demo", "restart_service", map[string]string{"service": "nginx", "token": "hunter2"})
	require.NoError(t, err)

	call, ok := h.runner.find(actionScript, "demo")
	require.True(t, ok)
	assert.Equal(t, "restart_service", call.Env[EnvAction])
	assert.Equal(t, "nginx", call.Env[EnvActionArgPrefix+"SERVICE"])
	assert.Equal(t, "root", call.User)
	assert.Equal(t, call.Env[EnvBaseDir], call.Dir, "actions run from their scratch copy by default")
	assert.NoDirExists(t, call.Env[EnvBaseDir], "the scratch copy is released")

	entries, err := h.journal.List("demo")
	require.NoError(t, err)
	var ran *oplog.Entry
	for i := range entries {
		if entries[i].Operation == "app_action_run" {
			ran = &entries[i]
		}
	}
	require.NotNil(t, ran)
	assert.True(t, ran.Success)
	assert.Equal(t, "nginx", ran.Env[EnvActionArgPrefix+"SERVICE"])
	assert.NotContains(t, ran.Env, EnvActionArgPrefix+"TOKEN")
}

func TestActions_RunExpandsCwd(t *testing.T) {
	h := newActionsHarness(t)

	require.NoError(t, h.o.RunAction(context.Background(), "demo", "clear_cache", nil))
	call, ok := h.runner.find(actionScript, "demo")
	require.True(t, ok)
	assert.Equal(t, "/var/www/demo", call.Dir)
}

func TestActions_AcceptedReturnCodes(t *testing.T) {
	h := newActionsHarness(t)
	ctx := context.Background()
	args := map[string]string{"service": "nginx"}

	h.runner.mu.Lock()
	h.runner.exit[actionScript+":demo"] = 3
	h.runner.mu.Unlock()
	require.NoError(t, h.o.RunAction(ctx, "demo", "restart_service", args))

	h.runner.fail(actionScript, "demo")
	err := h.o.RunAction(ctx, "demo", "restart_service", args)
	var execErr *api.ExecutionError
	require.True(t, errors.As(err, &execErr))
	assert.Equal(t, 1, execErr.ExitCode)
	assert.Equal(t, "action restart_service", execErr.Operation)

	// clear_cache only accepts 0
	assert.True(t, api.IsExecution(h.o.RunAction(ctx, "demo", "clear_cache", nil)))
}

func TestActions_RunRejectsBadInput(t *testing.T) {
	h := newActionsHarness(t)
	ctx := context.Background()

	err := h.o.RunAction(ctx, "demo", "reboot", nil)
	assert.True(t, api.HasKey(err, api.KeyActionUnavailable))

	err = h.o.RunAction(ctx, "demo", "restart_service", nil)
	assert.True(t, api.HasKey(err, api.KeyArgumentRequired))

	err = h.o.RunAction(ctx, "ghost", "restart_service", nil)
	assert.True(t, api.HasKey(err, api.KeyAppNotInstalled))

	assert.False(t, h.runner.ran(actionScript, "demo"))
}

func TestMakeDefault(t *testing.T) {
	h := newHarness(t, nil)
	h.fetch.set("blog", webApp("blog", "1.0~ynh1", false))
	h.installWeb(t, "blog", "example.org", "/blog")
	ctx := context.Background()

	require.NoError(t, h.o.MakeDefault(ctx, "blog", ""))
	assert.Equal(t, "example.org/blog", h.ssoConf(t).RedirectedURLs["example.org/"])

	require.NoError(t, h.o.MakeDefault(ctx, "blog", "Other.org"))
	conf := h.ssoConf(t)
	assert.Equal(t, "example.org/blog", conf.RedirectedURLs["other.org/"])

	// Later regenerations keep the redirects.
	require.NoError(t, h.o.SSOwatConf(ctx))
	assert.Equal(t, "example.org/blog", h.ssoConf(t).RedirectedURLs["example.org/"])
}

func TestMakeDefault_Rejects(t *testing.T) {
	h := newHarness(t, nil)
	h.fetch.set("blog", webApp("blog", "1.0~ynh1", false))
	h.fetch.set("site", webApp("site", "1.0~ynh1", false))
	h.fetch.set("tool", plainApp("tool", "1.0~ynh1"))
	h.installWeb(t, "blog", "example.org", "/blog")
	h.installWeb(t, "site", "other.org", "/")
	h.installPlain(t, "tool")
	ctx := context.Background()

	err := h.o.MakeDefault(ctx, "blog", "other.org")
	assert.True(t, api.HasKey(err, api.KeyDefaultLocationUsed))

	err = h.o.MakeDefault(ctx, "blog", "nowhere.org")
	assert.True(t, api.HasKey(err, api.KeyDomainUnknown))

	err = h.o.MakeDefault(ctx, "tool", "")
	assert.True(t, api.HasKey(err, api.KeyAppNoLocation))

	assert.NotContains(t, h.ssoConf(t).RedirectedURLs, "other.org/")
}

func TestChangeLabel(t *testing.T) {
	h := newHarness(t, nil)
	h.fetch.set("blog", webApp("blog", "1.0~ynh1", false))
	h.installWeb(t, "blog", "example.org", "/blog")
	ctx := context.Background()

	require.NoError(t, h.o.ChangeLabel(ctx, "blog", "My blog"))

	main, err := h.perms.Get(ctx, "blog.main")
	require.NoError(t, err)
	assert.Equal(t, "My blog", main.Label)
	assert.Equal(t, "My blog", h.ssoConf(t).Permissions["blog.main"].Label)

	info, err := h.o.Info(ctx, "blog", false)
	require.NoError(t, err)
	assert.Equal(t, "My blog", info.Name)

	assert.True(t, api.HasKey(h.o.ChangeLabel(ctx, "ghost", "x"), api.KeyAppNotInstalled))
}

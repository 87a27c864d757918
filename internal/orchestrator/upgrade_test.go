package orchestrator

import (
	"context"
	"errors"
	"testing"

	"appkeeper/internal/api"
	"appkeeper/internal/catalog"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const upgradeCatalog = `{
  "apps": {
    "a": {"level": 8, "state": "working", "git": {"url": "https://example.org/a_ynh"}, "manifest": {"version": "1.0~ynh2"}},
    "b": {"level": 8, "state": "working", "git": {"url": "https://example.org/b_ynh"}, "manifest": {"version": "1.0~ynh2"}},
    "c": {"level": 8, "state": "working", "git": {"url": "https://example.org/c_ynh"}, "manifest": {"version": "1.0~ynh2"}}
  }
}`

func newUpgradeHarness(t *testing.T) *harness {
	t.Helper()
	cat, err := catalog.Parse([]byte(upgradeCatalog))
	require.NoError(t, err)
	h := newHarness(t, cat)
	for _, id := range []string{"a", "b", "c"} {
		h.fetch.set(id, plainApp(id, "1.0~ynh1"))
		h.installPlain(t, id)
		h.fetch.set(id, plainApp(id, "1.0~ynh2"))
	}
	return h
}

func TestUpgrade_BatchStopsAtFirstFailure(t *testing.T) {
	h := newUpgradeHarness(t)
	h.runner.fail("upgrade", "b")
	ctx := context.Background()

	report, err := h.o.Upgrade(ctx, UpgradeRequest{Apps: []string{"a", "b", "c"}})
	require.Error(t, err)

	var batchErr *api.BatchUpgradeError
	require.True(t, errors.As(err, &batchErr))
	assert.Equal(t, "b", batchErr.Failed)
	assert.Equal(t, []string{"a"}, batchErr.Upgraded)
	assert.Equal(t, []string{"c"}, batchErr.NotAttempted)
	assert.True(t, api.IsExecution(err))
	assert.Equal(t, []string{"a"}, report.Upgraded)

	assert.True(t, h.runner.ran("upgrade", "a"))
	assert.False(t, h.runner.ran("upgrade", "c"))

	assert.Equal(t, testTime.Unix(), h.record(t, "a").UpdateTime)
	assert.Zero(t, h.record(t, "b").UpdateTime, "a failed upgrade leaves the record alone")
	assert.Zero(t, h.record(t, "c").UpdateTime)
	assert.True(t, h.store.HasScript("b", "remove"), "no removal on a failed upgrade")
}

func TestUpgrade_AllInstalledByDefault(t *testing.T) {
	h := newUpgradeHarness(t)

	report, err := h.o.Upgrade(context.Background(), UpgradeRequest{})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, report.Upgraded)

	call, ok := h.runner.find("upgrade", "b")
	require.True(t, ok)
	assert.Equal(t, "UPGRADE_PACKAGE", call.Env[EnvUpgradeType])
	assert.Equal(t, "1.0~ynh1", call.Env[EnvCurrentVersion])
	assert.Equal(t, "1.0~ynh2", call.Env[EnvManifestVersion])
	assert.Equal(t, "0", call.Env[EnvNoBackupUpgrade])

	m := h.o.installedManifest("b")
	assert.Equal(t, "1.0~ynh2", m.Version, "package files are replaced")
}

func TestUpgrade_DeduplicatesKeepingOrder(t *testing.T) {
	h := newUpgradeHarness(t)

	report, err := h.o.Upgrade(context.Background(), UpgradeRequest{Apps: []string{"c", "a", "c"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "a"}, report.Upgraded)
}

func TestUpgrade_UnknownAppFailsBeforeAnything(t *testing.T) {
	h := newUpgradeHarness(t)

	_, err := h.o.Upgrade(context.Background(), UpgradeRequest{Apps: []string{"a", "nope"}})
	require.Error(t, err)
	assert.True(t, api.HasKey(err, api.KeyAppNotInstalled))
	assert.False(t, h.runner.ran("upgrade", "a"))
}

func TestUpgrade_SameVersionIsNoOp(t *testing.T) {
	h := newHarness(t, nil)
	h.fetch.set("a", plainApp("a", "1.0~ynh1"))
	h.installPlain(t, "a")

	report, err := h.o.Upgrade(context.Background(), UpgradeRequest{Apps: []string{"a"}, Source: "a"})
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, report.UpToDate)
	assert.False(t, h.runner.ran("upgrade", "a"))
	assert.Equal(t, testTime.Unix(), h.record(t, "a").UpdateTime)

	report, err = h.o.Upgrade(context.Background(), UpgradeRequest{Apps: []string{"a"}, Source: "a", Force: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, report.Upgraded)
	call, ok := h.runner.find("upgrade", "a")
	require.True(t, ok)
	assert.Equal(t, "UPGRADE_FORCED", call.Env[EnvUpgradeType])
}

func TestUpgrade_LegacyVersionAlwaysRuns(t *testing.T) {
	h := newHarness(t, nil)
	h.fetch.set("a", plainApp("a", "2.1"))
	h.installPlain(t, "a")

	report, err := h.o.Upgrade(context.Background(), UpgradeRequest{Apps: []string{"a"}, Source: "a"})
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, report.Upgraded)

	call, ok := h.runner.find("upgrade", "a")
	require.True(t, ok)
	assert.Equal(t, "UNKNOWN", call.Env[EnvUpgradeType])
}

func TestUpgrade_CustomAppNeedsSource(t *testing.T) {
	h := newHarness(t, nil)
	h.fetch.set("a", plainApp("a", "1.0~ynh1"))
	h.installPlain(t, "a")

	report, err := h.o.Upgrade(context.Background(), UpgradeRequest{Apps: []string{"a"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, report.Skipped)
	assert.False(t, h.runner.ran("upgrade", "a"))
}

func TestUpgrade_NothingInstalled(t *testing.T) {
	h := newHarness(t, nil)

	_, err := h.o.Upgrade(context.Background(), UpgradeRequest{})
	assert.True(t, api.HasKey(err, api.KeyAlreadyUpToDate))
}

func TestUpgrade_ForceUsesCatalogWhenUpToDate(t *testing.T) {
	cat, err := catalog.Parse([]byte(`{"apps": {"a": {"level": 8, "state": "working", "git": {"url": "https://example.org/a_ynh"}, "manifest": {"version": "1.0~ynh1"}}}}`))
	require.NoError(t, err)
	h := newHarness(t, cat)
	h.fetch.set("a", plainApp("a", "1.0~ynh1"))
	h.installPlain(t, "a")

	report, err := h.o.Upgrade(context.Background(), UpgradeRequest{Apps: []string{"a"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, report.UpToDate)
	assert.False(t, h.runner.ran("upgrade", "a"))

	report, err = h.o.Upgrade(context.Background(), UpgradeRequest{Apps: []string{"a"}, Force: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, report.Upgraded)
	call, ok := h.runner.find("upgrade", "a")
	require.True(t, ok)
	assert.Equal(t, "UPGRADE_FORCED", call.Env[EnvUpgradeType])
}

func TestUpgrade_ForceStillSkipsCustomApps(t *testing.T) {
	h := newHarness(t, nil)
	h.fetch.set("a", plainApp("a", "1.0~ynh1"))
	h.installPlain(t, "a")

	report, err := h.o.Upgrade(context.Background(), UpgradeRequest{Apps: []string{"a"}, Force: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, report.Skipped)
	assert.False(t, h.runner.ran("upgrade", "a"))
}

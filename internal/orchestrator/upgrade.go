package orchestrator

import (
	"context"
	"path/filepath"

	"appkeeper/internal/api"
	"appkeeper/internal/hooks"
	"appkeeper/internal/instance"
	"appkeeper/internal/manifest"
	"appkeeper/internal/messages"
	"appkeeper/internal/records"
	"appkeeper/internal/version"
	"appkeeper/pkg/logging"
)

// UpgradeRequest describes a single or batch upgrade.
type UpgradeRequest struct {
	// Apps defaults to every installed instance when Source is empty.
	Apps []string

	// Source overrides the catalog: a git url, folder or archive.
	Source string

	Force          bool
	NoSafetyBackup bool
}

// UpgradeReport tells what happened to each requested instance.
type UpgradeReport struct {
	Upgraded []string `json:"upgraded"`
	UpToDate []string `json:"up_to_date"`
	// Skipped need an explicit source to be upgraded.
	Skipped []string `json:"skipped"`
}

type upgradeOutcome int

const (
	outcomeUpgraded upgradeOutcome = iota
	outcomeUpToDate
	outcomeSkipped
)

// Upgrade upgrades instances one after the other, in order. The first
// failure stops the batch; the returned *api.BatchUpgradeError lists the
// instances that were never attempted.
func (o *Orchestrator) Upgrade(ctx context.Context, req UpgradeRequest) (*UpgradeReport, error) {
	if err := o.assertFreeSpace("disk_space_not_sufficient_update"); err != nil {
		return nil, err
	}

	apps := req.Apps
	if len(apps) == 0 && req.Source == "" {
		installed, err := o.records.List(ctx)
		if err != nil {
			return nil, err
		}
		apps = installed
	}
	apps = dedupe(apps)

	for _, id := range apps {
		if err := o.assertInstalled(ctx, id); err != nil {
			return nil, err
		}
	}
	if len(apps) == 0 {
		return nil, api.NewValidationError(api.KeyAlreadyUpToDate, "%s", o.msg.N("apps_already_up_to_date", nil))
	}
	if len(apps) > 1 {
		logging.Info("Orchestrator", "%s", o.msg.N("app_upgrade_several_apps", messages.Args{"apps": apps}))
	}

	unlock, err := o.lock(apps...)
	if err != nil {
		return nil, err
	}
	defer unlock()

	report := &UpgradeReport{Upgraded: []string{}, UpToDate: []string{}, Skipped: []string{}}
	for i, id := range apps {
		outcome, err := o.upgradeOne(ctx, id, req)
		if err != nil {
			notAttempted := append([]string{}, apps[i+1:]...)
			if len(notAttempted) > 0 {
				logging.Error("Orchestrator", err, "%s", o.msg.N("app_not_upgraded", messages.Args{"failed_app": id, "apps": notAttempted}))
			}
			return report, &api.BatchUpgradeError{
				Failed:       id,
				Upgraded:     report.Upgraded,
				NotAttempted: notAttempted,
				Cause:        err,
			}
		}
		switch outcome {
		case outcomeUpgraded:
			report.Upgraded = append(report.Upgraded, id)
		case outcomeUpToDate:
			report.UpToDate = append(report.UpToDate, id)
		case outcomeSkipped:
			report.Skipped = append(report.Skipped, id)
		}
	}

	if len(report.Upgraded) > 0 {
		o.refreshProxy(ctx)
	}
	return report, nil
}

func (o *Orchestrator) upgradeOne(ctx context.Context, id string, req UpgradeRequest) (upgradeOutcome, error) {
	logging.Info("Orchestrator", "%s", o.msg.N("app_upgrade_app_name", messages.Args{"app": id}))

	rec, err := o.records.Get(ctx, id)
	if err != nil {
		return 0, err
	}
	current := o.installedManifest(id)

	source := req.Source
	if source == "" {
		switch up := o.upgradability(rec, current); {
		case up == version.URLRequired:
			logging.Warn("Orchestrator", "%s", o.msg.N("app_upgrade_custom_app_url_required", messages.Args{"app": id}))
			return outcomeSkipped, nil
		case up == version.UpgradableYes || req.Force:
			source = current.ID
		default:
			logging.Success("Orchestrator", "%s", o.msg.N("app_already_up_to_date", messages.Args{"app": id}))
			return outcomeUpToDate, nil
		}
	}

	pkg, err := o.fetcher.Fetch(ctx, source)
	if err != nil {
		return 0, err
	}
	defer pkg.Release()
	m := pkg.Manifest

	currentVersion := versionOrUnknown(current.Version)
	targetVersion := versionOrUnknown(m.Version)
	cls := version.ClassifyUpgrade(currentVersion, targetVersion, req.Force)
	if cls.Type == version.NoOp {
		logging.Success("Orchestrator", "%s", o.msg.N("app_already_up_to_date", messages.Args{"app": id}))
		rec.UpdateTime = o.now().Unix()
		rec.CurrentRevision = m.Revision()
		if err := o.records.Put(ctx, rec); err != nil {
			return 0, err
		}
		return outcomeUpToDate, nil
	}

	if err := manifest.CheckRequirements(m, o.packages); err != nil {
		return 0, err
	}
	if err := o.preCheck(ctx, m); err != nil {
		return 0, err
	}
	answers, err := manifest.AnswerQuestions(m.Arguments[manifest.ScriptUpgrade], nil)
	if err != nil {
		return 0, err
	}

	env, secrets := scriptEnv(id, m, answers, pkg.Dir)
	env[EnvUpgradeType] = cls.Type.EnvValue()
	env[EnvManifestVersion] = targetVersion
	env[EnvCurrentVersion] = currentVersion
	env[EnvNoBackupUpgrade] = boolEnv(req.NoSafetyBackup)

	op := o.journal.Start("app_upgrade", id)
	op.SetEnv(env, secrets...)
	var opErr error
	defer op.Close(&opErr)

	opErr = o.runScript(ctx, scriptRun{
		operation: "upgrade",
		app:       id,
		path:      filepath.Join(pkg.Dir, "scripts", manifest.ScriptUpgrade),
		env:       env,
		dir:       pkg.Dir,
		services:  m.Services,
		postCheck: true,
	})
	if opErr != nil {
		logging.Error("Orchestrator", opErr, "%s", o.msg.N("app_upgrade_failed", messages.Args{"app": id, "error": opErr.Error()}))
		return 0, opErr
	}

	if opErr = o.finishUpgrade(ctx, id, m, pkg.Dir); opErr != nil {
		return 0, opErr
	}
	logging.Success("Orchestrator", "%s", o.msg.N("app_upgraded", messages.Args{"app": id}))
	op.Succeed()
	o.callback(ctx, hooks.PostAppUpgrade, env)
	return outcomeUpgraded, nil
}

// finishUpgrade records the new revision and swaps the stored package
// files for the new ones.
func (o *Orchestrator) finishUpgrade(ctx context.Context, id string, m *manifest.Manifest, pkgDir string) error {
	// The script may have changed settings; reload before writing.
	rec, err := o.records.Get(ctx, id)
	if err != nil {
		return err
	}
	rec.UpdateTime = o.now().Unix()
	rec.CurrentRevision = m.Revision()
	if err := o.records.Put(ctx, rec); err != nil {
		return err
	}

	if err := o.hooks.Remove(id); err != nil {
		logging.Warn("Orchestrator", "Could not clean hooks of %s: %v", id, err)
	}
	if err := o.hooks.AddDir(id, filepath.Join(pkgDir, "hooks")); err != nil {
		logging.Warn("Orchestrator", "Could not register hooks of %s: %v", id, err)
	}
	return o.records.ReplaceFiles(id, pkgDir)
}

// upgradability compares an installed instance with the catalog.
func (o *Orchestrator) upgradability(rec *records.Record, current *manifest.Manifest) version.Upgradability {
	installed := version.InstalledInfo{Version: current.Version, UpdateTime: rec.UpdateTime}
	if installed.UpdateTime == 0 {
		installed.UpdateTime = rec.InstallTime
	}
	if o.catalog == nil {
		return version.ComputeUpgradability(installed, nil)
	}
	entry, ok := o.catalog.Get(current.ID)
	if !ok {
		return version.ComputeUpgradability(installed, nil)
	}
	return version.ComputeUpgradability(installed, entry.Info())
}

// installedManifest loads the manifest stored with an instance. A missing
// or broken manifest yields a bare one named after the instance.
func (o *Orchestrator) installedManifest(id string) *manifest.Manifest {
	m, err := manifest.Load(o.records.Dir(id))
	if err != nil {
		logging.Warn("Orchestrator", "Could not read the manifest of %s: %v", id, err)
		appID, _, perr := instance.Parse(id)
		if perr != nil {
			appID = id
		}
		return &manifest.Manifest{ID: appID}
	}
	return m
}

func versionOrUnknown(v string) string {
	if v == "" {
		return unknownVersionValue
	}
	return v
}

func boolEnv(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

// dedupe drops repeated ids, keeping the first occurrence.
func dedupe(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

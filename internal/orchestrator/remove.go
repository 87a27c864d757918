package orchestrator

import (
	"context"
	"path/filepath"

	"appkeeper/internal/api"
	"appkeeper/internal/hooks"
	"appkeeper/internal/manifest"
	"appkeeper/internal/messages"
	"appkeeper/pkg/logging"
)

// Remove runs the remove script of id and deletes everything the
// orchestrator holds about it. A failing or interrupted script does not
// stop the cleanup: the record, permissions and hooks go away regardless.
func (o *Orchestrator) Remove(ctx context.Context, id string, purge bool) (err error) {
	if err := o.assertInstalled(ctx, id); err != nil {
		return err
	}
	unlock, err := o.lock(id)
	if err != nil {
		return err
	}
	defer unlock()

	op := o.journal.Start("app_remove", id)
	defer op.Close(&err)
	logging.Info("Orchestrator", "%s", o.msg.N("app_start_remove", messages.Args{"app": id}))

	m := o.installedManifest(id)
	wd, err := o.workdirs.AllocateFrom(o.records.Dir(id))
	if err != nil {
		return err
	}

	env, _ := scriptEnv(id, m, nil, wd.Path())
	env[EnvPurge] = boolEnv(purge)
	op.SetEnv(env)

	scriptErr := o.runScript(ctx, scriptRun{
		operation: "remove",
		app:       id,
		path:      filepath.Join(wd.Path(), "scripts", manifest.ScriptRemove),
		env:       env,
		dir:       wd.Path(),
		services:  m.Services,
	})
	wd.Release()

	// Whatever happened to the script, the rest must not be interrupted.
	cleanupCtx := context.WithoutCancel(ctx)
	if scriptErr == nil {
		logging.Success("Orchestrator", "%s", o.msg.N("app_removed", messages.Args{"app": id}))
		o.callback(cleanupCtx, hooks.PostAppRemove, env)
	} else {
		logging.Warn("Orchestrator", "%s: %v", o.msg.N("app_not_properly_removed", messages.Args{"app": id}), scriptErr)
		op.Fail(scriptErr)
	}

	o.deletePermissions(cleanupCtx, id)
	if err := o.records.Delete(cleanupCtx, id); err != nil {
		return err
	}
	if err := o.hooks.Remove(id); err != nil {
		logging.Warn("Orchestrator", "Could not clean hooks of %s: %v", id, err)
	}
	o.refreshProxy(cleanupCtx)

	if o.health != nil {
		if err := o.health.AssertSane(cleanupCtx, m.Services, api.PhasePost); err != nil {
			return err
		}
	}
	if scriptErr == nil {
		op.Succeed()
	}
	return nil
}

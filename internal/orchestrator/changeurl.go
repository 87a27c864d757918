package orchestrator

import (
	"context"
	"path/filepath"

	"appkeeper/internal/api"
	"appkeeper/internal/hooks"
	"appkeeper/internal/manifest"
	"appkeeper/internal/messages"
	"appkeeper/internal/webpath"
	"appkeeper/pkg/logging"
)

// webServer is reloaded once an app moved.
const webServer = "nginx"

// ChangeURL moves a web app to domain+path through its change_url script.
// When the script fails the previous location is put back and nothing else
// is rolled back.
func (o *Orchestrator) ChangeURL(ctx context.Context, id, domain, path string) (err error) {
	if err := o.assertInstalled(ctx, id); err != nil {
		return err
	}
	if !o.records.HasScript(id, manifest.ScriptChangeURL) {
		return api.NewValidationError(api.KeyChangeURLNoScript, "%s",
			o.msg.N("app_change_url_no_script", messages.Args{"app_name": id}))
	}

	unlock, err := o.lock(id)
	if err != nil {
		return err
	}
	defer unlock()

	rec, err := o.records.Get(ctx, id)
	if err != nil {
		return err
	}
	oldDomain := webpath.NormalizeDomain(rec.Domain)
	oldPath := webpath.NormalizePath(rec.Path)
	domain = webpath.NormalizeDomain(domain)
	path = webpath.NormalizePath(path)

	if domain == oldDomain && path == oldPath {
		return api.NewValidationError(api.KeyChangeURLIdentical, "%s",
			o.msg.N("app_change_url_identical_domains", messages.Args{"domain": domain, "path": path}))
	}

	m := o.installedManifest(id)
	requirement := o.guessRequirement(m.InstallQuestions(), o.records.ScriptPath(id, manifest.ScriptInstall))
	if err := o.resolver.AssertDomainExists(ctx, domain); err != nil {
		return err
	}
	if err := o.resolver.Validate(ctx, domain, path, requirement, id); err != nil {
		return err
	}

	wd, err := o.workdirs.AllocateFrom(o.records.Dir(id))
	if err != nil {
		return err
	}
	defer wd.Release()

	env, _ := scriptEnv(id, m, nil, wd.Path())
	env[EnvOldDomain] = oldDomain
	env[EnvOldPath] = oldPath
	env[EnvNewDomain] = domain
	env[EnvNewPath] = path

	op := o.journal.Start("app_change_url", id)
	if domain != oldDomain {
		op.Relate(oldDomain)
	}
	op.SetEnv(env)
	defer op.Close(&err)

	scriptErr := o.runScript(ctx, scriptRun{
		operation: "change_url",
		app:       id,
		path:      filepath.Join(wd.Path(), "scripts", manifest.ScriptChangeURL),
		env:       env,
		dir:       wd.Path(),
		services:  m.Services,
	})
	if scriptErr != nil {
		logging.Error("Orchestrator", scriptErr, "Failed to change the url of %s", id)
		o.restoreLocation(context.WithoutCancel(ctx), id, oldDomain, oldPath)
		return scriptErr
	}

	// The script normally stores the new location itself.
	if err := o.setLocation(ctx, id, domain, path); err != nil {
		return err
	}
	o.refreshProxy(ctx)
	if o.services != nil {
		if err := o.services.ReloadOrRestart(ctx, webServer); err != nil {
			logging.Warn("Orchestrator", "%s: %v", o.msg.N("app_change_url_failed_nginx_reload", messages.Args{"app": id}), err)
		}
	}

	logging.Success("Orchestrator", "%s", o.msg.N("app_change_url_success", messages.Args{"app": id, "domain": domain, "path": path}))
	op.Succeed()
	o.callback(ctx, hooks.PostAppChangeURL, env)
	return nil
}

// setLocation stores domain and path in the record of id.
func (o *Orchestrator) setLocation(ctx context.Context, id, domain, path string) error {
	rec, err := o.records.Get(ctx, id)
	if err != nil {
		return err
	}
	rec.Domain = domain
	rec.Path = path
	return o.records.Put(ctx, rec)
}

// restoreLocation undoes whatever a failed change_url script wrote.
func (o *Orchestrator) restoreLocation(ctx context.Context, id, domain, path string) {
	if err := o.setLocation(ctx, id, domain, path); err != nil {
		logging.Error("Orchestrator", err, "Could not restore the location of %s", id)
	}
}

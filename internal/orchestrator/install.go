package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"appkeeper/internal/api"
	"appkeeper/internal/catalog"
	"appkeeper/internal/hooks"
	"appkeeper/internal/instance"
	"appkeeper/internal/manifest"
	"appkeeper/internal/messages"
	"appkeeper/internal/records"
	"appkeeper/internal/webpath"
	"appkeeper/pkg/logging"
)

// InstallRequest describes one install.
type InstallRequest struct {
	Source string
	Label  string
	Args   map[string]string

	// Force skips the quality confirmation.
	Force bool

	// NoRemoveOnFailure keeps the record and the package tree of a failed
	// install for debugging.
	NoRemoveOnFailure bool
}

// Install installs a package and returns the new instance id.
func (o *Orchestrator) Install(ctx context.Context, req InstallRequest) (id string, err error) {
	if err := o.assertFreeSpace("disk_space_not_sufficient_install"); err != nil {
		return "", err
	}

	pkg, err := o.fetcher.Fetch(ctx, req.Source)
	if err != nil {
		return "", err
	}
	defer pkg.Release()

	if !req.Force {
		if err := o.confirmQuality(ctx, pkg.Quality); err != nil {
			return "", err
		}
	}

	m := pkg.Manifest
	if !instance.ValidAppID(m.ID) {
		return "", api.NewValidationError(api.KeyAppIDInvalid, "invalid app id %q", m.ID)
	}
	label := req.Label
	if label == "" {
		label = m.Name
	}

	logging.Info("Orchestrator", "%s", o.msg.N("app_requirements_checking", messages.Args{"app": m.ID}))
	if err := manifest.CheckRequirements(m, o.packages); err != nil {
		return "", err
	}
	if err := o.preCheck(ctx, m); err != nil {
		return "", err
	}

	id, err = o.nextInstanceID(ctx, m)
	if err != nil {
		return "", err
	}
	unlock, err := o.lock(id)
	if err != nil {
		return "", err
	}
	defer unlock()
	// Another install may have taken the id before the lock was ours.
	if taken, err := o.records.Exists(ctx, id); err != nil {
		return "", err
	} else if taken {
		return "", api.NewValidationError(api.KeyAppAlreadyInstalled, "%s was installed meanwhile, try again", id)
	}

	questions := m.InstallQuestions()
	answers, err := manifest.AnswerQuestions(questions, req.Args)
	if err != nil {
		return "", err
	}
	domain, path := answerLocation(questions, answers)
	requirement := o.guessRequirement(questions, filepath.Join(pkg.Dir, "scripts", manifest.ScriptInstall))
	if err := o.resolver.Validate(ctx, domain, path, requirement, ""); err != nil {
		return "", err
	}

	// Mutations start here.
	op := o.journal.Start("app_install", id)
	defer op.Close(&err)
	logging.Info("Orchestrator", "%s", o.msg.N("app_start_install", messages.Args{"app": id}))

	if err := o.records.Create(ctx, id); err != nil {
		return "", err
	}
	if err := o.createRecord(ctx, id, m, pkg.Dir, label); err != nil {
		o.discardInstance(context.WithoutCancel(ctx), id)
		return "", err
	}

	env, secrets := scriptEnv(id, m, answers, pkg.Dir)
	op.SetEnv(env, secrets...)

	installErr := o.runScript(ctx, scriptRun{
		operation: "install",
		app:       id,
		path:      filepath.Join(pkg.Dir, "scripts", manifest.ScriptInstall),
		env:       env,
		dir:       pkg.Dir,
		services:  m.Services,
		postCheck: true,
	})
	if installErr == nil {
		installErr = o.finishInstall(ctx, id, domain, path, requirement, pkg.Dir)
	}
	if installErr != nil {
		logging.Error("Orchestrator", installErr, "%s", o.msg.N("app_install_failed", messages.Args{"app": id, "error": installErr.Error()}))
		if req.NoRemoveOnFailure {
			pkg.Retain()
			return id, fmt.Errorf("the installation of %s failed, but was not cleaned up as requested by --no-remove-on-failure: %w", id, installErr)
		}
		o.rollbackInstall(context.WithoutCancel(ctx), id, m, pkg.Dir)
		return "", installErr
	}

	logging.Success("Orchestrator", "%s", o.msg.N("app_installed", messages.Args{"app": id}))
	op.Succeed()
	o.callback(ctx, hooks.PostAppInstall, env)
	return id, nil
}

// nextInstanceID picks the id of a new instance of m.
func (o *Orchestrator) nextInstanceID(ctx context.Context, m *manifest.Manifest) (string, error) {
	installed, err := o.records.List(ctx)
	if err != nil {
		return "", err
	}
	number := instance.NextNumber(m.ID, installed)
	if number > 1 && !m.MultiInstance {
		return "", api.NewValidationError(api.KeyAppAlreadyInstalled, "%s", o.msg.N("app_already_installed", messages.Args{"app": m.ID}))
	}
	return instance.Generate(m.ID, number), nil
}

// createRecord fills the fresh instance directory: the initial record, the
// package files and the main permission.
func (o *Orchestrator) createRecord(ctx context.Context, id string, m *manifest.Manifest, pkgDir, label string) error {
	rec := records.New(id)
	rec.InstallTime = o.now().Unix()
	rec.CurrentRevision = m.Revision()
	if err := o.records.Put(ctx, rec); err != nil {
		return err
	}
	if err := o.records.InstallFiles(id, pkgDir); err != nil {
		return err
	}
	// The main permission starts without url and tile; registering the
	// location gives it both.
	return o.permissions.Create(ctx, api.Permission{
		Name:    id + ".main",
		Label:   label,
		Allowed: []string{api.PrincipalAllUsers},
	})
}

// finishInstall persists the final state of a successful install.
func (o *Orchestrator) finishInstall(ctx context.Context, id, domain, path string, requirement webpath.Requirement, pkgDir string) error {
	rec, err := o.records.Get(ctx, id)
	if err != nil {
		return err
	}
	// Scripts usually register their location themselves.
	if requirement.IsWebApp() && !rec.IsWebApp() && domain != "" {
		if requirement == webpath.RequirementFullDomain {
			path = "/"
		}
		if err := o.registerLocation(ctx, rec, domain, path); err != nil {
			return err
		}
	}

	if err := o.hooks.Remove(id); err != nil {
		logging.Warn("Orchestrator", "Could not clean hooks of %s: %v", id, err)
	}
	if err := o.hooks.AddDir(id, filepath.Join(pkgDir, "hooks")); err != nil {
		return fmt.Errorf("failed to register hooks of %s: %w", id, err)
	}
	if err := o.records.Restrict(id); err != nil {
		return err
	}
	o.refreshProxy(ctx)
	return nil
}

// rollbackInstall undoes a failed install. Every step is best-effort.
func (o *Orchestrator) rollbackInstall(ctx context.Context, id string, m *manifest.Manifest, pkgDir string) {
	logging.Warn("Orchestrator", "%s", o.msg.N("app_remove_after_failed_install", nil))

	env, _ := scriptEnv(id, m, nil, pkgDir)
	op := o.journal.Start("remove_on_failed_install", id)
	op.SetEnv(env)

	err := o.runScript(ctx, scriptRun{
		operation: "remove",
		app:       id,
		path:      filepath.Join(pkgDir, "scripts", manifest.ScriptRemove),
		args:      []string{id},
		env:       env,
		dir:       pkgDir,
		services:  m.Services,
		postCheck: true,
	})
	if err != nil {
		logging.Warn("Orchestrator", "%s: %v", o.msg.N("app_not_properly_removed", messages.Args{"app": id}), err)
		op.Fail(err)
	} else {
		op.Succeed()
	}

	if err := o.hooks.Remove(id); err != nil {
		logging.Warn("Orchestrator", "Could not clean hooks of %s: %v", id, err)
	}
	o.discardInstance(ctx, id)
}

// discardInstance deletes the permissions and the record of id.
func (o *Orchestrator) discardInstance(ctx context.Context, id string) {
	o.deletePermissions(ctx, id)
	if err := o.records.Delete(ctx, id); err != nil {
		logging.Warn("Orchestrator", "Could not delete the record of %s: %v", id, err)
	}
}

// deletePermissions removes every permission of id. Failures are logged.
func (o *Orchestrator) deletePermissions(ctx context.Context, id string) {
	perms, err := o.permissions.List(ctx, id)
	if err != nil {
		logging.Warn("Orchestrator", "Could not list permissions of %s: %v", id, err)
		return
	}
	for name := range perms {
		if err := o.permissions.Delete(ctx, name); err != nil && !errors.Is(err, api.ErrPermissionNotFound) {
			logging.Warn("Orchestrator", "Could not delete permission %s: %v", name, err)
		}
	}
}

// confirmQuality asks before installing anything the catalog does not
// fully vouch for.
func (o *Orchestrator) confirmQuality(ctx context.Context, q catalog.Quality) error {
	if !q.NeedsConfirmation() {
		return nil
	}
	answers := "Yes, I understand"
	if q == catalog.QualityWarning {
		answers = "y/N"
	}
	prompt := o.msg.N("confirm_app_install_"+string(q), messages.Args{"answers": answers})
	if o.confirm == nil {
		return api.NewValidationError(api.KeyInstallAborted, "%s (use --force to skip this check)", prompt)
	}
	ok, err := o.confirm(ctx, prompt)
	if err != nil {
		return err
	}
	if !ok {
		return api.NewValidationError(api.KeyInstallAborted, "installation aborted")
	}
	return nil
}

// guessRequirement reads the install script to tell how the app uses its
// web location.
func (o *Orchestrator) guessRequirement(questions []manifest.Question, installScript string) webpath.Requirement {
	script, err := os.ReadFile(installScript)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		logging.Warn("Orchestrator", "Could not read %s: %v", installScript, err)
	}
	return webpath.GuessRequirement(
		manifest.CountQuestions(questions, manifest.TypeDomain),
		manifest.CountQuestions(questions, manifest.TypePath),
		script,
	)
}

// answerLocation returns the domain and path answers, if any.
func answerLocation(questions []manifest.Question, answers manifest.Answers) (string, string) {
	var domain, path string
	for _, q := range questions {
		v, ok := answers.Get(q.Name)
		if !ok {
			continue
		}
		switch q.Type {
		case manifest.TypeDomain:
			if domain == "" {
				domain = v
			}
		case manifest.TypePath:
			if path == "" {
				path = v
			}
		}
	}
	return domain, path
}

// callback fires a post_app_* event. Hook failures are logged.
func (o *Orchestrator) callback(ctx context.Context, event string, env map[string]string) {
	if _, err := o.hooks.Callback(context.WithoutCancel(ctx), event, nil, env); err != nil {
		logging.Warn("Orchestrator", "Could not run %s hooks: %v", event, err)
	}
}

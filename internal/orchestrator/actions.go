package orchestrator

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"appkeeper/internal/api"
	"appkeeper/internal/manifest"
	"appkeeper/internal/messages"
	"appkeeper/internal/webpath"
	"appkeeper/pkg/logging"
)

// EnvAction names the running action; its answers use EnvActionArgPrefix.
const (
	EnvAction          = "YNH_ACTION"
	EnvActionArgPrefix = "YNH_ACTION_"
)

// actionScript is the file an action's command is written to.
const actionScript = "action.sh"

// ActionList is what an app lets the operator trigger.
type ActionList struct {
	App     string            `json:"app"`
	AppName string            `json:"app_name"`
	Actions []manifest.Action `json:"actions"`
}

// ListActions returns the actions declared by the stored package of id.
func (o *Orchestrator) ListActions(ctx context.Context, id string) (*ActionList, error) {
	logging.Warn("Orchestrator", "%s", o.msg.N("experimental_feature", nil))

	info, err := o.Info(ctx, id, false)
	if err != nil {
		return nil, err
	}
	actions, err := manifest.LoadActions(o.records.Dir(id))
	if err != nil {
		return nil, err
	}
	if actions == nil {
		actions = []manifest.Action{}
	}
	return &ActionList{App: id, AppName: info.Name, Actions: actions}, nil
}

// RunAction runs one declared action of id from a scratch copy of its
// package. The exit code must be one the action accepts.
func (o *Orchestrator) RunAction(ctx context.Context, id, name string, args map[string]string) (err error) {
	list, err := o.ListActions(ctx, id)
	if err != nil {
		return err
	}
	var action *manifest.Action
	available := make([]string, 0, len(list.Actions))
	for i := range list.Actions {
		available = append(available, list.Actions[i].ID)
		if list.Actions[i].ID == name {
			action = &list.Actions[i]
		}
	}
	if action == nil {
		return api.NewValidationError(api.KeyActionUnavailable, "%s",
			o.msg.N("app_action_not_available", messages.Args{"action": name, "app": id, "actions": available}))
	}
	answers, err := manifest.AnswerQuestions(action.Arguments, args)
	if err != nil {
		return err
	}

	unlock, err := o.lock(id)
	if err != nil {
		return err
	}
	defer unlock()

	op := o.journal.Start("app_action_run", id)
	defer op.Close(&err)

	wd, err := o.workdirs.AllocateFrom(o.records.Dir(id))
	if err != nil {
		return err
	}
	defer wd.Release()

	env, _ := scriptEnv(id, o.installedManifest(id), nil, wd.Path())
	var secrets []string
	for _, a := range answers {
		key := EnvActionArgPrefix + strings.ToUpper(a.Name)
		env[key] = a.Value
		if a.Redacted() {
			secrets = append(secrets, key)
		}
	}
	env[EnvAction] = name
	op.SetEnv(env, secrets...)

	script := filepath.Join(wd.Path(), actionScript)
	if err := os.WriteFile(script, []byte(action.Command), 0700); err != nil {
		return fmt.Errorf("failed to write the command of action %s: %w", name, err)
	}
	dir := wd.Path()
	if action.Cwd != "" {
		dir = strings.ReplaceAll(action.Cwd, "$app", id)
	}

	res, runErr := o.runner.Run(ctx, api.ScriptRequest{
		Path:           script,
		Env:            env,
		Dir:            dir,
		User:           action.User,
		DebugOnFailure: true,
	})
	if runErr != nil {
		return &api.ExecutionError{
			Operation:   "action " + name,
			App:         id,
			ExitCode:    res.ExitCode,
			Interrupted: ctx.Err() != nil,
			Debug:       res.Debug,
			Err:         runErr,
		}
	}
	if !action.Accepts(res.ExitCode) {
		logging.Error("Orchestrator", nil, "%s", o.msg.N("app_action_failed", messages.Args{"action": name, "app": id, "code": res.ExitCode}))
		return &api.ExecutionError{
			Operation: "action " + name,
			App:       id,
			ExitCode:  res.ExitCode,
			Debug:     res.Debug,
		}
	}

	logging.Success("Orchestrator", "%s", o.msg.N("app_action_succeeded", messages.Args{"action": name, "app": id}))
	op.Succeed()
	return nil
}

// MakeDefault redirects the root of domain, or of the app's own domain when
// domain is empty, to the location of id. The redirect is persistent.
func (o *Orchestrator) MakeDefault(ctx context.Context, id, domain string) (err error) {
	rec, err := o.records.Get(ctx, id)
	if err != nil {
		return err
	}
	if !rec.IsWebApp() {
		return api.NewValidationError(api.KeyAppNoLocation, "%s", o.msg.N("app_no_location", messages.Args{"app": id}))
	}
	if domain == "" {
		domain = rec.Domain
	}
	domain = webpath.NormalizeDomain(domain)
	if err := o.resolver.AssertDomainExists(ctx, domain); err != nil {
		return err
	}

	reg, err := o.locations(ctx)
	if err != nil {
		return err
	}
	if other, ok := reg[domain]["/"]; ok {
		return api.NewValidationError(api.KeyDefaultLocationUsed, "%s", o.msg.N("app_make_default_location_already_used",
			messages.Args{"app": id, "domain": domain, "other_app": other.ID}))
	}

	op := o.journal.Start("app_makedefault", id)
	defer op.Close(&err)

	if err := o.proxy.PersistRedirect(ctx, domain+"/", rec.Domain+rec.Path); err != nil {
		return err
	}
	o.refreshProxy(ctx)
	logging.Success("Orchestrator", "%s", o.msg.N("ssowat_conf_updated", nil))
	op.Succeed()
	return nil
}

// ChangeLabel renames the main permission of id, which is what the user
// portal shows.
func (o *Orchestrator) ChangeLabel(ctx context.Context, id, label string) error {
	if err := o.assertInstalled(ctx, id); err != nil {
		return err
	}
	logging.Warn("Orchestrator", "%s", o.msg.N("app_label_deprecated", nil))

	perm, err := o.permissions.Get(ctx, id+".main")
	if err != nil {
		return err
	}
	perm.Label = label
	if err := o.permissions.Update(ctx, perm); err != nil {
		return err
	}
	o.refreshProxy(ctx)
	return nil
}

package orchestrator

import (
	"context"
	"strconv"
	"strings"

	"appkeeper/internal/api"
	"appkeeper/internal/instance"
	"appkeeper/internal/manifest"
	"appkeeper/internal/messages"
	"appkeeper/pkg/logging"
)

// Script environment variables.
const (
	EnvAppID            = "YNH_APP_ID"
	EnvInstanceName     = "YNH_APP_INSTANCE_NAME"
	EnvInstanceNumber   = "YNH_APP_INSTANCE_NUMBER"
	EnvManifestVersion  = "YNH_APP_MANIFEST_VERSION"
	EnvBaseDir          = "YNH_APP_BASEDIR"
	EnvArgPrefix        = "YNH_APP_ARG_"
	EnvUpgradeType      = "YNH_APP_UPGRADE_TYPE"
	EnvCurrentVersion   = "YNH_APP_CURRENT_VERSION"
	EnvNoBackupUpgrade  = "NO_BACKUP_UPGRADE"
	EnvPurge            = "YNH_APP_PURGE"
	EnvOldDomain        = "YNH_APP_OLD_DOMAIN"
	EnvOldPath          = "YNH_APP_OLD_PATH"
	EnvNewDomain        = "YNH_APP_NEW_DOMAIN"
	EnvNewPath          = "YNH_APP_NEW_PATH"
	unknownVersionValue = "?"
)

// scriptEnv builds the environment every lifecycle script receives. It
// also returns the keys holding secrets, to keep them out of the journal.
func scriptEnv(instanceID string, m *manifest.Manifest, answers manifest.Answers, baseDir string) (map[string]string, []string) {
	appID, number, err := instance.Parse(instanceID)
	if err != nil {
		appID, number = instanceID, 1
	}
	version := unknownVersionValue
	if m != nil && m.Version != "" {
		version = m.Version
	}
	env := map[string]string{
		EnvAppID:           appID,
		EnvInstanceName:    instanceID,
		EnvInstanceNumber:  strconv.Itoa(number),
		EnvManifestVersion: version,
		EnvBaseDir:         baseDir,
	}
	var secrets []string
	for _, a := range answers {
		key := EnvArgPrefix + strings.ToUpper(a.Name)
		env[key] = a.Value
		if a.Redacted() {
			secrets = append(secrets, key)
		}
	}
	return env, secrets
}

// scriptRun describes one lifecycle script invocation.
type scriptRun struct {
	operation string
	app       string
	path      string
	args      []string
	env       map[string]string
	dir       string

	// services are the manifest's declared services; postCheck runs the
	// post health check on them once the script returned.
	services  []string
	postCheck bool
}

// runScript executes s between two drift snapshots. A nonzero exit or an
// interruption becomes an *api.ExecutionError. The post health check and
// the drift check run whatever the script outcome; when both the script
// and the health check fail, the script failure is returned.
func (o *Orchestrator) runScript(ctx context.Context, s scriptRun) error {
	session := o.beginDrift(s.app)

	logging.Debug("Orchestrator", "Running %s script of %s", s.operation, s.app)
	res, runErr := o.runner.Run(ctx, api.ScriptRequest{
		Path:           s.path,
		Env:            s.env,
		Args:           s.args,
		Dir:            s.dir,
		DebugOnFailure: true,
	})

	var scriptErr error
	switch {
	case runErr != nil:
		scriptErr = &api.ExecutionError{
			Operation:   s.operation,
			App:         s.app,
			ExitCode:    res.ExitCode,
			Interrupted: ctx.Err() != nil,
			Debug:       res.Debug,
			Err:         runErr,
		}
	case res.ExitCode != 0:
		scriptErr = &api.ExecutionError{
			Operation: s.operation,
			App:       s.app,
			ExitCode:  res.ExitCode,
			Debug:     res.Debug,
		}
	}

	cleanupCtx := context.WithoutCancel(ctx)
	var healthErr error
	if s.postCheck && o.health != nil {
		healthErr = o.health.AssertSane(cleanupCtx, s.services, api.PhasePost)
	}
	o.endDrift(session, s.app)

	if scriptErr != nil {
		if healthErr != nil {
			logging.Error("Orchestrator", healthErr, "The %s of %s also broke the system", s.operation, s.app)
		}
		return scriptErr
	}
	return healthErr
}

// driftSession is the part of a drift session the orchestrator uses.
type driftSession interface {
	End() ([]string, error)
}

func (o *Orchestrator) beginDrift(app string) driftSession {
	if o.drift == nil {
		return nil
	}
	session, err := o.drift.Begin(o.records.Dir(app))
	if err != nil {
		logging.Warn("Orchestrator", "Configuration drift detection unavailable: %v", err)
		return nil
	}
	return session
}

// endDrift logs files changed outside the app's own footprint. It never
// fails the operation.
func (o *Orchestrator) endDrift(session driftSession, app string) {
	if session == nil {
		return
	}
	files, err := session.End()
	if err != nil {
		logging.Warn("Orchestrator", "Configuration drift detection failed: %v", err)
		return
	}
	if len(files) > 0 {
		logging.Warn("Orchestrator", "%s", o.msg.N("config_drift_detected", messages.Args{"app": app, "files": files}))
	}
}

// preCheck runs the pre-operation health check.
func (o *Orchestrator) preCheck(ctx context.Context, m *manifest.Manifest) error {
	if o.health == nil {
		return nil
	}
	return o.health.AssertSane(ctx, m.Services, api.PhasePre)
}

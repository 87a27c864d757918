package orchestrator

import (
	"context"
	"fmt"
	"time"

	"appkeeper/internal/api"
	"appkeeper/internal/catalog"
	"appkeeper/internal/drift"
	"appkeeper/internal/fetcher"
	"appkeeper/internal/messages"
	"appkeeper/internal/oplog"
	"appkeeper/internal/records"
	"appkeeper/internal/webpath"
	"appkeeper/internal/workdir"
	"appkeeper/pkg/logging"

	"golang.org/x/sys/unix"
)

// PackageFetcher resolves a source descriptor (catalog id, git url, local
// folder or archive) into a package tree. The caller releases the package.
type PackageFetcher interface {
	Fetch(ctx context.Context, source string) (*fetcher.Package, error)
}

// HookRegistry keeps the hooks shipped by apps.
type HookRegistry interface {
	AddDir(owner, dir string) error
	Remove(owner string) error
	Callback(ctx context.Context, event string, args []string, env map[string]string) (int, error)
}

// RecordStore is the record repository plus the package files kept with
// each record.
type RecordStore interface {
	records.Repository
	InstallFiles(id, src string) error
	ReplaceFiles(id, src string) error
	ScriptPath(id, script string) string
	HasScript(id, script string) bool
	Restrict(id string) error
}

// ServiceReloader reloads a system service, e.g. the web server after a
// location moved.
type ServiceReloader interface {
	ReloadOrRestart(ctx context.Context, service string) error
}

// Confirmer asks the operator a yes/no question.
type Confirmer func(ctx context.Context, prompt string) (bool, error)

// Config holds the orchestrator collaborators.
type Config struct {
	Records     RecordStore
	Locker      *records.Locker
	Fetcher     PackageFetcher
	Runner      api.ScriptRunner
	Health      api.HealthChecker
	Permissions api.PermissionDirectory
	Proxy       api.ProxyConfigPublisher
	Domains     api.DomainRegistry
	Hooks       HookRegistry
	Journal     *oplog.Journal
	Workdirs    *workdir.Manager

	// Optional
	Drift    *drift.Detector
	Catalog  *catalog.Catalog
	Messages *messages.Catalog
	Confirm  Confirmer
	Services ServiceReloader

	// Packages are the installed support package versions requirements
	// are checked against.
	Packages map[string]string

	// MinFreeSpace is the space install and upgrade need on FreeSpacePath.
	MinFreeSpace  uint64
	FreeSpacePath string
}

// Orchestrator runs lifecycle operations.
type Orchestrator struct {
	records     RecordStore
	locker      *records.Locker
	fetcher     PackageFetcher
	runner      api.ScriptRunner
	health      api.HealthChecker
	permissions api.PermissionDirectory
	proxy       api.ProxyConfigPublisher
	domains     api.DomainRegistry
	hooks       HookRegistry
	journal     *oplog.Journal
	workdirs    *workdir.Manager
	drift       *drift.Detector
	catalog     *catalog.Catalog
	msg         *messages.Catalog
	confirm     Confirmer
	services    ServiceReloader
	packages    map[string]string
	resolver    *webpath.Resolver

	minFreeSpace  uint64
	freeSpacePath string
	freeSpace     func(path string) (uint64, error)
	now           func() time.Time
}

// New creates an orchestrator.
func New(cfg Config) *Orchestrator {
	o := &Orchestrator{
		records:       cfg.Records,
		locker:        cfg.Locker,
		fetcher:       cfg.Fetcher,
		runner:        cfg.Runner,
		health:        cfg.Health,
		permissions:   cfg.Permissions,
		proxy:         cfg.Proxy,
		domains:       cfg.Domains,
		hooks:         cfg.Hooks,
		journal:       cfg.Journal,
		workdirs:      cfg.Workdirs,
		drift:         cfg.Drift,
		catalog:       cfg.Catalog,
		msg:           cfg.Messages,
		confirm:       cfg.Confirm,
		services:      cfg.Services,
		packages:      cfg.Packages,
		minFreeSpace:  cfg.MinFreeSpace,
		freeSpacePath: cfg.FreeSpacePath,
		freeSpace:     statfsFree,
		now:           time.Now,
	}
	if o.msg == nil {
		o.msg = messages.New(messages.DefaultLocale)
	}
	if o.freeSpacePath == "" {
		o.freeSpacePath = "/"
	}
	o.resolver = webpath.NewResolver(cfg.Domains, o.locations)
	return o
}

// lock takes the advisory lock of every id. Without a locker it is a no-op.
func (o *Orchestrator) lock(ids ...string) (func(), error) {
	if o.locker == nil {
		return func() {}, nil
	}
	return o.locker.TryLockAll(ids...)
}

// locations is the registry of web locations of every installed app.
func (o *Orchestrator) locations(ctx context.Context) (webpath.Registry, error) {
	reg, _, err := o.buildMap(ctx, nil, nil)
	return reg, err
}

func (o *Orchestrator) assertFreeSpace(key string) error {
	if o.minFreeSpace == 0 {
		return nil
	}
	free, err := o.freeSpace(o.freeSpacePath)
	if err != nil {
		logging.Warn("Orchestrator", "Could not check free space on %s: %v", o.freeSpacePath, err)
		return nil
	}
	if free <= o.minFreeSpace {
		return api.NewValidationError(api.KeyDiskSpaceInsufficient, "%s", o.msg.N(key, nil))
	}
	return nil
}

func statfsFree(path string) (uint64, error) {
	var st unix.Statfs_t
	if err := unix.Statfs(path, &st); err != nil {
		return 0, fmt.Errorf("statfs %s: %w", path, err)
	}
	return st.Bavail * uint64(st.Bsize), nil
}

// isInstalled reports whether id has a record.
func (o *Orchestrator) isInstalled(ctx context.Context, id string) (bool, error) {
	return o.records.Exists(ctx, id)
}

// assertInstalled fails with app_not_installed for an unknown id.
func (o *Orchestrator) assertInstalled(ctx context.Context, id string) error {
	ok, err := o.isInstalled(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		installed, _ := o.records.List(ctx)
		return api.NewNotInstalledError(id, installed)
	}
	return nil
}

// refreshProxy regenerates the SSO configuration; failures are logged.
func (o *Orchestrator) refreshProxy(ctx context.Context) {
	if o.proxy == nil {
		return
	}
	if err := o.SSOwatConf(ctx); err != nil {
		logging.Error("Orchestrator", err, "Failed to regenerate the SSO configuration")
	}
}

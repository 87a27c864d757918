package orchestrator

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"appkeeper/internal/api"
	"appkeeper/internal/catalog"
	"appkeeper/internal/instance"
	"appkeeper/internal/manifest"
	"appkeeper/internal/records"
	"appkeeper/internal/version"
	"appkeeper/internal/webpath"
	"appkeeper/pkg/logging"
)

// AppInfo describes an installed instance. The fields of the embedded
// details are only filled by a full Info.
type AppInfo struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Version     string `json:"version"`
	DomainPath  string `json:"domain_path,omitempty"`

	*AppDetails
}

// AppDetails is the part of AppInfo only a full Info reports.
type AppDetails struct {
	SettingPath           string                    `json:"setting_path"`
	Manifest              *manifest.Manifest        `json:"manifest"`
	Settings              map[string]interface{}    `json:"settings"`
	FromCatalog           *catalog.Entry            `json:"from_catalog,omitempty"`
	Upgradable            version.Upgradability     `json:"upgradable"`
	IsWebApp              bool                      `json:"is_webapp"`
	SupportsChangeURL     bool                      `json:"supports_change_url"`
	SupportsBackupRestore bool                      `json:"supports_backup_restore"`
	SupportsMultiInstance bool                      `json:"supports_multi_instance"`
	SupportsConfigPanel   bool                      `json:"supports_config_panel"`
	Permissions           map[string]api.Permission `json:"permissions"`
	Label                 string                    `json:"label"`
}

// List returns the info of every installed instance, sorted by id. An
// instance whose info cannot be read is logged and skipped.
func (o *Orchestrator) List(ctx context.Context, full bool) ([]AppInfo, error) {
	ids, err := o.records.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]AppInfo, 0, len(ids))
	for _, id := range ids {
		info, err := o.Info(ctx, id, full)
		if err != nil {
			logging.Error("Orchestrator", err, "Failed to read info for %s", id)
			continue
		}
		out = append(out, *info)
	}
	return out, nil
}

// Info describes one installed instance.
func (o *Orchestrator) Info(ctx context.Context, id string, full bool) (*AppInfo, error) {
	rec, err := o.records.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	m := o.installedManifest(id)
	perms, err := o.permissions.List(ctx, id)
	if err != nil {
		return nil, err
	}

	info := &AppInfo{
		ID:          id,
		Name:        m.Name,
		Description: m.Description.In(o.msg.Locale()),
		Version:     m.Version,
	}
	main, hasMain := perms[id+".main"]
	if hasMain {
		info.Name = main.Label
	}
	if info.Version == "" {
		info.Version = "-"
	}
	if rec.IsWebApp() {
		info.DomainPath = rec.Domain + rec.Path
	}
	if !full {
		return info, nil
	}

	dir := o.records.Dir(id)
	d := &AppDetails{
		SettingPath:           dir,
		Manifest:              m,
		Settings:              rec.Settings(),
		Upgradable:            o.upgradability(rec, m),
		IsWebApp:              rec.IsWebApp(),
		SupportsChangeURL:     o.records.HasScript(id, manifest.ScriptChangeURL),
		SupportsBackupRestore: o.records.HasScript(id, manifest.ScriptBackup) && o.records.HasScript(id, manifest.ScriptRestore),
		SupportsMultiInstance: m.MultiInstance,
		SupportsConfigPanel:   fileExists(filepath.Join(dir, "config_panel.toml")),
		Permissions:           perms,
	}
	if o.catalog != nil {
		appID, _, perr := instance.Parse(id)
		if perr != nil {
			appID = m.ID
		}
		if entry, ok := o.catalog.Get(appID); ok {
			d.FromCatalog = entry
		}
	}
	if hasMain {
		d.Label = main.Label
	}
	if d.Label == "" {
		logging.Warn("Orchestrator", "Failed to get label for app %s", id)
	}
	info.AppDetails = d
	return info, nil
}

// MapRequest narrows Map.
type MapRequest struct {
	// App limits the map to one instance.
	App string
	// User keeps the locations this user may access.
	User string
}

// Map returns the web locations of the installed apps, both as a
// domain -> path -> occupant registry and flattened to "domain/path" -> label.
func (o *Orchestrator) Map(ctx context.Context, req MapRequest) (webpath.Registry, webpath.Flat, error) {
	var apps []string
	if req.App != "" {
		if err := o.assertInstalled(ctx, req.App); err != nil {
			return nil, nil, err
		}
		apps = []string{req.App}
	}
	var filter webpath.PermissionFilter
	if req.User != "" {
		user := req.User
		filter = func(p api.Permission) bool {
			return p.Allows(user) || p.Allows(api.PrincipalAllUsers)
		}
	}
	return o.buildMap(ctx, apps, filter)
}

// buildMap maps the web apps among apps, or among every installed instance
// when apps is empty.
func (o *Orchestrator) buildMap(ctx context.Context, apps []string, filter webpath.PermissionFilter) (webpath.Registry, webpath.Flat, error) {
	if len(apps) == 0 {
		ids, err := o.records.List(ctx)
		if err != nil {
			return nil, nil, err
		}
		apps = ids
	}

	var web []string
	for _, id := range apps {
		rec, err := o.records.Get(ctx, id)
		if err != nil {
			logging.Warn("Orchestrator", "Skipping %s in the url map: %v", id, err)
			continue
		}
		if !rec.IsWebApp() || rec.Has(records.KeyNoSSO) {
			continue
		}
		web = append(web, id)
	}
	if len(web) == 0 {
		return webpath.Registry{}, webpath.Flat{}, nil
	}

	perms, err := o.permissions.List(ctx, web...)
	if err != nil {
		return nil, nil, err
	}
	if filter != nil {
		for _, id := range web {
			if _, ok := perms[id+".main"]; !ok {
				logging.Warn("Orchestrator", "No main permission found for %s, it may have been partially removed", id)
			}
		}
	}
	reg, flat := webpath.BuildMap(web, perms, filter)
	return reg, flat, nil
}

// SSOwatConf regenerates the SSO gateway configuration from the domains,
// the redirects of every record and every permission with urls.
func (o *Orchestrator) SSOwatConf(ctx context.Context) error {
	mainDomain, err := o.domains.MainDomain(ctx)
	if err != nil {
		return err
	}
	domains, err := o.domains.Domains(ctx)
	if err != nil {
		return err
	}

	view := api.ProxyView{
		MainDomain:      mainDomain,
		Domains:         domains,
		Permissions:     map[string]api.Permission{},
		RedirectedURLs:  map[string]string{},
		RedirectedRegex: map[string]string{},
	}

	ids, err := o.records.List(ctx)
	if err != nil {
		return err
	}
	for _, id := range ids {
		rec, err := o.records.Get(ctx, id)
		if err != nil {
			logging.Warn("Orchestrator", "Skipping redirects of %s: %v", id, err)
			continue
		}
		for k, v := range rec.StringMap(records.KeyRedirectedURLs) {
			view.RedirectedURLs[k] = v
		}
		for k, v := range rec.StringMap(records.KeyRedirectedRegex) {
			view.RedirectedRegex[k] = v
		}
	}

	perms, err := o.permissions.List(ctx)
	if err != nil {
		return err
	}
	for name, perm := range perms {
		// Urls left relative belong to apps without a location yet.
		perm.URL = dropRelative(perm.URL)
		var additional []string
		for _, u := range perm.AdditionalURLs {
			if dropRelative(u) != "" {
				additional = append(additional, u)
			}
		}
		perm.AdditionalURLs = additional
		view.Permissions[name] = perm
	}

	if err := o.proxy.Publish(ctx, view); err != nil {
		return err
	}
	logging.Debug("Orchestrator", "SSO configuration generated")
	return nil
}

func dropRelative(url string) string {
	if strings.HasPrefix(url, "/") || strings.HasPrefix(url, "re:/") {
		return ""
	}
	return url
}

// Manifest resolves source and returns its manifest without installing it.
func (o *Orchestrator) Manifest(ctx context.Context, source string) (*manifest.Manifest, error) {
	pkg, err := o.fetcher.Fetch(ctx, source)
	if err != nil {
		return nil, err
	}
	defer pkg.Release()
	return pkg.Manifest, nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// Package permission is a flat-file permission directory: one YAML
// document per permission under the data root.
package permission

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"appkeeper/internal/api"
	"appkeeper/internal/config"
	"appkeeper/pkg/logging"

	"gopkg.in/yaml.v3"
)

const kind = "permissions"

// ErrNotFound is returned for an unknown permission.
var ErrNotFound = api.ErrPermissionNotFound

// ErrExists is returned when creating a permission that already exists.
var ErrExists = errors.New("permission already exists")

// BaseURL returns "domain/path" of an installed instance, or false when
// the instance has no web location.
type BaseURL func(ctx context.Context, app string) (string, bool)

// Directory is the default api.PermissionDirectory.
type Directory struct {
	storage *config.Storage
	baseURL BaseURL
}

var _ api.PermissionDirectory = (*Directory)(nil)

// NewDirectory stores permissions in storage. baseURL resolves relative
// urls when listing; it may be nil.
func NewDirectory(storage *config.Storage, baseURL BaseURL) *Directory {
	return &Directory{storage: storage, baseURL: baseURL}
}

func (d *Directory) load(name string) (api.Permission, error) {
	data, err := d.storage.Load(kind, name)
	if err != nil {
		if errors.Is(err, config.ErrNotFound) {
			return api.Permission{}, fmt.Errorf("%s: %w", name, ErrNotFound)
		}
		return api.Permission{}, err
	}
	var p api.Permission
	if err := yaml.Unmarshal(data, &p); err != nil {
		return api.Permission{}, fmt.Errorf("failed to decode permission %s: %w", name, err)
	}
	p.Name = name
	return p, nil
}

func (d *Directory) save(p api.Permission) error {
	data, err := yaml.Marshal(&p)
	if err != nil {
		return fmt.Errorf("failed to encode permission %s: %w", p.Name, err)
	}
	return d.storage.Save(kind, p.Name, data)
}

func (d *Directory) Create(_ context.Context, perm api.Permission) error {
	if !strings.Contains(perm.Name, ".") {
		return fmt.Errorf("permission name %q must look like app.name", perm.Name)
	}
	if _, err := d.load(perm.Name); err == nil {
		return fmt.Errorf("%s: %w", perm.Name, ErrExists)
	} else if !errors.Is(err, ErrNotFound) {
		return err
	}
	if err := d.save(perm); err != nil {
		return err
	}
	logging.Debug("Permission", "Created permission %s", perm.Name)
	return nil
}

func (d *Directory) Update(_ context.Context, perm api.Permission) error {
	if _, err := d.load(perm.Name); err != nil {
		return err
	}
	if err := d.save(perm); err != nil {
		return err
	}
	logging.Debug("Permission", "Updated permission %s", perm.Name)
	return nil
}

func (d *Directory) Delete(_ context.Context, name string) error {
	if err := d.storage.Delete(kind, name); err != nil {
		if errors.Is(err, config.ErrNotFound) {
			return fmt.Errorf("%s: %w", name, ErrNotFound)
		}
		return err
	}
	logging.Debug("Permission", "Deleted permission %s", name)
	return nil
}

// Get returns one permission with its stored, possibly relative, urls.
func (d *Directory) Get(_ context.Context, name string) (api.Permission, error) {
	return d.load(name)
}

func (d *Directory) List(ctx context.Context, apps ...string) (map[string]api.Permission, error) {
	names, err := d.storage.List(kind)
	if err != nil {
		return nil, err
	}
	wanted := make(map[string]bool, len(apps))
	for _, a := range apps {
		wanted[a] = true
	}

	perms := make(map[string]api.Permission, len(names))
	for _, name := range names {
		p, err := d.load(name)
		if err != nil {
			return nil, err
		}
		if len(wanted) > 0 && !wanted[p.App()] {
			continue
		}
		if d.baseURL != nil {
			if base, ok := d.baseURL(ctx, p.App()); ok {
				p.URL = AbsoluteURL(p.URL, base)
				for i, u := range p.AdditionalURLs {
					p.AdditionalURLs[i] = AbsoluteURL(u, base)
				}
			}
		}
		perms[name] = p
	}
	return perms, nil
}

// AbsoluteURL resolves a url relative to the app's "domain/path" base.
// "/" becomes the base itself, "/admin" base+"/admin", and "re:/x" a regex
// anchored on the escaped base. Absolute urls are returned as-is.
func AbsoluteURL(url, base string) string {
	base = strings.TrimRight(base, "/")
	switch {
	case url == "":
		return ""
	case strings.HasPrefix(url, "/"):
		return base + strings.TrimRight(url, "/")
	case strings.HasPrefix(url, "re:/"):
		return "re:" + strings.ReplaceAll(base, ".", `\.`) + url[len("re:"):]
	default:
		return url
	}
}

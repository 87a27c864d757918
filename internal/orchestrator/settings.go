package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"appkeeper/internal/api"
	"appkeeper/internal/records"
	"appkeeper/internal/webpath"

	"gopkg.in/yaml.v3"
)

// GetSetting returns the value of key for id. Legacy url keys read the
// urls of the permission backing them, comma separated.
func (o *Orchestrator) GetSetting(ctx context.Context, id, key string) (interface{}, bool, error) {
	switch k := records.ParseSettingKey(key).(type) {
	case records.LegacySetting:
		if err := o.assertInstalled(ctx, id); err != nil {
			return nil, false, err
		}
		perm, err := o.permissions.Get(ctx, k.PermissionName(id))
		if errors.Is(err, api.ErrPermissionNotFound) {
			return nil, false, nil
		}
		if err != nil {
			return nil, false, err
		}
		return strings.Join(perm.URLs(), ","), true, nil
	default:
		rec, err := o.records.Get(ctx, id)
		if err != nil {
			return nil, false, err
		}
		v, ok := rec.Get(key)
		return v, ok, nil
	}
}

// SetSetting stores value under key for id.
func (o *Orchestrator) SetSetting(ctx context.Context, id, key, value string) error {
	switch k := records.ParseSettingKey(key).(type) {
	case records.LegacySetting:
		if err := o.assertInstalled(ctx, id); err != nil {
			return err
		}
		if err := o.setLegacy(ctx, id, k, value); err != nil {
			return err
		}
		o.refreshProxy(ctx)
		return nil
	default:
		rec, err := o.records.Get(ctx, id)
		if err != nil {
			return err
		}
		var v interface{} = value
		if key == records.KeyRedirectedURLs || key == records.KeyRedirectedRegex {
			var parsed interface{}
			if err := yaml.Unmarshal([]byte(value), &parsed); err != nil {
				return api.NewValidationError(api.KeyArgumentInvalid, "invalid value for %s: %v", key, err)
			}
			v = parsed
		}
		if err := rec.Set(key, v); err != nil {
			return api.NewValidationError(api.KeyArgumentInvalid, "%v", err)
		}
		return o.records.Put(ctx, rec)
	}
}

// DeleteSetting removes key for id. Deleting an absent key is a no-op.
func (o *Orchestrator) DeleteSetting(ctx context.Context, id, key string) error {
	switch k := records.ParseSettingKey(key).(type) {
	case records.LegacySetting:
		if err := o.deleteLegacy(ctx, id, k); err != nil {
			return err
		}
		o.refreshProxy(ctx)
		return nil
	default:
		rec, err := o.records.Get(ctx, id)
		if err != nil {
			return err
		}
		if !rec.Has(key) {
			return nil
		}
		if err := rec.Delete(key); err != nil {
			return api.NewValidationError(api.KeyArgumentInvalid, "%v", err)
		}
		return o.records.Put(ctx, rec)
	}
}

// setLegacy maps an old-style url setting onto permissions. "/" toggles
// visitors on the main permission; anything else replaces the urls of the
// dedicated legacy permission, keeping those of the other flavour.
func (o *Orchestrator) setLegacy(ctx context.Context, id string, k records.LegacySetting, value string) error {
	if value == "/" {
		main, err := o.permissions.Get(ctx, id+".main")
		if err != nil {
			return fmt.Errorf("failed to read the main permission of %s: %w", id, err)
		}
		if k.OpensToVisitors() {
			main.URL = "/"
			main.Allowed = addPrincipal(main.Allowed, api.PrincipalVisitors)
		} else {
			main.Allowed = removePrincipal(main.Allowed, api.PrincipalVisitors)
		}
		return o.permissions.Update(ctx, main)
	}

	urls := strings.Split(value, ",")
	if k.Regex {
		for i, u := range urls {
			urls[i] = "re:" + u
		}
	}

	name := k.PermissionName(id)
	perm, err := o.permissions.Get(ctx, name)
	switch {
	case errors.Is(err, api.ErrPermissionNotFound):
		return o.permissions.Create(ctx, api.Permission{
			Name:           name,
			Label:          k.Label(id),
			Allowed:        k.DefaultAllowed(),
			AdditionalURLs: urls,
			AuthHeader:     k.AuthHeader(),
			Protected:      true,
		})
	case err != nil:
		return err
	}

	for _, u := range perm.AdditionalURLs {
		if strings.HasPrefix(u, "re:") != k.Regex {
			urls = append(urls, u)
		}
	}
	perm.URL = ""
	perm.AdditionalURLs = urls
	return o.permissions.Update(ctx, perm)
}

// deleteLegacy drops the legacy permission. An app still carrying is_public
// deleting its unprotected or skipped urls is made private.
func (o *Orchestrator) deleteLegacy(ctx context.Context, id string, k records.LegacySetting) error {
	rec, err := o.records.Get(ctx, id)
	if err != nil {
		return err
	}
	if rec.Has(records.KeyIsPublic) && k.OpensToVisitors() {
		main, err := o.permissions.Get(ctx, id+".main")
		if err == nil && main.Allows(api.PrincipalVisitors) {
			main.Allowed = removePrincipal(main.Allowed, api.PrincipalVisitors)
			if err := o.permissions.Update(ctx, main); err != nil {
				return err
			}
		}
	}
	err = o.permissions.Delete(ctx, k.PermissionName(id))
	if err != nil && !errors.Is(err, api.ErrPermissionNotFound) {
		return err
	}
	return nil
}

// RegisterURL books domain+path for an app installed without a location.
func (o *Orchestrator) RegisterURL(ctx context.Context, id, domain, path string) error {
	domain = webpath.NormalizeDomain(domain)
	path = webpath.NormalizePath(path)

	rec, err := o.records.Get(ctx, id)
	if err != nil {
		return err
	}
	if rec.IsWebApp() {
		return api.NewValidationError(api.KeyURLAlreadyRegistered, "%s", o.msg.N("app_already_installed_cant_change_url", nil))
	}
	if err := o.resolver.AssertAvailable(ctx, domain, path, ""); err != nil {
		return err
	}
	if err := o.registerLocation(ctx, rec, domain, path); err != nil {
		return err
	}
	o.refreshProxy(ctx)
	return nil
}

// registerLocation stores the location in rec and points the main
// permission at the app root with a portal tile.
func (o *Orchestrator) registerLocation(ctx context.Context, rec *records.Record, domain, path string) error {
	rec.Domain = webpath.NormalizeDomain(domain)
	rec.Path = webpath.NormalizePath(path)
	if err := o.records.Put(ctx, rec); err != nil {
		return err
	}
	main, err := o.permissions.Get(ctx, rec.ID+".main")
	if err != nil {
		return fmt.Errorf("failed to read the main permission of %s: %w", rec.ID, err)
	}
	main.URL = "/"
	main.ShowTile = true
	return o.permissions.Update(ctx, main)
}

func addPrincipal(list []string, p string) []string {
	for _, a := range list {
		if a == p {
			return list
		}
	}
	return append(list, p)
}

func removePrincipal(list []string, p string) []string {
	out := make([]string, 0, len(list))
	for _, a := range list {
		if a != p {
			out = append(out, a)
		}
	}
	return out
}

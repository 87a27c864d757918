// Package ssowat renders the SSO gateway configuration from the current
// domains, permissions and redirects.
package ssowat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"appkeeper/internal/api"
	"appkeeper/internal/config"
	"appkeeper/pkg/logging"
)

// PortalPath is where the SSO portal is served on the main domain.
const PortalPath = "/yunohost/sso/"

// PermissionEntry is one permission as the gateway sees it.
type PermissionEntry struct {
	Users      []string `json:"users"`
	Label      string   `json:"label"`
	ShowTile   bool     `json:"show_tile"`
	AuthHeader bool     `json:"auth_header"`
	Public     bool     `json:"public"`
	URIs       []string `json:"uris"`
}

// Conf is the document written to disk.
type Conf struct {
	PortalDomain      string                     `json:"portal_domain"`
	PortalPath        string                     `json:"portal_path"`
	AdditionalHeaders map[string]string          `json:"additional_headers"`
	Domains           []string                   `json:"domains"`
	RedirectedURLs    map[string]string          `json:"redirected_urls"`
	RedirectedRegex   map[string]string          `json:"redirected_regex"`
	Permissions       map[string]PermissionEntry `json:"permissions"`
}

// Publisher writes Conf to a JSON file.
type Publisher struct {
	path string
}

var _ api.ProxyConfigPublisher = (*Publisher)(nil)

func NewPublisher(path string) *Publisher {
	return &Publisher{path: path}
}

// Publish renders view and replaces the configuration file atomically.
func (p *Publisher) Publish(ctx context.Context, view api.ProxyView) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	conf := Build(view)
	persistent, err := p.persistentRedirects()
	if err != nil {
		return err
	}
	for from, to := range persistent {
		conf.RedirectedURLs[from] = to
	}
	data, err := json.MarshalIndent(conf, "", "    ")
	if err != nil {
		return fmt.Errorf("failed to encode sso configuration: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(p.path), 0755); err != nil {
		return fmt.Errorf("failed to create %s: %w", filepath.Dir(p.path), err)
	}
	if err := config.WriteFileAtomic(p.path, append(data, '\n'), 0644); err != nil {
		return err
	}
	logging.Info("SSOwat", "Regenerated SSO configuration with %d permissions", len(conf.Permissions))
	return nil
}

// PersistentPath is the file holding the redirects kept across
// regenerations.
func (p *Publisher) PersistentPath() string {
	return p.path + ".persistent"
}

// PersistRedirect records a redirect from -> to in the persistent file.
// Other keys of that file are kept as they are.
func (p *Publisher) PersistRedirect(ctx context.Context, from, to string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	doc, err := p.readPersistent()
	if err != nil {
		return err
	}
	redirects, _ := doc["redirected_urls"].(map[string]interface{})
	if redirects == nil {
		redirects = map[string]interface{}{}
	}
	redirects[from] = to
	doc["redirected_urls"] = redirects

	data, err := json.MarshalIndent(doc, "", "    ")
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", p.PersistentPath(), err)
	}
	if err := os.MkdirAll(filepath.Dir(p.path), 0755); err != nil {
		return fmt.Errorf("failed to create %s: %w", filepath.Dir(p.path), err)
	}
	if err := config.WriteFileAtomic(p.PersistentPath(), append(data, '\n'), 0644); err != nil {
		return err
	}
	logging.Debug("SSOwat", "Persisted redirect %s -> %s", from, to)
	return nil
}

func (p *Publisher) readPersistent() (map[string]interface{}, error) {
	data, err := os.ReadFile(p.PersistentPath())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return map[string]interface{}{}, nil
		}
		return nil, fmt.Errorf("failed to read %s: %w", p.PersistentPath(), err)
	}
	doc := map[string]interface{}{}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", p.PersistentPath(), err)
	}
	return doc, nil
}

func (p *Publisher) persistentRedirects() (map[string]string, error) {
	doc, err := p.readPersistent()
	if err != nil {
		return nil, err
	}
	raw, _ := doc["redirected_urls"].(map[string]interface{})
	out := make(map[string]string, len(raw))
	for from, to := range raw {
		if s, ok := to.(string); ok {
			out[from] = s
		}
	}
	return out, nil
}

// Build turns a proxy view into the gateway document. The portal, API and
// well-known locations are always public.
func Build(view api.ProxyView) Conf {
	main := view.MainDomain
	domains := append([]string(nil), view.Domains...)
	sort.Strings(domains)

	conf := Conf{
		PortalDomain: main,
		PortalPath:   PortalPath,
		AdditionalHeaders: map[string]string{
			"Auth-User":   "uid",
			"Remote-User": "uid",
			"Name":        "cn",
			"Email":       "mail",
		},
		Domains:         domains,
		RedirectedURLs:  map[string]string{},
		RedirectedRegex: map[string]string{},
		Permissions:     map[string]PermissionEntry{},
	}

	for k, v := range view.RedirectedURLs {
		conf.RedirectedURLs[k] = v
	}
	for k, v := range view.RedirectedRegex {
		conf.RedirectedRegex[k] = v
	}
	conf.RedirectedRegex[main+`/yunohost[\/]?$`] = "https://" + main + PortalPath

	core := PermissionEntry{Users: []string{}, Label: "Core permissions", Public: true}
	for _, d := range domains {
		core.URIs = append(core.URIs, d+"/yunohost/admin", d+"/yunohost/api")
	}
	core.URIs = append(core.URIs,
		`re:^[^/]*/%.well%-known/ynh%-diagnosis/.*$`,
		`re:^[^/]*/%.well%-known/acme%-challenge/.*$`,
		`re:^[^/]*/%.well%-known/autoconfig/mail/config%-v1%.1%.xml.*$`,
	)
	conf.Permissions["core_skipped"] = core

	for name, perm := range view.Permissions {
		uris := perm.URLs()
		if len(uris) == 0 {
			continue
		}
		var users []string
		for _, a := range perm.Allowed {
			if a != api.PrincipalVisitors {
				users = append(users, a)
			}
		}
		if users == nil {
			users = []string{}
		}
		conf.Permissions[name] = PermissionEntry{
			Users:      users,
			Label:      perm.Label,
			ShowTile:   perm.ShowTile && perm.URL != "" && !strings.HasPrefix(perm.URL, "re:"),
			AuthHeader: perm.AuthHeader,
			Public:     perm.Allows(api.PrincipalVisitors),
			URIs:       uris,
		}
	}
	return conf
}

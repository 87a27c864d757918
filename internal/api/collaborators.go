package api

import (
	"context"
	"errors"
)

// Phase tells a health check whether it runs before or after a script.
type Phase string

const (
	PhasePre  Phase = "pre"
	PhasePost Phase = "post"
)

// HealthChecker verifies that the platform is in a state where lifecycle
// scripts may run (pre) or that a script did not break it (post).
//
// Implementations return *SystemHealthError when a service is not running
// or the package manager is broken.
type HealthChecker interface {
	AssertSane(ctx context.Context, services []string, phase Phase) error
}

// ScriptRequest describes one lifecycle script invocation.
type ScriptRequest struct {
	Path string
	Env  map[string]string
	Args []string

	// Dir is the working directory; empty means the script's directory.
	Dir string

	// User runs the script as another system user; empty keeps the current one.
	User string

	// DebugOnFailure asks the runner to capture extra context when the
	// script exits nonzero.
	DebugOnFailure bool
}

// ScriptResult is what a finished script produced.
type ScriptResult struct {
	ExitCode int
	Output   string
	Debug    string
}

// ScriptRunner executes lifecycle scripts. Run returns an error only when the
// script could not be started or was interrupted; a nonzero exit is reported
// through ScriptResult.ExitCode.
type ScriptRunner interface {
	Run(ctx context.Context, req ScriptRequest) (ScriptResult, error)
}

// Well-known principals of the permission directory.
const (
	PrincipalAllUsers = "all_users"
	PrincipalVisitors = "visitors"
)

// Permission is one named access rule, e.g. "wordpress.main".
type Permission struct {
	Name           string   `json:"name" yaml:"name"`
	Label          string   `json:"label" yaml:"label"`
	Allowed        []string `json:"allowed" yaml:"allowed"`
	ShowTile       bool     `json:"show_tile" yaml:"show_tile"`
	URL            string   `json:"url,omitempty" yaml:"url,omitempty"`
	AdditionalURLs []string `json:"additional_urls,omitempty" yaml:"additional_urls,omitempty"`
	AuthHeader     bool     `json:"auth_header" yaml:"auth_header"`
	Protected      bool     `json:"protected" yaml:"protected"`
}

// App returns the instance id part of the permission name.
func (p Permission) App() string {
	for i := 0; i < len(p.Name); i++ {
		if p.Name[i] == '.' {
			return p.Name[:i]
		}
	}
	return p.Name
}

// Allows reports whether principal is in the allowed list.
func (p Permission) Allows(principal string) bool {
	for _, a := range p.Allowed {
		if a == principal {
			return true
		}
	}
	return false
}

// URLs returns the main url followed by the additional ones.
func (p Permission) URLs() []string {
	var urls []string
	if p.URL != "" {
		urls = append(urls, p.URL)
	}
	return append(urls, p.AdditionalURLs...)
}

// ErrPermissionNotFound is returned for an unknown permission name.
var ErrPermissionNotFound = errors.New("permission not found")

// PermissionDirectory stores who may access which app urls.
type PermissionDirectory interface {
	Create(ctx context.Context, perm Permission) error
	// Get returns one permission with its urls as stored, possibly
	// relative to the app's location.
	Get(ctx context.Context, name string) (Permission, error)
	// Update replaces an existing permission.
	Update(ctx context.Context, perm Permission) error
	Delete(ctx context.Context, name string) error
	// List returns permissions keyed by name, limited to the given instance
	// ids when any are passed. Relative urls are made absolute against the
	// owning app's domain and path.
	List(ctx context.Context, apps ...string) (map[string]Permission, error)
}

// ProxyView is everything the reverse proxy / SSO layer needs.
type ProxyView struct {
	MainDomain      string
	Domains         []string
	Permissions     map[string]Permission
	RedirectedURLs  map[string]string
	RedirectedRegex map[string]string
}

// ProxyConfigPublisher (re)generates the reverse-proxy / SSO configuration.
type ProxyConfigPublisher interface {
	Publish(ctx context.Context, view ProxyView) error
	// PersistRedirect keeps a redirect in every future configuration.
	PersistRedirect(ctx context.Context, from, to string) error
}

// DomainRegistry lists the domains the platform serves.
type DomainRegistry interface {
	Domains(ctx context.Context) ([]string, error)
	MainDomain(ctx context.Context) (string, error)
}

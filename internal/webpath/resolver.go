package webpath

import (
	"context"
	"fmt"

	"appkeeper/internal/api"
)

// RegistrySource returns the current location registry.
type RegistrySource func(ctx context.Context) (Registry, error)

// Resolver validates candidate locations against the known domains and the
// locations already registered by installed apps. It never mutates anything.
type Resolver struct {
	domains   api.DomainRegistry
	locations RegistrySource
}

// NewResolver creates a Resolver.
func NewResolver(domains api.DomainRegistry, locations RegistrySource) *Resolver {
	return &Resolver{domains: domains, locations: locations}
}

// Conflicts returns the registrations clashing with domain+path. The domain
// must be known.
func (r *Resolver) Conflicts(ctx context.Context, domain, path, ignore string) ([]api.Conflict, error) {
	domain = NormalizeDomain(domain)
	path = NormalizePath(path)

	if err := r.AssertDomainExists(ctx, domain); err != nil {
		return nil, err
	}
	reg, err := r.locations(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list registered locations: %w", err)
	}
	return reg.FindConflicts(domain, path, ignore), nil
}

// Validate checks that domain+path is usable for an app with the given
// requirement. Apps without a web requirement are not checked.
func (r *Resolver) Validate(ctx context.Context, domain, path string, req Requirement, ignore string) error {
	switch req {
	case RequirementDomainAndPath:
		return r.AssertAvailable(ctx, domain, path, ignore)
	case RequirementFullDomain:
		conflicts, err := r.Conflicts(ctx, domain, "/", ignore)
		if err != nil {
			return err
		}
		if len(conflicts) > 0 {
			return api.NewValidationError(api.KeyFullDomainUnavailable,
				"this app must be installed on a domain of its own, but other apps are already installed on the domain '%s'",
				NormalizeDomain(domain))
		}
	}
	return nil
}

// AssertAvailable fails with a LocationUnavailableError when domain+path
// overlaps a registered location.
func (r *Resolver) AssertAvailable(ctx context.Context, domain, path, ignore string) error {
	conflicts, err := r.Conflicts(ctx, domain, path, ignore)
	if err != nil {
		return err
	}
	if len(conflicts) > 0 {
		return &api.LocationUnavailableError{Domain: NormalizeDomain(domain), Conflicts: conflicts}
	}
	return nil
}

// AssertDomainExists fails with domain_unknown for a domain the platform
// does not serve.
func (r *Resolver) AssertDomainExists(ctx context.Context, domain string) error {
	domains, err := r.domains.Domains(ctx)
	if err != nil {
		return fmt.Errorf("failed to list domains: %w", err)
	}
	for _, d := range domains {
		if d == domain {
			return nil
		}
	}
	return api.NewValidationError(api.KeyDomainUnknown, "unknown domain: %s", domain)
}

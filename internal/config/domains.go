package config

import (
	"context"

	"appkeeper/internal/api"
)

// StaticDomains serves the domains declared in the configuration.
type StaticDomains struct {
	domains []string
	main    string
}

var _ api.DomainRegistry = (*StaticDomains)(nil)

// NewStaticDomains builds a registry from cfg. When no main domain is set,
// the first listed domain is used.
func NewStaticDomains(cfg AppkeeperConfig) *StaticDomains {
	main := cfg.MainDomain
	if main == "" && len(cfg.Domains) > 0 {
		main = cfg.Domains[0]
	}
	return &StaticDomains{domains: append([]string(nil), cfg.Domains...), main: main}
}

func (s *StaticDomains) Domains(_ context.Context) ([]string, error) {
	return append([]string(nil), s.domains...), nil
}

func (s *StaticDomains) MainDomain(_ context.Context) (string, error) {
	return s.main, nil
}

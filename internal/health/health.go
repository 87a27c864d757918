// Package health checks that the platform services an app relies on are
// running and that the package manager is usable, before and after a
// lifecycle script.
package health

import (
	"context"
	"fmt"
	"sort"
	"time"

	"appkeeper/internal/api"
	"appkeeper/internal/config"
	"appkeeper/pkg/logging"

	"golang.org/x/sync/errgroup"
)

const subsystem = "Health"

// Service states reported by a UnitStates implementation.
const (
	StateRunning   = "running"
	StateReloading = "reloading"
)

// UnitStates reports the state of system services.
type UnitStates interface {
	State(ctx context.Context, service string) (string, error)
}

// PackageAuditor reports whether the system package manager is broken.
type PackageAuditor interface {
	Broken(ctx context.Context) (bool, error)
}

// Checker is the default api.HealthChecker.
type Checker struct {
	units    UnitStates
	packages PackageAuditor
	cfg      config.ServicesConfig
	sleep    func(ctx context.Context, d time.Duration) error
}

var _ api.HealthChecker = (*Checker)(nil)

// NewChecker creates a Checker.
func NewChecker(units UnitStates, packages PackageAuditor, cfg config.ServicesConfig) *Checker {
	return &Checker{units: units, packages: packages, cfg: cfg, sleep: sleepContext}
}

// ServicesFor maps the services an app declares to the ones actually
// checked: aliases are resolved, only watched services are kept and the
// always-checked services are added.
func (c *Checker) ServicesFor(declared []string) []string {
	watched := make(map[string]bool, len(c.cfg.Watched))
	for _, s := range c.cfg.Watched {
		watched[s] = true
	}

	var services []string
	seen := map[string]bool{}
	add := func(s string) {
		if !seen[s] {
			seen[s] = true
			services = append(services, s)
		}
	}
	if len(c.cfg.Always) > 0 {
		add(c.cfg.Always[0])
	}
	for _, s := range declared {
		if alias, ok := c.cfg.Aliases[s]; ok {
			s = alias
		}
		if watched[s] {
			add(s)
		}
	}
	for _, s := range c.cfg.Always {
		add(s)
	}
	return services
}

// AssertSane waits briefly for reloading services to settle, then fails
// with a SystemHealthError if any required service is not running or the
// package manager is broken.
func (c *Checker) AssertSane(ctx context.Context, declared []string, phase api.Phase) error {
	services := c.ServicesFor(declared)
	logging.Debug(subsystem, "Checking that required services are up and running: %v", services)

	var states map[string]string
	var err error
	for attempt := 0; ; attempt++ {
		states, err = c.queryAll(ctx, services)
		if err != nil {
			return err
		}
		if !anyReloading(states) || attempt >= c.cfg.ReloadPolls {
			break
		}
		if err := c.sleep(ctx, c.cfg.ReloadInterval); err != nil {
			return err
		}
	}

	healthErr := &api.SystemHealthError{Phase: phase}
	for _, s := range services {
		if states[s] != StateRunning {
			healthErr.Services = append(healthErr.Services, fmt.Sprintf("%s (%s)", s, states[s]))
		}
	}

	if c.packages != nil {
		broken, err := c.packages.Broken(ctx)
		if err != nil {
			logging.Warn(subsystem, "Could not audit the package manager: %v", err)
		}
		healthErr.PackageBroken = broken
	}

	if len(healthErr.Services) > 0 || healthErr.PackageBroken {
		return healthErr
	}
	return nil
}

// queryAll asks about every service concurrently.
func (c *Checker) queryAll(ctx context.Context, services []string) (map[string]string, error) {
	results := make([]string, len(services))
	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(4)
	for i, s := range services {
		eg.Go(func() error {
			state, err := c.units.State(ctx, s)
			if err != nil {
				return fmt.Errorf("failed to query status of %s: %w", s, err)
			}
			results[i] = state
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	states := make(map[string]string, len(services))
	for i, s := range services {
		states[s] = results[i]
	}
	return states, nil
}

func anyReloading(states map[string]string) bool {
	keys := make([]string, 0, len(states))
	for k := range states {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if states[k] == StateReloading {
			return true
		}
	}
	return false
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

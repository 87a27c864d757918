// Package hooks manages the hook scripts apps register for platform events
// and runs the scripts attached to an event.
package hooks

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"appkeeper/internal/api"
	"appkeeper/pkg/logging"
)

const subsystem = "Hooks"

// DefaultPriority is used for hook files without a "NN-" prefix.
const DefaultPriority = 50

// Events fired after lifecycle operations.
const (
	PostAppInstall   = "post_app_install"
	PostAppUpgrade   = "post_app_upgrade"
	PostAppRemove    = "post_app_remove"
	PostAppChangeURL = "post_app_change_url"
)

// Registry stores hooks as {root}/{event}/{priority}-{owner}.
type Registry struct {
	root   string
	runner api.ScriptRunner
}

// NewRegistry creates a registry under root that runs hooks with runner.
func NewRegistry(root string, runner api.ScriptRunner) *Registry {
	return &Registry{root: root, runner: runner}
}

// Add registers file for owner. The event is the file name, optionally
// prefixed by a priority: "50-conf_regen".
func (r *Registry) Add(owner, file string) error {
	priority, event := splitHookName(filepath.Base(file))
	dir := filepath.Join(r.root, event)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create hook directory %s: %w", dir, err)
	}
	data, err := os.ReadFile(file)
	if err != nil {
		return fmt.Errorf("failed to read hook %s: %w", file, err)
	}
	dest := filepath.Join(dir, fmt.Sprintf("%d-%s", priority, owner))
	if err := os.WriteFile(dest, data, 0755); err != nil {
		return fmt.Errorf("failed to install hook %s: %w", dest, err)
	}
	logging.Debug(subsystem, "Registered %s hook of %s", event, owner)
	return nil
}

// AddDir registers every file of dir for owner. A missing dir is fine.
func (r *Registry) AddDir(owner, dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if err := r.Add(owner, filepath.Join(dir, e.Name())); err != nil {
			return err
		}
	}
	return nil
}

// Remove unregisters every hook of owner.
func (r *Registry) Remove(owner string) error {
	events, err := os.ReadDir(r.root)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	for _, ev := range events {
		if !ev.IsDir() {
			continue
		}
		files, err := os.ReadDir(filepath.Join(r.root, ev.Name()))
		if err != nil {
			continue
		}
		for _, f := range files {
			if _, name := splitHookName(f.Name()); name == owner {
				path := filepath.Join(r.root, ev.Name(), f.Name())
				if err := os.Remove(path); err != nil {
					return fmt.Errorf("failed to remove hook %s: %w", path, err)
				}
				logging.Debug(subsystem, "Removed %s hook of %s", ev.Name(), owner)
			}
		}
	}
	return nil
}

// Hook is one registered script.
type Hook struct {
	Event    string
	Owner    string
	Priority int
	Path     string
}

// List returns the hooks attached to event, by priority then owner.
func (r *Registry) List(event string) ([]Hook, error) {
	dir := filepath.Join(r.root, event)
	files, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	hooks := make([]Hook, 0, len(files))
	for _, f := range files {
		if f.IsDir() {
			continue
		}
		priority, owner := splitHookName(f.Name())
		hooks = append(hooks, Hook{Event: event, Owner: owner, Priority: priority, Path: filepath.Join(dir, f.Name())})
	}
	sort.Slice(hooks, func(i, j int) bool {
		if hooks[i].Priority != hooks[j].Priority {
			return hooks[i].Priority < hooks[j].Priority
		}
		return hooks[i].Owner < hooks[j].Owner
	})
	return hooks, nil
}

// Callback runs every hook of event with env. Failures are logged and
// counted, never returned as errors unless ctx is done.
func (r *Registry) Callback(ctx context.Context, event string, args []string, env map[string]string) (failed int, err error) {
	hooks, err := r.List(event)
	if err != nil {
		return 0, err
	}
	for _, h := range hooks {
		if err := ctx.Err(); err != nil {
			return failed, err
		}
		res, err := r.runner.Run(ctx, api.ScriptRequest{Path: h.Path, Args: args, Env: env})
		switch {
		case err != nil:
			failed++
			logging.Warn(subsystem, "Hook %s of %s could not run: %v", event, h.Owner, err)
		case res.ExitCode != 0:
			failed++
			logging.Warn(subsystem, "Hook %s of %s exited with %d", event, h.Owner, res.ExitCode)
		}
	}
	return failed, nil
}

func splitHookName(name string) (int, string) {
	prefix, rest, found := strings.Cut(name, "-")
	if found {
		if n, err := strconv.Atoi(prefix); err == nil {
			return n, rest
		}
	}
	return DefaultPriority, name
}

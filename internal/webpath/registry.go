package webpath

import (
	"sort"
	"strings"

	"appkeeper/internal/api"
)

// Occupant is the app instance exposed at a location.
type Occupant struct {
	ID    string `json:"id" yaml:"id"`
	Label string `json:"label" yaml:"label"`
}

// Registry maps domain -> path -> occupant.
type Registry map[string]map[string]Occupant

// Flat maps "domain/path" -> label.
type Flat map[string]string

// PermissionFilter keeps the permissions a map is being built for.
type PermissionFilter func(api.Permission) bool

// BuildMap collects the locations exposed by the given instances from their
// permissions. Regex urls are skipped. apps must already exclude instances
// without a domain and path or marked no_sso. When filter is set, an
// instance is only mapped if its main permission passes, and each of its
// permissions must pass too.
func BuildMap(apps []string, perms map[string]api.Permission, filter PermissionFilter) (Registry, Flat) {
	reg := Registry{}
	flat := Flat{}

	names := make([]string, 0, len(perms))
	for name := range perms {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, app := range apps {
		if filter != nil {
			main, ok := perms[app+".main"]
			if !ok || !filter(main) {
				continue
			}
		}
		for _, name := range names {
			perm := perms[name]
			if !strings.HasPrefix(name, app+".") {
				continue
			}
			if filter != nil && !filter(perm) {
				continue
			}
			for _, url := range perm.URLs() {
				if strings.HasPrefix(url, "re:") {
					continue
				}
				flat[url] = perm.Label
				domain, path := SplitURL(url)
				if reg[domain] == nil {
					reg[domain] = map[string]Occupant{}
				}
				reg[domain][path] = Occupant{ID: app, Label: perm.Label}
			}
		}
	}
	return reg, flat
}

// FindConflicts lists the registrations on domain that overlap path,
// ignoring those owned by ignore. Results are sorted by path.
func (r Registry) FindConflicts(domain, path, ignore string) []api.Conflict {
	var conflicts []api.Conflict
	for p, occ := range r[domain] {
		if ignore != "" && occ.ID == ignore {
			continue
		}
		if overlaps(path, p) {
			conflicts = append(conflicts, api.Conflict{Path: p, App: occ.ID, Label: occ.Label})
		}
	}
	sort.Slice(conflicts, func(i, j int) bool { return conflicts[i].Path < conflicts[j].Path })
	return conflicts
}

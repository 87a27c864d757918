package manifest

import (
	"regexp"
	"sort"

	"appkeeper/internal/api"

	"github.com/Masterminds/semver/v3"
)

// SupportedPackagingFormats are the packaging formats this tool can drive.
var SupportedPackagingFormats = []int{0, 1}

// CheckRequirements verifies the packaging format and that every declared
// requirement is satisfied by installed, which maps a support package name
// to its installed version.
func CheckRequirements(m *Manifest, installed map[string]string) error {
	supported := false
	for _, f := range SupportedPackagingFormats {
		if m.PackagingFormat == f {
			supported = true
			break
		}
	}
	if !supported {
		return api.NewValidationError(api.KeyPackagingFormatUnsupported,
			"packaging format %d of %s is not supported", m.PackagingFormat, m.ID)
	}

	names := make([]string, 0, len(m.Requirements))
	for name := range m.Requirements {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, pkg := range names {
		spec := m.Requirements[pkg]
		have, ok := installed[pkg]
		if !ok || have == "" {
			return requirementUnmet(m.ID, pkg, spec, "none")
		}
		constraint, err := semver.NewConstraint(spec)
		if err != nil {
			return api.NewValidationError(api.KeyManifestMalformed,
				"requirement %s %q of %s is not a valid version constraint: %v", pkg, spec, m.ID, err)
		}
		v, err := semver.NewVersion(coerceVersion(have))
		if err != nil || !constraint.Check(v) {
			return requirementUnmet(m.ID, pkg, spec, have)
		}
	}
	return nil
}

// leadingVersion matches up to three dot-separated numbers at the start of a
// package version.
var leadingVersion = regexp.MustCompile(`^\d+(\.\d+){0,2}`)

// coerceVersion trims a Debian package version such as 4.3.6.3 or 11.2~bpo
// down to something semver accepts.
func coerceVersion(have string) string {
	if m := leadingVersion.FindString(have); m != "" {
		return m
	}
	return have
}

func requirementUnmet(app, pkg, spec, have string) error {
	return api.NewValidationError(api.KeyRequirementsUnmet,
		"requirements are not met for %s, the package %s (%s) must be %s", app, pkg, have, spec)
}

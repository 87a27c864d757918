// Package version compares app package versions and classifies upgrades.
//
// Versions are free-form dotted/alphanumeric strings. Packaged apps usually
// follow "<upstream>~ynh<N>", where N is the packaging revision.
package version

import (
	"strings"
	"unicode"
)

// PackagingMarker separates the upstream version from the packaging revision.
const PackagingMarker = "~ynh"

// Version is a parsed version string.
type Version struct {
	raw string
	key []string
}

// Parse never fails: any string yields a comparable Version.
func Parse(s string) Version {
	return Version{raw: s, key: sortKey(s)}
}

// String returns the original version string.
func (v Version) String() string {
	return v.raw
}

// HasPackagingRevision reports whether the version carries the ~ynh marker.
func (v Version) HasPackagingRevision() bool {
	return strings.Contains(v.raw, PackagingMarker)
}

// Split returns the upstream and packaging-revision parts around the first
// ~ynh marker. Without a marker the whole string is the upstream part.
func (v Version) Split() (upstream, revision string) {
	upstream, revision, _ = strings.Cut(v.raw, PackagingMarker)
	return upstream, revision
}

// Compare returns -1, 0 or +1 when a is older, equal or newer than b.
func Compare(a, b Version) int {
	n := len(a.key)
	if len(b.key) < n {
		n = len(b.key)
	}
	for i := 0; i < n; i++ {
		if c := strings.Compare(a.key[i], b.key[i]); c != 0 {
			return c
		}
	}
	switch {
	case len(a.key) < len(b.key):
		return -1
	case len(a.key) > len(b.key):
		return 1
	}
	return 0
}

// Less reports whether a is older than b.
func Less(a, b Version) bool {
	return Compare(a, b) < 0
}

var partReplacements = map[string]string{
	"pre":     "c",
	"preview": "c",
	"-":       "final-",
	"rc":      "c",
	"dev":     "@",
}

// sortKey builds a lexicographically comparable key. Numeric runs are zero
// padded, other runs are prefixed with "*" so they sort before numbers,
// trailing zeros of a numeric series are dropped and "*final" terminates the
// key so that pre-release tags ("1.0a1") sort before the release ("1.0").
func sortKey(s string) []string {
	var parts []string
	for _, part := range append(splitParts(strings.ToLower(s)), "*final") {
		if strings.HasPrefix(part, "*") {
			if part < "*final" {
				for len(parts) > 0 && parts[len(parts)-1] == "*final-" {
					parts = parts[:len(parts)-1]
				}
			}
			for len(parts) > 0 && parts[len(parts)-1] == "00000000" {
				parts = parts[:len(parts)-1]
			}
		}
		parts = append(parts, part)
	}
	return parts
}

func splitParts(s string) []string {
	var out []string
	emit := func(tok string) {
		if tok == "" || tok == "." {
			return
		}
		if r, ok := partReplacements[tok]; ok {
			tok = r
		}
		if tok[0] >= '0' && tok[0] <= '9' {
			if len(tok) < 8 {
				tok = strings.Repeat("0", 8-len(tok)) + tok
			}
			out = append(out, tok)
			return
		}
		out = append(out, "*"+tok)
	}

	runes := []rune(s)
	for i := 0; i < len(runes); {
		j := i + 1
		switch {
		case unicode.IsDigit(runes[i]):
			for j < len(runes) && unicode.IsDigit(runes[j]) {
				j++
			}
		case runes[i] >= 'a' && runes[i] <= 'z':
			for j < len(runes) && runes[j] >= 'a' && runes[j] <= 'z' {
				j++
			}
		case runes[i] == '.' || runes[i] == '-':
		default:
			for j < len(runes) && !isComponentStart(runes[j]) {
				j++
			}
		}
		emit(string(runes[i:j]))
		i = j
	}
	return out
}

func isComponentStart(r rune) bool {
	return unicode.IsDigit(r) || (r >= 'a' && r <= 'z') || r == '.' || r == '-'
}

// Package webpath decides whether a (domain, path) location is free for an
// app, and what kind of location an app package needs.
package webpath

import "strings"

// NormalizeDomain lowercases d and strips a scheme and trailing slashes.
func NormalizeDomain(d string) string {
	d = strings.TrimSpace(d)
	for _, scheme := range []string{"https://", "http://"} {
		if strings.HasPrefix(strings.ToLower(d), scheme) {
			d = d[len(scheme):]
			break
		}
	}
	return strings.ToLower(strings.TrimRight(d, "/"))
}

// NormalizePath returns p with exactly one leading slash and no trailing one,
// or "/" for the root.
func NormalizePath(p string) string {
	return "/" + strings.Trim(strings.TrimSpace(p), "/")
}

// SplitURL splits "domain.tld/some/path" into its domain and path parts.
func SplitURL(url string) (string, string) {
	domain, rest, found := strings.Cut(url, "/")
	if !found {
		return domain, "/"
	}
	return domain, "/" + rest
}

// overlaps reports whether one path equals or contains the other on a
// segment boundary. "/blog" overlaps "/blog/sub" but not "/blog2".
func overlaps(a, b string) bool {
	return isWithin(a, b) || isWithin(b, a)
}

func isWithin(parent, child string) bool {
	if parent == child || parent == "/" {
		return true
	}
	return strings.HasPrefix(child, parent+"/")
}

// Package instance parses and generates app instance identifiers.
//
// The first instance of an app uses the bare app id ("wordpress"); further
// instances append "__N" with N >= 2 ("wordpress__2").
package instance

import (
	"regexp"
	"strconv"
	"strings"

	"appkeeper/internal/api"
)

// Separator joins an app id and an instance number.
const Separator = "__"

var (
	instanceIDPattern = regexp.MustCompile(`^([\w-]+?)(?:__([1-9][0-9]*))?$`)
	appIDPattern      = regexp.MustCompile(`^[\w-]+$`)
)

// Parse splits an instance id into its base app id and instance number.
//
//	"yolo"          -> ("yolo", 1)
//	"yolo__0"       -> ("yolo__0", 1)
//	"yolo__1"       -> ("yolo", 1)
//	"yolo__23"      -> ("yolo", 23)
//	"yolo__42__72"  -> ("yolo__42", 72)
//	"yolo__23qdqsd" -> ("yolo__23qdqsd", 1)
func Parse(id string) (string, int, error) {
	m := instanceIDPattern.FindStringSubmatch(id)
	if m == nil || m[1] == "" {
		return "", 0, api.NewValidationError(api.KeyMalformedInstanceID, "could not parse app instance name: %q", id)
	}
	if m[2] == "" {
		return m[1], 1, nil
	}
	n, err := strconv.Atoi(m[2])
	if err != nil {
		return "", 0, api.NewValidationError(api.KeyMalformedInstanceID, "could not parse app instance name: %q", id)
	}
	return m[1], n, nil
}

// Generate builds the instance id for the given app id and number.
func Generate(appID string, n int) string {
	if n <= 1 {
		return appID
	}
	return appID + Separator + strconv.Itoa(n)
}

// ValidAppID reports whether id can be used as an app id: a slug with no
// dot and no instance separator.
func ValidAppID(id string) bool {
	if !appIDPattern.MatchString(id) {
		return false
	}
	for i := 0; i+1 < len(id); i++ {
		if id[i] == '_' && id[i+1] == '_' {
			return false
		}
	}
	return true
}

// NextNumber returns the smallest positive instance number not used by an
// installed sibling of appID. Gaps left by removed instances are reused.
//
// Siblings are appID itself and every id starting with appID+"__"; a sibling
// whose suffix does not parse ("foo__0") counts as number 1.
func NextNumber(appID string, installed []string) int {
	used := make(map[int]bool)
	for _, id := range installed {
		if id != appID && !strings.HasPrefix(id, appID+Separator) {
			continue
		}
		_, n, err := Parse(id)
		if err != nil {
			continue
		}
		used[n] = true
	}
	for i := 1; ; i++ {
		if !used[i] {
			return i
		}
	}
}

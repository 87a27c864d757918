// Package records is the durable store of installed app instances. Each
// instance owns a directory holding its settings.yml and a copy of its
// package files; the directory's existence is what makes an app installed.
package records

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Well-known setting keys.
const (
	KeyID              = "id"
	KeyInstallTime     = "install_time"
	KeyUpdateTime      = "update_time"
	KeyCurrentRevision = "current_revision"
	KeyDomain          = "domain"
	KeyPath            = "path"
	KeyLabel           = "label"
	KeyNoSSO           = "no_sso"
	KeyIsPublic        = "is_public"
	KeyRedirectedURLs  = "redirected_urls"
	KeyRedirectedRegex = "redirected_regex"
)

// Record is the settings of one installed instance.
type Record struct {
	ID              string `yaml:"id"`
	InstallTime     int64  `yaml:"install_time,omitempty"`
	UpdateTime      int64  `yaml:"update_time,omitempty"`
	CurrentRevision string `yaml:"current_revision,omitempty"`
	Domain          string `yaml:"domain,omitempty"`
	Path            string `yaml:"path,omitempty"`

	// Extra holds every other setting written by the app or its scripts.
	Extra map[string]interface{} `yaml:",inline"`
}

// New returns an empty record for id.
func New(id string) *Record {
	return &Record{ID: id, Extra: map[string]interface{}{}}
}

// IsWebApp reports whether the instance has a web location.
func (r *Record) IsWebApp() bool {
	return r.Domain != "" && r.Path != ""
}

// Has reports whether key is set.
func (r *Record) Has(key string) bool {
	_, ok := r.Get(key)
	return ok
}

// Get returns the value of key.
func (r *Record) Get(key string) (interface{}, bool) {
	switch key {
	case KeyID:
		return r.ID, true
	case KeyInstallTime:
		return r.InstallTime, r.InstallTime != 0
	case KeyUpdateTime:
		return r.UpdateTime, r.UpdateTime != 0
	case KeyCurrentRevision:
		return r.CurrentRevision, r.CurrentRevision != ""
	case KeyDomain:
		return r.Domain, r.Domain != ""
	case KeyPath:
		return r.Path, r.Path != ""
	}
	v, ok := r.Extra[key]
	return v, ok
}

// GetString returns the value of key formatted as a string.
func (r *Record) GetString(key string) (string, bool) {
	v, ok := r.Get(key)
	if !ok {
		return "", false
	}
	switch s := v.(type) {
	case string:
		return s, true
	case int64:
		return strconv.FormatInt(s, 10), true
	default:
		return fmt.Sprint(v), true
	}
}

// Set stores value under key. Known keys are converted to their field type.
func (r *Record) Set(key string, value interface{}) error {
	switch key {
	case KeyID:
		return fmt.Errorf("setting %q cannot be changed", key)
	case KeyInstallTime, KeyUpdateTime:
		n, err := toInt64(value)
		if err != nil {
			return fmt.Errorf("setting %q: %w", key, err)
		}
		if key == KeyInstallTime {
			r.InstallTime = n
		} else {
			r.UpdateTime = n
		}
	case KeyCurrentRevision:
		r.CurrentRevision = fmt.Sprint(value)
	case KeyDomain:
		r.Domain = fmt.Sprint(value)
	case KeyPath:
		r.Path = fmt.Sprint(value)
	default:
		if r.Extra == nil {
			r.Extra = map[string]interface{}{}
		}
		r.Extra[key] = value
	}
	return nil
}

// Delete removes key. Deleting an absent key is a no-op.
func (r *Record) Delete(key string) error {
	switch key {
	case KeyID:
		return fmt.Errorf("setting %q cannot be deleted", key)
	case KeyInstallTime:
		r.InstallTime = 0
	case KeyUpdateTime:
		r.UpdateTime = 0
	case KeyCurrentRevision:
		r.CurrentRevision = ""
	case KeyDomain:
		r.Domain = ""
	case KeyPath:
		r.Path = ""
	default:
		delete(r.Extra, key)
	}
	return nil
}

// StringMap returns a string-valued map setting such as redirected_urls.
func (r *Record) StringMap(key string) map[string]string {
	out := map[string]string{}
	v, ok := r.Extra[key]
	if !ok {
		return out
	}
	switch m := v.(type) {
	case map[string]interface{}:
		for k, val := range m {
			out[k] = fmt.Sprint(val)
		}
	case map[string]string:
		for k, val := range m {
			out[k] = val
		}
	}
	return out
}

// Settings returns every setting as a flat map, for display.
func (r *Record) Settings() map[string]interface{} {
	out := make(map[string]interface{}, len(r.Extra)+6)
	for k, v := range r.Extra {
		out[k] = v
	}
	for _, k := range []string{KeyID, KeyInstallTime, KeyUpdateTime, KeyCurrentRevision, KeyDomain, KeyPath} {
		if v, ok := r.Get(k); ok {
			out[k] = v
		}
	}
	return out
}

// Keys returns the sorted names of every setting.
func (r *Record) Keys() []string {
	settings := r.Settings()
	keys := make([]string, 0, len(settings))
	for k := range settings {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// normalizePath repairs legacy paths stored with a trailing slash or
// without a leading one. It reports whether anything changed.
func (r *Record) normalizePath() bool {
	if r.Path == "" || r.Path == "/" {
		return false
	}
	if strings.HasSuffix(r.Path, "/") || !strings.HasPrefix(r.Path, "/") {
		r.Path = "/" + strings.Trim(r.Path, "/")
		return true
	}
	return false
}

func toInt64(v interface{}) (int64, error) {
	switch n := v.(type) {
	case int:
		return int64(n), nil
	case int64:
		return n, nil
	case float64:
		return int64(n), nil
	case string:
		return strconv.ParseInt(n, 10, 64)
	default:
		return 0, fmt.Errorf("cannot convert %T to an integer", v)
	}
}

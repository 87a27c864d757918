package records

import "strings"

// SettingKey is either a RegularSetting or a LegacySetting. It is resolved
// once from the raw key name with ParseSettingKey.
type SettingKey interface {
	Name() string
	isSettingKey()
}

// RegularSetting is stored in the record as-is.
type RegularSetting struct {
	Key string
}

func (s RegularSetting) Name() string { return s.Key }
func (RegularSetting) isSettingKey()  {}

// LegacyKind is the access level of an old-style url setting.
type LegacyKind string

const (
	LegacyUnprotected LegacyKind = "unprotected"
	LegacyProtected   LegacyKind = "protected"
	LegacySkipped     LegacyKind = "skipped"
)

// LegacySetting is an unprotected_/protected_/skipped_ url setting that is
// backed by a dedicated permission instead of the record.
type LegacySetting struct {
	Key   string
	Kind  LegacyKind
	Regex bool
}

func (s LegacySetting) Name() string { return s.Key }
func (LegacySetting) isSettingKey()  {}

// PermissionName returns the permission backing this setting for app.
func (s LegacySetting) PermissionName(app string) string {
	return app + ".legacy_" + string(s.Kind) + "_uris"
}

// OpensToVisitors reports whether setting "/" makes the app public.
func (s LegacySetting) OpensToVisitors() bool {
	return s.Kind == LegacyUnprotected || s.Kind == LegacySkipped
}

// DefaultAllowed returns the principals granted a newly created legacy permission.
func (s LegacySetting) DefaultAllowed() []string {
	if s.Kind == LegacyProtected {
		return []string{"all_users"}
	}
	return []string{"all_users", "visitors"}
}

// AuthHeader reports whether the SSO should pass auth headers.
func (s LegacySetting) AuthHeader() bool {
	return s.Kind != LegacySkipped
}

// Label returns the portal label of the legacy permission.
func (s LegacySetting) Label(app string) string {
	return "Legacy permission " + string(s.Kind) + " for app " + app
}

// ParseSettingKey classifies key.
func ParseSettingKey(key string) SettingKey {
	for _, kind := range []LegacyKind{LegacyUnprotected, LegacyProtected, LegacySkipped} {
		if strings.HasPrefix(key, string(kind)+"_") {
			return LegacySetting{Key: key, Kind: kind, Regex: strings.HasSuffix(key, "_regex")}
		}
	}
	return RegularSetting{Key: key}
}

package version

// UpgradeType classifies what an upgrade changes.
type UpgradeType string

const (
	NoOp            UpgradeType = "no_op"
	DowngradeForced UpgradeType = "downgrade_forced"
	UpgradeForced   UpgradeType = "upgrade_forced"
	UpgradePackage  UpgradeType = "upgrade_package"
	UpgradeApp      UpgradeType = "upgrade_app"
	UpgradeFull     UpgradeType = "upgrade_full"
	Unknown         UpgradeType = "unknown"
)

// EnvValue is the form passed to upgrade scripts (YNH_APP_UPGRADE_TYPE).
func (t UpgradeType) EnvValue() string {
	switch t {
	case NoOp:
		return "NO_OP"
	case DowngradeForced:
		return "DOWNGRADE_FORCED"
	case UpgradeForced:
		return "UPGRADE_FORCED"
	case UpgradePackage:
		return "UPGRADE_PACKAGE"
	case UpgradeApp:
		return "UPGRADE_APP"
	case UpgradeFull:
		return "UPGRADE_FULL"
	default:
		return "UNKNOWN"
	}
}

// Classification is the result of comparing the installed and target versions.
type Classification struct {
	Type    UpgradeType
	Current Version
	Target  Version
}

// ClassifyUpgrade decides the upgrade type between current and target.
//
// Only versions that both carry the ~ynh marker are classified; otherwise the
// result is Unknown and the caller must still run the upgrade, even when the
// two strings are identical.
func ClassifyUpgrade(current, target string, force bool) Classification {
	c := Classification{Type: Unknown, Current: Parse(current), Target: Parse(target)}
	if !c.Current.HasPackagingRevision() || !c.Target.HasPackagingRevision() {
		return c
	}

	cmp := Compare(c.Current, c.Target)
	switch {
	case cmp >= 0 && !force:
		c.Type = NoOp
	case cmp > 0:
		c.Type = DowngradeForced
	case cmp == 0:
		c.Type = UpgradeForced
	default:
		curUp, curPkg := c.Current.Split()
		newUp, newPkg := c.Target.Split()
		switch {
		case curUp == newUp:
			c.Type = UpgradePackage
		case curPkg == newPkg:
			c.Type = UpgradeApp
		default:
			c.Type = UpgradeFull
		}
	}
	return c
}

// Upgradability says whether the catalog offers something newer.
type Upgradability string

const (
	UpgradableYes  Upgradability = "yes"
	UpgradableNo   Upgradability = "no"
	URLRequired    Upgradability = "url_required"
	BadQuality     Upgradability = "bad_quality"
	minGoodQuality               = 5
	workingState                 = "working"
	defaultVersion               = "0~ynh0"
)

// CatalogInfo is the subset of a catalog entry upgradability depends on.
type CatalogInfo struct {
	// Level is nil when the catalog holds no integer quality level.
	Level      *int
	State      string
	Version    string
	LastUpdate int64
	HasGit     bool
}

// InstalledInfo is the subset of an installed app upgradability depends on.
type InstalledInfo struct {
	Version string
	// UpdateTime falls back to the install time when the app never upgraded.
	UpdateTime int64
}

// ComputeUpgradability compares an installed app with its catalog entry,
// nil when the app is not in the catalog.
func ComputeUpgradability(installed InstalledInfo, entry *CatalogInfo) Upgradability {
	if entry == nil {
		return URLRequired
	}
	if entry.Level == nil || *entry.Level < minGoodQuality || entry.State != workingState {
		return BadQuality
	}

	current := Parse(orDefault(installed.Version))
	available := Parse(orDefault(entry.Version))
	if current.HasPackagingRevision() && available.HasPackagingRevision() {
		if Less(current, available) {
			return UpgradableYes
		}
		return UpgradableNo
	}

	// Legacy, non-conforming versions: fall back to timestamps.
	if entry.LastUpdate == 0 || !entry.HasGit {
		return URLRequired
	}
	if entry.LastUpdate > installed.UpdateTime {
		return UpgradableYes
	}
	return UpgradableNo
}

func orDefault(v string) string {
	if v == "" {
		return defaultVersion
	}
	return v
}

package config

import "time"

// AppkeeperConfig is the top-level configuration structure for appkeeper.
type AppkeeperConfig struct {
	// SettingsRoot holds one directory per installed app instance.
	SettingsRoot string `yaml:"settingsRoot"`

	// WorkdirRoot is the shared parent of scratch directories.
	WorkdirRoot string `yaml:"workdirRoot"`

	// WorkdirTTL is the age past which a scratch directory is swept.
	WorkdirTTL time.Duration `yaml:"workdirTTL"`

	// DataRoot holds the permission store, the operation journal and the
	// advisory lock files.
	DataRoot string `yaml:"dataRoot"`

	HooksRoot      string `yaml:"hooksRoot"`
	CatalogPath    string `yaml:"catalogPath"`
	SSOwatConfPath string `yaml:"ssowatConfPath"`

	// MinFreeSpaceBytes is required on the root filesystem before install or upgrade.
	MinFreeSpaceBytes uint64 `yaml:"minFreeSpaceBytes"`

	Services ServicesConfig `yaml:"services"`

	Domains    []string `yaml:"domains"`
	MainDomain string   `yaml:"mainDomain"`

	// DriftRoots are system configuration trees watched while a script runs.
	DriftRoots []string `yaml:"driftRoots"`

	// Packages maps a support package name to its installed version, used
	// to check manifest requirements.
	Packages map[string]string `yaml:"packages"`

	Locale string `yaml:"locale"`
}

// ServicesConfig drives the system health check.
type ServicesConfig struct {
	// Watched are the only manifest services that are checked.
	Watched []string `yaml:"watched"`

	// Always are checked for every app.
	Always []string `yaml:"always"`

	// Aliases rename legacy service names before filtering.
	Aliases map[string]string `yaml:"aliases"`

	// ReloadPolls and ReloadInterval bound the wait for a reloading service.
	ReloadPolls    int           `yaml:"reloadPolls"`
	ReloadInterval time.Duration `yaml:"reloadInterval"`
}

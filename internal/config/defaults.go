package config

import "time"

const (
	DefaultConfigPath     = "/etc/appkeeper"
	DefaultSettingsRoot   = "/etc/yunohost/apps"
	DefaultWorkdirRoot    = "/var/cache/yunohost/app_tmp_work_dirs"
	DefaultWorkdirTTL     = 12 * time.Hour
	DefaultDataRoot       = "/var/lib/appkeeper"
	DefaultHooksRoot      = "/etc/yunohost/hooks.d"
	DefaultCatalogPath    = "/var/cache/yunohost/repo/default.json"
	DefaultSSOwatConfPath = "/etc/ssowat/conf.json"

	// DefaultMinFreeSpaceBytes is 512 MB.
	DefaultMinFreeSpaceBytes = 512 * 1000 * 1000
)

// GetDefaultConfig returns the configuration used when no config.yaml exists.
func GetDefaultConfig() AppkeeperConfig {
	return AppkeeperConfig{
		SettingsRoot:      DefaultSettingsRoot,
		WorkdirRoot:       DefaultWorkdirRoot,
		WorkdirTTL:        DefaultWorkdirTTL,
		DataRoot:          DefaultDataRoot,
		HooksRoot:         DefaultHooksRoot,
		CatalogPath:       DefaultCatalogPath,
		SSOwatConfPath:    DefaultSSOwatConfPath,
		MinFreeSpaceBytes: DefaultMinFreeSpaceBytes,
		Services: ServicesConfig{
			Watched: []string{"nginx", "php7.3-fpm", "mysql", "postfix"},
			Always:  []string{"nginx", "fail2ban"},
			Aliases: map[string]string{
				"php-fpm":    "php7.3-fpm",
				"php5-fpm":   "php7.3-fpm",
				"php7.0-fpm": "php7.3-fpm",
			},
			ReloadPolls:    16,
			ReloadInterval: 500 * time.Millisecond,
		},
		DriftRoots: []string{
			"/etc/nginx/conf.d",
			"/etc/php",
			"/etc/ssh",
			"/etc/postfix",
			"/etc/dovecot",
			"/etc/fail2ban",
			"/etc/mysql",
			"/etc/dnsmasq.d",
		},
		Packages: map[string]string{},
		Locale:   "en",
	}
}

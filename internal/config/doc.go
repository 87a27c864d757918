// Package config loads appkeeper's configuration and provides a small YAML
// document store used by the permission directory and the operation journal.
//
// Configuration is read from config.yaml inside the directory given by the
// --config-path flag (default /etc/appkeeper). Fields absent from the file
// keep their defaults, and a missing file yields the defaults unchanged:
//
//	settingsRoot: /etc/yunohost/apps
//	workdirRoot: /var/cache/yunohost/app_tmp_work_dirs
//	workdirTTL: 12h
//	domains: [example.org]
//	mainDomain: example.org
//	services:
//	  watched: [nginx, php7.3-fpm, mysql, postfix]
//	  always: [nginx, fail2ban]
//
// # Document Storage
//
// Storage keeps documents at {root}/{kind}/{name}.yaml. Saves go through
// WriteFileAtomic so a crash never leaves a truncated document behind.
package config

package messages

var catalog = map[string]map[string]string{
	"en": {
		"app_manifest_install_ask_domain":    "Choose the domain where this app should be installed",
		"app_manifest_install_ask_path":      "Choose the URL path (after the domain) where this app should be installed",
		"app_manifest_install_ask_password":  "Choose an administration password for this app",
		"app_manifest_install_ask_admin":     "Choose an administrator user for this app",
		"app_manifest_install_ask_is_public": "Should this app be exposed to anonymous visitors?",

		"app_start_install":  "Installing {{ .app }}...",
		"app_start_remove":   "Removing {{ .app }}...",
		"app_start_upgrade":  "Upgrading {{ .app }}...",
		"app_start_restore":  "Restoring {{ .app }}...",
		"app_installed":      "{{ .app }} installed",
		"app_removed":        "{{ .app }} uninstalled",
		"app_upgraded":       "{{ .app }} upgraded",
		"app_change_url_success": "{{ .app }} URL is now {{ .domain }}{{ .path }}",
		"apps_already_up_to_date": "All apps are already up-to-date",
		"app_already_up_to_date":  "{{ .app }} is already up-to-date",
		"app_upgrade_several_apps": "The following apps will be upgraded: {{ .apps | join \", \" }}",
		"app_upgrade_app_name":     "Now upgrading {{ .app }}...",
		"app_upgrade_some_app_failed": "Some apps could not be upgraded",
		"app_upgrade_failed":          "Could not upgrade {{ .app }}: {{ .error }}",
		"app_upgrade_script_aborted_by_user": "The upgrade script was interrupted by the user.",
		"app_upgrade_stopped": "The upgrade of all apps has been stopped to prevent possible damage because an app failed to upgrade",
		"app_not_upgraded": "The app '{{ .failed_app }}' failed to upgrade, and as a consequence the following apps' upgrades have been cancelled: {{ .apps | join \", \" }}",
		"app_upgrade_custom_app_url_required": "You must provide a URL to upgrade your custom app {{ .app }}",
		"app_install_failed":       "Unable to install {{ .app }}: {{ .error }}",
		"app_install_script_failed": "An error occurred inside the app installation script",
		"app_remove_after_failed_install": "Removing the app following the installation failure...",
		"app_not_properly_removed": "{{ .app }} has not been properly removed",
		"app_not_correctly_installed": "{{ .app }} seems to be incorrectly installed",
		"app_action_broke_system": "This action seems to have broken these important services: {{ .services | join \", \" }}",
		"app_change_url_failed_nginx_reload": "Could not reload the web server after changing the URL of {{ .app }}",
		"app_full_domain_unavailable": "Sorry, this app must be installed on a domain of its own, but other apps are already installed on the domain '{{ .domain }}'.",
		"app_location_unavailable": "This URL is either unavailable, or conflicts with the already installed app(s):\n{{ .apps }}",
		"app_requirements_checking": "Checking required packages for {{ .app }}...",
		"app_requirements_unmeet": "Requirements are not met for {{ .app }}, the package {{ .pkgname }} ({{ .version }}) must be {{ .spec }}",
		"app_packaging_format_not_supported": "This app cannot be installed because its packaging format is not supported.",
		"app_id_invalid": "Invalid app ID",
		"app_unknown": "Unknown app",
		"app_already_installed": "{{ .app }} is already installed",
		"app_not_installed": "Could not find {{ .app }} in the list of installed apps: {{ .all_apps }}",
		"app_change_url_no_script": "The app '{{ .app_name }}' doesn't support URL modification yet. Maybe you should upgrade it.",
		"app_change_url_identical_domains": "The old and new domain/url_path are identical ('{{ .domain }}{{ .path }}'), nothing to do.",
		"app_already_installed_cant_change_url": "This app is already installed. The URL cannot be changed just by this function.",
		"app_argument_required": "Argument '{{ .name }}' is required",
		"app_argument_invalid": "Pick a valid value for the argument '{{ .name }}': {{ .error }}",
		"app_argument_choice_invalid": "Use one of these choices '{{ .choices | join \", \" }}' for the argument '{{ .name }}'",
		"app_manifest_install_ask_label": "Label shown in the user portal",
		"disk_space_not_sufficient_install": "There is not enough disk space left to install this application",
		"disk_space_not_sufficient_update": "There is not enough disk space left to update this application",
		"domain_unknown": "Unknown domain: {{ .domain }}",
		"dpkg_is_broken": "You cannot do this right now because dpkg/APT (the system package managers) seems to be in a broken state.",
		"operation_in_progress": "Another operation is already running on {{ .app }}",
		"confirm_app_install_warning": "Warning: This app may work, but is not well-integrated. Some features may not work. Install anyway? [{{ .answers }}]",
		"confirm_app_install_danger": "DANGER! This app is known to be still experimental (if not explicitly not working)! Install anyway? [{{ .answers }}]",
		"confirm_app_install_thirdparty": "DANGER! This app is not part of the app catalog. Installing third-party apps may compromise the integrity and security of your system. Install anyway? [{{ .answers }}]",
		"config_drift_detected": "The script of {{ .app }} modified {{ len .files }} system configuration file(s) outside of its own footprint: {{ .files | join \", \" }}",
		"downloading": "Downloading...",
		"unbackup_app": "{{ .app }} will not be saved",
		"experimental_feature": "Warning: This feature is experimental and not considered stable, you should not use it unless you know what you are doing.",
		"app_action_not_available": "Action '{{ .action }}' is not available for {{ .app }}, available actions are: {{ .actions | join \", \" }}",
		"app_action_failed": "Error while executing action '{{ .action }}' of {{ .app }}: return code {{ .code }}",
		"app_action_succeeded": "Action '{{ .action }}' of {{ .app }} succeeded",
		"app_make_default_location_already_used": "Unable to make '{{ .app }}' the default app on the domain, '{{ .domain }}' is already in use by '{{ .other_app }}'",
		"app_label_deprecated": "This command is deprecated! Please use the new permission command to manage the app label.",
		"ssowat_conf_updated": "SSO configuration updated",
		"app_no_location": "{{ .app }} has no domain and path yet",
	},
	"fr": {
		"app_manifest_install_ask_domain":    "Choisissez le domaine sur lequel vous souhaitez installer cette application",
		"app_manifest_install_ask_path":      "Choisissez le chemin d'URL (après le domaine) où cette application doit être installée",
		"app_manifest_install_ask_password":  "Choisissez un mot de passe d'administration pour cette application",
		"app_manifest_install_ask_admin":     "Choisissez un administrateur pour cette application",
		"app_manifest_install_ask_is_public": "Cette application devrait-elle être visible par des visiteurs anonymes ?",
		"app_installed":  "{{ .app }} installé",
		"app_removed":    "{{ .app }} désinstallé",
		"app_upgraded":   "{{ .app }} mis à jour",
		"app_not_installed": "Impossible de trouver {{ .app }} dans la liste des applications installées : {{ .all_apps }}",
	},
}

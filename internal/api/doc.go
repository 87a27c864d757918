// Package api holds the contracts shared by the lifecycle orchestrator and
// its collaborators.
//
// The orchestrator never talks to a script interpreter, the service manager,
// the permission store or the SSO gateway directly. It goes through the
// interfaces defined here, which keeps this package a leaf: it imports no
// other package of the module, so every implementation package can depend
// on it without cycles.
//
// # Collaborators
//
//   - ScriptRunner runs a lifecycle script with an environment and reports
//     its exit code, plus debug context on failure.
//   - HealthChecker verifies the platform before and after a script.
//   - PermissionDirectory stores the access permissions of instances.
//   - ProxyConfigPublisher regenerates the SSO gateway configuration.
//   - DomainRegistry lists the domains the server answers for.
//
// # Errors
//
// Failures are reported with four error types:
//
//   - ValidationError: rejected input or state, raised before anything is
//     mutated. Key is a stable identifier such as app_not_installed.
//   - ExecutionError: a lifecycle script exited nonzero or was interrupted.
//   - SystemHealthError: services down or a broken package manager.
//   - BatchUpgradeError: one upgrade of a batch failed; the instances queued
//     after it were not attempted.
//
// Use IsValidation, IsExecution, IsSystemHealth and HasKey rather than type
// assertions, since errors are usually wrapped:
//
//	if api.HasKey(err, api.KeyAppNotInstalled) {
//	    // offer to install
//	}
package api

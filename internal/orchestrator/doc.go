// Package orchestrator drives the lifecycle of installed app instances:
// install, upgrade, remove and change-url, plus the setting, location,
// action and listing operations the CLI exposes.
//
// # Architecture
//
// The orchestrator is the only writer of the app record store. It composes
// the decision-making packages (manifest, instance, version, webpath) with
// the collaborators that have side effects:
//
//   - PackageFetcher materializes a package into a scratch workdir
//   - api.ScriptRunner executes lifecycle scripts
//   - api.HealthChecker guards every script run (pre) and its outcome (post)
//   - api.PermissionDirectory and api.ProxyConfigPublisher expose the apps
//   - HookRegistry keeps the hooks an app ships and fires post_app_* events
//
// # Failure policy
//
// Validation failures happen before any mutation. Once a script ran, its
// failure triggers the operation's own policy:
//
//   - install always rolls back (remove script, permissions, record), unless
//     NoRemoveOnFailure is set for debugging
//   - upgrade leaves the record untouched and stops the batch
//   - remove logs the script failure and still deletes the bookkeeping
//   - change-url restores the previous domain and path
//   - an action fails unless it exits with one of its accepted codes
//
// Cleanup runs on a context detached from cancellation, so an interrupt
// during a script still releases workdirs and rolls back.
//
// # Concurrency
//
// Operations run sequentially. Each mutating call holds an advisory lock on
// the instance ids it touches for its whole duration.
package orchestrator

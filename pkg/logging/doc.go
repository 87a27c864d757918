// Package logging provides the structured, subsystem-tagged logger used by
// every appkeeper package.
//
// It is a thin layer over log/slog: each entry carries a subsystem attribute
// (Orchestrator, Records, Runner, Health, ...) and an optional error.
//
//	logging.InitForCLI(logging.LevelInfo, os.Stderr)
//	logging.Info("Orchestrator", "Installing %s", appID)
//	logging.Warn("Drift", "Script modified %d system files", n)
//	logging.Error("Runner", err, "Script %s failed", path)
//
// Packager-facing warnings (configuration drift, a failed best-effort
// rollback) are emitted at Warn or Error level and never abort an operation.
// Success marks the end of a user-visible operation with success=true so
// that API consumers can tell it apart from progress lines.
//
// Before InitForCLI or InitJSON is called only warnings and errors are
// printed, to stderr.
package logging

package api

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Validation error keys. They are stable identifiers that a CLI or API layer
// can translate; Message always carries a readable English rendering.
const (
	KeyAppNotInstalled            = "app_not_installed"
	KeyAppIDInvalid               = "app_id_invalid"
	KeyAppAlreadyInstalled        = "app_already_installed"
	KeyAppUnknown                 = "app_unknown"
	KeyLocationUnavailable        = "app_location_unavailable"
	KeyFullDomainUnavailable      = "app_full_domain_unavailable"
	KeyDomainUnknown              = "domain_unknown"
	KeyRequirementsUnmet          = "app_requirements_unmeet"
	KeyPackagingFormatUnsupported = "app_packaging_format_not_supported"
	KeyManifestMissing            = "manifest_missing"
	KeyManifestMalformed          = "manifest_malformed"
	KeyChangeURLNoScript          = "app_change_url_no_script"
	KeyChangeURLIdentical         = "app_change_url_identical_domains"
	KeyAlreadyUpToDate            = "apps_already_up_to_date"
	KeyDiskSpaceInsufficient      = "disk_space_not_sufficient"
	KeyURLAlreadyRegistered       = "app_already_installed_cant_change_url"
	KeyOperationInProgress        = "operation_in_progress"
	KeyArgumentRequired           = "app_argument_required"
	KeyArgumentInvalid            = "app_argument_invalid"
	KeyServicesDown               = "services_down"
	KeyPackageStateBroken         = "dpkg_is_broken"
	KeyMalformedInstanceID        = "malformed_instance_id"
	KeyUnsupportedRemote          = "app_unsupported_remote_type"
	KeyInstallAborted             = "aborting"
	KeyActionUnavailable          = "app_action_not_available"
	KeyActionsMalformed           = "app_actions_malformed"
	KeyDefaultLocationUsed        = "app_make_default_location_already_used"
	KeyAppNoLocation              = "app_no_location"
)

// ValidationError reports bad or unknown input, conflicts, unmet requirements
// or a state that forbids the requested operation. It is always raised before
// any mutation.
type ValidationError struct {
	// Key identifies the kind of failure (one of the Key* constants).
	Key string

	// Message is the human readable rendering.
	Message string
}

// Error implements the error interface for ValidationError.
func (e *ValidationError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Key
}

// NewValidationError creates a ValidationError with a formatted message.
func NewValidationError(key, format string, args ...interface{}) *ValidationError {
	return &ValidationError{Key: key, Message: fmt.Sprintf(format, args...)}
}

// NewNotInstalledError reports an unknown instance id, listing what is installed.
func NewNotInstalledError(app string, installed []string) *ValidationError {
	sorted := append([]string(nil), installed...)
	sort.Strings(sorted)
	list := "(none)"
	if len(sorted) > 0 {
		list = "\n * " + strings.Join(sorted, "\n * ")
	}
	return NewValidationError(KeyAppNotInstalled, "app %s is not installed. Installed apps: %s", app, list)
}

// IsValidation reports whether err is, or wraps, a ValidationError. A
// SystemHealthError raised before any script ran also counts as validation.
func IsValidation(err error) bool {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return true
	}
	var he *SystemHealthError
	return errors.As(err, &he) && he.Phase == PhasePre
}

// HasKey reports whether err wraps a ValidationError with the given key.
func HasKey(err error, key string) bool {
	var ve *ValidationError
	return errors.As(err, &ve) && ve.Key == key
}

// Conflict is one registered web location clashing with a requested one.
type Conflict struct {
	Path  string
	App   string
	Label string
}

// LocationUnavailableError is the ValidationError raised when a domain/path
// is already (partially) taken by other apps.
type LocationUnavailableError struct {
	Domain    string
	Conflicts []Conflict
}

func (e *LocationUnavailableError) Error() string {
	lines := make([]string, 0, len(e.Conflicts))
	for _, c := range e.Conflicts {
		lines = append(lines, fmt.Sprintf(" * %s%s → %s (%s)", e.Domain, c.Path, c.Label, c.App))
	}
	return "This url is not available or conflicts with the already installed app(s):\n" + strings.Join(lines, "\n")
}

// Unwrap exposes the validation classification.
func (e *LocationUnavailableError) Unwrap() error {
	return &ValidationError{Key: KeyLocationUnavailable}
}

// ExecutionError reports that a lifecycle script could not complete: a
// nonzero exit, an interruption, or a failure to fetch the package.
type ExecutionError struct {
	Operation   string
	App         string
	ExitCode    int
	Interrupted bool

	// Debug holds whatever context the script runner captured on failure.
	Debug string

	Err error
}

func (e *ExecutionError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s of %s failed", e.Operation, e.App)
	switch {
	case e.Interrupted:
		b.WriteString(": script was interrupted")
	case e.Err != nil:
		fmt.Fprintf(&b, ": %v", e.Err)
	default:
		fmt.Fprintf(&b, ": script exited with code %d", e.ExitCode)
	}
	if e.Debug != "" {
		b.WriteString("\n")
		b.WriteString(e.Debug)
	}
	return b.String()
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}

// IsExecution reports whether err is, or wraps, an ExecutionError.
func IsExecution(err error) bool {
	var ee *ExecutionError
	return errors.As(err, &ee)
}

// SystemHealthError reports required services down or a broken package
// manager state.
type SystemHealthError struct {
	Phase         Phase
	Services      []string
	PackageBroken bool
}

func (e *SystemHealthError) Error() string {
	var parts []string
	if len(e.Services) > 0 {
		if e.Phase == PhasePre {
			parts = append(parts, "the action cannot be run because these required services are down: "+strings.Join(e.Services, ", "))
		} else {
			parts = append(parts, "the action broke the system, these services are now down: "+strings.Join(e.Services, ", "))
		}
	}
	if e.PackageBroken {
		if e.Phase == PhasePre {
			parts = append(parts, "the package manager is in a broken state")
		} else {
			parts = append(parts, "the action left the package manager in a broken state")
		}
	}
	if len(parts) == 0 {
		return "system health check failed"
	}
	return strings.Join(parts, "; ")
}

// IsSystemHealth reports whether err is, or wraps, a SystemHealthError.
func IsSystemHealth(err error) bool {
	var he *SystemHealthError
	return errors.As(err, &he)
}

// BatchUpgradeError is returned when one upgrade in a batch failed and the
// remaining queued instances were never attempted.
type BatchUpgradeError struct {
	Failed       string
	Upgraded     []string
	NotAttempted []string
	Cause        error
}

func (e *BatchUpgradeError) Error() string {
	msg := fmt.Sprintf("upgrade of %s failed: %v", e.Failed, e.Cause)
	if len(e.NotAttempted) > 0 {
		msg += fmt.Sprintf("\nthese apps were not upgraded because of the previous failure: %s", strings.Join(e.NotAttempted, ", "))
	}
	return msg
}

func (e *BatchUpgradeError) Unwrap() error {
	return e.Cause
}

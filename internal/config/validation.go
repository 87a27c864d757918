package config

import (
	"fmt"
	"path/filepath"
	"strings"
)

// ValidationError represents a validation error with context
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

// Error implements the error interface
func (ve ValidationError) Error() string {
	if ve.Field == "" {
		return ve.Message
	}
	return fmt.Sprintf("field '%s': %s", ve.Field, ve.Message)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface for multiple validation errors
func (ve ValidationErrors) Error() string {
	if len(ve) == 0 {
		return "no validation errors"
	}
	if len(ve) == 1 {
		return ve[0].Error()
	}

	var messages []string
	for _, err := range ve {
		messages = append(messages, err.Error())
	}
	return fmt.Sprintf("validation failed: %s", strings.Join(messages, "; "))
}

// HasErrors returns true if there are any validation errors
func (ve ValidationErrors) HasErrors() bool {
	return len(ve) > 0
}

// Add adds a new validation error
func (ve *ValidationErrors) Add(field, message string, value ...interface{}) {
	var val interface{}
	if len(value) > 0 {
		val = value[0]
	}
	*ve = append(*ve, ValidationError{
		Field:   field,
		Value:   val,
		Message: message,
	})
}

// Validate checks a loaded configuration.
func Validate(cfg AppkeeperConfig) error {
	var errs ValidationErrors

	for field, value := range map[string]string{
		"settingsRoot": cfg.SettingsRoot,
		"workdirRoot":  cfg.WorkdirRoot,
		"dataRoot":     cfg.DataRoot,
		"hooksRoot":    cfg.HooksRoot,
	} {
		if strings.TrimSpace(value) == "" {
			errs.Add(field, "is required", value)
		} else if !filepath.IsAbs(value) {
			errs.Add(field, "must be an absolute path", value)
		}
	}
	if cfg.WorkdirTTL <= 0 {
		errs.Add("workdirTTL", "must be positive", cfg.WorkdirTTL)
	}
	if cfg.Services.ReloadPolls < 0 {
		errs.Add("services.reloadPolls", "must not be negative", cfg.Services.ReloadPolls)
	}
	if cfg.MainDomain != "" && len(cfg.Domains) > 0 {
		found := false
		for _, d := range cfg.Domains {
			if d == cfg.MainDomain {
				found = true
				break
			}
		}
		if !found {
			errs.Add("mainDomain", "must be one of domains", cfg.MainDomain)
		}
	}

	if errs.HasErrors() {
		return errs
	}
	return nil
}

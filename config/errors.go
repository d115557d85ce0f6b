package config

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for common configuration states
var (
	// ErrNotConfigured marks an optional feature that was left off on purpose.
	// Callers test for it with IsNotConfigured and carry on without the feature.
	ErrNotConfigured = errors.New("not configured")
)

// Categories of ConfigError.
const (
	CategoryMissing       = "missing"
	CategoryInvalid       = "invalid"
	CategoryNotConfigured = "not_configured"
)

// ConfigError represents a configuration error with actionable guidance.
// All error messages are lowercase following Go conventions.
//
//nolint:revive // ConfigError is intentionally named for clarity in external API usage
type ConfigError struct {
	Category string   // one of the Category constants
	Field    string   // koanf key path, e.g. "client.baseurl" or "auth.store.type"
	Message  string   // what is wrong with the value (lowercase)
	Action   string   // how to fix it (lowercase)
	Details  []string // extra hints, joined with "; "
}

// Error renders the non-empty parts in order:
//
//	config_<category>: <field> <message> <action> <details>
func (e *ConfigError) Error() string {
	var parts []string

	if e.Category != "" {
		parts = append(parts, fmt.Sprintf("config_%s:", e.Category))
	}
	if e.Field != "" {
		parts = append(parts, e.Field)
	}
	if e.Message != "" {
		parts = append(parts, e.Message)
	}
	if e.Action != "" {
		parts = append(parts, e.Action)
	}

	// details last so they read as a trailer
	if len(e.Details) > 0 {
		parts = append(parts, strings.Join(e.Details, "; "))
	}

	return strings.Join(parts, " ")
}

// NewMissingFieldError reports a required key with no value. The action
// names both the COURIER_* env var and the key in courier.yaml.
func NewMissingFieldError(field, envVar, yamlPath string) *ConfigError {
	return &ConfigError{
		Category: CategoryMissing,
		Field:    field,
		Message:  "required",
		Action:   fmt.Sprintf("set %s env var or add %s to %s", envVar, yamlPath, DefaultFile),
	}
}

// NewInvalidFieldError reports a value that failed validation. When
// validOptions is non-empty the action lists them.
func NewInvalidFieldError(field, message string, validOptions []string) *ConfigError {
	err := &ConfigError{
		Category: CategoryInvalid,
		Field:    field,
		Message:  message,
	}
	if len(validOptions) > 0 {
		err.Action = fmt.Sprintf("must be one of: %s", strings.Join(validOptions, ", "))
	}
	return err
}

// NewNotConfiguredError describes an optional feature that is switched off.
// It is informational: IsNotConfigured reports true for it.
func NewNotConfiguredError(feature, envVar, yamlPath string) *ConfigError {
	return &ConfigError{
		Category: CategoryNotConfigured,
		Field:    feature,
		Message:  "(optional)",
		Action:   fmt.Sprintf("to enable: set %s env var or add %s to %s", envVar, yamlPath, DefaultFile),
	}
}

// NewValidationError creates a general validation error with a custom message
// and no suggested action.
func NewValidationError(field, message string) *ConfigError {
	return &ConfigError{
		Category: CategoryInvalid,
		Field:    field,
		Message:  message,
	}
}

// IsNotConfigured reports whether err means "feature left off" rather than a
// failure. It matches errors wrapping ErrNotConfigured and any ConfigError in
// the not_configured category, including ones inside an errors.Join.
func IsNotConfigured(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, ErrNotConfigured) {
		return true
	}

	var configErr *ConfigError
	if errors.As(err, &configErr) {
		return configErr.Category == CategoryNotConfigured
	}

	return false
}

package config

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConfigErrorMessages(t *testing.T) {
	tests := []struct {
		name string
		err  *ConfigError
		want string
	}{
		{
			name: "missing",
			err:  NewMissingFieldError("client.baseurl", "COURIER_CLIENT_BASEURL", "client.baseurl"),
			want: "config_missing: client.baseurl required set COURIER_CLIENT_BASEURL env var or add client.baseurl to courier.yaml",
		},
		{
			name: "invalid_with_options",
			err:  NewInvalidFieldError("client.retryvoting", `invalid value "x"`, []string{"first", "unanimous"}),
			want: `config_invalid: client.retryvoting invalid value "x" must be one of: first, unanimous`,
		},
		{
			name: "validation",
			err:  NewValidationError("client.timeout", "failed gt validation"),
			want: "config_invalid: client.timeout failed gt validation",
		},
		{
			name: "not_configured",
			err:  NewNotConfiguredError("reachability", "COURIER_REACHABILITY_ENABLED", "reachability.enabled"),
			want: "config_not_configured: reachability (optional) to enable: set COURIER_REACHABILITY_ENABLED env var or add reachability.enabled to courier.yaml",
		},
		{
			name: "details",
			err:  &ConfigError{Category: CategoryInvalid, Field: "f", Message: "m", Details: []string{"a", "b"}},
			want: "config_invalid: f m a; b",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}

func TestIsNotConfigured(t *testing.T) {
	assert.False(t, IsNotConfigured(nil))
	assert.True(t, IsNotConfigured(ErrNotConfigured))
	assert.True(t, IsNotConfigured(fmt.Errorf("wrap: %w", ErrNotConfigured)))
	assert.True(t, IsNotConfigured(NewNotConfiguredError("reachability", "COURIER_REACHABILITY_ENABLED", "reachability.enabled")))
	assert.False(t, IsNotConfigured(NewValidationError("f", "m")))
	assert.True(t, IsNotConfigured(errors.Join(
		NewValidationError("f", "m"),
		NewNotConfiguredError("reachability", "COURIER_REACHABILITY_ENABLED", "reachability.enabled"),
	)))
	assert.False(t, IsNotConfigured(errors.Join(NewValidationError("f", "m"))))
}

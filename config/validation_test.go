package config

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func configErrors(t *testing.T, err error) map[string]*ConfigError {
	t.Helper()
	require.Error(t, err)

	out := make(map[string]*ConfigError)
	var joined interface{ Unwrap() []error }
	if errors.As(err, &joined) {
		for _, e := range joined.Unwrap() {
			var ce *ConfigError
			if errors.As(e, &ce) {
				out[ce.Field] = ce
			}
		}
		return out
	}
	var ce *ConfigError
	if errors.As(err, &ce) {
		out[ce.Field] = ce
	}
	return out
}

func TestValidateMissingBaseURL(t *testing.T) {
	_, err := LoadYAML([]byte("client:\n  timeout: 1s\n"))

	errs := configErrors(t, err)
	require.Contains(t, errs, "client.baseurl")
	ce := errs["client.baseurl"]
	assert.Equal(t, "missing", ce.Category)
	assert.Contains(t, ce.Action, "COURIER_CLIENT_BASEURL")
	assert.Contains(t, err.Error(), "invalid configuration")
}

func TestValidateFieldErrors(t *testing.T) {
	tests := []struct {
		name     string
		yaml     string
		field    string
		category string
		contains string
	}{
		{
			name:     "relative_base_url",
			yaml:     "client:\n  baseurl: /v1/\n",
			field:    "client.baseurl",
			category: "invalid",
			contains: "http(s)",
		},
		{
			name:     "unknown_voting",
			yaml:     minimalYAML + "  retryvoting: majority\n",
			field:    "client.retryvoting",
			category: "invalid",
			contains: "first, unanimous",
		},
		{
			name:     "too_many_retries",
			yaml:     minimalYAML + "  maxretries: 50\n",
			field:    "client.maxretries",
			category: "invalid",
			contains: "at most 10",
		},
		{
			name:     "zero_timeout",
			yaml:     minimalYAML + "  timeout: 0s\n",
			field:    "client.timeout",
			category: "invalid",
			contains: "greater than",
		},
		{
			name:     "auth_without_token_url",
			yaml:     minimalYAML + "auth:\n  enabled: true\n  clientid: c\n",
			field:    "auth.tokenurl",
			category: "missing",
			contains: "COURIER_AUTH_TOKENURL",
		},
		{
			name:     "file_store_without_path",
			yaml:     minimalYAML + "auth:\n  store:\n    type: file\n    passphrase: p\n",
			field:    "auth.store.path",
			category: "missing",
			contains: "auth.store.path",
		},
		{
			name:     "reachability_bad_address",
			yaml:     minimalYAML + "reachability:\n  enabled: true\n  address: not-an-address\n",
			field:    "reachability.address",
			category: "invalid",
			contains: "host:port",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadYAML([]byte(tt.yaml))
			errs := configErrors(t, err)
			require.Contains(t, errs, tt.field)
			ce := errs[tt.field]
			assert.Equal(t, tt.category, ce.Category)
			assert.Contains(t, ce.Error(), tt.contains)
		})
	}
}

func TestValidateReportsEveryProblem(t *testing.T) {
	_, err := LoadYAML([]byte("client:\n  loglevel: loud\n  authheaderpolicy: sometimes\n"))

	errs := configErrors(t, err)
	assert.Contains(t, errs, "client.baseurl")
	assert.Contains(t, errs, "client.loglevel")
	assert.Contains(t, errs, "client.authheaderpolicy")
}

func TestValidateObservability(t *testing.T) {
	_, err := LoadYAML([]byte(minimalYAML + "observability:\n  enabled: true\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "observability config")
	assert.Contains(t, err.Error(), "service name is required")
}

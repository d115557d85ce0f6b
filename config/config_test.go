package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const minimalYAML = `
client:
  baseurl: https://api.example.com/v1/
`

func TestLoadYAMLDefaults(t *testing.T) {
	cfg, err := LoadYAML([]byte(minimalYAML))
	require.NoError(t, err)

	assert.Equal(t, "https://api.example.com/v1/", cfg.Client.BaseURL)
	assert.Equal(t, 20*time.Second, cfg.Client.Timeout)
	assert.Equal(t, 2, cfg.Client.MaxRetries)
	assert.Equal(t, 1, cfg.Client.MaxAuthReplays)
	assert.Equal(t, time.Second, cfg.Client.Backoff.Base)
	assert.Equal(t, "first", cfg.Client.RetryVoting)
	assert.Equal(t, "replay", cfg.Client.AuthHeaderPolicy)
	assert.Equal(t, "info", cfg.Client.LogLevel)
	assert.Equal(t, 1, cfg.Client.RateLimit.Burst)

	assert.False(t, cfg.Auth.Enabled)
	assert.Equal(t, 30*time.Second, cfg.Auth.RefreshTimeout)
	assert.Equal(t, GrantRefreshToken, cfg.Auth.Grant)
	assert.Equal(t, StoreMemory, cfg.Auth.Store.Type)

	assert.Equal(t, 10*time.Second, cfg.Reachability.Interval)
	assert.Equal(t, "info", cfg.Log.Level)

	assert.False(t, cfg.Observability.Enabled)
	assert.Equal(t, "unknown", cfg.Observability.Service.Version)
}

func TestLoadYAMLFullDocument(t *testing.T) {
	doc := `
client:
  baseurl: http://localhost:8080/
  timeout: 5s
  maxretries: 4
  backoff:
    base: 100ms
    max: 2s
    jitter: true
  cachepolicy: no-store
  headers:
    Accept: application/json
  retryvoting: unanimous
  authheaderpolicy: every
  loglevel: debug
  logsample: 10
  requestidheader: X-Correlation-ID
  ratelimit:
    rps: 25
    burst: 5
  metrics: true
  tracing: true
auth:
  enabled: true
  grant: client_credentials
  tokenurl: https://auth.example.com/token
  clientid: courier
  clientsecret: s3cret
  scopes: [read, write]
  store:
    type: redis
    key: tokens:courier
    ttl: 50m
    redis:
      host: localhost
      port: 6379
reachability:
  enabled: true
  address: api.example.com:443
custom:
  region: eu-west-1
  shards: 3
`
	cfg, err := LoadYAML([]byte(doc))
	require.NoError(t, err)

	c := cfg.Client
	assert.Equal(t, 5*time.Second, c.Timeout)
	assert.Equal(t, 4, c.MaxRetries)
	assert.Equal(t, BackoffConfig{Base: 100 * time.Millisecond, Max: 2 * time.Second, Jitter: true}, c.Backoff)
	assert.Equal(t, "no-store", c.CachePolicy)
	assert.Equal(t, "application/json", c.Headers["Accept"])
	assert.Equal(t, uint32(10), c.LogSample)
	assert.Equal(t, "X-Correlation-ID", c.RequestIDHeader)
	assert.InDelta(t, 25.0, c.RateLimit.RPS, 0)
	assert.True(t, c.Metrics)
	assert.True(t, c.Tracing)

	a := cfg.Auth
	assert.True(t, a.Enabled)
	assert.Equal(t, GrantClientCredentials, a.Grant)
	assert.Equal(t, []string{"read", "write"}, a.Scopes)
	assert.Equal(t, StoreRedis, a.Store.Type)
	assert.Equal(t, 50*time.Minute, a.Store.TTL)
	assert.Equal(t, 6379, a.Store.Redis.Port)

	assert.Equal(t, "api.example.com:443", cfg.Reachability.Address)

	assert.Equal(t, "eu-west-1", cfg.GetString("custom.region"))
	assert.Equal(t, 3, cfg.GetInt("custom.shards"))
	assert.True(t, cfg.Exists("custom.region"))
	assert.False(t, cfg.Exists("custom.missing"))
	assert.Equal(t, "fallback", cfg.GetString("custom.missing", "fallback"))
	assert.Equal(t, 5*time.Second, cfg.GetDuration("client.timeout"))
	assert.True(t, cfg.GetBool("client.metrics"))

	var custom struct {
		Region string `koanf:"region"`
		Shards int    `koanf:"shards"`
	}
	require.NoError(t, cfg.Unmarshal("custom", &custom))
	assert.Equal(t, "eu-west-1", custom.Region)
}

func TestEnvironmentOverridesYAML(t *testing.T) {
	t.Setenv("COURIER_CLIENT_TIMEOUT", "7s")
	t.Setenv("COURIER_CLIENT_MAXRETRIES", "0")
	t.Setenv("COURIER_AUTH_SCOPES", "a, b c")

	cfg, err := LoadYAML([]byte(minimalYAML))
	require.NoError(t, err)

	assert.Equal(t, 7*time.Second, cfg.Client.Timeout)
	assert.Equal(t, 0, cfg.Client.MaxRetries)
	assert.Equal(t, []string{"a", "b", "c"}, cfg.Auth.Scopes)
}

func TestEnvironmentOnly(t *testing.T) {
	t.Setenv("COURIER_CLIENT_BASEURL", "https://env.example.com/")
	t.Chdir(t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "https://env.example.com/", cfg.Client.BaseURL)
}

func TestLoadFromFiles(t *testing.T) {
	dir := t.TempDir()
	base := filepath.Join(dir, "base.yaml")
	override := filepath.Join(dir, "override.yaml")
	require.NoError(t, os.WriteFile(base, []byte(minimalYAML+"  maxretries: 5\n"), 0o600))
	require.NoError(t, os.WriteFile(override, []byte("client:\n  maxretries: 1\n"), 0o600))

	cfg, err := LoadFrom(base, filepath.Join(dir, "missing.yaml"), override)
	require.NoError(t, err)
	assert.Equal(t, "https://api.example.com/v1/", cfg.Client.BaseURL)
	assert.Equal(t, 1, cfg.Client.MaxRetries)
}

func TestLoadFromMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("client: [unterminated"), 0o600))

	_, err := LoadFrom(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load")
}

func TestLoadYAMLMalformed(t *testing.T) {
	_, err := LoadYAML([]byte("client: [unterminated"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse yaml")
}

func TestAccessorsWithoutLoad(t *testing.T) {
	var cfg Config
	assert.Equal(t, "d", cfg.GetString("x", "d"))
	assert.Equal(t, 3, cfg.GetInt("x", 3))
	assert.False(t, cfg.GetBool("x"))
	assert.Zero(t, cfg.GetDuration("x"))
	assert.False(t, cfg.Exists("x"))
	assert.Error(t, cfg.Unmarshal("x", &struct{}{}))
}

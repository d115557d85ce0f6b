// Package config loads courier configuration from defaults, an optional
// YAML file and COURIER_* environment variables, in increasing priority.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	envprovider "github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

const (
	// DefaultFile is read by Load when present.
	DefaultFile = "courier.yaml"

	// EnvPrefix marks environment variables that override configuration.
	EnvPrefix = "COURIER_"
)

// Load loads configuration from multiple sources with priority:
// 1. Environment variables (highest priority)
// 2. courier.yaml in the working directory, if present
// 3. Default values (lowest priority)
func Load() (*Config, error) {
	return LoadFrom(DefaultFile)
}

// LoadFrom is Load with explicit YAML files, applied in order. Missing
// files are skipped.
func LoadFrom(paths ...string) (*Config, error) {
	k := koanf.New(".")
	if err := loadDefaults(k); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	for _, path := range paths {
		if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", path, err)
		}
	}

	return finish(k)
}

// LoadYAML loads configuration from an in-memory YAML document layered
// between defaults and environment variables.
func LoadYAML(data []byte) (*Config, error) {
	k := koanf.New(".")
	if err := loadDefaults(k); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}
	if err := k.Load(rawbytes.Provider(data), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("failed to parse yaml: %w", err)
	}
	return finish(k)
}

func finish(k *koanf.Koanf) (*Config, error) {
	if err := loadEnv(k); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.k = k
	cfg.Observability.ApplyDefaults()

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

func loadEnv(k *koanf.Koanf) error {
	return k.Load(envprovider.Provider(".", envprovider.Opt{
		Prefix: EnvPrefix,
		TransformFunc: func(key, value string) (string, any) {
			// Convert COURIER_UPPER_CASE to upper.case for koanf
			key = strings.ToLower(strings.TrimPrefix(key, EnvPrefix))
			key = strings.ReplaceAll(key, "_", ".")
			if strings.HasSuffix(key, ".scopes") {
				return key, strings.Fields(strings.ReplaceAll(value, ",", " "))
			}
			return key, value
		},
	}), nil)
}

func loadDefaults(k *koanf.Koanf) error {
	defaults := map[string]any{
		"client.timeout":          "20s",
		"client.maxretries":       2,
		"client.maxauthreplays":   1,
		"client.backoff.base":     "1s",
		"client.backoff.max":      "0s",
		"client.backoff.jitter":   false,
		"client.cachepolicy":      "",
		"client.retryvoting":      "first",
		"client.authheaderpolicy": "replay",
		"client.loglevel":         "info",
		"client.logsample":        0,
		"client.ratelimit.rps":    0,
		"client.ratelimit.burst":  1,

		"auth.enabled":        false,
		"auth.refreshtimeout": "30s",
		"auth.grant":          GrantRefreshToken,
		"auth.store.type":     StoreMemory,
		"auth.store.ttl":      "0s",
		"auth.store.key":      "courier:access-token",

		"reachability.enabled":  false,
		"reachability.interval": "10s",
		"reachability.timeout":  "2s",

		"log.level":  "info",
		"log.pretty": false,

		"observability.enabled": false,
	}

	return k.Load(confmap.Provider(defaults, "."), nil)
}

// GetString returns the raw value at key, or defaultVal when unset. It
// reaches keys outside the typed structs, such as custom.* entries.
func (c *Config) GetString(key string, defaultVal ...string) string {
	if c.k == nil || !c.k.Exists(key) {
		return firstOr(defaultVal, "")
	}
	return c.k.String(key)
}

// GetInt returns the integer at key, or defaultVal when unset.
func (c *Config) GetInt(key string, defaultVal ...int) int {
	if c.k == nil || !c.k.Exists(key) {
		return firstOr(defaultVal, 0)
	}
	return c.k.Int(key)
}

// GetBool returns the boolean at key, or defaultVal when unset.
func (c *Config) GetBool(key string, defaultVal ...bool) bool {
	if c.k == nil || !c.k.Exists(key) {
		return firstOr(defaultVal, false)
	}
	return c.k.Bool(key)
}

// GetDuration returns the duration at key, or defaultVal when unset.
func (c *Config) GetDuration(key string, defaultVal ...time.Duration) time.Duration {
	if c.k == nil || !c.k.Exists(key) {
		return firstOr(defaultVal, 0)
	}
	return c.k.Duration(key)
}

// Exists reports whether key was set by any source.
func (c *Config) Exists(key string) bool {
	return c.k != nil && c.k.Exists(key)
}

// Unmarshal decodes the subtree at key into target.
func (c *Config) Unmarshal(key string, target any) error {
	if c.k == nil {
		return fmt.Errorf("config not loaded")
	}
	return c.k.Unmarshal(key, target)
}

func firstOr[T any](vals []T, fallback T) T {
	if len(vals) > 0 {
		return vals[0]
	}
	return fallback
}

package config

import (
	"time"

	"github.com/knadh/koanf/v2"

	"github.com/gaborage/courier/observability"
)

// Config is the root configuration. Keys are lowercase single words so
// that environment variables map onto them (COURIER_CLIENT_BASEURL ->
// client.baseurl).
type Config struct {
	Client        ClientConfig         `koanf:"client" json:"client" yaml:"client" mapstructure:"client"`
	Auth          AuthConfig           `koanf:"auth" json:"auth" yaml:"auth" mapstructure:"auth"`
	Reachability  ReachabilityConfig   `koanf:"reachability" json:"reachability" yaml:"reachability" mapstructure:"reachability"`
	Log           LogConfig            `koanf:"log" json:"log" yaml:"log" mapstructure:"log"`
	Observability observability.Config `koanf:"observability" json:"observability" yaml:"observability" mapstructure:"observability" validate:"-"`

	// k holds the underlying Koanf instance for flexible access to custom configurations
	k *koanf.Koanf `json:"-" yaml:"-" mapstructure:"-"`
}

// ClientConfig holds HTTP client settings.
type ClientConfig struct {
	BaseURL          string            `koanf:"baseurl" json:"baseurl" yaml:"baseurl" validate:"required,httpurl"`
	Timeout          time.Duration     `koanf:"timeout" json:"timeout" yaml:"timeout" validate:"gt=0"`
	MaxRetries       int               `koanf:"maxretries" json:"maxretries" yaml:"maxretries" validate:"gte=0,lte=10"`
	MaxAuthReplays   int               `koanf:"maxauthreplays" json:"maxauthreplays" yaml:"maxauthreplays" validate:"gte=0,lte=5"`
	Backoff          BackoffConfig     `koanf:"backoff" json:"backoff" yaml:"backoff"`
	CachePolicy      string            `koanf:"cachepolicy" json:"cachepolicy" yaml:"cachepolicy" validate:"omitempty,oneof=reload no-store prefer-cache"`
	Headers          map[string]string `koanf:"headers" json:"headers" yaml:"headers"`
	RetryVoting      string            `koanf:"retryvoting" json:"retryvoting" yaml:"retryvoting" validate:"oneof=first unanimous"`
	AuthHeaderPolicy string            `koanf:"authheaderpolicy" json:"authheaderpolicy" yaml:"authheaderpolicy" validate:"oneof=verbatim replay every"`
	LogLevel         string            `koanf:"loglevel" json:"loglevel" yaml:"loglevel" validate:"oneof=off error info debug"`
	// LogSample logs one in N attempts; 0 or 1 logs every attempt.
	LogSample       uint32          `koanf:"logsample" json:"logsample" yaml:"logsample"`
	RequestIDHeader string          `koanf:"requestidheader" json:"requestidheader" yaml:"requestidheader"`
	RateLimit       RateLimitConfig `koanf:"ratelimit" json:"ratelimit" yaml:"ratelimit"`
	Metrics         bool            `koanf:"metrics" json:"metrics" yaml:"metrics"`
	Tracing         bool            `koanf:"tracing" json:"tracing" yaml:"tracing"`
}

// BackoffConfig holds exponential backoff settings. Zero Base selects one
// second; zero Max leaves delays uncapped.
type BackoffConfig struct {
	Base   time.Duration `koanf:"base" json:"base" yaml:"base" validate:"gte=0"`
	Max    time.Duration `koanf:"max" json:"max" yaml:"max" validate:"gte=0"`
	Jitter bool          `koanf:"jitter" json:"jitter" yaml:"jitter"`
}

// RateLimitConfig holds client-side rate limiting settings. RPS 0 disables it.
type RateLimitConfig struct {
	RPS   float64 `koanf:"rps" json:"rps" yaml:"rps" validate:"gte=0"`
	Burst int     `koanf:"burst" json:"burst" yaml:"burst" validate:"gte=0"`
}

// Grant types
const (
	GrantRefreshToken      = "refresh_token"
	GrantClientCredentials = "client_credentials"
)

// Token store types
const (
	StoreMemory = "memory"
	StoreFile   = "file"
	StoreRedis  = "redis"
)

// AuthConfig holds token refresh settings.
type AuthConfig struct {
	Enabled        bool          `koanf:"enabled" json:"enabled" yaml:"enabled"`
	RefreshTimeout time.Duration `koanf:"refreshtimeout" json:"refreshtimeout" yaml:"refreshtimeout" validate:"gt=0"`
	Grant          string        `koanf:"grant" json:"grant" yaml:"grant" validate:"oneof=refresh_token client_credentials"`
	TokenURL       string        `koanf:"tokenurl" json:"tokenurl" yaml:"tokenurl" validate:"required_if=Enabled true,omitempty,url"`
	ClientID       string        `koanf:"clientid" json:"clientid" yaml:"clientid" validate:"required_if=Enabled true"`
	ClientSecret   string        `koanf:"clientsecret" json:"-" yaml:"clientsecret"`
	Scopes         []string      `koanf:"scopes" json:"scopes" yaml:"scopes"`
	RefreshToken   string        `koanf:"refreshtoken" json:"-" yaml:"refreshtoken"`
	// AccessToken seeds the store when it holds no token yet.
	AccessToken string           `koanf:"accesstoken" json:"-" yaml:"accesstoken"`
	Store       TokenStoreConfig `koanf:"store" json:"store" yaml:"store"`
}

// TokenStoreConfig selects where access tokens are kept.
type TokenStoreConfig struct {
	Type string `koanf:"type" json:"type" yaml:"type" validate:"oneof=memory file redis"`

	// File store
	Path       string `koanf:"path" json:"path" yaml:"path" validate:"required_if=Type file"`
	Passphrase string `koanf:"passphrase" json:"-" yaml:"passphrase" validate:"required_if=Type file"`
	Salt       string `koanf:"salt" json:"salt" yaml:"salt"`

	// Redis store
	Key   string        `koanf:"key" json:"key" yaml:"key" validate:"required_if=Type redis"`
	TTL   time.Duration `koanf:"ttl" json:"ttl" yaml:"ttl" validate:"gte=0"`
	Redis RedisConfig   `koanf:"redis" json:"redis" yaml:"redis"`
}

// RedisConfig holds Redis connection settings for the shared token store.
type RedisConfig struct {
	Host      string `koanf:"host" json:"host" yaml:"host"`
	Port      int    `koanf:"port" json:"port" yaml:"port" validate:"gte=0,lte=65535"`
	Password  string `koanf:"password" json:"-" yaml:"password"`
	Database  int    `koanf:"database" json:"database" yaml:"database" validate:"gte=0"`
	PoolSize  int    `koanf:"poolsize" json:"poolsize" yaml:"poolsize" validate:"gte=0"`
	KeyPrefix string `koanf:"keyprefix" json:"keyprefix" yaml:"keyprefix"`
}

// ReachabilityConfig holds network path monitor settings.
type ReachabilityConfig struct {
	Enabled  bool          `koanf:"enabled" json:"enabled" yaml:"enabled"`
	Address  string        `koanf:"address" json:"address" yaml:"address" validate:"required_if=Enabled true,omitempty,hostname_port"`
	Interval time.Duration `koanf:"interval" json:"interval" yaml:"interval" validate:"gt=0"`
	Timeout  time.Duration `koanf:"timeout" json:"timeout" yaml:"timeout" validate:"gt=0"`
}

// LogConfig holds application logger settings.
type LogConfig struct {
	Level  string `koanf:"level" json:"level" yaml:"level" validate:"oneof=off trace debug info warn error fatal panic"`
	Pretty bool   `koanf:"pretty" json:"pretty" yaml:"pretty"`
}

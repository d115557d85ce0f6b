package observability

import (
	"fmt"
	"maps"
	"strings"
	"time"
)

const (
	// EndpointStdout is a special endpoint value that outputs to stdout (for local development).
	EndpointStdout = "stdout"

	// ProtocolHTTP specifies OTLP over HTTP/protobuf.
	ProtocolHTTP = "http"

	// ProtocolGRPC specifies OTLP over gRPC.
	ProtocolGRPC = "grpc"

	// EnvironmentDevelopment is the default environment name.
	EnvironmentDevelopment = "development"
)

// BoolPtr returns a pointer to the provided bool value.
func BoolPtr(v bool) *bool {
	return &v
}

// Float64Ptr returns a pointer to the provided float64 value.
func Float64Ptr(v float64) *float64 {
	return &v
}

// Config defines the configuration for exporting client telemetry.
type Config struct {
	// Enabled controls whether observability is active.
	// When false, NewProvider returns no-op providers.
	Enabled bool `koanf:"enabled" mapstructure:"enabled"`

	Service     ServiceConfig `koanf:"service" mapstructure:"service"`
	Environment string        `koanf:"environment" mapstructure:"environment"`
	Trace       TraceConfig   `koanf:"trace" mapstructure:"trace"`
	Metrics     MetricsConfig `koanf:"metrics" mapstructure:"metrics"`
}

// ServiceConfig identifies the process in exported telemetry.
type ServiceConfig struct {
	Name    string `koanf:"name" mapstructure:"name"`
	Version string `koanf:"version" mapstructure:"version"`
}

// TraceConfig configures span export.
type TraceConfig struct {
	// Enabled defaults to true when observability is enabled.
	Enabled *bool `koanf:"enabled" mapstructure:"enabled"`

	// Endpoint is "stdout", a URL for the http protocol
	// (e.g. "http://localhost:4318") or host:port for grpc.
	Endpoint string            `koanf:"endpoint" mapstructure:"endpoint"`
	Protocol string            `koanf:"protocol" mapstructure:"protocol"`
	Insecure bool              `koanf:"insecure" mapstructure:"insecure"`
	Headers  map[string]string `koanf:"headers" mapstructure:"headers"`

	// SampleRate in [0, 1]. Nil means 1.0.
	SampleRate    *float64      `koanf:"samplerate" mapstructure:"samplerate"`
	BatchTimeout  time.Duration `koanf:"batchtimeout" mapstructure:"batchtimeout"`
	ExportTimeout time.Duration `koanf:"exporttimeout" mapstructure:"exporttimeout"`
}

// MetricsConfig configures metric export. Empty Protocol, Insecure and
// Headers follow the trace settings.
type MetricsConfig struct {
	Enabled       *bool             `koanf:"enabled" mapstructure:"enabled"`
	Endpoint      string            `koanf:"endpoint" mapstructure:"endpoint"`
	Protocol      string            `koanf:"protocol" mapstructure:"protocol"`
	Headers       map[string]string `koanf:"headers" mapstructure:"headers"`
	Interval      time.Duration     `koanf:"interval" mapstructure:"interval"`
	ExportTimeout time.Duration     `koanf:"exporttimeout" mapstructure:"exporttimeout"`
}

func (c *Config) traceEnabled() bool {
	return c.Enabled && c.Trace.Enabled != nil && *c.Trace.Enabled
}

func (c *Config) metricsEnabled() bool {
	return c.Enabled && c.Metrics.Enabled != nil && *c.Metrics.Enabled
}

// ApplyDefaults sets default values for any config fields that are not specified.
// This is called after unmarshaling to ensure all fields have sensible defaults.
func (c *Config) ApplyDefaults() {
	if c.Service.Version == "" {
		c.Service.Version = "unknown"
	}
	if c.Environment == "" {
		c.Environment = EnvironmentDevelopment
	}

	// Only set when nil. An explicit false is preserved.
	if c.Enabled && c.Trace.Enabled == nil {
		c.Trace.Enabled = BoolPtr(true)
	}
	if c.Enabled && c.Metrics.Enabled == nil {
		c.Metrics.Enabled = BoolPtr(true)
	}

	if c.Trace.Endpoint == "" {
		c.Trace.Endpoint = EndpointStdout
	}
	if c.Trace.Protocol == "" {
		c.Trace.Protocol = ProtocolHTTP
	}
	if c.Trace.SampleRate == nil {
		c.Trace.SampleRate = Float64Ptr(1.0)
	}
	// Development exports quickly for near-instant span visibility
	dev := c.Environment == EnvironmentDevelopment || c.Trace.Endpoint == EndpointStdout
	if c.Trace.BatchTimeout == 0 {
		c.Trace.BatchTimeout = pick(dev, 500*time.Millisecond, 5*time.Second)
	}
	if c.Trace.ExportTimeout == 0 {
		c.Trace.ExportTimeout = pick(dev, 10*time.Second, 60*time.Second)
	}

	if c.Metrics.Endpoint == "" {
		c.Metrics.Endpoint = c.Trace.Endpoint
	}
	if c.Metrics.Protocol == "" {
		c.Metrics.Protocol = c.Trace.Protocol
	}
	if c.Metrics.Headers == nil {
		c.Metrics.Headers = maps.Clone(c.Trace.Headers)
	}
	if c.Metrics.Interval == 0 {
		c.Metrics.Interval = pick(dev, 10*time.Second, 60*time.Second)
	}
	if c.Metrics.ExportTimeout == 0 {
		c.Metrics.ExportTimeout = 30 * time.Second
	}
}

func pick(cond bool, a, b time.Duration) time.Duration {
	if cond {
		return a
	}
	return b
}

// Validate checks the configuration. It should run after ApplyDefaults.
func (c *Config) Validate() error {
	if c == nil {
		return ErrNilConfig
	}
	if !c.Enabled {
		return nil
	}
	if c.Service.Name == "" {
		return ErrMissingServiceName
	}

	if c.traceEnabled() {
		if c.Trace.SampleRate != nil && (*c.Trace.SampleRate < 0 || *c.Trace.SampleRate > 1) {
			return ErrInvalidSampleRate
		}
		if err := validateEndpoint("trace", c.Trace.Endpoint, c.Trace.Protocol); err != nil {
			return err
		}
	}
	if c.metricsEnabled() {
		if c.Metrics.Interval < 0 {
			return fmt.Errorf("metrics interval %s: %w", c.Metrics.Interval, ErrInvalidInterval)
		}
		if err := validateEndpoint("metrics", c.Metrics.Endpoint, c.Metrics.Protocol); err != nil {
			return err
		}
	}
	return nil
}

// validateEndpoint checks that the endpoint format matches the protocol.
// gRPC endpoints use "host:port"; HTTP endpoints carry an http(s) scheme.
func validateEndpoint(signal, endpoint, protocol string) error {
	if protocol != ProtocolHTTP && protocol != ProtocolGRPC {
		return fmt.Errorf("%s protocol '%s': %w", signal, protocol, ErrInvalidProtocol)
	}
	if endpoint == EndpointStdout {
		return nil
	}

	hasScheme := strings.HasPrefix(endpoint, "http://") || strings.HasPrefix(endpoint, "https://")
	if protocol == ProtocolGRPC && hasScheme {
		return fmt.Errorf("%s endpoint '%s' must be host:port for grpc: %w", signal, endpoint, ErrInvalidEndpointFormat)
	}
	if protocol == ProtocolHTTP && !hasScheme {
		return fmt.Errorf("%s endpoint '%s' must include http:// or https:// for http: %w", signal, endpoint, ErrInvalidEndpointFormat)
	}
	return nil
}

package httpclient

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/gaborage/courier/auth"
	"github.com/gaborage/courier/config"
	"github.com/gaborage/courier/logger"
)

const (
	// DefaultTimeout bounds each attempt unless the target sets its own.
	DefaultTimeout = 20 * time.Second

	// DefaultMaxRetries is the number of retries after the first attempt.
	DefaultMaxRetries = 2

	// DefaultMaxAuthReplays is how many times a request is replayed after
	// a token refresh.
	DefaultMaxAuthReplays = 1
)

// AuthHeaderPolicy decides when Authorization is re-read from the token
// store for a later attempt.
type AuthHeaderPolicy string

const (
	// AuthHeaderVerbatim resends the header exactly as first built.
	AuthHeaderVerbatim AuthHeaderPolicy = "verbatim"
	// AuthHeaderReplay re-reads the token only for replays after a refresh.
	AuthHeaderReplay AuthHeaderPolicy = "replay"
	// AuthHeaderEvery re-reads the token before every attempt.
	AuthHeaderEvery AuthHeaderPolicy = "every"
)

// Config holds the client settings. Use Builder to construct one.
type Config struct {
	BaseURL          *url.URL
	DefaultHeaders   map[string]string
	Timeout          time.Duration
	CachePolicy      CachePolicy
	MaxRetries       int
	Backoff          Backoff
	LogLevel         LogLevel
	LogSampler       Sampler
	AuthHeaderPolicy AuthHeaderPolicy
	RetryVoting      RetryVoting
	MaxAuthReplays   int
}

// Client dispatches logical requests. It is safe for concurrent use.
type Client struct {
	config       *Config
	log          logger.Logger
	chain        *chain
	transport    Transport
	tokens       auth.TokenStore
	coordinator  *auth.Coordinator
	reachability Reachability
	callCount    atomic.Int64
}

// Builder provides a fluent interface for configuring the client
type Builder struct {
	config        *Config
	baseURL       string
	logger        logger.Logger
	interceptors  []Interceptor
	transport     Transport
	tokens        auth.TokenStore
	authenticator auth.Authenticator
	authOpts      []auth.Option
	coordinator   *auth.Coordinator
	reachability  Reachability
}

// NewBuilder creates a client builder for baseURL. Relative target paths
// resolve against it, so it should end with "/".
func NewBuilder(baseURL string, log logger.Logger) *Builder {
	if log == nil {
		log = logger.Nop()
	}
	return &Builder{
		config: &Config{
			DefaultHeaders:   make(map[string]string),
			Timeout:          DefaultTimeout,
			MaxRetries:       DefaultMaxRetries,
			Backoff:          ExponentialBackoff(DefaultBackoffBase, 0),
			LogLevel:         LogInfo,
			LogSampler:       AlwaysSample,
			AuthHeaderPolicy: AuthHeaderReplay,
			RetryVoting:      RetryVotingFirst,
			MaxAuthReplays:   DefaultMaxAuthReplays,
		},
		baseURL: baseURL,
		logger:  log,
	}
}

// NewBuilderFromConfig maps loaded configuration onto a builder. Token
// stores and authenticators are wired separately (see auth.NewFromConfig).
func NewBuilderFromConfig(cfg *config.Config, log logger.Logger) *Builder {
	cc := cfg.Client
	b := NewBuilder(cc.BaseURL, log)

	if cc.Timeout > 0 {
		b.WithTimeout(cc.Timeout)
	}
	backoff := ExponentialBackoff(cc.Backoff.Base, cc.Backoff.Max)
	if cc.Backoff.Base <= 0 {
		backoff = ExponentialBackoff(DefaultBackoffBase, cc.Backoff.Max)
	}
	if cc.Backoff.Jitter {
		backoff = WithFullJitter(backoff)
	}
	b.WithRetries(cc.MaxRetries, backoff)

	for k, v := range cc.Headers {
		b.WithDefaultHeader(k, v)
	}
	if cc.CachePolicy != "" {
		b.WithCachePolicy(CachePolicy(cc.CachePolicy))
	}
	if cc.RetryVoting != "" {
		b.WithRetryVoting(RetryVoting(cc.RetryVoting))
	}
	if cc.AuthHeaderPolicy != "" {
		b.WithAuthHeaderPolicy(AuthHeaderPolicy(cc.AuthHeaderPolicy))
	}
	if cc.MaxAuthReplays >= 0 {
		b.WithMaxAuthReplays(cc.MaxAuthReplays)
	}

	b.WithLogLevel(ParseLogLevel(cc.LogLevel))
	if cc.LogSample > 1 {
		sampler := &zerolog.BasicSampler{N: cc.LogSample}
		b.WithLogSampler(func() bool { return sampler.Sample(zerolog.InfoLevel) })
	}

	if cc.RequestIDHeader != "" {
		b.WithInterceptor(NewRequestIDInterceptor(cc.RequestIDHeader))
	}
	if cc.RateLimit.RPS > 0 {
		b.WithInterceptor(NewRateLimitInterceptor(cc.RateLimit.RPS, cc.RateLimit.Burst, log))
	}
	if cc.Metrics {
		b.WithInterceptor(NewMetricsInterceptor(nil))
	}
	if cc.Tracing {
		b.WithInterceptor(NewTracingInterceptor(nil))
	}
	return b
}

// WithTimeout sets the default per-attempt timeout
func (b *Builder) WithTimeout(timeout time.Duration) *Builder {
	b.config.Timeout = timeout
	return b
}

// WithRetries sets the retry budget and backoff. A nil backoff keeps the
// current one.
func (b *Builder) WithRetries(maxRetries int, backoff Backoff) *Builder {
	b.config.MaxRetries = maxRetries
	if backoff != nil {
		b.config.Backoff = backoff
	}
	return b
}

// WithDefaultHeader adds a header sent with every request
func (b *Builder) WithDefaultHeader(key, value string) *Builder {
	b.config.DefaultHeaders[key] = value
	return b
}

// WithCachePolicy sets the default cache policy
func (b *Builder) WithCachePolicy(p CachePolicy) *Builder {
	b.config.CachePolicy = p
	return b
}

// WithInterceptor appends an interceptor. Order of registration is the
// order hooks run in.
func (b *Builder) WithInterceptor(ic Interceptor) *Builder {
	b.interceptors = append(b.interceptors, ic)
	return b
}

// WithTokenStore sets where bearer tokens are read from.
func (b *Builder) WithTokenStore(store auth.TokenStore) *Builder {
	b.tokens = store
	return b
}

// WithAuthenticator enables refresh on 401/403. The coordinator is created
// at Build time over the configured token store.
func (b *Builder) WithAuthenticator(a auth.Authenticator, opts ...auth.Option) *Builder {
	b.authenticator = a
	b.authOpts = opts
	return b
}

// WithCoordinator shares an existing coordinator, and its store, between
// clients.
func (b *Builder) WithCoordinator(c *auth.Coordinator) *Builder {
	b.coordinator = c
	return b
}

// WithTransport replaces the HTTP transport.
func (b *Builder) WithTransport(t Transport) *Builder {
	b.transport = t
	return b
}

// WithHTTPClient sends attempts through hc.
func (b *Builder) WithHTTPClient(hc *http.Client) *Builder {
	b.transport = NewHTTPTransport(hc)
	return b
}

// WithReachability feeds the built-in retry interceptor.
func (b *Builder) WithReachability(r Reachability) *Builder {
	b.reachability = r
	return b
}

// WithLogLevel sets the built-in logging interceptor level.
func (b *Builder) WithLogLevel(level LogLevel) *Builder {
	b.config.LogLevel = level
	return b
}

// WithLogSampler sets the built-in logging interceptor sampler.
func (b *Builder) WithLogSampler(s Sampler) *Builder {
	if s != nil {
		b.config.LogSampler = s
	}
	return b
}

func (b *Builder) WithAuthHeaderPolicy(p AuthHeaderPolicy) *Builder {
	b.config.AuthHeaderPolicy = p
	return b
}

func (b *Builder) WithRetryVoting(v RetryVoting) *Builder {
	b.config.RetryVoting = v
	return b
}

// WithMaxAuthReplays bounds refresh-and-replay cycles per request. Zero
// disables replays.
func (b *Builder) WithMaxAuthReplays(n int) *Builder {
	b.config.MaxAuthReplays = n
	return b
}

// Build validates the configuration and creates the client.
func (b *Builder) Build() (*Client, error) {
	base, err := url.Parse(b.baseURL)
	if err != nil {
		return nil, NewInvalidURLError(b.baseURL, err)
	}
	if !base.IsAbs() || base.Host == "" {
		return nil, NewInvalidURLError(b.baseURL, errors.New("base URL must be absolute"))
	}
	if err := b.validate(); err != nil {
		return nil, err
	}

	cfg := *b.config
	cfg.BaseURL = base
	cfg.DefaultHeaders = make(map[string]string, len(b.config.DefaultHeaders))
	for k, v := range b.config.DefaultHeaders {
		cfg.DefaultHeaders[k] = v
	}

	c := &Client{
		config:       &cfg,
		log:          b.logger,
		transport:    b.transport,
		tokens:       b.tokens,
		coordinator:  b.coordinator,
		reachability: b.reachability,
	}
	if c.transport == nil {
		c.transport = NewHTTPTransport(nil)
	}
	if c.reachability == nil {
		c.reachability = alwaysReachable
	}

	switch {
	case c.coordinator != nil:
		if c.tokens == nil {
			c.tokens = c.coordinator.Store()
		}
	case b.authenticator != nil:
		if c.tokens == nil {
			c.tokens = auth.NewMemoryStore("")
		}
		opts := append([]auth.Option{auth.WithLogger(b.logger)}, b.authOpts...)
		c.coordinator = auth.NewCoordinator(c.tokens, b.authenticator, opts...)
	}

	interceptors := append([]Interceptor(nil), b.interceptors...)
	if !hasInterceptor[*RetryInterceptor](interceptors) {
		interceptors = append(interceptors, NewRetryInterceptor(-1, cfg.Backoff, c.reachability))
	}
	if !hasInterceptor[*LoggingInterceptor](interceptors) {
		interceptors = append(interceptors, NewLoggingInterceptor(b.logger, cfg.LogLevel, cfg.LogSampler))
	}
	c.chain = &chain{interceptors: interceptors, voting: cfg.RetryVoting, log: b.logger}

	return c, nil
}

func (b *Builder) validate() error {
	cfg := b.config
	if cfg.MaxRetries < 0 {
		return fmt.Errorf("httpclient: max retries must be >= 0, got %d", cfg.MaxRetries)
	}
	if cfg.MaxAuthReplays < 0 {
		return fmt.Errorf("httpclient: max auth replays must be >= 0, got %d", cfg.MaxAuthReplays)
	}
	switch cfg.AuthHeaderPolicy {
	case AuthHeaderVerbatim, AuthHeaderReplay, AuthHeaderEvery:
	default:
		return fmt.Errorf("httpclient: unknown auth header policy %q", cfg.AuthHeaderPolicy)
	}
	switch cfg.RetryVoting {
	case RetryVotingFirst, RetryVotingUnanimous:
	default:
		return fmt.Errorf("httpclient: unknown retry voting %q", cfg.RetryVoting)
	}
	switch cfg.CachePolicy {
	case CachePolicyDefault, CachePolicyReload, CachePolicyNoStore, CachePolicyPreferCache:
	default:
		return fmt.Errorf("httpclient: unknown cache policy %q", cfg.CachePolicy)
	}
	return nil
}

// Config returns a copy of the effective configuration.
func (c *Client) Config() Config { return *c.config }

// Coordinator returns the refresh coordinator, or nil when no
// authenticator is configured.
func (c *Client) Coordinator() *auth.Coordinator { return c.coordinator }

// Interceptors returns the chain in execution order, built-ins included.
func (c *Client) Interceptors() []Interceptor {
	return append([]Interceptor(nil), c.chain.interceptors...)
}

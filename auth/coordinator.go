package auth

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/metric"

	"github.com/gaborage/courier/internal/tracking"
	"github.com/gaborage/courier/logger"
)

// DefaultRefreshTimeout bounds a single authenticator call.
const DefaultRefreshTimeout = 30 * time.Second

// Pending is the promise handed to a request waiting on a refresh.
type Pending struct {
	done  chan struct{}
	token string
	err   error
}

func newPending() *Pending {
	return &Pending{done: make(chan struct{})}
}

func (p *Pending) resolve(token string, err error) {
	p.token, p.err = token, err
	close(p.done)
}

// Done is closed once the refresh outcome is known.
func (p *Pending) Done() <-chan struct{} { return p.done }

// Result returns the outcome. It must only be called after Done is closed.
func (p *Pending) Result() (string, error) { return p.token, p.err }

// Wait blocks until the refresh resolves or ctx ends.
func (p *Pending) Wait(ctx context.Context) (string, error) {
	select {
	case <-p.done:
		return p.token, p.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Coordinator serialises token refreshes. While a refresh is in flight,
// further requests join its queue instead of starting another one; when it
// finishes the queue is drained and every entry is resolved with the same
// outcome.
type Coordinator struct {
	store         TokenStore
	authenticator Authenticator
	timeout       time.Duration
	log           logger.Logger
	recorder      *tracking.Recorder

	mu       sync.Mutex
	inFlight bool
	pending  []*Pending

	refreshes atomic.Int64
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithRefreshTimeout overrides DefaultRefreshTimeout.
func WithRefreshTimeout(d time.Duration) Option {
	return func(c *Coordinator) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithLogger sets the logger used for refresh outcomes.
func WithLogger(log logger.Logger) Option {
	return func(c *Coordinator) {
		if log != nil {
			c.log = log
		}
	}
}

// WithMeterProvider records refresh metrics on mp instead of the global provider.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(c *Coordinator) {
		c.recorder = tracking.NewRecorder(mp)
	}
}

// NewCoordinator creates a coordinator writing refreshed tokens to store.
func NewCoordinator(store TokenStore, authenticator Authenticator, opts ...Option) *Coordinator {
	c := &Coordinator{
		store:         store,
		authenticator: authenticator,
		timeout:       DefaultRefreshTimeout,
		log:           logger.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.recorder == nil {
		c.recorder = tracking.NewRecorder(nil)
	}
	return c
}

// Store returns the token store refreshed tokens are written to.
func (c *Coordinator) Store() TokenStore { return c.store }

// Refresh joins the in-flight refresh or starts one. The refresh itself is
// detached from ctx so one caller giving up does not fail the others.
func (c *Coordinator) Refresh(ctx context.Context) *Pending {
	return c.enqueue(ctx, "")
}

// RefreshIfStale resolves immediately with the stored token when it differs
// from usedToken and no refresh is running, meaning another request already
// refreshed after usedToken was sent. Otherwise it behaves like Refresh.
func (c *Coordinator) RefreshIfStale(ctx context.Context, usedToken string) *Pending {
	current, ok := c.store.Read()
	if !ok || current == usedToken {
		current = ""
	}
	return c.enqueue(ctx, current)
}

func (c *Coordinator) enqueue(ctx context.Context, fresh string) *Pending {
	p := newPending()

	c.mu.Lock()
	if !c.inFlight && fresh != "" {
		c.mu.Unlock()
		p.resolve(fresh, nil)
		return p
	}
	c.pending = append(c.pending, p)
	if c.inFlight {
		c.mu.Unlock()
		return p
	}
	c.inFlight = true
	c.mu.Unlock()

	old, _ := c.store.Read()
	go c.run(context.WithoutCancel(ctx), old)
	return p
}

func (c *Coordinator) run(ctx context.Context, oldToken string) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	c.refreshes.Add(1)

	token, err := c.callAuthenticator(ctx, oldToken)
	if err == nil && token == "" {
		err = ErrEmptyToken
	}
	if err == nil {
		c.store.Write(token)
	}

	c.mu.Lock()
	waiters := c.pending
	c.pending = nil
	c.inFlight = false
	c.mu.Unlock()

	elapsed := time.Since(start)
	c.recorder.RecordRefresh(ctx, elapsed, len(waiters), err)
	if err != nil {
		c.log.Error().Err(err).Int("waiters", len(waiters)).Dur("elapsed", elapsed).Msg("Token refresh failed")
		token = ""
	} else {
		c.log.Info().Int("waiters", len(waiters)).Dur("elapsed", elapsed).Msg("Token refreshed")
	}

	for _, p := range waiters {
		p.resolve(token, err)
	}
}

type refreshResult struct {
	token string
	err   error
}

// callAuthenticator enforces the timeout even when the authenticator
// ignores its context, and turns a panic into an error.
func (c *Coordinator) callAuthenticator(ctx context.Context, oldToken string) (string, error) {
	results := make(chan refreshResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				results <- refreshResult{err: fmt.Errorf("auth: authenticator panicked: %v", r)}
			}
		}()
		token, err := c.authenticator.Refresh(ctx, oldToken)
		results <- refreshResult{token: token, err: err}
	}()

	select {
	case res := <-results:
		return res.token, res.err
	case <-ctx.Done():
		return "", fmt.Errorf("%w after %s: %w", ErrRefreshTimeout, c.timeout, ctx.Err())
	}
}

// InFlight reports whether a refresh is currently running.
func (c *Coordinator) InFlight() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inFlight
}

// Waiting returns the number of requests queued on the current refresh.
func (c *Coordinator) Waiting() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// Refreshes returns how many refreshes have been started.
func (c *Coordinator) Refreshes() int64 {
	return c.refreshes.Load()
}

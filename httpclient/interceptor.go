package httpclient

import (
	"context"
	"time"

	"github.com/gaborage/courier/internal/reflection"
	"github.com/gaborage/courier/logger"
)

// AttemptContext describes one physical attempt before it is sent.
// Interceptors may modify Request in WillSend.
type AttemptContext struct {
	// ID is unique per attempt.
	ID string
	// RequestID is shared by every attempt of a logical request.
	RequestID string
	Request   *WireRequest
	// Attempt is 0-based and counts retries and auth replays alike.
	Attempt   int
	StartTime time.Time

	ctx context.Context
}

// Context returns the logical request's context. It carries the request id
// (see trace.RequestIDFromContext) and is cancelled with the request.
func (a *AttemptContext) Context() context.Context { return a.ctx }

// ResponseContext describes the outcome of one attempt. It is read-only.
type ResponseContext struct {
	AttemptID string
	RequestID string
	// Request is the request as sent, after WillSend.
	Request *WireRequest
	// Response is nil when the transport failed.
	Response *RawResponse
	Err      error
	Attempt  int
	Duration time.Duration

	ctx context.Context
}

// Context returns the logical request's context.
func (r *ResponseContext) Context() context.Context { return r.ctx }

// StatusCode returns the response status or 0 on transport failure.
func (r *ResponseContext) StatusCode() int {
	if r.Response == nil {
		return 0
	}
	return r.Response.StatusCode
}

// RetryDecision is an interceptor's vote on a failed attempt. Veto only
// has an effect under RetryVotingUnanimous.
type RetryDecision struct {
	Retry bool
	Delay time.Duration
	Veto  bool
}

// Interceptor observes and shapes attempts. Embed NopInterceptor to
// implement only the hooks you need.
type Interceptor interface {
	WillSend(ctx *AttemptContext)
	DidReceive(ctx *ResponseContext)
	ShouldRetry(ctx *ResponseContext, maxRetries int) RetryDecision
}

// NopInterceptor implements every hook as a no-op.
type NopInterceptor struct{}

func (NopInterceptor) WillSend(*AttemptContext) {}

func (NopInterceptor) DidReceive(*ResponseContext) {}

func (NopInterceptor) ShouldRetry(*ResponseContext, int) RetryDecision { return RetryDecision{} }

// InterceptorFuncs builds an interceptor from optional functions.
type InterceptorFuncs struct {
	OnWillSend    func(*AttemptContext)
	OnDidReceive  func(*ResponseContext)
	OnShouldRetry func(*ResponseContext, int) RetryDecision
}

func (f InterceptorFuncs) WillSend(ctx *AttemptContext) {
	if f.OnWillSend != nil {
		f.OnWillSend(ctx)
	}
}

func (f InterceptorFuncs) DidReceive(ctx *ResponseContext) {
	if f.OnDidReceive != nil {
		f.OnDidReceive(ctx)
	}
}

func (f InterceptorFuncs) ShouldRetry(ctx *ResponseContext, maxRetries int) RetryDecision {
	if f.OnShouldRetry != nil {
		return f.OnShouldRetry(ctx, maxRetries)
	}
	return RetryDecision{}
}

// RetryVoting decides how ShouldRetry votes are combined.
type RetryVoting string

const (
	// RetryVotingFirst retries on the first interceptor voting to retry, in
	// chain order, using its delay.
	RetryVotingFirst RetryVoting = "first"
	// RetryVotingUnanimous retries only if some interceptor votes to retry
	// and none vetoes. The first retry vote supplies the delay.
	RetryVotingUnanimous RetryVoting = "unanimous"
)

// chain runs the hooks in order. A panicking hook is logged and skipped.
type chain struct {
	interceptors []Interceptor
	voting       RetryVoting
	log          logger.Logger
}

func (c *chain) willSend(ctx *AttemptContext) {
	for _, ic := range c.interceptors {
		c.guard(ic, "WillSend", ctx.RequestID, func() { ic.WillSend(ctx) })
	}
}

func (c *chain) didReceive(ctx *ResponseContext) {
	for _, ic := range c.interceptors {
		c.guard(ic, "DidReceive", ctx.RequestID, func() { ic.DidReceive(ctx) })
	}
}

func (c *chain) shouldRetry(ctx *ResponseContext, maxRetries int) RetryDecision {
	var chosen RetryDecision
	for _, ic := range c.interceptors {
		var d RetryDecision
		c.guard(ic, "ShouldRetry", ctx.RequestID, func() { d = ic.ShouldRetry(ctx, maxRetries) })

		if c.voting == RetryVotingUnanimous {
			if d.Veto {
				return RetryDecision{}
			}
			if d.Retry && !chosen.Retry {
				chosen = RetryDecision{Retry: true, Delay: d.Delay}
			}
			continue
		}
		if d.Retry {
			return RetryDecision{Retry: true, Delay: d.Delay}
		}
	}
	return chosen
}

func (c *chain) guard(ic Interceptor, hook, requestID string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			c.log.Error().
				Str("interceptor", reflection.TypeName(ic)).
				Str("hook", hook).
				Str("request_id", requestID).
				Interface("panic", r).
				Msg("Interceptor panicked")
		}
	}()
	fn()
}

// hasInterceptor reports whether list already contains a T.
func hasInterceptor[T Interceptor](list []Interceptor) bool {
	for _, ic := range list {
		if _, ok := ic.(T); ok {
			return true
		}
	}
	return false
}

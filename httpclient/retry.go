package httpclient

import (
	"context"
	crand "crypto/rand"
	"errors"
	"math"
	"math/big"
	"net"
	"time"
)

// DefaultBackoffBase is the first retry delay; it doubles per attempt.
const DefaultBackoffBase = time.Second

const maxBackoffShift = 62

// Backoff maps a 0-based attempt number to the delay before the next one.
type Backoff func(attempt int) time.Duration

// ExponentialBackoff returns base * 2^attempt, capped at maxDelay when
// maxDelay > 0.
func ExponentialBackoff(base, maxDelay time.Duration) Backoff {
	return func(attempt int) time.Duration {
		if attempt < 0 {
			attempt = 0
		}
		if attempt > maxBackoffShift {
			attempt = maxBackoffShift
		}
		d := time.Duration(math.MaxInt64)
		if base <= time.Duration(math.MaxInt64>>attempt) {
			d = base << attempt
		}
		if maxDelay > 0 && d > maxDelay {
			d = maxDelay
		}
		return d
	}
}

// WithFullJitter draws each delay uniformly from [0, b(attempt)).
func WithFullJitter(b Backoff) Backoff {
	return func(attempt int) time.Duration {
		d := b(attempt)
		if d <= 0 {
			return d
		}
		n, err := crand.Int(crand.Reader, big.NewInt(int64(d)))
		if err != nil {
			// On RNG failure, fall back to the full delay
			return d
		}
		return time.Duration(n.Int64())
	}
}

// Reachability reports whether the network path is currently usable.
type Reachability interface {
	IsReachable() bool
}

// ReachabilityFunc adapts a function to Reachability.
type ReachabilityFunc func() bool

// IsReachable calls f.
func (f ReachabilityFunc) IsReachable() bool { return f() }

// alwaysReachable is used when no monitor is configured.
var alwaysReachable = ReachabilityFunc(func() bool { return true })

// RetryInterceptor retries server errors, timeouts and attempts made while
// the network is unreachable, up to a fixed number of retries.
type RetryInterceptor struct {
	NopInterceptor

	maxRetries   int
	backoff      Backoff
	reachability Reachability
}

// NewRetryInterceptor creates the retry policy. A negative maxRetries
// defers to the client's configured limit; nil backoff and reachability
// select the defaults.
func NewRetryInterceptor(maxRetries int, backoff Backoff, reachability Reachability) *RetryInterceptor {
	if backoff == nil {
		backoff = ExponentialBackoff(DefaultBackoffBase, 0)
	}
	if reachability == nil {
		reachability = alwaysReachable
	}
	return &RetryInterceptor{maxRetries: maxRetries, backoff: backoff, reachability: reachability}
}

// ShouldRetry votes to retry when the attempt budget allows and the outcome
// is transient. A cancelled attempt never retries.
func (r *RetryInterceptor) ShouldRetry(ctx *ResponseContext, maxRetries int) RetryDecision {
	if errors.Is(ctx.Err, context.Canceled) {
		return RetryDecision{}
	}
	limit := r.maxRetries
	if limit < 0 {
		limit = maxRetries
	}
	if ctx.Attempt >= limit {
		return RetryDecision{}
	}

	status := ctx.StatusCode()
	if (status >= 500 && status <= 599) || IsTimeout(ctx.Err) || !r.reachability.IsReachable() {
		return RetryDecision{Retry: true, Delay: r.backoff(ctx.Attempt)}
	}
	return RetryDecision{}
}

// IsTimeout reports whether err is a deadline or network timeout.
func IsTimeout(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

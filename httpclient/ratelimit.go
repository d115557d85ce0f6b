package httpclient

import (
	"golang.org/x/time/rate"

	"github.com/gaborage/courier/logger"
)

// RateLimitInterceptor paces outbound attempts with a token bucket. WillSend
// blocks until a token is available or the request context is done; in the
// latter case the attempt proceeds and fails on the cancelled context.
type RateLimitInterceptor struct {
	NopInterceptor

	limiter *rate.Limiter
	log     logger.Logger
}

// NewRateLimitInterceptor allows rps attempts per second with the given burst.
// A non-positive rps disables limiting.
func NewRateLimitInterceptor(rps float64, burst int, log logger.Logger) *RateLimitInterceptor {
	limit := rate.Limit(rps)
	if rps <= 0 {
		limit = rate.Inf
	}
	if burst < 1 {
		burst = 1
	}
	if log == nil {
		log = logger.Nop()
	}
	return &RateLimitInterceptor{limiter: rate.NewLimiter(limit, burst), log: log}
}

// WillSend waits for a token.
func (r *RateLimitInterceptor) WillSend(ctx *AttemptContext) {
	if err := r.limiter.Wait(ctx.Context()); err != nil {
		r.log.Debug().
			Str("request_id", ctx.RequestID).
			Int("attempt", ctx.Attempt).
			Err(err).
			Msg("Rate limit wait aborted")
	}
}

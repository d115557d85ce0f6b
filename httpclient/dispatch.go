package httpclient

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gaborage/courier/auth"
	"github.com/gaborage/courier/trace"
)

// Go dispatches target asynchronously. The context bounds the whole logical
// request: when it is done the call completes with a cancelled error.
func (c *Client) Go(ctx context.Context, target Target) *Call {
	return c.launch(ctx, func() (*WireRequest, error) { return c.BuildRequest(target) })
}

// Do dispatches target and waits for the result. Server errors return both
// the *Response and an error of kind KindServer.
func (c *Client) Do(ctx context.Context, target Target) (*Response, error) {
	return c.Go(ctx, target).Wait()
}

func (c *Client) launch(ctx context.Context, build func() (*WireRequest, error)) *Call {
	requestID := trace.EnsureRequestID(ctx)
	ctx = trace.WithRequestID(ctx, requestID)
	callCtx, cancel := context.WithCancel(ctx)

	call := newCall(requestID, cancel)
	context.AfterFunc(callCtx, func() {
		call.complete(nil, NewCancelledError(context.Cause(callCtx)))
	})

	if err := ctx.Err(); err != nil {
		call.complete(nil, NewCancelledError(err))
		return call
	}

	wire, err := build()
	if err != nil {
		call.complete(nil, err)
		return call
	}

	d := &dispatch{
		client: c,
		call:   call,
		ctx:    callCtx,
		wire:   wire,
		start:  time.Now(),
		seq:    c.callCount.Add(1),
	}
	go d.attempt(0)
	return call
}

// dispatch drives one logical request through its attempts. Attempts are
// strictly sequential, so its fields need no locking.
type dispatch struct {
	client *Client
	call   *Call
	ctx    context.Context
	wire   *WireRequest
	start  time.Time
	seq    int64

	replays   int
	refreshed bool
}

func (d *dispatch) attempt(n int) {
	defer func() {
		if r := recover(); r != nil {
			d.client.log.Error().
				Str("request_id", d.call.id).
				Int("attempt", n).
				Interface("panic", r).
				Msg("HTTP client attempt panicked")
			d.call.complete(nil, NewUnknownError(fmt.Sprintf("attempt panicked: %v", r)))
		}
	}()

	if d.cancelled() {
		return
	}

	req := d.prepare()
	d.call.attempts.Store(int32(n + 1))
	actx := &AttemptContext{
		ID:        trace.NewID(),
		RequestID: d.call.id,
		Request:   req,
		Attempt:   n,
		StartTime: time.Now(),
		ctx:       d.ctx,
	}
	d.client.chain.willSend(actx)
	if actx.Request != nil {
		req = actx.Request
	}

	raw, err := d.send(req)
	rctx := &ResponseContext{
		AttemptID: actx.ID,
		RequestID: d.call.id,
		Request:   req,
		Response:  raw,
		Err:       err,
		Attempt:   n,
		Duration:  time.Since(actx.StartTime),
		ctx:       d.ctx,
	}
	d.client.chain.didReceive(rctx)

	if d.cancelled() {
		return
	}

	switch {
	case errors.Is(err, context.Canceled):
		d.call.complete(nil, NewCancelledError(err))
	case err != nil:
		d.retryOrFail(rctx, NewTransportError(err), nil)
	case raw == nil:
		d.call.complete(nil, NewUnknownError("transport returned neither response nor error"))
	case isAuthFailure(raw.StatusCode) && d.client.coordinator != nil &&
		d.replays < d.client.config.MaxAuthReplays:
		d.replays++
		d.awaitRefresh(n, req)
	case !IsSuccessStatus(raw.StatusCode):
		d.retryOrFail(rctx, NewServerError(raw.StatusCode, raw.Body), d.response(raw))
	default:
		d.call.complete(d.response(raw), nil)
	}
}

// cancelled completes the call when the request context is done.
func (d *dispatch) cancelled() bool {
	if d.ctx.Err() == nil {
		return false
	}
	d.call.complete(nil, NewCancelledError(context.Cause(d.ctx)))
	return true
}

// prepare clones the wire request and re-reads Authorization when the
// auth header policy asks for it. An empty store leaves the header as built.
func (d *dispatch) prepare() *WireRequest {
	req := d.wire.Clone()
	cfg := d.client.config
	reread := cfg.AuthHeaderPolicy == AuthHeaderEvery ||
		(cfg.AuthHeaderPolicy == AuthHeaderReplay && d.refreshed)
	if reread && req.requiresAuth && d.client.tokens != nil {
		if token, ok := d.client.tokens.Read(); ok && token != "" {
			req.setBearer(token)
		}
	}
	return req
}

func (d *dispatch) send(req *WireRequest) (*RawResponse, error) {
	ctx := d.ctx
	if req.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}
	return d.client.transport.Send(ctx, req)
}

func (d *dispatch) retryOrFail(rctx *ResponseContext, failure *Error, resp *Response) {
	decision := d.client.chain.shouldRetry(rctx, d.client.config.MaxRetries)
	if !decision.Retry {
		d.call.complete(resp, failure)
		return
	}

	d.client.log.Debug().
		Str("request_id", d.call.id).
		Int("attempt", rctx.Attempt).
		Int("status", rctx.StatusCode()).
		Dur("delay", decision.Delay).
		Msg("Retrying HTTP request")
	d.schedule(rctx.Attempt+1, decision.Delay)
}

// schedule starts attempt next after delay without holding a goroutine
// while waiting.
func (d *dispatch) schedule(next int, delay time.Duration) {
	if delay <= 0 {
		go d.attempt(next)
		return
	}
	timer := time.AfterFunc(delay, func() { d.attempt(next) })
	context.AfterFunc(d.ctx, func() { timer.Stop() })
}

// awaitRefresh suspends the request until the shared refresh resolves,
// then replays it as attempt n+1. Only a request that carried a bearer
// token can skip the refresh because the store moved on since it was sent.
func (d *dispatch) awaitRefresh(n int, sent *WireRequest) {
	var pending *auth.Pending
	if sent.requiresAuth && sent.authToken != "" {
		pending = d.client.coordinator.RefreshIfStale(d.ctx, sent.authToken)
	} else {
		pending = d.client.coordinator.Refresh(d.ctx)
	}

	d.client.log.Debug().
		Str("request_id", d.call.id).
		Int("attempt", n).
		Msg("Waiting for token refresh")

	select {
	case <-pending.Done():
	case <-d.ctx.Done():
		d.cancelled()
		return
	}

	if _, err := pending.Result(); err != nil {
		d.call.complete(nil, NewTokenRefreshError(err))
		return
	}
	d.refreshed = true
	go d.attempt(n + 1)
}

func (d *dispatch) response(raw *RawResponse) *Response {
	return &Response{
		StatusCode: raw.StatusCode,
		Headers:    raw.Header,
		Body:       raw.Body,
		RequestID:  d.call.id,
		Stats: Stats{
			ElapsedTime: time.Since(d.start),
			Attempts:    d.call.Attempts(),
			CallCount:   d.seq,
		},
	}
}

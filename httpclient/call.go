package httpclient

import (
	"context"
	"sync"
	"sync/atomic"
)

// Call is a logical request in flight. It completes exactly once.
type Call struct {
	id       string
	done     chan struct{}
	once     sync.Once
	resp     *Response
	err      error
	attempts atomic.Int32
	cancel   context.CancelFunc
}

func newCall(id string, cancel context.CancelFunc) *Call {
	return &Call{id: id, done: make(chan struct{}), cancel: cancel}
}

// ID returns the request id shared by all attempts.
func (c *Call) ID() string { return c.id }

// Done is closed when the call has a result.
func (c *Call) Done() <-chan struct{} { return c.done }

// Wait blocks until the call completes.
func (c *Call) Wait() (*Response, error) {
	<-c.done
	return c.resp, c.err
}

// Completed reports whether the call has a result.
func (c *Call) Completed() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

// Cancel completes the call with a cancelled error unless it already has a
// result. Pending retries and refresh waits are abandoned.
func (c *Call) Cancel() { c.cancel() }

// Attempts returns how many physical attempts have started.
func (c *Call) Attempts() int { return int(c.attempts.Load()) }

// complete records the result; later calls are ignored. It reports whether
// this call set the result.
func (c *Call) complete(resp *Response, err error) bool {
	won := false
	c.once.Do(func() {
		c.resp, c.err = resp, err
		close(c.done)
		won = true
	})
	if won {
		// releases the cancellation watcher and any pending retry timer
		c.cancel()
	}
	return won
}

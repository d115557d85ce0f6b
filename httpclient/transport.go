package httpclient

import (
	"context"
	"io"
	"net/http"
)

// DefaultMaxResponseBytes bounds how much of a response body is read.
const DefaultMaxResponseBytes = 32 << 20

// RawResponse is a transport response with its body fully read.
type RawResponse struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Transport sends one attempt. Implementations must honor ctx.
type Transport interface {
	Send(ctx context.Context, req *WireRequest) (*RawResponse, error)
}

// TransportFunc adapts a function to Transport.
type TransportFunc func(ctx context.Context, req *WireRequest) (*RawResponse, error)

// Send calls f.
func (f TransportFunc) Send(ctx context.Context, req *WireRequest) (*RawResponse, error) {
	return f(ctx, req)
}

// HTTPTransport sends attempts through a *http.Client.
type HTTPTransport struct {
	client   *http.Client
	maxBytes int64
}

// NewHTTPTransport wraps client; nil uses a client with default settings.
// Timeouts are applied per attempt through the context, so client.Timeout
// should stay zero.
func NewHTTPTransport(client *http.Client) *HTTPTransport {
	if client == nil {
		client = &http.Client{}
	}
	return &HTTPTransport{client: client, maxBytes: DefaultMaxResponseBytes}
}

// Send executes req and reads the whole body.
func (t *HTTPTransport) Send(ctx context.Context, req *WireRequest) (*RawResponse, error) {
	httpReq, err := req.HTTPRequest(ctx)
	if err != nil {
		return nil, err
	}

	resp, err := t.client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, t.maxBytes))
	if err != nil {
		return nil, err
	}
	return &RawResponse{StatusCode: resp.StatusCode, Header: resp.Header, Body: body}, nil
}

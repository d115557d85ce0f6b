package httpclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"
)

// Stats describes how a logical request was served.
type Stats struct {
	// ElapsedTime spans from dispatch to completion, including retries,
	// backoff and refresh waits.
	ElapsedTime time.Duration
	// Attempts is the number of physical attempts sent.
	Attempts int
	// CallCount is the client-wide sequence number of this request.
	CallCount int64
}

// Response is the final response of a logical request.
type Response struct {
	StatusCode int
	Headers    http.Header
	Body       []byte
	RequestID  string
	Stats      Stats
}

// Mapper turns a successful response into a value.
type Mapper[T any] func(body []byte, resp *Response) (T, error)

// RawBytes returns the body unchanged.
func RawBytes(body []byte, _ *Response) ([]byte, error) { return body, nil }

// String returns the body as a string.
func String(body []byte, _ *Response) (string, error) { return string(body), nil }

// JSON decodes the body into a T.
func JSON[T any]() Mapper[T] {
	return func(body []byte, _ *Response) (T, error) {
		var v T
		err := json.Unmarshal(body, &v)
		return v, err
	}
}

// Fetch dispatches target and maps the response. The *Response is returned
// whenever one was received, including for server errors.
func Fetch[T any](ctx context.Context, c *Client, target Target, mapper Mapper[T]) (T, *Response, error) {
	var zero T
	resp, err := c.Do(ctx, target)
	if err != nil {
		return zero, resp, err
	}
	return mapResponse(resp, mapper)
}

func mapResponse[T any](resp *Response, mapper Mapper[T]) (T, *Response, error) {
	v, err := mapper(resp.Body, resp)
	if err != nil {
		var zero T
		var clientErr *Error
		if errors.As(err, &clientErr) {
			return zero, resp, clientErr
		}
		return zero, resp, NewDecodingError(err)
	}
	return v, resp, nil
}

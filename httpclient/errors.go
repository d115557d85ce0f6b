package httpclient

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorKind classifies a client failure.
type ErrorKind string

const (
	KindInvalidURL         ErrorKind = "invalid_url"
	KindEncodingFailed     ErrorKind = "encoding_failed"
	KindTransport          ErrorKind = "transport"
	KindServer             ErrorKind = "server"
	KindDecoding           ErrorKind = "decoding"
	KindCancelled          ErrorKind = "cancelled"
	KindTokenRefreshFailed ErrorKind = "token_refresh_failed"
	KindUnknown            ErrorKind = "unknown"
)

var kindLabels = map[ErrorKind]string{
	KindInvalidURL:         "invalid URL",
	KindEncodingFailed:     "encoding failed",
	KindTransport:          "transport error",
	KindServer:             "server error",
	KindDecoding:           "decoding failed",
	KindCancelled:          "cancelled",
	KindTokenRefreshFailed: "token refresh failed",
	KindUnknown:            "unknown error",
}

// Error is the single error type returned by the client.
type Error struct {
	Kind ErrorKind
	// StatusCode and Body are set for KindServer.
	StatusCode int
	Body       []byte
	Message    string
	Err        error
}

// Sentinels for errors.Is. They match any *Error of the same kind.
var (
	ErrInvalidURL         = &Error{Kind: KindInvalidURL}
	ErrEncodingFailed     = &Error{Kind: KindEncodingFailed}
	ErrTransport          = &Error{Kind: KindTransport}
	ErrServer             = &Error{Kind: KindServer}
	ErrDecoding           = &Error{Kind: KindDecoding}
	ErrCancelled          = &Error{Kind: KindCancelled}
	ErrTokenRefreshFailed = &Error{Kind: KindTokenRefreshFailed}
	ErrUnknown            = &Error{Kind: KindUnknown}
)

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString("httpclient: ")
	if label, ok := kindLabels[e.Kind]; ok {
		b.WriteString(label)
	} else {
		b.WriteString(string(e.Kind))
	}
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, " (status: %d)", e.StatusCode)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches sentinels by kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.StatusCode == 0 && t.Err == nil && t.Message == ""
}

// NewInvalidURLError reports a path that does not resolve to an absolute URL.
func NewInvalidURLError(path string, err error) *Error {
	return &Error{Kind: KindInvalidURL, Message: fmt.Sprintf("%q", path), Err: err}
}

// NewEncodingError reports parameters that could not be serialized.
func NewEncodingError(message string, err error) *Error {
	return &Error{Kind: KindEncodingFailed, Message: message, Err: err}
}

// NewTransportError wraps a transport failure.
func NewTransportError(err error) *Error {
	return &Error{Kind: KindTransport, Err: err}
}

// NewServerError reports a non-success status that was not retried.
func NewServerError(statusCode int, body []byte) *Error {
	return &Error{Kind: KindServer, StatusCode: statusCode, Body: body}
}

// NewDecodingError wraps a response mapping failure.
func NewDecodingError(err error) *Error {
	return &Error{Kind: KindDecoding, Err: err}
}

// NewCancelledError reports caller cancellation. cause may be nil.
func NewCancelledError(cause error) *Error {
	return &Error{Kind: KindCancelled, Err: cause}
}

// NewTokenRefreshError wraps the refresh failure that ended a request.
func NewTokenRefreshError(err error) *Error {
	return &Error{Kind: KindTokenRefreshFailed, Err: err}
}

// NewUnknownError reports an outcome with neither response nor error.
func NewUnknownError(message string) *Error {
	return &Error{Kind: KindUnknown, Message: message}
}

// IsKind checks if err is a client error of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// IsHTTPStatusError checks if err is a server error with the given status code.
func IsHTTPStatusError(err error, statusCode int) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == KindServer && e.StatusCode == statusCode
	}
	return false
}

// IsSuccessStatus checks if a status code represents success (2xx).
func IsSuccessStatus(statusCode int) bool {
	return statusCode >= 200 && statusCode < 300
}

// isAuthFailure reports the statuses that trigger a token refresh.
func isAuthFailure(statusCode int) bool {
	return statusCode == 401 || statusCode == 403
}

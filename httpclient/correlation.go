package httpclient

import "github.com/gaborage/courier/trace"

// RequestIDInterceptor stamps the logical request id and any traceparent
// from the context onto every attempt. Existing header values are kept.
type RequestIDInterceptor struct {
	NopInterceptor

	header string
}

// NewRequestIDInterceptor uses header for the id; empty selects X-Request-ID.
func NewRequestIDInterceptor(header string) *RequestIDInterceptor {
	if header == "" {
		header = trace.HeaderXRequestID
	}
	return &RequestIDInterceptor{header: header}
}

func (r *RequestIDInterceptor) WillSend(ctx *AttemptContext) {
	trace.InjectHeaders(ctx.Context(), ctx.Request.Header, r.header, ctx.RequestID)
}

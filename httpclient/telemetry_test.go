package httpclient

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"golang.org/x/time/rate"

	"github.com/gaborage/courier/internal/tracking"
	obtest "github.com/gaborage/courier/observability/testing"
	"github.com/gaborage/courier/trace"
)

func TestTracingInterceptorSpanPerAttempt(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	transport := &scriptedTransport{responses: []*RawResponse{
		respond(http.StatusServiceUnavailable, ""),
		respond(http.StatusOK, ""),
	}}
	c := newTestClient(t, transport, func(b *Builder) { b.WithInterceptor(NewTracingInterceptor(tp)) })

	_, err := c.Do(t.Context(), Target{Path: "a"})
	require.NoError(t, err)

	spans := recorder.Ended()
	require.Len(t, spans, 2)
	assert.Equal(t, "HTTP GET", spans[0].Name())
	assert.Equal(t, codes.Error, spans[0].Status().Code)
	assert.Equal(t, codes.Unset, spans[1].Status().Code)
	assert.NotEqual(t, spans[0].SpanContext().SpanID(), spans[1].SpanContext().SpanID())

	traceparent := transport.request(1).Header.Get(trace.HeaderTraceParent)
	require.NotEmpty(t, traceparent)
	assert.Contains(t, traceparent, spans[1].SpanContext().SpanID().String())
}

func TestTracingInterceptorRecordsTransportError(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	ti := NewTracingInterceptor(tp)

	actx, rctx := sampleAttempt("a")
	actx.ctx = context.Background()
	rctx.Response = nil
	rctx.Err = errors.New("reset")

	ti.WillSend(actx)
	ti.DidReceive(rctx)
	ti.DidReceive(rctx) // second call for the same attempt is ignored

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Error, spans[0].Status().Code)
	assert.Equal(t, "reset", spans[0].Status().Description)
}

func TestMetricsInterceptorRecordsAttempts(t *testing.T) {
	mp := obtest.NewTestMeterProvider()

	transport := &scriptedTransport{responses: []*RawResponse{
		respond(http.StatusBadGateway, ""),
		respond(http.StatusOK, ""),
	}}
	c := newTestClient(t, transport, func(b *Builder) { b.WithInterceptor(NewMetricsInterceptor(mp)) })

	_, err := c.Do(t.Context(), Target{Path: "a"})
	require.NoError(t, err)

	rm := mp.Collect(t)
	assert.EqualValues(t, 2, obtest.SumInt64(t, rm, tracking.MetricAttempts))
	assert.EqualValues(t, 2, obtest.HistogramCount(t, rm, tracking.MetricRequestDuration))
}

func TestTracingInterceptorExportsThroughProvider(t *testing.T) {
	tp := obtest.NewTestTraceProvider()
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	transport := &scriptedTransport{responses: []*RawResponse{respond(http.StatusNotFound, "")}}
	c := newTestClient(t, transport, func(b *Builder) { b.WithInterceptor(NewTracingInterceptor(tp)) })

	_, err := c.Do(t.Context(), Target{Path: "missing"})
	require.Error(t, err)

	span := obtest.NewSpanCollector(t, tp.Exporter).WithName("HTTP GET").AssertCount(1).First()
	obtest.AssertSpanAttribute(t, &span, "http.response.status_code", http.StatusNotFound)
	assert.Equal(t, codes.Unset, span.Status.Code)
}

func TestRequestIDInterceptor(t *testing.T) {
	transport := &scriptedTransport{}
	c := newTestClient(t, transport, func(b *Builder) { b.WithInterceptor(NewRequestIDInterceptor("")) })

	ctx := trace.WithRequestID(t.Context(), "corr-1")
	ctx = trace.WithTraceParent(ctx, "00-0123456789abcdef0123456789abcdef-0123456789abcdef-01")
	_, err := c.Do(ctx, Target{Path: "a"})
	require.NoError(t, err)

	sent := transport.request(0)
	assert.Equal(t, "corr-1", sent.Header.Get(trace.HeaderXRequestID))
	assert.Equal(t, "00-0123456789abcdef0123456789abcdef-0123456789abcdef-01", sent.Header.Get(trace.HeaderTraceParent))
}

func TestRequestIDInterceptorCustomHeaderKeepsCallerValue(t *testing.T) {
	transport := &scriptedTransport{}
	c := newTestClient(t, transport, func(b *Builder) { b.WithInterceptor(NewRequestIDInterceptor("X-Correlation-ID")) })

	_, err := c.Do(t.Context(), Target{Path: "a", Headers: map[string]string{"X-Correlation-ID": "mine"}})
	require.NoError(t, err)
	assert.Equal(t, "mine", transport.request(0).Header.Get("X-Correlation-ID"))
}

func TestRateLimitInterceptorPacesAttempts(t *testing.T) {
	rl := NewRateLimitInterceptor(50, 1, nil)
	assert.Equal(t, rate.Limit(50), rl.limiter.Limit())

	transport := &scriptedTransport{}
	c := newTestClient(t, transport, func(b *Builder) { b.WithInterceptor(rl) })

	start := time.Now()
	for range 3 {
		_, err := c.Do(t.Context(), Target{Path: "a"})
		require.NoError(t, err)
	}
	// burst 1 at 50/s: the 2nd and 3rd attempts wait ~20ms each
	assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
	assert.Equal(t, 3, transport.count())
}

func TestRateLimitInterceptorDisabled(t *testing.T) {
	rl := NewRateLimitInterceptor(0, 0, nil)
	assert.Equal(t, rate.Inf, rl.limiter.Limit())
}

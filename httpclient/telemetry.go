package httpclient

import (
	"fmt"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	semconv "go.opentelemetry.io/otel/semconv/v1.32.0"
	oteltrace "go.opentelemetry.io/otel/trace"

	"github.com/gaborage/courier/internal/tracking"
)

const tracerName = "github.com/gaborage/courier/httpclient"

// MetricsInterceptor records attempt duration and counts.
type MetricsInterceptor struct {
	NopInterceptor

	recorder *tracking.Recorder
}

// NewMetricsInterceptor records on mp, or the global provider when nil.
func NewMetricsInterceptor(mp metric.MeterProvider) *MetricsInterceptor {
	return &MetricsInterceptor{recorder: tracking.NewRecorder(mp)}
}

func (m *MetricsInterceptor) DidReceive(ctx *ResponseContext) {
	m.recorder.RecordAttempt(ctx.Context(), ctx.Request.Method, ctx.Request.URL.Host,
		ctx.Attempt, ctx.StatusCode(), ctx.Duration, ctx.Err)
}

// TracingInterceptor opens a client span per attempt and propagates it with
// W3C trace context headers.
type TracingInterceptor struct {
	NopInterceptor

	tracer     oteltrace.Tracer
	propagator propagation.TextMapPropagator

	spans sync.Map // attempt id -> oteltrace.Span
}

// NewTracingInterceptor traces on tp, or the global provider when nil.
func NewTracingInterceptor(tp oteltrace.TracerProvider) *TracingInterceptor {
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	return &TracingInterceptor{
		tracer:     tp.Tracer(tracerName),
		propagator: propagation.TraceContext{},
	}
}

func (t *TracingInterceptor) WillSend(ctx *AttemptContext) {
	req := ctx.Request
	spanCtx, span := t.tracer.Start(ctx.Context(), "HTTP "+req.Method,
		oteltrace.WithSpanKind(oteltrace.SpanKindClient),
		oteltrace.WithTimestamp(ctx.StartTime),
		oteltrace.WithAttributes(
			semconv.HTTPRequestMethodKey.String(req.Method),
			semconv.URLFull(req.URL.String()),
			semconv.ServerAddress(req.URL.Hostname()),
			attribute.String("courier.request_id", ctx.RequestID),
			attribute.Int("courier.attempt", ctx.Attempt),
		),
	)
	t.propagator.Inject(spanCtx, propagation.HeaderCarrier(req.Header))
	t.spans.Store(ctx.ID, span)
}

func (t *TracingInterceptor) DidReceive(ctx *ResponseContext) {
	v, ok := t.spans.LoadAndDelete(ctx.AttemptID)
	if !ok {
		return
	}
	span := v.(oteltrace.Span)

	status := ctx.StatusCode()
	if status > 0 {
		span.SetAttributes(semconv.HTTPResponseStatusCode(status))
	}
	switch {
	case ctx.Err != nil:
		span.RecordError(ctx.Err)
		span.SetStatus(codes.Error, ctx.Err.Error())
	case status >= 500:
		span.SetStatus(codes.Error, fmt.Sprintf("HTTP %d", status))
	}
	span.End()
}

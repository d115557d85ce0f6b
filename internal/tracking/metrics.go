// Package tracking owns the OpenTelemetry instruments shared by the HTTP
// dispatch engine and the token refresh coordinator.
package tracking

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	// MeterName is the instrumentation scope for every courier instrument.
	MeterName = "courier"

	// Metric names following OpenTelemetry semantic conventions where one exists
	MetricRequestDuration = "http.client.request.duration" // Histogram in seconds
	MetricAttempts        = "courier.client.attempts"      // Counter
	MetricRefreshes       = "courier.auth.refreshes"       // Counter
	MetricRefreshDuration = "courier.auth.refresh.duration"
	MetricRefreshWaiters  = "courier.auth.refresh.waiters" // Histogram of drained queue sizes

	attrMethod     = "http.request.method"
	attrStatusCode = "http.response.status_code"
	attrServer     = "server.address"
	attrErrorType  = "error.type"
	attrRetry      = "courier.retry"
	attrOutcome    = "courier.outcome"
)

// Refresh outcomes
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Recorder records attempt and refresh measurements. The zero value is not
// usable; construct with NewRecorder.
type Recorder struct {
	requestDuration metric.Float64Histogram
	attempts        metric.Int64Counter
	refreshes       metric.Int64Counter
	refreshDuration metric.Float64Histogram
	refreshWaiters  metric.Int64Histogram
}

// logMetricError logs a metric initialization error to stderr.
func logMetricError(metricName string, err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "WARNING: Failed to initialize metric %s: %v\n", metricName, err)
	}
}

// NewRecorder creates the instruments on mp. A nil provider falls back to
// the global one registered with otel.SetMeterProvider.
func NewRecorder(mp metric.MeterProvider) *Recorder {
	if mp == nil {
		mp = otel.GetMeterProvider()
	}
	meter := mp.Meter(MeterName)
	r := &Recorder{}

	var err error
	r.requestDuration, err = meter.Float64Histogram(
		MetricRequestDuration,
		metric.WithDescription("Duration of outbound HTTP attempts"),
		metric.WithUnit("s"),
	)
	logMetricError(MetricRequestDuration, err)

	r.attempts, err = meter.Int64Counter(
		MetricAttempts,
		metric.WithDescription("Number of physical attempts sent"),
		metric.WithUnit("{attempt}"),
	)
	logMetricError(MetricAttempts, err)

	r.refreshes, err = meter.Int64Counter(
		MetricRefreshes,
		metric.WithDescription("Number of token refresh operations"),
		metric.WithUnit("{refresh}"),
	)
	logMetricError(MetricRefreshes, err)

	r.refreshDuration, err = meter.Float64Histogram(
		MetricRefreshDuration,
		metric.WithDescription("Duration of token refresh operations"),
		metric.WithUnit("s"),
	)
	logMetricError(MetricRefreshDuration, err)

	r.refreshWaiters, err = meter.Int64Histogram(
		MetricRefreshWaiters,
		metric.WithDescription("Requests released by one refresh"),
		metric.WithUnit("{request}"),
	)
	logMetricError(MetricRefreshWaiters, err)

	return r
}

// RecordAttempt records one physical attempt. status is 0 when the
// transport failed before a response arrived.
func (r *Recorder) RecordAttempt(ctx context.Context, method, server string, attempt, status int, duration time.Duration, err error) {
	if r == nil {
		return
	}
	attrs := []attribute.KeyValue{
		attribute.String(attrMethod, method),
		attribute.Bool(attrRetry, attempt > 0),
	}
	if server != "" {
		attrs = append(attrs, attribute.String(attrServer, server))
	}
	if status > 0 {
		attrs = append(attrs, attribute.Int(attrStatusCode, status))
	}
	if errType := classifyAttempt(status, err); errType != "" {
		attrs = append(attrs, attribute.String(attrErrorType, errType))
	}

	opt := metric.WithAttributes(attrs...)
	if r.requestDuration != nil {
		r.requestDuration.Record(ctx, duration.Seconds(), opt)
	}
	if r.attempts != nil {
		r.attempts.Add(ctx, 1, opt)
	}
}

// RecordRefresh records one completed refresh and how many queued requests
// it released.
func (r *Recorder) RecordRefresh(ctx context.Context, duration time.Duration, waiters int, err error) {
	if r == nil {
		return
	}
	outcome := OutcomeSuccess
	if err != nil {
		outcome = OutcomeFailure
	}
	opt := metric.WithAttributes(attribute.String(attrOutcome, outcome))

	if r.refreshes != nil {
		r.refreshes.Add(ctx, 1, opt)
	}
	if r.refreshDuration != nil {
		r.refreshDuration.Record(ctx, duration.Seconds(), opt)
	}
	if r.refreshWaiters != nil {
		r.refreshWaiters.Record(ctx, int64(waiters), opt)
	}
}

// classifyAttempt returns the error.type attribute value, empty on success.
func classifyAttempt(status int, err error) string {
	switch {
	case err != nil:
		return fmt.Sprintf("%T", err)
	case status >= 400:
		return strconv.Itoa(status)
	default:
		return ""
	}
}

package httpclient

import (
	"strings"
	"sync"

	"github.com/gaborage/courier/logger"
)

// LogLevel controls LoggingInterceptor verbosity.
type LogLevel int

const (
	LogOff LogLevel = iota
	LogError
	LogInfo
	LogDebug
)

// DefaultMaxBodyLogBytes caps logged body payloads at debug level.
const DefaultMaxBodyLogBytes = 4096

const (
	logMsgRequest  = "HTTP client request"
	logMsgResponse = "HTTP client response"
	logMsgFailure  = "HTTP client attempt failed"
)

// ParseLogLevel maps "off", "error", "info" and "debug" to a LogLevel.
// Unknown names select LogInfo.
func ParseLogLevel(s string) LogLevel {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "off":
		return LogOff
	case "error":
		return LogError
	case "debug":
		return LogDebug
	default:
		return LogInfo
	}
}

func (l LogLevel) String() string {
	switch l {
	case LogOff:
		return "off"
	case LogError:
		return "error"
	case LogDebug:
		return "debug"
	default:
		return "info"
	}
}

// Sampler decides whether an attempt is logged.
type Sampler func() bool

// AlwaysSample logs every attempt.
func AlwaysSample() bool { return true }

// LoggingInterceptor logs each attempt and its outcome. Sampling is decided
// once per attempt so a request line is never logged without its response.
// Header values are masked with the logger's sensitive data filter.
type LoggingInterceptor struct {
	NopInterceptor

	log        logger.Logger
	level      LogLevel
	sampler    Sampler
	filter     *logger.SensitiveDataFilter
	maxBodyLog int

	sampled sync.Map // attempt id -> bool
}

// NewLoggingInterceptor creates a logging interceptor. A nil sampler logs
// every attempt.
func NewLoggingInterceptor(log logger.Logger, level LogLevel, sampler Sampler) *LoggingInterceptor {
	if sampler == nil {
		sampler = AlwaysSample
	}
	if log == nil {
		log = logger.Nop()
	}
	return &LoggingInterceptor{
		log:        log,
		level:      level,
		sampler:    sampler,
		filter:     logger.NewSensitiveDataFilter(nil),
		maxBodyLog: DefaultMaxBodyLogBytes,
	}
}

// Level returns the configured level.
func (l *LoggingInterceptor) Level() LogLevel { return l.level }

// WillSend logs the outbound request at info, with headers and body at debug.
func (l *LoggingInterceptor) WillSend(ctx *AttemptContext) {
	if l.level == LogOff {
		return
	}
	sample := l.sampler()
	l.sampled.Store(ctx.ID, sample)
	if !sample || l.level < LogInfo {
		return
	}

	req := ctx.Request
	event := l.log.Info().
		Str("direction", "outbound").
		Str("request_id", ctx.RequestID).
		Int("attempt", ctx.Attempt).
		Str("method", req.Method).
		Str("url", req.URL.String()).
		Int("header_count", len(req.Header)).
		Int("body_size", len(req.Body))
	event.Msg(logMsgRequest)

	if l.level >= LogDebug {
		debug := l.log.Debug().
			Str("request_id", ctx.RequestID).
			Int("attempt", ctx.Attempt).
			Interface("headers", l.filter.FilterHeaders(req.Header))
		if len(req.Body) > 0 {
			debug = debug.Str("body", l.truncate(req.Body))
		}
		debug.Msg(logMsgRequest)
	}
}

// DidReceive logs the outcome. Failures are logged at error level and are
// the only entries emitted at LogError.
func (l *LoggingInterceptor) DidReceive(ctx *ResponseContext) {
	sampledAny, seen := l.sampled.LoadAndDelete(ctx.AttemptID)
	if l.level == LogOff {
		return
	}
	sample, _ := sampledAny.(bool)
	if !seen {
		sample = l.sampler()
	}
	if !sample {
		return
	}

	status := ctx.StatusCode()
	failed := ctx.Err != nil || status >= 400
	if !failed && l.level < LogInfo {
		return
	}

	var event logger.LogEvent
	msg := logMsgResponse
	if failed {
		event = l.log.Error()
		msg = logMsgFailure
	} else {
		event = l.log.Info()
	}

	event = event.
		Str("direction", "inbound").
		Str("request_id", ctx.RequestID).
		Int("attempt", ctx.Attempt).
		Str("method", ctx.Request.Method).
		Str("url", ctx.Request.URL.String()).
		Int("status", status).
		Dur("elapsed", ctx.Duration)
	if ctx.Response != nil {
		event = event.Int("size", len(ctx.Response.Body))
	}
	if ctx.Err != nil {
		event = event.Err(ctx.Err)
	}
	event.Msg(msg)

	if l.level >= LogDebug && ctx.Response != nil {
		debug := l.log.Debug().
			Str("request_id", ctx.RequestID).
			Int("attempt", ctx.Attempt).
			Interface("headers", l.filter.FilterHeaders(ctx.Response.Header))
		if len(ctx.Response.Body) > 0 {
			debug = debug.Str("body", l.truncate(ctx.Response.Body))
		}
		debug.Msg(logMsgResponse)
	}
}

func (l *LoggingInterceptor) truncate(body []byte) string {
	if l.maxBodyLog > 0 && len(body) > l.maxBodyLog {
		return string(body[:l.maxBodyLog]) + "...(truncated)"
	}
	return string(body)
}

package logger

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type ctxKey int

const (
	requestIDKey ctxKey = iota
	userIDKey
)

// WithRequestID returns a copy of ctx carrying the request id.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// WithUserID returns a copy of ctx carrying the authenticated user id.
func WithUserID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, userIDKey, id)
}

// RequestIDFrom returns the request id stored by WithRequestID.
func RequestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// ContextLogger tags entries with the request id, user id and trace id found
// in a context.
type ContextLogger struct {
	logger *zap.Logger
}

func NewContextLogger(logger *zap.Logger) *ContextLogger {
	return &ContextLogger{logger: logger}
}

// For returns the base logger with the context's correlation fields.
func (cl *ContextLogger) For(ctx context.Context) *zap.Logger {
	var fields []zap.Field
	if id := RequestIDFrom(ctx); id != "" {
		fields = append(fields, zap.String("request_id", id))
	}
	if id, _ := ctx.Value(userIDKey).(string); id != "" {
		fields = append(fields, zap.String("user_id", id))
	}
	if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
		fields = append(fields, zap.String("trace_id", sc.TraceID().String()))
	}
	if len(fields) == 0 {
		return cl.logger
	}
	return cl.logger.With(fields...)
}

// RequestEntry is one finished HTTP request.
type RequestEntry struct {
	Method   string
	Route    string
	Status   int
	Duration time.Duration
	ClientIP string
	Bytes    int
}

// LogRequest writes an access log line. Server errors are logged at warn so
// they stand out from normal traffic.
func (cl *ContextLogger) LogRequest(ctx context.Context, e RequestEntry) {
	fields := []zap.Field{
		zap.String("method", e.Method),
		zap.String("route", e.Route),
		zap.Int("status", e.Status),
		zap.Int64("duration_ms", e.Duration.Milliseconds()),
		zap.String("client_ip", e.ClientIP),
		zap.Int("bytes", e.Bytes),
	}
	log := cl.For(ctx)
	if e.Status >= 500 {
		log.Warn("http_request", fields...)
		return
	}
	log.Info("http_request", fields...)
}

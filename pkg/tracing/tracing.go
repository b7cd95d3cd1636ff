package tracing

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/jaeger"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	tracesdk "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.4.0"
	"go.opentelemetry.io/otel/trace"
)

const (
	tracerName     = "reelgate"
	serviceVersion = "0.1.0"
)

// TracerProvider owns the SDK provider when tracing is enabled. The zero
// value is a no-op.
type TracerProvider struct {
	tp *tracesdk.TracerProvider
}

type Config struct {
	Enabled     bool
	ServiceName string
	JaegerURL   string
	Environment string
	SampleRate  float64
}

// Init installs a global Jaeger-exporting provider and the W3C propagators.
// Child spans follow their parent's sampling decision.
func Init(cfg Config) (*TracerProvider, error) {
	if !cfg.Enabled {
		return &TracerProvider{}, nil
	}

	exp, err := jaeger.New(jaeger.WithCollectorEndpoint(jaeger.WithEndpoint(cfg.JaegerURL)))
	if err != nil {
		return nil, fmt.Errorf("failed to create Jaeger exporter: %w", err)
	}

	res, err := resource.New(context.Background(),
		resource.WithAttributes(
			semconv.ServiceNameKey.String(cfg.ServiceName),
			semconv.ServiceVersionKey.String(serviceVersion),
			semconv.DeploymentEnvironmentKey.String(cfg.Environment),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	tp := tracesdk.NewTracerProvider(
		tracesdk.WithBatcher(exp),
		tracesdk.WithResource(res),
		tracesdk.WithSampler(tracesdk.ParentBased(tracesdk.TraceIDRatioBased(cfg.SampleRate))),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return &TracerProvider{tp: tp}, nil
}

// Shutdown flushes pending spans.
func (tp *TracerProvider) Shutdown(ctx context.Context) error {
	if tp.tp == nil {
		return nil
	}
	return tp.tp.Shutdown(ctx)
}

func StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, name, opts...)
}

// AddSpanAttributes annotates the span active in ctx, if it records.
func AddSpanAttributes(ctx context.Context, attrs ...attribute.KeyValue) {
	if span := trace.SpanFromContext(ctx); span.IsRecording() {
		span.SetAttributes(attrs...)
	}
}

// RecordError marks the span active in ctx as failed.
func RecordError(ctx context.Context, err error) {
	if span := trace.SpanFromContext(ctx); span.IsRecording() {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}

var (
	VideoIDKey    = attribute.Key("video.id")
	UserIDKey     = attribute.Key("user.id")
	RequestIDKey  = attribute.Key("request.id")
	CollectionKey = attribute.Key("collection")
	PlatformKey   = attribute.Key("platform")
)

// TraceHTTPRequest opens a server span named after the route template.
func TraceHTTPRequest(ctx context.Context, method, route string) (context.Context, trace.Span) {
	return StartSpan(ctx, method+" "+route,
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(
			semconv.HTTPMethodKey.String(method),
			semconv.HTTPRouteKey.String(route),
		),
	)
}

// EndHTTPRequest records the response on span. Only server errors mark the
// span failed; 4xx answers are the client's problem.
func EndHTTPRequest(span trace.Span, status, size int, errMsg string) {
	span.SetAttributes(
		semconv.HTTPStatusCodeKey.Int(status),
		attribute.Int("http.response_size", size),
	)
	if status >= 500 {
		span.SetStatus(codes.Error, errMsg)
	}
}

func TraceWebSocketMessage(ctx context.Context, messageType, collection string) (context.Context, trace.Span) {
	return StartSpan(ctx, "websocket."+messageType,
		trace.WithAttributes(
			attribute.String("websocket.message_type", messageType),
			CollectionKey.String(collection),
		),
	)
}

func TracePlatform(ctx context.Context, platform, operation, videoID string) (context.Context, trace.Span) {
	return StartSpan(ctx, "platform."+operation,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			PlatformKey.String(platform),
			VideoIDKey.String(videoID),
		),
	)
}

func TraceStorage(ctx context.Context, operation, key string) (context.Context, trace.Span) {
	return StartSpan(ctx, "storage."+operation,
		trace.WithAttributes(attribute.String("storage.key", key)),
	)
}

// TraceRedis opens a client span for one command, or for a pipeline when
// commands is greater than one.
func TraceRedis(ctx context.Context, operation string, commands int) (context.Context, trace.Span) {
	attrs := []attribute.KeyValue{
		semconv.DBSystemRedis,
		semconv.DBOperationKey.String(operation),
	}
	if commands > 1 {
		attrs = append(attrs, attribute.Int("db.redis.pipeline_length", commands))
	}
	return StartSpan(ctx, "redis."+operation,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attrs...),
	)
}

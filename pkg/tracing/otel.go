package tracing

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"runtime"
	"time"

	otelpyroscope "github.com/grafana/otel-profiling-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	sdkresource "go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
)

var (
	tracer     trace.Tracer
	tracerName = "github.com/target-san/demo-webserver"
)

// InitTracer installs an OTLP/gRPC tracer provider, wrapped for Pyroscope
// span profiles, and returns its shutdown function.
func InitTracer(ctx context.Context, serviceName string) (func(context.Context) error, error) {
	endpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	if endpoint == "" {
		endpoint = "alloy.observability:4317"
	}

	exporter, err := otlptrace.New(
		ctx,
		otlptracegrpc.NewClient(
			otlptracegrpc.WithEndpoint(endpoint),
			otlptracegrpc.WithInsecure(),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("creating OTLP trace exporter: %w", err)
	}

	version := os.Getenv("SERVICE_VERSION")
	if version == "" {
		version = "1.0.0"
	}

	resource := sdkresource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(serviceName),
		semconv.ServiceVersion(version),
		semconv.DeploymentEnvironment(getEnvironment()),
		attribute.String("service.instance.id", getInstanceID()),
		attribute.String("go.version", runtime.Version()),
	)

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter,
			sdktrace.WithBatchTimeout(5*time.Second),
			sdktrace.WithMaxExportBatchSize(512),
		),
		sdktrace.WithResource(resource),
		sdktrace.WithSampler(createSampler()),
	)

	otel.SetTracerProvider(otelpyroscope.NewTracerProvider(tp))
	otel.SetTextMapPropagator(
		propagation.NewCompositeTextMapPropagator(
			propagation.TraceContext{},
			propagation.Baggage{},
		),
	)

	tracer = otel.GetTracerProvider().Tracer(
		tracerName,
		trace.WithInstrumentationVersion(version),
	)

	return tp.Shutdown, nil
}

// StartSpan starts a new span with the given name and options
func StartSpan(ctx context.Context, spanName string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	if tracer == nil {
		return otel.Tracer(tracerName).Start(ctx, spanName, opts...)
	}
	return tracer.Start(ctx, spanName, opts...)
}

// StartSpanWithAttributes starts a new span with the given name and attributes
func StartSpanWithAttributes(ctx context.Context, spanName string, attrs []attribute.KeyValue, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	opts = append(opts, trace.WithAttributes(attrs...))
	return StartSpan(ctx, spanName, opts...)
}

// RecordError records an error in the current span with additional context
func RecordError(span trace.Span, err error, description string, attrs ...attribute.KeyValue) {
	if span == nil || err == nil {
		return
	}

	errorAttrs := []attribute.KeyValue{
		attribute.String("error.type", fmt.Sprintf("%T", err)),
		attribute.String("error.message", err.Error()),
	}
	if description != "" {
		errorAttrs = append(errorAttrs, attribute.String("error.description", description))
	}
	errorAttrs = append(errorAttrs, attrs...)

	span.RecordError(err, trace.WithAttributes(errorAttrs...))
	span.SetStatus(codes.Error, description)
}

func SetSpanAttributes(span trace.Span, attrs ...attribute.KeyValue) {
	if span == nil {
		return
	}
	span.SetAttributes(attrs...)
}

func WithSpanKind(kind trace.SpanKind) trace.SpanStartOption {
	return trace.WithSpanKind(kind)
}

// InjectHTTPHeaders propagates the span in ctx to an outbound request.
func InjectHTTPHeaders(ctx context.Context, h http.Header) {
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(h))
}

func HTTPStatusAttributes(statusCode int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Int("http.status_code", statusCode),
	}
}

func BatchAttributes(batchID, destination string, size int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("batch.id", batchID),
		attribute.String("batch.destination", destination),
		attribute.Int("batch.size", size),
	}
}

func BatchResultAttributes(succeeded, failed, duplicates int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Int("batch.succeeded", succeeded),
		attribute.Int("batch.failed", failed),
		attribute.Int("batch.duplicates", duplicates),
	}
}

func QueryAttributes(url string, value uint32) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("http.method", http.MethodPost),
		attribute.String("http.url", url),
		attribute.Int64("query.value", int64(value)),
	}
}

func getEnvironment() string {
	env := os.Getenv("ENVIRONMENT")
	if env == "" {
		env = os.Getenv("ENV")
	}
	if env == "" {
		env = "development"
	}
	return env
}

func getInstanceID() string {
	instanceID := os.Getenv("INSTANCE_ID")
	if instanceID == "" {
		instanceID = os.Getenv("HOSTNAME")
	}
	if instanceID == "" {
		instanceID = "unknown"
	}
	return instanceID
}

// createSampler picks a sampler from OTEL_TRACE_SAMPLING_RATE
func createSampler() sdktrace.Sampler {
	switch os.Getenv("OTEL_TRACE_SAMPLING_RATE") {
	case "0":
		return sdktrace.NeverSample()
	case "1", "":
		return sdktrace.AlwaysSample()
	default:
		return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(0.1))
	}
}

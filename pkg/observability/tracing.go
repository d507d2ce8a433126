package observability

import (
	"context"
	"fmt"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.34.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

const (
	defaultServiceName  = "bit-identity"
	defaultOTLPEndpoint = "localhost:4317"
)

// TracerProvider hands out the service tracer. When tracing is disabled it is
// backed by a no-op tracer and needs no collector.
type TracerProvider struct {
	provider *sdktrace.TracerProvider
	tracer   trace.Tracer
}

// TracingConfig holds tracing configuration
type TracingConfig struct {
	Enabled     bool
	ServiceName string
	Version     string
	Environment string
	Endpoint    string
	Insecure    bool
	// SampleRate of zero picks a rate from Environment.
	SampleRate float64
}

// InitTracing installs an OTLP-exporting provider and the W3C propagators as
// the otel globals.
func InitTracing(ctx context.Context, config TracingConfig) (*TracerProvider, error) {
	if config.ServiceName == "" {
		config.ServiceName = defaultServiceName
	}
	if !config.Enabled {
		return NewNoopTracerProvider(config.ServiceName), nil
	}

	exporter, err := newOTLPExporter(ctx, config.Endpoint, config.Insecure)
	if err != nil {
		return nil, fmt.Errorf("failed to create exporter: %w", err)
	}
	res, err := resource.Merge(resource.Default(), serviceResource(config))
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	rate := config.SampleRate
	if rate == 0 {
		rate = defaultSampleRate(config.Environment)
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(rate))),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))

	return &TracerProvider{provider: tp, tracer: tp.Tracer(config.ServiceName)}, nil
}

// NewNoopTracerProvider returns a provider whose spans are never recorded
func NewNoopTracerProvider(serviceName string) *TracerProvider {
	return &TracerProvider{tracer: noop.NewTracerProvider().Tracer(serviceName)}
}

// newOTLPExporter exports over gRPC. A local collector is always dialled without TLS.
func newOTLPExporter(ctx context.Context, endpoint string, insecure bool) (sdktrace.SpanExporter, error) {
	if endpoint == "" {
		endpoint = defaultOTLPEndpoint
	}

	opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(endpoint)}
	if insecure || endpoint == defaultOTLPEndpoint || endpoint == "127.0.0.1:4317" {
		opts = append(opts, otlptracegrpc.WithInsecure())
	}
	return otlptrace.New(ctx, otlptracegrpc.NewClient(opts...))
}

func serviceResource(config TracingConfig) *resource.Resource {
	version := config.Version
	if version == "" {
		version = "unknown"
	}

	attrs := []attribute.KeyValue{
		semconv.ServiceName(config.ServiceName),
		semconv.ServiceVersion(version),
		semconv.DeploymentEnvironmentName(config.Environment),
	}
	if fn := os.Getenv("AWS_LAMBDA_FUNCTION_NAME"); fn != "" {
		attrs = append(attrs,
			semconv.CloudProviderAWS,
			semconv.FaaSName(fn),
			semconv.CloudRegion(os.Getenv("AWS_REGION")),
		)
	}
	if host, err := os.Hostname(); err == nil {
		attrs = append(attrs, semconv.HostName(host))
	}
	return resource.NewWithAttributes(semconv.SchemaURL, attrs...)
}

func defaultSampleRate(environment string) float64 {
	switch environment {
	case "production":
		return 0.1
	case "staging":
		return 0.5
	default:
		return 1.0
	}
}

func (tp *TracerProvider) Tracer() trace.Tracer {
	return tp.tracer
}

// StartSpan starts a span on the provider's tracer.
func (tp *TracerProvider) StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return tp.tracer.Start(ctx, name, opts...)
}

// Shutdown flushes pending spans. It is a no-op for a disabled provider.
func (tp *TracerProvider) Shutdown(ctx context.Context) error {
	if tp.provider == nil {
		return nil
	}
	return tp.provider.Shutdown(ctx)
}

package o11y

import (
	"context"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// Attribute keys used on span attributes and clog context values.
const (
	AttrRegion       = "region"
	AttrInstanceID   = "instance_id"
	AttrInstanceType = "instance_type"
	AttrCommand      = "command"
)

// Shutdown flushes and stops an exporter pipeline.
type Shutdown func(context.Context) error

func noop(context.Context) error { return nil }

const serviceName = "region-proxy"

// newResource describes this process to the collector. OTEL_SERVICE_NAME
// and OTEL_RESOURCE_ATTRIBUTES take precedence over the built-in values.
func newResource(ctx context.Context, version string) (*resource.Resource, error) {
	return resource.New(ctx,
		resource.WithAttributes(
			attribute.String("service.name", serviceName),
			attribute.String("service.version", version),
		),
		resource.WithProcessPID(),
		resource.WithTelemetrySDK(),
		resource.WithFromEnv(),
	)
}

// SetupTracing configures the global otel TracerProvider. When
// OTEL_EXPORTER_OTLP_TRACES_ENDPOINT is set, spans are exported via OTLP/HTTP;
// otherwise the global no-op provider stays in place.
func SetupTracing(ctx context.Context, version string) (Shutdown, error) {
	if os.Getenv("OTEL_EXPORTER_OTLP_TRACES_ENDPOINT") == "" {
		return noop, nil
	}

	exporter, err := otlptracehttp.New(ctx)
	if err != nil {
		return nil, err
	}

	res, err := newResource(ctx, version)
	if err != nil {
		return nil, err
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithSyncer(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)
	otel.SetTracerProvider(provider)

	return provider.Shutdown, nil
}

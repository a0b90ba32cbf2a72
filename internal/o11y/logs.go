package o11y

import (
	"context"
	"log/slog"
	"os"

	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploghttp"
	sdklog "go.opentelemetry.io/otel/sdk/log"
)

const instrumentationName = "github.com/chainguard-dev/region-proxy"

// SetupLogs returns a slog handler exporting records via OTLP/HTTP when
// OTEL_EXPORTER_OTLP_LOGS_ENDPOINT is set. The handler is nil otherwise.
func SetupLogs(ctx context.Context, version string) (slog.Handler, Shutdown, error) {
	if os.Getenv("OTEL_EXPORTER_OTLP_LOGS_ENDPOINT") == "" {
		return nil, noop, nil
	}

	exporter, err := otlploghttp.New(ctx)
	if err != nil {
		return nil, nil, err
	}

	res, err := newResource(ctx, version)
	if err != nil {
		return nil, nil, err
	}

	provider := sdklog.NewLoggerProvider(
		sdklog.WithProcessor(sdklog.NewBatchProcessor(exporter)),
		sdklog.WithResource(res),
	)
	return otelslog.NewHandler(instrumentationName, otelslog.WithLoggerProvider(provider)), provider.Shutdown, nil
}

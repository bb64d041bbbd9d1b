package telemetry

import (
	"context"
	"io"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.30.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"google.golang.org/grpc"

	"github.com/rbright/voyc/internal/config"
	"github.com/rbright/voyc/internal/version"
)

// TracerName names the instrumentation scope of dictation spans.
const TracerName = "github.com/rbright/voyc/internal/dictation"

// Tracing is an installed tracer provider and its shutdown hook.
type Tracing struct {
	Provider trace.TracerProvider
	Shutdown func(context.Context) error
}

// Tracer returns the dictation tracer.
func (t Tracing) Tracer() trace.Tracer {
	return t.Provider.Tracer(TracerName)
}

// SetupTracing exports to OTLP when an endpoint is configured, to stdout when
// trace_stdout is set, and otherwise installs a no-op provider.
func SetupTracing(ctx context.Context, cfg config.TelemetryConfig, stdout io.Writer, logger *slog.Logger) (Tracing, error) {
	endpoint := strings.TrimSpace(cfg.OTLPEndpoint)
	if endpoint == "" && !cfg.TraceStdout {
		return Tracing{
			Provider: noop.NewTracerProvider(),
			Shutdown: func(context.Context) error { return nil },
		}, nil
	}

	res, err := resource.New(ctx, resource.WithAttributes(
		semconv.ServiceName("voyc"),
		semconv.ServiceVersion(version.Version),
	))
	if err != nil {
		return Tracing{}, err
	}

	var exporter sdktrace.SpanExporter
	if endpoint != "" {
		opts := []otlptracegrpc.Option{
			otlptracegrpc.WithEndpoint(endpoint),
			otlptracegrpc.WithDialOption(grpc.WithUserAgent("voyc/" + version.Resolved())),
		}
		if cfg.OTLPInsecure {
			opts = append(opts, otlptracegrpc.WithInsecure())
		}
		exporter, err = otlptracegrpc.New(ctx, opts...)
		if err != nil {
			return Tracing{}, err
		}
		if logger != nil {
			logger.Info("tracing initialized", "exporter", "otlp", "endpoint", endpoint)
		}
	} else {
		exporter, err = stdouttrace.New(stdouttrace.WithWriter(stdout))
		if err != nil {
			return Tracing{}, err
		}
		if logger != nil {
			logger.Info("tracing initialized", "exporter", "stdout")
		}
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	return Tracing{Provider: tp, Shutdown: tp.Shutdown}, nil
}

// Package o11y sets up logging, tracing and the Prometheus registry shared by
// the API server.
package o11y

import (
	"context"
	"io"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// ServiceName identifies this process in traces.
const ServiceName = "ride-dispatch"

// Options configures Setup.
type Options struct {
	// LogLevel is one of debug, info, warn, error. Unknown values mean info.
	LogLevel string
	// LogOutput receives JSON log lines.
	LogOutput io.Writer
	// OTLPEndpoint is the OTLP/HTTP collector host:port. Empty disables export.
	OTLPEndpoint string
}

// Observability bundles the process-wide logger, tracer provider and metrics
// registry built by Setup.
type Observability struct {
	Logger   *slog.Logger
	Tracer   *sdktrace.TracerProvider
	Registry *prometheus.Registry
}

// Setup builds the logger, installs the global TracerProvider and propagator,
// and creates a Registry with the Go and process collectors. The returned
// shutdown function flushes pending spans.
func Setup(ctx context.Context, opts Options) (*Observability, func(context.Context) error, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(opts.LogLevel)); err != nil {
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(opts.LogOutput, &slog.HandlerOptions{Level: level}))

	res, err := resource.Merge(resource.Default(), resource.NewSchemaless(
		attribute.String("service.name", ServiceName),
	))
	if err != nil {
		return nil, nil, err
	}

	tpOpts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.AlwaysSample())),
	}
	if opts.OTLPEndpoint != "" {
		exporter, err := otlptracehttp.New(ctx,
			otlptracehttp.WithInsecure(),
			otlptracehttp.WithEndpoint(opts.OTLPEndpoint),
		)
		if err != nil {
			return nil, nil, err
		}
		tpOpts = append(tpOpts, sdktrace.WithBatcher(exporter))
	}
	tp := sdktrace.NewTracerProvider(tpOpts...)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return &Observability{
		Logger:   logger,
		Tracer:   tp,
		Registry: registry,
	}, tp.Shutdown, nil
}

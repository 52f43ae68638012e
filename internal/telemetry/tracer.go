// Package telemetry installs the OpenTelemetry tracer provider used by the
// HTTP server and API assembly spans.
package telemetry

import (
	"context"
	"io"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
)

// Options configures InitTracer.
type Options struct {
	ServiceName string
	// Writer receives the exported spans. nil means stdout.
	Writer io.Writer
	// SampleRatio is the fraction of new traces recorded. Values outside
	// (0, 1) record every trace. Child spans follow their parent.
	SampleRatio float64
}

func (o Options) sampler() sdktrace.Sampler {
	if o.SampleRatio <= 0 || o.SampleRatio >= 1 {
		return sdktrace.ParentBased(sdktrace.AlwaysSample())
	}
	return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(o.SampleRatio))
}

// InitTracer installs a global tracer provider exporting spans as JSON. The
// returned function flushes and stops the provider.
func InitTracer(opts Options, logger *slog.Logger) (func(context.Context) error, error) {
	exporterOpts := []stdouttrace.Option{stdouttrace.WithPrettyPrint()}
	if opts.Writer != nil {
		exporterOpts = append(exporterOpts, stdouttrace.WithWriter(opts.Writer))
	}
	exporter, err := stdouttrace.New(exporterOpts...)
	if err != nil {
		return nil, err
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			"",
			semconv.ServiceName(opts.ServiceName),
		),
	)
	if err != nil {
		return nil, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(opts.sampler()),
	)

	otel.SetTracerProvider(tp)

	logger.Info("OpenTelemetry initialized",
		slog.String("service", opts.ServiceName),
		slog.Float64("sample_ratio", opts.SampleRatio),
	)

	return tp.Shutdown, nil
}

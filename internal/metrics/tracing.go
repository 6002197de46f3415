// ABOUTME: OpenTelemetry span helpers for exec and blob handling, and tracer provider setup.
// ABOUTME: Spans go to the global provider, which InitTracing points at a stdout or OTLP exporter.

package metrics

import (
	"context"
	"fmt"
	"io"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/2389/coven-link"

// TracingOptions selects the span exporter.
type TracingOptions struct {
	ServiceName  string
	Exporter     string // none, stdout, otlp
	OTLPEndpoint string
	OTLPHeaders  map[string]string
	// Writer receives stdout exporter output. Defaults to the exporter's own stdout.
	Writer io.Writer
}

// InitTracing installs a global tracer provider for opts and returns its
// shutdown func, which flushes buffered spans. With the none exporter the
// global provider is left alone and shutdown is a no-op.
func InitTracing(ctx context.Context, opts TracingOptions) (func(context.Context) error, error) {
	noop := func(context.Context) error { return nil }

	var exporter sdktrace.SpanExporter
	var err error
	switch opts.Exporter {
	case "", "none":
		return noop, nil
	case "stdout":
		var stdoutOpts []stdouttrace.Option
		if opts.Writer != nil {
			stdoutOpts = append(stdoutOpts, stdouttrace.WithWriter(opts.Writer))
		}
		exporter, err = stdouttrace.New(stdoutOpts...)
	case "otlp":
		exporter, err = otlpExporter(ctx, opts)
	default:
		return noop, fmt.Errorf("unknown trace exporter %q", opts.Exporter)
	}
	if err != nil {
		return noop, fmt.Errorf("creating %s trace exporter: %w", opts.Exporter, err)
	}

	name := opts.ServiceName
	if name == "" {
		name = "coven-link"
	}
	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(resource.NewSchemaless(attribute.String("service.name", name))),
	)
	otel.SetTracerProvider(provider)
	return provider.Shutdown, nil
}

func otlpExporter(ctx context.Context, opts TracingOptions) (sdktrace.SpanExporter, error) {
	var clientOpts []otlptracehttp.Option
	if strings.Contains(opts.OTLPEndpoint, "://") {
		clientOpts = append(clientOpts, otlptracehttp.WithEndpointURL(opts.OTLPEndpoint))
	} else {
		clientOpts = append(clientOpts, otlptracehttp.WithEndpoint(opts.OTLPEndpoint))
	}
	if len(opts.OTLPHeaders) > 0 {
		clientOpts = append(clientOpts, otlptracehttp.WithHeaders(opts.OTLPHeaders))
	}
	return otlptrace.New(ctx, otlptracehttp.NewClient(clientOpts...))
}

// StartSpan starts a span named name with the given attributes.
func StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, name, trace.WithAttributes(attrs...))
}

// EndSpan records err on the span, if any, and ends it.
func EndSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	"github.com/lynxops/sentinel/internal/store"
)

// SubjectIDKey links a span to the task or incident it covers. Spans carrying
// this attribute are mirrored into the trace store on end.
const SubjectIDKey = attribute.Key("sentinel.subject_id")

// Subject returns the span attribute tying a span to a subject record.
func Subject(id string) attribute.KeyValue {
	return SubjectIDKey.String(id)
}

// NewProvider builds the tracer provider: spans always land in the trace
// store; OTLP export is opt-in via a non-empty endpoint.
func NewProvider(ctx context.Context, serviceName string, endpoint string, st store.Store) (*sdktrace.TracerProvider, error) {
	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(serviceName),
		),
	)
	if err != nil {
		return nil, err
	}

	opts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithSpanProcessor(NewStoreSpanProcessor(st)),
	}

	if endpoint != "" {
		exporter, err := otlptracehttp.New(ctx,
			otlptracehttp.WithEndpointURL(endpoint),
		)
		if err != nil {
			return nil, err
		}
		opts = append(opts, sdktrace.WithBatcher(exporter))
	}

	return sdktrace.NewTracerProvider(opts...), nil
}

// Setup initialises tracing for the given service and registers the global
// provider. The returned shutdown function flushes pending spans and should
// be deferred by the caller.
func Setup(ctx context.Context, serviceName string, endpoint string, st store.Store) (shutdown func(context.Context) error, err error) {
	tp, err := NewProvider(ctx, serviceName, endpoint, st)
	if err != nil {
		return func(context.Context) error { return nil }, err
	}

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})

	return tp.Shutdown, nil
}

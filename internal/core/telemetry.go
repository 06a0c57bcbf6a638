// AngelaMos | 2026
// telemetry.go

package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/carterperez-dev/pitchfork-economy/internal/config"
)

const (
	tracerName      = "github.com/carterperez-dev/pitchfork-economy"
	exportTimeout   = 5 * time.Second
	flushTimeout    = 10 * time.Second
	defaultSampling = 0.1
)

// Tracing owns the process tracer provider. The api and the bot each
// start one, tagged with their component name so both show up as
// separate services sharing one trace backend.
type Tracing struct {
	provider  *sdktrace.TracerProvider
	component string
}

// StartTracing installs an OTLP exporter as the global provider. When
// tracing is disabled it returns a Tracing whose Shutdown is a no-op and
// StartSpan keeps using otel's default no-op provider.
func StartTracing(
	ctx context.Context,
	cfg config.OtelConfig,
	app config.AppConfig,
	component string,
) (*Tracing, error) {
	t := &Tracing{component: component}
	if !cfg.Enabled || cfg.Endpoint == "" {
		return t, nil
	}

	creds := credentials.NewClientTLSFromCert(nil, "")
	if cfg.Insecure {
		creds = insecure.NewCredentials()
	}

	exporter, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(cfg.Endpoint),
		otlptracegrpc.WithTimeout(exportTimeout),
		otlptracegrpc.WithTLSCredentials(creds),
	)
	if err != nil {
		return nil, fmt.Errorf("otlp exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(cfg.ServiceName+"-"+component),
			semconv.ServiceVersion(app.Version),
			semconv.DeploymentEnvironment(app.Environment),
			attribute.String("pitchfork.component", component),
		),
		resource.WithHost(),
	)
	if err != nil {
		return nil, fmt.Errorf("tracing resource: %w", err)
	}

	ratio := cfg.SampleRate
	if ratio <= 0 || ratio > 1 {
		ratio = defaultSampling
	}

	t.provider = sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter, sdktrace.WithBatchTimeout(exportTimeout)),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(ratio))),
	)

	otel.SetTracerProvider(t.provider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return t, nil
}

func (t *Tracing) Enabled() bool {
	return t != nil && t.provider != nil
}

// Shutdown flushes buffered spans.
func (t *Tracing) Shutdown(ctx context.Context) error {
	if !t.Enabled() {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, flushTimeout)
	defer cancel()

	if err := t.provider.Shutdown(ctx); err != nil {
		return fmt.Errorf("flush %s spans: %w", t.component, err)
	}
	return nil
}

func StartSpan(
	ctx context.Context,
	name string,
	attrs ...attribute.KeyValue,
) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, name, trace.WithAttributes(attrs...))
}

func TraceIDFromContext(ctx context.Context) string {
	sc := trace.SpanFromContext(ctx).SpanContext()
	if !sc.IsValid() {
		return ""
	}
	return sc.TraceID().String()
}

// SetSpanError records err on the active span. Economy outcomes such as
// an insufficient balance are tagged with their code and leave the span
// status untouched; anything else marks the span failed.
func SetSpanError(ctx context.Context, err error) {
	if err == nil {
		return
	}
	span := trace.SpanFromContext(ctx)

	if appErr, ok := EconomyError(err); ok {
		span.SetAttributes(attribute.String("economy.outcome", appErr.Code))
		return
	}
	if errors.Is(err, context.Canceled) {
		span.SetAttributes(attribute.Bool("canceled", true))
		return
	}

	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

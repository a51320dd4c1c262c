// Package otelx configures the global OpenTelemetry tracer provider.
package otelx

import (
	"context"
	"os"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
)

type Config struct {
	Enabled      bool
	ServiceName  string
	OTLPEndpoint string // host:port of the OTLP/gRPC collector
	SampleRatio  float64
}

func ConfigFromEnv(serviceName string) Config {
	cfg := Config{
		Enabled:      true,
		ServiceName:  serviceName,
		OTLPEndpoint: getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "jaeger:4317"),
		SampleRatio:  1.0,
	}
	if v := getenv("OTEL_ENABLED", "true"); v == "false" || v == "0" {
		cfg.Enabled = false
	}
	if f, err := strconv.ParseFloat(getenv("OTEL_SAMPLING_RATIO", "1"), 64); err == nil && f >= 0 && f <= 1 {
		cfg.SampleRatio = f
	}
	return cfg
}

// Setup installs the propagators and, when enabled, a batching OTLP tracer
// provider. The returned func belongs in graceful shutdown.
func Setup(ctx context.Context, cfg Config) (func(context.Context) error, error) {
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	if !cfg.Enabled {
		return func(context.Context) error { return nil }, nil
	}

	exp, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(cfg.OTLPEndpoint),
		otlptracegrpc.WithInsecure(),
		otlptracegrpc.WithTimeout(3*time.Second),
	)
	if err != nil {
		return nil, err
	}

	res, err := resource.New(ctx, resource.WithAttributes(
		semconv.ServiceName(cfg.ServiceName),
	))
	if err != nil {
		return nil, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SampleRatio))),
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	return tp.Shutdown, nil
}

func getenv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

package observability

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otlptracegrpc "go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	promexporter "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	noopmetric "go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"net/http"
)

const (
	tracerName = "cloudimpact"
	meterName  = "cloudimpact"
)

// Providers holds the initialized observability providers for one process.
type Providers struct {
	Tracer trace.Tracer
	Meter  metric.Meter
	Logger *slog.Logger
	// MetricsHandler serves the Prometheus scrape endpoint when
	// Config.EnableMetrics is set; nil otherwise. The engine never starts
	// its own listener (out of the core's scope) — callers mount this on
	// whatever HTTP surface they already run.
	MetricsHandler http.Handler
	Shutdown       func(ctx context.Context) error
}

// Init builds a logger, a tracer provider, and a meter provider for one
// process. Tracing and metrics export are both opt-in: with EnableTracing
// unset the tracer provider still hands out a working Tracer, but with no
// span processor attached, so spans start and end cheaply without ever
// leaving the process.
func Init(cfg Config) (Providers, error) {
	res, err := buildResource(cfg)
	if err != nil {
		return Providers{}, err
	}

	tp, err := buildTracerProvider(cfg, res)
	if err != nil {
		return Providers{}, fmt.Errorf("observability: build tracer: %w", err)
	}

	otel.SetTracerProvider(tp)

	meter, metricsHandler, mpShutdown, err := buildMeter(cfg, res)
	if err != nil {
		_ = tp.Shutdown(context.Background())

		return Providers{}, fmt.Errorf("observability: build meter: %w", err)
	}

	logger := buildLogger(cfg)

	shutdown := func(ctx context.Context) error {
		timeout := time.Duration(cfg.ShutdownTimeoutSec) * time.Second
		if timeout <= 0 {
			timeout = defaultShutdownTimeoutSec * time.Second
		}

		deadlineCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		tpErr := tp.Shutdown(deadlineCtx)
		mpErr := mpShutdown(deadlineCtx)

		if tpErr != nil {
			return tpErr
		}

		return mpErr
	}

	return Providers{
		Tracer:         tp.Tracer(tracerName),
		Meter:          meter,
		Logger:         logger,
		MetricsHandler: metricsHandler,
		Shutdown:       shutdown,
	}, nil
}

func buildResource(cfg Config) (*resource.Resource, error) {
	attrs := []resource.Option{
		resource.WithAttributes(semconv.ServiceName(cfg.ServiceName)),
	}

	if cfg.ServiceVersion != "" {
		attrs = append(attrs, resource.WithAttributes(semconv.ServiceVersion(cfg.ServiceVersion)))
	}

	if cfg.Environment != "" {
		attrs = append(attrs, resource.WithAttributes(semconv.DeploymentEnvironment(cfg.Environment)))
	}

	if cfg.Mode != "" {
		attrs = append(attrs, resource.WithAttributes(attribute.String("app.mode", string(cfg.Mode))))
	}

	res, err := resource.New(context.Background(), attrs...)
	if err != nil {
		return nil, fmt.Errorf("observability: build resource: %w", err)
	}

	return res, nil
}

type shutdownFunc func(ctx context.Context) error

func noopShutdown(_ context.Context) error { return nil }

// buildTracerProvider returns a provider sampling every span. When
// EnableTracing is set it ships spans to cfg.OTLPEndpoint over gRPC via a
// batching span processor; otherwise the provider runs with no span
// processor at all, so Start/End stay cheap no-ops.
func buildTracerProvider(cfg Config, res *resource.Resource) (*sdktrace.TracerProvider, error) {
	opts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.AlwaysSample())),
	}

	if cfg.EnableTracing {
		dialOpts := []otlptracegrpc.Option{otlptracegrpc.WithInsecure()}
		if cfg.OTLPEndpoint != "" {
			dialOpts = append(dialOpts, otlptracegrpc.WithEndpoint(cfg.OTLPEndpoint))
		}

		exporter, err := otlptracegrpc.New(context.Background(), dialOpts...)
		if err != nil {
			return nil, fmt.Errorf("create otlp trace exporter: %w", err)
		}

		opts = append(opts, sdktrace.WithBatcher(exporter))
	}

	return sdktrace.NewTracerProvider(opts...), nil
}

func buildMeter(cfg Config, res *resource.Resource) (metric.Meter, http.Handler, shutdownFunc, error) {
	if !cfg.EnableMetrics {
		return noopmetric.NewMeterProvider().Meter(meterName), nil, noopShutdown, nil
	}

	registry := prometheus.NewRegistry()

	exporter, err := promexporter.New(promexporter.WithRegisterer(registry))
	if err != nil {
		return nil, nil, nil, fmt.Errorf("create prometheus exporter: %w", err)
	}

	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter), sdkmetric.WithResource(res))
	otel.SetMeterProvider(mp)

	handler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})

	return mp.Meter(meterName), handler, mp.Shutdown, nil
}

func buildLogger(cfg Config) *slog.Logger {
	handlerOpts := &slog.HandlerOptions{Level: cfg.LogLevel}

	var inner slog.Handler
	if cfg.LogJSON {
		inner = slog.NewJSONHandler(os.Stderr, handlerOpts)
	} else {
		inner = slog.NewTextHandler(os.Stderr, handlerOpts)
	}

	return slog.New(NewTracingHandler(inner, cfg.ServiceName, cfg.Environment, cfg.Mode))
}

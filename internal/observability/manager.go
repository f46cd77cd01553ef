package observability

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	promexporter "go.opentelemetry.io/otel/exporters/prometheus"
	stdoutmetric "go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	stdouttrace "go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdkresource "go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/invoicer/internal/config"
)

const (
	serviceVersion  = "0.1.0"
	shutdownTimeout = 10 * time.Second
)

// Manager owns the tracer and meter providers for the process.
type Manager struct {
	tracerProvider *sdktrace.TracerProvider
	meterProvider  *sdkmetric.MeterProvider
	metricsHandler http.Handler
	cfg            config.Observability
	logger         *zap.Logger
}

// Module exposes the observability manager to Fx and installs its providers
// as the otel globals for the lifetime of the application.
var Module = fx.Options(
	fx.Provide(NewManager),
	fx.Invoke(func(lc fx.Lifecycle, m *Manager) {
		lc.Append(fx.Hook{
			OnStart: func(context.Context) error {
				m.Install()
				return nil
			},
			OnStop: m.Shutdown,
		})
	}),
)

// NewManager configures tracing and metrics providers based on configuration.
func NewManager(cfg config.Config, logger *zap.Logger) (*Manager, error) {
	ctx := context.Background()
	obs := cfg.Observability

	resource, err := sdkresource.New(ctx,
		sdkresource.WithFromEnv(),
		sdkresource.WithHost(),
		sdkresource.WithAttributes(
			semconv.ServiceName(obs.ServiceName),
			semconv.ServiceVersion(serviceVersion),
			attribute.String("service.environment", obs.Environment),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("observability resource: %w", err)
	}

	m := &Manager{cfg: obs, logger: logger}

	if obs.EnableTracing {
		exporter, err := traceExporter(ctx, obs, logger)
		if err != nil {
			return nil, fmt.Errorf("trace exporter: %w", err)
		}
		if exporter != nil {
			m.tracerProvider = sdktrace.NewTracerProvider(
				sdktrace.WithBatcher(exporter),
				sdktrace.WithResource(resource),
			)
		}
	}

	if obs.EnableMetrics {
		mp, handler, err := meterProvider(obs, resource, logger)
		if err != nil {
			return nil, fmt.Errorf("metrics exporter: %w", err)
		}
		m.meterProvider = mp
		m.metricsHandler = handler
	}

	return m, nil
}

// Install registers the configured providers as the otel globals. Instruments
// created earlier through otel.Meter or otel.Tracer start reporting once it runs.
func (m *Manager) Install() {
	if m.tracerProvider != nil {
		otel.SetTracerProvider(m.tracerProvider)
		otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
			propagation.TraceContext{},
			propagation.Baggage{},
		))
	}
	if m.meterProvider != nil {
		otel.SetMeterProvider(m.meterProvider)
	}
}

// Shutdown flushes and stops both providers.
func (m *Manager) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()

	var err error
	if m.tracerProvider != nil {
		err = errors.Join(err, m.tracerProvider.Shutdown(ctx))
	}
	if m.meterProvider != nil {
		err = errors.Join(err, m.meterProvider.Shutdown(ctx))
	}
	return err
}

// TracingEnabled reports whether tracing is active.
func (m *Manager) TracingEnabled() bool {
	return m.tracerProvider != nil
}

// MetricsEnabled reports whether metrics are active.
func (m *Manager) MetricsEnabled() bool {
	return m.meterProvider != nil
}

// Meter returns a meter from the managed provider, or the global one when
// metrics are disabled.
func (m *Manager) Meter(name string) metric.Meter {
	if m.meterProvider != nil {
		return m.meterProvider.Meter(name)
	}
	return otel.Meter(name)
}

// MetricsHandler exposes the Prometheus scrape handler. It is nil unless the
// prometheus exporter is selected.
func (m *Manager) MetricsHandler() http.Handler {
	return m.metricsHandler
}

// PrometheusPath returns the configured metrics endpoint path.
func (m *Manager) PrometheusPath() string {
	return m.cfg.PrometheusPath
}

func traceExporter(ctx context.Context, obs config.Observability, logger *zap.Logger) (sdktrace.SpanExporter, error) {
	switch obs.TraceExporter {
	case "", "stdout":
		return stdouttrace.New(stdouttrace.WithPrettyPrint())
	case "otlp":
		if obs.TraceEndpoint == "" {
			return nil, fmt.Errorf("OBS_OTLP_ENDPOINT must be set for otlp exporter")
		}
		opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(obs.TraceEndpoint)}
		if obs.TraceInsecure {
			opts = append(opts, otlptracegrpc.WithInsecure())
		}
		dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		return otlptracegrpc.New(dialCtx, opts...)
	case "none":
		return nil, nil
	default:
		logger.Warn("unsupported trace exporter; tracing disabled", zap.String("exporter", obs.TraceExporter))
		return nil, nil
	}
}

func meterProvider(obs config.Observability, resource *sdkresource.Resource, logger *zap.Logger) (*sdkmetric.MeterProvider, http.Handler, error) {
	switch obs.MetricsExporter {
	case "prometheus":
		// A private registry keeps repeated managers (tests, CLI subcommands)
		// from colliding on the process-wide default registerer.
		registry := prometheus.NewRegistry()
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		exporter, err := promexporter.New(promexporter.WithRegisterer(registry))
		if err != nil {
			return nil, nil, err
		}
		mp := sdkmetric.NewMeterProvider(
			sdkmetric.WithReader(exporter),
			sdkmetric.WithResource(resource),
		)
		return mp, promhttp.HandlerFor(registry, promhttp.HandlerOpts{}), nil
	case "stdout":
		exporter, err := stdoutmetric.New(stdoutmetric.WithPrettyPrint(), stdoutmetric.WithWriter(os.Stdout))
		if err != nil {
			return nil, nil, err
		}
		mp := sdkmetric.NewMeterProvider(
			sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(30*time.Second))),
			sdkmetric.WithResource(resource),
		)
		return mp, nil, nil
	default:
		logger.Warn("unsupported metrics exporter; metrics disabled", zap.String("exporter", obs.MetricsExporter))
		return nil, nil, nil
	}
}

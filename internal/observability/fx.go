package observability

import (
	"github.com/smallbiznis/cemtrack/internal/observability/logger"
	"github.com/smallbiznis/cemtrack/internal/observability/metrics"
	"github.com/smallbiznis/cemtrack/pkg/telemetry"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/fx"
)

// Module provides the logger, tracer provider and ledger metrics. It expects
// a config.Config in the graph.
var Module = fx.Module("observability",
	fx.Provide(
		LoadConfig,
		loggerConfig,
		logger.New,
		tracingConfig,
		telemetry.NewTracerProvider,
		metricsConfig,
		metrics.NewProvider,
		metrics.New,
		metrics.NewHTTPMetrics,
	),
	// Nothing else depends on the tracer provider; force it so otel globals
	// are set before the first request.
	fx.Invoke(func(*sdktrace.TracerProvider) {}),
)

func loggerConfig(cfg Config) logger.Config {
	return logger.Config{
		ServiceName:      cfg.ServiceName,
		Environment:      cfg.Environment,
		Version:          cfg.Version,
		Level:            cfg.Log.Level,
		Format:           cfg.Log.Format,
		Development:      cfg.Debug(),
		SampleInitial:    cfg.Log.SampleInitial,
		SampleThereafter: cfg.Log.SampleThereafter,
	}
}

func tracingConfig(cfg Config) telemetry.Config {
	return telemetry.Config{
		Enabled:          cfg.Telemetry.Enabled,
		ServiceName:      cfg.ServiceName,
		ServiceVersion:   cfg.Version,
		Environment:      cfg.Environment,
		ExporterEndpoint: cfg.Telemetry.Endpoint,
		ExporterProtocol: cfg.Telemetry.Protocol,
		SamplingRatio:    cfg.Telemetry.SamplingRatio,
	}
}

func metricsConfig(cfg Config) metrics.Config {
	return metrics.Config{
		Enabled:          cfg.Telemetry.Enabled,
		ExporterEndpoint: cfg.Telemetry.Endpoint,
		ExporterProtocol: cfg.Telemetry.Protocol,
		ServiceName:      cfg.ServiceName,
		Environment:      cfg.Environment,
	}
}

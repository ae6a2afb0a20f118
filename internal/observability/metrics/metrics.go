package metrics

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Config configures the metrics provider.
type Config struct {
	Enabled          bool
	ExporterEndpoint string
	ExporterProtocol string
	ServiceName      string
	Environment      string
}

const exportInterval = 10 * time.Second

// Metrics exposes ledger instruments.
type Metrics struct {
	bagsRegistered metric.Int64Counter
	usageRecorded  metric.Int64Counter
	duplicateUsage metric.Int64Counter
	lockWait       metric.Float64Histogram
	lockTimeouts   metric.Int64Counter
}

// NewProvider registers the global meter provider. With export disabled the
// provider is a noop and every instrument call is free.
func NewProvider(lc fx.Lifecycle, cfg Config, log *zap.Logger) (metric.MeterProvider, error) {
	var provider metric.MeterProvider = noop.NewMeterProvider()
	if cfg.Enabled {
		exporter, err := newExporter(cfg.ExporterProtocol, cfg.ExporterEndpoint)
		if err != nil {
			return nil, fmt.Errorf("metrics exporter: %w", err)
		}
		sdk := sdkmetric.NewMeterProvider(
			sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(exportInterval))),
		)
		if lc != nil {
			lc.Append(fx.StopHook(sdk.Shutdown))
		}
		provider = sdk
	}
	otel.SetMeterProvider(provider)

	if log != nil {
		log.Info("metrics initialized",
			zap.Bool("export", cfg.Enabled),
			zap.String("endpoint", cfg.ExporterEndpoint),
			zap.String("protocol", cfg.ExporterProtocol),
		)
	}
	return provider, nil
}

// New configures the ledger metric instruments.
func New(cfg Config, provider metric.MeterProvider) (*Metrics, error) {
	name := strings.TrimSpace(cfg.ServiceName)
	if name == "" {
		name = "cemtrack"
	}
	meter := provider.Meter(name)

	bagsRegistered, err := meter.Int64Counter("cemtrack_bags_registered_total")
	if err != nil {
		return nil, err
	}
	usageRecorded, err := meter.Int64Counter("cemtrack_usage_recorded_total")
	if err != nil {
		return nil, err
	}
	duplicateUsage, err := meter.Int64Counter("cemtrack_duplicate_usage_total")
	if err != nil {
		return nil, err
	}
	lockWait, err := meter.Float64Histogram("cemtrack_ledger_lock_wait_seconds",
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30),
	)
	if err != nil {
		return nil, err
	}
	lockTimeouts, err := meter.Int64Counter("cemtrack_ledger_lock_timeouts_total")
	if err != nil {
		return nil, err
	}

	return &Metrics{
		bagsRegistered: bagsRegistered,
		usageRecorded:  usageRecorded,
		duplicateUsage: duplicateUsage,
		lockWait:       lockWait,
		lockTimeouts:   lockTimeouts,
	}, nil
}

// RecordBagsRegistered adds count newly registered bags for a plant.
func (m *Metrics) RecordBagsRegistered(ctx context.Context, plantID string, count int) {
	if m == nil || count <= 0 {
		return
	}
	attrs := FilterAttributes(attribute.String("plant_id", strings.TrimSpace(plantID)))
	m.bagsRegistered.Add(ctx, int64(count), metric.WithAttributes(attrs...))
}

// RecordUsage counts a recorded usage event by photo flag.
func (m *Metrics) RecordUsage(ctx context.Context, photoFlag string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("photo_flag", strings.TrimSpace(photoFlag)))
	m.usageRecorded.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordDuplicateUsage counts usage events against an already used bag.
func (m *Metrics) RecordDuplicateUsage(ctx context.Context, outcome string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("outcome", strings.TrimSpace(outcome)))
	m.duplicateUsage.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordLockWait observes time spent waiting on the ledger lock.
func (m *Metrics) RecordLockWait(ctx context.Context, operation, outcome string, waited time.Duration) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("operation", strings.TrimSpace(operation)),
		attribute.String("outcome", strings.TrimSpace(outcome)),
	)
	m.lockWait.Record(ctx, waited.Seconds(), metric.WithAttributes(attrs...))
	if outcome == "timeout" {
		m.lockTimeouts.Add(ctx, 1, metric.WithAttributes(attrs...))
	}
}

func newExporter(protocol, endpoint string) (sdkmetric.Exporter, error) {
	protocol = strings.ToLower(strings.TrimSpace(protocol))
	switch protocol {
	case "http", "http/protobuf":
		opts := []otlpmetrichttp.Option{otlpmetrichttp.WithInsecure()}
		if endpoint != "" {
			opts = append(opts, otlpmetrichttp.WithEndpoint(endpoint))
		}
		return otlpmetrichttp.New(context.Background(), opts...)
	case "grpc", "grpc/protobuf", "":
		opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithInsecure()}
		if endpoint != "" {
			opts = append(opts, otlpmetricgrpc.WithEndpoint(endpoint))
		}
		return otlpmetricgrpc.New(context.Background(), opts...)
	default:
		return nil, fmt.Errorf("unsupported OTLP protocol %q", protocol)
	}
}

var allowedLabelKeys = map[attribute.Key]struct{}{
	"plant_id":    {},
	"photo_flag":  {},
	"operation":   {},
	"outcome":     {},
	"action":      {},
	"status_code": {},
}

// FilterAttributes strips disallowed labels to keep metrics low-cardinality.
func FilterAttributes(attrs ...attribute.KeyValue) []attribute.KeyValue {
	filtered := make([]attribute.KeyValue, 0, len(attrs))
	for _, attr := range attrs {
		if _, ok := allowedLabelKeys[attr.Key]; !ok {
			continue
		}
		filtered = append(filtered, attr)
	}
	return filtered
}

package metrics

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func TestFilterAttributesDropsForbiddenLabels(t *testing.T) {
	attrs := FilterAttributes(
		attribute.String("plant_id", "P1"),
		attribute.String("bag_id", "CEM-P1-20240307-B1-00001"),
		attribute.String("operation", "registerBatch"),
	)
	if len(attrs) != 2 {
		t.Fatalf("expected 2 attributes, got %d", len(attrs))
	}
	if attrs[0].Key != "plant_id" && attrs[1].Key != "plant_id" {
		t.Fatalf("expected plant_id to be retained")
	}
	if attrs[0].Key != "operation" && attrs[1].Key != "operation" {
		t.Fatalf("expected operation to be retained")
	}
}

func TestNilMetricsAreNoops(t *testing.T) {
	var m *Metrics
	m.RecordBagsRegistered(context.Background(), "P1", 3)
	m.RecordUsage(context.Background(), "NO_PHOTO")
	m.RecordDuplicateUsage(context.Background(), "recorded")
	m.RecordLockWait(context.Background(), "registerBatch", "timeout", time.Second)
}

func TestNewWithNoopProvider(t *testing.T) {
	m, err := New(Config{}, noop.NewMeterProvider())
	require.NoError(t, err)
	m.RecordBagsRegistered(context.Background(), "P1", 3)
}

func TestRecordLockWaitCountsTimeouts(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	m, err := New(Config{ServiceName: "cemtrack"}, provider)
	require.NoError(t, err)

	ctx := context.Background()
	m.RecordLockWait(ctx, "registerBatch", "acquired", 5*time.Millisecond)
	m.RecordLockWait(ctx, "registerBatch", "timeout", 30*time.Second)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))

	var timeouts int64
	var waits uint64
	for _, scope := range rm.ScopeMetrics {
		for _, md := range scope.Metrics {
			switch data := md.Data.(type) {
			case metricdata.Sum[int64]:
				if md.Name == "cemtrack_ledger_lock_timeouts_total" {
					for _, dp := range data.DataPoints {
						timeouts += dp.Value
					}
				}
			case metricdata.Histogram[float64]:
				if md.Name == "cemtrack_ledger_lock_wait_seconds" {
					for _, dp := range data.DataPoints {
						waits += dp.Count
					}
				}
			}
		}
	}
	require.EqualValues(t, 1, timeouts)
	require.EqualValues(t, 2, waits)
}

func TestHTTPMiddlewareRecordsRoute(t *testing.T) {
	gin.SetMode(gin.TestMode)
	registry := prometheus.NewRegistry()
	m := newHTTPMetrics(registry, Config{ServiceName: "cemtrack", Environment: "test"})

	r := gin.New()
	r.Use(m.GinMiddleware())
	r.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, w.Code)

	got := testutil.ToFloat64(m.requests.WithLabelValues(http.MethodGet, "/health", "200"))
	require.EqualValues(t, 1, got)
}

func TestObserveActionFoldsUnknown(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := newHTTPMetrics(registry, Config{})

	m.ObserveAction("deleteEverything", "error", false)
	m.ObserveAction("registerBatch", "ok", true)

	require.EqualValues(t, 1, testutil.ToFloat64(m.actions.WithLabelValues("unknown", "error")))
	require.EqualValues(t, 1, testutil.ToFloat64(m.actions.WithLabelValues("registerBatch", "ok")))
}

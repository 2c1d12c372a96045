package telemetry

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.opentelemetry.io/otel/trace"

	"github.com/openmarket/marketplace/core"
)

func TestDisabledProviderIsNoop(t *testing.T) {
	p, err := New(context.Background(), core.TelemetryConfig{Enabled: false})
	require.NoError(t, err)

	ctx, span := p.StartSpan(context.Background(), "noop")
	span.SetAttribute("k", "v")
	span.RecordError(errors.New("x"))
	span.End()

	assert.NotNil(t, ctx)
	p.RecordMetric("marketplace.test", 1, map[string]string{"a": "b"})
	assert.NoError(t, p.Shutdown(context.Background()))
}

func TestDevelopmentProviderWritesSpans(t *testing.T) {
	var buf bytes.Buffer
	p, err := New(context.Background(),
		core.TelemetryConfig{Enabled: true, ServiceName: "marketplace-test", SamplingRate: 1.0},
		WithDevelopment(true),
		WithWriter(&buf),
	)
	require.NoError(t, err)
	defer p.Shutdown(context.Background())

	ctx, span := p.StartSpan(context.Background(), "catalog.add")
	span.SetAttribute("product.count", 3)
	span.SetAttribute("category", "food")
	span.SetAttribute("ok", true)
	span.SetAttribute("ratio", 0.5)
	span.SetAttribute("other", struct{}{})

	assert.True(t, trace.SpanContextFromContext(ctx).IsValid())
	span.End()

	out := buf.String()
	assert.Contains(t, out, "catalog.add")
	assert.Contains(t, out, "product.count")
	assert.Contains(t, out, "marketplace-test")
}

// sumOf collects reader and returns the value of counter name for the data
// point carrying attr, if any.
func sumOf(t *testing.T, reader sdkmetric.Reader, name string, attr attribute.KeyValue) (float64, bool) {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[float64])
			require.True(t, ok, "%s is a float64 sum", name)
			for _, dp := range sum.DataPoints {
				if v, ok := dp.Attributes.Value(attr.Key); ok && v.Emit() == attr.Value.Emit() {
					return dp.Value, true
				}
			}
		}
	}
	return 0, false
}

func TestRecordMetricReachesMeterProvider(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	p, err := New(context.Background(),
		core.TelemetryConfig{Enabled: true, ServiceName: "marketplace-test", SamplingRate: 1.0},
		WithMetricReader(reader),
	)
	require.NoError(t, err)
	defer p.Shutdown(context.Background())

	p.RecordMetric("marketplace.orders", 1, map[string]string{"payment_method": "paypal"})
	p.RecordMetric("marketplace.orders", 1, map[string]string{"payment_method": "paypal"})
	p.RecordMetric("marketplace.orders", 1, map[string]string{"payment_method": "cash"})

	paypal, ok := sumOf(t, reader, "marketplace.orders", attribute.String("payment_method", "paypal"))
	require.True(t, ok)
	assert.Equal(t, 2.0, paypal)
	cash, ok := sumOf(t, reader, "marketplace.orders", attribute.String("payment_method", "cash"))
	require.True(t, ok)
	assert.Equal(t, 1.0, cash)
}

func TestDevelopmentProviderWritesMetricsOnShutdown(t *testing.T) {
	var buf bytes.Buffer
	p, err := New(context.Background(),
		core.TelemetryConfig{Enabled: true, SamplingRate: 1.0},
		WithDevelopment(true),
		WithWriter(&buf),
	)
	require.NoError(t, err)

	p.RecordMetric("marketplace.saves", 1, map[string]string{"slot": "cart"})
	require.NoError(t, p.Shutdown(context.Background()))

	assert.Contains(t, buf.String(), "marketplace.saves")
}

func TestMetricsEndpointBuildsExporter(t *testing.T) {
	p, err := New(context.Background(), core.TelemetryConfig{
		Enabled:         true,
		MetricsEndpoint: "127.0.0.1:4318",
		Insecure:        true,
		SamplingRate:    1.0,
	}, WithMetricInterval(time.Hour))
	require.NoError(t, err)
	require.NotNil(t, p.meterProvider)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_ = p.Shutdown(ctx)
}

func TestRecordMetricCachesCounters(t *testing.T) {
	p, err := New(context.Background(), core.TelemetryConfig{})
	require.NoError(t, err)

	p.RecordMetric("marketplace.checkout.total", 1, nil)
	p.RecordMetric("marketplace.checkout.total", 2, nil)

	assert.Len(t, p.counters, 1)
}

func TestTracingMiddleware(t *testing.T) {
	called := false
	h := TracingMiddleware("marketplace", "/health")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusTeapot)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/products", nil))

	assert.True(t, called)
	assert.Equal(t, http.StatusTeapot, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusTeapot, rec.Code)
}

package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func collect(t *testing.T, r *sdkmetric.ManualReader) map[string]metricdata.Aggregation {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, r.Collect(context.Background(), &rm))
	out := map[string]metricdata.Aggregation{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m.Data
		}
	}
	return out
}

func TestMetrics_Record(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	m, err := NewMetrics(mp)
	require.NoError(t, err)

	ctx := context.Background()
	m.Sent(ctx, "direct")
	m.Sent(ctx, "direct")
	m.Failed(ctx, "channel", "forbidden")
	m.Delivered(ctx, "direct", 3, 1)
	m.RouteDuration(ctx, "direct", 0.01)
	require.NoError(t, m.ObserveOnline(func() int { return 7 }))

	got := collect(t, reader)

	sent, ok := got["chat_messages_sent_total"].(metricdata.Sum[int64])
	require.True(t, ok)
	require.Len(t, sent.DataPoints, 1)
	require.Equal(t, int64(2), sent.DataPoints[0].Value)

	delivered := got["chat_deliveries_total"].(metricdata.Sum[int64])
	require.Equal(t, int64(3), delivered.DataPoints[0].Value)
	dropped := got["chat_deliveries_dropped_total"].(metricdata.Sum[int64])
	require.Equal(t, int64(1), dropped.DataPoints[0].Value)

	online := got["chat_users_online"].(metricdata.Gauge[int64])
	require.Equal(t, int64(7), online.DataPoints[0].Value)

	_, ok = got["chat_route_duration_seconds"].(metricdata.Histogram[float64])
	require.True(t, ok)
}

func TestNopMetricsAndDisabledInit(t *testing.T) {
	m := NopMetrics()
	m.Sent(context.Background(), "direct")

	shutdown, err := Init(context.Background(), Config{Enabled: false})
	require.NoError(t, err)
	require.NoError(t, shutdown(context.Background()))
}

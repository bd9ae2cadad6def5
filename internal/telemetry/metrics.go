package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

// Meter name shared by chat instruments.
const meterName = "github.com/and161185/goph-chat"

// Metrics holds the router and presence instruments.
type Metrics struct {
	sent      metric.Int64Counter
	failed    metric.Int64Counter
	delivered metric.Int64Counter
	dropped   metric.Int64Counter
	duration  metric.Float64Histogram
	meter     metric.Meter
}

// NewMetrics creates instruments on mp.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := &Metrics{meter: mp.Meter(meterName)}
	var err error
	if m.sent, err = m.meter.Int64Counter("chat_messages_sent_total",
		metric.WithDescription("Messages persisted by the router")); err != nil {
		return nil, err
	}
	if m.failed, err = m.meter.Int64Counter("chat_messages_failed_total",
		metric.WithDescription("Send requests rejected or not persisted")); err != nil {
		return nil, err
	}
	if m.delivered, err = m.meter.Int64Counter("chat_deliveries_total",
		metric.WithDescription("Events pushed to live connections")); err != nil {
		return nil, err
	}
	if m.dropped, err = m.meter.Int64Counter("chat_deliveries_dropped_total",
		metric.WithDescription("Pushes to closed or slow connections")); err != nil {
		return nil, err
	}
	if m.duration, err = m.meter.Float64Histogram("chat_route_duration_seconds",
		metric.WithDescription("Time from send to fan-out completion"), metric.WithUnit("s")); err != nil {
		return nil, err
	}
	return m, nil
}

// NopMetrics returns instruments that record nothing.
func NopMetrics() *Metrics {
	m, _ := NewMetrics(noop.NewMeterProvider())
	return m
}

// ObserveOnline registers a gauge reporting the number of online users.
func (m *Metrics) ObserveOnline(count func() int) error {
	_, err := m.meter.Int64ObservableGauge("chat_users_online",
		metric.WithDescription("Users with at least one live connection"),
		metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
			o.Observe(int64(count()))
			return nil
		}))
	return err
}

func kind(k string) metric.MeasurementOption {
	return metric.WithAttributes(attribute.String("kind", k))
}

// Sent records a persisted message of kind direct or channel.
func (m *Metrics) Sent(ctx context.Context, k string) { m.sent.Add(ctx, 1, kind(k)) }

// Failed records a rejected send with a failure reason.
func (m *Metrics) Failed(ctx context.Context, k, reason string) {
	m.failed.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", k), attribute.String("reason", reason)))
}

// Delivered records n successful pushes and dropped failed pushes.
func (m *Metrics) Delivered(ctx context.Context, k string, n, dropped int) {
	if n > 0 {
		m.delivered.Add(ctx, int64(n), kind(k))
	}
	if dropped > 0 {
		m.dropped.Add(ctx, int64(dropped), kind(k))
	}
}

// RouteDuration records the time one send took.
func (m *Metrics) RouteDuration(ctx context.Context, k string, seconds float64) {
	m.duration.Record(ctx, seconds, kind(k))
}

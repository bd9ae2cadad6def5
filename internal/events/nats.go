package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/nats-io/nats.go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/and161185/goph-chat/internal/wire"
)

const tracerName = "github.com/and161185/goph-chat/internal/events"

// headerCarrier adapts nats.Header to propagation.TextMapCarrier.
type headerCarrier nats.Header

func (c headerCarrier) Get(key string) string { return nats.Header(c).Get(key) }
func (c headerCarrier) Set(key, value string) { nats.Header(c).Set(key, value) }
func (c headerCarrier) Keys() []string {
	keys := make([]string, 0, len(c))
	for k := range c {
		keys = append(keys, k)
	}
	return keys
}

// msgPublisher is the subset of *nats.Conn used for publishing.
type msgPublisher interface {
	PublishMsg(m *nats.Msg) error
}

// NATS publishes JSON events under a subject prefix:
//
//	<prefix>.message.direct.<recipient>
//	<prefix>.message.channel.<channel>
//	<prefix>.presence.<user>
type NATS struct {
	nc     msgPublisher
	conn   *nats.Conn
	prefix string
	tracer trace.Tracer
	prop   propagation.TextMapPropagator
	log    *zap.Logger
}

// DialNATS connects to url and returns a publisher.
func DialNATS(url, prefix string, log *zap.Logger) (*NATS, error) {
	if log == nil {
		log = zap.NewNop()
	}
	nc, err := nats.Connect(url,
		nats.Name("goph-chat"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Warn("nats disconnected", zap.Error(err))
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			log.Info("nats reconnected", zap.String("url", c.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}
	p := newNATS(nc, prefix, log)
	p.conn = nc
	return p, nil
}

func newNATS(nc msgPublisher, prefix string, log *zap.Logger) *NATS {
	prefix = strings.Trim(prefix, ".")
	if prefix == "" {
		prefix = "chat"
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &NATS{
		nc:     nc,
		prefix: prefix,
		tracer: otel.Tracer(tracerName),
		prop:   otel.GetTextMapPropagator(),
		log:    log,
	}
}

// MessageSubject returns the subject a message is published on.
func (p *NATS) MessageSubject(m *wire.Message) string {
	if m.ChannelID != "" {
		return p.prefix + ".message.channel." + m.ChannelID
	}
	to := ""
	if m.Recipient != nil {
		to = m.Recipient.ID
	}
	return p.prefix + ".message.direct." + to
}

// PresenceSubject returns the subject a presence transition is published on.
func (p *NATS) PresenceSubject(userID uuid.UUID) string {
	return p.prefix + ".presence." + userID.String()
}

// PublishMessage implements Publisher.
func (p *NATS) PublishMessage(ctx context.Context, m *wire.Message) error {
	data, err := json.Marshal(m)
	if err != nil {
		return err
	}
	return p.publish(ctx, p.MessageSubject(m), data)
}

// PublishPresence implements Publisher.
func (p *NATS) PublishPresence(ctx context.Context, userID uuid.UUID, online bool) error {
	data, err := json.Marshal(PresenceEvent{UserID: userID.String(), Online: online, At: time.Now().UTC()})
	if err != nil {
		return err
	}
	return p.publish(ctx, p.PresenceSubject(userID), data)
}

// publish sends data with the trace context propagated in headers under a producer span.
func (p *NATS) publish(ctx context.Context, subject string, data []byte) error {
	ctx, span := p.tracer.Start(ctx, subject+" publish",
		trace.WithSpanKind(trace.SpanKindProducer),
		trace.WithAttributes(
			attribute.String("messaging.system", "nats"),
			attribute.String("messaging.destination.name", subject),
			attribute.Int("messaging.message.payload_size_bytes", len(data)),
		),
	)
	defer span.End()

	h := nats.Header{}
	p.prop.Inject(ctx, headerCarrier(h))
	if err := p.nc.PublishMsg(&nats.Msg{Subject: subject, Data: data, Header: h}); err != nil {
		span.RecordError(err)
		return err
	}
	return nil
}

// Close drains the connection.
func (p *NATS) Close() error {
	if p.conn == nil {
		return nil
	}
	return p.conn.Drain()
}

package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/gofrs/uuid/v5"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap/zaptest"

	"github.com/and161185/goph-chat/internal/wire"
)

type recorder struct {
	msgs []*nats.Msg
	err  error
}

func (r *recorder) PublishMsg(m *nats.Msg) error {
	r.msgs = append(r.msgs, m)
	return r.err
}

func TestNATS_Subjects(t *testing.T) {
	p := newNATS(&recorder{}, ".chat.", zaptest.NewLogger(t))
	u := uuid.Must(uuid.NewV4())

	require.Equal(t, "chat.presence."+u.String(), p.PresenceSubject(u))
	require.Equal(t, "chat.message.channel.c1", p.MessageSubject(&wire.Message{ChannelID: "c1"}))
	require.Equal(t, "chat.message.direct.u2", p.MessageSubject(&wire.Message{Recipient: &wire.Profile{ID: "u2"}}))

	require.Equal(t, "chat.presence."+u.String(), newNATS(&recorder{}, "", nil).PresenceSubject(u))
}

func TestNATS_PublishPropagatesTrace(t *testing.T) {
	rec := &recorder{}
	p := newNATS(rec, "gc", zaptest.NewLogger(t))

	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	p.tracer = tp.Tracer("test")
	p.prop = propagation.TraceContext{}

	msg := &wire.Message{ID: "m1", ChannelID: "c1", MessageType: "text", Content: "hi"}
	require.NoError(t, p.PublishMessage(context.Background(), msg))
	require.Len(t, rec.msgs, 1)
	require.Equal(t, "gc.message.channel.c1", rec.msgs[0].Subject)
	require.NotEmpty(t, rec.msgs[0].Header.Get("traceparent"))

	spans := sr.Ended()
	require.Len(t, spans, 1)
	require.Equal(t, "gc.message.channel.c1 publish", spans[0].Name())

	var back wire.Message
	require.NoError(t, json.Unmarshal(rec.msgs[0].Data, &back))
	require.Equal(t, "hi", back.Content)

	u := uuid.Must(uuid.NewV4())
	require.NoError(t, p.PublishPresence(context.Background(), u, true))
	var pe PresenceEvent
	require.NoError(t, json.Unmarshal(rec.msgs[1].Data, &pe))
	require.Equal(t, u.String(), pe.UserID)
	require.True(t, pe.Online)

	rec.err = errors.New("nats down")
	require.Error(t, p.PublishPresence(context.Background(), u, false))
}

func TestNop(t *testing.T) {
	var p Publisher = Nop{}
	require.NoError(t, p.PublishMessage(context.Background(), &wire.Message{}))
	require.NoError(t, p.PublishPresence(context.Background(), uuid.Nil, true))
	require.NoError(t, p.Close())

	n := newNATS(&recorder{}, "x", nil)
	require.NoError(t, n.Close())
}

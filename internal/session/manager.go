// Package session drives one live chat connection from handshake to close.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"github.com/and161185/goph-chat/internal/auth"
	"github.com/and161185/goph-chat/internal/convert"
	"github.com/and161185/goph-chat/internal/errs"
	"github.com/and161185/goph-chat/internal/model"
	"github.com/and161185/goph-chat/internal/presence"
	"github.com/and161185/goph-chat/internal/wire"
)

// DefaultHandshakeTimeout bounds the wait for the first auth event.
const DefaultHandshakeTimeout = 10 * time.Second

// DefaultWriterGrace bounds how long Serve waits for a stuck writer on exit.
// Returning from Serve cancels the stream, which fails the pending Send.
const DefaultWriterGrace = time.Second

// Stream is the transport of one connection. Send is only called from one goroutine.
type Stream interface {
	Context() context.Context
	Send(*wire.Event) error
	Recv() (*wire.Inbound, error)
}

// Router persists and delivers messages on behalf of a connection.
type Router interface {
	SendDirect(ctx context.Context, origin *presence.Conn, recipient uuid.UUID, p model.Payload) (model.EnrichedMessage, error)
	SendChannel(ctx context.Context, origin *presence.Conn, channelID uuid.UUID, p model.Payload) (model.EnrichedMessage, error)
}

// Registry tracks live connections.
type Registry interface {
	Register(c *presence.Conn) error
	Deregister(c *presence.Conn) bool
}

// Config tunes connection handling.
type Config struct {
	HandshakeTimeout time.Duration
	OutboundBuffer   int
	WriterGrace      time.Duration
}

// Manager authenticates connections and serves their inbound events.
type Manager struct {
	verifier  auth.Verifier
	registry  Registry
	router    Router
	validator *wire.Validator
	cfg       Config
	log       *zap.Logger
}

// NewManager constructs a Manager.
func NewManager(v auth.Verifier, reg Registry, r Router, cfg Config, log *zap.Logger) *Manager {
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = DefaultHandshakeTimeout
	}
	if cfg.OutboundBuffer <= 0 {
		cfg.OutboundBuffer = presence.DefaultBuffer
	}
	if cfg.WriterGrace <= 0 {
		cfg.WriterGrace = DefaultWriterGrace
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Manager{verifier: v, registry: reg, router: r, validator: wire.NewValidator(), cfg: cfg, log: log}
}

type inbound struct {
	ev  *wire.Inbound
	err error
}

// Serve runs the connection until the client leaves, logs out, the transport
// fails or the connection is closed by the server. token is the credential
// presented by the transport; when empty the first event must be an auth event.
//
// Handshake failures return errs.ErrUnauthorized or errs.ErrHandshakeTimeout
// without registering anything. A client-side end of stream returns nil.
func (m *Manager) Serve(stream Stream, token string) error {
	ctx := stream.Context()
	quit := make(chan struct{})
	defer close(quit)

	inbox := make(chan inbound)
	go func() {
		for {
			ev, err := stream.Recv()
			select {
			case inbox <- inbound{ev: ev, err: err}:
			case <-quit:
				return
			}
			if err != nil {
				return
			}
		}
	}()

	userID, err := m.handshake(ctx, inbox, token)
	if err != nil {
		m.log.Info("session: handshake failed", zap.Error(err))
		return err
	}

	conn := presence.NewConn(userID, m.cfg.OutboundBuffer)
	log := m.log.With(zap.Stringer("user", userID), zap.Stringer("conn", conn.ID))

	ack := wire.HandshakeAck(userID.String(), conn.ID.String())
	if err := conn.Push(&ack); err != nil {
		return err
	}

	written := make(chan error, 1)
	go func() { written <- conn.Run(stream.Send) }()

	if err := m.registry.Register(conn); err != nil {
		conn.Close()
		m.awaitWriter(written, log)
		return err
	}
	log.Info("session: connected")

	defer func() {
		m.registry.Deregister(conn)
		conn.Close()
		m.awaitWriter(written, log)
		log.Info("session: disconnected")
	}()

	for {
		select {
		case <-conn.Done():
			return nil
		case <-ctx.Done():
			return nil
		case in := <-inbox:
			if in.err != nil {
				if errors.Is(in.err, io.EOF) {
					return nil
				}
				return in.err
			}
			m.handle(ctx, conn, in.ev, log)
		}
	}
}

// awaitWriter waits for the writer to flush. A client that stopped reading can
// block Send indefinitely; the writer is then left to fail once the stream ends.
func (m *Manager) awaitWriter(written <-chan error, log *zap.Logger) {
	timer := time.NewTimer(m.cfg.WriterGrace)
	defer timer.Stop()
	select {
	case err := <-written:
		if err != nil {
			log.Debug("session: writer stopped", zap.Error(err))
		}
	case <-timer.C:
		log.Warn("session: writer blocked, abandoning it")
	}
}

func (m *Manager) handshake(ctx context.Context, inbox <-chan inbound, token string) (uuid.UUID, error) {
	if token == "" {
		timer := time.NewTimer(m.cfg.HandshakeTimeout)
		defer timer.Stop()

		select {
		case in := <-inbox:
			if in.err != nil {
				return uuid.Nil, in.err
			}
			if in.ev.Type != wire.TypeAuth || in.ev.Token == "" {
				return uuid.Nil, fmt.Errorf("%w: first event must be %s", errs.ErrUnauthorized, wire.TypeAuth)
			}
			token = in.ev.Token
		case <-timer.C:
			return uuid.Nil, errs.ErrHandshakeTimeout
		case <-ctx.Done():
			return uuid.Nil, ctx.Err()
		}
	}
	return m.verifier.Verify(ctx, token)
}

// handle processes one inbound event. Events of a connection are handled in order.
func (m *Manager) handle(ctx context.Context, conn *presence.Conn, in *wire.Inbound, log *zap.Logger) {
	var ev wire.Event
	switch in.Type {
	case wire.TypeSendDirect:
		ev = m.send(ctx, conn, in, m.validator.DirectSend, m.router.SendDirect)
	case wire.TypeSendChannel:
		ev = m.send(ctx, conn, in, m.validator.ChannelSend, m.router.SendChannel)
	case wire.TypePing:
		ev = wire.Pong(in.RequestID)
	case wire.TypeLogout:
		log.Debug("session: logout")
		conn.Close()
		return
	case wire.TypeAuth:
		ev = wire.Error(in.RequestID, wire.CodeProtocol, "already authenticated")
	default:
		ev = wire.Error(in.RequestID, wire.CodeProtocol, fmt.Sprintf("unknown event type %q", in.Type))
	}
	if err := conn.Push(&ev); err != nil {
		log.Debug("session: reply dropped", zap.String("type", ev.Type), zap.Error(err))
	}
}

type (
	parseFunc func(wire.Inbound) (uuid.UUID, model.Payload, error)
	routeFunc func(context.Context, *presence.Conn, uuid.UUID, model.Payload) (model.EnrichedMessage, error)
)

func (m *Manager) send(ctx context.Context, conn *presence.Conn, in *wire.Inbound, parse parseFunc, route routeFunc) wire.Event {
	target, payload, err := parse(*in)
	if err != nil {
		return wire.SendFailed(in.RequestID, Code(err), err.Error())
	}
	em, err := route(ctx, conn, target, payload)
	if err != nil {
		m.log.Debug("session: send failed", zap.Stringer("user", conn.UserID), zap.Error(err))
		return wire.SendFailed(in.RequestID, Code(err), message(err))
	}
	return wire.SendAck(in.RequestID, convert.ToWireMessage(em))
}

// Code maps an error to a wire failure code.
func Code(err error) string {
	switch {
	case errors.Is(err, errs.ErrValidation):
		return wire.CodeInvalid
	case errors.Is(err, errs.ErrForbidden):
		return wire.CodeForbidden
	case errors.Is(err, errs.ErrNotFound):
		return wire.CodeNotFound
	case errors.Is(err, errs.ErrUnauthorized):
		return wire.CodeUnauthorized
	}
	return wire.CodeUnavailable
}

// message hides store internals from clients.
func message(err error) string {
	if Code(err) == wire.CodeUnavailable {
		return "message could not be stored"
	}
	return err.Error()
}

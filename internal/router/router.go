// Package router persists chat messages and fans them out to live connections.
package router

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"github.com/and161185/goph-chat/internal/convert"
	"github.com/and161185/goph-chat/internal/errs"
	"github.com/and161185/goph-chat/internal/events"
	"github.com/and161185/goph-chat/internal/model"
	"github.com/and161185/goph-chat/internal/presence"
	"github.com/and161185/goph-chat/internal/repository"
	"github.com/and161185/goph-chat/internal/telemetry"
	"github.com/and161185/goph-chat/internal/wire"
)

// Message kinds used as metric labels.
const (
	KindDirect  = "direct"
	KindChannel = "channel"
)

// Directory resolves a user to its live connections.
type Directory interface {
	ConnectionsFor(userID uuid.UUID) []*presence.Conn
}

// Router validates, persists and delivers messages.
type Router struct {
	users     repository.UserRepository
	messages  repository.MessageRepository
	channels  repository.ChannelRepository
	directory Directory
	publisher events.Publisher
	metrics   *telemetry.Metrics
	log       *zap.Logger
	now       func() time.Time

	mu   sync.Mutex
	last map[uuid.UUID]time.Time // latest createdAt handed out per sender
}

// Deps groups the collaborators of a Router. Publisher, Metrics and Log are optional.
type Deps struct {
	Users     repository.UserRepository
	Messages  repository.MessageRepository
	Channels  repository.ChannelRepository
	Directory Directory
	Publisher events.Publisher
	Metrics   *telemetry.Metrics
	Log       *zap.Logger
}

// New constructs a Router.
func New(d Deps) *Router {
	r := &Router{
		users:     d.Users,
		messages:  d.Messages,
		channels:  d.Channels,
		directory: d.Directory,
		publisher: d.Publisher,
		metrics:   d.Metrics,
		log:       d.Log,
		now:       time.Now,
		last:      make(map[uuid.UUID]time.Time),
	}
	if r.publisher == nil {
		r.publisher = events.Nop{}
	}
	if r.metrics == nil {
		r.metrics = telemetry.NopMetrics()
	}
	if r.log == nil {
		r.log = zap.NewNop()
	}
	return r
}

// SendDirect delivers payload from the owner of origin to recipient.
// The recipient's connections and the sender's other connections receive the
// message; origin is expected to be acknowledged by the caller.
func (r *Router) SendDirect(ctx context.Context, origin *presence.Conn, recipient uuid.UUID, payload model.Payload) (model.EnrichedMessage, error) {
	start := time.Now()
	if recipient == uuid.Nil {
		r.metrics.Failed(ctx, KindDirect, "invalid")
		return model.EnrichedMessage{}, fmt.Errorf("%w: empty recipient", errs.ErrValidation)
	}
	msg := model.Message{Sender: origin.UserID, Recipient: recipient, Payload: payload}
	em, err := r.persist(ctx, KindDirect, msg)
	if err != nil {
		return model.EnrichedMessage{}, err
	}
	r.deliver(ctx, KindDirect, origin, em, []uuid.UUID{recipient, em.Sender})
	r.metrics.RouteDuration(ctx, KindDirect, time.Since(start).Seconds())
	return em, nil
}

// SendChannel delivers payload from the owner of origin to every member of channelID.
// Only members may post.
func (r *Router) SendChannel(ctx context.Context, origin *presence.Conn, channelID uuid.UUID, payload model.Payload) (model.EnrichedMessage, error) {
	start := time.Now()
	if channelID == uuid.Nil {
		r.metrics.Failed(ctx, KindChannel, "invalid")
		return model.EnrichedMessage{}, fmt.Errorf("%w: empty channel", errs.ErrValidation)
	}
	if err := model.ValidatePayload(payload); err != nil {
		r.metrics.Failed(ctx, KindChannel, "invalid")
		return model.EnrichedMessage{}, err
	}
	members, err := r.channels.MembersOf(ctx, channelID)
	if err != nil {
		r.metrics.Failed(ctx, KindChannel, reason(err))
		return model.EnrichedMessage{}, fmt.Errorf("channel %s: %w", channelID, err)
	}
	sender := origin.UserID
	if !contains(members, sender) {
		r.metrics.Failed(ctx, KindChannel, "forbidden")
		return model.EnrichedMessage{}, fmt.Errorf("%w: not a member of channel %s", errs.ErrForbidden, channelID)
	}

	msg := model.Message{Sender: sender, Channel: channelID, Payload: payload}
	em, err := r.persist(ctx, KindChannel, msg)
	if err != nil {
		return model.EnrichedMessage{}, err
	}
	r.deliver(ctx, KindChannel, origin, em, members)
	r.metrics.RouteDuration(ctx, KindChannel, time.Since(start).Seconds())
	return em, nil
}

// persist stamps, stores and enriches msg.
func (r *Router) persist(ctx context.Context, kind string, msg model.Message) (model.EnrichedMessage, error) {
	if err := msg.Validate(); err != nil {
		r.metrics.Failed(ctx, kind, "invalid")
		return model.EnrichedMessage{}, err
	}
	id, err := uuid.NewV4()
	if err != nil {
		r.metrics.Failed(ctx, kind, "internal")
		return model.EnrichedMessage{}, err
	}
	msg.ID = id
	msg.CreatedAt = r.stamp(msg.Sender)

	if err := r.messages.Create(ctx, &msg); err != nil {
		r.metrics.Failed(ctx, kind, reason(err))
		return model.EnrichedMessage{}, err
	}
	r.metrics.Sent(ctx, kind)

	profiles, err := r.users.Profiles(ctx, msg.Participants())
	if err != nil {
		r.log.Warn("router: enrich failed, delivering bare message",
			zap.Stringer("message", msg.ID), zap.Error(err))
		profiles = nil
	}
	return model.Enrich(msg, profiles), nil
}

// stampPrecision is the resolution timestamps survive storage at.
const stampPrecision = time.Microsecond

// stamp returns a creation time strictly after the sender's previous one at
// storage precision, so history sorted by time keeps the sender's send order.
func (r *Router) stamp(sender uuid.UUID) time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()

	t := r.now().UTC().Truncate(stampPrecision)
	if prev, ok := r.last[sender]; ok && !t.After(prev) {
		t = prev.Add(stampPrecision)
	}
	r.last[sender] = t
	return t
}

// deliver pushes a receive event to every connection of users except origin,
// each connection at most once, then publishes the message.
func (r *Router) deliver(ctx context.Context, kind string, origin *presence.Conn, em model.EnrichedMessage, users []uuid.UUID) {
	wm := convert.ToWireMessage(em)
	ev := wire.Receive(wm)

	seen := make(map[uuid.UUID]struct{})
	if origin != nil {
		seen[origin.ID] = struct{}{}
	}
	var sent, dropped int
	for _, u := range users {
		for _, c := range r.directory.ConnectionsFor(u) {
			if _, dup := seen[c.ID]; dup {
				continue
			}
			seen[c.ID] = struct{}{}
			if err := c.Push(&ev); err != nil {
				dropped++
				r.log.Debug("router: push failed",
					zap.Stringer("conn", c.ID), zap.Stringer("user", c.UserID), zap.Error(err))
				continue
			}
			sent++
		}
	}
	r.metrics.Delivered(ctx, kind, sent, dropped)

	if err := r.publisher.PublishMessage(ctx, wm); err != nil {
		r.log.Warn("router: publish failed", zap.Stringer("message", em.ID), zap.Error(err))
	}
}

func contains(ids []uuid.UUID, id uuid.UUID) bool {
	for _, x := range ids {
		if x == id {
			return true
		}
	}
	return false
}

// reason maps an error to a low-cardinality metric label.
func reason(err error) string {
	switch {
	case errors.Is(err, errs.ErrValidation):
		return "invalid"
	case errors.Is(err, errs.ErrNotFound):
		return "not_found"
	case errors.Is(err, errs.ErrForbidden):
		return "forbidden"
	case errors.Is(err, errs.ErrUnavailable):
		return "unavailable"
	}
	return "internal"
}

// Package events publishes persisted messages and presence transitions to downstream consumers.
package events

import (
	"context"
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/and161185/goph-chat/internal/wire"
)

// Publisher emits chat events. Implementations are best effort: callers log and ignore errors.
type Publisher interface {
	PublishMessage(ctx context.Context, m *wire.Message) error
	PublishPresence(ctx context.Context, userID uuid.UUID, online bool) error
	Close() error
}

// PresenceEvent is the payload of presence subjects.
type PresenceEvent struct {
	UserID string    `json:"userId"`
	Online bool      `json:"online"`
	At     time.Time `json:"at"`
}

// Nop discards every event.
type Nop struct{}

// PublishMessage implements Publisher.
func (Nop) PublishMessage(context.Context, *wire.Message) error { return nil }

// PublishPresence implements Publisher.
func (Nop) PublishPresence(context.Context, uuid.UUID, bool) error { return nil }

// Close implements Publisher.
func (Nop) Close() error { return nil }

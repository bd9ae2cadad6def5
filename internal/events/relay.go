package events

import (
	"context"
	"sync"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"
)

// DefaultRelayBuffer is the number of presence transitions a PresenceRelay queues.
const DefaultRelayBuffer = 1024

type transition struct {
	userID uuid.UUID
	online bool
}

// PresenceRelay forwards presence transitions to a Publisher from its own
// goroutine. Observe never blocks, so it is safe to call under a lock; when the
// queue is full the transition is dropped.
type PresenceRelay struct {
	pub Publisher
	log *zap.Logger

	mu     sync.Mutex
	closed bool
	queue  chan transition
	done   chan struct{}
}

// NewPresenceRelay starts a relay. Close stops it after draining the queue.
func NewPresenceRelay(pub Publisher, buffer int, log *zap.Logger) *PresenceRelay {
	if buffer <= 0 {
		buffer = DefaultRelayBuffer
	}
	if log == nil {
		log = zap.NewNop()
	}
	r := &PresenceRelay{
		pub:   pub,
		log:   log,
		queue: make(chan transition, buffer),
		done:  make(chan struct{}),
	}
	go r.run()
	return r
}

// Observe queues a transition. It matches presence.Observer.
func (r *PresenceRelay) Observe(userID uuid.UUID, online bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	select {
	case r.queue <- transition{userID: userID, online: online}:
	default:
		r.log.Warn("events: presence relay full, dropping transition",
			zap.Stringer("user", userID), zap.Bool("online", online))
	}
}

// Close stops accepting transitions and waits until queued ones are published.
func (r *PresenceRelay) Close() {
	r.mu.Lock()
	if !r.closed {
		r.closed = true
		close(r.queue)
	}
	r.mu.Unlock()
	<-r.done
}

func (r *PresenceRelay) run() {
	defer close(r.done)
	for t := range r.queue {
		if err := r.pub.PublishPresence(context.Background(), t.userID, t.online); err != nil {
			r.log.Debug("events: presence publish failed", zap.Stringer("user", t.userID), zap.Error(err))
		}
	}
}

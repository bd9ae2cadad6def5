package presence

import (
	"sync"
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/and161185/goph-chat/internal/errs"
	"github.com/and161185/goph-chat/internal/wire"
)

// DefaultBuffer is the outbound queue length used when none is configured.
const DefaultBuffer = 64

// Conn is one authenticated live connection of a user.
// Events are queued with Push and written by a single goroutine running Run.
type Conn struct {
	ID          uuid.UUID
	UserID      uuid.UUID
	ConnectedAt time.Time

	out       chan *wire.Event
	done      chan struct{}
	closeOnce sync.Once
}

// NewConn creates a connection for userID with an outbound queue of size buffer.
func NewConn(userID uuid.UUID, buffer int) *Conn {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	return &Conn{
		ID:          uuid.Must(uuid.NewV4()),
		UserID:      userID,
		ConnectedAt: time.Now(),
		out:         make(chan *wire.Event, buffer),
		done:        make(chan struct{}),
	}
}

// Push queues ev without blocking. A full queue closes the connection and
// returns errs.ErrSlowConsumer; a closed connection returns errs.ErrConnClosed.
func (c *Conn) Push(ev *wire.Event) error {
	select {
	case <-c.done:
		return errs.ErrConnClosed
	default:
	}
	select {
	case c.out <- ev:
		return nil
	default:
		c.Close()
		return errs.ErrSlowConsumer
	}
}

// Close marks the connection closed. Safe to call many times.
func (c *Conn) Close() {
	c.closeOnce.Do(func() { close(c.done) })
}

// Done is closed when the connection is closed.
func (c *Conn) Done() <-chan struct{} { return c.done }

// Closed reports whether Close has been called.
func (c *Conn) Closed() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

// Run writes queued events with send until the connection closes or send fails.
// Events already queued at close time are flushed. The out channel is never closed.
func (c *Conn) Run(send func(*wire.Event) error) error {
	for {
		select {
		case ev := <-c.out:
			if err := send(ev); err != nil {
				c.Close()
				return err
			}
		case <-c.done:
			for {
				select {
				case ev := <-c.out:
					if err := send(ev); err != nil {
						return err
					}
				default:
					return nil
				}
			}
		}
	}
}

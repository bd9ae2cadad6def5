package events

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// gatedPublisher blocks PublishPresence until release is closed.
type gatedPublisher struct {
	Nop
	release chan struct{}

	mu   sync.Mutex
	seen []bool
}

func (p *gatedPublisher) PublishPresence(_ context.Context, _ uuid.UUID, online bool) error {
	<-p.release
	p.mu.Lock()
	defer p.mu.Unlock()
	p.seen = append(p.seen, online)
	return nil
}

func TestPresenceRelay_ObserveNeverBlocks(t *testing.T) {
	t.Parallel()
	pub := &gatedPublisher{release: make(chan struct{})}
	r := NewPresenceRelay(pub, 2, zaptest.NewLogger(t))
	u := uuid.Must(uuid.NewV4())

	observed := make(chan struct{})
	go func() {
		// one in flight, two queued, the rest dropped
		for i := 0; i < 10; i++ {
			r.Observe(u, i%2 == 0)
		}
		close(observed)
	}()
	select {
	case <-observed:
	case <-time.After(2 * time.Second):
		t.Fatal("Observe blocked on a stalled publisher")
	}

	close(pub.release)
	r.Close()

	pub.mu.Lock()
	defer pub.mu.Unlock()
	require.NotEmpty(t, pub.seen)
	require.LessOrEqual(t, len(pub.seen), 3)
	require.True(t, pub.seen[0])
}

func TestPresenceRelay_CloseDrainsInOrder(t *testing.T) {
	t.Parallel()
	pub := &gatedPublisher{release: make(chan struct{})}
	close(pub.release)
	r := NewPresenceRelay(pub, 0, nil)
	u := uuid.Must(uuid.NewV4())

	r.Observe(u, true)
	r.Observe(u, false)
	r.Observe(u, true)
	r.Close()
	r.Close()
	r.Observe(u, false)

	require.Equal(t, []bool{true, false, true}, pub.seen)
}

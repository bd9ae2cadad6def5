package limiter

import (
	"context"
	"sync"
	"time"
)

type entry struct {
	fails        int
	windowStart  time.Time
	blockedUntil time.Time
}

// Memory is an in-process limiter used when the server runs without a database.
type Memory struct {
	mu  sync.Mutex
	pol Policy
	now func() time.Time
	m   map[string]*entry
}

// NewMemory constructs an in-process limiter.
func NewMemory(pol Policy) *Memory {
	return &Memory{pol: pol, now: time.Now, m: make(map[string]*entry)}
}

// Allow implements Limiter.
func (l *Memory) Allow(_ context.Context, subject string) (bool, time.Duration, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.m[subject]
	if !ok {
		return true, 0, nil
	}
	if left := e.blockedUntil.Sub(l.now()); left > 0 {
		return false, left, nil
	}
	return true, 0, nil
}

// Success implements Limiter.
func (l *Memory) Success(_ context.Context, subject string) error {
	l.mu.Lock()
	delete(l.m, subject)
	l.mu.Unlock()
	return nil
}

// Failure implements Limiter.
func (l *Memory) Failure(_ context.Context, subject string) (bool, time.Duration, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	e, ok := l.m[subject]
	if !ok || now.Sub(e.windowStart) > l.pol.Window {
		e = &entry{windowStart: now, blockedUntil: e.blockedIfAny()}
		l.m[subject] = e
	}
	e.fails++
	if e.fails < l.pol.MaxFails {
		return false, 0, nil
	}
	e.fails, e.windowStart, e.blockedUntil = 0, now, now.Add(l.pol.BlockFor)
	return true, l.pol.BlockFor, nil
}

func (e *entry) blockedIfAny() time.Time {
	if e == nil {
		return time.Time{}
	}
	return e.blockedUntil
}

// Package limiter throttles login attempts per subject with a sliding failure window and lockout.
package limiter

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
)

// Limiter controls login attempts and temporary lockouts.
type Limiter interface {
	// Allow reports whether a login for subject may proceed, and the remaining lockout otherwise.
	Allow(ctx context.Context, subject string) (bool, time.Duration, error)
	// Success clears the failure history of subject.
	Success(ctx context.Context, subject string) error
	// Failure records a failed attempt and reports whether subject is now locked out.
	Failure(ctx context.Context, subject string) (bool, time.Duration, error)
}

// Policy is the lockout configuration shared by implementations.
type Policy struct {
	Window   time.Duration // failures older than Window are forgotten
	MaxFails int           // failures within Window that trigger a lockout
	BlockFor time.Duration // lockout duration
}

// Subject derives a stable opaque key from an email and the peer host so raw addresses are never stored.
func Subject(email, peer string) string {
	h := sha256.Sum256([]byte(strings.ToLower(strings.TrimSpace(email)) + "|" + peer))
	return hex.EncodeToString(h[:])
}

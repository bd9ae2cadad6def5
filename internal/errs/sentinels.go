// Package errs contains sentinel errors used across layers for stable error mapping.
package errs

import "errors"

// Common sentinels across repo/service layers.
var (
	// ErrNotFound indicates the requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrUnauthorized indicates failed authentication/authorization.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrRateLimited indicates temporary login lock due to rate limiting.
	ErrRateLimited = errors.New("rate limited")

	// ErrAlreadyExists indicates a unique constraint violation (e.g., email taken).
	ErrAlreadyExists = errors.New("already exists")

	// ErrValidation indicates a request whose fields violate the message or entity invariants.
	ErrValidation = errors.New("validation")

	// ErrForbidden indicates an authenticated caller acting outside its rights (e.g., non-member posting to a channel).
	ErrForbidden = errors.New("forbidden")

	// ErrUnavailable indicates a collaborator (store, object storage) that cannot serve the request.
	ErrUnavailable = errors.New("unavailable")
)

// Connection-level sentinels.
var (
	// ErrHandshakeTimeout indicates a connection that did not authenticate in time.
	ErrHandshakeTimeout = errors.New("handshake timeout")

	// ErrConnClosed indicates a push to a connection that is already closed.
	ErrConnClosed = errors.New("connection closed")

	// ErrSlowConsumer indicates a push dropped because the outbound queue is full.
	ErrSlowConsumer = errors.New("slow consumer")
)

// Package model defines domain entities used by services and repositories.
package model

import (
	"time"

	"github.com/gofrs/uuid/v5"
)

// Tokens collects issued access tokens.
type Tokens struct {
	AccessToken string
	ExpiresAt   time.Time // access token expiry (for diagnostics)
}

// User represents an account stored on the server. Passwords are never stored in plaintext.
type User struct {
	ID        uuid.UUID // PK
	Email     string    // unique
	PwdHash   []byte    // Argon2id(password, SaltAuth)
	SaltAuth  []byte    // per-user auth salt
	Profile   Profile
	CreatedAt time.Time
}

// Profile is the display subset of a user attached to delivered messages.
type Profile struct {
	ID        uuid.UUID
	Email     string
	FirstName string
	LastName  string
	Image     string
	Color     int
}

// Channel is a named group conversation. Members are ordered by join position.
type Channel struct {
	ID        uuid.UUID
	Name      string
	Admin     uuid.UUID
	Members   []uuid.UUID
	CreatedAt time.Time
}

// HasMember reports whether id is in the channel member list.
func (c Channel) HasMember(id uuid.UUID) bool {
	for _, m := range c.Members {
		if m == id {
			return true
		}
	}
	return false
}

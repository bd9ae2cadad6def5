// Package crypto implements server-side password hashing for chat accounts.
package crypto

import (
	"crypto/rand"
	"crypto/subtle"
	"errors"

	"golang.org/x/crypto/argon2"
)

// SaltLen is the length of per-user auth salts.
const SaltLen = 16

// Params are Argon2id cost parameters.
type Params struct {
	Time    uint32 // iterations
	Memory  uint32 // KiB
	Threads uint8
	KeyLen  uint32
}

// DefaultParams are tuned for interactive logins on a server core.
var DefaultParams = Params{Time: 3, Memory: 64 * 1024, Threads: 1, KeyLen: 32}

// Hasher derives and checks password hashes with fixed parameters.
type Hasher struct{ p Params }

// NewHasher returns a Hasher using p.
func NewHasher(p Params) *Hasher { return &Hasher{p: p} }

// NewSalt returns a fresh random salt.
func NewSalt() ([]byte, error) {
	b := make([]byte, SaltLen)
	if _, err := rand.Read(b); err != nil {
		return nil, err
	}
	return b, nil
}

// Hash returns the Argon2id hash of password under salt.
func (h *Hasher) Hash(password string, salt []byte) ([]byte, error) {
	if len(salt) == 0 {
		return nil, errors.New("crypto: empty salt")
	}
	return argon2.IDKey([]byte(password), salt, h.p.Time, h.p.Memory, h.p.Threads, h.p.KeyLen), nil
}

// Verify reports whether password hashes to expected under salt. Comparison is constant time.
func (h *Hasher) Verify(password string, salt, expected []byte) bool {
	got, err := h.Hash(password, salt)
	if err != nil {
		return false
	}
	return subtle.ConstantTimeCompare(got, expected) == 1
}

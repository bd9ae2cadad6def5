// Package repository defines storage interfaces implemented by concrete backends.
package repository

import (
	"context"

	"github.com/gofrs/uuid/v5"

	"github.com/and161185/goph-chat/internal/model"
)

// UserRepository provides access to accounts and their display profiles.
type UserRepository interface {
	// Create inserts a new user.
	Create(ctx context.Context, u *model.User) error
	// GetByID loads a user by ID.
	GetByID(ctx context.Context, id uuid.UUID) (*model.User, error)
	// GetByEmail loads a user by email.
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	// Profiles loads display profiles for the given IDs. Unknown IDs are omitted.
	Profiles(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]model.Profile, error)
}

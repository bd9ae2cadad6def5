package repository

import (
	"context"

	"github.com/gofrs/uuid/v5"

	"github.com/and161185/goph-chat/internal/model"
)

// ChannelRepository stores channels and their ordered member lists.
type ChannelRepository interface {
	// Create inserts a channel with its members in order.
	Create(ctx context.Context, c *model.Channel) error

	// Get loads a channel with its members.
	Get(ctx context.Context, id uuid.UUID) (*model.Channel, error)

	// MembersOf returns the ordered, duplicate-free member list of a channel.
	MembersOf(ctx context.Context, id uuid.UUID) ([]uuid.UUID, error)

	// ListForUser returns the channels the user is a member of, newest first.
	ListForUser(ctx context.Context, userID uuid.UUID) ([]model.Channel, error)
}

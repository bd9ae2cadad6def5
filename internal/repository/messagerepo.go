package repository

import (
	"context"

	"github.com/gofrs/uuid/v5"

	"github.com/and161185/goph-chat/internal/model"
)

// MessageRepository is the durable message store.
type MessageRepository interface {
	// Create persists a validated message. The message must already carry its ID and CreatedAt.
	Create(ctx context.Context, m *model.Message) error

	// FindConversation returns the contact messages exchanged between a and b ordered by CreatedAt ASC.
	FindConversation(ctx context.Context, a, b uuid.UUID) ([]model.Message, error)

	// FindChannelHistory returns the messages posted to a channel ordered by CreatedAt ASC.
	FindChannelHistory(ctx context.Context, channelID uuid.UUID) ([]model.Message, error)
}

package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"github.com/and161185/goph-chat/internal/errs"
	"github.com/and161185/goph-chat/internal/model"
	"github.com/and161185/goph-chat/internal/repository"
)

// HistoryService serves persisted conversations and channel management.
type HistoryService interface {
	// Conversation returns both directions of the user's conversation with contact, oldest first.
	Conversation(ctx context.Context, userID, contact uuid.UUID) ([]model.EnrichedMessage, error)
	// ChannelHistory returns the messages of a channel the user belongs to, oldest first.
	ChannelHistory(ctx context.Context, userID, channelID uuid.UUID) ([]model.EnrichedMessage, error)
	// CreateChannel creates a channel administered by admin; admin becomes its first member.
	CreateChannel(ctx context.Context, admin uuid.UUID, name string, members []uuid.UUID) (*model.Channel, error)
	// ListChannels returns the user's channels, newest first.
	ListChannels(ctx context.Context, userID uuid.UUID) ([]model.Channel, error)
}

// HistoryServiceImpl implements HistoryService.
type HistoryServiceImpl struct {
	users      repository.UserRepository
	messages   repository.MessageRepository
	channels   repository.ChannelRepository
	maxMembers int
	log        *zap.Logger
}

// NewHistoryService constructs HistoryService. maxMembers bounds channel size.
func NewHistoryService(users repository.UserRepository, messages repository.MessageRepository,
	channels repository.ChannelRepository, maxMembers int, log *zap.Logger) *HistoryServiceImpl {
	if maxMembers <= 0 {
		maxMembers = 256
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &HistoryServiceImpl{users: users, messages: messages, channels: channels, maxMembers: maxMembers, log: log}
}

// Conversation implements HistoryService.
func (s *HistoryServiceImpl) Conversation(ctx context.Context, userID, contact uuid.UUID) ([]model.EnrichedMessage, error) {
	if userID == uuid.Nil || contact == uuid.Nil {
		return nil, fmt.Errorf("%w: empty user or contact", errs.ErrValidation)
	}
	msgs, err := s.messages.FindConversation(ctx, userID, contact)
	if err != nil {
		return nil, err
	}
	return s.enrich(ctx, msgs), nil
}

// ChannelHistory implements HistoryService. Non-members get errs.ErrForbidden.
func (s *HistoryServiceImpl) ChannelHistory(ctx context.Context, userID, channelID uuid.UUID) ([]model.EnrichedMessage, error) {
	if channelID == uuid.Nil {
		return nil, fmt.Errorf("%w: empty channel", errs.ErrValidation)
	}
	members, err := s.channels.MembersOf(ctx, channelID)
	if err != nil {
		return nil, err
	}
	if !(model.Channel{Members: members}).HasMember(userID) {
		return nil, errs.ErrForbidden
	}
	msgs, err := s.messages.FindChannelHistory(ctx, channelID)
	if err != nil {
		return nil, err
	}
	return s.enrich(ctx, msgs), nil
}

// CreateChannel implements HistoryService. Members are deduplicated preserving first occurrence.
func (s *HistoryServiceImpl) CreateChannel(ctx context.Context, admin uuid.UUID, name string, members []uuid.UUID) (*model.Channel, error) {
	name = strings.TrimSpace(name)
	if admin == uuid.Nil || name == "" {
		return nil, fmt.Errorf("%w: channel requires admin and name", errs.ErrValidation)
	}

	seen := map[uuid.UUID]struct{}{admin: {}}
	list := []uuid.UUID{admin}
	for _, m := range members {
		if m == uuid.Nil {
			return nil, fmt.Errorf("%w: empty member id", errs.ErrValidation)
		}
		if _, ok := seen[m]; ok {
			continue
		}
		seen[m] = struct{}{}
		list = append(list, m)
	}
	if len(list) > s.maxMembers {
		return nil, fmt.Errorf("%w: too many members (%d > %d)", errs.ErrValidation, len(list), s.maxMembers)
	}

	id, err := uuid.NewV4()
	if err != nil {
		return nil, err
	}
	c := &model.Channel{ID: id, Name: name, Admin: admin, Members: list, CreatedAt: time.Now().UTC()}
	if err := s.channels.Create(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// ListChannels implements HistoryService.
func (s *HistoryServiceImpl) ListChannels(ctx context.Context, userID uuid.UUID) ([]model.Channel, error) {
	if userID == uuid.Nil {
		return nil, fmt.Errorf("%w: empty user", errs.ErrValidation)
	}
	return s.channels.ListForUser(ctx, userID)
}

// enrich attaches profiles; a profile lookup failure degrades to bare ids.
func (s *HistoryServiceImpl) enrich(ctx context.Context, msgs []model.Message) []model.EnrichedMessage {
	ids := map[uuid.UUID]struct{}{}
	for _, m := range msgs {
		for _, id := range m.Participants() {
			ids[id] = struct{}{}
		}
	}
	list := make([]uuid.UUID, 0, len(ids))
	for id := range ids {
		list = append(list, id)
	}

	profiles, err := s.users.Profiles(ctx, list)
	if err != nil {
		s.log.Warn("history: profile lookup failed", zap.Error(err))
		profiles = nil
	}

	out := make([]model.EnrichedMessage, len(msgs))
	for i, m := range msgs {
		out[i] = model.Enrich(m, profiles)
	}
	return out
}

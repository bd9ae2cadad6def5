// Package memory provides an in-process implementation of the repository interfaces.
// It backs the server when no database DSN is configured and serves as a test double.
package memory

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/gofrs/uuid/v5"

	"github.com/and161185/goph-chat/internal/errs"
	"github.com/and161185/goph-chat/internal/model"
)

// Store keeps users, messages and channels in maps guarded by one RWMutex.
type Store struct {
	mu       sync.RWMutex
	users    map[uuid.UUID]model.User
	byEmail  map[string]uuid.UUID
	messages []model.Message
	channels map[uuid.UUID]model.Channel
}

// New returns an empty store.
func New() *Store {
	return &Store{
		users:    make(map[uuid.UUID]model.User),
		byEmail:  make(map[string]uuid.UUID),
		channels: make(map[uuid.UUID]model.Channel),
	}
}

// Users returns the store as a UserRepository.
func (s *Store) Users() *Users { return (*Users)(s) }

// Messages returns the store as a MessageRepository.
func (s *Store) Messages() *Messages { return (*Messages)(s) }

// Channels returns the store as a ChannelRepository.
func (s *Store) Channels() *Channels { return (*Channels)(s) }

// Users is the user view of a Store.
type Users Store

// Create inserts a user; the email must be unique.
func (u *Users) Create(_ context.Context, usr *model.User) error {
	s := (*Store)(u)
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byEmail[usr.Email]; ok {
		return errs.ErrAlreadyExists
	}
	cp := *usr
	cp.PwdHash = bytes.Clone(usr.PwdHash)
	cp.SaltAuth = bytes.Clone(usr.SaltAuth)
	cp.Profile.ID, cp.Profile.Email = usr.ID, usr.Email
	s.users[usr.ID] = cp
	s.byEmail[usr.Email] = usr.ID
	return nil
}

// GetByID loads a user by ID.
func (u *Users) GetByID(_ context.Context, id uuid.UUID) (*model.User, error) {
	s := (*Store)(u)
	s.mu.RLock()
	defer s.mu.RUnlock()

	usr, ok := s.users[id]
	if !ok {
		return nil, errs.ErrNotFound
	}
	return &usr, nil
}

// GetByEmail loads a user by email.
func (u *Users) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	s := (*Store)(u)
	s.mu.RLock()
	id, ok := s.byEmail[email]
	s.mu.RUnlock()
	if !ok {
		return nil, errs.ErrNotFound
	}
	return u.GetByID(ctx, id)
}

// Profiles returns profiles for the known IDs among ids.
func (u *Users) Profiles(_ context.Context, ids []uuid.UUID) (map[uuid.UUID]model.Profile, error) {
	s := (*Store)(u)
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[uuid.UUID]model.Profile, len(ids))
	for _, id := range ids {
		if usr, ok := s.users[id]; ok {
			out[id] = usr.Profile
		}
	}
	return out, nil
}

// Messages is the message view of a Store.
type Messages Store

// Create appends a validated message. Referenced users and channels must exist.
func (m *Messages) Create(_ context.Context, msg *model.Message) error {
	if err := msg.Validate(); err != nil {
		return err
	}
	s := (*Store)(m)
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[msg.Sender]; !ok {
		return fmt.Errorf("create message: sender: %w", errs.ErrNotFound)
	}
	if msg.IsChannel() {
		if _, ok := s.channels[msg.Channel]; !ok {
			return fmt.Errorf("create message: channel: %w", errs.ErrNotFound)
		}
	} else if _, ok := s.users[msg.Recipient]; !ok {
		return fmt.Errorf("create message: recipient: %w", errs.ErrNotFound)
	}
	s.messages = append(s.messages, *msg)
	return nil
}

// FindConversation returns both directions of a contact conversation, oldest first.
func (m *Messages) FindConversation(_ context.Context, a, b uuid.UUID) ([]model.Message, error) {
	return m.filter(func(msg model.Message) bool {
		if msg.IsChannel() {
			return false
		}
		return (msg.Sender == a && msg.Recipient == b) || (msg.Sender == b && msg.Recipient == a)
	}), nil
}

// FindChannelHistory returns channel messages, oldest first.
func (m *Messages) FindChannelHistory(_ context.Context, channelID uuid.UUID) ([]model.Message, error) {
	return m.filter(func(msg model.Message) bool { return msg.Channel == channelID }), nil
}

func (m *Messages) filter(keep func(model.Message) bool) []model.Message {
	s := (*Store)(m)
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []model.Message{}
	for _, msg := range s.messages {
		if keep(msg) {
			out = append(out, msg)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID.String() < out[j].ID.String()
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// Channels is the channel view of a Store.
type Channels Store

// Create stores a channel. Every member must be a known user.
func (c *Channels) Create(_ context.Context, ch *model.Channel) error {
	s := (*Store)(c)
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.channels[ch.ID]; ok {
		return errs.ErrAlreadyExists
	}
	for i, id := range ch.Members {
		if _, ok := s.users[id]; !ok {
			return fmt.Errorf("member[%d]: %w", i, errs.ErrNotFound)
		}
	}
	cp := *ch
	cp.Members = append([]uuid.UUID(nil), ch.Members...)
	s.channels[ch.ID] = cp
	return nil
}

// Get loads a channel.
func (c *Channels) Get(_ context.Context, id uuid.UUID) (*model.Channel, error) {
	s := (*Store)(c)
	s.mu.RLock()
	defer s.mu.RUnlock()

	ch, ok := s.channels[id]
	if !ok {
		return nil, errs.ErrNotFound
	}
	ch.Members = append([]uuid.UUID(nil), ch.Members...)
	return &ch, nil
}

// MembersOf returns the ordered member list.
func (c *Channels) MembersOf(ctx context.Context, id uuid.UUID) ([]uuid.UUID, error) {
	ch, err := c.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return ch.Members, nil
}

// ListForUser returns the user's channels, newest first.
func (c *Channels) ListForUser(_ context.Context, userID uuid.UUID) ([]model.Channel, error) {
	s := (*Store)(c)
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []model.Channel{}
	for _, ch := range s.channels {
		if ch.HasMember(userID) {
			ch.Members = append([]uuid.UUID(nil), ch.Members...)
			out = append(out, ch)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

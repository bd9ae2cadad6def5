package memory

import (
	"context"
	"testing"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/stretchr/testify/require"

	"github.com/and161185/goph-chat/internal/errs"
	"github.com/and161185/goph-chat/internal/model"
	"github.com/and161185/goph-chat/internal/repository"
)

var (
	_ repository.UserRepository    = (*Users)(nil)
	_ repository.MessageRepository = (*Messages)(nil)
	_ repository.ChannelRepository = (*Channels)(nil)
)

func addUser(t *testing.T, s *Store, email string) uuid.UUID {
	t.Helper()
	id := uuid.Must(uuid.NewV4())
	require.NoError(t, s.Users().Create(context.Background(), &model.User{
		ID: id, Email: email, Profile: model.Profile{FirstName: email},
	}))
	return id
}

func TestUsers(t *testing.T) {
	s := New()
	ctx := context.Background()
	a := addUser(t, s, "a@x")

	err := s.Users().Create(ctx, &model.User{ID: uuid.Must(uuid.NewV4()), Email: "a@x"})
	require.ErrorIs(t, err, errs.ErrAlreadyExists)

	u, err := s.Users().GetByEmail(ctx, "a@x")
	require.NoError(t, err)
	require.Equal(t, a, u.ID)
	require.Equal(t, a, u.Profile.ID)

	_, err = s.Users().GetByID(ctx, uuid.Must(uuid.NewV4()))
	require.ErrorIs(t, err, errs.ErrNotFound)

	ps, err := s.Users().Profiles(ctx, []uuid.UUID{a, uuid.Must(uuid.NewV4())})
	require.NoError(t, err)
	require.Len(t, ps, 1)
	require.Equal(t, "a@x", ps[a].Email)
}

func TestMessages_ConversationOrderAndFiltering(t *testing.T) {
	s := New()
	ctx := context.Background()
	a := addUser(t, s, "a@x")
	b := addUser(t, s, "b@x")
	c := addUser(t, s, "c@x")
	t0 := time.Now()

	put := func(from, to uuid.UUID, at time.Time, text string) {
		require.NoError(t, s.Messages().Create(ctx, &model.Message{
			ID: uuid.Must(uuid.NewV4()), Sender: from, Recipient: to,
			Payload: model.Text{Content: text}, CreatedAt: at,
		}))
	}
	put(b, a, t0.Add(2*time.Second), "second")
	put(a, b, t0, "first")
	put(a, c, t0.Add(time.Second), "other")

	out, err := s.Messages().FindConversation(ctx, a, b)
	require.NoError(t, err)
	require.Len(t, out, 2)
	require.Equal(t, model.Text{Content: "first"}, out[0].Payload)
	require.Equal(t, model.Text{Content: "second"}, out[1].Payload)

	out, err = s.Messages().FindConversation(ctx, b, c)
	require.NoError(t, err)
	require.NotNil(t, out)
	require.Empty(t, out)
}

func TestMessages_CreateRejects(t *testing.T) {
	s := New()
	ctx := context.Background()
	a := addUser(t, s, "a@x")

	err := s.Messages().Create(ctx, &model.Message{
		ID: uuid.Must(uuid.NewV4()), Sender: a, Recipient: uuid.Must(uuid.NewV4()), Payload: model.Text{Content: "x"},
	})
	require.ErrorIs(t, err, errs.ErrNotFound)

	err = s.Messages().Create(ctx, &model.Message{
		ID: uuid.Must(uuid.NewV4()), Sender: a, Recipient: a, Payload: model.File{},
	})
	require.ErrorIs(t, err, errs.ErrValidation)
}

func TestChannels(t *testing.T) {
	s := New()
	ctx := context.Background()
	a := addUser(t, s, "a@x")
	b := addUser(t, s, "b@x")
	t0 := time.Now()

	old := &model.Channel{ID: uuid.Must(uuid.NewV4()), Name: "old", Admin: a, Members: []uuid.UUID{a, b}, CreatedAt: t0}
	neu := &model.Channel{ID: uuid.Must(uuid.NewV4()), Name: "new", Admin: a, Members: []uuid.UUID{a}, CreatedAt: t0.Add(time.Minute)}
	require.NoError(t, s.Channels().Create(ctx, old))
	require.NoError(t, s.Channels().Create(ctx, neu))

	bad := &model.Channel{ID: uuid.Must(uuid.NewV4()), Admin: a, Members: []uuid.UUID{a, uuid.Must(uuid.NewV4())}}
	require.ErrorIs(t, s.Channels().Create(ctx, bad), errs.ErrNotFound)

	members, err := s.Channels().MembersOf(ctx, old.ID)
	require.NoError(t, err)
	require.Equal(t, []uuid.UUID{a, b}, members)

	list, err := s.Channels().ListForUser(ctx, a)
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, "new", list[0].Name)

	list, err = s.Channels().ListForUser(ctx, b)
	require.NoError(t, err)
	require.Len(t, list, 1)

	require.NoError(t, s.Messages().Create(ctx, &model.Message{
		ID: uuid.Must(uuid.NewV4()), Sender: b, Channel: old.ID, Payload: model.Text{Content: "hey"}, CreatedAt: t0,
	}))
	hist, err := s.Messages().FindChannelHistory(ctx, old.ID)
	require.NoError(t, err)
	require.Len(t, hist, 1)

	_, err = s.Channels().MembersOf(ctx, uuid.Must(uuid.NewV4()))
	require.ErrorIs(t, err, errs.ErrNotFound)
}

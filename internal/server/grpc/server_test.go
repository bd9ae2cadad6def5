package grpcserver

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"github.com/and161185/goph-chat/api/chatv1"
	"github.com/and161185/goph-chat/internal/auth"
	pkgcrypto "github.com/and161185/goph-chat/internal/crypto"
	"github.com/and161185/goph-chat/internal/limiter"
	"github.com/and161185/goph-chat/internal/presence"
	"github.com/and161185/goph-chat/internal/repository/memory"
	"github.com/and161185/goph-chat/internal/router"
	"github.com/and161185/goph-chat/internal/service"
	"github.com/and161185/goph-chat/internal/session"
	"github.com/and161185/goph-chat/internal/wire"
)

const bufSize = 1 << 20

type stack struct {
	reg *presence.Registry
	cl  chatv1.ChatClient
}

// startBufGRPC wires the full server over an in-memory store and a bufconn listener.
func startBufGRPC(t *testing.T) *stack {
	t.Helper()
	log := zaptest.NewLogger(t)
	store := memory.New()
	tokens := auth.NewTokens([]byte("test-secret"), time.Hour)
	hasher := pkgcrypto.NewHasher(pkgcrypto.Params{Time: 1, Memory: 1024, Threads: 1, KeyLen: 32})
	lim := limiter.NewMemory(limiter.Policy{Window: time.Minute, MaxFails: 5, BlockFor: time.Minute})
	uploads, err := service.NewUploadService(context.Background(), service.S3Config{})
	require.NoError(t, err)

	reg := presence.NewRegistry(log)
	rt := router.New(router.Deps{
		Users:     store.Users(),
		Messages:  store.Messages(),
		Channels:  store.Channels(),
		Directory: reg,
		Log:       log,
	})
	sessions := session.NewManager(tokens, reg, rt, session.Config{HandshakeTimeout: time.Second}, log)
	srv := New(
		service.NewAuthService(store.Users(), tokens, hasher, lim),
		service.NewHistoryService(store.Users(), store.Messages(), store.Channels(), 16, log),
		uploads, sessions, tokens,
	)

	lis := bufconn.Listen(bufSize)
	gs := grpc.NewServer(ServerOptions(log, tokens)...)
	chatv1.RegisterChatServer(gs, srv)
	go func() { _ = gs.Serve(lis) }()

	dialer := func(context.Context, string) (net.Conn, error) { return lis.Dial() }
	cc, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(dialer), grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = cc.Close()
		reg.Close()
		gs.Stop()
		_ = lis.Close()
	})
	return &stack{reg: reg, cl: chatv1.NewChatClient(cc)}
}

func ctxAuth(token string) context.Context {
	return metadata.AppendToOutgoingContext(context.Background(), "authorization", "Bearer "+token)
}

type account struct {
	id    string
	token string
}

func (s *stack) signup(t *testing.T, email, first string) account {
	t.Helper()
	ctx := context.Background()
	rr, err := s.cl.Register(ctx, &chatv1.RegisterRequest{Email: email, Password: "correct horse", FirstName: first})
	require.NoError(t, err)
	require.NotEmpty(t, rr.User.ID)

	lr, err := s.cl.Login(ctx, &chatv1.LoginRequest{Email: email, Password: "correct horse"})
	require.NoError(t, err)
	require.Equal(t, rr.User.ID, lr.User.ID)
	require.True(t, lr.ExpiresAt.After(time.Now()))
	return account{id: rr.User.ID, token: lr.AccessToken}
}

func recv(t *testing.T, st chatv1.Chat_ConnectClient) *wire.Event {
	t.Helper()
	ev, err := st.Recv()
	require.NoError(t, err)
	return ev
}

func TestServer_E2E_ChatFlow(t *testing.T) {
	t.Parallel()
	s := startBufGRPC(t)
	alice := s.signup(t, "alice@example.com", "Alice")
	bob := s.signup(t, "bob@example.com", "Bob")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// alice authenticates with metadata
	as, err := s.cl.Connect(metadata.AppendToOutgoingContext(ctx, "authorization", "Bearer "+alice.token))
	require.NoError(t, err)
	ack := recv(t, as)
	require.Equal(t, wire.TypeHandshakeAck, ack.Type)
	require.Equal(t, alice.id, ack.UserID)
	require.Equal(t, wire.TypePresenceSnapshot, recv(t, as).Type)

	// bob authenticates with a first auth event
	bs, err := s.cl.Connect(ctx)
	require.NoError(t, err)
	require.NoError(t, bs.Send(&wire.Inbound{Type: wire.TypeAuth, Token: bob.token}))
	require.Equal(t, wire.TypeHandshakeAck, recv(t, bs).Type)
	snap := recv(t, bs)
	require.True(t, snap.Presence[alice.id])

	online := recv(t, as)
	require.Equal(t, wire.TypePresence, online.Type)
	require.Equal(t, bob.id, online.UserID)

	require.NoError(t, as.Send(&wire.Inbound{
		Type: wire.TypeSendDirect, RequestID: "r1", Recipient: bob.id, MessageType: "text", Content: "hello bob",
	}))
	sent := recv(t, as)
	require.Equal(t, wire.TypeSendAck, sent.Type)
	require.Equal(t, "r1", sent.RequestID)

	got := recv(t, bs)
	require.Equal(t, wire.TypeReceiveMessage, got.Type)
	require.Equal(t, sent.Message.ID, got.Message.ID)
	require.Equal(t, "Alice", got.Message.Sender.FirstName)

	hist, err := s.cl.Conversation(ctxAuth(bob.token), &chatv1.ConversationRequest{Contact: alice.id})
	require.NoError(t, err)
	require.Len(t, hist.Messages, 1)
	require.Equal(t, "hello bob", hist.Messages[0].Content)

	chr, err := s.cl.CreateChannel(ctxAuth(alice.token), &chatv1.CreateChannelRequest{Name: "team", Members: []string{bob.id}})
	require.NoError(t, err)
	require.Equal(t, []string{alice.id, bob.id}, chr.Channel.Members)

	require.NoError(t, bs.Send(&wire.Inbound{
		Type: wire.TypeSendChannel, RequestID: "c1", ChannelID: chr.Channel.ID, MessageType: "text", Content: "hi team",
	}))
	require.Equal(t, wire.TypeSendAck, recv(t, bs).Type)
	cm := recv(t, as)
	require.Equal(t, wire.TypeReceiveChannelMsg, cm.Type)
	require.Equal(t, chr.Channel.ID, cm.Message.ChannelID)

	chh, err := s.cl.ChannelHistory(ctxAuth(alice.token), &chatv1.ChannelHistoryRequest{ChannelID: chr.Channel.ID})
	require.NoError(t, err)
	require.Len(t, chh.Messages, 1)

	lst, err := s.cl.ListChannels(ctxAuth(bob.token), &chatv1.ListChannelsRequest{})
	require.NoError(t, err)
	require.Len(t, lst.Channels, 1)

	require.NoError(t, bs.Send(&wire.Inbound{Type: wire.TypeLogout}))
	_, err = bs.Recv()
	require.Error(t, err)

	offline := recv(t, as)
	require.Equal(t, wire.TypePresence, offline.Type)
	require.False(t, *offline.Online)
}

func TestServer_E2E_Errors(t *testing.T) {
	t.Parallel()
	s := startBufGRPC(t)
	alice := s.signup(t, "alice@example.com", "Alice")
	bg := context.Background()

	_, err := s.cl.Register(bg, &chatv1.RegisterRequest{Email: "alice@example.com", Password: "correct horse"})
	require.Equal(t, codes.AlreadyExists, status.Code(err))

	_, err = s.cl.Register(bg, &chatv1.RegisterRequest{})
	require.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = s.cl.Login(bg, &chatv1.LoginRequest{Email: "alice@example.com", Password: "wrong password"})
	require.Equal(t, codes.Unauthenticated, status.Code(err))

	_, err = s.cl.Conversation(bg, &chatv1.ConversationRequest{Contact: alice.id})
	require.Equal(t, codes.Unauthenticated, status.Code(err))

	_, err = s.cl.Conversation(ctxAuth(alice.token), &chatv1.ConversationRequest{Contact: "nope"})
	require.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = s.cl.RequestUpload(ctxAuth(alice.token), &chatv1.UploadRequest{FileName: "a.png", ContentType: "image/png", Size: 10})
	require.Equal(t, codes.Unavailable, status.Code(err))

	st, err := s.cl.Connect(ctxAuth("forged"))
	require.NoError(t, err)
	_, err = st.Recv()
	require.Equal(t, codes.Unauthenticated, status.Code(err))
	require.Zero(t, s.reg.OnlineCount())
}

func TestServer_E2E_LoginRateLimited(t *testing.T) {
	t.Parallel()
	s := startBufGRPC(t)
	s.signup(t, "alice@example.com", "Alice")

	var err error
	for i := 0; i < 6; i++ {
		_, err = s.cl.Login(context.Background(), &chatv1.LoginRequest{Email: "alice@example.com", Password: "guess"})
	}
	require.Equal(t, codes.ResourceExhausted, status.Code(err))
}

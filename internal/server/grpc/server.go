// Package grpcserver exposes the chat gRPC API handlers.
package grpcserver

import (
	"context"
	"errors"
	"net"
	"strings"

	"github.com/gofrs/uuid/v5"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"

	"github.com/and161185/goph-chat/api/chatv1"
	"github.com/and161185/goph-chat/internal/auth"
	"github.com/and161185/goph-chat/internal/convert"
	"github.com/and161185/goph-chat/internal/errs"
	"github.com/and161185/goph-chat/internal/service"
	"github.com/and161185/goph-chat/internal/session"
)

// Server wires services into gRPC handlers.
type Server struct {
	chatv1.UnimplementedChatServer
	auth     service.AuthService
	history  service.HistoryService
	uploads  service.UploadService
	sessions *session.Manager
	verifier auth.Verifier
}

// New constructs a gRPC server with injected services.
func New(a service.AuthService, h service.HistoryService, u service.UploadService,
	sessions *session.Manager, v auth.Verifier) *Server {
	return &Server{auth: a, history: h, uploads: u, sessions: sessions, verifier: v}
}

// --- Auth ---

// Register creates a new user account.
func (s *Server) Register(ctx context.Context, req *chatv1.RegisterRequest) (*chatv1.RegisterResponse, error) {
	if req.Email == "" || req.Password == "" {
		return nil, status.Error(codes.InvalidArgument, "empty email/password")
	}
	p, err := s.auth.Register(ctx, service.RegisterInput{
		Email:     req.Email,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Image:     req.Image,
		Color:     req.Color,
	})
	if err != nil {
		return nil, toStatus(err, "register")
	}
	return &chatv1.RegisterResponse{User: convert.ToWireProfile(p)}, nil
}

// remoteIP returns the caller's host without the port, so login throttling
// survives reconnects from new source ports.
func remoteIP(ctx context.Context) string {
	p, ok := peer.FromContext(ctx)
	if !ok || p.Addr == nil {
		return ""
	}
	addr := p.Addr.String()
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return addr
}

// Login authenticates a user and returns an access token and profile.
func (s *Server) Login(ctx context.Context, req *chatv1.LoginRequest) (*chatv1.LoginResponse, error) {
	tok, p, err := s.auth.Login(ctx, req.Email, req.Password, remoteIP(ctx))
	if err != nil {
		if errors.Is(err, errs.ErrUnauthorized) {
			return nil, status.Error(codes.Unauthenticated, "bad credentials")
		}
		return nil, toStatus(err, "login")
	}
	return &chatv1.LoginResponse{
		AccessToken: tok.AccessToken,
		ExpiresAt:   tok.ExpiresAt,
		User:        convert.ToWireProfile(p),
	}, nil
}

// --- History and channels ---

// Conversation returns the caller's conversation with a contact.
func (s *Server) Conversation(ctx context.Context, req *chatv1.ConversationRequest) (*chatv1.HistoryResponse, error) {
	userID, err := s.userIDFromCtx(ctx)
	if err != nil {
		return nil, status.Error(codes.Unauthenticated, "no auth")
	}
	contact, err := convert.ParseUUID("contact", req.Contact)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	msgs, err := s.history.Conversation(ctx, userID, contact)
	if err != nil {
		return nil, toStatus(err, "conversation")
	}
	return &chatv1.HistoryResponse{Messages: convert.ToWireMessages(msgs)}, nil
}

// ChannelHistory returns the messages of a channel the caller belongs to.
func (s *Server) ChannelHistory(ctx context.Context, req *chatv1.ChannelHistoryRequest) (*chatv1.HistoryResponse, error) {
	userID, err := s.userIDFromCtx(ctx)
	if err != nil {
		return nil, status.Error(codes.Unauthenticated, "no auth")
	}
	channelID, err := convert.ParseUUID("channelId", req.ChannelID)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	msgs, err := s.history.ChannelHistory(ctx, userID, channelID)
	if err != nil {
		return nil, toStatus(err, "channel history")
	}
	return &chatv1.HistoryResponse{Messages: convert.ToWireMessages(msgs)}, nil
}

// CreateChannel creates a channel administered by the caller.
func (s *Server) CreateChannel(ctx context.Context, req *chatv1.CreateChannelRequest) (*chatv1.ChannelResponse, error) {
	userID, err := s.userIDFromCtx(ctx)
	if err != nil {
		return nil, status.Error(codes.Unauthenticated, "no auth")
	}
	members, err := convert.ParseUUIDs("members", req.Members)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	ch, err := s.history.CreateChannel(ctx, userID, req.Name, members)
	if err != nil {
		return nil, toStatus(err, "create channel")
	}
	return &chatv1.ChannelResponse{Channel: convert.ToAPIChannel(*ch)}, nil
}

// ListChannels returns the caller's channels.
func (s *Server) ListChannels(ctx context.Context, _ *chatv1.ListChannelsRequest) (*chatv1.ListChannelsResponse, error) {
	userID, err := s.userIDFromCtx(ctx)
	if err != nil {
		return nil, status.Error(codes.Unauthenticated, "no auth")
	}
	chs, err := s.history.ListChannels(ctx, userID)
	if err != nil {
		return nil, toStatus(err, "list channels")
	}
	return &chatv1.ListChannelsResponse{Channels: convert.ToAPIChannels(chs)}, nil
}

// RequestUpload presigns an attachment upload.
func (s *Server) RequestUpload(ctx context.Context, req *chatv1.UploadRequest) (*chatv1.UploadResponse, error) {
	userID, err := s.userIDFromCtx(ctx)
	if err != nil {
		return nil, status.Error(codes.Unauthenticated, "no auth")
	}
	up, err := s.uploads.RequestUpload(ctx, userID, req.FileName, req.ContentType, req.Size)
	if err != nil {
		return nil, toStatus(err, "request upload")
	}
	return &chatv1.UploadResponse{Key: up.Key, PutURL: up.PutURL, FileURL: up.FileURL, ExpiresAt: up.ExpiresAt}, nil
}

// --- Live connection ---

// Connect serves a live connection. The credential is the bearer token in the
// stream metadata or, when absent, the token of the first auth event.
func (s *Server) Connect(stream chatv1.Chat_ConnectServer) error {
	token, _ := bearerTokenFromMD(stream.Context())
	if err := s.sessions.Serve(stream, token); err != nil {
		return toStatus(err, "connect")
	}
	return nil
}

// userIDFromCtx returns the identity placed by AuthUnary or, without it,
// verifies the bearer token in the incoming metadata.
func (s *Server) userIDFromCtx(ctx context.Context) (uuid.UUID, error) {
	if id, ok := UserIDFromCtx(ctx); ok {
		return id, nil
	}
	tok, err := bearerTokenFromMD(ctx)
	if err != nil {
		return uuid.Nil, err
	}
	return s.verifier.Verify(ctx, tok)
}

func bearerTokenFromMD(ctx context.Context) (string, error) {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return "", errors.New("no metadata")
	}
	for _, v := range md.Get("authorization") {
		v = strings.TrimSpace(v)
		if len(v) >= 7 && strings.EqualFold(v[:7], "bearer ") {
			t := strings.TrimSpace(v[7:])
			if t != "" {
				return t, nil
			}
		}
	}
	return "", errors.New("no bearer token")
}

// toStatus maps domain errors to gRPC status codes.
func toStatus(err error, op string) error {
	switch {
	case errors.Is(err, errs.ErrValidation):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, errs.ErrUnauthorized):
		return status.Error(codes.Unauthenticated, "unauthenticated")
	case errors.Is(err, errs.ErrRateLimited):
		return status.Error(codes.ResourceExhausted, "rate limited")
	case errors.Is(err, errs.ErrAlreadyExists):
		return status.Error(codes.AlreadyExists, "already exists")
	case errors.Is(err, errs.ErrNotFound):
		return status.Error(codes.NotFound, "not found")
	case errors.Is(err, errs.ErrForbidden):
		return status.Error(codes.PermissionDenied, "forbidden")
	case errors.Is(err, errs.ErrUnavailable):
		return status.Errorf(codes.Unavailable, "%s: unavailable", op)
	case errors.Is(err, errs.ErrHandshakeTimeout):
		return status.Error(codes.DeadlineExceeded, "handshake timeout")
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return status.FromContextError(err).Err()
	}
	if _, ok := status.FromError(err); ok {
		return err
	}
	return status.Errorf(codes.Internal, "%s: %v", op, err)
}

package grpcserver

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/golang-jwt/jwt/v5"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"

	"github.com/and161185/goph-chat/internal/auth"
	"github.com/and161185/goph-chat/internal/errs"
)

func makeJWT(t *testing.T, sub string, key []byte, method jwt.SigningMethod, iat time.Time, ttl time.Duration) string {
	t.Helper()
	claims := jwt.RegisteredClaims{
		Subject:   sub,
		IssuedAt:  jwt.NewNumericDate(iat),
		NotBefore: jwt.NewNumericDate(iat),
		ExpiresAt: jwt.NewNumericDate(iat.Add(ttl)),
	}
	token := jwt.NewWithClaims(method, claims)
	s, err := token.SignedString(key)
	if err != nil {
		t.Fatalf("SignedString: %v", err)
	}
	return s
}

func ctxWithAuth(token string) context.Context {
	md := metadata.New(map[string]string{
		"authorization": "Bearer " + token,
	})
	return metadata.NewIncomingContext(context.Background(), md)
}

func serverWithKey(key []byte) *Server {
	return &Server{verifier: auth.NewTokens(key, time.Hour)}
}

func Test_bearerTokenFromMD_OkAndErrors(t *testing.T) {
	t.Parallel()

	ctx := metadata.NewIncomingContext(context.Background(), metadata.Pairs("authorization", "Bearer abc.def.ghi"))
	got, err := bearerTokenFromMD(ctx)
	if err != nil || got != "abc.def.ghi" {
		t.Fatalf("ok: got=%q err=%v", got, err)
	}

	ctx = metadata.NewIncomingContext(context.Background(), metadata.Pairs("authorization", "Basic foo"))
	if _, err := bearerTokenFromMD(ctx); err == nil {
		t.Fatalf("want error on non-bearer")
	}

	ctx = metadata.NewIncomingContext(context.Background(), metadata.Pairs("authorization", "Bearer   "))
	if _, err := bearerTokenFromMD(ctx); err == nil {
		t.Fatalf("want error on empty token")
	}

	if _, err := bearerTokenFromMD(context.Background()); err == nil {
		t.Fatalf("want error on no metadata")
	}
}

func Test_bearerTokenFromMD_MultipleHeaders_CaseInsensitive_Spaces(t *testing.T) {
	t.Parallel()
	md := metadata.New(nil)
	md.Append("authorization", "Basic foo")
	md.Append("authorization", "  bearer   tok.part.sig   ")
	ctx := metadata.NewIncomingContext(context.Background(), md)
	got, err := bearerTokenFromMD(ctx)
	if err != nil || got != "tok.part.sig" {
		t.Fatalf("got=%q err=%v", got, err)
	}
}

func Test_userIDFromCtx_Valid(t *testing.T) {
	t.Parallel()

	key := []byte("secret")
	s := serverWithKey(key)
	sub := uuid.Must(uuid.NewV4()).String()
	j := makeJWT(t, sub, key, jwt.SigningMethodHS256, time.Now().UTC().Add(-time.Minute), 10*time.Minute)

	id, err := s.userIDFromCtx(ctxWithAuth(j))
	if err != nil {
		t.Fatalf("userIDFromCtx: %v", err)
	}
	if id.String() != sub {
		t.Fatalf("uuid mismatch: %s vs %s", id, sub)
	}
}

func Test_userIDFromCtx_PrefersInterceptorIdentity(t *testing.T) {
	t.Parallel()

	want := uuid.Must(uuid.NewV4())
	s := &Server{}
	got, err := s.userIDFromCtx(WithUserID(context.Background(), want))
	if err != nil || got != want {
		t.Fatalf("got=%s err=%v", got, err)
	}
}

func Test_userIDFromCtx_Rejects(t *testing.T) {
	t.Parallel()

	key := []byte("secret")
	s := serverWithKey(key)
	sub := uuid.Must(uuid.NewV4()).String()
	now := time.Now().UTC()

	cases := map[string]context.Context{
		"no metadata":   context.Background(),
		"expired":       ctxWithAuth(makeJWT(t, sub, key, jwt.SigningMethodHS256, now.Add(-2*time.Hour), time.Hour)),
		"bad subject":   ctxWithAuth(makeJWT(t, "not-a-uuid", key, jwt.SigningMethodHS256, now, time.Hour)),
		"wrong alg":     ctxWithAuth(makeJWT(t, sub, key, jwt.SigningMethodHS384, now, time.Hour)),
		"wrong key":     ctxWithAuth(makeJWT(t, sub, []byte("other"), jwt.SigningMethodHS256, now, time.Hour)),
		"nbf in future": ctxWithAuth(makeJWT(t, sub, key, jwt.SigningMethodHS256, now.Add(10*time.Minute), time.Hour)),
		"not a jwt":     ctxWithAuth("this-is-not-a-jwt"),
	}
	for name, ctx := range cases {
		if _, err := s.userIDFromCtx(ctx); err == nil {
			t.Fatalf("%s: want error", name)
		}
	}
}

func Test_userIDFromCtx_LeewayAllowsSmallClockSkew(t *testing.T) {
	t.Parallel()

	key := []byte("k")
	s := serverWithKey(key)
	sub := uuid.Must(uuid.NewV4()).String()
	j := makeJWT(t, sub, key, jwt.SigningMethodHS256, time.Now().UTC().Add(5*time.Second), time.Minute)
	if _, err := s.userIDFromCtx(ctxWithAuth(j)); err != nil {
		t.Fatalf("unexpected leeway validation error: %v", err)
	}
}

type loopbackAddr struct{}

func (loopbackAddr) Network() string { return "tcp" }
func (loopbackAddr) String() string  { return "127.0.0.1:5555" }

func Test_remoteIP(t *testing.T) {
	t.Parallel()

	if got := remoteIP(context.Background()); got != "" {
		t.Fatalf("want empty, got %q", got)
	}
	pctx := peer.NewContext(context.Background(), &peer.Peer{Addr: loopbackAddr{}})
	if got := remoteIP(pctx); got != "127.0.0.1" {
		t.Fatalf("want host without port, got %q", got)
	}
}

func Test_toStatus(t *testing.T) {
	t.Parallel()

	cases := []struct {
		err  error
		want codes.Code
	}{
		{fmt.Errorf("x: %w", errs.ErrValidation), codes.InvalidArgument},
		{errs.ErrUnauthorized, codes.Unauthenticated},
		{errs.ErrRateLimited, codes.ResourceExhausted},
		{errs.ErrAlreadyExists, codes.AlreadyExists},
		{errs.ErrNotFound, codes.NotFound},
		{errs.ErrForbidden, codes.PermissionDenied},
		{errs.ErrUnavailable, codes.Unavailable},
		{errs.ErrHandshakeTimeout, codes.DeadlineExceeded},
		{context.Canceled, codes.Canceled},
		{status.Error(codes.Aborted, "kept"), codes.Aborted},
		{errors.New("boom"), codes.Internal},
	}
	for _, tc := range cases {
		if got := status.Code(toStatus(tc.err, "op")); got != tc.want {
			t.Fatalf("%v: got %s, want %s", tc.err, got, tc.want)
		}
	}
}

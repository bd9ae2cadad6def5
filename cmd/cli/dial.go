package main

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"os"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/and161185/goph-chat/api/chatv1"
)

type dialConfig struct {
	Addr      string
	CACert    string
	Insecure  bool
	Plaintext bool
}

type bearerCreds struct {
	token  string
	secure bool
}

func (b bearerCreds) GetRequestMetadata(context.Context, ...string) (map[string]string, error) {
	return map[string]string{"authorization": "Bearer " + b.token}, nil
}

func (b bearerCreds) RequireTransportSecurity() bool { return b.secure }

func loadTLS(cfg dialConfig) (credentials.TransportCredentials, error) {
	if cfg.Plaintext {
		return insecure.NewCredentials(), nil
	}
	if cfg.Insecure {
		return credentials.NewTLS(&tls.Config{InsecureSkipVerify: true}), nil //nolint:gosec // explicit dev flag
	}
	if cfg.CACert == "" {
		return credentials.NewClientTLSFromCert(nil, ""), nil
	}
	pem, err := os.ReadFile(cfg.CACert)
	if err != nil {
		return nil, err
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(pem) {
		return nil, errors.New("bad CA cert")
	}
	return credentials.NewTLS(&tls.Config{RootCAs: pool, MinVersion: tls.VersionTLS12}), nil
}

// dial opens a client connection; a non-empty bearer is attached to every call.
func dial(cfg dialConfig, bearer string) (*grpc.ClientConn, chatv1.ChatClient, error) {
	creds, err := loadTLS(cfg)
	if err != nil {
		return nil, nil, err
	}
	opts := []grpc.DialOption{grpc.WithTransportCredentials(creds)}
	if bearer != "" {
		opts = append(opts, grpc.WithPerRPCCredentials(bearerCreds{token: bearer, secure: !cfg.Plaintext}))
	}
	cc, err := grpc.NewClient(cfg.Addr, opts...)
	if err != nil {
		return nil, nil, err
	}
	return cc, chatv1.NewChatClient(cc), nil
}

// dialer is replaced in tests to reach an in-process server.
var dialer = dial

// client dials with the stored session's token.
func client() (*grpc.ClientConn, chatv1.ChatClient, session, error) {
	s, err := loadSession()
	if err != nil {
		return nil, nil, s, err
	}
	cc, cl, err := dialer(connection(), s.AccessToken)
	return cc, cl, s, err
}

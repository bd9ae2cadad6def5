// Package service contains application services for accounts, history, channels and uploads.
package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofrs/uuid/v5"

	"github.com/and161185/goph-chat/internal/auth"
	pkgcrypto "github.com/and161185/goph-chat/internal/crypto"
	"github.com/and161185/goph-chat/internal/errs"
	"github.com/and161185/goph-chat/internal/limiter"
	"github.com/and161185/goph-chat/internal/model"
	"github.com/and161185/goph-chat/internal/repository"
)

// AuthService defines account operations.
type AuthService interface {
	// Register creates a new account and returns its profile.
	Register(ctx context.Context, in RegisterInput) (model.Profile, error)
	// Login applies rate limiting by (email, peer) and issues an access token.
	Login(ctx context.Context, email, password, peer string) (model.Tokens, model.Profile, error)
}

// RegisterInput is a signup request.
type RegisterInput struct {
	Email     string `validate:"required,email,max=254"`
	Password  string `validate:"required,min=8,max=128"`
	FirstName string `validate:"max=64"`
	LastName  string `validate:"max=64"`
	Image     string `validate:"omitempty,url"`
	Color     int    `validate:"min=0,max=16"`
}

// AuthServiceImpl implements AuthService.
type AuthServiceImpl struct {
	users    repository.UserRepository
	tokens   *auth.Tokens
	hasher   *pkgcrypto.Hasher
	lim      limiter.Limiter
	validate *validator.Validate
}

// NewAuthService constructs AuthService with required dependencies.
func NewAuthService(users repository.UserRepository, tokens *auth.Tokens, hasher *pkgcrypto.Hasher, lim limiter.Limiter) *AuthServiceImpl {
	return &AuthServiceImpl{
		users:    users,
		tokens:   tokens,
		hasher:   hasher,
		lim:      lim,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

func normalizeEmail(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

// Register validates the input, hashes the password under a fresh salt and stores the user.
func (s *AuthServiceImpl) Register(ctx context.Context, in RegisterInput) (model.Profile, error) {
	in.Email = normalizeEmail(in.Email)
	if err := s.validate.Struct(in); err != nil {
		return model.Profile{}, fmt.Errorf("%w: %v", errs.ErrValidation, err)
	}

	uid, err := uuid.NewV4()
	if err != nil {
		return model.Profile{}, err
	}
	salt, err := pkgcrypto.NewSalt()
	if err != nil {
		return model.Profile{}, err
	}
	hash, err := s.hasher.Hash(in.Password, salt)
	if err != nil {
		return model.Profile{}, err
	}

	u := &model.User{
		ID:       uid,
		Email:    in.Email,
		PwdHash:  hash,
		SaltAuth: salt,
		Profile: model.Profile{
			ID:        uid,
			Email:     in.Email,
			FirstName: in.FirstName,
			LastName:  in.LastName,
			Image:     in.Image,
			Color:     in.Color,
		},
	}
	if err := s.users.Create(ctx, u); err != nil {
		return model.Profile{}, err
	}
	return u.Profile, nil
}

// Login authenticates with lockout per (email, peer). Unknown email and wrong password are indistinguishable.
func (s *AuthServiceImpl) Login(ctx context.Context, email, password, peer string) (model.Tokens, model.Profile, error) {
	email = normalizeEmail(email)
	subject := limiter.Subject(email, peer)

	allowed, _, err := s.lim.Allow(ctx, subject)
	if err != nil {
		return model.Tokens{}, model.Profile{}, err
	}
	if !allowed {
		return model.Tokens{}, model.Profile{}, errs.ErrRateLimited
	}

	u, err := s.users.GetByEmail(ctx, email)
	if err != nil || !s.hasher.Verify(password, u.SaltAuth, u.PwdHash) {
		if blocked, _, ferr := s.lim.Failure(ctx, subject); ferr == nil && blocked {
			return model.Tokens{}, model.Profile{}, errs.ErrRateLimited
		}
		return model.Tokens{}, model.Profile{}, errs.ErrUnauthorized
	}

	_ = s.lim.Success(ctx, subject)

	tk, err := s.tokens.Issue(u.ID, u.Email)
	if err != nil {
		return model.Tokens{}, model.Profile{}, err
	}
	return tk, u.Profile, nil
}

package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/hongminglow/iptrack-be/internal/auth"
	"github.com/hongminglow/iptrack-be/internal/models"
	"github.com/hongminglow/iptrack-be/internal/storage"
)

// maxPasswordBytes is bcrypt's input limit.
const maxPasswordBytes = 72

// LoginResult is returned on successful login.
type LoginResult struct {
	Token string
	User  models.User
}

// AuthService registers users, checks credentials and resolves bearer tokens.
type AuthService struct {
	users  storage.UserStore
	tokens *auth.TokenManager
	hasher *auth.PasswordHasher
	logger *slog.Logger
}

func NewAuthService(users storage.UserStore, tokens *auth.TokenManager, hasher *auth.PasswordHasher, logger *slog.Logger) *AuthService {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthService{
		users:  users,
		tokens: tokens,
		hasher: hasher,
		logger: logger.With("module", "auth"),
	}
}

// Register creates a user and returns its id.
func (s *AuthService) Register(ctx context.Context, username, email, password string) (int64, error) {
	username = strings.TrimSpace(username)
	email = strings.TrimSpace(email)
	if username == "" || email == "" || password == "" {
		return 0, fmt.Errorf("%w: username, email, and password are required", ErrValidation)
	}
	if len(password) > maxPasswordBytes {
		return 0, fmt.Errorf("%w: password must be at most %d bytes", ErrValidation, maxPasswordBytes)
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return 0, fmt.Errorf("%w: hash password: %v", ErrStorage, err)
	}

	created, err := s.users.CreateUser(ctx, models.User{
		Username:     username,
		Email:        email,
		PasswordHash: hash,
	})
	switch {
	case errors.Is(err, storage.ErrAlreadyExists):
		s.logger.WarnContext(ctx, "registration rejected",
			"operation", "register",
			"outcome", "conflict",
			"username", username,
		)
		return 0, fmt.Errorf("%w: username or email already taken", ErrConflict)
	case err != nil:
		return 0, fmt.Errorf("%w: create user: %v", ErrStorage, err)
	}

	s.logger.InfoContext(ctx, "user registered",
		"operation", "register",
		"outcome", "success",
		"user_id", created.ID,
	)
	return created.ID, nil
}

// Login checks credentials and issues a signed token.
func (s *AuthService) Login(ctx context.Context, username, password string) (LoginResult, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return LoginResult{}, fmt.Errorf("%w: username and password are required", ErrValidation)
	}

	user, err := s.users.FindByUsername(ctx, username)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return LoginResult{}, fmt.Errorf("%w: invalid credentials", ErrUnauthorized)
	case err != nil:
		return LoginResult{}, fmt.Errorf("%w: find user: %v", ErrStorage, err)
	}
	if !s.hasher.Compare(user.PasswordHash, password) {
		return LoginResult{}, fmt.Errorf("%w: invalid credentials", ErrUnauthorized)
	}

	token, err := s.tokens.Generate(user)
	if err != nil {
		return LoginResult{}, fmt.Errorf("%w: sign token: %v", ErrStorage, err)
	}
	return LoginResult{Token: token, User: user}, nil
}

// Verify returns the user id carried by a valid token.
func (s *AuthService) Verify(token string) (int64, error) {
	claims, err := s.tokens.Parse(token)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}
	return claims.UserID, nil
}

// CurrentUser verifies token and reloads its user. A deleted user is unauthorized.
func (s *AuthService) CurrentUser(ctx context.Context, token string) (models.User, error) {
	id, err := s.Verify(token)
	if err != nil {
		return models.User{}, err
	}
	user, err := s.users.FindByID(ctx, id)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return models.User{}, fmt.Errorf("%w: user %d no longer exists", ErrUnauthorized, id)
	case err != nil:
		return models.User{}, fmt.Errorf("%w: find user: %v", ErrStorage, err)
	}
	return user, nil
}

package service

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/Abulfadl-Ahmadi/Academia-sub002/internal/model"
	"github.com/Abulfadl-Ahmadi/Academia-sub002/internal/repository"
)

var ErrBadCredentials = errors.New("invalid username or password")

// UserService wraps account lookup and credential checks.
type UserService struct {
	userRepo *repository.UserRepository
	auth     *AuthService
	log      zerolog.Logger
}

// NewUserService creates a new UserService.
func NewUserService(userRepo *repository.UserRepository, auth *AuthService, log zerolog.Logger) *UserService {
	return &UserService{
		userRepo: userRepo,
		auth:     auth,
		log:      log.With().Str("component", "user_service").Logger(),
	}
}

// Authenticate verifies username, password, and role. Any failure collapses
// into ErrBadCredentials so callers cannot probe which part was wrong.
func (s *UserService) Authenticate(ctx context.Context, username, password string, role model.UserRole) (*model.User, error) {
	user, err := s.userRepo.GetByUsername(ctx, username)
	if err != nil {
		return nil, ErrBadCredentials
	}
	if user.Role != role {
		return nil, ErrBadCredentials
	}
	if err := s.auth.CheckPassword(user.PasswordHash, password); err != nil {
		return nil, ErrBadCredentials
	}
	return user, nil
}

// GetByID retrieves a user by ID.
func (s *UserService) GetByID(ctx context.Context, id int) (*model.User, error) {
	return s.userRepo.GetByID(ctx, id)
}

// Create registers a new account with a hashed password.
func (s *UserService) Create(ctx context.Context, username, name, password string, role model.UserRole) (*model.User, error) {
	hash, err := s.auth.HashPassword(password)
	if err != nil {
		return nil, err
	}
	user := &model.User{
		Username:     username,
		Name:         name,
		PasswordHash: hash,
		Role:         role,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, err
	}
	s.log.Info().Str("username", username).Str("role", string(role)).Msg("User created")
	return user, nil
}

package user

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// Common errors
var (
	ErrUserNotFound      = errors.New("user not found")
	ErrEmailAlreadyInUse = errors.New("email already in use")
	ErrInvalidUsername   = errors.New("username must be between 3 and 50 characters")
	ErrInvalidEmail      = errors.New("a valid email is required")
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Service handles user business logic
type Service struct {
	repo *Repository
}

// NewService creates a new user service with repository dependency injected
func NewService(repo *Repository) *Service {
	return &Service{repo: repo}
}

// Create registers a user. Emails are compared case-insensitively.
func (s *Service) Create(ctx context.Context, req *CreateUserRequest) (*User, error) {
	username := strings.TrimSpace(req.Username)
	if err := validate.Var(username, "min=3,max=50"); err != nil {
		return nil, ErrInvalidUsername
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if err := validate.Var(email, "required,email,max=255"); err != nil {
		return nil, ErrInvalidEmail
	}

	existing, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrEmailAlreadyInUse
	}

	user := &User{
		ID:        uuid.NewString(),
		Username:  username,
		Email:     email,
		CreatedAt: time.Now().UTC().Truncate(time.Millisecond),
	}
	if err := s.repo.Create(ctx, user); err != nil {
		if !errors.Is(err, ErrEmailAlreadyInUse) {
			slog.Error("failed to create user", "email", email, "error", err)
		}
		return nil, err
	}

	slog.Info("user created", "user_id", user.ID)
	return user, nil
}

// GetByID retrieves a user by their ID
func (s *Service) GetByID(ctx context.Context, id string) (*User, error) {
	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, fmt.Errorf("%w: %s", ErrUserNotFound, id)
	}
	return user, nil
}

// Exists reports whether id names a registered user.
func (s *Service) Exists(ctx context.Context, id string) (bool, error) {
	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return false, err
	}
	return user != nil, nil
}

// Search finds other users by email or username, for adding group members.
// A blank query matches nobody.
func (s *Service) Search(ctx context.Context, callerID, query string) ([]*User, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []*User{}, nil
	}
	if len([]rune(query)) > 100 {
		query = string([]rune(query)[:100])
	}

	users, err := s.repo.Search(ctx, query, callerID, 20)
	if err != nil {
		slog.Error("failed to search users", "error", err)
		return nil, err
	}
	return users, nil
}

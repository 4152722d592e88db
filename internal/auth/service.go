package auth

import (
	"context"
	"crypto/subtle"
	"fmt"

	"github.com/google/uuid"

	"github.com/victornm/quizroom/internal/domain"
	"github.com/victornm/quizroom/internal/errors"
)

type Repository interface {
	CreateUser(ctx context.Context, u *domain.User) error
	GetUser(ctx context.Context, id string) (*domain.User, error)
	GetUserByUsername(ctx context.Context, username string) (*domain.User, error)
	CreateAuthSession(ctx context.Context, token, userID string) error
	GetAuthSession(ctx context.Context, token string) (string, error)
	DeleteAuthSession(ctx context.Context, token string) error
}

type Config struct {
	Repository Repository
}

// Service issues opaque tokens and resolves them back to users.
type Service struct {
	repo Repository
}

func NewService(c Config) *Service {
	return &Service{repo: c.Repository}
}

type RegisterRequest struct {
	Username   string
	Credential string
	Role       domain.Role
}

// Register creates a user and signs them in.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (*domain.User, string, error) {
	u := &domain.User{
		Username:   req.Username,
		Credential: req.Credential,
		Role:       req.Role,
	}

	if err := s.repo.CreateUser(ctx, u); err != nil {
		return nil, "", err
	}

	token, err := s.issue(ctx, u.ID)
	if err != nil {
		return nil, "", err
	}

	return u, token, nil
}

// Login checks the credential and returns a new token.
func (s *Service) Login(ctx context.Context, username, credential string) (*domain.User, string, error) {
	if username == "" || credential == "" {
		return nil, "", errors.InvalidInput("username and credential are required")
	}

	u, err := s.repo.GetUserByUsername(ctx, username)
	if errors.Is(err, errors.CodeNotFound) {
		return nil, "", errors.Unauthenticated("invalid credentials")
	}
	if err != nil {
		return nil, "", err
	}

	if subtle.ConstantTimeCompare([]byte(u.Credential), []byte(credential)) != 1 {
		return nil, "", errors.Unauthenticated("invalid credentials")
	}

	token, err := s.issue(ctx, u.ID)
	if err != nil {
		return nil, "", err
	}

	return u, token, nil
}

// ResolveUser returns the user the token was issued to.
func (s *Service) ResolveUser(ctx context.Context, token string) (*domain.User, error) {
	if token == "" {
		return nil, errors.Unauthenticated("token required")
	}

	id, err := s.repo.GetAuthSession(ctx, token)
	if errors.Is(err, errors.CodeNotFound) {
		return nil, errors.Unauthenticated("invalid token")
	}
	if err != nil {
		return nil, err
	}

	return s.repo.GetUser(ctx, id)
}

func (s *Service) Logout(ctx context.Context, token string) error {
	return s.repo.DeleteAuthSession(ctx, token)
}

func (s *Service) issue(ctx context.Context, userID string) (string, error) {
	token := uuid.NewString()
	if err := s.repo.CreateAuthSession(ctx, token, userID); err != nil {
		return "", fmt.Errorf("create auth session: %w", err)
	}

	return token, nil
}

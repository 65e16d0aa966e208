package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dentalsettle/backend/internal/auth"
	"github.com/dentalsettle/backend/internal/models"
)

// ErrMissingField is returned when a required auth field is empty.
var ErrMissingField = errors.New("email, display name and password are required")

// AuthService registers and logs in users and issues their tokens.
type AuthService struct {
	authenticator auth.Authenticator
	jwtManager    *auth.JWTManager
	logger        *slog.Logger
}

// NewAuthService creates a new authentication service.
func NewAuthService(authenticator auth.Authenticator, jwtManager *auth.JWTManager, logger *slog.Logger) *AuthService {
	return &AuthService{
		authenticator: authenticator,
		jwtManager:    jwtManager,
		logger:        logger,
	}
}

// Register creates a staff account and returns it with a token.
func (s *AuthService) Register(ctx context.Context, email, displayName, password string) (*models.User, string, error) {
	s.logger.Info("Register request", "email", email)

	if strings.TrimSpace(email) == "" || strings.TrimSpace(displayName) == "" || password == "" {
		return nil, "", ErrMissingField
	}

	user, err := s.authenticator.Register(ctx, email, displayName, password, models.RoleStaff)
	if err != nil {
		s.logger.Warn("Registration failed", "email", email, "error", err)
		return nil, "", err
	}

	token, err := s.jwtManager.Generate(user)
	if err != nil {
		s.logger.Error("Failed to generate token", "user_id", user.ID, "error", err)
		return nil, "", err
	}

	s.logger.Info("User registered successfully", "user_id", user.ID, "email", user.Email)
	return user, token, nil
}

// Login authenticates a user and returns it with a token.
func (s *AuthService) Login(ctx context.Context, email, password string) (*models.User, string, error) {
	s.logger.Info("Login request", "email", email)

	if email == "" || password == "" {
		return nil, "", auth.ErrInvalidCredentials
	}

	user, err := s.authenticator.Authenticate(ctx, email, password)
	if err != nil {
		s.logger.Warn("Login failed", "email", email, "error", err)
		return nil, "", auth.ErrInvalidCredentials
	}

	token, err := s.jwtManager.Generate(user)
	if err != nil {
		s.logger.Error("Failed to generate token", "user_id", user.ID, "error", err)
		return nil, "", err
	}

	s.logger.Info("User logged in successfully", "user_id", user.ID, "email", user.Email)
	return user, token, nil
}

// EnsureOwner creates the bootstrap owner account unless the email is taken.
func (s *AuthService) EnsureOwner(ctx context.Context, email, password string) error {
	_, err := s.authenticator.Register(ctx, email, "Owner", password, models.RoleOwner)
	switch {
	case err == nil:
		s.logger.Info("Owner account created", "email", email)
		return nil
	case errors.Is(err, auth.ErrEmailExists):
		return nil
	default:
		return fmt.Errorf("failed to create owner account: %w", err)
	}
}

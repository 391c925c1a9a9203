package user

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"pawn-ledger/internal/config"
	"pawn-ledger/internal/pkg/apperrors"
)

const minPasswordLength = 6

type AuthService interface {
	Register(ctx context.Context, email, password, name string) (*User, error)

	Login(ctx context.Context, email, password string) (token string, err error)
}

type authServiceImpl struct {
	repo   UserRepository
	cfg    config.AuthConfig
	logger *slog.Logger
}

func NewAuthService(repo UserRepository, cfg config.AuthConfig, logger *slog.Logger) AuthService {
	return &authServiceImpl{
		repo:   repo,
		cfg:    cfg,
		logger: logger.With(slog.String("component", "authService")),
	}
}

func (s *authServiceImpl) Register(ctx context.Context, email, password, name string) (*User, error) {
	s.logger.InfoContext(ctx, "Registering new user")

	email = strings.ToLower(strings.TrimSpace(email))
	name = strings.TrimSpace(name)
	if email == "" || !strings.Contains(email, "@") {
		return nil, apperrors.NewValidationError("email", "must be a valid email address")
	}
	if len(password) < minPasswordLength {
		return nil, apperrors.NewValidationError("password", fmt.Sprintf("must be at least %d characters", minPasswordLength))
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to hash password", slog.Any("error", err))
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	u := &User{
		Email:        email,
		Name:         name,
		PasswordHash: string(hash),
		CreatedAt:    time.Now(),
	}

	if err := s.repo.Create(ctx, u); err != nil {
		if errors.Is(err, apperrors.ErrAlreadyExists) {
			s.logger.WarnContext(ctx, "Registration rejected, email already in use", "email", email)
			return nil, fmt.Errorf("%w: email %s is already registered", apperrors.ErrConflict, email)
		}
		s.logger.ErrorContext(ctx, "Failed to save new user", slog.Any("error", err))
		return nil, fmt.Errorf("failed to save user: %w", err)
	}

	s.logger.InfoContext(ctx, "User registered", "userID", u.ID, "email", email)
	return u, nil
}

func (s *authServiceImpl) Login(ctx context.Context, email, password string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	u, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			// Same error as a bad password so callers cannot probe
			// which emails exist.
			s.logger.WarnContext(ctx, "Login failed, unknown email")
			return "", fmt.Errorf("%w: invalid credentials", apperrors.ErrUnauthorized)
		}
		s.logger.ErrorContext(ctx, "Failed to look up user for login", slog.Any("error", err))
		return "", fmt.Errorf("failed to look up user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		s.logger.WarnContext(ctx, "Login failed, password mismatch", "userID", u.ID)
		return "", fmt.Errorf("%w: invalid credentials", apperrors.ErrUnauthorized)
	}

	ttl := s.cfg.TokenTTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}

	claims := jwt.MapClaims{
		"username": u.Email,
		"name":     u.Name,
		"exp":      time.Now().Add(ttl).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	signed, err := token.SignedString([]byte(s.cfg.JWTSecret))
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to sign token", slog.Any("error", err))
		return "", fmt.Errorf("failed to sign token: %w", err)
	}

	s.logger.InfoContext(ctx, "User logged in", "userID", u.ID)
	return signed, nil
}

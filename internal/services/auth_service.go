package services

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"harmony-go/internal/auth"
	"harmony-go/internal/config"
	"harmony-go/internal/models"
	"harmony-go/internal/storage"
)

var (
	ErrUserAlreadyExists  = errors.New("email already in use")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrUserNotFound       = errors.New("user not found")
)

// AuthService defines the interface for account registration and login.
type AuthService interface {
	Register(ctx context.Context, email, username, password string) (*models.User, error)
	Login(ctx context.Context, email, password string) (token string, user *models.User, err error)
}

type authService struct {
	userRepo storage.UserRepository
	cfg      config.Config
}

// NewAuthService creates a new AuthService instance.
func NewAuthService(userRepo storage.UserRepository, cfg config.Config) AuthService {
	return &authService{
		userRepo: userRepo,
		cfg:      cfg,
	}
}

// Register creates a new account. Emails are unique among non-deleted users.
func (s *authService) Register(ctx context.Context, email, username, password string) (*models.User, error) {
	_, err := s.userRepo.GetByEmail(ctx, email)
	if err == nil {
		return nil, ErrUserAlreadyExists
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("checking email availability: %w", err)
	}

	hashedPassword, err := auth.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}

	newUser := &models.User{
		Email:        email,
		Username:     username,
		PasswordHash: hashedPassword,
	}
	if err := s.userRepo.Create(ctx, newUser); err != nil {
		return nil, fmt.Errorf("creating user: %w", err)
	}

	return newUser, nil
}

// Login verifies credentials and issues a JWT for the account.
func (s *authService) Login(ctx context.Context, email, password string) (string, *models.User, error) {
	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", nil, ErrUserNotFound
		}
		return "", nil, fmt.Errorf("looking up user by email: %w", err)
	}

	if !auth.CheckPasswordHash(password, user.PasswordHash) {
		return "", nil, ErrInvalidCredentials
	}

	token, err := auth.GenerateToken(user.ID, user.Email, s.cfg.Auth)
	if err != nil {
		return "", nil, fmt.Errorf("generating token: %w", err)
	}

	return token, user, nil
}

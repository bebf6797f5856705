package service

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/sweetshop/sweet-shop/internal/hash"
	"github.com/sweetshop/sweet-shop/internal/logging"
	"github.com/sweetshop/sweet-shop/internal/models"
	"github.com/sweetshop/sweet-shop/internal/repo"
	"github.com/sweetshop/sweet-shop/internal/token"
)

const minPasswordLen = 4

type AuthService struct {
	Repo   *repo.GormRepo
	Tokens *token.Service
}

type LoginResult struct {
	AccessToken string
	Email       string
	IsAdmin     bool
}

func (s *AuthService) Register(ctx context.Context, email, password string) (*models.User, error) {
	l := logging.FromContext(ctx).With("svc", "auth.register")

	if email == "" {
		return nil, fmt.Errorf("%w: email is required", ErrInvalidInput)
	}
	if len(password) < minPasswordLen {
		return nil, fmt.Errorf("%w: password must be at least %d characters", ErrInvalidInput, minPasswordLen)
	}

	pwHash, err := hash.HashPassword(password)
	if err != nil {
		l.Error("register_error", "reason", "cannot hash the password", "error", err)
		return nil, err
	}

	user := &models.User{
		Email:        email,
		PasswordHash: pwHash,
	}
	if err := s.Repo.CreateUser(ctx, user); err != nil {
		if errors.Is(err, repo.ErrUserAlreadyExist) {
			l.Warn("register_conflict", "email", email)
			return nil, ErrEmailTaken
		}
		l.Error("register_error", "error", err)
		return nil, err
	}

	l.Info("register_success", "user_id", user.ID, "is_admin", user.IsAdmin)
	return user, nil
}

// Login verifies credentials and issues a bearer token. Unknown email
// and wrong password return the same error so callers cannot probe
// which addresses are registered.
func (s *AuthService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	l := logging.FromContext(ctx).With("svc", "auth.login")

	user, err := s.Repo.GetUserByEmail(ctx, email)
	if err != nil {
		// Only an absent user maps to the uniform credentials error;
		// store failures stay store failures.
		if errors.Is(err, gorm.ErrRecordNotFound) {
			l.Warn("login_failed", "reason", "unknown email")
			return nil, ErrInvalidCredentials
		}
		l.Error("login_error", "error", err)
		return nil, err
	}
	if !hash.CheckPassword(user.PasswordHash, password) {
		l.Warn("login_failed", "reason", "password mismatch")
		return nil, ErrInvalidCredentials
	}

	accessToken, err := s.Tokens.Issue(user.Email, user.IsAdmin)
	if err != nil {
		l.Error("login_error", "reason", "cannot sign token", "error", err)
		return nil, err
	}

	l.Info("login_success", "user_id", user.ID)
	return &LoginResult{
		AccessToken: accessToken,
		Email:       user.Email,
		IsAdmin:     user.IsAdmin,
	}, nil
}

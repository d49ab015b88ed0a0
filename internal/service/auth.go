package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/utafrali/storefront/internal/backend"
	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/internal/session"
	apperrors "github.com/utafrali/storefront/pkg/errors"
)

// AuthBackend is the part of the backend API that issues tokens.
type AuthBackend interface {
	Login(ctx context.Context, email, password string) (domain.AuthResult, error)
	Register(ctx context.Context, in backend.Registration) (domain.AuthResult, error)
}

// AuthService signs sessions in and out. Tokens are issued and validated by
// the backend; the service only stores them in the session.
type AuthService struct {
	backend AuthBackend
	logger  *slog.Logger
}

// NewAuthService creates a new auth service.
func NewAuthService(b AuthBackend, logger *slog.Logger) *AuthService {
	return &AuthService{backend: b, logger: logger}
}

// LoginInput holds the parameters for a login.
type LoginInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// RegisterInput holds the parameters for a sign-up.
type RegisterInput struct {
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required"`
	FirstName string `json:"firstname" validate:"required"`
	LastName  string `json:"lastname" validate:"required"`
}

// Login authenticates against the backend and stores the token and user in
// sess. Storing the user switches the session's cart to that user.
func (s *AuthService) Login(ctx context.Context, sess *session.Session, in LoginInput) (domain.User, error) {
	res, err := s.authenticate(ctx, in)
	if err != nil {
		return domain.User{}, err
	}
	return s.signIn(ctx, sess, res)
}

// AdminLogin is Login for the admin console: accounts without the admin
// role are refused and the session is left untouched.
func (s *AuthService) AdminLogin(ctx context.Context, sess *session.Session, in LoginInput) (domain.User, error) {
	res, err := s.authenticate(ctx, in)
	if err != nil {
		return domain.User{}, err
	}
	if !res.User.IsAdmin() {
		s.logger.WarnContext(ctx, "non-admin account attempted admin login",
			slog.String("user_id", res.User.Identity()),
			slog.String("role", res.User.Role),
		)
		return domain.User{}, apperrors.Unauthorized(
			fmt.Sprintf("your role is %q; only admins can sign in", res.User.Role))
	}
	return s.signIn(ctx, sess, res)
}

// Register creates an account and signs sess in as the new user.
func (s *AuthService) Register(ctx context.Context, sess *session.Session, in RegisterInput) (domain.User, error) {
	reg := backend.Registration{
		Email:     strings.TrimSpace(in.Email),
		Password:  in.Password,
		FirstName: strings.TrimSpace(in.FirstName),
		LastName:  strings.TrimSpace(in.LastName),
	}
	if reg.Email == "" || reg.Password == "" || reg.FirstName == "" || reg.LastName == "" {
		return domain.User{}, apperrors.InvalidInput("all fields are required")
	}

	res, err := s.backend.Register(ctx, reg)
	if err != nil {
		return domain.User{}, err
	}
	return s.signIn(ctx, sess, res)
}

// Logout forgets the session's token and user. Their cart stays persisted
// under the user's key.
func (s *AuthService) Logout(ctx context.Context, sess *session.Session) error {
	if err := sess.SignOut(ctx); err != nil {
		return apperrors.Internal(err)
	}
	return nil
}

// Current returns the signed-in user of sess.
func (s *AuthService) Current(ctx context.Context, sess *session.Session) (domain.User, bool) {
	if sess.Token(ctx) == "" {
		return domain.User{}, false
	}
	return sess.User(ctx)
}

func (s *AuthService) authenticate(ctx context.Context, in LoginInput) (domain.AuthResult, error) {
	email := strings.TrimSpace(in.Email)
	if email == "" || in.Password == "" {
		return domain.AuthResult{}, apperrors.InvalidInput("email and password are required")
	}
	return s.backend.Login(ctx, email, in.Password)
}

func (s *AuthService) signIn(ctx context.Context, sess *session.Session, res domain.AuthResult) (domain.User, error) {
	if res.Token == "" || res.User == nil {
		return domain.User{}, apperrors.Server("token or user missing from backend response", nil)
	}
	if err := sess.SignIn(ctx, res.Token, *res.User); err != nil {
		return domain.User{}, apperrors.Internal(err)
	}

	s.logger.InfoContext(ctx, "session signed in",
		slog.String("session_id", sess.ID),
		slog.String("user_id", res.User.Identity()),
	)
	return *res.User, nil
}

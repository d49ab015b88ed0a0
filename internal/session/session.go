package session

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/utafrali/storefront/internal/cart"
	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/internal/storage"
)

// Keys of the values a session holds.
const (
	TokenKey  = "token"
	UserKey   = cart.UserKey
	LocaleKey = "locale"
)

// NewID returns a fresh session id.
func NewID() string {
	return uuid.NewString()
}

// ValidID reports whether id looks like one NewID produced.
func ValidID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

// Session is the per-browser state: auth token, user record and locale.
type Session struct {
	ID     string
	store  storage.Store
	logger *slog.Logger
}

// Storage returns the session's key space.
func (s *Session) Storage() storage.Store {
	return s.store
}

// Token returns the stored auth token, or "".
func (s *Session) Token(ctx context.Context) string {
	return s.getString(ctx, TokenKey)
}

// User returns the stored user record. A malformed record reads as absent.
func (s *Session) User(ctx context.Context) (domain.User, bool) {
	raw, err := s.store.Get(ctx, UserKey)
	if err != nil {
		return domain.User{}, false
	}
	u, ok, err := domain.ParseUserRecord(raw)
	if err != nil {
		return domain.User{}, false
	}
	return u, ok
}

// SignIn stores the token and then the user. Writing the user switches the
// session's cart to that user.
func (s *Session) SignIn(ctx context.Context, token string, user domain.User) error {
	data, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("encode user: %w", err)
	}
	if err := s.store.Set(ctx, TokenKey, []byte(token)); err != nil {
		return fmt.Errorf("store token: %w", err)
	}
	if err := s.store.Set(ctx, UserKey, data); err != nil {
		return fmt.Errorf("store user: %w", err)
	}
	return nil
}

// SignOut forgets the token and user. The user's cart stays persisted.
func (s *Session) SignOut(ctx context.Context) error {
	if err := s.store.Remove(ctx, TokenKey); err != nil {
		return fmt.Errorf("remove token: %w", err)
	}
	if err := s.store.Remove(ctx, UserKey); err != nil {
		return fmt.Errorf("remove user: %w", err)
	}
	return nil
}

// Locale returns the stored language, defaulting to az.
func (s *Session) Locale(ctx context.Context) domain.Lang {
	return domain.LangOrDefault(s.getString(ctx, LocaleKey))
}

// SetLocale stores lang.
func (s *Session) SetLocale(ctx context.Context, lang domain.Lang) error {
	if err := s.store.Set(ctx, LocaleKey, []byte(lang)); err != nil {
		return fmt.Errorf("store locale: %w", err)
	}
	return nil
}

func (s *Session) getString(ctx context.Context, key string) string {
	raw, err := s.store.Get(ctx, key)
	if err != nil {
		if !storage.IsNotFound(err) {
			s.logger.WarnContext(ctx, "failed to read session value",
				slog.String("key", key),
				slog.String("error", err.Error()),
			)
		}
		return ""
	}
	return strings.TrimSpace(string(raw))
}

package http

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/utafrali/storefront/internal/backend"
	"github.com/utafrali/storefront/internal/session"
	"github.com/utafrali/storefront/pkg/logger"
	"github.com/utafrali/storefront/pkg/middleware"
)

type contextKey string

const sessionKey contextKey = "session"

// SessionConfig describes the session cookie.
type SessionConfig struct {
	CookieName string
	MaxAge     time.Duration
	Secure     bool
}

// Sessions binds each request to a browser session held in the registry.
type Sessions struct {
	registry *session.Registry
	cfg      SessionConfig
}

// NewSessions creates the session middleware.
func NewSessions(registry *session.Registry, cfg SessionConfig) *Sessions {
	if cfg.CookieName == "" {
		cfg.CookieName = "storefront_session"
	}
	return &Sessions{registry: registry, cfg: cfg}
}

// Middleware reads the session cookie, issuing a new id when it is missing
// or malformed, and puts the session and its backend token in the context.
func (s *Sessions) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := ""
		if c, err := r.Cookie(s.cfg.CookieName); err == nil && session.ValidID(c.Value) {
			id = c.Value
		}
		if id == "" {
			id = session.NewID()
		}
		// Refreshed on every request so the cookie slides with activity.
		http.SetCookie(w, &http.Cookie{
			Name:     s.cfg.CookieName,
			Value:    id,
			Path:     "/",
			MaxAge:   int(s.cfg.MaxAge.Seconds()),
			HttpOnly: true,
			Secure:   s.cfg.Secure,
			SameSite: http.SameSiteLaxMode,
		})

		ctx := r.Context()
		sess := s.registry.Session(id)
		ctx = context.WithValue(ctx, sessionKey, sess)
		ctx = logger.WithSessionID(ctx, id)
		ctx = backend.WithToken(ctx, sess.Token(ctx))

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Lookup binds the request to the session named by a valid cookie without
// issuing or refreshing one, so responses stay free of Set-Cookie. Requests
// without a session read defaults.
func (s *Sessions) Lookup(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := r.Cookie(s.cfg.CookieName)
		if err != nil || !session.ValidID(c.Value) {
			next.ServeHTTP(w, r)
			return
		}

		ctx := r.Context()
		sess := s.registry.Session(c.Value)
		ctx = context.WithValue(ctx, sessionKey, sess)
		ctx = logger.WithSessionID(ctx, c.Value)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Identity resolves the caller from the request's session for
// middleware.Auth.
func (s *Sessions) Identity(r *http.Request) (middleware.Identity, bool) {
	sess, ok := sessionFromContext(r.Context())
	if !ok {
		return middleware.Identity{}, false
	}
	token := sess.Token(r.Context())
	if token == "" {
		return middleware.Identity{}, false
	}
	id := middleware.Identity{Token: token}
	if u, ok := sess.User(r.Context()); ok {
		id.UserID = u.Identity()
		id.Email = u.Email
		id.Role = strings.ToLower(u.Role)
	}
	return id, true
}

func sessionFromContext(ctx context.Context) (*session.Session, bool) {
	sess, ok := ctx.Value(sessionKey).(*session.Session)
	return sess, ok
}

// ContentTypeJSON enforces that requests with a body have Content-Type: application/json.
func ContentTypeJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.ContentLength > 0 || r.Method == http.MethodPost || r.Method == http.MethodPut || r.Method == http.MethodPatch {
			ct := r.Header.Get("Content-Type")
			if ct != "" && !strings.HasPrefix(ct, "application/json") {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnsupportedMediaType)
				_, _ = w.Write([]byte(`{"error":{"code":"UNSUPPORTED_MEDIA_TYPE","message":"Content-Type must be application/json"}}`))
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

package middleware

import (
	"context"
	"net/http"
	"strings"
)

type contextKeyType string

const identityKey contextKeyType = "identity"

// Identity is the caller as far as the storefront knows. Tokens are issued
// and validated by the backend; the storefront only carries them.
type Identity struct {
	UserID string
	Email  string
	Role   string
	Token  string
}

// Authenticated reports whether a backend token is present.
func (i Identity) Authenticated() bool {
	return i.Token != ""
}

// IdentityResolver looks up the caller for a request, typically from the
// session store.
type IdentityResolver func(r *http.Request) (Identity, bool)

// Auth places the resolved identity in the request context. Requests without
// one pass through anonymously.
func Auth(resolve IdentityResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := resolve(r)
			if !ok {
				next.ServeHTTP(w, r)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
		})
	}
}

// RequireRole rejects callers without one of roles with 401.
func RequireRole(roles ...string) func(http.Handler) http.Handler {
	roleSet := make(map[string]struct{}, len(roles))
	for _, r := range roles {
		roleSet[r] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := IdentityFromContext(r.Context())
			if !id.Authenticated() {
				writeJSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "login required")
				return
			}
			if _, ok := roleSet[id.Role]; !ok {
				writeJSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "insufficient permissions")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

func IdentityFromContext(ctx context.Context) Identity {
	if id, ok := ctx.Value(identityKey).(Identity); ok {
		return id
	}
	return Identity{}
}

// BearerToken extracts the token from an Authorization header.
func BearerToken(r *http.Request) string {
	parts := strings.SplitN(r.Header.Get("Authorization"), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

package middleware

import (
	"fmt"
	"net/http"
)

// CacheControl marks GET responses cacheable for maxAge seconds. Shared
// caches may keep a response only when shared reports true for its request;
// other responses are private and vary on Cookie. A nil shared makes every
// response public.
func CacheControl(maxAge int, shared func(*http.Request) bool) func(http.Handler) http.Handler {
	public := fmt.Sprintf("public, max-age=%d", maxAge)
	private := fmt.Sprintf("private, max-age=%d", maxAge)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodGet {
				if shared == nil || shared(r) {
					w.Header().Set("Cache-Control", public)
				} else {
					w.Header().Set("Cache-Control", private)
					w.Header().Add("Vary", "Cookie")
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// NoStore disables caching for per-session responses such as the cart.
func NoStore(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-store")
		w.Header().Set("Vary", "Cookie")
		next.ServeHTTP(w, r)
	})
}

package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"

	"github.com/utafrali/storefront/pkg/logger"
)

func TestIPAllowlist(t *testing.T) {
	tests := []struct {
		name       string
		cidrs      []string
		remoteAddr string
		want       int
	}{
		{"loopback allowed", []string{"127.0.0.0/8"}, "127.0.0.1:5000", http.StatusOK},
		{"outside denied", []string{"10.0.0.0/8"}, "192.168.1.1:5000", http.StatusForbidden},
		{"second cidr", []string{"10.0.0.0/8", "192.168.0.0/16"}, "192.168.3.4:1", http.StatusOK},
		{"invalid cidr skipped", []string{"nope", "10.0.0.0/8"}, "10.1.1.1:1", http.StatusOK},
		{"ipv6", []string{"::1/128"}, "[::1]:8080", http.StatusOK},
		{"no port", []string{"10.0.0.0/8"}, "10.0.0.9", http.StatusOK},
		{"empty denies", nil, "127.0.0.1:1", http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := IPAllowlist(tt.cidrs, logger.Discard())(okHandler())
			req := httptest.NewRequest(http.MethodGet, "/debug/pprof/", nil)
			req.RemoteAddr = tt.remoteAddr
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestRegisterPprof(t *testing.T) {
	r := chi.NewRouter()
	RegisterPprof(r, []string{"127.0.0.0/8"}, logger.Discard())

	req := httptest.NewRequest(http.MethodGet, "/debug/pprof/cmdline", nil)
	req.RemoteAddr = "127.0.0.1:1"
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	req.RemoteAddr = "8.8.8.8:1"
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

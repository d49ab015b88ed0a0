package proxy

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/storefront/internal/backend"
	"github.com/utafrali/storefront/pkg/logger"
)

type seen struct {
	method        string
	path          string
	query         string
	body          string
	authorization string
	contentType   string
	cookie        string
}

func newUpstream(t *testing.T, status int, contentType, reply string) (*httptest.Server, *seen) {
	t.Helper()
	got := &seen{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		*got = seen{
			method:        r.Method,
			path:          r.URL.Path,
			query:         r.URL.RawQuery,
			body:          string(body),
			authorization: r.Header.Get("Authorization"),
			contentType:   r.Header.Get("Content-Type"),
			cookie:        r.Header.Get("Cookie"),
		}
		http.SetCookie(w, &http.Cookie{Name: "upstream", Value: "x"})
		if contentType != "" {
			w.Header().Set("Content-Type", contentType)
		}
		w.WriteHeader(status)
		_, _ = io.WriteString(w, reply)
	}))
	t.Cleanup(srv.Close)
	return srv, got
}

func newRouter(t *testing.T, upstreamURL string) http.Handler {
	t.Helper()
	sp, err := NewServiceProxy(upstreamURL+"/api", nil, logger.Discard())
	require.NoError(t, err)
	r := chi.NewRouter()
	r.Mount("/api", sp.Routes())
	return r
}

func errorCode(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	return body.Error.Code
}

func TestNewServiceProxy_RejectsRelativeURL(t *testing.T) {
	_, err := NewServiceProxy("/api", nil, logger.Discard())
	assert.Error(t, err)
}

func TestServiceProxy_Routes(t *testing.T) {
	tests := []struct {
		name      string
		method    string
		target    string
		body      string
		wantPath  string
		wantQuery string
	}{
		{"category find", http.MethodGet, "/api/category/find?q=qad", "", "/api/category/find", "q=qad"},
		{"category list", http.MethodGet, "/api/category", "", "/api/category", ""},
		{"category by id", http.MethodDelete, "/api/category/4", "", "/api/category/4", ""},
		{"products", http.MethodGet, "/api/products?page=2", "", "/api/products", "page=2"},
		{"product specs", http.MethodPost, "/api/products/12/specs", `{"key":"k"}`, "/api/products/12/specs", ""},
		{"product variants", http.MethodGet, "/api/products/12/variants", "", "/api/products/12/variants", ""},
		{"products by category", http.MethodPost, "/api/products/category/3", `{"name":"x"}`, "/api/products/category/3", ""},
		{"login", http.MethodPost, "/api/auth/login", `{"email":"a@b.az"}`, "/api/auth/login", ""},
		{"register", http.MethodPost, "/api/auth/register", `{"email":"a@b.az"}`, "/api/auth/register", ""},
		{"users", http.MethodGet, "/api/users", "", "/api/user", ""},
		{"universal", http.MethodPut, "/api/proxy?path=/products/5&lang=en", `{"price":3}`, "/api/products/5", "lang=en"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, got := newUpstream(t, http.StatusOK, "application/json", `{"ok":true}`)
			h := newRouter(t, srv.URL)

			req := httptest.NewRequest(tt.method, tt.target, strings.NewReader(tt.body))
			req.Header.Set("Authorization", "Bearer client")
			req.AddCookie(&http.Cookie{Name: "sid", Value: "secret"})
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, req)

			require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
			assert.JSONEq(t, `{"ok":true}`, rr.Body.String())
			assert.Equal(t, tt.method, got.method)
			assert.Equal(t, tt.wantPath, got.path)
			assert.Equal(t, tt.wantQuery, got.query)
			assert.Equal(t, tt.body, got.body)
			assert.Equal(t, "Bearer client", got.authorization)
			assert.Equal(t, "application/json", got.contentType)
			assert.Empty(t, got.cookie, "cookies are not forwarded")
			assert.Empty(t, rr.Header().Get("Set-Cookie"), "upstream cookies are dropped")
		})
	}
}

func TestServiceProxy_UsesSessionToken(t *testing.T) {
	srv, got := newUpstream(t, http.StatusOK, "application/json", `[]`)
	h := newRouter(t, srv.URL)

	req := httptest.NewRequest(http.MethodGet, "/api/users", nil)
	req = req.WithContext(backend.WithToken(req.Context(), "session-token"))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "Bearer session-token", got.authorization)
}

func TestServiceProxy_PassesStatusThrough(t *testing.T) {
	srv, _ := newUpstream(t, http.StatusNotFound, "application/json", `{"message":"Product not found"}`)
	h := newRouter(t, srv.URL)

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/products/99", nil))

	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.JSONEq(t, `{"message":"Product not found"}`, rr.Body.String())
}

func TestServiceProxy_EmptyBodyPasses(t *testing.T) {
	srv, _ := newUpstream(t, http.StatusNoContent, "", "")
	h := newRouter(t, srv.URL)

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodDelete, "/api/products/5", nil))

	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Empty(t, rr.Body.String())
}

func TestServiceProxy_NonJSONUpstream(t *testing.T) {
	srv, _ := newUpstream(t, http.StatusOK, "text/html", "<html>Service waking up</html>")
	h := newRouter(t, srv.URL)

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/category", nil))

	assert.Equal(t, http.StatusBadGateway, rr.Code)
	assert.Equal(t, "BAD_GATEWAY_NON_JSON", errorCode(t, rr))
}

func TestServiceProxy_UnreachableUpstream(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()
	h := newRouter(t, url)

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/products", nil))

	assert.Equal(t, http.StatusBadGateway, rr.Code)
	assert.Equal(t, "BAD_GATEWAY", errorCode(t, rr))
}

func TestServiceProxy_UniversalRequiresPath(t *testing.T) {
	srv, got := newUpstream(t, http.StatusOK, "application/json", `{}`)
	h := newRouter(t, srv.URL)

	for _, target := range []string{"/api/proxy", "/api/proxy?path=/../admin"} {
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, target, nil))
		assert.Equal(t, http.StatusBadRequest, rr.Code, target)
	}
	assert.Empty(t, got.method, "nothing reaches the backend")
}

func TestServiceProxy_UploadPassesMultipartThrough(t *testing.T) {
	srv, got := newUpstream(t, http.StatusCreated, "text/plain", "https://cdn.example/img.png")
	h := newRouter(t, srv.URL)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("image", "shirt.png")
	require.NoError(t, err)
	_, _ = part.Write([]byte("png-bytes"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/upload/image", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusCreated, rr.Code)
	assert.Equal(t, "https://cdn.example/img.png", rr.Body.String(), "upload replies are not checked for JSON")
	assert.Equal(t, "/api/upload/image", got.path)
	assert.Equal(t, mw.FormDataContentType(), got.contentType)
	assert.Contains(t, got.body, "png-bytes")
}

func TestServiceProxy_MethodNotAllowed(t *testing.T) {
	srv, _ := newUpstream(t, http.StatusOK, "application/json", `{}`)
	h := newRouter(t, srv.URL)

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodDelete, "/api/users", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
}

package proxy

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/utafrali/storefront/internal/backend"
	apperrors "github.com/utafrali/storefront/pkg/errors"
	pkghttputil "github.com/utafrali/storefront/pkg/httputil"
	"github.com/utafrali/storefront/pkg/tracing"
)

const maxBodySize = 10 << 20

var errNonJSON = errors.New("upstream returned a non-JSON body")

// ServiceProxy forwards /api requests to the backend API.
type ServiceProxy struct {
	target *url.URL
	logger *slog.Logger
	json   *httputil.ReverseProxy
	raw    *httputil.ReverseProxy
}

// NewServiceProxy creates a proxy for the backend rooted at baseURL, e.g.
// https://host/api. A nil transport uses http.DefaultTransport.
func NewServiceProxy(baseURL string, transport http.RoundTripper, logger *slog.Logger) (*ServiceProxy, error) {
	target, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse backend url: %w", err)
	}
	if target.Scheme == "" || target.Host == "" {
		return nil, fmt.Errorf("backend url %q must be absolute", baseURL)
	}
	if transport == nil {
		transport = http.DefaultTransport
	}
	transport = tracedTransport{next: transport}

	sp := &ServiceProxy{target: target, logger: logger}
	sp.json = &httputil.ReverseProxy{
		Rewrite:        sp.rewrite(true),
		Transport:      transport,
		ModifyResponse: requireJSON,
		ErrorHandler:   sp.errorHandler,
	}
	sp.raw = &httputil.ReverseProxy{
		Rewrite:        sp.rewrite(false),
		Transport:      transport,
		ModifyResponse: dropCookies,
		ErrorHandler:   sp.errorHandler,
	}

	logger.Info("registered backend proxy", slog.String("target", target.String()))
	return sp, nil
}

// Routes returns the /api sub-router.
func (sp *ServiceProxy) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/category/find", sp.forward(keepPath))
	r.Handle("/category", sp.forward(keepPath))
	r.Handle("/category/*", sp.forward(keepPath))

	// Covers /{id}, /{id}/specs, /{id}/variants and /category/{categoryId}.
	r.Handle("/products", sp.forward(keepPath))
	r.Handle("/products/*", sp.forward(keepPath))

	r.Post("/auth/login", sp.forward(keepPath))
	r.Post("/auth/register", sp.forward(keepPath))

	r.Get("/users", sp.forward(fixedPath("/user")))

	r.Post("/upload/image", sp.raw.ServeHTTP)

	r.Handle("/proxy", sp.forward(queryPath))

	return r
}

type upstreamPath func(r *http.Request) (string, error)

func keepPath(r *http.Request) (string, error) {
	return strings.TrimPrefix(r.URL.Path, "/api"), nil
}

func fixedPath(p string) upstreamPath {
	return func(*http.Request) (string, error) { return p, nil }
}

// queryPath takes the upstream path from ?path= and removes it from the
// forwarded query.
func queryPath(r *http.Request) (string, error) {
	q := r.URL.Query()
	p := q.Get("path")
	if p == "" {
		return "", apperrors.InvalidInput("path query parameter is required")
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if strings.Contains(p, "..") {
		return "", apperrors.InvalidInput("path must not contain '..'")
	}
	q.Del("path")
	r.URL.RawQuery = q.Encode()
	return p, nil
}

type pathKey struct{}

func withUpstreamPath(ctx context.Context, p string) context.Context {
	return context.WithValue(ctx, pathKey{}, p)
}

func upstreamPathFrom(ctx context.Context) (string, bool) {
	p, ok := ctx.Value(pathKey{}).(string)
	return p, ok
}

func (sp *ServiceProxy) forward(resolve upstreamPath) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, err := resolve(r)
		if err != nil {
			pkghttputil.WriteError(w, r, err, sp.logger)
			return
		}
		r = r.WithContext(withUpstreamPath(r.Context(), p))
		sp.json.ServeHTTP(w, r)
	}
}

func (sp *ServiceProxy) rewrite(forceJSON bool) func(*httputil.ProxyRequest) {
	return func(pr *httputil.ProxyRequest) {
		p, ok := upstreamPathFrom(pr.In.Context())
		if !ok {
			p = strings.TrimPrefix(pr.In.URL.Path, "/api")
		}

		out := pr.Out
		out.URL.Scheme = sp.target.Scheme
		out.URL.Host = sp.target.Host
		out.URL.Path = sp.target.Path + p
		out.URL.RawPath = ""
		out.URL.RawQuery = pr.In.URL.RawQuery
		out.Host = sp.target.Host

		out.Header.Del("Cookie")
		if out.Header.Get("Authorization") == "" {
			if token := backend.TokenFromContext(pr.In.Context()); token != "" {
				out.Header.Set("Authorization", "Bearer "+token)
			}
		}
		if forceJSON {
			out.Header.Set("Accept", "application/json")
			out.Header.Set("Content-Type", "application/json")
		}
	}
}

func dropCookies(resp *http.Response) error {
	resp.Header.Del("Set-Cookie")
	return nil
}

// requireJSON buffers the upstream body and fails the exchange when it is
// not JSON. Empty bodies pass.
func requireJSON(resp *http.Response) error {
	_ = dropCookies(resp)

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize+1))
	_ = resp.Body.Close()
	if err != nil {
		return fmt.Errorf("read upstream body: %w", err)
	}
	if len(data) > maxBodySize {
		return fmt.Errorf("upstream body exceeds %d bytes", maxBodySize)
	}
	if trimmed := bytes.TrimSpace(data); len(trimmed) > 0 && !json.Valid(trimmed) {
		return errNonJSON
	}

	resp.Body = io.NopCloser(bytes.NewReader(data))
	resp.ContentLength = int64(len(data))
	resp.Header.Set("Content-Length", fmt.Sprint(len(data)))
	resp.Header.Set("Content-Type", "application/json")
	return nil
}

func (sp *ServiceProxy) errorHandler(w http.ResponseWriter, r *http.Request, err error) {
	sp.logger.ErrorContext(r.Context(), "proxy error",
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.String("error", err.Error()),
	)

	if errors.Is(err, errNonJSON) {
		pkghttputil.WriteError(w, r, apperrors.BadGateway("BAD_GATEWAY_NON_JSON", "backend returned a non-JSON response", err), sp.logger)
		return
	}
	pkghttputil.WriteError(w, r, apperrors.BadGateway("BAD_GATEWAY", "could not reach the backend", err), sp.logger)
}

// tracedTransport opens a client span per upstream round trip.
type tracedTransport struct {
	next http.RoundTripper
}

func (t tracedTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx, span := tracing.StartClientSpan(req.Context(), req)
	defer span.End()

	resp, err := t.next.RoundTrip(req.WithContext(ctx))
	if err != nil {
		tracing.RecordError(span, err)
	}
	return resp, err
}

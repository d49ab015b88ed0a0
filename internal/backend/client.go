package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/utafrali/storefront/internal/catalog"
	"github.com/utafrali/storefront/internal/domain"
	apperrors "github.com/utafrali/storefront/pkg/errors"
	"github.com/utafrali/storefront/pkg/httpclient"
	"github.com/utafrali/storefront/pkg/tracing"
)

const maxBodySize = 10 << 20

// CircuitOpenFallback answers for the backend while its circuit breaker is
// open, so callers see a 503 with a retry hint instead of the raw breaker
// error.
func CircuitOpenFallback(_ context.Context, err error) (*http.Response, error) {
	return nil, apperrors.Unavailable("backend is temporarily unavailable, please retry shortly", err)
}

// HTTPDoer executes HTTP requests. Both httpclient.Client and
// httpclient.CircuitBreakerClient satisfy it.
type HTTPDoer interface {
	Do(ctx context.Context, req *http.Request) (*http.Response, error)
}

type tokenKey struct{}

// WithToken attaches the caller's backend token to ctx. Requests made with
// the returned context carry it as a bearer token.
func WithToken(ctx context.Context, token string) context.Context {
	if token == "" {
		return ctx
	}
	return context.WithValue(ctx, tokenKey{}, token)
}

// TokenFromContext returns the token set by WithToken, or "".
func TokenFromContext(ctx context.Context) string {
	token, _ := ctx.Value(tokenKey{}).(string)
	return token
}

// Client is a typed client for the remote catalog, auth and upload API.
type Client struct {
	baseURL string
	http    HTTPDoer
	logger  *slog.Logger
}

// New creates a client for the backend rooted at baseURL.
func New(baseURL string, doer HTTPDoer, logger *slog.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    doer,
		logger:  logger,
	}
}

// response is a drained backend reply.
type response struct {
	status int
	body   []byte
}

func (r response) ok() bool {
	return r.status >= 200 && r.status < 300
}

// message returns the backend's error message, or fallback.
func (r response) message(fallback string) string {
	if msg := httpclient.ExtractMessage(r.body); msg != "" {
		return msg
	}
	return fallback
}

// decode unmarshals the body into v. A body that is not JSON is a server
// error.
func (r response) decode(v any) error {
	if err := json.Unmarshal(r.body, v); err != nil {
		return apperrors.Server("backend returned a non-JSON response", err)
	}
	return nil
}

// statusError classifies a non-2xx reply.
func (r response) statusError(fallback string) error {
	return apperrors.FromStatus(r.status, r.message(fallback))
}

// send performs one request and drains the reply. Non-2xx replies are
// returned as-is for the caller to classify; only transport failures are
// errors here.
func (c *Client) send(ctx context.Context, method, path string, body any) (response, error) {
	var reader io.Reader = http.NoBody
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return response{}, apperrors.Server("encode request body", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return response{}, apperrors.Server("build backend request", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.do(ctx, req)
}

func (c *Client) do(ctx context.Context, req *http.Request) (response, error) {
	if token := TokenFromContext(ctx); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	ctx, span := tracing.StartClientSpan(ctx, req)
	defer span.End()

	resp, err := c.http.Do(ctx, req)
	if err != nil {
		err = c.transportError(ctx, req, err)
		tracing.RecordError(span, err)
		return response{}, err
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		err = apperrors.Server("read backend response", err)
		tracing.RecordError(span, err)
		return response{}, err
	}
	return response{status: resp.StatusCode, body: bytes.TrimSpace(data)}, nil
}

// transportError maps a failed Do. The breaker and retry layers report
// drained 5xx replies as StatusError; those keep their status.
func (c *Client) transportError(ctx context.Context, req *http.Request, err error) error {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	var se *httpclient.StatusError
	if errors.As(err, &se) {
		return apperrors.FromStatus(se.Status, httpclient.ExtractMessage([]byte(se.Message)))
	}
	if errors.Is(err, httpclient.ErrCircuitOpen) {
		return apperrors.Unavailable("backend is temporarily unavailable, please retry shortly", err)
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}

	c.logger.WarnContext(ctx, "backend request failed",
		slog.String("method", req.Method),
		slog.String("path", req.URL.Path),
		slog.String("error", err.Error()),
	)
	return apperrors.Server("backend unreachable", err)
}

// call sends a request and decodes a 2xx reply into out when out is non-nil.
func (c *Client) call(ctx context.Context, method, path string, in, out any, failure string) error {
	resp, err := c.send(ctx, method, path, in)
	if err != nil {
		return err
	}
	if !resp.ok() {
		return resp.statusError(failure)
	}
	if out == nil {
		return nil
	}
	return resp.decode(out)
}

// ---- categories

// ListCategories returns the categories matching rawQuery, passed through
// to /category/find untouched. An empty query lists everything.
func (c *Client) ListCategories(ctx context.Context, rawQuery string) ([]domain.Category, error) {
	path := "/category/find"
	if q := strings.TrimPrefix(rawQuery, "?"); q != "" {
		path += "?" + q
	}

	resp, err := c.send(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	if !resp.ok() {
		return nil, resp.statusError(fmt.Sprintf("categories could not be loaded: %d", resp.status))
	}
	if !json.Valid(resp.body) {
		return nil, apperrors.Server("backend returned a non-JSON response", nil)
	}
	return catalog.NormalizeCategories(resp.body)
}

// GetCategory fetches one category.
func (c *Client) GetCategory(ctx context.Context, id domain.ID) (domain.Category, error) {
	resp, err := c.send(ctx, http.MethodGet, "/category/"+id.String(), nil)
	if err != nil {
		return domain.Category{}, err
	}
	if resp.status == http.StatusNotFound {
		return domain.Category{}, apperrors.NotFound("category", id.String())
	}
	if !resp.ok() {
		return domain.Category{}, resp.statusError("category could not be loaded")
	}
	list, err := catalog.NormalizeCategories(resp.body)
	if err != nil {
		return domain.Category{}, apperrors.Server("backend returned a non-JSON response", err)
	}
	if len(list) == 0 {
		return domain.Category{}, apperrors.NotFound("category", id.String())
	}
	return list[0], nil
}

// CategoryInput is the body of a category create or update.
type CategoryInput struct {
	Name     domain.Localized `json:"name"`
	Slug     string           `json:"slug"`
	ImageURL string           `json:"imageUrl"`
	ParentID *domain.ID       `json:"parentId"`
}

// CreateCategory creates a category. The backend must echo an id back.
func (c *Client) CreateCategory(ctx context.Context, in CategoryInput) (domain.Category, error) {
	var created domain.Category
	if err := c.call(ctx, http.MethodPost, "/category", in, &created, "category could not be created"); err != nil {
		return domain.Category{}, err
	}
	if created.ID == "" {
		return domain.Category{}, apperrors.Server("category could not be created: no id returned", nil)
	}
	return created, nil
}

// UpdateCategory replaces a category.
func (c *Client) UpdateCategory(ctx context.Context, id domain.ID, in CategoryInput) (domain.Category, error) {
	resp, err := c.send(ctx, http.MethodPut, "/category/"+id.String(), in)
	if err != nil {
		return domain.Category{}, err
	}
	if !resp.ok() {
		return domain.Category{}, resp.statusError("category could not be updated")
	}
	list, err := catalog.NormalizeCategories(resp.body)
	if err != nil || len(list) == 0 {
		// Some deployments answer updates with a bare status message.
		return domain.Category{ID: id, Name: in.Name, Slug: in.Slug, ImageURL: in.ImageURL}, nil
	}
	return list[0], nil
}

// DeleteCategory deletes a category.
func (c *Client) DeleteCategory(ctx context.Context, id domain.ID) error {
	return c.call(ctx, http.MethodDelete, "/category/"+id.String(), nil, nil, "category could not be deleted")
}

// ---- products

// ListProducts returns the full product collection.
func (c *Client) ListProducts(ctx context.Context) ([]domain.Product, error) {
	resp, err := c.send(ctx, http.MethodGet, "/products", nil)
	if err != nil {
		return nil, err
	}
	if !resp.ok() {
		return nil, apperrors.Server(fmt.Sprintf("products could not be loaded: %d", resp.status), nil)
	}
	if !json.Valid(resp.body) {
		return nil, apperrors.Server("backend returned a non-JSON response", nil)
	}
	return catalog.NormalizeProducts(resp.body)
}

// GetProduct fetches one product. When the direct lookup fails or answers
// with an error payload, the full list is scanned instead. A product that
// exists in neither is NotFound.
func (c *Client) GetProduct(ctx context.Context, id domain.ID) (domain.Product, error) {
	resp, err := c.send(ctx, http.MethodGet, "/products/"+id.String(), nil)
	if err != nil {
		return domain.Product{}, err
	}

	if resp.ok() {
		if !json.Valid(resp.body) {
			return domain.Product{}, apperrors.Server("backend returned a non-JSON response", nil)
		}
		if !isErrorPayload(resp.body) {
			p, ok, err := catalog.NormalizeProduct(resp.body)
			if err != nil {
				return domain.Product{}, apperrors.Server("decode product", err)
			}
			if ok {
				return p, nil
			}
		}
	}

	c.logger.DebugContext(ctx, "direct product lookup failed, scanning list",
		slog.String("product_id", id.String()),
		slog.Int("status", resp.status),
	)
	all, err := c.ListProducts(ctx)
	if err != nil {
		return domain.Product{}, err
	}
	if p, ok := catalog.FindProduct(all, id.String()); ok {
		return p, nil
	}
	return domain.Product{}, apperrors.NotFound("product", id.String())
}

// isErrorPayload spots the 200 replies the backend sends for unknown ids.
func isErrorPayload(body []byte) bool {
	var probe struct {
		Error      json.RawMessage `json:"error"`
		StatusCode json.RawMessage `json:"statusCode"`
		Message    json.RawMessage `json:"message"`
	}
	if json.Unmarshal(body, &probe) != nil {
		return false
	}
	if present(probe.Error) || present(probe.StatusCode) {
		return true
	}
	var msg string
	return json.Unmarshal(probe.Message, &msg) == nil && msg == "User is not found"
}

func present(raw json.RawMessage) bool {
	switch strings.TrimSpace(string(raw)) {
	case "", "null", "false", "0", `""`:
		return false
	}
	return true
}

// ProductInput is the body of a product create or update. Specs and
// variants are created separately.
type ProductInput struct {
	Name        string   `json:"name"`
	Slug        string   `json:"slug"`
	Description []string `json:"description"`
	Img         string   `json:"img,omitempty"`
	Price       float64  `json:"price"`
	Stock       int      `json:"stock"`
	Brand       string   `json:"brand,omitempty"`
	IsActive    *bool    `json:"isActive,omitempty"`
}

// CreateProduct creates a product under categoryID. The reply may wrap the
// product under "product"; either way it must carry an id.
func (c *Client) CreateProduct(ctx context.Context, categoryID int, in ProductInput) (domain.Product, error) {
	if categoryID <= 0 {
		return domain.Product{}, apperrors.InvalidInput("categoryId is required")
	}

	path := fmt.Sprintf("/products/category/%d", categoryID)
	resp, err := c.send(ctx, http.MethodPost, path, in)
	if err != nil {
		return domain.Product{}, err
	}
	if !resp.ok() {
		if resp.status == http.StatusUnauthorized {
			return domain.Product{}, apperrors.Unauthorized("login required")
		}
		return domain.Product{}, apperrors.Server("product could not be created", errors.New(resp.message(http.StatusText(resp.status))))
	}
	if !json.Valid(resp.body) {
		return domain.Product{}, apperrors.Server("backend returned a non-JSON response", nil)
	}

	p, ok, err := catalog.NormalizeProduct(resp.body)
	if err != nil {
		return domain.Product{}, apperrors.Server("decode product", err)
	}
	if !ok || p.ID == "" {
		return domain.Product{}, apperrors.Server("product could not be created: no id returned", nil)
	}
	return p, nil
}

// SpecInput is one spec group posted to /products/:id/specs.
type SpecInput struct {
	Key    string           `json:"key"`
	Name   string           `json:"name"`
	Values []SpecValueInput `json:"values"`
}

// SpecValueInput is one value of a spec group.
type SpecValueInput struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// CreateSpec attaches one spec group to a product.
func (c *Client) CreateSpec(ctx context.Context, productID domain.ID, in SpecInput) error {
	resp, err := c.send(ctx, http.MethodPost, "/products/"+productID.String()+"/specs", in)
	if err != nil {
		return err
	}
	if !resp.ok() {
		return apperrors.Server("specs could not be created", errors.New(resp.message(http.StatusText(resp.status))))
	}
	return nil
}

// VariantInput is one variant posted to /products/:id/variants.
type VariantInput struct {
	Slug     string               `json:"slug"`
	Price    float64              `json:"price"`
	Stock    int                  `json:"stock"`
	Discount float64              `json:"discount"`
	Images   []string             `json:"images"`
	Specs    []domain.VariantSpec `json:"specs"`
}

// CreateVariant attaches one variant to a product.
func (c *Client) CreateVariant(ctx context.Context, productID domain.ID, in VariantInput) error {
	resp, err := c.send(ctx, http.MethodPost, "/products/"+productID.String()+"/variants", in)
	if err != nil {
		return err
	}
	if !resp.ok() {
		return apperrors.Server("variants could not be created", errors.New(resp.message(http.StatusText(resp.status))))
	}
	return nil
}

// UpdateProduct replaces a product. Deployments that do not route PUT
// answer 404; the update is then sent once more as POST.
func (c *Client) UpdateProduct(ctx context.Context, id domain.ID, in ProductInput) (domain.Product, error) {
	path := "/products/" + id.String()
	resp, err := c.send(ctx, http.MethodPut, path, in)
	if err != nil {
		return domain.Product{}, err
	}
	if resp.status == http.StatusNotFound {
		c.logger.DebugContext(ctx, "product PUT returned 404, retrying as POST",
			slog.String("product_id", id.String()),
		)
		resp, err = c.send(ctx, http.MethodPost, path, in)
		if err != nil {
			return domain.Product{}, err
		}
	}

	switch {
	case resp.status == http.StatusUnauthorized:
		return domain.Product{}, apperrors.Unauthorized("login required")
	case resp.status == http.StatusNotFound:
		return domain.Product{}, apperrors.NotFound("product", id.String())
	case !resp.ok():
		return domain.Product{}, apperrors.Server(
			fmt.Sprintf("product could not be updated (%d): %s", resp.status, string(resp.body)), nil)
	}

	p, ok, err := catalog.NormalizeProduct(resp.body)
	if err != nil || !ok {
		return domain.Product{ID: id, Slug: in.Slug, Name: domain.Text(in.Name)}, nil
	}
	return p, nil
}

// DeleteProduct deletes a product. Empty replies are fine.
func (c *Client) DeleteProduct(ctx context.Context, id domain.ID) error {
	resp, err := c.send(ctx, http.MethodDelete, "/products/"+id.String(), nil)
	if err != nil {
		return err
	}
	if resp.status == http.StatusNotFound {
		return apperrors.NotFound("product", id.String())
	}
	if !resp.ok() {
		return resp.statusError("product could not be deleted")
	}
	return nil
}

// ---- auth and users

// Login exchanges credentials for a token and user record.
func (c *Client) Login(ctx context.Context, email, password string) (domain.AuthResult, error) {
	if email == "" || password == "" {
		return domain.AuthResult{}, apperrors.InvalidInput("email and password are required")
	}

	resp, err := c.send(ctx, http.MethodPost, "/auth/login", map[string]string{
		"email":    email,
		"password": password,
	})
	if err != nil {
		return domain.AuthResult{}, err
	}
	if !json.Valid(resp.body) {
		return domain.AuthResult{}, apperrors.Server("backend returned a non-JSON response", nil)
	}
	if resp.status == http.StatusUnauthorized {
		return domain.AuthResult{}, apperrors.Unauthorized(resp.message("invalid email or password"))
	}
	if !resp.ok() {
		return domain.AuthResult{}, apperrors.Server(resp.message("login failed"), nil)
	}

	return authResult(resp)
}

// Registration is the body of a sign-up.
type Registration struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"firstname"`
	LastName  string `json:"lastname"`
}

// Register creates a user account with the "user" role. The backend signs
// the new account in, so the reply carries a token and user like Login.
func (c *Client) Register(ctx context.Context, in Registration) (domain.AuthResult, error) {
	if in.Email == "" || in.Password == "" || in.FirstName == "" || in.LastName == "" {
		return domain.AuthResult{}, apperrors.InvalidInput("all fields are required")
	}

	body := struct {
		Registration
		Role string `json:"role"`
	}{Registration: in, Role: "user"}

	resp, err := c.send(ctx, http.MethodPost, "/auth/register", body)
	if err != nil {
		return domain.AuthResult{}, err
	}
	if !json.Valid(resp.body) {
		return domain.AuthResult{}, apperrors.Server("backend returned a non-JSON response", nil)
	}
	if !resp.ok() {
		return domain.AuthResult{}, apperrors.Server(resp.message("registration failed"), nil)
	}
	return authResult(resp)
}

func authResult(resp response) (domain.AuthResult, error) {
	var result domain.AuthResult
	if err := resp.decode(&result); err != nil {
		return domain.AuthResult{}, err
	}
	if result.Token == "" || result.User == nil {
		return domain.AuthResult{}, apperrors.Server("token or user missing from backend response", nil)
	}
	return result, nil
}

// ListUsers returns every user account. Requires an admin token.
func (c *Client) ListUsers(ctx context.Context) ([]domain.User, error) {
	resp, err := c.send(ctx, http.MethodGet, "/user", nil)
	if err != nil {
		return nil, err
	}
	if !resp.ok() {
		return nil, resp.statusError("users could not be loaded")
	}
	if !json.Valid(resp.body) {
		return nil, apperrors.Server("backend returned a non-JSON response", nil)
	}
	return catalog.NormalizeList[domain.User](resp.body, "users", "data")
}

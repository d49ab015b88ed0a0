package http

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/utafrali/storefront/internal/catalog"
	"github.com/utafrali/storefront/internal/domain"
	apperrors "github.com/utafrali/storefront/pkg/errors"
	"github.com/utafrali/storefront/pkg/httputil"
	"github.com/utafrali/storefront/pkg/pagination"
)

// Catalog is the read side of the product catalog.
type Catalog interface {
	Products(ctx context.Context) ([]domain.Product, error)
	Categories(ctx context.Context) ([]domain.Category, error)
	Product(ctx context.Context, id string) (domain.Product, bool, error)
}

// StorefrontHandler serves the public catalog.
type StorefrontHandler struct {
	catalog Catalog
	logger  *slog.Logger
	now     func() time.Time
}

// NewStorefrontHandler creates a new storefront HTTP handler.
func NewStorefrontHandler(c Catalog, logger *slog.Logger) *StorefrontHandler {
	return &StorefrontHandler{catalog: c, logger: logger, now: time.Now}
}

// --- Response DTOs ---

// ProductView is a product with its text resolved for one language.
type ProductView struct {
	ID          domain.ID        `json:"id"`
	Slug        string           `json:"slug,omitempty"`
	Name        string           `json:"name"`
	Description string           `json:"description"`
	Brand       string           `json:"brand,omitempty"`
	Image       string           `json:"image,omitempty"`
	Images      []string         `json:"images,omitempty"`
	Pricing     domain.PriceInfo `json:"pricing"`
	Stock       domain.Number    `json:"stock"`
	IsNew       bool             `json:"is_new"`
	CategoryID  domain.ID        `json:"category_id,omitempty"`
	Specs       []domain.Spec    `json:"specs,omitempty"`
	Variants    []domain.Variant `json:"variants,omitempty"`
}

// CategoryView is a category with its name resolved for one language.
type CategoryView struct {
	ID       domain.ID `json:"id"`
	Name     string    `json:"name"`
	Slug     string    `json:"slug,omitempty"`
	ParentID domain.ID `json:"parent_id,omitempty"`
	ImageURL string    `json:"image_url,omitempty"`
}

func newProductView(p domain.Product, lang domain.Lang, now time.Time) ProductView {
	categoryID, _ := p.CategoryKey()
	return ProductView{
		ID:          p.ID,
		Slug:        p.Slug,
		Name:        p.Name.Resolve(lang),
		Description: p.Description.Resolve(lang),
		Brand:       p.Brand,
		Image:       p.Image(),
		Images:      p.Images,
		Pricing:     p.Pricing(),
		Stock:       p.Stock,
		IsNew:       p.IsNewAt(now),
		CategoryID:  categoryID,
		Specs:       p.Specs,
		Variants:    p.Variants,
	}
}

func newCategoryView(c domain.Category, lang domain.Lang) CategoryView {
	return CategoryView{
		ID:       c.ID,
		Name:     c.Name.Resolve(lang),
		Slug:     c.Slug,
		ParentID: c.ParentID,
		ImageURL: c.ImageURL,
	}
}

// --- Handlers ---

// ListProducts handles GET /storefront/products
func (h *StorefrontHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	h.writeProducts(w, r, "")
}

// Search handles GET /storefront/search?q=
func (h *StorefrontHandler) Search(w http.ResponseWriter, r *http.Request) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if q == "" {
		httputil.WriteError(w, r, apperrors.InvalidInput("q is required"), h.logger)
		return
	}
	h.writeProducts(w, r, q)
}

func (h *StorefrontHandler) writeProducts(w http.ResponseWriter, r *http.Request, query string) {
	products, err := h.catalog.Products(r.Context())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	criteria := catalog.CriteriaFromQuery(r.URL.Query())
	criteria.Sort = catalog.MapSort(criteria.Sort)
	criteria.Lang = requestLang(r)

	products = catalog.Search(products, query, criteria.Lang)
	products = catalog.Apply(products, criteria)

	now := h.now()
	views := make([]ProductView, len(products))
	for i, p := range products {
		views[i] = newProductView(p, criteria.Lang, now)
	}

	httputil.WriteJSON(w, http.StatusOK, pagination.Paginate(views, pagination.FromRequest(r)))
}

// GetProduct handles GET /storefront/products/{id}
func (h *StorefrontHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		httputil.WriteError(w, r, apperrors.InvalidInput("product id is required"), h.logger)
		return
	}

	p, ok, err := h.catalog.Product(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	if !ok {
		httputil.WriteError(w, r, apperrors.NotFound("product", id), h.logger)
		return
	}

	httputil.WriteData(w, http.StatusOK, newProductView(p, requestLang(r), h.now()))
}

// ListCategories handles GET /storefront/categories
func (h *StorefrontHandler) ListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.catalog.Categories(r.Context())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	lang := requestLang(r)
	views := make([]CategoryView, len(categories))
	for i, c := range categories {
		views[i] = newCategoryView(c, lang)
	}
	httputil.WriteData(w, http.StatusOK, views)
}

// explicitLang reports whether the request names a valid language, making
// the response independent of the session.
func explicitLang(r *http.Request) bool {
	_, ok := domain.ParseLang(r.URL.Query().Get("lang"))
	return ok
}

// requestLang is the lang query parameter when valid, else the session
// locale.
func requestLang(r *http.Request) domain.Lang {
	if lang, ok := domain.ParseLang(r.URL.Query().Get("lang")); ok {
		return lang
	}
	if sess, ok := sessionFromContext(r.Context()); ok {
		return sess.Locale(r.Context())
	}
	return domain.DefaultLang
}

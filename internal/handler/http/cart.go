package http

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/utafrali/storefront/internal/cart"
	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/internal/session"
	apperrors "github.com/utafrali/storefront/pkg/errors"
	"github.com/utafrali/storefront/pkg/httputil"
	"github.com/utafrali/storefront/pkg/validator"
)

// LoginPath is where clients are sent when an action needs a signed-in user.
const LoginPath = "/login"

// CartHandler handles HTTP requests for cart endpoints.
type CartHandler struct {
	registry *session.Registry
	logger   *slog.Logger
}

// NewCartHandler creates a new cart HTTP handler.
func NewCartHandler(registry *session.Registry, logger *slog.Logger) *CartHandler {
	return &CartHandler{registry: registry, logger: logger}
}

// --- Request DTOs ---

// AddItemRequest is the JSON request body for adding an item to the cart.
type AddItemRequest struct {
	ID    domain.ID       `json:"id" validate:"required"`
	Name  string          `json:"name" validate:"required,max=500"`
	Price decimal.Decimal `json:"price"`
	Image string          `json:"image"`
	Size  string          `json:"size"`
	Color string          `json:"color"`
	Stock int             `json:"stock" validate:"gte=0"`
	Specs []domain.Spec   `json:"specs"`
}

// UpdateQuantityRequest is the JSON request body for setting an item's quantity.
type UpdateQuantityRequest struct {
	Quantity int `json:"quantity"`
}

// --- Handlers ---

// GetCart handles GET /cart
func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	store, ok := h.store(w, r)
	if !ok {
		return
	}
	httputil.WriteData(w, http.StatusOK, store.Snapshot())
}

// AddItem handles POST /cart/items. Signed-out callers get a 401 pointing at
// the login page and the cart is left alone.
func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	sess, ok := sessionFromContext(r.Context())
	if !ok {
		httputil.WriteError(w, r, apperrors.Internal(nil), h.logger)
		return
	}
	if _, signedIn := sess.User(r.Context()); !signedIn {
		httputil.WriteRedirectError(w, r, "sign in to add items to your cart", LoginPath)
		return
	}

	var req AddItemRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	if req.Price.IsNegative() {
		httputil.WriteError(w, r, apperrors.InvalidInput("price must not be negative"), h.logger)
		return
	}

	store := h.registry.Cart(r.Context(), sess.ID)
	store.AddItem(r.Context(), domain.LineItem{
		ID:    req.ID,
		Name:  req.Name,
		Price: req.Price,
		Image: req.Image,
		Size:  req.Size,
		Color: req.Color,
		Stock: req.Stock,
		Specs: req.Specs,
	})
	httputil.WriteData(w, http.StatusOK, store.Snapshot())
}

// RemoveItem handles DELETE /cart/items/{id}?size=
func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	store, ok := h.store(w, r)
	if !ok {
		return
	}
	store.RemoveItem(r.Context(), itemID(r), r.URL.Query().Get("size"))
	httputil.WriteData(w, http.StatusOK, store.Snapshot())
}

// UpdateQuantity handles PUT /cart/items/{id}/quantity?size=
func (h *CartHandler) UpdateQuantity(w http.ResponseWriter, r *http.Request) {
	store, ok := h.store(w, r)
	if !ok {
		return
	}

	var req UpdateQuantityRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	store.UpdateQuantity(r.Context(), itemID(r), r.URL.Query().Get("size"), req.Quantity)
	httputil.WriteData(w, http.StatusOK, store.Snapshot())
}

// IncrementQuantity handles POST /cart/items/{id}/increment?size=&max_stock=
// Without max_stock the stock recorded on the line is the ceiling.
func (h *CartHandler) IncrementQuantity(w http.ResponseWriter, r *http.Request) {
	store, ok := h.store(w, r)
	if !ok {
		return
	}

	id, size := itemID(r), r.URL.Query().Get("size")
	maxStock := 0
	if raw := r.URL.Query().Get("max_stock"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil {
			httputil.WriteError(w, r, apperrors.InvalidInput("max_stock must be an integer"), h.logger)
			return
		}
		maxStock = v
	} else {
		for _, it := range store.Items() {
			if it.Matches(id, size) {
				maxStock = it.Stock
				break
			}
		}
	}

	store.IncrementQuantity(r.Context(), id, size, maxStock)
	httputil.WriteData(w, http.StatusOK, store.Snapshot())
}

// DecrementQuantity handles POST /cart/items/{id}/decrement?size=
func (h *CartHandler) DecrementQuantity(w http.ResponseWriter, r *http.Request) {
	store, ok := h.store(w, r)
	if !ok {
		return
	}
	store.DecrementQuantity(r.Context(), itemID(r), r.URL.Query().Get("size"))
	httputil.WriteData(w, http.StatusOK, store.Snapshot())
}

// ClearCart handles DELETE /cart
func (h *CartHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	store, ok := h.store(w, r)
	if !ok {
		return
	}
	store.ClearCart(r.Context())
	httputil.WriteData(w, http.StatusOK, store.Snapshot())
}

func (h *CartHandler) store(w http.ResponseWriter, r *http.Request) (*cart.Store, bool) {
	sess, ok := sessionFromContext(r.Context())
	if !ok {
		httputil.WriteError(w, r, apperrors.Internal(nil), h.logger)
		return nil, false
	}
	return h.registry.Cart(r.Context(), sess.ID), true
}

func itemID(r *http.Request) domain.ID {
	return domain.ID(chi.URLParam(r, "id"))
}

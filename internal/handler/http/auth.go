package http

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/internal/service"
	"github.com/utafrali/storefront/internal/session"
	apperrors "github.com/utafrali/storefront/pkg/errors"
	"github.com/utafrali/storefront/pkg/httputil"
	"github.com/utafrali/storefront/pkg/validator"
)

// AuthHandler handles sign-in, registration and the session locale.
type AuthHandler struct {
	service *service.AuthService
	logger  *slog.Logger
}

// NewAuthHandler creates a new auth HTTP handler.
func NewAuthHandler(svc *service.AuthService, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{service: svc, logger: logger}
}

// LocaleRequest is the JSON request body for changing the session language.
type LocaleRequest struct {
	Locale string `json:"locale" validate:"required,locale"`
}

type localeResponse struct {
	Locale domain.Lang `json:"locale"`
}

// Login handles POST /auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	h.login(w, r, h.service.Login)
}

// AdminLogin handles POST /admin/login
func (h *AuthHandler) AdminLogin(w http.ResponseWriter, r *http.Request) {
	h.login(w, r, h.service.AdminLogin)
}

type loginFunc func(ctx context.Context, sess *session.Session, in service.LoginInput) (domain.User, error)

func (h *AuthHandler) login(w http.ResponseWriter, r *http.Request, fn loginFunc) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}

	var in service.LoginInput
	if err := validator.DecodeAndValidate(r, &in); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	user, err := fn(r.Context(), sess, in)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, user)
}

// Register handles POST /auth/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}

	var in service.RegisterInput
	if err := validator.DecodeAndValidate(r, &in); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	user, err := h.service.Register(r.Context(), sess, in)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusCreated, user)
}

// Logout handles POST /auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	if err := h.service.Logout(r.Context(), sess); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Me handles GET /auth/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	user, ok := h.service.Current(r.Context(), sess)
	if !ok {
		httputil.WriteRedirectError(w, r, "not signed in", LoginPath)
		return
	}
	httputil.WriteData(w, http.StatusOK, user)
}

// GetLocale handles GET /session/locale
func (h *AuthHandler) GetLocale(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	httputil.WriteData(w, http.StatusOK, localeResponse{Locale: sess.Locale(r.Context())})
}

// SetLocale handles PUT /session/locale
func (h *AuthHandler) SetLocale(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}

	var req LocaleRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	lang := domain.LangOrDefault(req.Locale)
	if err := sess.SetLocale(r.Context(), lang); err != nil {
		httputil.WriteError(w, r, apperrors.Internal(err), h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, localeResponse{Locale: lang})
}

func (h *AuthHandler) session(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	sess, ok := sessionFromContext(r.Context())
	if !ok {
		httputil.WriteError(w, r, apperrors.Internal(nil), h.logger)
		return nil, false
	}
	return sess, true
}

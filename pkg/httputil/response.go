package httputil

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	apperrors "github.com/utafrali/storefront/pkg/errors"
	"github.com/utafrali/storefront/pkg/logger"
	"github.com/utafrali/storefront/pkg/validator"
)

// Response is the JSON envelope for every storefront reply.
type Response struct {
	Data  any            `json:"data,omitempty"`
	Error *ErrorResponse `json:"error,omitempty"`
}

// ErrorResponse carries the taxonomy kind so clients can branch on it.
type ErrorResponse struct {
	Code      string            `json:"code"`
	Kind      apperrors.Kind    `json:"kind"`
	Message   string            `json:"message"`
	Fields    map[string]string `json:"fields,omitempty"`
	Redirect  string            `json:"redirect,omitempty"`
	RequestID string            `json:"request_id,omitempty"`
}

// WriteJSON writes v with the given status. Encode errors are dropped since
// headers are already sent.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteData wraps v in the data envelope.
func WriteData(w http.ResponseWriter, status int, v any) {
	WriteJSON(w, status, Response{Data: v})
}

// WriteError renders err through the error taxonomy. Server errors are
// logged with the request-scoped logger when one is present.
func WriteError(w http.ResponseWriter, r *http.Request, err error, fallback *slog.Logger) {
	var valErr *validator.ValidationError
	if errors.As(err, &valErr) {
		WriteValidationError(w, r, err)
		return
	}

	appErr := apperrors.Normalize(err)
	kind := appErr.Kind()

	if kind == apperrors.KindServer {
		l := logger.FromContext(r.Context())
		if l == slog.Default() && fallback != nil {
			l = fallback
		}
		l.ErrorContext(r.Context(), "request failed",
			slog.String("error", err.Error()),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
		)
	}

	WriteJSON(w, appErr.Status, Response{
		Error: &ErrorResponse{
			Code:      appErr.Code,
			Kind:      kind,
			Message:   appErr.Message,
			RequestID: logger.CorrelationIDFromContext(r.Context()),
		},
	})
}

// WriteRedirectError writes a 401 telling the client where to authenticate.
func WriteRedirectError(w http.ResponseWriter, r *http.Request, message, redirect string) {
	WriteJSON(w, http.StatusUnauthorized, Response{
		Error: &ErrorResponse{
			Code:      "UNAUTHORIZED",
			Kind:      apperrors.KindUnauthorized,
			Message:   message,
			Redirect:  redirect,
			RequestID: logger.CorrelationIDFromContext(r.Context()),
		},
	})
}

// WriteValidationError writes field-level errors when available.
func WriteValidationError(w http.ResponseWriter, r *http.Request, err error) {
	resp := &ErrorResponse{
		Code:      "INVALID_INPUT",
		Kind:      apperrors.KindValidation,
		Message:   err.Error(),
		RequestID: logger.CorrelationIDFromContext(r.Context()),
	}

	var valErr *validator.ValidationError
	if errors.As(err, &valErr) {
		resp.Code = "VALIDATION_ERROR"
		resp.Message = "request validation failed"
		resp.Fields = valErr.Fields()
	} else if appErr := apperrors.Normalize(err); appErr.Kind() == apperrors.KindValidation {
		resp.Message = appErr.Message
	}

	WriteJSON(w, http.StatusBadRequest, Response{Error: resp})
}

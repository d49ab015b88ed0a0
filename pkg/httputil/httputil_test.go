package httputil

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/utafrali/storefront/pkg/errors"
	"github.com/utafrali/storefront/pkg/logger"
	"github.com/utafrali/storefront/pkg/validator"
)

func decode(t *testing.T, rec *httptest.ResponseRecorder) Response {
	t.Helper()
	var resp struct {
		Data  json.RawMessage `json:"data"`
		Error *ErrorResponse  `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return Response{Data: resp.Data, Error: resp.Error}
}

func TestWriteData(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteData(rec, http.StatusCreated, map[string]int{"total_items": 3})

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"data":{"total_items":3}}`, rec.Body.String())
}

func TestWriteError_Taxonomy(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		kind   apperrors.Kind
	}{
		{"validation", apperrors.InvalidInput("email is required"), http.StatusBadRequest, apperrors.KindValidation},
		{"unauthorized", apperrors.Unauthorized("admin role required"), http.StatusUnauthorized, apperrors.KindUnauthorized},
		{"not found", apperrors.NotFound("product", "p1"), http.StatusNotFound, apperrors.KindNotFound},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, apperrors.KindServer},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/cart", nil)
			WriteError(rec, req, tt.err, logger.Discard())

			assert.Equal(t, tt.status, rec.Code)
			resp := decode(t, rec)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.kind, resp.Error.Kind)
		})
	}
}

func TestWriteError_IncludesRequestID(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(logger.WithCorrelationID(req.Context(), "corr-1"))

	WriteError(rec, req, apperrors.NotFound("category", "c1"), logger.Discard())

	resp := decode(t, rec)
	assert.Equal(t, "corr-1", resp.Error.RequestID)
}

func TestWriteError_ValidationFields(t *testing.T) {
	type in struct {
		Email string `json:"email" validate:"required"`
	}
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/", nil)

	WriteError(rec, req, validator.Validate(in{}), logger.Discard())

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decode(t, rec)
	assert.Equal(t, "VALIDATION_ERROR", resp.Error.Code)
	assert.Equal(t, "is required", resp.Error.Fields["email"])
}

func TestWriteRedirectError(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/cart/items", nil)

	WriteRedirectError(rec, req, "login required", "/login")

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	resp := decode(t, rec)
	assert.Equal(t, "/login", resp.Error.Redirect)
}

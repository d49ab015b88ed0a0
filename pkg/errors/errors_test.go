package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSentinelErrors_AreDistinct(t *testing.T) {
	sentinels := []error{ErrValidation, ErrUnauthorized, ErrNotFound, ErrServer}

	for i := 0; i < len(sentinels); i++ {
		for j := i + 1; j < len(sentinels); j++ {
			assert.NotEqual(t, sentinels[i], sentinels[j])
		}
	}
}

func TestAppError_ErrorString(t *testing.T) {
	appErr := &AppError{Code: "NOT_FOUND", Message: "product not found"}
	assert.Equal(t, "NOT_FOUND: product not found", appErr.Error())

	wrapped := &AppError{Code: "SERVER_ERROR", Message: "boom", Err: fmt.Errorf("dial tcp")}
	assert.Contains(t, wrapped.Error(), "dial tcp")
}

func TestConstructors_Kinds(t *testing.T) {
	tests := []struct {
		name   string
		err    *AppError
		kind   Kind
		status int
	}{
		{"invalid input", InvalidInput("email is required"), KindValidation, http.StatusBadRequest},
		{"unauthorized", Unauthorized("login required"), KindUnauthorized, http.StatusUnauthorized},
		{"not found", NotFound("product", "p1"), KindNotFound, http.StatusNotFound},
		{"server", Server("no token in response", nil), KindServer, http.StatusInternalServerError},
		{"internal", Internal(fmt.Errorf("x")), KindServer, http.StatusInternalServerError},
		{"bad gateway", BadGateway("BAD_GATEWAY", "upstream down", nil), KindServer, http.StatusBadGateway},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.kind, tt.err.Kind())
			assert.Equal(t, tt.status, tt.err.Status)
			assert.Equal(t, tt.status, HTTPStatus(tt.err))
		})
	}
}

func TestNotFound_Message(t *testing.T) {
	err := NotFound("category", "c-9")
	assert.Contains(t, err.Message, "category")
	assert.Contains(t, err.Message, "c-9")
}

func TestFromStatus(t *testing.T) {
	tests := []struct {
		status int
		kind   Kind
	}{
		{http.StatusBadRequest, KindValidation},
		{http.StatusUnprocessableEntity, KindValidation},
		{http.StatusUnauthorized, KindUnauthorized},
		{http.StatusForbidden, KindUnauthorized},
		{http.StatusNotFound, KindNotFound},
		{http.StatusInternalServerError, KindServer},
		{http.StatusBadGateway, KindServer},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			err := FromStatus(tt.status, "")
			assert.Equal(t, tt.kind, err.Kind())
			assert.NotEmpty(t, err.Message)
		})
	}
}

func TestNormalize(t *testing.T) {
	assert.Nil(t, Normalize(nil))

	known := InvalidInput("bad")
	assert.Same(t, known, Normalize(known))
	assert.Same(t, known, Normalize(Wrap(known, "create product")))

	plain := Normalize(fmt.Errorf("socket closed"))
	require.NotNil(t, plain)
	assert.Equal(t, KindServer, plain.Kind())
	assert.Equal(t, "socket closed", plain.Message)
}

func TestHTTPStatus_PlainSentinels(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, HTTPStatus(Wrap(ErrNotFound, "lookup")))
	assert.Equal(t, http.StatusBadRequest, HTTPStatus(ErrValidation))
	assert.Equal(t, http.StatusUnauthorized, HTTPStatus(ErrUnauthorized))
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(errors.New("other")))
}

func TestUnavailable(t *testing.T) {
	err := Unavailable("backend is temporarily unavailable", errors.New("circuit breaker is open"))
	assert.Equal(t, http.StatusServiceUnavailable, HTTPStatus(err))
	assert.Equal(t, KindServer, err.Kind())
	assert.ErrorIs(t, err, ErrServer)
}

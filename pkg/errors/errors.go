package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors. Every AppError wraps exactly one of the four kinds below
// so callers can branch with errors.Is.
var (
	ErrValidation   = errors.New("validation failed")
	ErrUnauthorized = errors.New("unauthorized")
	ErrNotFound     = errors.New("resource not found")
	ErrServer       = errors.New("server error")
)

// Kind is the user-facing error category.
type Kind string

const (
	KindValidation   Kind = "validation"
	KindUnauthorized Kind = "unauthorized"
	KindNotFound     Kind = "not_found"
	KindServer       Kind = "server"
)

// AppError represents a structured application error with HTTP status mapping.
type AppError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"-"`
	Err     error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Kind reports the category of the error.
func (e *AppError) Kind() Kind {
	return KindOf(e)
}

// InvalidInput creates a 400 validation error.
func InvalidInput(message string) *AppError {
	return &AppError{
		Code:    "INVALID_INPUT",
		Message: message,
		Status:  http.StatusBadRequest,
		Err:     ErrValidation,
	}
}

// Unauthorized creates a 401 error.
func Unauthorized(message string) *AppError {
	return &AppError{
		Code:    "UNAUTHORIZED",
		Message: message,
		Status:  http.StatusUnauthorized,
		Err:     ErrUnauthorized,
	}
}

// NotFound creates a 404 error.
func NotFound(resource, id string) *AppError {
	return &AppError{
		Code:    "NOT_FOUND",
		Message: fmt.Sprintf("%s with id %s not found", resource, id),
		Status:  http.StatusNotFound,
		Err:     ErrNotFound,
	}
}

// Server creates a 500 error with a caller-visible message.
func Server(message string, cause error) *AppError {
	return &AppError{
		Code:    "SERVER_ERROR",
		Message: message,
		Status:  http.StatusInternalServerError,
		Err:     errors.Join(ErrServer, cause),
	}
}

// Internal creates a 500 error that hides the cause from the caller.
func Internal(err error) *AppError {
	return Server("an internal error occurred", err)
}

// BadGateway creates a 502 error for upstream failures.
func BadGateway(code, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Status:  http.StatusBadGateway,
		Err:     errors.Join(ErrServer, cause),
	}
}

// Unavailable creates a 503 server error for a dependency that is refusing
// traffic.
func Unavailable(message string, cause error) *AppError {
	return &AppError{
		Code:    "SERVICE_UNAVAILABLE",
		Message: message,
		Status:  http.StatusServiceUnavailable,
		Err:     errors.Join(ErrServer, cause),
	}
}

// FromStatus maps an upstream HTTP status to the error taxonomy.
func FromStatus(status int, message string) *AppError {
	if message == "" {
		message = http.StatusText(status)
	}
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return &AppError{Code: "UNAUTHORIZED", Message: message, Status: status, Err: ErrUnauthorized}
	case status == http.StatusNotFound:
		return &AppError{Code: "NOT_FOUND", Message: message, Status: status, Err: ErrNotFound}
	case status >= 400 && status < 500:
		return &AppError{Code: "INVALID_INPUT", Message: message, Status: status, Err: ErrValidation}
	default:
		return &AppError{Code: "SERVER_ERROR", Message: message, Status: http.StatusInternalServerError, Err: ErrServer}
	}
}

// Normalize returns err as an *AppError, wrapping anything unknown as Server.
func Normalize(err error) *AppError {
	if err == nil {
		return nil
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	msg := err.Error()
	if msg == "" {
		msg = "unknown error"
	}
	return Server(msg, err)
}

// KindOf classifies any error; unknown errors are KindServer.
func KindOf(err error) Kind {
	switch {
	case errors.Is(err, ErrValidation):
		return KindValidation
	case errors.Is(err, ErrUnauthorized):
		return KindUnauthorized
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	default:
		return KindServer
	}
}

// Wrap wraps an error with additional context.
func Wrap(err error, message string) error {
	return fmt.Errorf("%s: %w", message, err)
}

// HTTPStatus returns the HTTP status code for the given error.
func HTTPStatus(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Status
	}

	switch KindOf(err) {
	case KindValidation:
		return http.StatusBadRequest
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

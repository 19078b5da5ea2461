package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Standard error types
var (
	ErrNotFound          = errors.New("resource not found")
	ErrPermissionDenied  = errors.New("permission denied")
	ErrBadRequest        = errors.New("bad request")
	ErrConflict          = errors.New("resource conflict")
	ErrInternal          = errors.New("internal server error")
	ErrValidation        = errors.New("validation error")
	ErrStockInsufficient = errors.New("insufficient stock")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrTokenInvalid      = errors.New("invalid token")
)

// AppError represents an application error with context.
// Everything except Internal is a structured rejection the caller is
// expected to handle; Internal is the only category that represents a
// genuine infrastructure fault.
type AppError struct {
	Err        error             `json:"-"`
	Message    string            `json:"message"`
	Code       string            `json:"code"`
	StatusCode int               `json:"status_code"`
	Details    map[string]string `json:"details,omitempty"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error
func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError
func New(code string, message string, statusCode int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
	}
}

// Wrap wraps an error with additional context
func Wrap(err error, code string, message string, statusCode int) *AppError {
	return &AppError{
		Err:        err,
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
	}
}

// WithDetails adds details to an AppError
func (e *AppError) WithDetails(details map[string]string) *AppError {
	e.Details = details
	return e
}

// Common error constructors

// NotFoundOrForbidden covers both a genuine miss and a cross-plant lookup.
// The two cases are deliberately indistinguishable so that existence of a
// record in another plant never leaks.
func NotFoundOrForbidden(resource string) *AppError {
	return &AppError{
		Err:        ErrNotFound,
		Code:       "NOT_FOUND",
		Message:    fmt.Sprintf("%s not found", resource),
		StatusCode: http.StatusNotFound,
	}
}

// PermissionDenied is returned when the permission resolver says no.
// It carries role/ownership context in Details for the caller.
func PermissionDenied(message string, details map[string]string) *AppError {
	return &AppError{
		Err:        ErrPermissionDenied,
		Code:       "PERMISSION_DENIED",
		Message:    message,
		StatusCode: http.StatusForbidden,
		Details:    details,
	}
}

// StockInsufficient is returned when a raise or reconciliation would drive
// stock negative. The message always includes both numbers.
func StockInsufficient(available, requested int) *AppError {
	return &AppError{
		Err:        ErrStockInsufficient,
		Code:       "STOCK_INSUFFICIENT",
		Message:    fmt.Sprintf("insufficient stock: %d available, %d requested", available, requested),
		StatusCode: http.StatusConflict,
		Details: map[string]string{
			"available": fmt.Sprintf("%d", available),
			"requested": fmt.Sprintf("%d", requested),
		},
	}
}

func BadRequest(message string) *AppError {
	return &AppError{
		Err:        ErrBadRequest,
		Code:       "BAD_REQUEST",
		Message:    message,
		StatusCode: http.StatusBadRequest,
	}
}

func Conflict(message string) *AppError {
	return &AppError{
		Err:        ErrConflict,
		Code:       "CONFLICT",
		Message:    message,
		StatusCode: http.StatusConflict,
	}
}

func Internal(message string) *AppError {
	return &AppError{
		Err:        ErrInternal,
		Code:       "INTERNAL_ERROR",
		Message:    message,
		StatusCode: http.StatusInternalServerError,
	}
}

func Validation(details map[string]string) *AppError {
	return &AppError{
		Err:        ErrValidation,
		Code:       "VALIDATION_ERROR",
		Message:    "validation failed",
		StatusCode: http.StatusBadRequest,
		Details:    details,
	}
}

func Unauthorized(message string) *AppError {
	return &AppError{
		Err:        ErrUnauthorized,
		Code:       "UNAUTHORIZED",
		Message:    message,
		StatusCode: http.StatusUnauthorized,
	}
}

func TokenInvalid() *AppError {
	return &AppError{
		Err:        ErrTokenInvalid,
		Code:       "TOKEN_INVALID",
		Message:    "invalid token",
		StatusCode: http.StatusUnauthorized,
	}
}

// Is checks if the error matches a target error
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As attempts to convert an error to a specific type
func As(err error, target any) bool {
	return errors.As(err, target)
}

// Package httperr defines the operational error taxonomy shared by every
// layer of the application. Services and handlers return *Error values (or
// plain errors that Normalize can classify); the pipeline's terminal
// responder turns them into the wire envelope.
package httperr

import (
	"fmt"
	"net/http"
)

// Stable machine-readable error codes.
const (
	CodeValidation         = "VALIDATION_ERROR"
	CodeAuthentication     = "AUTHENTICATION_ERROR"
	CodeAuthorization      = "AUTHORIZATION_ERROR"
	CodeNotFound           = "NOT_FOUND"
	CodeConflict           = "CONFLICT"
	CodePayloadTooLarge    = "PAYLOAD_TOO_LARGE"
	CodeTimeout            = "REQUEST_TIMEOUT"
	CodeRateLimited        = "RATE_LIMIT_EXCEEDED"
	CodeDatabase           = "DATABASE_ERROR"
	CodeInternal           = "INTERNAL_ERROR"
	CodeExternalService    = "EXTERNAL_SERVICE_ERROR"
	CodeServiceUnavailable = "SERVICE_UNAVAILABLE"
)

// Error is a normalized operational error. StatusCode drives the HTTP
// response and log severity; Code is the stable machine string exposed to
// clients. IsOperational distinguishes anticipated, classified failures
// from unexpected defects.
type Error struct {
	StatusCode    int
	Code          string
	Message       string
	Details       any
	IsOperational bool
	Err           error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap exposes the underlying cause for errors.Is/As.
func (e *Error) Unwrap() error {
	return e.Err
}

// FieldIssue describes one invalid field in a validation failure.
type FieldIssue struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// New creates an operational error with an explicit status and code.
func New(statusCode int, code, message string) *Error {
	return &Error{
		StatusCode:    statusCode,
		Code:          code,
		Message:       message,
		IsOperational: true,
	}
}

// Validation creates a 400 error carrying one issue per invalid field.
func Validation(message string, issues []FieldIssue) *Error {
	e := New(http.StatusBadRequest, CodeValidation, message)
	if len(issues) > 0 {
		e.Details = issues
	}
	return e
}

// BadRequest creates a 400 error without field issues.
func BadRequest(message string) *Error {
	return New(http.StatusBadRequest, CodeValidation, message)
}

// Unauthorized creates a 401 error.
func Unauthorized(message string) *Error {
	if message == "" {
		message = "authentication required"
	}
	return New(http.StatusUnauthorized, CodeAuthentication, message)
}

// Forbidden creates a 403 error.
func Forbidden(message string) *Error {
	if message == "" {
		message = "insufficient permissions"
	}
	return New(http.StatusForbidden, CodeAuthorization, message)
}

// NotFound creates a 404 error naming the missing resource.
func NotFound(resource string) *Error {
	return New(http.StatusNotFound, CodeNotFound, fmt.Sprintf("%s not found", resource))
}

// Conflict creates a 409 error.
func Conflict(message string) *Error {
	return New(http.StatusConflict, CodeConflict, message)
}

// PayloadTooLarge creates a 413 error.
func PayloadTooLarge(message string) *Error {
	if message == "" {
		message = "request payload too large"
	}
	return New(http.StatusRequestEntityTooLarge, CodePayloadTooLarge, message)
}

// Timeout creates a 408 error.
func Timeout(message string) *Error {
	if message == "" {
		message = "request timed out"
	}
	return New(http.StatusRequestTimeout, CodeTimeout, message)
}

// RateLimited creates a 429 error.
func RateLimited(message string) *Error {
	if message == "" {
		message = "too many requests"
	}
	return New(http.StatusTooManyRequests, CodeRateLimited, message)
}

// Internal creates a 500 error wrapping an unexpected cause. It is not
// operational: the original message is surfaced only outside production.
func Internal(err error) *Error {
	return &Error{
		StatusCode:    http.StatusInternalServerError,
		Code:          CodeInternal,
		Message:       "internal server error",
		IsOperational: false,
		Err:           err,
	}
}

// Database creates a 500 error for a persistence failure.
func Database(err error) *Error {
	return &Error{
		StatusCode:    http.StatusInternalServerError,
		Code:          CodeDatabase,
		Message:       "database operation failed",
		IsOperational: true,
		Err:           err,
	}
}

// ExternalService creates a 502 error for an upstream collaborator failure.
func ExternalService(message string, err error) *Error {
	e := New(http.StatusBadGateway, CodeExternalService, message)
	e.Err = err
	return e
}

// ServiceUnavailable creates a 503 error.
func ServiceUnavailable(message string) *Error {
	if message == "" {
		message = "service unavailable"
	}
	return New(http.StatusServiceUnavailable, CodeServiceUnavailable, message)
}

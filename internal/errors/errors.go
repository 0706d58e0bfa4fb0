// Package errors defines the service error taxonomy.
// Every error that crosses an API boundary is a ServiceError with a stable
// code, an HTTP status, and optional structured details.
package errors

import (
	goerrors "errors"
	"fmt"
	"net/http"
)

// ErrorCode identifies a class of service error.
type ErrorCode string

const (
	CodeBadRequest     ErrorCode = "bad_request"
	CodeUnauthorized   ErrorCode = "unauthorized"
	CodeInvalidToken   ErrorCode = "invalid_token"
	CodeForbidden      ErrorCode = "forbidden"
	CodeNotFound       ErrorCode = "not_found"
	CodeWalletRequired ErrorCode = "wallet_required"
	CodeRateLimited    ErrorCode = "rate_limited"
	CodeUnavailable    ErrorCode = "unavailable"
	CodeInternal       ErrorCode = "internal"
)

// ServiceError is an error with an API-facing representation.
type ServiceError struct {
	Code       ErrorCode              `json:"code"`
	Message    string                 `json:"message"`
	HTTPStatus int                    `json:"-"`
	Details    map[string]interface{} `json:"details,omitempty"`
	cause      error
}

// Error implements the error interface.
func (e *ServiceError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *ServiceError) Unwrap() error {
	return e.cause
}

// WithDetails attaches a detail key/value pair and returns the error.
func (e *ServiceError) WithDetails(key string, value interface{}) *ServiceError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

func newError(code ErrorCode, status int, message string, cause error) *ServiceError {
	return &ServiceError{
		Code:       code,
		Message:    message,
		HTTPStatus: status,
		cause:      cause,
	}
}

// BadRequest returns a 400 error.
func BadRequest(message string) *ServiceError {
	return newError(CodeBadRequest, http.StatusBadRequest, message, nil)
}

// Unauthorized returns a 401 error.
func Unauthorized(message string) *ServiceError {
	return newError(CodeUnauthorized, http.StatusUnauthorized, message, nil)
}

// InvalidToken returns a 401 error for token validation failures.
func InvalidToken(cause error) *ServiceError {
	return newError(CodeInvalidToken, http.StatusUnauthorized, "Invalid or expired token", cause)
}

// Forbidden returns a 403 error.
func Forbidden(message string) *ServiceError {
	return newError(CodeForbidden, http.StatusForbidden, message, nil)
}

// NotFound returns a 404 error.
func NotFound(message string) *ServiceError {
	return newError(CodeNotFound, http.StatusNotFound, message, nil)
}

// WalletRequired returns a 403 error indicating the action needs a
// registered wallet address.
func WalletRequired(message string) *ServiceError {
	return newError(CodeWalletRequired, http.StatusForbidden, message, nil)
}

// RateLimited returns a 429 error.
func RateLimited(message string) *ServiceError {
	return newError(CodeRateLimited, http.StatusTooManyRequests, message, nil)
}

// Unavailable returns a 503 error for upstream dependency failures.
func Unavailable(message string, cause error) *ServiceError {
	return newError(CodeUnavailable, http.StatusServiceUnavailable, message, cause)
}

// Internal returns a 500 error.
func Internal(message string, cause error) *ServiceError {
	return newError(CodeInternal, http.StatusInternalServerError, message, cause)
}

// GetServiceError extracts a ServiceError from err, or nil if none is found
// in the chain.
func GetServiceError(err error) *ServiceError {
	var svcErr *ServiceError
	if goerrors.As(err, &svcErr) {
		return svcErr
	}
	return nil
}

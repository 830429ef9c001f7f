// Package errors defines the service error taxonomy surfaced by the HTTP API.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Code identifies an error category.
type Code string

const (
	CodeValidation         Code = "VALIDATION_ERROR"
	CodeNotFound           Code = "NOT_FOUND"
	CodeConflict           Code = "CONFLICT"
	CodeInvalidCredentials Code = "INVALID_CREDENTIALS"
	CodeUnverified         Code = "UNVERIFIED"
	CodeInvalidToken       Code = "INVALID_TOKEN"
	CodeInvalidTransition  Code = "INVALID_TRANSITION"
	CodeUnauthorized       Code = "UNAUTHORIZED"
	CodeRateLimited        Code = "RATE_LIMITED"
	CodeInternal           Code = "INTERNAL_ERROR"
)

// ServiceError carries a category, a human-readable message and the HTTP
// status the API layer should respond with. None of these errors are retried
// internally; they surface directly to the caller.
type ServiceError struct {
	Code       Code
	Message    string
	HTTPStatus int
	Details    map[string]interface{}
	Err        error
}

func (e *ServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap exposes the wrapped cause for errors.Is/As.
func (e *ServiceError) Unwrap() error { return e.Err }

// WithDetails attaches a key/value pair for structured responses.
func (e *ServiceError) WithDetails(key string, value interface{}) *ServiceError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// Validation reports malformed or missing input.
func Validation(message string) *ServiceError {
	return &ServiceError{Code: CodeValidation, Message: message, HTTPStatus: http.StatusBadRequest}
}

// NotFound reports an absent entity, or one not owned by the caller.
func NotFound(message string) *ServiceError {
	return &ServiceError{Code: CodeNotFound, Message: message, HTTPStatus: http.StatusNotFound}
}

// Conflict reports a duplicate unique field.
func Conflict(message string) *ServiceError {
	return &ServiceError{Code: CodeConflict, Message: message, HTTPStatus: http.StatusConflict}
}

// InvalidCredentials reports a failed username/password check.
func InvalidCredentials(message string) *ServiceError {
	return &ServiceError{Code: CodeInvalidCredentials, Message: message, HTTPStatus: http.StatusUnauthorized}
}

// Unverified reports a login attempt on an unverified account.
func Unverified(message string) *ServiceError {
	return &ServiceError{Code: CodeUnverified, Message: message, HTTPStatus: http.StatusForbidden}
}

// InvalidToken reports a verification, reset or identity token that did not
// match.
func InvalidToken(err error) *ServiceError {
	return &ServiceError{Code: CodeInvalidToken, Message: "invalid or expired token", HTTPStatus: http.StatusBadRequest, Err: err}
}

// InvalidTransition reports an illegal invoice status change.
func InvalidTransition(message string) *ServiceError {
	return &ServiceError{Code: CodeInvalidTransition, Message: message, HTTPStatus: http.StatusConflict}
}

// Unauthorized reports a missing or unusable session token.
func Unauthorized(message string) *ServiceError {
	if message == "" {
		message = "authentication required"
	}
	return &ServiceError{Code: CodeUnauthorized, Message: message, HTTPStatus: http.StatusUnauthorized}
}

// RateLimited reports that the caller exceeded the request budget.
func RateLimited(message string) *ServiceError {
	if message == "" {
		message = "too many requests"
	}
	return &ServiceError{Code: CodeRateLimited, Message: message, HTTPStatus: http.StatusTooManyRequests}
}

// Internal wraps an unexpected failure.
func Internal(message string, err error) *ServiceError {
	return &ServiceError{Code: CodeInternal, Message: message, HTTPStatus: http.StatusInternalServerError, Err: err}
}

// GetServiceError extracts a ServiceError from an error chain, or nil.
func GetServiceError(err error) *ServiceError {
	var svcErr *ServiceError
	if errors.As(err, &svcErr) {
		return svcErr
	}
	return nil
}

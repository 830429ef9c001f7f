package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConstructorsCarryStatus(t *testing.T) {
	cases := []struct {
		err    *ServiceError
		code   Code
		status int
	}{
		{Validation("bad input"), CodeValidation, http.StatusBadRequest},
		{NotFound("missing"), CodeNotFound, http.StatusNotFound},
		{Conflict("dup"), CodeConflict, http.StatusConflict},
		{InvalidCredentials("nope"), CodeInvalidCredentials, http.StatusUnauthorized},
		{Unverified("verify first"), CodeUnverified, http.StatusForbidden},
		{InvalidToken(nil), CodeInvalidToken, http.StatusBadRequest},
		{InvalidTransition("paid"), CodeInvalidTransition, http.StatusConflict},
		{Unauthorized(""), CodeUnauthorized, http.StatusUnauthorized},
		{RateLimited(""), CodeRateLimited, http.StatusTooManyRequests},
		{Internal("boom", nil), CodeInternal, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.code, tc.err.Code)
		assert.Equal(t, tc.status, tc.err.HTTPStatus)
		assert.NotEmpty(t, tc.err.Message)
	}
}

func TestGetServiceError(t *testing.T) {
	inner := NotFound("missing")
	wrapped := fmt.Errorf("lookup: %w", inner)

	got := GetServiceError(wrapped)
	require.NotNil(t, got)
	assert.Equal(t, CodeNotFound, got.Code)

	assert.Nil(t, GetServiceError(errors.New("plain")))
	assert.Nil(t, GetServiceError(nil))
}

func TestUnwrap(t *testing.T) {
	cause := errors.New("db down")
	err := Internal("query failed", cause)

	assert.True(t, errors.Is(err, cause))
	assert.Contains(t, err.Error(), "query failed")
	assert.Contains(t, err.Error(), "db down")
}

func TestWithDetails(t *testing.T) {
	err := Validation("bad field").WithDetails("field", "due_date")
	require.NotNil(t, err.Details)
	assert.Equal(t, "due_date", err.Details["field"])
}

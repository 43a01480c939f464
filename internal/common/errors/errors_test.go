package errors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAsStandard(t *testing.T) {
	stdErr := NewNotFoundError("conversation", "lead-1")
	assert.Same(t, stdErr, AsStandard(stdErr))

	wrapped := fmt.Errorf("fetching: %w", stdErr)
	assert.Same(t, stdErr, AsStandard(wrapped))

	plain := AsStandard(fmt.Errorf("boom"))
	assert.Equal(t, ErrCodeInternal, plain.Code)
	assert.Equal(t, "boom", plain.Details)
}

func TestCodePredicates(t *testing.T) {
	assert.True(t, IsNotFound(NewNotFoundError("lead", "x")))
	assert.False(t, IsNotFound(NewRateLimitedError("RentCast")))

	assert.True(t, IsRateLimited(fmt.Errorf("enrich: %w", NewRateLimitedError("RentCast"))))
	assert.True(t, IsStale(NewStaleResponseError(3, 5)))
	assert.False(t, IsStale(fmt.Errorf("boom")))
}

func TestRequestFailedRetryable(t *testing.T) {
	assert.False(t, NewRequestFailedError(400, "bad request").Retryable)
	assert.True(t, NewRequestFailedError(503, "unavailable").Retryable)
}

func TestGetErrorCategory(t *testing.T) {
	tests := []struct {
		code ErrorCode
		want string
	}{
		{ErrCodeNetworkFailure, "NETWORK"},
		{ErrCodeRequestFailed, "NETWORK"},
		{ErrCodeAuthentication, "AUTH"},
		{ErrCodeHubDisconnected, "HUB"},
		{ErrCodeBadEventPayload, "HUB"},
		{ErrCodeValidation, "VALIDATION"},
		{ErrCodeRateLimited, "RATE_LIMIT"},
		{ErrCodeStaleResponse, "STALE"},
		{ErrCodeInternal, "OTHER"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, GetErrorCategory(tt.code), string(tt.code))
	}
}

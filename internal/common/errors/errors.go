// Package errors provides standardized error handling for backend and hub
// interactions.
package errors

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	ErrCodeNetworkFailure  ErrorCode = "NETWORK_FAILURE"
	ErrCodeRequestFailed   ErrorCode = "REQUEST_FAILED"
	ErrCodeNotFound        ErrorCode = "RESOURCE_NOT_FOUND"
	ErrCodeRateLimited     ErrorCode = "RATE_LIMITED"
	ErrCodeValidation      ErrorCode = "VALIDATION_FAILED"
	ErrCodeAuthentication  ErrorCode = "AUTHENTICATION_ERROR"
	ErrCodeStaleResponse   ErrorCode = "STALE_RESPONSE"
	ErrCodeHubDisconnected ErrorCode = "HUB_DISCONNECTED"
	ErrCodeBadEventPayload ErrorCode = "BAD_EVENT_PAYLOAD"
	ErrCodeInternal        ErrorCode = "INTERNAL_ERROR"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// ==========================
// Error Constructors
// ==========================

// NewNetworkFailureError wraps a transport-level failure. These roll back
// optimistic state and notify the user; REST calls are single-attempt so the
// retryable flag only matters for connection setup.
func NewNetworkFailureError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeNetworkFailure,
		Message:   "Network request failed",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewRequestFailedError wraps a non-2xx HTTP response.
func NewRequestFailedError(status int, body string) *StandardError {
	return &StandardError{
		Code:      ErrCodeRequestFailed,
		Message:   fmt.Sprintf("Backend returned status %d", status),
		Details:   body,
		Retryable: status >= 500,
		Metadata:  map[string]interface{}{"status": status},
		Timestamp: time.Now().UTC(),
	}
}

// NewNotFoundError marks a 404. Callers that treat missing data as "no data"
// (for example a lead without a conversation) check for this code.
func NewNotFoundError(resource, id string) *StandardError {
	return &StandardError{
		Code:      ErrCodeNotFound,
		Message:   fmt.Sprintf("%s not found", resource),
		Details:   fmt.Sprintf("id: %s", id),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewRateLimitedError marks a 429 from an enrichment provider.
func NewRateLimitedError(provider string) *StandardError {
	return &StandardError{
		Code:      ErrCodeRateLimited,
		Message:   fmt.Sprintf("%s rate limit reached, try again shortly", provider),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewValidationError marks locally rejected input. Never sent to the network.
func NewValidationError(field, details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeValidation,
		Message:   fmt.Sprintf("Invalid value for %s", field),
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewAuthenticationError marks a failed token fetch or a 401/403.
func NewAuthenticationError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeAuthentication,
		Message:   "Authentication failed",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewStaleResponseError marks a fetch superseded by a newer request. The
// response is discarded, never applied.
func NewStaleResponseError(requestID, latestID uint64) *StandardError {
	return &StandardError{
		Code:    ErrCodeStaleResponse,
		Message: "Queue fetch superseded by a newer request",
		Details: fmt.Sprintf("requestId: %d, latest: %d", requestID, latestID),
		Metadata: map[string]interface{}{
			"requestId": requestID,
			"latestId":  latestID,
		},
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewHubDisconnectedError marks a hub operation attempted without a live
// connection.
func NewHubDisconnectedError(hub string) *StandardError {
	return &StandardError{
		Code:      ErrCodeHubDisconnected,
		Message:   fmt.Sprintf("Hub %q is not connected", hub),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewBadEventPayloadError marks a hub event that failed schema validation.
// The event is dropped; the consumer heals via refetch.
func NewBadEventPayloadError(event, details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeBadEventPayload,
		Message:   fmt.Sprintf("Malformed payload for event %q", event),
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// ==========================
// Utility Functions
// ==========================

// AsStandard extracts a *StandardError from err, wrapping unknown errors
// under INTERNAL_ERROR so callers always see a code.
func AsStandard(err error) *StandardError {
	var stdErr *StandardError
	if errors.As(err, &stdErr) {
		return stdErr
	}
	return &StandardError{
		Code:      ErrCodeInternal,
		Message:   "Unexpected error",
		Details:   err.Error(),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// IsNotFound reports whether err carries the RESOURCE_NOT_FOUND code.
func IsNotFound(err error) bool {
	return hasCode(err, ErrCodeNotFound)
}

// IsRateLimited reports whether err carries the RATE_LIMITED code.
func IsRateLimited(err error) bool {
	return hasCode(err, ErrCodeRateLimited)
}

// IsStale reports whether err carries the STALE_RESPONSE code.
func IsStale(err error) bool {
	return hasCode(err, ErrCodeStaleResponse)
}

func hasCode(err error, code ErrorCode) bool {
	var stdErr *StandardError
	return errors.As(err, &stdErr) && stdErr.Code == code
}

// GetErrorCategory returns the category of the error code, used as a metric
// label.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.Contains(codeStr, "NETWORK") || strings.Contains(codeStr, "REQUEST"):
		return "NETWORK"
	case strings.Contains(codeStr, "AUTH"):
		return "AUTH"
	case strings.Contains(codeStr, "HUB") || strings.Contains(codeStr, "EVENT"):
		return "HUB"
	case strings.Contains(codeStr, "VALIDATION"):
		return "VALIDATION"
	case strings.Contains(codeStr, "RATE"):
		return "RATE_LIMIT"
	case strings.Contains(codeStr, "STALE"):
		return "STALE"
	default:
		return "OTHER"
	}
}

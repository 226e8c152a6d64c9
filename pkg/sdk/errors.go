package sdk

import (
	"errors"
	"fmt"
)

// Error codes returned by the catalog API.
const (
	CodeNotFound                 = "NOT_FOUND"
	CodeAlreadyExists            = "ALREADY_EXISTS"
	CodeInvalidRequest           = "INVALID_REQUEST"
	CodeValidation               = "VALIDATION_ERROR"
	CodeConflict                 = "CONFLICT"
	CodeConcurrentModification   = "CONCURRENT_MODIFICATION"
	CodeReferenceNotFound        = "REFERENCE_NOT_FOUND"
	CodeInvalidReferenceType     = "INVALID_REFERENCE_TYPE"
	CodeInvalidCursorCombination = "INVALID_CURSOR_COMBINATION"
	CodeInvalidLimit             = "INVALID_LIMIT"
	CodeRateLimited              = "RATE_LIMIT_EXCEEDED"
	CodeUnavailable              = "UNAVAILABLE"
	CodeTimeout                  = "TIMEOUT"
	CodeInternal                 = "INTERNAL_ERROR"
	CodeUnknown                  = "UNKNOWN"
)

// APIError represents an error response from the catalog API
type APIError struct {
	Code       string         `json:"code"`
	Message    string         `json:"message"`
	Details    map[string]any `json:"details,omitempty"`
	RequestID  string         `json:"request_id,omitempty"`
	StatusCode int            `json:"-"`
}

type errorEnvelope struct {
	Error APIError `json:"error"`
}

func (e *APIError) Error() string {
	if len(e.Details) > 0 {
		return fmt.Sprintf("%s (%d): %s (details: %v)", e.Code, e.StatusCode, e.Message, e.Details)
	}
	return fmt.Sprintf("%s (%d): %s", e.Code, e.StatusCode, e.Message)
}

func (e *APIError) IsNotFound() bool {
	return e.Code == CodeNotFound
}

func (e *APIError) IsAlreadyExists() bool {
	return e.Code == CodeAlreadyExists
}

// IsConflict reports the refusals a caller may resolve by re-reading: a lost
// concurrent update or a delete blocked by dependents.
func (e *APIError) IsConflict() bool {
	return e.Code == CodeConflict || e.Code == CodeConcurrentModification
}

func (e *APIError) IsInvalid() bool {
	switch e.Code {
	case CodeInvalidRequest, CodeValidation, CodeInvalidLimit, CodeInvalidCursorCombination, CodeInvalidReferenceType:
		return true
	}
	return false
}

// IsRetryable reports transient server side failures.
func (e *APIError) IsRetryable() bool {
	switch e.Code {
	case CodeUnavailable, CodeTimeout, CodeRateLimited:
		return true
	}
	return false
}

// AsAPIError finds an APIError in err's chain.
func AsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	ok := errors.As(err, &apiErr)
	return apiErr, ok
}

package utils

import (
	"context"
	"errors"
	"fmt"
)

var (
	ErrNotFound                 = errors.New("resource not found")
	ErrAlreadyExists            = errors.New("resource already exists")
	ErrInvalidInput             = errors.New("invalid input")
	ErrInternal                 = errors.New("internal error")
	ErrTimeout                  = errors.New("operation timeout")
	ErrUnavailable              = errors.New("service unavailable")
	ErrConcurrentModification   = errors.New("concurrent modification detected")
	ErrValidation               = errors.New("validation failed")
	ErrConflict                 = errors.New("conflicting state")
	ErrReferenceNotFound        = errors.New("referenced entity not found")
	ErrInvalidReferenceType     = errors.New("invalid reference type")
	ErrInvalidCursorCombination = errors.New("only one of before or after query parameter allowed")
	ErrInvalidLimit             = errors.New("invalid limit")
	ErrIncompatibleSnapshot     = errors.New("incompatible snapshots")
	ErrInvalidVersion           = errors.New("invalid version")
)

const (
	CodeNotFound                 = "NOT_FOUND"
	CodeAlreadyExists            = "ALREADY_EXISTS"
	CodeInvalidInput             = "INVALID_REQUEST"
	CodeInternal                 = "INTERNAL_ERROR"
	CodeTimeout                  = "TIMEOUT"
	CodeUnavailable              = "UNAVAILABLE"
	CodeConcurrentModification   = "CONCURRENT_MODIFICATION"
	CodeValidation               = "VALIDATION_ERROR"
	CodeConflict                 = "CONFLICT"
	CodeReferenceNotFound        = "REFERENCE_NOT_FOUND"
	CodeInvalidReferenceType     = "INVALID_REFERENCE_TYPE"
	CodeInvalidCursorCombination = "INVALID_CURSOR_COMBINATION"
	CodeInvalidLimit             = "INVALID_LIMIT"
	CodeIncompatibleSnapshot     = "INCOMPATIBLE_SNAPSHOT"
	CodeInvalidVersion           = "INVALID_VERSION"
)

type AppError struct {
	Code    string
	Message string
	Err     error
	Details map[string]interface{}
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

func NewAppError(code, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
		Details: make(map[string]interface{}),
	}
}

func (e *AppError) WithDetail(key string, value interface{}) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// Code returns the AppError code carried anywhere in err's chain, or an empty string.
func Code(err error) string {
	var appErr *AppError
	if err != nil && errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}

func hasCode(err error, sentinel error, code string) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, sentinel) || Code(err) == code
}

func IsNotFound(err error) bool {
	return hasCode(err, ErrNotFound, CodeNotFound)
}

func IsAlreadyExists(err error) bool {
	return hasCode(err, ErrAlreadyExists, CodeAlreadyExists)
}

func IsValidation(err error) bool {
	return hasCode(err, ErrValidation, CodeValidation)
}

func IsConcurrentModification(err error) bool {
	return hasCode(err, ErrConcurrentModification, CodeConcurrentModification)
}

func IsConflict(err error) bool {
	return hasCode(err, ErrConflict, CodeConflict)
}

// IsRetryable reports whether the failure is transient: a timeout, an unavailable
// backend, or a context deadline. Lost CAS races are not retried here; callers
// re-read and decide themselves.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	return hasCode(err, ErrTimeout, CodeTimeout) || hasCode(err, ErrUnavailable, CodeUnavailable)
}

// IsUnavailable reports a failure the backend raised before committing
// anything, such as a refused connection or a rolled back serialization failure.
func IsUnavailable(err error) bool {
	return hasCode(err, ErrUnavailable, CodeUnavailable)
}

func WrapError(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

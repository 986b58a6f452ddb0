package errors

import (
	stderrors "errors"
	"fmt"
)

type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// AppError is the application error type. MessageKey refers to a localized
// user-facing message in the i18n catalog; Message is the internal detail.
type AppError struct {
	Code       string
	Message    string
	MessageKey string
	Severity   Severity
	Retryable  bool
	cause      error
}

func (e *AppError) Error() string {
	if e == nil {
		return ""
	}

	return e.Message
}

func (e *AppError) Unwrap() error {
	if e == nil {
		return nil
	}

	return e.cause
}

// NewValidationError marks malformed input rejected before core logic runs.
func NewValidationError(msg string) *AppError {
	return &AppError{
		Code:       "E100",
		Message:    msg,
		MessageKey: "errors.validation",
		Severity:   SeverityLow,
		Retryable:  false,
	}
}

// NewNotFoundError marks an unknown or expired share token. It is a distinct
// user-facing condition, never a transient failure.
func NewNotFoundError(what string) *AppError {
	return &AppError{
		Code:       "E110",
		Message:    fmt.Sprintf("%s not found", what),
		MessageKey: "errors.share_not_found",
		Severity:   SeverityLow,
		Retryable:  false,
	}
}

// NewRateLimitError marks a request rejected by throttling. The client may
// retry after the window passes.
func NewRateLimitError(operation string) *AppError {
	return &AppError{
		Code:       "E120",
		Message:    fmt.Sprintf("rate limit exceeded for %s", operation),
		MessageKey: "errors.rate_limited",
		Severity:   SeverityLow,
		Retryable:  true,
	}
}

// NewStorageError wraps a persistence timeout or connection failure. These are
// retried with backoff at the coordinator before being surfaced.
func NewStorageError(cause error) *AppError {
	var underlying string
	if cause != nil {
		underlying = cause.Error()
	}

	return &AppError{
		Code:       "E200",
		Message:    fmt.Sprintf("storage error: %s", underlying),
		MessageKey: "errors.storage",
		Severity:   SeverityHigh,
		Retryable:  true,
		cause:      cause,
	}
}

// NewTokenCollisionError marks exhausted token regeneration attempts. It is
// fatal for the request that hit it and never retried automatically.
func NewTokenCollisionError(attempts int) *AppError {
	return &AppError{
		Code:       "E210",
		Message:    fmt.Sprintf("share token collision persisted after %d attempts", attempts),
		MessageKey: "errors.storage",
		Severity:   SeverityCritical,
		Retryable:  false,
	}
}

// IsNotFound reports whether err is the not-found condition (code E110).
func IsNotFound(err error) bool {
	var appErr *AppError
	return stderrors.As(err, &appErr) && appErr != nil && appErr.Code == "E110"
}

// IsValidation reports whether err is a validation error (code E100).
func IsValidation(err error) bool {
	var appErr *AppError
	return stderrors.As(err, &appErr) && appErr != nil && appErr.Code == "E100"
}

// IsRateLimited reports whether err is a throttling rejection (code E120).
func IsRateLimited(err error) bool {
	var appErr *AppError
	return stderrors.As(err, &appErr) && appErr != nil && appErr.Code == "E120"
}

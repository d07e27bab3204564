package backend

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	dErrors "deeptrack/pkg/domain-errors"
)

// ErrorCategory is the normalized failure taxonomy for backend calls.
type ErrorCategory string

const (
	ErrorTimeout        ErrorCategory = "timeout"
	ErrorBadData        ErrorCategory = "bad_data"
	ErrorAuthentication ErrorCategory = "authentication"
	ErrorOutage         ErrorCategory = "outage"
	ErrorNotFound       ErrorCategory = "not_found"
	ErrorRateLimited    ErrorCategory = "rate_limited"
	ErrorRejected       ErrorCategory = "rejected"
	ErrorInternal       ErrorCategory = "internal"
)

// Error wraps a failed backend call.
type Error struct {
	Category   ErrorCategory
	Operation  string
	Status     int
	Message    string
	Underlying error
	Retryable  bool
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("backend %s [%s]", e.Operation, e.Category)
	if e.Status != 0 {
		msg += fmt.Sprintf(" status %d", e.Status)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Underlying != nil {
		msg += ": " + e.Underlying.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Underlying
}

func newError(category ErrorCategory, op string, status int, message string, underlying error) *Error {
	return &Error{
		Category:   category,
		Operation:  op,
		Status:     status,
		Message:    message,
		Underlying: underlying,
		Retryable:  category == ErrorTimeout || category == ErrorOutage || category == ErrorRateLimited,
	}
}

// categoryForStatus classifies a non-2xx status.
func categoryForStatus(status int) ErrorCategory {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return ErrorAuthentication
	case status == http.StatusNotFound:
		return ErrorNotFound
	case status == http.StatusTooManyRequests:
		return ErrorRateLimited
	case status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout:
		return ErrorTimeout
	case status >= 500:
		return ErrorOutage
	case status >= 400:
		return ErrorRejected
	default:
		return ErrorBadData
	}
}

// IsRetryable reports whether err is a backend failure worth retrying manually.
func IsRetryable(err error) bool {
	var be *Error
	if errors.As(err, &be) {
		return be.Retryable
	}
	return false
}

// GetCategory extracts the category, defaulting to internal.
func GetCategory(err error) ErrorCategory {
	var be *Error
	if errors.As(err, &be) {
		return be.Category
	}
	return ErrorInternal
}

// StatusOf returns the HTTP status of a backend failure, or 0.
func StatusOf(err error) int {
	var be *Error
	if errors.As(err, &be) {
		return be.Status
	}
	return 0
}

// ToDomain translates a backend failure into a coded domain error carrying msg.
// Context cancellation by the caller is passed through unchanged.
func ToDomain(err error, msg string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	var be *Error
	if !errors.As(err, &be) {
		return dErrors.Wrap(err, dErrors.CodeInternal, msg)
	}
	switch be.Category {
	case ErrorTimeout:
		return dErrors.Wrap(err, dErrors.CodeTimeout, msg+": the request timed out")
	case ErrorOutage, ErrorRateLimited:
		return dErrors.Wrap(err, dErrors.CodeUnavailable, msg+": service temporarily unavailable")
	case ErrorNotFound:
		return dErrors.Wrap(err, dErrors.CodeNotFound, msg)
	case ErrorAuthentication:
		return dErrors.Wrap(err, dErrors.CodeForbidden, msg)
	case ErrorRejected:
		if be.Message != "" {
			return dErrors.Wrap(err, dErrors.CodeBadRequest, be.Message)
		}
		return dErrors.Wrap(err, dErrors.CodeBadRequest, msg)
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, msg)
	}
}

// Package dependency normalizes failures of external collaborators
// (identity providers, classifier vendors, the content catalog) so callers
// decide on retries and fail-closed handling without inspecting messages.
package dependency

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// Category is the normalized failure taxonomy.
type Category string

const (
	// Timeout: the dependency took too long to respond.
	Timeout Category = "timeout"
	// BadData: the response was malformed or unusable.
	BadData Category = "bad_data"
	// Authentication: credentials were rejected.
	Authentication Category = "authentication"
	// Outage: the dependency is unreachable or returned 5xx.
	Outage Category = "outage"
	// NotFound: the requested record does not exist.
	NotFound Category = "not_found"
	// RateLimited: too many requests.
	RateLimited Category = "rate_limited"
	// CircuitOpen: calls are short-circuited after repeated failures.
	CircuitOpen Category = "circuit_open"
	// Internal: anything else.
	Internal Category = "internal"
)

// Error wraps a dependency failure with its category.
type Error struct {
	Category   Category
	Dependency string
	Message    string
	Underlying error
	// Retryable is derived from Category (timeout, outage, rate-limited).
	Retryable bool
}

func (e *Error) Error() string {
	if e.Underlying != nil {
		return fmt.Sprintf("%s [%s]: %s: %v", e.Dependency, e.Category, e.Message, e.Underlying)
	}
	return fmt.Sprintf("%s [%s]: %s", e.Dependency, e.Category, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Underlying
}

// NewError builds an Error and classifies whether it is worth retrying.
func NewError(category Category, dependency, message string, underlying error) *Error {
	return &Error{
		Category:   category,
		Dependency: dependency,
		Message:    message,
		Underlying: underlying,
		Retryable:  category == Timeout || category == Outage || category == RateLimited,
	}
}

// IsRetryable reports whether err is a transient dependency failure.
func IsRetryable(err error) bool {
	var de *Error
	if errors.As(err, &de) {
		return de.Retryable
	}
	return false
}

// CategoryOf extracts the category, defaulting to Internal.
func CategoryOf(err error) Category {
	var de *Error
	if errors.As(err, &de) {
		return de.Category
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return Timeout
	}
	return Internal
}

// FromTransport classifies an error returned by an HTTP client call.
func FromTransport(ctx context.Context, dependency string, err error) *Error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return NewError(Timeout, dependency, "request timeout", err)
	}
	return NewError(Outage, dependency, "failed to execute request", err)
}

// FromStatus classifies a non-2xx HTTP status. It returns nil for 2xx.
func FromStatus(dependency string, status int) *Error {
	switch {
	case status >= 200 && status < 300:
		return nil
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return NewError(Authentication, dependency, fmt.Sprintf("status %d", status), nil)
	case status == http.StatusNotFound:
		return NewError(NotFound, dependency, "record not found", nil)
	case status == http.StatusTooManyRequests:
		return NewError(RateLimited, dependency, "rate limited", nil)
	case status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout:
		return NewError(Timeout, dependency, fmt.Sprintf("status %d", status), nil)
	case status >= 500:
		return NewError(Outage, dependency, fmt.Sprintf("status %d", status), nil)
	default:
		return NewError(BadData, dependency, fmt.Sprintf("unexpected status %d", status), nil)
	}
}

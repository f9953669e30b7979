package gateway

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"termsheet/internal/domain"
)

// AuthenticationError means the provider has no usable credential. It is never retried.
type AuthenticationError struct {
	Provider string
	Err      error
}

func (e *AuthenticationError) Error() string {
	return fmt.Sprintf("%s authentication failed: %v", e.Provider, e.Err)
}

func (e *AuthenticationError) Unwrap() error {
	return e.Err
}

// NewMissingCredentialError reports a provider configured without a credential.
func NewMissingCredentialError(provider string) *AuthenticationError {
	return &AuthenticationError{Provider: provider, Err: domain.ErrMissingCredential}
}

// TransientError is a provider-side failure that may succeed on retry.
type TransientError struct {
	Provider string
	Err      error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("%s transient error: %v", e.Provider, e.Err)
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// PermanentError is a request the provider rejected and will keep rejecting.
type PermanentError struct {
	Provider string
	Err      error
}

func (e *PermanentError) Error() string {
	return fmt.Sprintf("%s rejected request: %v", e.Provider, e.Err)
}

func (e *PermanentError) Unwrap() error {
	return e.Err
}

// RateLimitError indicates a provider returned HTTP 429.
type RateLimitError struct {
	Err        error
	RetryAfter time.Duration
	Provider   string
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("%s rate limited (retry after %s): %v", e.Provider, e.RetryAfter, e.Err)
}

func (e *RateLimitError) Unwrap() error {
	return e.Err
}

// NewRateLimitError creates a RateLimitError. If retryAfterSecs is 0, defaults to 60s.
func NewRateLimitError(provider string, err error, retryAfterSecs int) *RateLimitError {
	if retryAfterSecs <= 0 {
		retryAfterSecs = 60
	}
	return &RateLimitError{
		Err:        err,
		RetryAfter: time.Duration(retryAfterSecs) * time.Second,
		Provider:   provider,
	}
}

// ParseRetryAfterHeader parses a Retry-After header value into seconds.
// Returns 0 if the value is empty or not a valid integer.
func ParseRetryAfterHeader(val string) int {
	if val == "" {
		return 0
	}
	secs, err := strconv.Atoi(val)
	if err != nil {
		return 0
	}
	return secs
}

// Classify maps an HTTP status from a provider call to the gateway error taxonomy.
func Classify(provider string, status int, retryAfterSecs int, err error) error {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return &AuthenticationError{Provider: provider, Err: err}
	case status == http.StatusTooManyRequests:
		return NewRateLimitError(provider, err, retryAfterSecs)
	case status == http.StatusRequestTimeout || status >= 500 || status == 0:
		return &TransientError{Provider: provider, Err: err}
	case status >= 400:
		return &PermanentError{Provider: provider, Err: err}
	default:
		return &TransientError{Provider: provider, Err: err}
	}
}

// Retryable reports whether another attempt could succeed.
func Retryable(err error) bool {
	var authErr *AuthenticationError
	var permErr *PermanentError
	return !errors.As(err, &authErr) && !errors.As(err, &permErr)
}

// IsAuthentication reports whether err is an AuthenticationError.
func IsAuthentication(err error) bool {
	var authErr *AuthenticationError
	return errors.As(err, &authErr)
}

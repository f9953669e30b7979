package gateway_test

import (
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"termsheet/internal/domain"
	"termsheet/internal/gateway"
)

func TestClassify(t *testing.T) {
	base := errors.New("upstream")
	tests := []struct {
		name      string
		status    int
		retryable bool
		check     func(t *testing.T, err error)
	}{
		{"401 is auth", http.StatusUnauthorized, false, func(t *testing.T, err error) {
			assert.True(t, gateway.IsAuthentication(err))
		}},
		{"403 is auth", http.StatusForbidden, false, func(t *testing.T, err error) {
			assert.True(t, gateway.IsAuthentication(err))
		}},
		{"429 is rate limit", http.StatusTooManyRequests, true, func(t *testing.T, err error) {
			var rl *gateway.RateLimitError
			assert.ErrorAs(t, err, &rl)
			assert.Equal(t, 7*time.Second, rl.RetryAfter)
		}},
		{"500 is transient", http.StatusInternalServerError, true, func(t *testing.T, err error) {
			var te *gateway.TransientError
			assert.ErrorAs(t, err, &te)
		}},
		{"408 is transient", http.StatusRequestTimeout, true, func(t *testing.T, err error) {
			var te *gateway.TransientError
			assert.ErrorAs(t, err, &te)
		}},
		{"no status is transient", 0, true, func(t *testing.T, err error) {
			var te *gateway.TransientError
			assert.ErrorAs(t, err, &te)
		}},
		{"400 is permanent", http.StatusBadRequest, false, func(t *testing.T, err error) {
			var pe *gateway.PermanentError
			assert.ErrorAs(t, err, &pe)
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := gateway.Classify("groq", tt.status, 7, base)
			tt.check(t, err)
			assert.Equal(t, tt.retryable, gateway.Retryable(err))
			assert.ErrorIs(t, err, base)
		})
	}
}

func TestNewRateLimitError_DefaultRetryAfter(t *testing.T) {
	err := gateway.NewRateLimitError("gemini", errors.New("429"), 0)
	assert.Equal(t, 60*time.Second, err.RetryAfter)
	assert.Contains(t, err.Error(), "gemini")
}

func TestParseRetryAfterHeader(t *testing.T) {
	assert.Equal(t, 0, gateway.ParseRetryAfterHeader(""))
	assert.Equal(t, 0, gateway.ParseRetryAfterHeader("soon"))
	assert.Equal(t, 30, gateway.ParseRetryAfterHeader("30"))
}

func TestMissingCredentialError(t *testing.T) {
	err := gateway.NewMissingCredentialError("groq")
	assert.ErrorIs(t, err, domain.ErrMissingCredential)
	assert.False(t, gateway.Retryable(err))
}

func TestRetryable_PlainErrorIsRetryable(t *testing.T) {
	assert.True(t, gateway.Retryable(errors.New("connection reset")))
}

package gateway

import (
	"context"
	"errors"
	"time"

	"termsheet/internal/metrics"
	"termsheet/internal/port"
)

// Instrumented records request counts and latency for a backend.
type Instrumented struct {
	backend port.NamedBackend
}

// NewInstrumented wraps backend with prometheus metrics.
func NewInstrumented(backend port.NamedBackend) *Instrumented {
	return &Instrumented{backend: backend}
}

func (i *Instrumented) Name() string  { return i.backend.Name() }
func (i *Instrumented) Model() string { return i.backend.Model() }

func (i *Instrumented) Send(ctx context.Context, msgs port.Messages, temperature float64) (string, error) {
	start := time.Now()
	out, err := i.backend.Send(ctx, msgs, temperature)
	metrics.RecordGatewayRequest(i.backend.Name(), outcome(err), time.Since(start).Seconds())
	return out, err
}

func outcome(err error) string {
	var (
		authErr *AuthenticationError
		rlErr   *RateLimitError
		permErr *PermanentError
	)
	switch {
	case err == nil:
		return "ok"
	case errors.As(err, &authErr):
		return "auth"
	case errors.As(err, &rlErr):
		return "rate_limited"
	case errors.As(err, &permErr):
		return "rejected"
	default:
		return "transient"
	}
}

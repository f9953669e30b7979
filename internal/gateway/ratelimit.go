package gateway

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"

	"termsheet/internal/port"
)

// RateLimited spaces requests to stay under a provider's requests-per-minute quota.
type RateLimited struct {
	backend port.NamedBackend
	limiter *rate.Limiter
}

// NewRateLimited wraps backend with a limiter of rpm requests per minute.
// rpm <= 0 returns backend unchanged.
func NewRateLimited(backend port.NamedBackend, rpm int) port.NamedBackend {
	if rpm <= 0 {
		return backend
	}
	return &RateLimited{
		backend: backend,
		limiter: rate.NewLimiter(rate.Limit(float64(rpm)/60.0), 1),
	}
}

func (r *RateLimited) Name() string  { return r.backend.Name() }
func (r *RateLimited) Model() string { return r.backend.Model() }

func (r *RateLimited) Send(ctx context.Context, msgs port.Messages, temperature float64) (string, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("waiting for %s rate limiter: %w", r.backend.Name(), err)
	}
	return r.backend.Send(ctx, msgs, temperature)
}

package gateway

import (
	"context"
	"time"

	"go.uber.org/zap"

	"termsheet/internal/logger"
	"termsheet/internal/metrics"
	"termsheet/internal/port"
)

// DefaultMaxRetries is the default number of attempts per request.
const DefaultMaxRetries = 3

// DefaultBaseDelay is the backoff unit; attempt n waits n units.
const DefaultBaseDelay = time.Second

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Retrying retries a backend with linear backoff.
type Retrying struct {
	backend    port.NamedBackend
	maxRetries int
	baseDelay  time.Duration
	sleep      SleepFunc
	logger     *zap.Logger
}

// RetryOption configures Retrying.
type RetryOption func(*Retrying)

// WithBaseDelay sets the backoff unit.
func WithBaseDelay(d time.Duration) RetryOption {
	return func(r *Retrying) { r.baseDelay = d }
}

// WithSleep replaces the backoff sleep.
func WithSleep(fn SleepFunc) RetryOption {
	return func(r *Retrying) { r.sleep = fn }
}

// WithRetryLogger sets the logger.
func WithRetryLogger(l *zap.Logger) RetryOption {
	return func(r *Retrying) { r.logger = logger.OrNop(l) }
}

// NewRetrying wraps backend with up to maxRetries attempts (default 3 when <= 0).
func NewRetrying(backend port.NamedBackend, maxRetries int, opts ...RetryOption) *Retrying {
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}
	r := &Retrying{
		backend:    backend,
		maxRetries: maxRetries,
		baseDelay:  DefaultBaseDelay,
		sleep:      sleepCtx,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Retrying) Name() string  { return r.backend.Name() }
func (r *Retrying) Model() string { return r.backend.Model() }

// Send tries the backend until it succeeds, the error is not retryable, or
// maxRetries attempts have failed. The last error is returned unchanged.
func (r *Retrying) Send(ctx context.Context, msgs port.Messages, temperature float64) (string, error) {
	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		out, err := r.backend.Send(ctx, msgs, temperature)
		if err == nil {
			return out, nil
		}
		if attempt >= r.maxRetries || !Retryable(err) {
			return "", err
		}

		delay := time.Duration(attempt) * r.baseDelay
		r.logger.Warn("gateway.Retrying: attempt failed, backing off",
			zap.String("provider", r.backend.Name()),
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay),
			zap.Error(err))
		metrics.RecordRetry(r.backend.Name())

		if err := r.sleep(ctx, delay); err != nil {
			return "", err
		}
	}
}

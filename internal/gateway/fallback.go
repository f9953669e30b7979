package gateway

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"termsheet/internal/logger"
	"termsheet/internal/port"
)

// circuitState tracks rate-limit backoff for a single backend.
type circuitState struct {
	mu      sync.RWMutex
	resetAt time.Time // zero value = closed (healthy)
}

func (c *circuitState) isOpenWithReset(now time.Time) (time.Time, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.resetAt, !c.resetAt.IsZero() && now.Before(c.resetAt)
}

func (c *circuitState) open(resetAt time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resetAt = resetAt
}

// Fallback tries backends in order, skipping those whose circuit is open
// after a rate limit.
type Fallback struct {
	backends []port.NamedBackend
	circuits []*circuitState
	logger   *zap.Logger
}

// NewFallback creates a Fallback over an ordered list of backends.
func NewFallback(backends []port.NamedBackend, l *zap.Logger) *Fallback {
	circuits := make([]*circuitState, len(backends))
	for i := range circuits {
		circuits[i] = &circuitState{}
	}
	return &Fallback{
		backends: backends,
		circuits: circuits,
		logger:   logger.OrNop(l),
	}
}

// Name joins the provider names in fallback order.
func (f *Fallback) Name() string {
	names := make([]string, len(f.backends))
	for i, b := range f.backends {
		names[i] = b.Name()
	}
	return strings.Join(names, ">")
}

// Model reports the primary backend's model.
func (f *Fallback) Model() string {
	if len(f.backends) == 0 {
		return ""
	}
	return f.backends[0].Model()
}

func (f *Fallback) Send(ctx context.Context, msgs port.Messages, temperature float64) (string, error) {
	now := time.Now()
	var lastErr error
	allRateLimited := true
	var earliestReset time.Time

	for i, b := range f.backends {
		if resetAt, open := f.circuits[i].isOpenWithReset(now); open {
			f.logger.Info("gateway.Fallback: skipping backend with open circuit",
				zap.String("provider", b.Name()),
				zap.Time("reset_at", resetAt))
			if earliestReset.IsZero() || resetAt.Before(earliestReset) {
				earliestReset = resetAt
			}
			continue
		}

		out, err := b.Send(ctx, msgs, temperature)
		if err == nil {
			return out, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}

		f.logger.Warn("gateway.Fallback: backend failed",
			zap.String("provider", b.Name()),
			zap.Error(err))
		lastErr = err

		var rlErr *RateLimitError
		if errors.As(err, &rlErr) {
			resetAt := now.Add(rlErr.RetryAfter)
			f.circuits[i].open(resetAt)
			if earliestReset.IsZero() || resetAt.Before(earliestReset) {
				earliestReset = resetAt
			}
		} else {
			allRateLimited = false
		}
	}

	if lastErr == nil || allRateLimited {
		retryAfter := time.Until(earliestReset)
		if retryAfter < time.Second {
			retryAfter = time.Second
		}
		return "", NewRateLimitError("all", errors.New("all backends rate limited"), int(retryAfter.Seconds()))
	}
	if len(f.backends) == 1 {
		return "", lastErr
	}
	return "", fmt.Errorf("all backends failed: %w", lastErr)
}

package gateway

import (
	"time"

	"go.uber.org/zap"

	"termsheet/internal/config"
	"termsheet/internal/domain"
	"termsheet/internal/port"
)

// Options tune the composed gateway.
type Options struct {
	CacheTTL      time.Duration
	CacheCapacity uint64
	RetryOptions  []RetryOption
	Logger        *zap.Logger
}

// New composes a gateway from the configured provider chain: each provider
// is instrumented, rate limited and retried; multiple providers are chained
// through Fallback; a positive CacheTTL adds a response cache on top.
// Construction fails with a ConfigurationError before any network call.
func New(providers []*config.ProviderConfig, opts Options) (port.NamedBackend, error) {
	if len(providers) == 0 {
		return nil, domain.NewConfigurationError("llm.primary.provider", domain.ErrUnknownProvider)
	}

	retryOpts := append([]RetryOption{WithRetryLogger(opts.Logger)}, opts.RetryOptions...)
	chain := make([]port.NamedBackend, 0, len(providers))
	for _, p := range providers {
		b, err := NewBackend(p)
		if err != nil {
			return nil, domain.NewConfigurationError("llm."+p.Provider, err)
		}
		var wrapped port.NamedBackend = NewInstrumented(b)
		wrapped = NewRateLimited(wrapped, p.RequestsPerMinute)
		wrapped = NewRetrying(wrapped, p.MaxRetries, retryOpts...)
		chain = append(chain, wrapped)
	}

	var gw port.NamedBackend
	if len(chain) == 1 {
		gw = chain[0]
	} else {
		gw = NewFallback(chain, opts.Logger)
	}
	if opts.CacheTTL > 0 {
		gw = NewCached(gw, opts.CacheTTL, opts.CacheCapacity)
	}
	return gw, nil
}

// NewFromConfig composes the gateway described by an LLMConfig.
func NewFromConfig(cfg *config.LLMConfig, l *zap.Logger) (port.NamedBackend, error) {
	return New(cfg.Chain(), Options{
		CacheTTL:      cfg.CacheTTL,
		CacheCapacity: cfg.CacheCapacity,
		Logger:        l,
	})
}

package gateway

import (
	"context"
	"strconv"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/jellydator/ttlcache/v3"
	"golang.org/x/sync/singleflight"

	"termsheet/internal/metrics"
	"termsheet/internal/port"
)

// Cached memoizes successful responses keyed by provider, model, temperature
// and both messages. Concurrent identical requests share one upstream call.
type Cached struct {
	backend port.NamedBackend
	cache   *ttlcache.Cache[string, string]
	group   singleflight.Group
}

// NewCached wraps backend with a TTL cache. capacity 0 means unbounded.
func NewCached(backend port.NamedBackend, ttl time.Duration, capacity uint64) *Cached {
	opts := []ttlcache.Option[string, string]{
		ttlcache.WithTTL[string, string](ttl),
	}
	if capacity > 0 {
		opts = append(opts, ttlcache.WithCapacity[string, string](capacity))
	}
	c := &Cached{
		backend: backend,
		cache:   ttlcache.New(opts...),
	}
	go c.cache.Start()
	return c
}

func (c *Cached) Name() string  { return c.backend.Name() }
func (c *Cached) Model() string { return c.backend.Model() }

// Len returns the number of cached responses.
func (c *Cached) Len() int { return c.cache.Len() }

// Close stops the expiry loop.
func (c *Cached) Close() { c.cache.Stop() }

func (c *Cached) Send(ctx context.Context, msgs port.Messages, temperature float64) (string, error) {
	key := c.key(msgs, temperature)
	if item := c.cache.Get(key); item != nil {
		metrics.RecordCacheHit()
		return item.Value(), nil
	}

	// The shared call outlives any one waiter; the backend's own client
	// timeouts bound it.
	ch := c.group.DoChan(key, func() (any, error) {
		out, err := c.backend.Send(context.WithoutCancel(ctx), msgs, temperature)
		if err != nil {
			return "", err
		}
		c.cache.Set(key, out, ttlcache.DefaultTTL)
		return out, nil
	})
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	}
}

func (c *Cached) key(msgs port.Messages, temperature float64) string {
	h := xxhash.New()
	_, _ = h.WriteString(c.backend.Name())
	_, _ = h.WriteString("|")
	_, _ = h.WriteString(c.backend.Model())
	_, _ = h.WriteString("|")
	_, _ = h.WriteString(strconv.FormatFloat(temperature, 'g', -1, 64))
	_, _ = h.WriteString("|s:")
	_, _ = h.WriteString(msgs.System)
	_, _ = h.WriteString("|u:")
	_, _ = h.WriteString(msgs.User)
	return strconv.FormatUint(h.Sum64(), 16)
}

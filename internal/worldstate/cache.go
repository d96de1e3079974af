package worldstate

import (
	"context"
	"log"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/conscious-bot/reflexcore/internal/telemetry"
)

// singleFlightKey is the only key ever used: the cache holds exactly one
// value, so there is exactly one dedup bucket.
const singleFlightKey = "world-state"

// Fetcher asynchronously samples the external agent's state.
type Fetcher func(ctx context.Context) (*Sample, error)

// Cache is a single-flight, TTL-bounded cache over Fetcher. Construction
// fixes the fetcher and the TTL; Get never blocks more than one in-flight
// fetch per generation.
//
// Fail-closed: any fetcher error is surfaced as a nil Sample and is never
// retained, so the next Get retries from scratch.
type Cache struct {
	fetcher Fetcher
	ttl     time.Duration

	group singleflight.Group

	mu       sync.Mutex
	cached   *Sample
	cachedAt time.Time
}

// NewCache builds a Cache around fetcher with the given TTL.
func NewCache(fetcher Fetcher, ttl time.Duration) *Cache {
	return &Cache{
		fetcher: fetcher,
		ttl:     ttl,
	}
}

// Get returns the cached sample if still fresh, otherwise joins or starts a
// fetch. It returns nil on any fetch failure — callers must treat nil as
// "unavailable, do nothing".
func (c *Cache) Get(ctx context.Context) *Sample {
	c.mu.Lock()
	if c.cached != nil && time.Since(c.cachedAt) < c.ttl {
		s := c.cached
		c.mu.Unlock()
		telemetry.CacheRequests.WithLabelValues("hit").Inc()
		return s
	}
	c.mu.Unlock()

	v, err, shared := c.group.Do(singleFlightKey, func() (interface{}, error) {
		sample, ferr := c.fetcher(ctx)
		if ferr != nil {
			return nil, ferr
		}
		c.mu.Lock()
		c.cached = sample
		c.cachedAt = time.Now()
		c.mu.Unlock()
		return sample, nil
	})

	if err != nil {
		log.Printf("worldstate: fetch failed, returning unavailable: %v", err)
		telemetry.CacheRequests.WithLabelValues("unavailable").Inc()
		return nil
	}

	if shared {
		telemetry.CacheRequests.WithLabelValues("joined").Inc()
	} else {
		telemetry.CacheRequests.WithLabelValues("fetch").Inc()
	}

	sample, _ := v.(*Sample)
	return sample
}

// Invalidate clears the cached value and forgets any in-flight handle, so
// the next Get always performs a fresh fetch.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	c.cached = nil
	c.cachedAt = time.Time{}
	c.mu.Unlock()
	c.group.Forget(singleFlightKey)
}

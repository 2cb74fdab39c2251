package governor

import (
	"context"
	"sync"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"golang.org/x/sync/singleflight"
)

type entry struct {
	value    any
	storedAt time.Time
	ttl      time.Duration
}

// Cache is a keyed TTL cache shared across requests.
// Expired entries are treated as absent on read and are only removed by a later
// write, Delete, Clear or EvictExpired.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]*entry
	now     func() time.Time
	flight  *singleflight.Group
}

// Option configures a Cache
type Option func(*Cache)

// WithClock replaces the time source
func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		c.now = now
	}
}

// WithSingleFlight coalesces concurrent misses on the same key into one producer call.
// Without it every concurrent miss runs its own producer.
func WithSingleFlight() Option {
	return func(c *Cache) {
		c.flight = &singleflight.Group{}
	}
}

// New creates an empty Cache
func New(opts ...Option) *Cache {
	c := &Cache{
		entries: make(map[string]*entry),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns the value stored under key if it was stored less than ttl ago.
func (c *Cache) Get(key string, ttl time.Duration) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if c.now().Sub(e.storedAt) >= ttl {
		return nil, false
	}
	return e.value, true
}

// Set stores value under key. ttl is used by EvictExpired.
func (c *Cache) Set(key string, value any, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = &entry{
		value:    value,
		storedAt: c.now(),
		ttl:      ttl,
	}
}

// Delete removes key
func (c *Cache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// Clear removes every entry
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*entry)
}

// EvictExpired removes entries older than the ttl they were stored with and
// returns how many were removed.
func (c *Cache) EvictExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	evicted := 0
	for key, e := range c.entries {
		if now.Sub(e.storedAt) >= e.ttl {
			delete(c.entries, key)
			evicted++
		}
	}
	return evicted
}

// Len returns the number of stored entries, expired or not
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Cached returns the value memoized under key when it is younger than ttl.
// Otherwise it calls producer, stores a successful result and returns it.
// Errors are returned as-is and never cached.
func Cached[T any](ctx context.Context, c *Cache, key string, ttl time.Duration, producer func(ctx context.Context) (T, error)) (T, error) {
	if v, ok := lookup[T](c, key, ttl); ok {
		return v, nil
	}

	if c.flight == nil {
		v, err := producer(ctx)
		if err != nil {
			var zero T
			return zero, err
		}
		c.Set(key, v, ttl)
		return v, nil
	}

	shared, err, _ := c.flight.Do(key, func() (any, error) {
		if v, ok := lookup[T](c, key, ttl); ok {
			return v, nil
		}
		v, err := producer(ctx)
		if err != nil {
			return nil, err
		}
		c.Set(key, v, ttl)
		return v, nil
	})
	if err != nil {
		var zero T
		return zero, err
	}

	v, ok := shared.(T)
	if !ok {
		var zero T
		return zero, goerr.New("cached value has unexpected type", goerr.V("key", key))
	}
	return v, nil
}

func lookup[T any](c *Cache, key string, ttl time.Duration) (T, bool) {
	raw, ok := c.Get(key, ttl)
	if !ok {
		var zero T
		return zero, false
	}
	v, ok := raw.(T)
	return v, ok
}

package cache

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// Metrics tracks cache performance.
type Metrics struct {
	Hits   int64
	Misses int64
	Sets   int64
}

// ResultCache is a generic TTL cache for pipeline stage outputs. Entries
// expire lazily on read and eagerly via a background cleanup loop.
type ResultCache[T any] struct {
	mu      sync.RWMutex
	items   map[string]entry[T]
	ttl     time.Duration
	name    string
	metrics Metrics
	logger  *zap.Logger
}

type entry[T any] struct {
	value      T
	expiration int64
}

func NewResultCache[T any](ttl time.Duration, name string, logger *zap.Logger) *ResultCache[T] {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &ResultCache[T]{
		items:  make(map[string]entry[T]),
		ttl:    ttl,
		name:   name,
		logger: logger,
	}
	go c.cleanup()
	return c
}

func (c *ResultCache[T]) Set(key string, value T) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items[key] = entry[T]{
		value:      value,
		expiration: time.Now().Add(c.ttl).UnixNano(),
	}
	c.metrics.Sets++
}

func (c *ResultCache[T]) Get(key string) (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	item, found := c.items[key]
	if !found || time.Now().UnixNano() > item.expiration {
		c.metrics.Misses++
		var zero T
		return zero, false
	}

	c.metrics.Hits++
	return item.value, true
}

func (c *ResultCache[T]) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, key)
}

func (c *ResultCache[T]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[string]entry[T])
	c.logger.Info("cache cleared", zap.String("cache", c.name))
}

func (c *ResultCache[T]) GetMetrics() Metrics {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.metrics
}

func (c *ResultCache[T]) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// cleanup runs twice per TTL period.
func (c *ResultCache[T]) cleanup() {
	ticker := time.NewTicker(c.ttl / 2)
	defer ticker.Stop()

	for range ticker.C {
		c.mu.Lock()
		now := time.Now().UnixNano()
		expired := 0
		for key, item := range c.items {
			if now > item.expiration {
				delete(c.items, key)
				expired++
			}
		}
		if expired > 0 {
			c.logger.Debug("cache cleanup",
				zap.String("cache", c.name),
				zap.Int("expired_items", expired),
				zap.Int("remaining_items", len(c.items)))
		}
		c.mu.Unlock()
	}
}

package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// ClientLimiter hands out one token bucket per client key (a principal id
// or remote address).
type ClientLimiter struct {
	limiters map[string]*entry
	mu       sync.RWMutex
	defaults Config
}

type entry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

type Config struct {
	RequestsPerSecond float64
	BurstSize         int
}

func DefaultConfig() Config {
	return Config{
		RequestsPerSecond: 20,
		BurstSize:         40,
	}
}

func New(cfg Config) *ClientLimiter {
	return &ClientLimiter{
		limiters: make(map[string]*entry),
		defaults: cfg,
	}
}

func (c *ClientLimiter) GetLimiter(key string) *rate.Limiter {
	c.mu.RLock()
	e, exists := c.limiters[key]
	c.mu.RUnlock()

	if exists {
		c.touch(e)
		return e.limiter
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if e, exists = c.limiters[key]; exists {
		e.lastSeen = time.Now()
		return e.limiter
	}

	e = &entry{
		limiter:  rate.NewLimiter(rate.Limit(c.defaults.RequestsPerSecond), c.defaults.BurstSize),
		lastSeen: time.Now(),
	}
	c.limiters[key] = e
	return e.limiter
}

func (c *ClientLimiter) touch(e *entry) {
	c.mu.Lock()
	e.lastSeen = time.Now()
	c.mu.Unlock()
}

// SetClientLimit overrides the bucket for one client.
func (c *ClientLimiter) SetClientLimit(key string, rps float64, burst int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.limiters[key] = &entry{limiter: rate.NewLimiter(rate.Limit(rps), burst), lastSeen: time.Now()}
}

// Allow reports whether key may make a request now.
func (c *ClientLimiter) Allow(key string) bool {
	return c.GetLimiter(key).Allow()
}

func (c *ClientLimiter) Wait(ctx context.Context, key string) error {
	return c.GetLimiter(key).Wait(ctx)
}

// Prune drops buckets idle for longer than maxIdle and returns how many
// were removed.
func (c *ClientLimiter) Prune(maxIdle time.Duration) int {
	cutoff := time.Now().Add(-maxIdle)
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for key, e := range c.limiters {
		if e.lastSeen.Before(cutoff) {
			delete(c.limiters, key)
			n++
		}
	}
	return n
}

// Len returns the number of tracked clients.
func (c *ClientLimiter) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.limiters)
}

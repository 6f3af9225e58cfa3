// Package cache provides a replay-dedup store used by webhook handlers.
// Redis backs it when REDIS_ADDR is set; a bounded in-memory map covers
// single-instance deployments without one.
package cache

import (
	"context"
	"sync"
	"time"

	"github.com/pulseboard/pulseboard/internal/clock"
	"github.com/redis/go-redis/v9"
)

// Dedup answers whether a key was seen inside its TTL. Seen is
// first-writer-wins: exactly one caller gets false for a fresh key.
type Dedup interface {
	// Seen records the key and reports whether it already existed.
	Seen(ctx context.Context, key string, ttl time.Duration) (bool, error)
}

type redisDedup struct {
	client *redis.Client
}

func NewRedisDedup(client *redis.Client) Dedup {
	return &redisDedup{client: client}
}

func (d *redisDedup) Seen(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	set, err := d.client.SetNX(ctx, "dedup:"+key, 1, ttl).Result()
	if err != nil {
		return false, err
	}
	return !set, nil
}

const memoryDedupMaxKeys = 100_000

type memoryDedup struct {
	mu      sync.Mutex
	clock   clock.Clock
	expires map[string]time.Time
}

func NewMemoryDedup(clk clock.Clock) Dedup {
	return &memoryDedup{
		clock:   clk,
		expires: make(map[string]time.Time),
	}
}

func (d *memoryDedup) Seen(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.clock.Now()
	if expiry, ok := d.expires[key]; ok && now.Before(expiry) {
		return true, nil
	}

	if len(d.expires) >= memoryDedupMaxKeys {
		d.sweep(now)
	}
	d.expires[key] = now.Add(ttl)
	return false, nil
}

// sweep drops expired entries. Called with the lock held.
func (d *memoryDedup) sweep(now time.Time) {
	for key, expiry := range d.expires {
		if !now.Before(expiry) {
			delete(d.expires, key)
		}
	}
}

// Package idempotency deduplicates retried requests by caller-supplied key.
//
// A Guard claims a key before the work runs and releases it if the work
// fails, so a failed attempt can be retried while a successful one cannot
// be replayed.
package idempotency

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultTTL is how long a claimed key is remembered.
const DefaultTTL = 24 * time.Hour

const keyPrefix = "idempotency:"

// Guard claims request keys.
type Guard interface {
	// Acquire claims key. It returns false if the key was already claimed.
	Acquire(ctx context.Context, key string) (bool, error)
	// Release forgets key so the request can be retried.
	Release(ctx context.Context, key string) error
}

// RedisGuard stores claimed keys in Redis with SETNX and a TTL, so several
// processes sharing one database also share one set of keys.
type RedisGuard struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisGuard wraps client. A non-positive ttl means DefaultTTL.
func NewRedisGuard(client *redis.Client, ttl time.Duration) *RedisGuard {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisGuard{client: client, ttl: ttl}
}

// Acquire claims key with SETNX. It reports false when the key is already
// held and has not expired.
func (g *RedisGuard) Acquire(ctx context.Context, key string) (bool, error) {
	return g.client.SetNX(ctx, keyPrefix+key, 1, g.ttl).Result()
}

// Release deletes key so the request can be retried.
func (g *RedisGuard) Release(ctx context.Context, key string) error {
	return g.client.Del(ctx, keyPrefix+key).Err()
}

// MemoryGuard keeps claimed keys in process memory.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type MemoryGuard struct {
	mu   sync.Mutex
	keys map[string]time.Time
	ttl  time.Duration
	now  func() time.Time
}

// NewMemoryGuard creates an empty guard. A non-positive ttl means DefaultTTL.
func NewMemoryGuard(ttl time.Duration) *MemoryGuard {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MemoryGuard{keys: make(map[string]time.Time), ttl: ttl, now: time.Now}
}

// Acquire claims key until the guard's ttl elapses. It reports false when
// the key is held and unexpired.
func (g *MemoryGuard) Acquire(_ context.Context, key string) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	now := g.now()
	if exp, ok := g.keys[key]; ok && now.Before(exp) {
		return false, nil
	}
	g.keys[key] = now.Add(g.ttl)
	return true, nil
}

// Release forgets key. Releasing an unknown key is a no-op.
func (g *MemoryGuard) Release(_ context.Context, key string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.keys, key)
	return nil
}

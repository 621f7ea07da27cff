// cache.go -- Redis session cache, one instance per track.
//
// Mirrors active session → principal mappings with a short TTL so the
// request hot path skips the Postgres join. The cache is an optimization,
// never a source of truth: every invalidation path (logout, password reset,
// deactivation) deletes entries explicitly rather than waiting for TTL.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/redis/go-redis/v9"
)

// SessionCache caches denormalized principal views under session-id keys.
type SessionCache struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
}

// NewSessionCache returns a cache over the given track namespace
// ("customer" or "staff"). ttl must be well below the session max age.
func NewSessionCache(rdb *redis.Client, track string, ttl time.Duration) *SessionCache {
	return &SessionCache{rdb: rdb, prefix: "lms:sess:" + track + ":", ttl: ttl}
}

func (c *SessionCache) key(sessionID uuid.UUID) string {
	return c.prefix + sessionID.String()
}

// Get retrieves a cached entry. Returns ErrCacheMiss when the key is absent;
// any other error is a Redis infrastructure failure.
func (c *SessionCache) Get(ctx context.Context, sessionID uuid.UUID) (*CachedSession, error) {
	raw, err := c.rdb.Get(ctx, c.key(sessionID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrCacheMiss
		}
		return nil, fmt.Errorf("fetching cached session: %w", err)
	}

	var cached CachedSession
	if err := json.Unmarshal([]byte(raw), &cached); err != nil {
		return nil, fmt.Errorf("parsing cached session: %w", err)
	}
	return &cached, nil
}

// Set writes the principal view under the session id with the configured
// TTL, overwriting any existing entry.
func (c *SessionCache) Set(ctx context.Context, sessionID uuid.UUID, p Principal) error {
	out, err := json.Marshal(CachedSession{
		PrincipalID: p.PrincipalID(),
		Email:       p.PrincipalEmail(),
		CachedAt:    time.Now(),
	})
	if err != nil {
		return fmt.Errorf("marshaling cached session: %w", err)
	}

	if err := c.rdb.Set(ctx, c.key(sessionID), out, c.ttl).Err(); err != nil {
		return fmt.Errorf("caching session: %w", err)
	}
	return nil
}

// Invalidate deletes one entry. A missing key is a no-op.
func (c *SessionCache) Invalidate(ctx context.Context, sessionID uuid.UUID) error {
	if err := c.rdb.Del(ctx, c.key(sessionID)).Err(); err != nil {
		return fmt.Errorf("invalidating cached session: %w", err)
	}
	return nil
}

// InvalidateAllForPrincipal walks the track namespace with cursor-based SCAN
// (never a blocking full-keyspace scan), deletes every entry belonging to
// the principal, and returns how many it removed.
//
// This is O(cached sessions in the track), not O(principal's sessions).
// Acceptable: cache population is bounded by the short TTL and concurrent
// session counts are small. Documented as a scan, not an index lookup.
func (c *SessionCache) InvalidateAllForPrincipal(ctx context.Context, principalID uuid.UUID) (int, error) {
	var deleted int
	var cursor uint64
	for {
		keys, next, err := c.rdb.Scan(ctx, cursor, c.prefix+"*", 100).Result()
		if err != nil {
			return deleted, fmt.Errorf("scanning session cache: %w", err)
		}

		for _, key := range keys {
			raw, err := c.rdb.Get(ctx, key).Result()
			if err != nil {
				if errors.Is(err, redis.Nil) {
					continue // expired between SCAN and GET
				}
				return deleted, fmt.Errorf("reading cached session %s: %w", key, err)
			}
			var cached CachedSession
			if err := json.Unmarshal([]byte(raw), &cached); err != nil {
				continue // unparseable entry; TTL will reap it
			}
			if cached.PrincipalID != principalID {
				continue
			}
			if err := c.rdb.Del(ctx, key).Err(); err != nil {
				return deleted, fmt.Errorf("deleting cached session %s: %w", key, err)
			}
			deleted++
		}

		cursor = next
		if cursor == 0 {
			return deleted, nil
		}
	}
}

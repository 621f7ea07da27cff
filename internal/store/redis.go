// redis.go -- Shared go-redis client setup.
//
// All Redis-backed structs (SessionCache, RateLimiter, PasswordResetStore,
// OAuthStateStore, Locker) share one client and its connection pool.
package store

import (
	"context"

	"github.com/redis/go-redis/v9"
)

// NewRedisClient connects to Redis and verifies connectivity with a ping.
// Call once at startup from main.go; the returned client is safe for
// concurrent use and is shared by every Redis-backed component.
func NewRedisClient(ctx context.Context, redisURL string) (*redis.Client, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}

	rdb := redis.NewClient(opt)

	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, err
	}

	return rdb, nil
}

// ratelimit.go -- Fixed-window counter executed server-side as one Lua script.
//
// A separate GET/SET pair from the application would be a check-then-act
// race: two concurrent requests could both observe count < max and both
// pass. The whole read-compare-increment runs inside Redis instead.
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// checkAndIncrementScript implements the window counter atomically.
// KEYS[1] = counter key
// ARGV[1] = max requests, ARGV[2] = window in milliseconds
//
// The TTL is set only when the counter is first created -- later increments
// never extend the window (fixed window, not a rolling log). When the count
// has reached max the counter is NOT incremented; denied requests must not
// push the reset time or inflate the count.
//
// Returns {allowed(0|1), remaining, pttl_ms}.
var checkAndIncrementScript = redis.NewScript(`
local max = tonumber(ARGV[1])
local count = tonumber(redis.call('GET', KEYS[1]) or '0')
if count >= max then
    return {0, 0, redis.call('PTTL', KEYS[1])}
end
count = redis.call('INCR', KEYS[1])
if count == 1 then
    redis.call('PEXPIRE', KEYS[1], tonumber(ARGV[2]))
end
local remaining = max - count
if remaining < 0 then
    remaining = 0
end
return {1, remaining, redis.call('PTTL', KEYS[1])}
`)

// RateLimiter throttles a keyed action with an atomic fixed-window counter.
//
// failOpen decides what Check reports when Redis is unreachable:
// authentication endpoints construct it fail-closed (deny, so an outage
// doesn't open the door to unbounded brute force); general API throttling
// constructs it fail-open to preserve availability.
type RateLimiter struct {
	rdb      *redis.Client
	failOpen bool
}

// NewRateLimiter returns a limiter over the shared Redis client.
func NewRateLimiter(rdb *redis.Client, failOpen bool) *RateLimiter {
	return &RateLimiter{rdb: rdb, failOpen: failOpen}
}

// Check atomically counts one request against key's window and reports
// whether it is allowed, how much budget remains, and when the window
// resets. On a Redis failure the result follows the limiter's fail policy
// and the error (wrapping ErrRateLimiterUnavailable) is returned for the
// caller to log.
func (l *RateLimiter) Check(ctx context.Context, key string, maxRequests int, window time.Duration) (RateLimitResult, error) {
	vals, err := checkAndIncrementScript.Run(ctx, l.rdb,
		[]string{"lms:rate:" + key},
		maxRequests,
		window.Milliseconds(),
	).Int64Slice()
	if err != nil {
		return RateLimitResult{Allowed: l.failOpen, Remaining: 0, ResetAt: time.Now().Add(window)},
			fmt.Errorf("%w: %v", ErrRateLimiterUnavailable, err)
	}
	if len(vals) != 3 {
		return RateLimitResult{Allowed: l.failOpen},
			fmt.Errorf("%w: unexpected script reply %v", ErrRateLimiterUnavailable, vals)
	}

	pttl := time.Duration(vals[2]) * time.Millisecond
	if pttl < 0 {
		// PTTL returns -1/-2 for keys without expiry; treat as a full window.
		pttl = window
	}

	return RateLimitResult{
		Allowed:   vals[0] == 1,
		Remaining: int(vals[1]),
		ResetAt:   time.Now().Add(pttl),
	}, nil
}

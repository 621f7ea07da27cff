// lock.go -- Distributed lock for the session cleanup job.
//
// SET NX with a TTL and a random owner token. The TTL is the safety net if
// the holder crashes mid-run; release only deletes the key when the owner
// token still matches, so an expired-and-reacquired lock is never released
// by the previous holder.
package store

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the lock key only if this holder still owns it.
var releaseScript = redis.NewScript(`
if redis.call('GET', KEYS[1]) == ARGV[1] then
    return redis.call('DEL', KEYS[1])
end
return 0
`)

// Locker hands out best-effort distributed locks over the shared Redis client.
type Locker struct {
	rdb *redis.Client
}

// NewLocker returns a Locker over the shared Redis client.
func NewLocker(rdb *redis.Client) *Locker {
	return &Locker{rdb: rdb}
}

// Lock is a held lock. Release it when done; the TTL bounds the damage if
// the process dies first.
type Lock struct {
	rdb   *redis.Client
	key   string
	owner string
}

// Acquire attempts to take the named lock for ttl. Returns (nil, nil) when
// another instance already holds it -- callers skip silently in that case.
func (l *Locker) Acquire(ctx context.Context, name string, ttl time.Duration) (*Lock, error) {
	var ownerBytes [16]byte
	if _, err := rand.Read(ownerBytes[:]); err != nil {
		return nil, fmt.Errorf("generating lock owner token: %w", err)
	}
	owner := base64.RawURLEncoding.EncodeToString(ownerBytes[:])

	key := "lms:lock:" + name
	ok, err := l.rdb.SetNX(ctx, key, owner, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquiring lock %s: %w", name, err)
	}
	if !ok {
		return nil, nil
	}
	return &Lock{rdb: l.rdb, key: key, owner: owner}, nil
}

// Release frees the lock if this holder still owns it.
func (lk *Lock) Release(ctx context.Context) error {
	if err := releaseScript.Run(ctx, lk.rdb, []string{lk.key}, lk.owner).Err(); err != nil {
		return fmt.Errorf("releasing lock %s: %w", lk.key, err)
	}
	return nil
}

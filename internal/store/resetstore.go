// resetstore.go -- Redis-held password reset token state.
//
// Tokens are stored under the SHA-256 of the raw token (never the raw value)
// with a TTL; a per-email cooldown marker throttles re-requests. The attempt
// counter is a read-modify-write on the JSON payload, so it runs as one Lua
// script -- two concurrent redemptions with the same token must not lose an
// increment.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// recordFailedAttemptScript increments the attempt counter atomically and
// deletes the record once it reaches the cap.
// KEYS[1] = token key, ARGV[1] = max attempts
// Returns {attempts, deleted(0|1)}; {-1, 0} when the record is gone.
var recordFailedAttemptScript = redis.NewScript(`
local data = redis.call('GET', KEYS[1])
if not data then
    return {-1, 0}
end
local rec = cjson.decode(data)
local attempts = (rec.attempts or 0) + 1
if attempts >= tonumber(ARGV[1]) then
    redis.call('DEL', KEYS[1])
    return {attempts, 1}
end
rec.attempts = attempts
local ttl = redis.call('PTTL', KEYS[1])
if ttl <= 0 then
    redis.call('DEL', KEYS[1])
    return {-1, 0}
end
redis.call('SET', KEYS[1], cjson.encode(rec), 'PX', ttl)
return {attempts, 0}
`)

// PasswordResetStore keeps reset token state and cooldown markers, one
// instance per track.
type PasswordResetStore struct {
	rdb    *redis.Client
	prefix string
}

// NewPasswordResetStore returns a store over the given track namespace.
func NewPasswordResetStore(rdb *redis.Client, track string) *PasswordResetStore {
	return &PasswordResetStore{rdb: rdb, prefix: "lms:pwreset:" + track + ":"}
}

func (s *PasswordResetStore) tokenKey(tokenHash string) string {
	return s.prefix + "token:" + tokenHash
}

func (s *PasswordResetStore) cooldownKey(email string) string {
	return s.prefix + "cooldown:" + strings.ToLower(email)
}

func (s *PasswordResetStore) currentKey(email string) string {
	return s.prefix + "current:" + strings.ToLower(email)
}

// Save stores a fresh token record (attempts=0) under the token hash. At
// most one token is outstanding per email: issuing a new one deletes the
// previous record, so only the newest emailed link redeems.
func (s *PasswordResetStore) Save(ctx context.Context, tokenHash, email string, ttl time.Duration) error {
	out, err := json.Marshal(ResetToken{Email: email, Attempts: 0, CreatedAt: time.Now()})
	if err != nil {
		return fmt.Errorf("marshaling reset token: %w", err)
	}

	old, err := s.rdb.Get(ctx, s.currentKey(email)).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("looking up outstanding reset token: %w", err)
	}

	pipe := s.rdb.TxPipeline()
	if old != "" && old != tokenHash {
		pipe.Del(ctx, s.tokenKey(old))
	}
	pipe.Set(ctx, s.tokenKey(tokenHash), out, ttl)
	pipe.Set(ctx, s.currentKey(email), tokenHash, ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("storing reset token: %w", err)
	}
	return nil
}

// Get fetches the record for a token hash. Returns ErrResetNotFound when
// missing or expired.
func (s *PasswordResetStore) Get(ctx context.Context, tokenHash string) (*ResetToken, error) {
	raw, err := s.rdb.Get(ctx, s.tokenKey(tokenHash)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrResetNotFound
		}
		return nil, fmt.Errorf("fetching reset token: %w", err)
	}

	var tok ResetToken
	if err := json.Unmarshal([]byte(raw), &tok); err != nil {
		return nil, fmt.Errorf("parsing reset token: %w", err)
	}
	return &tok, nil
}

// RecordFailedAttempt bumps the attempt counter atomically. Returns
// ErrResetNotFound when the record is already gone, and
// ErrResetAttemptsExceeded when this failure reached the cap (the record is
// deleted in the same script call).
func (s *PasswordResetStore) RecordFailedAttempt(ctx context.Context, tokenHash string, maxAttempts int) (int, error) {
	vals, err := recordFailedAttemptScript.Run(ctx, s.rdb,
		[]string{s.tokenKey(tokenHash)}, maxAttempts).Int64Slice()
	if err != nil {
		return 0, fmt.Errorf("recording reset attempt: %w", err)
	}
	if len(vals) != 2 {
		return 0, fmt.Errorf("recording reset attempt: unexpected script reply %v", vals)
	}
	if vals[0] < 0 {
		return 0, ErrResetNotFound
	}
	if vals[1] == 1 {
		return int(vals[0]), ErrResetAttemptsExceeded
	}
	return int(vals[0]), nil
}

// Delete removes a token record. A missing key is a no-op.
func (s *PasswordResetStore) Delete(ctx context.Context, tokenHash string) error {
	if err := s.rdb.Del(ctx, s.tokenKey(tokenHash)).Err(); err != nil {
		return fmt.Errorf("deleting reset token: %w", err)
	}
	return nil
}

// CooldownRemaining reports how long until the email may request another
// token; zero means no cooldown is in effect.
func (s *PasswordResetStore) CooldownRemaining(ctx context.Context, email string) (time.Duration, error) {
	ttl, err := s.rdb.PTTL(ctx, s.cooldownKey(email)).Result()
	if err != nil {
		return 0, fmt.Errorf("checking reset cooldown: %w", err)
	}
	if ttl <= 0 {
		// -2 no key, -1 no expiry; neither blocks a request.
		return 0, nil
	}
	return ttl, nil
}

// StartCooldown marks the email as recently served for ttl.
func (s *PasswordResetStore) StartCooldown(ctx context.Context, email string, ttl time.Duration) error {
	if err := s.rdb.Set(ctx, s.cooldownKey(email), "1", ttl).Err(); err != nil {
		return fmt.Errorf("starting reset cooldown: %w", err)
	}
	return nil
}

// ClearCooldown lifts the cooldown early -- called after a completed reset so
// the user isn't blocked from a legitimate follow-up request.
func (s *PasswordResetStore) ClearCooldown(ctx context.Context, email string) error {
	if err := s.rdb.Del(ctx, s.cooldownKey(email)).Err(); err != nil {
		return fmt.Errorf("clearing reset cooldown: %w", err)
	}
	return nil
}

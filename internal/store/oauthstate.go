// oauthstate.go -- Single-use OAuth state records in Redis.
//
// Consume is a single GETDEL, so a replayed callback with the same state
// token observes an absent key no matter how the two requests interleave.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// OAuthStateStore persists PKCE state for the duration of one OAuth round trip.
type OAuthStateStore struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewOAuthStateStore returns a store with the given state TTL
// (10 minutes in production).
func NewOAuthStateStore(rdb *redis.Client, ttl time.Duration) *OAuthStateStore {
	return &OAuthStateStore{rdb: rdb, ttl: ttl}
}

func (s *OAuthStateStore) key(state string) string {
	return "lms:oauth:state:" + state
}

// Save stores the state record under the random state token.
func (s *OAuthStateStore) Save(ctx context.Context, state string, st OAuthState) error {
	payload, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("marshaling oauth state: %w", err)
	}
	if err := s.rdb.Set(ctx, s.key(state), payload, s.ttl).Err(); err != nil {
		return fmt.Errorf("storing oauth state: %w", err)
	}
	return nil
}

// Consume atomically fetches and deletes the state record. Exactly one of
// any number of concurrent callbacks with the same state succeeds; the rest
// get ErrStateNotFound.
func (s *OAuthStateStore) Consume(ctx context.Context, state string) (*OAuthState, error) {
	raw, err := s.rdb.GetDel(ctx, s.key(state)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrStateNotFound
		}
		return nil, fmt.Errorf("consuming oauth state: %w", err)
	}

	var st OAuthState
	if err := json.Unmarshal([]byte(raw), &st); err != nil {
		return nil, fmt.Errorf("parsing oauth state: %w", err)
	}
	return &st, nil
}

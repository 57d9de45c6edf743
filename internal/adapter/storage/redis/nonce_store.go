package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

var errEmptyNonce = errors.New("nonce must not be empty")

// NonceStore remembers webhook nonces for the replay window. Keys are
// namespaced by scope so independent callers never collide.
type NonceStore struct {
	client goredis.UniversalClient
	prefix string
}

func NewNonceStore(client goredis.UniversalClient) *NonceStore {
	return &NonceStore{
		client: client,
		prefix: "fk:nonce:",
	}
}

// CheckAndSet claims nonce within scope for ttl. It reports false when the
// nonce was already claimed and has not expired.
func (s *NonceStore) CheckAndSet(ctx context.Context, scope string, nonce string, ttl time.Duration) (bool, error) {
	if nonce == "" {
		return false, errEmptyNonce
	}
	if ttl <= 0 {
		return false, fmt.Errorf("nonce ttl must be positive, got %s", ttl)
	}

	claimed, err := s.client.SetNX(ctx, s.key(scope, nonce), time.Now().Unix(), ttl).Result()
	if err != nil {
		return false, fmt.Errorf("claim nonce: %w", err)
	}
	return claimed, nil
}

func (s *NonceStore) key(scope, nonce string) string {
	return s.prefix + scope + ":" + nonce
}

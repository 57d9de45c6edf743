package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// SessionCache implements ports.SessionCache using Redis.
type SessionCache struct {
	client goredis.UniversalClient
	prefix string
}

// NewSessionCache creates a new Redis-backed public session cache.
func NewSessionCache(client goredis.UniversalClient) *SessionCache {
	return &SessionCache{
		client: client,
		prefix: "payment_session:",
	}
}

// Get retrieves a cached checkout payload.
// Returns nil, nil if the key does not exist.
func (c *SessionCache) Get(ctx context.Context, sessionID string) ([]byte, error) {
	val, err := c.client.Get(ctx, c.prefix+sessionID).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("redis session cache get: %w", err)
	}
	return val, nil
}

// Set stores a checkout payload with TTL.
func (c *SessionCache) Set(ctx context.Context, sessionID string, value []byte, ttl time.Duration) error {
	if err := c.client.Set(ctx, c.prefix+sessionID, value, ttl).Err(); err != nil {
		return fmt.Errorf("redis session cache set: %w", err)
	}
	return nil
}

package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"flowkora/internal/core/domain"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

// ChallengeStore implements ports.ChallengeStore. Challenges are stored as
// JSON and consumed with GETDEL so each one backs at most one verification.
type ChallengeStore struct {
	client goredis.UniversalClient
	prefix string
}

// NewChallengeStore creates a new Redis-backed wallet challenge store.
func NewChallengeStore(client goredis.UniversalClient) *ChallengeStore {
	return &ChallengeStore{
		client: client,
		prefix: "wallet_challenge:",
	}
}

func (s *ChallengeStore) key(merchantID uuid.UUID, nonce string) string {
	return s.prefix + merchantID.String() + ":" + nonce
}

// Save stores a challenge until ttl elapses.
func (s *ChallengeStore) Save(ctx context.Context, ch *domain.WalletChallenge, ttl time.Duration) error {
	raw, err := json.Marshal(ch)
	if err != nil {
		return fmt.Errorf("marshal challenge: %w", err)
	}
	if err := s.client.Set(ctx, s.key(ch.MerchantID, ch.Nonce), raw, ttl).Err(); err != nil {
		return fmt.Errorf("redis challenge set: %w", err)
	}
	return nil
}

// Consume fetches and deletes a challenge in one step.
// Returns nil, nil if it does not exist.
func (s *ChallengeStore) Consume(ctx context.Context, merchantID uuid.UUID, nonce string) (*domain.WalletChallenge, error) {
	raw, err := s.client.GetDel(ctx, s.key(merchantID, nonce)).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("redis challenge getdel: %w", err)
	}

	var ch domain.WalletChallenge
	if err := json.Unmarshal(raw, &ch); err != nil {
		return nil, fmt.Errorf("unmarshal challenge: %w", err)
	}
	return &ch, nil
}

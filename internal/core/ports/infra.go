package ports

import (
	"context"
	"time"

	"flowkora/internal/core/domain"

	"github.com/google/uuid"
)

// EncryptionService handles AES-256-GCM encryption/decryption.
type EncryptionService interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(ciphertext string) (string, error)
}

// SignatureService handles HMAC-SHA256 signing and verification.
type SignatureService interface {
	Sign(secretKey string, payload string) string
	Verify(secretKey string, payload string, signature string) bool
	BuildCanonicalString(method, path string, timestamp int64, nonce string, body string) string
}

// SessionTokenService validates identity-provider session tokens.
type SessionTokenService interface {
	Validate(tokenString string) (*SessionClaims, error)
	// Issue mints a token for local development and operations tooling.
	Issue(merchantID uuid.UUID) (string, time.Time, error)
}

// SessionClaims holds the parsed session claims.
type SessionClaims struct {
	MerchantID uuid.UUID
	ExpiresAt  time.Time
}

// NonceStore manages nonce uniqueness for replay attack prevention.
type NonceStore interface {
	// CheckAndSet atomically checks if nonce exists, sets it if not.
	// Returns true if nonce is new (valid), false if already used.
	CheckAndSet(ctx context.Context, scope string, nonce string, ttl time.Duration) (bool, error)
}

// ChallengeStore keeps outstanding wallet challenges.
type ChallengeStore interface {
	Save(ctx context.Context, challenge *domain.WalletChallenge, ttl time.Duration) error
	// Consume atomically fetches and deletes a challenge. Returns (nil, nil)
	// when it is unknown, expired or already used.
	Consume(ctx context.Context, merchantID uuid.UUID, nonce string) (*domain.WalletChallenge, error)
}

// SessionCache is a read-through cache of public checkout payloads.
type SessionCache interface {
	Get(ctx context.Context, sessionID string) ([]byte, error) // nil on miss
	Set(ctx context.Context, sessionID string, value []byte, ttl time.Duration) error
}

// RateLimitStore counts requests in fixed windows.
type RateLimitStore interface {
	Allow(ctx context.Context, key string, limit int64, window time.Duration) (*RateLimitResult, error)
}

// RateLimitResult holds the outcome of a rate limit check.
type RateLimitResult struct {
	Allowed   bool
	Limit     int64
	Remaining int64
	ResetAt   int64 // Unix timestamp
}

// WalletSignatureVerifier recovers the signer of a personal-sign message.
type WalletSignatureVerifier interface {
	RecoverAddress(message string, signature string) (string, error)
}

// ChainVerifier confirms that a reported transfer actually settled.
type ChainVerifier interface {
	VerifyTransfer(ctx context.Context, txn *domain.Transaction, txHash string) error
}

package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"flowkora/internal/core/domain"
	"flowkora/internal/core/ports"
	"flowkora/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const apiKeyRandomBytes = 24

// APIKeyServiceImpl implements ports.APIKeyService.
type APIKeyServiceImpl struct {
	repo ports.APIKeyRepository
	now  func() time.Time
	log  zerolog.Logger
}

// NewAPIKeyService creates a new APIKeyServiceImpl.
func NewAPIKeyService(repo ports.APIKeyRepository, log zerolog.Logger) *APIKeyServiceImpl {
	return &APIKeyServiceImpl{
		repo: repo,
		now:  func() time.Time { return time.Now().UTC() },
		log:  log,
	}
}

// Issue generates a new key. The plaintext is only available in the result.
func (s *APIKeyServiceImpl) Issue(ctx context.Context, merchantID uuid.UUID, req ports.IssueAPIKeyRequest) (*ports.IssuedAPIKey, error) {
	now := s.now()
	if req.ExpiresAt != nil && !req.ExpiresAt.After(now) {
		return nil, apperror.Validation("expiresAt must be in the future")
	}

	plaintext, err := generateKey(domain.APIKeyPrefix, apiKeyRandomBytes)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("generate api key: %w", err))
	}

	key := domain.APIKey{
		ID:         uuid.New(),
		MerchantID: merchantID,
		Name:       normalizeName(req.Name),
		KeyPrefix:  plaintext[:domain.APIKeyDisplayPrefixLen],
		KeyHash:    hashAPIKey(plaintext),
		Status:     domain.APIKeyStatusActive,
		CreatedAt:  now,
		ExpiresAt:  req.ExpiresAt,
	}
	if err := s.repo.Create(ctx, &key); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("create api key: %w", err))
	}

	s.log.Info().
		Str("merchant_id", merchantID.String()).
		Str("key_id", key.ID.String()).
		Str("key_prefix", key.KeyPrefix).
		Msg("api key issued")

	return &ports.IssuedAPIKey{Key: key, Plaintext: plaintext}, nil
}

// List returns the merchant's keys, newest first.
func (s *APIKeyServiceImpl) List(ctx context.Context, merchantID uuid.UUID) ([]domain.APIKey, error) {
	keys, err := s.repo.ListByMerchant(ctx, merchantID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("list api keys: %w", err))
	}
	return keys, nil
}

// Update renames a key or revokes it. Revoked keys stay revoked.
func (s *APIKeyServiceImpl) Update(ctx context.Context, merchantID, keyID uuid.UUID, req ports.UpdateAPIKeyRequest) (*domain.APIKey, error) {
	key, err := s.repo.GetByID(ctx, merchantID, keyID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get api key: %w", err))
	}
	if key == nil {
		return nil, apperror.ErrNotFound("api key")
	}

	if req.Status != nil {
		if err := key.CheckStatusChange(*req.Status); err != nil {
			return nil, apperror.Validation(err.Error())
		}
		key.Status = *req.Status
	}
	if req.Name != nil {
		key.Name = normalizeName(req.Name)
	}

	ok, err := s.repo.Update(ctx, key)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("update api key: %w", err))
	}
	if !ok {
		return nil, apperror.ErrNotFound("api key")
	}
	return key, nil
}

// Revoke disables a key. Revoking a revoked key succeeds.
func (s *APIKeyServiceImpl) Revoke(ctx context.Context, merchantID, keyID uuid.UUID) error {
	ok, err := s.repo.Revoke(ctx, merchantID, keyID)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("revoke api key: %w", err))
	}
	if !ok {
		return apperror.ErrNotFound("api key")
	}

	s.log.Info().
		Str("merchant_id", merchantID.String()).
		Str("key_id", keyID.String()).
		Msg("api key revoked")
	return nil
}

// Authenticate resolves a presented key to its active record.
func (s *APIKeyServiceImpl) Authenticate(ctx context.Context, plaintextKey string) (*domain.APIKey, error) {
	if !strings.HasPrefix(plaintextKey, domain.APIKeyPrefix) {
		return nil, apperror.ErrUnauthorized()
	}

	key, err := s.repo.GetByHash(ctx, hashAPIKey(plaintextKey))
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("lookup api key: %w", err))
	}
	now := s.now()
	if key == nil || !key.IsUsable(now) {
		return nil, apperror.ErrUnauthorized()
	}

	if err := s.repo.TouchLastUsed(ctx, key.ID, now); err != nil {
		s.log.Warn().Err(err).Str("key_id", key.ID.String()).Msg("failed to record api key usage")
	} else {
		key.LastUsedAt = &now
	}
	return key, nil
}

// hashAPIKey returns the lowercase hex SHA-256 of the full key.
func hashAPIKey(plaintext string) string {
	sum := sha256.Sum256([]byte(plaintext))
	return hex.EncodeToString(sum[:])
}

func generateKey(prefix string, length int) (string, error) {
	b := make([]byte, length)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return prefix + hex.EncodeToString(b), nil
}

// normalizeName trims a key name; blank names are stored as NULL.
func normalizeName(name *string) *string {
	if name == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*name)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

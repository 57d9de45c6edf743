package service

import (
	"context"
	"fmt"

	"flowkora/internal/core/domain"
	"flowkora/internal/core/ports"
	"flowkora/pkg/apperror"

	"github.com/rs/zerolog"
)

type identityService struct {
	tokens       ports.SessionTokenService
	merchantRepo ports.MerchantRepository
	apiKeys      ports.APIKeyService
	log          zerolog.Logger
}

// NewIdentityService creates the identity gate used by the auth middleware.
func NewIdentityService(
	tokens ports.SessionTokenService,
	merchantRepo ports.MerchantRepository,
	apiKeys ports.APIKeyService,
	log zerolog.Logger,
) ports.IdentityService {
	return &identityService{
		tokens:       tokens,
		merchantRepo: merchantRepo,
		apiKeys:      apiKeys,
		log:          log,
	}
}

// AuthenticateSession validates a session token and makes sure the merchant
// row exists before any merchant-scoped operation runs.
func (s *identityService) AuthenticateSession(ctx context.Context, token string) (*domain.Principal, error) {
	if token == "" {
		return nil, apperror.ErrUnauthorized()
	}

	claims, err := s.tokens.Validate(token)
	if err != nil {
		s.log.Debug().Err(err).Msg("session token rejected")
		return nil, apperror.ErrUnauthorized()
	}

	if err := s.merchantRepo.EnsureExists(ctx, claims.MerchantID); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("ensure merchant: %w", err))
	}

	return &domain.Principal{
		MerchantID: claims.MerchantID,
		Kind:       domain.CredentialSession,
	}, nil
}

// AuthenticateAPIKey resolves an integration key to its merchant.
func (s *identityService) AuthenticateAPIKey(ctx context.Context, plaintextKey string) (*domain.Principal, error) {
	key, err := s.apiKeys.Authenticate(ctx, plaintextKey)
	if err != nil {
		return nil, err
	}

	keyID := key.ID
	return &domain.Principal{
		MerchantID: key.MerchantID,
		Kind:       domain.CredentialAPIKey,
		APIKeyID:   &keyID,
	}, nil
}

package service

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"flowkora/internal/core/domain"
	"flowkora/internal/core/ports"
	"flowkora/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const webhookSecretPrefix = "whsec_"

type merchantService struct {
	merchantRepo ports.MerchantRepository
	encSvc       ports.EncryptionService
	log          zerolog.Logger
}

// NewMerchantService creates a new merchant profile service.
func NewMerchantService(
	merchantRepo ports.MerchantRepository,
	encSvc ports.EncryptionService,
	log zerolog.Logger,
) ports.MerchantService {
	return &merchantService{
		merchantRepo: merchantRepo,
		encSvc:       encSvc,
		log:          log,
	}
}

func (s *merchantService) GetProfile(ctx context.Context, merchantID uuid.UUID) (*ports.MerchantProfile, error) {
	merchant, err := s.merchantRepo.GetByID(ctx, merchantID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get merchant: %w", err))
	}
	if merchant == nil {
		return nil, apperror.ErrNotFound("merchant")
	}
	return ports.NewMerchantProfile(merchant), nil
}

// UpdateProfile applies a partial update. Setting a different payout address
// clears its verified flag; the repository does that atomically.
func (s *merchantService) UpdateProfile(ctx context.Context, merchantID uuid.UUID, upd ports.ProfileUpdate) (*ports.MerchantProfile, error) {
	if upd.IsEmpty() {
		return s.GetProfile(ctx, merchantID)
	}

	if upd.PayoutWalletAddress != nil && *upd.PayoutWalletAddress != "" {
		if !domain.IsValidWalletAddress(*upd.PayoutWalletAddress) {
			return nil, apperror.Validation("invalid payout wallet address").
				WithDetails(map[string]string{"payout_wallet_address": "must be a 0x-prefixed 20-byte hex address"})
		}
		normalized := domain.NormalizeWalletAddress(*upd.PayoutWalletAddress)
		upd.PayoutWalletAddress = &normalized
	}
	if upd.WebhookURL != nil && *upd.WebhookURL != "" {
		if !isAbsoluteURL(*upd.WebhookURL, "https") {
			return nil, apperror.Validation("invalid webhook url").
				WithDetails(map[string]string{"webhook_url": "must be an absolute https URL"})
		}
	}

	merchant, err := s.merchantRepo.UpdateProfile(ctx, merchantID, upd)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("update profile: %w", err))
	}
	if merchant == nil {
		return nil, apperror.ErrNotFound("merchant")
	}

	s.log.Info().
		Str("merchant_id", merchantID.String()).
		Bool("payout_wallet_changed", upd.PayoutWalletAddress != nil).
		Bool("webhook_url_changed", upd.WebhookURL != nil).
		Msg("merchant profile updated")

	return ports.NewMerchantProfile(merchant), nil
}

// RotateWebhookSecret replaces the notification signing secret and returns
// the new plaintext. It is never readable again.
func (s *merchantService) RotateWebhookSecret(ctx context.Context, merchantID uuid.UUID) (string, error) {
	merchant, err := s.merchantRepo.GetByID(ctx, merchantID)
	if err != nil {
		return "", apperror.InternalError(fmt.Errorf("get merchant: %w", err))
	}
	if merchant == nil {
		return "", apperror.ErrNotFound("merchant")
	}

	secret, err := generateKey(webhookSecretPrefix, 32)
	if err != nil {
		return "", apperror.InternalError(fmt.Errorf("generate webhook secret: %w", err))
	}
	enc, err := s.encSvc.Encrypt(secret)
	if err != nil {
		return "", apperror.ErrEncryptionFailure(fmt.Errorf("encrypt webhook secret: %w", err))
	}
	if err := s.merchantRepo.UpdateWebhookSecret(ctx, merchantID, enc); err != nil {
		return "", apperror.InternalError(fmt.Errorf("store webhook secret: %w", err))
	}

	s.log.Info().Str("merchant_id", merchantID.String()).Msg("webhook secret rotated")
	return secret, nil
}

// isAbsoluteURL reports whether raw parses as an absolute URL with a host
// and one of the given schemes.
func isAbsoluteURL(raw string, schemes ...string) bool {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return false
	}
	for _, scheme := range schemes {
		if strings.EqualFold(u.Scheme, scheme) {
			return true
		}
	}
	return false
}

package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"flowkora/internal/core/domain"
	"flowkora/internal/core/ports"
	"flowkora/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const challengeNonceBytes = 16

// WalletConfig holds the challenge settings.
type WalletConfig struct {
	Statement    string
	ChallengeTTL time.Duration
}

type walletService struct {
	merchantRepo ports.MerchantRepository
	challenges   ports.ChallengeStore
	verifier     ports.WalletSignatureVerifier
	cfg          WalletConfig
	now          func() time.Time
	log          zerolog.Logger
}

// NewWalletService creates the payout wallet ownership verifier.
func NewWalletService(
	merchantRepo ports.MerchantRepository,
	challenges ports.ChallengeStore,
	verifier ports.WalletSignatureVerifier,
	cfg WalletConfig,
	log zerolog.Logger,
) ports.WalletService {
	return &walletService{
		merchantRepo: merchantRepo,
		challenges:   challenges,
		verifier:     verifier,
		cfg:          cfg,
		now:          func() time.Time { return time.Now().UTC() },
		log:          log,
	}
}

// IssueChallenge creates a single-use message for address to sign.
func (s *walletService) IssueChallenge(ctx context.Context, merchantID uuid.UUID, address string) (*domain.WalletChallenge, error) {
	if !domain.IsValidWalletAddress(address) {
		return nil, apperror.Validation("invalid wallet address")
	}

	raw := make([]byte, challengeNonceBytes)
	if _, err := rand.Read(raw); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("generate nonce: %w", err))
	}
	nonce := hex.EncodeToString(raw)

	issuedAt := s.now().Truncate(time.Second)
	expiresAt := issuedAt.Add(s.cfg.ChallengeTTL)
	challenge := &domain.WalletChallenge{
		MerchantID: merchantID,
		Nonce:      nonce,
		Address:    domain.NormalizeWalletAddress(address),
		Message:    domain.BuildChallengeMessage(s.cfg.Statement, address, nonce, issuedAt, expiresAt),
		IssuedAt:   issuedAt,
		ExpiresAt:  expiresAt,
	}

	if err := s.challenges.Save(ctx, challenge, s.cfg.ChallengeTTL); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("save challenge: %w", err))
	}

	s.log.Info().
		Str("merchant_id", merchantID.String()).
		Str("address", challenge.Address).
		Time("expires_at", expiresAt).
		Msg("wallet challenge issued")

	return challenge, nil
}

// VerifyOwnership consumes the challenge, recovers the signer and, on a
// match, stores the address as the verified payout wallet.
func (s *walletService) VerifyOwnership(ctx context.Context, req ports.VerifyWalletRequest) (*ports.MerchantProfile, error) {
	if !domain.IsValidWalletAddress(req.WalletAddress) {
		return nil, apperror.Validation("invalid wallet address")
	}
	if req.Nonce == "" {
		return nil, apperror.ErrInvalidChallenge()
	}

	// Consumed before any check, so a failed attempt burns the challenge.
	challenge, err := s.challenges.Consume(ctx, req.MerchantID, req.Nonce)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("consume challenge: %w", err))
	}
	if challenge == nil || !s.now().Before(challenge.ExpiresAt) {
		return nil, apperror.ErrInvalidChallenge()
	}
	if challenge.Message != req.OriginalMessage || !domain.SameWalletAddress(challenge.Address, req.WalletAddress) {
		return nil, apperror.ErrInvalidChallenge()
	}

	signer, err := s.verifier.RecoverAddress(req.OriginalMessage, req.SignedMessage)
	if err != nil {
		s.log.Debug().Err(err).Str("merchant_id", req.MerchantID.String()).Msg("wallet signature rejected")
		return nil, apperror.ErrInvalidWalletSignature()
	}
	if !domain.SameWalletAddress(signer, req.WalletAddress) {
		return nil, apperror.ErrInvalidWalletSignature()
	}

	merchant, err := s.merchantRepo.SetVerifiedPayoutWallet(ctx, req.MerchantID, domain.NormalizeWalletAddress(req.WalletAddress))
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("store verified wallet: %w", err))
	}
	if merchant == nil {
		return nil, apperror.ErrNotFound("merchant")
	}

	s.log.Info().
		Str("merchant_id", req.MerchantID.String()).
		Str("address", *merchant.PayoutWalletAddress).
		Msg("payout wallet verified")

	return ports.NewMerchantProfile(merchant), nil
}

package handler

import (
	"time"

	"flowkora/internal/adapter/http/dto"
	"flowkora/internal/core/ports"
	"flowkora/pkg/response"

	"github.com/gin-gonic/gin"
)

// WalletHandler handles payout wallet ownership proofs.
type WalletHandler struct {
	walletSvc ports.WalletService
}

// NewWalletHandler creates a new WalletHandler.
func NewWalletHandler(walletSvc ports.WalletService) *WalletHandler {
	return &WalletHandler{walletSvc: walletSvc}
}

// IssueChallenge handles POST /api/merchant/verify-payout-wallet/challenge.
func (h *WalletHandler) IssueChallenge(c *gin.Context) {
	merchantID, ok := requireMerchant(c)
	if !ok {
		return
	}

	var req dto.WalletChallengeRequest
	if !bindJSON(c, &req) {
		return
	}

	challenge, err := h.walletSvc.IssueChallenge(c.Request.Context(), merchantID, req.WalletAddress)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.WalletChallengeResponse{
		Nonce:     challenge.Nonce,
		Message:   challenge.Message,
		ExpiresAt: challenge.ExpiresAt.UTC().Format(time.RFC3339),
	})
}

// Verify handles POST /api/merchant/verify-payout-wallet.
func (h *WalletHandler) Verify(c *gin.Context) {
	merchantID, ok := requireMerchant(c)
	if !ok {
		return
	}

	var req dto.VerifyWalletRequest
	if !bindJSON(c, &req) {
		return
	}

	profile, err := h.walletSvc.VerifyOwnership(c.Request.Context(), ports.VerifyWalletRequest{
		MerchantID:      merchantID,
		WalletAddress:   req.WalletAddress,
		SignedMessage:   req.SignedMessage,
		OriginalMessage: req.OriginalMessage,
		Nonce:           req.Nonce,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, profile)
}

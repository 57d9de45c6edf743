package handler

import (
	"flowkora/internal/adapter/http/dto"
	"flowkora/internal/core/ports"
	"flowkora/pkg/response"

	"github.com/gin-gonic/gin"
)

// MerchantHandler handles merchant self-service endpoints.
type MerchantHandler struct {
	merchantSvc ports.MerchantService
}

// NewMerchantHandler creates a new merchant handler.
func NewMerchantHandler(merchantSvc ports.MerchantService) *MerchantHandler {
	return &MerchantHandler{merchantSvc: merchantSvc}
}

// GetProfile returns the authenticated merchant's profile.
func (h *MerchantHandler) GetProfile(c *gin.Context) {
	merchantID, ok := requireMerchant(c)
	if !ok {
		return
	}

	profile, err := h.merchantSvc.GetProfile(c.Request.Context(), merchantID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, profile)
}

// UpdateProfile applies a partial update of payout wallet and webhook URL.
// Unknown fields are rejected.
func (h *MerchantHandler) UpdateProfile(c *gin.Context) {
	merchantID, ok := requireMerchant(c)
	if !ok {
		return
	}

	var req dto.UpdateProfileRequest
	if !bindStrictJSON(c, &req) {
		return
	}

	profile, err := h.merchantSvc.UpdateProfile(c.Request.Context(), merchantID, req.ToUpdate())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, profile)
}

// RotateWebhookSecret issues a new notification signing secret. The
// plaintext is returned once.
func (h *MerchantHandler) RotateWebhookSecret(c *gin.Context) {
	merchantID, ok := requireMerchant(c)
	if !ok {
		return
	}

	secret, err := h.merchantSvc.RotateWebhookSecret(c.Request.Context(), merchantID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.WebhookSecretResponse{WebhookSecret: secret})
}

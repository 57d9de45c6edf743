package handler

import (
	"flowkora/internal/adapter/http/dto"
	"flowkora/internal/adapter/http/middleware"
	"flowkora/internal/core/domain"
	"flowkora/internal/core/ports"
	"flowkora/pkg/apperror"
	"flowkora/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// APIKeyHandler handles merchant API key management.
type APIKeyHandler struct {
	apiKeySvc ports.APIKeyService
}

// NewAPIKeyHandler creates a new APIKeyHandler.
func NewAPIKeyHandler(apiKeySvc ports.APIKeyService) *APIKeyHandler {
	return &APIKeyHandler{apiKeySvc: apiKeySvc}
}

// List handles GET /api/merchant/api-keys.
func (h *APIKeyHandler) List(c *gin.Context) {
	merchantID, ok := requireMerchant(c)
	if !ok {
		return
	}

	keys, err := h.apiKeySvc.List(c.Request.Context(), merchantID)
	if err != nil {
		response.Error(c, err)
		return
	}

	items := make([]dto.APIKeyResponse, 0, len(keys))
	for i := range keys {
		items = append(items, dto.NewAPIKeyResponse(&keys[i]))
	}
	response.OK(c, dto.APIKeyListResponse{Items: items})
}

// Issue handles POST /api/merchant/api-keys. The plaintext key appears in
// this response only.
func (h *APIKeyHandler) Issue(c *gin.Context) {
	merchantID, ok := requireMerchant(c)
	if !ok {
		return
	}

	var req dto.IssueAPIKeyRequest
	if !bindOptionalJSON(c, &req) {
		return
	}
	dto.SanitizeStruct(&req)

	issued, err := h.apiKeySvc.Issue(c.Request.Context(), merchantID, ports.IssueAPIKeyRequest{
		Name:      req.Name,
		ExpiresAt: req.ExpiresAt,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	c.Set(middleware.CtxAuditResourceID, issued.Key.ID.String())
	response.Created(c, dto.IssuedAPIKeyResponse{
		APIKeyResponse: dto.NewAPIKeyResponse(&issued.Key),
		FullAPIKey:     issued.Plaintext,
	})
}

// Update handles PUT /api/merchant/api-keys/:id.
func (h *APIKeyHandler) Update(c *gin.Context) {
	merchantID, ok := requireMerchant(c)
	if !ok {
		return
	}
	keyID, ok := parseKeyID(c)
	if !ok {
		return
	}

	var req dto.UpdateAPIKeyRequest
	if !bindJSON(c, &req) {
		return
	}
	dto.SanitizeStruct(&req)

	upd := ports.UpdateAPIKeyRequest{Name: req.Name}
	if req.Status != nil {
		status := domain.APIKeyStatus(*req.Status)
		upd.Status = &status
	}

	key, err := h.apiKeySvc.Update(c.Request.Context(), merchantID, keyID, upd)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.NewAPIKeyResponse(key))
}

// Revoke handles DELETE /api/merchant/api-keys/:id.
func (h *APIKeyHandler) Revoke(c *gin.Context) {
	merchantID, ok := requireMerchant(c)
	if !ok {
		return
	}
	keyID, ok := parseKeyID(c)
	if !ok {
		return
	}

	if err := h.apiKeySvc.Revoke(c.Request.Context(), merchantID, keyID); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// parseKeyID treats a malformed id as an unknown key.
func parseKeyID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, apperror.ErrNotFound("API key"))
		return uuid.Nil, false
	}
	return id, true
}

package middleware

import (
	"encoding/json"
	"net/http"
	"time"

	"flowkora/internal/core/domain"
	"flowkora/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// AuditLog creates an audit middleware that logs successful write operations.
// It maps the matched route template and method to an audit action.
func AuditLog(auditSvc ports.AuditService) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		// Only audit successful write operations (status 2xx)
		if c.Writer.Status() < 200 || c.Writer.Status() >= 300 {
			return
		}
		switch c.Request.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			return
		}

		action, resourceType := mapPathToAction(c.FullPath(), c.Request.Method)
		if action == "" {
			return
		}

		var merchantID *uuid.UUID
		if id, ok := MerchantID(c); ok {
			merchantID = &id
		}

		resourceID := c.Param("id")
		if v, exists := c.Get(CtxAuditResourceID); exists {
			if s, ok := v.(string); ok {
				resourceID = s
			}
		}

		details, _ := json.Marshal(map[string]interface{}{
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"status":     c.Writer.Status(),
			"request_id": c.GetString(CtxRequestID),
		})

		auditSvc.Log(c.Request.Context(), &domain.AuditLog{
			ID:           uuid.New(),
			MerchantID:   merchantID,
			Action:       action,
			ResourceType: resourceType,
			ResourceID:   resourceID,
			IPAddress:    c.ClientIP(),
			Details:      string(details),
			CreatedAt:    time.Now(),
		})
	}
}

func mapPathToAction(route, method string) (domain.AuditAction, string) {
	switch {
	case route == "/api/merchant/api-keys" && method == http.MethodPost:
		return domain.AuditActionIssueAPIKey, "api_key"
	case route == "/api/merchant/api-keys/:id" && method == http.MethodPut:
		return domain.AuditActionUpdateAPIKey, "api_key"
	case route == "/api/merchant/api-keys/:id" && method == http.MethodDelete:
		return domain.AuditActionRevokeAPIKey, "api_key"
	case route == "/api/merchant/profile" && method == http.MethodPut:
		return domain.AuditActionUpdateProfile, "merchant"
	case route == "/api/merchant/webhook-secret" && method == http.MethodPost:
		return domain.AuditActionRotateWebhookSecret, "merchant"
	case route == "/api/merchant/verify-payout-wallet/challenge" && method == http.MethodPost:
		return domain.AuditActionWalletChallenge, "merchant"
	case route == "/api/merchant/verify-payout-wallet" && method == http.MethodPost:
		return domain.AuditActionVerifyWallet, "merchant"
	case route == "/api/merchant/create-payment-session" && method == http.MethodPost:
		return domain.AuditActionCreateSession, "transaction"
	case route == "/api/webhook/payment-status" && method == http.MethodPost:
		return domain.AuditActionReconcile, "transaction"
	}
	return "", ""
}

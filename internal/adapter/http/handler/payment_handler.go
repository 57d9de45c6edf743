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
	"github.com/shopspring/decimal"
)

// PaymentHandler handles payment session endpoints.
type PaymentHandler struct {
	sessionSvc ports.PaymentSessionService
}

// NewPaymentHandler creates a new PaymentHandler.
func NewPaymentHandler(sessionSvc ports.PaymentSessionService) *PaymentHandler {
	return &PaymentHandler{sessionSvc: sessionSvc}
}

// CreateSession handles POST /api/merchant/create-payment-session.
func (h *PaymentHandler) CreateSession(c *gin.Context) {
	merchantID, ok := requireMerchant(c)
	if !ok {
		return
	}

	var req dto.CreatePaymentSessionRequest
	if !bindJSON(c, &req) {
		return
	}

	amount, err := decimal.NewFromString(req.Amount.String())
	if err != nil {
		response.Error(c, apperror.Validation("Invalid request").WithDetails(map[string]string{
			"amount": "must be a positive decimal with at most 18 fractional digits",
		}))
		return
	}

	var email *string
	if req.CustomerEmail != "" {
		email = &req.CustomerEmail
	}

	result, err := h.sessionSvc.Create(c.Request.Context(), ports.CreateSessionRequest{
		MerchantID:    merchantID,
		OrderID:       req.OrderID,
		Amount:        amount,
		Currency:      domain.Currency(req.Currency),
		CustomerEmail: email,
		CallbackURL:   req.CallbackURL,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	c.Set(middleware.CtxAuditResourceID, result.PaymentSessionID.String())
	response.Created(c, result)
}

// GetPublicSession handles GET /api/payment-session/:id. No authentication;
// only checkout fields are returned.
func (h *PaymentHandler) GetPublicSession(c *gin.Context) {
	session, err := h.sessionSvc.FetchPublic(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Cache-Control", "no-store")
	response.OK(c, session)
}

// PaymentStatusWebhook handles POST /api/webhook/payment-status. The
// signature has already been verified by middleware.WebhookAuth.
func (h *PaymentHandler) PaymentStatusWebhook(c *gin.Context) {
	var req dto.PaymentStatusWebhookRequest
	if !bindJSON(c, &req) {
		return
	}

	rawID, ok := req.SessionID()
	if !ok {
		msg := "is required"
		if rawID != "" {
			msg = "must match orderId when both are sent"
		}
		response.Error(c, apperror.Validation("Invalid request").WithDetails(map[string]string{
			"paymentSessionId": msg,
		}))
		return
	}
	sessionID, err := uuid.Parse(rawID)
	if err != nil {
		response.Error(c, apperror.Validation("Invalid request").WithDetails(map[string]string{
			"paymentSessionId": "must be a UUID",
		}))
		return
	}

	result, err := h.sessionSvc.Reconcile(c.Request.Context(), ports.ReconcileRequest{
		SessionID: sessionID,
		TxHash:    req.TxHash,
		Status:    domain.TransactionStatus(req.Status),
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	c.Set(middleware.CtxAuditResourceID, result.PaymentSessionID.String())
	response.OK(c, result)
}

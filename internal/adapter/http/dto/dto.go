package dto

import (
	"encoding/json"
	"time"

	"flowkora/internal/core/domain"
	"flowkora/internal/core/ports"
)

// IssueAPIKeyRequest is the request body for issuing an API key.
type IssueAPIKeyRequest struct {
	Name      *string    `json:"name,omitempty" binding:"omitempty,max=100"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
}

// UpdateAPIKeyRequest is the request body for renaming or revoking a key.
type UpdateAPIKeyRequest struct {
	Name   *string `json:"name,omitempty" binding:"omitempty,max=100"`
	Status *string `json:"status,omitempty" binding:"omitempty,oneof=active revoked"`
}

// APIKeyResponse is the public view of an API key. It never carries the hash.
type APIKeyResponse struct {
	ID         string  `json:"id"`
	Name       *string `json:"name"`
	Prefix     string  `json:"prefix"`
	Status     string  `json:"status"`
	CreatedAt  string  `json:"createdAt"`
	LastUsedAt *string `json:"lastUsedAt"`
	ExpiresAt  *string `json:"expiresAt"`
}

// IssuedAPIKeyResponse carries the plaintext key. It is sent exactly once.
type IssuedAPIKeyResponse struct {
	APIKeyResponse
	FullAPIKey string `json:"fullApiKey"`
}

// APIKeyListResponse wraps the merchant's keys.
type APIKeyListResponse struct {
	Items []APIKeyResponse `json:"items"`
}

// NewAPIKeyResponse converts a domain key into its public view.
func NewAPIKeyResponse(k *domain.APIKey) APIKeyResponse {
	return APIKeyResponse{
		ID:         k.ID.String(),
		Name:       k.Name,
		Prefix:     k.KeyPrefix,
		Status:     string(k.Status),
		CreatedAt:  k.CreatedAt.UTC().Format(time.RFC3339),
		LastUsedAt: formatTimePtr(k.LastUsedAt),
		ExpiresAt:  formatTimePtr(k.ExpiresAt),
	}
}

// UpdateProfileRequest is a partial profile update. Empty strings clear a field.
type UpdateProfileRequest struct {
	PayoutWalletAddress *string `json:"payout_wallet_address,omitempty" binding:"omitempty,eth_addr"`
	WebhookURL          *string `json:"webhook_url,omitempty" binding:"omitempty,max=2048,https_url"`
}

// ToUpdate converts the request into the service-level update.
func (r UpdateProfileRequest) ToUpdate() ports.ProfileUpdate {
	return ports.ProfileUpdate{
		PayoutWalletAddress: r.PayoutWalletAddress,
		WebhookURL:          r.WebhookURL,
	}
}

// WebhookSecretResponse returns a freshly rotated notification secret.
type WebhookSecretResponse struct {
	WebhookSecret string `json:"webhookSecret"`
}

// WalletChallengeRequest asks for a wallet ownership challenge.
type WalletChallengeRequest struct {
	WalletAddress string `json:"walletAddress" binding:"required,eth_addr"`
}

// WalletChallengeResponse is the message the wallet must sign.
type WalletChallengeResponse struct {
	Nonce     string `json:"nonce"`
	Message   string `json:"message"`
	ExpiresAt string `json:"expiresAt"`
}

// VerifyWalletRequest is the signed challenge submitted for verification.
type VerifyWalletRequest struct {
	WalletAddress   string `json:"walletAddress" binding:"required,eth_addr"`
	SignedMessage   string `json:"signedMessage" binding:"required"`
	OriginalMessage string `json:"originalMessage" binding:"required"`
	Nonce           string `json:"nonce" binding:"required,hexadecimal,max=64"`
}

// CreatePaymentSessionRequest is the request body for creating a checkout.
// Amount accepts both a JSON number and a numeric string.
type CreatePaymentSessionRequest struct {
	OrderID       string      `json:"orderId" binding:"required,max=255"`
	Amount        json.Number `json:"amount" binding:"required,decimal_amount"`
	Currency      string      `json:"currency" binding:"required,currency"`
	CustomerEmail string      `json:"customerEmail,omitempty" binding:"omitempty,email,max=320"`
	CallbackURL   string      `json:"callbackUrl" binding:"required,max=2048,http_url"`
}

// PaymentStatusWebhookRequest is the payment-status reconciliation payload.
// OrderID is a legacy alias of PaymentSessionID, not the merchant's order id.
type PaymentStatusWebhookRequest struct {
	PaymentSessionID string `json:"paymentSessionId,omitempty"`
	OrderID          string `json:"orderId,omitempty"`
	TxHash           string `json:"txHash" binding:"required,tx_hash"`
	Status           string `json:"status" binding:"required,oneof=confirmed failed"`
}

// SessionID resolves the session identifier from the canonical field or
// its alias. ok is false when both are set and disagree or neither is set.
func (r PaymentStatusWebhookRequest) SessionID() (string, bool) {
	switch {
	case r.PaymentSessionID != "" && r.OrderID != "":
		return r.PaymentSessionID, r.PaymentSessionID == r.OrderID
	case r.PaymentSessionID != "":
		return r.PaymentSessionID, true
	case r.OrderID != "":
		return r.OrderID, true
	}
	return "", false
}

// TransactionResponse is one row of the merchant's transaction list.
type TransactionResponse struct {
	ID                          string  `json:"id"`
	MerchantOrderID             string  `json:"merchant_order_id"`
	Amount                      string  `json:"amount"`
	Currency                    string  `json:"currency"`
	Status                      string  `json:"status"`
	CustomerEmail               *string `json:"customer_email,omitempty"`
	CallbackURL                 string  `json:"callback_url"`
	TxHash                      *string `json:"tx_hash,omitempty"`
	MerchantPayoutWalletAddress *string `json:"merchant_payout_wallet_address,omitempty"`
	CreatedAt                   string  `json:"created_at"`
	ReconciledAt                *string `json:"reconciled_at,omitempty"`
}

// NewTransactionResponse converts a domain transaction.
func NewTransactionResponse(t *domain.Transaction) TransactionResponse {
	return TransactionResponse{
		ID:                          t.ID.String(),
		MerchantOrderID:             t.MerchantOrderID,
		Amount:                      t.Amount.String(),
		Currency:                    string(t.Currency),
		Status:                      string(t.Status),
		CustomerEmail:               t.CustomerEmail,
		CallbackURL:                 t.CallbackURL,
		TxHash:                      t.TxHash,
		MerchantPayoutWalletAddress: t.MerchantPayoutWalletAddress,
		CreatedAt:                   t.CreatedAt.UTC().Format(time.RFC3339),
		ReconciledAt:                formatTimePtr(t.ReconciledAt),
	}
}

// DefaultPageSize applies when the query omits page_size.
const DefaultPageSize = 20

// TransactionListQuery holds the list filters read from the query string.
type TransactionListQuery struct {
	Status   string `form:"status" binding:"omitempty,oneof=pending confirmed failed"`
	Currency string `form:"currency" binding:"omitempty,currency"`
	Page     int    `form:"page" binding:"omitempty,min=1"`
	PageSize int    `form:"page_size" binding:"omitempty,min=1,max=100"`
}

// TransactionListResponse wraps paginated transaction list.
type TransactionListResponse struct {
	Items      []TransactionResponse `json:"items"`
	Total      int64                 `json:"total"`
	Page       int                   `json:"page"`
	PageSize   int                   `json:"page_size"`
	TotalPages int                   `json:"total_pages"`
}

// DependencyStatus is the health of one backing service.
type DependencyStatus struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// HealthResponse is returned by the health endpoint.
type HealthResponse struct {
	Status       string                      `json:"status"`
	Dependencies map[string]DependencyStatus `json:"dependencies"`
	Timestamp    string                      `json:"timestamp"`
}

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.UTC().Format(time.RFC3339)
	return &s
}

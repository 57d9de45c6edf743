package ports

import (
	"context"
	"encoding/json"
	"time"

	"flowkora/internal/core/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// --- Service Ports (Business Logic) ---

// IdentityService resolves credentials to a principal.
type IdentityService interface {
	AuthenticateSession(ctx context.Context, token string) (*domain.Principal, error)
	AuthenticateAPIKey(ctx context.Context, plaintextKey string) (*domain.Principal, error)
}

// APIKeyService issues and manages merchant API keys.
type APIKeyService interface {
	Issue(ctx context.Context, merchantID uuid.UUID, req IssueAPIKeyRequest) (*IssuedAPIKey, error)
	List(ctx context.Context, merchantID uuid.UUID) ([]domain.APIKey, error)
	Update(ctx context.Context, merchantID, keyID uuid.UUID, req UpdateAPIKeyRequest) (*domain.APIKey, error)
	Revoke(ctx context.Context, merchantID, keyID uuid.UUID) error
	Authenticate(ctx context.Context, plaintextKey string) (*domain.APIKey, error)
}

// IssueAPIKeyRequest holds input for key issuance.
type IssueAPIKeyRequest struct {
	Name      *string
	ExpiresAt *time.Time
}

// UpdateAPIKeyRequest holds a partial key update.
type UpdateAPIKeyRequest struct {
	Name   *string
	Status *domain.APIKeyStatus
}

// IssuedAPIKey is returned exactly once, right after issuance.
type IssuedAPIKey struct {
	Key       domain.APIKey
	Plaintext string
}

// MerchantService defines merchant profile business logic.
type MerchantService interface {
	GetProfile(ctx context.Context, merchantID uuid.UUID) (*MerchantProfile, error)
	UpdateProfile(ctx context.Context, merchantID uuid.UUID, upd ProfileUpdate) (*MerchantProfile, error)
	RotateWebhookSecret(ctx context.Context, merchantID uuid.UUID) (string, error)
}

// MerchantProfile is the merchant-visible projection of a merchant row.
type MerchantProfile struct {
	PayoutWalletAddress    *string `json:"payout_wallet_address"`
	IsPayoutWalletVerified bool    `json:"is_payout_wallet_verified"`
	WebhookURL             *string `json:"webhook_url"`
	HasWebhookSecret       bool    `json:"has_webhook_secret"`
}

// NewMerchantProfile projects a merchant into its profile view.
func NewMerchantProfile(m *domain.Merchant) *MerchantProfile {
	return &MerchantProfile{
		PayoutWalletAddress:    m.PayoutWalletAddress,
		IsPayoutWalletVerified: m.IsPayoutWalletVerified,
		WebhookURL:             m.WebhookURL,
		HasWebhookSecret:       m.WebhookSecretEnc != nil && *m.WebhookSecretEnc != "",
	}
}

// PaymentSessionService defines the payment session lifecycle.
type PaymentSessionService interface {
	Create(ctx context.Context, req CreateSessionRequest) (*CreateSessionResponse, error)
	FetchPublic(ctx context.Context, sessionID string) (*PublicSession, error)
	Reconcile(ctx context.Context, req ReconcileRequest) (*ReconcileResult, error)
}

// CreateSessionRequest holds validated input for session creation.
type CreateSessionRequest struct {
	MerchantID    uuid.UUID
	OrderID       string
	Amount        decimal.Decimal
	Currency      domain.Currency
	CustomerEmail *string
	CallbackURL   string
}

// CreateSessionResponse is returned to the merchant after creation.
type CreateSessionResponse struct {
	PaymentURL       string    `json:"payment_url"`
	PaymentSessionID uuid.UUID `json:"payment_session_id"`
}

// PublicSession holds the fields a checkout page may see.
type PublicSession struct {
	PaymentSessionID            uuid.UUID       `json:"paymentSessionId"`
	Amount                      json.Number     `json:"amount"`
	Currency                    domain.Currency `json:"currency"`
	MerchantOrderID             string          `json:"merchantOrderId"`
	CustomerEmail               *string         `json:"customerEmail"`
	CallbackURL                 string          `json:"callbackUrl"`
	MerchantPayoutWalletAddress *string         `json:"merchantPayoutWalletAddress"`
}

// ReconcileRequest is a validated payment-status webhook.
type ReconcileRequest struct {
	SessionID uuid.UUID
	TxHash    string
	Status    domain.TransactionStatus
}

// ReconcileResult reports the state after reconciliation.
type ReconcileResult struct {
	PaymentSessionID  uuid.UUID                `json:"paymentSessionId"`
	Status            domain.TransactionStatus `json:"status"`
	TxHash            string                   `json:"txHash"`
	AlreadyReconciled bool                     `json:"alreadyReconciled"`
}

// WalletService proves payout-wallet ownership.
type WalletService interface {
	IssueChallenge(ctx context.Context, merchantID uuid.UUID, address string) (*domain.WalletChallenge, error)
	VerifyOwnership(ctx context.Context, req VerifyWalletRequest) (*MerchantProfile, error)
}

// VerifyWalletRequest holds the signed challenge.
type VerifyWalletRequest struct {
	MerchantID      uuid.UUID
	WalletAddress   string
	SignedMessage   string
	OriginalMessage string
	Nonce           string
}

// ReportingService defines dashboard/reporting business logic.
type ReportingService interface {
	GetDashboardStats(ctx context.Context, merchantID uuid.UUID) (*TransactionStats, error)
	ListTransactions(ctx context.Context, params TransactionListParams) ([]domain.Transaction, int64, error)
}

// NotificationService tells the merchant a session reached a terminal state.
type NotificationService interface {
	NotifySessionUpdated(ctx context.Context, txn *domain.Transaction) error
}

// AuditService records security-relevant actions.
type AuditService interface {
	Log(ctx context.Context, entry *domain.AuditLog)
}

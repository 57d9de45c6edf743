package domain

import (
	"time"

	"github.com/google/uuid"
)

// AuditAction represents the type of audited action.
type AuditAction string

const (
	AuditActionIssueAPIKey         AuditAction = "ISSUE_API_KEY"
	AuditActionUpdateAPIKey        AuditAction = "UPDATE_API_KEY"
	AuditActionRevokeAPIKey        AuditAction = "REVOKE_API_KEY"
	AuditActionUpdateProfile       AuditAction = "UPDATE_PROFILE"
	AuditActionRotateWebhookSecret AuditAction = "ROTATE_WEBHOOK_SECRET"
	AuditActionWalletChallenge     AuditAction = "WALLET_CHALLENGE"
	AuditActionVerifyWallet        AuditAction = "VERIFY_WALLET"
	AuditActionCreateSession       AuditAction = "CREATE_PAYMENT_SESSION"
	AuditActionReconcile           AuditAction = "RECONCILE_PAYMENT"
)

// AuditLog records a single audited action in the system.
type AuditLog struct {
	ID           uuid.UUID   `json:"id"`
	MerchantID   *uuid.UUID  `json:"merchant_id,omitempty"`
	Action       AuditAction `json:"action"`
	ResourceType string      `json:"resource_type"`
	ResourceID   string      `json:"resource_id,omitempty"`
	Details      string      `json:"details,omitempty"` // JSON string
	IPAddress    string      `json:"ip_address"`
	CreatedAt    time.Time   `json:"created_at"`
}

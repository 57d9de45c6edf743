package domain

import (
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

var walletAddressPattern = regexp.MustCompile(`^0x[a-fA-F0-9]{40}$`)

// Merchant is keyed by the identity provider's principal id.
type Merchant struct {
	ID                     uuid.UUID `json:"id"`
	PayoutWalletAddress    *string   `json:"payout_wallet_address,omitempty"`
	IsPayoutWalletVerified bool      `json:"is_payout_wallet_verified"`
	WebhookURL             *string   `json:"webhook_url,omitempty"`
	WebhookSecretEnc       *string   `json:"-"` // AES-256-GCM, never expose
	CreatedAt              time.Time `json:"created_at"`
	UpdatedAt              time.Time `json:"updated_at"`
}

// VerifiedPayoutAddress returns the payout address only when its ownership
// has been proven.
func (m *Merchant) VerifiedPayoutAddress() *string {
	if m.PayoutWalletAddress == nil || !m.IsPayoutWalletVerified {
		return nil
	}
	addr := *m.PayoutWalletAddress
	return &addr
}

// HasWebhook reports whether notifications can be delivered.
func (m *Merchant) HasWebhook() bool {
	return m.WebhookURL != nil && *m.WebhookURL != "" && m.WebhookSecretEnc != nil && *m.WebhookSecretEnc != ""
}

// IsValidWalletAddress checks the 0x-prefixed 20-byte hex form.
func IsValidWalletAddress(addr string) bool {
	return walletAddressPattern.MatchString(addr)
}

// NormalizeWalletAddress returns the canonical lowercase form.
func NormalizeWalletAddress(addr string) string {
	return strings.ToLower(strings.TrimSpace(addr))
}

// SameWalletAddress compares two addresses case-insensitively.
func SameWalletAddress(a, b string) bool {
	return NormalizeWalletAddress(a) == NormalizeWalletAddress(b)
}

package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// WalletChallenge is a server-issued, single-use message a merchant signs
// to prove control of a payout wallet.
type WalletChallenge struct {
	MerchantID uuid.UUID `json:"merchant_id"`
	Nonce      string    `json:"nonce"`
	Address    string    `json:"address"`
	Message    string    `json:"message"`
	IssuedAt   time.Time `json:"issued_at"`
	ExpiresAt  time.Time `json:"expires_at"`
}

// BuildChallengeMessage renders the exact text the wallet signs.
func BuildChallengeMessage(statement, address, nonce string, issuedAt, expiresAt time.Time) string {
	return fmt.Sprintf("%s\nAddress: %s\nNonce: %s\nIssued At: %s\nExpires At: %s",
		statement,
		NormalizeWalletAddress(address),
		nonce,
		issuedAt.UTC().Format(time.RFC3339),
		expiresAt.UTC().Format(time.RFC3339),
	)
}

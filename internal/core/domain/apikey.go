package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// APIKeyStatus is one-way: active keys may be revoked, never the reverse.
type APIKeyStatus string

const (
	APIKeyStatusActive  APIKeyStatus = "active"
	APIKeyStatusRevoked APIKeyStatus = "revoked"
)

const (
	// APIKeyPrefix marks every issued key.
	APIKeyPrefix = "fk_live_"
	// APIKeyDisplayPrefixLen is how much of a key is shown after issuance.
	APIKeyDisplayPrefixLen = 12
)

// ErrAPIKeyReactivation is returned when a revoked key is set active again.
var ErrAPIKeyReactivation = errors.New("revoked keys cannot be reactivated")

// ErrUnknownAPIKeyStatus is returned for a status outside the enum.
var ErrUnknownAPIKeyStatus = errors.New("unknown api key status")

// APIKey is a long-lived merchant credential. Only its hash is stored.
type APIKey struct {
	ID         uuid.UUID    `json:"id"`
	MerchantID uuid.UUID    `json:"merchant_id"`
	Name       *string      `json:"name"`
	KeyPrefix  string       `json:"key_prefix"`
	KeyHash    string       `json:"-"`
	Status     APIKeyStatus `json:"status"`
	CreatedAt  time.Time    `json:"created_at"`
	LastUsedAt *time.Time   `json:"last_used_at"`
	ExpiresAt  *time.Time   `json:"expires_at"`
}

// IsUsable reports whether the key may authenticate a request at now.
func (k *APIKey) IsUsable(now time.Time) bool {
	if k.Status != APIKeyStatusActive {
		return false
	}
	return k.ExpiresAt == nil || now.Before(*k.ExpiresAt)
}

// CheckStatusChange validates a requested status transition.
func (k *APIKey) CheckStatusChange(to APIKeyStatus) error {
	switch to {
	case APIKeyStatusActive:
		if k.Status == APIKeyStatusRevoked {
			return ErrAPIKeyReactivation
		}
	case APIKeyStatusRevoked:
	default:
		return ErrUnknownAPIKeyStatus
	}
	return nil
}

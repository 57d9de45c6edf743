package ports

import (
	"context"
	"time"

	"flowkora/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// MerchantRepository defines persistence operations for merchants.
// Lookups return (nil, nil) when the row does not exist.
type MerchantRepository interface {
	// EnsureExists creates an empty merchant row for a new principal.
	EnsureExists(ctx context.Context, id uuid.UUID) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Merchant, error)
	// UpdateProfile applies a partial update. A changed payout address
	// resets the verification flag in the same statement.
	UpdateProfile(ctx context.Context, id uuid.UUID, upd ProfileUpdate) (*domain.Merchant, error)
	SetVerifiedPayoutWallet(ctx context.Context, id uuid.UUID, address string) (*domain.Merchant, error)
	UpdateWebhookSecret(ctx context.Context, id uuid.UUID, secretEnc string) error
}

// ProfileUpdate holds the fields being changed. nil leaves a field as is;
// an empty string clears it.
type ProfileUpdate struct {
	PayoutWalletAddress *string
	WebhookURL          *string
}

// IsEmpty reports whether the update changes nothing.
func (u ProfileUpdate) IsEmpty() bool {
	return u.PayoutWalletAddress == nil && u.WebhookURL == nil
}

// APIKeyRepository defines persistence operations for API keys.
// Every mutation is scoped by merchant id.
type APIKeyRepository interface {
	Create(ctx context.Context, key *domain.APIKey) error
	ListByMerchant(ctx context.Context, merchantID uuid.UUID) ([]domain.APIKey, error)
	GetByID(ctx context.Context, merchantID, id uuid.UUID) (*domain.APIKey, error)
	GetByHash(ctx context.Context, keyHash string) (*domain.APIKey, error)
	// Update persists name and status, returning false if no row matched.
	Update(ctx context.Context, key *domain.APIKey) (bool, error)
	// Revoke returns false if no key with that id belongs to the merchant.
	Revoke(ctx context.Context, merchantID, id uuid.UUID) (bool, error)
	TouchLastUsed(ctx context.Context, id uuid.UUID, at time.Time) error
}

// TransactionRepository defines persistence operations for payment sessions.
type TransactionRepository interface {
	// Create returns domain.ErrDuplicateOrderID on a (merchant, order id) clash.
	Create(ctx context.Context, txn *domain.Transaction) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Transaction, error)
	GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Transaction, error)
	UpdateStatus(ctx context.Context, tx pgx.Tx, id uuid.UUID, status domain.TransactionStatus, txHash string, at time.Time) error
	List(ctx context.Context, params TransactionListParams) ([]domain.Transaction, int64, error)
	GetStats(ctx context.Context, merchantID uuid.UUID) (*TransactionStats, error)
}

// TransactionListParams holds filter + pagination for listing transactions.
type TransactionListParams struct {
	MerchantID uuid.UUID
	Status     *domain.TransactionStatus
	Currency   *domain.Currency
	Page       int
	PageSize   int
}

// TransactionStats holds aggregated statistics for the dashboard.
type TransactionStats struct {
	TotalSessions   int64                               `json:"total_sessions"`
	Pending         int64                               `json:"pending"`
	Confirmed       int64                               `json:"confirmed"`
	Failed          int64                               `json:"failed"`
	ConfirmedVolume map[domain.Currency]decimal.Decimal `json:"confirmed_volume"`
}

// AuditRepository persists audit log entries.
type AuditRepository interface {
	Create(ctx context.Context, log *domain.AuditLog) error
}

// NotificationRepository persists outbound notification outcomes.
type NotificationRepository interface {
	Create(ctx context.Context, delivery *domain.NotificationDelivery) error
	ListByTransaction(ctx context.Context, txID uuid.UUID) ([]domain.NotificationDelivery, error)
}

// DBTransactor provides database transaction management.
type DBTransactor interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

package postgres

import (
	"context"
	"errors"
	"fmt"

	"flowkora/internal/core/domain"
	"flowkora/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const merchantColumns = `id, payout_wallet_address, is_payout_wallet_verified, webhook_url, webhook_secret_enc, created_at, updated_at`

// MerchantRepo implements ports.MerchantRepository.
type MerchantRepo struct {
	pool Pool
}

// NewMerchantRepo creates a new MerchantRepo.
func NewMerchantRepo(pool Pool) *MerchantRepo {
	return &MerchantRepo{pool: pool}
}

// EnsureExists inserts an empty merchant row unless one already exists.
func (r *MerchantRepo) EnsureExists(ctx context.Context, id uuid.UUID) error {
	query := `INSERT INTO merchants (id) VALUES ($1) ON CONFLICT (id) DO NOTHING`

	if _, err := r.pool.Exec(ctx, query, id); err != nil {
		return fmt.Errorf("ensure merchant: %w", err)
	}
	return nil
}

// GetByID fetches a merchant by its UUID.
func (r *MerchantRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Merchant, error) {
	query := `SELECT ` + merchantColumns + ` FROM merchants WHERE id = $1`

	m, err := scanMerchant(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		return nil, fmt.Errorf("get merchant by id: %w", err)
	}
	return m, nil
}

// UpdateProfile applies a partial profile update. The verification flag
// is cleared whenever the stored payout address actually changes.
func (r *MerchantRepo) UpdateProfile(ctx context.Context, id uuid.UUID, upd ports.ProfileUpdate) (*domain.Merchant, error) {
	query := `UPDATE merchants SET
		payout_wallet_address = CASE WHEN $2::boolean THEN NULLIF($3::text, '') ELSE payout_wallet_address END,
		is_payout_wallet_verified = CASE
			WHEN $2::boolean AND NULLIF($3::text, '') IS DISTINCT FROM payout_wallet_address THEN FALSE
			ELSE is_payout_wallet_verified END,
		webhook_url = CASE WHEN $4::boolean THEN NULLIF($5::text, '') ELSE webhook_url END,
		updated_at = NOW()
		WHERE id = $1
		RETURNING ` + merchantColumns

	setAddr, addr := optionalArg(upd.PayoutWalletAddress)
	setURL, url := optionalArg(upd.WebhookURL)

	m, err := scanMerchant(r.pool.QueryRow(ctx, query, id, setAddr, addr, setURL, url))
	if err != nil {
		return nil, fmt.Errorf("update merchant profile: %w", err)
	}
	return m, nil
}

// SetVerifiedPayoutWallet stores a proven payout address.
func (r *MerchantRepo) SetVerifiedPayoutWallet(ctx context.Context, id uuid.UUID, address string) (*domain.Merchant, error) {
	query := `UPDATE merchants
		SET payout_wallet_address = $2, is_payout_wallet_verified = TRUE, updated_at = NOW()
		WHERE id = $1
		RETURNING ` + merchantColumns

	m, err := scanMerchant(r.pool.QueryRow(ctx, query, id, address))
	if err != nil {
		return nil, fmt.Errorf("set verified payout wallet: %w", err)
	}
	return m, nil
}

// UpdateWebhookSecret replaces the encrypted notification signing secret.
func (r *MerchantRepo) UpdateWebhookSecret(ctx context.Context, id uuid.UUID, secretEnc string) error {
	query := `UPDATE merchants SET webhook_secret_enc = $2, updated_at = NOW() WHERE id = $1`

	tag, err := r.pool.Exec(ctx, query, id, secretEnc)
	if err != nil {
		return fmt.Errorf("update webhook secret: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("merchant not found: %s", id)
	}
	return nil
}

func scanMerchant(row pgx.Row) (*domain.Merchant, error) {
	m := &domain.Merchant{}
	err := row.Scan(
		&m.ID, &m.PayoutWalletAddress, &m.IsPayoutWalletVerified,
		&m.WebhookURL, &m.WebhookSecretEnc, &m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return m, nil
}

// optionalArg splits a tri-state field into (set?, value).
func optionalArg(v *string) (bool, string) {
	if v == nil {
		return false, ""
	}
	return true, *v
}

package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"flowkora/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const apiKeyColumns = `id, merchant_id, name, key_prefix, key_hash, status, created_at, last_used_at, expires_at`

// APIKeyRepo implements ports.APIKeyRepository.
type APIKeyRepo struct {
	pool Pool
}

// NewAPIKeyRepo creates a new APIKeyRepo.
func NewAPIKeyRepo(pool Pool) *APIKeyRepo {
	return &APIKeyRepo{pool: pool}
}

// Create inserts a newly issued key.
func (r *APIKeyRepo) Create(ctx context.Context, k *domain.APIKey) error {
	query := `INSERT INTO api_keys (id, merchant_id, name, key_prefix, key_hash, status, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := r.pool.Exec(ctx, query,
		k.ID, k.MerchantID, k.Name, k.KeyPrefix, k.KeyHash, k.Status, k.CreatedAt, k.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("insert api key: %w", err)
	}
	return nil
}

// ListByMerchant returns a merchant's keys, newest first.
func (r *APIKeyRepo) ListByMerchant(ctx context.Context, merchantID uuid.UUID) ([]domain.APIKey, error) {
	query := `SELECT ` + apiKeyColumns + ` FROM api_keys WHERE merchant_id = $1 ORDER BY created_at DESC`

	rows, err := r.pool.Query(ctx, query, merchantID)
	if err != nil {
		return nil, fmt.Errorf("list api keys: %w", err)
	}
	defer rows.Close()

	keys := []domain.APIKey{}
	for rows.Next() {
		k, err := scanAPIKey(rows)
		if err != nil {
			return nil, fmt.Errorf("scan api key row: %w", err)
		}
		keys = append(keys, *k)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate api key rows: %w", err)
	}
	return keys, nil
}

// GetByID fetches a key owned by merchantID.
func (r *APIKeyRepo) GetByID(ctx context.Context, merchantID, id uuid.UUID) (*domain.APIKey, error) {
	query := `SELECT ` + apiKeyColumns + ` FROM api_keys WHERE id = $1 AND merchant_id = $2`

	k, err := scanAPIKey(r.pool.QueryRow(ctx, query, id, merchantID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get api key: %w", err)
	}
	return k, nil
}

// GetByHash fetches a key by the SHA-256 of its plaintext.
func (r *APIKeyRepo) GetByHash(ctx context.Context, keyHash string) (*domain.APIKey, error) {
	query := `SELECT ` + apiKeyColumns + ` FROM api_keys WHERE key_hash = $1`

	k, err := scanAPIKey(r.pool.QueryRow(ctx, query, keyHash))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get api key by hash: %w", err)
	}
	return k, nil
}

// Update persists a key's name and status. A key that is already revoked
// keeps its status whatever k carries; k.Status is refreshed from the row.
func (r *APIKeyRepo) Update(ctx context.Context, k *domain.APIKey) (bool, error) {
	query := `UPDATE api_keys
		SET name = $3,
			status = CASE WHEN status = 'revoked' THEN status ELSE $4 END
		WHERE id = $1 AND merchant_id = $2
		RETURNING status`

	var status domain.APIKeyStatus
	err := r.pool.QueryRow(ctx, query, k.ID, k.MerchantID, k.Name, k.Status).Scan(&status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("update api key: %w", err)
	}
	k.Status = status
	return true, nil
}

// Revoke marks a key revoked.
func (r *APIKeyRepo) Revoke(ctx context.Context, merchantID, id uuid.UUID) (bool, error) {
	query := `UPDATE api_keys SET status = $3 WHERE id = $1 AND merchant_id = $2`

	tag, err := r.pool.Exec(ctx, query, id, merchantID, domain.APIKeyStatusRevoked)
	if err != nil {
		return false, fmt.Errorf("revoke api key: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// TouchLastUsed records when a key last authenticated a request.
func (r *APIKeyRepo) TouchLastUsed(ctx context.Context, id uuid.UUID, at time.Time) error {
	query := `UPDATE api_keys SET last_used_at = $2 WHERE id = $1`

	if _, err := r.pool.Exec(ctx, query, id, at); err != nil {
		return fmt.Errorf("touch api key: %w", err)
	}
	return nil
}

func scanAPIKey(row pgx.Row) (*domain.APIKey, error) {
	k := &domain.APIKey{}
	err := row.Scan(
		&k.ID, &k.MerchantID, &k.Name, &k.KeyPrefix, &k.KeyHash,
		&k.Status, &k.CreatedAt, &k.LastUsedAt, &k.ExpiresAt,
	)
	if err != nil {
		return nil, err
	}
	return k, nil
}

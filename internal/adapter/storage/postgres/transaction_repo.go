package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"flowkora/internal/core/domain"
	"flowkora/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
)

const uniqueViolation = "23505"

// amount is read as text so no precision is lost in transit.
const transactionColumns = `id, merchant_id, merchant_order_id, amount::text, currency, customer_email,
		callback_url, status, tx_hash, merchant_payout_wallet_address, created_at, updated_at, reconciled_at`

// TransactionRepo implements ports.TransactionRepository.
type TransactionRepo struct {
	pool Pool
}

// NewTransactionRepo creates a new TransactionRepo.
func NewTransactionRepo(pool Pool) *TransactionRepo {
	return &TransactionRepo{pool: pool}
}

// Create inserts a new payment session.
func (r *TransactionRepo) Create(ctx context.Context, t *domain.Transaction) error {
	query := `INSERT INTO transactions (id, merchant_id, merchant_order_id, amount, currency, customer_email,
		callback_url, status, merchant_payout_wallet_address, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	_, err := r.pool.Exec(ctx, query,
		t.ID, t.MerchantID, t.MerchantOrderID, t.Amount.String(), t.Currency, t.CustomerEmail,
		t.CallbackURL, t.Status, t.MerchantPayoutWalletAddress, t.CreatedAt, t.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return domain.ErrDuplicateOrderID
		}
		return fmt.Errorf("insert transaction: %w", err)
	}
	return nil
}

// GetByID fetches a payment session by UUID.
func (r *TransactionRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE id = $1`

	return r.scanTransaction(r.pool.QueryRow(ctx, query, id))
}

// GetByIDForUpdate locks the session row for the rest of tx.
func (r *TransactionRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE id = $1 FOR UPDATE`

	return r.scanTransaction(tx.QueryRow(ctx, query, id))
}

// UpdateStatus moves a pending session to a terminal state. The status
// guard in the WHERE clause keeps terminal rows unchanged.
func (r *TransactionRepo) UpdateStatus(ctx context.Context, tx pgx.Tx, id uuid.UUID, status domain.TransactionStatus, txHash string, at time.Time) error {
	query := `UPDATE transactions SET status = $1, tx_hash = $2, reconciled_at = $3, updated_at = $3
		WHERE id = $4 AND status = $5`

	tag, err := tx.Exec(ctx, query, status, txHash, at, id, domain.TransactionStatusPending)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return domain.ErrTxHashInUse
		}
		return fmt.Errorf("update transaction status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrAlreadyReconciled
	}
	return nil
}

// List fetches a merchant's sessions with filtering and pagination, newest first.
func (r *TransactionRepo) List(ctx context.Context, params ports.TransactionListParams) ([]domain.Transaction, int64, error) {
	var conditions []string
	var args []any
	argIdx := 1

	conditions = append(conditions, fmt.Sprintf("merchant_id = $%d", argIdx))
	args = append(args, params.MerchantID)
	argIdx++

	if params.Status != nil {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argIdx))
		args = append(args, *params.Status)
		argIdx++
	}
	if params.Currency != nil {
		conditions = append(conditions, fmt.Sprintf("currency = $%d", argIdx))
		args = append(args, *params.Currency)
		argIdx++
	}

	where := "WHERE " + strings.Join(conditions, " AND ")

	var total int64
	countQuery := "SELECT COUNT(*) FROM transactions " + where
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count transactions: %w", err)
	}

	offset := (params.Page - 1) * params.PageSize
	dataQuery := fmt.Sprintf(`SELECT %s FROM transactions %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		transactionColumns, where, argIdx, argIdx+1)
	args = append(args, params.PageSize, offset)

	rows, err := r.pool.Query(ctx, dataQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	txns := []domain.Transaction{}
	for rows.Next() {
		t, err := scanTransactionRow(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan transaction row: %w", err)
		}
		txns = append(txns, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate transaction rows: %w", err)
	}
	return txns, total, nil
}

// GetStats retrieves per-status counts and confirmed volume per currency.
func (r *TransactionRepo) GetStats(ctx context.Context, merchantID uuid.UUID) (*ports.TransactionStats, error) {
	countQuery := `SELECT
		COUNT(*) AS total,
		COUNT(*) FILTER (WHERE status = 'pending') AS pending,
		COUNT(*) FILTER (WHERE status = 'confirmed') AS confirmed,
		COUNT(*) FILTER (WHERE status = 'failed') AS failed
		FROM transactions WHERE merchant_id = $1`

	stats := &ports.TransactionStats{ConfirmedVolume: map[domain.Currency]decimal.Decimal{}}
	err := r.pool.QueryRow(ctx, countQuery, merchantID).Scan(
		&stats.TotalSessions, &stats.Pending, &stats.Confirmed, &stats.Failed,
	)
	if err != nil {
		return nil, fmt.Errorf("get transaction stats: %w", err)
	}

	volumeQuery := `SELECT currency, SUM(amount)::text FROM transactions
		WHERE merchant_id = $1 AND status = 'confirmed'
		GROUP BY currency`

	rows, err := r.pool.Query(ctx, volumeQuery, merchantID)
	if err != nil {
		return nil, fmt.Errorf("get confirmed volume: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var currency domain.Currency
		var sum string
		if err := rows.Scan(&currency, &sum); err != nil {
			return nil, fmt.Errorf("scan volume row: %w", err)
		}
		vol, err := decimal.NewFromString(sum)
		if err != nil {
			return nil, fmt.Errorf("parse volume %q: %w", sum, err)
		}
		stats.ConfirmedVolume[currency] = vol
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate volume rows: %w", err)
	}
	return stats, nil
}

func (r *TransactionRepo) scanTransaction(row pgx.Row) (*domain.Transaction, error) {
	t, err := scanTransactionRow(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan transaction: %w", err)
	}
	return t, nil
}

func scanTransactionRow(row pgx.Row) (*domain.Transaction, error) {
	t := &domain.Transaction{}
	var amount string
	err := row.Scan(
		&t.ID, &t.MerchantID, &t.MerchantOrderID, &amount, &t.Currency, &t.CustomerEmail,
		&t.CallbackURL, &t.Status, &t.TxHash, &t.MerchantPayoutWalletAddress,
		&t.CreatedAt, &t.UpdatedAt, &t.ReconciledAt,
	)
	if err != nil {
		return nil, err
	}
	if t.Amount, err = decimal.NewFromString(amount); err != nil {
		return nil, fmt.Errorf("parse amount %q: %w", amount, err)
	}
	return t, nil
}

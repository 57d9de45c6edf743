package postgres

import (
	"context"
	"fmt"

	"flowkora/internal/core/domain"

	"github.com/google/uuid"
)

// NotificationRepo implements ports.NotificationRepository.
type NotificationRepo struct {
	pool Pool
}

// NewNotificationRepo creates a PostgreSQL-backed delivery log.
func NewNotificationRepo(pool Pool) *NotificationRepo {
	return &NotificationRepo{pool: pool}
}

func (r *NotificationRepo) Create(ctx context.Context, d *domain.NotificationDelivery) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO notification_deliveries
		 (id, transaction_id, merchant_id, webhook_url, payload, http_status, status, last_error, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		d.ID, d.TransactionID, d.MerchantID, d.WebhookURL,
		d.Payload, d.HTTPStatus, string(d.Status), d.LastError, d.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert notification delivery: %w", err)
	}
	return nil
}

func (r *NotificationRepo) ListByTransaction(ctx context.Context, txID uuid.UUID) ([]domain.NotificationDelivery, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, transaction_id, merchant_id, webhook_url, payload, http_status, status, last_error, created_at
		 FROM notification_deliveries
		 WHERE transaction_id = $1
		 ORDER BY created_at DESC`, txID)
	if err != nil {
		return nil, fmt.Errorf("list notification deliveries: %w", err)
	}
	defer rows.Close()

	var out []domain.NotificationDelivery
	for rows.Next() {
		var d domain.NotificationDelivery
		var status string
		if err := rows.Scan(
			&d.ID, &d.TransactionID, &d.MerchantID, &d.WebhookURL, &d.Payload,
			&d.HTTPStatus, &status, &d.LastError, &d.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan notification delivery: %w", err)
		}
		d.Status = domain.NotificationStatus(status)
		out = append(out, d)
	}
	return out, rows.Err()
}

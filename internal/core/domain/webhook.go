package domain

import (
	"time"

	"github.com/google/uuid"
)

// NotificationStatus is the outcome of the single delivery attempt.
type NotificationStatus string

const (
	NotificationStatusDelivered NotificationStatus = "delivered"
	NotificationStatusFailed    NotificationStatus = "failed"
)

// NotificationEventType is the event name sent to merchants.
const NotificationEventType = "payment_session.updated"

// NotificationDelivery records one outbound merchant notification.
type NotificationDelivery struct {
	ID            uuid.UUID          `json:"id"`
	TransactionID uuid.UUID          `json:"transaction_id"`
	MerchantID    uuid.UUID          `json:"merchant_id"`
	WebhookURL    string             `json:"webhook_url"`
	Payload       string             `json:"payload"` // JSON string
	HTTPStatus    *int               `json:"http_status"`
	Status        NotificationStatus `json:"status"`
	LastError     *string            `json:"last_error"`
	CreatedAt     time.Time          `json:"created_at"`
}

package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"flowkora/internal/core/domain"
	"flowkora/internal/core/ports"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	// NotificationSignatureHeader carries hex HMAC-SHA256(webhook secret, body).
	NotificationSignatureHeader = "X-FlowKora-Signature"
	// NotificationEventHeader repeats the event type for routing.
	NotificationEventHeader = "X-FlowKora-Event"

	notificationTimeout = 10 * time.Second
	maxErrorBodyBytes   = 512
)

// NotificationPayload is the JSON body sent to the merchant webhook_url.
type NotificationPayload struct {
	EventType string                  `json:"event_type"`
	Data      NotificationPayloadData `json:"data"`
}

// NotificationPayloadData describes the session that changed.
type NotificationPayloadData struct {
	PaymentSessionID string `json:"payment_session_id"`
	MerchantOrderID  string `json:"merchant_order_id"`
	Status           string `json:"status"`
	TxHash           string `json:"tx_hash"`
	Amount           string `json:"amount"`
	Currency         string `json:"currency"`
	Timestamp        int64  `json:"timestamp"`
}

// HTTPClient interface for testability.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// notificationService implements ports.NotificationService.
type notificationService struct {
	merchantRepo ports.MerchantRepository
	deliveryRepo ports.NotificationRepository
	encSvc       ports.EncryptionService
	sigSvc       ports.SignatureService
	httpClient   HTTPClient
	log          zerolog.Logger
}

// NewNotificationService creates the merchant notifier.
func NewNotificationService(
	merchantRepo ports.MerchantRepository,
	deliveryRepo ports.NotificationRepository,
	encSvc ports.EncryptionService,
	sigSvc ports.SignatureService,
	httpClient HTTPClient,
	log zerolog.Logger,
) ports.NotificationService {
	return &notificationService{
		merchantRepo: merchantRepo,
		deliveryRepo: deliveryRepo,
		encSvc:       encSvc,
		sigSvc:       sigSvc,
		httpClient:   httpClient,
		log:          log,
	}
}

// NewNotificationHTTPClient returns the client used for merchant webhooks.
func NewNotificationHTTPClient() *http.Client {
	return &http.Client{Timeout: notificationTimeout}
}

// NotifySessionUpdated signs the payload and sends it in the background.
// It is a no-op for merchants without a webhook URL and secret.
func (s *notificationService) NotifySessionUpdated(ctx context.Context, txn *domain.Transaction) error {
	merchant, err := s.merchantRepo.GetByID(ctx, txn.MerchantID)
	if err != nil {
		return fmt.Errorf("fetch merchant: %w", err)
	}
	if merchant == nil || !merchant.HasWebhook() {
		s.log.Debug().Str("merchant_id", txn.MerchantID.String()).Msg("notification: no webhook configured, skipping")
		return nil
	}

	secret, err := s.encSvc.Decrypt(*merchant.WebhookSecretEnc)
	if err != nil {
		return fmt.Errorf("decrypt webhook secret: %w", err)
	}

	payload := NotificationPayload{
		EventType: domain.NotificationEventType,
		Data: NotificationPayloadData{
			PaymentSessionID: txn.ID.String(),
			MerchantOrderID:  txn.MerchantOrderID,
			Status:           string(txn.Status),
			Amount:           txn.Amount.String(),
			Currency:         string(txn.Currency),
			Timestamp:        time.Now().Unix(),
		},
	}
	if txn.TxHash != nil {
		payload.Data.TxHash = *txn.TxHash
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	signature := s.sigSvc.Sign(secret, string(body))

	go s.deliver(*merchant.WebhookURL, body, signature, txn)
	return nil
}

// deliver makes exactly one attempt and records its outcome.
func (s *notificationService) deliver(url string, body []byte, signature string, txn *domain.Transaction) {
	ctx, cancel := context.WithTimeout(context.Background(), notificationTimeout)
	defer cancel()

	record := &domain.NotificationDelivery{
		ID:            uuid.New(),
		TransactionID: txn.ID,
		MerchantID:    txn.MerchantID,
		WebhookURL:    url,
		Payload:       string(body),
		Status:        domain.NotificationStatusFailed,
		CreatedAt:     time.Now().UTC(),
	}

	status, err := s.post(ctx, url, body, signature)
	if status != 0 {
		record.HTTPStatus = &status
	}
	switch {
	case err != nil:
		msg := err.Error()
		record.LastError = &msg
		s.log.Warn().Err(err).Str("session_id", txn.ID.String()).Msg("notification: delivery failed")
	default:
		record.Status = domain.NotificationStatusDelivered
		s.log.Info().Str("session_id", txn.ID.String()).Int("status", status).Msg("notification: delivered")
	}

	if err := s.deliveryRepo.Create(ctx, record); err != nil {
		s.log.Error().Err(err).Str("session_id", txn.ID.String()).Msg("notification: failed to record delivery")
	}
}

func (s *notificationService) post(ctx context.Context, url string, body []byte, signature string) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(NotificationSignatureHeader, signature)
	req.Header.Set(NotificationEventHeader, domain.NotificationEventType)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		return resp.StatusCode, fmt.Errorf("merchant responded %d: %s", resp.StatusCode, bytes.TrimSpace(snippet))
	}
	return resp.StatusCode, nil
}

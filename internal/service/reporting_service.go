package service

import (
	"context"
	"fmt"

	"flowkora/internal/core/domain"
	"flowkora/internal/core/ports"
	"flowkora/pkg/apperror"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// reportingService implements ports.ReportingService.
type reportingService struct {
	txRepo ports.TransactionRepository
}

// NewReportingService creates a new reporting service.
func NewReportingService(txRepo ports.TransactionRepository) ports.ReportingService {
	return &reportingService{txRepo: txRepo}
}

// GetDashboardStats returns per-status counts and confirmed volume. Every
// supported currency appears in the volume map, zero if nothing settled.
func (s *reportingService) GetDashboardStats(ctx context.Context, merchantID uuid.UUID) (*ports.TransactionStats, error) {
	stats, err := s.txRepo.GetStats(ctx, merchantID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get stats: %w", err))
	}
	if stats.ConfirmedVolume == nil {
		stats.ConfirmedVolume = make(map[domain.Currency]decimal.Decimal, len(domain.SupportedCurrencies))
	}
	for _, c := range domain.SupportedCurrencies {
		if _, ok := stats.ConfirmedVolume[c]; !ok {
			stats.ConfirmedVolume[c] = decimal.Zero
		}
	}
	return stats, nil
}

// ListTransactions returns a page of the merchant's sessions, newest first.
func (s *reportingService) ListTransactions(ctx context.Context, params ports.TransactionListParams) ([]domain.Transaction, int64, error) {
	if params.Page < 1 {
		params.Page = 1
	}
	switch {
	case params.PageSize < 1:
		params.PageSize = DefaultPageSize
	case params.PageSize > MaxPageSize:
		params.PageSize = MaxPageSize
	}
	if params.Status != nil && *params.Status != domain.TransactionStatusPending &&
		*params.Status != domain.TransactionStatusConfirmed && *params.Status != domain.TransactionStatusFailed {
		return nil, 0, apperror.Validation("status must be pending, confirmed or failed")
	}
	if params.Currency != nil && !params.Currency.IsValid() {
		return nil, 0, apperror.Validation("currency must be one of USDC, USDT, DAI")
	}

	txns, total, err := s.txRepo.List(ctx, params)
	if err != nil {
		return nil, 0, apperror.InternalError(fmt.Errorf("list transactions: %w", err))
	}
	return txns, total, nil
}

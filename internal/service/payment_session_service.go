package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"flowkora/internal/core/domain"
	"flowkora/internal/core/ports"
	"flowkora/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

var txHashPattern = regexp.MustCompile(`^0x[a-fA-F0-9]{64}$`)

// PaymentSessionConfig holds the settings the session manager needs.
type PaymentSessionConfig struct {
	BaseURL  string
	CacheTTL time.Duration
}

// PaymentSessionServiceImpl implements ports.PaymentSessionService.
type PaymentSessionServiceImpl struct {
	txRepo       ports.TransactionRepository
	merchantRepo ports.MerchantRepository
	cache        ports.SessionCache
	transactor   ports.DBTransactor
	chain        ports.ChainVerifier // nil disables on-chain checks
	notifier     ports.NotificationService
	cfg          PaymentSessionConfig
	now          func() time.Time
	log          zerolog.Logger
}

// NewPaymentSessionService creates a new PaymentSessionServiceImpl.
func NewPaymentSessionService(
	txRepo ports.TransactionRepository,
	merchantRepo ports.MerchantRepository,
	cache ports.SessionCache,
	transactor ports.DBTransactor,
	chain ports.ChainVerifier,
	notifier ports.NotificationService,
	cfg PaymentSessionConfig,
	log zerolog.Logger,
) *PaymentSessionServiceImpl {
	return &PaymentSessionServiceImpl{
		txRepo:       txRepo,
		merchantRepo: merchantRepo,
		cache:        cache,
		transactor:   transactor,
		chain:        chain,
		notifier:     notifier,
		cfg:          cfg,
		now:          func() time.Time { return time.Now().UTC() },
		log:          log,
	}
}

// Create opens a pending session for one merchant order. The merchant's
// payout address is snapshotted only if its ownership was verified.
func (s *PaymentSessionServiceImpl) Create(ctx context.Context, req ports.CreateSessionRequest) (*ports.CreateSessionResponse, error) {
	if err := validateCreateRequest(req); err != nil {
		return nil, err
	}

	merchant, err := s.merchantRepo.GetByID(ctx, req.MerchantID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get merchant: %w", err))
	}
	if merchant == nil {
		return nil, apperror.ErrNotFound("merchant")
	}

	now := s.now()
	txn := &domain.Transaction{
		ID:                          uuid.New(),
		MerchantID:                  req.MerchantID,
		MerchantOrderID:             strings.TrimSpace(req.OrderID),
		Amount:                      req.Amount,
		Currency:                    req.Currency,
		CustomerEmail:               req.CustomerEmail,
		CallbackURL:                 req.CallbackURL,
		Status:                      domain.TransactionStatusPending,
		MerchantPayoutWalletAddress: merchant.VerifiedPayoutAddress(),
		CreatedAt:                   now,
		UpdatedAt:                   now,
	}

	if err := s.txRepo.Create(ctx, txn); err != nil {
		if errors.Is(err, domain.ErrDuplicateOrderID) {
			return nil, apperror.ErrDuplicateOrderID()
		}
		return nil, apperror.InternalError(fmt.Errorf("create payment session: %w", err))
	}

	s.log.Info().
		Str("session_id", txn.ID.String()).
		Str("merchant_id", req.MerchantID.String()).
		Str("order_id", txn.MerchantOrderID).
		Str("amount", txn.Amount.String()).
		Str("currency", string(txn.Currency)).
		Bool("has_payout_address", txn.MerchantPayoutWalletAddress != nil).
		Msg("payment session created")

	return &ports.CreateSessionResponse{
		PaymentURL:       strings.TrimRight(s.cfg.BaseURL, "/") + "/pay/" + txn.ID.String(),
		PaymentSessionID: txn.ID,
	}, nil
}

// FetchPublic returns the checkout view of a session. Public fields never
// change after creation, so they are served from cache when possible.
func (s *PaymentSessionServiceImpl) FetchPublic(ctx context.Context, sessionID string) (*ports.PublicSession, error) {
	id, err := uuid.Parse(sessionID)
	if err != nil {
		return nil, apperror.ErrNotFound("payment session")
	}

	if pub := s.cachedSession(ctx, id); pub != nil {
		return pub, nil
	}

	txn, err := s.txRepo.GetByID(ctx, id)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get payment session: %w", err))
	}
	if txn == nil {
		return nil, apperror.ErrNotFound("payment session")
	}

	pub := toPublicSession(txn)
	if data, err := json.Marshal(pub); err == nil {
		if err := s.cache.Set(ctx, id.String(), data, s.cfg.CacheTTL); err != nil {
			s.log.Warn().Err(err).Str("session_id", id.String()).Msg("failed to cache payment session")
		}
	}
	return pub, nil
}

// Reconcile applies a payment-status report from the chain watcher.
// Only pending sessions move; repeating the applied transition is a no-op.
func (s *PaymentSessionServiceImpl) Reconcile(ctx context.Context, req ports.ReconcileRequest) (*ports.ReconcileResult, error) {
	if req.Status != domain.TransactionStatusConfirmed && req.Status != domain.TransactionStatusFailed {
		return nil, apperror.Validation("status must be confirmed or failed")
	}
	if !txHashPattern.MatchString(req.TxHash) {
		return nil, apperror.Validation("txHash must be a 0x-prefixed 32-byte hex hash")
	}
	txHash := strings.ToLower(req.TxHash)

	// Replays and unknown ids are answered before the chain check and the
	// row lock.
	current, err := s.txRepo.GetByID(ctx, req.SessionID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get payment session: %w", err))
	}
	if current == nil {
		return nil, apperror.ErrNotFound("payment session")
	}
	if res, done, err := checkReconcile(current, req.Status, txHash); done {
		return res, err
	}

	if s.chain != nil && req.Status == domain.TransactionStatusConfirmed {
		if err := s.chain.VerifyTransfer(ctx, current, txHash); err != nil {
			s.log.Warn().Err(err).
				Str("session_id", req.SessionID.String()).
				Str("tx_hash", txHash).
				Msg("on-chain verification failed")
			return nil, err
		}
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	locked, err := s.txRepo.GetByIDForUpdate(ctx, dbTx, req.SessionID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("lock payment session: %w", err))
	}
	if locked == nil {
		return nil, apperror.ErrNotFound("payment session")
	}
	if res, done, err := checkReconcile(locked, req.Status, txHash); done {
		return res, err
	}

	now := s.now()
	if err := s.txRepo.UpdateStatus(ctx, dbTx, locked.ID, req.Status, txHash, now); err != nil {
		if errors.Is(err, domain.ErrAlreadyReconciled) {
			return nil, apperror.ErrAlreadyReconciled()
		}
		if errors.Is(err, domain.ErrTxHashInUse) {
			s.log.Warn().
				Str("session_id", locked.ID.String()).
				Str("tx_hash", txHash).
				Msg("tx hash already settled another session")
			return nil, apperror.ErrTxHashReused()
		}
		return nil, apperror.InternalError(fmt.Errorf("update payment session: %w", err))
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	locked.Status = req.Status
	locked.TxHash = &txHash
	locked.ReconciledAt = &now
	locked.UpdatedAt = now

	s.log.Info().
		Str("session_id", locked.ID.String()).
		Str("merchant_id", locked.MerchantID.String()).
		Str("status", string(locked.Status)).
		Str("tx_hash", txHash).
		Msg("payment session reconciled")

	if s.notifier != nil {
		if err := s.notifier.NotifySessionUpdated(ctx, locked); err != nil {
			s.log.Warn().Err(err).Str("session_id", locked.ID.String()).Msg("merchant notification not sent")
		}
	}

	return &ports.ReconcileResult{
		PaymentSessionID: locked.ID,
		Status:           locked.Status,
		TxHash:           txHash,
	}, nil
}

// checkReconcile maps the state machine decision onto a result. done is
// false only when the transition must be written.
func checkReconcile(txn *domain.Transaction, to domain.TransactionStatus, txHash string) (*ports.ReconcileResult, bool, error) {
	transition, err := txn.CheckTransition(to, txHash)
	switch {
	case errors.Is(err, domain.ErrAlreadyReconciled):
		return nil, true, apperror.ErrAlreadyReconciled()
	case err != nil:
		return nil, true, apperror.Validation(err.Error())
	case transition == domain.TransitionNoop:
		return &ports.ReconcileResult{
			PaymentSessionID:  txn.ID,
			Status:            txn.Status,
			TxHash:            *txn.TxHash,
			AlreadyReconciled: true,
		}, true, nil
	}
	return nil, false, nil
}

func (s *PaymentSessionServiceImpl) cachedSession(ctx context.Context, id uuid.UUID) *ports.PublicSession {
	data, err := s.cache.Get(ctx, id.String())
	if err != nil {
		s.log.Warn().Err(err).Str("session_id", id.String()).Msg("session cache read failed, falling through to DB")
		return nil
	}
	if data == nil {
		return nil
	}
	pub := &ports.PublicSession{}
	if err := json.Unmarshal(data, pub); err != nil {
		s.log.Warn().Err(err).Str("session_id", id.String()).Msg("discarding corrupt cached session")
		return nil
	}
	return pub
}

func toPublicSession(txn *domain.Transaction) *ports.PublicSession {
	return &ports.PublicSession{
		PaymentSessionID:            txn.ID,
		Amount:                      json.Number(txn.Amount.String()),
		Currency:                    txn.Currency,
		MerchantOrderID:             txn.MerchantOrderID,
		CustomerEmail:               txn.CustomerEmail,
		CallbackURL:                 txn.CallbackURL,
		MerchantPayoutWalletAddress: txn.MerchantPayoutWalletAddress,
	}
}

func validateCreateRequest(req ports.CreateSessionRequest) error {
	details := map[string]string{}
	if strings.TrimSpace(req.OrderID) == "" {
		details["orderId"] = "is required"
	}
	if !req.Amount.IsPositive() {
		details["amount"] = "must be greater than zero"
	} else if -req.Amount.Exponent() > domain.MaxAmountScale {
		details["amount"] = fmt.Sprintf("must have at most %d decimal places", domain.MaxAmountScale)
	}
	if !req.Currency.IsValid() {
		details["currency"] = "must be one of USDC, USDT, DAI"
	}
	if !isAbsoluteURL(req.CallbackURL, "http", "https") {
		details["callbackUrl"] = "must be an absolute http(s) URL"
	}
	if len(details) > 0 {
		return apperror.Validation("invalid payment session request").WithDetails(details)
	}
	return nil
}

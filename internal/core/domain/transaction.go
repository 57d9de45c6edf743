package domain

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Currency is a supported stablecoin.
type Currency string

const (
	CurrencyUSDC Currency = "USDC"
	CurrencyUSDT Currency = "USDT"
	CurrencyDAI  Currency = "DAI"
)

// SupportedCurrencies lists every accepted settlement currency.
var SupportedCurrencies = []Currency{CurrencyUSDC, CurrencyUSDT, CurrencyDAI}

// IsValid reports whether c is a supported currency.
func (c Currency) IsValid() bool {
	for _, s := range SupportedCurrencies {
		if c == s {
			return true
		}
	}
	return false
}

// TransactionStatus is the lifecycle state of a payment session.
type TransactionStatus string

const (
	TransactionStatusPending   TransactionStatus = "pending"
	TransactionStatusConfirmed TransactionStatus = "confirmed"
	TransactionStatusFailed    TransactionStatus = "failed"
)

// MaxAmountScale is the number of fractional digits an amount may carry.
const MaxAmountScale = 18

var (
	// ErrDuplicateOrderID is returned when (merchant, order id) already exists.
	ErrDuplicateOrderID = errors.New("duplicate merchant order id")
	// ErrAlreadyReconciled is returned for a transition out of a terminal state.
	ErrAlreadyReconciled = errors.New("payment session already reconciled")
	// ErrInvalidTransition is returned when the target status is not terminal.
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrTxHashInUse is returned when the hash already settled another session.
	ErrTxHashInUse = errors.New("tx hash already bound to another payment session")
)

// Transaction is a payment session: one customer checkout for one order.
// Its ID doubles as the public session token.
type Transaction struct {
	ID                          uuid.UUID         `json:"id"`
	MerchantID                  uuid.UUID         `json:"merchant_id"`
	MerchantOrderID             string            `json:"merchant_order_id"`
	Amount                      decimal.Decimal   `json:"amount"`
	Currency                    Currency          `json:"currency"`
	CustomerEmail               *string           `json:"customer_email,omitempty"`
	CallbackURL                 string            `json:"callback_url"`
	Status                      TransactionStatus `json:"status"`
	TxHash                      *string           `json:"tx_hash,omitempty"`
	MerchantPayoutWalletAddress *string           `json:"merchant_payout_wallet_address,omitempty"`
	CreatedAt                   time.Time         `json:"created_at"`
	UpdatedAt                   time.Time         `json:"updated_at"`
	ReconciledAt                *time.Time        `json:"reconciled_at,omitempty"`
}

// IsTerminal returns true if the session can no longer change state.
func (t *Transaction) IsTerminal() bool {
	return t.Status == TransactionStatusConfirmed ||
		t.Status == TransactionStatusFailed
}

// Transition is the outcome of a reconciliation against the current state.
type Transition int

const (
	// TransitionApply means the new status must be written.
	TransitionApply Transition = iota
	// TransitionNoop means the exact same transition was already applied.
	TransitionNoop
)

// CheckTransition decides whether moving to status with txHash is allowed.
// pending may move to confirmed or failed once. Repeating the transition
// that was already applied is a no-op; anything else out of a terminal
// state is rejected.
func (t *Transaction) CheckTransition(to TransactionStatus, txHash string) (Transition, error) {
	if to != TransactionStatusConfirmed && to != TransactionStatusFailed {
		return 0, ErrInvalidTransition
	}
	if !t.IsTerminal() {
		return TransitionApply, nil
	}
	if t.Status == to && t.TxHash != nil && strings.EqualFold(*t.TxHash, txHash) {
		return TransitionNoop, nil
	}
	return 0, ErrAlreadyReconciled
}

package apperror

import (
	"fmt"
	"net/http"
)

// AppError is a structured error that maps to HTTP responses.
type AppError struct {
	Code       string            `json:"error_code"`
	Message    string            `json:"error"`
	HTTPStatus int               `json:"-"`
	Details    map[string]string `json:"details,omitempty"`
	Err        error             `json:"-"` // wrapped internal error, never sent to clients
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// WithDetails returns a copy of the error carrying per-field details.
func (e *AppError) WithDetails(details map[string]string) *AppError {
	cp := *e
	cp.Details = details
	return &cp
}

// New creates a new AppError.
func New(code string, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
	}
}

// Wrap wraps an internal error with an AppError.
func Wrap(code string, message string, httpStatus int, err error) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Err:        err,
	}
}

// ---- Authentication (AUTH) ----

func ErrUnauthorized() *AppError {
	return New("AUTH_001", "Unauthorized", http.StatusUnauthorized)
}

// ---- Validation (VAL) ----

// Validation returns a VAL_001 error with the given message.
func Validation(message string) *AppError {
	return New("VAL_001", message, http.StatusBadRequest)
}

// ---- Payment sessions (PAY) ----

func ErrDuplicateOrderID() *AppError {
	return New("PAY_001", "A payment session for this Order ID already exists.", http.StatusConflict)
}

func ErrNotFound(entity string) *AppError {
	return New("PAY_002", fmt.Sprintf("%s not found", entity), http.StatusNotFound)
}

func ErrAlreadyReconciled() *AppError {
	return New("PAY_003", "Payment session has already been reconciled", http.StatusConflict)
}

func ErrChainVerificationFailed(reason string) *AppError {
	return New("PAY_004", "On-chain verification failed: "+reason, http.StatusUnprocessableEntity)
}

func ErrTxHashReused() *AppError {
	return New("PAY_005", "Transaction hash is already bound to another payment session", http.StatusConflict)
}

// ---- Wallet ownership (WAL) ----

func ErrInvalidChallenge() *AppError {
	return New("WAL_001", "Challenge is invalid, expired or already used", http.StatusBadRequest)
}

func ErrInvalidWalletSignature() *AppError {
	return New("WAL_002", "Invalid signature", http.StatusBadRequest)
}

// ---- Webhook security (SEC) ----

func ErrInvalidSignature() *AppError {
	return New("SEC_001", "Invalid webhook signature", http.StatusUnauthorized)
}

func ErrTimestampExpired() *AppError {
	return New("SEC_002", "Request timestamp expired", http.StatusForbidden)
}

func ErrNonceUsed() *AppError {
	return New("SEC_003", "Nonce has already been used", http.StatusForbidden)
}

// ---- Rate Limiting (RATE) ----

func ErrRateLimitExceeded() *AppError {
	return New("RATE_001", "Rate limit exceeded", http.StatusTooManyRequests)
}

// ---- System & Infrastructure (SYS) ----

// InternalError wraps an upstream failure (store, cache, signer) as SYS_001.
func InternalError(err error) *AppError {
	return Wrap("SYS_001", "Internal server error", http.StatusInternalServerError, err)
}

func ErrEncryptionFailure(err error) *AppError {
	return Wrap("SYS_002", "Encryption service failure", http.StatusInternalServerError, err)
}

func ErrRequestTimeout() *AppError {
	return New("SYS_003", "Request timed out", http.StatusServiceUnavailable)
}

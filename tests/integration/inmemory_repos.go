package integration

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"flowkora/internal/core/domain"
	"flowkora/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
)

// --- In-Memory Merchant Repo ---

type inMemoryMerchantRepo struct {
	mu        sync.RWMutex
	merchants map[uuid.UUID]*domain.Merchant
}

func newInMemoryMerchantRepo() *inMemoryMerchantRepo {
	return &inMemoryMerchantRepo{merchants: make(map[uuid.UUID]*domain.Merchant)}
}

func (r *inMemoryMerchantRepo) EnsureExists(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.merchants[id]; !ok {
		now := time.Now().UTC()
		r.merchants[id] = &domain.Merchant{ID: id, CreatedAt: now, UpdatedAt: now}
	}
	return nil
}

func (r *inMemoryMerchantRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Merchant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.merchants[id]
	if !ok {
		return nil, nil
	}
	cp := *m
	return &cp, nil
}

func (r *inMemoryMerchantRepo) UpdateProfile(ctx context.Context, id uuid.UUID, upd ports.ProfileUpdate) (*domain.Merchant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.merchants[id]
	if !ok {
		return nil, nil
	}
	if upd.PayoutWalletAddress != nil {
		next := nullIfEmpty(*upd.PayoutWalletAddress)
		if !sameOptional(next, m.PayoutWalletAddress) {
			m.IsPayoutWalletVerified = false
		}
		m.PayoutWalletAddress = next
	}
	if upd.WebhookURL != nil {
		m.WebhookURL = nullIfEmpty(*upd.WebhookURL)
	}
	m.UpdatedAt = time.Now().UTC()
	cp := *m
	return &cp, nil
}

func (r *inMemoryMerchantRepo) SetVerifiedPayoutWallet(ctx context.Context, id uuid.UUID, address string) (*domain.Merchant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.merchants[id]
	if !ok {
		return nil, nil
	}
	m.PayoutWalletAddress = &address
	m.IsPayoutWalletVerified = true
	m.UpdatedAt = time.Now().UTC()
	cp := *m
	return &cp, nil
}

func (r *inMemoryMerchantRepo) UpdateWebhookSecret(ctx context.Context, id uuid.UUID, secretEnc string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.merchants[id]
	if !ok {
		return fmt.Errorf("merchant not found: %s", id)
	}
	m.WebhookSecretEnc = &secretEnc
	return nil
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func sameOptional(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// --- In-Memory API Key Repo ---

type inMemoryAPIKeyRepo struct {
	mu   sync.RWMutex
	keys map[uuid.UUID]*domain.APIKey
}

func newInMemoryAPIKeyRepo() *inMemoryAPIKeyRepo {
	return &inMemoryAPIKeyRepo{keys: make(map[uuid.UUID]*domain.APIKey)}
}

func (r *inMemoryAPIKeyRepo) Create(ctx context.Context, key *domain.APIKey) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *key
	r.keys[key.ID] = &cp
	return nil
}

func (r *inMemoryAPIKeyRepo) ListByMerchant(ctx context.Context, merchantID uuid.UUID) ([]domain.APIKey, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []domain.APIKey
	for _, k := range r.keys {
		if k.MerchantID == merchantID {
			out = append(out, *k)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *inMemoryAPIKeyRepo) GetByID(ctx context.Context, merchantID, id uuid.UUID) (*domain.APIKey, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	k, ok := r.keys[id]
	if !ok || k.MerchantID != merchantID {
		return nil, nil
	}
	cp := *k
	return &cp, nil
}

func (r *inMemoryAPIKeyRepo) GetByHash(ctx context.Context, keyHash string) (*domain.APIKey, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, k := range r.keys {
		if k.KeyHash == keyHash {
			cp := *k
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *inMemoryAPIKeyRepo) Update(ctx context.Context, key *domain.APIKey) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	k, ok := r.keys[key.ID]
	if !ok || k.MerchantID != key.MerchantID {
		return false, nil
	}
	k.Name = key.Name
	if k.Status != domain.APIKeyStatusRevoked {
		k.Status = key.Status
	}
	key.Status = k.Status
	return true, nil
}

func (r *inMemoryAPIKeyRepo) Revoke(ctx context.Context, merchantID, id uuid.UUID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	k, ok := r.keys[id]
	if !ok || k.MerchantID != merchantID {
		return false, nil
	}
	k.Status = domain.APIKeyStatusRevoked
	return true, nil
}

func (r *inMemoryAPIKeyRepo) TouchLastUsed(ctx context.Context, id uuid.UUID, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if k, ok := r.keys[id]; ok {
		k.LastUsedAt = &at
	}
	return nil
}

// --- In-Memory Transaction Repo ---

type inMemoryTransactionRepo struct {
	mu   sync.RWMutex
	txns map[uuid.UUID]*domain.Transaction
}

func newInMemoryTransactionRepo() *inMemoryTransactionRepo {
	return &inMemoryTransactionRepo{txns: make(map[uuid.UUID]*domain.Transaction)}
}

func (r *inMemoryTransactionRepo) Create(ctx context.Context, t *domain.Transaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.txns {
		if existing.MerchantID == t.MerchantID && existing.MerchantOrderID == t.MerchantOrderID {
			return domain.ErrDuplicateOrderID
		}
	}
	cp := *t
	r.txns[t.ID] = &cp
	return nil
}

func (r *inMemoryTransactionRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Transaction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.txns[id]
	if !ok {
		return nil, nil
	}
	cp := *t
	return &cp, nil
}

// GetByIDForUpdate relies on inMemoryTransactor serializing transactions.
func (r *inMemoryTransactionRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Transaction, error) {
	return r.GetByID(ctx, id)
}

func (r *inMemoryTransactionRepo) UpdateStatus(ctx context.Context, tx pgx.Tx, id uuid.UUID, status domain.TransactionStatus, txHash string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.txns[id]
	if !ok || t.Status != domain.TransactionStatusPending {
		return domain.ErrAlreadyReconciled
	}
	for otherID, other := range r.txns {
		if otherID != id && other.TxHash != nil && strings.EqualFold(*other.TxHash, txHash) {
			return domain.ErrTxHashInUse
		}
	}
	t.Status = status
	t.TxHash = &txHash
	t.ReconciledAt = &at
	t.UpdatedAt = at
	return nil
}

func (r *inMemoryTransactionRepo) List(ctx context.Context, params ports.TransactionListParams) ([]domain.Transaction, int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var filtered []domain.Transaction
	for _, t := range r.txns {
		if t.MerchantID != params.MerchantID {
			continue
		}
		if params.Status != nil && t.Status != *params.Status {
			continue
		}
		if params.Currency != nil && t.Currency != *params.Currency {
			continue
		}
		filtered = append(filtered, *t)
	}
	sort.Slice(filtered, func(i, j int) bool { return filtered[i].CreatedAt.After(filtered[j].CreatedAt) })

	total := int64(len(filtered))
	start := (params.Page - 1) * params.PageSize
	if start >= len(filtered) {
		return []domain.Transaction{}, total, nil
	}
	end := start + params.PageSize
	if end > len(filtered) {
		end = len(filtered)
	}
	return filtered[start:end], total, nil
}

func (r *inMemoryTransactionRepo) GetStats(ctx context.Context, merchantID uuid.UUID) (*ports.TransactionStats, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stats := &ports.TransactionStats{ConfirmedVolume: make(map[domain.Currency]decimal.Decimal)}
	for _, t := range r.txns {
		if t.MerchantID != merchantID {
			continue
		}
		stats.TotalSessions++
		switch t.Status {
		case domain.TransactionStatusPending:
			stats.Pending++
		case domain.TransactionStatusConfirmed:
			stats.Confirmed++
			stats.ConfirmedVolume[t.Currency] = stats.ConfirmedVolume[t.Currency].Add(t.Amount)
		case domain.TransactionStatusFailed:
			stats.Failed++
		}
	}
	return stats, nil
}

// --- In-Memory Audit and Notification Repos ---

type inMemoryAuditRepo struct {
	mu   sync.Mutex
	logs []domain.AuditLog
}

func (r *inMemoryAuditRepo) Create(ctx context.Context, log *domain.AuditLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logs = append(r.logs, *log)
	return nil
}

func (r *inMemoryAuditRepo) actions() []domain.AuditAction {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.AuditAction, 0, len(r.logs))
	for _, l := range r.logs {
		out = append(out, l.Action)
	}
	return out
}

type inMemoryNotificationRepo struct {
	mu         sync.Mutex
	deliveries []domain.NotificationDelivery
}

func (r *inMemoryNotificationRepo) Create(ctx context.Context, d *domain.NotificationDelivery) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deliveries = append(r.deliveries, *d)
	return nil
}

func (r *inMemoryNotificationRepo) ListByTransaction(ctx context.Context, txID uuid.UUID) ([]domain.NotificationDelivery, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.NotificationDelivery
	for _, d := range r.deliveries {
		if d.TransactionID == txID {
			out = append(out, d)
		}
	}
	return out, nil
}

// --- In-Memory Transactor ---

// inMemoryTransactor runs one transaction at a time, standing in for the
// row lock taken by SELECT ... FOR UPDATE.
type inMemoryTransactor struct {
	mu sync.Mutex
}

func newInMemoryTransactor() *inMemoryTransactor {
	return &inMemoryTransactor{}
}

func (t *inMemoryTransactor) Begin(ctx context.Context) (pgx.Tx, error) {
	t.mu.Lock()
	return &serialTx{release: t.mu.Unlock}, nil
}

// serialTx is a pgx.Tx that only releases the transactor lock.
type serialTx struct {
	once    sync.Once
	release func()
}

func (t *serialTx) end() { t.once.Do(t.release) }

func (t *serialTx) Begin(ctx context.Context) (pgx.Tx, error) { return t, nil }
func (t *serialTx) Commit(ctx context.Context) error          { t.end(); return nil }
func (t *serialTx) Rollback(ctx context.Context) error        { t.end(); return nil }
func (t *serialTx) CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error) {
	return 0, nil
}
func (t *serialTx) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults { return nil }
func (t *serialTx) LargeObjects() pgx.LargeObjects                               { return pgx.LargeObjects{} }
func (t *serialTx) Prepare(ctx context.Context, name, sql string) (*pgconn.StatementDescription, error) {
	return nil, nil
}
func (t *serialTx) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	return pgconn.NewCommandTag(""), nil
}
func (t *serialTx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return nil, nil
}
func (t *serialTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return nil
}
func (t *serialTx) Conn() *pgx.Conn { return nil }

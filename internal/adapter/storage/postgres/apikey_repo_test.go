package postgres

import (
	"context"
	"testing"
	"time"

	"flowkora/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAPIKey(merchantID uuid.UUID) *domain.APIKey {
	return &domain.APIKey{
		ID:         uuid.New(),
		MerchantID: merchantID,
		Name:       strPtr("checkout backend"),
		KeyPrefix:  "fk_live_0a1b",
		KeyHash:    "9f86d081884c7d659a2feaa0c55ad015a3bf4f1b2b0b822cd15d6c15b0f00a08",
		Status:     domain.APIKeyStatusActive,
		CreatedAt:  time.Now().UTC().Truncate(time.Microsecond),
	}
}

func apiKeyCols() []string {
	return []string{"id", "merchant_id", "name", "key_prefix", "key_hash", "status", "created_at", "last_used_at", "expires_at"}
}

func apiKeyRow(rows *pgxmock.Rows, k *domain.APIKey) *pgxmock.Rows {
	return rows.AddRow(k.ID, k.MerchantID, k.Name, k.KeyPrefix, k.KeyHash, k.Status, k.CreatedAt, k.LastUsedAt, k.ExpiresAt)
}

func TestAPIKeyRepo_Create(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewAPIKeyRepo(mock)
	k := newTestAPIKey(uuid.New())

	mock.ExpectExec("INSERT INTO api_keys").
		WithArgs(k.ID, k.MerchantID, k.Name, k.KeyPrefix, k.KeyHash, k.Status, k.CreatedAt, k.ExpiresAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	assert.NoError(t, repo.Create(context.Background(), k))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAPIKeyRepo_ListByMerchant(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewAPIKeyRepo(mock)
	merchantID := uuid.New()
	newer := newTestAPIKey(merchantID)
	older := newTestAPIKey(merchantID)
	older.CreatedAt = newer.CreatedAt.Add(-time.Hour)
	older.Status = domain.APIKeyStatusRevoked

	rows := pgxmock.NewRows(apiKeyCols())
	apiKeyRow(rows, newer)
	apiKeyRow(rows, older)

	mock.ExpectQuery("SELECT .+ FROM api_keys WHERE merchant_id = \\$1 ORDER BY created_at DESC").
		WithArgs(merchantID).
		WillReturnRows(rows)

	keys, err := repo.ListByMerchant(context.Background(), merchantID)
	require.NoError(t, err)
	require.Len(t, keys, 2)
	assert.Equal(t, newer.ID, keys[0].ID)
	assert.Equal(t, domain.APIKeyStatusRevoked, keys[1].Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAPIKeyRepo_ListByMerchant_Empty(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewAPIKeyRepo(mock)

	mock.ExpectQuery("SELECT .+ FROM api_keys").
		WithArgs(pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows(apiKeyCols()))

	keys, err := repo.ListByMerchant(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.NotNil(t, keys)
	assert.Empty(t, keys)
}

func TestAPIKeyRepo_GetByHash(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewAPIKeyRepo(mock)
	k := newTestAPIKey(uuid.New())

	mock.ExpectQuery("SELECT .+ FROM api_keys WHERE key_hash").
		WithArgs(k.KeyHash).
		WillReturnRows(apiKeyRow(pgxmock.NewRows(apiKeyCols()), k))

	result, err := repo.GetByHash(context.Background(), k.KeyHash)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, k.MerchantID, result.MerchantID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAPIKeyRepo_GetByID_NotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewAPIKeyRepo(mock)

	mock.ExpectQuery("SELECT .+ FROM api_keys WHERE id = \\$1 AND merchant_id = \\$2").
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows(apiKeyCols()))

	result, err := repo.GetByID(context.Background(), uuid.New(), uuid.New())
	assert.NoError(t, err)
	assert.Nil(t, result)
}

func TestAPIKeyRepo_Revoke(t *testing.T) {
	tests := []struct {
		name     string
		affected int64
		want     bool
	}{
		{"owned key", 1, true},
		{"foreign or missing key", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock, err := pgxmock.NewPool()
			require.NoError(t, err)
			defer mock.Close()

			repo := NewAPIKeyRepo(mock)
			merchantID, keyID := uuid.New(), uuid.New()

			mock.ExpectExec("UPDATE api_keys SET status = \\$3 WHERE id = \\$1 AND merchant_id = \\$2").
				WithArgs(keyID, merchantID, domain.APIKeyStatusRevoked).
				WillReturnResult(pgxmock.NewResult("UPDATE", tt.affected))

			found, err := repo.Revoke(context.Background(), merchantID, keyID)
			require.NoError(t, err)
			assert.Equal(t, tt.want, found)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestAPIKeyRepo_Update(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewAPIKeyRepo(mock)
	k := newTestAPIKey(uuid.New())
	k.Name = strPtr("renamed")

	mock.ExpectQuery("UPDATE api_keys").
		WithArgs(k.ID, k.MerchantID, k.Name, k.Status).
		WillReturnRows(pgxmock.NewRows([]string{"status"}).AddRow(domain.APIKeyStatusActive))

	found, err := repo.Update(context.Background(), k)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, domain.APIKeyStatusActive, k.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAPIKeyRepo_Update_RevokedStaysRevoked(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewAPIKeyRepo(mock)
	// Caller read the key while active; a revoke committed before this write.
	k := newTestAPIKey(uuid.New())
	k.Name = strPtr("renamed")

	mock.ExpectQuery(`status = CASE WHEN status = 'revoked' THEN status ELSE \$4 END`).
		WithArgs(k.ID, k.MerchantID, k.Name, domain.APIKeyStatusActive).
		WillReturnRows(pgxmock.NewRows([]string{"status"}).AddRow(domain.APIKeyStatusRevoked))

	found, err := repo.Update(context.Background(), k)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, domain.APIKeyStatusRevoked, k.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAPIKeyRepo_Update_NotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewAPIKeyRepo(mock)
	k := newTestAPIKey(uuid.New())

	mock.ExpectQuery("UPDATE api_keys").
		WithArgs(k.ID, k.MerchantID, k.Name, k.Status).
		WillReturnError(pgx.ErrNoRows)

	found, err := repo.Update(context.Background(), k)
	require.NoError(t, err)
	assert.False(t, found)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAPIKeyRepo_TouchLastUsed(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewAPIKeyRepo(mock)
	id := uuid.New()
	at := time.Now().UTC()

	mock.ExpectExec("UPDATE api_keys SET last_used_at").
		WithArgs(id, at).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	assert.NoError(t, repo.TouchLastUsed(context.Background(), id, at))
	assert.NoError(t, mock.ExpectationsWereMet())
}

package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"flowkora/internal/core/domain"
	"flowkora/internal/core/ports"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func newTestMerchant() *domain.Merchant {
	return &domain.Merchant{
		ID:                     uuid.New(),
		PayoutWalletAddress:    strPtr("0x1111111111111111111111111111111111111111"),
		IsPayoutWalletVerified: true,
		WebhookURL:             strPtr("https://merchant.example.com/hooks"),
		WebhookSecretEnc:       strPtr("deadbeef"),
		CreatedAt:              time.Now().UTC().Truncate(time.Microsecond),
		UpdatedAt:              time.Now().UTC().Truncate(time.Microsecond),
	}
}

func merchantCols() []string {
	return []string{"id", "payout_wallet_address", "is_payout_wallet_verified", "webhook_url", "webhook_secret_enc", "created_at", "updated_at"}
}

func merchantRow(m *domain.Merchant) *pgxmock.Rows {
	return pgxmock.NewRows(merchantCols()).AddRow(
		m.ID, m.PayoutWalletAddress, m.IsPayoutWalletVerified,
		m.WebhookURL, m.WebhookSecretEnc, m.CreatedAt, m.UpdatedAt,
	)
}

func TestMerchantRepo_EnsureExists(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewMerchantRepo(mock)
	id := uuid.New()

	mock.ExpectExec("INSERT INTO merchants .+ ON CONFLICT \\(id\\) DO NOTHING").
		WithArgs(id).
		WillReturnResult(pgxmock.NewResult("INSERT", 0))

	assert.NoError(t, repo.EnsureExists(context.Background(), id))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMerchantRepo_GetByID(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewMerchantRepo(mock)
	m := newTestMerchant()

	mock.ExpectQuery("SELECT .+ FROM merchants WHERE id").
		WithArgs(m.ID).
		WillReturnRows(merchantRow(m))

	result, err := repo.GetByID(context.Background(), m.ID)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, m.ID, result.ID)
	assert.Equal(t, *m.PayoutWalletAddress, *result.PayoutWalletAddress)
	assert.True(t, result.IsPayoutWalletVerified)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMerchantRepo_GetByID_NotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewMerchantRepo(mock)

	mock.ExpectQuery("SELECT .+ FROM merchants WHERE id").
		WithArgs(pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows(merchantCols()))

	result, err := repo.GetByID(context.Background(), uuid.New())
	assert.NoError(t, err)
	assert.Nil(t, result)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMerchantRepo_UpdateProfile(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewMerchantRepo(mock)
	m := newTestMerchant()
	m.IsPayoutWalletVerified = false
	newAddr := "0x2222222222222222222222222222222222222222"
	m.PayoutWalletAddress = &newAddr

	mock.ExpectQuery("UPDATE merchants SET .+is_payout_wallet_verified = CASE.+IS DISTINCT FROM payout_wallet_address THEN FALSE.+RETURNING").
		WithArgs(m.ID, true, newAddr, false, "").
		WillReturnRows(merchantRow(m))

	result, err := repo.UpdateProfile(context.Background(), m.ID, ports.ProfileUpdate{PayoutWalletAddress: &newAddr})
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, newAddr, *result.PayoutWalletAddress)
	assert.False(t, result.IsPayoutWalletVerified)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMerchantRepo_UpdateProfile_ClearWebhook(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewMerchantRepo(mock)
	m := newTestMerchant()
	m.WebhookURL = nil
	empty := ""

	mock.ExpectQuery("UPDATE merchants SET").
		WithArgs(m.ID, false, "", true, "").
		WillReturnRows(merchantRow(m))

	result, err := repo.UpdateProfile(context.Background(), m.ID, ports.ProfileUpdate{WebhookURL: &empty})
	require.NoError(t, err)
	assert.Nil(t, result.WebhookURL)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMerchantRepo_UpdateProfile_DBError(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewMerchantRepo(mock)
	url := "https://x.example.com"

	mock.ExpectQuery("UPDATE merchants SET").
		WithArgs(pgxmock.AnyArg(), false, "", true, url).
		WillReturnError(errors.New("connection reset"))

	_, err = repo.UpdateProfile(context.Background(), uuid.New(), ports.ProfileUpdate{WebhookURL: &url})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "update merchant profile")
}

func TestMerchantRepo_SetVerifiedPayoutWallet(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewMerchantRepo(mock)
	m := newTestMerchant()

	mock.ExpectQuery("UPDATE merchants\\s+SET payout_wallet_address = \\$2, is_payout_wallet_verified = TRUE").
		WithArgs(m.ID, *m.PayoutWalletAddress).
		WillReturnRows(merchantRow(m))

	result, err := repo.SetVerifiedPayoutWallet(context.Background(), m.ID, *m.PayoutWalletAddress)
	require.NoError(t, err)
	assert.True(t, result.IsPayoutWalletVerified)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMerchantRepo_UpdateWebhookSecret(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewMerchantRepo(mock)
	id := uuid.New()

	mock.ExpectExec("UPDATE merchants SET webhook_secret_enc").
		WithArgs(id, "enc-secret").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	assert.NoError(t, repo.UpdateWebhookSecret(context.Background(), id, "enc-secret"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMerchantRepo_UpdateWebhookSecret_NotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewMerchantRepo(mock)

	mock.ExpectExec("UPDATE merchants SET webhook_secret_enc").
		WithArgs(pgxmock.AnyArg(), "enc-secret").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err = repo.UpdateWebhookSecret(context.Background(), uuid.New(), "enc-secret")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "merchant not found")
}

package postgres

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"flowkora/config"
	"flowkora/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPool_InvalidDSN(t *testing.T) {
	cfg := config.DatabaseConfig{Host: "localhost", Port: 5432, User: "u", Password: "p", DBName: "d", SSLMode: "bogus"}

	_, err := NewPool(context.Background(), cfg, zerolog.Nop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse database dsn")
}

func TestApplyPoolLimits(t *testing.T) {
	cfg := config.DatabaseConfig{Host: "localhost", Port: 5432, User: "u", Password: "p", DBName: "d", SSLMode: "disable"}

	t.Run("configured bounds", func(t *testing.T) {
		poolCfg, err := pgxpool.ParseConfig(cfg.DSN())
		require.NoError(t, err)

		c := cfg
		c.MaxConns, c.MinConns, c.ConnMaxLifetime = 8, 2, time.Hour
		applyPoolLimits(poolCfg, c)

		assert.Equal(t, int32(8), poolCfg.MaxConns)
		assert.Equal(t, int32(2), poolCfg.MinConns)
		assert.Equal(t, time.Hour, poolCfg.MaxConnLifetime)
		assert.Equal(t, "flowkora", poolCfg.ConnConfig.RuntimeParams["application_name"])
	})

	t.Run("min above max is ignored", func(t *testing.T) {
		poolCfg, err := pgxpool.ParseConfig(cfg.DSN())
		require.NoError(t, err)

		c := cfg
		c.MaxConns, c.MinConns = 4, 10
		applyPoolLimits(poolCfg, c)

		assert.Equal(t, int32(4), poolCfg.MaxConns)
		assert.Equal(t, int32(0), poolCfg.MinConns)
	})
}

func TestHealthCheck(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	hc := NewHealthCheck(mock)
	assert.Equal(t, "postgres", hc.Name())

	mock.ExpectPing()
	assert.NoError(t, hc.Ping(context.Background()))

	mock.ExpectPing().WillReturnError(errors.New("down"))
	assert.Error(t, hc.Ping(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactor_Begin(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBeginTx(pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	mock.ExpectRollback()

	tr := NewTransactor(mock)
	tx, err := tr.Begin(context.Background())
	require.NoError(t, err)
	require.NoError(t, tx.Rollback(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactor_BeginError(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBeginTx(pgx.TxOptions{IsoLevel: pgx.ReadCommitted}).WillReturnError(errors.New("too many connections"))

	_, err = NewTransactor(mock).Begin(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "begin transaction")
}

func TestMigrate(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS merchants").WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectCommit()

	require.NoError(t, Migrate(context.Background(), mock))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMigrate_RollsBackOnError(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectExec("CREATE TABLE").WillReturnError(errors.New("permission denied"))
	mock.ExpectRollback()

	err = Migrate(context.Background(), mock)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "apply schema")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSchema_DeclaresConstraints(t *testing.T) {
	s := Schema()
	for _, want := range []string{
		"UNIQUE (merchant_id, merchant_order_id)",
		"CHECK (amount > 0)",
		"CHECK (status IN ('active', 'revoked'))",
		"CREATE TABLE IF NOT EXISTS notification_deliveries",
		"ON transactions (lower(tx_hash)) WHERE tx_hash IS NOT NULL",
	} {
		assert.True(t, strings.Contains(s, want), "schema should contain %q", want)
	}
}

func TestAuditRepo_Create(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	merchantID := uuid.New()
	entry := &domain.AuditLog{
		ID:           uuid.New(),
		MerchantID:   &merchantID,
		Action:       domain.AuditActionIssueAPIKey,
		ResourceType: "api_key",
		IPAddress:    "10.0.0.1",
		CreatedAt:    time.Now().UTC(),
	}

	mock.ExpectExec("INSERT INTO audit_logs").
		WithArgs(entry.ID, entry.MerchantID, "ISSUE_API_KEY", "api_key", "", "", "10.0.0.1", entry.CreatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	assert.NoError(t, NewAuditRepo(mock).Create(context.Background(), entry))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNotificationRepo_CreateAndList(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewNotificationRepo(mock)
	status := 200
	d := &domain.NotificationDelivery{
		ID:            uuid.New(),
		TransactionID: uuid.New(),
		MerchantID:    uuid.New(),
		WebhookURL:    "https://merchant.example.com/hooks",
		Payload:       `{"event_type":"payment_session.updated"}`,
		HTTPStatus:    &status,
		Status:        domain.NotificationStatusDelivered,
		CreatedAt:     time.Now().UTC().Truncate(time.Microsecond),
	}

	mock.ExpectExec("INSERT INTO notification_deliveries").
		WithArgs(d.ID, d.TransactionID, d.MerchantID, d.WebhookURL, d.Payload, d.HTTPStatus, "delivered", d.LastError, d.CreatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	require.NoError(t, repo.Create(context.Background(), d))

	mock.ExpectQuery("SELECT .+ FROM notification_deliveries").
		WithArgs(d.TransactionID).
		WillReturnRows(pgxmock.NewRows([]string{"id", "transaction_id", "merchant_id", "webhook_url", "payload", "http_status", "status", "last_error", "created_at"}).
			AddRow(d.ID, d.TransactionID, d.MerchantID, d.WebhookURL, d.Payload, d.HTTPStatus, "delivered", d.LastError, d.CreatedAt))

	out, err := repo.ListByTransaction(context.Background(), d.TransactionID)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, domain.NotificationStatusDelivered, out[0].Status)
	assert.Equal(t, 200, *out[0].HTTPStatus)
	assert.NoError(t, mock.ExpectationsWereMet())
}

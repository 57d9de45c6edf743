package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"flowkora/internal/core/domain"
	"flowkora/internal/core/ports"
	"flowkora/internal/core/ports/mocks"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func setupAPIKeyService(t *testing.T) (*APIKeyServiceImpl, *mocks.MockAPIKeyRepository, *gomock.Controller) {
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockAPIKeyRepository(ctrl)
	svc := NewAPIKeyService(repo, newTestLogger())
	svc.now = func() time.Time { return fixedNow }
	return svc, repo, ctrl
}

func TestAPIKeyService_Issue_Success(t *testing.T) {
	svc, repo, ctrl := setupAPIKeyService(t)
	defer ctrl.Finish()

	ctx := context.Background()
	merchantID := uuid.New()

	var stored *domain.APIKey
	repo.EXPECT().Create(ctx, gomock.Any()).DoAndReturn(func(_ context.Context, k *domain.APIKey) error {
		stored = k
		return nil
	})

	issued, err := svc.Issue(ctx, merchantID, ports.IssueAPIKeyRequest{Name: strPtr("  checkout  ")})
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(issued.Plaintext, "fk_live_"))
	assert.Len(t, issued.Plaintext, len("fk_live_")+48)
	assert.Equal(t, issued.Plaintext[:12], issued.Key.KeyPrefix)
	assert.Equal(t, hashAPIKey(issued.Plaintext), stored.KeyHash)
	assert.Regexp(t, `^[0-9a-f]{64}$`, stored.KeyHash)
	assert.NotContains(t, stored.KeyHash, issued.Plaintext)
	assert.Equal(t, domain.APIKeyStatusActive, stored.Status)
	assert.Equal(t, merchantID, stored.MerchantID)
	assert.Equal(t, "checkout", *stored.Name)
	assert.Equal(t, fixedNow, stored.CreatedAt)
}

func TestAPIKeyService_Issue_KeysAreUnique(t *testing.T) {
	svc, repo, ctrl := setupAPIKeyService(t)
	defer ctrl.Finish()

	repo.EXPECT().Create(gomock.Any(), gomock.Any()).Return(nil).Times(2)

	a, err := svc.Issue(context.Background(), uuid.New(), ports.IssueAPIKeyRequest{})
	require.NoError(t, err)
	b, err := svc.Issue(context.Background(), uuid.New(), ports.IssueAPIKeyRequest{})
	require.NoError(t, err)

	assert.NotEqual(t, a.Plaintext, b.Plaintext)
	assert.Nil(t, a.Key.Name)
}

func TestAPIKeyService_Issue_PastExpiry(t *testing.T) {
	svc, _, ctrl := setupAPIKeyService(t)
	defer ctrl.Finish()

	past := fixedNow.Add(-time.Minute)
	_, err := svc.Issue(context.Background(), uuid.New(), ports.IssueAPIKeyRequest{ExpiresAt: &past})
	assertAppError(t, err, "VAL_001")
}

func TestAPIKeyService_Issue_RepoError(t *testing.T) {
	svc, repo, ctrl := setupAPIKeyService(t)
	defer ctrl.Finish()

	repo.EXPECT().Create(gomock.Any(), gomock.Any()).Return(errors.New("db down"))

	_, err := svc.Issue(context.Background(), uuid.New(), ports.IssueAPIKeyRequest{})
	assertAppError(t, err, "SYS_001")
}

func TestAPIKeyService_Update(t *testing.T) {
	merchantID := uuid.New()
	keyID := uuid.New()
	revoked := domain.APIKeyStatusRevoked
	active := domain.APIKeyStatusActive

	tests := []struct {
		name       string
		current    *domain.APIKey
		req        ports.UpdateAPIKeyRequest
		updateOK   bool
		wantCode   string
		wantStatus domain.APIKeyStatus
	}{
		{
			name:       "rename",
			current:    &domain.APIKey{ID: keyID, MerchantID: merchantID, Status: active},
			req:        ports.UpdateAPIKeyRequest{Name: strPtr("ci")},
			updateOK:   true,
			wantStatus: active,
		},
		{
			name:       "revoke",
			current:    &domain.APIKey{ID: keyID, MerchantID: merchantID, Status: active},
			req:        ports.UpdateAPIKeyRequest{Status: &revoked},
			updateOK:   true,
			wantStatus: revoked,
		},
		{
			name:     "reactivate rejected",
			current:  &domain.APIKey{ID: keyID, MerchantID: merchantID, Status: revoked},
			req:      ports.UpdateAPIKeyRequest{Status: &active},
			wantCode: "VAL_001",
		},
		{
			name:     "not owned",
			current:  nil,
			req:      ports.UpdateAPIKeyRequest{Name: strPtr("x")},
			wantCode: "PAY_002",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, repo, ctrl := setupAPIKeyService(t)
			defer ctrl.Finish()

			repo.EXPECT().GetByID(gomock.Any(), merchantID, keyID).Return(tt.current, nil)
			if tt.wantCode == "" {
				repo.EXPECT().Update(gomock.Any(), gomock.Any()).Return(tt.updateOK, nil)
			}

			key, err := svc.Update(context.Background(), merchantID, keyID, tt.req)
			if tt.wantCode != "" {
				assertAppError(t, err, tt.wantCode)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, key.Status)
		})
	}
}

func TestAPIKeyService_Update_ReportsStoredStatus(t *testing.T) {
	svc, repo, ctrl := setupAPIKeyService(t)
	defer ctrl.Finish()

	merchantID, keyID := uuid.New(), uuid.New()
	repo.EXPECT().GetByID(gomock.Any(), merchantID, keyID).
		Return(&domain.APIKey{ID: keyID, MerchantID: merchantID, Status: domain.APIKeyStatusActive}, nil)
	// The row was revoked after the read; the store keeps it revoked.
	repo.EXPECT().Update(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, k *domain.APIKey) (bool, error) {
			k.Status = domain.APIKeyStatusRevoked
			return true, nil
		})

	key, err := svc.Update(context.Background(), merchantID, keyID, ports.UpdateAPIKeyRequest{Name: strPtr("renamed")})
	require.NoError(t, err)
	assert.Equal(t, domain.APIKeyStatusRevoked, key.Status)
	assert.Equal(t, "renamed", *key.Name)
}

func TestAPIKeyService_Revoke(t *testing.T) {
	svc, repo, ctrl := setupAPIKeyService(t)
	defer ctrl.Finish()

	merchantID, keyID := uuid.New(), uuid.New()

	repo.EXPECT().Revoke(gomock.Any(), merchantID, keyID).Return(true, nil)
	require.NoError(t, svc.Revoke(context.Background(), merchantID, keyID))

	repo.EXPECT().Revoke(gomock.Any(), merchantID, keyID).Return(false, nil)
	assertAppError(t, svc.Revoke(context.Background(), merchantID, keyID), "PAY_002")
}

func TestAPIKeyService_Authenticate(t *testing.T) {
	plaintext := "fk_live_" + strings.Repeat("ab", 24)
	hash := hashAPIKey(plaintext)
	expired := fixedNow.Add(-time.Hour)

	t.Run("active key", func(t *testing.T) {
		svc, repo, ctrl := setupAPIKeyService(t)
		defer ctrl.Finish()

		key := &domain.APIKey{ID: uuid.New(), MerchantID: uuid.New(), Status: domain.APIKeyStatusActive}
		repo.EXPECT().GetByHash(gomock.Any(), hash).Return(key, nil)
		repo.EXPECT().TouchLastUsed(gomock.Any(), key.ID, fixedNow).Return(nil)

		got, err := svc.Authenticate(context.Background(), plaintext)
		require.NoError(t, err)
		assert.Equal(t, key.MerchantID, got.MerchantID)
		require.NotNil(t, got.LastUsedAt)
	})

	t.Run("touch failure does not block", func(t *testing.T) {
		svc, repo, ctrl := setupAPIKeyService(t)
		defer ctrl.Finish()

		key := &domain.APIKey{ID: uuid.New(), Status: domain.APIKeyStatusActive}
		repo.EXPECT().GetByHash(gomock.Any(), hash).Return(key, nil)
		repo.EXPECT().TouchLastUsed(gomock.Any(), key.ID, fixedNow).Return(errors.New("timeout"))

		_, err := svc.Authenticate(context.Background(), plaintext)
		require.NoError(t, err)
	})

	rejected := []struct {
		name string
		key  *domain.APIKey
	}{
		{"unknown", nil},
		{"revoked", &domain.APIKey{ID: uuid.New(), Status: domain.APIKeyStatusRevoked}},
		{"expired", &domain.APIKey{ID: uuid.New(), Status: domain.APIKeyStatusActive, ExpiresAt: &expired}},
	}
	for _, tt := range rejected {
		t.Run(tt.name, func(t *testing.T) {
			svc, repo, ctrl := setupAPIKeyService(t)
			defer ctrl.Finish()

			repo.EXPECT().GetByHash(gomock.Any(), hash).Return(tt.key, nil)

			_, err := svc.Authenticate(context.Background(), plaintext)
			assertAppError(t, err, "AUTH_001")
		})
	}

	t.Run("wrong prefix skips lookup", func(t *testing.T) {
		svc, _, ctrl := setupAPIKeyService(t)
		defer ctrl.Finish()

		_, err := svc.Authenticate(context.Background(), "sk_test_123")
		assertAppError(t, err, "AUTH_001")
	})
}

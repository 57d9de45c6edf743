package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"flowkora/internal/core/domain"
	"flowkora/internal/core/ports"
	"flowkora/internal/core/ports/mocks"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func TestMerchantService_GetProfile(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	repo := mocks.NewMockMerchantRepository(ctrl)
	svc := NewMerchantService(repo, mocks.NewMockEncryptionService(ctrl), newTestLogger())

	merchantID := uuid.New()
	repo.EXPECT().GetByID(gomock.Any(), merchantID).Return(&domain.Merchant{
		ID:                     merchantID,
		PayoutWalletAddress:    strPtr("0x" + strings.Repeat("a", 40)),
		IsPayoutWalletVerified: true,
		WebhookURL:             strPtr("https://shop.example/hook"),
		WebhookSecretEnc:       strPtr("deadbeef"),
	}, nil)

	profile, err := svc.GetProfile(context.Background(), merchantID)
	require.NoError(t, err)
	assert.True(t, profile.IsPayoutWalletVerified)
	assert.True(t, profile.HasWebhookSecret)
	assert.Equal(t, "https://shop.example/hook", *profile.WebhookURL)
}

func TestMerchantService_GetProfile_NotFound(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	repo := mocks.NewMockMerchantRepository(ctrl)
	svc := NewMerchantService(repo, nil, newTestLogger())

	repo.EXPECT().GetByID(gomock.Any(), gomock.Any()).Return(nil, nil)
	_, err := svc.GetProfile(context.Background(), uuid.New())
	assertAppError(t, err, "PAY_002")
}

func TestMerchantService_UpdateProfile_NormalizesAddress(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	repo := mocks.NewMockMerchantRepository(ctrl)
	svc := NewMerchantService(repo, nil, newTestLogger())

	merchantID := uuid.New()
	mixed := "0xABCDEF" + strings.Repeat("0", 34)
	lower := strings.ToLower(mixed)

	repo.EXPECT().UpdateProfile(gomock.Any(), merchantID, gomock.Any()).DoAndReturn(
		func(_ context.Context, _ uuid.UUID, upd ports.ProfileUpdate) (*domain.Merchant, error) {
			assert.Equal(t, lower, *upd.PayoutWalletAddress)
			assert.Nil(t, upd.WebhookURL)
			return &domain.Merchant{ID: merchantID, PayoutWalletAddress: &lower}, nil
		},
	)

	profile, err := svc.UpdateProfile(context.Background(), merchantID, ports.ProfileUpdate{PayoutWalletAddress: &mixed})
	require.NoError(t, err)
	assert.False(t, profile.IsPayoutWalletVerified)
}

func TestMerchantService_UpdateProfile_EmptyIsNoop(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	repo := mocks.NewMockMerchantRepository(ctrl)
	svc := NewMerchantService(repo, nil, newTestLogger())

	merchantID := uuid.New()
	repo.EXPECT().GetByID(gomock.Any(), merchantID).Return(&domain.Merchant{ID: merchantID}, nil)

	_, err := svc.UpdateProfile(context.Background(), merchantID, ports.ProfileUpdate{})
	require.NoError(t, err)
}

func TestMerchantService_UpdateProfile_ClearsFields(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	repo := mocks.NewMockMerchantRepository(ctrl)
	svc := NewMerchantService(repo, nil, newTestLogger())

	merchantID := uuid.New()
	empty := ""
	repo.EXPECT().UpdateProfile(gomock.Any(), merchantID, ports.ProfileUpdate{PayoutWalletAddress: &empty, WebhookURL: &empty}).
		Return(&domain.Merchant{ID: merchantID}, nil)

	profile, err := svc.UpdateProfile(context.Background(), merchantID, ports.ProfileUpdate{PayoutWalletAddress: &empty, WebhookURL: &empty})
	require.NoError(t, err)
	assert.Nil(t, profile.PayoutWalletAddress)
	assert.Nil(t, profile.WebhookURL)
}

func TestMerchantService_UpdateProfile_Validation(t *testing.T) {
	tests := []struct {
		name string
		upd  ports.ProfileUpdate
	}{
		{"short address", ports.ProfileUpdate{PayoutWalletAddress: strPtr("0x1234")}},
		{"non-hex address", ports.ProfileUpdate{PayoutWalletAddress: strPtr("0x" + strings.Repeat("z", 40))}},
		{"http webhook", ports.ProfileUpdate{WebhookURL: strPtr("http://shop.example/hook")}},
		{"relative webhook", ports.ProfileUpdate{WebhookURL: strPtr("/hook")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			svc := NewMerchantService(mocks.NewMockMerchantRepository(ctrl), nil, newTestLogger())
			_, err := svc.UpdateProfile(context.Background(), uuid.New(), tt.upd)
			assertAppError(t, err, "VAL_001")
		})
	}
}

func TestMerchantService_RotateWebhookSecret(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	repo := mocks.NewMockMerchantRepository(ctrl)
	enc := mocks.NewMockEncryptionService(ctrl)
	svc := NewMerchantService(repo, enc, newTestLogger())

	merchantID := uuid.New()
	repo.EXPECT().GetByID(gomock.Any(), merchantID).Return(&domain.Merchant{ID: merchantID}, nil)
	enc.EXPECT().Encrypt(gomock.Any()).DoAndReturn(func(s string) (string, error) {
		return "enc:" + s, nil
	})

	var stored string
	repo.EXPECT().UpdateWebhookSecret(gomock.Any(), merchantID, gomock.Any()).DoAndReturn(
		func(_ context.Context, _ uuid.UUID, secretEnc string) error {
			stored = secretEnc
			return nil
		},
	)

	secret, err := svc.RotateWebhookSecret(context.Background(), merchantID)
	require.NoError(t, err)
	assert.Regexp(t, `^whsec_[0-9a-f]{64}$`, secret)
	assert.Equal(t, "enc:"+secret, stored)
}

func TestMerchantService_RotateWebhookSecret_EncryptFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	repo := mocks.NewMockMerchantRepository(ctrl)
	enc := mocks.NewMockEncryptionService(ctrl)
	svc := NewMerchantService(repo, enc, newTestLogger())

	repo.EXPECT().GetByID(gomock.Any(), gomock.Any()).Return(&domain.Merchant{}, nil)
	enc.EXPECT().Encrypt(gomock.Any()).Return("", errors.New("bad key"))

	_, err := svc.RotateWebhookSecret(context.Background(), uuid.New())
	assertAppError(t, err, "SYS_002")
}

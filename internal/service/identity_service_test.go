package service

import (
	"context"
	"errors"
	"testing"

	"flowkora/internal/core/domain"
	"flowkora/internal/core/ports"
	"flowkora/internal/core/ports/mocks"
	"flowkora/pkg/apperror"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type identityTestDeps struct {
	svc          ports.IdentityService
	tokens       *mocks.MockSessionTokenService
	merchantRepo *mocks.MockMerchantRepository
	apiKeys      *mocks.MockAPIKeyService
}

func setupIdentityService(ctrl *gomock.Controller) *identityTestDeps {
	d := &identityTestDeps{
		tokens:       mocks.NewMockSessionTokenService(ctrl),
		merchantRepo: mocks.NewMockMerchantRepository(ctrl),
		apiKeys:      mocks.NewMockAPIKeyService(ctrl),
	}
	d.svc = NewIdentityService(d.tokens, d.merchantRepo, d.apiKeys, newTestLogger())
	return d
}

func TestIdentityService_AuthenticateSession_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	d := setupIdentityService(ctrl)

	merchantID := uuid.New()
	d.tokens.EXPECT().Validate("tok").Return(&ports.SessionClaims{MerchantID: merchantID}, nil)
	d.merchantRepo.EXPECT().EnsureExists(gomock.Any(), merchantID).Return(nil)

	p, err := d.svc.AuthenticateSession(context.Background(), "tok")
	require.NoError(t, err)
	assert.Equal(t, merchantID, p.MerchantID)
	assert.Equal(t, domain.CredentialSession, p.Kind)
	assert.Nil(t, p.APIKeyID)
}

func TestIdentityService_AuthenticateSession_Rejected(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	d := setupIdentityService(ctrl)

	_, err := d.svc.AuthenticateSession(context.Background(), "")
	assertAppError(t, err, "AUTH_001")

	d.tokens.EXPECT().Validate("bad").Return(nil, errors.New("signature is invalid"))
	_, err = d.svc.AuthenticateSession(context.Background(), "bad")
	assertAppError(t, err, "AUTH_001")
}

func TestIdentityService_AuthenticateSession_StoreFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	d := setupIdentityService(ctrl)

	merchantID := uuid.New()
	d.tokens.EXPECT().Validate("tok").Return(&ports.SessionClaims{MerchantID: merchantID}, nil)
	d.merchantRepo.EXPECT().EnsureExists(gomock.Any(), merchantID).Return(errors.New("conn refused"))

	_, err := d.svc.AuthenticateSession(context.Background(), "tok")
	assertAppError(t, err, "SYS_001")
}

func TestIdentityService_AuthenticateAPIKey(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	d := setupIdentityService(ctrl)

	key := &domain.APIKey{ID: uuid.New(), MerchantID: uuid.New(), Status: domain.APIKeyStatusActive}
	d.apiKeys.EXPECT().Authenticate(gomock.Any(), "fk_live_good").Return(key, nil)

	p, err := d.svc.AuthenticateAPIKey(context.Background(), "fk_live_good")
	require.NoError(t, err)
	assert.Equal(t, key.MerchantID, p.MerchantID)
	assert.Equal(t, domain.CredentialAPIKey, p.Kind)
	require.NotNil(t, p.APIKeyID)
	assert.Equal(t, key.ID, *p.APIKeyID)

	d.apiKeys.EXPECT().Authenticate(gomock.Any(), "fk_live_bad").Return(nil, apperror.ErrUnauthorized())
	_, err = d.svc.AuthenticateAPIKey(context.Background(), "fk_live_bad")
	assertAppError(t, err, "AUTH_001")
}

package service

import (
	"fmt"
	"time"

	"flowkora/internal/core/ports"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// JWTSessionTokenService implements ports.SessionTokenService for HS256
// session tokens shared with the identity provider.
type JWTSessionTokenService struct {
	secret []byte
	expiry time.Duration
	issuer string
}

// NewJWTSessionTokenService creates a session token service. An empty issuer
// disables the iss check.
func NewJWTSessionTokenService(secret string, expiry time.Duration, issuer string) *JWTSessionTokenService {
	return &JWTSessionTokenService{
		secret: []byte(secret),
		expiry: expiry,
		issuer: issuer,
	}
}

// Issue mints a token whose subject is the merchant id.
func (s *JWTSessionTokenService) Issue(merchantID uuid.UUID) (string, time.Time, error) {
	now := time.Now()
	expiresAt := now.Add(s.expiry)

	claims := jwt.RegisteredClaims{
		Subject:   merchantID.String(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
		Issuer:    s.issuer,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("signing token: %w", err)
	}
	return signed, expiresAt, nil
}

// Validate parses a session token and returns the merchant it belongs to.
func (s *JWTSessionTokenService) Validate(tokenString string) (*ports.SessionClaims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if s.issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.issuer))
	}

	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (interface{}, error) {
		return s.secret, nil
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("parsing token: %w", err)
	}
	if !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}

	merchantID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, fmt.Errorf("invalid subject claim: %w", err)
	}

	return &ports.SessionClaims{
		MerchantID: merchantID,
		ExpiresAt:  claims.ExpiresAt.Time,
	}, nil
}

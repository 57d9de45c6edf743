package domain

import "github.com/google/uuid"

// CredentialKind identifies how a principal authenticated.
type CredentialKind string

const (
	CredentialSession CredentialKind = "session"
	CredentialAPIKey  CredentialKind = "api_key"
)

// Principal is the authenticated merchant behind a request.
type Principal struct {
	MerchantID uuid.UUID
	Kind       CredentialKind
	APIKeyID   *uuid.UUID
}

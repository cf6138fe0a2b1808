package repository

import (
	"context"
	"errors"

	"kitchenline/internal/domain/entity"
)

// Domain-specific errors for credential persistence.
var (
	// ErrCredentialNotFound is returned when no credential exists for a lookup key.
	ErrCredentialNotFound = errors.New("credential not found")
	// ErrCredentialAlreadyExists is returned when the email is already registered.
	ErrCredentialAlreadyExists = errors.New("credential already exists")
)

// CredentialRepository stores the login identities owned by the local auth provider.
type CredentialRepository interface {
	// CreateCredential persists a credential. Email must be unique.
	CreateCredential(ctx context.Context, credential *entity.Credential) error

	// FindCredentialByEmail retrieves a credential by normalized email.
	FindCredentialByEmail(ctx context.Context, email string) (*entity.Credential, error)

	// FindCredentialByUID retrieves a credential by provider UID.
	FindCredentialByUID(ctx context.Context, uid string) (*entity.Credential, error)

	// DeleteCredential removes the credential with uid. Deleting a missing
	// credential returns ErrCredentialNotFound.
	DeleteCredential(ctx context.Context, uid string) error
}

package firestore

import (
	"context"

	"kitchenline/internal/domain/constants"
	"kitchenline/internal/domain/entity"
	"kitchenline/internal/domain/repository"

	"cloud.google.com/go/firestore"
	"github.com/pkg/errors"
)

type credentialRepository struct {
	session
}

// NewCredentialRepository creates a CredentialRepository backed by client.
func NewCredentialRepository(client *firestore.Client) repository.CredentialRepository {
	return &credentialRepository{session{client: client}}
}

func (r *credentialRepository) collection() *firestore.CollectionRef {
	return r.client.Collection(constants.CollectionCredentials)
}

// CreateCredential checks email uniqueness and writes the record in one transaction.
func (r *credentialRepository) CreateCredential(ctx context.Context, credential *entity.Credential) error {
	doc := credentialDoc{
		Email:        credential.Email,
		PasswordHash: credential.PasswordHash,
		DisplayName:  credential.DisplayName,
		CreatedAt:    credential.CreatedAt,
	}

	return r.atomically(ctx, func(ctx context.Context, s session) error {
		existing, err := s.all(ctx, r.collection().Where(fieldEmail, "==", credential.Email).Limit(1))
		if err != nil {
			return classify(err, "failed to check credential email")
		}
		if len(existing) > 0 {
			return repository.ErrCredentialAlreadyExists
		}

		err = s.create(ctx, r.collection().Doc(credential.UID), doc)
		if isAlreadyExists(err) {
			return repository.ErrCredentialAlreadyExists
		}
		if err != nil {
			return classify(err, "failed to create credential")
		}

		return nil
	})
}

func (r *credentialRepository) FindCredentialByEmail(ctx context.Context, email string) (*entity.Credential, error) {
	snaps, err := r.all(ctx, r.collection().Where(fieldEmail, "==", email).Limit(1))
	if err != nil {
		return nil, classify(err, "failed to find credential by email")
	}
	if len(snaps) == 0 {
		return nil, repository.ErrCredentialNotFound
	}

	return decodeCredential(snaps[0])
}

func (r *credentialRepository) FindCredentialByUID(ctx context.Context, uid string) (*entity.Credential, error) {
	snap, err := r.get(ctx, r.collection().Doc(uid))
	if isNotFound(err) {
		return nil, repository.ErrCredentialNotFound
	}
	if err != nil {
		return nil, classify(err, "failed to find credential by uid")
	}

	return decodeCredential(snap)
}

// DeleteCredential removes the credential document. firestore.Exists turns a
// missing document into NotFound.
func (r *credentialRepository) DeleteCredential(ctx context.Context, uid string) error {
	err := r.delete(ctx, r.collection().Doc(uid))
	if isNotFound(err) {
		return repository.ErrCredentialNotFound
	}
	if err != nil {
		return classify(err, "failed to delete credential")
	}

	return nil
}

func decodeCredential(snap *firestore.DocumentSnapshot) (*entity.Credential, error) {
	var doc credentialDoc
	if err := snap.DataTo(&doc); err != nil {
		return nil, errors.Wrapf(err, "failed to decode credential %s", snap.Ref.ID)
	}

	return &entity.Credential{
		UID:          snap.Ref.ID,
		Email:        doc.Email,
		PasswordHash: doc.PasswordHash,
		DisplayName:  doc.DisplayName,
		CreatedAt:    doc.CreatedAt,
	}, nil
}

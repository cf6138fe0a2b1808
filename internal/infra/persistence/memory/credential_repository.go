package memory

import (
	"context"

	"kitchenline/internal/domain/constants"
	"kitchenline/internal/domain/entity"
	"kitchenline/internal/domain/repository"
	"kitchenline/internal/errors"
)

type credentialRepository struct {
	store *Store
	tx    *txState
}

// NewCredentialRepository creates a CredentialRepository over store.
func NewCredentialRepository(store *Store) repository.CredentialRepository {
	return &credentialRepository{store: store}
}

func (r *credentialRepository) CreateCredential(_ context.Context, credential *entity.Credential) error {
	return write(r.store, r.tx, constants.CollectionCredentials, func(st *state) error {
		if _, ok := st.emails[credential.Email]; ok {
			return errors.WithStack(repository.ErrCredentialAlreadyExists)
		}
		st.credentials[credential.UID] = record[entity.Credential]{seq: st.nextSeq(), value: *credential}
		st.emails[credential.Email] = credential.UID

		return nil
	})
}

func (r *credentialRepository) FindCredentialByEmail(_ context.Context, email string) (*entity.Credential, error) {
	var (
		found *entity.Credential
		ok    bool
	)
	read(r.store, r.tx, func(st *state) {
		var uid string
		if uid, ok = st.emails[email]; ok {
			value := st.credentials[uid].value
			found = &value
		}
	})
	if !ok {
		return nil, errors.WithStack(repository.ErrCredentialNotFound)
	}

	return found, nil
}

func (r *credentialRepository) FindCredentialByUID(_ context.Context, uid string) (*entity.Credential, error) {
	var (
		found *entity.Credential
		ok    bool
	)
	read(r.store, r.tx, func(st *state) {
		var rec record[entity.Credential]
		if rec, ok = st.credentials[uid]; ok {
			value := rec.value
			found = &value
		}
	})
	if !ok {
		return nil, errors.WithStack(repository.ErrCredentialNotFound)
	}

	return found, nil
}

func (r *credentialRepository) DeleteCredential(_ context.Context, uid string) error {
	return write(r.store, r.tx, constants.CollectionCredentials, func(st *state) error {
		rec, ok := st.credentials[uid]
		if !ok {
			return errors.WithStack(repository.ErrCredentialNotFound)
		}
		delete(st.credentials, uid)
		delete(st.emails, rec.value.Email)

		return nil
	})
}

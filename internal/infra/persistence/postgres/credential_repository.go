package postgres

import (
	"context"

	"kitchenline/internal/domain/entity"
	domainerrors "kitchenline/internal/domain/errors"
	"kitchenline/internal/domain/repository"
	"kitchenline/internal/infra/persistence/model"

	"github.com/pkg/errors"
	"gorm.io/gorm"
)

// credentialRepository implements repository.CredentialRepository using GORM.
type credentialRepository struct {
	db *gorm.DB
}

// NewCredentialRepository is the constructor for credentialRepository.
func NewCredentialRepository(db *gorm.DB) repository.CredentialRepository {
	return &credentialRepository{db: db}
}

// CreateCredential persists a credential. The email column is unique.
func (repo *credentialRepository) CreateCredential(ctx context.Context, credential *entity.Credential) error {
	credentialM := &model.CredentialModel{
		UID:          credential.UID,
		Email:        credential.Email,
		PasswordHash: credential.PasswordHash,
		DisplayName:  credential.DisplayName,
		CreatedAt:    credential.CreatedAt,
	}
	if err := repo.db.WithContext(ctx).Create(credentialM).Error; err != nil {
		if isUniqueConstraintViolation(err) {
			return repository.ErrCredentialAlreadyExists
		}
		if isTransient(err) {
			return classify(err, "failed to create credential")
		}

		return domainerrors.NewDatabaseExecuteError(err, "failed to create credential")
	}

	return nil
}

// FindCredentialByEmail retrieves a credential by email.
func (repo *credentialRepository) FindCredentialByEmail(ctx context.Context, email string) (*entity.Credential, error) {
	return repo.findOne(ctx, "email = ?", email)
}

// FindCredentialByUID retrieves a credential by provider UID.
func (repo *credentialRepository) FindCredentialByUID(ctx context.Context, uid string) (*entity.Credential, error) {
	return repo.findOne(ctx, "uid = ?", uid)
}

// DeleteCredential removes a credential by provider UID.
func (repo *credentialRepository) DeleteCredential(ctx context.Context, uid string) error {
	result := repo.db.WithContext(ctx).Where("uid = ?", uid).Delete(&model.CredentialModel{})
	if result.Error != nil {
		return classify(result.Error, "failed to delete credential")
	}
	if result.RowsAffected == 0 {
		return repository.ErrCredentialNotFound
	}

	return nil
}

func (repo *credentialRepository) findOne(ctx context.Context, cond string, arg any) (*entity.Credential, error) {
	var credentialM model.CredentialModel
	if err := repo.db.WithContext(ctx).Where(cond, arg).First(&credentialM).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrCredentialNotFound
		}

		return nil, classify(err, "failed to find credential")
	}

	return &entity.Credential{
		UID:          credentialM.UID,
		Email:        credentialM.Email,
		PasswordHash: credentialM.PasswordHash,
		DisplayName:  credentialM.DisplayName,
		CreatedAt:    credentialM.CreatedAt,
	}, nil
}

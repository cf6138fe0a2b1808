package postgres

import (
	"context"
	"time"

	"kitchenline/internal/domain/constants"
	"kitchenline/internal/domain/entity"
	domainerrors "kitchenline/internal/domain/errors"
	"kitchenline/internal/domain/repository"
	"kitchenline/internal/infra/persistence/model"

	"github.com/pkg/errors"
	"gorm.io/gorm"
)

// actorRepository implements repository.ActorRepository using GORM.
type actorRepository struct {
	db           *gorm.DB
	pollInterval time.Duration
}

// NewActorRepository is the constructor for actorRepository.
func NewActorRepository(db *gorm.DB, pollInterval time.Duration) repository.ActorRepository {
	return &actorRepository{db: db, pollInterval: pollInterval}
}

// CreateActor persists a new actor.
func (repo *actorRepository) CreateActor(ctx context.Context, actor *entity.Actor) error {
	if err := repo.db.WithContext(ctx).Create(fromActorDomain(actor)).Error; err != nil {
		if isUniqueConstraintViolation(err) {
			return repository.ErrActorAlreadyExists
		}
		if isTransient(err) {
			return classify(err, "failed to create actor")
		}

		return domainerrors.NewDatabaseExecuteError(err, "failed to create actor")
	}

	return nil
}

// FindActorByID retrieves an actor by its ID.
func (repo *actorRepository) FindActorByID(ctx context.Context, id string) (*entity.Actor, error) {
	var actorM model.ActorModel
	if err := repo.db.WithContext(ctx).Where("id = ?", id).First(&actorM).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrActorNotFound
		}

		return nil, classify(err, "failed to find actor by id")
	}

	return toActorDomain(&actorM), nil
}

// UpdateActor overwrites the mutable columns. Role and created_at are never written.
func (repo *actorRepository) UpdateActor(ctx context.Context, actor *entity.Actor) error {
	actorM := fromActorDomain(actor)
	result := repo.db.WithContext(ctx).
		Model(&model.ActorModel{}).
		Where("id = ?", actor.ID).
		Select("email", "display_name", "phone", "address", "photo_url", "bio", "delivery_fee",
			"verified", "onboarding_complete", "push_tokens", "updated_at").
		Updates(actorM)
	if result.Error != nil {
		return classify(result.Error, "failed to update actor")
	}
	if result.RowsAffected == 0 {
		return repository.ErrActorNotFound
	}

	return nil
}

// WatchActors polls the actor table and emits changed result sets.
func (repo *actorRepository) WatchActors(ctx context.Context, query repository.ActorQuery, onSnapshot func([]*entity.Actor), onError func(error)) (repository.Unsubscribe, error) {
	return poll(withFeedPoll(ctx, constants.CollectionActors), repo.pollInterval, func(ctx context.Context) ([]*entity.Actor, error) {
		return repo.listActors(ctx, query)
	}, onSnapshot, onError)
}

func (repo *actorRepository) listActors(ctx context.Context, query repository.ActorQuery) ([]*entity.Actor, error) {
	var actorModels []*model.ActorModel

	q := repo.db.WithContext(ctx).Order("created_at ASC").Order("id ASC")
	if query.Role != "" {
		q = q.Where("role = ?", string(query.Role))
	}
	if query.Limit > 0 {
		q = q.Limit(query.Limit)
	}
	if err := q.Find(&actorModels).Error; err != nil {
		return nil, classify(err, "failed to list actors")
	}

	actors := make([]*entity.Actor, 0, len(actorModels))
	for _, actorM := range actorModels {
		actors = append(actors, toActorDomain(actorM))
	}

	return actors, nil
}

// --- Mapper Functions ---

func toActorDomain(data *model.ActorModel) *entity.Actor {
	if data == nil {
		return nil
	}

	return &entity.Actor{
		ID:    data.ID,
		Role:  entity.Role(data.Role),
		Email: data.Email,
		Profile: entity.Profile{
			DisplayName: data.DisplayName,
			Phone:       data.Phone,
			Address:     data.Address,
			PhotoURL:    data.PhotoURL,
			Bio:         data.Bio,
			DeliveryFee: data.DeliveryFee,
		},
		Verified:           data.Verified,
		OnboardingComplete: data.OnboardingComplete,
		PushTokens:         []string(data.PushTokens),
		CreatedAt:          data.CreatedAt,
		UpdatedAt:          data.UpdatedAt,
	}
}

func fromActorDomain(data *entity.Actor) *model.ActorModel {
	if data == nil {
		return nil
	}

	return &model.ActorModel{
		ID:                 data.ID,
		Role:               string(data.Role),
		Email:              data.Email,
		DisplayName:        data.Profile.DisplayName,
		Phone:              data.Profile.Phone,
		Address:            data.Profile.Address,
		PhotoURL:           data.Profile.PhotoURL,
		Bio:                data.Profile.Bio,
		DeliveryFee:        data.Profile.DeliveryFee,
		Verified:           data.Verified,
		OnboardingComplete: data.OnboardingComplete,
		PushTokens:         data.PushTokens,
		CreatedAt:          data.CreatedAt,
		UpdatedAt:          data.UpdatedAt,
	}
}

package firestore

import (
	"context"

	"kitchenline/internal/domain/constants"
	"kitchenline/internal/domain/entity"
	"kitchenline/internal/domain/repository"

	"cloud.google.com/go/firestore"
	"github.com/pkg/errors"
)

type actorRepository struct {
	session
}

// NewActorRepository creates an ActorRepository backed by client.
func NewActorRepository(client *firestore.Client) repository.ActorRepository {
	return &actorRepository{session{client: client}}
}

func (r *actorRepository) collection() *firestore.CollectionRef {
	return r.client.Collection(constants.CollectionActors)
}

func (r *actorRepository) CreateActor(ctx context.Context, actor *entity.Actor) error {
	err := r.create(ctx, r.collection().Doc(actor.ID), toActorDoc(actor))
	if isAlreadyExists(err) {
		return repository.ErrActorAlreadyExists
	}
	if err != nil {
		return classify(err, "failed to create actor")
	}

	return nil
}

func (r *actorRepository) FindActorByID(ctx context.Context, id string) (*entity.Actor, error) {
	snap, err := r.get(ctx, r.collection().Doc(id))
	if isNotFound(err) {
		return nil, repository.ErrActorNotFound
	}
	if err != nil {
		return nil, classify(err, "failed to find actor by id")
	}

	return decodeActor(snap)
}

func (r *actorRepository) UpdateActor(ctx context.Context, actor *entity.Actor) error {
	doc := toActorDoc(actor)
	err := r.update(ctx, r.collection().Doc(actor.ID), []firestore.Update{
		{Path: fieldEmail, Value: doc.Email},
		{Path: "displayName", Value: doc.DisplayName},
		{Path: "phone", Value: doc.Phone},
		{Path: "address", Value: doc.Address},
		{Path: "photoUrl", Value: doc.PhotoURL},
		{Path: "bio", Value: doc.Bio},
		{Path: "deliveryFee", Value: doc.DeliveryFee},
		{Path: "verified", Value: doc.Verified},
		{Path: "onboardingComplete", Value: doc.OnboardingComplete},
		{Path: "pushTokens", Value: doc.PushTokens},
		{Path: fieldUpdatedAt, Value: doc.UpdatedAt},
	})
	if isNotFound(err) {
		return repository.ErrActorNotFound
	}
	if err != nil {
		return classify(err, "failed to update actor")
	}

	return nil
}

func (r *actorRepository) WatchActors(ctx context.Context, query repository.ActorQuery, onSnapshot func([]*entity.Actor), onError func(error)) (repository.Unsubscribe, error) {
	q := r.collection().Query
	if query.Role != "" {
		q = q.Where(fieldRole, "==", string(query.Role))
	}
	q = q.OrderBy(fieldCreatedAt, firestore.Asc)
	if query.Limit > 0 {
		q = q.Limit(query.Limit)
	}

	return listen(ctx, q, decodeActor, onSnapshot, onError)
}

func decodeActor(snap *firestore.DocumentSnapshot) (*entity.Actor, error) {
	var doc actorDoc
	if err := snap.DataTo(&doc); err != nil {
		return nil, errors.Wrapf(err, "failed to decode actor %s", snap.Ref.ID)
	}

	return doc.toEntity(snap.Ref.ID), nil
}
